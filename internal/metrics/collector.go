// Package metrics は Prometheus 向けの計測値をまとめます。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "nanobanana"

// Collector はサーバー全体の計測値です。nil のレシーバでも安全に呼び出せます。
type Collector struct {
	providerRequests *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerRetries  prometheus.Counter
	imagesSaved      *prometheus.CounterVec
	costUSD          *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	cacheDeleted     prometheus.Counter
}

// NewCollector は reg に計測値を登録します。reg が nil の場合は新しいレジストリを使います。
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Collector{
		providerRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Total number of image provider requests",
		}, []string{"model", "status"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Image provider request duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"model"}),
		providerRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Total number of retried provider requests",
		}),
		imagesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_saved_total",
			Help:      "Total number of persisted images",
		}, []string{"operation", "format"}),
		costUSD: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "estimated_cost_usd_total",
			Help:      "Estimated provider cost in USD",
		}, []string{"operation"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total number of tool invocations by result code",
		}, []string{"tool", "code"}),
		cacheDeleted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_files_deleted_total",
			Help:      "Total number of cache files removed by the retention sweep",
		}),
	}
}

// ObserveProvider はプロバイダ呼び出し 1 回分を記録します。
func (c *Collector) ObserveProvider(model, status string, d time.Duration) {
	if c == nil {
		return
	}
	c.providerRequests.WithLabelValues(model, status).Inc()
	c.providerDuration.WithLabelValues(model).Observe(d.Seconds())
}

// IncRetry はリトライ回数を加算します。
func (c *Collector) IncRetry() {
	if c == nil {
		return
	}
	c.providerRetries.Inc()
}

// ObserveSaved は保存済み画像とその推定コストを記録します。
func (c *Collector) ObserveSaved(operation, format string, cost float64) {
	if c == nil {
		return
	}
	c.imagesSaved.WithLabelValues(operation, format).Inc()
	c.costUSD.WithLabelValues(operation).Add(cost)
}

// ObserveTool はツール呼び出しの結果コードを記録します。成功時の code は "OK" です。
func (c *Collector) ObserveTool(tool, code string) {
	if c == nil {
		return
	}
	c.toolCalls.WithLabelValues(tool, code).Inc()
}

// AddCacheDeleted は保持スイープで削除した件数を加算します。
func (c *Collector) AddCacheDeleted(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.cacheDeleted.Add(float64(n))
}
