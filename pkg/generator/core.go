package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// GeminiGateway は Gemini の画像モデルを呼び出す Gateway 実装です。
// 呼び出しごとにタイムアウト・レート制御・一時的な失敗へのリトライを適用します。
type GeminiGateway struct {
	client  ContentGenerator
	opts    Options
	limiter *rate.Limiter

	mu           sync.Mutex
	stats        Stats
	totalLatency time.Duration

	// sleep はテストでバックオフ待機を差し替えるためのものです。
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGeminiGateway は依存関係を注入して GeminiGateway を初期化します。
func NewGeminiGateway(client ContentGenerator, opts Options) (*GeminiGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("client (ContentGenerator) is required")
	}
	opts.applyDefaults()

	limit := rate.Inf
	if opts.RateInterval > 0 {
		limit = rate.Every(opts.RateInterval)
	}

	return &GeminiGateway{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(limit, opts.RateBurst),
		stats:   Stats{Since: time.Now()},
		sleep:   sleepContext,
	}, nil
}

// Model は利用するモデル名を返します。
func (g *GeminiGateway) Model() string {
	return g.opts.Model
}

// Generate は要求をプロバイダに送ります。レート制限と 5xx 相当の失敗のみ指数バックオフで再試行し、
// 検証・安全性・クォータのエラーは再試行しません。
func (g *GeminiGateway) Generate(ctx context.Context, req Request) (*Result, error) {
	if req.CandidateCount > domain.MaxCandidateCount {
		return nil, domain.NewValidationError("candidateCount", "must be between 1 and %d, got %d", domain.MaxCandidateCount, req.CandidateCount)
	}
	if req.CandidateCount < 1 {
		req.CandidateCount = 1
	}

	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	contents := buildContents(req)
	config := buildConfig(req, g.opts.SafetyLevel)

	start := time.Now()
	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff(g.opts.BackoffBase, g.opts.BackoffFactor, attempt-1)
			slog.WarnContext(ctx, "プロバイダ呼び出しを再試行します",
				"attempt", attempt, "wait", wait, "error", lastErr)
			g.recordRetry()
			if err := g.sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		if err := g.limiter.Wait(ctx); err != nil {
			lastErr = err
			break
		}

		attempts++
		callStart := time.Now()
		resp, err := g.client.GenerateContent(ctx, g.opts.Model, contents, config)
		g.opts.Metrics.ObserveProvider(g.opts.Model, statusLabel(err), time.Since(callStart))
		if err != nil {
			lastErr = err
			if !classify(err).retryable || ctx.Err() != nil {
				break
			}
			continue
		}

		payloads, texts, perr := parseResponse(resp)
		if perr != nil {
			g.recordFailure(perr, time.Since(start))
			return nil, perr
		}

		elapsed := time.Since(start)
		g.recordSuccess(len(payloads), elapsed)
		slog.InfoContext(ctx, "画像生成リクエストが完了しました",
			"model", g.opts.Model, "operation", req.Operation, "images", len(payloads), "elapsed", elapsed, "attempts", attempts)
		return &Result{
			Payloads: payloads,
			Texts:    texts,
			Model:    g.opts.Model,
			Elapsed:  elapsed,
			Attempts: attempts,
		}, nil
	}

	terr := toToolError(ctx, lastErr)
	g.recordFailure(terr, time.Since(start))
	slog.ErrorContext(ctx, "画像生成リクエストに失敗しました",
		"model", g.opts.Model, "operation", req.Operation, "code", terr.Code, "attempts", attempts, "error", lastErr)
	return nil, terr
}

// HealthCheck はモデル情報を取得して疎通と応答時間を確認します。
func (g *GeminiGateway) HealthCheck(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	h := Health{Model: g.opts.Model, CheckedAt: time.Now()}
	start := time.Now()
	_, err := g.client.Get(ctx, g.opts.Model, nil)
	h.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		h.Error = err.Error()
		slog.WarnContext(ctx, "プロバイダへの疎通確認に失敗しました", "model", g.opts.Model, "error", err)
		return h
	}
	h.Accessible = true
	return h
}

// Stats は統計のスナップショットを返します。
func (g *GeminiGateway) Stats() Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}

// ResetStats は統計をゼロに戻します。
func (g *GeminiGateway) ResetStats() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats = Stats{Since: time.Now()}
	g.totalLatency = 0
}

func (g *GeminiGateway) recordSuccess(images int, elapsed time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.TotalRequests++
	g.stats.Successful++
	g.stats.ImagesReturned += int64(images)
	g.stats.LastRequestAt = time.Now()
	g.totalLatency += elapsed
	g.stats.AverageLatencyMS = float64(g.totalLatency.Milliseconds()) / float64(g.stats.TotalRequests)
}

func (g *GeminiGateway) recordFailure(err error, elapsed time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stats.TotalRequests++
	g.stats.Failed++
	g.stats.LastError = err.Error()
	g.stats.LastRequestAt = time.Now()
	g.totalLatency += elapsed
	g.stats.AverageLatencyMS = float64(g.totalLatency.Milliseconds()) / float64(g.stats.TotalRequests)
}

func (g *GeminiGateway) recordRetry() {
	g.opts.Metrics.IncRetry()
	g.mu.Lock()
	g.stats.Retries++
	g.mu.Unlock()
}

// toToolError は最後に発生したエラーをツール境界のエラーに変換します。
func toToolError(ctx context.Context, err error) *domain.ToolError {
	if err == nil {
		err = errors.New("no attempt was made")
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.WrapError(domain.CodeTimeout, err, "provider request timed out")
	}
	c := classify(err)
	return domain.WrapError(c.code, err, "%s", c.message)
}

func statusLabel(err error) string {
	if err != nil {
		return string(classify(err).code)
	}
	return "success"
}
