package builder

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shouni/nanobanana-mcp/internal/config"
	"github.com/shouni/nanobanana-mcp/internal/mcp"
	"github.com/shouni/nanobanana-mcp/internal/metrics"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/status"
	"github.com/shouni/nanobanana-mcp/pkg/store"
	"github.com/shouni/nanobanana-mcp/pkg/tools"
)

// AppContext は組み立て済みの依存関係をまとめて保持します。
// 各コマンドはここから必要なものだけを取り出します。
type AppContext struct {
	Config   *config.Config
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Store    *store.Store
	Gateway  generator.Gateway
	Status   *status.Aggregator
	Service  *tools.Service
	Server   *mcp.Server
}
