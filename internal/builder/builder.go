package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shouni/go-http-kit/pkg/httpkit"

	"github.com/shouni/nanobanana-mcp/internal/config"
	"github.com/shouni/nanobanana-mcp/internal/mcp"
	"github.com/shouni/nanobanana-mcp/internal/metrics"
	"github.com/shouni/nanobanana-mcp/pkg/adapters"
	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/normalizer"
	"github.com/shouni/nanobanana-mcp/pkg/prompt"
	"github.com/shouni/nanobanana-mcp/pkg/status"
	"github.com/shouni/nanobanana-mcp/pkg/store"
	"github.com/shouni/nanobanana-mcp/pkg/tools"
)

// BuildApp は設定から全ての依存関係を組み立てます。client が nil の場合は API キーで Gemini クライアントを作ります。
func BuildApp(ctx context.Context, cfg *config.Config, client generator.ContentGenerator) (*AppContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewCollector(reg)

	st, err := BuildStore(cfg)
	if err != nil {
		return nil, err
	}

	if client == nil {
		client, err = generator.NewGenAIClient(ctx, cfg.APIKey)
		if err != nil {
			return nil, fmt.Errorf("Gemini クライアントの初期化に失敗しました: %w", err)
		}
	}
	gw, err := BuildGateway(cfg, client, m)
	if err != nil {
		return nil, err
	}

	loader, err := BuildSourceLoader(cfg, st.TempDir())
	if err != nil {
		return nil, err
	}

	agg, err := status.NewAggregator(gw, st, status.GopsutilProbe{}, status.ServerMeta{
		Name:      cfg.ServerName,
		Version:   cfg.ServerVersion,
		StartedAt: time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("ステータス集計の初期化に失敗しました: %w", err)
	}

	svc, err := tools.New(tools.Deps{
		Normalizer: normalizer.New(loader, normalizer.Defaults{
			OutputFormat: domain.OutputFormat(cfg.DefaultOutputFormat),
			Quality:      domain.Quality(cfg.DefaultQuality),
		}),
		Optimizer:     prompt.NewOptimizer(cache.New(cache.NoExpiration, 0), cfg.AutoTranslate),
		Gateway:       gw,
		Loader:        loader,
		Store:         st,
		Status:        agg,
		Metrics:       m,
		MaxConcurrent: cfg.MaxConcurrent,
	})
	if err != nil {
		return nil, fmt.Errorf("ツールサービスの初期化に失敗しました: %w", err)
	}

	srv, err := BuildServer(cfg, svc)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "依存関係の組み立てが完了しました",
		"model", gw.Model(), "output_dir", st.OutputRoot(), "max_concurrent", cfg.MaxConcurrent)
	return &AppContext{
		Config:   cfg,
		Registry: reg,
		Metrics:  m,
		Store:    st,
		Gateway:  gw,
		Status:   agg,
		Service:  svc,
		Server:   srv,
	}, nil
}

// BuildStore は保存先と保持ポリシーから Store を作ります。
func BuildStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.New(store.Options{
		OutputRoot:    cfg.OutputDir,
		CacheRoot:     cfg.CacheDir,
		TempRoot:      cfg.TempDir,
		CacheEnabled:  cfg.CacheEnabled,
		CacheExpiry:   cfg.CacheExpiry,
		CacheMaxBytes: cfg.CacheMaxBytes(),
	})
	if err != nil {
		return nil, fmt.Errorf("Store の初期化に失敗しました: %w", err)
	}
	return st, nil
}

// BuildGateway は Gemini 向けの Gateway を作ります。
func BuildGateway(cfg *config.Config, client generator.ContentGenerator, m *metrics.Collector) (*generator.GeminiGateway, error) {
	level, err := generator.ParseSafetyLevel(cfg.SafetyLevel)
	if err != nil {
		return nil, err
	}
	gw, err := generator.NewGeminiGateway(client, generator.Options{
		Model:         cfg.Model,
		Timeout:       cfg.RequestTimeout,
		MaxRetries:    cfg.MaxRetries,
		BackoffFactor: cfg.RetryBackoffFactor,
		SafetyLevel:   level,
		RateInterval:  cfg.RateInterval,
		Metrics:       m,
	})
	if err != nil {
		return nil, fmt.Errorf("Gateway の初期化に失敗しました: %w", err)
	}
	return gw, nil
}

// BuildSourceLoader はローカルとリモートの入力画像を扱うローダーを作ります。
func BuildSourceLoader(cfg *config.Config, tempDir string) (*adapters.SourceLoader, error) {
	httpClient := httpkit.New(cfg.HTTPTimeout)
	remoteCache := cache.New(cfg.RemoteCacheTTL, 2*cfg.RemoteCacheTTL)
	loader, err := adapters.NewSourceLoader(httpClient, remoteCache, cfg.RemoteCacheTTL, tempDir)
	if err != nil {
		return nil, fmt.Errorf("入力画像ローダーの初期化に失敗しました: %w", err)
	}
	return loader, nil
}

// BuildServer は各ツールを JSON-RPC サーバーに登録します。
func BuildServer(cfg *config.Config, svc *tools.Service) (*mcp.Server, error) {
	srv := mcp.NewServer(cfg.ServerName, cfg.ServerVersion)
	for _, t := range svc.Tools() {
		call := t.Call
		def := mcp.ToolDefinition{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema}
		err := srv.RegisterTool(def, func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			v := call(ctx, args)
			return mcp.JSONResult(v, !tools.Succeeded(v))
		})
		if err != nil {
			return nil, fmt.Errorf("ツール %s の登録に失敗しました: %w", t.Name, err)
		}
	}
	return srv, nil
}
