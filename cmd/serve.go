package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shouni/nanobanana-mcp/internal/builder"
)

var (
	metricsAddr   string
	sweepInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:         "serve",
	Short:       "標準入出力で JSON-RPC のツールサーバーを起動します",
	Annotations: map[string]string{requiresAPIKey: "true"},
	RunE:        runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "/metrics を公開するアドレス (例: 127.0.0.1:9090)。空なら公開しません")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Hour, "キャッシュと一時ファイルを整理する間隔。0 で無効")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := builder.BuildApp(ctx, cfg, nil)
	if err != nil {
		return err
	}

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		go func() {
			slog.InfoContext(ctx, "メトリクスを公開します", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "メトリクスサーバーが停止しました", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		builder.RunSweeper(sweepCtx, app.Store, sweepInterval, cfg.TempMaxAge, app.Metrics)
	}()
	defer func() {
		cancelSweep()
		wg.Wait()
	}()

	err = app.Server.Serve(ctx, os.Stdin, os.Stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
