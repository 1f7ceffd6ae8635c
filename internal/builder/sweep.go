package builder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/nanobanana-mcp/internal/metrics"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// Sweep はキャッシュの保持ポリシーを適用し、maxAge より古い一時ファイルを削除します。
func Sweep(ctx context.Context, st *store.Store, tempMaxAge time.Duration, m *metrics.Collector) (store.CacheReport, int, error) {
	report, err := st.ManageCache(ctx)
	if err != nil {
		return report, 0, fmt.Errorf("キャッシュの整理に失敗しました: %w", err)
	}
	m.AddCacheDeleted(report.DeletedFiles)

	removed, err := st.CleanupTemp(ctx, tempMaxAge)
	if err != nil {
		return report, 0, fmt.Errorf("一時ファイルの削除に失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "クリーンアップが完了しました",
		"cache_status", report.Status, "cache_deleted", report.DeletedFiles,
		"freed_mb", report.FreedSpaceMB, "temp_deleted", removed)
	return report, removed, nil
}

// RunSweeper は ctx が終わるまで interval ごとに Sweep を実行します。interval が 0 以下なら何もしません。
func RunSweeper(ctx context.Context, st *store.Store, interval, tempMaxAge time.Duration, m *metrics.Collector) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, _, err := Sweep(ctx, st, tempMaxAge, m); err != nil {
				slog.WarnContext(ctx, "定期クリーンアップに失敗しました", "error", err)
			}
		}
	}
}
