package status

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestAggregator(t *testing.T, gw *stubGateway, ledger *stubLedger, host HostProbe) *Aggregator {
	t.Helper()
	a, err := NewAggregator(gw, ledger, host, ServerMeta{Name: "nanobanana-mcp", Version: "test", StartedAt: time.Now().Add(-90 * time.Minute)})
	require.NoError(t, err)
	return a
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		api, storage, memory bool
		want                 Verdict
	}{
		{true, true, true, Healthy},
		{true, false, true, Degraded},
		{true, true, false, Degraded},
		{true, false, false, Degraded},
		{false, true, true, Unhealthy},
		{false, false, false, Unhealthy},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OverallStatus(tt.api, tt.storage, tt.memory))
	}
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "< 1m", FormatUptime(30*time.Second))
	assert.Equal(t, "5m", FormatUptime(5*time.Minute))
	assert.Equal(t, "1d 2h 3m", FormatUptime(26*time.Hour+3*time.Minute))
	assert.Equal(t, "2d", FormatUptime(48*time.Hour))
}

func TestNewAggregator(t *testing.T) {
	_, err := NewAggregator(nil, &stubLedger{}, nil, ServerMeta{})
	assert.Error(t, err)
	_, err = NewAggregator(&stubGateway{}, nil, nil, ServerMeta{})
	assert.Error(t, err)
}

func TestAggregator_Collect(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	records := []domain.ImageRecord{
		{Filename: "a.png", OperationType: domain.OperationGenerated, CreatedAt: now, OriginalPrompt: strings.Repeat("x", 150), GenerationTimeSeconds: 2},
		{Filename: "b.png", OperationType: domain.OperationEdited, CreatedAt: now.Add(-48 * time.Hour), GenerationTimeSeconds: 4},
	}

	t.Run("すべて正常なら healthy", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true, Model: "stub-model"}}
		a := newTestAggregator(t, gw, &stubLedger{records: records}, stubHost{memPercent: 40, diskPercent: 50})

		snap := a.Collect(ctx, Options{Detailed: true, IncludeHistory: true})
		assert.Equal(t, Healthy, snap.OverallStatus)
		assert.True(t, snap.APIAccessible())

		perf, ok := snap.PerformanceStats.(*PerformanceStats)
		require.True(t, ok)
		assert.Equal(t, 2, perf.TotalOperations)
		assert.InDelta(t, 2*domain.CostPerImageUSD, perf.TotalCostUSD, 1e-9)
		assert.Equal(t, 1, perf.Breakdown["generated"])
		assert.Equal(t, 0, perf.Breakdown["blended"])
		require.NotNil(t, perf.RecentOperations24h)
		assert.Equal(t, 1, *perf.RecentOperations24h)
		require.NotNil(t, perf.Timing)
		assert.Equal(t, 3.0, perf.Timing.Average)

		hist, ok := snap.RecentHistory.(map[string][]HistoryItem)
		require.True(t, ok)
		require.Len(t, hist["recent_generated"], 1)
		assert.Len(t, hist["recent_generated"][0].Prompt, 100)

		server, ok := snap.ServerInfo.(*ServerInfo)
		require.True(t, ok)
		assert.Equal(t, "1h 30m", server.UptimeHuman)
	})

	t.Run("プロバイダに接続できなければ unhealthy だが収集自体は成功する", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: false, Error: "connection refused"}}
		a := newTestAggregator(t, gw, &stubLedger{records: records}, stubHost{memPercent: 40, diskPercent: 50})

		snap := a.Collect(ctx, Options{Detailed: true})
		assert.Equal(t, Unhealthy, snap.OverallStatus)
		api, ok := snap.APIStatus.(*APIStatus)
		require.True(t, ok)
		assert.False(t, api.Accessible)
		assert.Equal(t, "connection refused", api.Error)
		assert.Nil(t, snap.RecentHistory)
	})

	t.Run("ディスクまたはメモリの逼迫は degraded", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		a := newTestAggregator(t, gw, &stubLedger{}, stubHost{memPercent: 40, diskPercent: 95})
		assert.Equal(t, Degraded, a.Collect(ctx, Options{Detailed: true}).OverallStatus)

		a = newTestAggregator(t, gw, &stubLedger{}, stubHost{memPercent: 90, diskPercent: 10})
		assert.Equal(t, Degraded, a.Collect(ctx, Options{Detailed: false}).OverallStatus)
	})

	t.Run("ホスト情報が取れなくても判定は api だけで決まる", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		host := stubHost{memErr: errors.New("unsupported"), diskErr: errors.New("unsupported")}
		a := newTestAggregator(t, gw, &stubLedger{}, host)

		snap := a.Collect(ctx, Options{Detailed: true})
		assert.Equal(t, Healthy, snap.OverallStatus)
		sys, ok := snap.SystemInfo.(*SystemInfo)
		require.True(t, ok)
		assert.Contains(t, sys.DetailError, "memory")
	})

	t.Run("コレクタの失敗はその欄だけのエラー記述子になる", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		a := newTestAggregator(t, gw, &stubLedger{err: errors.New("ledger corrupted"), statsErr: errors.New("stat failed")}, stubHost{})

		snap := a.Collect(ctx, Options{Detailed: true, IncludeHistory: true})
		assert.Equal(t, map[string]string{"error": "ledger corrupted"}, snap.PerformanceStats)
		assert.Equal(t, map[string]string{"error": "stat failed"}, snap.StorageStats)
		assert.Equal(t, map[string]string{"error": "ledger corrupted"}, snap.RecentHistory)
		_, ok := snap.APIStatus.(*APIStatus)
		assert.True(t, ok)
	})

	t.Run("コレクタのパニックも欄に閉じ込める", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		a := newTestAggregator(t, gw, &stubLedger{panics: true}, stubHost{})

		snap := a.Collect(ctx, Options{Detailed: true})
		desc, ok := snap.PerformanceStats.(map[string]string)
		require.True(t, ok)
		assert.Contains(t, desc["error"], "panic")
	})

	t.Run("resetStats でゲートウェイの統計をリセットする", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		a := newTestAggregator(t, gw, &stubLedger{}, stubHost{})
		snap := a.Collect(ctx, Options{ResetStats: true})
		assert.Equal(t, 1, gw.resets)
		assert.True(t, snap.StatsReset)
	})

	t.Run("簡略版", func(t *testing.T) {
		gw := &stubGateway{health: generator.Health{Accessible: true}}
		a := newTestAggregator(t, gw, &stubLedger{}, stubHost{})
		sum := a.Collect(ctx, Options{}).Summary()
		assert.Equal(t, "nanobanana-mcp", sum.ServerName)
		assert.True(t, sum.APIAccessible)
		assert.Equal(t, Healthy, sum.OverallStatus)
		assert.Equal(t, "1h 30m", sum.UptimeHuman)
	})
}
