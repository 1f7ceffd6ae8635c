package status

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

const (
	// MCPVersion は応答するプロトコルのバージョンです。
	MCPVersion = "2024-11-05"

	recentPerOperation = 5
	promptPreviewRunes = 100
	timingSampleSize   = 100
)

// Ledger は Aggregator が参照する台帳の問い合わせ窓口です。
type Ledger interface {
	History(ctx context.Context, q store.Query) ([]domain.ImageRecord, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// ServerMeta はサーバー情報として返す固定値です。
type ServerMeta struct {
	Name      string
	Version   string
	StartedAt time.Time
}

// Aggregator はプロバイダ・台帳・ホストの情報を並行に集めて 1 つのスナップショットにします。
type Aggregator struct {
	gateway generator.Gateway
	ledger  Ledger
	host    HostProbe
	meta    ServerMeta
	now     func() time.Time
}

// NewAggregator は依存関係を注入して Aggregator を初期化します。host が nil の場合は GopsutilProbe を使います。
func NewAggregator(gateway generator.Gateway, ledger Ledger, host HostProbe, meta ServerMeta) (*Aggregator, error) {
	if gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger is required")
	}
	if host == nil {
		host = GopsutilProbe{}
	}
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}
	return &Aggregator{gateway: gateway, ledger: ledger, host: host, meta: meta, now: time.Now}, nil
}

// Options は Collect の動作指定です。
type Options struct {
	Detailed       bool
	IncludeHistory bool
	ResetStats     bool
}

// Collect は各コレクタを並行に実行します。1 つのコレクタの失敗は {"error": ...} としてその欄に入り、
// 他の欄や呼び出し全体を失敗させません。
func (a *Aggregator) Collect(ctx context.Context, opts Options) *Snapshot {
	start := a.now()
	if opts.ResetStats {
		a.gateway.ResetStats()
		slog.InfoContext(ctx, "統計をリセットしました")
	}

	var (
		api     *APIStatus
		server  *ServerInfo
		perf    *PerformanceStats
		storage *StorageStats
		system  *SystemInfo
		history map[string][]HistoryItem
		errs    = make([]error, 6)
	)

	var g errgroup.Group
	run := func(slot int, name string, fn func() error) {
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[slot] = fmt.Errorf("panic: %v", r)
				}
			}()
			if err := fn(); err != nil {
				slog.WarnContext(ctx, "ステータス情報の収集に失敗しました", "collector", name, "error", err)
				errs[slot] = err
			}
			return nil
		})
	}

	run(0, "api_status", func() error { api = a.collectAPI(ctx); return nil })
	run(1, "server_info", func() error { server = a.collectServer(); return nil })
	run(2, "performance_stats", func() (err error) { perf, err = a.collectPerformance(ctx, opts.Detailed); return err })
	run(3, "storage_stats", func() (err error) { storage, err = a.collectStorage(ctx); return err })
	run(4, "system_info", func() error { system = a.collectSystem(ctx, opts.Detailed); return nil })
	if opts.IncludeHistory {
		run(5, "recent_history", func() (err error) { history, err = a.collectHistory(ctx); return err })
	}
	_ = g.Wait()

	apiHealthy := errs[0] == nil && api != nil && api.Accessible
	storageOK, memoryOK := true, true
	if errs[3] == nil && storage != nil && storage.DiskUsage != nil {
		storageOK = storage.DiskUsage.UsedPercent <= DiskUsedPercentLimit
	}
	if errs[4] == nil && system != nil && system.Memory != nil {
		memoryOK = system.Memory.UsedPercent <= MemoryUsedPercentLimit
	}
	verdict := OverallStatus(apiHealthy, storageOK, memoryOK)

	snap := &Snapshot{
		Timestamp:        a.now(),
		OverallStatus:    verdict,
		APIStatus:        section(api, errs[0]),
		ServerInfo:       section(server, errs[1]),
		PerformanceStats: section(perf, errs[2]),
		StorageStats:     section(storage, errs[3]),
		SystemInfo:       section(system, errs[4]),
		StatsReset:       opts.ResetStats,
		apiAccessible:    apiHealthy,
		uptime:           a.now().Sub(a.meta.StartedAt),
		meta:             a.meta,
	}
	if opts.IncludeHistory {
		snap.RecentHistory = section(history, errs[5])
	}
	snap.CollectionSeconds = round(a.now().Sub(start).Seconds(), 3)

	slog.InfoContext(ctx, "ステータスの収集が完了しました", "overall_status", verdict, "elapsed_s", snap.CollectionSeconds)
	return snap
}

// section は収集結果かエラー記述子のどちらかを返します。
func section[T any](v T, err error) any {
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return v
}

func (a *Aggregator) collectAPI(ctx context.Context) *APIStatus {
	h := a.gateway.HealthCheck(ctx)
	st := a.gateway.Stats()
	status := "ok"
	if !h.Accessible {
		status = "error"
	}
	return &APIStatus{
		Accessible: h.Accessible,
		Model:      h.Model,
		Status:     status,
		LatencyMS:  h.LatencyMS,
		LastCheck:  h.CheckedAt,
		Statistics: st,
		Error:      h.Error,
	}
}

func (a *Aggregator) collectServer() *ServerInfo {
	uptime := a.now().Sub(a.meta.StartedAt)
	return &ServerInfo{
		Name:          a.meta.Name,
		Version:       a.meta.Version,
		MCPVersion:    MCPVersion,
		UptimeSeconds: round(uptime.Seconds(), 1),
		UptimeHuman:   FormatUptime(uptime),
		StartedAt:     a.meta.StartedAt,
		Model:         a.gateway.Model(),
	}
}

func (a *Aggregator) collectPerformance(ctx context.Context, detailed bool) (*PerformanceStats, error) {
	recs, err := a.ledger.History(ctx, store.Query{})
	if err != nil {
		return nil, err
	}
	ps := &PerformanceStats{
		Breakdown:        make(map[string]int, len(domain.OperationTypes)*2),
		CostPerOperation: domain.CostPerImageUSD,
	}
	for _, op := range domain.OperationTypes {
		ps.Breakdown[string(op)] = 0
	}
	for _, r := range recs {
		ps.Breakdown[string(r.OperationType)]++
	}
	ps.TotalOperations = len(recs)
	ps.TotalCostUSD = round(float64(ps.TotalOperations)*domain.CostPerImageUSD, 4)

	if !detailed {
		return ps, nil
	}

	cutoff := a.now().Add(-24 * time.Hour)
	recent := 0
	for _, op := range domain.OperationTypes {
		ps.Breakdown["recent_"+string(op)+"_24h"] = 0
	}
	for _, r := range recs {
		if r.CreatedAt.After(cutoff) {
			recent++
			ps.Breakdown["recent_"+string(r.OperationType)+"_24h"]++
		}
	}
	ps.RecentOperations24h = &recent
	cost := round(float64(recent)*domain.CostPerImageUSD, 4)
	ps.RecentCost24h = &cost

	var times []float64
	for i, r := range recs {
		if i >= timingSampleSize {
			break
		}
		if r.GenerationTimeSeconds > 0 {
			times = append(times, r.GenerationTimeSeconds)
		}
	}
	if len(times) > 0 {
		ps.Timing = timingOf(times)
	}
	session := a.gateway.Stats()
	ps.Session = &session
	return ps, nil
}

func timingOf(times []float64) *Timing {
	t := &Timing{Min: times[0], Max: times[0]}
	var sum float64
	for _, v := range times {
		sum += v
		if v < t.Min {
			t.Min = v
		}
		if v > t.Max {
			t.Max = v
		}
	}
	t.Average = round(sum/float64(len(times)), 2)
	t.Min = round(t.Min, 2)
	t.Max = round(t.Max, 2)
	return t
}

func (a *Aggregator) collectStorage(ctx context.Context) (*StorageStats, error) {
	st, err := a.ledger.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := &StorageStats{Stats: st}
	disk, err := a.host.Disk(ctx, st.OutputDirectory)
	if err != nil {
		out.DiskError = err.Error()
	} else {
		out.DiskUsage = &disk
	}
	return out, nil
}

// collectSystem はホスト情報を集めます。取得できない項目はエラー文字列を残して省略します。
func (a *Aggregator) collectSystem(ctx context.Context, detailed bool) *SystemInfo {
	info := &SystemInfo{
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
	}
	// メモリは判定に使うため詳細指定に関係なく取得します。
	if m, err := a.host.Memory(ctx); err == nil {
		info.Memory = &m
	} else {
		info.DetailError = appendErr(info.DetailError, "memory", err)
	}
	if !detailed {
		return info
	}
	if c, err := a.host.CPU(ctx); err == nil {
		info.CPU = &c
	} else {
		info.DetailError = appendErr(info.DetailError, "cpu", err)
	}
	if p, err := a.host.Process(ctx); err == nil {
		info.Process = &p
	} else {
		info.DetailError = appendErr(info.DetailError, "process", err)
	}
	return info
}

func appendErr(prev, what string, err error) string {
	msg := what + ": " + err.Error()
	if prev == "" {
		return msg
	}
	return prev + "; " + msg
}

func (a *Aggregator) collectHistory(ctx context.Context) (map[string][]HistoryItem, error) {
	out := make(map[string][]HistoryItem, len(domain.OperationTypes))
	for _, op := range domain.OperationTypes {
		recs, err := a.ledger.History(ctx, store.Query{OperationType: op, Limit: recentPerOperation})
		if err != nil {
			return nil, err
		}
		items := make([]HistoryItem, 0, len(recs))
		for _, r := range recs {
			items = append(items, HistoryItem{
				Filename:              r.Filename,
				CreatedAt:             r.CreatedAt,
				Prompt:                truncateRunes(r.OriginalPrompt, promptPreviewRunes),
				FileSizeBytes:         r.FileSizeBytes,
				GenerationTimeSeconds: r.GenerationTimeSeconds,
			})
		}
		out["recent_"+string(op)] = items
	}
	return out, nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
