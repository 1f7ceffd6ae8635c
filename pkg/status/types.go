package status

import (
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// Snapshot は 1 回分のステータス収集結果です。各欄は収集結果か {"error": ...} のどちらかです。
type Snapshot struct {
	Timestamp         time.Time `json:"timestamp"`
	OverallStatus     Verdict   `json:"overallStatus"`
	APIStatus         any       `json:"apiStatus"`
	ServerInfo        any       `json:"serverInfo"`
	PerformanceStats  any       `json:"performanceStats"`
	StorageStats      any       `json:"storageStats"`
	SystemInfo        any       `json:"systemInfo"`
	RecentHistory     any       `json:"recentHistory,omitempty"`
	CollectionSeconds float64   `json:"collectionTimeSeconds"`
	StatsReset        bool      `json:"statsReset"`

	apiAccessible bool
	uptime        time.Duration
	meta          ServerMeta
}

// Summary は detailed=false のときに返す簡略版です。
type Summary struct {
	ServerName    string    `json:"serverName"`
	Version       string    `json:"version"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	UptimeHuman   string    `json:"uptimeHuman"`
	APIAccessible bool      `json:"apiAccessible"`
	OverallStatus Verdict   `json:"overallStatus"`
	Timestamp     time.Time `json:"timestamp"`
}

// APIAccessible はプロバイダに疎通できたかどうかです。
func (s *Snapshot) APIAccessible() bool { return s.apiAccessible }

// Summary は簡略版を返します。
func (s *Snapshot) Summary() Summary {
	return Summary{
		ServerName:    s.meta.Name,
		Version:       s.meta.Version,
		UptimeSeconds: round(s.uptime.Seconds(), 1),
		UptimeHuman:   FormatUptime(s.uptime),
		APIAccessible: s.apiAccessible,
		OverallStatus: s.OverallStatus,
		Timestamp:     s.Timestamp,
	}
}

// APIStatus はプロバイダの疎通状況とセッション統計です。
type APIStatus struct {
	Accessible bool            `json:"accessible"`
	Model      string          `json:"model"`
	Status     string          `json:"status"`
	LatencyMS  int64           `json:"latencyMs"`
	LastCheck  time.Time       `json:"lastCheck"`
	Statistics generator.Stats `json:"statistics"`
	Error      string          `json:"error,omitempty"`
}

// ServerInfo はサーバー自身の情報です。
type ServerInfo struct {
	Name          string    `json:"name"`
	Version       string    `json:"version"`
	MCPVersion    string    `json:"mcpVersion"`
	Model         string    `json:"model"`
	UptimeSeconds float64   `json:"uptimeSeconds"`
	UptimeHuman   string    `json:"uptimeHuman"`
	StartedAt     time.Time `json:"startedAt"`
}

// PerformanceStats は台帳から導いた件数と推定コストです。
type PerformanceStats struct {
	TotalOperations     int              `json:"totalOperations"`
	Breakdown           map[string]int   `json:"operationsBreakdown"`
	TotalCostUSD        float64          `json:"totalCostUsd"`
	CostPerOperation    float64          `json:"costPerOperation"`
	RecentOperations24h *int             `json:"recentOperations24h,omitempty"`
	RecentCost24h       *float64         `json:"recentCost24h,omitempty"`
	Timing              *Timing          `json:"processingTime,omitempty"`
	Session             *generator.Stats `json:"session,omitempty"`
}

// Timing は生成時間（秒）の集計です。
type Timing struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// StorageStats は台帳の統計とディスク使用量です。
type StorageStats struct {
	store.Stats
	DiskUsage *DiskInfo `json:"diskUsage,omitempty"`
	DiskError string    `json:"diskError,omitempty"`
}

// SystemInfo はホストとランタイムの情報です。
type SystemInfo struct {
	Platform    string       `json:"platform"`
	Arch        string       `json:"arch"`
	GoVersion   string       `json:"goVersion"`
	Goroutines  int          `json:"goroutines"`
	Memory      *MemoryInfo  `json:"memory,omitempty"`
	CPU         *CPUInfo     `json:"cpu,omitempty"`
	Process     *ProcessInfo `json:"process,omitempty"`
	DetailError string       `json:"detailedInfoError,omitempty"`
}

// HistoryItem は直近履歴の 1 件です。
type HistoryItem struct {
	Filename              string    `json:"filename"`
	CreatedAt             time.Time `json:"createdAt"`
	Prompt                string    `json:"prompt"`
	FileSizeBytes         int64     `json:"fileSizeBytes"`
	GenerationTimeSeconds float64   `json:"generationTimeSeconds"`
}
