package generator

import (
	"fmt"
	"time"

	"github.com/shouni/nanobanana-mcp/internal/metrics"
	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/reconciler"
)

// SafetyLevel はプロバイダのコンテンツフィルタ強度です。
type SafetyLevel string

const (
	SafetyStrict     SafetyLevel = "strict"
	SafetyModerate   SafetyLevel = "moderate"
	SafetyPermissive SafetyLevel = "permissive"
)

// ParseSafetyLevel は文字列を SafetyLevel に変換します。
func ParseSafetyLevel(s string) (SafetyLevel, error) {
	switch l := SafetyLevel(s); l {
	case SafetyStrict, SafetyModerate, SafetyPermissive:
		return l, nil
	case "":
		return SafetyModerate, nil
	}
	return "", fmt.Errorf("unknown safety level %q (strict|moderate|permissive)", s)
}

// SourceImage はプロバイダに渡す入力画像です。
type SourceImage struct {
	Data     []byte
	MimeType string
	// Label はプロンプト内でその画像を指す説明です（例: "Mask"）。空なら付けません。
	Label string
}

// Request は Gateway への 1 回分の生成要求です。
type Request struct {
	Operation      domain.OperationType
	Prompt         string
	NegativePrompt string
	Images         []SourceImage
	AspectRatio    string
	CandidateCount int
}

// Result はプロバイダの応答から取り出したペイロードです。
type Result struct {
	Payloads []reconciler.Payload
	// Texts は画像と一緒に返されたテキストパーツです。
	Texts    []string
	Model    string
	Elapsed  time.Duration
	Attempts int
}

// Health はプロバイダへの疎通確認結果です。
type Health struct {
	Accessible bool      `json:"accessible"`
	Model      string    `json:"model"`
	LatencyMS  int64     `json:"latencyMs"`
	Error      string    `json:"error,omitempty"`
	CheckedAt  time.Time `json:"checkedAt"`
}

// Stats はプロセス起動後のプロバイダ呼び出し統計です。
type Stats struct {
	TotalRequests    int64     `json:"totalRequests"`
	Successful       int64     `json:"successful"`
	Failed           int64     `json:"failed"`
	Retries          int64     `json:"retries"`
	ImagesReturned   int64     `json:"imagesReturned"`
	AverageLatencyMS float64   `json:"averageLatencyMs"`
	LastError        string    `json:"lastError,omitempty"`
	LastRequestAt    time.Time `json:"lastRequestAt,omitempty"`
	Since            time.Time `json:"since"`
}

// Options は GeminiGateway の動作設定です。
type Options struct {
	Model         string
	Timeout       time.Duration
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
	SafetyLevel   SafetyLevel
	// RateInterval はプロバイダ呼び出しの最小間隔です。ゼロなら制限しません。
	RateInterval time.Duration
	RateBurst    int
	Metrics      *metrics.Collector
}

func (o *Options) applyDefaults() {
	if o.Model == "" {
		o.Model = domain.DefaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = 120 * time.Second
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	if o.BackoffFactor < 1 {
		o.BackoffFactor = 2
	}
	if o.SafetyLevel == "" {
		o.SafetyLevel = SafetyModerate
	}
	if o.RateBurst <= 0 {
		o.RateBurst = 1
	}
}
