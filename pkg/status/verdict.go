package status

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Verdict はサーバー全体の健全性です。
type Verdict string

const (
	Healthy   Verdict = "healthy"
	Degraded  Verdict = "degraded"
	Unhealthy Verdict = "unhealthy"
)

// しきい値を超えると degraded になります。
const (
	DiskUsedPercentLimit   = 90.0
	MemoryUsedPercentLimit = 85.0
)

// OverallStatus は 3 つの真偽値だけから判定する純粋関数です。
func OverallStatus(apiHealthy, storageOK, memoryOK bool) Verdict {
	switch {
	case !apiHealthy:
		return Unhealthy
	case storageOK && memoryOK:
		return Healthy
	default:
		return Degraded
	}
}

// FormatUptime は稼働時間を "1d 2h 3m" の形式にします。1 分未満は "< 1m" です。
func FormatUptime(d time.Duration) string {
	total := int64(d / time.Minute)
	days := total / (24 * 60)
	hours := (total / 60) % 24
	minutes := total % 60

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "< 1m"
	}
	return strings.Join(parts, " ")
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
