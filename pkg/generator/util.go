package generator

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

type classification struct {
	code      domain.ErrorCode
	message   string
	retryable bool
}

// classify はプロバイダのエラーをエラーコードと再試行可否に分類します。
func classify(err error) classification {
	if errors.Is(err, context.DeadlineExceeded) {
		return classification{code: domain.CodeTimeout, message: "provider request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return classification{code: domain.CodeInternal, message: "provider request was cancelled"}
	}

	var te *domain.ToolError
	if errors.As(err, &te) {
		return classification{code: te.Code, message: te.Message}
	}

	if apiErr, ok := asAPIError(err); ok {
		lower := strings.ToLower(apiErr.Message)
		switch {
		case strings.Contains(lower, "quota"):
			return classification{code: domain.CodeQuotaExceeded, message: "provider quota exceeded"}
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
			return classification{code: domain.CodeRateLimited, message: "provider rate limit reached", retryable: true}
		case apiErr.Code >= 500:
			return classification{code: domain.CodeAPI, message: "provider server error", retryable: true}
		case strings.Contains(lower, "safety") || strings.Contains(lower, "blocked"):
			return classification{code: domain.CodeUnsafeContent, message: "request was rejected by the provider content filter"}
		default:
			return classification{code: domain.CodeAPI, message: "provider rejected the request"}
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "quota"):
		return classification{code: domain.CodeQuotaExceeded, message: "provider quota exceeded"}
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		return classification{code: domain.CodeRateLimited, message: "provider rate limit reached", retryable: true}
	case strings.Contains(lower, "timeout") || strings.Contains(lower, "deadline"):
		return classification{code: domain.CodeTimeout, message: "provider request timed out", retryable: true}
	}
	// 接続エラーなど分類できないものは一時的な失敗として扱います。
	return classification{code: domain.CodeAPI, message: "provider request failed", retryable: true}
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// backoff は base * factor^n を返します。上限は 1 分です。
func backoff(base time.Duration, factor float64, n int) time.Duration {
	d := time.Duration(float64(base) * math.Pow(factor, float64(n)))
	if d > time.Minute || d < 0 {
		return time.Minute
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
