package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shouni/nanobanana-mcp/internal/metrics"
	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/normalizer"
	"github.com/shouni/nanobanana-mcp/pkg/prompt"
	"github.com/shouni/nanobanana-mcp/pkg/status"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// DefaultMaxConcurrent はプロバイダへの同時リクエスト数の既定値です。
const DefaultMaxConcurrent = 3

// ImageStore はツール層が使う保存・問い合わせ窓口です。
type ImageStore interface {
	Save(ctx context.Context, in store.SaveInput) (domain.ImageRecord, error)
	History(ctx context.Context, q store.Query) ([]domain.ImageRecord, error)
	FindByPromptSimilarity(ctx context.Context, query string, threshold float64) ([]store.Match, error)
}

// SourceLoader は解決済みパスを入力画像として読み込みます。
type SourceLoader interface {
	Load(ctx context.Context, path, label string) (generator.SourceImage, error)
}

// StatusCollector はステータスのスナップショットを作ります。
type StatusCollector interface {
	Collect(ctx context.Context, opts status.Options) *status.Snapshot
}

// Deps は Service の依存関係です。
type Deps struct {
	Normalizer    *normalizer.Normalizer
	Optimizer     *prompt.Optimizer
	Gateway       generator.Gateway
	Loader        SourceLoader
	Store         ImageStore
	Status        StatusCollector
	Metrics       *metrics.Collector
	MaxConcurrent int
}

// Service は各ツールの入口です。どの操作もパニックを含めて失敗を統一エンベロープに変換し、
// 呼び出し境界を越えてエラーを漏らしません。
type Service struct {
	normalizer *normalizer.Normalizer
	optimizer  *prompt.Optimizer
	gateway    generator.Gateway
	loader     SourceLoader
	store      ImageStore
	status     StatusCollector
	metrics    *metrics.Collector
	sem        *semaphore.Weighted

	newID func() string
}

// New は依存関係を検証して Service を初期化します。
func New(d Deps) (*Service, error) {
	switch {
	case d.Gateway == nil:
		return nil, fmt.Errorf("gateway is required")
	case d.Loader == nil:
		return nil, fmt.Errorf("loader is required")
	case d.Store == nil:
		return nil, fmt.Errorf("store is required")
	case d.Status == nil:
		return nil, fmt.Errorf("status collector is required")
	}
	if d.Normalizer == nil {
		d.Normalizer = normalizer.New(nil, normalizer.Defaults{})
	}
	if d.Optimizer == nil {
		d.Optimizer = prompt.NewOptimizer(nil, true)
	}
	if d.MaxConcurrent <= 0 {
		d.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Service{
		normalizer: d.Normalizer,
		optimizer:  d.Optimizer,
		gateway:    d.Gateway,
		loader:     d.Loader,
		store:      d.Store,
		status:     d.Status,
		metrics:    d.Metrics,
		sem:        semaphore.NewWeighted(int64(d.MaxConcurrent)),
		newID:      uuid.NewString,
	}, nil
}

// ErrorBody はエンベロープのエラー部分です。
type ErrorBody struct {
	Code    domain.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

// Failure は失敗時のエンベロープです。
type Failure struct {
	Success   bool      `json:"success"`
	Error     ErrorBody `json:"error"`
	RequestID string    `json:"requestId,omitempty"`
}

// Succeeded はエンベロープが成功を表すかどうかを返します。
func Succeeded(v any) bool {
	_, failed := v.(*Failure)
	return v != nil && !failed
}

type handler func(ctx context.Context, log *slog.Logger, requestID string) (any, error)

// invoke は共通の前後処理です。リクエスト ID の採番、パニックの回収、エラーのエンベロープ化を行います。
func (s *Service) invoke(ctx context.Context, tool string, h handler) (out any) {
	requestID := s.newID()
	log := slog.With("tool", tool, "request_id", requestID)

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "ツールの実行中にパニックが発生しました", "panic", r, "stack", string(debug.Stack()))
			s.metrics.ObserveTool(tool, string(domain.CodeInternal))
			out = &Failure{Error: ErrorBody{Code: domain.CodeInternal, Message: "internal error"}, RequestID: requestID}
		}
	}()

	res, err := h(ctx, log, requestID)
	if err != nil {
		f := toFailure(err)
		f.RequestID = requestID
		if f.Error.Code == domain.CodeInternal {
			log.ErrorContext(ctx, "ツールの実行に失敗しました", "error", err)
		} else {
			log.WarnContext(ctx, "ツールの実行に失敗しました", "code", f.Error.Code, "error", f.Error.Message)
		}
		s.metrics.ObserveTool(tool, string(f.Error.Code))
		return f
	}
	s.metrics.ObserveTool(tool, "OK")
	return res
}

// toFailure は任意のエラーをエンベロープにします。ToolError 以外は中身を出さず汎用メッセージにします。
func toFailure(err error) *Failure {
	var te *domain.ToolError
	if errors.As(err, &te) {
		return &Failure{Error: ErrorBody{Code: te.Code, Message: te.Message}}
	}
	return &Failure{Error: ErrorBody{Code: domain.CodeInternal, Message: "internal error"}}
}

// callProvider は同時実行数を制限してプロバイダを呼び出します。上限を超えた呼び出しは待ち行列に入ります。
func (s *Service) callProvider(ctx context.Context, req generator.Request) (*generator.Result, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, domain.WrapError(domain.CodeTimeout, err, "cancelled while waiting for a provider slot")
	}
	defer s.sem.Release(1)
	return s.gateway.Generate(ctx, req)
}

// optimize は安全性検査を必ず行い、optimizePrompt が真ならパイプラインを適用します。
func (s *Service) optimize(ctx context.Context, raw string, enabled bool, opts prompt.Options) (string, error) {
	if err := prompt.CheckSafety(ctx, raw); err != nil {
		return "", err
	}
	if !enabled {
		return raw, nil
	}
	return s.optimizer.Optimize(ctx, raw, opts)
}

func negativeFor(enabled bool, category prompt.Category) string {
	if !enabled {
		return ""
	}
	return prompt.NegativePrompt(category)
}
