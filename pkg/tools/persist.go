package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/imgutil"
	"github.com/shouni/nanobanana-mcp/pkg/reconciler"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// persistInput はプロバイダ結果を保存するための共通情報です。
type persistInput struct {
	op              domain.OperationType
	requested       domain.OutputFormat
	originalPrompt  string
	optimizedPrompt string
	requestID       string
	sourceImages    []string
	maskPath        string
	limit           int
}

// persist は各ペイロードの形式を確定して保存します。1 枚も保存できなければ失敗です。
func (s *Service) persist(ctx context.Context, log *slog.Logger, res *generator.Result, in persistInput) ([]domain.ImageRecord, []string, error) {
	results, failures := reconciler.ReconcileAll(ctx, res.Payloads, in.requested)
	var warnings []string
	for _, f := range failures {
		log.WarnContext(ctx, "候補のデコードに失敗しました", "index", f.Index, "error", f.Err)
		warnings = append(warnings, fmt.Sprintf("candidate %d could not be decoded: %v", f.Index, f.Err))
	}
	if len(results) == 0 {
		if len(failures) > 0 {
			return nil, nil, domain.WrapError(domain.CodeDataFormat, failures[0].Err, "could not decode any image returned by the provider")
		}
		return nil, nil, domain.NewError(domain.CodeNoResult, "provider returned no images")
	}
	if in.limit > 0 && len(results) > in.limit {
		results = results[:in.limit]
	}

	var records []domain.ImageRecord
	var lastErr error
	for _, r := range results {
		rec := domain.ImageRecord{
			OperationType:         in.op,
			RequestedFormat:       r.RequestedFormat,
			OriginalPrompt:        in.originalPrompt,
			OptimizedPrompt:       in.optimizedPrompt,
			ModelIdentifier:       res.Model,
			GenerationTimeSeconds: res.Elapsed.Seconds(),
			CostUSD:               domain.CostPerImageUSD,
			IntegrityWarning:      r.IntegrityWarning,
			RequestID:             in.requestID,
			SourceImages:          in.sourceImages,
			MaskPath:              in.maskPath,
		}
		if size, _, err := imgutil.DimensionsOf(r.Data); err == nil {
			rec.Width, rec.Height = size.Width, size.Height
		}
		if r.IntegrityWarning != "" {
			warnings = append(warnings, r.IntegrityWarning)
		}

		saved, err := s.store.Save(ctx, store.SaveInput{Data: r.Data, Format: r.Format, Record: rec})
		if err != nil {
			log.ErrorContext(ctx, "画像の保存に失敗しました", "error", err)
			lastErr = err
			continue
		}
		s.metrics.ObserveSaved(string(in.op), saved.Format, saved.CostUSD)
		records = append(records, saved)
	}

	if len(records) == 0 {
		return nil, nil, lastErr
	}
	if len(records) < len(results) {
		warnings = append(warnings, "some images could not be saved")
	}
	return records, warnings, nil
}
