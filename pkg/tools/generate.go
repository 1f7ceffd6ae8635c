package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/prompt"
)

// GenerateResponse は generate の成功時エンベロープです。
type GenerateResponse struct {
	Success         bool                 `json:"success"`
	Message         string               `json:"message"`
	Images          []domain.ImageRecord `json:"images"`
	OriginalPrompt  string               `json:"originalPrompt"`
	OptimizedPrompt string               `json:"optimizedPrompt"`
	GenerationTime  float64              `json:"generationTime"`
	TotalCost       float64              `json:"totalCost"`
	PromptAnalysis  *prompt.Analysis     `json:"promptAnalysis,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	RequestID       string               `json:"requestId"`
}

// Generate はテキストから画像を生成します。
func (s *Service) Generate(ctx context.Context, args map[string]any) any {
	return s.invoke(ctx, "nanobanana_generate", func(ctx context.Context, log *slog.Logger, requestID string) (any, error) {
		start := time.Now()
		category := prompt.CategoryFor(domain.OperationGenerated)
		req, err := s.normalizer.Generate(ctx, args)
		if err != nil {
			return nil, err
		}

		optimized, err := s.optimize(ctx, req.Prompt, req.OptimizePrompt, prompt.Options{
			Category:           category,
			AspectRatio:        req.AspectRatio,
			Style:              req.Style,
			Quality:            req.Quality,
			AdditionalKeywords: req.AdditionalKeywords,
		})
		if err != nil {
			return nil, err
		}
		log.InfoContext(ctx, "画像生成を開始します", "candidates", req.CandidateCount, "format", req.OutputFormat)

		res, err := s.callProvider(ctx, generator.Request{
			Operation:      domain.OperationGenerated,
			Prompt:         optimized,
			NegativePrompt: negativeFor(req.NegativePrompt, category),
			AspectRatio:    req.AspectRatio,
			CandidateCount: req.CandidateCount,
		})
		if err != nil {
			return nil, err
		}

		records, warnings, err := s.persist(ctx, log, res, persistInput{
			op:              domain.OperationGenerated,
			requested:       req.OutputFormat,
			originalPrompt:  req.Prompt,
			optimizedPrompt: optimized,
			requestID:       requestID,
			limit:           req.CandidateCount,
		})
		if err != nil {
			return nil, err
		}

		resp := &GenerateResponse{
			Success:         true,
			Message:         fmt.Sprintf("Generated %d image(s)", len(records)),
			Images:          records,
			OriginalPrompt:  req.Prompt,
			OptimizedPrompt: optimized,
			GenerationTime:  round3(time.Since(start).Seconds()),
			TotalCost:       round3(float64(len(records)) * domain.CostPerImageUSD),
			Warnings:        warnings,
			RequestID:       requestID,
		}
		if req.OptimizePrompt {
			a := prompt.Analyze(req.Prompt)
			resp.PromptAnalysis = &a
		}
		log.InfoContext(ctx, "画像生成が完了しました", "images", len(records), "elapsed_s", resp.GenerationTime)
		return resp, nil
	})
}

func round3(v float64) float64 {
	return float64(int64(v*1000+0.5)) / 1000
}
