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

// BlendResponse は blend の成功時エンベロープです。
type BlendResponse struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	SourceImages    []string           `json:"sourceImages"`
	BlendedImage    domain.ImageRecord `json:"blendedImage"`
	BlendPrompt     string             `json:"blendPrompt"`
	OptimizedPrompt string             `json:"optimizedPrompt"`
	ProcessingTime  float64            `json:"processingTime"`
	Warnings        []string           `json:"warnings,omitempty"`
	RequestID       string             `json:"requestId"`
}

// Blend は 2〜4 枚の画像を 1 枚に合成します。入力が 1 枚でも読めなければ全体を失敗させます。
func (s *Service) Blend(ctx context.Context, args map[string]any) any {
	return s.invoke(ctx, "nanobanana_blend", func(ctx context.Context, log *slog.Logger, requestID string) (any, error) {
		start := time.Now()
		category := prompt.CategoryFor(domain.OperationBlended)
		req, err := s.normalizer.Blend(ctx, args)
		if err != nil {
			return nil, err
		}

		opts := prompt.Options{Category: category, Quality: req.Quality}
		if req.MaintainConsistency {
			opts.AdditionalKeywords = prompt.ConsistencyKeywords
		}
		optimized, err := s.optimize(ctx, req.BlendPrompt, req.OptimizePrompt, opts)
		if err != nil {
			return nil, err
		}

		images := make([]generator.SourceImage, 0, len(req.ImagePaths))
		for i, p := range req.ImagePaths {
			img, err := s.loader.Load(ctx, p, fmt.Sprintf("Image %d", i+1))
			if err != nil {
				return nil, domain.WrapError(domain.CodeImageLoad, err, "imagePaths[%d]: failed to load %s", i, p)
			}
			images = append(images, img)
		}

		res, err := s.callProvider(ctx, generator.Request{
			Operation:      domain.OperationBlended,
			Prompt:         optimized,
			NegativePrompt: negativeFor(req.NegativePrompt, category),
			Images:         images,
			CandidateCount: 1,
		})
		if err != nil {
			return nil, err
		}

		records, warnings, err := s.persist(ctx, log, res, persistInput{
			op:              domain.OperationBlended,
			requested:       req.OutputFormat,
			originalPrompt:  req.BlendPrompt,
			optimizedPrompt: optimized,
			requestID:       requestID,
			sourceImages:    req.ImagePaths,
			limit:           1,
		})
		if err != nil {
			return nil, err
		}

		log.InfoContext(ctx, "画像合成が完了しました", "sources", len(req.ImagePaths), "path", records[0].Filepath)
		return &BlendResponse{
			Success:         true,
			Message:         fmt.Sprintf("Blended %d images", len(req.ImagePaths)),
			SourceImages:    req.ImagePaths,
			BlendedImage:    records[0],
			BlendPrompt:     req.BlendPrompt,
			OptimizedPrompt: optimized,
			ProcessingTime:  round3(time.Since(start).Seconds()),
			Warnings:        warnings,
			RequestID:       requestID,
		}, nil
	})
}
