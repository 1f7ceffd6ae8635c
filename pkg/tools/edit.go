package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/imgutil"
	"github.com/shouni/nanobanana-mcp/pkg/prompt"
)

// EditResponse は edit の成功時エンベロープです。
type EditResponse struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	OriginalImage   string             `json:"originalImage"`
	EditedImage     domain.ImageRecord `json:"editedImage"`
	EditPrompt      string             `json:"editPrompt"`
	OptimizedPrompt string             `json:"optimizedPrompt"`
	ProcessingTime  float64            `json:"processingTime"`
	MaskPath        string             `json:"maskPath,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
	RequestID       string             `json:"requestId"`
}

// Edit は既存の画像を指示に従って編集します。
func (s *Service) Edit(ctx context.Context, args map[string]any) any {
	return s.invoke(ctx, "nanobanana_edit", func(ctx context.Context, log *slog.Logger, requestID string) (any, error) {
		start := time.Now()
		category := prompt.CategoryFor(domain.OperationEdited)
		req, err := s.normalizer.Edit(ctx, args)
		if err != nil {
			return nil, err
		}

		optimized, err := s.optimize(ctx, req.EditPrompt, req.OptimizePrompt, prompt.Options{
			Category: category,
			Quality:  req.Quality,
		})
		if err != nil {
			return nil, err
		}

		source, err := s.loader.Load(ctx, req.ImagePath, "")
		if err != nil {
			return nil, err
		}
		images := []generator.SourceImage{source}

		var warnings []string
		if req.MaskPath != "" {
			mask, err := s.loader.Load(ctx, req.MaskPath, "Mask")
			if err != nil {
				return nil, err
			}
			images = append(images, mask)
			if w := maskMismatch(req.ImagePath, req.MaskPath); w != "" {
				log.WarnContext(ctx, "マスクと元画像の寸法が一致しません", "detail", w)
				warnings = append(warnings, w)
			}
		}

		res, err := s.callProvider(ctx, generator.Request{
			Operation:      domain.OperationEdited,
			Prompt:         optimized,
			NegativePrompt: negativeFor(req.NegativePrompt, category),
			Images:         images,
			CandidateCount: 1,
		})
		if err != nil {
			return nil, err
		}

		records, w, err := s.persist(ctx, log, res, persistInput{
			op:              domain.OperationEdited,
			requested:       req.OutputFormat,
			originalPrompt:  req.EditPrompt,
			optimizedPrompt: optimized,
			requestID:       requestID,
			sourceImages:    []string{req.ImagePath},
			maskPath:        req.MaskPath,
			limit:           1,
		})
		if err != nil {
			return nil, err
		}

		resp := &EditResponse{
			Success:         true,
			Message:         fmt.Sprintf("Edited %s", req.ImagePath),
			OriginalImage:   req.ImagePath,
			EditedImage:     records[0],
			EditPrompt:      req.EditPrompt,
			OptimizedPrompt: optimized,
			ProcessingTime:  round3(time.Since(start).Seconds()),
			MaskPath:        req.MaskPath,
			Warnings:        append(warnings, w...),
			RequestID:       requestID,
		}
		log.InfoContext(ctx, "画像編集が完了しました", "path", records[0].Filepath)
		return resp, nil
	})
}

// maskMismatch はマスクと元画像の寸法が違えば説明を返します。寸法が読めない場合は空です。
func maskMismatch(imagePath, maskPath string) string {
	img, _, err := imgutil.DimensionsOfFile(imagePath)
	if err != nil {
		return ""
	}
	mask, _, err := imgutil.DimensionsOfFile(maskPath)
	if err != nil {
		return ""
	}
	if img == mask {
		return ""
	}
	return fmt.Sprintf("mask size %dx%d differs from image size %dx%d", mask.Width, mask.Height, img.Width, img.Height)
}
