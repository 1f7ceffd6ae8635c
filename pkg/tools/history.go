package tools

import (
	"context"
	"log/slog"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// HistoryResponse は history のエンベロープです。Query を指定した場合は Similarity が埋まります。
type HistoryResponse struct {
	Success   bool           `json:"success"`
	Count     int            `json:"count"`
	Images    []HistoryEntry `json:"images"`
	Query     string         `json:"query,omitempty"`
	RequestID string         `json:"requestId"`
}

// HistoryEntry は履歴の 1 件です。
type HistoryEntry struct {
	domain.ImageRecord
	Similarity *float64 `json:"similarity,omitempty"`
}

// History は保存済み画像の履歴を新しい順に返します。query があればプロンプトの類似度で検索します。
func (s *Service) History(ctx context.Context, args map[string]any) any {
	return s.invoke(ctx, "nanobanana_history", func(ctx context.Context, log *slog.Logger, requestID string) (any, error) {
		req, err := s.normalizer.History(ctx, args)
		if err != nil {
			return nil, err
		}

		var entries []HistoryEntry
		if req.Query != "" {
			matches, err := s.store.FindByPromptSimilarity(ctx, req.Query, req.Threshold)
			if err != nil {
				return nil, err
			}
			for _, m := range matches {
				if req.OperationType != "" && m.Record.OperationType != req.OperationType {
					continue
				}
				sim := m.Similarity
				entries = append(entries, HistoryEntry{ImageRecord: m.Record, Similarity: &sim})
				if len(entries) == req.Limit {
					break
				}
			}
		} else {
			records, err := s.store.History(ctx, store.Query{OperationType: req.OperationType, Limit: req.Limit})
			if err != nil {
				return nil, err
			}
			for _, r := range records {
				entries = append(entries, HistoryEntry{ImageRecord: r})
			}
		}
		if entries == nil {
			entries = []HistoryEntry{}
		}
		log.DebugContext(ctx, "履歴を返します", "count", len(entries))
		return &HistoryResponse{Success: true, Count: len(entries), Images: entries, Query: req.Query, RequestID: requestID}, nil
	})
}
