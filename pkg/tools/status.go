package tools

import (
	"context"
	"log/slog"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/status"
)

// StatusResponse は detailed=true のときのエンベロープです。
type StatusResponse struct {
	Success           bool           `json:"success"`
	ServerName        string         `json:"serverName"`
	Version           string         `json:"version"`
	Uptime            string         `json:"uptime"`
	OverallStatus     status.Verdict `json:"overallStatus"`
	APIStatus         any            `json:"apiStatus"`
	ServerInfo        any            `json:"serverInfo"`
	StorageStats      any            `json:"storageStats"`
	PerformanceStats  any            `json:"performanceStats"`
	SystemInfo        any            `json:"systemInfo"`
	RecentHistory     any            `json:"recentHistory,omitempty"`
	StatsReset        bool           `json:"statsReset"`
	CollectionSeconds float64        `json:"collectionTimeSeconds"`
	Timestamp         time.Time      `json:"timestamp"`
	RequestID         string         `json:"requestId"`
}

// StatusSummaryResponse は detailed=false のときのエンベロープです。
type StatusSummaryResponse struct {
	Success bool `json:"success"`
	status.Summary
	RequestID string `json:"requestId"`
}

// Status はサーバーとプロバイダの状態を返します。引数が正しい限り、プロバイダに到達できなくても成功として返します。
func (s *Service) Status(ctx context.Context, args map[string]any) any {
	return s.invoke(ctx, "nanobanana_status", func(ctx context.Context, log *slog.Logger, requestID string) (any, error) {
		req, err := s.normalizer.Status(ctx, args)
		if err != nil {
			return nil, err
		}
		snap := s.status.Collect(ctx, status.Options{
			Detailed:       req.Detailed,
			IncludeHistory: req.IncludeHistory,
			ResetStats:     req.ResetStats,
		})
		log.InfoContext(ctx, "ステータスを収集しました", "overall", snap.OverallStatus, "api_accessible", snap.APIAccessible())
		if !req.Detailed {
			return &StatusSummaryResponse{Success: true, Summary: snap.Summary(), RequestID: requestID}, nil
		}
		sum := snap.Summary()
		return &StatusResponse{
			Success:           true,
			ServerName:        sum.ServerName,
			Version:           sum.Version,
			Uptime:            sum.UptimeHuman,
			OverallStatus:     snap.OverallStatus,
			APIStatus:         snap.APIStatus,
			ServerInfo:        snap.ServerInfo,
			StorageStats:      snap.StorageStats,
			PerformanceStats:  snap.PerformanceStats,
			SystemInfo:        snap.SystemInfo,
			RecentHistory:     snap.RecentHistory,
			StatsReset:        snap.StatsReset,
			CollectionSeconds: snap.CollectionSeconds,
			Timestamp:         snap.Timestamp,
			RequestID:         requestID,
		}, nil
	})
}
