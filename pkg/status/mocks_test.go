package status

import (
	"context"
	"errors"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// --- Mocks ---

type stubGateway struct {
	health generator.Health
	stats  generator.Stats
	resets int
}

func (s *stubGateway) Generate(ctx context.Context, req generator.Request) (*generator.Result, error) {
	return nil, errors.New("not used")
}
func (s *stubGateway) HealthCheck(ctx context.Context) generator.Health { return s.health }
func (s *stubGateway) Stats() generator.Stats                           { return s.stats }
func (s *stubGateway) ResetStats()                                      { s.resets++ }
func (s *stubGateway) Model() string                                    { return "stub-model" }

type stubLedger struct {
	records  []domain.ImageRecord
	err      error
	statsErr error
	panics   bool
}

func (s *stubLedger) History(ctx context.Context, q store.Query) ([]domain.ImageRecord, error) {
	if s.panics {
		panic("ledger exploded")
	}
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.ImageRecord
	for _, r := range s.records {
		if q.OperationType != "" && r.OperationType != q.OperationType {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *stubLedger) Stats(ctx context.Context) (store.Stats, error) {
	if s.statsErr != nil {
		return store.Stats{}, s.statsErr
	}
	return store.Stats{OutputDirectory: "/tmp/out", TotalImages: len(s.records)}, nil
}

type stubHost struct {
	memPercent  float64
	diskPercent float64
	memErr      error
	diskErr     error
}

func (s stubHost) Memory(ctx context.Context) (MemoryInfo, error) {
	return MemoryInfo{UsedPercent: s.memPercent}, s.memErr
}
func (s stubHost) CPU(ctx context.Context) (CPUInfo, error) {
	return CPUInfo{Cores: 2, Threads: 4}, nil
}
func (s stubHost) Process(ctx context.Context) (ProcessInfo, error) {
	return ProcessInfo{PID: 1, CreatedAt: time.Now()}, nil
}
func (s stubHost) Disk(ctx context.Context, path string) (DiskInfo, error) {
	return DiskInfo{UsedPercent: s.diskPercent}, s.diskErr
}
