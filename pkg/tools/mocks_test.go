package tools

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/reconciler"
	"github.com/shouni/nanobanana-mcp/pkg/status"
	"github.com/shouni/nanobanana-mcp/pkg/store"
)

// --- Mocks ---

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), []byte("stub-image-body")...)

type stubGateway struct {
	mu       sync.Mutex
	calls    int
	requests []generator.Request
	result   *generator.Result
	err      error
	panics   bool
	health   generator.Health
	delay    time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (g *stubGateway) Generate(ctx context.Context, req generator.Request) (*generator.Result, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		cur := g.maxInFlight.Load()
		if n <= cur || g.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}
	if g.delay > 0 {
		time.Sleep(g.delay)
	}

	g.mu.Lock()
	g.calls++
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	if g.panics {
		panic("gateway exploded")
	}
	if g.err != nil {
		return nil, g.err
	}
	if g.result != nil {
		return g.result, nil
	}
	return &generator.Result{
		Payloads: []reconciler.Payload{reconciler.BinaryPayload(pngBytes, "")},
		Model:    "stub-model",
		Elapsed:  10 * time.Millisecond,
		Attempts: 1,
	}, nil
}

func (g *stubGateway) HealthCheck(ctx context.Context) generator.Health { return g.health }
func (g *stubGateway) Stats() generator.Stats                           { return generator.Stats{} }
func (g *stubGateway) ResetStats()                                      {}
func (g *stubGateway) Model() string                                    { return "stub-model" }

func (g *stubGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func (g *stubGateway) lastRequest() generator.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests[len(g.requests)-1]
}

type stubLoader struct {
	mu     sync.Mutex
	loaded []string
	failOn string
}

func (l *stubLoader) Load(ctx context.Context, path, label string) (generator.SourceImage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if path == l.failOn {
		return generator.SourceImage{}, domain.NewError(domain.CodeImageLoad, "cannot read %s", path)
	}
	l.loaded = append(l.loaded, path)
	return generator.SourceImage{Data: pngBytes, MimeType: "image/png", Label: label}, nil
}

type failingStore struct {
	*store.Store
}

func (f failingStore) Save(ctx context.Context, in store.SaveInput) (domain.ImageRecord, error) {
	return domain.ImageRecord{}, domain.WrapError(domain.CodeSave, errors.New("disk full"), "failed to save image")
}

type stubHost struct{}

func (stubHost) Memory(ctx context.Context) (status.MemoryInfo, error) {
	return status.MemoryInfo{UsedPercent: 40}, nil
}
func (stubHost) CPU(ctx context.Context) (status.CPUInfo, error) {
	return status.CPUInfo{Cores: 2, Threads: 4}, nil
}
func (stubHost) Process(ctx context.Context) (status.ProcessInfo, error) {
	return status.ProcessInfo{PID: 1}, nil
}
func (stubHost) Disk(ctx context.Context, path string) (status.DiskInfo, error) {
	return status.DiskInfo{UsedPercent: 50}, nil
}
