package generator

import (
	"context"
	"sync"

	"google.golang.org/genai"
)

// --- Mocks ---

type mockModels struct {
	mu        sync.Mutex
	calls     int
	responses []mockResult
	lastModel string
	lastCfg   *genai.GenerateContentConfig
	lastCont  []*genai.Content
	getErr    error
}

type mockResult struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (m *mockModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastModel = model
	m.lastCfg = config
	m.lastCont = contents
	idx := m.calls
	m.calls++
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	r := m.responses[idx]
	return r.resp, r.err
}

func (m *mockModels) Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &genai.Model{Name: model}, nil
}

func (m *mockModels) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func imageResponse(mime string, data ...[]byte) *genai.GenerateContentResponse {
	var cands []*genai.Candidate
	for _, d := range data {
		cands = append(cands, &genai.Candidate{
			FinishReason: genai.FinishReasonStop,
			Content: &genai.Content{
				Parts: []*genai.Part{{InlineData: &genai.Blob{MIMEType: mime, Data: d}}},
			},
		})
	}
	return &genai.GenerateContentResponse{Candidates: cands}
}
