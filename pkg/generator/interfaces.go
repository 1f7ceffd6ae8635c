package generator

import (
	"context"

	"google.golang.org/genai"
)

// ContentGenerator は genai.Models のうち、このパッケージが利用するメソッドです。
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	Get(ctx context.Context, model string, config *genai.GetModelConfig) (*genai.Model, error)
}

// Gateway はツール層が利用するプロバイダ窓口です。
type Gateway interface {
	// Generate は 1 回分の生成要求を送り、画像ペイロードを返します。失敗は *domain.ToolError です。
	Generate(ctx context.Context, req Request) (*Result, error)
	// HealthCheck はモデル情報の取得で疎通を確認します。エラーは返さず Health に格納します。
	HealthCheck(ctx context.Context) Health
	Stats() Stats
	ResetStats()
	Model() string
}
