package generator

import (
	"encoding/json"
	"strings"

	"google.golang.org/genai"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/reconciler"
)

var harmCategories = []genai.HarmCategory{
	genai.HarmCategoryHarassment,
	genai.HarmCategoryHateSpeech,
	genai.HarmCategorySexuallyExplicit,
	genai.HarmCategoryDangerousContent,
}

// safetySettings は SafetyLevel をプロバイダのしきい値に変換します。
func safetySettings(level SafetyLevel) []*genai.SafetySetting {
	threshold := genai.HarmBlockThresholdBlockMediumAndAbove
	switch level {
	case SafetyStrict:
		threshold = genai.HarmBlockThresholdBlockLowAndAbove
	case SafetyPermissive:
		threshold = genai.HarmBlockThresholdBlockOnlyHigh
	}
	settings := make([]*genai.SafetySetting, 0, len(harmCategories))
	for _, c := range harmCategories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: threshold})
	}
	return settings
}

// buildContents はプロンプト・入力画像・除外指示を 1 つのユーザーコンテンツにまとめます。
func buildContents(req Request) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, img := range req.Images {
		if len(img.Data) == 0 {
			continue
		}
		if img.Label != "" {
			parts = append(parts, genai.NewPartFromText(img.Label+":"))
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: img.Data}})
	}
	if req.NegativePrompt != "" {
		parts = append(parts, genai.NewPartFromText("Avoid: "+req.NegativePrompt))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func buildConfig(req Request, level SafetyLevel) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{"IMAGE", "TEXT"},
		CandidateCount:     int32(req.CandidateCount),
		SafetySettings:     safetySettings(level),
	}
	if req.AspectRatio != "" {
		config.ImageConfig = &genai.ImageConfig{AspectRatio: domain.ResolveAspectRatio(req.AspectRatio)}
	}
	return config
}

// parseResponse は全候補から画像ペイロードを取り出します。
// InlineData はバイナリ、data URI のテキストはエンコード済み、JSON オブジェクトのテキストはフィールド形式として扱います。
func parseResponse(resp *genai.GenerateContentResponse) ([]reconciler.Payload, []string, error) {
	if resp == nil {
		return nil, nil, domain.NewError(domain.CodeNoResult, "provider returned an empty response")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, nil, domain.NewError(domain.CodeUnsafeContent,
			"request was blocked by the provider content filter (%s)", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, nil, domain.NewError(domain.CodeNoResult, "provider returned no candidates")
	}

	var payloads []reconciler.Payload
	var texts []string
	var abnormal genai.FinishReason
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if part == nil {
					continue
				}
				if p, ok := partPayload(part); ok {
					payloads = append(payloads, p)
				} else if part.Text != "" && !part.Thought {
					texts = append(texts, part.Text)
				}
			}
		}
		if cand.FinishReason != genai.FinishReasonUnspecified && cand.FinishReason != genai.FinishReasonStop {
			abnormal = cand.FinishReason
		}
	}

	if len(payloads) > 0 {
		return payloads, texts, nil
	}
	switch abnormal {
	case "":
		return nil, texts, domain.NewError(domain.CodeNoResult, "provider response contained no image data")
	case genai.FinishReasonSafety, genai.FinishReasonProhibitedContent, genai.FinishReasonBlocklist:
		return nil, texts, domain.NewError(domain.CodeUnsafeContent, "image generation was blocked by the provider (FinishReason: %s)", abnormal)
	default:
		return nil, texts, domain.NewError(domain.CodeAPI, "image generation ended abnormally (FinishReason: %s)", abnormal)
	}
}

func partPayload(part *genai.Part) (reconciler.Payload, bool) {
	if part.InlineData != nil && len(part.InlineData.Data) > 0 {
		return reconciler.BinaryPayload(part.InlineData.Data, part.InlineData.MIMEType), true
	}
	text := strings.TrimSpace(part.Text)
	if strings.HasPrefix(text, "data:image/") {
		return reconciler.EncodedPayload(text, ""), true
	}
	if strings.HasPrefix(text, "{") {
		var fields map[string]any
		if err := json.Unmarshal([]byte(text), &fields); err == nil && hasImageField(fields) {
			return reconciler.FieldsPayload(fields), true
		}
	}
	return reconciler.Payload{}, false
}

func hasImageField(fields map[string]any) bool {
	for _, k := range []string{"data", "bytes", "image_data"} {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}
