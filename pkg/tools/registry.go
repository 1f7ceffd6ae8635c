package tools

import (
	"context"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// Tool は外部に公開する 1 つのツールです。Call は常にエンベロープを返し、エラーを返しません。
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]any
	Call        func(ctx context.Context, args map[string]any) any
}

// Tools は公開するツールの一覧を返します。
func (s *Service) Tools() []Tool {
	return []Tool{
		{
			Name:        "nanobanana_generate",
			Description: "Generate images from a text prompt using Gemini 2.5 Flash Image.",
			InputSchema: objectSchema([]string{"prompt"}, map[string]any{
				"prompt":             stringProp("Text description of the image to generate", domain.MinPromptLength, domain.MaxPromptLength),
				"aspectRatio":        map[string]any{"type": "string", "description": "W:H ratio or a named preset (square, landscape, portrait, ...)"},
				"style":              enumProp("Style preset", stylesOf(domain.Styles)),
				"quality":            enumProp("Quality tier", []string{"auto", "low", "medium", "high"}),
				"outputFormat":       enumProp("Requested output format", []string{"png", "jpeg", "webp"}),
				"candidateCount":     map[string]any{"type": "integer", "minimum": 1, "maximum": domain.MaxCandidateCount, "default": 1},
				"additionalKeywords": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"optimizePrompt":     boolProp("Rewrite the prompt for the provider", true),
				"negativePrompt":     boolProp("Append an 'Avoid:' clause with common defects", false),
			}),
			Call: s.Generate,
		},
		{
			Name:        "nanobanana_edit",
			Description: "Edit an existing image with a natural-language instruction and an optional mask.",
			InputSchema: objectSchema([]string{"imagePath", "editPrompt"}, map[string]any{
				"imagePath":      map[string]any{"type": "string", "description": "Local path or http(s) URL of the image to edit"},
				"editPrompt":     stringProp("Edit instruction", domain.MinPromptLength, domain.MaxPromptLength),
				"maskPath":       map[string]any{"type": "string", "description": "Optional mask image"},
				"outputFormat":   enumProp("Requested output format", []string{"png", "jpeg", "webp"}),
				"quality":        enumProp("Quality tier", []string{"auto", "low", "medium", "high"}),
				"optimizePrompt": boolProp("Rewrite the prompt for the provider", true),
				"negativePrompt": boolProp("Append an 'Avoid:' clause with common defects", false),
			}),
			Call: s.Edit,
		},
		{
			Name:        "nanobanana_blend",
			Description: "Blend 2 to 4 images into a single composition.",
			InputSchema: objectSchema([]string{"imagePaths", "blendPrompt"}, map[string]any{
				"imagePaths": map[string]any{
					"type": "array", "items": map[string]any{"type": "string"},
					"minItems": domain.MinBlendImages, "maxItems": domain.MaxBlendImages,
				},
				"blendPrompt":         stringProp("How the images should be combined", domain.MinPromptLength, domain.MaxPromptLength),
				"maintainConsistency": boolProp("Ask for a consistent style across sources", true),
				"outputFormat":        enumProp("Requested output format", []string{"png", "jpeg", "webp"}),
				"quality":             enumProp("Quality tier", []string{"auto", "low", "medium", "high"}),
				"optimizePrompt":      boolProp("Rewrite the prompt for the provider", true),
				"negativePrompt":      boolProp("Append an 'Avoid:' clause with common defects", false),
			}),
			Call: s.Blend,
		},
		{
			Name:        "nanobanana_status",
			Description: "Report provider reachability, usage statistics, storage and host health.",
			InputSchema: objectSchema(nil, map[string]any{
				"detailed":       boolProp("Include performance, storage and system sections", true),
				"includeHistory": boolProp("Include recent operations", false),
				"resetStats":     boolProp("Reset session counters before collecting", false),
			}),
			Call: s.Status,
		},
		{
			Name:        "nanobanana_history",
			Description: "List saved images newest first, or search them by prompt word overlap.",
			InputSchema: objectSchema(nil, map[string]any{
				"operationType": enumProp("Filter by operation", []string{"generated", "edited", "blended"}),
				"limit":         map[string]any{"type": "integer", "minimum": 1, "default": 20},
				"query":         map[string]any{"type": "string", "description": "Prompt words to match (bag of words, not semantic)"},
				"threshold":     map[string]any{"type": "number", "minimum": 0, "maximum": 1, "default": 0.8},
			}),
			Call: s.History,
		},
	}
}

func objectSchema(required []string, props map[string]any) map[string]any {
	schema := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func stringProp(desc string, minLen, maxLen int) map[string]any {
	return map[string]any{"type": "string", "description": desc, "minLength": minLen, "maxLength": maxLen}
}

func enumProp(desc string, values []string) map[string]any {
	return map[string]any{"type": "string", "description": desc, "enum": values}
}

func boolProp(desc string, def bool) map[string]any {
	return map[string]any{"type": "boolean", "description": desc, "default": def}
}

func stylesOf(styles []domain.Style) []string {
	out := make([]string, len(styles))
	for i, s := range styles {
		out[i] = string(s)
	}
	return out
}
