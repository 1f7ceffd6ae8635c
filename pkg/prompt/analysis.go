package prompt

import (
	"strings"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// Analysis はプロンプトの簡易的な品質診断結果です。
type Analysis struct {
	Length                  int      `json:"length"`
	WordCount               int      `json:"wordCount"`
	HasQualityKeywords      bool     `json:"hasQualityKeywords"`
	HasStyleKeywords        bool     `json:"hasStyleKeywords"`
	HasAspectRatio          bool     `json:"hasAspectRatio"`
	Language                string   `json:"language"`
	SafetyScore             float64  `json:"safetyScore"`
	OptimizationSuggestions []string `json:"optimizationSuggestions"`
	SuggestedStyles         []string `json:"suggestedStyles,omitempty"`
}

// Analyze はプロンプトを診断し、改善の提案を返します。
func Analyze(p string) Analysis {
	lower := strings.ToLower(p)
	a := Analysis{
		Length:          len([]rune(p)),
		WordCount:       len(strings.Fields(p)),
		HasAspectRatio:  strings.Contains(lower, "ratio"),
		Language:        DetectLanguage(p),
		SafetyScore:     SafetyScore(p),
		SuggestedStyles: SuggestStyles(p),
	}
	for _, kw := range QualityKeywords {
		if strings.Contains(lower, kw) {
			a.HasQualityKeywords = true
			break
		}
	}
	for _, s := range domain.Styles {
		if strings.Contains(lower, string(s)) {
			a.HasStyleKeywords = true
			break
		}
	}

	a.OptimizationSuggestions = []string{}
	if !a.HasQualityKeywords {
		a.OptimizationSuggestions = append(a.OptimizationSuggestions, "Add quality keywords (e.g., 'high quality', 'detailed')")
	}
	if !a.HasStyleKeywords {
		a.OptimizationSuggestions = append(a.OptimizationSuggestions, "Consider adding style keywords")
	}
	if !a.HasAspectRatio {
		a.OptimizationSuggestions = append(a.OptimizationSuggestions, "Specify aspect ratio if needed")
	}
	if a.Language != "en" {
		a.OptimizationSuggestions = append(a.OptimizationSuggestions, "Consider translating to English for better results")
	}
	return a
}

// SafetyScore は禁止語の一致数から 0.1〜1.0 のスコアを返します。
func SafetyScore(p string) float64 {
	lower := strings.ToLower(p)
	violations := 0
	for _, kw := range ProhibitedKeywords {
		if strings.Contains(lower, kw) {
			violations++
		}
	}
	switch {
	case violations == 0:
		return 1.0
	case violations <= 2:
		return 0.7
	case violations <= 5:
		return 0.4
	default:
		return 0.1
	}
}

var styleHints = []struct {
	style domain.Style
	words []string
}{
	{domain.StylePhotorealistic, []string{"photo", "realistic", "portrait"}},
	{domain.StyleDigitalArt, []string{"art", "painting", "artistic"}},
	{domain.StyleAnime, []string{"anime", "manga", "japanese"}},
	{domain.StyleCartoon, []string{"cartoon", "animated", "character"}},
	{domain.StyleVintage, []string{"vintage", "retro", "old", "classic"}},
}

// SuggestStyles はプロンプトに合いそうなスタイルを最大 3 つ返します。
func SuggestStyles(p string) []string {
	lower := strings.ToLower(p)
	var out []string
	for _, h := range styleHints {
		for _, w := range h.words {
			if strings.Contains(lower, w) {
				out = append(out, string(h.style))
				break
			}
		}
		if len(out) == 3 {
			break
		}
	}
	return out
}
