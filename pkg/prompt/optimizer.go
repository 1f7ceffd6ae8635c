package prompt

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// TranslationCache は翻訳結果を保持するキャッシュです。*cache.Cache がそのまま満たします。
type TranslationCache interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
	ItemCount() int
}

// Options は最適化のヒントです。
type Options struct {
	Category           Category
	AspectRatio        string
	Style              domain.Style
	Quality            domain.Quality
	AdditionalKeywords []string
}

// Optimizer はユーザーのプロンプトをプロバイダ向けに決定的に書き換えます。
type Optimizer struct {
	cache         TranslationCache
	autoTranslate bool
	maxLength     int
}

// NewOptimizer は Optimizer を初期化します。
// 翻訳キャッシュはプロセスの寿命の間は失効させません（エントリ数は入力の種類に比例して増えます）。
func NewOptimizer(translations TranslationCache, autoTranslate bool) *Optimizer {
	if translations == nil {
		translations = cache.New(cache.NoExpiration, 0)
	}
	return &Optimizer{
		cache:         translations,
		autoTranslate: autoTranslate,
		maxLength:     domain.MaxPromptLength,
	}
}

// Optimize は 11 段のパイプラインを順に適用します。同じ入力には常に同じ出力を返します。
func (o *Optimizer) Optimize(ctx context.Context, raw string, opts Options) (string, error) {
	if err := ValidateLength(raw); err != nil {
		return "", err
	}
	p := strings.TrimSpace(raw)

	if o.autoTranslate {
		p = o.translateIfNeeded(ctx, p)
	}

	if err := CheckSafety(ctx, p); err != nil {
		return "", err
	}

	if opts.Category == "" {
		opts.Category = CategoryGeneration
	}
	p = applyLeadIn(p, opts.Category)

	if opts.Style != "" {
		p = appendMissing(p, StylePresets[opts.Style])
	}

	p = enhanceQuality(p, opts.Quality)

	if opts.AspectRatio != "" {
		p = annotateAspectRatio(p, opts.AspectRatio)
	}

	if len(opts.AdditionalKeywords) > 0 {
		p = appendMissing(p, opts.AdditionalKeywords)
	}

	p = Cleanup(p)

	if out, truncated := truncateClauses(p, o.maxLength); truncated {
		slog.WarnContext(ctx, "最適化後のプロンプトが上限を超えたため節単位で切り詰めました",
			"before", len([]rune(p)), "after", len([]rune(out)), "limit", o.maxLength)
		p = out
	}

	slog.DebugContext(ctx, "プロンプトを最適化しました", "category", opts.Category, "length", len([]rune(p)))
	return p, nil
}

// CachedTranslations は翻訳キャッシュのエントリ数です。
func (o *Optimizer) CachedTranslations() int {
	return o.cache.ItemCount()
}

// ValidateLength は空・短すぎ・長すぎのプロンプトを拒否します。
func ValidateLength(raw string) error {
	s := strings.TrimSpace(raw)
	n := len([]rune(s))
	switch {
	case n == 0:
		return domain.NewValidationError("prompt", "cannot be empty")
	case n < domain.MinPromptLength:
		return domain.NewValidationError("prompt", "too short (minimum %d characters)", domain.MinPromptLength)
	case n > domain.MaxPromptLength:
		return domain.NewValidationError("prompt", "too long (maximum %d characters)", domain.MaxPromptLength)
	}
	return nil
}

// CheckSafety は禁止語を大文字小文字を無視した部分一致で検査します。
// 一致した語は Debug レベルでのみ記録します。
func CheckSafety(ctx context.Context, p string) error {
	lower := strings.ToLower(p)
	for _, kw := range ProhibitedKeywords {
		if strings.Contains(lower, kw) {
			slog.DebugContext(ctx, "禁止語を検出しました", "keyword", kw)
			return domain.NewError(domain.CodeUnsafeContent, "prompt contains content that violates the safety policy")
		}
	}
	return nil
}

func (o *Optimizer) translateIfNeeded(ctx context.Context, p string) string {
	lang := DetectLanguage(p)
	if lang == "en" || !TranslationRecommended(lang) {
		return p
	}
	if v, ok := o.cache.Get(p); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	translated := simpleTranslate(p, lang)
	o.cache.Set(p, translated, cache.NoExpiration)
	slog.InfoContext(ctx, "プロンプトを英語へ置換翻訳しました", "language", lang)
	return translated
}

func applyLeadIn(p string, category Category) string {
	lower := strings.ToLower(p)
	phrase := ""
	for _, l := range leadIns {
		if strings.HasPrefix(lower, strings.ToLower(l.phrase)) {
			return p
		}
		if l.category == category {
			phrase = l.phrase
		}
	}
	if phrase == "" {
		return p
	}
	return phrase + " " + p
}

// appendMissing はまだ含まれていないキーワードだけを末尾に追加します。
func appendMissing(p string, keywords []string) string {
	lower := strings.ToLower(p)
	var missing []string
	for _, kw := range keywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			missing = append(missing, kw)
		}
	}
	if len(missing) == 0 {
		return p
	}
	return p + ", " + strings.Join(missing, ", ")
}

func enhanceQuality(p string, q domain.Quality) string {
	lower := strings.ToLower(p)
	for _, kw := range QualityKeywords {
		if strings.Contains(lower, kw) {
			return p
		}
	}
	additions, ok := qualityAdditions[q]
	if !ok {
		additions = defaultQualityAdditions
	}
	return p + ", " + strings.Join(additions, ", ")
}

func annotateAspectRatio(p, ratio string) string {
	lower := strings.ToLower(p)
	if strings.Contains(lower, "aspect ratio") || strings.Contains(lower, "ratio") {
		return p
	}
	return p + ", " + domain.ResolveAspectRatio(ratio) + " aspect ratio"
}

// NegativePrompt はカテゴリに応じた除外語をカンマ区切りで返します。
func NegativePrompt(category Category) string {
	terms := append([]string{}, baseNegative...)
	terms = append(terms, categoryNegative[category]...)
	return strings.Join(terms, ", ")
}
