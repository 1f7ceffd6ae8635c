package prompt

import (
	"strings"
	"unicode"
)

// DetectLanguage は文字種のヒューリスティックで主要言語を推定します。
// 言語識別モデルではないため、混在した文字列は誤判定され得ます。
func DetectLanguage(text string) string {
	switch {
	case containsScript(text, unicode.Hangul):
		return "ko"
	case containsScript(text, unicode.Hiragana, unicode.Katakana):
		return "ja"
	case containsScript(text, unicode.Han):
		return "zh"
	case containsScript(text, unicode.Cyrillic):
		return "ru"
	default:
		return "en"
	}
}

// TranslationRecommended は英訳を推奨する言語かどうかを返します。
func TranslationRecommended(lang string) bool {
	return translationRecommended[lang]
}

func containsScript(text string, tables ...*unicode.RangeTable) bool {
	return strings.IndexFunc(text, func(r rune) bool {
		return unicode.IsOneOf(tables, r)
	}) >= 0
}

// simpleTranslate は固定辞書による置換です。辞書に無い語はそのまま残ります。
func simpleTranslate(text, lang string) string {
	if lang != "ko" {
		return text
	}
	for _, pair := range koreanDictionary {
		text = strings.ReplaceAll(text, pair[0], pair[1])
	}
	return text
}
