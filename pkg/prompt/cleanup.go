package prompt

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	commaRun      = regexp.MustCompile(`,(\s*,)+`)
	commaSpacing  = regexp.MustCompile(`\s*,\s*`)
)

// Cleanup は空白とカンマを整え、カンマ区切りの節を大文字小文字を無視して重複排除します。
// 残るのは最初に現れた節で、表記もそのまま保ちます。
func Cleanup(s string) string {
	s = whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
	s = commaRun.ReplaceAllString(s, ",")
	s = commaSpacing.ReplaceAllString(s, ", ")
	s = strings.Trim(s, ", ")

	clauses := strings.Split(s, ", ")
	seen := make(map[string]bool, len(clauses))
	kept := clauses[:0]
	for _, c := range clauses {
		c = strings.TrimSpace(c)
		key := strings.ToLower(c)
		if c == "" || seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, c)
	}
	return strings.Join(kept, ", ")
}

// truncateClauses は maxLen (rune 数) 以内に収まる最後の節境界で切り詰めます。
// 先頭の節だけで上限を超える場合は語の途中で切らないよう直前の空白で切ります。
func truncateClauses(s string, maxLen int) (string, bool) {
	if len([]rune(s)) <= maxLen {
		return s, false
	}
	clauses := strings.Split(s, ", ")
	var b strings.Builder
	n := 0
	for i, c := range clauses {
		add := len([]rune(c))
		if i > 0 {
			add += 2
		}
		if n+add > maxLen {
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c)
		n += add
	}
	if n > 0 {
		return b.String(), true
	}

	runes := []rune(clauses[0])[:maxLen]
	head := string(runes)
	if idx := strings.LastIndex(head, " "); idx > 0 {
		head = head[:idx]
	}
	return strings.TrimRight(head, " ,"), true
}
