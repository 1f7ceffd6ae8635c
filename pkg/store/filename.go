package store

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

const (
	filenamePrefix    = "nanobanana"
	maxFilenameLength = 255
	forbiddenChars    = `<>:"/\|?*`
)

// GenerateFilename は操作種別・時刻・プロンプトの短縮ハッシュからファイル名を作ります。
// ハッシュは一覧性のためのもので、画像の同一性確認には使いません。
func GenerateFilename(op domain.OperationType, prompt, ext string, now time.Time) string {
	parts := []string{filenamePrefix, string(op), now.Format("20060102_150405")}
	if prompt != "" {
		sum := md5.Sum([]byte(prompt))
		parts = append(parts, hex.EncodeToString(sum[:])[:8])
	}
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		ext = "bin"
	}
	return SanitizeFilename(strings.Join(parts, "_") + "." + ext)
}

// SanitizeFilename は禁止文字を "_" に置き換え、連続する "_" をまとめ、拡張子を残して長さを制限します。
func SanitizeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(forbiddenChars, r) || r < 0x20 {
			return '_'
		}
		return r
	}, name)

	segments := strings.Split(name, "_")
	kept := segments[:0]
	for _, s := range segments {
		if s != "" {
			kept = append(kept, s)
		}
	}
	name = strings.Join(kept, "_")

	if len(name) > maxFilenameLength {
		ext := filepath.Ext(name)
		base := strings.TrimSuffix(name, ext)
		limit := maxFilenameLength - len(ext)
		if limit < 1 {
			return name[:maxFilenameLength]
		}
		name = truncateUTF8(base, limit) + ext
	}
	return name
}

// truncateUTF8 は rune の途中で切らないように n バイト以内に収めます。
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// uniqueName は既に同名のファイルがある場合に連番を付けます。
func uniqueName(name string, exists func(string) bool) string {
	if !exists(name) {
		return name
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for i := 2; ; i++ {
		candidate := SanitizeFilename(fmt.Sprintf("%s_%d%s", base, i, ext))
		if !exists(candidate) {
			return candidate
		}
	}
}
