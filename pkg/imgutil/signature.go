package imgutil

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

var (
	sigPNG  = []byte("\x89PNG\r\n\x1a\n")
	sigJPEG = []byte{0xFF, 0xD8, 0xFF}
	sigGIF  = []byte("GIF8")
	sigBMP  = []byte("BM")
	sigRIFF = []byte("RIFF")
	sigWEBP = []byte("WEBP")
)

// DetectFormat はマジックバイトから画像形式を判定します。不明な場合は空文字です。
func DetectFormat(data []byte) string {
	switch {
	case bytes.HasPrefix(data, sigPNG):
		return "png"
	case bytes.HasPrefix(data, sigJPEG):
		return "jpeg"
	case len(data) >= 12 && bytes.Equal(data[:4], sigRIFF) && bytes.Equal(data[8:12], sigWEBP):
		return "webp"
	case bytes.HasPrefix(data, sigGIF):
		return "gif"
	case bytes.HasPrefix(data, sigBMP):
		return "bmp"
	}
	return ""
}

// MIMEType は形式名に対応する MIME タイプを返します。
func MIMEType(format string) string {
	switch format {
	case "":
		return "application/octet-stream"
	case "jpg":
		return "image/jpeg"
	default:
		return "image/" + format
	}
}

// MIMETypeForPath は拡張子から MIME タイプを推定します。
func MIMETypeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return MIMEType(strings.TrimPrefix(ext, "."))
}
