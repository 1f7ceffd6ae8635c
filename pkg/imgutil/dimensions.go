package imgutil

import (
	"bytes"
	"fmt"
	"image"
	"os"
)

// Size は画像のピクセル寸法です。
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DimensionsOf はヘッダだけをデコードして寸法を返します。
func DimensionsOf(data []byte) (Size, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Size{}, "", fmt.Errorf("画像ヘッダのデコードに失敗しました: %w", err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, format, nil
}

// DimensionsOfFile はファイルの画像寸法を返します。
func DimensionsOfFile(path string) (Size, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return Size{}, "", err
	}
	defer f.Close()

	cfg, format, err := image.DecodeConfig(f)
	if err != nil {
		return Size{}, "", fmt.Errorf("%s: 画像ヘッダのデコードに失敗しました: %w", path, err)
	}
	return Size{Width: cfg.Width, Height: cfg.Height}, format, nil
}
