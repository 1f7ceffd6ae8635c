package imgutil

import (
	"bytes"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// 参照画像の正規化に関する既定値です。
const (
	NormalizeThresholdBytes = 4 << 20
	NormalizeJPEGQuality    = 85
)

// CompressToJPEG は画像データ（PNG, GIF, JPEG, WebP, BMP）をJPEG形式に再エンコードします。
func CompressToJPEG(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NormalizeForUpload は閾値を超える画像だけを JPEG に再エンコードします。
// 変換できない場合や小さくならない場合は元のデータを返します。
func NormalizeForUpload(data []byte) (out []byte, converted bool) {
	if len(data) <= NormalizeThresholdBytes {
		return data, false
	}
	compressed, err := CompressToJPEG(data, NormalizeJPEGQuality)
	if err != nil || len(compressed) >= len(data) {
		return data, false
	}
	return compressed, true
}
