package imgutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// テスト用のダミー画像（10x10の赤い正方形）を作成するヘルパー
func createDummyImageData(t *testing.T, format string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}

	buf := new(bytes.Buffer)
	var err error
	switch format {
	case "png":
		err = png.Encode(buf, img)
	case "jpeg":
		err = jpeg.Encode(buf, img, nil)
	default:
		t.Fatalf("unsupported format: %s", format)
	}

	if err != nil {
		t.Fatalf("failed to encode dummy image: %v", err)
	}
	return buf.Bytes()
}

func TestCompressToJPEG(t *testing.T) {
	t.Run("正常なPNG画像をJPEGに圧縮できること", func(t *testing.T) {
		pngData := createDummyImageData(t, "png")

		got, err := CompressToJPEG(pngData, 75)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(got) == 0 {
			t.Error("expected output data, but got empty")
		}

		// 出力がJPEGとしてデコード可能か確認
		_, format, err := image.Decode(bytes.NewReader(got))
		if err != nil {
			t.Errorf("failed to decode output image: %v", err)
		}
		if format != "jpeg" {
			t.Errorf("expected format jpeg, got %s", format)
		}
	})

	t.Run("不正なデータを与えた場合にエラーを返すこと", func(t *testing.T) {
		invalidData := []byte("this is not an image")
		_, err := CompressToJPEG(invalidData, 75)
		if err == nil {
			t.Error("expected error for invalid data, but got nil")
		}
	})

	t.Run("WebP 以外の登録済み形式も受け付けること", func(t *testing.T) {
		got, err := CompressToJPEG(createDummyImageData(t, "jpeg"), 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if DetectFormat(got) != "jpeg" {
			t.Errorf("expected jpeg signature, got %q", DetectFormat(got))
		}
	})

	t.Run("Quality設定によってサイズが変化すること", func(t *testing.T) {
		input := createDummyImageData(t, "png")

		highQuality, _ := CompressToJPEG(input, 100)
		lowQuality, _ := CompressToJPEG(input, 10)

		if len(lowQuality) >= len(highQuality) {
			t.Errorf("low quality size (%d) should be smaller than high quality size (%d)", len(lowQuality), len(highQuality))
		}
	})
}

// 無圧縮PNGで閾値を超えるサイズの単色画像を作成するヘルパー
func createOversizedPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1100, 1100))
	for x := 0; x < 1100; x++ {
		for y := 0; y < 1100; y++ {
			img.Set(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	buf := new(bytes.Buffer)
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	if err := enc.Encode(buf, img); err != nil {
		t.Fatalf("failed to encode oversized image: %v", err)
	}
	if buf.Len() <= NormalizeThresholdBytes {
		t.Fatalf("fixture must exceed threshold, got %d bytes", buf.Len())
	}
	return buf.Bytes()
}

func TestNormalizeForUpload(t *testing.T) {
	t.Run("閾値以下の画像はそのまま返すこと", func(t *testing.T) {
		input := createDummyImageData(t, "png")
		got, converted := NormalizeForUpload(input)
		if converted {
			t.Error("small image should not be converted")
		}
		if !bytes.Equal(got, input) {
			t.Error("small image should be returned unchanged")
		}
	})

	t.Run("閾値を超える画像はJPEGに変換されること", func(t *testing.T) {
		input := createOversizedPNG(t)
		got, converted := NormalizeForUpload(input)
		if !converted {
			t.Fatal("oversized image should be converted")
		}
		if len(got) >= len(input) {
			t.Errorf("converted size (%d) should be smaller than input (%d)", len(got), len(input))
		}
		if DetectFormat(got) != "jpeg" {
			t.Errorf("expected jpeg signature, got %q", DetectFormat(got))
		}
	})

	t.Run("デコードできない大きなデータは元のまま返すこと", func(t *testing.T) {
		input := bytes.Repeat([]byte("x"), NormalizeThresholdBytes+1)
		got, converted := NormalizeForUpload(input)
		if converted {
			t.Error("undecodable data should not be converted")
		}
		if len(got) != len(input) {
			t.Errorf("expected original length %d, got %d", len(input), len(got))
		}
	})
}
