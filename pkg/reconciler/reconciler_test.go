package reconciler

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90wS\xde")

func TestFormatFromMIME(t *testing.T) {
	tests := map[string]string{
		"image/png":                "png",
		"IMAGE/JPG":                "jpeg",
		"image/jpeg; charset=none": "jpeg",
		"image/webp":               "webp",
		"":                         "",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatFromMIME(in), in)
	}
}

func TestResolveFormat(t *testing.T) {
	t.Run("宣言された MIME が要求形式より優先されること", func(t *testing.T) {
		got, src := ResolveFormat("image/webp", pngBytes, domain.FormatPNG)
		assert.Equal(t, "webp", got)
		assert.Equal(t, SourceMIME, src)
	})

	t.Run("MIME が無ければシグネチャで判定すること", func(t *testing.T) {
		got, src := ResolveFormat("", pngBytes, domain.FormatJPEG)
		assert.Equal(t, "png", got)
		assert.Equal(t, SourceSignature, src)
	})

	t.Run("どちらも無ければ要求形式", func(t *testing.T) {
		got, src := ResolveFormat("", []byte("opaque"), domain.FormatPNG)
		assert.Equal(t, "png", got)
		assert.Equal(t, SourceRequested, src)
	})
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()

	t.Run("webp が宣言され png が要求された場合は webp で保存すること", func(t *testing.T) {
		res, err := Reconcile(ctx, BinaryPayload(pngBytes, "image/webp"), domain.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, "webp", res.Format)
		assert.Equal(t, "png", res.RequestedFormat)
		assert.NotEmpty(t, res.IntegrityWarning)
	})

	t.Run("MIME なしで png を要求した場合は png", func(t *testing.T) {
		res, err := Reconcile(ctx, BinaryPayload(pngBytes, ""), domain.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, "png", res.Format)
		assert.Empty(t, res.IntegrityWarning)
	})

	t.Run("未知のシグネチャでも保存は続行し警告を付けること", func(t *testing.T) {
		res, err := Reconcile(ctx, BinaryPayload([]byte("opaque-bytes"), "image/png"), domain.FormatPNG)
		require.NoError(t, err)
		assert.Equal(t, "png", res.Format)
		assert.NotEmpty(t, res.IntegrityWarning)
	})

	t.Run("マップ形式は候補キーの順に探すこと", func(t *testing.T) {
		fields := map[string]any{
			"image_data": "ignored",
			"bytes":      base64.StdEncoding.EncodeToString(pngBytes),
			"mime_type":  "image/png",
		}
		res, err := Reconcile(ctx, FieldsPayload(fields), domain.FormatJPEG)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, res.Data)
		assert.Equal(t, "png", res.Format)
		assert.Equal(t, SourceMIME, res.Source)
	})

	t.Run("データの無いマップは DATA_FORMAT_ERROR", func(t *testing.T) {
		_, err := Reconcile(ctx, FieldsPayload(map[string]any{"mime_type": "image/png"}), domain.FormatPNG)
		require.Error(t, err)
		assert.Equal(t, domain.CodeDataFormat, domain.CodeOf(err))
	})

	t.Run("data URI の MIME を拾うこと", func(t *testing.T) {
		uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
		res, err := Reconcile(ctx, EncodedPayload(uri, ""), domain.FormatWEBP)
		require.NoError(t, err)
		assert.Equal(t, "png", res.Format)
		assert.Equal(t, "image/png", res.DeclaredMIME)
	})

	t.Run("base64 として読めない文字列は DATA_FORMAT_ERROR", func(t *testing.T) {
		_, err := Reconcile(ctx, EncodedPayload("%%% not base64 %%%", ""), domain.FormatPNG)
		require.Error(t, err)
		assert.Equal(t, domain.CodeDataFormat, domain.CodeOf(err))
	})
}

func TestDecodeBase64_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		pngBytes,
		{0xfb, 0xff, 0xfe, 0x00, 0x3e},
		[]byte("a"),
	}
	for _, want := range payloads {
		got, err := DecodeBase64(base64.StdEncoding.EncodeToString(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = DecodeBase64(base64.URLEncoding.EncodeToString(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = DecodeBase64(base64.RawURLEncoding.EncodeToString(want))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestReconcileAll(t *testing.T) {
	payloads := []Payload{
		BinaryPayload(pngBytes, ""),
		FieldsPayload(map[string]any{}),
		EncodedPayload(base64.StdEncoding.EncodeToString(pngBytes), "image/png"),
	}
	results, failures := ReconcileAll(context.Background(), payloads, domain.FormatPNG)
	assert.Len(t, results, 2)
	require.Len(t, failures, 1)
	assert.Equal(t, 1, failures[0].Index)
}
