package adapters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var validPng = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00\x90w\x53\xde")

func TestSourceLoader_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("ローカルファイルは絶対パスに解決する", func(t *testing.T) {
		dir := t.TempDir()
		p := filepath.Join(dir, "a.png")
		require.NoError(t, os.WriteFile(p, validPng, 0o644))

		l, err := NewSourceLoader(nil, nil, 0, "")
		require.NoError(t, err)
		got, err := l.Resolve(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})

	t.Run("存在しないファイルとディレクトリはエラー", func(t *testing.T) {
		l, _ := NewSourceLoader(nil, nil, 0, "")
		_, err := l.Resolve(ctx, filepath.Join(t.TempDir(), "missing.png"))
		assert.Error(t, err)
		_, err = l.Resolve(ctx, t.TempDir())
		assert.Error(t, err)
	})

	t.Run("リモート画像は一時ディレクトリに保存してキャッシュする", func(t *testing.T) {
		tmp := t.TempDir()
		cache := &mockCache{}
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) { return validPng, nil }}
		l, err := NewSourceLoader(fetcher, cache, time.Hour, tmp)
		require.NoError(t, err)
		l.urlCheck = allowAll

		p1, err := l.Resolve(ctx, "https://example.com/cat.png")
		require.NoError(t, err)
		assert.Equal(t, tmp, filepath.Dir(p1))
		assert.Equal(t, ".png", filepath.Ext(p1))
		data, err := os.ReadFile(p1)
		require.NoError(t, err)
		assert.Equal(t, validPng, data)

		p2, err := l.Resolve(ctx, "https://example.com/cat.png")
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
		assert.Equal(t, 1, fetcher.calls, "2 回目はキャッシュから取得するはず")
	})

	t.Run("画像でない内容は拒否する", func(t *testing.T) {
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) { return []byte("<html>"), nil }}
		l, _ := NewSourceLoader(fetcher, nil, 0, t.TempDir())
		l.urlCheck = allowAll
		_, err := l.Resolve(ctx, "https://example.com/page")
		assert.Error(t, err)
	})

	t.Run("ダウンロード失敗はエラー", func(t *testing.T) {
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) { return nil, errors.New("404") }}
		l, _ := NewSourceLoader(fetcher, nil, 0, t.TempDir())
		l.urlCheck = allowAll
		_, err := l.Resolve(ctx, "https://example.com/missing.png")
		assert.Error(t, err)
	})

	t.Run("内部ネットワークの URL はダウンロードしない", func(t *testing.T) {
		fetcher := &mockFetcher{fetchFunc: func(ctx context.Context, url string) ([]byte, error) { return validPng, nil }}
		l, _ := NewSourceLoader(fetcher, nil, 0, t.TempDir())
		_, err := l.Resolve(ctx, "http://127.0.0.1/secret.png")
		assert.Error(t, err)
		assert.Zero(t, fetcher.calls)
	})

	t.Run("fetcher が無ければリモートは無効", func(t *testing.T) {
		l, _ := NewSourceLoader(nil, nil, 0, "")
		_, err := l.Resolve(ctx, "https://example.com/cat.png")
		assert.Error(t, err)
	})
}

func TestIsSafeURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		safe bool
	}{
		{"ループバック", "http://127.0.0.1/a.png", false},
		{"プライベート", "http://10.0.0.5/a.png", false},
		{"リンクローカル", "http://169.254.169.254/latest/meta-data", false},
		{"不許可スキーム", "file:///etc/passwd", false},
		{"パース不能", "::not a url", false},
		{"グローバル IP", "https://8.8.8.8/a.png", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			safe, _ := isSafeURL(tt.url)
			assert.Equal(t, tt.safe, safe)
		})
	}
}
