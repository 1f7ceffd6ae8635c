package adapters

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

func TestSourceLoader_Load(t *testing.T) {
	ctx := context.Background()
	l, err := NewSourceLoader(nil, nil, 0, "")
	require.NoError(t, err)

	t.Run("MIME タイプとラベルを付けて読み込む", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "src.png")
		require.NoError(t, os.WriteFile(p, validPng, 0o644))

		img, err := l.Load(ctx, p, "Mask")
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MimeType)
		assert.Equal(t, "Mask", img.Label)
		assert.Equal(t, validPng, img.Data)
	})

	t.Run("画像でないファイルは IMAGE_LOAD_ERROR", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "note.txt")
		require.NoError(t, os.WriteFile(p, []byte("hello"), 0o644))
		_, err := l.Load(ctx, p, "")
		assert.Equal(t, domain.CodeImageLoad, domain.CodeOf(err))
	})
}
