package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}

func newTestStore(t *testing.T, mutate func(*Options)) *Store {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		OutputRoot:    filepath.Join(root, "out"),
		CacheRoot:     filepath.Join(root, "cache"),
		TempRoot:      filepath.Join(root, "tmp"),
		CacheEnabled:  true,
		CacheExpiry:   24 * time.Hour,
		CacheMaxBytes: 1 << 20,
	}
	if mutate != nil {
		mutate(&opts)
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func TestGenerateFilename(t *testing.T) {
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	t.Run("操作種別・時刻・プロンプトハッシュを含む", func(t *testing.T) {
		name := GenerateFilename(domain.OperationGenerated, "A cute cat", "png", now)
		assert.Regexp(t, regexp.MustCompile(`^nanobanana_generated_20250304_050607_[0-9a-f]{8}\.png$`), name)
	})

	t.Run("同じプロンプトは同じハッシュになる", func(t *testing.T) {
		a := GenerateFilename(domain.OperationEdited, "same", "jpeg", now)
		b := GenerateFilename(domain.OperationEdited, "same", "jpeg", now)
		assert.Equal(t, a, b)
	})

	t.Run("拡張子が空なら bin", func(t *testing.T) {
		assert.True(t, strings.HasSuffix(GenerateFilename(domain.OperationBlended, "x", "", now), ".bin"))
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"禁止文字を置換", `a<b>c:d"e.png`, "a_b_c_d_e.png"},
		{"連続するアンダースコアをまとめる", "a___b//c.png", "a_b_c.png"},
		{"先頭と末尾のアンダースコアを除く", "_a_.png", "a_.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeFilename(tt.in))
		})
	}

	t.Run("長すぎる名前は拡張子を残して切り詰める", func(t *testing.T) {
		got := SanitizeFilename(strings.Repeat("a", 400) + ".webp")
		assert.Len(t, got, maxFilenameLength)
		assert.True(t, strings.HasSuffix(got, ".webp"))
	})
}

func TestStore_Save(t *testing.T) {
	ctx := context.Background()

	t.Run("保存後の履歴にサイズとハッシュが一致するレコードが 1 件ある", func(t *testing.T) {
		s := newTestStore(t, nil)
		rec, err := s.Save(ctx, SaveInput{
			Data:   pngBytes,
			Format: "png",
			Record: domain.ImageRecord{OperationType: domain.OperationGenerated, OriginalPrompt: "A cute cat"},
		})
		require.NoError(t, err)

		history, err := s.History(ctx, Query{OperationType: domain.OperationGenerated})
		require.NoError(t, err)
		require.Len(t, history, 1)

		sum := sha256.Sum256(pngBytes)
		assert.Equal(t, int64(len(pngBytes)), history[0].FileSizeBytes)
		assert.Equal(t, hex.EncodeToString(sum[:]), history[0].ContentHash)
		assert.Equal(t, rec.Filepath, history[0].Filepath)
		assert.Equal(t, filepath.Join(s.OutputRoot(), "generated"), filepath.Dir(rec.Filepath))

		onDisk, err := os.ReadFile(rec.Filepath)
		require.NoError(t, err)
		assert.Equal(t, pngBytes, onDisk)
	})

	t.Run("同じ秒・同じプロンプトでも上書きしない", func(t *testing.T) {
		fixed := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		s := newTestStore(t, func(o *Options) { o.Now = func() time.Time { return fixed } })
		in := SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationGenerated, OriginalPrompt: "p"}}

		a, err := s.Save(ctx, in)
		require.NoError(t, err)
		b, err := s.Save(ctx, in)
		require.NoError(t, err)
		assert.NotEqual(t, a.Filepath, b.Filepath)
		assert.FileExists(t, a.Filepath)
		assert.FileExists(t, b.Filepath)
	})

	t.Run("キャッシュ有効時はキャッシュ領域にも複製する", func(t *testing.T) {
		s := newTestStore(t, nil)
		rec, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationEdited, OriginalPrompt: "edit"}})
		require.NoError(t, err)
		assert.FileExists(t, filepath.Join(s.opts.CacheRoot, cacheImagesDir, rec.Filename))
		assert.FileExists(t, filepath.Join(s.opts.CacheRoot, cacheIndexFile))
	})

	t.Run("台帳に書けなければ画像も残さない", func(t *testing.T) {
		s := newTestStore(t, nil)
		require.NoError(t, os.Mkdir(filepath.Join(s.OutputRoot(), ledgerFilename), 0o755))

		_, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationGenerated, OriginalPrompt: "orphan"}})
		assert.Equal(t, domain.CodeSave, domain.CodeOf(err))

		entries, err := os.ReadDir(filepath.Join(s.OutputRoot(), "generated"))
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("不明な操作種別と空データは SAVE_ERROR", func(t *testing.T) {
		s := newTestStore(t, nil)
		_, err := s.Save(ctx, SaveInput{Data: pngBytes, Record: domain.ImageRecord{OperationType: "painted"}})
		assert.Equal(t, domain.CodeSave, domain.CodeOf(err))

		_, err = s.Save(ctx, SaveInput{Record: domain.ImageRecord{OperationType: domain.OperationGenerated}})
		assert.Equal(t, domain.CodeSave, domain.CodeOf(err))
	})
}

func TestStore_History(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, func(o *Options) {
		o.CacheEnabled = false
		o.Now = func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}
	})

	for _, op := range []domain.OperationType{domain.OperationGenerated, domain.OperationEdited, domain.OperationGenerated} {
		_, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: op, OriginalPrompt: string(op)}})
		require.NoError(t, err)
	}

	t.Run("新しい順に返す", func(t *testing.T) {
		all, err := s.History(ctx, Query{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		for i := 1; i < len(all); i++ {
			assert.True(t, all[i-1].CreatedAt.After(all[i].CreatedAt))
		}
	})

	t.Run("操作種別と件数で絞り込む", func(t *testing.T) {
		got, err := s.History(ctx, Query{OperationType: domain.OperationGenerated, Limit: 1})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, domain.OperationGenerated, got[0].OperationType)
	})

	t.Run("時刻で絞り込む", func(t *testing.T) {
		all, err := s.History(ctx, Query{})
		require.NoError(t, err)
		got, err := s.History(ctx, Query{Since: all[0].CreatedAt})
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})
}

func TestStore_FindByPromptSimilarity(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, func(o *Options) { o.CacheEnabled = false })
	for _, p := range []string{"a red cat on a sofa", "a blue dog", "red cat"} {
		_, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationGenerated, OriginalPrompt: p}})
		require.NoError(t, err)
	}

	t.Run("類似度の高い順に閾値以上を返す", func(t *testing.T) {
		got, err := s.FindByPromptSimilarity(ctx, "Red Cat", 0.3)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "red cat", got[0].Record.OriginalPrompt)
		assert.InDelta(t, 1.0, got[0].Similarity, 1e-9)
		assert.GreaterOrEqual(t, got[1].Similarity, 0.3)
	})

	t.Run("一致しなければ空", func(t *testing.T) {
		got, err := s.FindByPromptSimilarity(ctx, "spaceship", 0.1)
		require.NoError(t, err)
		assert.Empty(t, got)
	})
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 0.5, Jaccard(wordSet("a b"), wordSet("b c a d")), 1e-9)
	assert.Zero(t, Jaccard(wordSet(""), wordSet("")))
}

func TestStore_Stats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	_, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationBlended, OriginalPrompt: "mix"}})
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.TotalImages)
	assert.Equal(t, 1, st.ByOperation[domain.OperationBlended])
	assert.Equal(t, 0, st.ByOperation[domain.OperationGenerated])
	assert.True(t, st.Output.Exists)
	assert.Equal(t, 1, st.Output.Files)
	assert.Equal(t, int64(len(pngBytes)), st.Output.SizeBytes)
	assert.Equal(t, 2, st.Cache.Files)

	t.Run("出力配下のキャッシュと一時領域は出力として数えない", func(t *testing.T) {
		s := newTestStore(t, func(o *Options) {
			o.CacheRoot = filepath.Join(o.OutputRoot, ".cache")
			o.TempRoot = filepath.Join(o.OutputRoot, ".tmp")
		})
		_, err := s.Save(ctx, SaveInput{Data: pngBytes, Format: "png", Record: domain.ImageRecord{OperationType: domain.OperationGenerated, OriginalPrompt: "nested"}})
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(s.TempDir(), "remote.png"), pngBytes, 0o644))

		st, err := s.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, st.Output.Files)
		assert.Equal(t, 2, st.Cache.Files)
		assert.Equal(t, 1, st.Temp.Files)
	})
}
