package builder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweep(t *testing.T) {
	ctx := context.Background()

	t.Run("古い一時ファイルを削除し新しいものは残す", func(t *testing.T) {
		cfg := testConfig(t)
		st, err := BuildStore(cfg)
		require.NoError(t, err)

		old := filepath.Join(st.TempDir(), "remote_old.png")
		fresh := filepath.Join(st.TempDir(), "remote_new.png")
		require.NoError(t, os.WriteFile(old, pngBytes, 0o644))
		require.NoError(t, os.WriteFile(fresh, pngBytes, 0o644))
		past := time.Now().Add(-48 * time.Hour)
		require.NoError(t, os.Chtimes(old, past, past))

		report, removed, err := Sweep(ctx, st, 24*time.Hour, nil)
		require.NoError(t, err)
		assert.Equal(t, "completed", report.Status)
		assert.Equal(t, 1, removed)
		assert.NoFileExists(t, old)
		assert.FileExists(t, fresh)
	})

	t.Run("RunSweeper はコンテキストの終了で戻る", func(t *testing.T) {
		st, err := BuildStore(testConfig(t))
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			RunSweeper(ctx, st, 10*time.Millisecond, time.Hour, nil)
			close(done)
		}()
		time.Sleep(30 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("RunSweeper did not stop")
		}
	})
}
