package store

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// writeFileAtomic は同じディレクトリの一時ファイルに書いてから rename します。
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗しました: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("書き込みに失敗しました: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("fsync に失敗しました: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename に失敗しました: %w", err)
	}
	return nil
}

// DirStats はディレクトリ配下のファイル数と合計サイズです。
type DirStats struct {
	Files     int     `json:"files"`
	SizeBytes int64   `json:"sizeBytes"`
	SizeMB    float64 `json:"sizeMb"`
	Exists    bool    `json:"exists"`
}

// dirStats は root 以下の通常ファイルを集計します。skip に含まれるパスは配下ごと除外します。
func dirStats(root string, skip ...string) (DirStats, error) {
	var st DirStats
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, err
	}
	st.Exists = true
	excluded := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		excluded[filepath.Clean(p)] = struct{}{}
	}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := excluded[filepath.Clean(path)]; ok && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		st.Files++
		st.SizeBytes += info.Size()
		return nil
	})
	st.SizeMB = bytesToMB(st.SizeBytes)
	return st, err
}

func bytesToMB(n int64) float64 {
	return float64(int64(float64(n)/1024/1024*100+0.5)) / 100
}
