package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

const (
	cacheImagesDir = "images"
	cacheIndexFile = "cache_index.json"
)

type cacheEntry struct {
	AddedAt     time.Time `json:"addedAt"`
	SizeBytes   int64     `json:"sizeBytes"`
	ContentHash string    `json:"contentHash,omitempty"`
}

type cacheIndex struct {
	Files       map[string]cacheEntry `json:"files"`
	LastUpdated time.Time             `json:"lastUpdated"`
}

// copyToCache は保存済み画像をキャッシュ領域へ複製し、インデックスに登録します。
func (s *Store) copyToCache(src string, data []byte, hash string) error {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	dst := filepath.Join(s.opts.CacheRoot, cacheImagesDir, filepath.Base(src))
	if err := writeFileAtomic(dst, data, 0o644); err != nil {
		return err
	}
	idx, err := s.loadCacheIndex()
	if err != nil {
		slog.Warn("キャッシュインデックスを再作成します", "error", err)
		idx = cacheIndex{}
	}
	if idx.Files == nil {
		idx.Files = make(map[string]cacheEntry)
	}
	now := s.now()
	idx.Files[dst] = cacheEntry{AddedAt: now, SizeBytes: int64(len(data)), ContentHash: hash}
	idx.LastUpdated = now
	return s.writeCacheIndex(idx)
}

func (s *Store) loadCacheIndex() (cacheIndex, error) {
	var idx cacheIndex
	data, err := os.ReadFile(filepath.Join(s.opts.CacheRoot, cacheIndexFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return idx, nil
		}
		return idx, err
	}
	if err := json.Unmarshal(data, &idx); err != nil {
		return cacheIndex{}, err
	}
	return idx, nil
}

func (s *Store) writeCacheIndex(idx cacheIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(s.opts.CacheRoot, cacheIndexFile), data, 0o644)
}

// CacheReport は保持スイープの結果です。
type CacheReport struct {
	Status        string  `json:"status"`
	DeletedFiles  int     `json:"deletedFiles"`
	FreedBytes    int64   `json:"freedBytes"`
	FreedSpaceMB  float64 `json:"freedSpaceMb"`
	CurrentSizeMB float64 `json:"currentSizeMb"`
	MaxSizeMB     float64 `json:"maxSizeMb"`
	// OverCap は保護期間内のファイルしか残っておらず上限を下回れなかったことを示します。
	OverCap bool `json:"overCap,omitempty"`
}

type cachedFile struct {
	path    string
	size    int64
	modTime time.Time
}

// ManageCache はキャッシュ領域だけを対象に、期限切れのファイルを削除し、
// それでも上限を超えていれば古い順に削除します。CacheProtect より新しいファイルと
// 出力ディレクトリのファイルは削除しません。
func (s *Store) ManageCache(ctx context.Context) (CacheReport, error) {
	report := CacheReport{MaxSizeMB: bytesToMB(s.opts.CacheMaxBytes)}
	if !s.opts.CacheEnabled {
		report.Status = "disabled"
		return report, nil
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	files, err := s.listCacheFiles()
	if err != nil {
		return report, fmt.Errorf("キャッシュの走査に失敗しました: %w", err)
	}
	now := s.now()

	remove := func(f cachedFile) bool {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "キャッシュファイルの削除に失敗しました", "path", f.path, "error", err)
			return false
		}
		report.DeletedFiles++
		report.FreedBytes += f.size
		return true
	}

	var kept []cachedFile
	var total int64
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if s.opts.CacheExpiry > 0 && now.Sub(f.modTime) > s.opts.CacheExpiry && remove(f) {
			continue
		}
		kept = append(kept, f)
		total += f.size
	}

	if s.opts.CacheMaxBytes > 0 && total > s.opts.CacheMaxBytes {
		sort.Slice(kept, func(i, j int) bool { return kept[i].modTime.Before(kept[j].modTime) })
		survivors := kept[:0]
		for _, f := range kept {
			if total > s.opts.CacheMaxBytes && now.Sub(f.modTime) >= s.opts.CacheProtect && remove(f) {
				total -= f.size
				continue
			}
			survivors = append(survivors, f)
		}
		kept = survivors
		if total > s.opts.CacheMaxBytes {
			report.OverCap = true
			slog.WarnContext(ctx, "保護期間内のファイルのみのためキャッシュ上限を下回れません",
				"current_bytes", total, "max_bytes", s.opts.CacheMaxBytes)
		}
	}

	if err := s.rebuildCacheIndex(kept, now); err != nil {
		slog.WarnContext(ctx, "キャッシュインデックスの更新に失敗しました", "error", err)
	}

	report.Status = "completed"
	report.FreedSpaceMB = bytesToMB(report.FreedBytes)
	report.CurrentSizeMB = bytesToMB(total)
	slog.InfoContext(ctx, "キャッシュを整理しました",
		"deleted_files", report.DeletedFiles, "freed_mb", report.FreedSpaceMB, "current_mb", report.CurrentSizeMB)
	return report, nil
}

func (s *Store) listCacheFiles() ([]cachedFile, error) {
	root := filepath.Join(s.opts.CacheRoot, cacheImagesDir)
	var files []cachedFile
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		files = append(files, cachedFile{path: path, size: info.Size(), modTime: info.ModTime()})
		return nil
	})
	return files, err
}

func (s *Store) rebuildCacheIndex(files []cachedFile, now time.Time) error {
	old, _ := s.loadCacheIndex()
	idx := cacheIndex{Files: make(map[string]cacheEntry, len(files)), LastUpdated: now}
	for _, f := range files {
		e := cacheEntry{AddedAt: f.modTime, SizeBytes: f.size}
		if prev, ok := old.Files[f.path]; ok {
			e.AddedAt = prev.AddedAt
			e.ContentHash = prev.ContentHash
		}
		idx.Files[f.path] = e
	}
	return s.writeCacheIndex(idx)
}

// CleanupTemp は一時ディレクトリ内で maxAge より古いファイルを削除し、削除件数を返します。
func (s *Store) CleanupTemp(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.opts.TempRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("一時ディレクトリの読み込みに失敗しました: %w", err)
	}
	now := s.now()
	deleted := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		p := filepath.Join(s.opts.TempRoot, e.Name())
		if err := os.Remove(p); err != nil {
			slog.WarnContext(ctx, "一時ファイルの削除に失敗しました", "path", p, "error", err)
			continue
		}
		deleted++
	}
	if deleted > 0 {
		slog.InfoContext(ctx, "一時ファイルを削除しました", "count", deleted)
	}
	return deleted, nil
}
