package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

const ledgerFilename = "metadata.json"

// ledgerDocument は metadata.json の構造です。Store の外からは参照しません。
type ledgerDocument struct {
	Images      []domain.ImageRecord `json:"images"`
	LastUpdated time.Time            `json:"lastUpdated"`
}

// ledger は 1 つの JSON ドキュメントを読み込み・変更・全体書き換えする台帳です。
// プロセス内の mutex でのみ直列化されるため、複数プロセスからの同時書き込みには対応しません。
type ledger struct {
	path string
	mu   sync.Mutex
}

func newLedger(path string) *ledger {
	return &ledger{path: path}
}

// load は台帳全体を読み込みます。ファイルが無ければ空の台帳を返します。
func (l *ledger) load() (ledgerDocument, error) {
	var doc ledgerDocument
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return doc, nil
		}
		return doc, fmt.Errorf("台帳の読み込みに失敗しました: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("台帳の解析に失敗しました (%s): %w", l.path, err)
	}
	return doc, nil
}

// append は record を末尾に追加して台帳を書き換えます。
func (l *ledger) append(rec domain.ImageRecord, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return err
	}
	doc.Images = append(doc.Images, rec)
	doc.LastUpdated = now

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("台帳のシリアライズに失敗しました: %w", err)
	}
	return writeFileAtomic(l.path, data, 0o644)
}

// records は台帳の全レコードのコピーを返します。
func (l *ledger) records() ([]domain.ImageRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	return doc.Images, nil
}

// Query は履歴取得の条件です。ゼロ値の項目は絞り込みに使いません。
type Query struct {
	OperationType domain.OperationType
	Since         time.Time
	Limit         int
}

func (q Query) match(rec domain.ImageRecord) bool {
	if q.OperationType != "" && rec.OperationType != q.OperationType {
		return false
	}
	if !q.Since.IsZero() && rec.CreatedAt.Before(q.Since) {
		return false
	}
	return true
}

// sortNewestFirst は createdAt の降順に並べます。同時刻は台帳での後勝ちです。
func sortNewestFirst(recs []domain.ImageRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
}
