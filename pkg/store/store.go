package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// Options は Store の保存先と保持ポリシーです。
type Options struct {
	OutputRoot string
	CacheRoot  string
	TempRoot   string

	CacheEnabled  bool
	CacheExpiry   time.Duration
	CacheMaxBytes int64
	// CacheProtect より新しいキャッシュファイルはサイズ上限を超えていても削除しません。
	// ゼロの場合は CacheExpiry と同じです。
	CacheProtect time.Duration

	// Now はテスト用の時計です。nil の場合は time.Now を使います。
	Now func() time.Time
}

// Store は画像バイナリと台帳を所有する唯一の書き手です。
type Store struct {
	opts   Options
	ledger *ledger
	now    func() time.Time

	// saveMu はファイル名の確保から台帳への追記までを直列化します。
	saveMu sync.Mutex
	// cacheMu はキャッシュ領域とそのインデックスを保護します。
	cacheMu sync.Mutex
}

// New は保存ディレクトリを作成して Store を初期化します。
func New(opts Options) (*Store, error) {
	if opts.OutputRoot == "" {
		return nil, fmt.Errorf("出力ディレクトリが指定されていません")
	}
	if opts.CacheRoot == "" {
		opts.CacheRoot = filepath.Join(opts.OutputRoot, ".cache")
	}
	if opts.TempRoot == "" {
		opts.TempRoot = filepath.Join(os.TempDir(), "nanobanana")
	}
	if opts.CacheProtect <= 0 {
		opts.CacheProtect = opts.CacheExpiry
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	dirs := []string{opts.TempRoot}
	for _, op := range domain.OperationTypes {
		dirs = append(dirs, filepath.Join(opts.OutputRoot, string(op)))
	}
	if opts.CacheEnabled {
		dirs = append(dirs, filepath.Join(opts.CacheRoot, cacheImagesDir))
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("ディレクトリの作成に失敗しました (%s): %w", d, err)
		}
	}

	return &Store{
		opts:   opts,
		ledger: newLedger(filepath.Join(opts.OutputRoot, ledgerFilename)),
		now:    now,
	}, nil
}

// OutputRoot は出力ディレクトリです。
func (s *Store) OutputRoot() string { return s.opts.OutputRoot }

// TempDir はリモート画像などの一時ファイル置き場です。
func (s *Store) TempDir() string { return s.opts.TempRoot }

// SaveInput は 1 枚分の保存要求です。Record のうちファイルに由来する項目は Save が埋めます。
type SaveInput struct {
	Data   []byte
	Format string
	Record domain.ImageRecord
}

// Save は画像を <outputRoot>/<operationType>/<filename> にアトミックに書き込み、台帳に記録します。
// 書き込み後にファイルが存在しなければ失敗、サイズ不一致は警告のみです。
func (s *Store) Save(ctx context.Context, in SaveInput) (domain.ImageRecord, error) {
	rec := in.Record
	if !rec.OperationType.Valid() {
		return domain.ImageRecord{}, domain.NewError(domain.CodeSave, "unknown operation type %q", rec.OperationType)
	}
	if len(in.Data) == 0 {
		return domain.ImageRecord{}, domain.NewError(domain.CodeSave, "image data is empty")
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	createdAt := s.now()
	dir := filepath.Join(s.opts.OutputRoot, string(rec.OperationType))
	name := uniqueName(GenerateFilename(rec.OperationType, rec.OriginalPrompt, in.Format, createdAt), func(n string) bool {
		_, err := os.Stat(filepath.Join(dir, n))
		return err == nil
	})
	path := filepath.Join(dir, name)

	if err := writeFileAtomic(path, in.Data, 0o644); err != nil {
		return domain.ImageRecord{}, domain.WrapError(domain.CodeSave, err, "failed to write %s", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return domain.ImageRecord{}, domain.WrapError(domain.CodeSave, err, "file missing after write: %s", path)
	}
	if info.Size() != int64(len(in.Data)) {
		slog.WarnContext(ctx, "保存後のファイルサイズが一致しません",
			"path", path, "expected", len(in.Data), "actual", info.Size())
	}

	sum := sha256.Sum256(in.Data)
	rec.Filename = name
	rec.Filepath = path
	rec.CreatedAt = createdAt
	rec.FileSizeBytes = int64(len(in.Data))
	rec.Format = in.Format
	rec.ContentHash = hex.EncodeToString(sum[:])

	if err := s.ledger.append(rec, createdAt); err != nil {
		if rmErr := os.Remove(path); rmErr != nil {
			slog.WarnContext(ctx, "台帳に記録できなかった画像の削除に失敗しました", "path", path, "error", rmErr)
		}
		return domain.ImageRecord{}, domain.WrapError(domain.CodeSave, err, "failed to update ledger")
	}

	if s.opts.CacheEnabled {
		if err := s.copyToCache(path, in.Data, rec.ContentHash); err != nil {
			slog.WarnContext(ctx, "キャッシュへのコピーに失敗しました", "path", path, "error", err)
		}
	}

	slog.InfoContext(ctx, "画像を保存しました",
		"path", path, "operation", rec.OperationType, "size", rec.FileSizeBytes, "format", rec.Format)
	return rec, nil
}

// History は条件に合うレコードを createdAt の新しい順に返します。
func (s *Store) History(ctx context.Context, q Query) ([]domain.ImageRecord, error) {
	all, err := s.ledger.records()
	if err != nil {
		return nil, err
	}
	out := make([]domain.ImageRecord, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if q.match(all[i]) {
			out = append(out, all[i])
		}
	}
	sortNewestFirst(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Match は類似検索の 1 件です。
type Match struct {
	Record     domain.ImageRecord `json:"record"`
	Similarity float64            `json:"similarity"`
}

// FindByPromptSimilarity は元プロンプトとの Jaccard 係数が threshold 以上のレコードを類似度順に返します。
// 小文字化して空白で区切った単語集合の重なりを見るだけで、意味的な類似度ではありません。
func (s *Store) FindByPromptSimilarity(ctx context.Context, query string, threshold float64) ([]Match, error) {
	recs, err := s.History(ctx, Query{})
	if err != nil {
		return nil, err
	}
	qset := wordSet(query)
	var out []Match
	for _, r := range recs {
		sim := Jaccard(qset, wordSet(r.OriginalPrompt))
		if sim >= threshold && sim > 0 {
			out = append(out, Match{Record: r, Similarity: sim})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	return out, nil
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = struct{}{}
	}
	return set
}

// Jaccard は 2 つの単語集合の |A∩B| / |A∪B| です。両方空なら 0 です。
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// Stats はストレージ全体の統計です。
type Stats struct {
	OutputDirectory string                       `json:"outputDirectory"`
	CacheDirectory  string                       `json:"cacheDirectory"`
	TempDirectory   string                       `json:"tempDirectory"`
	Output          DirStats                     `json:"output"`
	Cache           DirStats                     `json:"cache"`
	Temp            DirStats                     `json:"temp"`
	TotalImages     int                          `json:"totalImages"`
	ByOperation     map[domain.OperationType]int `json:"byOperation"`
}

// Stats は各ディレクトリの使用量と台帳の件数を集計します。
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		OutputDirectory: s.opts.OutputRoot,
		CacheDirectory:  s.opts.CacheRoot,
		TempDirectory:   s.opts.TempRoot,
		ByOperation:     make(map[domain.OperationType]int, len(domain.OperationTypes)),
	}
	var err error
	// 出力ディレクトリ配下に置かれたキャッシュ・一時領域と台帳は画像として数えません。
	if st.Output, err = dirStats(s.opts.OutputRoot, s.opts.CacheRoot, s.opts.TempRoot, s.ledger.path); err != nil {
		return st, fmt.Errorf("出力ディレクトリの集計に失敗しました: %w", err)
	}
	if st.Cache, err = dirStats(s.opts.CacheRoot); err != nil {
		return st, fmt.Errorf("キャッシュディレクトリの集計に失敗しました: %w", err)
	}
	if st.Temp, err = dirStats(s.opts.TempRoot); err != nil {
		return st, fmt.Errorf("一時ディレクトリの集計に失敗しました: %w", err)
	}

	recs, err := s.ledger.records()
	if err != nil {
		return st, err
	}
	for _, op := range domain.OperationTypes {
		st.ByOperation[op] = 0
	}
	for _, r := range recs {
		st.ByOperation[r.OperationType]++
	}
	st.TotalImages = len(recs)
	return st, nil
}
