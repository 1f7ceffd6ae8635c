package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shouni/nanobanana-mcp/pkg/imgutil"
)

// Fetcher は URL からバイト列を取得します。httpkit.ClientInterface が満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// SourceCacher は取得済みリモート画像のキャッシュです。
type SourceCacher interface {
	Get(key string) (any, bool)
	Set(key string, value any, d time.Duration)
}

// SourceLoader は編集・合成の入力画像パスを解決します。
// http(s) のパスは SSRF 検査の後にダウンロードして一時ディレクトリに置き、ローカルパスとして扱います。
type SourceLoader struct {
	fetcher  Fetcher
	cache    SourceCacher
	cacheTTL time.Duration
	tempDir  string

	urlCheck func(rawURL string) (bool, error)
}

// NewSourceLoader は依存関係を注入して SourceLoader を初期化します。
// fetcher が nil の場合はリモート画像を受け付けません。cache は nil を許容します。
func NewSourceLoader(fetcher Fetcher, cache SourceCacher, cacheTTL time.Duration, tempDir string) (*SourceLoader, error) {
	if fetcher != nil && tempDir == "" {
		return nil, fmt.Errorf("tempDir is required when remote sources are enabled")
	}
	return &SourceLoader{
		fetcher:  fetcher,
		cache:    cache,
		cacheTTL: cacheTTL,
		tempDir:  tempDir,
		urlCheck: isSafeURL,
	}, nil
}

// Resolve は path を読み取り可能なローカルファイルの絶対パスに解決します。
func (l *SourceLoader) Resolve(ctx context.Context, path string) (string, error) {
	if isRemote(path) {
		return l.fetchToTemp(ctx, path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("絶対パスへの変換に失敗しました: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	f, err := os.Open(abs)
	if err != nil {
		return "", err
	}
	return abs, f.Close()
}

func isRemote(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fetchToTemp はリモート画像を取得して一時ディレクトリに保存します。同じ URL は同じファイル名になります。
func (l *SourceLoader) fetchToTemp(ctx context.Context, rawURL string) (string, error) {
	if l.fetcher == nil {
		return "", fmt.Errorf("remote image sources are disabled")
	}

	data, err := l.fetch(ctx, rawURL)
	if err != nil {
		return "", err
	}
	format := imgutil.DetectFormat(data)
	if format == "" {
		return "", fmt.Errorf("downloaded content is not a supported image: %s", rawURL)
	}

	sum := sha256.Sum256([]byte(rawURL))
	path := filepath.Join(l.tempDir, "remote_"+hex.EncodeToString(sum[:8])+"."+format)
	if err := os.MkdirAll(l.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("一時ディレクトリの作成に失敗しました: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("一時ファイルの書き込みに失敗しました: %w", err)
	}
	slog.InfoContext(ctx, "リモート画像を取得しました", "url", rawURL, "path", path, "size", len(data))
	return path, nil
}

func (l *SourceLoader) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if l.cache != nil {
		if cached, found := l.cache.Get(rawURL); found {
			if data, ok := cached.([]byte); ok {
				return data, nil
			}
			slog.WarnContext(ctx, "キャッシュデータが不正な型です", "url", rawURL, "type", fmt.Sprintf("%T", cached))
		}
	}

	if safe, err := l.urlCheck(rawURL); !safe || err != nil {
		slog.WarnContext(ctx, "SSRFの可能性がある、または不正なURLをブロックしました", "url", rawURL, "error", err)
		return nil, fmt.Errorf("unsafe url %s: %w", rawURL, err)
	}

	data, err := l.fetcher.FetchBytes(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("画像のダウンロードに失敗しました: %w", err)
	}
	if l.cache != nil {
		l.cache.Set(rawURL, data, l.cacheTTL)
	}
	return data, nil
}

// isSafeURL は SSRF 対策として URL を検証します。
// 名前解決されたすべての IP アドレスに対してプライベート IP チェックを行います。
func isSafeURL(rawURL string) (bool, error) {
	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return false, fmt.Errorf("URLパース失敗: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return false, fmt.Errorf("不許可スキーム: %s", parsedURL.Scheme)
	}

	host := parsedURL.Hostname()
	var ips []net.IP
	if ip := net.ParseIP(host); ip != nil {
		ips = []net.IP{ip}
	} else {
		resolved, err := net.LookupIP(host)
		if err != nil {
			return false, fmt.Errorf("名前解決失敗: %w", err)
		}
		ips = resolved
	}
	if len(ips) == 0 {
		return false, fmt.Errorf("IPが見つかりません")
	}

	for _, ip := range ips {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
			return false, fmt.Errorf("制限されたネットワークへのアクセスを検知: %s", ip.String())
		}
	}
	return true, nil
}
