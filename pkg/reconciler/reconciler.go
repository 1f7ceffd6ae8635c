package reconciler

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/imgutil"
)

// FormatSource は最終形式がどの情報から決まったかを示します。
type FormatSource string

const (
	SourceMIME      FormatSource = "mime"
	SourceSignature FormatSource = "signature"
	SourceRequested FormatSource = "requested"
)

// Result は保存可能な状態に確定した画像です。
type Result struct {
	Data             []byte
	Format           string
	Source           FormatSource
	DeclaredMIME     string
	RequestedFormat  string
	IntegrityWarning string
}

// FormatFromMIME は "image/JPG; q=1" のような値を "jpeg" に正規化します。
func FormatFromMIME(mimeType string) string {
	mt, _, _ := strings.Cut(mimeType, ";")
	mt = strings.ToLower(strings.TrimSpace(mt))
	if mt == "" {
		return ""
	}
	if _, sub, ok := strings.Cut(mt, "/"); ok {
		mt = sub
	}
	if mt == "jpg" {
		return "jpeg"
	}
	return mt
}

// ResolveFormat は 宣言された MIME、シグネチャ、要求形式の順で最終形式を決めます。
func ResolveFormat(declaredMIME string, data []byte, requested domain.OutputFormat) (string, FormatSource) {
	if f := FormatFromMIME(declaredMIME); f != "" {
		return f, SourceMIME
	}
	if f := imgutil.DetectFormat(data); f != "" {
		return f, SourceSignature
	}
	return string(requested), SourceRequested
}

// Reconcile は 1 枚分の応答をデコードし、最終形式を確定します。
// 要求形式との食い違いやシグネチャ不一致はログと警告に留め、エラーにはしません。
func Reconcile(ctx context.Context, p Payload, requested domain.OutputFormat) (Result, error) {
	data, err := p.Decode()
	if err != nil {
		return Result{}, err
	}

	format, source := ResolveFormat(p.MimeType, data, requested)
	res := Result{
		Data:            data,
		Format:          format,
		Source:          source,
		DeclaredMIME:    p.MimeType,
		RequestedFormat: string(requested),
	}

	if format != string(requested) {
		slog.InfoContext(ctx, "要求形式と実際の形式が異なるため実際の形式で保存します",
			"requested", requested, "actual", format, "source", source, "declared_mime", p.MimeType)
	}

	if sniffed := imgutil.DetectFormat(data); sniffed == "" {
		res.IntegrityWarning = "payload does not match a known image signature"
		slog.WarnContext(ctx, "画像シグネチャが既知の形式と一致しません", "bytes", len(data), "kind", p.Kind)
	} else if source == SourceMIME && sniffed != format {
		res.IntegrityWarning = "declared MIME type " + p.MimeType + " does not match " + sniffed + " signature"
		slog.WarnContext(ctx, "宣言された MIME とシグネチャが一致しません", "declared", format, "sniffed", sniffed)
	}
	return res, nil
}

// Failure は一括処理で失敗した 1 件の記録です。
type Failure struct {
	Index int
	Err   error
}

// ReconcileAll は複数候補を処理します。失敗した候補はスキップして記録し、全体は止めません。
func ReconcileAll(ctx context.Context, payloads []Payload, requested domain.OutputFormat) ([]Result, []Failure) {
	results := make([]Result, 0, len(payloads))
	var failures []Failure
	for i, p := range payloads {
		r, err := Reconcile(ctx, p, requested)
		if err != nil {
			slog.WarnContext(ctx, "候補画像のデコードに失敗したためスキップします", "index", i, "error", err)
			failures = append(failures, Failure{Index: i, Err: err})
			continue
		}
		results = append(results, r)
	}
	return results, failures
}
