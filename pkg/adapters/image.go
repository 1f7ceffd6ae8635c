package adapters

import (
	"context"
	"log/slog"
	"os"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
	"github.com/shouni/nanobanana-mcp/pkg/generator"
	"github.com/shouni/nanobanana-mcp/pkg/imgutil"
)

// Load は解決済みのパスを読み込み、プロバイダに渡せる SourceImage にします。
// 大きな画像は JPEG に再エンコードします。失敗は IMAGE_LOAD_ERROR です。
func (l *SourceLoader) Load(ctx context.Context, path, label string) (generator.SourceImage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return generator.SourceImage{}, domain.WrapError(domain.CodeImageLoad, err, "failed to read image %s", path)
	}
	format := imgutil.DetectFormat(data)
	if format == "" {
		return generator.SourceImage{}, domain.NewError(domain.CodeImageLoad, "unsupported or corrupt image: %s", path)
	}

	out, converted := imgutil.NormalizeForUpload(data)
	if converted {
		slog.InfoContext(ctx, "入力画像を JPEG に変換しました", "path", path, "before", len(data), "after", len(out))
		format = "jpeg"
	}
	return generator.SourceImage{
		Data:     out,
		MimeType: imgutil.MIMEType(format),
		Label:    label,
	}, nil
}
