package tools

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// GenerateBatch は複数の generate 要求を並行に処理し、入力と同じ順序でエンベロープを返します。
// プロバイダ呼び出しはセマフォで制限されるため、上限を超えた要求は失敗せずに待ちます。
// 1 件の失敗は他の要求に影響しません。
func (s *Service) GenerateBatch(ctx context.Context, batch []map[string]any) []any {
	out := make([]any, len(batch))
	var g errgroup.Group
	for i, args := range batch {
		g.Go(func() error {
			out[i] = s.Generate(ctx, args)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
