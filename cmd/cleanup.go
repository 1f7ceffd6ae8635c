package cmd

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/nanobanana-mcp/internal/builder"
)

var tempMaxAge time.Duration

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "キャッシュの保持ポリシーを適用し、古い一時ファイルを削除します",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := builder.BuildStore(cfg)
		if err != nil {
			return err
		}
		maxAge := cfg.TempMaxAge
		if cmd.Flags().Changed("temp-max-age") {
			maxAge = tempMaxAge
		}
		report, removed, err := builder.Sweep(ctx, st, maxAge, nil)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"success":          true,
			"cache":            report,
			"tempFilesRemoved": removed,
		})
	},
}

func init() {
	cleanupCmd.Flags().DurationVar(&tempMaxAge, "temp-max-age", 0, "これより古い一時ファイルを削除します (既定は設定の tempMaxAge)")
}
