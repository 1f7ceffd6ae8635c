package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/shouni/nanobanana-mcp/internal/builder"
)

var (
	statusBrief   bool
	statusHistory bool
)

var statusCmd = &cobra.Command{
	Use:         "status",
	Short:       "サーバーとプロバイダの状態を JSON で表示します",
	Annotations: map[string]string{requiresAPIKey: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		app, err := builder.BuildApp(ctx, cfg, nil)
		if err != nil {
			return err
		}
		out := app.Service.Status(ctx, map[string]any{
			"detailed":       !statusBrief,
			"includeHistory": statusHistory,
		})
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	statusCmd.Flags().BoolVar(&statusBrief, "brief", false, "簡略版のみを表示します")
	statusCmd.Flags().BoolVar(&statusHistory, "history", false, "直近の操作履歴を含めます")
}
