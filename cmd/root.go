package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shouni/nanobanana-mcp/internal/config"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

// requiresAPIKey はプロバイダと通信するコマンドに付ける注釈です。
const requiresAPIKey = "requiresAPIKey"

var rootCmd = &cobra.Command{
	Use:               "nanobanana-mcp",
	Short:             "Gemini 2.5 Flash Image をツールとして公開するサーバー",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRunAppE,
}

// preRunAppE は設定の読み込みとロガーの初期化を行い、必要なコマンドでは API キーの存在を確認します。
func preRunAppE(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") || cmd.Root().PersistentFlags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// 標準出力はツールの通信路なので、ログは必ず標準エラーに出します。
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if cmd.Annotations[requiresAPIKey] == "true" && cfg.APIKey == "" {
		return fmt.Errorf("エラー: 環境変数 GEMINI_API_KEY (または GOOGLE_API_KEY) が設定されていません。Gemini API の利用には必須です")
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (debug|info|warn|error)", s)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML 設定ファイルのパス (NANOBANANA_CONFIG でも指定可)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", config.DefaultLogLevel, "ログレベル (debug|info|warn|error)")

	rootCmd.AddCommand(serveCmd, statusCmd, cleanupCmd)
}

// Execute はアプリケーションのエントリポイントです。
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
