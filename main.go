package main

import (
	"github.com/shouni/nanobanana-mcp/cmd"
)

// main はコマンドライン解析と実行を cmd パッケージに委ねます。
func main() {
	cmd.Execute()
}
