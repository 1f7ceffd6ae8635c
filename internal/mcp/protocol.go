package mcp

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion は initialize で応答するプロトコルのバージョンです。
const ProtocolVersion = "2024-11-05"

// JSON-RPC 2.0 の標準エラーコードです。
const (
	ErrorCodeParseError     = -32700
	ErrorCodeInvalidRequest = -32600
	ErrorCodeMethodNotFound = -32601
	ErrorCodeInvalidParams  = -32602
	ErrorCodeInternalError  = -32603
)

// Message は JSON-RPC 2.0 のメッセージです。ID が無いものは通知として扱い、応答しません。
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsNotification は応答不要なメッセージかどうかを返します。
func (m *Message) IsNotification() bool {
	return len(m.ID) == 0 || string(m.ID) == "null"
}

// Error は JSON-RPC のエラーオブジェクトです。
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

// NewResponse は成功応答を作ります。
func NewResponse(id json.RawMessage, result any) *Message {
	return &Message{JSONRPC: "2.0", ID: id, Result: result}
}

// NewErrorResponse はエラー応答を作ります。
func NewErrorResponse(id json.RawMessage, code int, message string) *Message {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return &Message{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}}
}

// ServerInfo は initialize で返すサーバー情報です。
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ToolDefinition は tools/list で返すツール定義です。
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// Validate はツール定義の必須項目を検証します。
func (t *ToolDefinition) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if t.InputSchema == nil {
		return fmt.Errorf("tool %s: input schema is required", t.Name)
	}
	return nil
}

// Content は tools/call の結果に含まれるコンテンツ片です。
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CallToolResult は tools/call の結果です。
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// JSONResult は v を JSON テキスト 1 片の結果にします。
func JSONResult(v any, isError bool) (*CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ツール結果のエンコードに失敗しました: %w", err)
	}
	return &CallToolResult{Content: []Content{{Type: "text", Text: string(b)}}, IsError: isError}, nil
}

type callToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}
