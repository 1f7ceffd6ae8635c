package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
)

// maxLineBytes は 1 メッセージの上限です。
const maxLineBytes = 16 * 1024 * 1024

// ToolHandler はツール呼び出しを処理します。error は JSON-RPC のエラーとして返ります。
type ToolHandler func(ctx context.Context, args map[string]any) (*CallToolResult, error)

// Server は改行区切りの JSON-RPC 2.0 でツールを公開するサーバーです。
type Server struct {
	info ServerInfo

	mu       sync.RWMutex
	order    []string
	tools    map[string]ToolDefinition
	handlers map[string]ToolHandler

	writeMu sync.Mutex
}

// NewServer はツール未登録のサーバーを作ります。
func NewServer(name, version string) *Server {
	return &Server{
		info:     ServerInfo{Name: name, Version: version},
		tools:    make(map[string]ToolDefinition),
		handlers: make(map[string]ToolHandler),
	}
}

// RegisterTool はツールを登録します。同名の登録はエラーです。
func (s *Server) RegisterTool(def ToolDefinition, h ToolHandler) error {
	if err := def.Validate(); err != nil {
		return fmt.Errorf("invalid tool definition: %w", err)
	}
	if h == nil {
		return fmt.Errorf("tool %s: handler is required", def.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[def.Name]; exists {
		return fmt.Errorf("tool %s is already registered", def.Name)
	}
	s.tools[def.Name] = def
	s.handlers[def.Name] = h
	s.order = append(s.order, def.Name)
	slog.Debug("ツールを登録しました", "tool", def.Name)
	return nil
}

// ListTools は登録順にツール定義を返します。
func (s *Server) ListTools() []ToolDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolDefinition, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.tools[name])
	}
	return out
}

// Handle は 1 つのリクエストを処理します。通知の場合は nil を返します。
func (s *Server) Handle(ctx context.Context, msg *Message) *Message {
	resp := s.dispatch(ctx, msg)
	if msg.IsNotification() {
		return nil
	}
	return resp
}

func (s *Server) dispatch(ctx context.Context, msg *Message) *Message {
	if msg.JSONRPC != "2.0" || msg.Method == "" {
		return NewErrorResponse(msg.ID, ErrorCodeInvalidRequest, "invalid request")
	}

	switch msg.Method {
	case "initialize":
		return NewResponse(msg.ID, map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo":      s.info,
		})

	case "notifications/initialized", "initialized":
		return nil

	case "ping":
		return NewResponse(msg.ID, map[string]any{})

	case "tools/list":
		return NewResponse(msg.ID, map[string]any{"tools": s.ListTools()})

	case "tools/call":
		var p callToolParams
		if len(msg.Params) == 0 {
			return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, "missing params")
		}
		if err := json.Unmarshal(msg.Params, &p); err != nil {
			return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
		s.mu.RLock()
		h, ok := s.handlers[p.Name]
		s.mu.RUnlock()
		if !ok {
			return NewErrorResponse(msg.ID, ErrorCodeInvalidParams, fmt.Sprintf("unknown tool: %s", p.Name))
		}
		if p.Arguments == nil {
			p.Arguments = map[string]any{}
		}
		res, err := h(ctx, p.Arguments)
		if err != nil {
			slog.ErrorContext(ctx, "ツール呼び出しに失敗しました", "tool", p.Name, "error", err)
			return NewErrorResponse(msg.ID, ErrorCodeInternalError, err.Error())
		}
		return NewResponse(msg.ID, res)

	default:
		return NewErrorResponse(msg.ID, ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", msg.Method))
	}
}

// Serve は r から改行区切りのメッセージを読み、応答を w に書きます。
// リクエストは並行に処理し、入力が尽きるか ctx が終わると処理中のリクエストを待って戻ります。
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineBytes)
		for sc.Scan() {
			line := bytes.TrimSpace(sc.Bytes())
			if len(line) == 0 {
				continue
			}
			buf := append([]byte(nil), line...)
			select {
			case lines <- buf:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	slog.InfoContext(ctx, "ツールサーバーを開始しました", "name", s.info.Name, "version", s.info.Version)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-readErr:
					if err != nil {
						return fmt.Errorf("入力の読み込みに失敗しました: %w", err)
					}
				default:
				}
				slog.InfoContext(ctx, "入力が終了したためツールサーバーを停止します")
				return nil
			}
			var msg Message
			if err := json.Unmarshal(line, &msg); err != nil {
				s.write(ctx, w, NewErrorResponse(nil, ErrorCodeParseError, "parse error"))
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() {
					if rec := recover(); rec != nil {
						slog.ErrorContext(ctx, "リクエスト処理中にパニックが発生しました", "panic", rec, "stack", string(debug.Stack()))
						if !msg.IsNotification() {
							s.write(ctx, w, NewErrorResponse(msg.ID, ErrorCodeInternalError, "internal error"))
						}
					}
				}()
				if resp := s.Handle(ctx, &msg); resp != nil {
					s.write(ctx, w, resp)
				}
			}()
		}
	}
}

func (s *Server) write(ctx context.Context, w io.Writer, msg *Message) {
	b, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "応答のエンコードに失敗しました", "error", err)
		b, _ = json.Marshal(NewErrorResponse(msg.ID, ErrorCodeInternalError, "internal error"))
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := w.Write(append(b, '\n')); err != nil {
		slog.ErrorContext(ctx, "応答の書き込みに失敗しました", "error", err)
	}
}
