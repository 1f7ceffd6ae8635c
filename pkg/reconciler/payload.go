package reconciler

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

// PayloadKind はプロバイダ応答の形の種類です。
type PayloadKind int

const (
	// KindBinary は生のバイト列です。
	KindBinary PayloadKind = iota
	// KindEncoded は base64 などでエンコードされた文字列です。
	KindEncoded
	// KindFields は複数の候補キーのいずれかにデータを持つマップです。
	KindFields
)

func (k PayloadKind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindEncoded:
		return "encoded"
	case KindFields:
		return "fields"
	}
	return fmt.Sprintf("PayloadKind(%d)", int(k))
}

// dataKeys は KindFields からデータを探すキーの優先順です。
var dataKeys = []string{"data", "bytes", "image_data"}

var mimeKeys = []string{"mime_type", "mimeType", "mime"}

// Payload は画像 1 枚分の応答を表すタグ付きの値です。
type Payload struct {
	Kind     PayloadKind
	Binary   []byte
	Encoded  string
	Fields   map[string]any
	MimeType string
}

// BinaryPayload は生データの Payload を作ります。
func BinaryPayload(data []byte, mimeType string) Payload {
	return Payload{Kind: KindBinary, Binary: data, MimeType: mimeType}
}

// EncodedPayload はエンコード済み文字列の Payload を作ります。data URI も受け付けます。
func EncodedPayload(s string, mimeType string) Payload {
	if mt, body, ok := splitDataURI(s); ok {
		if mimeType == "" {
			mimeType = mt
		}
		s = body
	}
	return Payload{Kind: KindEncoded, Encoded: s, MimeType: mimeType}
}

// FieldsPayload はマップ形式の Payload を作ります。MIME タイプはマップから拾います。
func FieldsPayload(fields map[string]any) Payload {
	p := Payload{Kind: KindFields, Fields: fields}
	for _, k := range mimeKeys {
		if s, ok := fields[k].(string); ok && s != "" {
			p.MimeType = s
			break
		}
	}
	return p
}

// Decode はどの形であってもバイト列に変換します。
func (p Payload) Decode() ([]byte, error) {
	switch p.Kind {
	case KindBinary:
		if len(p.Binary) == 0 {
			return nil, domain.NewError(domain.CodeDataFormat, "image payload is empty")
		}
		return p.Binary, nil
	case KindEncoded:
		return decodeString(p.Encoded)
	case KindFields:
		for _, k := range dataKeys {
			v, ok := p.Fields[k]
			if !ok || v == nil {
				continue
			}
			switch d := v.(type) {
			case []byte:
				return BinaryPayload(d, p.MimeType).Decode()
			case string:
				return decodeString(d)
			default:
				return nil, domain.NewError(domain.CodeDataFormat, "image payload under %q has unsupported type %T", k, v)
			}
		}
		return nil, domain.NewError(domain.CodeDataFormat, "no image data found under any of %s", strings.Join(dataKeys, ", "))
	}
	return nil, domain.NewError(domain.CodeDataFormat, "unknown payload kind %s", p.Kind)
}

func decodeString(s string) ([]byte, error) {
	if _, body, ok := splitDataURI(s); ok {
		s = body
	}
	data, err := DecodeBase64(s)
	if err != nil {
		return nil, domain.WrapError(domain.CodeDataFormat, err, "image payload is not valid base64")
	}
	if len(data) == 0 {
		return nil, domain.NewError(domain.CodeDataFormat, "image payload is empty")
	}
	return data, nil
}

// DecodeBase64 は標準 base64 を試し、失敗したら URL セーフ形式として読み直します。
func DecodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	std := strings.NewReplacer("-", "+", "_", "/").Replace(s)
	if rem := len(std) % 4; rem != 0 {
		std += strings.Repeat("=", 4-rem)
	}
	data, urlErr := base64.StdEncoding.DecodeString(std)
	if urlErr != nil {
		return nil, fmt.Errorf("standard: %v, url-safe: %w", err, urlErr)
	}
	return data, nil
}

// splitDataURI は "data:image/png;base64,...." を MIME と本体に分けます。
func splitDataURI(s string) (string, string, bool) {
	if !strings.HasPrefix(s, "data:") {
		return "", "", false
	}
	header, body, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", "", false
	}
	mt, _, _ := strings.Cut(header, ";")
	return mt, body, true
}
