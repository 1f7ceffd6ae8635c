package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/shouni/nanobanana-mcp/pkg/domain"
)

var (
	truthy = map[string]bool{"true": true, "1": true, "yes": true, "on": true}
	falsy  = map[string]bool{"false": true, "0": true, "no": true, "off": true}
)

// CoerceInt は文字列化された整数も受け付けて int に変換します。
// nil は既定値、数値以外の文字列はエラーです。
func CoerceInt(field string, raw any, def int) (int, *domain.ToolError) {
	switch v := raw.(type) {
	case nil:
		return def, nil
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case float64:
		// JSON の数値はすべて float64 で届きます。
		if v != math.Trunc(v) {
			return 0, domain.NewValidationError(field, "not a valid integer: %v", v)
		}
		return int(v), nil
	case json.Number:
		i, err := v.Int64()
		if err != nil {
			return 0, domain.NewValidationError(field, "not a valid integer: %q", v.String())
		}
		return int(i), nil
	case string:
		s := strings.TrimSpace(v)
		i, err := strconv.Atoi(s)
		if err != nil {
			return 0, domain.NewValidationError(field, "not a valid integer: %q", v)
		}
		return i, nil
	default:
		return 0, domain.NewValidationError(field, "not a valid integer: unsupported type %T", raw)
	}
}

// CoerceBool は文字列や数値で渡された真偽値を解釈します。
func CoerceBool(field string, raw any, def bool) (bool, *domain.ToolError) {
	switch v := raw.(type) {
	case nil:
		return def, nil
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return false, domain.NewValidationError(field, "not a valid boolean: %q", v.String())
		}
		return f != 0, nil
	case string:
		s := strings.ToLower(strings.TrimSpace(v))
		if truthy[s] {
			return true, nil
		}
		if falsy[s] {
			return false, nil
		}
		return false, domain.NewValidationError(field, "not a valid boolean: %q", v)
	default:
		return false, domain.NewValidationError(field, "not a valid boolean: unsupported type %T", raw)
	}
}

// CoerceText はトリム済みの文字列を返します。required の場合は空を拒否し、長さ制限を rune 単位で検査します。
func CoerceText(field string, raw any, required bool, minLen, maxLen int) (string, *domain.ToolError) {
	if raw == nil {
		if required {
			return "", domain.NewValidationError(field, "is required")
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", domain.NewValidationError(field, "must be a string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		if required {
			return "", domain.NewValidationError(field, "is required")
		}
		return "", nil
	}
	n := len([]rune(s))
	if minLen > 0 && n < minLen {
		return "", domain.NewValidationError(field, "must be at least %d characters (got %d)", minLen, n)
	}
	if maxLen > 0 && n > maxLen {
		return "", domain.NewValidationError(field, "must be at most %d characters (got %d)", maxLen, n)
	}
	return s, nil
}

// CoerceEnum は閉じた集合に対して大文字小文字を区別して照合します。未指定は既定値です。
func CoerceEnum[T ~string](field string, raw any, def T, allowed []T) (T, *domain.ToolError) {
	s, terr := CoerceText(field, raw, false, 0, 0)
	if terr != nil {
		return def, terr
	}
	if s == "" {
		return def, nil
	}
	for _, a := range allowed {
		if string(a) == s {
			return a, nil
		}
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = string(a)
	}
	return def, domain.NewValidationError(field, "must be one of %s, got %q", strings.Join(names, ", "), s)
}

// CoerceStringList は配列、JSON 配列の文字列、カンマ区切り文字列のいずれも受け付けます。
func CoerceStringList(field string, raw any) ([]string, *domain.ToolError) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []string:
		return compact(v), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, domain.NewValidationError(field, "item %d must be a string, got %T", i, item)
			}
			out = append(out, s)
		}
		return compact(out), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, nil
		}
		if strings.HasPrefix(s, "[") {
			var items []string
			if err := json.Unmarshal([]byte(s), &items); err != nil {
				return nil, domain.NewValidationError(field, "not a valid list: %v", err)
			}
			return compact(items), nil
		}
		return compact(strings.Split(s, ",")), nil
	default:
		return nil, domain.NewValidationError(field, "must be a list of strings, got %T", raw)
	}
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// lookup は camelCase とスネークケースの両方の引数名を許容します。
func lookup(args map[string]any, names ...string) any {
	for _, n := range names {
		if v, ok := args[n]; ok && v != nil {
			return v
		}
	}
	return nil
}
