package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode は呼び出し側が分岐に使う安定した識別子です。メッセージ本文で分岐してはいけません。
type ErrorCode string

const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR"
	CodeUnsafeContent ErrorCode = "UNSAFE_CONTENT"
	CodeAPI           ErrorCode = "API_ERROR"
	CodeRateLimited   ErrorCode = "RATE_LIMITED"
	CodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	CodeTimeout       ErrorCode = "TIMEOUT_ERROR"
	CodeDataFormat    ErrorCode = "DATA_FORMAT_ERROR"
	CodeImageLoad     ErrorCode = "IMAGE_LOAD_ERROR"
	CodeSave          ErrorCode = "SAVE_ERROR"
	CodeNoResult      ErrorCode = "NO_RESULT_ERROR"
	CodeInternal      ErrorCode = "INTERNAL_ERROR"
)

// ToolError はツール境界まで運ばれる型付きエラーです。
type ToolError struct {
	Code    ErrorCode
	Message string
	Field   string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewError は原因を持たない ToolError を作ります。
func NewError(code ErrorCode, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError は原因 err を保持した ToolError を作ります。
func WrapError(code ErrorCode, err error, format string, args ...any) *ToolError {
	return &ToolError{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// NewValidationError はフィールド名付きの検証エラーを作ります。
func NewValidationError(field, format string, args ...any) *ToolError {
	return &ToolError{
		Code:    CodeValidation,
		Message: fmt.Sprintf("%s: %s", field, fmt.Sprintf(format, args...)),
		Field:   field,
	}
}

// CodeOf は err の連鎖から ErrorCode を取り出します。ToolError を含まない場合は INTERNAL_ERROR です。
func CodeOf(err error) ErrorCode {
	var te *ToolError
	if errors.As(err, &te) {
		return te.Code
	}
	return CodeInternal
}

// ValidationErrors はフィールド単位の違反を集約します。
type ValidationErrors []*ToolError

// Add は違反を追加します。nil は無視します。
func (v *ValidationErrors) Add(err *ToolError) {
	if err != nil {
		*v = append(*v, err)
	}
}

// Err は違反が無ければ nil、あれば全件をまとめた 1 つの ToolError を返します。
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	if len(v) == 1 {
		return v[0]
	}
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return &ToolError{
		Code:    CodeValidation,
		Message: strings.Join(msgs, "; "),
		Field:   v[0].Field,
	}
}
