package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidSelector  = errors.New("invalid averaging/option selector")
	ErrInvalidParameter = errors.New("invalid pricing parameter")
	ErrSourceExhausted  = errors.New("gaussian source exhausted")
)

// 错误码，用于事件、HTTP 响应与指标标签
const (
	ErrorCodeInvalidSelector     = "INVALID_SELECTOR"
	ErrorCodeInvalidParameter    = "INVALID_PARAMETER"
	ErrorCodeRandomSourceFailure = "RANDOM_SOURCE_FAILURE"
	ErrorCodeCancelled           = "CANCELLED"
	ErrorCodeInternal            = "INTERNAL"
)

// Checkpoint 中断时已完成的部分累加结果
type Checkpoint struct {
	Sum               float64 `json:"sum"`                // 未折现收益和
	SquaredDeviations float64 `json:"squared_deviations"` // 收益离差平方和
	Completed         int     `json:"completed"`
}

// CancelledError 定价在两次模拟之间被取消
type CancelledError struct {
	Checkpoint Checkpoint
	Err        error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("pricing cancelled after %d replications: %v", e.Checkpoint.Completed, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

// SourceError 标记来自随机数源的失败，Unwrap 返回原始错误
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "random source failure: " + e.Err.Error() }

func (e *SourceError) Unwrap() error { return e.Err }

// ErrorCode 将错误归类为错误码
func ErrorCode(err error) string {
	var cancelled *CancelledError
	var source *SourceError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidSelector):
		return ErrorCodeInvalidSelector
	case errors.Is(err, ErrInvalidParameter):
		return ErrorCodeInvalidParameter
	case errors.As(err, &cancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeCancelled
	case errors.As(err, &source), errors.Is(err, ErrSourceExhausted):
		return ErrorCodeRandomSourceFailure
	default:
		return ErrorCodeInternal
	}
}
