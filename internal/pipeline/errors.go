package pipeline

import (
	"context"
	"errors"
	"fmt"
)

// Kind 错误分类。编排器按分类决定重试策略，
// 并把 "Kind: message" 原样写入任务的 error_message。
type Kind string

const (
	KindValidation Kind = "ValidationError"  // 输入非法，任务不会被创建
	KindDecode     Kind = "DecodeError"      // 视频容器/编码无法解析，不重试
	KindEmptyVideo Kind = "EmptyVideoError"  // 视频解不出任何帧，不重试
	KindTransient  Kind = "TransientIOError" // 存储/网络抖动，阶段边界指数退避重试
	KindInference  Kind = "InferenceError"   // 模型输出非法，确定性错误，不重试
	KindRender     Kind = "RenderError"      // 编码渲染失败，重试一次
	KindTimeout    Kind = "TimeoutError"     // 阶段墙钟超时，不重试
	KindCancelled  Kind = "CancellationError"
	KindInternal   Kind = "InternalError"
)

// Error 带分类的流水线错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError 创建分类错误
func NewError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError 包装底层错误并分类
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...) + ": " + err.Error(), Err: err}
}

// ClassifyKind 提取错误分类，未分类错误归为 InternalError
func ClassifyKind(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	return KindInternal
}

// IsKind 判断错误是否属于某个分类
func IsKind(err error, kind Kind) bool {
	return ClassifyKind(err) == kind
}

// Retryable 该分类是否允许在阶段边界重试
func Retryable(kind Kind) bool {
	return kind == KindTransient
}
