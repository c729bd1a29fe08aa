package service

import (
	"errors"
	"fmt"
)

// ResultCode 事件处理结果码。0 表示成功，正数为各失败类别，
// 未预期的失败统一使用负数通用码。
type ResultCode int

const (
	ResultOK               ResultCode = 0
	ResultMissingArgument  ResultCode = 1
	ResultSemanticMismatch ResultCode = 2
	ResultAuthMismatch     ResultCode = 3
	ResultNotFound         ResultCode = 4
	ResultUnexpected       ResultCode = -1
)

// Error 带结果码的业务错误。在检测点就地构造并抛出，
// 由处理器边界统一折叠为 {resultCode, message}，绝不跨出外部边界。
type Error struct {
	Code    ResultCode
	Message string
	// Cause 底层错误（如存储层失败），仅用于日志，不外泄给调用方
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("result %d: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("result %d: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewMissingArgument 指定事件类型缺少必需字段。
func NewMissingArgument(field string) *Error {
	return &Error{Code: ResultMissingArgument, Message: fmt.Sprintf("missing required argument: %s", field)}
}

// NewSemanticMismatch 字段取值违反了跨字段规则。
func NewSemanticMismatch(format string, args ...interface{}) *Error {
	return &Error{Code: ResultSemanticMismatch, Message: fmt.Sprintf(format, args...)}
}

// NewAuthMismatch 事件中的操作者与已认证调用方身份不一致。
func NewAuthMismatch(got, want string) *Error {
	return &Error{Code: ResultAuthMismatch, Message: fmt.Sprintf("acting user '%s' does not match authenticated caller '%s'", got, want)}
}

// NewNotFound 房间不存在且不允许创建。
func NewNotFound(gameID string) *Error {
	return &Error{Code: ResultNotFound, Message: fmt.Sprintf("room '%s' not found", gameID)}
}

// NewUnexpected 包装非业务分类的失败（存储层错误等）。
func NewUnexpected(err error) *Error {
	return &Error{Code: ResultUnexpected, Message: fmt.Sprintf("%T: %v", err, err), Cause: err}
}

// CollapseError 在边界把任意错误折叠为 (结果码, 消息) 对。
// 非 *Error 类型的错误按未预期失败处理，携带其类型名与消息。
func CollapseError(err error) (ResultCode, string) {
	if err == nil {
		return ResultOK, "ok"
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code, svcErr.Message
	}
	return ResultUnexpected, fmt.Sprintf("%T: %v", err, err)
}
