// Package errors 业务错误：错误码、HTTP 状态码与原始错误。
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error 业务错误
type Error struct {
	Code     int    `json:"code"`    // 业务错误码
	Message  string `json:"message"` // 返回给客户端的信息
	HttpCode int    `json:"-"`       // HTTP 状态码
	Err      error  `json:"-"`       // 原始错误，不返回给客户端
}

// Error 实现 error 接口
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap 实现 errors.Unwrap 接口
func (e *Error) Unwrap() error {
	return e.Err
}

// New 创建错误，httpCode 缺省为 500
func New(code int, message string, httpCode ...int) *Error {
	hc := http.StatusInternalServerError
	if len(httpCode) > 0 {
		hc = httpCode[0]
	}
	return &Error{Code: code, HttpCode: hc, Message: message}
}

// WithError 附加原始错误（返回新实例，预定义错误不会被修改）
func (e *Error) WithError(err error) *Error {
	c := *e
	c.Err = err
	return &c
}

// WithMessage 替换错误信息（返回新实例）
func (e *Error) WithMessage(message string) *Error {
	c := *e
	c.Message = message
	return &c
}

// WithMessagef 格式化替换错误信息
func (e *Error) WithMessagef(format string, args ...any) *Error {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Is 两个 *Error 错误码相同即视为同一错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.Code == t.Code
}

// From 提取 *Error，非业务错误包装为 ErrServer
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return ErrServer.WithError(err)
}

// HTTPStatus 返回错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return From(err).HttpCode
}

// As 同标准库 errors.As
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is 同标准库 errors.Is
func Is(err, target error) bool {
	return errors.Is(err, target)
}
