package errors

import "net/http"

// 通用错误码 1xxx
var (
	// ErrServer 服务器错误
	ErrServer = New(1000, "服务器异常", http.StatusInternalServerError)
	// ErrBadRequest 请求参数错误
	ErrBadRequest = New(1001, "请求异常", http.StatusBadRequest)
	// ErrUnauthorized 未授权
	ErrUnauthorized = New(1002, "授权异常", http.StatusUnauthorized)
	// ErrForbidden 禁止访问
	ErrForbidden = New(1003, "禁止访问", http.StatusForbidden)
	// ErrNotFound 资源不存在
	ErrNotFound = New(1004, "资源不存在", http.StatusNotFound)
	// ErrTooManyRequests 请求过于频繁
	ErrTooManyRequests = New(1005, "请求过于频繁", http.StatusTooManyRequests)
	// ErrServiceUnavailable 服务不可用
	ErrServiceUnavailable = New(1006, "服务不可用", http.StatusServiceUnavailable)
)
