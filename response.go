package reviewhub

import (
	"fmt"
	"net/http"
)

// Response 统一响应结构
type Response struct {
	Code    int    `json:"code"`               // 业务状态码
	Data    any    `json:"data"`               // 响应数据
	Message string `json:"message"`            // 响应消息
	TraceID string `json:"trace_id,omitempty"` // 追踪ID（可选）
}

// NewResponse 创建响应
func NewResponse(code int, data any, message string) *Response {
	return &Response{
		Code:    code,
		Data:    data,
		Message: message,
	}
}

// WithTraceID 设置追踪ID
func (r *Response) WithTraceID(traceID string) *Response {
	r.TraceID = traceID
	return r
}

// Success 创建成功响应
func Success(data any) *Response {
	return NewResponse(http.StatusOK, data, "success")
}

// SuccessWithMessage 创建成功响应（自定义消息）
func SuccessWithMessage(data any, message string) *Response {
	return NewResponse(http.StatusOK, data, message)
}

// Fail 创建失败响应
func Fail(code int, message string) *Response {
	return NewResponse(code, nil, message)
}

// PageResp 分页响应结构
type PageResp struct {
	List  any    `json:"list"`  // 数据列表
	Total uint64 `json:"total"` // 总数
}

// PageData 分页数据响应，list 为 nil 时序列化为 []
func PageData(list any, total uint64) *Response {
	if list == nil {
		list = []any{}
	}
	return Success(&PageResp{List: list, Total: total})
}

// ResponseMode 响应体格式
type ResponseMode string

const (
	// ModeEnvelope 统一包装为 Response
	ModeEnvelope ResponseMode = "envelope"
	// ModeBare 成功时直接输出 data，分页总数写入 X-Total-Count，失败时输出 ErrorDetail
	ModeBare ResponseMode = "bare"
)

// HeaderTotalCount bare 模式分页总数响应头
const HeaderTotalCount = "X-Total-Count"

// HeaderTraceID bare 模式 trace_id 响应头
const HeaderTraceID = "X-Trace-Id"

// ParseResponseMode 解析响应格式，空串视为 envelope
func ParseResponseMode(s string) (ResponseMode, error) {
	switch ResponseMode(s) {
	case "", ModeEnvelope:
		return ModeEnvelope, nil
	case ModeBare:
		return ModeBare, nil
	}
	return "", fmt.Errorf("unknown response mode %q", s)
}

// ErrorDetail bare 模式错误体，与旧版前端约定的 {"detail": ...} 兼容
type ErrorDetail struct {
	Detail string `json:"detail"`
	Code   int    `json:"code"`
}
