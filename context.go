package reviewhub

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tokmz/reviewhub/pkg/errors"
	"github.com/tokmz/reviewhub/pkg/logger"
)

// Context 包装 gin.Context
type Context struct {
	ctx *gin.Context
}

// NewContext 创建上下文（用于测试与原生 gin 处理函数）
func NewContext(c *gin.Context) *Context {
	return &Context{ctx: c}
}

// Gin 返回底层 gin.Context
func (c *Context) Gin() *gin.Context {
	return c.ctx
}

// ============ 请求访问方法 ============

// Request 返回底层的 *http.Request
func (c *Context) Request() *http.Request {
	return c.ctx.Request
}

// Writer 返回底层的 http.ResponseWriter
func (c *Context) Writer() gin.ResponseWriter {
	return c.ctx.Writer
}

// Param 获取路径参数
func (c *Context) Param(key string) string {
	return c.ctx.Param(key)
}

// FullPath 获取路由模板路径（如 /reviews/:id）
func (c *Context) FullPath() string {
	return c.ctx.FullPath()
}

// Query 获取 URL 查询参数
func (c *Context) Query(key string) string {
	return c.ctx.Query(key)
}

// DefaultQuery 获取 URL 查询参数（带默认值）
func (c *Context) DefaultQuery(key, defaultValue string) string {
	return c.ctx.DefaultQuery(key, defaultValue)
}

// ShouldBind 根据 Content-Type 绑定请求参数
func (c *Context) ShouldBind(obj any) error {
	return c.ctx.ShouldBind(obj)
}

// ShouldBindJSON 绑定 JSON 请求体
func (c *Context) ShouldBindJSON(obj any) error {
	return c.ctx.ShouldBindJSON(obj)
}

// ShouldBindQuery 绑定 URL 查询参数
func (c *Context) ShouldBindQuery(obj any) error {
	return c.ctx.ShouldBindQuery(obj)
}

// ShouldBindUri 绑定路径参数
func (c *Context) ShouldBindUri(obj any) error {
	return c.ctx.ShouldBindUri(obj)
}

// Set 设置上下文键值对
func (c *Context) Set(key string, value any) {
	c.ctx.Set(key, value)
}

// Get 获取上下文键值对
func (c *Context) Get(key string) (any, bool) {
	return c.ctx.Get(key)
}

// GetString 获取字符串类型的上下文值
func (c *Context) GetString(key string) string {
	return c.ctx.GetString(key)
}

// Next 执行下一个中间件或处理函数
func (c *Context) Next() {
	c.ctx.Next()
}

// Abort 中止请求处理
func (c *Context) Abort() {
	c.ctx.Abort()
}

// AbortWithStatus 中止请求并设置状态码
func (c *Context) AbortWithStatus(code int) {
	c.ctx.AbortWithStatus(code)
}

// IsAborted 检查请求是否已中止
func (c *Context) IsAborted() bool {
	return c.ctx.IsAborted()
}

// ClientIP 获取客户端 IP
func (c *Context) ClientIP() string {
	return c.ctx.ClientIP()
}

// GetHeader 获取请求头
func (c *Context) GetHeader(key string) string {
	return c.ctx.GetHeader(key)
}

// Header 设置响应头
func (c *Context) Header(key, value string) {
	c.ctx.Header(key, value)
}

// JSON 发送原始 JSON 响应（不包装 Response）
func (c *Context) JSON(code int, obj any) {
	c.ctx.JSON(code, obj)
}

// ============ 请求绑定方法 ============

// BindJSON 绑定 JSON 请求体
// 绑定失败时自动响应 400，调用方只需判断 err != nil 并 return
func (c *Context) BindJSON(obj any) error {
	if err := c.ctx.ShouldBindJSON(obj); err != nil {
		wrapped := wrapBindError(err)
		c.RespondError(wrapped)
		return wrapped
	}
	return nil
}

// BindQuery 绑定 URL 查询参数
func (c *Context) BindQuery(obj any) error {
	if err := c.ctx.ShouldBindQuery(obj); err != nil {
		wrapped := wrapBindError(err)
		c.RespondError(wrapped)
		return wrapped
	}
	return nil
}

// BindURI 绑定路径参数
func (c *Context) BindURI(obj any) error {
	if err := c.ctx.ShouldBindUri(obj); err != nil {
		wrapped := wrapBindError(err)
		c.RespondError(wrapped)
		return wrapped
	}
	return nil
}

func wrapBindError(err error) error {
	return errors.ErrBadRequest.WithMessage(err.Error()).WithError(err)
}

// ============ 响应方法 ============

// Success 成功响应
func (c *Context) Success(data any) {
	c.respond(http.StatusOK, Success(data))
}

// SuccessWithMessage 成功响应（自定义消息）
func (c *Context) SuccessWithMessage(data any, message string) {
	c.respond(http.StatusOK, SuccessWithMessage(data, message))
}

// Created 创建成功响应（201）
func (c *Context) Created(data any) {
	c.respond(http.StatusCreated, Success(data))
}

// Nil 成功响应（无数据）
func (c *Context) Nil() {
	c.Success(nil)
}

// Fail 失败响应，HTTP 状态码与业务码相同
func (c *Context) Fail(code int, message string) {
	c.respond(code, Fail(code, message))
}

// RespondError 错误响应
// 业务错误按其 HttpCode 响应；其他错误按 ErrServer 响应，原始信息只记录在 gin 错误列表中。
func (c *Context) RespondError(err error) {
	bizErr := errors.From(err)
	if bizErr == nil {
		c.Nil()
		return
	}
	_ = c.ctx.Error(err)
	c.respond(bizErr.HttpCode, NewResponse(bizErr.Code, nil, bizErr.Message))
}

// AbortWithError 中止请求并响应错误（中间件使用）
func (c *Context) AbortWithError(err error) {
	c.RespondError(err)
	c.ctx.Abort()
}

// Page 分页响应
func (c *Context) Page(list any, total uint64) {
	c.respond(http.StatusOK, PageData(list, total))
}

// respond 统一响应处理（自动添加 TraceID）
func (c *Context) respond(statusCode int, resp *Response) {
	if traceID := GetContextTraceID(c); traceID != "" {
		resp.WithTraceID(traceID)
	}
	if GetResponseMode(c) == ModeBare {
		c.respondBare(statusCode, resp)
		return
	}
	c.ctx.JSON(statusCode, resp)
}

// respondBare 不包装响应体，trace_id 与分页总数改由响应头携带
func (c *Context) respondBare(statusCode int, resp *Response) {
	if resp.TraceID != "" {
		c.ctx.Header(HeaderTraceID, resp.TraceID)
	}
	if statusCode >= http.StatusBadRequest {
		c.ctx.JSON(statusCode, &ErrorDetail{Detail: resp.Message, Code: resp.Code})
		return
	}
	if page, ok := resp.Data.(*PageResp); ok {
		c.ctx.Header(HeaderTotalCount, strconv.FormatUint(page.Total, 10))
		c.ctx.JSON(statusCode, page.List)
		return
	}
	c.ctx.JSON(statusCode, resp.Data)
}

// RequestContext 返回标准库 context.Context，用于传递给 Service 层
// TraceID 使用 logger 包的 key 注入，logger.*Context 方法可直接提取
func (c *Context) RequestContext() context.Context {
	ctx := c.ctx.Request.Context()
	if traceID := c.GetString(ContextTraceIDKey); traceID != "" {
		ctx = logger.WithTraceID(ctx, traceID)
	}
	return ctx
}

// SetRequestContext 更新 Request 的 Context（用于中间件注入 SpanContext）
func (c *Context) SetRequestContext(ctx context.Context) {
	c.ctx.Request = c.ctx.Request.WithContext(ctx)
}
