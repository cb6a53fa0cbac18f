package reviewhub

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RouterGroup 路由组
type RouterGroup struct {
	group *gin.RouterGroup
}

// Group 创建子路由组
func (rg *RouterGroup) Group(path string, middlewares ...HandlerFunc) *RouterGroup {
	return &RouterGroup{
		group: rg.group.Group(path, WrapMiddlewares(middlewares...)...),
	}
}

// Use 注册中间件
func (rg *RouterGroup) Use(middlewares ...HandlerFunc) {
	rg.group.Use(WrapMiddlewares(middlewares...)...)
}

// BasePath 路由组前缀
func (rg *RouterGroup) BasePath() string {
	return rg.group.BasePath()
}

// handlers 中间件在前，处理函数在后
func handlers(handler HandlerFunc, middlewares []HandlerFunc) []gin.HandlerFunc {
	return append(WrapMiddlewares(middlewares...), wrap(handler))
}

// GET 注册 GET 路由
func (rg *RouterGroup) GET(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.GET(path, handlers(handler, middlewares)...)
}

// POST 注册 POST 路由
func (rg *RouterGroup) POST(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.POST(path, handlers(handler, middlewares)...)
}

// PUT 注册 PUT 路由
func (rg *RouterGroup) PUT(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.PUT(path, handlers(handler, middlewares)...)
}

// DELETE 注册 DELETE 路由
func (rg *RouterGroup) DELETE(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.DELETE(path, handlers(handler, middlewares)...)
}

// PATCH 注册 PATCH 路由
func (rg *RouterGroup) PATCH(path string, handler HandlerFunc, middlewares ...HandlerFunc) {
	rg.group.PATCH(path, handlers(handler, middlewares)...)
}

// Handle 注册原生 http.Handler（如 promhttp）
func (rg *RouterGroup) Handle(method, path string, h http.Handler) {
	rg.group.Handle(method, path, gin.WrapH(h))
}

// ============ 泛型路由（自动绑定 + 自动响应）============

// RouteRegister 路由注册函数类型，如 rg.GET
type RouteRegister func(path string, handler HandlerFunc, middlewares ...HandlerFunc)

// Handle 有请求参数，有响应数据
func Handle[Req any, Resp any](register RouteRegister, path string, handler func(*Context, *Req) (*Resp, error), middlewares ...HandlerFunc) {
	register(path, func(c *Context) {
		var req Req
		if err := autoBind(c, &req); err != nil {
			c.RespondError(err)
			return
		}
		resp, err := handler(c, &req)
		if err != nil {
			c.RespondError(err)
			return
		}
		c.Success(resp)
	}, middlewares...)
}

// Handle0 有请求参数，无响应数据
func Handle0[Req any](register RouteRegister, path string, handler func(*Context, *Req) error, middlewares ...HandlerFunc) {
	register(path, func(c *Context) {
		var req Req
		if err := autoBind(c, &req); err != nil {
			c.RespondError(err)
			return
		}
		if err := handler(c, &req); err != nil {
			c.RespondError(err)
			return
		}
		c.Nil()
	}, middlewares...)
}

// HandleOnly 无请求参数，有响应数据
func HandleOnly[Resp any](register RouteRegister, path string, handler func(*Context) (*Resp, error), middlewares ...HandlerFunc) {
	register(path, func(c *Context) {
		resp, err := handler(c)
		if err != nil {
			c.RespondError(err)
			return
		}
		c.Success(resp)
	}, middlewares...)
}

// autoBind 根据请求方法选择绑定策略
// GET/DELETE 绑定 Query，POST/PUT/PATCH 按 Content-Type 绑定请求体；最后绑定 URI。
func autoBind(c *Context, obj any) error {
	switch c.Request().Method {
	case http.MethodGet, http.MethodDelete:
		if err := c.ShouldBindQuery(obj); err != nil {
			return wrapBindError(err)
		}
	default:
		if c.Request().ContentLength != 0 {
			if err := c.ShouldBind(obj); err != nil {
				return wrapBindError(err)
			}
		}
	}
	if len(c.ctx.Params) > 0 {
		if err := c.ShouldBindUri(obj); err != nil {
			return wrapBindError(err)
		}
	}
	return nil
}
