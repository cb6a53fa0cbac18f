package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/tokmz/reviewhub"
	apperrors "github.com/tokmz/reviewhub/pkg/errors"
)

// AdminTokenHeader 管理令牌请求头
const AdminTokenHeader = "X-Admin-Token"

// 管理接口错误码 5xxx
var (
	// ErrAdminNotConfigured 服务端未配置管理令牌
	ErrAdminNotConfigured = apperrors.New(5001, "管理令牌未配置", http.StatusInternalServerError)
	// ErrAdminUnauthorized 管理令牌缺失或不匹配
	ErrAdminUnauthorized = apperrors.New(5002, "管理令牌无效", http.StatusUnauthorized)
)

// AdminToken 管理令牌校验
// secret 每次请求时读取，配置热更新后立即生效；为空时拒绝所有写请求。
func AdminToken(secret func() string) reviewhub.HandlerFunc {
	return func(c *reviewhub.Context) {
		want := secret()
		if want == "" {
			c.AbortWithError(ErrAdminNotConfigured)
			return
		}
		got := c.GetHeader(AdminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			c.AbortWithError(ErrAdminUnauthorized)
			return
		}
		c.Next()
	}
}

// StaticSecret 固定令牌
func StaticSecret(secret string) func() string {
	return func() string { return secret }
}
