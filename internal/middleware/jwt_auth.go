package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"scribemarket/backend/internal/auth/jwt"
	"scribemarket/backend/internal/domain"
)

// 上下文键
const (
	CtxUserID = "userID"
	CtxRole   = "role"
)

// JWTAuth JWT认证中间件
type JWTAuth struct {
	jwtManager *jwt.Manager
	log        *zap.Logger
}

// NewJWTAuth 创建JWT认证中间件
func NewJWTAuth(jwtManager *jwt.Manager, log *zap.Logger) *JWTAuth {
	return &JWTAuth{
		jwtManager: jwtManager,
		log:        log,
	}
}

// RequireAuth 要求JWT认证
func (ja *JWTAuth) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ja.extractToken(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authentication required",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateToken(token)
		if err != nil {
			ja.log.Warn("invalid token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, domain.ParseRole(claims.Role))

		c.Next()
	}
}

// RequireStreamAuth 要求流式令牌认证，用于 SSE 端点。
// 令牌从 query 参数读取，浏览器 EventSource 无法设置请求头。
func (ja *JWTAuth) RequireStreamAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if token == "" {
			token = ja.extractToken(c)
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "stream token required",
			})
			c.Abort()
			return
		}

		claims, err := ja.jwtManager.ValidateStreamToken(token)
		if err != nil {
			ja.log.Warn("invalid stream token",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired stream token",
			})
			c.Abort()
			return
		}

		c.Set(CtxUserID, claims.UserID)
		c.Set(CtxRole, domain.ParseRole(claims.Role))

		c.Next()
	}
}

// RequireStaff 在 RequireAuth 之后使用，限内部人员。
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists || !role.(domain.Role).IsStaff() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "staff access required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 在 RequireAuth 之后使用，限管理员层级。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists || !role.(domain.Role).IsAdminTier() {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "admin access required",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractToken 从请求中提取JWT token
func (ja *JWTAuth) extractToken(c *gin.Context) string {
	// 1. 从 Authorization header 提取
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
	}

	// 2. 从 cookie 提取
	token, err := c.Cookie("access_token")
	if err == nil && token != "" {
		return token
	}

	return ""
}
