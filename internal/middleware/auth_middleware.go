package middleware

import (
	"strings"

	"firmsync/pkg/jwt"
	"firmsync/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 权限中间件
// 身份信息全部来自JWT声明，不回查数据库
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwt.GetJWTManager(), // 使用全局JWT管理器
	}
}

// RequireLogin 要求携带有效JWT
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		// 提取token
		tokenString := authHeader[7:] // 去掉 "Bearer "

		// 验证token
		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 将身份信息保存到上下文
		c.Set("user_id", claims.UserID)
		c.Set("tenant_id", claims.TenantID)
		c.Set("current_tenant_id", claims.CurrentTenantID) // 当前操作的租户ID
		c.Set("username", claims.Username)
		c.Set("is_platform_admin", claims.IsPlatformAdmin)
		c.Set("is_firm_admin", claims.IsFirmAdmin)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequirePlatformAdmin 要求平台管理员
func (m *AuthMiddleware) RequirePlatformAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !claims.(*jwt.JWTClaims).IsPlatformAdmin {
			response.Forbidden(c, "需要平台管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireFirmAdmin 要求律所管理员
func (m *AuthMiddleware) RequireFirmAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		claimsObj := claims.(*jwt.JWTClaims)
		if !claimsObj.IsPlatformAdmin && !claimsObj.IsFirmAdmin {
			response.Forbidden(c, "需要管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// CurrentTenantID 从上下文取当前操作的租户ID
func CurrentTenantID(c *gin.Context) uint {
	if tenantID, exists := c.Get("current_tenant_id"); exists {
		return tenantID.(uint)
	}
	return 0
}
