package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/reride/reride_go_server/internal/pkg/response"
)

const (
	// 上游网关注入的用户标识头。服务本身不做认证，
	// 部署上只接受来自网关的流量。
	UserIDHeader = "X-User-ID"

	userIDKey = "user_id"
)

// Identity 从网关头中取出用户标识，缺失则拒绝
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			response.AuthError(c, "缺少用户标识")
			c.Abort()
			return
		}

		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			response.AuthError(c, "无效的用户标识")
			c.Abort()
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// GetUserID 从上下文中获取用户ID
func GetUserID(c *gin.Context) (int64, bool) {
	val, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := val.(int64)
	return userID, ok
}
