package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// UserIDHeader 调用方传入的用户 ID
	UserIDHeader = "X-User-ID"

	userIDKey = "user_id"
)

// Identity 从 X-User-ID 头或 uid 参数读取用户 ID，缺失时返回 401
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if uid == "" {
			uid = strings.TrimSpace(c.Query("uid"))
		}
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing user id"})
			return
		}
		c.Set(userIDKey, uid)
		c.Next()
	}
}

// UserID 当前请求的用户 ID
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
