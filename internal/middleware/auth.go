package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"support_chat/pkg/utils"
)

const (
	// ContextUserID 驗證通過後存放用戶 ID 的 key（uint）
	ContextUserID = "userID"
	// ContextUserRole 驗證通過後存放用戶角色的 key（string）
	ContextUserRole = "userRole"
)

// AuthMiddleware 驗證請求的 JWT token。
// 瀏覽器的 WebSocket 無法帶自訂 header，所以也接受 ?token= 參數。
func AuthMiddleware(j *utils.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		claims, err := j.ParseToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserRole, claims.Role)
		c.Next()
	}
}

// bearerToken 回傳 token 與 header 格式是否正確；沒有帶 token 時回傳空字串
func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return c.Query("token"), true
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}
