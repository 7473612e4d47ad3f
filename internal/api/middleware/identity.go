package middleware

import (
	"net/http"
	"strconv"

	"github.com/Mieluoxxx/Lumina-API/internal/auth"
	"github.com/gin-gonic/gin"
)

// 身份头由上游认证网关注入，本服务直接信任
const (
	HeaderMemberID     = "X-Member-Id"
	HeaderMemberRole   = "X-Member-Role"
	HeaderDepartmentID = "X-Department-Id"
)

// identityKey gin context 中存放身份的键
const identityKey = "identity"

// IdentityMiddleware 提取已认证的调用者身份
// 会话签发与校验属于外部身份子系统；缺失身份头的请求一律拒绝
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		memberID, err := strconv.ParseUint(c.GetHeader(HeaderMemberID), 10, 32)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_IDENTITY",
					"message": "Missing or invalid member identity",
				},
			})
			c.Abort()
			return
		}

		role := c.GetHeader(HeaderMemberRole)
		if role == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "MISSING_ROLE",
					"message": "Missing member role",
				},
			})
			c.Abort()
			return
		}

		// 部门可以缺省（如访客），解析失败按 0 处理
		departmentID, _ := strconv.ParseUint(c.GetHeader(HeaderDepartmentID), 10, 32)

		c.Set(identityKey, auth.Identity{
			MemberID:     uint(memberID),
			Role:         role,
			DepartmentID: uint(departmentID),
		})

		c.Next()
	}
}

// IdentityFromContext 从 gin context 取出调用者身份
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	value, exists := c.Get(identityKey)
	if !exists {
		return auth.Identity{}, false
	}
	identity, ok := value.(auth.Identity)
	return identity, ok
}
