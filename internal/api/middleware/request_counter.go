package middleware

import (
	"github.com/Mieluoxxx/Lumina-API/internal/stats"
	"github.com/gin-gonic/gin"
)

// RequestCounterMiddleware 平台请求量统计中间件
// 每个进入 /api 组的请求计一次数
func RequestCounterMiddleware(counter *stats.RequestCounter) gin.HandlerFunc {
	return func(c *gin.Context) {
		counter.Increment()
		c.Next()
	}
}
