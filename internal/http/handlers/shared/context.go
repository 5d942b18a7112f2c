package shared

import (
	"strings"

	"github.com/checkout-next/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	ContextUserIDKey    = "user_id"
	ContextUserEmailKey = "user_email"
)

// RequesterFromContext 读取可选的登录用户，未登录时返回匿名请求方。
func RequesterFromContext(c *gin.Context) service.Requester {
	var requester service.Requester
	if c == nil {
		return requester
	}
	if value, ok := c.Get(ContextUserIDKey); ok {
		switch v := value.(type) {
		case uint:
			if v > 0 {
				id := v
				requester.UserID = &id
			}
		case int:
			if v > 0 {
				id := uint(v)
				requester.UserID = &id
			}
		case float64:
			if v > 0 {
				id := uint(v)
				requester.UserID = &id
			}
		}
	}
	if value, ok := c.Get(ContextUserEmailKey); ok {
		if email, ok := value.(string); ok {
			requester.Email = strings.TrimSpace(email)
		}
	}
	return requester
}
