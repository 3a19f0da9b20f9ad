package middleware

import (
	"github.com/gin-gonic/gin"
)

// Headers populated by the upstream identity provider. The core trusts them
// as-is; authentication itself happens before requests reach this service.
const (
	HeaderXUserID   = "X-User-ID"
	HeaderXUserName = "X-User-Name"

	ContextUserID   = "user_id"
	ContextUserName = "user_name"
)

// Identity copies the caller's identity headers into the request context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := c.GetHeader(HeaderXUserID); id != "" {
			c.Set(ContextUserID, id)
		}
		if name := c.GetHeader(HeaderXUserName); name != "" {
			c.Set(ContextUserName, name)
		}
		c.Next()
	}
}
