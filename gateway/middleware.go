package gateway

import (
	"fmt"
	"strings"

	"github.com/example/foodorder/pkg/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ctxRequestID = "request_id"
	ctxUserID    = "user_id"

	headerRequestID = "X-Request-ID"
)

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// bearerToken accepts "Authorization: Bearer <t>", the bare "token" header
// older clients send, and a "token" query parameter for EventSource clients.
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if t := strings.TrimSpace(c.GetHeader("token")); t != "" {
		return t
	}
	return strings.TrimSpace(c.Query("token"))
}

func (g *Gateway) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := g.deps.Tokens.Verify(bearerToken(c))
		if err != nil {
			g.respondError(c, fmt.Errorf("%w: %v", service.ErrUnauthorized, err))
			c.Abort()
			return
		}
		c.Set(ctxUserID, userID)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
