package handlers

import (
	"net/http"
	"time"

	"authgate/internal/session"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestId"

	msgNotAuthenticated = "Not authenticated"
)

// requestID propagates or assigns a request id.
func (h *Handler) requestID(c *gin.Context) {
	id := c.GetHeader(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(requestIDKey, id)
	c.Header(requestIDHeader, id)
	c.Next()
}

func requestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}

func (h *Handler) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.log.Infow("http_request",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"status", c.Writer.Status(),
		"latency", time.Since(start),
		"client_ip", c.ClientIP(),
		"request_id", requestIDFrom(c),
	)
}

// requireSession rejects anonymous requests.
func (h *Handler) requireSession(c *gin.Context) {
	if _, ok := session.FromContext(c.Request.Context()); !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, messageResponse{Message: msgNotAuthenticated})
		return
	}
	c.Next()
}
