package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"authgate/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	msgUsernameRequired   = "Username is required"
	msgPasswordTooShort   = "Password must be longer than 3 chars"
	msgPasswordTooLong    = "Password must be at most 72 bytes"
	msgUsernameTaken      = "Username taken"
	msgInvalidCredentials = "Invalid credentials"
	msgTooManyAttempts    = "Too many login attempts"
	msgInternal           = "Something went wrong"
)

// respondError maps a service error onto status and public message. Only
// unexpected errors are logged at error level; their detail never reaches the client.
func (h *Handler) respondError(c *gin.Context, err error, logKey string, kv ...interface{}) {
	fields := append([]interface{}{"err", err, "request_id", requestIDFrom(c)}, kv...)

	switch service.KindOf(err) {
	case service.KindValidation:
		h.log.Infow(logKey, fields...)
		c.JSON(http.StatusUnprocessableEntity, messageResponse{Message: validationMessage(err)})
	case service.KindConflict:
		h.log.Infow(logKey, fields...)
		c.JSON(http.StatusUnprocessableEntity, messageResponse{Message: msgUsernameTaken})
	case service.KindUnauthorized:
		h.log.Infow(logKey, fields...)
		c.JSON(http.StatusUnauthorized, messageResponse{Message: msgInvalidCredentials})
	case service.KindThrottled:
		h.log.Warnw(logKey, fields...)
		var locked *service.LockedError
		if errors.As(err, &locked) {
			c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(locked)))
		}
		c.JSON(http.StatusTooManyRequests, messageResponse{Message: msgTooManyAttempts})
	default:
		h.log.Errorw(logKey, fields...)
		c.JSON(http.StatusInternalServerError, messageResponse{Message: msgInternal})
	}
}

func validationMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrUsernameRequired):
		return msgUsernameRequired
	case errors.Is(err, service.ErrPasswordTooLong):
		return msgPasswordTooLong
	default:
		return msgPasswordTooShort
	}
}

// retryAfterSeconds rounds up so clients never retry early.
func retryAfterSeconds(e *service.LockedError) int {
	secs := int(e.RetryAfter.Seconds())
	if float64(secs) < e.RetryAfter.Seconds() {
		secs++
	}
	return secs
}
