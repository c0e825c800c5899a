// Package session binds an authenticated user to a request. The marker travels in
// the request context as a Principal; Manager implementations decide how it is
// persisted between requests (server-side store, signed cookie or JWT).
package session

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Principal is the authenticated user bound to a request.
type Principal struct {
	UserID   int
	Username string
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal bound to ctx, if any.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Manager persists the session marker across requests.
type Manager interface {
	// Middleware restores the marker of an incoming request into its context.
	Middleware() gin.HandlersChain
	// Bind marks the request's session as authenticated as p.
	Bind(c *gin.Context, p Principal) error
	// Clear removes the marker. It reports whether one was bound.
	Clear(c *gin.Context) (bool, error)
}

// Options are the cookie settings shared by all managers.
type Options struct {
	Name   string
	Secret []byte
	MaxAge time.Duration
	Secure bool
}

func (o Options) maxAgeSeconds() int {
	return int(o.MaxAge / time.Second)
}

const sameSite = http.SameSiteLaxMode

// setPrincipal makes p visible to handlers running after the caller.
func setPrincipal(c *gin.Context, p Principal) {
	c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
}
