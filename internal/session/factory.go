package session

import "fmt"

// Backend names accepted by New.
const (
	BackendCookie = "cookie"
	BackendMemory = "memory"
	BackendJWT    = "jwt"
)

// New returns the Manager for backend.
func New(backend string, o Options) (Manager, error) {
	switch backend {
	case BackendCookie:
		return NewCookieManager(o), nil
	case BackendMemory:
		return NewMemoryManager(o), nil
	case BackendJWT:
		return NewTokenManager(o), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", backend)
	}
}
