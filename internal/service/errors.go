package service

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors for auth flows.
var (
	ErrUsernameRequired   = errors.New("username is required")
	ErrPasswordTooShort   = errors.New("password must be longer than 3 chars")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// LockedError is returned by Login while a client is locked out.
type LockedError struct {
	RetryAfter time.Duration
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("too many login attempts, retry after %s", e.RetryAfter)
}

// Kind groups errors by how they are surfaced to callers.
type Kind int

const (
	KindUnexpected Kind = iota
	KindValidation
	KindConflict
	KindUnauthorized
	KindThrottled
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindThrottled:
		return "throttled"
	default:
		return "unexpected"
	}
}

// KindOf classifies err. Anything unrecognised is KindUnexpected.
func KindOf(err error) Kind {
	var locked *LockedError
	switch {
	case errors.Is(err, ErrUsernameRequired), errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
		return KindValidation
	case errors.Is(err, ErrUsernameTaken):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.As(err, &locked):
		return KindThrottled
	default:
		return KindUnexpected
	}
}
