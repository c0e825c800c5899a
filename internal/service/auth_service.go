package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"authgate/internal/models"
	"authgate/internal/repository"
)

const (
	minPasswordLen = 4
	// bcrypt only reads the first 72 bytes and refuses longer input.
	maxPasswordBytes = 72
)

// AuthService handles registration and credential checks.
type AuthService struct {
	users   repository.Users
	hasher  *PasswordHasher
	limiter AttemptLimiter
}

// NewAuthService builds the auth flow. limiter may be nil to disable throttling.
func NewAuthService(users repository.Users, hasher *PasswordHasher, limiter AttemptLimiter) *AuthService {
	return &AuthService{users: users, hasher: hasher, limiter: limiter}
}

// Register validates the input, hashes the password and stores a new user.
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, ErrUsernameRequired
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return nil, ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, ErrUsernameTaken
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	u, err := s.users.Create(ctx, username, hash)
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Login verifies username/password. clientKey identifies the caller for
// throttling (usually the client IP). Unknown users and wrong passwords both
// yield ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, clientKey, username, password string) (*models.User, error) {
	if s.limiter != nil {
		retryAfter, err := s.limiter.Locked(ctx, clientKey)
		if err != nil {
			return nil, err
		}
		if retryAfter > 0 {
			return nil, &LockedError{RetryAfter: retryAfter}
		}
	}

	// no stored password can be this long
	if len(password) > maxPasswordBytes {
		return nil, s.rejected(ctx, clientKey)
	}

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if u == nil {
		s.hasher.Burn(password)
		return nil, s.rejected(ctx, clientKey)
	}

	ok, err := s.hasher.Matches(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, s.rejected(ctx, clientKey)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, clientKey); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// rejected records the failed attempt and returns the error to hand back.
func (s *AuthService) rejected(ctx context.Context, clientKey string) error {
	if s.limiter == nil {
		return ErrInvalidCredentials
	}
	if _, err := s.limiter.Fail(ctx, clientKey); err != nil {
		return err
	}
	return ErrInvalidCredentials
}
