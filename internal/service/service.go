package service

import (
	"context"

	"authgate/internal/models"
	"authgate/internal/repository"
)

type Authorization interface {
	Register(ctx context.Context, username, password string) (*models.User, error)
	Login(ctx context.Context, clientKey, username, password string) (*models.User, error)
}

// Service aggregates the sub-services exposed to the transport layer.
type Service struct {
	Authorization
}

func NewService(repos *repository.Repository, hasher *PasswordHasher, limiter AttemptLimiter) *Service {
	return &Service{
		Authorization: NewAuthService(repos.Users, hasher, limiter),
	}
}
