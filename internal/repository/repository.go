package repository

import (
	"context"
	"database/sql"

	"authgate/internal/models"
	"authgate/internal/repository/db"
)

// Dialects understood by the repositories; same values as package db.
const (
	DialectSQLite   = db.DialectSQLite
	DialectPostgres = db.DialectPostgres
)

// Users is the credential store: lookup by username and insert-or-reject.
type Users interface {
	Create(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type Repository struct {
	Users Users
}

func NewRepository(conn *sql.DB, dialect string) *Repository {
	return &Repository{
		Users: NewUserRepository(conn, dialect),
	}
}
