package repository

import (
	"context"

	"cloudvault-backend/internal/models"

	"github.com/google/uuid"
)

// UserStore is the credential store. Lookups return common.ErrNotFound when
// nothing matches; CreateUser returns common.ErrConflict for a taken email.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
}

// FileStore is the file record store. Owner-scoped operations take the owner
// as part of the lookup key so a non-owner cannot tell whether an id exists.
type FileStore interface {
	CreateFile(ctx context.Context, file *models.File) error
	GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error)
	GetFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error)
	// ListFilesByOwner returns the owner's files, newest first.
	ListFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error)
	// DeleteFileByIDAndOwner removes and returns the record, or returns
	// common.ErrNotFound if it was already gone.
	DeleteFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error)
}

// Store aggregates every store operation for dependency injection
type Store interface {
	UserStore
	FileStore
	Ping(ctx context.Context) error
	Close()
}
