package repository

import (
	"context"
	"errors"
	"fmt"

	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/models"
	"cloudvault-backend/internal/repository/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on PostgreSQL
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore opens a connection pool and checks it is reachable
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: pool}, nil
}

// Close closes the connection pool
func (s *PostgresStore) Close() {
	s.db.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// RunMigrations applies the embedded goose migrations.
func (s *PostgresStore) RunMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.db)
	defer db.Close()

	if err := migrations.Up(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// --- UserStore ---

func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	sql := `
        INSERT INTO users (id, name, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.Exec(ctx, sql,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %q: %w", user.Email, common.ErrConflict)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	sql := `
        SELECT id, name, email, password_hash, created_at
        FROM users
        WHERE email = $1`

	user, err := scanUser(s.db.QueryRow(ctx, sql, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	sql := `
        SELECT id, name, email, password_hash, created_at
        FROM users
        WHERE id = $1`

	user, err := scanUser(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	sql := `UPDATE users SET password_hash = $2 WHERE id = $1`

	tag, err := s.db.Exec(ctx, sql, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// --- FileStore ---

const fileColumns = `id, owner_id, stored_name, original_name, mime_type, size_bytes, created_at`

func (s *PostgresStore) CreateFile(ctx context.Context, file *models.File) error {
	sql := `
        INSERT INTO files (` + fileColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.db.Exec(ctx, sql,
		file.ID,
		file.OwnerID,
		file.StoredName,
		file.OriginalName,
		file.MimeType,
		file.Size,
		file.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("file %q: %w", file.StoredName, common.ErrConflict)
		}
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	sql := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	file, err := scanFile(s.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

func (s *PostgresStore) GetFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error) {
	sql := `SELECT ` + fileColumns + ` FROM files WHERE id = $1 AND owner_id = $2`

	file, err := scanFile(s.db.QueryRow(ctx, sql, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get file: %w", err)
	}
	return file, nil
}

func (s *PostgresStore) ListFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error) {
	sql := `
        SELECT ` + fileColumns + `
        FROM files
        WHERE owner_id = $1
        ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, sql, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	// Empty slice, not nil, so the JSON is [] rather than null.
	files := []*models.File{}

	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		files = append(files, file)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}

	return files, nil
}

func (s *PostgresStore) DeleteFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error) {
	sql := `
        DELETE FROM files
        WHERE id = $1 AND owner_id = $2
        RETURNING ` + fileColumns

	file, err := scanFile(s.db.QueryRow(ctx, sql, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to delete file: %w", err)
	}
	return file, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func scanFile(row pgx.Row) (*models.File, error) {
	file := &models.File{}
	err := row.Scan(
		&file.ID,
		&file.OwnerID,
		&file.StoredName,
		&file.OriginalName,
		&file.MimeType,
		&file.Size,
		&file.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return file, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ Store = (*PostgresStore)(nil)
