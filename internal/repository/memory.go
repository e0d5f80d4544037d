package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/models"

	"github.com/google/uuid"
)

type fileEntry struct {
	file models.File
	seq  uint64
}

// InMemoryStore is an in-memory implementation of Store
type InMemoryStore struct {
	mu           sync.RWMutex
	usersByID    map[uuid.UUID]*models.User
	usersByEmail map[string]*models.User
	files        map[uuid.UUID]*fileEntry
	storedNames  map[string]uuid.UUID
	seq          uint64
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		usersByID:    make(map[uuid.UUID]*models.User),
		usersByEmail: make(map[string]*models.User),
		files:        make(map[uuid.UUID]*fileEntry),
		storedNames:  make(map[string]uuid.UUID),
	}
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }

func (s *InMemoryStore) Close() {}

// --- UserStore ---

func (s *InMemoryStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByEmail[user.Email]; exists {
		return fmt.Errorf("user %q: %w", user.Email, common.ErrConflict)
	}

	u := *user
	s.usersByID[u.ID] = &u
	s.usersByEmail[u.Email] = &u
	return nil
}

func (s *InMemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByEmail[email]
	if !exists {
		return nil, fmt.Errorf("user %q: %w", email, common.ErrNotFound)
	}
	u := *user
	return &u, nil
}

func (s *InMemoryStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByID[id]
	if !exists {
		return nil, fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	u := *user
	return &u, nil
}

func (s *InMemoryStore) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByID[id]
	if !exists {
		return fmt.Errorf("user %s: %w", id, common.ErrNotFound)
	}
	// usersByEmail points at the same record.
	user.PasswordHash = passwordHash
	return nil
}

// --- FileStore ---

func (s *InMemoryStore) CreateFile(ctx context.Context, file *models.File) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[file.ID]; exists {
		return fmt.Errorf("file %s: %w", file.ID, common.ErrConflict)
	}
	if _, exists := s.storedNames[file.StoredName]; exists {
		return fmt.Errorf("stored name %q: %w", file.StoredName, common.ErrConflict)
	}

	s.seq++
	s.files[file.ID] = &fileEntry{file: *file, seq: s.seq}
	s.storedNames[file.StoredName] = file.ID
	return nil
}

func (s *InMemoryStore) GetFileByID(ctx context.Context, id uuid.UUID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.files[id]
	if !exists {
		return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	f := e.file
	return &f, nil
}

func (s *InMemoryStore) GetFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.files[id]
	if !exists || e.file.OwnerID != ownerID {
		return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}
	f := e.file
	return &f, nil
}

func (s *InMemoryStore) ListFilesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.File, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]*fileEntry, 0)
	for _, e := range s.files {
		if e.file.OwnerID == ownerID {
			entries = append(entries, e)
		}
	}

	// Newest first; insertion order breaks timestamp ties.
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.file.CreatedAt.Equal(b.file.CreatedAt) {
			return a.file.CreatedAt.After(b.file.CreatedAt)
		}
		return a.seq > b.seq
	})

	files := make([]*models.File, 0, len(entries))
	for _, e := range entries {
		f := e.file
		files = append(files, &f)
	}
	return files, nil
}

func (s *InMemoryStore) DeleteFileByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, exists := s.files[id]
	if !exists || e.file.OwnerID != ownerID {
		return nil, fmt.Errorf("file %s: %w", id, common.ErrNotFound)
	}

	delete(s.files, id)
	delete(s.storedNames, e.file.StoredName)
	f := e.file
	return &f, nil
}

var _ Store = (*InMemoryStore)(nil)
