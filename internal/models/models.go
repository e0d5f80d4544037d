package models

import (
	"time"

	"github.com/google/uuid"
)

// User is an account holder
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialized
	CreatedAt    time.Time `json:"createdAt"`
}

// File is the metadata record of one uploaded blob. StoredName is the blob key.
type File struct {
	ID           uuid.UUID `json:"id"`
	OwnerID      uuid.UUID `json:"owner"`
	StoredName   string    `json:"filename"`
	OriginalName string    `json:"originalname"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SharedFile is what a share link reveals. It never carries the stored name or the owner.
type SharedFile struct {
	ID           uuid.UUID `json:"id"`
	OriginalName string    `json:"originalname"`
	MimeType     string    `json:"mimetype"`
	Size         int64     `json:"size"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Shared returns the reduced view of f.
func (f *File) Shared() SharedFile {
	return SharedFile{
		ID:           f.ID,
		OriginalName: f.OriginalName,
		MimeType:     f.MimeType,
		Size:         f.Size,
		CreatedAt:    f.CreatedAt,
	}
}
