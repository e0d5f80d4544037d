// Package blob stores the raw bytes of uploaded files, addressed by the
// stored name the file service generates.
package blob

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloudvault-backend/internal/common"
)

// Store is the blob store contract.
type Store interface {
	// Write stores everything read from r under name and returns the byte
	// count. If r fails, nothing is left behind under name.
	Write(ctx context.Context, name string, r io.Reader) (int64, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Open returns a reader for the blob, or common.ErrNotFound.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Delete removes the blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
}

// validName rejects anything that is not a single plain path element.
func validName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return fmt.Errorf("%w: invalid blob name %q", common.ErrValidation, name)
	}
	return nil
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
