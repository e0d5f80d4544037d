package service

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

const (
	// sniffLen is how much of an upload is inspected to detect its type.
	sniffLen = 3072

	maxSanitizedLen = 128
	maxExtLen       = 16
)

var errTooLarge = errors.New("upload exceeds size limit")

// SanitizeFilename replaces every character outside [A-Za-z0-9._-] with '_'
// and caps the result, keeping a short extension intact.
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()

	if len(out) > maxSanitizedLen {
		ext := filepath.Ext(out)
		if len(ext) > maxExtLen {
			ext = ""
		}
		out = out[:maxSanitizedLen-len(ext)] + ext
	}
	return out
}

// storedName builds the blob key: creation millis, a random tag so identical
// names uploaded in the same millisecond do not collide, and the sanitized name.
func storedName(now time.Time, originalName string) string {
	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString()[:8], SanitizeFilename(originalName))
}

// detectMIME returns the sniffed media type of head without parameters.
func detectMIME(head []byte) string {
	mt := mimetype.Detect(head).String()
	mt, _, _ = strings.Cut(mt, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

// limitedReader passes through at most remaining bytes and fails with
// errTooLarge as soon as one more byte is available.
type limitedReader struct {
	r         io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining <= 0 {
		var extra [1]byte
		n, err := l.r.Read(extra[:])
		if n > 0 {
			l.exceeded = true
			return 0, errTooLarge
		}
		return 0, err
	}

	if int64(len(p)) > l.remaining {
		p = p[:l.remaining]
	}
	n, err := l.r.Read(p)
	l.remaining -= int64(n)
	return n, err
}
