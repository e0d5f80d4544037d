package api

import (
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/http"

	"cloudvault-backend/internal/common"

	"github.com/go-chi/chi/v5"
)

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// partFilename returns the filename parameter of the part exactly as sent.
// multipart.Part.FileName strips directories, which would lose the display name.
func partFilename(part *multipart.Part) string {
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err == nil && params["filename"] != "" {
		return params["filename"]
	}
	return part.FileName()
}

func badMultipart(err error) error {
	return fmt.Errorf("%w: malformed multipart body: %w", common.ErrValidation, err)
}

// clientIP keys the rate limiter on the connection's peer address. Client
// supplied headers only reach RemoteAddr when proxy headers are trusted.
func clientIP(r *http.Request) (string, error) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	return host, nil
}
