package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/models"

	"github.com/go-chi/chi/v5/middleware"
)

// contextKey is a private type to avoid key collisions in the context
type contextKey string

const userContextKey = contextKey("user")

// AuthMiddleware resolves the bearer session token to a user and stores it in
// the request context. A missing header is Unauthorized; a token that does not
// verify, or whose user no longer exists, is an invalid token.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			h.respondWithError(w, http.StatusUnauthorized, "authorization token not provided")
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenString) == "" {
			h.respondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		user, err := h.userService.Authenticate(r.Context(), strings.TrimSpace(tokenString))
		if err != nil {
			if errors.Is(err, common.ErrInvalidToken) {
				h.logger.Debug(r.Context(), "rejected session token", "error", err)
			}
			h.respondWithServiceError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// userFromContext returns the user stored by AuthMiddleware. Only call it
// from handlers mounted behind the middleware.
func userFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(userContextKey).(*models.User)
	return user
}

// RequestLogger logs one line per request with its status and duration.
func (h *Handler) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			h.logger.Info(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
				"remote", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
