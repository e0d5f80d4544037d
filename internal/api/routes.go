package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// Routes configures and returns the chi router
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	if h.opts.TrustProxyHeaders {
		// Only safe behind a proxy that overwrites X-Forwarded-For and X-Real-IP.
		r.Use(middleware.RealIP)
	}
	r.Use(h.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.opts.CORSOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(
				h.opts.RateLimitRequests,
				h.opts.RateLimitWindow,
				httprate.WithKeyFuncs(clientIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					h.respondWithError(w, http.StatusTooManyRequests, "too many requests, try again later")
				}),
			))

			r.Route("/auth", func(r chi.Router) {
				r.Post("/register", h.handleRegister)
				r.Post("/login", h.handleLogin)
				r.Post("/forgot-password", h.handleForgotPassword)
				r.Post("/reset-password/{token}", h.handleResetPassword)
			})

			r.Route("/files", func(r chi.Router) {
				// Public share endpoints (the id or token is the credential)
				r.Get("/shared/{id}", h.handleShared)
				r.Get("/shared/download/{id}", h.handleSharedDownload)
				r.Get("/shared-secure/{token}", h.handleSharedSecure)
				r.Get("/shared-secure/download/{token}", h.handleSharedSecureDownload)

				// Owner endpoints
				r.Group(func(r chi.Router) {
					r.Use(h.AuthMiddleware)

					r.Post("/upload", h.handleUpload)
					r.Get("/", h.handleListFiles)
					r.Get("/download/{id}", h.handleDownload)
					r.Delete("/{id}", h.handleDeleteFile)
					r.Get("/generate-share-token/{id}", h.handleGenerateShareToken)
				})
			})
		})
	})

	return r
}
