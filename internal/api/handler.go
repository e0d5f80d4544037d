package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/logging"
	"cloudvault-backend/internal/models"
	"cloudvault-backend/internal/service"

	"github.com/go-playground/validator/v10"
)

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options holds the HTTP-level settings of the handler.
type Options struct {
	CORSOrigin        string
	MaxUploadBytes    int64
	RateLimitRequests int
	RateLimitWindow   time.Duration
	// TrustProxyHeaders takes the client address from X-Forwarded-For or
	// X-Real-IP. Leave it off unless a trusted proxy sets those headers.
	TrustProxyHeaders bool
}

// Handler holds the dependencies of the HTTP handlers
type Handler struct {
	userService *service.UserService
	fileService *service.FileService
	store       Pinger
	logger      logging.Logger
	validate    *validator.Validate
	opts        Options
}

// NewHandler creates a new Handler
func NewHandler(
	userSvc *service.UserService,
	fileSvc *service.FileService,
	store Pinger,
	logger logging.Logger,
	opts Options,
) *Handler {
	return &Handler{
		userService: userSvc,
		fileService: fileSvc,
		store:       store,
		logger:      logger,
		validate:    validator.New(),
		opts:        opts,
	}
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// === Response helpers ===

func (h *Handler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

func (h *Handler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error(context.Background(), "failed to marshal response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":500,"message":"internal error while encoding response"}}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// respondWithServiceError maps a service error onto its status code. Storage
// and unexpected errors are logged and reported without detail.
func (h *Handler) respondWithServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError

	switch {
	case errors.As(err, &maxBytesErr):
		h.respondWithError(w, http.StatusBadRequest, "file too large")
	case errors.Is(err, common.ErrValidation):
		h.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrTokenExpired):
		h.respondWithError(w, http.StatusUnauthorized, "token expired")
	case errors.Is(err, common.ErrInvalidToken):
		h.respondWithError(w, http.StatusUnauthorized, "invalid token")
	case errors.Is(err, common.ErrUnauthorized):
		h.respondWithError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrNotFound):
		h.respondWithError(w, http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrConflict):
		h.respondWithError(w, http.StatusConflict, "resource already exists")
	default:
		h.logger.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes and validates the request body into dst. It writes the
// error response itself and reports whether the handler may continue.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid JSON payload")
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		h.respondWithError(w, http.StatusBadRequest, "invalid data: "+err.Error())
		return false
	}
	return true
}

// === Auth handlers ===

// handleRegister (POST /auth/register)
func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name" validate:"required"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.userService.Register(r.Context(), req.Name, req.Email, req.Password); err != nil {
		if errors.Is(err, common.ErrConflict) {
			h.respondWithError(w, http.StatusConflict, "user already exists")
			return
		}
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully"})
}

// handleLogin (POST /auth/login)
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	token, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleForgotPassword (POST /auth/forgot-password)
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.ForgotPassword(r.Context(), req.Email); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, messageResponse{Message: "If the email is registered, a reset link has been sent"})
}

// handleResetPassword (POST /auth/reset-password/{token})
func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password" validate:"required,min=8,max=72"`
	}
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := h.userService.ResetPassword(r.Context(), urlParam(r, "token"), req.Password); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

// === File handlers ===

// handleUpload (POST /files/upload), multipart with the content in field "file"
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	// Headroom for the multipart envelope; the content limit itself is
	// enforced by the file service.
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes+1<<20)

	mr, err := r.MultipartReader()
	if err != nil {
		h.respondWithError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			h.respondWithError(w, http.StatusBadRequest, "missing form field \"file\"")
			return
		}
		if err != nil {
			h.respondWithServiceError(w, r, badMultipart(err))
			return
		}

		if part.FormName() != "file" {
			part.Close()
			continue
		}

		file, err := h.fileService.Upload(r.Context(), user.ID, partFilename(part), part)
		part.Close()
		if err != nil {
			h.respondWithServiceError(w, r, err)
			return
		}

		h.respondWithJSON(w, http.StatusCreated, file)
		return
	}
}

// handleListFiles (GET /files)
func (h *Handler) handleListFiles(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	files, err := h.fileService.List(r.Context(), user.ID)
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, files)
}

// handleDownload (GET /files/download/{id})
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	file, rc, err := h.fileService.OpenOwned(r.Context(), user.ID, urlParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer rc.Close()

	h.serveFile(w, r, file, rc)
}

// handleDeleteFile (DELETE /files/{id})
func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	if err := h.fileService.Delete(r.Context(), user.ID, urlParam(r, "id")); err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, messageResponse{Message: "File deleted successfully"})
}

// handleGenerateShareToken (GET /files/generate-share-token/{id})
func (h *Handler) handleGenerateShareToken(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())

	token, err := h.fileService.IssueShareToken(r.Context(), user.ID, urlParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// handleShared (GET /files/shared/{id})
func (h *Handler) handleShared(w http.ResponseWriter, r *http.Request) {
	view, err := h.fileService.Shared(r.Context(), urlParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, view)
}

// handleSharedDownload (GET /files/shared/download/{id})
func (h *Handler) handleSharedDownload(w http.ResponseWriter, r *http.Request) {
	file, rc, err := h.fileService.OpenShared(r.Context(), urlParam(r, "id"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer rc.Close()

	h.serveFile(w, r, file, rc)
}

// handleSharedSecure (GET /files/shared-secure/{token})
func (h *Handler) handleSharedSecure(w http.ResponseWriter, r *http.Request) {
	view, err := h.fileService.SharedByToken(r.Context(), urlParam(r, "token"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, view)
}

// handleSharedSecureDownload (GET /files/shared-secure/download/{token})
func (h *Handler) handleSharedSecureDownload(w http.ResponseWriter, r *http.Request) {
	file, rc, err := h.fileService.OpenByToken(r.Context(), urlParam(r, "token"))
	if err != nil {
		h.respondWithServiceError(w, r, err)
		return
	}
	defer rc.Close()

	h.serveFile(w, r, file, rc)
}

// handleHealth (GET /health)
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		h.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	h.respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// serveFile streams the content as an attachment named after the original
// file name. Seekable blobs get range support through http.ServeContent.
func (h *Handler) serveFile(w http.ResponseWriter, r *http.Request, file *models.File, rc io.ReadCloser) {
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.OriginalName})
	if disposition == "" {
		disposition = "attachment"
	}
	w.Header().Set("Content-Disposition", disposition)
	w.Header().Set("Content-Type", file.MimeType)
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, "", file.CreatedAt, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(file.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn(r.Context(), "download interrupted", "file_id", file.ID, "error", err)
	}
}
