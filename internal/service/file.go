package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cloudvault-backend/internal/auth"
	"cloudvault-backend/internal/blob"
	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/logging"
	"cloudvault-backend/internal/models"
	"cloudvault-backend/internal/repository"

	"github.com/google/uuid"
)

// FileServiceConfig holds the upload limits and share-link lifetime.
type FileServiceConfig struct {
	MaxUploadBytes   int64
	AllowedMIMETypes []string
	ShareTTL         time.Duration
}

// FileService decides who may read, write and delete file records and
// moves the bytes between callers and the blob store.
//
// Owner-scoped operations always look records up by {id, owner}. A caller
// who does not own a file gets the same common.ErrNotFound as for an id that
// does not exist.
type FileService struct {
	files   repository.FileStore
	blobs   blob.Store
	tokens  *auth.TokenService
	logger  logging.Logger
	clock   common.Clock
	maxSize int64
	allowed map[string]struct{}
	ttl     time.Duration
}

// NewFileService creates a file service
func NewFileService(
	files repository.FileStore,
	blobs blob.Store,
	tokens *auth.TokenService,
	logger logging.Logger,
	clock common.Clock,
	cfg FileServiceConfig,
) *FileService {
	if clock == nil {
		clock = common.RealClock{}
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMETypes))
	for _, mt := range cfg.AllowedMIMETypes {
		allowed[strings.ToLower(strings.TrimSpace(mt))] = struct{}{}
	}
	return &FileService{
		files:   files,
		blobs:   blobs,
		tokens:  tokens,
		logger:  logger,
		clock:   clock,
		maxSize: cfg.MaxUploadBytes,
		allowed: allowed,
		ttl:     cfg.ShareTTL,
	}
}

// Upload stores the content of r as a new file owned by owner. The media type
// is detected from the content and must be allow-listed; the content must not
// exceed the size limit. Nothing is left in the blob store on rejection.
func (s *FileService) Upload(ctx context.Context, owner uuid.UUID, originalName string, r io.Reader) (*models.File, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, fmt.Errorf("%w: file name is required", common.ErrValidation)
	}

	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("%w: failed to read upload: %w", common.ErrStorage, err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: file is empty", common.ErrValidation)
	}

	mimeType := detectMIME(head)
	if _, ok := s.allowed[mimeType]; !ok {
		return nil, fmt.Errorf("%w: file type %s is not allowed", common.ErrValidation, mimeType)
	}

	now := s.clock.Now().UTC()
	name := storedName(now, originalName)

	lr := &limitedReader{r: br, remaining: s.maxSize}
	size, err := s.blobs.Write(ctx, name, lr)
	if err != nil {
		// Check the flag rather than the error: some blob backends do not
		// keep the reader's error in the chain.
		if lr.exceeded {
			return nil, fmt.Errorf("%w: file exceeds the %d byte limit", common.ErrValidation, s.maxSize)
		}
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	file := &models.File{
		ID:           uuid.New(),
		OwnerID:      owner,
		StoredName:   name,
		OriginalName: originalName,
		MimeType:     mimeType,
		Size:         size,
		CreatedAt:    now,
	}

	if err := s.files.CreateFile(ctx, file); err != nil {
		if delErr := s.blobs.Delete(ctx, name); delErr != nil {
			s.logger.Error(ctx, "failed to remove blob after record insert failed", "stored_name", name, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info(ctx, "file uploaded", "file_id", file.ID, "owner", owner, "size", size, "mimetype", mimeType)
	return file, nil
}

// List returns the owner's files, newest first.
func (s *FileService) List(ctx context.Context, owner uuid.UUID) ([]*models.File, error) {
	return s.files.ListFilesByOwner(ctx, owner)
}

// OpenOwned returns an owned file and a reader over its content. The caller
// closes the reader.
func (s *FileService) OpenOwned(ctx context.Context, owner uuid.UUID, id string) (*models.File, io.ReadCloser, error) {
	fileID, err := parseID(id)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.files.GetFileByIDAndOwner(ctx, fileID, owner)
	if err != nil {
		return nil, nil, err
	}

	return s.open(ctx, file)
}

// Delete removes an owned file record and then its blob. A blob that is
// already gone is not an error. If two callers delete the same file at once,
// one succeeds and the other gets common.ErrNotFound.
func (s *FileService) Delete(ctx context.Context, owner uuid.UUID, id string) error {
	fileID, err := parseID(id)
	if err != nil {
		return err
	}

	file, err := s.files.DeleteFileByIDAndOwner(ctx, fileID, owner)
	if err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, file.StoredName); err != nil {
		s.logger.Warn(ctx, "failed to delete blob of deleted file", "file_id", file.ID, "stored_name", file.StoredName, "error", err)
	}

	s.logger.Info(ctx, "file deleted", "file_id", file.ID, "owner", owner)
	return nil
}

// Shared returns the public view of any file by id. Knowing the id is the
// only credential.
func (s *FileService) Shared(ctx context.Context, id string) (*models.SharedFile, error) {
	fileID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	file, err := s.files.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if err := s.checkBlob(ctx, file); err != nil {
		return nil, err
	}

	view := file.Shared()
	return &view, nil
}

// OpenShared returns any file and its content by id.
func (s *FileService) OpenShared(ctx context.Context, id string) (*models.File, io.ReadCloser, error) {
	fileID, err := parseID(id)
	if err != nil {
		return nil, nil, err
	}

	file, err := s.files.GetFileByID(ctx, fileID)
	if err != nil {
		return nil, nil, err
	}

	return s.open(ctx, file)
}

// IssueShareToken signs a short-lived token granting read access to one
// owned file. Files the caller does not own get common.ErrNotFound.
func (s *FileService) IssueShareToken(ctx context.Context, owner uuid.UUID, id string) (string, error) {
	fileID, err := parseID(id)
	if err != nil {
		return "", err
	}

	if _, err := s.files.GetFileByIDAndOwner(ctx, fileID, owner); err != nil {
		return "", err
	}

	token, err := s.tokens.Issue(auth.KindShare, fileID.String(), s.ttl)
	if err != nil {
		return "", fmt.Errorf("failed to issue share token: %w", err)
	}

	s.logger.Info(ctx, "share token issued", "file_id", fileID, "owner", owner)
	return token, nil
}

// SharedByToken returns the public view of the file a share token names.
func (s *FileService) SharedByToken(ctx context.Context, token string) (*models.SharedFile, error) {
	file, err := s.resolveShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.checkBlob(ctx, file); err != nil {
		return nil, err
	}

	view := file.Shared()
	return &view, nil
}

// OpenByToken returns the file a share token names and its content.
func (s *FileService) OpenByToken(ctx context.Context, token string) (*models.File, io.ReadCloser, error) {
	file, err := s.resolveShareToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}

	return s.open(ctx, file)
}

// resolveShareToken maps a share token to its file. The token alone decides
// which file is returned.
func (s *FileService) resolveShareToken(ctx context.Context, token string) (*models.File, error) {
	claims, err := s.tokens.Verify(token, auth.KindShare)
	if err != nil {
		return nil, err
	}

	fileID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a file id", common.ErrInvalidToken)
	}

	return s.files.GetFileByID(ctx, fileID)
}

// checkBlob reports common.ErrNotFound when the record's content is gone, so
// the public metadata views agree with their download counterparts.
func (s *FileService) checkBlob(ctx context.Context, file *models.File) error {
	ok, err := s.blobs.Exists(ctx, file.StoredName)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	if !ok {
		s.logger.Warn(ctx, "file record has no blob", "file_id", file.ID, "stored_name", file.StoredName)
		return fmt.Errorf("file %s: %w", file.ID, common.ErrNotFound)
	}
	return nil
}

func (s *FileService) open(ctx context.Context, file *models.File) (*models.File, io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, file.StoredName)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Warn(ctx, "file record has no blob", "file_id", file.ID, "stored_name", file.StoredName)
			return nil, nil, fmt.Errorf("file %s: %w", file.ID, common.ErrNotFound)
		}
		return nil, nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	return file, rc, nil
}

// parseID maps a malformed id to common.ErrNotFound, the same as an unknown one.
func parseID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("file %q: %w", id, common.ErrNotFound)
	}
	return parsed, nil
}
