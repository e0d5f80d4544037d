package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloudvault-backend/internal/auth"
	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/logging"
	"cloudvault-backend/internal/mailer"
	"cloudvault-backend/internal/models"
	"cloudvault-backend/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt ignores anything longer
)

// UserServiceConfig holds the user service settings taken from the app config.
type UserServiceConfig struct {
	SessionTTL  time.Duration
	ResetTTL    time.Duration
	FrontendURL string // reset links point at <FrontendURL>/reset-password/<token>
}

// UserService handles accounts, sessions and password resets
type UserService struct {
	store      repository.UserStore
	tokens     *auth.TokenService
	mailer     mailer.Sender
	logger     logging.Logger
	clock      common.Clock
	cfg        UserServiceConfig
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserService creates a user service
func NewUserService(
	store repository.UserStore,
	tokens *auth.TokenService,
	sender mailer.Sender,
	logger logging.Logger,
	clock common.Clock,
	cfg UserServiceConfig,
) *UserService {
	if clock == nil {
		clock = common.RealClock{}
	}
	return &UserService{
		store:      store,
		tokens:     tokens,
		mailer:     sender,
		logger:     logger,
		clock:      clock,
		cfg:        cfg,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// Register creates a new account. A taken email yields common.ErrConflict.
func (s *UserService) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	if strings.TrimSpace(name) == "" || email == "" {
		return nil, fmt.Errorf("%w: name and email are required", common.ErrValidation)
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return nil, fmt.Errorf("user %q: %w", email, common.ErrConflict)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    s.clock.Now().UTC(),
	}

	// CreateUser reports ErrConflict itself if another registration won the race.
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks credentials and returns a session token. Unknown email and
// wrong password fail identically with common.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return "", fmt.Errorf("failed to look up user: %w", err)
		}
		// Spend the same bcrypt time as a real comparison.
		bcrypt.CompareHashAndPassword(s.fakeHash(), []byte(password))
		return "", fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("%w: invalid credentials", common.ErrUnauthorized)
	}

	token, err := s.tokens.Issue(auth.KindSession, user.ID.String(), s.cfg.SessionTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a session token to its user. A token that verifies but
// names no existing user is treated as invalid.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.Verify(token, auth.KindSession)
	if err != nil {
		return nil, err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", common.ErrInvalidToken)
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown user", common.ErrInvalidToken)
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

// ForgotPassword mails a reset link if the email belongs to an account. It
// reports success whether or not the account exists, and mail delivery
// failures are only logged, so the response never reveals registration.
func (s *UserService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.logger.Debug(ctx, "password reset requested for unknown email")
			return nil
		}
		return fmt.Errorf("failed to look up user: %w", err)
	}

	token, err := s.tokens.Issue(auth.KindReset, user.ID.String(), s.cfg.ResetTTL)
	if err != nil {
		return fmt.Errorf("failed to issue reset token: %w", err)
	}

	link := strings.TrimRight(s.cfg.FrontendURL, "/") + "/reset-password/" + token
	if err := s.mailer.Send(ctx, user.Email, "Reset Password", "Click here: "+link); err != nil {
		s.logger.Error(ctx, "failed to send reset email", "user_id", user.ID, "error", err)
		return nil
	}

	s.logger.Info(ctx, "password reset link sent", "user_id", user.ID)
	return nil
}

// ResetPassword replaces the password of the user named by a reset token.
func (s *UserService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.Verify(token, auth.KindReset)
	if err != nil {
		return err
	}

	if err := validatePassword(newPassword); err != nil {
		return err
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return fmt.Errorf("%w: subject is not a user id", common.ErrInvalidToken)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.store.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return err
	}

	s.logger.Info(ctx, "password reset", "user_id", userID)
	return nil
}

func (s *UserService) fakeHash() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("cloudvault-timing-equalizer"), s.bcryptCost)
	})
	return s.dummyHash
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters", common.ErrValidation, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be at most %d bytes", common.ErrValidation, maxPasswordLen)
	}
	return nil
}
