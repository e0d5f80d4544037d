package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudvault-backend/internal/auth"
	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/logging"
	"cloudvault-backend/internal/repository"
	"cloudvault-backend/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type sentMail struct {
	to, subject, body string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

type userFixture struct {
	svc    *UserService
	store  *repository.InMemoryStore
	tokens *auth.TokenService
	mail   *fakeSender
	clock  *testutil.StubClock
}

func newUserFixture(t *testing.T) *userFixture {
	t.Helper()
	clock := testutil.FixedClock()
	tokens, err := auth.NewTokenService("test-secret", clock)
	require.NoError(t, err)

	store := repository.NewInMemoryStore()
	mail := &fakeSender{}
	svc := NewUserService(store, tokens, mail, logging.Discard(), clock, UserServiceConfig{
		SessionTTL:  24 * time.Hour,
		ResetTTL:    15 * time.Minute,
		FrontendURL: "http://localhost:3000/",
	})
	svc.bcryptCost = bcrypt.MinCost

	return &userFixture{svc: svc, store: store, tokens: tokens, mail: mail, clock: clock}
}

func TestRegister(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Alice", "alice@example.com", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))

	stored, err := f.store.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = f.svc.Register(ctx, "Other Alice", "alice@example.com", "different-pass")
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestRegister_Validation(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"empty name", " ", "a@example.com", "password123"},
		{"empty email", "A", "", "password123"},
		{"short password", "A", "a@example.com", "short"},
		{"long password", "A", "a@example.com", strings.Repeat("x", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.userName, tt.email, tt.password)
			assert.ErrorIs(t, err, common.ErrValidation)
		})
	}
}

func TestLogin(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Bob", "bob@example.com", "password123")
	require.NoError(t, err)

	token, err := f.svc.Login(ctx, "bob@example.com", "password123")
	require.NoError(t, err)

	authed, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Bob", "bob@example.com", "password123")
	require.NoError(t, err)

	_, wrongPass := f.svc.Login(ctx, "bob@example.com", "wrong-password")
	_, unknown := f.svc.Login(ctx, "nobody@example.com", "password123")

	assert.ErrorIs(t, wrongPass, common.ErrUnauthorized)
	assert.ErrorIs(t, unknown, common.ErrUnauthorized)
	assert.Equal(t, wrongPass.Error(), unknown.Error())
}

func TestAuthenticate_SessionExpiresAfterTTL(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Bob", "bob@example.com", "password123")
	require.NoError(t, err)
	token, err := f.svc.Login(ctx, "bob@example.com", "password123")
	require.NoError(t, err)

	f.clock.Advance(24*time.Hour - time.Second)
	_, err = f.svc.Authenticate(ctx, token)
	require.NoError(t, err)

	f.clock.Advance(time.Second)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestAuthenticate_RejectsOtherTokenKinds(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Bob", "bob@example.com", "password123")
	require.NoError(t, err)

	reset, err := f.tokens.Issue(auth.KindReset, user.ID.String(), time.Hour)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, reset)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestAuthenticate_UnknownUser(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	token, err := f.tokens.Issue(auth.KindSession, "3f0f8a8e-34a4-4a43-9d0a-5b1b7c1a0e55", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	token, err = f.tokens.Issue(auth.KindSession, "not-a-uuid", time.Hour)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Carol", "carol@example.com", "old-password")
	require.NoError(t, err)

	require.NoError(t, f.svc.ForgotPassword(ctx, "carol@example.com"))
	require.Len(t, f.mail.sent, 1)

	msg := f.mail.sent[0]
	assert.Equal(t, "carol@example.com", msg.to)
	assert.Equal(t, "Reset Password", msg.subject)

	const prefix = "Click here: http://localhost:3000/reset-password/"
	require.True(t, strings.HasPrefix(msg.body, prefix), "body: %s", msg.body)
	token := strings.TrimPrefix(msg.body, prefix)

	// A reset token is not a session.
	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	require.NoError(t, f.svc.ResetPassword(ctx, token, "new-password"))

	_, err = f.svc.Login(ctx, "carol@example.com", "old-password")
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	_, err = f.svc.Login(ctx, "carol@example.com", "new-password")
	assert.NoError(t, err)
}

func TestForgotPassword_UnknownEmailLooksLikeSuccess(t *testing.T) {
	f := newUserFixture(t)

	require.NoError(t, f.svc.ForgotPassword(context.Background(), "ghost@example.com"))
	assert.Empty(t, f.mail.sent)
}

func TestForgotPassword_MailFailureIsNotReported(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, "Carol", "carol@example.com", "old-password")
	require.NoError(t, err)

	f.mail.err = errors.New("smtp down")
	assert.NoError(t, f.svc.ForgotPassword(ctx, "carol@example.com"))
}

func TestResetPassword_Rejections(t *testing.T) {
	f := newUserFixture(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, "Dan", "dan@example.com", "password123")
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, "dan@example.com", "password123")
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, session, "new-password"), common.ErrInvalidToken)

	reset, err := f.tokens.Issue(auth.KindReset, user.ID.String(), 15*time.Minute)
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, reset, "short"), common.ErrValidation)

	f.clock.Advance(15 * time.Minute)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, reset, "new-password"), common.ErrTokenExpired)

	_, err = f.svc.Login(ctx, "dan@example.com", "password123")
	assert.NoError(t, err)
}
