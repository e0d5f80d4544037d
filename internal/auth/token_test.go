package auth

import (
	"strings"
	"testing"
	"time"

	"cloudvault-backend/internal/common"
	"cloudvault-backend/internal/testutil"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, secret string, clock common.Clock) *TokenService {
	t.Helper()
	s, err := NewTokenService(secret, clock)
	require.NoError(t, err)
	return s
}

func TestNewTokenService_EmptySecret(t *testing.T) {
	_, err := NewTokenService("", nil)
	assert.Error(t, err)
}

func TestIssueAndVerify(t *testing.T) {
	s := newService(t, "super-secret", testutil.FixedClock())

	tok, err := s.Issue(KindSession, "user-123", time.Hour)
	require.NoError(t, err)

	claims, err := s.Verify(tok, KindSession)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, KindSession, claims.Kind)
}

func TestVerify_ValidUntilExactlyTTL(t *testing.T) {
	clock := testutil.FixedClock()
	s := newService(t, "secret", clock)

	tok, err := s.Issue(KindSession, "u1", 24*time.Hour)
	require.NoError(t, err)

	clock.Advance(24*time.Hour - time.Second)
	_, err = s.Verify(tok, KindSession)
	require.NoError(t, err, "token must still be valid one second before expiry")

	clock.Advance(time.Second)
	_, err = s.Verify(tok, KindSession)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)

	clock.Advance(time.Hour)
	_, err = s.Verify(tok, KindSession)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_SubSecondIssuance(t *testing.T) {
	clock := testutil.NewStubClock(time.Date(2024, 1, 15, 10, 30, 0, 900_000_000, time.UTC))
	s := newService(t, "secret", clock)

	tok, err := s.Issue(KindShare, "file-1", 15*time.Minute)
	require.NoError(t, err)

	clock.Advance(15*time.Minute - 500*time.Millisecond)
	_, err = s.Verify(tok, KindShare)
	require.NoError(t, err, "token must be valid half a second before its ttl ends")

	clock.Advance(499 * time.Millisecond)
	_, err = s.Verify(tok, KindShare)
	require.NoError(t, err, "token must be valid one millisecond before its ttl ends")

	clock.Advance(time.Millisecond)
	_, err = s.Verify(tok, KindShare)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_MissingExactExpiry(t *testing.T) {
	clock := testutil.FixedClock()
	s := newService(t, "k", clock)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		Kind: KindSession,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = s.Verify(tok, KindSession)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.NotErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_WrongSecret(t *testing.T) {
	clock := testutil.FixedClock()
	tok, err := newService(t, "right-secret", clock).Issue(KindSession, "u2", time.Hour)
	require.NoError(t, err)

	_, err = newService(t, "rotated-secret", clock).Verify(tok, KindSession)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
	assert.NotErrorIs(t, err, common.ErrTokenExpired)
}

func TestVerify_WrongKind(t *testing.T) {
	s := newService(t, "secret", testutil.FixedClock())

	reset, err := s.Issue(KindReset, "u1", 15*time.Minute)
	require.NoError(t, err)
	share, err := s.Issue(KindShare, "file-1", 15*time.Minute)
	require.NoError(t, err)

	_, err = s.Verify(reset, KindSession)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = s.Verify(share, KindSession)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	_, err = s.Verify(share, KindReset)
	assert.ErrorIs(t, err, common.ErrInvalidToken)

	claims, err := s.Verify(share, KindShare)
	require.NoError(t, err)
	assert.Equal(t, "file-1", claims.Subject)
}

func TestVerify_Malformed(t *testing.T) {
	s := newService(t, "k", testutil.FixedClock())

	for _, tok := range []string{"", "not.a.jwt", "abc"} {
		_, err := s.Verify(tok, KindSession)
		assert.ErrorIs(t, err, common.ErrInvalidToken, "token %q", tok)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	s := newService(t, "k", testutil.FixedClock())

	tok, err := s.Issue(KindShare, "file-a", time.Minute)
	require.NoError(t, err)

	other, err := s.Issue(KindShare, "file-b", time.Minute)
	require.NoError(t, err)

	// Splice the payload of one token onto the signature of another.
	a := strings.Split(tok, ".")
	b := strings.Split(other, ".")
	forged := a[0] + "." + b[1] + "." + a[2]

	_, err = s.Verify(forged, KindShare)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestVerify_RejectsNoneAlgorithm(t *testing.T) {
	clock := testutil.FixedClock()
	s := newService(t, "k", clock)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "u1",
			ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour)),
		},
		Kind: KindSession,
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = s.Verify(tok, KindSession)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestIssue_EmptySubject(t *testing.T) {
	s := newService(t, "k", testutil.FixedClock())

	_, err := s.Issue(KindSession, "", time.Hour)
	assert.Error(t, err)
}
