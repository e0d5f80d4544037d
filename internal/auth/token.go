package auth

import (
	"errors"
	"fmt"
	"time"

	"cloudvault-backend/internal/common"

	"github.com/golang-jwt/jwt/v5"
)

// Kind tags what a token grants. Every verification names the kind it expects,
// so a reset or share token is never accepted as a session.
type Kind string

const (
	KindSession Kind = "session" // sub = user id
	KindReset   Kind = "reset"   // sub = user id
	KindShare   Kind = "share"   // sub = file id
)

// Claims is the payload carried by every token. The registered exp claim has
// whole-second precision, so the exact deadline travels in ExpiresAtMilli and
// exp is rounded up to the next second.
type Claims struct {
	jwt.RegisteredClaims
	Kind           Kind  `json:"kind"`
	ExpiresAtMilli int64 `json:"exp_ms"`
}

// TokenService signs and verifies HS256 tokens with one process-wide secret.
type TokenService struct {
	jwtSecret []byte
	clock     common.Clock
}

// NewTokenService creates a token service
func NewTokenService(secret string, clock common.Clock) (*TokenService, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret must not be empty")
	}
	if clock == nil {
		clock = common.RealClock{}
	}
	return &TokenService{
		jwtSecret: []byte(secret),
		clock:     clock,
	}, nil
}

// Issue signs a token of the given kind for subject, valid for ttl.
func (s *TokenService) Issue(kind Kind, subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("token subject must not be empty")
	}

	now := s.clock.Now().Truncate(time.Millisecond)
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp.Add(time.Second - time.Nanosecond)),
		},
		Kind:           kind,
		ExpiresAtMilli: exp.UnixMilli(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// Verify checks signature, expiry and kind. Any failure matches
// common.ErrInvalidToken; an expired token additionally matches
// common.ErrTokenExpired.
func (s *TokenService) Verify(tokenString string, want Kind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	},
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, common.ErrInvalidToken
	}

	if claims.ExpiresAtMilli <= 0 {
		return nil, fmt.Errorf("%w: missing expiry", common.ErrInvalidToken)
	}
	if !s.clock.Now().Before(time.UnixMilli(claims.ExpiresAtMilli)) {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, common.ErrTokenExpired)
	}

	if claims.Kind != want {
		return nil, fmt.Errorf("%w: expected %s token, got %q", common.ErrInvalidToken, want, claims.Kind)
	}

	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", common.ErrInvalidToken)
	}

	return claims, nil
}
