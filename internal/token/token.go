// Package token issues and verifies the stateless session tokens handed out
// on login. Tokens are HS256 JWTs whose subject is the user identifier.
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL is the lifetime of an issued token.
const DefaultTTL = 24 * time.Hour

var (
	// ErrMissingSecret is returned by NewService when no signing secret is configured.
	ErrMissingSecret = errors.New("token: signing secret is required")

	// ErrInvalidToken is returned by Verify for any token that cannot be trusted:
	// bad signature, wrong algorithm, expired, malformed or missing subject.
	ErrInvalidToken = errors.New("token: invalid token")
)

// Service signs and verifies session tokens with a shared secret.
type Service struct {
	key []byte
	ttl time.Duration
	now func() time.Time // injectable clock for testing
}

// NewService creates a Service keyed by secret. A non-positive ttl falls back
// to DefaultTTL.
func NewService(secret string, ttl time.Duration) (*Service, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		key: []byte(secret),
		ttl: ttl,
		now: time.Now,
	}, nil
}

// Issue returns a signed token for userID along with its expiry.
func (s *Service) Issue(userID string) (string, time.Time, error) {
	if userID == "" {
		return "", time.Time{}, errors.New("token: empty subject")
	}

	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the token's signature and expiry and returns its subject.
// Every failure is reported as ErrInvalidToken wrapping the parser's reason.
func (s *Service) Verify(_ context.Context, tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Inspect verifies the token like Verify and returns its full claims.
func (s *Service) Inspect(tokenString string) (*jwt.RegisteredClaims, error) {
	return s.parse(tokenString)
}

func (s *Service) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
