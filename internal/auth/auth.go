// Package auth resolves bearer tokens on incoming requests to user identities.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// Failure reasons reported to the failure hook.
const (
	ReasonMissing = "missing"
	ReasonInvalid = "invalid"
)

// TokenVerifier resolves a token to the identifier of the user it was issued
// for. Any error means the token must not be trusted.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Authorizer extracts and verifies bearer tokens.
type Authorizer struct {
	verifier  TokenVerifier
	onFailure func(reason string)
	onSuccess func()
}

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithFailureHook registers fn to be called with a reason for every request
// that does not authorize.
func WithFailureHook(fn func(reason string)) Option {
	return func(a *Authorizer) { a.onFailure = fn }
}

// WithSuccessHook registers fn to be called for every authorized request.
func WithSuccessHook(fn func()) Option {
	return func(a *Authorizer) { a.onSuccess = fn }
}

// NewAuthorizer creates an Authorizer backed by verifier.
func NewAuthorizer(verifier TokenVerifier, opts ...Option) *Authorizer {
	a := &Authorizer{verifier: verifier}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize returns the user id carried by the request's bearer token. The
// second result is false when the header is absent or malformed, or when the
// token fails verification; it never panics on bad input.
func (a *Authorizer) Authorize(r *http.Request) (string, bool) {
	token, ok := BearerToken(r)
	if !ok {
		a.fail(ReasonMissing)
		return "", false
	}

	userID, err := a.verifier.Verify(r.Context(), token)
	if err != nil || userID == "" {
		slog.Debug("bearer token rejected", "error", err)
		a.fail(ReasonInvalid)
		return "", false
	}

	if a.onSuccess != nil {
		a.onSuccess()
	}
	return userID, true
}

func (a *Authorizer) fail(reason string) {
	if a.onFailure != nil {
		a.onFailure(reason)
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme match is exact and case-sensitive.
func BearerToken(r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !found || token == "" {
		return "", false
	}
	return token, true
}
