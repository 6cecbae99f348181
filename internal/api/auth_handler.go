package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/alecgard/portico/internal/auth"
	"github.com/alecgard/portico/internal/metrics"
	"github.com/alecgard/portico/internal/project"
	"github.com/alecgard/portico/internal/store"
)

// requireUser rejects requests without a verified bearer token and passes
// the caller's ID to next through the request context.
func requireUser(a Authorizer, next RouteHandler) RouteHandler {
	return RouteHandlerFunc(func(r *http.Request) (*Response, error) {
		if a == nil {
			return nil, errUnauthorized
		}
		userID, ok := a.Authorize(r)
		if !ok {
			return nil, errUnauthorized
		}
		return next.Handle(r.WithContext(auth.ContextWithUserID(r.Context(), userID)))
	})
}

// requireAdmin admits only callers whose role is admin. It must run inside
// requireUser.
func requireAdmin(access AccessLookup, next RouteHandler) RouteHandler {
	return RouteHandlerFunc(func(r *http.Request) (*Response, error) {
		if access == nil {
			return nil, errForbidden
		}
		userID := auth.UserIDFromContext(r.Context())
		a, err := access.UserAccess(r.Context(), userID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errForbidden
		}
		if err != nil {
			return nil, fmt.Errorf("looking up access for %s: %w", userID, err)
		}
		if a.Role != project.RoleAdmin {
			return nil, errForbidden
		}
		return next.Handle(r)
	})
}

// loginHandler handles POST /api/login.
type loginHandler struct {
	users   UserFinder
	tokens  TokenIssuer
	verify  func(password, stored string) bool
	metrics *metrics.Metrics
}

func newLoginHandler(users UserFinder, tokens TokenIssuer, verify func(string, string) bool, m *metrics.Metrics) *loginHandler {
	return &loginHandler{users: users, tokens: tokens, verify: verify, metrics: m}
}

func (h *loginHandler) Handle(r *http.Request) (*Response, error) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := readJSON(r, &req); err != nil {
		return nil, validationError("Invalid request body")
	}
	if req.Email == "" || req.Password == "" {
		return nil, validationError("Email and password are required")
	}

	u, err := h.users.UserByEmail(r.Context(), req.Email)
	if errors.Is(err, store.ErrNotFound) {
		h.record("invalid")
		return nil, errInvalidCredentials
	}
	if err != nil {
		h.record("error")
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if !h.verify(req.Password, u.PasswordHash) {
		h.record("invalid")
		return nil, errInvalidCredentials
	}

	token, _, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.record("error")
		return nil, fmt.Errorf("issuing token: %w", err)
	}

	h.record("success")
	return &Response{Status: http.StatusOK, Body: map[string]string{"token": token}}, nil
}

func (h *loginHandler) record(result string) {
	if h.metrics != nil {
		h.metrics.IncLogin(result)
	}
}
