package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/alecgard/portico/internal/credential"
	"github.com/alecgard/portico/internal/metrics"
	"github.com/alecgard/portico/internal/project"
	"github.com/alecgard/portico/internal/store"
	"github.com/go-chi/chi/v5"
)

// Response is what a RouteHandler produces on success. A nil Body writes no
// body at all.
type Response struct {
	Status int
	Body   any
}

// RouteHandler serves one (method, path) entry of the route table.
type RouteHandler interface {
	Handle(r *http.Request) (*Response, error)
}

// RouteHandlerFunc adapts a function to RouteHandler.
type RouteHandlerFunc func(r *http.Request) (*Response, error)

func (f RouteHandlerFunc) Handle(r *http.Request) (*Response, error) {
	return f(r)
}

// Authorizer resolves the caller of a request.
type Authorizer interface {
	Authorize(r *http.Request) (userID string, ok bool)
}

// ProjectLister returns the projects visible to a user.
type ProjectLister interface {
	ListVisible(ctx context.Context, userID string) ([]project.Project, error)
}

// UserFinder looks up login candidates.
type UserFinder interface {
	UserByEmail(ctx context.Context, email string) (*store.User, error)
}

// AccessLookup resolves a user's company and role.
type AccessLookup interface {
	UserAccess(ctx context.Context, userID string) (*store.UserAccess, error)
}

// TokenIssuer signs session tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID string) (string, time.Time, error)
}

// Pinger checks that the data store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterDeps holds all dependencies for the API router.
type RouterDeps struct {
	Authorizer     Authorizer
	Projects       ProjectLister
	Users          UserFinder
	Tokens         TokenIssuer
	Access         AccessLookup
	VerifyPassword func(password, stored string) bool // defaults to credential.Verify
	DB             Pinger
	Metrics        *metrics.Metrics // optional
	AllowedOrigin  string           // defaults to "*"
}

// Router dispatches requests through an immutable (method, path) table.
type Router struct {
	routes  map[string]map[string]RouteHandler
	metrics *metrics.Metrics
	handler http.Handler
}

// NewRouter builds the route table and middleware chain.
func NewRouter(deps RouterDeps) *Router {
	if deps.AllowedOrigin == "" {
		deps.AllowedOrigin = "*"
	}
	if deps.VerifyPassword == nil {
		deps.VerifyPassword = credential.Verify
	}

	rt := &Router{
		routes:  make(map[string]map[string]RouteHandler),
		metrics: deps.Metrics,
	}

	rt.handle(http.MethodGet, "/", RouteHandlerFunc(rootHandler))
	rt.handle(http.MethodGet, "/health", newHealthHandler(deps.DB))
	rt.handle(http.MethodPost, "/api/login", newLoginHandler(deps.Users, deps.Tokens, deps.VerifyPassword, deps.Metrics))
	rt.handle(http.MethodGet, "/api/projects", requireUser(deps.Authorizer, newProjectsHandler(deps.Projects)))
	if deps.Metrics != nil {
		rt.handle(http.MethodGet, "/api/metrics", requireUser(deps.Authorizer, requireAdmin(deps.Access, newMetricsHandler(deps.Metrics))))
	}

	rt.handler = chi.Chain(
		requestIDMiddleware,
		responseHeaders(deps.AllowedOrigin),
		rt.requestLogger,
		preflight,
	).HandlerFunc(rt.dispatch)

	return rt
}

func (rt *Router) handle(method, path string, h RouteHandler) {
	if rt.routes[method] == nil {
		rt.routes[method] = make(map[string]RouteHandler)
	}
	rt.routes[method][path] = h
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// lookup finds the handler for method and path. Both levels must match.
func (rt *Router) lookup(method, path string) (RouteHandler, bool) {
	byPath, ok := rt.routes[method]
	if !ok {
		return nil, false
	}
	h, ok := byPath[path]
	return h, ok
}

// routeLabel is the metrics label for path: the path itself when any method
// registers it, "unmatched" otherwise.
func (rt *Router) routeLabel(path string) string {
	for _, byPath := range rt.routes {
		if _, ok := byPath[path]; ok {
			return path
		}
	}
	return "unmatched"
}

func (rt *Router) dispatch(w http.ResponseWriter, r *http.Request) {
	h, ok := rt.lookup(r.Method, r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, msgNotFound)
		return
	}

	resp, err := invoke(h, r)
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) {
			writeError(w, apiErr.Status, apiErr.Message)
			return
		}
		slog.Error("handler failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFromContext(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	writeResponse(w, resp)
}

// invoke calls h, converting a panic into an error.
func invoke(h RouteHandler, r *http.Request) (resp *Response, err error) {
	defer func() {
		if v := recover(); v != nil {
			if v == http.ErrAbortHandler {
				panic(v)
			}
			err = fmt.Errorf("panic: %v\n%s", v, debug.Stack())
		}
	}()
	return h.Handle(r)
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	if resp == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, resp.Body)
}
