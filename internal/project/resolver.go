package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alecgard/portico/internal/store"
)

// Store is the data access needed to resolve project visibility.
type Store interface {
	UserAccess(ctx context.Context, userID string) (*store.UserAccess, error)
	AssignedProjectIDs(ctx context.Context, companyID string) ([]string, error)
	ProjectsForCompany(ctx context.Context, companyID string, assigned []string) ([]store.ProjectRow, error)
	StaffProjectIDs(ctx context.Context, projectIDs []string) ([]string, error)
}

// Resolver computes the projects visible to a user.
type Resolver struct {
	store      Store
	onSoftFail []func(op string)
}

// NewResolver creates a Resolver over s. The optional onSoftFail callbacks are
// invoked with the operation name whenever a lookup failure is absorbed into
// an empty result.
func NewResolver(s Store, onSoftFail ...func(op string)) *Resolver {
	return &Resolver{store: s, onSoftFail: onSoftFail}
}

func (r *Resolver) softFail(op string, err error, attrs ...any) {
	slog.Warn("project visibility lookup failed", append([]any{"op", op, "error", err}, attrs...)...)
	for _, fn := range r.onSoftFail {
		fn(op)
	}
}

// ListVisible returns the normalized projects userID may see, newest first.
//
// Only admins with a company see anything. Failures to load the user, the
// company's assignments or staff counts degrade to empty data; a failure of
// the project query itself is returned.
func (r *Resolver) ListVisible(ctx context.Context, userID string) ([]Project, error) {
	if userID == "" {
		return []Project{}, nil
	}

	access, err := r.store.UserAccess(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		slog.Info("project visibility: user not found", "user_id", userID)
		return []Project{}, nil
	}
	if err != nil {
		r.softFail("user access", err, "user_id", userID)
		return []Project{}, nil
	}
	if access.Role != RoleAdmin {
		return []Project{}, nil
	}
	if access.CompanyID == nil || *access.CompanyID == "" {
		return []Project{}, nil
	}
	companyID := *access.CompanyID

	assigned, err := r.store.AssignedProjectIDs(ctx, companyID)
	if err != nil {
		r.softFail("assigned projects", err, "company_id", companyID)
		assigned = nil
	}

	rows, err := r.store.ProjectsForCompany(ctx, companyID, nonEmpty(assigned))
	if err != nil {
		return nil, fmt.Errorf("listing projects for company %s: %w", companyID, err)
	}
	rows = dedupe(rows)

	counts := map[string]int{}
	if len(rows) > 0 {
		ids := make([]string, len(rows))
		for i, row := range rows {
			ids[i] = row.ID
		}
		staff, err := r.store.StaffProjectIDs(ctx, ids)
		if err != nil {
			r.softFail("project staff", err, "company_id", companyID)
		} else {
			counts = tally(staff)
		}
	}

	projects := make([]Project, 0, len(rows))
	for _, row := range rows {
		p, err := decode(row)
		if err != nil {
			return nil, err
		}
		projects = append(projects, Normalize(p, counts[row.ID]))
	}
	return projects, nil
}

// nonEmpty drops blank ids so an assignment table full of nulls behaves like
// having no assignments.
func nonEmpty(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
