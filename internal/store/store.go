package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the subset of *pgxpool.Pool used by the store.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// Store provides read-only queries against users, projects and their
// assignment tables. Every call is bounded by the configured timeout.
type Store struct {
	db      DB
	timeout time.Duration
}

// New creates a Store over db. A non-positive timeout disables the per-call
// deadline.
func New(db DB, timeout time.Duration) *Store {
	return &Store{db: db, timeout: timeout}
}

// Connect opens a pgx pool for url. When serviceKey is set it is used as the
// connection password, overriding any password embedded in url.
func Connect(ctx context.Context, url, serviceKey string, maxConns int32) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if serviceKey != "" {
		poolCfg.ConnConfig.Password = serviceKey
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	return pool, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		return dataAccessError("ping", err)
	}
	return nil
}

// UserByEmail retrieves the user with the given email. Emails are not
// guaranteed unique; when several rows match the first is used and a warning
// is logged.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT id::text, email, coalesce(password_hash, ''), company_id::text, coalesce(role, '')
		 FROM users WHERE email = $1
		 ORDER BY id LIMIT 2`, email)
	if err != nil {
		return nil, dataAccessError("user by email", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u := &User{}
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CompanyID, &u.Role); err != nil {
			return nil, dataAccessError("user by email", fmt.Errorf("scanning user row: %w", err))
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessError("user by email", err)
	}

	switch len(users) {
	case 0:
		return nil, ErrNotFound
	case 1:
	default:
		slog.Warn("multiple users share an email, using the first", "user_id", users[0].ID)
	}
	return users[0], nil
}

// UserAccess retrieves the company and role of the user with the given id.
func (s *Store) UserAccess(ctx context.Context, userID string) (*UserAccess, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	a := &UserAccess{}
	err := s.db.QueryRow(ctx,
		`SELECT company_id::text, coalesce(role, '') FROM users WHERE id::text = $1`, userID,
	).Scan(&a.CompanyID, &a.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, dataAccessError("user access", err)
	}
	return a, nil
}

// AssignedProjectIDs lists the projects a company is assigned to without
// owning them.
func (s *Store) AssignedProjectIDs(ctx context.Context, companyID string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.collectIDs(ctx,
		`SELECT project_id::text FROM project_companies
		 WHERE company_id::text = $1 AND project_id IS NOT NULL`, companyID)
	if err != nil {
		return nil, dataAccessError("assigned projects", err)
	}
	return ids, nil
}

// ProjectsForCompany lists the projects owned by companyID or whose id is in
// assigned, newest first. With no assigned ids only ownership is queried.
func (s *Store) ProjectsForCompany(ctx context.Context, companyID string, assigned []string) ([]ProjectRow, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := `SELECT p.id::text, to_jsonb(p) FROM projects p
		 WHERE p.company_id::text = $1
		 ORDER BY p.created_at DESC`
	args := []any{companyID}
	if len(assigned) > 0 {
		query = `SELECT p.id::text, to_jsonb(p) FROM projects p
		 WHERE p.company_id::text = $1 OR p.id::text = ANY($2)
		 ORDER BY p.created_at DESC`
		args = append(args, assigned)
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, dataAccessError("projects", err)
	}
	defer rows.Close()

	var projects []ProjectRow
	for rows.Next() {
		var p ProjectRow
		if err := rows.Scan(&p.ID, &p.Attrs); err != nil {
			return nil, dataAccessError("projects", fmt.Errorf("scanning project row: %w", err))
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dataAccessError("projects", err)
	}
	return projects, nil
}

// StaffProjectIDs returns one project id per staff assignment row for the
// given projects, so counting occurrences yields the worker count.
func (s *Store) StaffProjectIDs(ctx context.Context, projectIDs []string) ([]string, error) {
	if len(projectIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	ids, err := s.collectIDs(ctx,
		`SELECT project_id::text FROM project_staff WHERE project_id::text = ANY($1)`, projectIDs)
	if err != nil {
		return nil, dataAccessError("project staff", err)
	}
	return ids, nil
}

func (s *Store) collectIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
