package store

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- fake pgx rows / db ---

type fakeRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Values() ([]any, error) { return r.data[r.idx-1], nil }

func (r *fakeRows) Scan(dest ...any) error {
	return scanInto(r.data[r.idx-1], dest)
}

type fakeRow struct {
	values []any
	err    error
}

func (r *fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanInto(r.values, dest)
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i]).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		target.Set(reflect.ValueOf(v))
	}
	return nil
}

type call struct {
	sql         string
	args        []any
	hasDeadline bool
}

type fakeDB struct {
	rows     *fakeRows
	row      *fakeRow
	queryErr error
	pingErr  error
	calls    []call
}

func (f *fakeDB) record(ctx context.Context, sql string, args []any) {
	_, ok := ctx.Deadline()
	f.calls = append(f.calls, call{sql: sql, args: args, hasDeadline: ok})
}

func (f *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.record(ctx, sql, args)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if f.rows == nil {
		return &fakeRows{}, nil
	}
	return f.rows, nil
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.record(ctx, sql, args)
	return f.row
}

func (f *fakeDB) Ping(ctx context.Context) error {
	f.record(ctx, "ping", nil)
	return f.pingErr
}

func strPtr(s string) *string { return &s }

// --- tests ---

func TestUserByEmail(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{"u1", "x@x.com", "$2a$hash", strPtr("7"), "admin"},
	}}}
	s := New(db, time.Second)

	u, err := s.UserByEmail(context.Background(), "x@x.com")
	if err != nil {
		t.Fatalf("UserByEmail() error: %v", err)
	}
	if u.ID != "u1" || u.Role != "admin" || u.CompanyID == nil || *u.CompanyID != "7" {
		t.Errorf("unexpected user: %+v", u)
	}
	if got := db.calls[0].args; len(got) != 1 || got[0] != "x@x.com" {
		t.Errorf("expected email parameter, got %v", got)
	}
	if !db.rows.closed {
		t.Error("expected rows to be closed")
	}
}

func TestUserByEmailDuplicateUsesFirst(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{
		{"u1", "x@x.com", "h1", nil, "admin"},
		{"u2", "x@x.com", "h2", nil, "member"},
	}}}
	s := New(db, time.Second)

	u, err := s.UserByEmail(context.Background(), "x@x.com")
	if err != nil {
		t.Fatalf("UserByEmail() error: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("expected first row, got %q", u.ID)
	}
	if u.CompanyID != nil {
		t.Errorf("expected nil company, got %v", *u.CompanyID)
	}
}

func TestUserByEmailNotFound(t *testing.T) {
	s := New(&fakeDB{}, time.Second)

	_, err := s.UserByEmail(context.Background(), "nobody@x.com")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUserByEmailQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	s := New(&fakeDB{queryErr: boom}, time.Second)

	_, err := s.UserByEmail(context.Background(), "x@x.com")
	var dae *DataAccessError
	if !errors.As(err, &dae) {
		t.Fatalf("expected DataAccessError, got %v", err)
	}
	if dae.Op != "user by email" || !errors.Is(err, boom) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUserAccess(t *testing.T) {
	tests := []struct {
		name        string
		row         *fakeRow
		wantErr     error
		wantDAE     bool
		wantRole    string
		wantCompany *string
	}{
		{
			name:        "found",
			row:         &fakeRow{values: []any{strPtr("c1"), "admin"}},
			wantRole:    "admin",
			wantCompany: strPtr("c1"),
		},
		{
			name:     "no company",
			row:      &fakeRow{values: []any{nil, "member"}},
			wantRole: "member",
		},
		{
			name:    "not found",
			row:     &fakeRow{err: pgx.ErrNoRows},
			wantErr: ErrNotFound,
		},
		{
			name:    "store failure",
			row:     &fakeRow{err: errors.New("timeout")},
			wantDAE: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(&fakeDB{row: tt.row}, time.Second)
			a, err := s.UserAccess(context.Background(), "u1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if tt.wantDAE {
				var dae *DataAccessError
				if !errors.As(err, &dae) {
					t.Fatalf("expected DataAccessError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Role != tt.wantRole {
				t.Errorf("role: got %q, want %q", a.Role, tt.wantRole)
			}
			if !reflect.DeepEqual(a.CompanyID, tt.wantCompany) {
				t.Errorf("company: got %v, want %v", a.CompanyID, tt.wantCompany)
			}
		})
	}
}

func TestAssignedProjectIDs(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{{"p1"}, {"p2"}}}}
	s := New(db, time.Second)

	ids, err := s.AssignedProjectIDs(context.Background(), "c1")
	if err != nil {
		t.Fatalf("AssignedProjectIDs() error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"p1", "p2"}) {
		t.Errorf("unexpected ids: %v", ids)
	}
	if !strings.Contains(db.calls[0].sql, "project_companies") {
		t.Errorf("expected project_companies query, got %s", db.calls[0].sql)
	}
}

func TestProjectsForCompanyQueryShape(t *testing.T) {
	t.Run("owner only", func(t *testing.T) {
		db := &fakeDB{}
		s := New(db, time.Second)

		if _, err := s.ProjectsForCompany(context.Background(), "c1", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c := db.calls[0]
		if strings.Contains(c.sql, "ANY") {
			t.Errorf("expected no id filter without assignments: %s", c.sql)
		}
		if len(c.args) != 1 {
			t.Errorf("expected 1 arg, got %d", len(c.args))
		}
		if !strings.Contains(c.sql, "ORDER BY p.created_at DESC") {
			t.Errorf("expected newest-first ordering: %s", c.sql)
		}
	})

	t.Run("owner or assigned", func(t *testing.T) {
		db := &fakeDB{rows: &fakeRows{data: [][]any{
			{"p2", []byte(`{"id":"p2"}`)},
			{"p1", []byte(`{"id":"p1"}`)},
		}}}
		s := New(db, time.Second)

		rows, err := s.ProjectsForCompany(context.Background(), "c1", []string{"p2"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		c := db.calls[0]
		if !strings.Contains(c.sql, "OR p.id::text = ANY($2)") {
			t.Errorf("expected OR branch: %s", c.sql)
		}
		if !reflect.DeepEqual(c.args[1], []string{"p2"}) {
			t.Errorf("expected assigned ids arg, got %v", c.args[1])
		}
		if len(rows) != 2 || rows[0].ID != "p2" || string(rows[1].Attrs) != `{"id":"p1"}` {
			t.Errorf("unexpected rows: %+v", rows)
		}
	})
}

func TestProjectsForCompanyRowsError(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{err: errors.New("broken pipe")}}
	s := New(db, time.Second)

	_, err := s.ProjectsForCompany(context.Background(), "c1", nil)
	var dae *DataAccessError
	if !errors.As(err, &dae) || dae.Op != "projects" {
		t.Errorf("expected projects DataAccessError, got %v", err)
	}
}

func TestStaffProjectIDsSkipsEmpty(t *testing.T) {
	db := &fakeDB{}
	s := New(db, time.Second)

	ids, err := s.StaffProjectIDs(context.Background(), nil)
	if err != nil || ids != nil {
		t.Errorf("expected nil, nil; got %v, %v", ids, err)
	}
	if len(db.calls) != 0 {
		t.Errorf("expected no query, got %d", len(db.calls))
	}
}

func TestStaffProjectIDs(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{data: [][]any{{"p1"}, {"p1"}, {"p2"}}}}
	s := New(db, time.Second)

	ids, err := s.StaffProjectIDs(context.Background(), []string{"p1", "p2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 {
		t.Errorf("expected one id per staff row, got %v", ids)
	}
}

func TestCallsAreBoundedByTimeout(t *testing.T) {
	db := &fakeDB{row: &fakeRow{values: []any{nil, "admin"}}}
	s := New(db, time.Second)

	_, _ = s.UserAccess(context.Background(), "u1")
	_, _ = s.AssignedProjectIDs(context.Background(), "c1")
	_ = s.Ping(context.Background())

	for _, c := range db.calls {
		if !c.hasDeadline {
			t.Errorf("expected deadline on %q", c.sql)
		}
	}
}

func TestZeroTimeoutHasNoDeadline(t *testing.T) {
	db := &fakeDB{}
	s := New(db, 0)

	_, _ = s.AssignedProjectIDs(context.Background(), "c1")
	if db.calls[0].hasDeadline {
		t.Error("expected no deadline when timeout is disabled")
	}
}

func TestPingError(t *testing.T) {
	s := New(&fakeDB{pingErr: errors.New("down")}, time.Second)

	var dae *DataAccessError
	if err := s.Ping(context.Background()); !errors.As(err, &dae) {
		t.Errorf("expected DataAccessError, got %v", err)
	}
}

func TestDataAccessErrorMessage(t *testing.T) {
	err := dataAccessError("projects", errors.New("boom"))
	if err.Error() != "store: projects: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
