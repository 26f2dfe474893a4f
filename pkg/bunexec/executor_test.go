package bunexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/goliatone/go-repository-finder/finder"
	"github.com/goliatone/go-repository-finder/query"
	"github.com/goliatone/go-repository-finder/repositorycache"
)

type supportTicket struct {
	bun.BaseModel `bun:"table:support_tickets"`

	ID        string `bun:"id,pk" json:"id"`
	Status    string `bun:"status" json:"status"`
	Title     string `bun:"title" json:"title"`
	OwnerID   string `bun:"owner_id" json:"owner_id"`
	CreatedAt int64  `bun:"created_at" json:"created_at"`
}

func (t *supportTicket) SetRelation(name string, related any) error {
	switch name {
	case "owner":
		id, ok := related.(string)
		if !ok {
			return fmt.Errorf("owner must be an id, got %T", related)
		}
		t.OwnerID = id
		return nil
	default:
		return fmt.Errorf("unknown relation %q", name)
	}
}

// ticketStore is a minimal bun backed Store.
type ticketStore struct {
	db *bun.DB
}

func (s ticketStore) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]*supportTicket, int, error) {
	var records []*supportTicket
	q := s.db.NewSelect().Model(&records)
	for _, c := range criteria {
		q = c(q)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, 0, err
	}
	return records, len(records), nil
}

func (s ticketStore) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	q := s.db.NewSelect().Model((*supportTicket)(nil))
	for _, c := range criteria {
		q = c(q)
	}
	return q.Count(ctx)
}

func (s ticketStore) Upsert(ctx context.Context, record *supportTicket, _ ...repository.UpdateCriteria) (*supportTicket, error) {
	_, err := s.db.NewInsert().
		Model(record).
		On("CONFLICT (id) DO UPDATE").
		Set("status = EXCLUDED.status").
		Set("title = EXCLUDED.title").
		Set("owner_id = EXCLUDED.owner_id").
		Set("created_at = EXCLUDED.created_at").
		Exec(ctx)
	return record, err
}

func (s ticketStore) Delete(ctx context.Context, record *supportTicket) error {
	_, err := s.db.NewDelete().Model(record).WherePK().Exec(ctx)
	return err
}

func setupDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	if _, err := db.NewCreateTable().Model((*supportTicket)(nil)).Exec(ctx); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func seed(t *testing.T, db *bun.DB, tickets ...*supportTicket) {
	t.Helper()
	if len(tickets) == 0 {
		return
	}
	if _, err := db.NewInsert().Model(&tickets).Exec(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func newTestExecutor(t *testing.T) (*Executor[*supportTicket], *bun.DB) {
	t.Helper()
	db := setupDB(t)
	seed(t, db,
		&supportTicket{ID: "t1", Status: "open", Title: "printer", CreatedAt: 1},
		&supportTicket{ID: "t2", Status: "open", Title: "vpn", CreatedAt: 2},
		&supportTicket{ID: "t3", Status: "closed", Title: "email", CreatedAt: 3},
		&supportTicket{ID: "t4", Status: "open", Title: "laptop", CreatedAt: 4},
		&supportTicket{ID: "t5", Status: "pending", Title: "badge", CreatedAt: 5},
	)
	return New[*supportTicket](ticketStore{db: db}, db), db
}

func ids(records []*supportTicket) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func mustPlan(t *testing.T, signature string, qualifier any, opts query.Options) query.Plan {
	t.Helper()
	intent := finder.MustParse(signature)
	filter, err := query.Resolve(intent.Field, qualifier)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	return query.Build(intent, filter, opts)
}

func TestNew_DefaultTable(t *testing.T) {
	exec := New[*supportTicket](nil, nil)
	if exec.Table() != "support_tickets" {
		t.Errorf("Table() = %q, want support_tickets", exec.Table())
	}
	if got := New[*supportTicket](nil, nil, WithTable("tickets")).Table(); got != "tickets" {
		t.Errorf("WithTable() = %q", got)
	}
}

func TestExecutor_ExecuteMultiple(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	tests := []struct {
		name      string
		signature string
		qualifier any
		opts      query.Options
		want      []string
	}{
		{name: "latest three", signature: "getLatest3ByStatus", qualifier: "open", want: []string{"t4", "t2", "t1"}},
		{name: "latest two", signature: "getLatest2ByStatus", qualifier: "open", want: []string{"t4", "t2"}},
		{name: "oldest", signature: "getOldestByStatus", qualifier: "open", want: []string{"t1", "t2", "t4"}},
		{name: "in set", signature: "getOldestByStatus", qualifier: []string{"closed", "pending"}, want: []string{"t3", "t5"}},
		{name: "no match", signature: "getByStatus", qualifier: "archived", want: []string{}},
		{
			name:      "explicit order",
			signature: "getLatestByStatus",
			qualifier: "open",
			opts:      query.Options{Order: &query.Ordering{Field: "title", Direction: query.Ascending}},
			want:      []string{"t4", "t1", "t2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := exec.ExecuteMultiple(ctx, mustPlan(t, tt.signature, tt.qualifier, tt.opts))
			if err != nil {
				t.Fatalf("ExecuteMultiple() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, ids(records), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("ids mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecutor_ExecuteSingle(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	got, err := exec.ExecuteSingle(ctx, mustPlan(t, "findLatestByStatus", "open", query.Options{}))
	if err != nil {
		t.Fatalf("ExecuteSingle() error = %v", err)
	}
	if got.ID != "t4" {
		t.Errorf("ExecuteSingle() = %s, want t4", got.ID)
	}

	_, err = exec.ExecuteSingle(ctx, mustPlan(t, "findByStatus", "archived", query.Options{}))
	if !errors.Is(err, repositorycache.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExecutor_Projection(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	plan := mustPlan(t, "findByTitle", "vpn", query.Options{Columns: []string{"id", "title"}})
	got, err := exec.ExecuteSingle(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "t2" || got.Title != "vpn" || got.Status != "" {
		t.Errorf("only projected columns should be loaded, got %+v", got)
	}
}

func TestExecutor_ExecuteCount(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	n, err := exec.ExecuteCount(ctx, query.BuildCount())
	if err != nil || n != 5 {
		t.Fatalf("ExecuteCount() = %d, %v; want 5", n, err)
	}

	filter, _ := query.Resolve("status", "open")
	n, err = exec.ExecuteCount(ctx, query.BuildCount(filter))
	if err != nil || n != 3 {
		t.Fatalf("ExecuteCount(status=open) = %d, %v; want 3", n, err)
	}
}

func TestExecutor_Writes(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	if err := exec.Persist(ctx, &supportTicket{ID: "t6", Status: "open", Title: "monitor", CreatedAt: 6}); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if err := exec.Persist(ctx, &supportTicket{ID: "t1", Status: "closed", Title: "printer", CreatedAt: 1}); err != nil {
		t.Fatalf("Persist() update error = %v", err)
	}

	err := exec.Insert(ctx, []repositorycache.Attributes{
		{"id": "t7", "status": "open", "title": "chair", "owner_id": "", "created_at": 7},
		{"id": "t8", "status": "pending", "title": "desk", "owner_id": "", "created_at": 8},
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	open, err := exec.ExecuteMultiple(ctx, mustPlan(t, "getOldestByStatus", "open", query.Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"t2", "t4", "t6", "t7"}, ids(open)); diff != "" {
		t.Errorf("open tickets mismatch (-want +got):\n%s", diff)
	}

	n, err := exec.DeleteByIDs(ctx, []any{"t7", "t8", "missing"})
	if err != nil || n != 2 {
		t.Fatalf("DeleteByIDs() = %d, %v; want 2", n, err)
	}

	if err := exec.DeleteRecord(ctx, &supportTicket{ID: "t6"}); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}

	total, _ := exec.ExecuteCount(ctx, query.BuildCount())
	if total != 5 {
		t.Errorf("expected 5 rows after deletes, got %d", total)
	}
}

func TestExecutor_AssociateAndPersist(t *testing.T) {
	ctx := context.Background()
	exec, _ := newTestExecutor(t)

	record := &supportTicket{ID: "t2", Status: "open", Title: "vpn", CreatedAt: 2}
	if err := exec.AssociateAndPersist(ctx, record, map[string]any{"owner": "ada"}); err != nil {
		t.Fatalf("AssociateAndPersist() error = %v", err)
	}

	got, err := exec.ExecuteSingle(ctx, mustPlan(t, "findByOwnerID", "ada", query.Options{}))
	if err != nil || got.ID != "t2" {
		t.Fatalf("expected t2 owned by ada, got %+v %v", got, err)
	}

	err = exec.AssociateAndPersist(ctx, record, map[string]any{"watchers": []string{"bob"}})
	if err == nil {
		t.Error("unknown relation should fail")
	}

	plain := New[string](nil, nil)
	if err := plain.AssociateAndPersist(ctx, "x", nil); !errors.Is(err, ErrRelationsUnsupported) {
		t.Errorf("expected ErrRelationsUnsupported, got %v", err)
	}
}

func TestExecutor_Make(t *testing.T) {
	exec := New[*supportTicket](nil, nil)

	got, err := exec.Make(repositorycache.Attributes{
		"id":         "new",
		"status":     "draft",
		"owner_id":   "ada",
		"created_at": 42,
		"ignored":    true,
	})
	if err != nil {
		t.Fatalf("Make() error = %v", err)
	}

	want := &supportTicket{ID: "new", Status: "draft", OwnerID: "ada", CreatedAt: 42}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(supportTicket{}, "BaseModel")); diff != "" {
		t.Errorf("Make() mismatch (-want +got):\n%s", diff)
	}
}

func TestCriteria_Shape(t *testing.T) {
	plan := query.Plan{
		Mode:    query.ModeMultiple,
		Filters: []query.Filter{{Field: "status", Mode: query.Equals, Value: "open"}},
		Order:   &query.Ordering{Field: "created_at", Direction: query.Descending},
		Columns: []string{"id"},
		Limit:   3,
	}
	if got := len(Criteria(plan)); got != 4 {
		t.Errorf("expected filter, order, columns and limit criteria, got %d", got)
	}
	if got := len(Criteria(query.BuildAll(query.Options{}))); got != 0 {
		t.Errorf("unfiltered natural plan should need no criteria, got %d", got)
	}
}
