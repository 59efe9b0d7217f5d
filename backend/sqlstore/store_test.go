package sqlstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/jacentio/tombstone/softdelete"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), DefaultConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store, key string, ids ...string) {
	t.Helper()
	tx := s.Begin()
	for _, id := range ids {
		tx.SetAdd(key, id)
	}
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func post(id string) softdelete.Ref {
	return softdelete.Ref{Type: "post", ID: id}
}

// --- Config Tests ---

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Driver != "sqlite" {
		t.Errorf("expected Driver 'sqlite', got %q", cfg.Driver)
	}
	if cfg.DSN != ":memory:" {
		t.Errorf("expected DSN ':memory:', got %q", cfg.DSN)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.validate()
	if cfg.Driver != "sqlite" || cfg.DSN != ":memory:" {
		t.Errorf("expected sqlite defaults, got %+v", cfg)
	}

	cfg = Config{Driver: "pgx"}
	cfg.validate()
	if cfg.DSN != "" {
		t.Errorf("expected no DSN default for pgx, got %q", cfg.DSN)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "nope", DSN: "x"}); err == nil {
		t.Error("expected error for unknown driver")
	}
}

// --- rebind Tests ---

func TestRebind(t *testing.T) {
	tests := []struct {
		name     string
		dollar   bool
		query    string
		expected string
	}{
		{"question marks kept", false, "a = ? AND b = ?", "a = ? AND b = ?"},
		{"dollar numbering", true, "a = ? AND b = ?", "a = $1 AND b = $2"},
		{"no params", true, "SELECT 1", "SELECT 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Store{dollar: tt.dollar}
			if got := s.rebind(tt.query); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestDollarPlaceholders(t *testing.T) {
	for driver, want := range map[string]bool{"pgx": true, "postgres": true, "sqlite": false} {
		if got := dollarPlaceholders(driver); got != want {
			t.Errorf("%s: expected %v, got %v", driver, want, got)
		}
	}
}

// --- Store Tests ---

func TestReads_Empty(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.IsMember(ctx, "post:live", "1")
	if err != nil || ok {
		t.Errorf("expected no member, got %v (err=%v)", ok, err)
	}
	members, err := s.Members(ctx, "post:live")
	if err != nil || len(members) != 0 {
		t.Errorf("expected no members, got %v (err=%v)", members, err)
	}
	_, present, err := s.Field(ctx, "post:1", "deleted")
	if err != nil || present {
		t.Errorf("expected absent field, got present=%v (err=%v)", present, err)
	}
}

func TestCommit_Upserts(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, b := "a", "b"

	tx := s.Begin()
	tx.SetAdd("k", "1")
	tx.SetAdd("k", "1")
	tx.SetField("ns", "f", &a)
	tx.SetField("ns", "f", &b)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	members, _ := s.Members(ctx, "k")
	if !reflect.DeepEqual(members, []string{"1"}) {
		t.Errorf("expected [1], got %v", members)
	}
	v, _, _ := s.Field(ctx, "ns", "f")
	if v != "b" {
		t.Errorf("expected last write to win, got %q", v)
	}
}

func TestController_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, "post:live", "E1", "E2")
	c := softdelete.New(s, softdelete.DefaultConfig("post"))

	if err := c.Delete(ctx, post("E2")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(ctx, post("E2")); err != nil {
		t.Fatalf("second Delete: %v", err)
	}

	live, _ := c.Live(ctx)
	deleted, _ := c.Deleted(ctx)
	if !reflect.DeepEqual(live, []string{"E1"}) || !reflect.DeepEqual(deleted, []string{"E2"}) {
		t.Errorf("expected live [E1] deleted [E2], got %v %v", live, deleted)
	}
	if ok, _ := c.Exists(ctx, "E2"); !ok {
		t.Error("expected E2 to exist")
	}
	if ok, _ := c.Exists(ctx, "nonexistent-id"); ok {
		t.Error("expected nonexistent-id not to exist")
	}

	if err := c.Restore(ctx, post("E2")); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	report, err := c.Audit(ctx, "E2")
	if err != nil {
		t.Fatalf("Audit: %v", err)
	}
	if report.Violation != softdelete.ViolationNone || !report.Live || report.Flag.Deleted() {
		t.Errorf("expected restored live entity, got %+v", report)
	}
}

func TestController_FailedStatementRollsBack(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seed(t, s, "post:live", "1")
	c := softdelete.New(s, softdelete.DefaultConfig("post"))

	// The flag write is the last statement of the batch; make it fail.
	if _, err := s.DB().ExecContext(ctx, `DROP TABLE `+fieldsTable); err != nil {
		t.Fatalf("drop: %v", err)
	}

	err := c.Delete(ctx, post("1"))
	if !errors.Is(err, softdelete.ErrTransaction) {
		t.Fatalf("expected ErrTransaction, got %v", err)
	}

	if ok, _ := s.IsMember(ctx, "post:live", "1"); !ok {
		t.Error("expected 1 to remain live after rollback")
	}
	if ok, _ := s.IsMember(ctx, "post:deleted", "1"); ok {
		t.Error("expected 1 not to be in deleted after rollback")
	}

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if deleted, _ := c.IsDeleted(ctx, post("1")); deleted {
		t.Error("expected flag to be unset")
	}
}

func TestCommit_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tx := s.Begin()
	tx.SetAdd("post:live", "1")
	if err := tx.Commit(ctx); err == nil {
		t.Fatal("expected cancelled commit to fail")
	}
	if ok, _ := s.IsMember(context.Background(), "post:live", "1"); ok {
		t.Error("expected nothing written")
	}
}

func TestCommit_Twice(t *testing.T) {
	s := openTestStore(t)
	tx := s.Begin()
	tx.SetAdd("post:live", "1")
	if err := tx.Commit(context.Background()); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Commit(context.Background()); !errors.Is(err, ErrTxDone) {
		t.Errorf("expected ErrTxDone, got %v", err)
	}
}

func TestNew_DoesNotOwnDB(t *testing.T) {
	s := openTestStore(t)
	borrowed, err := New(context.Background(), s.DB(), "sqlite")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := borrowed.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.DB().PingContext(context.Background()); err != nil {
		t.Errorf("expected db to stay open, got %v", err)
	}
}
