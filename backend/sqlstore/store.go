// Package sqlstore implements softdelete.Store on a relational database.
//
// Sets are rows of tombstone_set_members and attribute fields are rows of
// tombstone_fields. A batch runs in one database transaction. The default
// driver is the pure Go "sqlite"; the "pgx" driver is registered for Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"             // pure go sqlite driver

	"github.com/jacentio/tombstone/softdelete"
)

const (
	membersTable = "tombstone_set_members"
	fieldsTable  = "tombstone_fields"
)

// ErrTxDone is returned when Commit is called twice on one batch.
var ErrTxDone = errors.New("sqlstore: transaction already finished")

// Compile-time contract assertion.
var _ softdelete.Store = (*Store)(nil)

// Config selects the database.
type Config struct {
	// Driver is a database/sql driver name: "sqlite" or "pgx".
	// Default: "sqlite"
	Driver string

	// DSN is passed to sql.Open.
	// Default: ":memory:"
	DSN string
}

// DefaultConfig returns an in-memory SQLite configuration.
func DefaultConfig() Config {
	return Config{
		Driver: "sqlite",
		DSN:    ":memory:",
	}
}

func (c *Config) validate() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = ":memory:"
	}
}

// dollarPlaceholders reports whether the driver expects $1-style parameters.
func dollarPlaceholders(driver string) bool {
	return driver == "pgx" || driver == "postgres"
}

// Store is a softdelete.Store backed by database/sql.
type Store struct {
	db     *sql.DB
	dollar bool
	owned  bool
}

// Open connects with config, pings, and creates the tables if needed.
func Open(ctx context.Context, config Config) (*Store, error) {
	config.validate()
	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", config.Driver, err)
	}
	if config.Driver == "sqlite" {
		// Every connection to ":memory:" is a separate database, and SQLite
		// serialises writers anyway.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", config.Driver, err)
	}
	s, err := New(ctx, db, config.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// New wraps an open database and creates the tables if needed.
// The caller keeps ownership of db.
func New(ctx context.Context, db *sql.DB, driver string) (*Store, error) {
	s := &Store{db: db, dollar: dollarPlaceholders(driver)}
	if err := s.Migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate creates the member and field tables.
func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + membersTable + ` (
			set_key TEXT NOT NULL,
			member  TEXT NOT NULL,
			PRIMARY KEY (set_key, member)
		)`,
		`CREATE TABLE IF NOT EXISTS ` + fieldsTable + ` (
			ns_key TEXT NOT NULL,
			field  TEXT NOT NULL,
			value  TEXT NOT NULL,
			PRIMARY KEY (ns_key, field)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// rebind rewrites ? placeholders for drivers that use $n.
func (s *Store) rebind(query string) string {
	if !s.dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Begin opens a new write batch.
func (s *Store) Begin() softdelete.Tx {
	return &tx{store: s}
}

// IsMember reports whether member belongs to the set at key.
func (s *Store) IsMember(ctx context.Context, key, member string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT 1 FROM `+membersTable+` WHERE set_key = ? AND member = ?`),
		key, member,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("select member: %w", err)
	}
	return true, nil
}

// Members returns the members of the set at key in sorted order.
func (s *Store) Members(ctx context.Context, key string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind(`SELECT member FROM `+membersTable+` WHERE set_key = ? ORDER BY member`),
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("select members: %w", err)
	}
	defer func() { _ = rows.Close() }()

	members := []string{}
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Field returns the value of field at key.
func (s *Store) Field(ctx context.Context, key, field string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM `+fieldsTable+` WHERE ns_key = ? AND field = ?`),
		key, field,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select field: %w", err)
	}
	return v, true, nil
}

type stmt struct {
	query string
	args  []any
}

type tx struct {
	store *Store
	stmts []stmt
	done  bool
}

func (t *tx) SetAdd(key, member string) {
	t.stmts = append(t.stmts, stmt{
		query: `INSERT INTO ` + membersTable + ` (set_key, member) VALUES (?, ?) ON CONFLICT (set_key, member) DO NOTHING`,
		args:  []any{key, member},
	})
}

func (t *tx) SetRemove(key, member string) {
	t.stmts = append(t.stmts, stmt{
		query: `DELETE FROM ` + membersTable + ` WHERE set_key = ? AND member = ?`,
		args:  []any{key, member},
	})
}

func (t *tx) SetField(key, field string, value *string) {
	if value == nil {
		t.stmts = append(t.stmts, stmt{
			query: `DELETE FROM ` + fieldsTable + ` WHERE ns_key = ? AND field = ?`,
			args:  []any{key, field},
		})
		return
	}
	t.stmts = append(t.stmts, stmt{
		query: `INSERT INTO ` + fieldsTable + ` (ns_key, field, value) VALUES (?, ?, ?) ON CONFLICT (ns_key, field) DO UPDATE SET value = excluded.value`,
		args:  []any{key, field, *value},
	})
}

// Commit runs every statement in one database transaction.
func (t *tx) Commit(ctx context.Context) (retErr error) {
	if t.done {
		return ErrTxDone
	}
	t.done = true
	if len(t.stmts) == 0 {
		return nil
	}

	dbtx, err := t.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = dbtx.Rollback()
		}
	}()

	for i, st := range t.stmts {
		if _, err := dbtx.ExecContext(ctx, t.store.rebind(st.query), st.args...); err != nil {
			return fmt.Errorf("statement %d: %w", i, err)
		}
	}
	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
