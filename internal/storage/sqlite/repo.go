// Package sqlite implements a SQLite-backed storage.Repository using
// database/sql. SQLite has no bulk-load API like Postgres COPY, so it only
// offers row-wise writes: multi-row INSERT statements (with ON CONFLICT for
// upserts) inside one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"

	"hringest/internal/errs"
	"hringest/internal/parser/values"
	"hringest/internal/storage"
)

// Dialect is the SQLite spelling. Timestamps are stored as ISO-8601 UTC text
// so that strftime and lexical range filters work on them.
var Dialect = storage.Dialect{
	Name:        "sqlite",
	Placeholder: storage.QuestionPlaceholder,
	Quote:       storage.DoubleQuote,
	MonthOf: func(expr string) string {
		return "CAST(strftime('%m', " + expr + ") AS INTEGER)"
	},
	BindTime: func(t time.Time) any { return values.FormatUTC(t) },
}

// Repository is a SQLite-backed implementation of storage.Repository and
// storage.RowWriter.
type Repository struct {
	*storage.SQLRowWriter
	cfg Config
}

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return "sqlite" }

// NewRepository opens a SQLite database and returns a Repository plus a
// Close function for cleanup.
//
// The pool is limited to one connection: ":memory:" databases are private to
// a connection, and SQLite serializes writers anyway.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, errs.Configf("sqlite: DSN must not be empty")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "sqlite: ping")
	}

	// Employees reference departments and jobs; SQLite leaves FKs off unless asked.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "sqlite: enable foreign keys")
	}

	r := &Repository{
		SQLRowWriter: storage.NewSQLRowWriter(db, Dialect, storage.OnConflictUpdate),
		cfg:          cfg,
	}
	return r, func() { _ = db.Close() }, nil
}

var (
	_ storage.Repository = (*Repository)(nil)
	_ storage.RowWriter  = (*Repository)(nil)
)
