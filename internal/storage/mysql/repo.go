// Package mysql implements a MySQL-backed storage.Repository using
// database/sql and go-sql-driver/mysql. MySQL loads row-wise: multi-row
// INSERT statements, with ON DUPLICATE KEY UPDATE for upserts, inside one
// transaction.
package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"

	"hringest/internal/errs"
	"hringest/internal/storage"
)

// Config holds MySQL repository configuration.
type Config struct {
	// DSN in go-sql-driver form, e.g. "user:pass@tcp(127.0.0.1:3306)/hr".
	DSN string
}

// Dialect is the MySQL spelling. Timestamps are written in UTC.
var Dialect = storage.Dialect{
	Name:        "mysql",
	Placeholder: storage.QuestionPlaceholder,
	Quote:       storage.BacktickQuote,
	MonthOf:     func(expr string) string { return "MONTH(" + expr + ")" },
	BindTime:    func(t time.Time) any { return t.UTC() },
}

// Repository is a MySQL-backed implementation of storage.Repository and
// storage.RowWriter.
type Repository struct {
	*storage.SQLRowWriter
	cfg Config
}

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return "mysql" }

// NewRepository opens a MySQL pool and returns a Repository plus a Close
// function for cleanup. The DSN is normalized so DATETIME columns scan into
// time.Time and are interpreted as UTC.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "mysql: open")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "mysql: ping")
	}

	return newWithDB(db, cfg), func() { _ = db.Close() }, nil
}

func newWithDB(db *sql.DB, cfg Config) *Repository {
	return &Repository{
		SQLRowWriter: storage.NewSQLRowWriter(db, Dialect, storage.OnDuplicateKeyUpdate),
		cfg:          cfg,
	}
}

// normalizeDSN forces parseTime and a UTC location on dsn.
func normalizeDSN(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		return "", errs.Configf("mysql: DSN must not be empty")
	}
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", errs.Configf("mysql dsn: %v", err)
	}
	mc.ParseTime = true
	mc.Loc = time.UTC
	return mc.FormatDSN(), nil
}

var _ storage.RowWriter = (*Repository)(nil)
