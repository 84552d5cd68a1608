// Package mssql implements a Microsoft SQL Server repository using the
// go-mssqldb bulk copy API. Inserts bulk-copy straight into the target table;
// upserts bulk-copy into a session temp table (#staging_<table>) and MERGE it
// into the target, all inside one transaction.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"go.uber.org/zap"

	"hringest/internal/errs"
	"hringest/internal/logging"
	"hringest/internal/storage"
)

// Config holds MSSQL repository configuration.
type Config struct {
	DSN    string
	Logger *zap.Logger
}

// Dialect is the SQL Server spelling. Timestamps are written in UTC.
var Dialect = storage.Dialect{
	Name:        "mssql",
	Placeholder: storage.AtPlaceholder,
	Quote:       storage.BracketQuote,
	MonthOf:     func(expr string) string { return "MONTH(" + expr + ")" },
	BindTime:    func(t time.Time) any { return t.UTC() },
}

// Repository is an MSSQL-backed implementation of storage.Repository and
// storage.BulkCopier.
type Repository struct {
	db  *sql.DB
	cfg Config
	log *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	// Validate DSN early to fail fast on obvious mistakes.
	if _, err := msdsn.Parse(cfg.DSN); err != nil {
		return nil, nil, errs.Configf("mssql dsn: %v", err)
	}
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "sql.Open")
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, errors.Wrap(err, "ping")
	}
	return newWithDB(db, cfg), func() { _ = db.Close() }, nil
}

func newWithDB(db *sql.DB, cfg Config) *Repository {
	return &Repository{db: db, cfg: cfg, log: logging.OrNop(cfg.Logger).Named("mssql")}
}

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return "mssql" }

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return Dialect }

// Exec executes a SQL statement against the pool.
func (r *Repository) Exec(ctx context.Context, sqlText string, args ...any) error {
	if strings.TrimSpace(sqlText) == "" {
		return nil
	}
	_, err := r.db.ExecContext(ctx, sqlText, bindArgs(args)...)
	return errors.Wrap(err, "mssql: exec")
}

// Query runs a read query.
func (r *Repository) Query(ctx context.Context, sqlText string, args ...any) (storage.Rows, error) {
	rows, err := r.db.QueryContext(ctx, sqlText, bindArgs(args)...)
	if err != nil {
		return nil, errors.Wrap(err, "mssql: query")
	}
	return rows, nil
}

// BulkInsert bulk-copies rows directly into t.
func (r *Repository) BulkInsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		n, err = copyIn(ctx, tx, t.Name, t.Columns, rows)
		return err
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("bulk copy done", zap.String(logging.FieldTable, t.Name), zap.Int64(logging.FieldInserted, n))
	return n, nil
}

// BulkUpsert bulk-copies rows into a temp table shaped like t, merges it into
// t on the key and drops the temp table.
func (r *Repository) BulkUpsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	staging := stagingName(t)
	var n int64
	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, createStagingSQL(t)); err != nil {
			return errors.Wrap(err, "create staging")
		}
		var err error
		if n, err = copyIn(ctx, tx, staging, t.Columns, rows); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, mergeSQL(t)); err != nil {
			return errors.Wrapf(err, "merge into %s", t.Name)
		}
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+Dialect.Quote(staging)); err != nil {
			return errors.Wrap(err, "drop staging")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("merge done", zap.String(logging.FieldTable, t.Name), zap.Int64(logging.FieldInserted, n))
	return n, nil
}

func (r *Repository) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// copyIn streams rows through the bulk copy API. Constraints are checked so
// foreign keys hold for bulk-loaded rows too.
func copyIn(ctx context.Context, tx *sql.Tx, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, err := tx.PrepareContext(ctx, mssql.CopyIn(table, mssql.BulkOptions{CheckConstraints: true}, columns...))
	if err != nil {
		return 0, errors.Wrap(err, "prepare bulk")
	}
	for i := range rows {
		if _, err := stmt.ExecContext(ctx, bindArgs(rows[i])...); err != nil {
			_ = stmt.Close()
			return 0, errors.Wrapf(err, "bulk row %d", i)
		}
	}
	res, err := stmt.ExecContext(ctx)
	if cerr := stmt.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrap(err, "bulk finalize")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "rows affected")
	}
	return n, nil
}

func stagingName(t storage.Table) string { return "#staging_" + t.Name }

// createStagingSQL creates an empty temp table with t's columns.
func createStagingSQL(t storage.Table) string {
	return fmt.Sprintf("SELECT TOP 0 %s INTO %s FROM %s",
		strings.Join(Dialect.QuoteAll(t.Columns), ", "),
		Dialect.Quote(stagingName(t)), Dialect.Quote(t.Name))
}

// mergeSQL renders the staging-to-target MERGE. HOLDLOCK keeps concurrent
// merges on the same keys from both taking the insert branch.
func mergeSQL(t storage.Table) string {
	key := Dialect.Quote(t.Key)
	sets := make([]string, 0, len(t.Columns))
	for _, c := range t.NonKeyColumns() {
		q := Dialect.Quote(c)
		sets = append(sets, fmt.Sprintf("T.%s = S.%s", q, q))
	}
	cols := Dialect.QuoteAll(t.Columns)
	src := make([]string, len(cols))
	for i, c := range cols {
		src[i] = "S." + c
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "MERGE INTO %s WITH (HOLDLOCK) AS T USING %s AS S ON T.%s = S.%s",
		Dialect.Quote(t.Name), Dialect.Quote(stagingName(t)), key, key)
	if len(sets) > 0 {
		fmt.Fprintf(&sb, " WHEN MATCHED THEN UPDATE SET %s", strings.Join(sets, ", "))
	}
	fmt.Fprintf(&sb, " WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s);",
		strings.Join(cols, ", "), strings.Join(src, ", "))
	return sb.String()
}

func bindArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Dialect.Bind(a)
	}
	return out
}

var _ storage.BulkCopier = (*Repository)(nil)
