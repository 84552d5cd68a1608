// Package postgres implements a Postgres repository using pgx v5. Inserts are
// streamed with the binary COPY protocol; upserts COPY into a temporary
// staging table and merge into the target with INSERT ... ON CONFLICT, all in
// one transaction. A row-wise path (multi-row INSERT) is kept for callers that
// disable bulk copy.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"hringest/internal/logging"
	"hringest/internal/storage"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN    string // connection string for pgxpool
	Logger *zap.Logger
}

// Dialect is the Postgres spelling. Timestamps are written in UTC.
var Dialect = storage.Dialect{
	Name:        "postgres",
	Placeholder: storage.DollarPlaceholder,
	Quote:       storage.DoubleQuote,
	MonthOf: func(expr string) string {
		return "CAST(EXTRACT(MONTH FROM " + expr + ") AS INTEGER)"
	},
	BindTime: func(t time.Time) any { return t.UTC() },
}

// Repository is a Postgres-backed implementation of storage.Repository,
// storage.BulkCopier and storage.RowWriter.
type Repository struct {
	pool *pgxpool.Pool
	cfg  Config
	log  *zap.Logger
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, errors.Wrap(err, "pgxpool")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, errors.Wrap(err, "postgres: ping")
	}
	r := &Repository{pool: pool, cfg: cfg, log: logging.OrNop(cfg.Logger).Named("postgres")}
	return r, pool.Close, nil
}

// Kind implements storage.Repository.
func (r *Repository) Kind() string { return "postgres" }

// Dialect implements storage.Repository.
func (r *Repository) Dialect() storage.Dialect { return Dialect }

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	_, err := r.pool.Exec(ctx, sql, args...)
	return describe(err, "exec")
}

// Query implements storage.Repository.Query.
func (r *Repository) Query(ctx context.Context, sql string, args ...any) (storage.Rows, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, describe(err, "query")
	}
	return pgRows{rows}, nil
}

// BulkInsert copies rows straight into t.
func (r *Repository) BulkInsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx, pgx.Identifier{t.Name}, t.Columns, pgx.CopyFromRows(bindRows(rows)))
		return describe(err, "copy into "+t.Name)
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("copy done", zap.String(logging.FieldTable, t.Name), zap.Int64(logging.FieldInserted, n))
	return n, nil
}

// BulkUpsert copies rows into a staging table shaped like t, merges them
// into t on the key, then drops the staging table.
func (r *Repository) BulkUpsert(ctx context.Context, t storage.Table, rows [][]any) (int64, error) {
	staging := stagingName(t)
	var n int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createStagingSQL(t)); err != nil {
			return describe(err, "create staging")
		}
		var err error
		n, err = tx.CopyFrom(ctx, pgx.Identifier{staging}, t.Columns, pgx.CopyFromRows(bindRows(rows)))
		if err != nil {
			return describe(err, "copy into staging")
		}
		if _, err := tx.Exec(ctx, mergeSQL(t)); err != nil {
			return describe(err, "merge into "+t.Name)
		}
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+Dialect.Quote(staging)); err != nil {
			return describe(err, "drop staging")
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("merge done", zap.String(logging.FieldTable, t.Name), zap.Int64(logging.FieldInserted, n))
	return n, nil
}

// RowInsert implements storage.RowWriter.
func (r *Repository) RowInsert(ctx context.Context, t storage.Table, rows [][]any, batchRows int) (int64, error) {
	return r.rowWise(ctx, t, rows, batchRows, "")
}

// RowUpsert implements storage.RowWriter.
func (r *Repository) RowUpsert(ctx context.Context, t storage.Table, rows [][]any, batchRows int) (int64, error) {
	return r.rowWise(ctx, t, rows, batchRows, storage.OnConflictUpdate(Dialect, t))
}

func (r *Repository) rowWise(ctx context.Context, t storage.Table, rows [][]any, batchRows int, suffix string) (int64, error) {
	var n int64
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		for _, chunk := range storage.Chunk(rows, batchRows) {
			args, err := storage.BindRows(Dialect, t, chunk)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, storage.BuildInsert(Dialect, t, len(chunk), suffix), args...); err != nil {
				return describe(err, "insert into "+t.Name)
			}
			n += int64(len(chunk))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// inTx runs fn in a transaction, committing on success. The transaction is
// rolled back on every other exit path.
func (r *Repository) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return describe(err, "begin")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return describe(tx.Commit(ctx), "commit")
}

func stagingName(t storage.Table) string { return "staging_" + t.Name }

// createStagingSQL renders the staging table DDL: same columns and defaults
// as t, dropped at commit at the latest.
func createStagingSQL(t storage.Table) string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		Dialect.Quote(stagingName(t)), Dialect.Quote(t.Name))
}

// mergeSQL renders the staging-to-target upsert.
func mergeSQL(t storage.Table) string {
	cols := strings.Join(Dialect.QuoteAll(t.Columns), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s %s",
		Dialect.Quote(t.Name), cols, cols, Dialect.Quote(stagingName(t)),
		storage.OnConflictUpdate(Dialect, t))
}

// bindRows returns rows with values converted for the wire; the input is not
// modified.
func bindRows(rows [][]any) [][]any {
	out := make([][]any, len(rows))
	for i, r := range rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = Dialect.Bind(v)
		}
		out[i] = row
	}
	return out
}

// describe wraps err with op, surfacing the server's detail and SQLSTATE
// for Postgres errors.
func describe(err error, op string) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Detail != "" {
		return errors.Wrapf(err, "%s: %s (%s)", op, pgErr.Detail, pgErr.SQLState())
	}
	return errors.Wrap(err, op)
}

// pgRows adapts pgx.Rows to storage.Rows.
type pgRows struct{ pgx.Rows }

func (p pgRows) Close() error {
	p.Rows.Close()
	return p.Rows.Err()
}

var (
	_ storage.BulkCopier = (*Repository)(nil)
	_ storage.RowWriter  = (*Repository)(nil)
)
