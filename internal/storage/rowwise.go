package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// UpsertClause renders the conflict clause appended to a multi-row INSERT.
type UpsertClause func(d Dialect, t Table) string

// OnConflictUpdate renders "ON CONFLICT (key) DO UPDATE SET c = excluded.c"
// (Postgres, SQLite).
func OnConflictUpdate(d Dialect, t Table) string {
	sets := make([]string, 0, len(t.Columns))
	for _, c := range t.NonKeyColumns() {
		q := d.Quote(c)
		sets = append(sets, fmt.Sprintf("%s = excluded.%s", q, q))
	}
	if len(sets) == 0 {
		return fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", d.Quote(t.Key))
	}
	return fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", d.Quote(t.Key), strings.Join(sets, ", "))
}

// OnDuplicateKeyUpdate renders "ON DUPLICATE KEY UPDATE c = VALUES(c)"
// (MySQL).
func OnDuplicateKeyUpdate(d Dialect, t Table) string {
	cols := t.NonKeyColumns()
	if len(cols) == 0 {
		cols = []string{t.Key}
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		q := d.Quote(c)
		sets = append(sets, fmt.Sprintf("%s = VALUES(%s)", q, q))
	}
	return "ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// BuildInsert renders a parameterized INSERT of nrows rows into t, followed
// by suffix when non-empty.
//
//	INSERT INTO "t" ("a", "b") VALUES ($1, $2), ($3, $4) <suffix>
func BuildInsert(d Dialect, t Table, nrows int, suffix string) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(d.Quote(t.Name))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(d.QuoteAll(t.Columns), ", "))
	sb.WriteString(") VALUES ")

	n := 1
	for r := 0; r < nrows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := range t.Columns {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(d.Placeholder(n))
			n++
		}
		sb.WriteByte(')')
	}
	if suffix != "" {
		sb.WriteByte(' ')
		sb.WriteString(suffix)
	}
	return sb.String()
}

// BindRows flattens rows into one argument list, converting values with
// d.Bind. Every row must have len(t.Columns) values.
func BindRows(d Dialect, t Table, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(rows)*len(t.Columns))
	for i, r := range rows {
		if len(r) != len(t.Columns) {
			return nil, errors.Newf("%s: row %d has %d values, want %d", t.Name, i, len(r), len(t.Columns))
		}
		for _, v := range r {
			args = append(args, d.Bind(v))
		}
	}
	return args, nil
}

// SQLRowWriter implements Exec, Query and RowWriter over database/sql for
// backends without a bulk-load protocol. Backends embed it.
type SQLRowWriter struct {
	db      *sql.DB
	dialect Dialect
	upsert  UpsertClause
}

// NewSQLRowWriter returns a SQLRowWriter for db.
func NewSQLRowWriter(db *sql.DB, d Dialect, upsert UpsertClause) *SQLRowWriter {
	return &SQLRowWriter{db: db, dialect: d, upsert: upsert}
}

// DB returns the underlying handle.
func (w *SQLRowWriter) DB() *sql.DB { return w.db }

// Close closes the underlying handle.
func (w *SQLRowWriter) Close() { _ = w.db.Close() }

// Dialect implements Repository.Dialect.
func (w *SQLRowWriter) Dialect() Dialect { return w.dialect }

// Exec executes a statement (typically DDL). Empty statements are ignored.
func (w *SQLRowWriter) Exec(ctx context.Context, query string, args ...any) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	if _, err := w.db.ExecContext(ctx, query, w.bindArgs(args)...); err != nil {
		return errors.Wrapf(err, "%s: exec", w.dialect.Name)
	}
	return nil
}

// Query runs a read query.
func (w *SQLRowWriter) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	rows, err := w.db.QueryContext(ctx, query, w.bindArgs(args)...)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: query", w.dialect.Name)
	}
	return rows, nil
}

// RowInsert implements RowWriter.
func (w *SQLRowWriter) RowInsert(ctx context.Context, t Table, rows [][]any, batchRows int) (int64, error) {
	return w.write(ctx, t, rows, batchRows, "")
}

// RowUpsert implements RowWriter.
func (w *SQLRowWriter) RowUpsert(ctx context.Context, t Table, rows [][]any, batchRows int) (int64, error) {
	if w.upsert == nil {
		return 0, errors.Newf("%s: upsert is not supported", w.dialect.Name)
	}
	return w.write(ctx, t, rows, batchRows, w.upsert(w.dialect, t))
}

// write runs one INSERT per chunk inside a single transaction.
func (w *SQLRowWriter) write(ctx context.Context, t Table, rows [][]any, batchRows int, suffix string) (written int64, err error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "%s: begin tx", w.dialect.Name)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, chunk := range Chunk(rows, batchRows) {
		args, berr := BindRows(w.dialect, t, chunk)
		if berr != nil {
			return 0, berr
		}
		q := BuildInsert(w.dialect, t, len(chunk), suffix)
		if _, err = tx.ExecContext(ctx, q, args...); err != nil {
			return 0, errors.Wrapf(err, "%s: insert into %s", w.dialect.Name, t.Name)
		}
		written += int64(len(chunk))
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrapf(err, "%s: commit", w.dialect.Name)
	}
	return written, nil
}

func (w *SQLRowWriter) bindArgs(args []any) []any {
	if w.dialect.BindTime == nil || len(args) == 0 {
		return args
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = w.dialect.Bind(a)
	}
	return out
}
