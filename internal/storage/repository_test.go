package storage

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hringest/internal/errs"
)

type call struct {
	op    string
	table string
	rows  [][]any
	batch int
}

// fakeRepo is a minimal Repository that records what it is asked to do.
type fakeRepo struct {
	kind   string
	execs  []string
	calls  []call
	err    error
	closed bool
}

func (f *fakeRepo) Kind() string {
	if f.kind == "" {
		return "fake"
	}
	return f.kind
}

func (f *fakeRepo) Dialect() Dialect {
	return Dialect{Name: "fake", Placeholder: QuestionPlaceholder, Quote: DoubleQuote}
}

func (f *fakeRepo) Exec(_ context.Context, sql string, _ ...any) error {
	f.execs = append(f.execs, sql)
	return f.err
}

func (f *fakeRepo) Query(context.Context, string, ...any) (Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) record(op string, t Table, rows [][]any, batch int) (int64, error) {
	f.calls = append(f.calls, call{op: op, table: t.Name, rows: rows, batch: batch})
	if f.err != nil {
		return 0, f.err
	}
	return int64(len(rows)), nil
}

// bulkRepo only supports bulk copy.
type bulkRepo struct{ *fakeRepo }

func (b bulkRepo) BulkInsert(_ context.Context, t Table, rows [][]any) (int64, error) {
	return b.record("bulk_insert", t, rows, 0)
}

func (b bulkRepo) BulkUpsert(_ context.Context, t Table, rows [][]any) (int64, error) {
	return b.record("bulk_upsert", t, rows, 0)
}

// rowRepo only supports row-wise writes.
type rowRepo struct{ *fakeRepo }

func (r rowRepo) RowInsert(_ context.Context, t Table, rows [][]any, n int) (int64, error) {
	return r.record("row_insert", t, rows, n)
}

func (r rowRepo) RowUpsert(_ context.Context, t Table, rows [][]any, n int) (int64, error) {
	return r.record("row_upsert", t, rows, n)
}

// dualRepo supports both.
type dualRepo struct{ *fakeRepo }

func (d dualRepo) BulkInsert(ctx context.Context, t Table, rows [][]any) (int64, error) {
	return bulkRepo(d).BulkInsert(ctx, t, rows)
}

func (d dualRepo) BulkUpsert(ctx context.Context, t Table, rows [][]any) (int64, error) {
	return bulkRepo(d).BulkUpsert(ctx, t, rows)
}

func (d dualRepo) RowInsert(ctx context.Context, t Table, rows [][]any, n int) (int64, error) {
	return rowRepo(d).RowInsert(ctx, t, rows, n)
}

func (d dualRepo) RowUpsert(ctx context.Context, t Table, rows [][]any, n int) (int64, error) {
	return rowRepo(d).RowUpsert(ctx, t, rows, n)
}

func TestRegisterAndNew_Success(t *testing.T) {
	t.Parallel()

	kind := "fake-success"
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		return &fakeRepo{kind: cfg.Kind}, nil
	})

	repo, err := New(context.Background(), Config{Kind: kind})
	require.NoError(t, err)
	assert.Equal(t, kind, repo.Kind())
	assert.Contains(t, ListKinds(), kind)
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "does-not-exist"})
	require.Error(t, err)
	assert.Equal(t, "unsupported storage.kind=does-not-exist", err.Error())
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
}

// Re-registering a kind overrides the previous factory.
func TestRegister_Override(t *testing.T) {
	t.Parallel()

	kind := "override"
	calls := 0
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		return &fakeRepo{}, nil
	})
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		calls += 10
		return &fakeRepo{}, nil
	})

	_, err := New(context.Background(), Config{Kind: kind})
	require.NoError(t, err)
	assert.Equal(t, 10, calls)
}

func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(ctx context.Context, cfg Config) (Repository, error) { return &fakeRepo{}, nil })

	a := ListKinds()
	require.NotEmpty(t, a)
	a[0] = "mutated"
	assert.NotContains(t, ListKinds(), "mutated")
}

func TestRegister_AllowsErrors(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, want
	})

	_, err := New(context.Background(), Config{Kind: "errkind"})
	assert.True(t, errors.Is(err, want))
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	RegisterDDL("schema-fake", func(ctx context.Context, repo Repository) error {
		return ExecAll(ctx, repo, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"})
	})

	repo := &fakeRepo{kind: "schema-fake"}
	require.NoError(t, EnsureSchema(context.Background(), repo))
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, repo.execs)

	repo.err = errors.New("syntax error")
	err := EnsureSchema(context.Background(), repo)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure schema (schema-fake)")

	err = EnsureSchema(context.Background(), &fakeRepo{kind: "no-ddl"})
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	m, err := ParseMode(" Upsert ")
	require.NoError(t, err)
	assert.Equal(t, ModeUpsert, m)

	_, err = ParseMode("merge")
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
}

func TestTableFor(t *testing.T) {
	t.Parallel()

	tb := TableFor("employees")
	assert.Equal(t, []string{"id", "name", "department_id", "job_id", "hire_date"}, tb.Columns)
	assert.Equal(t, []string{"name", "department_id", "job_id", "hire_date"}, tb.NonKeyColumns())
	assert.Equal(t, []int{0, 1}, tb.NotNullIndexes())
	assert.Equal(t, 0, tb.KeyIndex())
}
