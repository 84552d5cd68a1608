package storage

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hringest/internal/errs"
	"hringest/internal/records"
)

func depts(pairs ...any) []records.Record {
	var out []records.Record
	for i := 0; i+1 < len(pairs); i += 2 {
		d := records.Department{ID: int64(pairs[i].(int))}
		if s, ok := pairs[i+1].(string); ok {
			d.Name = records.Text(s)
		}
		out = append(out, d)
	}
	return out
}

func TestNewLoader_Strategy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		repo   Repository
		prefer bool
		want   Strategy
	}{
		{"bulk only, preferred", bulkRepo{&fakeRepo{}}, true, StrategyBulkCopy},
		{"bulk only, not preferred", bulkRepo{&fakeRepo{}}, false, StrategyBulkCopy},
		{"rows only, preferred", rowRepo{&fakeRepo{}}, true, StrategyRowWise},
		{"dual, preferred", dualRepo{&fakeRepo{}}, true, StrategyBulkCopy},
		{"dual, not preferred", dualRepo{&fakeRepo{}}, false, StrategyRowWise},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l, err := NewLoader(tt.repo, LoaderOptions{PreferBulkCopy: tt.prefer})
			require.NoError(t, err)
			assert.Equal(t, tt.want, l.Strategy())
		})
	}

	_, err := NewLoader(&fakeRepo{}, LoaderOptions{})
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
}

func TestLoad_BulkInsert(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	l, err := NewLoader(bulkRepo{f}, LoaderOptions{PreferBulkCopy: true})
	require.NoError(t, err)

	res, err := l.Load(context.Background(), records.Departments, depts(1, "Engineering", 2, "Sales"), ModeInsert, false)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{Written: 2}, res)
	require.Len(t, f.calls, 1)
	assert.Equal(t, "bulk_insert", f.calls[0].op)
	assert.Equal(t, "departments", f.calls[0].table)
	assert.Equal(t, [][]any{{int64(1), "Engineering"}, {int64(2), "Sales"}}, f.calls[0].rows)
}

func TestLoad_BulkNullPrefilter(t *testing.T) {
	t.Parallel()

	recs := depts(1, "Engineering", 2, nil, 3, "Sales", 4, nil)

	t.Run("skip", func(t *testing.T) {
		t.Parallel()
		f := &fakeRepo{}
		l, _ := NewLoader(bulkRepo{f}, LoaderOptions{})
		res, err := l.Load(context.Background(), records.Departments, recs, ModeInsert, true)
		require.NoError(t, err)
		assert.Equal(t, LoadResult{Written: 2, Skipped: 2}, res)
		require.Len(t, f.calls, 1)
		assert.Len(t, f.calls[0].rows, 2)
	})

	t.Run("strict", func(t *testing.T) {
		t.Parallel()
		f := &fakeRepo{}
		l, _ := NewLoader(bulkRepo{f}, LoaderOptions{})
		_, err := l.Load(context.Background(), records.Departments, recs, ModeUpsert, false)
		var rve *errs.RowValidationError
		require.True(t, errors.As(err, &rve))
		assert.Equal(t, 0, rve.Row)
		assert.Contains(t, rve.Reason, "2 rows have empty NOT NULL columns")
		assert.Empty(t, f.calls, "no copy may start after a pre-flight rejection")
	})

	t.Run("all filtered", func(t *testing.T) {
		t.Parallel()
		f := &fakeRepo{}
		l, _ := NewLoader(bulkRepo{f}, LoaderOptions{})
		res, err := l.Load(context.Background(), records.Departments, depts(1, nil), ModeInsert, true)
		require.NoError(t, err)
		assert.Equal(t, LoadResult{Skipped: 1}, res)
		assert.Empty(t, f.calls)
	})
}

// The row-wise path leaves NOT NULL enforcement to the store.
func TestLoad_RowWiseDoesNotPrefilter(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	l, err := NewLoader(rowRepo{f}, LoaderOptions{MaxBatchRows: 50})
	require.NoError(t, err)

	res, err := l.Load(context.Background(), records.Departments, depts(1, "A", 2, nil), ModeInsert, false)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Written)
	require.Len(t, f.calls, 1)
	assert.Equal(t, "row_insert", f.calls[0].op)
	assert.Equal(t, 50, f.calls[0].batch)
}

func TestLoad_UpsertCollapsesDuplicateKeys(t *testing.T) {
	t.Parallel()

	for _, repo := range []func(*fakeRepo) Repository{
		func(f *fakeRepo) Repository { return bulkRepo{f} },
		func(f *fakeRepo) Repository { return rowRepo{f} },
	} {
		f := &fakeRepo{}
		l, err := NewLoader(repo(f), LoaderOptions{PreferBulkCopy: true})
		require.NoError(t, err)

		res, err := l.Load(context.Background(), records.Departments,
			depts(1, "Old", 2, "Sales", 1, "New"), ModeUpsert, false)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.Written, "Written counts every occurrence of a repeated id")
		require.Len(t, f.calls, 1)
		assert.Equal(t, [][]any{{int64(2), "Sales"}, {int64(1), "New"}}, f.calls[0].rows, l.Strategy())
	}
}

func TestLoad_BackendErrorIsBulkLoad(t *testing.T) {
	t.Parallel()

	cause := errors.New("duplicate key value violates unique constraint")
	f := &fakeRepo{err: cause}
	l, _ := NewLoader(rowRepo{f}, LoaderOptions{})

	res, err := l.Load(context.Background(), records.Departments, depts(1, "A"), ModeInsert, false)
	require.Error(t, err)
	assert.Equal(t, int64(0), res.Written)
	assert.Equal(t, errs.KindBulkLoad, errs.Kind(err))
	assert.True(t, errors.Is(err, cause))

	var ble *errs.BulkLoadError
	require.True(t, errors.As(err, &ble))
	assert.Equal(t, "departments", ble.Table)
	assert.Equal(t, "insert", ble.Op)
}

func TestLoad_EmptyAndInvalidMode(t *testing.T) {
	t.Parallel()

	f := &fakeRepo{}
	l, _ := NewLoader(rowRepo{f}, LoaderOptions{})

	res, err := l.Load(context.Background(), records.Jobs, nil, Mode("merge"), false)
	require.NoError(t, err)
	assert.Equal(t, LoadResult{}, res)

	_, err = l.Load(context.Background(), records.Jobs, []records.Record{records.Job{ID: 1}}, Mode("merge"), false)
	assert.Equal(t, errs.KindConfiguration, errs.Kind(err))
	assert.Empty(t, f.calls)
}

func TestLoad_EmployeeTimesPassThrough(t *testing.T) {
	t.Parallel()

	hired := time.Date(2021, 7, 27, 16, 2, 8, 0, time.UTC)
	f := &fakeRepo{}
	l, _ := NewLoader(bulkRepo{f}, LoaderOptions{})
	_, err := l.Load(context.Background(), records.Employees, []records.Record{
		records.Employee{ID: 1, Name: "Ada", DepartmentID: 1, JobID: 2, HireDate: hired},
	}, ModeInsert, false)
	require.NoError(t, err)
	assert.Equal(t, hired, f.calls[0].rows[0][4])
}

func TestChunk(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 7)
	for i := range rows {
		rows[i] = []any{i}
	}
	chunks := Chunk(rows, 3)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 3)
	assert.Len(t, chunks[2], 1)
	assert.Empty(t, Chunk(nil, 3))
	assert.Len(t, Chunk(rows, 0), 1)
}
