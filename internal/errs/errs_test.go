package errs

import (
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"source", &SourceFetchError{URL: "http://x", Status: 500}, KindSourceFetch},
		{"header", &HeaderMismatchError{Kind: "jobs", Missing: []string{"title"}}, KindHeaderMismatch},
		{"row", &RowValidationError{Row: 3, Reason: "bad"}, KindRowValidation},
		{"date", &DateParseError{Input: "x"}, KindDateParse},
		{"decimal", &DecimalParseError{Input: "x"}, KindDecimalParse},
		{"bulk", BulkLoad("jobs", "copy", fmt.Errorf("boom")), KindBulkLoad},
		{"config", Configf("unsupported table %q", "x"), KindConfiguration},
		{"plain", fmt.Errorf("plain"), KindUnknown},
		{"row wraps date", &RowValidationError{Row: 2, Reason: "hire_date", Err: &DateParseError{Input: "x"}}, KindRowValidation},
		{"wrapped", errors.Wrap(&SourceFetchError{URL: "u", Err: fmt.Errorf("dial")}, "read source"), KindSourceFetch},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestMessages(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "row 4: department_id empty or null", (&RowValidationError{Row: 4, Reason: "department_id empty or null"}).Error())
	assert.Equal(t, "3 rows have empty NOT NULL columns", (&RowValidationError{Reason: "3 rows have empty NOT NULL columns"}).Error())
	assert.Equal(t, "fetch http://h/x.csv: unexpected status 404", (&SourceFetchError{URL: "http://h/x.csv", Status: 404}).Error())
	assert.Equal(t, `invalid date: "nope"`, (&DateParseError{Input: "nope"}).Error())
	assert.Equal(t, `future date is not allowed: "2999-01-01"`, (&DateParseError{Input: "2999-01-01", Future: true}).Error())
	assert.Equal(t, "empty or null datetime", (&DateParseError{Input: "  "}).Error())
	assert.Equal(t, "empty decimal value", (&DecimalParseError{}).Error())

	hm := &HeaderMismatchError{Kind: "departments", Missing: []string{"name"}, Got: []string{"id", "dept"}}
	assert.Equal(t, "CSV headers missing [name] for departments. Got: [id, dept]", hm.Error())
	assert.Contains(t, (&HeaderMismatchError{Kind: "jobs"}).Error(), "missing header row")
}

func TestBulkLoad(t *testing.T) {
	t.Parallel()

	require.NoError(t, BulkLoad("jobs", "copy", nil))

	cause := fmt.Errorf("duplicate key")
	err := BulkLoad("jobs", "merge", cause)
	var ble *BulkLoadError
	require.True(t, errors.As(err, &ble))
	assert.Equal(t, "jobs", ble.Table)
	assert.Equal(t, "merge", ble.Op)
	assert.True(t, errors.Is(err, cause))

	// Re-wrapping keeps the innermost table/op.
	again := BulkLoad("other", "insert", err)
	require.True(t, errors.As(again, &ble))
	assert.Equal(t, "jobs", ble.Table)
}
