// Package transformer coerces normalized CSV rows into typed records.
//
// Coercion is the only place raw text becomes a records.Record. Every
// failure is a RowValidationError carrying the source row number.
package transformer

import (
	"strconv"
	"strings"
	"time"

	"hringest/internal/errs"
	"hringest/internal/parser/csv"
	"hringest/internal/parser/values"
	"hringest/internal/records"
)

// Coercer turns normalized rows into records. The zero value is not usable;
// call New.
type Coercer struct {
	now func() time.Time
}

// New returns a Coercer that judges future dates against the wall clock.
func New() *Coercer { return &Coercer{now: time.Now} }

// NewAt returns a Coercer that uses now as the current instant.
func NewAt(now func() time.Time) *Coercer { return &Coercer{now: now} }

// Coerce validates row as a record of kind.
func (c *Coercer) Coerce(kind records.Kind, row csv.Row) (records.Record, error) {
	switch kind {
	case records.Departments:
		id, err := parseID(row, "id")
		if err != nil {
			return nil, err
		}
		return records.Department{ID: id, Name: optional(row, "name")}, nil

	case records.Jobs:
		id, err := parseID(row, "id")
		if err != nil {
			return nil, err
		}
		return records.Job{ID: id, Title: optional(row, "title")}, nil

	case records.Employees:
		return c.employee(row)
	}
	return nil, errs.Configf("unsupported table: %q", kind)
}

func (c *Coercer) employee(row csv.Row) (records.Record, error) {
	dept, err := requiredFK(row, "department_id")
	if err != nil {
		return nil, err
	}
	job, err := requiredFK(row, "job_id")
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(row.Values["name"])
	if name == "" {
		return nil, invalid(row, "name is empty", nil)
	}

	id, err := parseID(row, "id")
	if err != nil {
		return nil, err
	}

	raw, ok := row.Values["hire_date"]
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, invalid(row, "hire_date is empty or null", nil)
	}
	hired, err := values.ParseDateAt(raw, c.now())
	if err != nil {
		return nil, invalid(row, err.Error(), err)
	}

	return records.Employee{
		ID:           id,
		Name:         name,
		DepartmentID: dept,
		JobID:        job,
		HireDate:     hired,
	}, nil
}

func parseID(row csv.Row, col string) (int64, error) {
	raw, ok := row.Values[col]
	if !ok {
		return 0, invalid(row, "missing required column "+col, nil)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, invalid(row, "invalid "+col+": "+strconv.Quote(raw), err)
	}
	return n, nil
}

func requiredFK(row csv.Row, col string) (int64, error) {
	if isNullText(row.Values[col]) {
		return 0, invalid(row, col+" is empty or null", nil)
	}
	return parseID(row, col)
}

// isNullText reports whether s spells a missing value.
func isNullText(s string) bool {
	switch strings.TrimSpace(s) {
	case "", "NULL", "null":
		return true
	}
	return false
}

func optional(row csv.Row, col string) *string {
	v, ok := row.Values[col]
	if !ok {
		return nil
	}
	return &v
}

func invalid(row csv.Row, reason string, cause error) error {
	return &errs.RowValidationError{Row: row.Num, Reason: reason, Err: cause}
}
