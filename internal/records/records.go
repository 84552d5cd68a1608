// Package records defines the three fixed record shapes accepted by
// ingestion (department, job, employee) as a closed tagged union.
//
// Raw CSV text is turned into these types exactly once, at the coercion
// boundary (internal/transformer). Downstream code never handles string
// keyed maps.
package records

import (
	"strings"
	"time"

	"hringest/internal/errs"
)

// Kind names one of the supported record shapes. Its string value is also
// the destination table name.
type Kind string

const (
	Departments Kind = "departments"
	Jobs        Kind = "jobs"
	Employees   Kind = "employees"
)

// Kinds lists every supported kind in foreign-key order.
var Kinds = []Kind{Departments, Jobs, Employees}

var canonicalColumns = map[Kind][]string{
	Departments: {"id", "name"},
	Jobs:        {"id", "title"},
	Employees:   {"id", "name", "department_id", "job_id", "hire_date"},
}

// ParseKind maps a table name onto a Kind. Unknown names yield a
// ConfigurationError.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := canonicalColumns[k]; !ok {
		return "", errs.Configf("unsupported table: %q", s)
	}
	return k, nil
}

// Columns returns the canonical column names for k in storage order. The
// returned slice is a copy.
func (k Kind) Columns() []string {
	cols := canonicalColumns[k]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// Valid reports whether k is one of the supported kinds.
func (k Kind) Valid() bool {
	_, ok := canonicalColumns[k]
	return ok
}

func (k Kind) String() string { return string(k) }

// Record is implemented by Department, Job and Employee only.
type Record interface {
	Kind() Kind
	// Values returns the record's fields aligned with Kind().Columns().
	// Absent optional text is returned as nil.
	Values() []any
	isRecord()
}

// Department is one row of the departments table. Name is nil when the
// source had no name column.
type Department struct {
	ID   int64   `json:"id"`
	Name *string `json:"name"`
}

func (Department) Kind() Kind { return Departments }

func (d Department) Values() []any { return []any{d.ID, strOrNil(d.Name)} }

func (Department) isRecord() {}

// Job is one row of the jobs table. Title is nil when the source had no
// title column.
type Job struct {
	ID    int64   `json:"id"`
	Title *string `json:"title"`
}

func (Job) Kind() Kind { return Jobs }

func (j Job) Values() []any { return []any{j.ID, strOrNil(j.Title)} }

func (Job) isRecord() {}

// Employee is one row of the employees table.
type Employee struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	DepartmentID int64     `json:"department_id"`
	JobID        int64     `json:"job_id"`
	HireDate     time.Time `json:"hire_date"`
}

func (Employee) Kind() Kind { return Employees }

func (e Employee) Values() []any {
	return []any{e.ID, e.Name, e.DepartmentID, e.JobID, e.HireDate}
}

func (Employee) isRecord() {}

// Rows flattens recs into value rows aligned with their kind's columns.
func Rows(recs []Record) [][]any {
	out := make([][]any, len(recs))
	for i, r := range recs {
		out[i] = r.Values()
	}
	return out
}

// Key returns the conflict key (id) of r.
func Key(r Record) int64 {
	switch v := r.(type) {
	case Department:
		return v.ID
	case Job:
		return v.ID
	case Employee:
		return v.ID
	}
	return 0
}

// Text returns a pointer to s, for building records in code.
func Text(s string) *string { return &s }

func strOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
