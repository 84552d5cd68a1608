// Package reports runs the hiring aggregates over ingested data.
//
// Both reports are plain SQL rendered through the backend Dialect, so the
// same code serves every storage kind. A hire belongs to year Y when
// Y-01-01T00:00:00Z <= hire_date < (Y+1)-01-01T00:00:00Z.
package reports

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/shopspring/decimal"

	"hringest/internal/errs"
	"hringest/internal/parser/values"
	"hringest/internal/storage"
)

// Unknown labels employees whose department or job does not resolve.
const Unknown = "(Unknown)"

// UnknownDepartmentID is reported for hires without a department.
const UnknownDepartmentID = -1

// Year bounds accepted by both reports.
const (
	MinYear     = 1900
	MaxYear     = 2100
	DefaultYear = 2021
)

// QuarterRow counts hires per quarter for one department and job.
type QuarterRow struct {
	Department string `json:"department"`
	Job        string `json:"job"`
	Q1         int64  `json:"Q1"`
	Q2         int64  `json:"Q2"`
	Q3         int64  `json:"Q3"`
	Q4         int64  `json:"Q4"`
}

// QuarterRows is the hiring-by-quarter report.
type QuarterRows []QuarterRow

// DepartmentHires is one department's hire count for the year.
type DepartmentHires struct {
	ID         int64  `json:"id"`
	Department string `json:"department"`
	Hired      int64  `json:"hired"`
}

// AboveMean is the departments-above-mean report. Mean is the average hires
// per department over every department with at least one hire, rounded to
// two places; Departments hired strictly more than the exact mean.
type AboveMean struct {
	Year        int               `json:"year"`
	Mean        decimal.Decimal   `json:"mean"`
	Departments []DepartmentHires `json:"departments"`
}

// HiringByQuarter counts the year's hires per department, job and quarter,
// ordered by department then job. With includeUnknown unset, employees
// without a department or job are left out; otherwise they are grouped
// under Unknown.
func HiringByQuarter(ctx context.Context, repo storage.Repository, year int, includeUnknown bool) (QuarterRows, error) {
	if err := checkYear(year); err != nil {
		return nil, err
	}
	d := repo.Dialect()
	from, to := yearRange(year)

	rows, err := repo.Query(ctx, hiringByQuarterSQL(d, includeUnknown), d.Bind(from), d.Bind(to))
	if err != nil {
		return nil, errors.Wrap(err, "hiring by quarter")
	}
	defer rows.Close()

	out := QuarterRows{}
	for rows.Next() {
		var r QuarterRow
		if err := rows.Scan(&r.Department, &r.Job, &r.Q1, &r.Q2, &r.Q3, &r.Q4); err != nil {
			return nil, errors.Wrap(err, "hiring by quarter: scan")
		}
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "hiring by quarter: rows")
}

// DepartmentsAboveMean lists departments that hired more than the mean in
// year, ordered by hires descending then department name. With
// includeUnknown set, hires without a department count as one more
// department (id -1, name Unknown).
func DepartmentsAboveMean(ctx context.Context, repo storage.Repository, year int, includeUnknown bool) (AboveMean, error) {
	res := AboveMean{Year: year, Departments: []DepartmentHires{}}
	if err := checkYear(year); err != nil {
		return res, err
	}
	d := repo.Dialect()
	from, to := yearRange(year)

	rows, err := repo.Query(ctx, hiresByDepartmentSQL(d, includeUnknown), d.Bind(from), d.Bind(to))
	if err != nil {
		return res, errors.Wrap(err, "departments above mean")
	}
	defer rows.Close()

	var all []DepartmentHires
	for rows.Next() {
		var h DepartmentHires
		if err := rows.Scan(&h.ID, &h.Department, &h.Hired); err != nil {
			return res, errors.Wrap(err, "departments above mean: scan")
		}
		all = append(all, h)
	}
	if err := rows.Err(); err != nil {
		return res, errors.Wrap(err, "departments above mean: rows")
	}
	if len(all) == 0 {
		return res, nil
	}

	var sum int64
	for _, h := range all {
		sum += h.Hired
	}
	n := int64(len(all))
	mean, err := values.ParseDecimal(decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)).String())
	if err != nil {
		return res, err
	}
	res.Mean = mean

	// hired > sum/n, compared exactly.
	for _, h := range all {
		if h.Hired*n > sum {
			res.Departments = append(res.Departments, h)
		}
	}
	return res, nil
}

func checkYear(year int) error {
	if year < MinYear || year > MaxYear {
		return errs.Configf("year %d out of range [%d, %d]", year, MinYear, MaxYear)
	}
	return nil
}

func yearRange(year int) (time.Time, time.Time) {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func hiringByQuarterSQL(d storage.Dialect, includeUnknown bool) string {
	dept := fmt.Sprintf("COALESCE(d.%s, '%s')", d.Quote("name"), Unknown)
	job := fmt.Sprintf("COALESCE(j.%s, '%s')", d.Quote("title"), Unknown)
	month := d.MonthOf("e." + d.Quote("hire_date"))

	quarter := func(q int) string {
		lo, hi := 3*q-2, 3*q
		return fmt.Sprintf("SUM(CASE WHEN %s BETWEEN %d AND %d THEN 1 ELSE 0 END) AS %s", month, lo, hi, d.Quote("Q"+strconv.Itoa(q)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS department, %s AS job, %s, %s, %s, %s",
		dept, job, quarter(1), quarter(2), quarter(3), quarter(4))
	fmt.Fprintf(&sb, " FROM %s e LEFT JOIN %s d ON d.%s = e.%s LEFT JOIN %s j ON j.%s = e.%s",
		d.Quote("employees"), d.Quote("departments"), d.Quote("id"), d.Quote("department_id"),
		d.Quote("jobs"), d.Quote("id"), d.Quote("job_id"))
	sb.WriteString(yearFilter(d))
	if !includeUnknown {
		fmt.Fprintf(&sb, " AND e.%s IS NOT NULL AND e.%s IS NOT NULL", d.Quote("department_id"), d.Quote("job_id"))
	}
	fmt.Fprintf(&sb, " GROUP BY %s, %s ORDER BY department ASC, job ASC", dept, job)
	return sb.String()
}

func hiresByDepartmentSQL(d storage.Dialect, includeUnknown bool) string {
	id := fmt.Sprintf("COALESCE(d.%s, %d)", d.Quote("id"), UnknownDepartmentID)
	dept := fmt.Sprintf("COALESCE(d.%s, '%s')", d.Quote("name"), Unknown)

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s AS id, %s AS department, COUNT(*) AS hired", id, dept)
	fmt.Fprintf(&sb, " FROM %s e LEFT JOIN %s d ON d.%s = e.%s",
		d.Quote("employees"), d.Quote("departments"), d.Quote("id"), d.Quote("department_id"))
	sb.WriteString(yearFilter(d))
	if !includeUnknown {
		fmt.Fprintf(&sb, " AND e.%s IS NOT NULL", d.Quote("department_id"))
	}
	fmt.Fprintf(&sb, " GROUP BY %s, %s ORDER BY hired DESC, department ASC", id, dept)
	return sb.String()
}

func yearFilter(d storage.Dialect) string {
	col := "e." + d.Quote("hire_date")
	return fmt.Sprintf(" WHERE %s >= %s AND %s < %s", col, d.Placeholder(1), col, d.Placeholder(2))
}

// Tabular is a report that renders as CSV.
type Tabular interface {
	Header() []string
	Records() [][]string
}

// Header implements Tabular.
func (q QuarterRows) Header() []string {
	return []string{"department", "job", "Q1", "Q2", "Q3", "Q4"}
}

// Records implements Tabular.
func (q QuarterRows) Records() [][]string {
	out := make([][]string, 0, len(q))
	for _, r := range q {
		out = append(out, []string{
			r.Department, r.Job,
			strconv.FormatInt(r.Q1, 10), strconv.FormatInt(r.Q2, 10),
			strconv.FormatInt(r.Q3, 10), strconv.FormatInt(r.Q4, 10),
		})
	}
	return out
}

// Header implements Tabular.
func (a AboveMean) Header() []string { return []string{"id", "department", "hired"} }

// Records implements Tabular.
func (a AboveMean) Records() [][]string {
	out := make([][]string, 0, len(a.Departments))
	for _, h := range a.Departments {
		out = append(out, []string{strconv.FormatInt(h.ID, 10), h.Department, strconv.FormatInt(h.Hired, 10)})
	}
	return out
}

// WriteCSV writes t with a header row.
func WriteCSV(w io.Writer, t Tabular) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header()); err != nil {
		return errors.Wrap(err, "write csv header")
	}
	if err := cw.WriteAll(t.Records()); err != nil {
		return errors.Wrap(err, "write csv")
	}
	return nil
}

// Filename is the suggested attachment name for a report of year.
func Filename(report string, year int) string {
	return fmt.Sprintf("%s_%d.csv", report, year)
}
