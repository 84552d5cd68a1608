package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"hringest/internal/reports"
)

type reportQuery struct {
	year           int
	csv            bool
	includeUnknown bool
}

// parseReportQuery reads year (default 2021), format (json|csv) and
// include_unknown (default true).
func parseReportQuery(r *http.Request) (reportQuery, string) {
	q := reportQuery{year: reports.DefaultYear, includeUnknown: true}
	vals := r.URL.Query()

	if v := strings.TrimSpace(vals.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < reports.MinYear || y > reports.MaxYear {
			return q, "year must be an integer in [1900, 2100]"
		}
		q.year = y
	}
	switch strings.ToLower(strings.TrimSpace(vals.Get("format"))) {
	case "", "json":
	case "csv":
		q.csv = true
	default:
		return q, "format must be json or csv"
	}
	if v := strings.TrimSpace(vals.Get("include_unknown")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, "include_unknown must be a boolean"
		}
		q.includeUnknown = b
	}
	return q, ""
}

func (s *Server) hiringByQuarter(w http.ResponseWriter, r *http.Request) {
	q, msg := parseReportQuery(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	rows, err := reports.HiringByQuarter(r.Context(), s.svc.Repository(), q.year, q.includeUnknown)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if q.csv {
		s.writeCSV(w, reports.Filename("hiring_by_quarter", q.year), rows)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// departmentsAboveMean responds with the department list; the mean is sent
// in the X-Hires-Mean header.
func (s *Server) departmentsAboveMean(w http.ResponseWriter, r *http.Request) {
	q, msg := parseReportQuery(r)
	if msg != "" {
		badRequest(w, msg)
		return
	}
	res, err := reports.DepartmentsAboveMean(r.Context(), s.svc.Repository(), q.year, q.includeUnknown)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("X-Hires-Mean", res.Mean.StringFixed(2))
	if q.csv {
		s.writeCSV(w, reports.Filename("departments_above_mean", q.year), res)
		return
	}
	writeJSON(w, http.StatusOK, res.Departments)
}

func (s *Server) writeCSV(w http.ResponseWriter, filename string, t reports.Tabular) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	if err := reports.WriteCSV(w, t); err != nil {
		s.log.Warn("write csv response", zap.Error(err))
	}
}
