package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"hringest/internal/errs"
	"hringest/internal/parser/values"
	"hringest/internal/records"
	"hringest/internal/storage"
)

// MaxBatchItems bounds a JSON batch.
const MaxBatchItems = 1000

// DepartmentIn is one item of POST /departments/batch.
type DepartmentIn struct {
	ID   *int64 `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,min=1,max=120"`
}

// JobIn is one item of POST /jobs/batch.
type JobIn struct {
	ID    *int64 `json:"id" validate:"required"`
	Title string `json:"title" validate:"required,min=1,max=120"`
}

// EmployeeIn is one item of POST /employees/batch. HireDate is ISO-8601.
type EmployeeIn struct {
	ID           *int64 `json:"id" validate:"required"`
	Name         string `json:"name" validate:"required,max=80"`
	DepartmentID *int64 `json:"department_id" validate:"required"`
	JobID        *int64 `json:"job_id" validate:"required"`
	HireDate     string `json:"hire_date" validate:"required"`
}

type batchResponse struct {
	Inserted int64 `json:"inserted"`
}

func (s *Server) batchDepartments(w http.ResponseWriter, r *http.Request) {
	var items []DepartmentIn
	if !s.decodeBatch(w, r, &items) {
		return
	}
	recs := make([]records.Record, 0, len(items))
	for _, it := range items {
		recs = append(recs, records.Department{ID: *it.ID, Name: records.Text(it.Name)})
	}
	s.loadBatch(w, r, records.Departments, recs)
}

func (s *Server) batchJobs(w http.ResponseWriter, r *http.Request) {
	var items []JobIn
	if !s.decodeBatch(w, r, &items) {
		return
	}
	recs := make([]records.Record, 0, len(items))
	for _, it := range items {
		recs = append(recs, records.Job{ID: *it.ID, Title: records.Text(it.Title)})
	}
	s.loadBatch(w, r, records.Jobs, recs)
}

func (s *Server) batchEmployees(w http.ResponseWriter, r *http.Request) {
	var items []EmployeeIn
	if !s.decodeBatch(w, r, &items) {
		return
	}
	recs := make([]records.Record, 0, len(items))
	for i, it := range items {
		name := strings.TrimSpace(it.Name)
		if name == "" {
			s.fail(w, r, &errs.RowValidationError{Row: i + 1, Reason: "name is empty"})
			return
		}
		hired, err := values.ParseDate(it.HireDate)
		if err != nil {
			s.fail(w, r, &errs.RowValidationError{Row: i + 1, Reason: err.Error(), Err: err})
			return
		}
		recs = append(recs, records.Employee{
			ID:           *it.ID,
			Name:         name,
			DepartmentID: *it.DepartmentID,
			JobID:        *it.JobID,
			HireDate:     hired,
		})
	}
	s.loadBatch(w, r, records.Employees, recs)
}

// decodeBatch decodes and validates a JSON array of 1..MaxBatchItems items
// into dst, writing the error response itself when it returns false.
func (s *Server) decodeBatch(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxUpload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "invalid json: "+err.Error())
		return false
	}
	items := reflect.ValueOf(dst).Elem().Interface()
	if err := s.validate.Var(items, fmt.Sprintf("min=1,max=%d,dive", MaxBatchItems)); err != nil {
		s.fail(w, r, &errs.RowValidationError{Reason: validationMessage(err), Err: err})
		return false
	}
	return true
}

func (s *Server) loadBatch(w http.ResponseWriter, r *http.Request, kind records.Kind, recs []records.Record) {
	n, err := s.svc.LoadRecords(r.Context(), kind, recs, storage.ModeInsert)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, batchResponse{Inserted: n})
}

// validationMessage flattens validator errors into "field: tag" pairs.
func validationMessage(err error) string {
	sizeMsg := fmt.Sprintf("batch size must be 1..%d", MaxBatchItems)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return sizeMsg
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Namespace() == "" {
			return sizeMsg
		}
		parts = append(parts, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return "invalid batch: " + strings.Join(parts, "; ")
}
