package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"hringest/internal/ingest"
	"hringest/internal/records"
	"hringest/internal/storage"
)

type ingestResponse struct {
	Status string `json:"status"`
	ingest.Result
}

// ingestCSV handles multipart POST /ingest/csv with fields table, file or
// source_path, skip_invalid_rows and mode.
func (s *Server) ingestCSV(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		badRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	kind, err := records.ParseKind(r.FormValue("table"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.ingestForm(w, r, kind)
}

// uploadEmployees handles POST /employees/upload: a file field ingested as
// employees.
func (s *Server) uploadEmployees(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		badRequest(w, "invalid multipart form: "+err.Error())
		return
	}
	s.ingestForm(w, r, records.Employees)
}

func (s *Server) ingestForm(w http.ResponseWriter, r *http.Request, kind records.Kind) {
	req := ingest.Request{Kind: kind}

	if v := strings.TrimSpace(r.FormValue("skip_invalid_rows")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(w, "skip_invalid_rows must be a boolean")
			return
		}
		req.SkipInvalid = b
	}
	if v := strings.TrimSpace(r.FormValue("mode")); v != "" {
		m, err := storage.ParseMode(v)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		req.Mode = m
	}

	var (
		res ingest.Result
		err error
	)
	file, _, ferr := r.FormFile("file")
	switch {
	case ferr == nil:
		defer file.Close()
		req.Content, err = s.svc.Source().ReadFrom(r.Context(), file)
		if err == nil {
			res, err = s.svc.Ingest(r.Context(), req)
		}
	case !errors.Is(ferr, http.ErrMissingFile):
		badRequest(w, "invalid file field: "+ferr.Error())
		return
	default:
		src := strings.TrimSpace(r.FormValue("source_path"))
		if src == "" {
			badRequest(w, "provide 'file' or 'source_path'")
			return
		}
		res, err = s.svc.IngestSource(r.Context(), src, req)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Status: "ok", Result: res})
}
