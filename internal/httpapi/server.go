// Package httpapi exposes ingestion and reporting over HTTP.
//
// The handlers are thin: they decode the request, call the ingest service
// or a report, and translate errors into status codes with a JSON body of
// the form {"error": "...", "kind": "..."}.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"hringest/internal/errs"
	"hringest/internal/ingest"
	"hringest/internal/logging"
)

// DefaultMaxUploadBytes bounds multipart uploads.
const DefaultMaxUploadBytes = 32 << 20

// Options configures a Server.
type Options struct {
	Logger *zap.Logger
	// Metrics, when set, is served on GET /prometheus.
	Metrics        http.Handler
	MaxUploadBytes int64
}

// Server holds the HTTP handlers.
type Server struct {
	svc       *ingest.Service
	validate  *validator.Validate
	log       *zap.Logger
	metrics   http.Handler
	maxUpload int64
}

// New returns a Server backed by svc.
func New(svc *ingest.Service, opts Options) *Server {
	limit := opts.MaxUploadBytes
	if limit <= 0 {
		limit = DefaultMaxUploadBytes
	}
	return &Server{
		svc:       svc,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		log:       logging.OrNop(opts.Logger).Named("http"),
		metrics:   opts.Metrics,
		maxUpload: limit,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestLog)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/ingest/csv", s.ingestCSV).Methods(http.MethodPost)
	r.HandleFunc("/employees/upload", s.uploadEmployees).Methods(http.MethodPost)
	r.HandleFunc("/departments/batch", s.batchDepartments).Methods(http.MethodPost)
	r.HandleFunc("/jobs/batch", s.batchJobs).Methods(http.MethodPost)
	r.HandleFunc("/employees/batch", s.batchEmployees).Methods(http.MethodPost)
	r.HandleFunc("/metrics/hiring_by_quarter", s.hiringByQuarter).Methods(http.MethodGet)
	r.HandleFunc("/metrics/departments_above_mean", s.departmentsAboveMean).Methods(http.MethodGet)
	if s.metrics != nil {
		r.Handle("/prometheus", s.metrics).Methods(http.MethodGet)
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestLog tags every request with an id and logs its outcome.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		log := s.log.With(zap.String("request_id", id))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), log)))

		log.Info("request",
			zap.String(logging.FieldMethod, r.Method),
			zap.String(logging.FieldPath, r.URL.Path),
			zap.Int(logging.FieldStatus, rec.status),
			zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))
	})
}

// StatusFor maps an error onto an HTTP status by its taxonomy kind.
func StatusFor(err error) int {
	switch errs.Kind(err) {
	case errs.KindConfiguration, errs.KindHeaderMismatch, errs.KindRowValidation,
		errs.KindDateParse, errs.KindDecimalParse:
		return http.StatusBadRequest
	case errs.KindSourceFetch:
		return http.StatusBadGateway
	case errs.KindBulkLoad:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	kind := errs.Kind(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg, Kind: errs.KindConfiguration})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
