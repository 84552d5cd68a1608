// Package ingest runs one CSV ingestion call end to end: normalize headers,
// coerce rows into typed records, and hand the survivors to the storage
// loader as a single unit of work.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"

	"hringest/internal/config"
	"hringest/internal/datasource"
	"hringest/internal/errs"
	"hringest/internal/logging"
	"hringest/internal/metrics"
	"hringest/internal/parser/csv"
	"hringest/internal/records"
	"hringest/internal/storage"
	"hringest/internal/transformer"
)

// Config is the immutable ingestion configuration loaded at startup.
type Config struct {
	HeaderMap config.HeaderMap
	Settings  config.Settings
}

// Options carries the collaborators of a Service. All fields are optional.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Recorder
	// Source reads descriptors for IngestSource. Defaults to a Reader with
	// a 30s HTTP timeout.
	Source *datasource.Reader
	// Now overrides the clock used to reject future hire dates.
	Now func() time.Time
}

// Request is one ingestion call.
type Request struct {
	Kind    records.Kind
	Content string
	// SkipInvalid drops and counts rows that fail validation instead of
	// aborting the call.
	SkipInvalid bool
	// Mode is insert or upsert. Empty uses the configured default.
	Mode storage.Mode
}

// Result reports one successful ingestion call.
type Result struct {
	IngestID    string       `json:"ingest_id"`
	Table       records.Kind `json:"table"`
	Inserted    int64        `json:"inserted"`
	Skipped     int          `json:"skipped"`
	Fingerprint string       `json:"fingerprint"`
}

// Service ingests CSV documents into one repository. It holds no per-call
// state and is safe for concurrent use.
type Service struct {
	repo        storage.Repository
	loader      *storage.Loader
	normalizer  *csv.Normalizer
	coercer     *transformer.Coercer
	source      *datasource.Reader
	defaultMode storage.Mode
	log         *zap.Logger
	rec         *metrics.Recorder
}

// NewService builds a Service over repo. The loading strategy is chosen here
// from the repository capabilities and cfg.Settings.
func NewService(repo storage.Repository, cfg Config, opts Options) (*Service, error) {
	if repo == nil {
		return nil, errs.Configf("ingest: repository is required")
	}
	log := logging.OrNop(opts.Logger).Named("ingest")

	mode := storage.ModeInsert
	if dm := cfg.Settings.Ingest.DefaultMode; dm != "" {
		m, err := storage.ParseMode(dm)
		if err != nil {
			return nil, err
		}
		mode = m
	}

	loader, err := storage.NewLoader(repo, storage.LoaderOptions{
		PreferBulkCopy: cfg.Settings.Ingest.UseBulkCopy,
		MaxBatchRows:   cfg.Settings.Ingest.MaxBatchRows,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	coercer := transformer.New()
	if opts.Now != nil {
		coercer = transformer.NewAt(opts.Now)
	}
	src := opts.Source
	if src == nil {
		src = datasource.NewReader(datasource.Options{Logger: log})
	}

	log.Info("ingest service ready",
		zap.String(logging.FieldBackend, repo.Kind()),
		zap.String(logging.FieldStrategy, string(loader.Strategy())),
		zap.String(logging.FieldMode, string(mode)))

	return &Service{
		repo:        repo,
		loader:      loader,
		normalizer:  csv.NewNormalizer(cfg.HeaderMap, cfg.Settings.Ingest.FailFastOnHeaderMismatch),
		coercer:     coercer,
		source:      src,
		defaultMode: mode,
		log:         log,
		rec:         opts.Metrics,
	}, nil
}

// Strategy reports the loading strategy in use.
func (s *Service) Strategy() storage.Strategy { return s.loader.Strategy() }

// Repository returns the repository the service writes to.
func (s *Service) Repository() storage.Repository { return s.repo }

// Source returns the reader used by IngestSource.
func (s *Service) Source() *datasource.Reader { return s.source }

// IngestSource reads descriptor (URL, local path or literal CSV) and ingests
// its content. req.Content is ignored.
func (s *Service) IngestSource(ctx context.Context, descriptor string, req Request) (Result, error) {
	done := s.rec.Timer(string(req.Kind), metrics.StepRead)
	text, err := s.source.Read(ctx, descriptor)
	done(err)
	if err != nil {
		return Result{}, err
	}
	req.Content = text
	return s.Ingest(ctx, req)
}

// Ingest validates and loads req.Content as records of req.Kind.
//
// With SkipInvalid unset, the first invalid row aborts the call and nothing
// is written. With it set, invalid rows are counted in Result.Skipped and
// every other error is still fatal. If no row survives validation, nothing
// is loaded.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	if !req.Kind.Valid() {
		return Result{}, errs.Configf("unsupported table: %q", req.Kind)
	}
	mode := req.Mode
	if mode == "" {
		mode = s.defaultMode
	}
	mode, err := storage.ParseMode(string(mode))
	if err != nil {
		return Result{}, err
	}

	res := Result{
		IngestID:    uuid.NewString(),
		Table:       req.Kind,
		Fingerprint: Fingerprint(req.Content),
	}
	table := string(req.Kind)
	log := s.log.With(
		zap.String(logging.FieldIngestID, res.IngestID),
		zap.String(logging.FieldTable, table),
		zap.String(logging.FieldMode, string(mode)))
	start := time.Now()

	done := s.rec.Timer(table, metrics.StepNormalize)
	rd, err := csv.NewReader(req.Content, req.Kind, s.normalizer)
	done(err)
	if err != nil {
		log.Warn("header normalization failed", zap.Error(err))
		return Result{}, err
	}
	if miss := rd.Mapping().Missing; len(miss) > 0 {
		log.Warn("canonical columns missing from header", zap.Strings("missing", miss))
	}

	done = s.rec.Timer(table, metrics.StepCoerce)
	recs, skipped, err := s.coerceAll(ctx, rd, req, log)
	done(err)
	if err != nil {
		return Result{}, err
	}
	res.Skipped = skipped

	if len(recs) == 0 {
		s.rec.RecordRows(table, metrics.RowsSkipped, int64(res.Skipped))
		log.Info("no valid rows to load", zap.Int(logging.FieldSkipped, res.Skipped))
		return res, nil
	}

	done = s.rec.Timer(table, metrics.StepLoad)
	lr, err := s.loader.Load(ctx, req.Kind, recs, mode, req.SkipInvalid)
	done(err)
	if err != nil {
		log.Error("load failed", zap.String(logging.FieldErrorKind, errs.Kind(err)), zap.Error(err))
		return Result{}, err
	}
	res.Inserted = lr.Written
	res.Skipped += lr.Skipped

	s.rec.RecordRows(table, metrics.RowsInserted, res.Inserted)
	s.rec.RecordRows(table, metrics.RowsSkipped, int64(res.Skipped))
	log.Info("ingest done",
		zap.Int64(logging.FieldInserted, res.Inserted),
		zap.Int(logging.FieldSkipped, res.Skipped),
		zap.String("fingerprint", res.Fingerprint),
		zap.Int64(logging.FieldDurationMS, time.Since(start).Milliseconds()))
	return res, nil
}

// coerceAll reads every row of rd in order. Row-level validation errors are
// counted under SkipInvalid and returned otherwise.
func (s *Service) coerceAll(ctx context.Context, rd *csv.Reader, req Request, log *zap.Logger) ([]records.Record, int, error) {
	var (
		recs    []records.Record
		skipped int
	)
	err := rd.ReadAll(func(row csv.Row, rerr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		var rec records.Record
		if rerr == nil {
			rec, rerr = s.coercer.Coerce(req.Kind, row)
		}
		if rerr == nil {
			recs = append(recs, rec)
			return nil
		}

		var rve *errs.RowValidationError
		if !req.SkipInvalid || !errors.As(rerr, &rve) {
			return rerr
		}
		skipped++
		log.Debug("row skipped", zap.Int(logging.FieldRow, rve.Row), zap.String("reason", rve.Reason))
		return nil
	})
	if err != nil {
		return nil, skipped, err
	}
	return recs, skipped, nil
}

// LoadRecords writes already-typed records, bypassing CSV parsing. It is
// used by the JSON batch endpoints.
func (s *Service) LoadRecords(ctx context.Context, kind records.Kind, recs []records.Record, mode storage.Mode) (int64, error) {
	if !kind.Valid() {
		return 0, errs.Configf("unsupported table: %q", kind)
	}
	for i, r := range recs {
		if r.Kind() != kind {
			return 0, &errs.RowValidationError{Row: i + 1, Reason: fmt.Sprintf("record of kind %s in a %s batch", r.Kind(), kind)}
		}
	}
	done := s.rec.Timer(string(kind), metrics.StepLoad)
	lr, err := s.loader.Load(ctx, kind, recs, mode, false)
	done(err)
	if err != nil {
		return 0, err
	}
	s.rec.RecordRows(string(kind), metrics.RowsInserted, lr.Written)
	return lr.Written, nil
}

// Fingerprint returns the xxh3 hash of content as 16 hex digits. Identical
// payloads always yield the same fingerprint.
func Fingerprint(content string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(content))
}
