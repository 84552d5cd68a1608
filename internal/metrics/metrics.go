// Package metrics provides a small, backend-agnostic abstraction for recording
// operational metrics from CSV ingestion.
//
// Callers depend on Recorder only. Concrete metric systems (Prometheus,
// Datadog) live in subpackages and implement Backend. A nil *Recorder, or one
// built with a nil Backend, records nothing, so metrics are always safe to
// call even when no backend is configured.
package metrics

import (
	"strings"
	"time"
)

// Metric names emitted by Recorder.
const (
	StepTotal           = "ingest_step_total"
	StepDurationSeconds = "ingest_step_duration_seconds"
	RowsTotal           = "ingest_rows_total"
)

// Steps of one ingestion call.
const (
	StepRead      = "read"
	StepNormalize = "normalize"
	StepCoerce    = "coerce"
	StepLoad      = "load"
)

// Row outcomes.
const (
	RowsInserted = "inserted"
	RowsSkipped  = "skipped"
)

// Labels are string key/value pairs attached to a metric.
type Labels map[string]string

// Backend is the minimal interface for metrics backends.
type Backend interface {
	// IncCounter increments a counter by delta.
	IncCounter(name string, delta float64, labels Labels)
	// ObserveHistogram records a value in a latency/duration style metric.
	ObserveHistogram(name string, value float64, labels Labels)
	// Flush pushes or flushes metrics, if the backend needs it (e.g. Pushgateway).
	Flush() error
}

// Nop is a Backend that drops everything.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Flush() error                             { return nil }

// Recorder records ingestion metrics on a Backend.
type Recorder struct {
	backend Backend
}

// New returns a Recorder on b. A nil b records nothing.
func New(b Backend) *Recorder {
	if b == nil {
		b = Nop{}
	}
	return &Recorder{backend: b}
}

func (r *Recorder) b() Backend {
	if r == nil || r.backend == nil {
		return Nop{}
	}
	return r.backend
}

// Flush delegates to the backend.
func (r *Recorder) Flush() error { return r.b().Flush() }

// RecordStep measures latency and success/failure of one step for a table.
func (r *Recorder) RecordStep(table, step string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	lbls := Labels{
		"table":  table,
		"step":   step,
		"status": status,
	}
	r.b().IncCounter(StepTotal, 1, lbls)
	r.b().ObserveHistogram(StepDurationSeconds, d.Seconds(), lbls)
}

// RecordRows counts rows for a table by outcome (inserted, skipped).
func (r *Recorder) RecordRows(table, outcome string, delta int64) {
	if delta <= 0 {
		return
	}
	r.b().IncCounter(RowsTotal, float64(delta), Labels{
		"table":   table,
		"outcome": outcome,
	})
}

// Timer returns a func that records step for table with the elapsed time
// since Timer was called.
//
//	done := rec.Timer(table, metrics.StepLoad)
//	err := load()
//	done(err)
func (r *Recorder) Timer(table, step string) func(error) {
	start := time.Now()
	return func(err error) { r.RecordStep(table, step, err, time.Since(start)) }
}

// Backend kinds accepted by the CLI and server configuration.
const (
	KindNone        = "none"
	KindPrometheus  = "prometheus"
	KindPushgateway = "pushgateway"
	KindDatadog     = "datadog"
)

// NormalizeKind lower-cases and trims k, mapping "" to KindNone.
func NormalizeKind(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return KindNone
	}
	return k
}
