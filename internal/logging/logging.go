// Package logging builds the process zap logger and holds the shared
// structured field names.
package logging

import (
	"context"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names. Use these instead of raw strings.
const (
	FieldIngestID   = "ingest_id"
	FieldComponent  = "component"
	FieldTable      = "table"
	FieldMode       = "mode"
	FieldStrategy   = "strategy"
	FieldBackend    = "backend"
	FieldSource     = "source"
	FieldRow        = "row"
	FieldInserted   = "inserted"
	FieldSkipped    = "skipped"
	FieldBatchSize  = "batch_size"
	FieldDurationMS = "duration_ms"
	FieldErrorKind  = "error_kind"
	FieldMethod     = "method"
	FieldPath       = "path"
	FieldStatus     = "status"
	FieldAddress    = "address"
)

// Config selects the level ("debug", "info", "warn", "error") and encoder.
type Config struct {
	Level string
	JSON  bool
}

// New returns a logger for cfg. JSON output uses the production encoder;
// otherwise a console encoder writes to stderr.
func New(cfg Config) (*zap.Logger, error) {
	lvl, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	if cfg.JSON {
		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(lvl)
		zc.OutputPaths = []string{"stderr"}
		zc.ErrorOutputPaths = []string{"stderr"}
		return zc.Build()
	}

	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(os.Stderr), lvl)
	return zap.New(core), nil
}

// ParseLevel maps a level name onto a zapcore.Level. Empty means info.
func ParseLevel(level string) (zapcore.Level, error) {
	s := strings.ToLower(strings.TrimSpace(level))
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return lvl, errors.Newf("invalid log level %q", level)
	}
	return lvl, nil
}

type ctxKey struct{}

// WithLogger attaches l to ctx.
func WithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger attached to ctx, or a no-op logger.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
