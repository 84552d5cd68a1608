// Package storage contains the storage-agnostic contracts used by ingestion
// and reporting: the Repository handle, the two loading capabilities
// (bulk copy and row-wise writes), the backend factory and schema bootstrap.
//
// Backends live in subpackages and register themselves from init; import
// hringest/internal/storage/all to enable every built-in backend.
package storage

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"hringest/internal/errs"
)

// Repository is an open handle on one backend.
type Repository interface {
	// Kind is the registered backend name ("postgres", "sqlite", ...).
	Kind() string
	Dialect() Dialect
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	Close()
}

// Rows is the cursor returned by Repository.Query.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// BulkCopier is implemented by backends with a native bulk-load protocol.
// Each call is one transaction: BulkInsert copies rows straight into the
// table; BulkUpsert copies them into a staging table and merges on the key.
type BulkCopier interface {
	BulkInsert(ctx context.Context, t Table, rows [][]any) (int64, error)
	BulkUpsert(ctx context.Context, t Table, rows [][]any) (int64, error)
}

// RowWriter is implemented by backends that load with parameterized
// multi-row INSERT statements. Each call is one transaction; batchRows
// bounds the rows per statement.
type RowWriter interface {
	RowInsert(ctx context.Context, t Table, rows [][]any, batchRows int) (int64, error)
	RowUpsert(ctx context.Context, t Table, rows [][]any, batchRows int) (int64, error)
}

// Config selects and configures a backend.
type Config struct {
	Kind   string
	DSN    string
	Logger *zap.Logger
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind.
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, errs.Configf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
