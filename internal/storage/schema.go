package storage

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"

	"hringest/internal/errs"
)

// DDLBootstrapper creates the HR tables on repo if they do not exist.
// Backends register one per storage kind from init.
type DDLBootstrapper func(ctx context.Context, repo Repository) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureSchema runs the bootstrapper registered for repo.Kind().
func EnsureSchema(ctx context.Context, repo Repository) error {
	ddlMu.RLock()
	fn, ok := ddlFns[repo.Kind()]
	ddlMu.RUnlock()
	if !ok {
		return errs.Configf("no DDL bootstrapper registered for storage.kind=%q", repo.Kind())
	}
	return errors.Wrapf(fn(ctx, repo), "ensure schema (%s)", repo.Kind())
}

// ExecAll runs stmts in order, stopping at the first failure.
func ExecAll(ctx context.Context, repo Repository, stmts []string) error {
	for _, s := range stmts {
		if err := repo.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
