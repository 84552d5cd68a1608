package mssql

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hringest/internal/storage"
)

// TestMSSQLStorageRegistrationUsesNewRepositoryHook verifies that the "mssql"
// backend registered in init() uses the newRepository hook and that the
// wrappedRepo propagates configuration and close behavior.
func TestMSSQLStorageRegistrationUsesNewRepositoryHook(t *testing.T) {
	origNewRepository := newRepository
	defer func() { newRepository = origNewRepository }()

	var (
		gotCfg Config
		closed bool
		fake   = &Repository{}
	)
	newRepository = func(ctx context.Context, cfg Config) (*Repository, func(), error) {
		gotCfg = cfg
		return fake, func() { closed = true }, nil
	}

	repo, err := storage.New(context.Background(), storage.Config{Kind: "mssql", DSN: "sqlserver://example"})
	require.NoError(t, err)
	assert.Equal(t, "sqlserver://example", gotCfg.DSN)

	w, ok := repo.(*wrappedRepo)
	require.True(t, ok)
	assert.Same(t, fake, w.Repository)

	_, isRows := repo.(storage.RowWriter)
	assert.False(t, isRows, "mssql loads through bulk copy only")

	repo.Close()
	assert.True(t, closed)
}

func TestNewRepository_BadDSN(t *testing.T) {
	t.Parallel()

	_, _, err := NewRepository(context.Background(), Config{DSN: "sqlserver://%zz"})
	assert.ErrorContains(t, err, "mssql dsn")
}
