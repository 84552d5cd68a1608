package sqlite

import (
	"context"
	"strings"

	"hringest/internal/ddl"
	"hringest/internal/storage"
)

// Style renders the HR schema for SQLite.
var Style = ddl.Style{
	Quote:       storage.DoubleQuote,
	MapType:     MapType,
	IfNotExists: true,
}

// MapType maps a logical type into a SQLite column type. SQLite is
// dynamically typed; the declared names pick the column affinity and let the
// driver recognise timestamp columns.
func MapType(logical string, size int) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case ddl.TypeBigInt, "int", "integer":
		return "INTEGER"
	case ddl.TypeTimestamp, "date", "datetime":
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}

// EnsureSchema creates the HR tables if they do not exist.
func EnsureSchema(ctx context.Context, repo storage.Repository) error {
	stmts, err := Style.CreateSchema()
	if err != nil {
		return err
	}
	return storage.ExecAll(ctx, repo, stmts)
}
