package postgres

import (
	"context"
	"fmt"
	"strings"

	"hringest/internal/ddl"
	"hringest/internal/storage"
)

// Style renders the HR schema for Postgres.
var Style = ddl.Style{
	Quote:       storage.DoubleQuote,
	MapType:     MapType,
	IfNotExists: true,
}

// MapType maps a logical type into a Postgres column type.
func MapType(logical string, size int) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case ddl.TypeBigInt:
		return "BIGINT"
	case ddl.TypeTimestamp:
		return "TIMESTAMPTZ"
	case ddl.TypeVarchar:
		if size > 0 {
			return fmt.Sprintf("VARCHAR(%d)", size)
		}
		return "TEXT"
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
