package mssql

import (
	"context"
	"fmt"
	"strings"

	"hringest/internal/ddl"
	"hringest/internal/storage"
)

// Style renders the HR schema for SQL Server, which has no CREATE TABLE IF
// NOT EXISTS; each statement is guarded with OBJECT_ID instead.
var Style = ddl.Style{
	Quote:   storage.BracketQuote,
	MapType: MapType,
	Wrap: func(table, stmt string) string {
		return fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL\n%s",
			strings.ReplaceAll(table, "'", "''"), stmt)
	},
}

// MapType maps a logical type into a SQL Server column type.
func MapType(logical string, size int) string {
	switch strings.ToLower(strings.TrimSpace(logical)) {
	case ddl.TypeBigInt:
		return "BIGINT"
	case ddl.TypeTimestamp:
		return "DATETIME2"
	case ddl.TypeVarchar:
		if size > 0 && size <= 4000 {
			return fmt.Sprintf("NVARCHAR(%d)", size)
		}
		return "NVARCHAR(MAX)"
	default:
		return "NVARCHAR(MAX)"
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
