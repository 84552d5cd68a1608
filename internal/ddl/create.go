// Package ddl defines a small, backend-agnostic model for SQL DDL and helpers
// to render CREATE TABLE statements from that model.
//
// A Style carries the dialect differences: identifier quoting, logical type
// mapping, IF NOT EXISTS support and an optional statement wrapper for
// engines that lack it (SQL Server). The zero Style renders names and types
// verbatim with no existence guard.
package ddl

import (
	"fmt"
	"strings"
)

// Style adapts rendering to one SQL dialect.
type Style struct {
	// Quote quotes one identifier segment. Nil emits identifiers as-is.
	Quote func(ident string) string
	// MapType maps a logical type and size to a concrete SQL type. Nil emits
	// ColumnDef.SQLType as-is.
	MapType func(logical string, size int) string
	// IfNotExists emits CREATE TABLE IF NOT EXISTS.
	IfNotExists bool
	// Wrap, when set, receives the table name and the CREATE statement and
	// returns the final statement (e.g. an existence check).
	Wrap func(table, stmt string) string
}

// BuildCreateTableSQL renders a generic CREATE TABLE statement from a TableDef
// using the zero Style.
func BuildCreateTableSQL(t TableDef) (string, error) {
	return Style{}.CreateTable(t)
}

// CreateTable renders t in this style.
//
// A column is rendered as:
//
//	<Name> <Type> [NOT NULL] [UNIQUE] [DEFAULT <Default>]
//
// Primary-key columns are collected into a trailing PRIMARY KEY clause and
// References become FOREIGN KEY (<col>) REFERENCES <target> clauses after it.
func (s Style) CreateTable(t TableDef) (string, error) {
	fqn := strings.TrimSpace(t.FQN)
	if fqn == "" {
		return "", fmt.Errorf("ddl: table FQN must not be empty")
	}
	if len(t.Columns) == 0 {
		return "", fmt.Errorf("ddl: at least one column is required")
	}

	cols := make([]string, 0, len(t.Columns)+2)
	pks := make([]string, 0, len(t.Columns))
	var fks []string

	for _, c := range t.Columns {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return "", fmt.Errorf("ddl: column with empty name in table %s", fqn)
		}
		typ := strings.TrimSpace(c.SQLType)
		if typ == "" {
			return "", fmt.Errorf("ddl: column %s missing SQLType", name)
		}
		if s.MapType != nil {
			typ = s.MapType(typ, c.Size)
		}

		var sb strings.Builder
		sb.WriteString(s.ident(name))
		sb.WriteByte(' ')
		sb.WriteString(typ)

		if !c.Nullable {
			sb.WriteString(" NOT NULL")
		}
		if c.Unique {
			sb.WriteString(" UNIQUE")
		}
		if def := strings.TrimSpace(c.Default); def != "" {
			sb.WriteString(" DEFAULT ")
			sb.WriteString(def)
		}
		cols = append(cols, sb.String())

		if c.PrimaryKey {
			pks = append(pks, s.ident(name))
		}
		if ref := strings.TrimSpace(c.References); ref != "" {
			target, err := s.reference(ref)
			if err != nil {
				return "", fmt.Errorf("ddl: column %s: %w", name, err)
			}
			fks = append(fks, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s", s.ident(name), target))
		}
	}

	if len(pks) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(pks, ", ")))
	}
	cols = append(cols, fks...)

	create := "CREATE TABLE "
	if s.IfNotExists {
		create = "CREATE TABLE IF NOT EXISTS "
	}
	stmt := fmt.Sprintf("%s%s (\n  %s\n);", create, s.fqn(fqn), strings.Join(cols, ",\n  "))
	if s.Wrap != nil {
		stmt = s.Wrap(fqn, stmt)
	}
	return stmt, nil
}

// CreateSchema renders every table of Schema in order.
func (s Style) CreateSchema() ([]string, error) {
	defs := Schema()
	out := make([]string, 0, len(defs))
	for _, td := range defs {
		stmt, err := s.CreateTable(td)
		if err != nil {
			return nil, err
		}
		out = append(out, stmt)
	}
	return out, nil
}

func (s Style) ident(name string) string {
	if s.Quote == nil {
		return name
	}
	return s.Quote(name)
}

func (s Style) fqn(fqn string) string {
	if s.Quote == nil {
		return fqn
	}
	parts := strings.Split(fqn, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, s.Quote(p))
		}
	}
	return strings.Join(out, ".")
}

// reference renders "table(col)" in this style.
func (s Style) reference(ref string) (string, error) {
	open := strings.IndexByte(ref, '(')
	if open <= 0 || !strings.HasSuffix(ref, ")") {
		return "", fmt.Errorf("invalid reference %q, want table(column)", ref)
	}
	table := strings.TrimSpace(ref[:open])
	col := strings.TrimSpace(ref[open+1 : len(ref)-1])
	if col == "" {
		return "", fmt.Errorf("invalid reference %q, want table(column)", ref)
	}
	return fmt.Sprintf("%s (%s)", s.fqn(table), s.ident(col)), nil
}
