package storage

import (
	"fmt"
	"strings"
	"time"
)

// Dialect carries the SQL spelling differences between backends.
type Dialect struct {
	Name string
	// Placeholder renders the n-th (1-based) bind parameter.
	Placeholder func(n int) string
	// Quote quotes one identifier segment.
	Quote func(ident string) string
	// MonthOf renders an integer month (1..12) extraction of expr.
	MonthOf func(expr string) string
	// BindTime converts a timestamp into the value bound for it. Nil means
	// bind time.Time as-is.
	BindTime func(t time.Time) any
}

// Bind converts v into the value handed to the driver.
func (d Dialect) Bind(v any) any {
	if t, ok := v.(time.Time); ok && d.BindTime != nil {
		return d.BindTime(t)
	}
	return v
}

// QuoteAll quotes each identifier.
func (d Dialect) QuoteAll(idents []string) []string {
	out := make([]string, len(idents))
	for i, id := range idents {
		out[i] = d.Quote(id)
	}
	return out
}

// DollarPlaceholder renders $n (Postgres).
func DollarPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// AtPlaceholder renders @pn (SQL Server).
func AtPlaceholder(n int) string { return fmt.Sprintf("@p%d", n) }

// QuestionPlaceholder renders ? (SQLite, MySQL).
func QuestionPlaceholder(int) string { return "?" }

// DoubleQuote quotes an identifier with "double quotes".
func DoubleQuote(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// BracketQuote quotes an identifier with [brackets].
func BracketQuote(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

// BacktickQuote quotes an identifier with `backticks`.
func BacktickQuote(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }
