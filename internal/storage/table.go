package storage

import (
	"strings"

	"hringest/internal/errs"
	"hringest/internal/records"
)

// Table describes a destination table.
type Table struct {
	Kind    records.Kind
	Name    string
	Columns []string
	// Key is the conflict key column.
	Key string
	// NotNull lists the columns the schema declares NOT NULL.
	NotNull []string
}

var notNull = map[records.Kind][]string{
	records.Departments: {"id", "name"},
	records.Jobs:        {"id", "title"},
	records.Employees:   {"id", "name"},
}

// TableFor returns the table written for kind.
func TableFor(kind records.Kind) Table {
	nn := notNull[kind]
	return Table{
		Kind:    kind,
		Name:    string(kind),
		Columns: kind.Columns(),
		Key:     "id",
		NotNull: append([]string(nil), nn...),
	}
}

// NonKeyColumns returns Columns without Key.
func (t Table) NonKeyColumns() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != t.Key {
			out = append(out, c)
		}
	}
	return out
}

// NotNullIndexes returns the positions of the NOT NULL columns in Columns.
func (t Table) NotNullIndexes() []int {
	var out []int
	for i, c := range t.Columns {
		for _, nn := range t.NotNull {
			if c == nn {
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// KeyIndex returns the position of Key in Columns, or -1.
func (t Table) KeyIndex() int {
	for i, c := range t.Columns {
		if c == t.Key {
			return i
		}
	}
	return -1
}

// Mode selects plain insert or insert-or-update on the key.
type Mode string

const (
	ModeInsert Mode = "insert"
	ModeUpsert Mode = "upsert"
)

// ParseMode maps s onto a Mode. Unknown values are a ConfigurationError.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInsert, ModeUpsert:
		return m, nil
	}
	return "", errs.Configf("invalid mode %q: use insert or upsert", s)
}
