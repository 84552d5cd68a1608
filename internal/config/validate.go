package config

import (
	"fmt"
	"sort"
	"strings"

	"hringest/internal/records"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a finding that is surfaced but not fatal.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding.
//
// Path is a dotted path into the config (e.g. "ingest.default_mode",
// "employees.hire_date[1]"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateSettings lints decoded settings.
func ValidateSettings(s Settings) []Issue {
	var issues []Issue

	switch strings.ToLower(strings.TrimSpace(s.Ingest.DefaultMode)) {
	case ModeInsert, ModeUpsert:
	case "":
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "ingest.default_mode",
			Message:  "default_mode is empty; insert will be used",
		})
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.default_mode",
			Message:  fmt.Sprintf("unsupported mode %q; expected insert or upsert", s.Ingest.DefaultMode),
		})
	}

	if s.Ingest.MaxBatchRows <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.max_batch_rows",
			Message:  "max_batch_rows must be > 0",
		})
	} else if s.Ingest.MaxBatchRows > 10000 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "ingest.max_batch_rows",
			Message:  "large max_batch_rows may exceed driver placeholder limits",
		})
	}

	return issues
}

// ValidateHeaderMap lints the alias table: unknown tables, aliases mapped to
// columns the table does not have, empty aliases, and aliases claimed by
// more than one canonical column of the same table.
func ValidateHeaderMap(h HeaderMap) []Issue {
	var issues []Issue

	for _, table := range sortedKeys(h) {
		kind, err := records.ParseKind(table)
		if err != nil {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     table,
				Message:  fmt.Sprintf("unknown table %q", table),
			})
			continue
		}

		canon := map[string]struct{}{}
		for _, c := range kind.Columns() {
			canon[c] = struct{}{}
		}

		owner := map[string]string{}
		cols := h[table]
		for _, col := range sortedKeys(cols) {
			if _, ok := canon[col]; !ok {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     table + "." + col,
					Message:  fmt.Sprintf("%q is not a column of %s", col, kind),
				})
				continue
			}
			for i, alias := range cols[col] {
				path := fmt.Sprintf("%s.%s[%d]", table, col, i)
				key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(alias, "\ufeff", "")))
				if key == "" {
					issues = append(issues, Issue{
						Severity: SeverityWarning,
						Path:     path,
						Message:  "empty alias is ignored",
					})
					continue
				}
				if prev, ok := owner[key]; ok && prev != col {
					issues = append(issues, Issue{
						Severity: SeverityError,
						Path:     path,
						Message:  fmt.Sprintf("alias %q is also mapped to %q", alias, prev),
					})
					continue
				}
				owner[key] = col
			}
		}
	}

	return issues
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
