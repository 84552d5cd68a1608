// Package csv reads CSV text into normalized rows for one record kind.
//
// Header handling maps arbitrary source spellings onto the kind's canonical
// columns: every header is cleaned (BOM removed, NFC normalized, trimmed,
// lower-cased), then matched against the configured aliases first and the
// canonical names second.
package csv

import (
	"sort"
	"strings"

	"golang.org/x/text/unicode/norm"

	"hringest/internal/config"
	"hringest/internal/errs"
	"hringest/internal/records"
)

// CleanHeader removes BOM artifacts, normalizes to NFC, trims and
// lower-cases h.
func CleanHeader(h string) string {
	h = strings.ReplaceAll(h, "\ufeff", "")
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(h)))
}

// Mapping is the result of normalizing one header row.
type Mapping struct {
	// Headers is the raw header row as read.
	Headers []string
	// Canonical[i] is the canonical column for Headers[i], or "" when the
	// header is dropped.
	Canonical []string
	// Missing lists canonical columns no header mapped to, in column order.
	Missing []string
}

// ByHeader returns raw header -> canonical column for mapped headers.
func (m Mapping) ByHeader() map[string]string {
	out := make(map[string]string, len(m.Headers))
	for i, c := range m.Canonical {
		if c != "" {
			out[m.Headers[i]] = c
		}
	}
	return out
}

// Normalizer maps header rows to canonical columns. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	aliases  map[records.Kind]map[string]string
	failFast bool
}

// NewNormalizer builds a Normalizer from the alias table. Tables that are
// not supported kinds are ignored. When failFast is set, a header row that
// leaves a canonical column unmapped is rejected.
func NewNormalizer(hm config.HeaderMap, failFast bool) *Normalizer {
	n := &Normalizer{aliases: map[records.Kind]map[string]string{}, failFast: failFast}
	for _, kind := range records.Kinds {
		cols := hm.Aliases(string(kind))
		if len(cols) == 0 {
			continue
		}
		canon := make([]string, 0, len(cols))
		for c := range cols {
			canon = append(canon, c)
		}
		sort.Strings(canon)

		m := map[string]string{}
		for _, c := range canon {
			for _, alias := range cols[c] {
				if key := CleanHeader(alias); key != "" {
					m[key] = c
				}
			}
		}
		n.aliases[kind] = m
	}
	return n
}

// FailFast reports whether missing headers are fatal.
func (n *Normalizer) FailFast() bool { return n.failFast }

// Normalize maps headers onto kind's canonical columns. An alias match wins
// over a direct canonical-name match. It fails with a HeaderMismatchError
// only when fail-fast is enabled and a canonical column is unmapped.
func (n *Normalizer) Normalize(headers []string, kind records.Kind) (Mapping, error) {
	cols := kind.Columns()
	direct := make(map[string]string, len(cols))
	for _, c := range cols {
		direct[strings.ToLower(c)] = c
	}
	aliases := n.aliases[kind]

	m := Mapping{
		Headers:   headers,
		Canonical: make([]string, len(headers)),
	}
	mapped := map[string]bool{}
	for i, h := range headers {
		ch := CleanHeader(h)
		if c, ok := aliases[ch]; ok {
			m.Canonical[i] = c
		} else if c, ok := direct[ch]; ok {
			m.Canonical[i] = c
		}
		if m.Canonical[i] != "" {
			mapped[m.Canonical[i]] = true
		}
	}
	for _, c := range cols {
		if !mapped[c] {
			m.Missing = append(m.Missing, c)
		}
	}

	if len(m.Missing) > 0 && n.failFast {
		return m, &errs.HeaderMismatchError{Kind: string(kind), Missing: m.Missing, Got: headers}
	}
	return m, nil
}
