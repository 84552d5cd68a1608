package csv

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"hringest/internal/errs"
	"hringest/internal/records"
)

// FirstDataRow is the row number of the first record after the header.
const FirstDataRow = 2

// Row is one normalized data row. Values maps canonical column -> raw text;
// columns the source did not supply are absent.
type Row struct {
	Num    int
	Values map[string]string
}

// Reader iterates normalized rows of a buffered CSV document.
type Reader struct {
	cr      *csv.Reader
	mapping Mapping
	next    int
}

// NewReader reads and normalizes the header row of content. An empty
// document yields a HeaderMismatchError that lists every canonical column.
func NewReader(content string, kind records.Kind, n *Normalizer) (*Reader, error) {
	cr := csv.NewReader(strings.NewReader(content))
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) || (err == nil && len(headers) == 0) {
		return nil, &errs.HeaderMismatchError{Kind: string(kind), Missing: kind.Columns()}
	}
	if err != nil {
		return nil, &errs.RowValidationError{Row: 1, Reason: "malformed header row", Err: err}
	}

	m, err := n.Normalize(headers, kind)
	if err != nil {
		return nil, err
	}
	return &Reader{cr: cr, mapping: m, next: FirstDataRow}, nil
}

// Mapping returns the header mapping in effect.
func (r *Reader) Mapping() Mapping { return r.mapping }

// Next returns the next row, or io.EOF when the document is exhausted. A
// malformed record yields a RowValidationError for its row; iteration may
// continue after it.
func (r *Reader) Next() (Row, error) {
	fields, err := r.cr.Read()
	if errors.Is(err, io.EOF) {
		return Row{}, io.EOF
	}
	num := r.next
	r.next++
	if err != nil {
		return Row{Num: num}, &errs.RowValidationError{Row: num, Reason: "malformed CSV record", Err: err}
	}

	vals := make(map[string]string, len(r.mapping.Canonical))
	for i, c := range r.mapping.Canonical {
		// Short rows leave trailing columns absent; a later duplicate
		// header overwrites an earlier one.
		if c == "" || i >= len(fields) {
			continue
		}
		vals[c] = fields[i]
	}
	return Row{Num: num, Values: vals}, nil
}

// ReadAll drains r, calling fn for every row or row-level error. Returning
// a non-nil error from fn stops iteration with that error.
func (r *Reader) ReadAll(fn func(Row, error) error) error {
	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ferr := fn(row, err); ferr != nil {
			return ferr
		}
	}
}
