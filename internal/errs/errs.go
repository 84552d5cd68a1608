// Package errs defines the error taxonomy surfaced by CSV ingestion.
//
// Every failure an ingestion call can return is one of the struct types in
// this package (possibly wrapped). Callers classify errors with errors.As or
// with Kind, which returns a stable name suitable for logs, HTTP bodies and
// CLI exit codes.
package errs

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// Stable kind names returned by Kind.
const (
	KindSourceFetch    = "source_fetch"
	KindHeaderMismatch = "header_mismatch"
	KindRowValidation  = "row_validation"
	KindDateParse      = "date_parse"
	KindDecimalParse   = "decimal_parse"
	KindBulkLoad       = "bulk_load"
	KindConfiguration  = "configuration"
	KindUnknown        = "unknown"
)

// SourceFetchError reports a remote source that could not be fetched or
// answered with a non-2xx status. Status is 0 when no response was received.
type SourceFetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *SourceFetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *SourceFetchError) Unwrap() error { return e.Err }

// HeaderMismatchError lists canonical columns absent from the source header.
type HeaderMismatchError struct {
	Kind    string
	Missing []string
	Got     []string
}

func (e *HeaderMismatchError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("empty CSV or missing header row for %s", e.Kind)
	}
	return fmt.Sprintf("CSV headers missing [%s] for %s. Got: [%s]",
		strings.Join(e.Missing, ", "), e.Kind, strings.Join(e.Got, ", "))
}

// RowValidationError is a single source row that failed coercion or a
// business rule. Row is 1-based with the header as row 1; zero means the
// failure concerns the batch as a whole.
type RowValidationError struct {
	Row    int
	Reason string
	Err    error
}

func (e *RowValidationError) Error() string {
	if e.Row <= 0 {
		return e.Reason
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

func (e *RowValidationError) Unwrap() error { return e.Err }

// DateParseError is a timestamp that could not be parsed, or that lies in
// the future when Future is set.
type DateParseError struct {
	Input  string
	Future bool
}

func (e *DateParseError) Error() string {
	switch {
	case strings.TrimSpace(e.Input) == "":
		return "empty or null datetime"
	case e.Future:
		return fmt.Sprintf("future date is not allowed: %q", e.Input)
	default:
		return fmt.Sprintf("invalid date: %q", e.Input)
	}
}

// DecimalParseError is a value that is empty or not a finite number.
type DecimalParseError struct {
	Input string
}

func (e *DecimalParseError) Error() string {
	if e.Input == "" {
		return "empty decimal value"
	}
	return fmt.Sprintf("invalid decimal: %q", e.Input)
}

// BulkLoadError wraps a storage failure raised while loading or merging rows.
type BulkLoadError struct {
	Table string
	Op    string
	Err   error
}

func (e *BulkLoadError) Error() string {
	return fmt.Sprintf("load %s (%s): %v", e.Table, e.Op, e.Err)
}

func (e *BulkLoadError) Unwrap() error { return e.Err }

// ConfigurationError is an unsupported record kind, mode, backend or an
// otherwise invalid argument.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string { return e.Msg }

// Configf builds a ConfigurationError with a stack attached.
func Configf(format string, args ...any) error {
	return errors.WithStack(&ConfigurationError{Msg: fmt.Sprintf(format, args...)})
}

// BulkLoad wraps err as a BulkLoadError. A nil err yields nil; an err that is
// already a BulkLoadError is returned unchanged.
func BulkLoad(table, op string, err error) error {
	if err == nil {
		return nil
	}
	var ble *BulkLoadError
	if errors.As(err, &ble) {
		return err
	}
	return errors.WithStack(&BulkLoadError{Table: table, Op: op, Err: err})
}

// Kind classifies err into one of the Kind* names. The first matching kind
// in the chain wins, so a DateParseError wrapped into a RowValidationError
// reports KindRowValidation.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var (
		sfe *SourceFetchError
		hme *HeaderMismatchError
		rve *RowValidationError
		dpe *DateParseError
		dce *DecimalParseError
		ble *BulkLoadError
		cfe *ConfigurationError
	)
	switch {
	case errors.As(err, &cfe):
		return KindConfiguration
	case errors.As(err, &sfe):
		return KindSourceFetch
	case errors.As(err, &hme):
		return KindHeaderMismatch
	case errors.As(err, &rve):
		return KindRowValidation
	case errors.As(err, &dpe):
		return KindDateParse
	case errors.As(err, &dce):
		return KindDecimalParse
	case errors.As(err, &ble):
		return KindBulkLoad
	default:
		return KindUnknown
	}
}
