package main

import (
	"github.com/cockroachdb/errors"

	"hringest/internal/errs"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitOther      = 1
	exitValidation = 2
	exitUsage      = 3
	exitSource     = 4
	exitStorage    = 5
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit code and otherwise classifies err by its
// taxonomy kind.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	switch errs.Kind(err) {
	case errs.KindHeaderMismatch, errs.KindRowValidation, errs.KindDateParse, errs.KindDecimalParse:
		return exitValidation
	case errs.KindConfiguration:
		return exitUsage
	case errs.KindSourceFetch:
		return exitSource
	case errs.KindBulkLoad:
		return exitStorage
	}
	return exitOther
}
