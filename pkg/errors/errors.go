package errors

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCorpus         = errors.New("empty corpus")
	ErrUndefinedRelevance  = errors.New("undefined relevance")
	ErrMismatchedSample    = errors.New("mismatched samples")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrMalformedResult     = errors.New("malformed result line")
	ErrIndexFrozen         = errors.New("index already frozen")
	ErrInsufficientSamples = errors.New("insufficient samples")
	ErrFoldMissing         = errors.New("fold result missing")
	ErrInvalidInput        = errors.New("invalid input")
)

// Process exit codes returned by the command-line tools.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitIntegrity = 3
)

type AppError struct {
	Err      error
	Message  string
	ExitCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, exitCode int, message string) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  message,
		ExitCode: exitCode,
	}
}

func Newf(sentinel error, exitCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:      sentinel,
		Message:  fmt.Sprintf(format, args...),
		ExitCode: exitCode,
	}
}

// ExitCode maps an error to the process exit status. Data integrity
// failures get their own code so batch drivers can tell them apart from
// I/O trouble.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return ExitUsage
	case errors.Is(err, ErrEmptyCorpus),
		errors.Is(err, ErrUndefinedRelevance),
		errors.Is(err, ErrMismatchedSample),
		errors.Is(err, ErrMalformedRecord),
		errors.Is(err, ErrMalformedResult),
		errors.Is(err, ErrInsufficientSamples),
		errors.Is(err, ErrFoldMissing):
		return ExitIntegrity
	default:
		return ExitFailure
	}
}
