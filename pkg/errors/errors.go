package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrLocationNotFound = errors.New("location not found")
	ErrDocumentParse    = errors.New("document could not be parsed")
	ErrTokenize         = errors.New("tokenize failed")
	ErrSegmentCorrupted = errors.New("segment corrupted")
	ErrSegmentNotFound  = errors.New("segment not found")
	ErrDuplicateKey     = errors.New("duplicate key")
	ErrInvalidCursor    = errors.New("invalid cursor")
	ErrInvalidQuery     = errors.New("invalid query")
	ErrInvalidInput     = errors.New("invalid input")
	ErrSearchTimeout    = errors.New("search timed out")
	ErrDictionary       = errors.New("yomi dictionary unavailable")
	ErrIndexBusy        = errors.New("index is busy")
	ErrInternal         = errors.New("internal error")
	ErrTimeout          = errors.New("operation timed out")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrDocumentNotFound), errors.Is(err, ErrLocationNotFound), errors.Is(err, ErrSegmentNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidCursor):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrIndexBusy):
		return http.StatusConflict
	case errors.Is(err, ErrSearchTimeout), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Exit codes returned by the command-line tools.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitCorrupt = 3
	ExitTimeout = 4
)

// ExitCode maps an error returned by a command to its process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidQuery), errors.Is(err, ErrInvalidCursor):
		return ExitUsage
	case errors.Is(err, ErrSegmentCorrupted):
		return ExitCorrupt
	case errors.Is(err, ErrSearchTimeout):
		return ExitTimeout
	default:
		return ExitFailure
	}
}
