package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
)

// ErrRunNotFound indicates the run is neither active nor recorded
type ErrRunNotFound struct {
	RunID string
}

func (e *ErrRunNotFound) Error() string {
	return fmt.Sprintf("run not found: %s", e.RunID)
}

// ErrRunFinished indicates the run can no longer be changed
type ErrRunFinished struct {
	RunID string
}

func (e *ErrRunFinished) Error() string {
	return fmt.Sprintf("run already finished: %s", e.RunID)
}

// ErrTooManyRuns indicates the server is at its active run limit
type ErrTooManyRuns struct {
	Limit int
}

func (e *ErrTooManyRuns) Error() string {
	return fmt.Sprintf("too many active runs (limit %d)", e.Limit)
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		notFound *ErrRunNotFound
		finished *ErrRunFinished
		tooMany  *ErrTooManyRuns
		invalid  *ErrValidation
	)
	switch {
	case errors.As(err, &notFound), errors.Is(err, checkpoint.ErrUnknownCheckpoint):
		return http.StatusNotFound
	case errors.As(err, &finished):
		return http.StatusConflict
	case errors.As(err, &tooMany):
		return http.StatusTooManyRequests
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
