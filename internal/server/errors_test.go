package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/process-pipelines/internal/checkpoint"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"run not found", &ErrRunNotFound{RunID: "r"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", &ErrRunNotFound{RunID: "r"}), http.StatusNotFound},
		{"unknown checkpoint", fmt.Errorf("%w: cp", checkpoint.ErrUnknownCheckpoint), http.StatusNotFound},
		{"finished", &ErrRunFinished{RunID: "r"}, http.StatusConflict},
		{"too many", &ErrTooManyRuns{Limit: 2}, http.StatusTooManyRequests},
		{"validation", &ErrValidation{Field: "process", Message: "required"}, http.StatusBadRequest},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
