package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		kind    ErrorKind
		status  int
		message string
	}{
		{"validation", ValidationError("remarks are required"), ErrKindValidation, http.StatusBadRequest, "remarks are required"},
		{"conflict", ConflictError("plan stage exists for case %s", "c1"), ErrKindConflict, http.StatusBadRequest, "plan stage exists for case c1"},
		{"invalid state", InvalidStateError("stage is rejected"), ErrKindInvalidState, http.StatusBadRequest, "stage is rejected"},
		{"forbidden", ForbiddenError("no"), ErrKindForbidden, http.StatusForbidden, "no"},
		{"not found", NotFoundError("case %s not found", "c1"), ErrKindNotFound, http.StatusNotFound, "case c1 not found"},
		{"internal", InternalError("db down", errors.New("disk I/O error")), ErrKindInternal, http.StatusInternalServerError, "An unexpected error occurred"},
		{"plain error", errors.New("boom"), ErrKindInternal, http.StatusInternalServerError, "An unexpected error occurred"},
		{"wrapped", fmt.Errorf("create: %w", NotFoundError("gone")), ErrKindNotFound, http.StatusNotFound, "gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.True(t, IsKind(tt.err, tt.kind))
			assert.Equal(t, tt.status, HTTPStatus(tt.err))
			assert.Equal(t, tt.message, PublicMessage(tt.err))
		})
	}

	assert.False(t, IsKind(nil, ErrKindInternal))
}

func TestInternalErrorUnwraps(t *testing.T) {
	cause := errors.New("disk I/O error")
	err := InternalError("failed to save", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "disk I/O error")
}
