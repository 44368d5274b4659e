package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBusinessError_Is(t *testing.T) {
	err := RuleViolation(CodeNoStock, "book %q has no stock", "Dune")

	assert.True(t, errors.Is(err, ErrRuleViolation))
	assert.True(t, errors.Is(err, ErrNoStock))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.False(t, errors.Is(err, ErrLoanAlreadyReturned))

	wrapped := fmt.Errorf("create loan: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNoStock))
	assert.Equal(t, KindRuleViolation, KindOf(wrapped))
	assert.Equal(t, `book "Dune" has no stock`, err.Error())
}

func TestKindOf_NonBusinessError(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("connection refused")))
	assert.Equal(t, "unknown", Kind(0).String())
}

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "not found",
			err:        NotFound(CodeBookNotFound, "book 7 not found"),
			wantStatus: http.StatusNotFound,
			wantCode:   CodeBookNotFound,
		},
		{
			name:       "validation",
			err:        Validation(CodeInvalidBook, "title too short"),
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidBook,
		},
		{
			name:       "rule violation wrapped",
			err:        fmt.Errorf("return loan: %w", RuleViolation(CodeLoanAlreadyReturned, "already returned")),
			wantStatus: http.StatusConflict,
			wantCode:   CodeLoanAlreadyReturned,
		},
		{
			name:       "kind without code",
			err:        &BusinessError{Kind: KindValidation, Message: "bad"},
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeValidation,
		},
		{
			name:       "infrastructure error",
			err:        errors.New("dial tcp: refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.ToErrorResponse().Code)
		})
	}
}
