package apperrors_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/apperrors"
)

func TestClassification(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:    "unavailable wrapped twice",
			err:     fmt.Errorf("dashboard: %w", apperrors.Unavailable("search ocds", cause)),
			status:  http.StatusServiceUnavailable,
			code:    "UPSTREAM_UNAVAILABLE",
			message: "upstream service unavailable",
		},
		{
			name:    "invalid parameter",
			err:     apperrors.Invalid("year %q must be a four digit year", "20x1"),
			status:  http.StatusBadRequest,
			code:    "INVALID_PARAMETER",
			message: `year "20x1" must be a four digit year`,
		},
		{
			name:    "not found",
			err:     apperrors.NotFound("record %s not found", "ocds-1"),
			status:  http.StatusNotFound,
			code:    "NOT_FOUND",
			message: "record ocds-1 not found",
		},
		{
			name:    "internal hides cause",
			err:     apperrors.Internal("decode", errors.New("unexpected token")),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "internal error",
		},
		{
			name:    "bare deadline is unavailable",
			err:     fmt.Errorf("search: %w", context.DeadlineExceeded),
			status:  http.StatusServiceUnavailable,
			code:    "UPSTREAM_UNAVAILABLE",
			message: "upstream service unavailable",
		},
		{
			name:    "unclassified is internal",
			err:     errors.New("nil map"),
			status:  http.StatusInternalServerError,
			code:    "INTERNAL_ERROR",
			message: "internal error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := apperrors.HTTPStatus(tt.err); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
			if got := apperrors.Code(tt.err); got != tt.code {
				t.Errorf("Code() = %q, want %q", got, tt.code)
			}
			if got := apperrors.Message(tt.err); got != tt.message {
				t.Errorf("Message() = %q, want %q", got, tt.message)
			}
		})
	}
}

func TestUnwrapKeepsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := apperrors.Unavailable("ping", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !apperrors.Is(err, apperrors.KindUnavailable) {
		t.Error("Is(KindUnavailable) = false")
	}
	if apperrors.Is(nil, apperrors.KindInternal) {
		t.Error("Is(nil) should be false")
	}
}
