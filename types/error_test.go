package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrServiceUnavailable, "cache down").
		WithCause(root).
		WithHTTPStatus(503).
		WithRetryable(true)

	if GetErrorCode(err) != ErrServiceUnavailable {
		t.Fatalf("expected code %s, got %s", ErrServiceUnavailable, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedCode(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("handler: %w", NewError(ErrNotFound, "missing"))
	if !IsErrorCode(err, ErrNotFound) {
		t.Fatalf("expected wrapped NOT_FOUND code")
	}
	if IsRetryable(errors.New("plain")) {
		t.Fatalf("plain errors are not retryable")
	}
}

func TestHTTPStatusFor(t *testing.T) {
	t.Parallel()

	cases := map[ErrorCode]int{
		ErrInvalidRequest:     http.StatusBadRequest,
		ErrValidation:         http.StatusBadRequest,
		ErrAlreadyExists:      http.StatusBadRequest,
		ErrNotFound:           http.StatusNotFound,
		ErrUnauthorized:       http.StatusUnauthorized,
		ErrForbidden:          http.StatusForbidden,
		ErrServiceUnavailable: http.StatusServiceUnavailable,
		ErrInternalError:      http.StatusInternalServerError,
		ErrorCode("UNKNOWN"):  http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := HTTPStatusFor(code); got != want {
			t.Errorf("HTTPStatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
