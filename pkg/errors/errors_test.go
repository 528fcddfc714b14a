package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", fmt.Errorf("show s9: %w", ErrRecordNotFound), http.StatusNotFound},
		{"invalid", ErrInvalidInput, http.StatusBadRequest},
		{"rate limited", ErrRateLimited, http.StatusTooManyRequests},
		{"index unavailable", fmt.Errorf("search: %w", ErrIndexUnavailable), http.StatusServiceUnavailable},
		{"corpus unavailable", ErrCorpusUnavailable, http.StatusServiceUnavailable},
		{"app error wins", New(ErrRecordNotFound, http.StatusGone, "gone"), http.StatusGone},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusCode(tt.err); got != tt.want {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	err := Newf(ErrInvalidInput, http.StatusBadRequest, "limit %d", -1)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("AppError should unwrap to its sentinel")
	}
	if err.Error() != "invalid input: limit -1" {
		t.Errorf("Error() = %q", err.Error())
	}
}
