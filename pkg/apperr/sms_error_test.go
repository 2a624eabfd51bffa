package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NotFound("message"), http.StatusNotFound},
		{"wrapped store error", fmt.Errorf("persist: %w", StoreUnavailable("save rules", errors.New("down"))), http.StatusServiceUnavailable},
		{"import failure", ImportFailed("csv", errors.New("bad row")), http.StatusUnprocessableEntity},
		{"rate limited", RateLimited(30), http.StatusTooManyRequests},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.want {
				t.Errorf("GetHTTPStatus() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAppError_UnwrapAndDetails(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable("load history", cause)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(StoreUnavailable, cause) = false, want true")
	}
	if got, want := err.Error(), "[STORE_UNAVAILABLE] store unavailable: load history: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	rl := RateLimited(12)
	if got := rl.Details["retry_after"]; got != 12 {
		t.Errorf("Details[retry_after] = %v, want 12", got)
	}
	if got := MissingField("sender").Details["field"]; got != "sender" {
		t.Errorf("Details[field] = %v, want sender", got)
	}
}
