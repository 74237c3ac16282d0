package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	plain := New(ErrCodeNotFound, "game not found")
	if plain.Error() != "NOT_FOUND: game not found" {
		t.Errorf("Error() = %q", plain.Error())
	}

	wrapped := Wrap(fmt.Errorf("boom"), ErrCodeInternalError, "failed to load game")
	if wrapped.Error() != "INTERNAL_ERROR: failed to load game (boom)" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "app error", err: New(ErrCodeConflict, "busy"), want: ErrCodeConflict},
		{name: "wrapped app error", err: fmt.Errorf("outer: %w", New(ErrCodeForbidden, "nope")), want: ErrCodeForbidden},
		{name: "plain error", err: stderrors.New("plain"), want: ErrCodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Code(tt.err); got != tt.want {
				t.Errorf("Code() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := Wrap(stderrors.New("db down"), ErrCodeNotFound, "no live game")
	if !stderrors.Is(err, New(ErrCodeNotFound, "")) {
		t.Error("errors.Is() should match by code")
	}
	if stderrors.Is(err, New(ErrCodeConflict, "")) {
		t.Error("errors.Is() matched a different code")
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{ErrCodeInsufficientPool, http.StatusServiceUnavailable},
		{ErrCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := HTTPStatus(New(tt.code, "x")); got != tt.want {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}
