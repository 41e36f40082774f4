package resilience

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient_Nil(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_TransientError(t *testing.T) {
	err := NewTransientError(errors.New("rate limited"), 429)
	if !IsTransient(err) {
		t.Error("TransientError should be transient")
	}

	wrapped := fmt.Errorf("outer: %w", err)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"read tcp: connection reset by peer", true},
		{"dial tcp: i/o timeout", true},
		{"lookup host: no such host", true},
		{"invalid request body", false},
		{"401 unauthorized", false},
	}
	for _, tc := range cases {
		if got := IsTransient(errors.New(tc.msg)); got != tc.want {
			t.Errorf("IsTransient(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 301, 400, 401, 402, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 503)
	if !errors.Is(te, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message: %q", te.Error())
	}
}
