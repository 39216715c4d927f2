package errors

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "op and message",
			err:      &Error{Op: "mapping.Load", Message: "read file"},
			expected: "mapping.Load: read file",
		},
		{
			name:     "op, message and cause",
			err:      &Error{Op: "mapping.Load", Message: "read file", Err: errors.New("eof")},
			expected: "mapping.Load: read file: eof",
		},
		{
			name:     "message only",
			err:      &Error{Message: "bad input"},
			expected: "bad input",
		},
		{
			name:     "message and cause",
			err:      &Error{Message: "bad input", Err: errors.New("eof")},
			expected: "bad input: eof",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestE(t *testing.T) {
	cause := errors.New("connection refused")
	err := E("enricher.Lookup", "fetch failed", KindNetwork, cause)

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("E() did not return *Error")
	}
	if e.Op != "enricher.Lookup" {
		t.Errorf("Op = %q, want enricher.Lookup", e.Op)
	}
	if e.Message != "fetch failed" {
		t.Errorf("Message = %q", e.Message)
	}
	if e.Kind != KindNetwork {
		t.Errorf("Kind = %v, want KindNetwork", e.Kind)
	}
	if !errors.Is(err, &Error{Kind: KindNetwork}) {
		t.Error("errors.Is kind match failed")
	}
	if e.Unwrap() != cause {
		t.Error("Unwrap() did not return cause")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "op") != nil {
		t.Error("Wrap(nil) should be nil")
	}

	cause := errors.New("boom")
	wrapped := Wrap(cause, "traffic.LoadEntries")
	var e *Error
	if !errors.As(wrapped, &e) {
		t.Fatalf("Wrap() did not return *Error")
	}
	if e.Op != "traffic.LoadEntries" || e.Unwrap() != cause {
		t.Errorf("Wrap() = %+v", e)
	}
}

func TestKindCheckers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"rate limit kind", &Error{Kind: KindRateLimit}, IsRateLimitError, true},
		{"rate limit api", &APIError{StatusCode: http.StatusTooManyRequests}, IsRateLimitError, true},
		{"not found kind", &Error{Kind: KindNotFound}, IsNotFoundError, true},
		{"not found api", &APIError{StatusCode: http.StatusNotFound}, IsNotFoundError, true},
		{"network", &Error{Kind: KindNetwork}, IsNetworkError, true},
		{"timeout", &Error{Kind: KindTimeout}, IsTimeoutError, true},
		{"plain error", errors.New("x"), IsNetworkError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(tt.err); got != tt.want {
				t.Errorf("checker = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &Error{Kind: KindNetwork}, true},
		{"timeout", &Error{Kind: KindTimeout}, true},
		{"rate limited", &Error{Kind: KindRateLimit}, true},
		{"server 500", &APIError{StatusCode: 500}, true},
		{"server 503", &APIError{StatusCode: 503}, true},
		{"server 501", &APIError{StatusCode: 501}, false},
		{"client 400", &APIError{StatusCode: 400}, false},
		{"invalid input", &Error{Kind: KindInvalidInput}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
