package client

import (
	"errors"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name       string
		errorClass ErrorClass
		expected   bool
	}{
		{name: "client error should not retry", errorClass: ErrorClassClient, expected: false},
		{name: "server error should retry", errorClass: ErrorClassServer, expected: true},
		{name: "rate limit should retry", errorClass: ErrorClassRateLimit, expected: true},
		{name: "network error should retry", errorClass: ErrorClassNetwork, expected: true},
		{name: "empty error class should not retry", errorClass: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldRetry(tt.errorClass); got != tt.expected {
				t.Errorf("shouldRetry(%q) = %v, want %v", tt.errorClass, got, tt.expected)
			}
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorClass
	}{
		{200, ""},
		{304, ""},
		{401, ErrorClassClient},
		{404, ErrorClassClient},
		{429, ErrorClassRateLimit},
		{500, ErrorClassServer},
		{503, ErrorClassServer},
	}

	for _, tt := range tests {
		if got := classifyStatus(tt.status); got != tt.expected {
			t.Errorf("classifyStatus(%d) = %q, want %q", tt.status, got, tt.expected)
		}
	}
}

func TestUpstreamError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *UpstreamError
		expected string
	}{
		{
			name: "error with wrapped error",
			err: &UpstreamError{
				ErrorClass: ErrorClassNetwork,
				Message:    "request failed",
				Err:        errors.New("connection refused"),
			},
			expected: "discogs network error (status 0): request failed: connection refused",
		},
		{
			name: "error without wrapped error",
			err: &UpstreamError{
				StatusCode: 503,
				ErrorClass: ErrorClassServer,
				Message:    "Service Unavailable",
			},
			expected: "discogs server error (status 503): Service Unavailable",
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

func TestUpstreamError_Unwrap(t *testing.T) {
	wrapped := errors.New("dial tcp: timeout")
	err := &UpstreamError{ErrorClass: ErrorClassNetwork, Err: wrapped}

	if !errors.Is(err, wrapped) {
		t.Error("errors.Is should see the wrapped error")
	}

	var target *UpstreamError
	if !errors.As(error(err), &target) || target.ErrorClass != ErrorClassNetwork {
		t.Error("errors.As should find the UpstreamError")
	}

	if (&UpstreamError{}).Unwrap() != nil {
		t.Error("Unwrap() should be nil without a wrapped error")
	}
}
