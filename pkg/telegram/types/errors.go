package types

import "fmt"

// FailureKind classifies why a provider call failed. Transport kinds are
// retryable; provider rejections and malformed responses are not.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureConnection  FailureKind = "connection"
	FailureProvider    FailureKind = "provider"
	FailureBadResponse FailureKind = "bad_response"
)

// APIError is returned by the client for every failed provider call.
// Code and Description are set only for provider rejections.
type APIError struct {
	Kind        FailureKind
	Code        int
	Description string
	Cause       error
}

func (e *APIError) Error() string {
	switch e.Kind {
	case FailureProvider:
		return fmt.Sprintf("telegram API error %d: %s", e.Code, e.Description)
	case FailureTimeout:
		return fmt.Sprintf("telegram request timed out: %v", e.Cause)
	case FailureConnection:
		return fmt.Sprintf("telegram connection failed: %v", e.Cause)
	default:
		return fmt.Sprintf("telegram returned a malformed response: %v", e.Cause)
	}
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a retry could plausibly change the outcome.
// Provider rejections are deterministic, so retrying them only burns quota.
func (e *APIError) IsRetryable() bool {
	return e.Kind == FailureTimeout || e.Kind == FailureConnection
}
