package utils

import (
	"context"
	"errors"
	"strings"
)

// TransientError marks a failure believed likely to succeed if retried after
// a delay, such as rate limiting, timeouts, or temporary unavailability.
// Collaborators that can tell should wrap with Transient so classification
// does not depend on message text.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return e.Cause.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}

// Transient wraps err so IsTransientError recognizes it without text matching.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Cause: err}
}

// IsTransientError reports whether err is worth retrying after a delay.
// Typed TransientError wrappers win; untyped errors fall back to matching the
// phrases providers actually emit. Cancellation is never transient.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	return containsTransientPhrases(err.Error())
}

func containsTransientPhrases(s string) bool {
	s = strings.ToLower(s)
	return strings.Contains(s, "rate limit") ||
		strings.Contains(s, "requests per minute") ||
		strings.Contains(s, "rate exceeded") ||
		strings.Contains(s, "quota exceeded") ||
		strings.Contains(s, "too many requests") ||
		strings.Contains(s, "insufficient_quota") ||
		strings.Contains(s, "insufficient quota") ||
		strings.Contains(s, "current quota") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "timed out") ||
		strings.Contains(s, "temporarily unavailable") ||
		strings.Contains(s, "service unavailable") ||
		strings.Contains(s, "connection refused") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "network is unreachable") ||
		strings.Contains(s, "status 429") ||
		strings.Contains(s, "http 429") ||
		strings.Contains(s, "status 503") ||
		strings.Contains(s, "http 503")
}
