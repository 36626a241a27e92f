package utils

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestTransientErrorQuotaMessage(t *testing.T) {
	err := errors.New("OpenAI API error: You exceeded your current quota, please check your plan and billing details.")

	if !IsTransientError(err) {
		t.Fatalf("expected quota message to be treated as transient")
	}
}

func TestTransientErrorStatusVariants(t *testing.T) {
	cases := []string{
		"API error (status 429): Too many requests",
		"http 429 rate limit",
		"request timed out",
		"dial tcp: connection refused",
		"service unavailable",
	}
	for _, msg := range cases {
		if !IsTransientError(errors.New(msg)) {
			t.Fatalf("expected %q to be treated as transient", msg)
		}
	}
}

func TestTransientWrapperBeatsTextMatching(t *testing.T) {
	err := Transient(errors.New("provider hiccup"))
	if !IsTransientError(err) {
		t.Fatalf("expected typed TransientError to be transient")
	}
	wrapped := fmt.Errorf("calling generator: %w", err)
	if !IsTransientError(wrapped) {
		t.Fatalf("expected wrapped TransientError to stay transient")
	}
}

func TestCancellationIsNeverTransient(t *testing.T) {
	if IsTransientError(context.Canceled) {
		t.Fatalf("did not expect context.Canceled to be transient")
	}
	if IsTransientError(fmt.Errorf("step aborted: %w", context.DeadlineExceeded)) {
		t.Fatalf("did not expect deadline exceeded to be transient")
	}
}

func TestNonTransientError(t *testing.T) {
	if IsTransientError(errors.New("invalid plan step kind")) {
		t.Fatalf("did not expect a validation error to be transient")
	}
	if IsTransientError(nil) {
		t.Fatalf("did not expect nil to be transient")
	}
}
