// Package llm provides the model-call capability used by every pipeline
// stage: provider clients, a typed transient-error taxonomy, a global pacing
// gate, counting admission gates, and a bounded retry wrapper. No stage
// talks to a provider except through this package.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is the minimal interface pipeline stages use to call a model.
type Client interface {
	// Chat sends a system + user prompt pair and returns the completion text.
	// Failures are *CallError values carrying an ErrorKind.
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ErrorKind discriminates model-call failures so callers can decide between
// cooldown, backoff, or giving up.
type ErrorKind string

const (
	// KindRateLimit means the provider rejected the call for throughput
	// reasons; the retry wrapper sleeps a long fixed cooldown.
	KindRateLimit ErrorKind = "rate_limit"
	// KindTimeout means the call exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindConnection means the transport failed before a response arrived.
	KindConnection ErrorKind = "connection"
	// KindBadResponse means the provider answered with an unusable payload;
	// retrying is pointless.
	KindBadResponse ErrorKind = "bad_response"
)

// CallError is the typed failure returned by providers.
type CallError struct {
	Kind ErrorKind
	Err  error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("llm call failed (%s): %v", e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// Transient reports whether the failure is worth retrying.
func (e *CallError) Transient() bool {
	return e.Kind == KindRateLimit || e.Kind == KindTimeout || e.Kind == KindConnection
}

// KindOf extracts the ErrorKind from err, or KindBadResponse if err is not a
// CallError.
func KindOf(err error) ErrorKind {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindBadResponse
}

func callErr(kind ErrorKind, format string, args ...interface{}) *CallError {
	return &CallError{Kind: kind, Err: fmt.Errorf(format, args...)}
}
