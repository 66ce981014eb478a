package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how a Caller reacts to transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries per call, including the first.
	MaxAttempts int
	// RateLimitCooldown is the fixed sleep before retrying after a
	// rate-limit signal. Deliberately long: the upstream quota window is
	// per minute.
	RateLimitCooldown time.Duration
	// BackoffBase scales the linear backoff for timeouts and connection
	// drops; attempt n sleeps base*n plus jitter.
	BackoffBase time.Duration
	// BackoffCap bounds any single backoff sleep.
	BackoffCap time.Duration
}

// DefaultRetryPolicy returns the retry bounds used across the pipeline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		RateLimitCooldown: 62 * time.Second,
		BackoffBase:       1200 * time.Millisecond,
		BackoffCap:        6 * time.Second,
	}
}

// Caller wraps a Client with the shared pacing gate and a bounded retry
// loop. Every pipeline stage calls models through a Caller so the pacing
// and cooldown behavior is uniform.
type Caller struct {
	client Client
	pacer  *Pacer
	policy RetryPolicy
	log    *zap.Logger
}

// NewCaller builds a Caller. pacer may be shared between many Callers; log
// may be nil.
func NewCaller(client Client, pacer *Pacer, policy RetryPolicy, log *zap.Logger) *Caller {
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Caller{client: client, pacer: pacer, policy: policy, log: log}
}

// Chat performs one logical model call: wait for the pacing slot, call, and
// retry transient failures within the policy's bounds. A non-transient
// failure or exhausted attempts surface as the (wrapped) last error.
func (c *Caller) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return "", err
		}

		out, err := c.client.Chat(ctx, systemPrompt, userPrompt)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var ce *CallError
		if !errors.As(err, &ce) || !ce.Transient() {
			return "", err
		}
		if attempt == c.policy.MaxAttempts {
			break
		}

		wait := c.backoff(ce.Kind, attempt)
		c.log.Warn("model call failed, retrying",
			zap.String("kind", string(ce.Kind)),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.policy.MaxAttempts),
			zap.Duration("wait", wait),
			zap.Error(ce.Err))

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	return "", fmt.Errorf("model call failed after %d attempts: %w", c.policy.MaxAttempts, lastErr)
}

// backoff picks the sleep before the next attempt: a long fixed cooldown for
// rate limits, jittered linear backoff otherwise.
func (c *Caller) backoff(kind ErrorKind, attempt int) time.Duration {
	if kind == KindRateLimit {
		return c.policy.RateLimitCooldown
	}
	wait := time.Duration(attempt)*c.policy.BackoffBase +
		time.Duration(rand.Int63n(int64(time.Second)))
	if wait > c.policy.BackoffCap {
		wait = c.policy.BackoffCap
	}
	return wait
}
