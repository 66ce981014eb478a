package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	// opencensus (pulled in transitively) starts a worker goroutine in its
	// package init that never exits; it is not a leak from this package.
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// scriptedClient returns queued responses/errors in order.
type scriptedClient struct {
	mu    sync.Mutex
	calls int
	queue []func() (string, error)
}

func (s *scriptedClient) Chat(ctx context.Context, system, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls >= len(s.queue) {
		return "", callErr(KindBadResponse, "script exhausted")
	}
	fn := s.queue[s.calls]
	s.calls++
	return fn()
}

func ok(text string) func() (string, error) {
	return func() (string, error) { return text, nil }
}

func fail(kind ErrorKind) func() (string, error) {
	return func() (string, error) { return "", callErr(kind, "boom") }
}

func TestPacer_SpacesCallStarts(t *testing.T) {
	p := NewPacer(30 * time.Millisecond)
	ctx := context.Background()

	begin := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(ctx))
	}
	// Third start must be at least two intervals after the first.
	assert.GreaterOrEqual(t, time.Since(begin), 60*time.Millisecond)
}

func TestPacer_NilAndZeroIntervalNoop(t *testing.T) {
	var p *Pacer
	assert.NoError(t, p.Wait(context.Background()))
	assert.NoError(t, NewPacer(0).Wait(context.Background()))
}

func TestPacer_ContextCancelWhileWaiting(t *testing.T) {
	p := NewPacer(time.Hour)
	require.NoError(t, p.Wait(context.Background())) // takes the first slot

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Wait(ctx), context.DeadlineExceeded)
}

func TestGate_BoundsConcurrency(t *testing.T) {
	g := NewGate(2)
	ctx := context.Background()

	var mu sync.Mutex
	active, peak := 0, 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, g.Acquire(ctx))
			defer g.Release()

			mu.Lock()
			active++
			if active > peak {
				peak = active
			}
			mu.Unlock()

			time.Sleep(5 * time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, 2)
	assert.Positive(t, peak)
}

func TestCaller_RetriesTransientThenSucceeds(t *testing.T) {
	client := &scriptedClient{queue: []func() (string, error){
		fail(KindConnection),
		fail(KindTimeout),
		ok("answer"),
	}}
	policy := DefaultRetryPolicy()
	policy.BackoffBase = time.Millisecond
	policy.BackoffCap = 2 * time.Millisecond
	c := NewCaller(client, nil, policy, nil)

	out, err := c.Chat(context.Background(), "sys", "user")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 3, client.calls)
}

func TestCaller_NonTransientFailsImmediately(t *testing.T) {
	client := &scriptedClient{queue: []func() (string, error){
		fail(KindBadResponse),
		ok("never reached"),
	}}
	c := NewCaller(client, nil, DefaultRetryPolicy(), nil)

	_, err := c.Chat(context.Background(), "", "user")
	require.Error(t, err)
	assert.Equal(t, KindBadResponse, KindOf(err))
	assert.Equal(t, 1, client.calls)
}

func TestCaller_ExhaustedAttemptsSurfaceLastError(t *testing.T) {
	client := &scriptedClient{queue: []func() (string, error){
		fail(KindConnection),
		fail(KindConnection),
		fail(KindConnection),
		ok("never reached"),
	}}
	policy := RetryPolicy{MaxAttempts: 3, RateLimitCooldown: time.Millisecond,
		BackoffBase: time.Millisecond, BackoffCap: time.Millisecond}
	c := NewCaller(client, nil, policy, nil)

	_, err := c.Chat(context.Background(), "", "user")
	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, KindConnection, KindOf(err))
}

func TestCallError_Transient(t *testing.T) {
	assert.True(t, callErr(KindRateLimit, "x").Transient())
	assert.True(t, callErr(KindTimeout, "x").Transient())
	assert.True(t, callErr(KindConnection, "x").Transient())
	assert.False(t, callErr(KindBadResponse, "x").Transient())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Quotes []struct {
			Page  int    `json:"page"`
			Quote string `json:"quote"`
		} `json:"quotes"`
	}

	t.Run("plain object", func(t *testing.T) {
		var p payload
		require.True(t, DecodeJSON(`{"quotes":[{"page":2,"quote":"q"}]}`, &p))
		require.Len(t, p.Quotes, 1)
		assert.Equal(t, 2, p.Quotes[0].Page)
	})

	t.Run("fenced with language tag", func(t *testing.T) {
		var p payload
		raw := "```json\n{\"quotes\":[{\"page\":1,\"quote\":\"a\"}]}\n```"
		require.True(t, DecodeJSON(raw, &p))
		assert.Equal(t, "a", p.Quotes[0].Quote)
	})

	t.Run("object buried in prose", func(t *testing.T) {
		var p payload
		raw := "Sure! Here is the result:\n{\"quotes\":[{\"page\":3,\"quote\":\"b\"}]}\nHope that helps."
		require.True(t, DecodeJSON(raw, &p))
		assert.Equal(t, 3, p.Quotes[0].Page)
	})

	t.Run("braces inside strings do not confuse the scanner", func(t *testing.T) {
		var p payload
		raw := `noise {"quotes":[{"page":4,"quote":"uses { and } and \" freely"}]} noise`
		require.True(t, DecodeJSON(raw, &p))
		assert.Contains(t, p.Quotes[0].Quote, "{ and }")
	})

	t.Run("garbage fails closed", func(t *testing.T) {
		var p payload
		assert.False(t, DecodeJSON("not json at all", &p))
		assert.False(t, DecodeJSON("", &p))
		assert.False(t, DecodeJSON("{truncated", &p))
	})
}
