package circuit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ok(context.Context) error   { return nil }
func fail(context.Context) error { return errors.New("unavailable") }

func TestNew_Defaults(t *testing.T) {
	b := New(Config{})

	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 3, b.maxFailures)
	assert.Equal(t, 30*time.Second, b.timeout)
	assert.Equal(t, 2, b.halfOpenSuccesses)
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := New(DefaultConfig())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Call(ctx, ok))
	}

	stats := b.Stats()
	assert.Equal(t, StateClosed, stats.State)
	assert.Equal(t, int64(10), stats.TotalRequests)
	assert.Zero(t, stats.TotalFailures)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := New(Config{MaxFailures: 2})
	ctx := context.Background()

	_ = b.Call(ctx, fail)
	_ = b.Call(ctx, ok)
	_ = b.Call(ctx, fail)

	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_OpensAndRejects(t *testing.T) {
	b := New(Config{MaxFailures: 3, Timeout: time.Hour})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, b.Call(ctx, fail))
	}
	assert.Equal(t, StateOpen, b.State())

	called := false
	err := b.Call(ctx, func(context.Context) error {
		called = true
		return nil
	})

	assert.False(t, called)
	assert.True(t, domain.IsCircuitOpen(err))
	assert.Equal(t, int64(1), b.Stats().TotalRejections)
}

func TestBreaker_HalfOpenRecovery(t *testing.T) {
	now := time.Now()
	b := New(Config{MaxFailures: 1, Timeout: time.Minute, HalfOpenSuccesses: 2})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, fail)
	require.Equal(t, StateOpen, b.State())

	now = now.Add(2 * time.Minute)

	require.NoError(t, b.Call(ctx, ok))
	assert.Equal(t, StateHalfOpen, b.State())

	require.NoError(t, b.Call(ctx, ok))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := New(Config{MaxFailures: 1, Timeout: time.Minute})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Call(ctx, fail)
	now = now.Add(2 * time.Minute)

	assert.Error(t, b.Call(ctx, fail))
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_OnStateChange(t *testing.T) {
	var mu sync.Mutex
	var transitions []string

	b := New(Config{
		MaxFailures: 1,
		Timeout:     time.Hour,
		OnStateChange: func(from, to State) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = b.Call(context.Background(), fail)
	b.Reset()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"closed->open", "open->closed"}, transitions)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}
