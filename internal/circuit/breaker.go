package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// State represents the circuit breaker state
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration
type Config struct {
	// MaxFailures is the number of consecutive failures before opening.
	MaxFailures int

	// Timeout is how long the circuit stays open before a trial call.
	Timeout time.Duration

	// HalfOpenSuccesses is how many trial successes close the circuit.
	HalfOpenSuccesses int

	// OnStateChange is called synchronously, outside the breaker lock.
	OnStateChange func(from, to State)
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:       3,
		Timeout:           30 * time.Second,
		HalfOpenSuccesses: 2,
	}
}

// Breaker guards calls to the flag API. Only availability failures
// should be reported to it; the caller decides what counts.
type Breaker struct {
	mu sync.Mutex

	maxFailures       int
	timeout           time.Duration
	halfOpenSuccesses int
	onStateChange     func(from, to State)

	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	lastStateChange time.Time

	totalRequests   int64
	totalFailures   int64
	totalRejections int64

	now func() time.Time
}

// New creates a new circuit breaker
func New(config Config) *Breaker {
	def := DefaultConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = def.MaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.HalfOpenSuccesses <= 0 {
		config.HalfOpenSuccesses = def.HalfOpenSuccesses
	}

	return &Breaker{
		maxFailures:       config.MaxFailures,
		timeout:           config.Timeout,
		halfOpenSuccesses: config.HalfOpenSuccesses,
		onStateChange:     config.OnStateChange,
		state:             StateClosed,
		lastStateChange:   time.Now(),
		now:               time.Now,
	}
}

// Call runs fn unless the circuit is open. A non-nil error from fn counts
// as a failure.
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}

	err := fn(ctx)
	b.record(err == nil)

	return err
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	b.totalRequests++

	if b.state != StateOpen {
		b.mu.Unlock()
		return nil
	}

	if b.now().Sub(b.lastStateChange) >= b.timeout {
		from := b.transition(StateHalfOpen)
		b.mu.Unlock()
		b.notify(from, StateHalfOpen)
		return nil
	}

	b.totalRejections++
	err := domain.NewCircuitOpenError(fmt.Sprintf("%d consecutive failures, last at %s",
		b.failures, b.lastFailureTime.Format(time.RFC3339)))
	b.mu.Unlock()

	return err
}

func (b *Breaker) record(success bool) {
	b.mu.Lock()

	from, to := b.state, b.state
	if success {
		switch b.state {
		case StateHalfOpen:
			b.successes++
			if b.successes >= b.halfOpenSuccesses {
				to = StateClosed
			}
		default:
			b.failures = 0
		}
	} else {
		b.totalFailures++
		b.failures++
		b.lastFailureTime = b.now()

		switch b.state {
		case StateClosed:
			if b.failures >= b.maxFailures {
				to = StateOpen
			}
		case StateHalfOpen:
			to = StateOpen
		}
	}

	if to != from {
		b.transition(to)
	}
	b.mu.Unlock()

	if to != from {
		b.notify(from, to)
	}
}

// transition must be called with b.mu held.
func (b *Breaker) transition(to State) State {
	from := b.state
	b.state = to
	b.lastStateChange = b.now()
	b.successes = 0
	if to == StateClosed {
		b.failures = 0
	}
	return from
}

func (b *Breaker) notify(from, to State) {
	if b.onStateChange != nil {
		b.onStateChange(from, to)
	}
}

// State returns the current state
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset closes the circuit.
func (b *Breaker) Reset() {
	b.mu.Lock()
	from := b.transition(StateClosed)
	b.mu.Unlock()

	if from != StateClosed {
		b.notify(from, StateClosed)
	}
}

// Stats returns circuit breaker statistics
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:           b.state,
		Failures:        b.failures,
		TotalRequests:   b.totalRequests,
		TotalFailures:   b.totalFailures,
		TotalRejections: b.totalRejections,
		LastFailureTime: b.lastFailureTime,
		LastStateChange: b.lastStateChange,
	}
}

// Stats represents circuit breaker statistics
type Stats struct {
	State           State
	Failures        int
	TotalRequests   int64
	TotalFailures   int64
	TotalRejections int64
	LastFailureTime time.Time
	LastStateChange time.Time
}
