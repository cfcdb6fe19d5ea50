package gateway

import (
	"context"
	"sync"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// MockGateway is a mock implementation of Gateway for testing
type MockGateway struct {
	mu sync.Mutex

	// Results served by the default FetchFlag behaviour, keyed by cache key.
	results map[domain.CacheKey]bool
	flags   map[string]domain.Flag

	FetchFlagFunc     func(ctx context.Context, flagKey, targetID string, def bool) Result
	FetchAllFlagsFunc func(ctx context.Context) (map[string]domain.Flag, error)

	FetchFlagCalls     int
	FetchAllFlagsCalls int
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{
		results: make(map[domain.CacheKey]bool),
		flags:   make(map[string]domain.Flag),
	}
}

// SetResult sets the value returned for a flag and target.
func (m *MockGateway) SetResult(flagKey, targetID string, value bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[domain.NewCacheKey(flagKey, targetID)] = value
}

// AddFlag adds a flag to the bulk catalog.
func (m *MockGateway) AddFlag(flag domain.Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag.Key] = flag
}

// FetchFlag returns the configured result, or an absorbed 404 with def.
func (m *MockGateway) FetchFlag(ctx context.Context, flagKey, targetID string, def bool) Result {
	m.mu.Lock()
	m.FetchFlagCalls++
	fn := m.FetchFlagFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, flagKey, targetID, def)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	value, ok := m.results[domain.NewCacheKey(flagKey, targetID)]
	if !ok {
		return Result{Value: def, Err: domain.NewAPIError(404, "flag not found", nil)}
	}
	return Result{Value: value, Cacheable: true}
}

// FetchAllFlags returns the catalog added with AddFlag.
func (m *MockGateway) FetchAllFlags(ctx context.Context) (map[string]domain.Flag, error) {
	m.mu.Lock()
	m.FetchAllFlagsCalls++
	fn := m.FetchAllFlagsFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.CopyFlags(m.flags), nil
}

// Calls returns the call counters.
func (m *MockGateway) Calls() (fetchFlag, fetchAll int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FetchFlagCalls, m.FetchAllFlagsCalls
}

// AssertCalled asserts methods were called expected times
func (m *MockGateway) AssertCalled(t interface{ Errorf(string, ...interface{}) }, method string, expected int) {
	fetchFlag, fetchAll := m.Calls()

	var actual int
	switch method {
	case "FetchFlag":
		actual = fetchFlag
	case "FetchAllFlags":
		actual = fetchAll
	default:
		t.Errorf("unknown method: %s", method)
		return
	}

	if actual != expected {
		t.Errorf("%s called %d times, expected %d", method, actual, expected)
	}
}
