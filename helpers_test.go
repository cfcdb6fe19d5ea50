package pennant

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// MockFlagServer is a mock flag API server for testing
type MockFlagServer struct {
	*httptest.Server

	mu      sync.RWMutex
	flags   map[string]domain.Flag
	enabled map[string]bool
	status  int

	apiKey atomic.Value

	FlagCalls atomic.Int32
	BulkCalls atomic.Int32
}

// NewMockFlagServer creates a new mock flag API server
func NewMockFlagServer(t *testing.T) *MockFlagServer {
	mock := &MockFlagServer{
		flags:   make(map[string]domain.Flag),
		enabled: make(map[string]bool),
	}

	mux := http.NewServeMux()

	// GET /api/feature-flag - List all flags
	mux.HandleFunc("GET /api/feature-flag", func(w http.ResponseWriter, r *http.Request) {
		mock.BulkCalls.Add(1)
		mock.apiKey.Store(r.Header.Get("X-API-Key"))
		if mock.fail(w) {
			return
		}

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		flags := make([]domain.Flag, 0, len(mock.flags))
		for _, flag := range mock.flags {
			flags = append(flags, flag)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"flags": flags})
	})

	// GET /api/feature-flag/{key}/enabled - Evaluate one flag
	mux.HandleFunc("GET /api/feature-flag/{key}/enabled", func(w http.ResponseWriter, r *http.Request) {
		mock.FlagCalls.Add(1)
		mock.apiKey.Store(r.Header.Get("X-API-Key"))
		if mock.fail(w) {
			return
		}

		key := r.PathValue("key")
		if target := r.URL.Query().Get("targetId"); target != "" {
			key += "#" + target
		}

		mock.mu.RLock()
		enabled, ok := mock.enabled[key]
		mock.mu.RUnlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"message": "flag not found"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]bool{"enabled": enabled})
	})

	mock.Server = httptest.NewServer(mux)
	t.Cleanup(mock.Close)
	return mock
}

func (m *MockFlagServer) fail(w http.ResponseWriter) bool {
	m.mu.RLock()
	status := m.status
	m.mu.RUnlock()

	if status == 0 {
		return false
	}
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"message": http.StatusText(status)})
	return true
}

// AddFlag adds a flag to the bulk catalog
func (m *MockFlagServer) AddFlag(flag domain.Flag) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flags[flag.Key] = flag
}

// SetEnabled sets the single-flag answer for a key and optional target
func (m *MockFlagServer) SetEnabled(flagKey, targetID string, enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := flagKey
	if targetID != "" {
		key += "#" + targetID
	}
	m.enabled[key] = enabled
}

// FailWith makes every request answer with status. Zero restores normal responses.
func (m *MockFlagServer) FailWith(status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// LastAPIKey returns the API key of the most recent request
func (m *MockFlagServer) LastAPIKey() string {
	v, _ := m.apiKey.Load().(string)
	return strings.TrimSpace(v)
}
