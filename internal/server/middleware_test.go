package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEvaluator struct {
	lastTarget string
}

func (s *stubEvaluator) IsEnabled(ctx context.Context, flagKey string, def bool, targetID string) (bool, error) {
	s.lastTarget = targetID
	return true, nil
}

func TestMiddleware_InjectsEvaluatorAndTarget(t *testing.T) {
	ev := &stubEvaluator{}

	var gotTarget string
	var gotEvaluator Evaluator
	h := NewMiddleware(ev).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotTarget = TargetIDFrom(r.Context())
		gotEvaluator, _ = EvaluatorFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(TargetIDHeader, "user-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "user-1", gotTarget)
	require.NotNil(t, gotEvaluator)
	assert.Same(t, ev, gotEvaluator)
}

func TestTargetIDFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TargetIDFromRequest(req))

	req.AddCookie(&http.Cookie{Name: TargetIDCookie, Value: "cookie-user"})
	assert.Equal(t, "cookie-user", TargetIDFromRequest(req))

	req.Header.Set(TargetIDHeader, "header-user")
	assert.Equal(t, "header-user", TargetIDFromRequest(req), "header takes precedence")
}

func TestEvaluatorFrom_Missing(t *testing.T) {
	_, ok := EvaluatorFrom(context.Background())
	assert.False(t, ok)
	assert.Empty(t, TargetIDFrom(context.Background()))
}
