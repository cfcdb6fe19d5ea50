package server

import (
	"context"
	"net/http"
)

type contextKey string

const (
	contextKeyEvaluator contextKey = "pennant_evaluator"
	contextKeyTargetID  contextKey = "pennant_target_id"
)

// Request sources of the target identifier.
const (
	TargetIDHeader = "X-Target-ID"
	TargetIDCookie = "target_id"
)

// Evaluator is the evaluation surface stored in request contexts.
type Evaluator interface {
	IsEnabled(ctx context.Context, flagKey string, def bool, targetID string) (bool, error)
}

// Middleware provides HTTP middleware for flag injection
type Middleware struct {
	evaluator Evaluator
}

// NewMiddleware creates new middleware
func NewMiddleware(ev Evaluator) *Middleware {
	return &Middleware{evaluator: ev}
}

// Handler wraps an HTTP handler with the evaluator and the request's target
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithEvaluator(r.Context(), m.evaluator)
		if targetID := TargetIDFromRequest(r); targetID != "" {
			ctx = WithTargetID(ctx, targetID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// TargetIDFromRequest reads the target from the header, then the cookie.
func TargetIDFromRequest(r *http.Request) string {
	if targetID := r.Header.Get(TargetIDHeader); targetID != "" {
		return targetID
	}
	if cookie, err := r.Cookie(TargetIDCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// WithEvaluator stores ev in ctx.
func WithEvaluator(ctx context.Context, ev Evaluator) context.Context {
	return context.WithValue(ctx, contextKeyEvaluator, ev)
}

// EvaluatorFrom extracts the evaluator from ctx.
func EvaluatorFrom(ctx context.Context) (Evaluator, bool) {
	ev, ok := ctx.Value(contextKeyEvaluator).(Evaluator)
	return ev, ok && ev != nil
}

// WithTargetID stores the target identifier in ctx.
func WithTargetID(ctx context.Context, targetID string) context.Context {
	return context.WithValue(ctx, contextKeyTargetID, targetID)
}

// TargetIDFrom extracts the target identifier from ctx.
func TargetIDFrom(ctx context.Context) string {
	targetID, _ := ctx.Value(contextKeyTargetID).(string)
	return targetID
}
