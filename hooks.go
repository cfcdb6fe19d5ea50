package pennant

import (
	"context"
	"html/template"
	"net/http"

	"github.com/OrlandoBitencourt/pennant/internal/server"
)

// Evaluator is the evaluation surface hook adapters depend on. *Client
// implements it.
type Evaluator interface {
	IsEnabled(ctx context.Context, flagKey string, def bool, opts ...EvalOption) (bool, error)
}

var _ Evaluator = (*Client)(nil)

// targetEvaluator adapts an Evaluator to the middleware's target-based form.
type targetEvaluator struct {
	ev Evaluator
}

func (t targetEvaluator) IsEnabled(ctx context.Context, flagKey string, def bool, targetID string) (bool, error) {
	return t.ev.IsEnabled(ctx, flagKey, def, WithTargetID(targetID))
}

// HTTPMiddleware installs the client and the request's target identifier
// in the request context. The target is read from the X-Target-ID header,
// then the target_id cookie.
//
// Example:
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
//	    enabled, _ := pennant.FlagFromContext(r.Context(), "new-feature", false)
//	    // ...
//	})
//	http.ListenAndServe(":8080", client.HTTPMiddleware(mux))
func (c *Client) HTTPMiddleware(next http.Handler) http.Handler {
	return HTTPMiddleware(c)(next)
}

// HTTPMiddleware returns middleware installing ev in request contexts. A
// nil ev installs nothing, so FromContext reports ErrCapabilityUnavailable.
func HTTPMiddleware(ev Evaluator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if ev == nil {
			return next
		}
		return server.NewMiddleware(targetEvaluator{ev: ev}).Handler(next)
	}
}

// FromContext returns the evaluator installed by HTTPMiddleware.
func FromContext(ctx context.Context) (Evaluator, error) {
	sev, ok := server.EvaluatorFrom(ctx)
	if !ok {
		return nil, ErrCapabilityUnavailable
	}
	if t, ok := sev.(targetEvaluator); ok {
		return t.ev, nil
	}
	return nil, ErrCapabilityUnavailable
}

// FlagFromContext evaluates flagKey for the request's target using the
// evaluator installed by HTTPMiddleware.
func FlagFromContext(ctx context.Context, flagKey string, def bool) (bool, error) {
	ev, err := FromContext(ctx)
	if err != nil {
		return def, err
	}
	return ev.IsEnabled(ctx, flagKey, def, WithTargetID(server.TargetIDFrom(ctx)))
}

// TemplateFuncs returns html/template helpers backed by ev:
//
//	{{ if flagEnabled "new-header" false }}...{{ end }}
//	{{ if flagEnabledFor "beta" .UserID false }}...{{ end }}
//
// Evaluation errors render as the default value.
func TemplateFuncs(ev Evaluator) (template.FuncMap, error) {
	if ev == nil {
		return nil, ErrCapabilityUnavailable
	}

	enabled := func(flagKey, targetID string, def bool) bool {
		value, err := ev.IsEnabled(context.Background(), flagKey, def, WithTargetID(targetID))
		if err != nil {
			return def
		}
		return value
	}

	return template.FuncMap{
		"flagEnabled": func(flagKey string, def bool) bool {
			return enabled(flagKey, "", def)
		},
		"flagEnabledFor": enabled,
	}, nil
}
