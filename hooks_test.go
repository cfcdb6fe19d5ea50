package pennant

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticEvaluator struct {
	values map[string]bool
	err    error
}

func (s staticEvaluator) IsEnabled(_ context.Context, flagKey string, def bool, opts ...EvalOption) (bool, error) {
	if s.err != nil {
		return def, s.err
	}
	o := newEvalOptions(opts)
	value, ok := s.values[flagKey+"/"+o.targetID]
	if !ok {
		return def, nil
	}
	return value, nil
}

func TestHTTPMiddleware_TargetFromHeader(t *testing.T) {
	server := NewMockFlagServer(t)
	server.SetEnabled("beta", "user-1", true)
	client := newTestClient(t, server)

	var got bool
	var gotErr error
	handler := client.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, gotErr = FlagFromContext(r.Context(), "beta", false)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Target-ID", "user-1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NoError(t, gotErr)
	assert.True(t, got)
	assert.Equal(t, "user-1", client.DebugFlag("beta", WithTargetID("user-1")).TargetID)
	assert.True(t, client.DebugFlag("beta", WithTargetID("user-1")).Cached)
}

func TestHTTPMiddleware_IsEnabledUsesRequestTarget(t *testing.T) {
	server := NewMockFlagServer(t)
	server.SetEnabled("beta", "user-2", true)
	client := newTestClient(t, server)

	var implicit, explicit bool
	handler := client.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		implicit = client.Bool(r.Context(), "beta", false)
		explicit = client.Bool(r.Context(), "beta", false, WithTargetID(""))
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "target_id", Value: "user-2"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, implicit)
	assert.False(t, explicit, "an explicit empty target overrides the request target")
}

func TestHTTPMiddleware_CustomEvaluator(t *testing.T) {
	ev := staticEvaluator{values: map[string]bool{"dark-mode/": true}}

	var fromCtx Evaluator
	handler := HTTPMiddleware(ev)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		fromCtx, err = FromContext(r.Context())
		require.NoError(t, err)

		enabled, err := FlagFromContext(r.Context(), "dark-mode", false)
		require.NoError(t, err)
		assert.True(t, enabled)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, ev, fromCtx)
}

func TestHTTPMiddleware_Nil(t *testing.T) {
	called := false
	handler := HTTPMiddleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true

		_, err := FromContext(r.Context())
		assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, called)
}

func TestFlagFromContext_NoEvaluator(t *testing.T) {
	enabled, err := FlagFromContext(context.Background(), "f", true)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.True(t, enabled)
}

func TestTemplateFuncs(t *testing.T) {
	ev := staticEvaluator{values: map[string]bool{
		"header/":     true,
		"beta/user-1": true,
		"beta/user-2": false,
		"banner/":     false,
	}}

	funcs, err := TemplateFuncs(ev)
	require.NoError(t, err)

	tmpl := template.Must(template.New("page").Funcs(funcs).Parse(
		`{{ if flagEnabled "header" false }}H{{ end }}` +
			`{{ if flagEnabled "banner" true }}B{{ end }}` +
			`{{ if flagEnabled "missing" true }}M{{ end }}` +
			`{{ if flagEnabledFor "beta" .UserID false }}X{{ end }}`,
	))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, map[string]string{"UserID": "user-1"}))
	assert.Equal(t, "HMX", buf.String())

	buf.Reset()
	require.NoError(t, tmpl.Execute(&buf, map[string]string{"UserID": "user-2"}))
	assert.Equal(t, "HM", buf.String())
}

func TestTemplateFuncs_ErrorsRenderDefault(t *testing.T) {
	funcs, err := TemplateFuncs(staticEvaluator{err: errors.New("boom")})
	require.NoError(t, err)

	tmpl := template.Must(template.New("page").Funcs(funcs).Parse(
		`{{ if flagEnabled "a" true }}A{{ end }}{{ if flagEnabled "b" false }}B{{ end }}`,
	))

	var buf bytes.Buffer
	require.NoError(t, tmpl.Execute(&buf, nil))
	assert.Equal(t, "A", buf.String())
}

func TestTemplateFuncs_Nil(t *testing.T) {
	funcs, err := TemplateFuncs(nil)
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.Nil(t, funcs)
}
