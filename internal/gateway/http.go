package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OrlandoBitencourt/pennant/internal/circuit"
	"github.com/OrlandoBitencourt/pennant/internal/domain"
	"github.com/OrlandoBitencourt/pennant/internal/telemetry"
)

const (
	// APIKeyHeader carries the API key on every request.
	APIKeyHeader = "X-API-Key"

	DefaultTimeout = 5 * time.Second

	maxBodyBytes = 4 << 20
)

// Config configures the HTTP gateway.
type Config struct {
	BaseURL string
	APIKey  string

	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration

	HTTPClient *http.Client
	Breaker    *circuit.Breaker
	Logger     *slog.Logger
	Telemetry  telemetry.Provider
}

// HTTPGateway implements Gateway over HTTP, one attempt per call.
type HTTPGateway struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
	telemetry  telemetry.Provider
}

// NewHTTP creates a new HTTP gateway.
func NewHTTP(config Config) *HTTPGateway {
	g := &HTTPGateway{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		apiKey:     config.APIKey,
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		breaker:    config.Breaker,
		logger:     config.Logger,
		telemetry:  config.Telemetry,
	}

	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if g.httpClient == nil {
		g.httpClient = &http.Client{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.telemetry == nil {
		g.telemetry = telemetry.NewNoOp()
	}

	return g
}

// FetchFlag asks the API whether a flag is enabled for targetID.
func (g *HTTPGateway) FetchFlag(ctx context.Context, flagKey, targetID string, def bool) Result {
	start := time.Now()
	ctx, span := g.telemetry.StartSpan(ctx, "pennant.fetch_flag",
		telemetry.String("flag.key", flagKey),
		telemetry.Bool("flag.targeted", targetID != ""),
	)
	defer span.End()

	var body EnabledResponse
	err := g.get(ctx, "fetch flag "+flagKey, g.flagURL(flagKey, targetID), &body)

	outcome := Outcome(err)
	g.telemetry.RecordFetch(ctx, "flag", outcome, time.Since(start))
	span.SetAttributes(telemetry.String("fetch.outcome", outcome))

	if err != nil {
		span.RecordError(err)
		g.logger.WarnContext(ctx, "flag fetch failed, using default",
			slog.String("flag", flagKey),
			slog.Bool("default", def),
			slog.String("reason", outcome),
			slog.Any("error", err),
		)
		return Result{Value: def, Err: err}
	}

	return Result{
		Value:     body.Enabled != nil && *body.Enabled,
		Cacheable: true,
	}
}

// FetchAllFlags downloads the whole flag catalog.
func (g *HTTPGateway) FetchAllFlags(ctx context.Context) (map[string]domain.Flag, error) {
	start := time.Now()
	ctx, span := g.telemetry.StartSpan(ctx, "pennant.fetch_all_flags")
	defer span.End()

	var body FlagsResponse
	err := g.get(ctx, "fetch all flags", g.baseURL+"/api/feature-flag", &body)

	g.telemetry.RecordFetch(ctx, "bulk", Outcome(err), time.Since(start))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	flags := make(map[string]domain.Flag, len(body.Flags))
	for _, flag := range body.Flags {
		if flag.Key == "" {
			continue
		}
		flags[flag.Key] = flag
	}
	span.SetAttributes(telemetry.Int("flag.count", len(flags)))

	return flags, nil
}

func (g *HTTPGateway) flagURL(flagKey, targetID string) string {
	u := g.baseURL + "/api/feature-flag/" + url.PathEscape(flagKey) + "/enabled"
	if targetID != "" {
		u += "?" + url.Values{"targetId": {targetID}}.Encode()
	}
	return u
}

// get runs a request through the breaker when one is configured. Only
// outages (transport failures, timeouts, 5xx) count against the breaker.
func (g *HTTPGateway) get(ctx context.Context, op, endpoint string, out any) error {
	if g.breaker == nil {
		return g.doRequest(ctx, op, endpoint, out)
	}

	var reqErr error
	called := false
	err := g.breaker.Call(ctx, func(ctx context.Context) error {
		called = true
		reqErr = g.doRequest(ctx, op, endpoint, out)
		if isOutage(reqErr) {
			return reqErr
		}
		return nil
	})
	g.telemetry.RecordCircuitState(ctx, g.breaker.State().String())

	if !called {
		return domain.NewNetworkError(op, false, err)
	}
	return reqErr
}

// doRequest performs a single bounded HTTP GET.
func (g *HTTPGateway) doRequest(ctx context.Context, op, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.NewNetworkError(op, false, fmt.Errorf("failed to create request: %w", err))
	}

	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set(APIKeyHeader, g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError(op, isTimeout(err), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.NewNetworkError(op, isTimeout(err), fmt.Errorf("failed to read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return domain.NewAuthenticationError(resp.StatusCode, errorMessage(resp.StatusCode, body))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return domain.NewAPIError(resp.StatusCode, errorMessage(resp.StatusCode, body), nil)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewAPIError(resp.StatusCode, "malformed response body", err)
	}

	return nil
}

func errorMessage(status int, body []byte) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil {
		if e.Message != "" {
			return e.Message
		}
		if e.Error != "" {
			return e.Error
		}
	}
	return http.StatusText(status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isOutage(err error) bool {
	if err == nil {
		return false
	}
	if domain.IsNetworkError(err) {
		return true
	}
	apiErr, ok := asAPIError(err)
	return ok && apiErr.StatusCode >= 500
}

func asAPIError(err error) (*domain.APIError, bool) {
	var apiErr *domain.APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
