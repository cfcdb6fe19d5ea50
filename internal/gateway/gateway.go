// Package gateway talks to the remote flag API. Single-flag fetches never
// fail: every error is absorbed into the caller's default and reported in
// Result.Err. Bulk fetches return classified errors.
package gateway

import (
	"context"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Gateway is the remote source of flag results and definitions.
type Gateway interface {
	FetchFlag(ctx context.Context, flagKey, targetID string, def bool) Result
	FetchAllFlags(ctx context.Context) (map[string]domain.Flag, error)
}

// Result is the outcome of a single-flag fetch.
type Result struct {
	Value     bool
	Cacheable bool

	// Err is the absorbed failure when Cacheable is false.
	Err error
}

// Outcome labels used in logs and metrics.
const (
	OutcomeSuccess     = "success"
	OutcomeAuth        = "auth"
	OutcomeNotFound    = "not_found"
	OutcomeHTTPError   = "http_error"
	OutcomeMalformed   = "malformed"
	OutcomeTimeout     = "timeout"
	OutcomeTransport   = "transport"
	OutcomeCircuitOpen = "circuit_open"
)

// Outcome classifies err into one of the outcome labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case domain.IsCircuitOpen(err):
		return OutcomeCircuitOpen
	case domain.IsTimeout(err):
		return OutcomeTimeout
	case domain.IsNetworkError(err):
		return OutcomeTransport
	case domain.IsAuthenticationError(err):
		return OutcomeAuth
	case domain.IsNotFound(err):
		return OutcomeNotFound
	}

	if apiErr, ok := asAPIError(err); ok && apiErr.StatusCode >= 200 && apiErr.StatusCode < 300 {
		return OutcomeMalformed
	}
	return OutcomeHTTPError
}
