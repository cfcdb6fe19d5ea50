package pennant

import (
	"errors"

	"github.com/OrlandoBitencourt/pennant/internal/domain"
)

// Error types that may be returned by pennant operations.
type (
	// ParameterError reports invalid caller input, such as an empty flag key.
	ParameterError = domain.ParameterError

	// AuthenticationError reports a rejected API key (401/403).
	AuthenticationError = domain.AuthenticationError

	// NetworkError reports transport failures and timeouts.
	NetworkError = domain.NetworkError

	// APIError reports non-2xx responses and undecodable bodies.
	APIError = domain.APIError

	// CircuitOpenError indicates the circuit breaker is open.
	CircuitOpenError = domain.CircuitOpenError

	// ValidationError indicates invalid configuration.
	ValidationError = domain.ValidationError
)

var (
	// ErrCapabilityUnavailable is returned by hook adapters when no
	// evaluator was installed.
	ErrCapabilityUnavailable = errors.New("pennant: evaluation capability unavailable")

	// ErrParsingConfig wraps environment and .env parsing failures.
	ErrParsingConfig = errors.New("pennant: failed to parse config")
)

// IsParameterError checks if the error is a ParameterError.
func IsParameterError(err error) bool { return domain.IsParameterError(err) }

// IsAuthenticationError checks if the error is an AuthenticationError.
func IsAuthenticationError(err error) bool { return domain.IsAuthenticationError(err) }

// IsNetworkError checks if the error is a NetworkError.
func IsNetworkError(err error) bool { return domain.IsNetworkError(err) }

// IsTimeout checks if the error is a timed out NetworkError.
func IsTimeout(err error) bool { return domain.IsTimeout(err) }

// IsAPIError checks if the error is an APIError.
func IsAPIError(err error) bool { return domain.IsAPIError(err) }

// IsNotFound checks if the error is a 404 APIError.
func IsNotFound(err error) bool { return domain.IsNotFound(err) }
