package gateway

import "github.com/OrlandoBitencourt/pennant/internal/domain"

// EnabledResponse is the body of GET /api/feature-flag/{key}/enabled.
// A missing field decodes as disabled.
type EnabledResponse struct {
	Enabled *bool `json:"enabled"`
}

// FlagsResponse is the body of GET /api/feature-flag.
type FlagsResponse struct {
	Flags []domain.Flag `json:"flags"`
}

// errorResponse is the best-effort shape of API error bodies.
type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
