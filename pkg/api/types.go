package api

import (
	"time"

	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
	"github.com/ssargent/marinedb/pkg/validation"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success    bool                   `json:"success"`
	Data       interface{}            `json:"data,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Kind       string                 `json:"kind,omitempty"`
	Violations []validation.Violation `json:"violations,omitempty"`
}

// StatsResponse is the body of GET /stats
type StatsResponse struct {
	Regions []memory.RegionStats `json:"regions"`
	Pool    *pool.Stats          `json:"pool,omitempty"`
}

// ServerConfig holds configuration for the API server
type ServerConfig struct {
	Port int
	Bind string
	// APIKey enables X-API-Key checks on /api/v1 when non-empty.
	APIKey string
	// StatsInterval is how often region gauges are refreshed. Zero means 15s.
	StatsInterval time.Duration
	// MaxBodyBytes caps request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
}

const (
	headerAPIKey    = "X-API-Key"
	headerPrincipal = "X-Principal"

	defaultStatsInterval = 15 * time.Second
	defaultMaxBodyBytes  = 1 << 20
)
