// Package api provides interfaces for dependency injection
package api

import (
	"context"

	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/marine"
)

// ServerStarter defines the interface for starting the API server
type ServerStarter interface {
	// StartServer serves registry until ctx is cancelled
	StartServer(ctx context.Context, registry *marine.Registry, config ServerConfig, logger *zap.Logger) error
}

// ServerFactory creates server instances
type ServerFactory interface {
	// CreateServerStarter creates a server starter
	CreateServerStarter() ServerStarter
}
