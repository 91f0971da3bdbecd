// Package di provides dependency injection container
package di

import (
	"context"

	"github.com/ssargent/marinedb/pkg/api" //nolint:depguard
	"github.com/ssargent/marinedb/pkg/pool"
	"github.com/ssargent/marinedb/pkg/snapshot"
)

// PoolOpener opens the backing pool described by opts
type PoolOpener func(opts pool.Options) (pool.Pool, error)

// SinkOpener resolves a snapshot location
type SinkOpener func(ctx context.Context, location string, base snapshot.S3Options) (snapshot.Sink, error)

// Container holds all the dependencies for the application
type Container struct {
	poolOpener    PoolOpener
	sinkOpener    SinkOpener
	serverFactory api.ServerFactory
}

// NewContainer creates a new dependency injection container
func NewContainer() *Container {
	return &Container{
		poolOpener:    pool.Open,
		sinkOpener:    snapshot.OpenSink,
		serverFactory: api.NewServerFactory(),
	}
}

// GetPoolOpener returns the pool opener
func (c *Container) GetPoolOpener() PoolOpener {
	return c.poolOpener
}

// GetSinkOpener returns the snapshot sink opener
func (c *Container) GetSinkOpener() SinkOpener {
	return c.sinkOpener
}

// GetServerFactory returns the server factory
func (c *Container) GetServerFactory() api.ServerFactory {
	return c.serverFactory
}

// SetPoolOpener allows overriding the pool opener (for testing)
func (c *Container) SetPoolOpener(opener PoolOpener) {
	c.poolOpener = opener
}

// SetSinkOpener allows overriding the snapshot sink opener (for testing)
func (c *Container) SetSinkOpener(opener SinkOpener) {
	c.sinkOpener = opener
}

// SetServerFactory allows overriding the server factory (for testing)
func (c *Container) SetServerFactory(factory api.ServerFactory) {
	c.serverFactory = factory
}
