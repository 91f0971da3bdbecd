// Package pool provides the durable, byte-keyed, ordered key/value pools that
// back every region of a marinedb instance.
//
// A pool is deliberately small: point reads and writes, ascending range scans
// and a durability checkpoint. Several drivers implement it:
//
//	log       append-only framed log with a B+tree index (default)
//	pebble    github.com/cockroachdb/pebble
//	sqlite    modernc.org/sqlite, one table
//	postgres  pgx through database/sql, one table
//	memory    B+tree only, nothing survives the process
package pool

import (
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Pool is an ordered byte-keyed store. Keys and values must be non-empty.
type Pool interface {
	// Get returns ErrNotFound when key is absent.
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
	// Delete of an absent key is not an error.
	Delete(key []byte) error
	// Scan visits keys in [start, end) in ascending byte order. A nil end is
	// unbounded, limit <= 0 means no limit. fn must not call back into the pool;
	// returning an error from fn stops the scan and is returned by Scan.
	Scan(start, end []byte, limit int, fn func(key, value []byte) error) error
	// Sync makes every acknowledged write durable.
	Sync() error
	Close() error
}

// Driver names accepted by Open.
const (
	DriverLog      = "log"
	DriverPebble   = "pebble"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Drivers lists every driver name Open understands.
var Drivers = []string{DriverLog, DriverPebble, DriverSQLite, DriverPostgres, DriverMemory}

// Errors
var (
	ErrNotFound      = &Error{"key not found"}
	ErrInvalidKey    = &Error{"invalid key"}
	ErrInvalidValue  = &Error{"invalid value"}
	ErrCorruption    = &Error{"data corruption detected"}
	ErrClosed        = &Error{"pool is closed"}
	ErrUnknownDriver = &Error{"unknown pool driver"}
)

// Error represents a pool error
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Options selects and configures a driver.
type Options struct {
	Driver        string        // one of Drivers; empty means log
	Dir           string        // data directory for file-backed drivers
	DSN           string        // sqlite path or postgres connection string
	FsyncInterval time.Duration // log/pebble: 0 syncs every write
	Logger        *zap.Logger
}

// Open constructs the pool named by opts.Driver.
func Open(opts Options) (Pool, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("driver", driverName(opts.Driver)))

	switch driverName(opts.Driver) {
	case DriverLog:
		return OpenLog(LogConfig{
			FilePath:      filepath.Join(opts.Dir, "pool.data"),
			FsyncInterval: opts.FsyncInterval,
			Logger:        logger,
		})
	case DriverPebble:
		return OpenPebble(filepath.Join(opts.Dir, "pebble"), opts.FsyncInterval == 0)
	case DriverSQLite:
		dsn := opts.DSN
		if dsn == "" {
			dsn = filepath.Join(opts.Dir, "marine.db")
		}
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(opts.DSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, opts.Driver)
	}
}

func driverName(name string) string {
	if name == "" {
		return DriverLog
	}
	return name
}

func checkKey(key []byte) error {
	if len(key) == 0 {
		return ErrInvalidKey
	}
	return nil
}

func checkKV(key, value []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if len(value) == 0 {
		return ErrInvalidValue
	}
	return nil
}

// beforeEnd reports whether key sorts before end; a nil end is unbounded.
func beforeEnd(key, end []byte) bool {
	return end == nil || string(key) < string(end)
}

// Stats holds pool-wide counters for drivers that track them.
type Stats struct {
	Keys     int   `json:"keys"`
	DataSize int64 `json:"data_size"`
}

// StatsReporter is implemented by pools that can report Stats cheaply.
type StatsReporter interface {
	Stats() Stats
}

// Compactor is implemented by pools that can reclaim space held by
// overwritten and deleted keys.
type Compactor interface {
	Compact() error
}
