// Package memory multiplexes one backing pool into independent regions.
//
// Each region is addressed by a small RegionID and holds u64-keyed entries. The
// physical pool key is the region id byte followed by the big-endian key, so
// byte order in the pool equals numeric order within a region and regions never
// overlap. Region claims are recorded in a catalog inside the pool itself, which
// keeps an id from being reused for a different logical store across restarts.
package memory

import (
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/pool"
)

// RegionID addresses a region within a pool.
type RegionID uint8

// catalogRegion holds region claims and is never handed out.
const catalogRegion RegionID = 0xFF

var (
	// ErrRegionInUse is returned when a region id is claimed under another name.
	ErrRegionInUse = errors.New("memory: region id already in use")
	// ErrReservedRegion is returned for ids the manager keeps for itself.
	ErrReservedRegion = errors.New("memory: region id is reserved")
)

// Manager hands out regions of a single pool.
type Manager struct {
	pool    pool.Pool
	regions map[RegionID]*Region
	logger  *zap.SugaredLogger
}

// RegionStats describes one claimed region.
type RegionStats struct {
	ID   RegionID `json:"id"`
	Name string   `json:"name"`
	Keys int      `json:"keys"`
}

// NewManager wraps p. The manager owns p from here on; Close closes it.
func NewManager(p pool.Pool, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		pool:    p,
		regions: make(map[RegionID]*Region),
		logger:  logger.Sugar().Named("memory"),
	}
}

// Region claims id for the logical store name. Claiming the same id with the
// same name again returns the same region.
func (m *Manager) Region(id RegionID, name string) (*Region, error) {
	if id == catalogRegion {
		return nil, fmt.Errorf("%w: %d", ErrReservedRegion, id)
	}
	if name == "" {
		return nil, fmt.Errorf("memory: region %d needs a name", id)
	}

	if r, ok := m.regions[id]; ok {
		if r.name != name {
			return nil, fmt.Errorf("%w: region %d belongs to %q, not %q", ErrRegionInUse, id, r.name, name)
		}
		return r, nil
	}

	claimKey := []byte{byte(catalogRegion), byte(id)}
	owner, err := m.pool.Get(claimKey)
	switch {
	case errors.Is(err, pool.ErrNotFound):
		if err := m.pool.Set(claimKey, []byte(name)); err != nil {
			return nil, fmt.Errorf("claim region %d: %w", id, err)
		}
		m.logger.Infow("region claimed", "region", id, "name", name)
	case err != nil:
		return nil, fmt.Errorf("read region catalog: %w", err)
	case string(owner) != name:
		return nil, fmt.Errorf("%w: region %d belongs to %q, not %q", ErrRegionInUse, id, owner, name)
	default:
		m.logger.Debugw("region reattached", "region", id, "name", name)
	}

	r := &Region{id: id, name: name, pool: m.pool}
	m.regions[id] = r
	return r, nil
}

// Regions returns the claimed regions ordered by id.
func (m *Manager) Regions() []*Region {
	out := make([]*Region, 0, len(m.regions))
	for _, r := range m.regions {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b *Region) int { return int(a.id) - int(b.id) })
	return out
}

// Stats counts the keys of every claimed region.
func (m *Manager) Stats() ([]RegionStats, error) {
	regions := m.Regions()
	stats := make([]RegionStats, 0, len(regions))
	for _, r := range regions {
		n, err := r.Len()
		if err != nil {
			return nil, err
		}
		stats = append(stats, RegionStats{ID: r.id, Name: r.name, Keys: n})
	}
	return stats, nil
}

// PoolStats reports driver level counters when the pool tracks them.
func (m *Manager) PoolStats() (pool.Stats, bool) {
	if sr, ok := m.pool.(pool.StatsReporter); ok {
		return sr.Stats(), true
	}
	return pool.Stats{}, false
}

// Compact reclaims space in pools that support it and is a no-op otherwise.
func (m *Manager) Compact() error {
	c, ok := m.pool.(pool.Compactor)
	if !ok {
		return nil
	}
	if err := c.Compact(); err != nil {
		return fmt.Errorf("compact pool: %w", err)
	}
	return nil
}

// Pool exposes the backing pool for whole-pool operations such as snapshots.
func (m *Manager) Pool() pool.Pool {
	return m.pool
}

// Checkpoint makes all writes so far durable.
func (m *Manager) Checkpoint() error {
	if err := m.pool.Sync(); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Close checkpoints and closes the pool.
func (m *Manager) Close() error {
	cerr := m.Checkpoint()
	if err := m.pool.Close(); err != nil {
		return errors.Join(cerr, err)
	}
	return cerr
}
