// Package marine is the service facade over taxonomy and marine species
// records: validation, ownership checks, id allocation and storage, wired from
// a single backing pool.
package marine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/ids"
	"github.com/ssargent/marinedb/pkg/index"
	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
	"github.com/ssargent/marinedb/pkg/store"
	"github.com/ssargent/marinedb/pkg/validation"
)

// Region layout of a marinedb pool.
const (
	RegionTaxonomyCounter memory.RegionID = 0
	RegionSpeciesCounter  memory.RegionID = 1
	RegionTaxonomyMap     memory.RegionID = 2
	RegionSpeciesMap      memory.RegionID = 3
)

// Options tunes the facade.
type Options struct {
	// AllowEmptyResults makes List and FilterByStatus return an empty slice
	// instead of a NotFoundError when nothing matches.
	AllowEmptyResults bool
	PageSize          int
	Clock             Clock
	Logger            *zap.Logger
}

// Registry owns the region manager and the services built on it.
type Registry struct {
	Manager    *memory.Manager
	Taxonomies *TaxonomyService
	Species    *SpeciesService
	logger     *zap.SugaredLogger
}

// Open claims the marinedb regions of p and builds both services. State already
// in the pool is picked up as is. On error the caller still owns p.
func Open(p pool.Pool, opts Options) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = NewMonotonicClock()
	}
	logger := opts.Logger.Named("marine").Sugar()

	validator, err := validation.New()
	if err != nil {
		return nil, err
	}

	mgr := memory.NewManager(p, opts.Logger)
	claim := func(id memory.RegionID, name string) *memory.Region {
		if err != nil {
			return nil
		}
		var r *memory.Region
		r, err = mgr.Region(id, name)
		return r
	}
	taxCounter := claim(RegionTaxonomyCounter, "taxonomy_counter")
	speciesCounter := claim(RegionSpeciesCounter, "species_counter")
	taxMap := claim(RegionTaxonomyMap, "taxonomy_map")
	speciesMap := claim(RegionSpeciesMap, "species_map")
	if err != nil {
		return nil, fmt.Errorf("open regions: %w", err)
	}

	taxIDs, err := ids.NewAllocator(taxCounter)
	if err != nil {
		return nil, err
	}
	speciesIDs, err := ids.NewAllocator(speciesCounter)
	if err != nil {
		return nil, err
	}

	storeOpts := []store.Option{store.WithPageSize(opts.PageSize)}
	reg := &Registry{
		Manager: mgr,
		Taxonomies: &TaxonomyService{
			c: &collection[Taxonomy]{
				entity:     "taxonomy",
				ids:        taxIDs,
				store:      store.New[Taxonomy](taxMap, storeOpts...),
				clock:      opts.Clock,
				allowEmpty: opts.AllowEmptyResults,
				logger:     logger,
			},
			validator: validator,
		},
		Species: &SpeciesService{
			c: &collection[MarineSpecies]{
				entity:     "marine species",
				ids:        speciesIDs,
				store:      store.New[MarineSpecies](speciesMap, storeOpts...),
				clock:      opts.Clock,
				allowEmpty: opts.AllowEmptyResults,
				logger:     logger,
			},
			validator: validator,
		},
		logger: logger,
	}
	reg.Species.byStatus = index.NewSecondaryIndex("conservation_status", index.DefaultOrder)
	if err := reg.Species.reindex(); err != nil {
		return nil, err
	}

	logger.Infow("registry opened",
		"last_taxonomy_id", taxIDs.Current(),
		"last_species_id", speciesIDs.Current(),
	)
	return reg, nil
}

// Stats reports the key count of every region.
func (r *Registry) Stats() ([]memory.RegionStats, error) {
	return r.Manager.Stats()
}

// Checkpoint makes every completed operation durable.
func (r *Registry) Checkpoint() error {
	return r.Manager.Checkpoint()
}

// Close checkpoints and releases the pool.
func (r *Registry) Close() error {
	r.logger.Info("closing registry")
	return r.Manager.Close()
}
