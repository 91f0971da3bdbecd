package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/marine"
)

const (
	collectionTaxonomies = "taxonomies"
	collectionSpecies    = "species"
)

// Server holds the API server state
type Server struct {
	registry *marine.Registry
	config   ServerConfig
	metrics  *Metrics
	logger   *zap.Logger

	// dispatch runs facade calls one at a time.
	dispatch sync.Mutex
}

// NewServer creates a new API server
func NewServer(registry *marine.Registry, config ServerConfig, metrics *Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = defaultStatsInterval
	}
	return &Server{
		registry: registry,
		config:   config,
		metrics:  metrics,
		logger:   logger.Named("api"),
	}
}

// call runs fn under the dispatch lock, records it, and writes the response.
func (s *Server) call(w http.ResponseWriter, collection, operation string, okStatus int, fn func() (any, error)) {
	start := time.Now()
	s.dispatch.Lock()
	data, err := fn()
	s.dispatch.Unlock()

	kind := marine.Kind(err)
	s.metrics.RecordOperation(collection, operation, kind, time.Since(start))
	if err != nil {
		if kind == marine.KindInternal {
			s.logger.Error("operation failed",
				zap.String("collection", collection),
				zap.String("operation", operation),
				zap.Error(err))
		}
		sendFailure(w, err)
		return
	}
	sendStatus(w, okStatus, data)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			sendError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		sendError(w, fmt.Sprintf("Invalid JSON in request body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func idParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		sendError(w, "Invalid id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]string{"status": "healthy"})
}

func (s *Server) handleCreateTaxonomy(w http.ResponseWriter, r *http.Request) {
	var payload marine.TaxonomyPayload
	if !s.decode(w, r, &payload) {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionTaxonomies, "create", http.StatusCreated, func() (any, error) {
		return s.registry.Taxonomies.Create(payload, caller)
	})
}

func (s *Server) handleGetTaxonomy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.call(w, collectionTaxonomies, "get", http.StatusOK, func() (any, error) {
		return s.registry.Taxonomies.Get(id)
	})
}

func (s *Server) handleListTaxonomies(w http.ResponseWriter, r *http.Request) {
	s.call(w, collectionTaxonomies, "list", http.StatusOK, func() (any, error) {
		return s.registry.Taxonomies.List()
	})
}

func (s *Server) handleUpdateTaxonomy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload marine.TaxonomyPayload
	if !s.decode(w, r, &payload) {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionTaxonomies, "update", http.StatusOK, func() (any, error) {
		return s.registry.Taxonomies.Update(id, payload, caller)
	})
}

func (s *Server) handleDeleteTaxonomy(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionTaxonomies, "delete", http.StatusOK, func() (any, error) {
		return s.registry.Taxonomies.Delete(id, caller)
	})
}

func (s *Server) handleCreateSpecies(w http.ResponseWriter, r *http.Request) {
	var payload marine.MarineSpeciesPayload
	if !s.decode(w, r, &payload) {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionSpecies, "create", http.StatusCreated, func() (any, error) {
		return s.registry.Species.Create(payload, caller)
	})
}

func (s *Server) handleGetSpecies(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	s.call(w, collectionSpecies, "get", http.StatusOK, func() (any, error) {
		return s.registry.Species.Get(id)
	})
}

// handleListSpecies lists every species, or filters by ?status= when present.
func (s *Server) handleListSpecies(w http.ResponseWriter, r *http.Request) {
	if status := r.URL.Query().Get("status"); status != "" {
		s.filterSpecies(w, status)
		return
	}
	s.call(w, collectionSpecies, "list", http.StatusOK, func() (any, error) {
		return s.registry.Species.List()
	})
}

func (s *Server) handleFilterSpecies(w http.ResponseWriter, r *http.Request) {
	s.filterSpecies(w, chi.URLParam(r, "status"))
}

func (s *Server) filterSpecies(w http.ResponseWriter, status string) {
	s.call(w, collectionSpecies, "filter", http.StatusOK, func() (any, error) {
		return s.registry.Species.FilterByStatus(status)
	})
}

func (s *Server) handleUpdateSpecies(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var payload marine.MarineSpeciesPayload
	if !s.decode(w, r, &payload) {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionSpecies, "update", http.StatusOK, func() (any, error) {
		return s.registry.Species.Update(id, payload, caller)
	})
}

func (s *Server) handleDeleteSpecies(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	caller := principalFrom(r)
	s.call(w, collectionSpecies, "delete", http.StatusOK, func() (any, error) {
		return s.registry.Species.Delete(id, caller)
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.call(w, "regions", "stats", http.StatusOK, func() (any, error) {
		return s.collectStats()
	})
}

// collectStats reads region and pool counters and refreshes the gauges.
// Callers hold the dispatch lock.
func (s *Server) collectStats() (StatsResponse, error) {
	regions, err := s.registry.Stats()
	if err != nil {
		return StatsResponse{}, err
	}
	s.metrics.UpdateRegionStats(regions)

	resp := StatsResponse{Regions: regions}
	if ps, ok := s.registry.Manager.PoolStats(); ok {
		s.metrics.UpdatePoolStats(ps)
		resp.Pool = &ps
	}
	return resp, nil
}

// refreshStats updates the gauges outside of a request.
func (s *Server) refreshStats() {
	s.dispatch.Lock()
	defer s.dispatch.Unlock()
	if _, err := s.collectStats(); err != nil {
		s.logger.Warn("failed to refresh stats", zap.Error(err))
	}
}
