package marine

import (
	"fmt"
	"strings"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/index"
	"github.com/ssargent/marinedb/pkg/validation"
)

// SpeciesService manages MarineSpecies records.
type SpeciesService struct {
	c         *collection[MarineSpecies]
	validator *validation.Engine
	// byStatus is rebuilt on open and follows every successful write.
	byStatus *index.SecondaryIndex
}

// reindex rebuilds the status index from the store.
func (s *SpeciesService) reindex() error {
	s.byStatus.Clear()
	it := s.c.store.Iterate()
	for it.Next() {
		s.byStatus.Insert(it.Value().ConservationStatus, it.Key())
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("index %s: %w", s.c.entity, err)
	}
	return nil
}

// Create validates p and stores a new MarineSpecies owned by caller. The
// taxonomy reference is not checked.
func (s *SpeciesService) Create(p MarineSpeciesPayload, caller auth.Principal) (MarineSpecies, error) {
	if err := s.validator.Validate(validation.MarineSpecies, p); err != nil {
		return MarineSpecies{}, err
	}
	m, err := s.c.create(caller, func(id uint64, owner string, now uint64) MarineSpecies {
		m := MarineSpecies{ID: id, Researcher: owner, CreatedAt: now}
		p.apply(&m)
		return m
	})
	if err != nil {
		return m, err
	}
	s.byStatus.Insert(m.ConservationStatus, m.ID)
	return m, nil
}

func (s *SpeciesService) Get(id uint64) (MarineSpecies, error) {
	return s.c.get(id)
}

// List returns every MarineSpecies by ascending id.
func (s *SpeciesService) List() ([]MarineSpecies, error) {
	return s.c.list(nil, "no marine species found")
}

// FilterByStatus returns the species whose conservation status matches status,
// ignoring case.
func (s *SpeciesService) FilterByStatus(status string) ([]MarineSpecies, error) {
	return s.c.pick(s.byStatus.Search(status), func(m MarineSpecies) bool {
		return strings.EqualFold(m.ConservationStatus, status)
	}, fmt.Sprintf("no marine species found with conservation status %q", status))
}

// Update replaces the observation fields of a MarineSpecies owned by caller.
func (s *SpeciesService) Update(id uint64, p MarineSpeciesPayload, caller auth.Principal) (MarineSpecies, error) {
	if err := s.validator.Validate(validation.MarineSpecies, p); err != nil {
		return MarineSpecies{}, err
	}
	var oldStatus string
	m, err := s.c.update(id, caller, func(m *MarineSpecies, now uint64) {
		oldStatus = m.ConservationStatus
		p.apply(m)
		m.UpdatedAt = &now
	})
	if err != nil {
		return m, err
	}
	s.byStatus.Move(oldStatus, m.ConservationStatus, id)
	return m, nil
}

// Delete removes a MarineSpecies owned by caller and returns it.
func (s *SpeciesService) Delete(id uint64, caller auth.Principal) (MarineSpecies, error) {
	m, err := s.c.remove(id, caller)
	if err != nil {
		return m, err
	}
	s.byStatus.Delete(m.ConservationStatus, id)
	return m, nil
}

func (s *SpeciesService) Count() (int, error) {
	return s.c.count()
}
