package marine

import (
	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/validation"
)

// TaxonomyService manages Taxonomy records.
type TaxonomyService struct {
	c         *collection[Taxonomy]
	validator *validation.Engine
}

// Create validates p and stores a new Taxonomy owned by caller.
func (s *TaxonomyService) Create(p TaxonomyPayload, caller auth.Principal) (Taxonomy, error) {
	if err := s.validator.Validate(validation.Taxonomy, p); err != nil {
		return Taxonomy{}, err
	}
	return s.c.create(caller, func(id uint64, owner string, now uint64) Taxonomy {
		t := Taxonomy{ID: id, Researcher: owner, CreatedAt: now}
		p.apply(&t)
		return t
	})
}

func (s *TaxonomyService) Get(id uint64) (Taxonomy, error) {
	return s.c.get(id)
}

// List returns every Taxonomy by ascending id.
func (s *TaxonomyService) List() ([]Taxonomy, error) {
	return s.c.list(nil, "no taxonomies found")
}

// Update replaces the classification fields of a Taxonomy owned by caller.
func (s *TaxonomyService) Update(id uint64, p TaxonomyPayload, caller auth.Principal) (Taxonomy, error) {
	if err := s.validator.Validate(validation.Taxonomy, p); err != nil {
		return Taxonomy{}, err
	}
	return s.c.update(id, caller, func(t *Taxonomy, now uint64) {
		p.apply(t)
		t.UpdatedAt = &now
	})
}

// Delete removes a Taxonomy owned by caller and returns it. Species that
// reference it are left alone.
func (s *TaxonomyService) Delete(id uint64, caller auth.Principal) (Taxonomy, error) {
	return s.c.remove(id, caller)
}

func (s *TaxonomyService) Count() (int, error) {
	return s.c.count()
}
