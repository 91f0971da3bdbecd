package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taxonomyPayload struct {
	Kingdom string `json:"kingdom"`
	Phylum  string `json:"phylum"`
	Class   string `json:"class"`
	Order   string `json:"order"`
	Family  string `json:"family"`
	Genus   string `json:"genus"`
	Species string `json:"species"`
}

type speciesPayload struct {
	Name               string `json:"name"`
	Habitat            string `json:"habitat"`
	TaxonomyID         uint64 `json:"taxonomy_id"`
	ConservationStatus string `json:"conservation_status"`
}

func validTaxonomy() taxonomyPayload {
	return taxonomyPayload{
		Kingdom: "Animalia", Phylum: "Chordata", Class: "Mammalia", Order: "Artiodactyla",
		Family: "Balaenopteridae", Genus: "Balaenoptera", Species: "B. musculus",
	}
}

func TestEngine_Validate(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)

	tests := map[string]struct {
		schema     string
		payload    any
		wantFields []string
	}{
		"valid taxonomy": {
			schema:  Taxonomy,
			payload: validTaxonomy(),
		},
		"valid species with id zero": {
			schema:  MarineSpecies,
			payload: speciesPayload{Name: "Blue Whale", Habitat: "Ocean", TaxonomyID: 0, ConservationStatus: "Endangered"},
		},
		"all taxonomy fields empty": {
			schema:     Taxonomy,
			payload:    taxonomyPayload{},
			wantFields: []string{"kingdom", "phylum", "class", "order", "family", "genus", "species"},
		},
		"whitespace only is empty": {
			schema: Taxonomy,
			payload: func() taxonomyPayload {
				p := validTaxonomy()
				p.Phylum = "   "
				p.Genus = "\t\n"
				return p
			}(),
			wantFields: []string{"phylum", "genus"},
		},
		"unicode white space only is empty": {
			schema: Taxonomy,
			payload: taxonomyPayload{
				Kingdom: "\u00a0",
				Phylum:  "\v",
				Class:   "\u3000",
				Order:   "\u2003\u2003",
				Family:  "\u0085",
				Genus:   "\u2028\u2029",
				Species: "\u1680\u202f\u205f",
			},
			wantFields: []string{"kingdom", "phylum", "class", "order", "family", "genus", "species"},
		},
		"padded text is valid": {
			schema: Taxonomy,
			payload: func() taxonomyPayload {
				p := validTaxonomy()
				p.Species = "\u00a0musculus\u3000"
				return p
			}(),
		},
		"species fields reported in declaration order": {
			schema:     MarineSpecies,
			payload:    speciesPayload{TaxonomyID: 3},
			wantFields: []string{"name", "habitat", "conservation_status"},
		},
		"negative taxonomy id": {
			schema:     MarineSpecies,
			payload:    map[string]any{"name": "Orca", "habitat": "Ocean", "taxonomy_id": -1, "conservation_status": "Data Deficient"},
			wantFields: []string{"taxonomy_id"},
		},
		"undeclared field": {
			schema:     MarineSpecies,
			payload:    map[string]any{"name": "Orca", "habitat": "Ocean", "taxonomy_id": 1, "conservation_status": "LC", "fins": 2},
			wantFields: []string{"fins"},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := engine.Validate(tt.schema, tt.payload)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidationFailed)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantFields, verr.Fields())
			for _, v := range verr.Violations {
				assert.NotEmpty(t, v.Message)
			}
		})
	}
}

func TestEngine_Messages(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)

	p := validTaxonomy()
	p.Kingdom = ""
	err = engine.Validate(Taxonomy, p)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []Violation{{Field: "kingdom", Message: "kingdom must not be empty"}}, verr.Violations)
	assert.Equal(t, "validation failed: kingdom must not be empty", err.Error())
}

// The schema must agree with strings.TrimSpace on what counts as empty.
func TestEngine_TextMatchesTrimSpace(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)

	for r := rune(0); r < 0x3100; r++ {
		p := validTaxonomy()
		p.Kingdom = string(r) + string(r)
		err := engine.Validate(Taxonomy, p)
		empty := strings.TrimSpace(p.Kingdom) == ""
		if empty != (err != nil) {
			t.Errorf("%U: trimmed empty=%v, validation error=%v", r, empty, err)
		}
	}
}

func TestEngine_UnknownSchema(t *testing.T) {
	engine, err := New()
	require.NoError(t, err)

	err = engine.Validate("Coral", struct{}{})
	assert.ErrorIs(t, err, ErrUnknownSchema)
	assert.NotErrorIs(t, err, ErrValidationFailed)
}
