package marine

// MaxRecordSize bounds the encoded size of every stored record.
const MaxRecordSize = 1024

// Taxonomy is a biological classification owned by the researcher that created it.
type Taxonomy struct {
	ID         uint64  `json:"id"`
	Researcher string  `json:"researcher"`
	Kingdom    string  `json:"kingdom"`
	Phylum     string  `json:"phylum"`
	Class      string  `json:"class"`
	Order      string  `json:"order"`
	Family     string  `json:"family"`
	Genus      string  `json:"genus"`
	Species    string  `json:"species"`
	CreatedAt  uint64  `json:"created_at"`
	UpdatedAt  *uint64 `json:"updated_at,omitempty"`
}

func (Taxonomy) MaxSize() int { return MaxRecordSize }

func (t Taxonomy) owner() string { return t.Researcher }

// TaxonomyPayload carries the caller-supplied fields of a Taxonomy.
type TaxonomyPayload struct {
	Kingdom string `json:"kingdom"`
	Phylum  string `json:"phylum"`
	Class   string `json:"class"`
	Order   string `json:"order"`
	Family  string `json:"family"`
	Genus   string `json:"genus"`
	Species string `json:"species"`
}

func (p TaxonomyPayload) apply(t *Taxonomy) {
	t.Kingdom = p.Kingdom
	t.Phylum = p.Phylum
	t.Class = p.Class
	t.Order = p.Order
	t.Family = p.Family
	t.Genus = p.Genus
	t.Species = p.Species
}

// MarineSpecies is an observation of a species. TaxonomyID is a soft reference;
// nothing checks that the taxonomy exists.
type MarineSpecies struct {
	ID                 uint64  `json:"id"`
	Researcher         string  `json:"researcher"`
	Name               string  `json:"name"`
	Habitat            string  `json:"habitat"`
	TaxonomyID         uint64  `json:"taxonomy_id"`
	ConservationStatus string  `json:"conservation_status"`
	CreatedAt          uint64  `json:"created_at"`
	UpdatedAt          *uint64 `json:"updated_at,omitempty"`
}

func (MarineSpecies) MaxSize() int { return MaxRecordSize }

func (s MarineSpecies) owner() string { return s.Researcher }

// MarineSpeciesPayload carries the caller-supplied fields of a MarineSpecies.
type MarineSpeciesPayload struct {
	Name               string `json:"name"`
	Habitat            string `json:"habitat"`
	TaxonomyID         uint64 `json:"taxonomy_id"`
	ConservationStatus string `json:"conservation_status"`
}

func (p MarineSpeciesPayload) apply(s *MarineSpecies) {
	s.Name = p.Name
	s.Habitat = p.Habitat
	s.TaxonomyID = p.TaxonomyID
	s.ConservationStatus = p.ConservationStatus
}
