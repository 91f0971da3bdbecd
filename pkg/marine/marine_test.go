package marine

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ssargent/marinedb/pkg/auth"
	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
	"github.com/ssargent/marinedb/pkg/store"
	"github.com/ssargent/marinedb/pkg/validation"
)

const (
	alice auth.Principal = "alice"
	bob   auth.Principal = "bob"
)

// stepClock advances by one second per call from a fixed start.
func stepClock() Clock {
	var now uint64 = 1_700_000_000_000_000_000
	return ClockFunc(func() uint64 {
		now += 1_000_000_000
		return now
	})
}

func openRegistry(t *testing.T, opts Options) *Registry {
	t.Helper()
	if opts.Clock == nil {
		opts.Clock = stepClock()
	}
	opts.Logger = zaptest.NewLogger(t)
	reg, err := Open(pool.NewMemory(), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })
	return reg
}

func blueWhaleTaxonomy() TaxonomyPayload {
	return TaxonomyPayload{
		Kingdom: "Animalia", Phylum: "Chordata", Class: "Mammalia", Order: "Cetacea",
		Family: "Balaenopteridae", Genus: "Balaenoptera", Species: "musculus",
	}
}

func blueWhale(taxonomyID uint64) MarineSpeciesPayload {
	return MarineSpeciesPayload{Name: "Blue Whale", Habitat: "Ocean", TaxonomyID: taxonomyID, ConservationStatus: "Endangered"}
}

func TestBlueWhaleEndToEnd(t *testing.T) {
	reg := openRegistry(t, Options{})

	tax, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tax.ID)

	whale, err := reg.Species.Create(blueWhale(1), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), whale.ID)
	assert.Equal(t, uint64(1), whale.TaxonomyID)

	_, err = reg.Taxonomies.Delete(1, alice)
	require.NoError(t, err)

	got, err := reg.Species.Get(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.TaxonomyID)
	assert.Equal(t, whale, got)
}

func TestCreateGetRoundTrip(t *testing.T) {
	reg := openRegistry(t, Options{})

	created, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Researcher)
	assert.NotZero(t, created.CreatedAt)
	assert.Nil(t, created.UpdatedAt)

	got, err := reg.Taxonomies.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestIDsStrictlyIncreaseAcrossDeletes(t *testing.T) {
	reg := openRegistry(t, Options{})

	var last uint64
	for i := 0; i < 3; i++ {
		s, err := reg.Species.Create(blueWhale(9), alice)
		require.NoError(t, err)
		assert.Greater(t, s.ID, last)
		last = s.ID
	}

	_, err := reg.Species.Delete(last, alice)
	require.NoError(t, err)

	s, err := reg.Species.Create(blueWhale(9), alice)
	require.NoError(t, err)
	assert.Equal(t, last+1, s.ID, "a deleted id is never reused")
}

func TestUpdate(t *testing.T) {
	reg := openRegistry(t, Options{})
	created, err := reg.Species.Create(blueWhale(1), alice)
	require.NoError(t, err)

	change := blueWhale(2)
	change.ConservationStatus = "Vulnerable"
	updated, err := reg.Species.Update(created.ID, change, alice)
	require.NoError(t, err)

	assert.Equal(t, "Vulnerable", updated.ConservationStatus)
	assert.Equal(t, uint64(2), updated.TaxonomyID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, created.Researcher, updated.Researcher)
	require.NotNil(t, updated.UpdatedAt)
	assert.Greater(t, *updated.UpdatedAt, created.CreatedAt)

	again, err := reg.Species.Update(created.ID, change, alice)
	require.NoError(t, err)
	assert.Greater(t, *again.UpdatedAt, *updated.UpdatedAt)

	got, err := reg.Species.Get(created.ID)
	require.NoError(t, err)
	assert.Equal(t, again, got)
}

func TestNonOwnerCannotMutate(t *testing.T) {
	reg := openRegistry(t, Options{})
	created, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)

	region, err := reg.Manager.Region(RegionTaxonomyMap, "taxonomy_map")
	require.NoError(t, err)
	before, ok, err := region.Get(created.ID)
	require.NoError(t, err)
	require.True(t, ok)

	change := blueWhaleTaxonomy()
	change.Species = "intermedia"
	_, err = reg.Taxonomies.Update(created.ID, change, bob)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)
	assert.Equal(t, KindNotAuthorized, Kind(err))

	_, err = reg.Taxonomies.Delete(created.ID, bob)
	assert.ErrorIs(t, err, auth.ErrNotAuthorized)

	after, ok, err := region.Get(created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, after, "stored bytes must be untouched")
}

func TestDeleteThenNotFound(t *testing.T) {
	reg := openRegistry(t, Options{})
	created, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)

	removed, err := reg.Taxonomies.Delete(created.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, created, removed)

	_, err = reg.Taxonomies.Get(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.EqualError(t, err, "taxonomy with id=1 not found")

	_, err = reg.Taxonomies.Delete(created.ID, alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckOrder(t *testing.T) {
	reg := openRegistry(t, Options{})
	created, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)

	tests := map[string]struct {
		id      uint64
		payload TaxonomyPayload
		caller  auth.Principal
		want    ErrorKind
	}{
		"invalid payload on missing id": {id: 99, payload: TaxonomyPayload{}, caller: bob, want: KindValidation},
		"invalid payload by non-owner":  {id: created.ID, payload: TaxonomyPayload{}, caller: bob, want: KindValidation},
		"missing id by non-owner":       {id: 99, payload: blueWhaleTaxonomy(), caller: bob, want: KindNotFound},
		"existing id by non-owner":      {id: created.ID, payload: blueWhaleTaxonomy(), caller: bob, want: KindNotAuthorized},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Taxonomies.Update(tt.id, tt.payload, tt.caller)
			assert.Equal(t, tt.want, Kind(err), "err: %v", err)
		})
	}
}

func TestValidationListsEveryEmptyField(t *testing.T) {
	reg := openRegistry(t, Options{})

	_, err := reg.Species.Create(MarineSpeciesPayload{Name: " ", TaxonomyID: 4}, alice)
	require.Error(t, err)
	assert.Equal(t, KindValidation, Kind(err))

	var verr *validation.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"name", "habitat", "conservation_status"}, verr.Fields())

	s, err := reg.Species.Create(blueWhale(4), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), s.ID, "rejected payload consumed no id")
}

func TestOversizedPayload(t *testing.T) {
	reg := openRegistry(t, Options{})

	huge := blueWhaleTaxonomy()
	huge.Species = strings.Repeat("m", MaxRecordSize)
	_, err := reg.Taxonomies.Create(huge, alice)
	assert.ErrorIs(t, err, store.ErrEncoding)
	assert.Equal(t, KindEncoding, Kind(err))

	tax, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tax.ID, "oversized payload consumed no id")

	_, err = reg.Taxonomies.Update(tax.ID, huge, alice)
	assert.ErrorIs(t, err, store.ErrEncoding)

	got, err := reg.Taxonomies.Get(tax.ID)
	require.NoError(t, err)
	assert.Equal(t, tax, got)
}

func TestFilterByStatus(t *testing.T) {
	reg := openRegistry(t, Options{})

	statuses := []string{"Endangered", "Vulnerable", "endangered", "ENDANGERED", "Least Concern"}
	for _, status := range statuses {
		p := blueWhale(1)
		p.ConservationStatus = status
		_, err := reg.Species.Create(p, alice)
		require.NoError(t, err)
	}

	got, err := reg.Species.FilterByStatus("EnDaNgErEd")
	require.NoError(t, err)
	var idsFound []uint64
	for _, s := range got {
		idsFound = append(idsFound, s.ID)
	}
	assert.Equal(t, []uint64{1, 3, 4}, idsFound)

	_, err = reg.Species.FilterByStatus("Extinct")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmptyListPolicy(t *testing.T) {
	t.Run("default reports not found", func(t *testing.T) {
		reg := openRegistry(t, Options{})
		_, err := reg.Taxonomies.List()
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = reg.Species.List()
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("allow empty results", func(t *testing.T) {
		reg := openRegistry(t, Options{AllowEmptyResults: true})
		taxa, err := reg.Taxonomies.List()
		require.NoError(t, err)
		assert.Empty(t, taxa)
		species, err := reg.Species.FilterByStatus("Extinct")
		require.NoError(t, err)
		assert.Empty(t, species)
	})
}

func TestListAscending(t *testing.T) {
	reg := openRegistry(t, Options{PageSize: 2})
	for i := 0; i < 5; i++ {
		_, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
		require.NoError(t, err)
	}
	_, err := reg.Taxonomies.Delete(3, alice)
	require.NoError(t, err)

	taxa, err := reg.Taxonomies.List()
	require.NoError(t, err)
	var got []uint64
	for _, tx := range taxa {
		got = append(got, tx.ID)
	}
	assert.Equal(t, []uint64{1, 2, 4, 5}, got)

	n, err := reg.Taxonomies.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestStateSurvivesReopen(t *testing.T) {
	for _, driver := range []string{pool.DriverLog, pool.DriverPebble, pool.DriverSQLite} {
		t.Run(driver, func(t *testing.T) {
			dir := t.TempDir()
			open := func() *Registry {
				p, err := pool.Open(pool.Options{Driver: driver, Dir: dir})
				require.NoError(t, err)
				reg, err := Open(p, Options{Logger: zaptest.NewLogger(t)})
				require.NoError(t, err)
				return reg
			}

			reg := open()
			tax, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
			require.NoError(t, err)
			_, err = reg.Species.Create(blueWhale(tax.ID), alice)
			require.NoError(t, err)
			_, err = reg.Species.Create(blueWhale(tax.ID), alice)
			require.NoError(t, err)
			_, err = reg.Species.Delete(2, alice)
			require.NoError(t, err)
			require.NoError(t, reg.Close())

			reg = open()
			defer reg.Close()

			got, err := reg.Taxonomies.Get(tax.ID)
			require.NoError(t, err)
			assert.Equal(t, tax, got)

			s, err := reg.Species.Create(blueWhale(tax.ID), bob)
			require.NoError(t, err)
			assert.Equal(t, uint64(3), s.ID)

			stats, err := reg.Stats()
			require.NoError(t, err)
			require.Len(t, stats, 4)
			assert.Equal(t, "species_map", stats[3].Name)
			assert.Equal(t, 2, stats[3].Keys)
		})
	}
}

func TestKind(t *testing.T) {
	tests := map[string]struct {
		err  error
		want ErrorKind
	}{
		"nil":            {nil, KindNone},
		"not found":      {&NotFoundError{Entity: "taxonomy", ID: 1}, KindNotFound},
		"validation":     {&validation.ValidationError{}, KindValidation},
		"not authorized": {auth.Authorize("a", "b"), KindNotAuthorized},
		"encoding":       {&store.EncodingError{Size: 2000, Max: 1024}, KindEncoding},
		"wrapped":        {errors.Join(errors.New("ctx"), &NotFoundError{}), KindNotFound},
		"other":          {errors.New("disk on fire"), KindInternal},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestMonotonicClock(t *testing.T) {
	c := NewMonotonicClock()
	// A wall clock stuck in place still yields increasing stamps.
	c.wall = func() time.Time { return time.Unix(0, 42) }
	a, b := c.Now(), c.Now()
	assert.Equal(t, uint64(42), a)
	assert.Equal(t, uint64(43), b)
}

func TestOpen_RejectsForeignRegions(t *testing.T) {
	reg := openRegistry(t, Options{})

	_, err := reg.Manager.Region(RegionSpeciesMap, "something_else")
	assert.ErrorIs(t, err, memory.ErrRegionInUse)
}

func TestFilterByStatusFollowsWrites(t *testing.T) {
	dir := t.TempDir()
	open := func() *Registry {
		p, err := pool.Open(pool.Options{Driver: pool.DriverLog, Dir: dir})
		require.NoError(t, err)
		reg, err := Open(p, Options{Logger: zaptest.NewLogger(t)})
		require.NoError(t, err)
		return reg
	}

	reg := open()
	for i := 0; i < 3; i++ {
		_, err := reg.Species.Create(blueWhale(1), alice)
		require.NoError(t, err)
	}

	moved := blueWhale(1)
	moved.ConservationStatus = "Vulnerable"
	_, err := reg.Species.Update(2, moved, alice)
	require.NoError(t, err)
	_, err = reg.Species.Delete(3, alice)
	require.NoError(t, err)

	// A rejected update leaves the index alone.
	_, err = reg.Species.Update(1, moved, bob)
	require.ErrorIs(t, err, auth.ErrNotAuthorized)

	ids := func(reg *Registry, status string) []uint64 {
		got, err := reg.Species.FilterByStatus(status)
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		require.NoError(t, err)
		var out []uint64
		for _, s := range got {
			out = append(out, s.ID)
		}
		return out
	}
	assert.Equal(t, []uint64{1}, ids(reg, "endangered"))
	assert.Equal(t, []uint64{2}, ids(reg, "VULNERABLE"))

	require.NoError(t, reg.Close())

	// Rebuilt from the pool on open.
	reopened := open()
	defer reopened.Close()
	assert.Equal(t, []uint64{1}, ids(reopened, "Endangered"))
	assert.Equal(t, []uint64{2}, ids(reopened, "vulnerable"))
}

func TestAnonymousCallersCannotMutate(t *testing.T) {
	reg := openRegistry(t, Options{})

	for _, caller := range []auth.Principal{"", auth.Anonymous} {
		_, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), caller)
		assert.ErrorIs(t, err, auth.ErrNotAuthorized)
		assert.Equal(t, KindNotAuthorized, Kind(err))
	}

	tax, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tax.ID, "rejected creates consumed no id")

	for _, caller := range []auth.Principal{"", auth.Anonymous} {
		_, err = reg.Taxonomies.Update(tax.ID, blueWhaleTaxonomy(), caller)
		assert.ErrorIs(t, err, auth.ErrNotAuthorized)
		_, err = reg.Taxonomies.Delete(tax.ID, caller)
		assert.ErrorIs(t, err, auth.ErrNotAuthorized)
	}

	got, err := reg.Taxonomies.Get(tax.ID)
	require.NoError(t, err)
	assert.Equal(t, tax, got)
}

func TestCreateAtExactSizeBound(t *testing.T) {
	reg := openRegistry(t, Options{})

	// Pad kingdom so the stored record of id 1 is exactly MaxRecordSize bytes.
	// stepClock timestamps all have 19 digits.
	p := blueWhaleTaxonomy()
	p.Kingdom = "A"
	sample := Taxonomy{ID: 1, Researcher: string(alice), CreatedAt: 1_700_000_001_000_000_000}
	p.apply(&sample)
	encoded, err := json.Marshal(sample)
	require.NoError(t, err)
	p.Kingdom += strings.Repeat("a", MaxRecordSize-len(encoded))

	tax, err := reg.Taxonomies.Create(p, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tax.ID)
	exact, err := json.Marshal(tax)
	require.NoError(t, err)
	assert.Len(t, exact, MaxRecordSize)

	// One more byte no longer fits and consumes no id.
	p.Kingdom += "a"
	_, err = reg.Taxonomies.Create(p, alice)
	assert.ErrorIs(t, err, store.ErrEncoding)

	next, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), next.ID)
}

func TestFilterByStatusSimpleFolds(t *testing.T) {
	reg := openRegistry(t, Options{})

	statuses := map[uint64]string{}
	for _, status := range []string{"\u13a0", "\u01c5", "\u212a", "\u017f"} {
		p := blueWhale(1)
		p.ConservationStatus = status
		s, err := reg.Species.Create(p, alice)
		require.NoError(t, err)
		statuses[s.ID] = status
	}

	tests := map[string]struct {
		query string
		want  []uint64
	}{
		"cherokee small letter":   {query: "\uab70", want: []uint64{1}},
		"titlecase digraph lower": {query: "\u01c6", want: []uint64{2}},
		"titlecase digraph upper": {query: "\u01c4", want: []uint64{2}},
		"kelvin sign":             {query: "k", want: []uint64{3}},
		"long s":                  {query: "S", want: []uint64{4}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := reg.Species.FilterByStatus(tt.query)
			require.NoError(t, err)
			var ids []uint64
			for _, s := range got {
				assert.True(t, strings.EqualFold(statuses[s.ID], tt.query))
				ids = append(ids, s.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUnicodeWhiteSpaceIsEmpty(t *testing.T) {
	reg := openRegistry(t, Options{})

	for _, blank := range []string{"\u00a0", "\v", "\u3000", "\u2003\u2003"} {
		p := blueWhaleTaxonomy()
		p.Kingdom = blank
		_, err := reg.Taxonomies.Create(p, alice)
		var verr *validation.ValidationError
		require.True(t, errors.As(err, &verr), "%q", blank)
		assert.Equal(t, []string{"kingdom"}, verr.Fields())
	}

	tax, err := reg.Taxonomies.Create(blueWhaleTaxonomy(), alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tax.ID)
}
