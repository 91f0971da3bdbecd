package index

import (
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
)

func TestNewSecondaryIndex(t *testing.T) {
	idx := NewSecondaryIndex("conservation_status", 3)

	assert.Equal(t, "conservation_status", idx.Field())
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Search("Endangered"))
}

func TestSecondaryIndex_Search(t *testing.T) {
	idx := NewSecondaryIndex("conservation_status", 3)
	idx.Insert("Endangered", 7)
	idx.Insert("endangered", 2)
	idx.Insert("Vulnerable", 3)
	idx.Insert("Endangered Species", 4)
	idx.Insert("ENDANGERED", 11)

	tests := []struct {
		name  string
		value string
		want  []uint64
	}{
		{"folds case, ascending ids", "Endangered", []uint64{2, 7, 11}},
		{"upper query", "ENDANGERED", []uint64{2, 7, 11}},
		{"longer value is separate", "endangered species", []uint64{4}},
		{"other value", "vulnerable", []uint64{3}},
		{"missing value", "Extinct", nil},
		{"prefix is not a match", "Endanger", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.Search(tt.value))
		})
	}
}

func TestSecondaryIndex_DeleteAndMove(t *testing.T) {
	idx := NewSecondaryIndex("conservation_status", 3)
	idx.Insert("Endangered", 1)
	idx.Insert("Endangered", 2)

	assert.True(t, idx.Delete("ENDANGERED", 1))
	assert.False(t, idx.Delete("Endangered", 1))
	assert.Equal(t, []uint64{2}, idx.Search("endangered"))

	idx.Move("Endangered", "Vulnerable", 2)
	assert.Empty(t, idx.Search("endangered"))
	assert.Equal(t, []uint64{2}, idx.Search("Vulnerable"))
	assert.Equal(t, 1, idx.Len())
}

func TestSecondaryIndex_ManyEntries(t *testing.T) {
	idx := NewSecondaryIndex("conservation_status", 4)
	statuses := []string{"Least Concern", "Near Threatened", "Vulnerable", "Endangered"}
	for id := uint64(1); id <= 400; id++ {
		idx.Insert(statuses[id%4], id)
	}

	got := idx.Search("vulnerable")
	assert.Len(t, got, 100)
	for i, id := range got {
		assert.Equal(t, uint64(2), id%4)
		if i > 0 {
			assert.Greater(t, id, got[i-1])
		}
	}

	idx.Clear()
	assert.Equal(t, 0, idx.Len())
}

func TestFold(t *testing.T) {
	pairs := [][2]string{
		{"Endangered", "ENDANGERED"},
		{"Critically Endangered", "critically endangered"},
		{"Ωmega", "ωMEGA"},
		{"\u13a0", "\uab70"}, // Cherokee
		{"\u01c4", "\u01c5"}, // DŽ and its titlecase
		{"\u212a", "k"},      // Kelvin sign
		{"\u017f", "S"},      // long s
		{"\xff", "\ufffd"},   // invalid UTF-8
	}
	for _, p := range pairs {
		assert.True(t, strings.EqualFold(p[0], p[1]))
		assert.Equal(t, Fold(p[0]), Fold(p[1]), "%q vs %q", p[0], p[1])
	}
}

func TestFold_MatchesEqualFoldOrbits(t *testing.T) {
	mismatches := 0
	for r := rune(0); r <= unicode.MaxRune; r++ {
		key := Fold(string(r))
		for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
			if Fold(string(f)) != key {
				mismatches++
				if mismatches <= 5 {
					t.Errorf("%U and %U fold to different keys", r, f)
				}
			}
		}
	}
	assert.Zero(t, mismatches)
}

func TestFold_KeepsDistinctValuesApart(t *testing.T) {
	values := []string{"Endangered", "Vulnerable", "endangere", "\u00df", "ss", "\u0130", "i"}
	for i, a := range values {
		for _, b := range values[i+1:] {
			assert.Equal(t, strings.EqualFold(a, b), Fold(a) == Fold(b), "%q vs %q", a, b)
		}
	}
}
