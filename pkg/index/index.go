// Package index keeps in-memory secondary indexes from a folded field value to
// record ids, on top of the B+tree.
package index

import (
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/ssargent/marinedb/pkg/bptree"
)

const sep = 0x00

// DefaultOrder is the branching factor used for indexes.
const DefaultOrder = bptree.DefaultOrder

// Fold returns the case-folded form used for index keys: every rune is replaced
// by the smallest rune of its unicode.SimpleFold orbit. Two values fold to the
// same key exactly when strings.EqualFold reports them equal. Invalid UTF-8
// folds to U+FFFD, as EqualFold decodes it.
func Fold(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func foldRune(r rune) rune {
	least := r
	for f := unicode.SimpleFold(r); f != r; f = unicode.SimpleFold(f) {
		if f < least {
			least = f
		}
	}
	return least
}

// SecondaryIndex maps a field value to the ids of the records holding it.
// Entries are keyed by folded value + 0x00 + big-endian id, so the ids of one
// value are contiguous and ascending.
type SecondaryIndex struct {
	fieldName string
	tree      *bptree.BPlusTree[string, uint64]
}

// NewSecondaryIndex creates a new secondary index for a field
func NewSecondaryIndex(fieldName string, order int) *SecondaryIndex {
	return &SecondaryIndex{
		fieldName: fieldName,
		tree:      bptree.NewBPlusTree[string, uint64](order),
	}
}

// Field names the indexed field.
func (idx *SecondaryIndex) Field() string { return idx.fieldName }

func prefix(value string) string {
	return Fold(value) + string([]byte{sep})
}

func indexKey(value string, id uint64) string {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return prefix(value) + string(b[:])
}

// Insert records that id holds value.
func (idx *SecondaryIndex) Insert(value string, id uint64) {
	idx.tree.Insert(indexKey(value, id), id)
}

// Delete forgets that id holds value.
func (idx *SecondaryIndex) Delete(value string, id uint64) bool {
	_, ok := idx.tree.Delete(indexKey(value, id))
	return ok
}

// Move re-files id from oldValue to newValue.
func (idx *SecondaryIndex) Move(oldValue, newValue string, id uint64) {
	idx.Delete(oldValue, id)
	idx.Insert(newValue, id)
}

// Search returns, in ascending order, the ids whose value folds to the same key as value.
func (idx *SecondaryIndex) Search(value string) []uint64 {
	p := prefix(value)
	want := len(p) + 8

	var ids []uint64
	idx.tree.Ascend(p, func(key string, id uint64) bool {
		if len(key) < len(p) || key[:len(p)] != p {
			return false
		}
		if len(key) == want {
			ids = append(ids, id)
		}
		return true
	})
	return ids
}

// Len returns the number of indexed entries.
func (idx *SecondaryIndex) Len() int {
	return idx.tree.Len()
}

// Clear drops every entry.
func (idx *SecondaryIndex) Clear() {
	idx.tree.Clear()
}
