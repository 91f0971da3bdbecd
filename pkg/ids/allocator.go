// Package ids allocates durable, strictly increasing identifiers.
package ids

import (
	"encoding/binary"
	"fmt"

	"github.com/ssargent/marinedb/pkg/memory"
)

// counterKey is the single slot the counter occupies in its region.
const counterKey uint64 = 0

// Allocator is a durable u64 counter. It starts at 0, so the first id handed out
// is 1. It is not safe for concurrent use; callers serialize operations.
type Allocator struct {
	region  *memory.Region
	current uint64
}

// NewAllocator loads the counter stored in r, or starts from zero.
func NewAllocator(r *memory.Region) (*Allocator, error) {
	a := &Allocator{region: r}
	raw, ok, err := r.Get(counterKey)
	if err != nil {
		return nil, fmt.Errorf("load counter %q: %w", r.Name(), err)
	}
	if ok {
		if len(raw) != 8 {
			return nil, fmt.Errorf("load counter %q: want 8 bytes, have %d", r.Name(), len(raw))
		}
		a.current = binary.BigEndian.Uint64(raw)
	}
	return a, nil
}

// Allocate persists current+1 and returns it. If the write fails the counter
// does not move.
func (a *Allocator) Allocate() (uint64, error) {
	next := a.current + 1

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], next)
	if err := a.region.Put(counterKey, buf[:]); err != nil {
		return 0, fmt.Errorf("advance counter %q: %w", a.region.Name(), err)
	}

	a.current = next
	return next, nil
}

// Current returns the last id handed out, 0 if none.
func (a *Allocator) Current() uint64 {
	return a.current
}
