package memory

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/ssargent/marinedb/pkg/pool"
)

// Region is a u64-keyed slice of the pool.
type Region struct {
	id   RegionID
	name string
	pool pool.Pool
}

// Entry is one key/value pair of a region.
type Entry struct {
	Key   uint64
	Value []byte
}

func (r *Region) ID() RegionID { return r.id }

func (r *Region) Name() string { return r.name }

func (r *Region) key(k uint64) []byte {
	buf := make([]byte, 9)
	buf[0] = byte(r.id)
	binary.BigEndian.PutUint64(buf[1:], k)
	return buf
}

// bounds returns the first and one-past-last physical keys of the region.
func (r *Region) bounds() ([]byte, []byte) {
	return []byte{byte(r.id)}, []byte{byte(r.id) + 1}
}

func (r *Region) Get(k uint64) ([]byte, bool, error) {
	v, err := r.pool.Get(r.key(k))
	if errors.Is(err, pool.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Region) Put(k uint64, v []byte) error {
	return r.pool.Set(r.key(k), v)
}

// Delete removes k and returns what it held.
func (r *Region) Delete(k uint64) ([]byte, bool, error) {
	old, ok, err := r.Get(k)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := r.pool.Delete(r.key(k)); err != nil {
		return nil, false, err
	}
	return old, true, nil
}

// Page returns up to limit entries in ascending key order. With first set it
// starts at the lowest key; otherwise it starts strictly after `after`.
func (r *Region) Page(after uint64, first bool, limit int) ([]Entry, error) {
	start, end := r.bounds()
	if !first {
		if after == math.MaxUint64 {
			return nil, nil
		}
		start = r.key(after + 1)
	}

	var entries []Entry
	err := r.pool.Scan(start, end, limit, func(k, v []byte) error {
		entries = append(entries, Entry{Key: binary.BigEndian.Uint64(k[1:]), Value: v})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Len counts the keys in the region.
func (r *Region) Len() (int, error) {
	start, end := r.bounds()
	n := 0
	err := r.pool.Scan(start, end, 0, func(_, _ []byte) error {
		n++
		return nil
	})
	return n, err
}
