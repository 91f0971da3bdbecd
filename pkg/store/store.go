// Package store provides a generic, size-bounded, ordered record map on top of a
// memory region. Keys are u64 and values are JSON encoded.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/ssargent/marinedb/pkg/memory"
)

// DefaultPageSize is how many entries an iterator pulls from the region at once.
const DefaultPageSize = 64

// ErrEncoding is matched by every *EncodingError.
var ErrEncoding = errors.New("store: encoded record too large")

// EncodingError reports a record whose encoded form exceeds its declared bound.
type EncodingError struct {
	Size int
	Max  int
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("store: encoded record is %d bytes, limit is %d", e.Size, e.Max)
}

func (e *EncodingError) Unwrap() error { return ErrEncoding }

// Record is implemented by every type kept in a Store.
type Record interface {
	// MaxSize is the largest encoded size, in bytes, the store accepts.
	MaxSize() int
}

// Store is an ordered u64 -> T map. It holds no locks; callers serialize access.
type Store[T Record] struct {
	region   *memory.Region
	pageSize int
}

// Option configures a Store.
type Option func(*options)

type options struct {
	pageSize int
}

// WithPageSize sets how many entries iterators fetch per page.
func WithPageSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.pageSize = n
		}
	}
}

// New builds a store over r.
func New[T Record](r *memory.Region, opts ...Option) *Store[T] {
	o := options{pageSize: DefaultPageSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[T]{region: r, pageSize: o.pageSize}
}

func (s *Store[T]) encode(value T) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("store: encode: %w", err)
	}
	if max := value.MaxSize(); len(data) > max {
		return nil, &EncodingError{Size: len(data), Max: max}
	}
	return data, nil
}

func (s *Store[T]) decode(key uint64, data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("store: decode %s/%d: %w", s.region.Name(), key, err)
	}
	return v, nil
}

// Fits reports, without writing, whether value is within its size bound.
func (s *Store[T]) Fits(value T) error {
	_, err := s.encode(value)
	return err
}

// Insert writes or overwrites key. An oversized value is rejected whole.
func (s *Store[T]) Insert(key uint64, value T) error {
	data, err := s.encode(value)
	if err != nil {
		return err
	}
	return s.region.Put(key, data)
}

func (s *Store[T]) Get(key uint64) (T, bool, error) {
	var zero T
	data, ok, err := s.region.Get(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := s.decode(key, data)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Remove deletes key and returns the value it held.
func (s *Store[T]) Remove(key uint64) (T, bool, error) {
	var zero T
	data, ok, err := s.region.Delete(key)
	if err != nil || !ok {
		return zero, false, err
	}
	v, err := s.decode(key, data)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}

// Len counts the stored records.
func (s *Store[T]) Len() (int, error) {
	return s.region.Len()
}

// Iterate returns a lazy iterator positioned before the smallest key.
func (s *Store[T]) Iterate() *Iterator[T] {
	return &Iterator[T]{store: s}
}

// All ranges over the store in key order. It stops at the first read or decode
// error; use Iterate when the error matters.
func (s *Store[T]) All() iter.Seq2[uint64, T] {
	return func(yield func(uint64, T) bool) {
		it := s.Iterate()
		for it.Next() {
			if !yield(it.Key(), it.Value()) {
				return
			}
		}
	}
}

// Iterator walks a store in ascending key order, fetching one page at a time.
// Entries written behind the cursor are not revisited; entries ahead of it are
// seen when their page is fetched.
type Iterator[T Record] struct {
	store   *Store[T]
	page    []memory.Entry
	pos     int
	last    uint64
	started bool
	done    bool
	key     uint64
	value   T
	err     error
}

// Next advances to the next record and reports whether there is one.
func (it *Iterator[T]) Next() bool {
	if it.done || it.err != nil {
		return false
	}
	if it.pos >= len(it.page) {
		page, err := it.store.region.Page(it.last, !it.started, it.store.pageSize)
		if err != nil {
			it.err = err
			return false
		}
		if len(page) == 0 {
			it.done = true
			return false
		}
		it.page, it.pos = page, 0
	}

	e := it.page[it.pos]
	it.pos++
	it.last, it.started = e.Key, true

	v, err := it.store.decode(e.Key, e.Value)
	if err != nil {
		it.err = err
		return false
	}
	it.key, it.value = e.Key, v
	return true
}

func (it *Iterator[T]) Key() uint64 { return it.key }

func (it *Iterator[T]) Value() T { return it.value }

// Err returns the error that stopped iteration, if any.
func (it *Iterator[T]) Err() error { return it.err }

// Reset rewinds the iterator to the smallest key.
func (it *Iterator[T]) Reset() {
	*it = Iterator[T]{store: it.store}
}
