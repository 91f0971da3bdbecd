package store

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
)

type note struct {
	Text string `json:"text"`
}

func (note) MaxSize() int { return 64 }

func newNoteStore(t *testing.T, opts ...Option) *Store[note] {
	t.Helper()
	m := memory.NewManager(pool.NewMemory(), nil)
	r, err := m.Region(2, "notes")
	require.NoError(t, err)
	return New[note](r, opts...)
}

func TestStore_InsertGetRemove(t *testing.T) {
	s := newNoteStore(t)

	if err := s.Insert(1, note{Text: "hello"}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	// Identical input is idempotent.
	if err := s.Insert(1, note{Text: "hello"}); err != nil {
		t.Fatalf("Insert (repeat) failed: %v", err)
	}

	got, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", got.Text)

	n, err := s.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok, err = s.Get(2)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, ok, err := s.Remove(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "hello", removed.Text)

	_, ok, err = s.Get(1)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.Remove(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_EncodingBound(t *testing.T) {
	s := newNoteStore(t)
	require.NoError(t, s.Insert(1, note{Text: "small"}))

	big := note{Text: strings.Repeat("x", 100)}
	err := s.Fits(big)
	var encErr *EncodingError
	require.True(t, errors.As(err, &encErr))
	assert.ErrorIs(t, err, ErrEncoding)
	assert.Equal(t, 64, encErr.Max)
	assert.Greater(t, encErr.Size, 64)

	err = s.Insert(1, big)
	assert.ErrorIs(t, err, ErrEncoding)

	// The previous value is untouched.
	got, ok, err := s.Get(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "small", got.Text)
}

func TestIterator_OrderedLazyRestartable(t *testing.T) {
	s := newNoteStore(t, WithPageSize(2))
	for _, k := range []uint64{5, 1, 300, 3, 2} {
		require.NoError(t, s.Insert(k, note{Text: string(rune('a' + k%26))}))
	}

	collect := func(it *Iterator[note]) []uint64 {
		var keys []uint64
		for it.Next() {
			keys = append(keys, it.Key())
		}
		require.NoError(t, it.Err())
		return keys
	}

	it := s.Iterate()
	assert.Equal(t, []uint64{1, 2, 3, 5, 300}, collect(it))
	assert.False(t, it.Next(), "exhausted iterator stays exhausted")

	it.Reset()
	assert.Equal(t, []uint64{1, 2, 3, 5, 300}, collect(it))

	// Lazy: a key inserted ahead of the cursor is seen, one behind it is not.
	it.Reset()
	require.True(t, it.Next())
	require.True(t, it.Next())
	assert.Equal(t, uint64(2), it.Key())
	require.NoError(t, s.Insert(0, note{Text: "behind"}))
	require.NoError(t, s.Insert(4, note{Text: "ahead"}))
	var rest []uint64
	for it.Next() {
		rest = append(rest, it.Key())
	}
	assert.Equal(t, []uint64{3, 4, 5, 300}, rest)
}

func TestIterator_EmptyStore(t *testing.T) {
	s := newNoteStore(t)
	it := s.Iterate()
	assert.False(t, it.Next())
	assert.NoError(t, it.Err())
}

func TestIterator_DecodeError(t *testing.T) {
	m := memory.NewManager(pool.NewMemory(), nil)
	r, err := m.Region(2, "notes")
	require.NoError(t, err)
	require.NoError(t, r.Put(1, []byte("not json")))

	it := New[note](r).Iterate()
	assert.False(t, it.Next())
	assert.Error(t, it.Err())
}

func TestStore_All(t *testing.T) {
	s := newNoteStore(t)
	for k := uint64(1); k <= 4; k++ {
		require.NoError(t, s.Insert(k, note{Text: "n"}))
	}

	var keys []uint64
	for k := range s.All() {
		keys = append(keys, k)
		if k == 3 {
			break
		}
	}
	assert.Equal(t, []uint64{1, 2, 3}, keys)
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pool.data")
	open := func() (*memory.Manager, *Store[note]) {
		p, err := pool.OpenLog(pool.LogConfig{FilePath: path})
		require.NoError(t, err)
		m := memory.NewManager(p, nil)
		r, err := m.Region(2, "notes")
		require.NoError(t, err)
		return m, New[note](r)
	}

	m, s := open()
	require.NoError(t, s.Insert(9, note{Text: "durable"}))
	require.NoError(t, m.Close())

	m, s = open()
	defer m.Close()
	got, ok, err := s.Get(9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "durable", got.Text)
}
