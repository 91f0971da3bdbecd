package pool

import (
	"bytes"
	"sync"

	"github.com/ssargent/marinedb/pkg/bptree"
)

// MemoryPool keeps everything in a B+tree. Close discards the contents.
type MemoryPool struct {
	tree   *bptree.BPlusTree[string, []byte]
	mutex  sync.Mutex
	closed bool
}

// NewMemory returns an empty in-process pool.
func NewMemory() *MemoryPool {
	return &MemoryPool{tree: bptree.NewBPlusTree[string, []byte](bptree.DefaultOrder)}
}

func (m *MemoryPool) Get(key []byte) ([]byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	v, ok := m.tree.Search(string(key))
	if !ok {
		return nil, ErrNotFound
	}
	return bytes.Clone(v), nil
}

func (m *MemoryPool) Set(key, value []byte) error {
	if err := checkKV(key, value); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.Insert(string(key), bytes.Clone(value))
	return nil
}

func (m *MemoryPool) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.tree.Delete(string(key))
	return nil
}

func (m *MemoryPool) Scan(start, end []byte, limit int, fn func(key, value []byte) error) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return ErrClosed
	}

	var (
		n   int
		err error
	)
	m.tree.Ascend(string(start), func(k string, v []byte) bool {
		key := []byte(k)
		if !beforeEnd(key, end) {
			return false
		}
		if err = fn(key, bytes.Clone(v)); err != nil {
			return false
		}
		n++
		return limit <= 0 || n < limit
	})
	return err
}

func (m *MemoryPool) Sync() error { return nil }

func (m *MemoryPool) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	m.tree.Clear()
	return nil
}

func (m *MemoryPool) Stats() Stats {
	return Stats{Keys: m.tree.Len()}
}
