package pool

import (
	"bytes"
	"errors"

	"github.com/cockroachdb/pebble"
)

// PebblePool stores entries in a pebble LSM.
type PebblePool struct {
	db        *pebble.DB
	writeOpts *pebble.WriteOptions
}

// OpenPebble opens (or creates) a pebble database at path. With syncWrites every
// Set and Delete waits for the WAL to reach disk.
func OpenPebble(path string, syncWrites bool) (*PebblePool, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	opts := pebble.NoSync
	if syncWrites {
		opts = pebble.Sync
	}
	return &PebblePool{db: db, writeOpts: opts}, nil
}

func (s *PebblePool) Get(key []byte) ([]byte, error) {
	data, closer, err := s.db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	defer closer.Close()

	return bytes.Clone(data), nil
}

func (s *PebblePool) Set(key, value []byte) error {
	if err := checkKV(key, value); err != nil {
		return err
	}
	return s.db.Set(key, value, s.writeOpts)
}

func (s *PebblePool) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	return s.db.Delete(key, s.writeOpts)
}

func (s *PebblePool) Scan(start, end []byte, limit int, fn func(key, value []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: start, UpperBound: end})
	if err != nil {
		return err
	}

	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		if err := fn(bytes.Clone(iter.Key()), bytes.Clone(iter.Value())); err != nil {
			_ = iter.Close()
			return err
		}
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		_ = iter.Close()
		return err
	}
	return iter.Close()
}

// Sync flushes the memtable so all acknowledged writes are in sstables.
func (s *PebblePool) Sync() error {
	return s.db.Flush()
}

func (s *PebblePool) Compact() error {
	return s.db.Compact([]byte{0x00}, []byte{0xff, 0xff}, true)
}

func (s *PebblePool) Close() error {
	return s.db.Close()
}
