// Package snapshot exports a whole pool to a portable stream and restores it.
//
// A snapshot is a sequence of codec frames:
//
//	header   key "marinedb-snapshot", value JSON Meta
//	entries  one frame per pool key, in key order
//	trailer  key "marinedb-snapshot-end", value JSON {"entries": n}
//
// Every frame carries its own CRC32, and the trailer count catches truncation.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/ssargent/marinedb/pkg/codec"
	"github.com/ssargent/marinedb/pkg/memory"
	"github.com/ssargent/marinedb/pkg/pool"
)

const (
	headerKey  = "marinedb-snapshot"
	trailerKey = "marinedb-snapshot-end"
	// Extension is appended to every snapshot name.
	Extension = ".snap"
	// FormatVersion is written into every header.
	FormatVersion = 1

	maxFramePayload = 16 << 20
)

var (
	// ErrCorrupt is returned when a snapshot stream does not parse or verify.
	ErrCorrupt = errors.New("snapshot: corrupt stream")
	// ErrNotEmpty is returned when restoring into a pool that already has data.
	ErrNotEmpty = errors.New("snapshot: target pool is not empty")
	// ErrNoSnapshots is returned when a location holds no snapshots.
	ErrNoSnapshots = errors.New("snapshot: none found")
)

// Meta describes a snapshot.
type Meta struct {
	Name      string               `json:"name"`
	Version   int                  `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
	Regions   []memory.RegionStats `json:"regions"`
	Entries   int                  `json:"entries"`
}

type trailer struct {
	Entries int `json:"entries"`
}

// Sink stores and retrieves snapshot blobs by name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Get(ctx context.Context, name string) (io.ReadCloser, error)
	// List returns snapshot names in ascending (oldest first) order.
	List(ctx context.Context) ([]string, error)
}

// NewName returns a fresh, time-sortable snapshot name.
func NewName() string {
	return ksuid.New().String() + Extension
}

// Write streams every entry of mgr's pool to w and returns the metadata it wrote.
func Write(w io.Writer, mgr *memory.Manager, name string) (Meta, error) {
	regions, err := mgr.Stats()
	if err != nil {
		return Meta{}, fmt.Errorf("snapshot stats: %w", err)
	}
	meta := Meta{Name: name, Version: FormatVersion, CreatedAt: time.Now().UTC(), Regions: regions}

	header, err := json.Marshal(meta)
	if err != nil {
		return Meta{}, err
	}
	if err := codec.WriteFrame(w, []byte(headerKey), header); err != nil {
		return Meta{}, err
	}

	err = mgr.Pool().Scan(nil, nil, 0, func(k, v []byte) error {
		meta.Entries++
		return codec.WriteFrame(w, k, v)
	})
	if err != nil {
		return Meta{}, fmt.Errorf("snapshot scan: %w", err)
	}

	tail, err := json.Marshal(trailer{Entries: meta.Entries})
	if err != nil {
		return Meta{}, err
	}
	if err := codec.WriteFrame(w, []byte(trailerKey), tail); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Export writes a snapshot of mgr's pool to sink under a new name.
func Export(ctx context.Context, mgr *memory.Manager, sink Sink) (Meta, error) {
	if err := mgr.Checkpoint(); err != nil {
		return Meta{}, err
	}

	var buf bytes.Buffer
	meta, err := Write(&buf, mgr, NewName())
	if err != nil {
		return Meta{}, err
	}
	if err := sink.Put(ctx, meta.Name, buf.Bytes()); err != nil {
		return Meta{}, fmt.Errorf("store snapshot %s: %w", meta.Name, err)
	}
	return meta, nil
}

// Entry is one pool key and value carried by a snapshot.
type Entry struct {
	Key, Value []byte
}

// Read parses and verifies a whole snapshot stream without applying it.
func Read(r io.Reader) (Meta, []Entry, error) {
	var meta Meta

	first, err := codec.ReadFrame(r, maxFramePayload)
	if err != nil {
		return meta, nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if string(first.Key) != headerKey {
		return meta, nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	if err := json.Unmarshal(first.Value, &meta); err != nil {
		return meta, nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	if meta.Version != FormatVersion {
		return meta, nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, meta.Version)
	}

	var entries []Entry
	for {
		rec, err := codec.ReadFrame(r, maxFramePayload)
		if err == io.EOF {
			return meta, nil, fmt.Errorf("%w: missing trailer", ErrCorrupt)
		}
		if err != nil {
			return meta, nil, fmt.Errorf("%w: entry %d: %v", ErrCorrupt, len(entries), err)
		}
		if string(rec.Key) == trailerKey {
			var t trailer
			if err := json.Unmarshal(rec.Value, &t); err != nil {
				return meta, nil, fmt.Errorf("%w: trailer: %v", ErrCorrupt, err)
			}
			if t.Entries != len(entries) {
				return meta, nil, fmt.Errorf("%w: trailer says %d entries, read %d", ErrCorrupt, t.Entries, len(entries))
			}
			meta.Entries = len(entries)
			return meta, entries, nil
		}
		entries = append(entries, Entry{Key: rec.Key, Value: rec.Value})
	}
}

// Restore verifies the named snapshot and loads it into p, which must be empty.
// Nothing is written unless the whole snapshot verifies.
func Restore(ctx context.Context, sink Sink, name string, p pool.Pool) (Meta, error) {
	if name == "" {
		latest, err := Latest(ctx, sink)
		if err != nil {
			return Meta{}, err
		}
		name = latest
	}

	rc, err := sink.Get(ctx, name)
	if err != nil {
		return Meta{}, fmt.Errorf("fetch snapshot %s: %w", name, err)
	}
	defer rc.Close()

	meta, entries, err := Read(rc)
	if err != nil {
		return Meta{}, err
	}

	empty := true
	err = p.Scan(nil, nil, 1, func(_, _ []byte) error {
		empty = false
		return nil
	})
	if err != nil {
		return Meta{}, err
	}
	if !empty {
		return Meta{}, ErrNotEmpty
	}

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return Meta{}, err
		}
		if err := p.Set(e.Key, e.Value); err != nil {
			return Meta{}, fmt.Errorf("restore %s: %w", name, err)
		}
	}
	if err := p.Sync(); err != nil {
		return Meta{}, err
	}
	return meta, nil
}

// Latest returns the newest snapshot name in sink.
func Latest(ctx context.Context, sink Sink) (string, error) {
	names, err := sink.List(ctx)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNoSnapshots
	}
	return names[len(names)-1], nil
}
