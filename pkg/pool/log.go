package pool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ssargent/marinedb/pkg/bptree"
	"github.com/ssargent/marinedb/pkg/codec"
)

const defaultBufferSize = 64 * 1024

// LogConfig holds configuration for the log pool
type LogConfig struct {
	FilePath      string        // Path to the pool file
	FsyncInterval time.Duration // How often to fsync (0 = every write)
	BufferSize    int           // Write buffer size
	Logger        *zap.Logger
}

// indexEntry locates the latest frame for a key
type indexEntry struct {
	Offset    int64
	Size      uint32
	Timestamp uint64
}

// RecoveryResult describes what OpenLog found when replaying the file.
type RecoveryResult struct {
	RecordsValidated int64
	BytesTruncated   int64
	FileSizeBefore   int64
	FileSizeAfter    int64
	RecoveryTime     time.Duration
}

// LogPool is an append-only framed log with an ordered in-memory index from key
// to frame offset. The index is rebuilt on open by replaying the file; a torn or
// corrupt tail is truncated away.
type LogPool struct {
	config   LogConfig
	writer   *logWriter
	file     *os.File // read handle
	codec    *codec.RecordCodec
	index    *bptree.BPlusTree[string, indexEntry]
	recovery *RecoveryResult
	logger   *zap.SugaredLogger
	mutex    sync.Mutex
	isOpen   bool
}

// OpenLog opens or creates the pool file at cfg.FilePath.
func OpenLog(cfg LogConfig) (*LogPool, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	lp := &LogPool{
		config: cfg,
		codec:  codec.NewRecordCodec(),
		index:  bptree.NewBPlusTree[string, indexEntry](bptree.DefaultOrder),
		logger: cfg.Logger.Sugar(),
	}

	result, err := lp.replay()
	if err != nil {
		return nil, err
	}
	lp.recovery = result

	if err := lp.openFiles(); err != nil {
		return nil, err
	}

	lp.logger.Infow("log pool opened",
		"path", cfg.FilePath,
		"keys", lp.index.Len(),
		"records", result.RecordsValidated,
		"truncated_bytes", result.BytesTruncated,
		"recovery_time", result.RecoveryTime,
	)
	lp.isOpen = true
	return lp, nil
}

func (lp *LogPool) openFiles() error {
	writer, err := newLogWriter(lp.config.FilePath, lp.config.FsyncInterval, lp.config.BufferSize)
	if err != nil {
		return err
	}
	file, err := os.Open(lp.config.FilePath)
	if err != nil {
		_ = writer.Close()
		return err
	}
	lp.writer = writer
	lp.file = file
	return nil
}

// replay rebuilds the index from the file and truncates anything after the last
// valid frame.
func (lp *LogPool) replay() (*RecoveryResult, error) {
	start := time.Now()
	result := &RecoveryResult{}

	f, err := os.Open(lp.config.FilePath)
	if err != nil {
		if os.IsNotExist(err) {
			result.RecoveryTime = time.Since(start)
			return result, nil
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	result.FileSizeBefore = info.Size()

	reader := newLogReader(f, info.Size())
	for {
		offset := reader.Offset()
		rec, err := reader.next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrCorruption) {
			lp.logger.Warnw("corrupt frame in pool file", "offset", offset, "error", err)
			break
		}
		if err != nil {
			_ = f.Close()
			return nil, err
		}

		result.RecordsValidated++
		if rec.IsTombstone() {
			lp.index.Delete(string(rec.Key))
			continue
		}
		lp.index.Insert(string(rec.Key), indexEntry{
			Offset:    offset,
			Size:      uint32(rec.Size()),
			Timestamp: rec.Timestamp,
		})
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	valid := reader.Offset()
	result.FileSizeAfter = valid
	if valid < result.FileSizeBefore {
		if err := os.Truncate(lp.config.FilePath, valid); err != nil {
			return nil, fmt.Errorf("truncate pool file: %w", err)
		}
		result.BytesTruncated = result.FileSizeBefore - valid
		lp.logger.Warnw("truncated pool file", "valid_size", valid, "dropped_bytes", result.BytesTruncated)
	}

	result.RecoveryTime = time.Since(start)
	return result, nil
}

// Recovery reports what happened while opening the pool.
func (lp *LogPool) Recovery() RecoveryResult {
	return *lp.recovery
}

func (lp *LogPool) Get(key []byte) ([]byte, error) {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return nil, ErrClosed
	}

	entry, ok := lp.index.Search(string(key))
	if !ok {
		return nil, ErrNotFound
	}
	rec, err := lp.readEntry(entry)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

func (lp *LogPool) readEntry(entry indexEntry) (*codec.Record, error) {
	if err := lp.writer.flush(); err != nil {
		return nil, err
	}
	return readFrameAt(lp.file, lp.codec, entry.Offset, entry.Size)
}

func (lp *LogPool) Set(key, value []byte) error {
	if err := checkKV(key, value); err != nil {
		return err
	}

	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return ErrClosed
	}

	rec := codec.NewRecord(key, value)
	offset, size, err := lp.writer.append(rec)
	if err != nil {
		return err
	}
	lp.index.Insert(string(key), indexEntry{Offset: offset, Size: size, Timestamp: rec.Timestamp})
	return nil
}

// Delete appends a tombstone when key is live.
func (lp *LogPool) Delete(key []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}

	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return ErrClosed
	}
	if _, ok := lp.index.Search(string(key)); !ok {
		return nil
	}

	if _, _, err := lp.writer.append(codec.NewTombstone(key)); err != nil {
		return err
	}
	lp.index.Delete(string(key))
	return nil
}

func (lp *LogPool) Scan(start, end []byte, limit int, fn func(key, value []byte) error) error {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return ErrClosed
	}

	var (
		n   int
		err error
	)
	lp.index.Ascend(string(start), func(k string, entry indexEntry) bool {
		key := []byte(k)
		if !beforeEnd(key, end) {
			return false
		}
		var rec *codec.Record
		if rec, err = lp.readEntry(entry); err != nil {
			return false
		}
		if err = fn(key, rec.Value); err != nil {
			return false
		}
		n++
		return limit <= 0 || n < limit
	})
	return err
}

func (lp *LogPool) Sync() error {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return ErrClosed
	}
	return lp.writer.Sync()
}

// renameFile swaps the compacted file into place. Tests replace it.
var renameFile = os.Rename

// Compact rewrites the file with only the live frame of each key, keeping
// original timestamps.
func (lp *LogPool) Compact() error {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return ErrClosed
	}
	if err := lp.writer.Sync(); err != nil {
		return err
	}

	before := lp.writer.Size()
	tmpPath := lp.config.FilePath + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	w := bufio.NewWriterSize(tmp, lp.config.BufferSize)
	fresh := bptree.NewBPlusTree[string, indexEntry](bptree.DefaultOrder)
	var offset int64
	lp.index.AscendAll(func(k string, entry indexEntry) bool {
		var rec *codec.Record
		if rec, err = readFrameAt(lp.file, lp.codec, entry.Offset, entry.Size); err != nil {
			return false
		}
		frame := lp.codec.EncodeRecord(rec)
		if _, err = w.Write(frame); err != nil {
			return false
		}
		fresh.Insert(k, indexEntry{Offset: offset, Size: uint32(len(frame)), Timestamp: rec.Timestamp})
		offset += int64(len(frame))
		return true
	})
	if err != nil {
		cleanup()
		return fmt.Errorf("compact: %w", err)
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if err := lp.closeFiles(); err != nil {
		lp.isOpen = false
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, lp.config.FilePath); err != nil {
		_ = os.Remove(tmpPath)
		// The original file is untouched and still matches the old index.
		if rerr := lp.openFiles(); rerr != nil {
			lp.isOpen = false
			return errors.Join(err, rerr)
		}
		return fmt.Errorf("compact: %w", err)
	}
	if err := lp.openFiles(); err != nil {
		lp.isOpen = false
		return err
	}
	lp.index = fresh

	lp.logger.Infow("log pool compacted", "size_before", before, "size_after", offset, "keys", fresh.Len())
	return nil
}

// Stats returns pool statistics
func (lp *LogPool) Stats() Stats {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return Stats{}
	}
	return Stats{Keys: lp.index.Len(), DataSize: lp.writer.Size()}
}

func (lp *LogPool) Close() error {
	lp.mutex.Lock()
	defer lp.mutex.Unlock()

	if !lp.isOpen {
		return nil
	}
	lp.isOpen = false
	return lp.closeFiles()
}

func (lp *LogPool) closeFiles() error {
	werr := lp.writer.Close()
	rerr := lp.file.Close()
	return errors.Join(werr, rerr)
}
