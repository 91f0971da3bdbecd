package pool

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ssargent/marinedb/pkg/codec"
)

// logWriter handles append-only writes to the pool file
type logWriter struct {
	file       *os.File
	writer     *bufio.Writer
	codec      *codec.RecordCodec
	fsyncTimer *time.Timer
	interval   time.Duration
	mutex      sync.Mutex
	offset     int64 // Current write offset
	dirty      bool  // buffered bytes not yet flushed to the file
}

func newLogWriter(path string, interval time.Duration, bufferSize int) (*logWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	w := &logWriter{
		file:     file,
		writer:   bufio.NewWriterSize(file, bufferSize),
		codec:    codec.NewRecordCodec(),
		interval: interval,
		offset:   offset,
	}

	if interval > 0 {
		w.fsyncTimer = time.AfterFunc(interval, func() {
			w.mutex.Lock()
			defer w.mutex.Unlock()
			_ = w.sync() // Ignore error in timer callback
		})
	}

	return w, nil
}

// append writes r and returns the offset and size of its frame.
func (w *logWriter) append(r *codec.Record) (int64, uint32, error) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	data := w.codec.EncodeRecord(r)
	n, err := w.writer.Write(data)
	if err != nil {
		return 0, 0, err
	}

	recordOffset := w.offset
	w.offset += int64(n)
	w.dirty = true

	if w.interval == 0 {
		if err := w.sync(); err != nil {
			return 0, 0, err
		}
	} else if w.fsyncTimer != nil {
		w.fsyncTimer.Reset(w.interval)
	}

	return recordOffset, uint32(n), nil
}

// flush pushes buffered frames to the file so readers can see them.
func (w *logWriter) flush() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	if !w.dirty {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		return err
	}
	w.dirty = false
	return nil
}

func (w *logWriter) Sync() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.sync()
}

func (w *logWriter) sync() error {
	if err := w.writer.Flush(); err != nil {
		return err
	}
	w.dirty = false
	return w.file.Sync()
}

func (w *logWriter) Close() error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.fsyncTimer != nil {
		w.fsyncTimer.Stop()
	}

	if err := w.sync(); err != nil {
		_ = w.file.Close()
		return err
	}
	return w.file.Close()
}

func (w *logWriter) Size() int64 {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.offset
}
