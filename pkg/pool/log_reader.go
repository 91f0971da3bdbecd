package pool

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ssargent/marinedb/pkg/codec"
)

// logReader provides sequential access to frames in a pool file
type logReader struct {
	reader *bufio.Reader
	codec  *codec.RecordCodec
	offset int64
	size   int64 // total bytes available; bounds declared frame sizes
}

func newLogReader(r io.Reader, size int64) *logReader {
	return &logReader{
		reader: bufio.NewReader(r),
		codec:  codec.NewRecordCodec(),
		size:   size,
	}
}

// next reads the frame at the current offset. It returns io.EOF at a clean end
// of file and ErrCorruption for a torn or checksum-failing frame.
func (r *logReader) next() (*codec.Record, error) {
	header := make([]byte, codec.HeaderSize)
	if _, err := io.ReadFull(r.reader, header); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: torn header at %d", ErrCorruption, r.offset)
		}
		return nil, err
	}

	rec, err := r.codec.DecodeHeader(header)
	if err != nil {
		return nil, err
	}

	frameEnd := r.offset + codec.HeaderSize + int64(rec.KeySize) + int64(rec.ValueSize)
	if frameEnd > r.size {
		return nil, fmt.Errorf("%w: frame at %d overruns file", ErrCorruption, r.offset)
	}

	payload := make([]byte, int(rec.KeySize)+int(rec.ValueSize))
	if _, err := io.ReadFull(r.reader, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: torn frame at %d", ErrCorruption, r.offset)
		}
		return nil, err
	}
	rec.Key = payload[:rec.KeySize]
	rec.Value = payload[rec.KeySize:]

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w at %d: %v", ErrCorruption, r.offset, err)
	}

	r.offset += int64(rec.Size())
	return rec, nil
}

// Offset returns the position just past the last frame returned by next.
func (r *logReader) Offset() int64 {
	return r.offset
}

// readFrameAt reads and verifies the frame of the given size at offset.
func readFrameAt(f *os.File, c *codec.RecordCodec, offset int64, size uint32) (*codec.Record, error) {
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, offset); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: short read at %d", ErrCorruption, offset)
		}
		return nil, err
	}
	rec, err := c.Decode(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	return rec, nil
}
