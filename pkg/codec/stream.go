package codec

import (
	"errors"
	"fmt"
	"io"
)

// ErrFrameTooLarge is returned by ReadFrame for a frame above the caller's bound.
var ErrFrameTooLarge = errors.New("codec: frame too large")

// ReadFrame reads and verifies one frame from r. It returns io.EOF only when r
// is exhausted exactly on a frame boundary. Frames whose key plus value exceed
// maxPayload are rejected before any payload is read.
func ReadFrame(r io.Reader, maxPayload int) (*Record, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: partial header", ErrShortFrame)
		}
		return nil, err
	}

	c := RecordCodec{}
	rec, err := c.DecodeHeader(header)
	if err != nil {
		return nil, err
	}
	payload := uint64(rec.KeySize) + uint64(rec.ValueSize)
	if payload > uint64(maxPayload) {
		return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, payload, maxPayload)
	}

	buf := make([]byte, payload)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: partial payload", ErrShortFrame)
		}
		return nil, err
	}
	rec.Key = buf[:rec.KeySize]
	rec.Value = buf[rec.KeySize:]

	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// WriteFrame encodes key and value and writes the frame to w.
func WriteFrame(w io.Writer, key, value []byte) error {
	frame, err := NewRecordCodec().Encode(key, value)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
