package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"time"
)

// HeaderSize is the fixed frame prefix: CRC32(4) + KeySize(4) + ValueSize(4) + Timestamp(8).
const HeaderSize = 20

var (
	// ErrShortFrame is returned when the buffer cannot hold the declared frame.
	ErrShortFrame = errors.New("codec: frame truncated")
	// ErrChecksum is returned when a frame's CRC32 does not match its contents.
	ErrChecksum = errors.New("codec: checksum mismatch")
)

// Record is one framed pool entry. An empty Value marks a tombstone.
type Record struct {
	CRC32     uint32 // CRC32 checksum for integrity
	KeySize   uint32 // Size of the key in bytes
	ValueSize uint32 // Size of the value in bytes
	Timestamp uint64 // Unix timestamp in nanoseconds
	Key       []byte
	Value     []byte
}

// RecordCodec handles serialization and deserialization of frames
type RecordCodec struct{}

// NewRecordCodec creates a new record codec instance
func NewRecordCodec() *RecordCodec {
	return &RecordCodec{}
}

// Encode frames a key/value pair stamped with the current time.
func (c *RecordCodec) Encode(key, value []byte) ([]byte, error) {
	r, err := newRecordChecked(key, value)
	if err != nil {
		return nil, err
	}
	return c.EncodeRecord(r), nil
}

// EncodeRecord frames r as-is, keeping its timestamp. The checksum is recomputed.
// Format: [CRC32(4)][KeySize(4)][ValueSize(4)][Timestamp(8)][Key][Value]
func (c *RecordCodec) EncodeRecord(r *Record) []byte {
	r.KeySize = uint32(len(r.Key))
	r.ValueSize = uint32(len(r.Value))
	r.CRC32 = r.calculateCRC32()

	buf := make([]byte, r.Size())
	binary.LittleEndian.PutUint32(buf[0:], r.CRC32)
	binary.LittleEndian.PutUint32(buf[4:], r.KeySize)
	binary.LittleEndian.PutUint32(buf[8:], r.ValueSize)
	binary.LittleEndian.PutUint64(buf[12:], r.Timestamp)
	copy(buf[HeaderSize:], r.Key)
	copy(buf[HeaderSize+int(r.KeySize):], r.Value)
	return buf
}

// DecodeHeader reads the fixed prefix and returns a Record with empty payload slices.
func (c *RecordCodec) DecodeHeader(header []byte) (*Record, error) {
	if len(header) < HeaderSize {
		return nil, fmt.Errorf("%w: header needs %d bytes, have %d", ErrShortFrame, HeaderSize, len(header))
	}
	return &Record{
		CRC32:     binary.LittleEndian.Uint32(header[0:4]),
		KeySize:   binary.LittleEndian.Uint32(header[4:8]),
		ValueSize: binary.LittleEndian.Uint32(header[8:12]),
		Timestamp: binary.LittleEndian.Uint64(header[12:20]),
	}, nil
}

// Decode parses a complete frame. It does not verify the checksum; call Validate.
func (c *RecordCodec) Decode(data []byte) (*Record, error) {
	r, err := c.DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	end := uint64(HeaderSize) + uint64(r.KeySize) + uint64(r.ValueSize)
	if uint64(len(data)) < end {
		return nil, fmt.Errorf("%w: %d < %d", ErrShortFrame, len(data), end)
	}

	keyEnd := HeaderSize + int(r.KeySize)
	r.Key = data[HeaderSize:keyEnd]
	r.Value = data[keyEnd:int(end)]
	return r, nil
}

// Validate checks the integrity of a record using CRC32
func (r *Record) Validate() error {
	if sum := r.calculateCRC32(); r.CRC32 != sum {
		return fmt.Errorf("%w: %d != %d", ErrChecksum, r.CRC32, sum)
	}
	return nil
}

// Size returns the encoded length of the frame.
func (r *Record) Size() int {
	return HeaderSize + len(r.Key) + len(r.Value)
}

// IsTombstone reports whether the frame records a deletion.
func (r *Record) IsTombstone() bool {
	return len(r.Value) == 0
}

// NewRecord creates a new record with current timestamp
func NewRecord(key, value []byte) *Record {
	r, err := newRecordChecked(key, value)
	if err != nil {
		panic(err)
	}
	return r
}

// NewTombstone creates a deletion marker for key.
func NewTombstone(key []byte) *Record {
	return NewRecord(key, nil)
}

func newRecordChecked(key, value []byte) (*Record, error) {
	if uint64(len(key)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("codec: key too large (%d bytes)", len(key))
	}
	if uint64(len(value)) > uint64(^uint32(0)) {
		return nil, fmt.Errorf("codec: value too large (%d bytes)", len(value))
	}
	return &Record{
		KeySize:   uint32(len(key)),
		ValueSize: uint32(len(value)),
		Timestamp: uint64(time.Now().UnixNano()),
		Key:       key,
		Value:     value,
	}, nil
}

// calculateCRC32 covers KeySize, ValueSize, Timestamp, Key and Value.
func (r *Record) calculateCRC32() uint32 {
	var hdr [16]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(len(r.Key)))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(r.Value)))
	binary.LittleEndian.PutUint64(hdr[8:], r.Timestamp)

	crc := crc32.NewIEEE()
	crc.Write(hdr[:])
	crc.Write(r.Key)
	crc.Write(r.Value)
	return crc.Sum32()
}
