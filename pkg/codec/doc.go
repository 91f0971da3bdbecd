// Package codec provides the binary frame format shared by the log pool and by
// snapshot streams.
//
// # Frame Format
//
//	[CRC32(4)][KeySize(4)][ValueSize(4)][Timestamp(8)][Key][Value]
//
// All integers are little-endian. The total frame size is HeaderSize (20) plus
// the key and value lengths. An empty value is a tombstone: the key was deleted
// at Timestamp.
//
// The CRC32 (IEEE) covers every field except itself, so corruption anywhere in
// the header or payload is detected by Record.Validate. Decode only checks that
// the buffer is long enough for the declared sizes; callers replaying a log
// validate each frame and stop at the first bad one.
//
// Usage:
//
//	c := codec.NewRecordCodec()
//	frame, err := c.Encode(key, value)
//	...
//	rec, err := c.Decode(frame)
//	if err == nil {
//	    err = rec.Validate()
//	}
//
// RecordCodec holds no state and is safe for concurrent use.
package codec
