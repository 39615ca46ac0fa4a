// Package frame is the binary envelope the store wraps around transit
// payloads. The envelope records which wire format produced the payload so
// any reader can decode it without out-of-band configuration.
package frame

import (
	"bytes"
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindOne   byte = 1
	kindBatch byte = 2
)

var (
	ErrCorrupt = errors.New("transit: corrupt stored entry")
	magic4     = [...]byte{'T', 'R', 'N', 'S'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// One: magic(4) | ver(1) | kind(1=one) | format(1) | vlen(u32 be) | payload(vlen)
func EncodeOne(format byte, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindOne)
	buf.WriteByte(format)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeOne(b []byte) (format byte, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 1 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindOne {
		return 0, nil, ErrCorrupt
	}
	format = b[6]
	off := 7

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off { // trailing bytes are corruption too
		return 0, nil, ErrCorrupt
	}
	return format, b[off:], nil
}

// Batch:
//
//	magic(4) | ver(1) | kind(2=batch) | format(1) | n(u32 be) | vlen(u32 be) | payload(vlen)
//
// The payload is a stream of n transit values written with one shared
// rolling cache, so repeated keys across items are sent once.
func EncodeBatch(format byte, n int, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(4 + 1 + 1 + 1 + 4 + 4 + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindBatch)
	buf.WriteByte(format)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(n))
	buf.Write(u4[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	buf.Write(payload)
	return buf.Bytes()
}

func DecodeBatch(b []byte) (format byte, n int, payload []byte, err error) {
	const hdr = 4 + 1 + 1 + 1 + 4 + 4
	if len(b) < hdr || !hasMagic(b) || b[4] != version || b[5] != kindBatch {
		return 0, 0, nil, ErrCorrupt
	}
	format = b[6]
	off := 7

	n = int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	if vlen < 0 || vlen != len(b)-off {
		return 0, 0, nil, ErrCorrupt
	}
	// an item needs at least one payload byte
	if n > vlen {
		return 0, 0, nil, ErrCorrupt
	}
	return format, n, b[off:], nil
}
