// Package customdata implements the tag blob format the host attaches to
// scene objects: little-endian (uint32 id, uint32 length, payload) entries
// back to back with no padding, trailer or checksum. The format and the role
// field IDs are a persisted convention shared with the scene-authoring tools,
// so encode/decode must stay bit-compatible.
package customdata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
)

// ErrFormat reports a malformed or truncated tag blob.
var ErrFormat = errors.New("customdata: format error")

// Record is the decoded form of one object's tag blob: field ID to payload.
// It is rebuilt from the raw blob on every query; tags may change between
// simulation ticks.
type Record map[uint32][]byte

// Decode parses a raw tag blob. A repeated field ID keeps the last payload.
// A declared payload length that exceeds the remaining buffer is a format
// error rather than an out-of-bounds read.
func Decode(buf []byte) (Record, error) {
	rec := make(Record)

	for len(buf) > 0 {
		id, rest, err := readUint32(buf)
		if err != nil {
			return nil, err
		}
		length, rest, err := readUint32(rest)
		if err != nil {
			return nil, err
		}
		if uint64(length) > uint64(len(rest)) {
			return nil, fmt.Errorf("%w: field %d declares %d bytes, %d remain",
				ErrFormat, id, length, len(rest))
		}
		payload := make([]byte, length)
		copy(payload, rest[:length])
		rec[id] = payload
		buf = rest[length:]
	}

	return rec, nil
}

// Encode serializes a record back to the wire format. Fields are written in
// ascending ID order for a reproducible encoding.
func Encode(rec Record) []byte {
	ids := make([]uint32, 0, len(rec))
	for id := range rec {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	size := 0
	for _, id := range ids {
		size += 8 + len(rec[id])
	}

	buf := make([]byte, 0, size)
	for _, id := range ids {
		buf = binary.LittleEndian.AppendUint32(buf, id)
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(rec[id])))
		buf = append(buf, rec[id]...)
	}
	return buf
}

// HasField reports whether the record carries the field. The payload is not
// interpreted.
func (r Record) HasField(id uint32) bool {
	_, ok := r[id]
	return ok
}

func readUint32(buf []byte) (uint32, []byte, error) {
	if len(buf) < 4 {
		return 0, nil, fmt.Errorf("%w: need 4 bytes, have %d", ErrFormat, len(buf))
	}
	return binary.LittleEndian.Uint32(buf[:4]), buf[4:], nil
}
