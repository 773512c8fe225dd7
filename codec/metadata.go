// Copyright (c) 2024 LevelGraph Go Contributors
//
// Permission is hereby granted, free of charge, to any person
// obtaining a copy of this software and associated documentation
// files (the "Software"), to deal in the Software without
// restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the
// Software is furnished to do so, subject to the following
// conditions:
//
// The above copyright notice and this permission notice shall be
// included in all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package codec

import (
	"encoding/binary"
	"fmt"
)

// Metadata is the per-index record written at the end of every Build:
// dimensions, the distance variant's name, the full item set, the current
// entry points, and the max populated layer.
type Metadata struct {
	Dimensions  uint32
	Distance    string
	Items       Set
	EntryPoints Set
	MaxLevel    uint8
}

// EncodeMetadata serializes m as:
//
//	dimensions:u32 ||
//	len(distance_name):u16 || distance_name:ASCII ||
//	len(item_set):u32 || item_set:compact_ordered_set ||
//	len(entry_points):u32 || entry_points:compact_ordered_set ||
//	max_level:u8
//
// The two set fields are length-prefixed, the same convention used for
// distance_name, since they sit back-to-back and the roaring wire format is
// not self-terminating when concatenated.
func EncodeMetadata(m Metadata) []byte {
	items := m.Items.Encode()
	eps := m.EntryPoints.Encode()

	size := 4 + 2 + len(m.Distance) + 4 + len(items) + 4 + len(eps) + 1
	buf := make([]byte, size)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], m.Dimensions)
	off += 4

	binary.LittleEndian.PutUint16(buf[off:], uint16(len(m.Distance)))
	off += 2
	copy(buf[off:], m.Distance)
	off += len(m.Distance)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(items)))
	off += 4
	copy(buf[off:], items)
	off += len(items)

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(eps)))
	off += 4
	copy(buf[off:], eps)
	off += len(eps)

	buf[off] = m.MaxLevel
	return buf
}

// DecodeMetadata parses a Metadata record written by EncodeMetadata.
func DecodeMetadata(b []byte) (Metadata, error) {
	var m Metadata
	if len(b) < 4+2 {
		return m, fmt.Errorf("codec: metadata record too short")
	}
	off := 0
	m.Dimensions = binary.LittleEndian.Uint32(b[off:])
	off += 4

	nameLen := int(binary.LittleEndian.Uint16(b[off:]))
	off += 2
	if len(b) < off+nameLen+4 {
		return m, fmt.Errorf("codec: metadata record truncated (distance name)")
	}
	m.Distance = string(b[off : off+nameLen])
	off += nameLen

	itemsLen := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+itemsLen+4 {
		return m, fmt.Errorf("codec: metadata record truncated (item set)")
	}
	items, err := DecodeSet(b[off : off+itemsLen])
	if err != nil {
		return m, fmt.Errorf("codec: decoding metadata item set: %w", err)
	}
	m.Items = items
	off += itemsLen

	epsLen := int(binary.LittleEndian.Uint32(b[off:]))
	off += 4
	if len(b) < off+epsLen+1 {
		return m, fmt.Errorf("codec: metadata record truncated (entry points)")
	}
	eps, err := DecodeSet(b[off : off+epsLen])
	if err != nil {
		return m, fmt.Errorf("codec: decoding metadata entry points: %w", err)
	}
	m.EntryPoints = eps
	off += epsLen

	m.MaxLevel = b[off]
	return m, nil
}
