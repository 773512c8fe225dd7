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

// Package hannoygo implements a durable, incrementally-rebuilt Hierarchical
// Navigable Small World (HNSW) approximate nearest neighbor index over a
// memory-mapped ordered key-value store.
package hannoygo

import "encoding/binary"

// Mode partitions the records of one index. Fixed, injective, and kept
// stable across versions.
type Mode uint8

const (
	ModeItem     Mode = 0
	ModeLinks    Mode = 1
	ModeUpdated  Mode = 2
	ModeMetadata Mode = 3
	ModeVersion  Mode = 4
)

func (m Mode) String() string {
	switch m {
	case ModeItem:
		return "Item"
	case ModeLinks:
		return "Links"
	case ModeUpdated:
		return "Updated"
	case ModeMetadata:
		return "Metadata"
	case ModeVersion:
		return "Version"
	default:
		return "Unknown"
	}
}

// keyLen is the packed size of (index_id u16, mode u8, item_id u32, layer u8).
const keyLen = 2 + 1 + 4 + 1

// key packs (index_id, mode, item_id, layer) big-endian so that lexicographic
// byte comparison matches field-order comparison, and so a shorter prefix
// (e.g. just index_id, or index_id+mode) selects a contiguous range.
func key(indexID uint16, mode Mode, itemID uint32, layer uint8) []byte {
	buf := make([]byte, keyLen)
	binary.BigEndian.PutUint16(buf[0:2], indexID)
	buf[2] = byte(mode)
	binary.BigEndian.PutUint32(buf[3:7], itemID)
	buf[7] = layer
	return buf
}

// itemKey is the key for an index's Item or Updated-marker record.
func itemKey(indexID uint16, mode Mode, itemID uint32) []byte {
	return key(indexID, mode, itemID, 0)
}

// linksKey is the key for an index's Links record at a given layer.
func linksKey(indexID uint16, itemID uint32, layer uint8) []byte {
	return key(indexID, ModeLinks, itemID, layer)
}

// metaKey and versionKey use sentinel zero values for the unused item/layer
// fields.
func metaKey(indexID uint16) []byte    { return key(indexID, ModeMetadata, 0, 0) }
func versionKey(indexID uint16) []byte { return key(indexID, ModeVersion, 0, 0) }

// prefixIndex returns the range prefix selecting every record of one index.
func prefixIndex(indexID uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, indexID)
	return buf
}

// prefixMode returns the range prefix selecting every record of one index
// under one mode (e.g. all Links records, or all Item records).
func prefixMode(indexID uint16, mode Mode) []byte {
	buf := make([]byte, 3)
	binary.BigEndian.PutUint16(buf[0:2], indexID)
	buf[2] = byte(mode)
	return buf
}

// decodeKey unpacks a raw key back into its fields. Panics if k is not
// exactly keyLen bytes, since every key this package writes is fixed-width.
func decodeKey(k []byte) (indexID uint16, mode Mode, itemID uint32, layer uint8) {
	indexID = binary.BigEndian.Uint16(k[0:2])
	mode = Mode(k[2])
	itemID = binary.BigEndian.Uint32(k[3:7])
	layer = k[7]
	return
}

// itemLinksPrefix returns the range prefix selecting every Links record of
// one item across all its layers (used to drop a deleted item's link
// records at every level during commit).
func itemLinksPrefix(indexID uint16, itemID uint32) []byte {
	buf := make([]byte, 7)
	binary.BigEndian.PutUint16(buf[0:2], indexID)
	buf[2] = byte(ModeLinks)
	binary.BigEndian.PutUint32(buf[3:7], itemID)
	return buf
}

// prefixUpperBound returns the exclusive upper bound of the range of keys
// sharing prefix p, for use as a bbolt cursor stop condition. Returns nil if
// p is all 0xff (the range extends to the end of the bucket).
func prefixUpperBound(p []byte) []byte {
	end := make([]byte, len(p))
	copy(end, p)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
