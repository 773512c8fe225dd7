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
	"math"
)

// Leading tag byte distinguishing the two record shapes that share one
// value codec. Fixed and must never change; decoders refuse unknown tags
// rather than guessing.
const (
	TagItem  byte = 0x00
	TagLinks byte = 0x01
)

// ErrUnknownTag is returned by Decode when the leading byte of a record is
// neither TagItem nor TagLinks.
type ErrUnknownTag struct{ Tag byte }

func (e ErrUnknownTag) Error() string {
	return fmt.Sprintf("codec: unrecognized node tag 0x%02x", e.Tag)
}

// Item is a stored vector plus its distance-specific header.
type Item struct {
	Header []byte // opaque POD header bytes, interpreted by the Distance
	Vector []float32
}

// Links is a stored neighbor set for one (item, layer).
type Links struct {
	Neighbors Set
}

// EncodeItem serializes an Item record: tag || header || vector. If packed
// is false (the default float codecs), the vector is little-endian float32s
// with no padding between header and vector bytes. If packed is true (the
// binary-quantized variants), the vector is one bit per dimension, MSB
// first within each byte, rounded up to a whole byte: bit=1 if the
// dimension's value is positive, bit=0 otherwise.
func EncodeItem(header []byte, vector []float32, packed bool) []byte {
	if packed {
		return encodeItemPacked(header, vector)
	}
	buf := make([]byte, 1+len(header)+4*len(vector))
	buf[0] = TagItem
	off := 1
	copy(buf[off:], header)
	off += len(header)
	for _, f := range vector {
		binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(f))
		off += 4
	}
	return buf
}

func encodeItemPacked(header []byte, vector []float32) []byte {
	nbytes := (len(vector) + 7) / 8
	buf := make([]byte, 1+len(header)+nbytes)
	buf[0] = TagItem
	off := 1
	copy(buf[off:], header)
	off += len(header)
	for i, f := range vector {
		if f > 0 {
			buf[off+i/8] |= 1 << uint(7-i%8)
		}
	}
	return buf
}

// EncodeLinks serializes a Links record: tag || compact_ordered_set_bytes.
func EncodeLinks(neighbors Set) []byte {
	enc := neighbors.Encode()
	buf := make([]byte, 1+len(enc))
	buf[0] = TagLinks
	copy(buf[1:], enc)
	return buf
}

// DecodeItem parses an Item record whose header is headerLen bytes long and
// whose vector has dim dimensions. The caller supplies headerLen because it
// is distance-specific (and thus not itself encoded) and dim plus packed
// because a packed record's byte length alone does not determine how many
// trailing padding bits it carries: the Metadata record's distance_name
// tells the caller which Distance — and hence which header shape and vector
// layout — to expect.
func DecodeItem(b []byte, headerLen int, dim int, packed bool) (Item, error) {
	if len(b) < 1 {
		return Item{}, fmt.Errorf("codec: empty item record")
	}
	if b[0] != TagItem {
		return Item{}, ErrUnknownTag{Tag: b[0]}
	}
	b = b[1:]
	if len(b) < headerLen {
		return Item{}, fmt.Errorf("codec: item record too short for header (%d < %d)", len(b), headerLen)
	}
	header := append([]byte(nil), b[:headerLen]...)
	rest := b[headerLen:]

	if packed {
		nbytes := (dim + 7) / 8
		if len(rest) != nbytes {
			return Item{}, fmt.Errorf("codec: packed item vector has %d bytes, want %d for dim %d", len(rest), nbytes, dim)
		}
		vector := make([]float32, dim)
		for i := 0; i < dim; i++ {
			if rest[i/8]&(1<<uint(7-i%8)) != 0 {
				vector[i] = 1
			} else {
				vector[i] = -1
			}
		}
		return Item{Header: header, Vector: vector}, nil
	}

	if len(rest) != dim*4 {
		return Item{}, fmt.Errorf("codec: item vector has %d bytes, want %d for dim %d", len(rest), dim*4, dim)
	}
	vector := make([]float32, dim)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(rest[i*4:]))
	}
	return Item{Header: header, Vector: vector}, nil
}

// DecodeLinks parses a Links record.
func DecodeLinks(b []byte) (Links, error) {
	if len(b) < 1 {
		return Links{}, fmt.Errorf("codec: empty links record")
	}
	if b[0] != TagLinks {
		return Links{}, ErrUnknownTag{Tag: b[0]}
	}
	set, err := DecodeSet(b[1:])
	if err != nil {
		return Links{}, fmt.Errorf("codec: decoding links neighbor set: %w", err)
	}
	return Links{Neighbors: set}, nil
}

// PeekTag returns the leading tag byte of a raw record without decoding the
// rest, so a caller iterating over mixed records (e.g. during Clear) can
// dispatch without a full decode.
func PeekTag(b []byte) (byte, error) {
	if len(b) < 1 {
		return 0, fmt.Errorf("codec: empty record")
	}
	return b[0], nil
}
