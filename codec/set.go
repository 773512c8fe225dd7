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

// Package codec implements the on-disk record encoding: the tagged Item/
// Links union, the little-endian vector codec, and the compact ordered
// integer set (backed by a roaring bitmap) used for item sets, entry
// points, and neighbor link lists.
package codec

import (
	"bytes"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a compact ordered set of 32-bit item ids, serialized in roaring
// bitmap's standard portable wire format so it round-trips identically
// regardless of host architecture.
type Set struct {
	bm *roaring.Bitmap
}

// NewSet returns an empty Set.
func NewSet() Set {
	return Set{bm: roaring.New()}
}

// SetFromSlice builds a Set from a slice of ids.
func SetFromSlice(ids []uint32) Set {
	return Set{bm: roaring.BitmapOf(ids...)}
}

// DecodeSet parses a Set from its portable wire format. An empty input
// decodes to an empty set.
func DecodeSet(b []byte) (Set, error) {
	bm := roaring.New()
	if len(b) > 0 {
		if err := bm.UnmarshalBinary(b); err != nil {
			return Set{}, err
		}
	}
	return Set{bm: bm}, nil
}

// Encode serializes the set to roaring's portable wire format.
func (s Set) Encode() []byte {
	if s.bm == nil {
		return nil
	}
	buf := new(bytes.Buffer)
	// MarshalBinary never errors for an in-memory roaring.Bitmap.
	b, _ := s.bm.MarshalBinary()
	buf.Write(b)
	return buf.Bytes()
}

// Add inserts id into the set.
func (s Set) Add(id uint32) { s.bm.Add(id) }

// Remove deletes id from the set, if present.
func (s Set) Remove(id uint32) { s.bm.Remove(id) }

// Contains reports whether id is a member.
func (s Set) Contains(id uint32) bool { return s.bm.Contains(id) }

// Len returns the number of members.
func (s Set) Len() int { return int(s.bm.GetCardinality()) }

// ToSlice returns the members in ascending order.
func (s Set) ToSlice() []uint32 { return s.bm.ToArray() }

// Clone returns an independent copy.
func (s Set) Clone() Set { return Set{bm: s.bm.Clone()} }

// Union returns a new Set containing the members of both s and other.
func (s Set) Union(other Set) Set {
	return Set{bm: roaring.Or(s.bm, other.bm)}
}

// Intersect returns a new Set containing only members present in both.
func (s Set) Intersect(other Set) Set {
	return Set{bm: roaring.And(s.bm, other.bm)}
}

// Difference returns a new Set containing members of s not present in other.
func (s Set) Difference(other Set) Set {
	return Set{bm: roaring.AndNot(s.bm, other.bm)}
}

// IsEmpty reports whether the set has no members.
func (s Set) IsEmpty() bool { return s.bm.IsEmpty() }
