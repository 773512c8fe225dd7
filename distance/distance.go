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

// Package distance implements the small, sealed capability set the graph
// builder and reader use to compare vectors. Every variant supplies the same
// four operations (Name, NewHeader, Dist, Norm); none of them are
// required to be true metrics, only to agree that smaller is closer and that
// a vector's distance to itself is approximately zero.
package distance

import "math"

// cosineEpsilon guards the cosine formula's division against a
// near-zero product of norms, matching the precomputed-norm header style
// the graph builder relies on for every variant.
const cosineEpsilon = 1e-30

// Header carries any per-vector precomputed quantity a Distance needs (e.g.
// the Euclidean norm for Cosine). Headers are POD and travel alongside the
// vector bytes in an Item record.
type Header struct {
	Norm float32
}

// HeaderLen is the encoded size of a Header in bytes. Every registered
// variant's header is a single POD float32, so this is fixed across
// variants; a decoder needs it to know where an Item record's header ends
// and its vector bytes begin (see codec.DecodeItem).
const HeaderLen = 4

// Distance is the capability set a graph or reader needs to compare two
// vectors. Implementations must be safe for concurrent use (they hold no
// mutable state) since the same Distance value is shared across build
// workers.
type Distance interface {
	// Name identifies the distance on disk (stored in Metadata) and must
	// never change for a released variant.
	Name() string

	// NewHeader computes the per-vector header stored alongside an Item.
	NewHeader(vector []float32) Header

	// Dist returns a non-negative distance between a and b; smaller means
	// closer. ha/hb are the precomputed headers for a and b respectively.
	Dist(a []float32, ha Header, b []float32, hb Header) float32

	// Norm returns the header's precomputed norm (or recomputes it if the
	// variant doesn't use one).
	Norm(h Header) float32
}

// byName holds every registered variant, keyed by its on-disk Name(). It is
// populated by init() in each variant's source file and never mutated after
// package initialization, so lookups need no lock.
var byName = map[string]Distance{}

func register(d Distance) { byName[d.Name()] = d }

// Lookup returns the registered Distance for name, or false if unknown.
// Used by Metadata loading to resolve the distance_name field back to an
// implementation without any open-ended dynamic dispatch.
func Lookup(name string) (Distance, bool) {
	d, ok := byName[name]
	return d, ok
}

// Packed reports whether the named variant stores its vectors bit-packed
// (one bit per dimension) rather than as raw little-endian float32s. Used
// by the codec package to choose an Item record's on-disk vector layout
// without growing the Distance capability set beyond its four methods.
func Packed(name string) bool {
	return name == "binary_cosine" || name == "binary_hamming"
}

func dotProduct(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dotProduct(v, v))))
}
