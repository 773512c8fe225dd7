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

package distance

// cosine is the cosine-distance variant. It is not a metric (it does not
// satisfy the triangle inequality as cleanly as Euclidean), which the graph
// algorithms do not require.
type cosine struct{}

// Cosine is the registered Cosine distance variant. Distance is
// (1 - cos(a, b)) / 2, mapping similarity in [-1, 1] to a non-negative
// distance in [0, 1], guarded against a near-zero product of norms.
var Cosine Distance = cosine{}

func init() { register(Cosine) }

func (cosine) Name() string { return "cosine" }

func (cosine) NewHeader(vector []float32) Header {
	return Header{Norm: norm(vector)}
}

func (cosine) Dist(a []float32, ha Header, b []float32, hb Header) float32 {
	if ha.Norm == 0 && hb.Norm == 0 {
		// Two zero vectors are identical: distance zero.
		return 0
	}
	denom := ha.Norm * hb.Norm
	if denom < cosineEpsilon {
		// One vector is (numerically) zero: undefined direction, treat
		// as maximally distant rather than dividing by ~0.
		return 1
	}
	cos := dotProduct(a, b) / denom
	// Clamp for float error before mapping into [0, 1].
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (1 - cos) / 2
}

func (cosine) Norm(h Header) float32 { return h.Norm }
