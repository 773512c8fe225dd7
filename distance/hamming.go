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

// sign reports whether v occupies the positive half of a bipolar
// quantization (v > 0). Binary-quantized variants compare vectors on this
// one-bit-per-dimension representation rather than their raw magnitudes.
func sign(v float32) bool { return v > 0 }

// hamming is the binary Hamming-distance variant: the number of dimensions
// whose sign disagrees between a and b. Intended for vectors the caller has
// already quantized to one bit per dimension (e.g. via a binary embedding
// model); arbitrary float32 vectors are accepted and thresholded at zero.
type hamming struct{}

// Hamming is the registered Hamming distance variant.
var Hamming Distance = hamming{}

func init() { register(Hamming) }

func (hamming) Name() string { return "hamming" }

func (hamming) NewHeader(vector []float32) Header {
	return Header{Norm: norm(vector)}
}

func (hamming) Dist(a []float32, _ Header, b []float32, _ Header) float32 {
	var diff float32
	for i := range a {
		if sign(a[i]) != sign(b[i]) {
			diff++
		}
	}
	return diff
}

func (hamming) Norm(h Header) float32 { return h.Norm }

// binaryCosine computes cosine distance on the bipolar-quantized (sign-only)
// representation of each vector, which collapses to a function of the
// Hamming distance between them. It is the binary-quantized counterpart to
// Cosine, useful when storage cost matters more than the precision a full
// float32 cosine affords.
type binaryCosine struct{}

// BinaryCosine is the registered binary-quantized cosine variant.
var BinaryCosine Distance = binaryCosine{}

func init() { register(BinaryCosine) }

func (binaryCosine) Name() string { return "binary_cosine" }

func (binaryCosine) NewHeader(vector []float32) Header {
	return Header{Norm: float32(len(vector))}
}

func (binaryCosine) Dist(a []float32, _ Header, b []float32, _ Header) float32 {
	if len(a) == 0 {
		return 0
	}
	h := hamming{}.Dist(a, Header{}, b, Header{})
	// Agreement fraction in [0,1]; map disagreement fraction directly to
	// distance, mirroring Cosine's [0,1] range for the float32 variant.
	return h / float32(len(a))
}

func (binaryCosine) Norm(h Header) float32 { return h.Norm }

// binaryHamming is identical to Hamming but registered under a distinct name
// so a caller can pin an index to the explicitly-binary-quantized variant
// without ambiguity about whether raw float32 vectors are also accepted by
// convention (both accept either; the name is the caller's contract).
type binaryHamming struct{ hamming }

// BinaryHamming is the registered binary-quantized Hamming variant.
var BinaryHamming Distance = binaryHamming{}

func init() { register(BinaryHamming) }

func (binaryHamming) Name() string { return "binary_hamming" }
