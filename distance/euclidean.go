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

// euclidean is the squared-Euclidean-distance variant. Squared distance
// avoids a sqrt on every comparison; it preserves ordering, which is all the
// graph algorithms need.
type euclidean struct{}

// Euclidean is the registered squared-Euclidean distance variant.
var Euclidean Distance = euclidean{}

func init() { register(Euclidean) }

func (euclidean) Name() string { return "euclidean" }

func (euclidean) NewHeader(vector []float32) Header {
	return Header{Norm: norm(vector)}
}

func (euclidean) Dist(a []float32, _ Header, b []float32, _ Header) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (euclidean) Norm(h Header) float32 { return h.Norm }

// manhattan is the L1-distance variant.
type manhattan struct{}

// Manhattan is the registered L1 (sum of absolute differences) variant.
var Manhattan Distance = manhattan{}

func init() { register(Manhattan) }

func (manhattan) Name() string { return "manhattan" }

func (manhattan) NewHeader(vector []float32) Header {
	return Header{Norm: norm(vector)}
}

func (manhattan) Dist(a []float32, _ Header, b []float32, _ Header) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

func (manhattan) Norm(h Header) float32 { return h.Norm }
