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

// Package graph implements the HNSW layered proximity graph: level
// sampling, the striped concurrent per-layer map, the beam-search heaps,
// the Sparse Neighborhood Graph selection heuristic, and the parallel
// per-level insertion driver with FreshDiskANN-style link patching.
package graph

import "math"

// minProbability is the truncation threshold for the level distribution:
// levels whose probability mass falls below this are never sampled.
const minProbability = 1e-9

// LevelSampler draws a random insertion level from the classical HNSW
// exponential distribution with rate ln(M), precomputed once per builder
// rather than evaluated on the fly for every item.
type LevelSampler struct {
	levelMult float64
	pmf       []float64 // cumulative mass up to and including level i
}

// NewLevelSampler builds a sampler for the given per-layer connectivity M.
// M must be >= 2 so ln(M) > 0.
func NewLevelSampler(m int) *LevelSampler {
	levelMult := 1.0 / math.Log(float64(m))

	var pmf []float64
	cumulative := 0.0
	for level := 0; ; level++ {
		// P(L = level) for the truncated-exponential level distribution,
		// i.e. the probability mass assigned to exactly this level.
		p := math.Exp(-float64(level)/levelMult) * (1 - math.Exp(-1/levelMult))
		if p < minProbability && level > 0 {
			break
		}
		cumulative += p
		pmf = append(pmf, cumulative)
	}
	// Normalize so the last entry is exactly 1, absorbing the truncated tail.
	if n := len(pmf); n > 0 {
		last := pmf[n-1]
		for i := range pmf {
			pmf[i] /= last
		}
	}
	return &LevelSampler{levelMult: levelMult, pmf: pmf}
}

// Sample draws a level in [0, len(pmf)-1] using r, a uniform random value
// in [0, 1) supplied by the caller (so callers control the RNG and seed).
func (s *LevelSampler) Sample(r float64) int {
	for level, cum := range s.pmf {
		if r < cum {
			return level
		}
	}
	return len(s.pmf) - 1
}

// MaxLevel returns the highest level this sampler can ever produce.
func (s *LevelSampler) MaxLevel() int {
	return len(s.pmf) - 1
}
