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

package graph

import (
	"fmt"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// NeighborSource resolves the neighbor ids of id at level, however the
// caller wants to source them — the in-memory working map during a build,
// or a persisted Links record during a search.
type NeighborSource func(level int, id uint32) ([]uint32, error)

// VectorSource resolves the stored vector for an item id.
type VectorSource func(id uint32) ([]float32, error)

// ErrMissingVector is returned by ExploreLayer when VectorSource cannot
// resolve an id it was told to visit — a consistency failure, since every
// id reachable from the graph must have a backing Item record.
type ErrMissingVector struct {
	ID  uint32
	Err error
}

func (e ErrMissingVector) Error() string {
	return fmt.Sprintf("graph: resolving vector for item %d: %v", e.ID, e.Err)
}

func (e ErrMissingVector) Unwrap() error { return e.Err }

// ExploreLayer runs the best-first beam search described for exploreLayer:
// starting from eps, it expands the closest unvisited candidate at a time,
// stopping once the candidate frontier can no longer beat the current
// worst of the bounded ef-sized result set. Shared between the builder
// (during insertion, neighbors come from the in-progress working map with
// a snapshot fallback) and the reader (neighbors always come straight from
// persisted Links records).
func ExploreLayer(
	dist distance.Distance,
	resolve VectorSource,
	neighbors NeighborSource,
	qVec []float32,
	qHeader distance.Header,
	eps []uint32,
	level int,
	ef int,
) ([]Candidate, error) {
	visited := make(map[uint32]bool, ef*4)
	candidates := newCandidateHeap()
	results := newResultHeap(ef)

	distTo := func(id uint32) (float32, error) {
		v, err := resolve(id)
		if err != nil {
			return 0, ErrMissingVector{ID: id, Err: err}
		}
		h := dist.NewHeader(v)
		return dist.Dist(qVec, qHeader, v, h), nil
	}

	for _, id := range eps {
		if visited[id] {
			continue
		}
		visited[id] = true
		d, err := distTo(id)
		if err != nil {
			return nil, err
		}
		c := Candidate{ID: id, Dist: d}
		pushCandidate(candidates, c)
		results.Offer(c)
	}

	for candidates.Len() > 0 {
		c := popCandidate(candidates)
		if worst, full := results.Worst(); full && c.Dist > worst.Dist {
			break
		}

		ns, err := neighbors(level, c.ID)
		if err != nil {
			return nil, err
		}
		for _, n := range ns {
			if visited[n] {
				continue
			}
			visited[n] = true

			d, err := distTo(n)
			if err != nil {
				return nil, err
			}
			cand := Candidate{ID: n, Dist: d}
			if worst, full := results.Worst(); !full || cand.Dist < worst.Dist {
				pushCandidate(candidates, cand)
				results.Offer(cand)
			}
		}
	}

	return results.Sorted(), nil
}
