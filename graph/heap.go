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

import "container/heap"

// Candidate pairs an item id with its distance to the query point that
// produced it. Ties in distance are broken by id ascending, so exploreLayer
// is deterministic given the same input order and RNG seed.
type Candidate struct {
	ID   uint32
	Dist float32
}

func less(a, b Candidate) bool {
	if a.Dist != b.Dist {
		return a.Dist < b.Dist
	}
	return a.ID < b.ID
}

// candidateHeap is a min-heap of Candidate ordered by (Dist, ID) ascending,
// used to drive exploreLayer's best-first frontier.
type candidateHeap []Candidate

func (h candidateHeap) Len() int            { return len(h) }
func (h candidateHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(Candidate)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}

// newCandidateHeap returns an empty, heap-ordered candidate frontier.
func newCandidateHeap() *candidateHeap {
	h := &candidateHeap{}
	heap.Init(h)
	return h
}

// pushCandidate inserts c into the frontier.
func pushCandidate(h *candidateHeap, c Candidate) { heap.Push(h, c) }

// popCandidate removes and returns the closest candidate.
func popCandidate(h *candidateHeap) Candidate { return heap.Pop(h).(Candidate) }

// resultHeap is a max-heap of Candidate ordered by (Dist, ID) descending
// (farthest-and-largest-id first), bounded to at most ef elements, used to
// track exploreLayer's current best-ef results with O(log ef) eviction of
// the single worst element.
type resultHeap struct {
	data []Candidate
	ef   int
}

func (h *resultHeap) Len() int { return len(h.data) }
func (h *resultHeap) Less(i, j int) bool {
	// Max-heap: larger distance (or, tied, larger id) sorts first so the
	// worst element sits at the root and is cheap to evict.
	a, b := h.data[i], h.data[j]
	if a.Dist != b.Dist {
		return a.Dist > b.Dist
	}
	return a.ID > b.ID
}
func (h *resultHeap) Swap(i, j int) { h.data[i], h.data[j] = h.data[j], h.data[i] }
func (h *resultHeap) Push(x interface{}) {
	h.data = append(h.data, x.(Candidate))
}
func (h *resultHeap) Pop() interface{} {
	old := h.data
	n := len(old)
	v := old[n-1]
	h.data = old[:n-1]
	return v
}

// newResultHeap returns an empty result set bounded to ef elements.
func newResultHeap(ef int) *resultHeap {
	return &resultHeap{ef: ef}
}

// Worst returns the current farthest element and whether the heap is full
// (at capacity ef); a caller uses the latter to decide whether a new
// candidate must beat Worst to be admitted.
func (h *resultHeap) Worst() (Candidate, bool) {
	if len(h.data) == 0 {
		return Candidate{}, false
	}
	return h.data[0], len(h.data) >= h.ef
}

// Offer inserts c if the heap has room, or if c beats the current worst
// element, evicting the worst in that case. Returns whether c was kept.
func (h *resultHeap) Offer(c Candidate) bool {
	if len(h.data) < h.ef {
		heap.Push(h, c)
		return true
	}
	if len(h.data) == 0 {
		return false
	}
	worst := h.data[0]
	if less(c, worst) {
		heap.Pop(h)
		heap.Push(h, c)
		return true
	}
	return false
}

// Sorted drains the heap and returns its contents in ascending (Dist, ID)
// order.
func (h *resultHeap) Sorted() []Candidate {
	out := make([]Candidate, len(h.data))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Candidate)
	}
	return out
}
