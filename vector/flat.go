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

// Package vector provides a brute-force exact nearest-neighbor index used as
// a ground-truth oracle for measuring the approximate index's recall. It is
// not part of the durable store: everything lives in memory and nothing here
// is persisted.
package vector

import (
	"container/heap"
	"sync"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// Match is one exact search result: the item id and its distance to the
// query vector, smaller meaning closer.
type Match struct {
	ID       uint32
	Distance float32
}

// FlatIndex is a brute-force vector index that computes exact nearest
// neighbors by scanning every stored vector. O(n) per search; suitable only
// as a correctness and recall oracle for small test datasets, never as a
// production index.
type FlatIndex struct {
	dimensions int
	dist       distance.Distance
	vectors    map[uint32][]float32
	headers    map[uint32]distance.Header
	mu         sync.RWMutex
}

// NewFlatIndex creates a brute-force index of the given dimensionality using
// dist to compare vectors.
func NewFlatIndex(dimensions int, dist distance.Distance) *FlatIndex {
	return &FlatIndex{
		dimensions: dimensions,
		dist:       dist,
		vectors:    make(map[uint32][]float32),
		headers:    make(map[uint32]distance.Header),
	}
}

// Add stores or overwrites id's vector.
func (f *FlatIndex) Add(id uint32, vec []float32) {
	v := make([]float32, len(vec))
	copy(v, vec)

	f.mu.Lock()
	f.vectors[id] = v
	f.headers[id] = f.dist.NewHeader(v)
	f.mu.Unlock()
}

// Delete removes id, if present.
func (f *FlatIndex) Delete(id uint32) {
	f.mu.Lock()
	delete(f.vectors, id)
	delete(f.headers, id)
	f.mu.Unlock()
}

// Len returns the number of stored vectors.
func (f *FlatIndex) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Search returns the k exact nearest neighbors of query, ascending by
// distance.
func (f *FlatIndex) Search(query []float32, k int) []Match {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 || len(f.vectors) == 0 {
		return nil
	}

	qh := f.dist.NewHeader(query)
	h := &matchHeap{}
	heap.Init(h)

	for id, vec := range f.vectors {
		d := f.dist.Dist(query, qh, vec, f.headers[id])
		if h.Len() < k {
			heap.Push(h, Match{ID: id, Distance: d})
		} else if d < (*h)[0].Distance {
			heap.Pop(h)
			heap.Push(h, Match{ID: id, Distance: d})
		}
	}

	results := make([]Match, h.Len())
	for i := len(results) - 1; i >= 0; i-- {
		results[i] = heap.Pop(h).(Match)
	}
	return results
}

// matchHeap is a max-heap of Match entries ordered by distance, so the
// farthest of the current top-k sits at the root and can be evicted in
// O(log k) when a closer candidate is found.
type matchHeap []Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return h[i].Distance > h[j].Distance }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x any)         { *h = append(*h, x.(Match)) }
func (h *matchHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}
