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

import "sync"

// shardCount is the fixed number of stripes in every StripedMap. A power of
// two keeps the modulo a mask operation.
const shardCount = 64

// Neighbor pairs a linked item id with its distance to the owning node,
// kept in ascending-distance order inside a NodeState.
type Neighbor struct {
	ID   uint32
	Dist float32
}

// NodeState is the working, in-memory neighbor list for one item at one
// layer: at most M0 entries at layer 0, at most M otherwise, always kept in
// distance order so the worst entry is last.
type NodeState struct {
	Links []Neighbor
	Cap   int
}

// shard is one stripe of a StripedMap: an independent map guarded by its
// own mutex, so unrelated keys never contend.
type shard struct {
	mu sync.Mutex
	m  map[uint32]*NodeState
}

// StripedMap is a fixed-shard concurrent map from item id to *NodeState,
// supporting per-key atomic get/insert-if-absent/update-or-insert. It
// exists because the standard library offers no concurrent map with
// compute-if-absent semantics, and sync.Map gives only independent
// load/store, not a per-key critical section.
type StripedMap struct {
	shards [shardCount]*shard
}

// NewStripedMap returns an empty StripedMap.
func NewStripedMap() *StripedMap {
	sm := &StripedMap{}
	for i := range sm.shards {
		sm.shards[i] = &shard{m: make(map[uint32]*NodeState)}
	}
	return sm
}

// shardFor selects the stripe owning id. Fibonacci hashing spreads
// sequentially-assigned item ids evenly across shards.
func (sm *StripedMap) shardFor(id uint32) *shard {
	const fib32 = 2654435769
	h := (id * fib32) >> 26 // top 6 bits, matching shardCount=64
	return sm.shards[h%shardCount]
}

// Get returns the NodeState for id, if present.
func (sm *StripedMap) Get(id uint32) (*NodeState, bool) {
	s := sm.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.m[id]
	return ns, ok
}

// GetOrInsert returns the existing NodeState for id, or creates one via
// create and inserts it, atomically with respect to other callers
// operating on the same id.
func (sm *StripedMap) GetOrInsert(id uint32, create func() *NodeState) *NodeState {
	s := sm.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ns, ok := s.m[id]; ok {
		return ns
	}
	ns := create()
	s.m[id] = ns
	return ns
}

// Update atomically replaces the NodeState for id: fn receives the current
// value (nil if absent) and returns the new value to store. The read,
// compute, and replace all happen under the shard's single lock, giving
// per-key atomicity for the read-compute-replace pattern addLink relies on.
func (sm *StripedMap) Update(id uint32, fn func(existing *NodeState) *NodeState) *NodeState {
	s := sm.shardFor(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.m[id])
	s.m[id] = next
	return next
}

// Keys returns every id currently present, in no particular order. Used
// only by the single-threaded link-patching and commit phases.
func (sm *StripedMap) Keys() []uint32 {
	var out []uint32
	for _, s := range sm.shards {
		s.mu.Lock()
		for id := range s.m {
			out = append(out, id)
		}
		s.mu.Unlock()
	}
	return out
}
