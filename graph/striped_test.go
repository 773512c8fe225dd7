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
	"sort"
	"sync"
	"testing"
)

func TestStripedMapGetOrInsertCreatesOnce(t *testing.T) {
	t.Parallel()
	sm := NewStripedMap()

	var creations int
	var mu sync.Mutex
	create := func() *NodeState {
		mu.Lock()
		creations++
		mu.Unlock()
		return &NodeState{Cap: 16}
	}

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sm.GetOrInsert(7, create)
		}()
	}
	wg.Wait()

	if creations != 1 {
		t.Errorf("create() called %d times for concurrent GetOrInsert(7, ...), want exactly 1", creations)
	}
	ns, ok := sm.Get(7)
	if !ok || ns.Cap != 16 {
		t.Errorf("Get(7) = %+v, %v, want Cap=16, true", ns, ok)
	}
}

func TestStripedMapUpdateIsAtomicPerKey(t *testing.T) {
	t.Parallel()
	sm := NewStripedMap()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sm.Update(3, func(existing *NodeState) *NodeState {
				if existing == nil {
					return &NodeState{Links: []Neighbor{{ID: uint32(i)}}, Cap: n}
				}
				return &NodeState{Links: append(existing.Links, Neighbor{ID: uint32(i)}), Cap: n}
			})
		}(i)
	}
	wg.Wait()

	ns, ok := sm.Get(3)
	if !ok {
		t.Fatal("expected key 3 to be present after concurrent Update calls")
	}
	if len(ns.Links) != n {
		t.Errorf("Update lost writes under concurrency: got %d links, want %d", len(ns.Links), n)
	}
}

func TestStripedMapKeysVisitsEveryShard(t *testing.T) {
	t.Parallel()
	sm := NewStripedMap()

	want := make([]uint32, 0, 256)
	for id := uint32(0); id < 256; id++ {
		sm.GetOrInsert(id, func() *NodeState { return &NodeState{Cap: 16} })
		want = append(want, id)
	}

	got := sm.Keys()
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	if len(got) != len(want) {
		t.Fatalf("Keys() returned %d ids, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Keys()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}
