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

package hannoygo

import (
	"bytes"
	"context"
	"math"
	"math/rand"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/benbenbenbenbenben/hannoygo/codec"
	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// collectLinks reads every committed Links record for an index, keyed by
// layer then item id.
func collectLinks(t *testing.T, db *DB, indexID uint16) map[uint8]map[uint32][]uint32 {
	t.Helper()
	out := make(map[uint8]map[uint32][]uint32)
	err := db.View(func(tx *bbolt.Tx) error {
		return forEachPrefix(tx, prefixMode(indexID, ModeLinks), func(k, v []byte) error {
			_, _, id, layer := decodeKey(k)
			links, err := codec.DecodeLinks(v)
			if err != nil {
				return err
			}
			byID := out[layer]
			if byID == nil {
				byID = make(map[uint32][]uint32)
				out[layer] = byID
			}
			byID[id] = links.Neighbors.ToSlice()
			return nil
		})
	})
	if err != nil {
		t.Fatalf("collecting links: %v", err)
	}
	return out
}

// checkGraphInvariants asserts, over the committed records of one index:
// no self-loops, layer containment (a record at layer L implies records at
// every lower layer), the per-layer degree bounds, and that no record
// belongs to or references a deleted id.
func checkGraphInvariants(t *testing.T, db *DB, indexID uint16, m, m0 int, deleted map[uint32]bool) {
	t.Helper()
	links := collectLinks(t, db, indexID)

	for layer, byID := range links {
		for id, ns := range byID {
			if deleted[id] {
				t.Errorf("layer %d: deleted id %d still has a link record", layer, id)
			}
			limit := m
			if layer == 0 {
				limit = m0
			}
			if len(ns) > limit {
				t.Errorf("layer %d: id %d has out-degree %d, cap is %d", layer, id, len(ns), limit)
			}
			for _, n := range ns {
				if n == id {
					t.Errorf("layer %d: id %d links to itself", layer, id)
				}
				if deleted[n] {
					t.Errorf("layer %d: id %d still links to deleted id %d", layer, id, n)
				}
			}
			for lower := uint8(0); lower < layer; lower++ {
				if _, ok := links[lower][id]; !ok {
					t.Errorf("id %d has a record at layer %d but none at layer %d", id, layer, lower)
				}
			}
		}
	}

	err := db.View(func(tx *bbolt.Tx) error {
		for d := range deleted {
			if _, ok := get(tx, itemKey(indexID, ModeItem, d)); ok {
				t.Errorf("deleted id %d still has an Item record", d)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestScenarioSingleVector(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 3, distance.Euclidean)

	if err := w.AddItem(0, []float32{0, 1, 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(1)), WithM(3), WithM0(3)); err != nil {
		t.Fatalf("Build: %v", err)
	}

	eps, err := loadEntryPoints(db, 1)
	if err != nil {
		t.Fatalf("loadEntryPoints: %v", err)
	}
	if len(eps) != 1 || eps[0] != 0 {
		t.Errorf("entry points = %v, want [0]", eps)
	}

	for layer, byID := range collectLinks(t, db, 1) {
		if ns := byID[0]; len(ns) != 0 {
			t.Errorf("layer %d: the sole item should have no links, got %v", layer, ns)
		}
	}

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	vec, err := r.ItemVector(0)
	if err != nil {
		t.Fatalf("ItemVector: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0 || vec[1] != 1 || vec[2] != 2 {
		t.Errorf("ItemVector(0) = %v, want [0 1 2]", vec)
	}

	results, err := r.Search([]float32{0, 1, 2}, WithCount(1))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != 0 || results[0].Distance != 0 {
		t.Errorf("Search by the item's own vector = %v, want [(0, 0)]", results)
	}
}

// colinearStore builds the six-points-on-a-line fixture shared by the
// ordering and deletion scenarios below.
func colinearStore(t *testing.T) (*DB, *Writer) {
	t.Helper()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)
	for i := uint32(0); i < 6; i++ {
		if err := w.AddItem(i, []float32{float32(i), 0}); err != nil {
			t.Fatalf("AddItem(%d): %v", i, err)
		}
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(2)), WithM(3), WithM0(3), WithWorkers(1)); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return db, w
}

func TestScenarioColinearPointsOrdering(t *testing.T) {
	t.Parallel()
	db, _ := colinearStore(t)

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	results, err := r.Search([]float32{0, 0}, WithCount(3), WithEfSearch(3))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []Result{{ID: 0, Distance: 0}, {ID: 1, Distance: 1}, {ID: 2, Distance: 4}}
	if len(results) != len(want) {
		t.Fatalf("Search returned %d results, want %d: %v", len(results), len(want), results)
	}
	for i, wr := range want {
		if results[i].ID != wr.ID || results[i].Distance != wr.Distance {
			t.Errorf("result[%d] = (%d, %g), want (%d, %g)", i, results[i].ID, results[i].Distance, wr.ID, wr.Distance)
		}
	}
}

func TestScenarioDeleteOneSurvivorsReconnect(t *testing.T) {
	t.Parallel()
	db, w := colinearStore(t)

	if err := w.DelItem(3); err != nil {
		t.Fatalf("DelItem: %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(3)), WithM(3), WithM0(3), WithWorkers(1)); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	checkGraphInvariants(t, db, 1, 3, 3, map[uint32]bool{3: true})

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if found, err := r.ContainsItem(3); err != nil || found {
		t.Errorf("ContainsItem(3) = (%t, %v), want (false, nil)", found, err)
	}

	results, err := r.Search([]float32{3, 0}, WithCount(3), WithEfSearch(5))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	wantIDs := []uint32{2, 4, 1}
	if len(results) != len(wantIDs) {
		t.Fatalf("Search returned %d results, want %d: %v", len(results), len(wantIDs), results)
	}
	for i, id := range wantIDs {
		if results[i].ID != id {
			t.Errorf("result[%d].ID = %d, want %d (full results: %v)", i, results[i].ID, id, results)
		}
	}
}

func TestScenarioCandidateRestrictedSearchReturnsExactly(t *testing.T) {
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	const n = 1000
	rng := rand.New(rand.NewSource(21))
	for id := uint32(0); id < n; id++ {
		if err := w.AddItem(id, []float32{rng.Float32() * 100, rng.Float32() * 100}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(22)), WithEfConstruction(48)); err != nil {
		t.Fatalf("Build: %v", err)
	}

	candidates := []uint32{3, 97, 150, 233, 402, 515, 640, 777, 880, 999}
	allowed := codec.SetFromSlice(candidates)

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	query := []float32{50, 50}
	results, err := r.Search(query, WithCount(10), WithEfSearch(n), WithCandidates(&allowed))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(results) != len(candidates) {
		t.Fatalf("candidate-restricted search returned %d results, want exactly %d: %v", len(results), len(candidates), results)
	}
	got := make(map[uint32]bool, len(results))
	for i, res := range results {
		got[res.ID] = true
		if i > 0 && results[i-1].Distance > res.Distance {
			t.Errorf("results not in ascending distance order at %d: %v", i, results)
		}
	}
	for _, id := range candidates {
		if !got[id] {
			t.Errorf("candidate id %d missing from restricted search results", id)
		}
	}
}

func TestRoundTripAddDeleteBuild(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	if err := w.AddItem(7, []float32{1, 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if err := w.DelItem(7); err != nil {
		t.Fatalf("DelItem: %v", err)
	}
	if err := w.AddItem(8, []float32{3, 4}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(4))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if found, _ := r.ContainsItem(7); found {
		t.Error("an id added and deleted before the same build must not survive it")
	}
	vec, err := r.ItemVector(8)
	if err != nil {
		t.Fatalf("ItemVector(8): %v", err)
	}
	if vec[0] != 3 || vec[1] != 4 {
		t.Errorf("ItemVector(8) = %v, want [3 4]", vec)
	}
}

func TestClearThenBuildYieldsValidEmptyIndex(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	for id := uint32(0); id < 10; id++ {
		if err := w.AddItem(id, []float32{float32(id), 0}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(5))); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	if err := w.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(6))); err != nil {
		t.Fatalf("Build after Clear: %v", err)
	}

	err := db.View(func(tx *bbolt.Tx) error {
		meta, hadMeta, err := readMetadata(tx, 1)
		if err != nil {
			return err
		}
		if !hadMeta {
			t.Error("Build after Clear should write fresh metadata")
			return nil
		}
		if meta.MaxLevel != 0 {
			t.Errorf("MaxLevel = %d, want 0 for an empty index", meta.MaxLevel)
		}
		if meta.EntryPoints.Len() != 0 {
			t.Errorf("entry points = %v, want empty", meta.EntryPoints.ToSlice())
		}
		if meta.Items.Len() != 0 {
			t.Errorf("item set = %v, want empty", meta.Items.ToSlice())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestMaxValuedItemID(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	if err := w.AddItem(math.MaxUint32, []float32{1, 1}); err != nil {
		t.Fatalf("AddItem(MaxUint32): %v", err)
	}
	if err := w.AddItem(0, []float32{0, 0}); err != nil {
		t.Fatalf("AddItem(0): %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(7))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	results, err := r.Search([]float32{1, 1}, WithCount(1), WithEfSearch(4))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != math.MaxUint32 {
		t.Errorf("Search = %v, want the max-valued id as nearest neighbor", results)
	}
}

func TestEfConstructionOneStillValid(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	for id := uint32(0); id < 20; id++ {
		if err := w.AddItem(id, []float32{float32(id % 5), float32(id / 5)}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(8)), WithM(4), WithM0(8), WithEfConstruction(1)); err != nil {
		t.Fatalf("Build with efConstruction=1: %v", err)
	}
	checkGraphInvariants(t, db, 1, 4, 8, nil)
}

func TestSearchWithLargeEfReachesEveryItem(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	const n = 40
	rng := rand.New(rand.NewSource(13))
	for id := uint32(0); id < n; id++ {
		if err := w.AddItem(id, []float32{rng.Float32() * 10, rng.Float32() * 10}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(14))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	vec, err := r.ItemVector(0)
	if err != nil {
		t.Fatalf("ItemVector(0): %v", err)
	}
	results, err := r.Search(vec, WithCount(n), WithEfSearch(n))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != n {
		t.Fatalf("a beam as wide as the index returned %d of %d items", len(results), n)
	}
	seen := make(map[uint32]bool, n)
	for _, res := range results {
		seen[res.ID] = true
	}
	for id := uint32(0); id < n; id++ {
		if !seen[id] {
			t.Errorf("item %d unreachable from item 0's vector with a full-width beam", id)
		}
	}
}

func TestIncrementalAddOnlyBuildPreservesSurvivorLinks(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	const n = 40
	const extra = 5
	vecRng := rand.New(rand.NewSource(41))
	vectors := make(map[uint32][]float32, n+extra)
	addOne := func(id uint32) {
		vec := []float32{vecRng.Float32() * 10, vecRng.Float32() * 10}
		vectors[id] = vec
		if err := w.AddItem(id, vec); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}
	for id := uint32(0); id < n; id++ {
		addOne(id)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(42)), WithM(8), WithM0(16), WithWorkers(1)); err != nil {
		t.Fatalf("first Build: %v", err)
	}
	before := collectLinks(t, db, 1)[0]

	// Second build inserts a handful of items and deletes nothing: the
	// survivors' committed neighbor lists must only ever grow (the new
	// arrivals append; nothing here pushes a list past its cap).
	for id := uint32(n); id < n+extra; id++ {
		addOne(id)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(43)), WithM(8), WithM0(16), WithWorkers(1)); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	after := collectLinks(t, db, 1)[0]

	for id := uint32(0); id < n; id++ {
		b, a := before[id], after[id]
		if len(a) < len(b) {
			t.Errorf("survivor %d's layer-0 out-degree shrank from %d to %d in an add-only rebuild: %v -> %v",
				id, len(b), len(a), b, a)
		}
		hadOld := make(map[uint32]bool, len(a))
		for _, x := range a {
			hadOld[x] = true
		}
		for _, x := range b {
			if !hadOld[x] {
				t.Errorf("survivor %d lost persisted neighbor %d in an add-only rebuild", id, x)
			}
		}
	}

	// Connectivity must survive the rebuild: a full-width beam from one
	// old item's vector reaches every item, old and new alike.
	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	results, err := r.Search(vectors[0], WithCount(n+extra), WithEfSearch(n+extra))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != n+extra {
		t.Fatalf("full-width beam after an add-only rebuild reached %d of %d items", len(results), n+extra)
	}
	seen := make(map[uint32]bool, len(results))
	for _, res := range results {
		seen[res.ID] = true
	}
	for id := uint32(0); id < n+extra; id++ {
		if !seen[id] {
			t.Errorf("item %d unreachable after the add-only rebuild", id)
		}
	}
}

func TestInvariantsHoldAcrossRandomizedWorkload(t *testing.T) {
	db := openTestStore(t)
	w := NewWriter(db, 1, 4, distance.Euclidean)

	const m, m0 = 16, 32
	rng := rand.New(rand.NewSource(99))
	live := make(map[uint32]bool)
	deleted := make(map[uint32]bool)
	nextID := uint32(0)

	for round := 0; round < 4; round++ {
		for i := 0; i < 30; i++ {
			var id uint32
			if len(live) > 0 && rng.Intn(4) == 0 {
				// Occasionally overwrite an existing id instead of
				// minting a new one.
				for id = range live {
					break
				}
			} else {
				id = nextID
				nextID++
			}
			vec := []float32{rng.Float32(), rng.Float32(), rng.Float32(), rng.Float32()}
			if err := w.AddItem(id, vec); err != nil {
				t.Fatalf("round %d: AddItem(%d): %v", round, id, err)
			}
			live[id] = true
			delete(deleted, id)
		}
		for i := 0; i < 10 && len(live) > 0; i++ {
			var id uint32
			for id = range live {
				break
			}
			if err := w.DelItem(id); err != nil {
				t.Fatalf("round %d: DelItem(%d): %v", round, id, err)
			}
			delete(live, id)
			deleted[id] = true
		}

		if _, err := w.Build(context.Background(), rng, WithM(m), WithM0(m0), WithEfConstruction(32)); err != nil {
			t.Fatalf("round %d: Build: %v", round, err)
		}
		checkGraphInvariants(t, db, 1, m, m0, deleted)
	}
}

// dumpIndexBytes reads every committed Metadata and Links record into a
// key-to-value byte map for exact comparison across builds.
func dumpIndexBytes(t *testing.T, db *DB, indexID uint16) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	err := db.View(func(tx *bbolt.Tx) error {
		for _, mode := range []Mode{ModeMetadata, ModeLinks} {
			if err := forEachPrefix(tx, prefixMode(indexID, mode), func(k, v []byte) error {
				out[string(k)] = append([]byte(nil), v...)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("dumping index records: %v", err)
	}
	return out
}

func TestSingleWorkerBuildIsDeterministic(t *testing.T) {
	t.Parallel()

	buildOnce := func(t *testing.T) map[string][]byte {
		db := openTestStore(t)
		w := NewWriter(db, 1, 3, distance.Euclidean)
		vecRng := rand.New(rand.NewSource(31))
		for id := uint32(0); id < 60; id++ {
			vec := []float32{vecRng.Float32(), vecRng.Float32(), vecRng.Float32()}
			if err := w.AddItem(id, vec); err != nil {
				t.Fatalf("AddItem(%d): %v", id, err)
			}
		}
		if _, err := w.Build(context.Background(), rand.New(rand.NewSource(32)), WithWorkers(1)); err != nil {
			t.Fatalf("Build: %v", err)
		}
		return dumpIndexBytes(t, db, 1)
	}

	first := buildOnce(t)
	second := buildOnce(t)

	if len(first) != len(second) {
		t.Fatalf("record counts differ across identical builds: %d vs %d", len(first), len(second))
	}
	for k, v := range first {
		other, ok := second[k]
		if !ok {
			t.Errorf("record %x present in the first build but not the second", k)
			continue
		}
		if !bytes.Equal(v, other) {
			t.Errorf("record %x differs across identical single-worker builds", k)
		}
	}
}
