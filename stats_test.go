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
	"context"
	"math/rand"
	"testing"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

func TestStatsReflectsBuildState(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	const n = 25
	for id := uint32(0); id < n; id++ {
		if err := w.AddItem(id, []float32{float32(id), float32(id % 3)}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}

	st, err := w.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Items != n {
		t.Errorf("Items = %d, want %d", st.Items, n)
	}
	if !st.NeedBuild {
		t.Error("Stats should report NeedBuild before the first build")
	}

	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(1)), WithM(8), WithM0(16)); err != nil {
		t.Fatalf("Build: %v", err)
	}

	st, err = w.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.NeedBuild {
		t.Error("Stats should not report NeedBuild after a successful build")
	}
	if st.EntryPoints == 0 {
		t.Error("a built, non-empty index should have at least one entry point")
	}
	if len(st.LayerNodes) == 0 || st.LayerNodes[0] != n {
		t.Errorf("LayerNodes = %v, want %d nodes at layer 0", st.LayerNodes, n)
	}
	if st.AvgOutDegree <= 0 || st.AvgOutDegree > 16 {
		t.Errorf("AvgOutDegree = %g, want within (0, 16]", st.AvgOutDegree)
	}
}

func TestItemsIteratorVisitsInOrderAndStopsEarly(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 1, distance.Euclidean)

	for id := uint32(0); id < 10; id++ {
		if err := w.AddItem(id, []float32{float32(id)}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}

	var visited []uint32
	for id, vec := range w.Items() {
		if vec[0] != float32(id) {
			t.Errorf("Items yielded (%d, %v), want vector [%d]", id, vec, id)
		}
		visited = append(visited, id)
	}
	if len(visited) != 10 {
		t.Fatalf("Items visited %d ids, want 10", len(visited))
	}
	for i, id := range visited {
		if id != uint32(i) {
			t.Errorf("Items order at %d = %d, want ascending id order", i, id)
		}
	}

	var short int
	for range w.Items() {
		short++
		if short == 3 {
			break
		}
	}
	if short != 3 {
		t.Errorf("breaking out of Items after 3 yields visited %d", short)
	}
}

func TestBuildProgressCallback(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 2, distance.Euclidean)

	for id := uint32(0); id < 30; id++ {
		if err := w.AddItem(id, []float32{float32(id), 0}); err != nil {
			t.Fatalf("AddItem(%d): %v", id, err)
		}
	}

	var calls int
	var lastRemaining int
	_, err := w.Build(context.Background(), rand.New(rand.NewSource(2)),
		WithProgress(func(level, remaining int) {
			calls++
			lastRemaining = remaining
		}))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if calls == 0 {
		t.Fatal("progress callback was never invoked")
	}
	if lastRemaining != 0 {
		t.Errorf("final progress callback reported %d items remaining, want 0", lastRemaining)
	}
}

func TestReaderVersionMatchesFormat(t *testing.T) {
	t.Parallel()
	db := openTestStore(t)
	w := NewWriter(db, 1, 1, distance.Euclidean)

	if err := w.AddItem(1, []float32{1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := w.Build(context.Background(), rand.New(rand.NewSource(3))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	r, err := OpenReader(db, 1)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	if got := r.Version(); got != formatVersion {
		t.Errorf("Version() = %s, want %s", got, formatVersion)
	}
}
