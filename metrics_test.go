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

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// defaultMetrics is a process-wide singleton registered once against
// prometheus.DefaultRegisterer, so these tests observe it directly rather
// than constructing a second registration (which promauto would reject as
// a duplicate).

func TestBuildIncrementsItemsIndexedCounter(t *testing.T) {
	ix := openTestIndex(t, 2, distance.Cosine)

	before := testutil.ToFloat64(defaultMetrics.itemsIndexed.WithLabelValues("1", "insert"))

	if err := ix.AddItem(1, []float32{1, 0}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ix.Build(context.Background(), rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	after := testutil.ToFloat64(defaultMetrics.itemsIndexed.WithLabelValues("1", "insert"))
	if after != before+1 {
		t.Errorf("items_indexed_total{op=insert} went from %v to %v, want +1", before, after)
	}
}

func TestBuildIncrementsBuildErrorsCounterOnFailure(t *testing.T) {
	ix := openTestIndex(t, 2, distance.Cosine)
	if err := ix.AddItem(1, []float32{1, 0}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ix.Build(context.Background(), rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("first Build: %v", err)
	}

	before := testutil.ToFloat64(defaultMetrics.buildErrors.WithLabelValues("1"))

	// A second writer against the same index id with a mismatched
	// dimensionality forces Build to fail validation before committing.
	bad := NewWriter(ix.db, 1, 3, distance.Cosine)
	if _, err := bad.Build(context.Background(), rand.New(rand.NewSource(1))); err == nil {
		t.Fatal("expected Build to fail on a dimensions mismatch")
	}

	after := testutil.ToFloat64(defaultMetrics.buildErrors.WithLabelValues("1"))
	if after != before+1 {
		t.Errorf("build_errors_total went from %v to %v, want +1", before, after)
	}
}

func TestSearchRecordsLatency(t *testing.T) {
	ix := openTestIndex(t, 1, distance.Euclidean)
	if err := ix.AddItem(1, []float32{0}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if _, err := ix.Build(context.Background(), rand.New(rand.NewSource(1))); err != nil {
		t.Fatalf("Build: %v", err)
	}

	if _, err := ix.Search([]float32{0}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if n := testutil.CollectAndCount(defaultMetrics.searchLatency, "hannoygo_search_latency_seconds"); n == 0 {
		t.Error("expected at least one recorded sample for hannoygo_search_latency_seconds after Search")
	}
}
