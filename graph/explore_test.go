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
	"errors"
	"testing"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// lineGraph lays out five points on a 1-D line (id == its coordinate) with a
// hand-built adjacency list, letting ExploreLayer be tested against an exact,
// known-by-construction nearest-neighbor ordering.
func lineGraph() (VectorSource, NeighborSource) {
	vecs := map[uint32][]float32{
		0:  {0},
		10: {10},
		20: {20},
		30: {30},
		40: {40},
	}
	adj := map[uint32][]uint32{
		0:  {10},
		10: {0, 20},
		20: {10, 30},
		30: {20, 40},
		40: {30},
	}
	resolve := func(id uint32) ([]float32, error) {
		v, ok := vecs[id]
		if !ok {
			return nil, errors.New("no such vector")
		}
		return v, nil
	}
	neighbors := func(level int, id uint32) ([]uint32, error) {
		return adj[id], nil
	}
	return resolve, neighbors
}

func TestExploreLayerFindsNearestAlongGraph(t *testing.T) {
	t.Parallel()
	resolve, neighbors := lineGraph()
	dist := distance.Euclidean
	q := []float32{22}

	results, err := ExploreLayer(dist, resolve, neighbors, q, dist.NewHeader(q), []uint32{0}, 0, 2)
	if err != nil {
		t.Fatalf("ExploreLayer: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].ID != 20 || results[1].ID != 30 {
		t.Errorf("results = %+v, want ids [20 30] nearest to 22", results)
	}
}

func TestExploreLayerEfBoundsResultCount(t *testing.T) {
	t.Parallel()
	resolve, neighbors := lineGraph()
	dist := distance.Euclidean
	q := []float32{0}

	results, err := ExploreLayer(dist, resolve, neighbors, q, dist.NewHeader(q), []uint32{0}, 0, 1)
	if err != nil {
		t.Fatalf("ExploreLayer: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (ef=1)", len(results))
	}
	if results[0].ID != 0 {
		t.Errorf("results[0].ID = %d, want 0 (query coincides with entry point)", results[0].ID)
	}
}

func TestExploreLayerMultipleEntryPoints(t *testing.T) {
	t.Parallel()
	resolve, neighbors := lineGraph()
	dist := distance.Euclidean
	q := []float32{40}

	// Start from both ends of the line at once (ids 0 and 40); the search
	// must still land on the true nearest neighbor.
	results, err := ExploreLayer(dist, resolve, neighbors, q, dist.NewHeader(q), []uint32{0, 40}, 0, 1)
	if err != nil {
		t.Fatalf("ExploreLayer: %v", err)
	}
	if len(results) != 1 || results[0].ID != 40 {
		t.Errorf("results = %+v, want the query's own coordinate as nearest", results)
	}
}

func TestExploreLayerPropagatesMissingVectorError(t *testing.T) {
	t.Parallel()
	resolve := func(id uint32) ([]float32, error) { return nil, errors.New("boom") }
	neighbors := func(level int, id uint32) ([]uint32, error) { return nil, nil }
	dist := distance.Euclidean
	q := []float32{0}

	_, err := ExploreLayer(dist, resolve, neighbors, q, dist.NewHeader(q), []uint32{1}, 0, 1)
	var missing ErrMissingVector
	if !errors.As(err, &missing) {
		t.Fatalf("ExploreLayer error = %v, want ErrMissingVector", err)
	}
	if missing.ID != 1 {
		t.Errorf("ErrMissingVector.ID = %d, want 1", missing.ID)
	}
}
