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
	"fmt"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/benbenbenbenbenben/hannoygo/codec"
	"github.com/benbenbenbenbenben/hannoygo/distance"
	"github.com/benbenbenbenbenben/hannoygo/graph"
)

// Result is one nearest-neighbor hit: the item id and its distance to the
// query vector, smaller meaning closer.
type Result struct {
	ID       uint32
	Distance float32
}

// Reader serves searches against the last build committed for one index.
// It loads metadata once at construction and refuses to open over an index
// with pending updates, so every Reader it hands out sees one consistent,
// fully-built graph.
type Reader struct {
	db         *DB
	indexID    uint16
	dist       distance.Distance
	dimensions int
	maxLevel   int
	entryPoint []uint32
	version    Version
}

// OpenReader loads indexID's metadata and version record and returns a
// Reader bound to that build. It returns ErrNeedBuild if the index has any
// pending updated markers, and ErrMissingMetadata if it was never built.
func OpenReader(db *DB, indexID uint16) (*Reader, error) {
	var r *Reader
	err := db.View(func(tx *bbolt.Tx) error {
		pending := false
		if err := forEachPrefix(tx, prefixMode(indexID, ModeUpdated), func(k, v []byte) error {
			pending = true
			return errStopIteration
		}); err != nil && err != errStopIteration {
			return err
		}
		if pending {
			return ErrNeedBuild
		}

		mv, ok := get(tx, metaKey(indexID))
		if !ok {
			return ErrMissingMetadata
		}
		meta, err := codec.DecodeMetadata(mv)
		if err != nil {
			return err
		}

		vv, ok := get(tx, versionKey(indexID))
		if !ok {
			return ErrMissingMetadata
		}
		version, err := decodeVersion(vv)
		if err != nil {
			return err
		}

		dist, ok := distance.Lookup(meta.Distance)
		if !ok {
			return &UnmatchingDistanceError{Expected: "<registered variant>", Received: meta.Distance}
		}

		r = &Reader{
			db:         db,
			indexID:    indexID,
			dist:       dist,
			dimensions: int(meta.Dimensions),
			maxLevel:   int(meta.MaxLevel),
			entryPoint: meta.EntryPoints.ToSlice(),
			version:    version,
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(indexID, err)
	}
	return r, nil
}

// Dimensions returns the vector dimensionality this index was built with.
func (r *Reader) Dimensions() int { return r.dimensions }

// Version returns the on-disk format version recorded by the build this
// Reader was opened against.
func (r *Reader) Version() Version { return r.version }

// ItemVector returns id's stored vector, or ErrMissingKey if id has no
// Item record in this build.
func (r *Reader) ItemVector(id uint32) ([]float32, error) {
	var vec []float32
	err := r.db.View(func(tx *bbolt.Tx) error {
		v, ok := get(tx, itemKey(r.indexID, ModeItem, id))
		if !ok {
			return fmt.Errorf("%w: item %d", ErrMissingKey, id)
		}
		item, err := codec.DecodeItem(v, distance.HeaderLen, r.dimensions, distance.Packed(r.dist.Name()))
		if err != nil {
			return err
		}
		vec = item.Vector
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(r.indexID, err)
	}
	return vec, nil
}

// ContainsItem reports whether id has a stored vector in this build.
func (r *Reader) ContainsItem(id uint32) (bool, error) {
	found := false
	err := r.db.View(func(tx *bbolt.Tx) error {
		_, found = get(tx, itemKey(r.indexID, ModeItem, id))
		return nil
	})
	return found, wrapStoreErr(r.indexID, err)
}

// Search runs the layered greedy-then-beam nearest-neighbor search: a
// single-closest descent from max_level down to 1, then an ef-wide beam at
// layer 0, optionally restricted to a candidate id set before truncating to
// Count results.
func (r *Reader) Search(q []float32, opts ...SearchOption) ([]Result, error) {
	if len(q) != r.dimensions {
		return nil, &InvalidVecDimensionError{Expected: r.dimensions, Received: len(q)}
	}
	o := applySearchOptions(opts...)
	start := time.Now()

	var out []Result
	err := r.db.View(func(tx *bbolt.Tx) error {
		packed := distance.Packed(r.dist.Name())
		resolve := func(id uint32) ([]float32, error) {
			v, ok := get(tx, itemKey(r.indexID, ModeItem, id))
			if !ok {
				return nil, fmt.Errorf("%w: item %d", ErrMissingKey, id)
			}
			item, err := codec.DecodeItem(v, distance.HeaderLen, r.dimensions, packed)
			if err != nil {
				return nil, err
			}
			return item.Vector, nil
		}
		neighbors := func(level int, id uint32) ([]uint32, error) {
			v, ok := get(tx, linksKey(r.indexID, id, uint8(level)))
			if !ok {
				return nil, nil
			}
			links, err := codec.DecodeLinks(v)
			if err != nil {
				return nil, err
			}
			return links.Neighbors.ToSlice(), nil
		}

		header := r.dist.NewHeader(q)
		eps := r.entryPoint
		if len(eps) == 0 {
			// No entry points at all: an empty index, or one whose every
			// entry point was deleted without a surviving replacement to
			// re-bootstrap from. Either way there is nothing to search.
			return nil
		}

		for lvl := r.maxLevel; lvl > 0; lvl-- {
			results, err := graph.ExploreLayer(r.dist, resolve, neighbors, q, header, eps, lvl, 1)
			if err != nil {
				return err
			}
			if len(results) > 0 {
				eps = []uint32{results[0].ID}
			}
		}

		ef := o.EfSearch
		if ef < o.Count {
			ef = o.Count
		}
		results, err := graph.ExploreLayer(r.dist, resolve, neighbors, q, header, eps, 0, ef)
		if err != nil {
			return err
		}

		if o.Candidates != nil {
			filtered := results[:0]
			for _, c := range results {
				if o.Candidates.Contains(c.ID) {
					filtered = append(filtered, c)
				}
			}
			results = filtered
		}

		n := o.Count
		if n > len(results) {
			n = len(results)
		}
		out = make([]Result, n)
		for i := 0; i < n; i++ {
			out[i] = Result{ID: results[i].ID, Distance: results[i].Dist}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(r.indexID, err)
	}
	defaultMetrics.searchLatency.WithLabelValues(strconv.Itoa(int(r.indexID))).Observe(time.Since(start).Seconds())
	return out, nil
}
