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

// Package hannoygo implements a durable, incrementally-rebuilt Hierarchical
// Navigable Small World (HNSW) approximate nearest neighbor index over a
// memory-mapped ordered key-value store. Many independent indexes can share
// one store file, partitioned by a 16-bit index id.
package hannoygo

import (
	"context"
	"iter"
	"log"
	"math/rand"
	"sync"

	"github.com/benbenbenbenbenben/hannoygo/distance"
	"github.com/benbenbenbenbenben/hannoygo/graph"
)

// IndexOption configures an Index at Open time.
type IndexOption func(*indexConfig)

type indexConfig struct {
	dimensions int
	dist       distance.Distance
	logger     *log.Logger
}

// WithDimensions sets the vector dimensionality AddItem checks against and a
// new index records. If the index already has metadata with a different
// dimensionality, Build fails with InvalidVecDimensionError.
func WithDimensions(d int) IndexOption {
	return func(c *indexConfig) { c.dimensions = d }
}

// WithDistance sets the distance variant a new index is built with. If the
// index already has metadata naming a different variant, Build fails with
// UnmatchingDistanceError.
func WithDistance(d distance.Distance) IndexOption {
	return func(c *indexConfig) { c.dist = d }
}

// WithLogger sets the logger the index's Writer reports build activity to.
// Defaults to log.Default(); pass log.New(io.Discard, "", 0) to silence it.
func WithLogger(l *log.Logger) IndexOption {
	return func(c *indexConfig) { c.logger = l }
}

// Index is the thin public handle most callers use: one named index within
// one store file, wrapping a Writer for mutation and a lazily (re)opened
// Reader for search. It exists so a caller does not have to juggle a DB,
// Writer, and Reader by hand for the common case of one index per file.
type Index struct {
	db      *DB
	indexID uint16
	writer  *Writer

	mu     sync.RWMutex
	reader *Reader // nil until the first successful Search after a Build
}

// Open opens (creating if absent) a bbolt file at path and attaches an
// Index to indexID within it. Each Open holds bbolt's exclusive file lock
// until Close, so a second Open of the same path fails after a one-second
// timeout while the first is still open.
func Open(path string, indexID uint16, opts ...IndexOption) (*Index, error) {
	cfg := &indexConfig{dist: distance.Cosine}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := openStore(path)
	if err != nil {
		return nil, err
	}
	w := NewWriter(db, indexID, cfg.dimensions, cfg.dist)
	if cfg.logger != nil {
		w.SetLogger(cfg.logger)
	}
	return &Index{
		db:      db,
		indexID: indexID,
		writer:  w,
	}, nil
}

// Close releases the underlying store file. No other method may be called
// afterward.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// AddItem overwrites id's vector and marks the index dirty. See
// Writer.AddItem.
func (ix *Index) AddItem(id uint32, vec []float32) error {
	return ix.writer.AddItem(id, vec)
}

// DelItem removes id's vector, if present, and marks the index dirty. See
// Writer.DelItem.
func (ix *Index) DelItem(id uint32) error {
	return ix.writer.DelItem(id)
}

// Clear drops every record belonging to this index.
func (ix *Index) Clear() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.reader = nil
	return ix.writer.Clear()
}

// NeedBuild reports whether this index has pending changes or has never
// been built.
func (ix *Index) NeedBuild() (bool, error) {
	return ix.writer.NeedBuild()
}

// ContainsItem reports whether id currently has a stored vector.
func (ix *Index) ContainsItem(id uint32) (bool, error) {
	return ix.writer.ContainsItem(id)
}

// Iter streams every (id, vector) pair currently stored.
func (ix *Index) Iter(fn func(id uint32, vec []float32) error) error {
	return ix.writer.Iter(fn)
}

// Items returns a range-over-func iterator over every stored (id, vector)
// pair. See Writer.Items.
func (ix *Index) Items() iter.Seq2[uint32, []float32] {
	return ix.writer.Items()
}

// Stats scans the index's committed records and returns its current shape.
func (ix *Index) Stats() (*IndexStats, error) {
	return ix.writer.Stats()
}

// Build rebuilds the graph to reflect every pending AddItem/DelItem and
// invalidates any cached Reader, so the next Search opens a fresh one
// against the new build. rng is the caller's source of randomness for
// level sampling; a seeded *rand.Rand together with WithWorkers(1) makes
// the build fully reproducible.
func (ix *Index) Build(ctx context.Context, rng *rand.Rand, opts ...BuildOption) (*BuildStats, error) {
	stats, err := ix.writer.Build(ctx, rng, opts...)
	if err != nil {
		return nil, err
	}
	ix.mu.Lock()
	ix.reader = nil
	ix.mu.Unlock()
	return stats, nil
}

// BuildStats is a re-export of graph.BuildStats so callers outside this
// module need not import the graph package directly for Build's receipt.
type BuildStats = graph.BuildStats

// Search runs a nearest-neighbor query against the last committed build,
// opening (and caching) a Reader on first use. Returns ErrNeedBuild if the
// index has pending changes that Build has not yet reconciled.
func (ix *Index) Search(q []float32, opts ...SearchOption) ([]Result, error) {
	r, err := ix.currentReader()
	if err != nil {
		return nil, err
	}
	return r.Search(q, opts...)
}

func (ix *Index) currentReader() (*Reader, error) {
	ix.mu.RLock()
	r := ix.reader
	ix.mu.RUnlock()
	if r != nil {
		return r, nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.reader != nil {
		return ix.reader, nil
	}
	r, err := OpenReader(ix.db, ix.indexID)
	if err != nil {
		return nil, err
	}
	ix.reader = r
	return r, nil
}
