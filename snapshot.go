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

	"go.etcd.io/bbolt"

	"github.com/benbenbenbenbenben/hannoygo/codec"
	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// snapshotPool hands out independent read-only bbolt transactions to build
// workers, up to size of them concurrently. Each one observes the store as
// committed before the in-flight write transaction began, which is all the
// graph builder ever needs during a build: its own new writes travel
// through the in-memory "fresh" vector map and working layer maps, never
// back through this pool.
//
// A bbolt transaction is not safe for concurrent cursor use by more than
// one goroutine at a time. A fixed worker-to-thread "slot" model would
// assume a persistent identity per worker goroutine; this package's
// builder instead spawns one short-lived goroutine per item (bounded by an
// errgroup limit), so a borrow-for-one-call pool serves the same purpose —
// bounding how many concurrent bbolt read transactions are live to size —
// without requiring goroutines to have a persistent identity across a
// build.
type snapshotPool struct {
	indexID    uint16
	dimensions int
	packed     bool
	pool       chan *bbolt.Tx
	opened     []*bbolt.Tx
}

// newSnapshotPool pre-allocates size nested read-only transactions from db
// and parks them on a bounded channel for workers to borrow one at a time.
// dimensions and packed describe how this index's Item records encode their
// vectors, so Vector can decode them without a second lookup into Metadata.
func newSnapshotPool(db *DB, indexID uint16, size int, dimensions int, packed bool) (*snapshotPool, error) {
	if size < 1 {
		size = 1
	}
	p := &snapshotPool{indexID: indexID, dimensions: dimensions, packed: packed, pool: make(chan *bbolt.Tx, size)}
	for i := 0; i < size; i++ {
		tx, err := db.Begin(false)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("hannoygo: opening snapshot reader %d/%d: %w", i+1, size, err)
		}
		p.opened = append(p.opened, tx)
		p.pool <- tx
	}
	return p, nil
}

// close rolls back every transaction this pool opened. Call once, after the
// build's write transaction has committed or been abandoned.
func (p *snapshotPool) close() error {
	var firstErr error
	for _, tx := range p.opened {
		if err := tx.Rollback(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// borrow checks out one transaction for the duration of fn and returns it
// to the pool afterward, blocking if every transaction is currently lent
// out.
func (p *snapshotPool) borrow(fn func(*bbolt.Tx) error) error {
	tx := <-p.pool
	defer func() { p.pool <- tx }()
	return fn(tx)
}

// Vector implements graph.Snapshot: resolve an item's stored vector.
func (p *snapshotPool) Vector(id uint32) ([]float32, error) {
	var vec []float32
	err := p.borrow(func(tx *bbolt.Tx) error {
		v, ok := get(tx, itemKey(p.indexID, ModeItem, id))
		if !ok {
			return fmt.Errorf("%w: item %d", ErrMissingKey, id)
		}
		item, err := codec.DecodeItem(v, distance.HeaderLen, p.dimensions, p.packed)
		if err != nil {
			return err
		}
		vec = item.Vector
		return nil
	})
	return vec, err
}

// Links implements graph.Snapshot: the persisted neighbor ids of (id,
// level), or an empty slice if no record exists (a node with no committed
// links at this level, e.g. newly bootstrapped and never yet built).
func (p *snapshotPool) Links(id uint32, level uint8) ([]uint32, error) {
	var ids []uint32
	err := p.borrow(func(tx *bbolt.Tx) error {
		v, ok := get(tx, linksKey(p.indexID, id, level))
		if !ok {
			return nil
		}
		links, err := codec.DecodeLinks(v)
		if err != nil {
			return err
		}
		ids = links.Neighbors.ToSlice()
		return nil
	})
	return ids, err
}

// IDsAtLevel implements graph.Snapshot: every item id with a persisted
// Links record at level, found by a prefix scan over the index's Links
// mode filtered to that layer.
func (p *snapshotPool) IDsAtLevel(level uint8) ([]uint32, error) {
	var ids []uint32
	err := p.borrow(func(tx *bbolt.Tx) error {
		return forEachPrefix(tx, prefixMode(p.indexID, ModeLinks), func(k, _ []byte) error {
			_, _, itemID, layer := decodeKey(k)
			if layer == level {
				ids = append(ids, itemID)
			}
			return nil
		})
	})
	return ids, err
}
