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
	"encoding/binary"
	"fmt"
	"iter"
	"log"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"github.com/benbenbenbenbenben/hannoygo/codec"
	"github.com/benbenbenbenbenben/hannoygo/distance"
	"github.com/benbenbenbenbenben/hannoygo/graph"
)

// Writer is the mutation side of one index: AddItem/DelItem/Clear mark the
// index dirty, and Build reconciles every pending change into a fresh,
// consistent graph in a single write transaction. A Writer is safe to keep
// open across many calls; it holds no transaction of its own between calls.
type Writer struct {
	db         *DB
	indexID    uint16
	dist       distance.Distance
	dimensions int
	logger     *log.Logger
}

// NewWriter attaches a Writer to indexID within db. dimensions and dist
// describe how a brand-new index should be built; if the index already has
// a Metadata record, its stored dimensions/distance take precedence and
// must match what the caller supplied here, or Build reports
// InvalidVecDimensionError / UnmatchingDistanceError. Logs to log.Default()
// until SetLogger is called.
func NewWriter(db *DB, indexID uint16, dimensions int, dist distance.Distance) *Writer {
	return &Writer{db: db, indexID: indexID, dist: dist, dimensions: dimensions, logger: log.Default()}
}

// SetLogger replaces the writer's logger. Pass log.New(io.Discard, "", 0)
// to silence it.
func (w *Writer) SetLogger(l *log.Logger) {
	w.logger = l
}

// AddItem overwrites id's stored vector and marks it updated. Dimension is
// validated against the writer's configured dimensionality; no state is
// mutated on a validation failure.
func (w *Writer) AddItem(id uint32, vec []float32) error {
	if len(vec) != w.dimensions {
		return &InvalidVecDimensionError{Expected: w.dimensions, Received: len(vec)}
	}
	header := w.dist.NewHeader(vec)
	rec := codec.EncodeItem(encodeHeader(header), vec, distance.Packed(w.dist.Name()))

	err := w.db.Update(func(tx *bbolt.Tx) error {
		if err := put(tx, itemKey(w.indexID, ModeItem, id), rec); err != nil {
			return err
		}
		return put(tx, itemKey(w.indexID, ModeUpdated, id), []byte{1})
	})
	return wrapStoreErr(w.indexID, err)
}

// DelItem removes id's stored vector, if present, and marks it updated.
// Deleting an absent id is not an error: the caller may be synchronizing
// state from an external source of truth and cannot always know whether an
// id was already removed.
func (w *Writer) DelItem(id uint32) error {
	err := w.db.Update(func(tx *bbolt.Tx) error {
		if err := deleteKey(tx, itemKey(w.indexID, ModeItem, id)); err != nil {
			return err
		}
		return put(tx, itemKey(w.indexID, ModeUpdated, id), []byte{1})
	})
	return wrapStoreErr(w.indexID, err)
}

// Clear drops every record belonging to this index: items, links, updated
// markers, metadata, and the version record. Other indexes sharing the
// same store file are untouched.
func (w *Writer) Clear() error {
	err := w.db.Update(func(tx *bbolt.Tx) error {
		return deletePrefix(tx, prefixIndex(w.indexID))
	})
	return wrapStoreErr(w.indexID, err)
}

// NeedBuild reports whether this index has any pending updated markers, or
// has never been built at all.
func (w *Writer) NeedBuild() (bool, error) {
	need := false
	err := w.db.View(func(tx *bbolt.Tx) error {
		if _, ok := get(tx, metaKey(w.indexID)); !ok {
			need = true
			return nil
		}
		return forEachPrefix(tx, prefixMode(w.indexID, ModeUpdated), func(k, v []byte) error {
			need = true
			return errStopIteration
		})
	})
	if err == errStopIteration {
		err = nil
	}
	return need, wrapStoreErr(w.indexID, err)
}

// errStopIteration is an internal sentinel forEachPrefix callbacks use to
// break out early without signaling a real failure.
var errStopIteration = fmt.Errorf("hannoygo: internal early-stop")

// ContainsItem reports whether id currently has a stored vector.
func (w *Writer) ContainsItem(id uint32) (bool, error) {
	found := false
	err := w.db.View(func(tx *bbolt.Tx) error {
		_, found = get(tx, itemKey(w.indexID, ModeItem, id))
		return nil
	})
	return found, wrapStoreErr(w.indexID, err)
}

// Iter streams every (id, vector) pair currently stored, in ascending id
// order, stopping early if fn returns an error.
func (w *Writer) Iter(fn func(id uint32, vec []float32) error) error {
	err := w.db.View(func(tx *bbolt.Tx) error {
		return forEachPrefix(tx, prefixMode(w.indexID, ModeItem), func(k, v []byte) error {
			_, _, id, _ := decodeKey(k)
			item, err := codec.DecodeItem(v, distance.HeaderLen, w.dimensions, distance.Packed(w.dist.Name()))
			if err != nil {
				return err
			}
			return fn(id, item.Vector)
		})
	})
	return wrapStoreErr(w.indexID, err)
}

// Items returns a range-over-func iterator over every stored (id, vector)
// pair, in ascending id order. A store or decode error silently ends the
// iteration early; callers that need the error use Iter instead.
func (w *Writer) Items() iter.Seq2[uint32, []float32] {
	return func(yield func(uint32, []float32) bool) {
		_ = w.Iter(func(id uint32, vec []float32) error {
			if !yield(id, vec) {
				return errStopIteration
			}
			return nil
		})
	}
}

// Build reconciles every pending AddItem/DelItem into a freshly rebuilt
// graph and commits it, along with refreshed metadata and the version
// record, in one write transaction. No records are persisted if any step
// fails; the transaction is rolled back whole.
func (w *Writer) Build(ctx context.Context, rng *rand.Rand, opts ...BuildOption) (*graph.BuildStats, error) {
	o := applyBuildOptions(opts...)
	start := time.Now()
	w.logger.Printf("hannoygo: index %d: build starting", w.indexID)

	var stats *graph.BuildStats
	err := w.db.Update(func(tx *bbolt.Tx) error {
		meta, hadMeta, err := readMetadata(tx, w.indexID)
		if err != nil {
			return err
		}
		if hadMeta {
			if meta.Dimensions != uint32(w.dimensions) {
				return &InvalidVecDimensionError{Expected: int(meta.Dimensions), Received: w.dimensions}
			}
			if meta.Distance != w.dist.Name() {
				return &UnmatchingDistanceError{Expected: meta.Distance, Received: w.dist.Name()}
			}
		} else {
			meta = codec.Metadata{
				Dimensions:  uint32(w.dimensions),
				Distance:    w.dist.Name(),
				Items:       codec.NewSet(),
				EntryPoints: codec.NewSet(),
			}
		}

		packed := distance.Packed(w.dist.Name())

		itemIndices := make(map[uint32]bool)
		if err := forEachPrefix(tx, prefixMode(w.indexID, ModeItem), func(k, _ []byte) error {
			_, _, id, _ := decodeKey(k)
			itemIndices[id] = true
			return nil
		}); err != nil {
			return err
		}

		var updatedKeys [][]byte
		updated := make(map[uint32]bool)
		if err := forEachPrefix(tx, prefixMode(w.indexID, ModeUpdated), func(k, _ []byte) error {
			_, _, id, _ := decodeKey(k)
			updated[id] = true
			updatedKeys = append(updatedKeys, append([]byte(nil), k...))
			return nil
		}); err != nil {
			return err
		}
		for _, k := range updatedKeys {
			if err := deleteKey(tx, k); err != nil {
				return err
			}
		}

		var toInsert []graph.Item
		toDelete := make(map[uint32]bool)
		for id := range updated {
			if itemIndices[id] {
				v, ok := get(tx, itemKey(w.indexID, ModeItem, id))
				if !ok {
					return fmt.Errorf("%w: item %d", ErrMissingKey, id)
				}
				item, err := codec.DecodeItem(v, distance.HeaderLen, w.dimensions, packed)
				if err != nil {
					return err
				}
				toInsert = append(toInsert, graph.Item{ID: id, Vector: item.Vector})
			} else {
				toDelete[id] = true
			}
		}

		// Every former entry point that is being deleted in this build
		// must not be handed to the builder as a live entry point. If
		// that empties the entry-point set entirely while items still
		// survive, every surviving item is folded into to_insert so the
		// builder's bootstrap-at-max-level logic re-populates entry
		// points from them.
		survivingEPs := make([]uint32, 0, len(meta.EntryPoints.ToSlice()))
		hadEPs := meta.EntryPoints.Len() > 0
		for _, id := range meta.EntryPoints.ToSlice() {
			if !toDelete[id] {
				survivingEPs = append(survivingEPs, id)
			}
		}
		if hadEPs && len(survivingEPs) == 0 {
			already := make(map[uint32]bool, len(toInsert))
			for _, it := range toInsert {
				already[it.ID] = true
			}
			for id := range itemIndices {
				if toDelete[id] || already[id] {
					continue
				}
				v, ok := get(tx, itemKey(w.indexID, ModeItem, id))
				if !ok {
					return fmt.Errorf("%w: item %d", ErrMissingKey, id)
				}
				item, err := codec.DecodeItem(v, distance.HeaderLen, w.dimensions, packed)
				if err != nil {
					return err
				}
				toInsert = append(toInsert, graph.Item{ID: id, Vector: item.Vector})
			}
		}

		// toInsert was accumulated from map ranges, so its order is
		// arbitrary; a single-worker build must insert in a reproducible
		// order for builds to be byte-for-byte repeatable.
		sort.Slice(toInsert, func(i, j int) bool { return toInsert[i].ID < toInsert[j].ID })

		workers := o.Workers
		if workers < 1 {
			workers = 1
		}
		pool, err := newSnapshotPool(w.db, w.indexID, workers+1, w.dimensions, packed)
		if err != nil {
			return err
		}
		defer pool.close()

		builder := graph.NewBuilder(w.dist, pool, o.M, o.M0, o.EfConstruction, workers, int(meta.MaxLevel), survivingEPs)
		builder.Progress = o.Progress
		result, err := builder.Build(ctx, toInsert, toDeleteSlice(toDelete), rng)
		if err != nil {
			return err
		}
		stats = result

		if err := commitLayers(tx, w.indexID, builder); err != nil {
			return err
		}
		for id := range toDelete {
			if err := deletePrefix(tx, itemLinksPrefix(w.indexID, id)); err != nil {
				return err
			}
			if err := deleteKey(tx, itemKey(w.indexID, ModeItem, id)); err != nil {
				return err
			}
		}

		newItems := codec.NewSet()
		for id := range itemIndices {
			if !toDelete[id] {
				newItems.Add(id)
			}
		}
		newEPs := codec.SetFromSlice(builder.EntryPoints)
		newMeta := codec.Metadata{
			Dimensions:  uint32(w.dimensions),
			Distance:    w.dist.Name(),
			Items:       newItems,
			EntryPoints: newEPs,
			MaxLevel:    uint8(builder.MaxLevel),
		}
		if err := put(tx, metaKey(w.indexID), codec.EncodeMetadata(newMeta)); err != nil {
			return err
		}
		return put(tx, versionKey(w.indexID), encodeVersion(formatVersion))
	})
	if err != nil {
		defaultMetrics.buildErrors.WithLabelValues(strconv.Itoa(int(w.indexID))).Inc()
		w.logger.Printf("hannoygo: index %d: build failed after %s: %v", w.indexID, time.Since(start), err)
		return nil, wrapStoreErr(w.indexID, err)
	}

	defaultMetrics.buildDuration.WithLabelValues(strconv.Itoa(int(w.indexID))).Observe(time.Since(start).Seconds())
	if stats != nil {
		defaultMetrics.itemsIndexed.WithLabelValues(strconv.Itoa(int(w.indexID)), "insert").Add(float64(stats.ItemsInserted))
		defaultMetrics.itemsIndexed.WithLabelValues(strconv.Itoa(int(w.indexID)), "delete").Add(float64(stats.ItemsDeleted))
		w.logger.Printf("hannoygo: index %d: build done in %s: %d inserted, %d deleted",
			w.indexID, stats.Duration, stats.ItemsInserted, stats.ItemsDeleted)
	}
	return stats, nil
}

func toDeleteSlice(m map[uint32]bool) []uint32 {
	out := make([]uint32, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	return out
}

// commitLayers walks every working layer map the builder produced and
// persists each node's neighbor list as a fresh Links record. Single
// threaded: no concurrent writer touches tx.
func commitLayers(tx *bbolt.Tx, indexID uint16, b *graph.Builder) error {
	for level, layer := range b.Layers() {
		for _, id := range layer.Keys() {
			ns, ok := layer.Get(id)
			if !ok {
				continue
			}
			ids := make([]uint32, len(ns.Links))
			for i, n := range ns.Links {
				ids[i] = n.ID
			}
			rec := codec.EncodeLinks(codec.SetFromSlice(ids))
			if err := put(tx, linksKey(indexID, id, uint8(level)), rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// encodeHeader packs a distance.Header (currently a single float32 norm)
// into its POD wire form. Kept distinct from codec's responsibilities
// because the Header type belongs to the distance package, not codec.
func encodeHeader(h distance.Header) []byte {
	buf := make([]byte, distance.HeaderLen)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(h.Norm))
	return buf
}

// readMetadata loads the Metadata record for indexID, if any.
func readMetadata(tx *bbolt.Tx, indexID uint16) (codec.Metadata, bool, error) {
	v, ok := get(tx, metaKey(indexID))
	if !ok {
		return codec.Metadata{}, false, nil
	}
	m, err := codec.DecodeMetadata(v)
	if err != nil {
		return codec.Metadata{}, false, err
	}
	return m, true, nil
}
