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
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/benbenbenbenbenben/hannoygo/distance"
)

// Snapshot is the read-only view the builder consults for data it did not
// itself just write in this build: existing vectors, and persisted Links
// records for nodes that have no working entry yet.
type Snapshot interface {
	Vector(id uint32) ([]float32, error)
	Links(id uint32, level uint8) ([]uint32, error)

	// IDsAtLevel returns every item id that has a persisted Links record
	// at level, in no particular order. Used only during link patching,
	// which must revisit every persisted record, not just the ones this
	// build's insertion phase happened to touch.
	IDsAtLevel(level uint8) ([]uint32, error)
}

// Item is one vector awaiting insertion into the graph.
type Item struct {
	ID     uint32
	Vector []float32
}

// BuildStats is the receipt returned by a completed build: how many items
// were (re)inserted and removed, and how long it took.
type BuildStats struct {
	ItemsInserted int
	ItemsDeleted  int
	Duration      time.Duration
}

// ProgressFunc is invoked once per level after every item at that level has
// finished inserting, reporting the level just completed and how many
// items remain to be inserted.
type ProgressFunc func(level int, itemsRemaining int)

// Builder drives one incremental build: level sampling, parallel per-level
// insertion, and Algorithm-4 link patching for items the caller is
// removing. A Builder is used for exactly one Build call and then
// discarded; its working layer maps are not reused across builds.
type Builder struct {
	Dist           distance.Distance
	Snapshot       Snapshot
	M              int
	M0             int
	EfConstruction int
	Workers        int
	Sampler        *LevelSampler
	Progress       ProgressFunc

	// MaxLevel and EntryPoints carry the pre-build state in and the
	// post-build state out.
	MaxLevel    int
	EntryPoints []uint32

	layers []*StripedMap
}

// NewBuilder constructs a Builder seeded with the index's current
// maxLevel/entryPoints (zero values for a fresh index).
func NewBuilder(dist distance.Distance, snap Snapshot, m, m0, efConstruction, workers int, maxLevel int, entryPoints []uint32) *Builder {
	if workers < 1 {
		workers = 1
	}
	b := &Builder{
		Dist:           dist,
		Snapshot:       snap,
		M:              m,
		M0:             m0,
		EfConstruction: efConstruction,
		Workers:        workers,
		Sampler:        NewLevelSampler(m),
		MaxLevel:       maxLevel,
		EntryPoints:    append([]uint32(nil), entryPoints...),
	}
	b.layers = make([]*StripedMap, maxLevel+1)
	for i := range b.layers {
		b.layers[i] = NewStripedMap()
	}
	return b
}

func (b *Builder) capFor(level int) int {
	if level == 0 {
		return b.M0
	}
	return b.M
}

func (b *Builder) ensureLayer(level int) *StripedMap {
	for len(b.layers) <= level {
		b.layers = append(b.layers, NewStripedMap())
	}
	return b.layers[level]
}

// Layers exposes the working per-level maps built up during Build, for the
// writer's commit phase to walk and persist.
func (b *Builder) Layers() []*StripedMap {
	return b.layers
}

// resolveVector resolves id's vector, preferring the item list supplied to
// this Build call (so newly (re)inserted items are visible before they are
// committed) and falling back to the snapshot.
func (b *Builder) resolveVector(fresh map[uint32][]float32, id uint32) ([]float32, error) {
	if v, ok := fresh[id]; ok {
		return v, nil
	}
	return b.Snapshot.Vector(id)
}

// neighborSource returns a NeighborSource that prefers a node's working
// layer entry and falls back to the persisted Links record.
func (b *Builder) neighborSource() NeighborSource {
	return func(level int, id uint32) ([]uint32, error) {
		if level < len(b.layers) {
			if ns, ok := b.layers[level].Get(id); ok {
				ids := make([]uint32, len(ns.Links))
				for i, n := range ns.Links {
					ids[i] = n.ID
				}
				return ids, nil
			}
		}
		return b.Snapshot.Links(id, uint8(level))
	}
}

// Build runs one incremental build: newly-assigned or re-assigned items are
// inserted top-down, then every surviving persisted link record that
// pointed at a deleted item is patched (Algorithm 4). It does not write
// anything to the host store — the caller commits b.Layers() and the
// updated MaxLevel/EntryPoints within its own write transaction.
func (b *Builder) Build(ctx context.Context, toInsert []Item, toDelete []uint32, rng *rand.Rand) (*BuildStats, error) {
	start := time.Now()

	fresh := make(map[uint32][]float32, len(toInsert))
	for _, it := range toInsert {
		fresh[it.ID] = it.Vector
	}

	type leveled struct {
		Item
		level int
	}
	assigned := make([]leveled, 0, len(toInsert))
	newMaxLevel := b.MaxLevel
	for _, it := range toInsert {
		lvl := b.Sampler.Sample(rng.Float64())
		assigned = append(assigned, leveled{Item: it, level: lvl})
		if lvl > newMaxLevel {
			newMaxLevel = lvl
		}
	}

	// Entry-point renewal: if the new local maximum exceeds the previous
	// maxLevel, every previous entry point must be re-enqueued for
	// re-insertion at its former level so it reconnects to the new top
	// shell, and the stale entry-point list is cleared.
	if newMaxLevel > b.MaxLevel {
		for _, id := range b.EntryPoints {
			v, err := b.Snapshot.Vector(id)
			if err != nil {
				return nil, fmt.Errorf("graph: re-enqueuing entry point %d: %w", id, err)
			}
			fresh[id] = v
			assigned = append(assigned, leveled{Item: Item{ID: id, Vector: v}, level: b.MaxLevel})
		}
		b.EntryPoints = nil
	}
	b.ensureLayer(newMaxLevel)

	// Level descending, id ascending within a level, so a single-worker
	// build processes items in a reproducible order.
	sort.Slice(assigned, func(i, j int) bool {
		if assigned[i].level != assigned[j].level {
			return assigned[i].level > assigned[j].level
		}
		return assigned[i].ID < assigned[j].ID
	})

	// With no entry point carried in (a fresh index, or every former entry
	// point deleted), the first item in order is raised to newMaxLevel so
	// the bootstrap below always yields an entry point.
	if len(b.EntryPoints) == 0 && len(assigned) > 0 {
		assigned[0].level = newMaxLevel
	}

	// Bootstrap: items tied at the new maximum become entry points and are
	// registered, with empty neighbor lists, at every layer from 0 up to
	// newMaxLevel.
	entrySet := make(map[uint32]bool, len(b.EntryPoints))
	for _, id := range b.EntryPoints {
		entrySet[id] = true
	}
	for _, a := range assigned {
		if a.level != newMaxLevel || entrySet[a.ID] {
			continue
		}
		entrySet[a.ID] = true
		b.EntryPoints = append(b.EntryPoints, a.ID)
		for lvl := 0; lvl <= newMaxLevel; lvl++ {
			b.ensureLayer(lvl).GetOrInsert(a.ID, func() *NodeState {
				return &NodeState{Cap: b.capFor(lvl)}
			})
		}
	}

	neighbors := b.neighborSource()

	// Process top-down, one contiguous equal-level group at a time, each
	// group's items inserted in parallel.
	i := 0
	for i < len(assigned) {
		j := i
		for j < len(assigned) && assigned[j].level == assigned[i].level {
			j++
		}
		group := assigned[i:j]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(b.Workers)
		for _, a := range group {
			a := a
			g.Go(func() error {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				return b.insertItem(fresh, neighbors, a.ID, a.Vector, a.level, newMaxLevel)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		if b.Progress != nil {
			b.Progress(assigned[i].level, len(assigned)-j)
		}
		i = j
	}

	b.MaxLevel = newMaxLevel

	deleted := make(map[uint32]bool, len(toDelete))
	for _, id := range toDelete {
		deleted[id] = true
	}
	if err := b.patchLinks(fresh, neighbors, deleted); err != nil {
		return nil, err
	}

	return &BuildStats{
		ItemsInserted: len(toInsert),
		ItemsDeleted:  len(toDelete),
		Duration:      time.Since(start),
	}, nil
}

// insertItem performs the per-item insertion sequence: greedy descent to
// the item's assigned level, then beam-searched, SNG-selected,
// bidirectional linking at every level from there down to 0.
func (b *Builder) insertItem(fresh map[uint32][]float32, neighbors NeighborSource, id uint32, vec []float32, level int, maxLevel int) error {
	resolve := func(other uint32) ([]float32, error) { return b.resolveVector(fresh, other) }
	header := b.Dist.NewHeader(vec)

	eps := b.EntryPoints
	if len(eps) == 0 {
		// First item in the index: it is its own entry point at every
		// layer, with no links to form.
		for lvl := 0; lvl <= level; lvl++ {
			b.ensureLayer(lvl).GetOrInsert(id, func() *NodeState {
				return &NodeState{Cap: b.capFor(lvl)}
			})
		}
		return nil
	}

	for lvl := maxLevel; lvl > level; lvl-- {
		results, err := ExploreLayer(b.Dist, resolve, neighbors, vec, header, eps, lvl, 1)
		if err != nil {
			return err
		}
		if len(results) > 0 {
			eps = []uint32{results[0].ID}
		}
	}

	for lvl := level; lvl >= 0; lvl-- {
		b.ensureLayer(lvl).GetOrInsert(id, func() *NodeState {
			return &NodeState{Cap: b.capFor(lvl)}
		})

		results, err := ExploreLayer(b.Dist, resolve, neighbors, vec, header, eps, lvl, b.EfConstruction)
		if err != nil {
			return err
		}

		capN := b.capFor(lvl)
		var selectErr error
		selected := SelectSNG(results, capN, false, func(a, other uint32) float32 {
			d, err := b.distBetween(resolve, a, other)
			if err != nil && selectErr == nil {
				selectErr = err
			}
			return d
		})
		if selectErr != nil {
			return selectErr
		}

		for _, s := range selected {
			if err := b.addLink(resolve, fresh, lvl, id, s.ID, s.Dist); err != nil {
				return err
			}
			reverse, err := b.distBetween(resolve, s.ID, id)
			if err != nil {
				return err
			}
			if err := b.addLink(resolve, fresh, lvl, s.ID, id, reverse); err != nil {
				return err
			}
		}

		if len(selected) > 0 {
			eps = make([]uint32, len(selected))
			for i, s := range selected {
				eps[i] = s.ID
			}
		}
	}

	return nil
}

// distBetween resolves the distance between two items by id, used for the
// reverse-link distance and by addLink's re-selection path.
func (b *Builder) distBetween(resolve VectorSource, a, other uint32) (float32, error) {
	va, err := resolve(a)
	if err != nil {
		return 0, ErrMissingVector{ID: a, Err: err}
	}
	vb, err := resolve(other)
	if err != nil {
		return 0, ErrMissingVector{ID: other, Err: err}
	}
	return b.Dist.Dist(va, b.Dist.NewHeader(va), vb, b.Dist.NewHeader(vb)), nil
}

// addLink implements addLink(p, q, level): append q to p's working
// neighbor list if there is room, otherwise union in q and rerun SelectSNG
// to decide what survives. resolve must be fresh-aware, since p's existing
// links can already include items inserted earlier in this same build that
// have no persisted record yet. When p has no working entry yet and is not
// itself being (re)inserted this build, the entry is seeded from p's
// persisted neighbor list first — the commit phase overwrites p's record
// wholesale from the working entry, so starting empty would throw away
// every link the survivor already had. The whole read-compute-replace
// happens under the owning shard's lock via StripedMap.Update, giving
// per-key atomicity.
func (b *Builder) addLink(resolve VectorSource, fresh map[uint32][]float32, level int, p, q uint32, qDist float32) error {
	if p == q {
		return nil
	}
	capN := b.capFor(level)
	var updateErr error

	b.ensureLayer(level).Update(p, func(existing *NodeState) *NodeState {
		if existing == nil {
			if _, isFresh := fresh[p]; !isFresh {
				seeded, err := b.seedNodeState(resolve, level, p)
				if err != nil {
					updateErr = err
					return &NodeState{Cap: capN}
				}
				existing = seeded
			} else {
				existing = &NodeState{Cap: capN}
			}
		}
		if len(existing.Links) < capN {
			existing.Links = insertSorted(existing.Links, Neighbor{ID: q, Dist: qDist})
			return existing
		}

		cands := make([]Candidate, 0, len(existing.Links)+1)
		for _, n := range existing.Links {
			cands = append(cands, Candidate{ID: n.ID, Dist: n.Dist})
		}
		cands = append(cands, Candidate{ID: q, Dist: qDist})
		sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })

		selected := SelectSNG(cands, capN, false, func(a, other uint32) float32 {
			// Distances among already-resolved candidates; resolution
			// failures here indicate snapshot corruption and are
			// surfaced by the caller via updateErr.
			d, err := b.distBetween(resolve, a, other)
			if err != nil {
				updateErr = err
				return 0
			}
			return d
		})
		existing.Links = make([]Neighbor, len(selected))
		for i, s := range selected {
			existing.Links[i] = Neighbor{ID: s.ID, Dist: s.Dist}
		}
		return existing
	})
	return updateErr
}

// seedNodeState builds the initial working entry for a survivor first
// touched by addLink this build: its persisted neighbor list, with
// distances recomputed from the owner, in ascending order. Mirrors the
// persisted-links union patchOne performs for nodes touched by a delete.
func (b *Builder) seedNodeState(resolve VectorSource, level int, p uint32) (*NodeState, error) {
	persisted, err := b.Snapshot.Links(p, uint8(level))
	if err != nil {
		return nil, fmt.Errorf("graph: loading persisted links for %d at level %d: %w", p, level, err)
	}
	ns := &NodeState{Cap: b.capFor(level)}
	for _, n := range persisted {
		d, err := b.distBetween(resolve, p, n)
		if err != nil {
			return nil, err
		}
		ns.Links = insertSorted(ns.Links, Neighbor{ID: n, Dist: d})
	}
	return ns, nil
}

// insertSorted inserts n into links, which is kept in ascending-distance
// order, maintaining that order.
func insertSorted(links []Neighbor, n Neighbor) []Neighbor {
	idx := sort.Search(len(links), func(i int) bool {
		if links[i].Dist != n.Dist {
			return links[i].Dist > n.Dist
		}
		return links[i].ID > n.ID
	})
	links = append(links, Neighbor{})
	copy(links[idx+1:], links[idx:])
	links[idx] = n
	return links
}

// patchLinks implements Algorithm 4 (FreshDiskANN-style): every persisted
// link record that points at a deleted item is rewritten so surviving
// neighbors absorb the deleted node's own neighbors as replacement
// candidates, then re-run through SelectSNG. This must visit every
// persisted (id, level) record, not merely the ones this build's insertion
// phase created a working entry for — an untouched survivor can still
// point at an id that is being deleted in this same build.
func (b *Builder) patchLinks(fresh map[uint32][]float32, neighbors NeighborSource, toDelete map[uint32]bool) error {
	if len(toDelete) == 0 {
		return nil
	}
	resolve := func(id uint32) ([]float32, error) { return b.resolveVector(fresh, id) }

	for lvl := 0; lvl <= b.MaxLevel; lvl++ {
		layer := b.ensureLayer(lvl)

		persisted, err := b.Snapshot.IDsAtLevel(uint8(lvl))
		if err != nil {
			return fmt.Errorf("graph: listing persisted links at level %d: %w", lvl, err)
		}
		visited := make(map[uint32]bool, len(persisted))
		for _, id := range persisted {
			visited[id] = true
			if toDelete[id] {
				continue
			}
			if err := b.patchOne(resolve, layer, lvl, id, toDelete); err != nil {
				return err
			}
		}
		// Working entries created earlier in this build (newly inserted
		// or bootstrapped items) have no persisted record yet but can
		// still reference a to-be-deleted id picked up during insertion.
		for _, id := range layer.Keys() {
			if visited[id] || toDelete[id] {
				continue
			}
			if err := b.patchOne(resolve, layer, lvl, id, toDelete); err != nil {
				return err
			}
		}
	}
	return nil
}

// patchOne patches a single (id, level) record: D is the persisted neighbor
// set intersected with to_delete; if D is empty and id has no working
// entry either, nothing changes. Otherwise the candidate set unions
// the persisted links, the working links (if any), and the surviving
// neighbors of every deleted neighbor, then drops everything in to_delete
// and re-runs SelectSNG.
func (b *Builder) patchOne(resolve VectorSource, layer *StripedMap, level int, id uint32, toDelete map[uint32]bool) error {
	persisted, err := b.Snapshot.Links(id, uint8(level))
	if err != nil {
		return fmt.Errorf("graph: loading persisted links for %d at level %d: %w", id, level, err)
	}
	working, hasWorking := layer.Get(id)

	union := make(map[uint32]bool, len(persisted))
	var toRemove []uint32
	for _, n := range persisted {
		union[n] = true
		if toDelete[n] {
			toRemove = append(toRemove, n)
		}
	}
	if hasWorking {
		for _, n := range working.Links {
			union[n.ID] = true
		}
	}
	if len(toRemove) == 0 && !hasWorking {
		return nil
	}

	for _, removedID := range toRemove {
		extra, err := b.Snapshot.Links(removedID, uint8(level))
		if err != nil {
			return fmt.Errorf("graph: patching links of %d at level %d: %w", id, level, err)
		}
		for _, e := range extra {
			if e != id && !toDelete[e] {
				union[e] = true
			}
		}
	}
	for d := range toDelete {
		delete(union, d)
	}
	delete(union, id)

	vOwner, err := resolve(id)
	if err != nil {
		return ErrMissingVector{ID: id, Err: err}
	}
	hOwner := b.Dist.NewHeader(vOwner)

	cands := make([]Candidate, 0, len(union))
	for other := range union {
		vo, err := resolve(other)
		if err != nil {
			return ErrMissingVector{ID: other, Err: err}
		}
		d := b.Dist.Dist(vOwner, hOwner, vo, b.Dist.NewHeader(vo))
		cands = append(cands, Candidate{ID: other, Dist: d})
	}
	sort.Slice(cands, func(i, j int) bool { return less(cands[i], cands[j]) })

	var selectErr error
	selected := SelectSNG(cands, b.capFor(level), false, func(a, other uint32) float32 {
		d, err := b.distBetween(resolve, a, other)
		if err != nil && selectErr == nil {
			selectErr = err
		}
		return d
	})
	if selectErr != nil {
		return selectErr
	}

	layer.Update(id, func(*NodeState) *NodeState {
		newLinks := make([]Neighbor, len(selected))
		for i, s := range selected {
			newLinks[i] = Neighbor{ID: s.ID, Dist: s.Dist}
		}
		return &NodeState{Links: newLinks, Cap: b.capFor(level)}
	})
	return nil
}
