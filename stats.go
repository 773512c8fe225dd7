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
	"go.etcd.io/bbolt"

	"github.com/benbenbenbenbenben/hannoygo/codec"
)

// IndexStats is a point-in-time snapshot of one index's shape, computed by
// scanning its committed records. Intended for inspection and tooling; none
// of it is needed on the search path.
type IndexStats struct {
	// Items is the number of stored vectors, including ones added since
	// the last build.
	Items int

	// MaxLevel is the highest populated layer as of the last build, zero
	// if the index was never built.
	MaxLevel uint8

	// EntryPoints is the number of entry points as of the last build.
	EntryPoints int

	// LayerNodes counts the committed link records per layer, indexed by
	// level. Empty if the index was never built.
	LayerNodes []int

	// AvgOutDegree is the mean number of neighbors per layer-0 link
	// record, zero if there are none.
	AvgOutDegree float64

	// NeedBuild reports whether any updated markers are pending or the
	// index has never been built.
	NeedBuild bool
}

// Stats scans the index's committed records and returns its current shape.
func (w *Writer) Stats() (*IndexStats, error) {
	st := &IndexStats{}
	err := w.db.View(func(tx *bbolt.Tx) error {
		if err := forEachPrefix(tx, prefixMode(w.indexID, ModeItem), func(_, _ []byte) error {
			st.Items++
			return nil
		}); err != nil {
			return err
		}

		meta, hadMeta, err := readMetadata(tx, w.indexID)
		if err != nil {
			return err
		}
		if !hadMeta {
			st.NeedBuild = true
		} else {
			st.MaxLevel = meta.MaxLevel
			st.EntryPoints = meta.EntryPoints.Len()
			st.LayerNodes = make([]int, int(meta.MaxLevel)+1)
		}

		var layer0Degree int
		if err := forEachPrefix(tx, prefixMode(w.indexID, ModeLinks), func(k, v []byte) error {
			_, _, _, layer := decodeKey(k)
			if int(layer) >= len(st.LayerNodes) {
				grown := make([]int, int(layer)+1)
				copy(grown, st.LayerNodes)
				st.LayerNodes = grown
			}
			st.LayerNodes[layer]++
			if layer == 0 {
				links, err := codec.DecodeLinks(v)
				if err != nil {
					return err
				}
				layer0Degree += links.Neighbors.Len()
			}
			return nil
		}); err != nil {
			return err
		}
		if len(st.LayerNodes) > 0 && st.LayerNodes[0] > 0 {
			st.AvgOutDegree = float64(layer0Degree) / float64(st.LayerNodes[0])
		}

		if !st.NeedBuild {
			if err := forEachPrefix(tx, prefixMode(w.indexID, ModeUpdated), func(_, _ []byte) error {
				st.NeedBuild = true
				return errStopIteration
			}); err != nil && err != errStopIteration {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(w.indexID, err)
	}
	return st, nil
}
