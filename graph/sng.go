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

// DistFunc computes the distance between two items by id, used by
// SelectSNG to evaluate the diversity condition against already-selected
// neighbors.
type DistFunc func(a, b uint32) float32

// SelectSNG implements the Sparse Neighborhood Graph selection heuristic:
// given candidates already sorted by distance to the query ascending, it
// incrementally picks a candidate c only if, for every already-selected s,
// dist(c, s) >= c.Dist (c is closer to the query than to any previously
// picked neighbor). Selection stops once cap entries are chosen. If
// keepDiscarded is set, candidates that failed the diversity test are
// appended afterward, in their original order, to fill out the cap — for
// callers that must not return fewer entries than the candidates allow.
func SelectSNG(candidates []Candidate, cap int, keepDiscarded bool, dist DistFunc) []Candidate {
	if cap <= 0 {
		return nil
	}
	selected := make([]Candidate, 0, cap)
	var discarded []Candidate

	for _, c := range candidates {
		if len(selected) >= cap {
			discarded = append(discarded, c)
			continue
		}
		diverse := true
		for _, s := range selected {
			if dist(c.ID, s.ID) < c.Dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, c)
		} else {
			discarded = append(discarded, c)
		}
	}

	if keepDiscarded {
		for _, c := range discarded {
			if len(selected) >= cap {
				break
			}
			selected = append(selected, c)
		}
	}
	return selected
}
