// Copyright (c) 2013-2024 Matteo Collina and LevelGraph Contributors
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
	"github.com/benbenbenbenbenben/hannoygo/codec"
	"github.com/benbenbenbenbenben/hannoygo/graph"
)

// BuildOptions configures one call to Build: the HNSW construction
// parameters and the worker pool used to parallelize insertion.
type BuildOptions struct {
	// M is the target number of bidirectional links per item at layers
	// above 0.
	M int

	// M0 is the target number of bidirectional links per item at layer 0,
	// conventionally 2*M.
	M0 int

	// EfConstruction is the beam width used while searching for
	// neighbor candidates during insertion.
	EfConstruction int

	// Workers bounds how many items are inserted concurrently. Workers=1
	// makes Build fully deterministic for a fixed RNG seed.
	Workers int

	// AvailableMemory is an advisory byte budget. Build does not read it;
	// the snapshot-reader transaction pool is always Workers+1 wide.
	AvailableMemory int64

	// Progress, if non-nil, is invoked after each level finishes
	// inserting, for callers that want to surface long-running builds.
	Progress graph.ProgressFunc
}

// BuildOption is a function that configures BuildOptions.
type BuildOption func(*BuildOptions)

// defaultBuildOptions mirrors the construction parameters most HNSW
// implementations converge on: M=16 gives a good recall/memory tradeoff,
// M0=2*M, and EfConstruction=100 trades build time for graph quality.
func defaultBuildOptions() *BuildOptions {
	return &BuildOptions{
		M:              16,
		M0:             32,
		EfConstruction: 100,
		Workers:        1,
	}
}

// applyBuildOptions applies a list of option functions to a BuildOptions.
func applyBuildOptions(opts ...BuildOption) *BuildOptions {
	options := defaultBuildOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithM sets the per-layer link target above layer 0.
func WithM(m int) BuildOption {
	return func(o *BuildOptions) {
		o.M = m
	}
}

// WithM0 sets the layer-0 link target.
func WithM0(m0 int) BuildOption {
	return func(o *BuildOptions) {
		o.M0 = m0
	}
}

// WithEfConstruction sets the construction-time beam width.
func WithEfConstruction(ef int) BuildOption {
	return func(o *BuildOptions) {
		o.EfConstruction = ef
	}
}

// WithWorkers sets how many items Build inserts concurrently.
func WithWorkers(n int) BuildOption {
	return func(o *BuildOptions) {
		o.Workers = n
	}
}

// WithAvailableMemory records an advisory byte budget in BuildOptions;
// Build does not read it.
func WithAvailableMemory(bytes int64) BuildOption {
	return func(o *BuildOptions) {
		o.AvailableMemory = bytes
	}
}

// WithProgress registers a callback invoked after each level of the graph
// finishes inserting during Build.
func WithProgress(fn graph.ProgressFunc) BuildOption {
	return func(o *BuildOptions) {
		o.Progress = fn
	}
}

// SearchOptions configures one call to Search.
type SearchOptions struct {
	// Count is the number of nearest neighbors to return.
	Count int

	// EfSearch is the beam width used at layer 0; larger values trade
	// latency for recall. Defaults to Count if left at zero.
	EfSearch int

	// Candidates, if non-nil, restricts results to this id set (the
	// candidate-restricted search variant).
	Candidates *codec.Set
}

// SearchOption is a function that configures SearchOptions.
type SearchOption func(*SearchOptions)

// defaultSearchOptions requests a single nearest neighbor with no
// candidate restriction.
func defaultSearchOptions() *SearchOptions {
	return &SearchOptions{
		Count:    1,
		EfSearch: 0,
	}
}

// applySearchOptions applies a list of option functions to a SearchOptions.
func applySearchOptions(opts ...SearchOption) *SearchOptions {
	options := defaultSearchOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.EfSearch <= 0 {
		options.EfSearch = options.Count
	}
	return options
}

// WithCount sets the number of nearest neighbors to return.
func WithCount(n int) SearchOption {
	return func(o *SearchOptions) {
		o.Count = n
	}
}

// WithEfSearch sets the layer-0 beam width.
func WithEfSearch(ef int) SearchOption {
	return func(o *SearchOptions) {
		o.EfSearch = ef
	}
}

// WithCandidates restricts Search to the given id set.
func WithCandidates(ids *codec.Set) SearchOption {
	return func(o *SearchOptions) {
		o.Candidates = ids
	}
}
