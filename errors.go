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
	"errors"
	"fmt"
)

// Sentinel errors surfaced to callers. Validation errors leave no state
// mutated; consistency errors abort the in-flight write transaction.
var (
	// ErrClosed is returned when operating on a closed index.
	ErrClosed = errors.New("hannoygo: index is closed")

	// ErrNeedBuild is returned when Search is attempted on an index that
	// has pending updated markers.
	ErrNeedBuild = errors.New("hannoygo: index has pending updates, call Build first")

	// ErrMissingMetadata is returned when an index has no Metadata record,
	// e.g. an index that was never built or has been cleared.
	ErrMissingMetadata = errors.New("hannoygo: index metadata is missing")

	// ErrDatabaseFull names an exhausted 32-bit item id namespace. Item ids
	// are chosen by the caller, and no operation in this package returns it.
	ErrDatabaseFull = errors.New("hannoygo: item id namespace exhausted")

	// ErrMissingKey is a consistency error: a record the graph builder
	// expected to find (typically an Item referenced by a Links record)
	// is absent from the snapshot. This indicates corruption or a bug and
	// aborts the build rather than silently skipping the item.
	ErrMissingKey = errors.New("hannoygo: expected key missing from snapshot")
)

// InvalidVecDimensionError reports a vector whose length does not match the
// index's configured dimensionality.
type InvalidVecDimensionError struct {
	Expected int
	Received int
}

func (e *InvalidVecDimensionError) Error() string {
	return fmt.Sprintf("hannoygo: invalid vector dimension: expected %d, received %d", e.Expected, e.Received)
}

// UnmatchingDistanceError reports an attempt to open an index with a
// distance function different from the one it was built with.
type UnmatchingDistanceError struct {
	Expected string
	Received string
}

func (e *UnmatchingDistanceError) Error() string {
	return fmt.Sprintf("hannoygo: distance mismatch: index was built with %q, got %q", e.Expected, e.Received)
}

// IndexError wraps an error with the index_id it occurred under, so a
// caller juggling several indexes in one store can tell them apart.
type IndexError struct {
	IndexID uint16
	Err     error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("hannoygo: index %d: %v", e.IndexID, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// wrapStoreErr wraps a host-store I/O error with index context while
// keeping it unwrappable to the underlying sentinel (e.g. bbolt.ErrTxClosed).
func wrapStoreErr(indexID uint16, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{IndexID: indexID, Err: err}
}
