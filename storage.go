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
	"time"

	"go.etcd.io/bbolt"
)

// bucketName is the single bbolt bucket every index's records live in.
// Indices are namespaced within it by the two-byte index_id packed into every
// key (see keys.go), so one store file can host many indices.
var bucketName = []byte("hannoygo")

// DB wraps a single memory-mapped bbolt file. All indices reached through
// one DB share its mmap'd region and one writer
// transaction at a time; readers never block on a writer because bbolt
// serves them from the last committed copy-on-write snapshot.
type DB struct {
	bolt *bbolt.DB
}

// openStore opens (creating if absent) the bbolt file at path and ensures
// the shared bucket exists.
func openStore(path string) (*DB, error) {
	bolt, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = bolt.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		bolt.Close()
		return nil, err
	}
	return &DB{bolt: bolt}, nil
}

// Close releases the mmap and closes the underlying file.
func (d *DB) Close() error {
	return d.bolt.Close()
}

// Update runs fn inside a single read-write transaction, committing on a
// nil return and rolling back otherwise. Only one Update may be in flight
// at a time per DB; bbolt serializes writers internally.
func (d *DB) Update(fn func(*bbolt.Tx) error) error {
	return d.bolt.Update(func(tx *bbolt.Tx) error {
		return fn(tx)
	})
}

// View runs fn inside a read-only transaction taken against the last
// committed snapshot. Safe to call concurrently with other Views and with
// at most one in-flight Update.
func (d *DB) View(fn func(*bbolt.Tx) error) error {
	return d.bolt.View(func(tx *bbolt.Tx) error {
		return fn(tx)
	})
}

// Begin starts a transaction directly, for callers (the snapshot pool) that
// need to hold it open across multiple operations rather than within a
// single closure.
func (d *DB) Begin(writable bool) (*bbolt.Tx, error) {
	return d.bolt.Begin(writable)
}

// bucket fetches the shared bucket from an open transaction. Panics only if
// called outside a transaction the bucket was created in, which cannot
// happen through this package's API.
func bucket(tx *bbolt.Tx) *bbolt.Bucket {
	return tx.Bucket(bucketName)
}

// get reads a single key, returning (nil, false) when absent. The returned
// slice is only valid for the lifetime of tx.
func get(tx *bbolt.Tx, k []byte) ([]byte, bool) {
	v := bucket(tx).Get(k)
	if v == nil {
		return nil, false
	}
	return v, true
}

// put writes a single key-value pair.
func put(tx *bbolt.Tx, k, v []byte) error {
	return bucket(tx).Put(k, v)
}

// deleteKey removes a single key. A missing key is not an error.
func deleteKey(tx *bbolt.Tx, k []byte) error {
	return bucket(tx).Delete(k)
}

// forEachPrefix calls fn for every key with the given prefix, in ascending
// key order, stopping early if fn returns an error.
func forEachPrefix(tx *bbolt.Tx, prefix []byte, fn func(k, v []byte) error) error {
	c := bucket(tx).Cursor()
	for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
		if err := fn(k, v); err != nil {
			return err
		}
	}
	return nil
}

func hasPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// deletePrefix removes every key sharing the given prefix.
func deletePrefix(tx *bbolt.Tx, prefix []byte) error {
	c := bucket(tx).Cursor()
	var toDelete [][]byte
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		toDelete = append(toDelete, append([]byte(nil), k...))
	}
	b := bucket(tx)
	for _, k := range toDelete {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
