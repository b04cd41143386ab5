// Package store implements the persistent key/value tables described in
// SPEC_FULL.md §4.B, backed by go.etcd.io/bbolt, following the teacher's
// node/store.DB: one bucket per logical table, constructed once at process
// start and passed explicitly to every consumer (tree.Engine, book.Book,
// billet.Ledger, ingress handlers) rather than reached through a global.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var allBuckets = [][]byte{
	bucketParams,
	bucketCommitTree,
	bucketCommitRoots,
	bucketCommitRootsByCommitnum,
	bucketTxOutputs,
	bucketSerialsIndelible,
	bucketSerialsPending,
	bucketXreqs,
	bucketXreqsByRate,
	bucketXreqsByPendingRate,
	bucketXmatches,
	bucketXmatchesByXreqnum,
	bucketBillets,
	bucketBilletsByAmount,
	bucketBilletsByAddrCommit,
	bucketBilletsByCommitnum,
	bucketBilletsByAsset,
	bucketTotals,
}

// DB is the single handle every subsystem in this repository shares.
type DB struct {
	path string
	bolt *bolt.DB
	shut bool
}

// Open creates/opens the bbolt file at path and ensures every table exists.
func Open(path string) (*DB, error) {
	if path == "" {
		return nil, storeErr(ErrInvalidArgs, "path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, storeErr(ErrIO, err.Error())
	}
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, storeErr(ErrIO, fmt.Sprintf("open bbolt: %v", err))
	}
	d := &DB{path: path, bolt: bdb}
	if err := bdb.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", string(b), err)
			}
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, storeErr(ErrIO, err.Error())
	}
	return d, nil
}

// Close shuts the store down. After Close, BeginRead/BeginWrite fail with
// ErrShuttingDown.
func (d *DB) Close() error {
	if d == nil || d.bolt == nil {
		return nil
	}
	d.shut = true
	if err := d.bolt.Close(); err != nil {
		return storeErr(ErrIO, err.Error())
	}
	return nil
}

func (d *DB) Path() string { return d.path }
