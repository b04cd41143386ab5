package store

import bolt "go.etcd.io/bbolt"

// Snapshot is a read-only, point-in-time view, per spec.md §4.B's
// begin_read/end_read contract. It wraps a single bolt.Tx opened with View,
// so every read inside the callback observes the same consistent state —
// this is what lets TX_QUERY_INPUTS/TX_QUERY_XREQS/TX_QUERY_XMATCH_* satisfy
// the single-read-snapshot requirement in spec.md §5.
type Snapshot struct {
	tx *bolt.Tx
}

// WriteTx is an exclusive, serialized write, per spec.md §4.B's begin_write
// contract. All mutations inside one WriteTx commit atomically or not at
// all (spec.md §6.3's crash-atomicity requirement).
type WriteTx struct {
	tx *bolt.Tx
}

// BeginRead mirrors the teacher's AutoCount pattern (SPEC_FULL.md §9): the
// handle is acquired via fn's scope and automatically released when fn
// returns, so there is no "acquired then forgot to release" class of bug.
// A shutting-down store refuses new snapshots.
func (d *DB) BeginRead(fn func(s *Snapshot) error) error {
	if d == nil || d.shut {
		return storeErr(ErrShuttingDown, "store is shutting down")
	}
	return d.bolt.View(func(tx *bolt.Tx) error {
		return fn(&Snapshot{tx: tx})
	})
}

// BeginWrite is the exclusive counterpart to BeginRead.
func (d *DB) BeginWrite(fn func(w *WriteTx) error) error {
	if d == nil || d.shut {
		return storeErr(ErrShuttingDown, "store is shutting down")
	}
	return d.bolt.Update(func(tx *bolt.Tx) error {
		return fn(&WriteTx{tx: tx})
	})
}

func (s *Snapshot) bucket(name []byte) *bolt.Bucket { return s.tx.Bucket(name) }
func (w *WriteTx) bucket(name []byte) *bolt.Bucket  { return w.tx.Bucket(name) }

// SnapshotFromWrite lets a caller already holding a WriteTx read through
// the same underlying transaction, e.g. tree.Engine reading rows it is
// about to overwrite in the same block-finalization transaction.
func SnapshotFromWrite(w *WriteTx) *Snapshot { return &Snapshot{tx: w.tx} }
