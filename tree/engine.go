// Package tree implements the append-only commitment Merkle tree described
// in SPEC_FULL.md §4.C: a monotonic commitment counter plus an on-disk tree
// that is extended, not rebuilt, each time a new indelible block arrives.
package tree

import (
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"privadex.dev/node/fieldhash"
	"privadex.dev/node/param"
	"privadex.dev/node/store"
)

const cacheSize = 4096

type cacheKey struct {
	height uint32
	offset uint64
}

// Engine is the commitment tree engine. One Engine is constructed per
// process and shared by every ingress connection, the way the teacher
// shares a single `node.ChainState` across `p2p.Peer` instances.
type Engine struct {
	db       *store.DB
	provider fieldhash.Provider

	nextCommitnum           atomic.Uint64
	nextTreeUpdateCommitnum uint64 // only touched inside UpdateCommitTree, under mu
	mu                      sync.Mutex

	cache *lru.Cache[cacheKey, fieldhash.Element]
}

// New constructs an Engine and restores its counters from store, mirroring
// the teacher's `Commitments::Init` read of DB_KEY_COMMIT_COMMITNUM_HI.
func New(db *store.DB, provider fieldhash.Provider) (*Engine, error) {
	cache, err := lru.New[cacheKey, fieldhash.Element](cacheSize)
	if err != nil {
		return nil, err
	}
	e := &Engine{db: db, provider: provider, cache: cache}

	var rowEnd uint64
	var found bool
	err = db.BeginRead(func(s *store.Snapshot) error {
		v, ok, err := s.ParameterSelect(param.DBKeyCommitCommitnumHi, 0)
		if err != nil {
			return err
		}
		if ok && len(v) == 8 {
			rowEnd = decodeU64(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found {
		e.nextTreeUpdateCommitnum = rowEnd + 1
		e.nextCommitnum.Store(rowEnd + 1)
	}
	return e, nil
}

func decodeU64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

func encodeU64(v uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
	return b
}

// GetNextCommitnum returns the next free commitnum, incrementing the
// counter first if increment is true. Safe for concurrent use.
func (e *Engine) GetNextCommitnum(increment bool) uint64 {
	if increment {
		return e.nextCommitnum.Add(1) - 1
	}
	return e.nextCommitnum.Load()
}

// AddCommitment inserts commitment at (height=0, commitnum), failing with
// store.ErrDuplicate if that slot is already occupied. Must run inside the
// caller's write transaction per spec.md §6.3's atomicity requirement.
func (e *Engine) AddCommitment(w *store.WriteTx, commitnum uint64, commitment fieldhash.Element) error {
	return w.CommitTreeInsert(0, commitnum, commitment.Bytes())
}

func (e *Engine) cachePut(height uint32, offset uint64, v fieldhash.Element) {
	e.cache.Add(cacheKey{height, offset}, v)
}

func (e *Engine) readRow(s *store.Snapshot, height uint32, offset uint64) (fieldhash.Element, bool, error) {
	if v, ok := e.cache.Get(cacheKey{height, offset}); ok {
		return v, true, nil
	}
	raw, ok, err := s.CommitTreeSelect(height, offset)
	if err != nil || !ok {
		return fieldhash.Zero, ok, err
	}
	el := fieldhash.FromBytes(raw)
	e.cachePut(height, offset, el)
	return el, true, nil
}

// UpdateCommitTree runs the per-block tree-extension algorithm from
// SPEC_FULL.md §4.C / original_source's Commitments::UpdateCommitTree.
// blockHash seeds the null-sibling substitution for this block's
// extension. Must be called inside the block-finalization write
// transaction (spec.md §6.3).
func (e *Engine) UpdateCommitTree(w *store.WriteTx, blockLevel uint64, blockHash [32]byte, timestamp uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := store.SnapshotFromWrite(w)

	treeChanged := e.nextTreeUpdateCommitnum != e.nextCommitnum.Load()

	root := param.DefaultNetParams().BlockchainIDElement()

	if blockLevel == 0 || treeChanged {
		if err := w.ParameterInsert(param.DBKeyCommitBlockLevel, 0, encodeU64(blockLevel)); err != nil {
			return err
		}
	}

	if treeChanged {
		rowStart := e.nextTreeUpdateCommitnum &^ 1 // clear low bit: round down to even
		e.nextTreeUpdateCommitnum = e.nextCommitnum.Load()
		rowEnd := e.nextTreeUpdateCommitnum - 1

		nullHash := e.provider.Normalize(blockHash)

		if err := w.ParameterInsert(param.DBKeyCommitCommitnumHi, 0, encodeU64(rowEnd)); err != nil {
			return err
		}
		if err := w.ParameterInsert(param.DBKeyCommitNullInput, 0, nullHash.Bytes()); err != nil {
			return err
		}

		for height := uint32(0); height < param.TxMerkleDepth; height++ {
			for offset := rowStart; offset <= rowEnd; offset += 2 {
				h1, ok, err := e.readRow(snap, height, offset)
				if err != nil {
					return err
				}
				if !ok {
					return store.ErrTreeRowMissing(height, offset)
				}
				if height == 0 {
					h1 = e.provider.HashLeaf(h1, offset)
				}

				var h2 fieldhash.Element
				if offset >= rowEnd {
					h2 = nullHash
				} else {
					h2, ok, err = e.readRow(snap, height, offset+1)
					if err != nil {
						return err
					}
					if !ok {
						return store.ErrTreeRowMissing(height, offset+1)
					}
					if height == 0 {
						h2 = e.provider.HashLeaf(h2, offset+1)
					}
				}

				nonroot := height < param.TxMerkleDepth-1
				root = e.provider.HashNode(h1, h2, nonroot)

				if err := w.CommitTreeInsert(height+1, offset/2, root.Bytes()); err != nil {
					return err
				}
				e.cachePut(height+1, offset/2, root)
			}

			rowStart = (rowStart / 2) &^ 1
			rowEnd /= 2
		}
	}

	if blockLevel == 0 || treeChanged {
		ts := timestamp
		if blockLevel == 0 {
			ts = 0
		}
		if err := w.CommitRootsInsert(blockLevel, ts, e.nextCommitnum.Load(), root.Bytes()); err != nil {
			return err
		}
	}

	return nil
}
