package tree

import (
	"privadex.dev/node/fieldhash"
	"privadex.dev/node/param"
	"privadex.dev/node/store"
)

// MerklePath is the per-commitnum sibling path returned by TX_QUERY_INPUTS
// (spec.md §4.E's "merkle-path[depth]"). Path[i] is the sibling at height i
// needed to walk commitnum up to the root recorded at Level.
type MerklePath struct {
	Commitnum uint64
	Level     uint64
	Root      fieldhash.Element
	Path      [param.TxMerkleDepth]fieldhash.Element
}

// GetMerklePath reads the sibling path for commitnum under the snapshot s,
// against the root stored at level. It only reads rows (no hashing), so it
// must run after the tree has been extended past commitnum's position —
// callers resolve level via store.CommitRootsByCommitnum first.
func (e *Engine) GetMerklePath(s *store.Snapshot, commitnum uint64, level uint64) (MerklePath, error) {
	root, ok, err := s.CommitRootsSelect(level)
	if err != nil {
		return MerklePath{}, err
	}
	if !ok {
		return MerklePath{}, store.ErrTreeRowMissing(0, commitnum)
	}

	out := MerklePath{Commitnum: commitnum, Level: level, Root: fieldhash.FromBytes(root.Root)}
	offset := commitnum
	for height := uint32(0); height < param.TxMerkleDepth; height++ {
		sibling := offset ^ 1
		el, ok, err := e.readRow(s, height, sibling)
		if err != nil {
			return MerklePath{}, err
		}
		if ok && height == 0 {
			el = e.provider.HashLeaf(el, sibling)
		}
		if !ok {
			nv, ok2, err := s.ParameterSelect(param.DBKeyCommitNullInput, 0)
			if err != nil {
				return MerklePath{}, err
			}
			if !ok2 {
				return MerklePath{}, store.ErrTreeRowMissing(height, sibling)
			}
			el = fieldhash.FromBytes(nv)
		}
		out.Path[height] = el
		offset /= 2
	}
	return out, nil
}

// ReduceMerklePath folds a leaf commitment with its path, bottom-up, using
// the same hash_node calls UpdateCommitTree uses, so a caller can check the
// result against the stored root (spec.md §8 invariant 3).
func ReduceMerklePath(provider fieldhash.Provider, commitment fieldhash.Element, commitnum uint64, path [param.TxMerkleDepth]fieldhash.Element) fieldhash.Element {
	cur := provider.HashLeaf(commitment, commitnum)
	offset := commitnum
	for height := uint32(0); height < param.TxMerkleDepth; height++ {
		nonroot := height < param.TxMerkleDepth-1
		sibling := path[height]
		if offset&1 == 0 {
			cur = provider.HashNode(cur, sibling, nonroot)
		} else {
			cur = provider.HashNode(sibling, cur, nonroot)
		}
		offset /= 2
	}
	return cur
}
