package store

// commit_tree(height, offset) -> bytes[TX_MERKLE_BYTES], per spec.md §4.B.
// Keys are big-endian (height, offset) so a bucket scan at a fixed height
// walks offsets in increasing order — not required by the current tree
// algorithm (which reads single rows), but it keeps the table debuggable
// with a plain bucket cursor dump.
func treeRowKey(height uint32, offset uint64) []byte {
	return concatKey(be32(height), be64(offset))
}

func (s *Snapshot) CommitTreeSelect(height uint32, offset uint64) ([]byte, bool, error) {
	v := s.bucket(bucketCommitTree).Get(treeRowKey(height, offset))
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// CommitTreeInsert writes a row, failing with ErrDuplicate if height==0 and
// the commitnum slot is already occupied (spec.md §4.C: "fails if
// duplicate" applies to add_commitment, i.e. height 0).
func (w *WriteTx) CommitTreeInsert(height uint32, offset uint64, value []byte) error {
	b := w.bucket(bucketCommitTree)
	key := treeRowKey(height, offset)
	if height == 0 && b.Get(key) != nil {
		return storeErr(ErrDuplicate, "commitment already present at this commitnum")
	}
	return b.Put(key, value)
}
