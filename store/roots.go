package store

import "encoding/binary"

// CommitRoot mirrors the data model entry in SPEC_FULL.md §3:
// (block_level, timestamp, next_commitnum, root_hash).
type CommitRoot struct {
	Level         uint64
	Timestamp     uint64
	NextCommitnum uint64
	Root          []byte
}

func encodeCommitRoot(r CommitRoot) []byte {
	buf := make([]byte, 8+8+len(r.Root))
	binary.BigEndian.PutUint64(buf[0:8], r.Timestamp)
	binary.BigEndian.PutUint64(buf[8:16], r.NextCommitnum)
	copy(buf[16:], r.Root)
	return buf
}

func decodeCommitRoot(level uint64, b []byte) (CommitRoot, error) {
	if len(b) < 16 {
		return CommitRoot{}, storeErr(ErrIO, "commit_roots: truncated row")
	}
	return CommitRoot{
		Level:         level,
		Timestamp:     binary.BigEndian.Uint64(b[0:8]),
		NextCommitnum: binary.BigEndian.Uint64(b[8:16]),
		Root:          append([]byte(nil), b[16:]...),
	}, nil
}

// CommitRootsInsert inserts a new commit_roots record at level, failing
// with ErrDuplicate if level already has one ("inserted exactly once",
// spec.md §3 invariant). It also maintains the commitnum→level auxiliary
// index so TX_QUERY_INPUTS-style lookups by commitnum are O(1).
func (w *WriteTx) CommitRootsInsert(level uint64, timestamp uint64, nextCommitnum uint64, root []byte) error {
	b := w.bucket(bucketCommitRoots)
	key := be64(level)
	if b.Get(key) != nil {
		return storeErr(ErrDuplicate, "commit root already recorded at this level")
	}
	if err := b.Put(key, encodeCommitRoot(CommitRoot{Timestamp: timestamp, NextCommitnum: nextCommitnum, Root: root})); err != nil {
		return err
	}
	if nextCommitnum > 0 {
		return w.bucket(bucketCommitRootsByCommitnum).Put(be64(nextCommitnum-1), be64(level))
	}
	return nil
}

func (s *Snapshot) CommitRootsSelect(level uint64) (CommitRoot, bool, error) {
	v := s.bucket(bucketCommitRoots).Get(be64(level))
	if v == nil {
		return CommitRoot{}, false, nil
	}
	r, err := decodeCommitRoot(level, v)
	if err != nil {
		return CommitRoot{}, false, err
	}
	return r, true, nil
}

// CommitRootsByCommitnum finds the level whose tree first covered commitnum
// (i.e. the smallest level L with next_commitnum(L) > commitnum).
func (s *Snapshot) CommitRootsByCommitnum(commitnum uint64) (uint64, bool, error) {
	c := s.bucket(bucketCommitRootsByCommitnum).Cursor()
	k, v := c.Seek(be64(commitnum))
	if k == nil {
		return 0, false, nil
	}
	return decodeBE64(v), true, nil
}
