package store

import "encoding/binary"

var (
	bucketParams                 = []byte("params")
	bucketCommitTree             = []byte("commit_tree")
	bucketCommitRoots            = []byte("commit_roots")
	bucketCommitRootsByCommitnum = []byte("commit_roots_by_commitnum")
	bucketTxOutputs              = []byte("tx_outputs")
	bucketSerialsIndelible       = []byte("serialnums_indelible")
	bucketSerialsPending         = []byte("serialnums_pending")
	bucketXreqs                  = []byte("xreqs")
	bucketXreqsByRate            = []byte("xreqs_by_rate")
	bucketXreqsByPendingRate     = []byte("xreqs_by_pending_rate")
	bucketXmatches               = []byte("xmatches")
	bucketXmatchesByXreqnum      = []byte("xmatches_by_xreqnum")
	bucketBillets                = []byte("billets")
	bucketBilletsByAmount        = []byte("billets_by_amount")
	bucketBilletsByAddrCommit    = []byte("billets_by_addr_commit")
	bucketBilletsByCommitnum     = []byte("billets_by_commitnum")
	bucketBilletsByAsset         = []byte("billets_by_asset")
	bucketTotals                 = []byte("totals")
)

// be64 encodes v as big-endian so bbolt's byte-lexicographic ordering
// within a bucket also orders numerically — required for every
// range/ordered scan in this package (height/offset rows, rate-ordered
// xreqs, amount-ordered billets).
func be64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeBE64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }
func decodeBE32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }

// concatKey joins fixed-width key components into one composite bbolt key.
func concatKey(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
