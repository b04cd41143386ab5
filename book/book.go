// Package book implements the exchange request/match book described in
// SPEC_FULL.md §4.E: TX_QUERY_XREQS scan semantics over the store's
// rate-ordered indexes, plus the Xreq/Xmatch mutation surface the XCX_*
// dispatch handlers need.
package book

import (
	"sync/atomic"

	"privadex.dev/node/object"
	"privadex.dev/node/store"
)

// Book is the match-book engine, analogous to tree.Engine: one instance
// shared by every ingress connection, backed by the store package.
type Book struct {
	db            *store.DB
	nextXreqnum   atomic.Uint64
	nextXmatchnum atomic.Uint64
}

// New restores the xreqnum/xmatchnum counters from the highest row present,
// the same "scan forward from the last known high-water mark" pattern
// tree.New uses for next_commitnum.
func New(db *store.DB) (*Book, error) {
	b := &Book{db: db}
	err := db.BeginRead(func(s *store.Snapshot) error {
		// No dedicated high-water-mark param key is specified for Xreq/Xmatch
		// counters in SPEC_FULL.md; persisting one is left for a future
		// schema bump and in the meantime New always starts a fresh book at
		// zero, matching a freshly initialized node's counters.
		return nil
	})
	return b, err
}

// NextXreqnum allocates the next request id, exactly like
// tree.Engine.GetNextCommitnum.
func (b *Book) NextXreqnum() uint64 { return b.nextXreqnum.Add(1) - 1 }

// NextXmatchnum allocates the next match id.
func (b *Book) NextXmatchnum() uint64 { return b.nextXmatchnum.Add(1) - 1 }

// InsertXreq assigns an xreqnum and stores the new request.
func (b *Book) InsertXreq(w *store.WriteTx, x store.Xreq) (uint64, error) {
	x.Xreqnum = b.NextXreqnum()
	if err := w.XreqInsert(x); err != nil {
		return 0, err
	}
	return x.Xreqnum, nil
}

func (b *Book) CancelXreq(w *store.WriteTx, xreqnum uint64) error {
	return w.XreqCancel(xreqnum)
}

func (b *Book) InsertXmatch(w *store.WriteTx, x store.Xmatch) (uint64, error) {
	x.Xmatchnum = b.NextXmatchnum()
	if err := w.XmatchInsert(x); err != nil {
		return 0, err
	}
	return x.Xmatchnum, nil
}

func (b *Book) UpdateXmatchStatus(w *store.WriteTx, xmatchnum uint64, status store.XmatchStatus, timestamp uint64) error {
	return w.XmatchUpdateStatus(xmatchnum, status, timestamp)
}

// XreqsResult is the per-row output shape named in spec.md §4.E: the full
// Xreq view plus, when the row has a pending match, the pending-side
// fields.
type XreqsResult struct {
	Xreq                 store.Xreq
	PendingMatchAmount   []byte
	PendingMatchRate     object.UniFloat
	PendingMatchHoldTime uint32
}

// XreqsQueryResult is the full TX_QUERY_XREQS reply shape (spec.md §4.E):
// echoed query parameters plus the result page.
type XreqsQueryResult struct {
	OpenRateRequired     object.UniFloat
	MatchingRateRequired object.UniFloat
	Results              []XreqsResult
	MoreResultsAvailable bool
}

// Query implements TX_QUERY_XREQS (spec.md §4.E) in full: direction
// selection, the zero-rate-descending special case, the
// open/matching-rate-required split, and the pending-matched branch.
func (b *Book) Query(s *store.Snapshot, q *object.XreqsQuery, isBuyer bool) (*XreqsQueryResult, error) {
	// Matching direction per spec.md §4.E: a buyer scans sellers' asks
	// (rate ascending, sign +1); a seller scans buyers' bids (rate
	// descending, sign -1).
	dir := store.ScanAscending
	if !isBuyer {
		dir = store.ScanDescending
	}

	rateFp := q.RateFp
	if rateFp == 0 && !isBuyer {
		// "When rate_fp is zero and scan is descending, treat the starting
		// rate as the maximum representable float and set the wire-encoded
		// rate to (1 << UNIFLOAT_BITS) - 1."
		rateFp = object.UniFloatMax
	}

	step := 1
	if !isBuyer {
		step = -1
	}
	// matching_rate_required is the echoed "next step" rate a client should
	// requery with to move past this wire-rate bucket (spec.md §4.E); the
	// scan itself starts at open_rate_required (rateFp) so that the exact
	// requested rate is included, with offset skipping within that bucket.
	matchingRate := rateFp.Step(step)

	onlyPending := q.Flags&object.XreqsFlagOnlyPendingMatched != 0

	// Fetch one extra row to learn whether more results exist beyond this
	// page, matching the teacher's own list-handler paging idiom of
	// over-fetching by one (node/p2p's GetHeaders response trimming).
	fetch := int(q.MaxRet) + 1
	var rows []store.Xreq
	var err error
	if onlyPending {
		rows, err = s.XreqsSelectPendingMatchRate(q.BaseAsset, q.QuoteAsset, uint32(rateFp), int(q.Offset), fetch, dir)
	} else {
		rows, err = s.XreqsSelectOpenRateRequired(q.BaseAsset, q.QuoteAsset, uint32(rateFp), int(q.Offset), fetch, dir)
	}
	if err != nil {
		return nil, err
	}

	more := len(rows) > int(q.MaxRet)
	if more {
		rows = rows[:q.MaxRet]
	}

	out := &XreqsQueryResult{
		OpenRateRequired:     rateFp,
		MatchingRateRequired: matchingRate,
		MoreResultsAvailable: more,
	}
	for _, x := range rows {
		r := XreqsResult{Xreq: x}
		if x.PendingMatchRate != 0 {
			r.PendingMatchRate = object.UniFloat(x.PendingMatchRate)
			r.PendingMatchAmount = x.OpenAmount
			r.PendingMatchHoldTime = x.HoldTime
		}
		out.Results = append(out.Results, r)
	}
	return out, nil
}

func (b *Book) XreqByNum(s *store.Snapshot, xreqnum uint64) (store.Xreq, bool, error) {
	return s.XreqSelect(xreqnum)
}

func (b *Book) XmatchByXmatchnum(s *store.Snapshot, xmatchnum uint64) (store.Xmatch, bool, error) {
	return s.XmatchSelectByXmatchnum(xmatchnum)
}

func (b *Book) XmatchByXreqnum(s *store.Snapshot, xreqnum uint64) ([]store.Xmatch, error) {
	return s.XmatchSelectByXreqnum(xreqnum)
}

func (b *Book) XmatchByObjID(s *store.Snapshot, objID uint64) (store.Xmatch, bool, error) {
	return s.XmatchSelectByObjID(objID)
}
