package store

import "encoding/binary"

// XreqType mirrors the XCX_* tag family (spec.md §3, "type: matching type
// (simple/naked, buy/sell)").
type XreqType uint32

const (
	XreqSimpleBuy XreqType = iota
	XreqSimpleSell
	XreqNakedBuy
	XreqNakedSell
)

// XreqFlags is the bitfield named in spec.md §3: auto-accept,
// add-immediately, no-minimum-after-first-match, must-liquidate-*.
type XreqFlags uint32

const (
	XreqFlagAutoAccept XreqFlags = 1 << iota
	XreqFlagAddImmediately
	XreqFlagNoMinimumAfterFirstMatch
	XreqFlagMustLiquidateCrossing
	XreqFlagMustLiquidateTotal
)

// Xreq is the exchange-request row per spec.md §3.
type Xreq struct {
	Xreqnum          uint64
	Type             XreqType
	BaseAsset        uint64
	QuoteAsset       uint64
	ForeignAsset     string
	MinAmount        []byte
	MaxAmount        []byte
	OpenAmount       []byte
	OpenRateRequired uint32 // UniFloat wire encoding
	PendingMatchRate uint32 // UniFloat wire encoding, 0 if none pending
	Destination      [32]byte
	ForeignAddress   string
	Flags            XreqFlags
	Pledge           uint64
	HoldTime         uint32
	PaymentTime      uint32
	Confirmations    uint32
	ExpireTime       uint64
	Blocktime        uint64
	Canceled         bool
}

type xreqWriter struct{ b []byte }

func (w *xreqWriter) u64(v uint64) {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	w.b = append(w.b, b...)
}
func (w *xreqWriter) u32(v uint32) {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	w.b = append(w.b, b...)
}
func (w *xreqWriter) blob8(v []byte) {
	w.b = append(w.b, byte(len(v)))
	w.b = append(w.b, v...)
}
func (w *xreqWriter) blob32(v []byte) {
	w.u32(uint32(len(v)))
	w.b = append(w.b, v...)
}

type xreqReader struct {
	b   []byte
	pos int
}

func (r *xreqReader) u64() (uint64, error) {
	if len(r.b)-r.pos < 8 {
		return 0, storeErr(ErrIO, "xreqs: truncated u64")
	}
	v := binary.BigEndian.Uint64(r.b[r.pos:])
	r.pos += 8
	return v, nil
}
func (r *xreqReader) u32() (uint32, error) {
	if len(r.b)-r.pos < 4 {
		return 0, storeErr(ErrIO, "xreqs: truncated u32")
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}
func (r *xreqReader) byte() (byte, error) {
	if len(r.b)-r.pos < 1 {
		return 0, storeErr(ErrIO, "xreqs: truncated byte")
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}
func (r *xreqReader) blob8() ([]byte, error) {
	n, err := r.byte()
	if err != nil {
		return nil, err
	}
	if len(r.b)-r.pos < int(n) {
		return nil, storeErr(ErrIO, "xreqs: truncated blob8")
	}
	v := append([]byte(nil), r.b[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return v, nil
}
func (r *xreqReader) blob32() ([]byte, error) {
	n, err := r.u32()
	if err != nil {
		return nil, err
	}
	if len(r.b)-r.pos < int(n) {
		return nil, storeErr(ErrIO, "xreqs: truncated blob32")
	}
	v := append([]byte(nil), r.b[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return v, nil
}
func (r *xreqReader) fixed(n int) ([]byte, error) {
	if len(r.b)-r.pos < n {
		return nil, storeErr(ErrIO, "xreqs: truncated fixed field")
	}
	v := append([]byte(nil), r.b[r.pos:r.pos+n]...)
	r.pos += n
	return v, nil
}

func encodeXreq(x Xreq) []byte {
	w := &xreqWriter{}
	w.u32(uint32(x.Type))
	w.u64(x.BaseAsset)
	w.u64(x.QuoteAsset)
	w.blob32([]byte(x.ForeignAsset))
	w.blob8(x.MinAmount)
	w.blob8(x.MaxAmount)
	w.blob8(x.OpenAmount)
	w.u32(x.OpenRateRequired)
	w.u32(x.PendingMatchRate)
	w.b = append(w.b, x.Destination[:]...)
	w.blob32([]byte(x.ForeignAddress))
	w.u32(uint32(x.Flags))
	w.u64(x.Pledge)
	w.u32(x.HoldTime)
	w.u32(x.PaymentTime)
	w.u32(x.Confirmations)
	w.u64(x.ExpireTime)
	w.u64(x.Blocktime)
	if x.Canceled {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
	return w.b
}

func decodeXreq(xreqnum uint64, b []byte) (Xreq, error) {
	r := &xreqReader{b: b}
	typ, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	base, err := r.u64()
	if err != nil {
		return Xreq{}, err
	}
	quote, err := r.u64()
	if err != nil {
		return Xreq{}, err
	}
	foreignAsset, err := r.blob32()
	if err != nil {
		return Xreq{}, err
	}
	minAmount, err := r.blob8()
	if err != nil {
		return Xreq{}, err
	}
	maxAmount, err := r.blob8()
	if err != nil {
		return Xreq{}, err
	}
	openAmount, err := r.blob8()
	if err != nil {
		return Xreq{}, err
	}
	openRate, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	pendingRate, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	dest, err := r.fixed(32)
	if err != nil {
		return Xreq{}, err
	}
	foreignAddr, err := r.blob32()
	if err != nil {
		return Xreq{}, err
	}
	flags, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	pledge, err := r.u64()
	if err != nil {
		return Xreq{}, err
	}
	holdTime, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	paymentTime, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	confirmations, err := r.u32()
	if err != nil {
		return Xreq{}, err
	}
	expireTime, err := r.u64()
	if err != nil {
		return Xreq{}, err
	}
	blocktime, err := r.u64()
	if err != nil {
		return Xreq{}, err
	}
	canceled, err := r.byte()
	if err != nil {
		return Xreq{}, err
	}

	x := Xreq{
		Xreqnum:          xreqnum,
		Type:             XreqType(typ),
		BaseAsset:        base,
		QuoteAsset:       quote,
		ForeignAsset:     string(foreignAsset),
		MinAmount:        minAmount,
		MaxAmount:        maxAmount,
		OpenAmount:       openAmount,
		OpenRateRequired: openRate,
		PendingMatchRate: pendingRate,
		ForeignAddress:   string(foreignAddr),
		Flags:            XreqFlags(flags),
		Pledge:           pledge,
		HoldTime:         holdTime,
		PaymentTime:      paymentTime,
		Confirmations:    confirmations,
		ExpireTime:       expireTime,
		Blocktime:        blocktime,
		Canceled:         canceled != 0,
	}
	copy(x.Destination[:], dest)
	return x, nil
}

// rateBucketKey orders by (asset pair, rate, xreqnum) so a range scan from a
// given rate walks matching xreqs in rate order, then insertion order —
// the "scans by (matching_rate_required, xreqnum)" mechanism of spec.md §4.E.
func rateBucketKey(baseAsset, quoteAsset uint64, rate uint32, xreqnum uint64) []byte {
	return concatKey(be64(baseAsset), be64(quoteAsset), be32(rate), be64(xreqnum))
}

// XreqInsert assigns no id itself (the caller supplies Xreqnum, allocated by
// a monotonic counter the same way tree.GetNextCommitnum works) and indexes
// the row by open rate and, if present, pending-match rate.
func (w *WriteTx) XreqInsert(x Xreq) error {
	key := be64(x.Xreqnum)
	if err := w.bucket(bucketXreqs).Put(key, encodeXreq(x)); err != nil {
		return err
	}
	if err := w.bucket(bucketXreqsByRate).Put(rateBucketKey(x.BaseAsset, x.QuoteAsset, x.OpenRateRequired, x.Xreqnum), key); err != nil {
		return err
	}
	if x.PendingMatchRate != 0 {
		if err := w.bucket(bucketXreqsByPendingRate).Put(rateBucketKey(x.BaseAsset, x.QuoteAsset, x.PendingMatchRate, x.Xreqnum), key); err != nil {
			return err
		}
	}
	return nil
}

// XreqCancel marks the request canceled in place; callers filter canceled
// rows out of TX_QUERY_XREQS scans rather than deleting the row, preserving
// history for TX_QUERY_XMATCH_* lookups that reference it.
func (w *WriteTx) XreqCancel(xreqnum uint64) error {
	b := w.bucket(bucketXreqs)
	v := b.Get(be64(xreqnum))
	if v == nil {
		return storeErr(ErrNotFound, "xreq not found")
	}
	x, err := decodeXreq(xreqnum, v)
	if err != nil {
		return err
	}
	x.Canceled = true
	return b.Put(be64(xreqnum), encodeXreq(x))
}

func (s *Snapshot) XreqSelect(xreqnum uint64) (Xreq, bool, error) {
	v := s.bucket(bucketXreqs).Get(be64(xreqnum))
	if v == nil {
		return Xreq{}, false, nil
	}
	x, err := decodeXreq(xreqnum, v)
	return x, err == nil, err
}

// xreqScanDirection controls whether the cursor walks a bucket forward
// (ascending rate, for a buyer scanning seller asks) or backward
// (descending rate, for a seller scanning buyer bids), per spec.md §4.E.
type xreqScanDirection int

const (
	ScanAscending xreqScanDirection = iota
	ScanDescending
)

// scanXreqsByIndex walks a rate-ordered index bucket starting at rate, in
// the given direction, skipping offset non-canceled rows before collecting
// up to maxRet. Ascending walks toward higher (quoteAsset, rate, xreqnum)
// keys; descending walks toward lower ones.
func (s *Snapshot) scanXreqsByIndex(indexBucket []byte, baseAsset, quoteAsset uint64, rate uint32, offset, maxRet int, dir xreqScanDirection) ([]Xreq, error) {
	idx := s.bucket(indexBucket)
	c := idx.Cursor()
	prefix := concatKey(be64(baseAsset), be64(quoteAsset))
	seekKey := rateBucketKey(baseAsset, quoteAsset, rate, 0)

	var k, v []byte
	if dir == ScanAscending {
		k, v = c.Seek(seekKey)
	} else {
		// Seek lands at the first key >= seekKey; for a descending scan we
		// want the last key <= seekKey, so step back once unless Seek ran
		// off the end of the bucket (then Last is already correct).
		k, v = c.Seek(seekKey)
		if k == nil {
			k, v = c.Last()
		} else if string(k) > string(seekKey) {
			k, v = c.Prev()
		}
	}

	out := make([]Xreq, 0, maxRet)
	skip := offset
	for ; k != nil; {
		if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
			break
		}
		xreqnum := decodeBE64(v)
		x, err := decodeXreq(xreqnum, s.bucket(bucketXreqs).Get(v))
		if err != nil {
			return nil, err
		}
		if !x.Canceled {
			if skip > 0 {
				skip--
			} else {
				out = append(out, x)
				if len(out) >= maxRet {
					break
				}
			}
		}
		if dir == ScanAscending {
			k, v = c.Next()
		} else {
			k, v = c.Prev()
		}
	}
	return out, nil
}

// XreqsSelectOpenRateRequired implements the default (not pending-matched)
// branch of TX_QUERY_XREQS (spec.md §4.E): scans by open_rate_required.
func (s *Snapshot) XreqsSelectOpenRateRequired(baseAsset, quoteAsset uint64, rate uint32, offset, maxRet int, dir xreqScanDirection) ([]Xreq, error) {
	return s.scanXreqsByIndex(bucketXreqsByRate, baseAsset, quoteAsset, rate, offset, maxRet, dir)
}

// XreqsSelectPendingMatchRate implements the ONLY_PENDING_MATCHED branch of
// TX_QUERY_XREQS (spec.md §4.E): scans by pending_match_rate instead.
func (s *Snapshot) XreqsSelectPendingMatchRate(baseAsset, quoteAsset uint64, rate uint32, offset, maxRet int, dir xreqScanDirection) ([]Xreq, error) {
	return s.scanXreqsByIndex(bucketXreqsByPendingRate, baseAsset, quoteAsset, rate, offset, maxRet, dir)
}
