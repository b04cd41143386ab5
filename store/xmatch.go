package store

// XmatchStatus is the lifecycle named in SPEC_FULL.md §4.E: pending ->
// accepted -> final, or rejected/expired.
type XmatchStatus uint32

const (
	XmatchPending XmatchStatus = iota
	XmatchAccepted
	XmatchFinal
	XmatchRejected
	XmatchExpired
)

// Xmatch is a match between one buy and one sell Xreq, per spec.md §3.
// BuyXreqnum/SellXreqnum replace the "copies of both sides' Xmatchreq
// snapshots" language with references to the immutable Xreq rows those
// snapshots were taken from; snapshot fields that can drift after match
// (open_amount, etc.) are not needed since matched Xreqs no longer mutate.
type Xmatch struct {
	Xmatchnum       uint64
	Type            XreqType
	Status          XmatchStatus
	BuyXreqnum      uint64
	SellXreqnum     uint64
	BaseAmount      []byte
	Rate            uint32 // UniFloat wire encoding
	AcceptTime      uint32
	MatchPledge     uint64
	NextDeadline    uint64
	MatchTimestamp  uint64
	AcceptTimestamp uint64
	FinalTimestamp  uint64
	AmountPaid      []byte
	MiningAmount    []byte
}

func encodeXmatch(x Xmatch) []byte {
	w := &xreqWriter{}
	w.u32(uint32(x.Type))
	w.u32(uint32(x.Status))
	w.u64(x.BuyXreqnum)
	w.u64(x.SellXreqnum)
	w.blob8(x.BaseAmount)
	w.u32(x.Rate)
	w.u32(x.AcceptTime)
	w.u64(x.MatchPledge)
	w.u64(x.NextDeadline)
	w.u64(x.MatchTimestamp)
	w.u64(x.AcceptTimestamp)
	w.u64(x.FinalTimestamp)
	w.blob8(x.AmountPaid)
	w.blob8(x.MiningAmount)
	return w.b
}

func decodeXmatch(xmatchnum uint64, b []byte) (Xmatch, error) {
	r := &xreqReader{b: b}
	typ, err := r.u32()
	if err != nil {
		return Xmatch{}, err
	}
	status, err := r.u32()
	if err != nil {
		return Xmatch{}, err
	}
	buyXreqnum, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	sellXreqnum, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	baseAmount, err := r.blob8()
	if err != nil {
		return Xmatch{}, err
	}
	rate, err := r.u32()
	if err != nil {
		return Xmatch{}, err
	}
	acceptTime, err := r.u32()
	if err != nil {
		return Xmatch{}, err
	}
	matchPledge, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	nextDeadline, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	matchTimestamp, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	acceptTimestamp, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	finalTimestamp, err := r.u64()
	if err != nil {
		return Xmatch{}, err
	}
	amountPaid, err := r.blob8()
	if err != nil {
		return Xmatch{}, err
	}
	miningAmount, err := r.blob8()
	if err != nil {
		return Xmatch{}, err
	}
	return Xmatch{
		Xmatchnum:       xmatchnum,
		Type:            XreqType(typ),
		Status:          XmatchStatus(status),
		BuyXreqnum:      buyXreqnum,
		SellXreqnum:     sellXreqnum,
		BaseAmount:      baseAmount,
		Rate:            rate,
		AcceptTime:      acceptTime,
		MatchPledge:     matchPledge,
		NextDeadline:    nextDeadline,
		MatchTimestamp:  matchTimestamp,
		AcceptTimestamp: acceptTimestamp,
		FinalTimestamp:  finalTimestamp,
		AmountPaid:      amountPaid,
		MiningAmount:    miningAmount,
	}, nil
}

// XmatchInsert indexes the new match under both sides' xreqnum so
// TX_QUERY_XMATCH_BY_XREQNUM can find it from either leg.
func (w *WriteTx) XmatchInsert(x Xmatch) error {
	key := be64(x.Xmatchnum)
	if err := w.bucket(bucketXmatches).Put(key, encodeXmatch(x)); err != nil {
		return err
	}
	byXreqnum := w.bucket(bucketXmatchesByXreqnum)
	if err := byXreqnum.Put(concatKey(be64(x.BuyXreqnum), key), key); err != nil {
		return err
	}
	return byXreqnum.Put(concatKey(be64(x.SellXreqnum), key), key)
}

func (w *WriteTx) XmatchUpdateStatus(xmatchnum uint64, status XmatchStatus, timestamp uint64) error {
	b := w.bucket(bucketXmatches)
	v := b.Get(be64(xmatchnum))
	if v == nil {
		return storeErr(ErrNotFound, "xmatch not found")
	}
	x, err := decodeXmatch(xmatchnum, v)
	if err != nil {
		return err
	}
	x.Status = status
	switch status {
	case XmatchAccepted:
		x.AcceptTimestamp = timestamp
	case XmatchFinal, XmatchRejected, XmatchExpired:
		x.FinalTimestamp = timestamp
	}
	return b.Put(be64(xmatchnum), encodeXmatch(x))
}

func (s *Snapshot) XmatchSelectByXmatchnum(xmatchnum uint64) (Xmatch, bool, error) {
	v := s.bucket(bucketXmatches).Get(be64(xmatchnum))
	if v == nil {
		return Xmatch{}, false, nil
	}
	x, err := decodeXmatch(xmatchnum, v)
	return x, err == nil, err
}

// XmatchSelectByXreqnum returns all matches referencing xreqnum, on either
// side, per TX_QUERY_XMATCH_BY_XREQNUM.
func (s *Snapshot) XmatchSelectByXreqnum(xreqnum uint64) ([]Xmatch, error) {
	idx := s.bucket(bucketXmatchesByXreqnum)
	c := idx.Cursor()
	prefix := be64(xreqnum)
	var out []Xmatch
	for k, v := c.Seek(prefix); k != nil && string(k[:len(prefix)]) == string(prefix); k, v = c.Next() {
		xmatchnum := decodeBE64(v)
		x, err := decodeXmatch(xmatchnum, s.bucket(bucketXmatches).Get(v))
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

// XmatchSelectByObjID resolves the wire ObjID concept (spec.md §4.E's
// TX_QUERY_XMATCH_BY_OBJID) down to a plain xmatchnum lookup: in this store
// Xmatch rows are keyed directly by xmatchnum, so ObjID and xmatchnum
// coincide.
func (s *Snapshot) XmatchSelectByObjID(objID uint64) (Xmatch, bool, error) {
	return s.XmatchSelectByXmatchnum(objID)
}
