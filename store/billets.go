package store

import (
	"encoding/binary"
	"math/big"
)

// BilletStatus is the lifecycle named in spec.md §4.G.
type BilletStatus uint32

const (
	BilletVoid BilletStatus = iota
	BilletError
	BilletAbandoned
	BilletPending
	BilletPreallocated
	BilletSent
	BilletCleared
	BilletAllocated
	BilletSpent
)

// BilletFlags carries at minimum the receive-tracking bits referenced by
// set_status_cleared (spec.md §4.G): BILL_RECV_MASK, trust, and the
// track/watch split reused from the totals axes.
type BilletFlags uint32

const (
	BilletFlagRecvDest BilletFlags = 1 << iota
	BilletFlagRecvAccount
	BilletFlagTrusted
	BilletFlagTrack
	BilletFlagWatch
)

const BilletRecvMask = BilletFlagRecvDest | BilletFlagRecvAccount

// Billet is the wallet-side unspent-output record, per spec.md §3.
type Billet struct {
	ID           uint64
	Status       BilletStatus
	Flags        BilletFlags
	CreateTx     uint64
	DestID       uint64
	Blockchain   uint64
	Address      [32]byte
	Domain       uint32
	Asset        uint64
	AmountFp     uint32 // UniFloat wire encoding
	Amount       []byte
	Delaytime    uint32
	CommitIV     []byte
	Commitment   []byte
	Commitnum    uint64
	HasCommitnum bool
	Serialnum    []byte
	Hashkey      []byte
}

func encodeBillet(b Billet) []byte {
	w := &xreqWriter{}
	w.u32(uint32(b.Status))
	w.u32(uint32(b.Flags))
	w.u64(b.CreateTx)
	w.u64(b.DestID)
	w.u64(b.Blockchain)
	w.b = append(w.b, b.Address[:]...)
	w.u32(b.Domain)
	w.u64(b.Asset)
	w.u32(b.AmountFp)
	w.blob8(b.Amount)
	w.u32(b.Delaytime)
	w.blob8(b.CommitIV)
	w.blob8(b.Commitment)
	w.u64(b.Commitnum)
	if b.HasCommitnum {
		w.b = append(w.b, 1)
	} else {
		w.b = append(w.b, 0)
	}
	w.blob8(b.Serialnum)
	w.blob8(b.Hashkey)
	return w.b
}

func decodeBillet(id uint64, raw []byte) (Billet, error) {
	r := &xreqReader{b: raw}
	status, err := r.u32()
	if err != nil {
		return Billet{}, err
	}
	flags, err := r.u32()
	if err != nil {
		return Billet{}, err
	}
	createTx, err := r.u64()
	if err != nil {
		return Billet{}, err
	}
	destID, err := r.u64()
	if err != nil {
		return Billet{}, err
	}
	blockchain, err := r.u64()
	if err != nil {
		return Billet{}, err
	}
	addr, err := r.fixed(32)
	if err != nil {
		return Billet{}, err
	}
	domain, err := r.u32()
	if err != nil {
		return Billet{}, err
	}
	asset, err := r.u64()
	if err != nil {
		return Billet{}, err
	}
	amountFp, err := r.u32()
	if err != nil {
		return Billet{}, err
	}
	amount, err := r.blob8()
	if err != nil {
		return Billet{}, err
	}
	delaytime, err := r.u32()
	if err != nil {
		return Billet{}, err
	}
	commitIV, err := r.blob8()
	if err != nil {
		return Billet{}, err
	}
	commitment, err := r.blob8()
	if err != nil {
		return Billet{}, err
	}
	commitnum, err := r.u64()
	if err != nil {
		return Billet{}, err
	}
	hasCommitnum, err := r.byte()
	if err != nil {
		return Billet{}, err
	}
	serialnum, err := r.blob8()
	if err != nil {
		return Billet{}, err
	}
	hashkey, err := r.blob8()
	if err != nil {
		return Billet{}, err
	}
	bl := Billet{
		ID:           id,
		Status:       BilletStatus(status),
		Flags:        BilletFlags(flags),
		CreateTx:     createTx,
		DestID:       destID,
		Blockchain:   blockchain,
		Domain:       domain,
		Asset:        asset,
		AmountFp:     amountFp,
		Amount:       amount,
		Delaytime:    delaytime,
		CommitIV:     commitIV,
		Commitment:   commitment,
		Commitnum:    commitnum,
		HasCommitnum: hasCommitnum != 0,
		Serialnum:    serialnum,
		Hashkey:      hashkey,
	}
	copy(bl.Address[:], addr)
	return bl, nil
}

func billetAmountIndexKey(amount []byte, id uint64) []byte {
	// Descending amount order: invert each byte so big-endian comparison
	// on the inverted bytes sorts largest-amount-first; widened to a fixed
	// 16-byte field so shorter bigints don't collate ahead of longer ones.
	inv := make([]byte, 16)
	pad := 16 - len(amount)
	if pad < 0 {
		pad = 0
	}
	for i, bb := range amount {
		if pad+i < 16 {
			inv[pad+i] = ^bb
		}
	}
	for i := 0; i < pad; i++ {
		inv[i] = 0xff
	}
	return concatKey(inv, be64(id))
}

func (w *WriteTx) billetIndexPut(b Billet) error {
	idKey := be64(b.ID)
	if err := w.bucket(bucketBilletsByAmount).Put(billetAmountIndexKey(b.Amount, b.ID), idKey); err != nil {
		return err
	}
	if err := w.bucket(bucketBilletsByAddrCommit).Put(concatKey(b.Address[:], b.Commitment), idKey); err != nil {
		return err
	}
	if b.HasCommitnum {
		if err := w.bucket(bucketBilletsByCommitnum).Put(be64(b.Commitnum), idKey); err != nil {
			return err
		}
	}
	return w.bucket(bucketBilletsByAsset).Put(concatKey(be64(b.Blockchain), be64(b.Asset), be32(b.Delaytime), be64(binary.BigEndian.Uint64(padTo8(b.Amount)))), idKey)
}

func padTo8(b []byte) []byte {
	if len(b) >= 8 {
		return b[len(b)-8:]
	}
	out := make([]byte, 8)
	copy(out[8-len(b):], b)
	return out
}

// BilletInsert writes a new billet row and all four secondary indexes
// (amount desc+id, address+commitment, commitnum, blockchain+asset+
// delaytime+amount), per spec.md §4.B's billets table list.
func (w *WriteTx) BilletInsert(b Billet) error {
	if err := w.bucket(bucketBillets).Put(be64(b.ID), encodeBillet(b)); err != nil {
		return err
	}
	return w.billetIndexPut(b)
}

func (s *Snapshot) BilletSelect(id uint64) (Billet, bool, error) {
	v := s.bucket(bucketBillets).Get(be64(id))
	if v == nil {
		return Billet{}, false, nil
	}
	b, err := decodeBillet(id, v)
	return b, err == nil, err
}

func (s *Snapshot) BilletSelectByCommitnum(commitnum uint64) (Billet, bool, error) {
	v := s.bucket(bucketBilletsByCommitnum).Get(be64(commitnum))
	if v == nil {
		return Billet{}, false, nil
	}
	return s.BilletSelect(decodeBE64(v))
}

func (s *Snapshot) BilletSelectByAddressCommitment(address [32]byte, commitment []byte) (Billet, bool, error) {
	v := s.bucket(bucketBilletsByAddrCommit).Get(concatKey(address[:], commitment))
	if v == nil {
		return Billet{}, false, nil
	}
	return s.BilletSelect(decodeBE64(v))
}

// BilletsSelectUnspent walks every billet at status >= BilletCleared, per
// poll_unspent (spec.md §4.G).
func (s *Snapshot) BilletsSelectUnspent() ([]Billet, error) {
	c := s.bucket(bucketBillets).Cursor()
	var out []Billet
	for k, v := c.First(); k != nil; k, v = c.Next() {
		id := decodeBE64(k)
		b, err := decodeBillet(id, v)
		if err != nil {
			return nil, err
		}
		if b.Status >= BilletCleared && b.Status != BilletSpent {
			out = append(out, b)
		}
	}
	return out, nil
}

// SetStatusCleared implements spec.md §4.G's set_status_cleared: valid from
// {PENDING, ABANDONED, VOID, ERROR}. The destination status depends on
// whether the billet was fully received and whether it was preallocated.
// The caller supplies the recomputed serial (derived from the owner's
// monitor secret plus (commitment, commitnum)) when one applies — this
// package has no key material and cannot derive it itself.
func (w *WriteTx) SetStatusCleared(id uint64, commitnum uint64, serial []byte) (Billet, error) {
	b, ok, err := (&Snapshot{tx: w.tx}).BilletSelect(id)
	if err != nil {
		return Billet{}, err
	}
	if !ok {
		return Billet{}, storeErr(ErrNotFound, "billet not found")
	}
	switch b.Status {
	case BilletPending, BilletAbandoned, BilletVoid, BilletError:
	default:
		return Billet{}, storeErr(ErrInvalidArgs, "set_status_cleared: invalid source status")
	}

	prevStatus := b.Status
	if b.Flags&BilletRecvMask != BilletRecvMask {
		b.Status = BilletSent
	} else if b.Status == BilletPreallocated {
		b.Status = BilletAllocated
	} else {
		b.Status = BilletCleared
	}
	b.Commitnum = commitnum
	b.HasCommitnum = true
	if b.Flags&(BilletFlagTrack|BilletFlagWatch) != 0 && b.Status >= BilletSent {
		b.Serialnum = serial
	}

	if err := w.BilletInsert(b); err != nil {
		return Billet{}, err
	}

	// A billet inserted PENDING with a trusted receive flag counts toward
	// the PENDING totals accumulator from creation (see BilletInsert's
	// callers); once it clears PENDING that contribution backs out, per
	// spec.md §4.G and invariant 7.
	if prevStatus == BilletPending && b.Flags&BilletRecvMask != 0 && b.Flags&BilletFlagTrusted != 0 {
		amount := new(big.Int).SetBytes(b.Amount)
		amount.Neg(amount)
		if err := w.AddBalances(TotalAxisPending, 0, 0, b.Asset, b.Delaytime, b.Blockchain, amount); err != nil {
			return Billet{}, err
		}
	}

	return b, nil
}

// SetStatusSpent implements spec.md §4.G's set_status_spent: valid from any
// non-SPENT status. Transitions to SPENT and reports whether the billet was
// ALLOCATED along with its prior row; it touches no totals (billet.Ledger's
// SetStatusSpent applies the totals deltas). The billet_spends conflict-walk
// named in the spec belongs to the transaction-authoring layer (it needs
// the wallet's outgoing-tx records, which this store does not hold) and is
// therefore the caller's responsibility once this call returns the prior
// status.
func (w *WriteTx) SetStatusSpent(id uint64, hashkey []byte, txCommitnum uint64) (wasAllocated bool, prior Billet, err error) {
	b, ok, err := (&Snapshot{tx: w.tx}).BilletSelect(id)
	if err != nil {
		return false, Billet{}, err
	}
	if !ok {
		return false, Billet{}, storeErr(ErrNotFound, "billet not found")
	}
	if b.Status == BilletSpent {
		return false, Billet{}, storeErr(ErrInvalidArgs, "set_status_spent: already spent")
	}
	prior = b
	wasAllocated = b.Status == BilletAllocated
	b.Status = BilletSpent
	b.Hashkey = hashkey
	b.Commitnum = txCommitnum
	b.HasCommitnum = true
	return wasAllocated, prior, w.BilletInsert(b)
}

// ResetAllocated implements spec.md §4.G's reset_allocated: PREALLOCATED ->
// PENDING and ALLOCATED -> CLEARED. Balance-zeroing (when resetBalance is
// set) is done separately by ResetTotalsForPABitset (totals.go), which
// billet.Ledger.ResetAllocated calls after this.
func (w *WriteTx) ResetAllocated() error {
	c := w.bucket(bucketBillets).Cursor()
	type pending struct {
		id     uint64
		billet Billet
	}
	var toUpdate []pending
	for k, v := c.First(); k != nil; k, v = c.Next() {
		id := decodeBE64(k)
		b, err := decodeBillet(id, v)
		if err != nil {
			return err
		}
		switch b.Status {
		case BilletPreallocated:
			b.Status = BilletPending
			toUpdate = append(toUpdate, pending{id, b})
		case BilletAllocated:
			b.Status = BilletCleared
			toUpdate = append(toUpdate, pending{id, b})
		}
	}
	for _, p := range toUpdate {
		if err := w.BilletInsert(p.billet); err != nil {
			return err
		}
	}
	return nil
}
