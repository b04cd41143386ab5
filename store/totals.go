package store

import "math/big"

// TotalType is the bit-packed four-axis enum from spec.md §3/§4.G.
type TotalType uint32

const (
	TotalAxisDA        TotalType = 1 << 0 // 0 = destination, 1 = account
	TotalAxisPending   TotalType = 1 << 1
	TotalAxisAllocated TotalType = 1 << 2
	TotalAxisRB        TotalType = 1 << 3 // 0 = balance, 1 = received
	TotalAxisWatch     TotalType = 1 << 4 // track (0) vs watch (1), received-only
)

func totalsKey(typ TotalType, reference, asset uint64, delaytime uint32, blockchain uint64) []byte {
	return concatKey(be32(uint32(typ)), be64(reference), be64(asset), be32(delaytime), be64(blockchain))
}

// encodeSigned128 stores a signed 128-bit amount big-endian with leading
// zero bytes trimmed, per spec.md §4.B's totals table definition. The sign
// is recovered by the caller from the surrounding arithmetic: this store
// always holds non-negative magnitudes because AddBalance clamps at the
// call site (consistent with totals never going negative under valid
// transition sequences, per invariant 7).
func encodeSigned128(v *big.Int) []byte {
	if v.Sign() <= 0 {
		return nil
	}
	b := v.Bytes()
	if len(b) > 16 {
		b = b[len(b)-16:]
	}
	return b
}

func decodeSigned128(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// AddBalance adds delta (which may be negative) to a single totals row,
// creating it at zero first if absent, per spec.md §4.G.
func (w *WriteTx) AddBalance(typ TotalType, reference, asset uint64, delaytime uint32, blockchain uint64, delta *big.Int) error {
	b := w.bucket(bucketTotals)
	key := totalsKey(typ, reference, asset, delaytime, blockchain)
	cur := decodeSigned128(b.Get(key))
	cur.Add(cur, delta)
	if cur.Sign() < 0 {
		cur.SetInt64(0)
	}
	return b.Put(key, encodeSigned128(cur))
}

// AddBalances fans a single economic delta out into the wallet-wide and
// per-account balance rows and, when typ carries the RB (received) bit,
// also into the per-account and per-destination received rows (the
// destination-keyed rows with the track/watch axis cleared, so a tracked
// or watched billet's received amount still lands in the plain
// per-destination bucket), per spec.md §4.G. account and destination are
// the DA=account and DA=destination references respectively; typ supplies
// the PENDING/ALLOCATED axis bits and the RB bit, and must not itself carry
// the DA bit.
func (w *WriteTx) AddBalances(typ TotalType, account, destination, asset uint64, delaytime uint32, blockchain uint64, delta *big.Int) error {
	typBalance := (typ &^ TotalAxisRB) &^ TotalAxisDA

	if err := w.AddBalance(typBalance, 0, asset, delaytime, blockchain, delta); err != nil {
		return err
	}
	if err := w.AddBalance(typBalance|TotalAxisDA, account, asset, delaytime, blockchain, delta); err != nil {
		return err
	}

	if typ&TotalAxisRB == 0 {
		return nil
	}

	if err := w.AddBalance(typ|TotalAxisDA, account, asset, delaytime, blockchain, delta); err != nil {
		return err
	}

	typDest := (typ &^ TotalAxisWatch) &^ TotalAxisDA
	if err := w.AddBalance(typDest, 0, asset, delaytime, blockchain, delta); err != nil {
		return err
	}
	return w.AddBalance(typDest, destination, asset, delaytime, blockchain, delta)
}

func (s *Snapshot) totalsGet(typ TotalType, reference, asset uint64, delaytime uint32, blockchain uint64) *big.Int {
	return decodeSigned128(s.bucket(bucketTotals).Get(totalsKey(typ, reference, asset, delaytime, blockchain)))
}

// GetTotalBalance sums totals rows matching the given axis mask and
// reference/asset/blockchain range, optionally subtracting the ALLOCATED
// total when sumPC is set and blockchain falls within [minBlockchain,
// maxBlockchain] — per spec.md §4.G.
func (s *Snapshot) GetTotalBalance(typ TotalType, reference, asset uint64, delaytime uint32, blockchain uint64, sumPC bool, minBlockchain, maxBlockchain uint64) *big.Int {
	total := s.totalsGet(typ, reference, asset, delaytime, blockchain)
	if sumPC && blockchain >= minBlockchain && blockchain <= maxBlockchain {
		allocated := s.totalsGet(typ|TotalAxisAllocated, reference, asset, delaytime, blockchain)
		total = new(big.Int).Sub(total, allocated)
	}
	return total
}

// ResetTotalsForPABitset zeroes every totals row whose type falls in the
// PENDING|ALLOCATED bitset (and, if includeZeroType is set, rows with type
// exactly 0), per spec.md §4.G's reset_allocated(reset_balance).
func (w *WriteTx) ResetTotalsForPABitset(includeZeroType bool) error {
	b := w.bucket(bucketTotals)
	c := b.Cursor()
	var toZero [][]byte
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if len(k) < 4 {
			continue
		}
		typ := TotalType(decodeBE32(k[:4]))
		if typ&(TotalAxisPending|TotalAxisAllocated) != 0 || (includeZeroType && typ == 0) {
			toZero = append(toZero, append([]byte(nil), k...))
		}
	}
	for _, k := range toZero {
		if err := b.Put(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// NoWaitAmounts is the global reserved-amount tracker pair from spec.md
// §4.G: a single (pending, required) row, signed updates saturating at
// zero, required never allowed to exceed pending.
type NoWaitAmounts struct {
	Pending  uint64
	Required uint64
}

var noWaitAmountsKey = []byte("__no_wait_amounts__")

func (s *Snapshot) NoWaitAmountsSelect() NoWaitAmounts {
	v := s.bucket(bucketParams).Get(noWaitAmountsKey)
	if len(v) < 16 {
		return NoWaitAmounts{}
	}
	return NoWaitAmounts{Pending: decodeBE64(v[:8]), Required: decodeBE64(v[8:16])}
}

func saturateAdd(base uint64, delta int64) uint64 {
	v := int64(base) + delta
	if v < 0 {
		return 0
	}
	return uint64(v)
}

// AddNoWaitAmounts performs the signed saturating update described in
// spec.md §4.G, returning an error if the update would raise required
// above pending.
func (w *WriteTx) AddNoWaitAmounts(pendingDelta int64, addPending bool, requiredDelta int64, addRequired bool) error {
	cur := (&Snapshot{tx: w.tx}).NoWaitAmountsSelect()
	next := cur
	if addPending {
		next.Pending = saturateAdd(cur.Pending, pendingDelta)
	}
	if addRequired {
		next.Required = saturateAdd(cur.Required, requiredDelta)
	}
	if next.Required > next.Pending {
		return storeErr(ErrInvalidArgs, "no-wait required would exceed pending")
	}
	buf := append(be64(next.Pending), be64(next.Required)...)
	return w.bucket(bucketParams).Put(noWaitAmountsKey, buf)
}

// GetNoWaitNetRequired returns max(required - pending, 0).
func (s *Snapshot) GetNoWaitNetRequired() uint64 {
	n := s.NoWaitAmountsSelect()
	if n.Required <= n.Pending {
		return 0
	}
	return n.Required - n.Pending
}
