package billet

import (
	"math/big"

	"privadex.dev/node/store"
)

// Insert records a new billet (typically in PENDING or PREALLOCATED status,
// created while building or receiving a transaction) and wakes any builder
// blocked in WaitNewBillet. A billet created already PENDING with a trusted
// receive flag counts toward the PENDING totals accumulator immediately,
// per spec.md §4.G and invariant 7; SetStatusCleared backs this out when the
// billet later leaves PENDING.
func (l *Ledger) Insert(w *store.WriteTx, b store.Billet) error {
	if err := w.BilletInsert(b); err != nil {
		return err
	}

	if b.Status == store.BilletPending && b.Flags&store.BilletRecvMask != 0 && b.Flags&store.BilletFlagTrusted != 0 {
		amount := new(big.Int).SetBytes(b.Amount)
		if err := w.AddBalances(store.TotalAxisPending, 0, 0, b.Asset, b.Delaytime, b.Blockchain, amount); err != nil {
			return err
		}
	}

	l.NotifyNewBillet()
	return nil
}

func (l *Ledger) ByID(s *store.Snapshot, id uint64) (store.Billet, bool, error) {
	return s.BilletSelect(id)
}

func (l *Ledger) ByCommitnum(s *store.Snapshot, commitnum uint64) (store.Billet, bool, error) {
	return s.BilletSelectByCommitnum(commitnum)
}

func (l *Ledger) ByAddressCommitment(s *store.Snapshot, address [32]byte, commitment []byte) (store.Billet, bool, error) {
	return s.BilletSelectByAddressCommitment(address, commitment)
}

func (l *Ledger) Unspent(s *store.Snapshot) ([]store.Billet, error) {
	return s.BilletsSelectUnspent()
}

// Balance reports the totals-axis balance for a single (reference, asset,
// delaytime, blockchain) row, per spec.md §4.G's get_total_balance.
func (l *Ledger) Balance(s *store.Snapshot, typ store.TotalType, reference, asset uint64, delaytime uint32, blockchain uint64, sumPC bool, minBlockchain, maxBlockchain uint64) *big.Int {
	return s.GetTotalBalance(typ, reference, asset, delaytime, blockchain, sumPC, minBlockchain, maxBlockchain)
}
