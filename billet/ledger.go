// Package billet implements the wallet-side unspent-output lifecycle
// described in SPEC_FULL.md §4.G: a business-logic layer above store's
// billet/totals tables that owns the key material the store package never
// sees (monitor secrets, derived serials) and the new-billet availability
// signal outgoing-transaction builders block on.
package billet

import (
	"fmt"
	"math/big"
	"sync"

	"privadex.dev/node/crypto"
	"privadex.dev/node/store"
)

// Ledger is the wallet-side billet engine, analogous to tree.Engine and
// book.Book: one instance per wallet process, shared by every builder
// goroutine and the background poller.
type Ledger struct {
	db       *store.DB
	provider crypto.CryptoProvider

	mu        sync.Mutex
	cond      *sync.Cond
	available uint64
}

func New(db *store.DB, provider crypto.CryptoProvider) *Ledger {
	l := &Ledger{db: db, provider: provider}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// NotifyNewBillet wakes every goroutine blocked in WaitNewBillet, per
// spec.md §4.G's billet-available condition variable.
func (l *Ledger) NotifyNewBillet() {
	l.mu.Lock()
	l.available++
	l.mu.Unlock()
	l.cond.Broadcast()
}

// WaitNewBillet blocks until the available counter advances past
// lastCount or done is closed, returning the counter value observed so the
// caller can pass it back in as lastCount next time.
func (l *Ledger) WaitNewBillet(lastCount uint64, done <-chan struct{}) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if done != nil {
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-done:
				l.mu.Lock()
				l.cond.Broadcast()
				l.mu.Unlock()
			case <-stop:
			}
		}()
	}

	for l.available <= lastCount {
		select {
		case <-done:
			return l.available
		default:
		}
		l.cond.Wait()
	}
	return l.available
}

// deriveSerial recomputes a billet's serial number from the owner's
// monitor secret and (commitment, commitnum) — the step set_status_cleared
// names in spec.md §4.G. store/billets.go holds no key material, so the
// recomputation lives here, mirroring the teacher's split between
// node/store (bytes in/out) and node/keymgr.go (anything touching secrets).
func (l *Ledger) deriveSerial(monitorSecret, commitment []byte, commitnum uint64) []byte {
	buf := make([]byte, 0, len(monitorSecret)+len(commitment)+8)
	buf = append(buf, monitorSecret...)
	buf = append(buf, commitment...)
	for i := 7; i >= 0; i-- {
		buf = append(buf, byte(commitnum>>(8*uint(i))))
	}
	digest := l.provider.SHA3_256(buf)
	return digest[:]
}

// UnwrapMonitorSecret unwraps a monitor secret stored at rest under the
// wallet's key-encryption key, per spec.md §4.G's requirement that the
// secret never sit on disk in the clear.
func UnwrapMonitorSecret(kek, wrapped []byte) ([]byte, error) {
	return crypto.AESKeyUnwrapRFC3394(kek, wrapped)
}

// WrapMonitorSecret wraps a monitor secret for storage at rest.
func WrapMonitorSecret(kek, secret []byte) ([]byte, error) {
	return crypto.AESKeyWrapRFC3394(kek, secret)
}

// SetStatusCleared implements spec.md §4.G's set_status_cleared: recomputes
// the serial (when the billet is tracked or watched) from monitorSecret
// before delegating the status transition and index maintenance to the
// store package, then updates the balance totals for the transition.
// monitorSecret may be nil for billets with neither the track nor the
// watch flag set.
func (l *Ledger) SetStatusCleared(w *store.WriteTx, id uint64, commitnum uint64, monitorSecret []byte) (store.Billet, error) {
	before, ok, err := store.SnapshotFromWrite(w).BilletSelect(id)
	if err != nil {
		return store.Billet{}, err
	}
	if !ok {
		return store.Billet{}, fmt.Errorf("billet %d not found", id)
	}

	var serial []byte
	if before.Flags&(store.BilletFlagTrack|store.BilletFlagWatch) != 0 && monitorSecret != nil {
		serial = l.deriveSerial(monitorSecret, before.Commitment, commitnum)
	}

	after, err := w.SetStatusCleared(id, commitnum, serial)
	if err != nil {
		return store.Billet{}, err
	}

	// Balance totals accumulate for every cleared billet; only the serial
	// derivation above depends on track/watch. The PENDING-accumulator
	// backout for a PENDING-with-trusted-receive billet runs inside
	// store.WriteTx.SetStatusCleared.
	if err := l.applyClearedTotals(w, before, after); err != nil {
		return store.Billet{}, err
	}

	l.NotifyNewBillet()
	return after, nil
}

// SetStatusSpent implements spec.md §4.G's set_status_spent: runs the
// store-level transition, then updates totals — subtracting from the
// ALLOCATED axis when the billet had been allocated, and always moving the
// amount out of the balance axis. The billet_spends conflict-walk named in
// the spec belongs to the transaction-authoring layer, which owns the
// wallet's outgoing-tx records; this method only performs the billet-local
// bookkeeping.
func (l *Ledger) SetStatusSpent(w *store.WriteTx, id uint64, hashkey []byte, txCommitnum uint64) (store.Billet, error) {
	wasAllocated, prior, err := w.SetStatusSpent(id, hashkey, txCommitnum)
	if err != nil {
		return store.Billet{}, err
	}

	amount := new(big.Int).SetBytes(prior.Amount)
	neg := new(big.Int).Neg(amount)
	if wasAllocated {
		if err := w.AddBalances(store.TotalAxisAllocated, 0, 0, prior.Asset, prior.Delaytime, prior.Blockchain, neg); err != nil {
			return store.Billet{}, err
		}
	}
	if err := w.AddBalances(0, 0, 0, prior.Asset, prior.Delaytime, prior.Blockchain, neg); err != nil {
		return store.Billet{}, err
	}

	after, _, err := store.SnapshotFromWrite(w).BilletSelect(id)
	return after, err
}

// ResetAllocated implements spec.md §4.G's reset_allocated, optionally
// zeroing the PENDING/ALLOCATED totals axes as the store-level
// ResetTotalsForPABitset describes.
func (l *Ledger) ResetAllocated(w *store.WriteTx, resetBalance bool) error {
	if err := w.ResetAllocated(); err != nil {
		return err
	}
	if resetBalance {
		return w.ResetTotalsForPABitset(false)
	}
	return nil
}

// applyClearedTotals folds a set_status_cleared transition into the
// balance/received totals axes, per spec.md §4.G. Called for every
// set_status_cleared transition, tracked or not. The account parameter of the wallet's
// original AddBalances is always 0 here: a billet carries no account
// identity distinct from its destination, so every accumulation this
// package drives is wallet-account-0's.
func (l *Ledger) applyClearedTotals(w *store.WriteTx, before, after store.Billet) error {
	if before.Status == after.Status {
		return nil
	}
	amount := new(big.Int).SetBytes(after.Amount)

	if after.Status == store.BilletAllocated {
		if err := w.AddBalances(store.TotalAxisAllocated, 0, 0, after.Asset, after.Delaytime, after.Blockchain, amount); err != nil {
			return err
		}
	}

	typ := store.TotalAxisRB
	if after.Flags&store.BilletFlagWatch != 0 {
		typ |= store.TotalAxisWatch
	}
	return w.AddBalances(typ, 0, after.DestID, after.Asset, after.Delaytime, after.Blockchain, amount)
}
