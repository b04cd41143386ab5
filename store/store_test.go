package store

import (
	"math/big"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenCreatesAllBuckets(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginRead(func(s *Snapshot) error {
		for _, b := range allBuckets {
			if s.bucket(b) == nil {
				t.Errorf("bucket %s not created", string(b))
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestBeginReadAfterCloseFails(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = db.Close()
	err = db.BeginRead(func(s *Snapshot) error { return nil })
	if !isShuttingDown(err) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func isShuttingDown(err error) bool {
	se, ok := err.(*Error)
	return ok && se.Code == ErrShuttingDown
}

func TestCommitTreeInsertDuplicateAtHeightZero(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.CommitTreeInsert(0, 5, []byte("leaf")); err != nil {
			return err
		}
		err := w.CommitTreeInsert(0, 5, []byte("other"))
		if !IsDuplicate(err) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		// Non-zero heights may be rewritten freely (tree recompute).
		if err := w.CommitTreeInsert(3, 5, []byte("a")); err != nil {
			t.Fatalf("height 3 first write: %v", err)
		}
		if err := w.CommitTreeInsert(3, 5, []byte("b")); err != nil {
			t.Fatalf("height 3 rewrite should succeed: %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
}

// TestCommitRootsRoundTrip exercises invariant 2's storage half: a root
// recorded at a level is retrievable unchanged, and the commitnum index
// resolves to that level.
func TestCommitRootsRoundTrip(t *testing.T) {
	db := openTestDB(t)
	root := []byte("deadbeefdeadbeefdeadbeefdeadbeef")
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.CommitRootsInsert(7, 1700000000, 42, root)
	})
	if err != nil {
		t.Fatalf("CommitRootsInsert: %v", err)
	}

	err = db.BeginRead(func(s *Snapshot) error {
		r, ok, err := s.CommitRootsSelect(7)
		if err != nil || !ok {
			t.Fatalf("CommitRootsSelect: ok=%v err=%v", ok, err)
		}
		if string(r.Root) != string(root) || r.NextCommitnum != 42 || r.Timestamp != 1700000000 {
			t.Fatalf("unexpected root row: %+v", r)
		}
		level, ok, err := s.CommitRootsByCommitnum(10)
		if err != nil || !ok || level != 7 {
			t.Fatalf("CommitRootsByCommitnum: level=%d ok=%v err=%v", level, ok, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestCommitRootsInsertDuplicateLevel(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.CommitRootsInsert(0, 0, 1, []byte("r1")); err != nil {
			return err
		}
		err := w.CommitRootsInsert(0, 0, 1, []byte("r2"))
		if !IsDuplicate(err) {
			t.Fatalf("expected ErrDuplicate, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
}

// TestSerialStatusLaw covers spec.md §8 invariant 4: unspent -> pending ->
// indelible, and indelible is sticky regardless of later pending inserts.
func TestSerialStatusLaw(t *testing.T) {
	db := openTestDB(t)
	var s1, s2 [32]byte
	s1[0] = 0x11
	s2[0] = 0x22

	check := func(serial [32]byte, want SerialStatus) {
		t.Helper()
		err := db.BeginRead(func(s *Snapshot) error {
			rec, err := s.SerialStatusSelect(serial)
			if err != nil {
				return err
			}
			if rec.Status != want {
				t.Errorf("status = %v, want %v", rec.Status, want)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("BeginRead: %v", err)
		}
	}

	check(s1, SerialUnknown)
	check(s2, SerialUnknown)

	if err := db.BeginWrite(func(w *WriteTx) error { return w.SerialInsertPending(s1) }); err != nil {
		t.Fatalf("SerialInsertPending: %v", err)
	}
	check(s1, SerialPending)
	check(s2, SerialUnknown)

	hashkey := []byte("H")
	if err := db.BeginWrite(func(w *WriteTx) error { return w.SerialInsertIndelible(s1, hashkey, 42) }); err != nil {
		t.Fatalf("SerialInsertIndelible: %v", err)
	}

	err := db.BeginRead(func(s *Snapshot) error {
		rec, err := s.SerialStatusSelect(s1)
		if err != nil {
			return err
		}
		if rec.Status != SerialIndelible || string(rec.Hashkey) != "H" || rec.TxCommitnum != 42 {
			t.Fatalf("unexpected indelible record: %+v", rec)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
	check(s2, SerialUnknown)

	// Indelible is sticky: a later pending-insert for the same serial must
	// not downgrade it.
	if err := db.BeginWrite(func(w *WriteTx) error { return w.SerialInsertPending(s1) }); err != nil {
		t.Fatalf("SerialInsertPending after indelible: %v", err)
	}
	check(s1, SerialIndelible)
}

func TestXreqRateScanMonotonicity(t *testing.T) {
	db := openTestDB(t)
	rates := []uint32{10, 10, 20, 30}
	err := db.BeginWrite(func(w *WriteTx) error {
		for i, r := range rates {
			x := Xreq{
				Xreqnum:          uint64(i + 1),
				Type:             XreqSimpleSell,
				BaseAsset:        1,
				QuoteAsset:       2,
				OpenRateRequired: r,
				MinAmount:        []byte{1},
				MaxAmount:        []byte{10},
				OpenAmount:       []byte{10},
			}
			if err := w.XreqInsert(x); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}

	err = db.BeginRead(func(s *Snapshot) error {
		res, err := s.XreqsSelectOpenRateRequired(1, 2, 0, 0, 2, ScanAscending)
		if err != nil {
			return err
		}
		if len(res) != 2 || res[0].OpenRateRequired != 10 || res[1].OpenRateRequired != 10 {
			t.Fatalf("unexpected first page: %+v", res)
		}
		if res[0].Xreqnum != 1 || res[1].Xreqnum != 2 {
			t.Fatalf("expected id order within a rate bucket, got %+v", res)
		}

		page2, err := s.XreqsSelectOpenRateRequired(1, 2, 0, 1, 1, ScanAscending)
		if err != nil {
			return err
		}
		if len(page2) != 1 || page2[0].Xreqnum != 2 {
			t.Fatalf("offset=1 should skip first id-10 row, got %+v", page2)
		}

		page3, err := s.XreqsSelectOpenRateRequired(1, 2, 20, 0, 10, ScanAscending)
		if err != nil {
			return err
		}
		if len(page3) != 2 || page3[0].OpenRateRequired != 20 || page3[1].OpenRateRequired != 30 {
			t.Fatalf("expected non-decreasing rates from 20, got %+v", page3)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestXreqCancelExcludedFromScan(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.XreqInsert(Xreq{Xreqnum: 1, BaseAsset: 1, QuoteAsset: 2, OpenRateRequired: 10, MinAmount: []byte{1}, MaxAmount: []byte{1}, OpenAmount: []byte{1}}); err != nil {
			return err
		}
		return w.XreqCancel(1)
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		res, err := s.XreqsSelectOpenRateRequired(1, 2, 0, 0, 10, ScanAscending)
		if err != nil {
			return err
		}
		if len(res) != 0 {
			t.Fatalf("canceled xreq should not appear in scan, got %+v", res)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestXmatchIndexedByBothXreqnums(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.XmatchInsert(Xmatch{
			Xmatchnum:   1,
			BuyXreqnum:  10,
			SellXreqnum: 20,
			BaseAmount:  []byte{5},
		})
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		forBuy, err := s.XmatchSelectByXreqnum(10)
		if err != nil || len(forBuy) != 1 || forBuy[0].Xmatchnum != 1 {
			t.Fatalf("by buy xreqnum: %+v err=%v", forBuy, err)
		}
		forSell, err := s.XmatchSelectByXreqnum(20)
		if err != nil || len(forSell) != 1 || forSell[0].Xmatchnum != 1 {
			t.Fatalf("by sell xreqnum: %+v err=%v", forSell, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestBilletSetStatusClearedFromPending(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		b := Billet{
			ID:      1,
			Status:  BilletPending,
			Flags:   BilletRecvMask | BilletFlagTrack,
			Amount:  []byte{100},
			Address: [32]byte{1},
		}
		return w.BilletInsert(b)
	})
	if err != nil {
		t.Fatalf("BeginWrite insert: %v", err)
	}

	err = db.BeginWrite(func(w *WriteTx) error {
		b, err := w.SetStatusCleared(1, 99, []byte("serial"))
		if err != nil {
			return err
		}
		if b.Status != BilletCleared {
			t.Fatalf("expected CLEARED, got %v", b.Status)
		}
		if string(b.Serialnum) != "serial" {
			t.Fatalf("expected serial recorded, got %q", b.Serialnum)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SetStatusCleared: %v", err)
	}
}

func TestBilletSetStatusClearedNotFullyReceived(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.BilletInsert(Billet{ID: 2, Status: BilletPending, Flags: BilletFlagRecvDest, Amount: []byte{1}})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = db.BeginWrite(func(w *WriteTx) error {
		b, err := w.SetStatusCleared(2, 5, nil)
		if err != nil {
			return err
		}
		if b.Status != BilletSent {
			t.Fatalf("expected SENT when not fully received, got %v", b.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("SetStatusCleared: %v", err)
	}
}

func TestBilletSetStatusSpentRejectsAlreadySpent(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.BilletInsert(Billet{ID: 3, Status: BilletSpent, Amount: []byte{1}})
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = db.BeginWrite(func(w *WriteTx) error {
		_, _, err := w.SetStatusSpent(3, []byte("h"), 1)
		if err == nil {
			t.Fatalf("expected error transitioning out of SPENT")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
}

func TestTotalsAddAndGetBalance(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.AddBalance(0, 1, 2, 0, 3, big.NewInt(500)); err != nil {
			return err
		}
		return w.AddBalance(TotalAxisAllocated, 1, 2, 0, 3, big.NewInt(100))
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		got := s.GetTotalBalance(0, 1, 2, 0, 3, true, 0, 10)
		if got.Cmp(big.NewInt(400)) != 0 {
			t.Fatalf("expected balance 400 after subtracting allocated, got %s", got.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestAddBalancesPlainFansIntoWalletAndAccountRows(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.AddBalances(0, 7, 9, 2, 0, 3, big.NewInt(500))
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		if got := s.GetTotalBalance(0, 0, 2, 0, 3, false, 0, 0); got.Cmp(big.NewInt(500)) != 0 {
			t.Fatalf("wallet balance row = %s, want 500", got.String())
		}
		if got := s.GetTotalBalance(TotalAxisDA, 7, 2, 0, 3, false, 0, 0); got.Cmp(big.NewInt(500)) != 0 {
			t.Fatalf("account balance row = %s, want 500", got.String())
		}
		if got := s.GetTotalBalance(TotalAxisRB, 0, 2, 0, 3, false, 0, 0); got.Sign() != 0 {
			t.Fatalf("received row should be untouched without the RB bit, got %s", got.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestAddBalancesReceivedFansIntoFiveRows(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.AddBalances(TotalAxisRB, 7, 9, 2, 0, 3, big.NewInt(500))
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		cases := []struct {
			name string
			typ  TotalType
			ref  uint64
		}{
			{"wallet balance", 0, 0},
			{"account balance", TotalAxisDA, 7},
			{"account received", TotalAxisRB | TotalAxisDA, 7},
			{"destination received, wallet-wide", TotalAxisRB, 0},
			{"destination received, specific", TotalAxisRB, 9},
		}
		for _, c := range cases {
			if got := s.GetTotalBalance(c.typ, c.ref, 2, 0, 3, false, 0, 0); got.Cmp(big.NewInt(500)) != 0 {
				t.Fatalf("%s row = %s, want 500", c.name, got.String())
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestAddBalancesReceivedClearsWatchAxisOnDestinationRows(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		return w.AddBalances(TotalAxisRB|TotalAxisWatch, 7, 9, 2, 0, 3, big.NewInt(500))
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		if got := s.GetTotalBalance(TotalAxisRB|TotalAxisWatch|TotalAxisDA, 7, 2, 0, 3, false, 0, 0); got.Cmp(big.NewInt(500)) != 0 {
			t.Fatalf("account received row keeps the watch bit, got %s, want 500", got.String())
		}
		if got := s.GetTotalBalance(TotalAxisRB, 9, 2, 0, 3, false, 0, 0); got.Cmp(big.NewInt(500)) != 0 {
			t.Fatalf("destination received row should drop the watch bit, got %s, want 500", got.String())
		}
		if got := s.GetTotalBalance(TotalAxisRB|TotalAxisWatch, 9, 2, 0, 3, false, 0, 0); got.Sign() != 0 {
			t.Fatalf("destination received row should not land under the watch bit, got %s", got.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestSetStatusClearedFromPendingTrustedReceiveBacksOutPendingAccumulator(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		b := Billet{
			ID:      10,
			Status:  BilletPending,
			Flags:   BilletRecvMask | BilletFlagTrack | BilletFlagTrusted,
			Amount:  []byte{100},
			Address: [32]byte{1},
		}
		if err := w.BilletInsert(b); err != nil {
			return err
		}
		return w.AddBalances(TotalAxisPending, 0, 0, b.Asset, b.Delaytime, b.Blockchain, big.NewInt(100))
	})
	if err != nil {
		t.Fatalf("BeginWrite insert: %v", err)
	}

	err = db.BeginRead(func(s *Snapshot) error {
		if got := s.GetTotalBalance(TotalAxisPending, 0, 0, 0, 0, false, 0, 0); got.Cmp(big.NewInt(100)) != 0 {
			t.Fatalf("pending accumulator before clearing = %s, want 100", got.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}

	err = db.BeginWrite(func(w *WriteTx) error {
		_, err := w.SetStatusCleared(10, 77, []byte("serial"))
		return err
	})
	if err != nil {
		t.Fatalf("SetStatusCleared: %v", err)
	}

	err = db.BeginRead(func(s *Snapshot) error {
		if got := s.GetTotalBalance(TotalAxisPending, 0, 0, 0, 0, false, 0, 0); got.Sign() != 0 {
			t.Fatalf("pending accumulator after clearing = %s, want 0", got.String())
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestNoWaitAmountsRejectsRequiredAbovePending(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.AddNoWaitAmounts(100, true, 0, false); err != nil {
			return err
		}
		return w.AddNoWaitAmounts(0, false, 200, true)
	})
	if err == nil {
		t.Fatalf("expected error raising required above pending")
	}
}

func TestNoWaitNetRequired(t *testing.T) {
	db := openTestDB(t)
	err := db.BeginWrite(func(w *WriteTx) error {
		if err := w.AddNoWaitAmounts(100, true, 0, false); err != nil {
			return err
		}
		return w.AddNoWaitAmounts(0, false, 60, true)
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		if got := s.GetNoWaitNetRequired(); got != 0 {
			t.Fatalf("expected 0 (required < pending), got %d", got)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}

func TestTxOutputsByAddressOrderedByCommitnum(t *testing.T) {
	db := openTestDB(t)
	var addr [32]byte
	addr[0] = 0x42
	err := db.BeginWrite(func(w *WriteTx) error {
		for _, cn := range []uint64{5, 1, 3} {
			if err := w.TxOutputInsert(TxOutput{Blockchain: 1, Address: addr, Commitnum: cn, Amount: []byte{1}}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}
	err = db.BeginRead(func(s *Snapshot) error {
		out, err := s.TxOutputsByAddress(1, addr, 0, 20)
		if err != nil {
			return err
		}
		if len(out) != 3 || out[0].Commitnum != 1 || out[1].Commitnum != 3 || out[2].Commitnum != 5 {
			t.Fatalf("expected increasing commitnum order, got %+v", out)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}
