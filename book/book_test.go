package book

import (
	"path/filepath"
	"testing"

	"privadex.dev/node/object"
	"privadex.dev/node/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestXreqsPagingScenario covers scenario S6: sell requests at wire-rates
// {10, 10, 20, 30}; a buyer query walks them in non-decreasing rate order
// and offset skips exactly that many entries within a rate bucket.
func TestXreqsPagingScenario(t *testing.T) {
	db := openTestDB(t)
	b, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rates := []uint32{10, 10, 20, 30}
	err = db.BeginWrite(func(w *store.WriteTx) error {
		for _, r := range rates {
			_, err := b.InsertXreq(w, store.Xreq{
				Type:             store.XreqSimpleSell,
				BaseAsset:        1,
				QuoteAsset:       2,
				OpenRateRequired: r,
				MinAmount:        []byte{1},
				MaxAmount:        []byte{10},
				OpenAmount:       []byte{10},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}

	query := func(offset uint32, rateFp object.UniFloat, maxRet uint16) *XreqsQueryResult {
		t.Helper()
		var res *XreqsQueryResult
		err := db.BeginRead(func(s *store.Snapshot) error {
			q := &object.XreqsQuery{
				BaseAsset:  1,
				QuoteAsset: 2,
				RateFp:     rateFp,
				MaxRet:     maxRet,
				Offset:     offset,
			}
			r, err := b.Query(s, q, true)
			if err != nil {
				return err
			}
			res = r
			return nil
		})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		return res
	}

	first := query(0, 0, 2)
	if len(first.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(first.Results))
	}
	for _, r := range first.Results {
		if r.Xreq.OpenRateRequired != 10 {
			t.Fatalf("expected wire-rate 10 rows, got %+v", r.Xreq)
		}
	}
	if !first.MoreResultsAvailable {
		t.Fatalf("expected more-results-available=true")
	}

	second := query(1, 0, 2)
	if len(second.Results) != 2 || second.Results[0].Xreq.OpenRateRequired != 10 || second.Results[1].Xreq.OpenRateRequired != 20 {
		t.Fatalf("offset=1 should skip exactly one row and continue the scan, got %+v", second.Results)
	}

	// Querying starting exactly at the wire-rate-20 bucket returns that row.
	third := query(0, object.UniFloat(20), 10)
	if len(third.Results) == 0 || third.Results[0].Xreq.OpenRateRequired < 20 {
		t.Fatalf("expected rows at or after wire-rate 20, got %+v", third.Results)
	}
}

func TestXmatchLifecycle(t *testing.T) {
	db := openTestDB(t)
	b, err := New(db)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var xmatchnum uint64
	err = db.BeginWrite(func(w *store.WriteTx) error {
		n, err := b.InsertXmatch(w, store.Xmatch{BuyXreqnum: 1, SellXreqnum: 2, BaseAmount: []byte{5}})
		if err != nil {
			return err
		}
		xmatchnum = n
		return b.UpdateXmatchStatus(w, xmatchnum, store.XmatchAccepted, 100)
	})
	if err != nil {
		t.Fatalf("BeginWrite: %v", err)
	}

	err = db.BeginRead(func(s *store.Snapshot) error {
		x, ok, err := b.XmatchByXmatchnum(s, xmatchnum)
		if err != nil || !ok {
			t.Fatalf("XmatchByXmatchnum: ok=%v err=%v", ok, err)
		}
		if x.Status != store.XmatchAccepted || x.AcceptTimestamp != 100 {
			t.Fatalf("unexpected match state: %+v", x)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("BeginRead: %v", err)
	}
}
