package billet

import (
	"context"
	"fmt"

	"privadex.dev/node/store"
)

// SerialQuerier is the narrow surface poll_unspent needs from the node
// connection: a batched serial-status lookup, matching TX_QUERY_SERIAL's
// reply shape (spec.md §4.E).
type SerialQuerier interface {
	QuerySerials(ctx context.Context, serials [][32]byte) ([]store.SerialRecord, error)
}

// PollUnspent implements spec.md §4.G's poll_unspent: walk every billet at
// status >= CLEARED, batch-query their serials against the node, and mark
// any the node reports indelible as spent.
func (l *Ledger) PollUnspent(ctx context.Context, q SerialQuerier) (int, error) {
	var candidates []store.Billet
	err := l.db.BeginRead(func(s *store.Snapshot) error {
		bs, err := s.BilletsSelectUnspent()
		candidates = bs
		return err
	})
	if err != nil {
		return 0, err
	}
	if len(candidates) == 0 {
		return 0, nil
	}

	serials := make([][32]byte, 0, len(candidates))
	byIdx := make([]store.Billet, 0, len(candidates))
	for _, b := range candidates {
		if len(b.Serialnum) != 32 {
			continue
		}
		var s32 [32]byte
		copy(s32[:], b.Serialnum)
		serials = append(serials, s32)
		byIdx = append(byIdx, b)
	}
	if len(serials) == 0 {
		return 0, nil
	}

	records, err := q.QuerySerials(ctx, serials)
	if err != nil {
		return 0, err
	}
	if len(records) != len(byIdx) {
		return 0, fmt.Errorf("poll_unspent: reply count %d does not match query count %d", len(records), len(byIdx))
	}

	spent := 0
	err = l.db.BeginWrite(func(w *store.WriteTx) error {
		for i, rec := range records {
			if rec.Status != store.SerialIndelible {
				continue
			}
			b := byIdx[i]
			if _, err := l.SetStatusSpent(w, b.ID, rec.Hashkey, rec.TxCommitnum); err != nil {
				return err
			}
			spent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return spent, nil
}
