package ingress

import (
	"encoding/hex"

	"privadex.dev/node/book"
	"privadex.dev/node/object"
	"privadex.dev/node/param"
	"privadex.dev/node/store"
)

// dispatchQuery implements the read-only half of spec.md §4.D.2's dispatch
// table: every branch here replies synchronously within the same
// connection goroutine, none of it touches the validator queue.
func (s *Server) dispatchQuery(c *conn, tag object.Tag, payload []byte) {
	switch tag {
	case object.TagQueryParams:
		s.queryParams(c)
	case object.TagQueryAddress:
		s.queryAddress(c, payload)
	case object.TagQueryInputs:
		s.queryInputs(c, payload)
	case object.TagQuerySerial:
		s.querySerial(c, payload)
	case object.TagQueryXreqs:
		s.queryXreqs(c, payload)
	case object.TagQueryXmatchObjID:
		s.queryXmatch(c, payload, matchByObjID)
	case object.TagQueryXmatchReqnum:
		s.queryXmatch(c, payload, matchByXreqnum)
	case object.TagQueryXmatchMatchnum:
		s.queryXmatch(c, payload, matchByXmatchnum)
	case object.TagQueryXminingInfo:
		s.queryXminingInfo(c)
	default:
		s.closeWith(c, "ERROR:unrecognized message type")
	}
}

func (s *Server) queryParams(c *conn) {
	s.closeWithJSON(c, func() {
		writeJSONReply(c.nc, s.netParams)
	})
}

// closeWithJSON runs fn (which itself writes the reply and closes nc) after
// stopping the timer and unregistering the connection, mirroring closeWith
// for handlers that build a JSON body rather than a plain string.
func (s *Server) closeWithJSON(c *conn, fn func()) {
	c.stopTimer()
	s.unregister(c.index)
	fn()
}

type addressQueryReply struct {
	Blockchain           uint64              `json:"blockchain"`
	Address              string              `json:"address"`
	Outputs              []addressOutputView `json:"outputs"`
	MoreResultsAvailable bool                `json:"more-results-available"`
}

type addressOutputView struct {
	Commitnum  uint64 `json:"commitnum"`
	Commitment string `json:"commitment"`
	Domain     uint32 `json:"domain"`
	Asset      uint64 `json:"asset"`
	Amount     string `json:"amount"`
	Timestamp  uint64 `json:"timestamp"`
}

func (s *Server) queryAddress(c *conn, payload []byte) {
	q, err := object.DecodeAddressQuery(payload)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	var rows []store.TxOutput
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		var err error
		rows, err = snap.TxOutputsByAddress(q.Blockchain, q.Address, q.CommitStart, int(q.MaxRet)+1)
		return err
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}

	more := len(rows) > int(q.MaxRet)
	if more {
		rows = rows[:q.MaxRet]
	}

	reply := addressQueryReply{
		Blockchain:           q.Blockchain,
		Address:              hex.EncodeToString(q.Address[:]),
		MoreResultsAvailable: more,
	}
	for _, r := range rows {
		reply.Outputs = append(reply.Outputs, addressOutputView{
			Commitnum:  r.Commitnum,
			Commitment: hex.EncodeToString(r.Commitment),
			Domain:     r.Domain,
			Asset:      r.Asset,
			Amount:     hex.EncodeToString(r.Amount),
			Timestamp:  r.Timestamp,
		})
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, reply) })
}

type inputsQueryReply struct {
	ParameterLevel uint64       `json:"parameter-level"`
	ParameterTime  uint64       `json:"parameter-time"`
	MerkleRoot     string       `json:"merkle-root"`
	Inputs         []inputPaths `json:"inputs"`
}

type inputPaths struct {
	Commitnum  uint64   `json:"commitnum"`
	MerklePath []string `json:"merkle-path"`
}

func (s *Server) queryInputs(c *conn, payload []byte) {
	q, err := object.DecodeInputsQuery(payload, param.TxMaxInPath)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	var reply inputsQueryReply
	notFound := false
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		level, err := currentBlockLevel(snap)
		if err != nil {
			return err
		}
		root, ok, err := snap.CommitRootsSelect(level)
		if err != nil {
			return err
		}
		if !ok {
			notFound = true
			return nil
		}
		reply.ParameterLevel = level
		reply.ParameterTime = root.Timestamp
		reply.MerkleRoot = hex.EncodeToString(root.Root)

		for _, commitnum := range q.Commitnums {
			inputLevel, ok, err := snap.CommitRootsByCommitnum(commitnum)
			if err != nil {
				return err
			}
			if !ok {
				notFound = true
				return nil
			}
			mp, err := s.tree.GetMerklePath(snap, commitnum, inputLevel)
			if err != nil {
				notFound = true
				return nil
			}
			paths := inputPaths{Commitnum: commitnum}
			for _, el := range mp.Path {
				paths.MerklePath = append(paths.MerklePath, el.String())
			}
			reply.Inputs = append(reply.Inputs, paths)
		}
		return nil
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}
	if notFound {
		s.closeWith(c, "Not Found")
		return
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, reply) })
}

type serialStatusView struct {
	Status                    string `json:"status"`
	Hashkey                   string `json:"hashkey,omitempty"`
	TransactionCommitmentNum  uint64 `json:"transaction-commitment-number,omitempty"`
}

func serialStatusName(st store.SerialStatus) string {
	switch st {
	case store.SerialPending:
		return "pending"
	case store.SerialIndelible:
		return "indelible"
	default:
		return "unspent"
	}
}

func (s *Server) querySerial(c *conn, payload []byte) {
	q, err := object.DecodeSerialQuery(payload, param.TxMaxIn)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	views := make([]serialStatusView, 0, len(q.Serials))
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		for _, serial := range q.Serials {
			rec, err := snap.SerialStatusSelect(serial)
			if err != nil {
				return err
			}
			v := serialStatusView{Status: serialStatusName(rec.Status)}
			if rec.Status == store.SerialIndelible {
				v.Hashkey = hex.EncodeToString(rec.Hashkey)
				v.TransactionCommitmentNum = rec.TxCommitnum
			}
			views = append(views, v)
		}
		return nil
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, views) })
}

func (s *Server) queryXreqs(c *conn, payload []byte) {
	q, err := object.DecodeXreqsQuery(payload)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}
	isBuyer := q.XcxType == uint16(store.XreqSimpleBuy) || q.XcxType == uint16(store.XreqNakedBuy)

	var result *book.XreqsQueryResult
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		var err error
		result, err = s.book.Query(snap, q, isBuyer)
		return err
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, result) })
}

type matchLookup int

const (
	matchByObjID matchLookup = iota
	matchByXreqnum
	matchByXmatchnum
)

func (s *Server) queryXmatch(c *conn, payload []byte, kind matchLookup) {
	key, err := object.DecodeU64Query(payload)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	var (
		single store.Xmatch
		multi  []store.Xmatch
		found  bool
	)
	err = s.db.BeginRead(func(snap *store.Snapshot) error {
		var err error
		switch kind {
		case matchByObjID:
			single, found, err = s.book.XmatchByObjID(snap, key)
		case matchByXreqnum:
			multi, err = s.book.XmatchByXreqnum(snap, key)
			found = len(multi) > 0
		case matchByXmatchnum:
			single, found, err = s.book.XmatchByXmatchnum(snap, key)
		}
		return err
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}
	if !found {
		s.closeWith(c, "Not Found")
		return
	}
	if kind == matchByXreqnum {
		s.closeWithJSON(c, func() { writeJSONReply(c.nc, multi) })
		return
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, single) })
}

type miningInfoReply struct {
	BlockLevel    uint64 `json:"block-level"`
	Testnet       bool   `json:"testnet"`
	DonationByte  int64  `json:"donation-per-tx-byte"`
}

// queryXminingInfo serves TX_QUERY_XMINING_INFO with the parameters a
// wallet needs to estimate fees and mint eligibility. This core has no
// mining-candidate subsystem (mining/block assembly is out of scope per
// SPEC_FULL.md §1), so the reply is reduced to the net-parameter facts
// TX_QUERY_PARAMS already exposes plus the current block level, rather than
// a full candidate-block stream.
func (s *Server) queryXminingInfo(c *conn) {
	var level uint64
	err := s.db.BeginRead(func(snap *store.Snapshot) error {
		var err error
		level, err = currentBlockLevel(snap)
		return err
	})
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}
	reply := miningInfoReply{
		BlockLevel:   level,
		Testnet:      s.netParams.Testnet,
		DonationByte: s.netParams.DonationPerTxByte,
	}
	s.closeWithJSON(c, func() { writeJSONReply(c.nc, reply) })
}
