package ingress

import (
	"context"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"privadex.dev/node/object"
	"privadex.dev/node/param"
	"privadex.dev/node/validator"
)

// conn holds the per-connection state named in spec.md §4.D: "read buffer,
// write buffer, pending validation id (callback_id), one active async
// timer." The epoch counter is the "single-shot channel or atomic-
// exchanged state" the Open Questions resolve in favor of the atomic form
// (SPEC_FULL.md §9): handle_validate_done and handle_validation_timeout
// race to compare-and-swap it, and only the winner replies.
type conn struct {
	index uint64
	nc    net.Conn

	epoch atomic.Uint64

	mu    sync.Mutex
	timer *time.Timer
}

// fire attempts to consume callbackID, advancing the epoch by one. It
// succeeds at most once per callbackID value, giving exactly one caller
// (HandleValidateDone or the validation timeout) permission to write the
// reply.
func (c *conn) fire(callbackID uint64) bool {
	return c.epoch.CompareAndSwap(callbackID, callbackID+1)
}

func (c *conn) stopTimer() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()
}

func (c *conn) armTimer(d time.Duration, fn func()) {
	c.mu.Lock()
	c.timer = time.AfterFunc(d, fn)
	c.mu.Unlock()
}

// serveOne runs the read pipeline (spec.md §4.D.1) and dispatch (§4.D.2)
// for a single request, then either writes a synchronous reply itself or,
// for state-changing tags, hands off to handleTx, which may leave the
// connection open pending an asynchronous validator callback.
func (s *Server) serveOne(ctx context.Context, c *conn) {
	nc := c.nc
	_ = nc.SetDeadline(s.now().Add(param.TransactTimeout))
	c.armTimer(param.TransactTimeout, func() {
		if c.fire(0) {
			writeReply(nc, "UNKNOWN:server timeout")
			s.unregister(c.index)
		}
	})

	headerPow := make([]byte, param.CCMsgHeaderSize+param.TxPowSize)
	if _, err := io.ReadFull(nc, headerPow); err != nil {
		s.closeWith(c, "ERROR:unexpected short read")
		return
	}

	h, err := object.DecodeHeader(headerPow)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}
	class, err := object.ValidateFrameSize(h)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	remaining := int(h.Size) - len(headerPow)
	body := make([]byte, remaining)
	if remaining > 0 {
		if _, err := io.ReadFull(nc, body); err != nil {
			s.closeWith(c, "ERROR:unexpected short read")
			return
		}
	}

	raw := make([]byte, 0, len(headerPow)+len(body))
	raw = append(raw, headerPow...)
	raw = append(raw, body...)
	frame, err := object.ParseFrame(raw)
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	ts, err := frame.Timestamp()
	if err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}
	if err := object.CheckTimestamp(ts, s.now(), class); err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	var preimage []byte
	if object.IsQueryLike(h.Tag) {
		preimage = object.QueryPowPreimage(h.Tag, frame.Body)
	} else {
		preimage = object.TxPowPreimage(frame.Body)
	}
	if err := object.CheckPow(s.hasher, preimage, object.DifficultyFor(class)); err != nil {
		s.closeWith(c, protocolErrorReply(err))
		return
	}

	payload := frame.BodyAfterTimestamp()

	// The read-timeout timer's job ends here; a reply is about to be sent
	// either synchronously (queries) or via the validation-timeout timer
	// armed in handleTx, so cancel it before either can race the close.
	c.stopTimer()
	_ = nc.SetDeadline(time.Time{})

	if object.IsStateChanging(h.Tag) {
		if err := s.checkMintEra(h.Tag, payload); err != nil {
			s.closeWith(c, err.Error())
			return
		}
		s.handleTx(c, h.Tag, payload)
		return
	}

	s.dispatchQuery(c, h.Tag, payload)
}

func (s *Server) closeWith(c *conn, body string) {
	c.stopTimer()
	s.unregister(c.index)
	writeReply(c.nc, body)
}

// mapPriority converts object.Priority (the wire/dispatch-table enum) to
// validator.Priority (the queue's own enum). The two packages define
// distinct types for the same two priority levels — object's enum lives
// beside the tag table it is computed from, validator's beside the queue
// it feeds — and ingress is the seam that knows how to translate between
// them, rather than either package depending on the other.
func mapPriority(p object.Priority) validator.Priority {
	if p == object.PriorityXReqHi {
		return validator.PriorityXReqHi
	}
	return validator.PriorityTxHi
}

// handleTx implements spec.md §4.D.3's handle_tx flow for TX/MINT/
// TX_XDOMAIN/XCX_* dispatch.
func (s *Server) handleTx(c *conn, tag object.Tag, payload []byte) {
	if !ConnectedToNetwork(s.status.ChainStatus(), s.now(), s.netParams.MaxNetSec, s.netParams.MaxBlockSec) {
		s.closeWith(c, "ERROR:server not connected")
		return
	}

	callbackID := c.epoch.Load()
	prio := mapPriority(object.PriorityOf(tag))
	result, err := s.validator.TxEnqueueValidate(prio, payload, c.index, callbackID)
	if err != nil {
		s.closeWith(c, "ERROR:server error")
		return
	}

	switch {
	case result == validator.ResultAlreadyValid:
		s.closeWith(c, "OK:already valid")
	case result == validator.ResultQueued:
		c.armTimer(param.TransactValidationTimeout, func() {
			if !c.fire(callbackID) {
				return
			}
			writeReply(c.nc, "UNKNOWN:server timeout")
			s.unregister(c.index)
		})
	default:
		s.closeWith(c, resultText(result))
	}
}
