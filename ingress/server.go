// Package ingress implements the Transact request server described in
// SPEC_FULL.md §4.D: one goroutine per accepted connection (modeled on the
// teacher's node/p2p.Peer.Run), a read pipeline that validates framing,
// timestamp, and proof-of-work before dispatch, a switch over object.Tag
// mirroring Peer.Run's switch over p2p.Command, and an
// enqueue-and-validate flow that guarantees exactly one reply per request
// via an atomic compare-and-swap epoch counter.
package ingress

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"privadex.dev/node/book"
	"privadex.dev/node/object"
	"privadex.dev/node/param"
	"privadex.dev/node/store"
	"privadex.dev/node/tree"
	"privadex.dev/node/validator"
)

// TxEnqueueValidator is the subset of validator.Queue ingress depends on,
// named as its own interface so tests can substitute a fake without
// constructing a real queue (same seam shape as validator.DoneHandler on
// the other side of the collaboration).
type TxEnqueueValidator interface {
	TxEnqueueValidate(priority validator.Priority, object any, connIndex, callbackID uint64) (int, error)
}

// Server is the Transact ingress collaborator: one instance accepts
// connections for the process's lifetime, holding the shared collaborators
// (store, tree, book) and dispatching each connection's single request.
type Server struct {
	db        *store.DB
	tree      *tree.Engine
	book      *book.Book
	netParams param.NetParams
	status    StatusProvider
	hasher    object.PowHasher
	validator TxEnqueueValidator
	now       func() time.Time

	nextConnIndex atomic.Uint64
	mu            sync.Mutex
	conns         map[uint64]*conn
}

// New constructs a Server. The validator collaborator is wired in
// afterwards via SetValidator, since validator.New itself needs this
// Server (as a validator.DoneHandler) to construct its Queue — the two
// types have a circular dependency that a two-phase construction breaks,
// the same way the teacher's node/main.go wires node.Miner and its peers
// together after both exist.
func New(db *store.DB, treeEngine *tree.Engine, bk *book.Book, netParams param.NetParams, status StatusProvider) (*Server, error) {
	if db == nil {
		return nil, errors.New("ingress: nil store")
	}
	if treeEngine == nil {
		return nil, errors.New("ingress: nil tree engine")
	}
	if bk == nil {
		return nil, errors.New("ingress: nil book")
	}
	if status == nil {
		status = alwaysConnected{}
	}
	return &Server{
		db:        db,
		tree:      treeEngine,
		book:      bk,
		netParams: netParams,
		status:    status,
		hasher:    object.SHA3PowHasher{},
		now:       time.Now,
		conns:     make(map[uint64]*conn),
	}, nil
}

// SetValidator wires the validator collaborator in. Must be called before
// Serve accepts any connections that carry state-changing tags.
func (s *Server) SetValidator(v TxEnqueueValidator) { s.validator = v }

// Serve accepts connections on ln until ctx is canceled, running each
// connection's read/dispatch pipeline on its own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return err
			}
		}
		go s.handleConn(ctx, nc)
	}
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.index] = c
	s.mu.Unlock()
}

func (s *Server) unregister(index uint64) {
	s.mu.Lock()
	delete(s.conns, index)
	s.mu.Unlock()
}

func (s *Server) lookup(index uint64) *conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conns[index]
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	idx := s.nextConnIndex.Add(1) - 1
	c := &conn{index: idx, nc: nc}
	s.register(c)
	s.serveOne(ctx, c)
}

// HandleValidateDone implements validator.DoneHandler: spec.md §4.D.3's
// handle_validate_done. It wins the race against the connection's
// validation timeout via conn.fire's compare-and-swap, so at most one of
// the two ever writes a reply.
func (s *Server) HandleValidateDone(level uint64, connIndex uint64, callbackID uint64, result int) {
	c := s.lookup(connIndex)
	if c == nil {
		return
	}
	c.stopTimer()
	if !c.fire(callbackID) {
		return // the validation timeout already fired first
	}
	defer s.unregister(connIndex)

	if result < 0 {
		writeReply(c.nc, resultText(result))
		return
	}
	writeReply(c.nc, fmt.Sprintf("OK:%d", result))
}

// resultText maps a negative validator result code to its reply text, per
// the error taxonomy in spec.md §7: validation failures are domain
// rejections (INVALID:), everything else is a server-side condition
// (ERROR:).
func resultText(code int) string {
	if code == validator.ErrValidationFailed {
		return "INVALID:" + validator.ResultMessage(code)
	}
	return "ERROR:" + validator.ResultMessage(code)
}
