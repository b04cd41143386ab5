package ingress

import (
	"context"
	"fmt"
	"net"
	"sync"

	"privadex.dev/node/service"
)

// Service adapts Server to service.Lifecycle, owning the listener and the
// shutdown plumbing TransactService's Start/StartShutdown/WaitForShutdown
// handle in the original (transact.cpp): Start opens the listen socket and
// hands it to Server.Serve on a background goroutine, StartShutdown cancels
// the context that unblocks Serve's Accept loop, and WaitForShutdown joins
// that goroutine.
type Service struct {
	service.NopPreset
	service.NopPostset

	Addr string // listen address, e.g. "0.0.0.0:port"

	srv    *Server
	ln     net.Listener
	cancel context.CancelFunc
	done   chan struct{}
}

// NewService wraps an already-constructed Server for Lifecycle management.
func NewService(srv *Server, addr string) *Service {
	return &Service{srv: srv, Addr: addr, done: make(chan struct{})}
}

func (s *Service) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("ingress: listen %s: %w", s.Addr, err)
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.ln = ln
	s.cancel = cancel

	var once sync.Once
	go func() {
		defer once.Do(func() { close(s.done) })
		_ = s.srv.Serve(runCtx, ln)
	}()
	return nil
}

func (s *Service) StartShutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) WaitForShutdown() {
	if s.done != nil {
		<-s.done
	}
}
