package validator

import (
	"context"

	"privadex.dev/node/service"
)

// Service adapts Queue to service.Lifecycle. Queue itself starts its
// worker pool inside New, so Service defers construction to Start (rather
// than wrapping an already-built Queue), giving StartShutdown a context to
// cancel and WaitForShutdown a WaitGroup to join — mirroring
// TransactService owning its m_service for exactly this reason.
type Service struct {
	service.NopPreset
	service.NopPostset

	validator Validator
	done      DoneHandler
	level     func() uint64
	cfg       Config

	queue  *Queue
	cancel context.CancelFunc
}

// NewService defers Queue construction to Start; callers that need the
// Queue before Start (e.g. ingress.Server.SetValidator) read it back via
// Queue after Start returns.
func NewService(v Validator, done DoneHandler, level func() uint64, cfg Config) *Service {
	return &Service{validator: v, done: done, level: level, cfg: cfg}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	q, err := New(runCtx, s.validator, s.done, s.level, s.cfg)
	if err != nil {
		cancel()
		return err
	}
	s.queue = q
	s.cancel = cancel
	return nil
}

// Queue returns the underlying Queue, valid only after Start succeeds.
func (s *Service) Queue() *Queue { return s.queue }

func (s *Service) StartShutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Service) WaitForShutdown() {
	if s.queue != nil {
		s.queue.Wait()
	}
}
