// Package validator implements the transaction validator queue collaborator
// described in SPEC_FULL.md §4.F: since the real SNARK validator is out of
// scope, this package ships a queue + worker-pool harness around a
// pluggable Validator, structured like the teacher's node.Miner
// (constructor validates its dependencies, a small set of unit-of-work
// entry points) crossed with a worker pool.
package validator

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// Priority mirrors spec.md §4.D.2's enqueue priorities: TX/MINT/TX_XDOMAIN/
// XCX_PAYMENT enqueue at PriorityTxHi, XCX_NAKED_*/XCX_SIMPLE_* at
// PriorityXReqHi.
type Priority int

const (
	PriorityTxHi Priority = iota
	PriorityXReqHi
)

// Result codes returned by TxEnqueueValidate, per spec.md §4.F's contract.
const (
	ResultQueued       = 0
	ResultAlreadyValid = 1
)

// Negative result/error codes a Validator (or the queue itself) may report,
// mapped to user-visible text by ResultMessage for ingress's reply
// formatting.
const (
	ErrQueueFull        = -1
	ErrValidationFailed = -2
	ErrInternal         = -3
)

var resultMessages = map[int]string{
	ErrQueueFull:        "validation queue full",
	ErrValidationFailed: "validation failed",
	ErrInternal:         "internal validation error",
}

// ResultMessage maps a negative result code to the text spec.md §4.D.3's
// handle_validate_done uses for the reply body. Unknown codes get a generic
// message rather than panicking, since a Validator implementation may
// introduce its own negative codes.
func ResultMessage(code int) string {
	if msg, ok := resultMessages[code]; ok {
		return msg
	}
	return "validation error"
}

// Validator is the pluggable, potentially slow, validation backend that
// TxEnqueueValidate's caller supplies.
type Validator interface {
	Validate(object any) (result int, err error)
}

// QuickChecker is an optional fast path a Validator may additionally
// implement: AlreadyValid lets TxEnqueueValidate return ResultAlreadyValid
// synchronously, without queueing or invoking DoneHandler, for objects the
// backend can recognize as valid cheaply (e.g. a transaction already
// indelible).
type QuickChecker interface {
	AlreadyValid(object any) bool
}

// DoneHandler receives validation results, standing in for the ingress
// connection's HandleValidateDone (spec.md §4.D.3/§4.F).
type DoneHandler interface {
	HandleValidateDone(level uint64, connIndex uint64, callbackID uint64, result int)
}

type job struct {
	object     any
	connIndex  uint64
	callbackID uint64
}

// Queue is the validator collaborator: a buffered job channel per priority
// plus N worker goroutines, each invoking Validator then DoneHandler.
type Queue struct {
	validator Validator
	done      DoneHandler
	level     func() uint64

	hi  chan job
	lo  chan job
	ctx context.Context
	wg  sync.WaitGroup
}

// Config controls queue depth and worker count; zero values pick the
// teacher's Miner-style defaults.
type Config struct {
	Workers   int // default runtime.GOMAXPROCS(0)
	QueueSize int // per-priority channel capacity; default 256
}

func defaultConfig(cfg Config) Config {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	return cfg
}

// New constructs a Queue and starts its worker pool, validating
// dependencies up front exactly like node.NewMiner does for its collaborators.
// level reports the current blockchain level for HandleValidateDone's
// first argument; it may be nil, in which case level 0 is always reported.
func New(ctx context.Context, v Validator, done DoneHandler, level func() uint64, cfg Config) (*Queue, error) {
	if v == nil {
		return nil, errors.New("nil validator")
	}
	if done == nil {
		return nil, errors.New("nil done handler")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if level == nil {
		level = func() uint64 { return 0 }
	}
	cfg = defaultConfig(cfg)

	q := &Queue{
		validator: v,
		done:      done,
		level:     level,
		hi:        make(chan job, cfg.QueueSize),
		lo:        make(chan job, cfg.QueueSize),
		ctx:       ctx,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q, nil
}

// Wait blocks until every worker goroutine has exited, which happens once
// ctx (passed to New) is canceled. Used by service.Lifecycle wrappers to
// implement WaitForShutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for {
		var j job
		var ok bool
		// Drain the high-priority channel first; only pull from low
		// priority when high priority is empty, per spec.md §4.D.2's
		// TX_HI/X_REQ_HI priority split.
		select {
		case j, ok = <-q.hi:
		default:
			select {
			case j, ok = <-q.hi:
			case j, ok = <-q.lo:
			case <-q.ctx.Done():
				return
			}
		}
		if !ok {
			return
		}
		q.run(j)
	}
}

func (q *Queue) run(j job) {
	result, err := q.validator.Validate(j.object)
	if err != nil {
		result = ErrInternal
	}
	q.done.HandleValidateDone(q.level(), j.connIndex, j.callbackID, result)
}

// TxEnqueueValidate implements spec.md §4.F's contract: 0 means queued (a
// callback will follow), 1 means the object was already valid (no
// callback), and a negative value is an error code.
func (q *Queue) TxEnqueueValidate(priority Priority, object any, connIndex, callbackID uint64) (int, error) {
	if qc, ok := q.validator.(QuickChecker); ok && qc.AlreadyValid(object) {
		return ResultAlreadyValid, nil
	}

	j := job{object: object, connIndex: connIndex, callbackID: callbackID}
	ch := q.lo
	if priority == PriorityTxHi {
		ch = q.hi
	}
	select {
	case ch <- j:
		return ResultQueued, nil
	default:
		return ErrQueueFull, nil
	}
}
