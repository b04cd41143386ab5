package validator

import (
	"context"
	"testing"
	"time"
)

type constValidator struct{}

func (constValidator) Validate(object any) (int, error) { return 7, nil }

type chanDone struct {
	results chan int
}

func (f *chanDone) HandleValidateDone(level uint64, connIndex uint64, callbackID uint64, result int) {
	f.results <- result
}

// TestServiceLifecycle covers the Start/StartShutdown/WaitForShutdown
// sequence: Start must produce a usable Queue, StartShutdown must let
// WaitForShutdown return promptly.
func TestServiceLifecycle(t *testing.T) {
	done := &chanDone{results: make(chan int, 1)}
	svc := NewService(constValidator{}, done, nil, Config{Workers: 1, QueueSize: 1})

	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if svc.Queue() == nil {
		t.Fatalf("Queue() = nil after Start")
	}

	result, err := svc.Queue().TxEnqueueValidate(PriorityTxHi, "obj", 1, 1)
	if err != nil || result != ResultQueued {
		t.Fatalf("TxEnqueueValidate = (%d, %v), want (ResultQueued, nil)", result, err)
	}
	select {
	case r := <-done.results:
		if r != 7 {
			t.Fatalf("result = %d, want 7", r)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for HandleValidateDone")
	}

	svc.StartShutdown()
	finished := make(chan struct{})
	go func() { svc.WaitForShutdown(); close(finished) }()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("WaitForShutdown did not return after StartShutdown")
	}
}
