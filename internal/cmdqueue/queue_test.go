package cmdqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anodyne74/obdclient/internal/obdtypes"
)

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	q := New(2)
	now := time.Now()
	a, err := q.Enqueue("0100", now, time.Second)
	if err != nil {
		t.Fatalf("enqueue A: %v", err)
	}
	b, err := q.Enqueue("010C", now, time.Second)
	if err != nil {
		t.Fatalf("enqueue B: %v", err)
	}

	gotA, ok := q.Dequeue(context.Background())
	if !ok || gotA != a {
		t.Fatal("expected A dequeued first")
	}
	gotB, ok := q.Dequeue(context.Background())
	if !ok || gotB != b {
		t.Fatal("expected B dequeued second")
	}
}

func TestEnqueueFailsFastWhenFull(t *testing.T) {
	q := New(1)
	now := time.Now()
	if _, err := q.Enqueue("0100", now, time.Second); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	_, err := q.Enqueue("010C", now, time.Second)
	if !errors.Is(err, obdtypes.ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestShutdownResolvesPendingWithConnectionClosed(t *testing.T) {
	q := New(2)
	now := time.Now()
	pc, err := q.Enqueue("0100", now, time.Second)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	q.Shutdown()

	res, err := pc.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if !errors.Is(res.Err, obdtypes.ErrConnectionClosed) {
		t.Errorf("expected ConnectionClosed, got %v", res.Err)
	}

	if _, err := q.Enqueue("010C", now, time.Second); !errors.Is(err, obdtypes.ErrConnectionClosed) {
		t.Errorf("expected enqueue after shutdown to fail with ConnectionClosed, got %v", err)
	}
}

func TestCancelRemovesStillQueuedCommand(t *testing.T) {
	q := New(2)
	now := time.Now()
	pc, _ := q.Enqueue("0100", now, time.Second)
	if !q.Cancel(pc) {
		t.Fatal("expected cancel to find still-queued command")
	}
	if q.Len() != 0 {
		t.Errorf("queue length = %d, want 0", q.Len())
	}
}

func TestResolveIsSingleAssignment(t *testing.T) {
	q := New(1)
	pc, _ := q.Enqueue("0100", time.Now(), time.Second)
	pc.Resolve(Result{Lines: []string{"41 00"}})
	pc.Resolve(Result{Err: obdtypes.Timeout("0100")}) // must be ignored

	res, err := pc.Wait(context.Background())
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if res.Err != nil || len(res.Lines) != 1 {
		t.Errorf("expected first resolution to stick, got %+v", res)
	}
}
