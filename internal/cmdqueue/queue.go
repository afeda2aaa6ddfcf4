// Package cmdqueue implements the bounded command queue of §4.6: a FIFO
// that serializes outstanding adapter commands, each with a single-assignment
// completion slot and an absolute deadline. The session engine is the sole
// consumer; callers (the facade) are the sole producers.
package cmdqueue

import (
	"context"
	"sync"
	"time"

	"github.com/anodyne74/obdclient/internal/obdtypes"
)

// DefaultCapacity is the default bounded FIFO capacity.
const DefaultCapacity = 10

// Result is what a PendingCommand's completion slot carries once resolved.
type Result struct {
	Lines []string
	Err   error
}

// PendingCommand is a single queued request: the ASCII command bytes to
// send, the time it was enqueued, its absolute deadline, and a
// single-assignment completion slot. It is owned exclusively by the queue
// until it is dequeued by the session engine, and by the session engine
// thereafter until it completes.
type PendingCommand struct {
	Command    string
	EnqueuedAt time.Time
	Deadline   time.Time

	done     chan Result
	resolved bool
	mu       sync.Mutex
}

func newPending(command string, now time.Time, timeout time.Duration) *PendingCommand {
	return &PendingCommand{
		Command:    command,
		EnqueuedAt: now,
		Deadline:   now.Add(timeout),
		done:       make(chan Result, 1),
	}
}

// Resolve fulfills the completion slot exactly once. Subsequent calls are
// no-ops, preserving the single-assignment contract even if both a timeout
// and a late response race to resolve the same command.
func (p *PendingCommand) Resolve(r Result) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return
	}
	p.resolved = true
	p.done <- r
}

// Wait blocks until the command resolves or ctx is cancelled.
func (p *PendingCommand) Wait(ctx context.Context) (Result, error) {
	select {
	case r := <-p.done:
		return r, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Queue is the bounded FIFO of §4.6. It holds at most Capacity pending
// commands; Enqueue fails fast with QueueFull once the limit is reached
// rather than blocking the caller.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []*PendingCommand
	capacity int
	closed   bool
}

// New creates a queue with the given capacity. A capacity of 0 uses
// DefaultCapacity.
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	q := &Queue{capacity: capacity}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a new PendingCommand to the tail of the FIFO. It returns
// obdtypes.ErrQueueFull if the queue is at capacity, and
// obdtypes.ErrConnectionClosed if the queue has been shut down.
func (q *Queue) Enqueue(command string, now time.Time, timeout time.Duration) (*PendingCommand, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, obdtypes.ErrConnectionClosed
	}
	if len(q.items) >= q.capacity {
		return nil, obdtypes.ErrQueueFull
	}

	pc := newPending(command, now, timeout)
	q.items = append(q.items, pc)
	q.cond.Signal()
	return pc, nil
}

// Dequeue removes and returns the head of the FIFO, blocking until an entry
// is available, the queue is closed, or ctx is cancelled. On close it
// returns (nil, false).
func (q *Queue) Dequeue(ctx context.Context) (*PendingCommand, bool) {
	stop := make(chan struct{})
	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				q.mu.Lock()
				q.cond.Broadcast()
				q.mu.Unlock()
			case <-stop:
			}
		}()
		defer close(stop)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if ctx != nil && ctx.Err() != nil {
			return nil, false
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	pc := q.items[0]
	q.items = q.items[1:]
	return pc, true
}

// Cancel removes a still-queued PendingCommand without resolving it, per
// §4.7's cancellation rule. It returns true if the command was found and
// removed while still queued (not yet dequeued by the session engine).
func (q *Queue) Cancel(pc *PendingCommand) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, item := range q.items {
		if item == pc {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len reports the number of currently queued (not yet dequeued) commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Shutdown closes the queue and resolves every still-pending entry with
// ConnectionClosed, per §4.6: on transport failure or session shutdown all
// pending entries complete rather than being silently dropped.
func (q *Queue) Shutdown() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	pending := q.items
	q.items = nil
	q.cond.Broadcast()
	q.mu.Unlock()

	for _, pc := range pending {
		pc.Resolve(Result{Err: obdtypes.ErrConnectionClosed})
	}
}
