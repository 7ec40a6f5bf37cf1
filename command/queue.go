// Package command serializes outgoing device commands: one in flight at a
// time, dispatched in submission order, with a retry policy that backs off
// on timeouts for idempotent commands and never auto-retries destructive
// ones.
package command

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sandlbn/ultimate64-manager/rest"
)

// Retry policy bounds. Backoff doubles per attempt: 250ms, 500ms, 1s.
const (
	maxRetries  = 3
	backoffBase = 250 * time.Millisecond
)

// ErrCancelled is reported by a handle whose command was cancelled before
// dispatch.
var ErrCancelled = errors.New("command: cancelled before dispatch")

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("command: queue closed")

// Command is one outbound device request. Fn performs the actual call;
// Idempotent selects the retry policy.
type Command struct {
	Verb       string
	Idempotent bool
	Fn         func(ctx context.Context) error
}

// Handle tracks a submitted command. Wait on Done, then read Err.
type Handle struct {
	ID uuid.UUID

	mu         sync.Mutex
	dispatched bool
	cancelled  bool
	err        error
	done       chan struct{}
}

// Done is closed when the command reaches a terminal state: acknowledged,
// failed, or cancelled.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the command's result. Only valid after Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Cancel withdraws a still-queued command. Returns false if the command
// was already dispatched (its result can only be ignored) or finished.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dispatched || h.cancelled {
		return false
	}
	h.cancelled = true
	h.err = ErrCancelled
	close(h.done)
	return true
}

// markDispatched moves the handle past the point of no cancellation.
// Returns false when the command was cancelled while queued.
func (h *Handle) markDispatched() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return false
	}
	h.dispatched = true
	return true
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled {
		return
	}
	h.err = err
	close(h.done)
}

type pending struct {
	cmd    Command
	handle *Handle
}

// Queue owns the single worker goroutine that dispatches commands to one
// device in FIFO order.
type Queue struct {
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	ch     chan *pending
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewQueue creates and starts a Queue. timeout bounds each dispatch
// attempt; 0 means rest.DefaultTimeout.
func NewQueue(log *slog.Logger, timeout time.Duration) *Queue {
	if log == nil {
		log = slog.Default()
	}
	if timeout <= 0 {
		timeout = rest.DefaultTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		log:     log.With("component", "command-queue"),
		timeout: timeout,
		ch:      make(chan *pending, 64),
		ctx:     ctx,
		cancel:  cancel,
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Submit enqueues a command and returns its handle.
func (q *Queue) Submit(cmd Command) (*Handle, error) {
	h := &Handle{
		ID:   uuid.New(),
		done: make(chan struct{}),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, ErrQueueClosed
	}
	q.ch <- &pending{cmd: cmd, handle: h}
	q.mu.Unlock()

	return h, nil
}

// Close shuts the queue down. The in-flight command has its context
// cancelled and reports whatever its Fn returns, still-queued commands
// fail with ErrQueueClosed, and later Submits are rejected.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for p := range q.ch {
		if q.ctx.Err() != nil {
			p.handle.finish(ErrQueueClosed)
			continue
		}
		if !p.handle.markDispatched() {
			continue // cancelled while queued
		}
		p.handle.finish(q.dispatch(p.cmd))
	}
}

// dispatch runs one command, retrying timeouts for idempotent commands
// with exponential backoff. Non-idempotent commands get exactly one
// attempt; their timeout surfaces to the caller for explicit retry.
func (q *Queue) dispatch(cmd Command) error {
	attempts := 1
	if cmd.Idempotent {
		attempts = 1 + maxRetries
	}

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			backoff := backoffBase << (i - 1)
			q.log.Debug("retrying command", "verb", cmd.Verb, "attempt", i+1, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-q.ctx.Done():
				return ErrQueueClosed
			}
		}

		ctx, cancel := context.WithTimeout(q.ctx, q.timeout)
		err = cmd.Fn(ctx)
		cancel()

		if err == nil {
			return nil
		}
		if !errors.Is(err, rest.ErrTimeout) {
			return err
		}
	}
	return err
}
