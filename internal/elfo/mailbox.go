package elfo

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// DefaultMailboxCapacity is the bounded capacity a Mailbox uses when a
// Group doesn't override it via WithMailboxSize (spec.md §3).
const DefaultMailboxCapacity = 100

// Mailbox is the bounded, single-consumer message queue owned by one
// actor. It is a non-generic, Envelope-typed specialization of the
// teacher's Mailbox[M,R]: spec.md §9's type erasure means a single actor
// can receive heterogeneous message types through one mailbox, so there is
// no per-message-type parameter to carry.
//
// Thread Safety:
//   - Send and TrySend may be called concurrently from multiple
//     goroutines.
//   - Recv/TryRecv/Receive must only be called from the owning actor's
//     goroutine.
//   - Close is idempotent and safe to call concurrently with Send/TrySend.
//   - IsClosed may be called from any goroutine.
//   - Drain must only be called after Close, from the owning goroutine.
type Mailbox struct {
	ch        chan Envelope
	closed    atomic.Bool
	mu        sync.RWMutex
	closeOnce sync.Once
	actorCtx  context.Context
}

// NewMailbox returns a bounded mailbox. A non-positive capacity falls back
// to DefaultMailboxCapacity.
func NewMailbox(actorCtx context.Context, capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = DefaultMailboxCapacity
	}
	return &Mailbox{
		ch:       make(chan Envelope, capacity),
		actorCtx: actorCtx,
	}
}

// Send blocks until env is accepted, ctx is cancelled, or the actor's own
// context is cancelled (e.g. the actor is shutting down). Returns true iff
// env was accepted.
func (m *Mailbox) Send(ctx context.Context, env Envelope) bool {
	if ctx.Err() != nil || m.actorCtx.Err() != nil {
		return false
	}

	// Holding the read lock for the whole send prevents a
	// send-on-closed-channel panic: Close must take the write lock
	// before closing the channel, and the write lock can't be acquired
	// while any read lock is held.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	case <-ctx.Done():
		return false
	case <-m.actorCtx.Done():
		return false
	}
}

// TrySend attempts to enqueue env without blocking. Returns false if the
// mailbox is full, closed, or the actor's context is already done.
func (m *Mailbox) TrySend(env Envelope) bool {
	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Recv blocks for the next envelope, or returns ok=false if ctx is
// cancelled or the mailbox is closed and empty.
func (m *Mailbox) Recv(ctx context.Context) (env Envelope, ok bool) {
	if ctx.Err() != nil {
		return Envelope{}, false
	}
	select {
	case env, open := <-m.ch:
		return env, open
	case <-ctx.Done():
		return Envelope{}, false
	}
}

// TryRecv returns the next envelope without blocking, or ok=false if the
// mailbox is currently empty (whether or not it's closed).
func (m *Mailbox) TryRecv() (env Envelope, ok bool) {
	select {
	case env, open := <-m.ch:
		return env, open
	default:
		return Envelope{}, false
	}
}

// Receive returns an iterator that yields envelopes as they arrive,
// stopping when ctx is cancelled or the mailbox is closed and drained.
func (m *Mailbox) Receive(ctx context.Context) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		for {
			if ctx.Err() != nil {
				return
			}
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the mailbox, preventing further sends. Idempotent.
func (m *Mailbox) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		log.Debugf("mailbox closing with %d remaining messages", len(m.ch))

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed reports whether Close has been called.
func (m *Mailbox) IsClosed() bool {
	return m.closed.Load()
}

// Drain returns an iterator over any envelopes left in the mailbox after
// Close. Used to route undelivered messages to dead letters on shutdown.
func (m *Mailbox) Drain() iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		if !m.IsClosed() {
			return
		}
		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}
				if !yield(env) {
					return
				}
			default:
				return
			}
		}
	}
}
