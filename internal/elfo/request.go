package elfo

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// errResult wraps err as a type-erased failed fn.Result[any].
func errResult(err error) fn.Result[any] {
	return fn.Err[any](err)
}

// okResult wraps v as a type-erased successful fn.Result[any].
func okResult(v any) fn.Result[any] {
	return fn.Ok[any](v)
}

// CorrelationID identifies one outstanding request within the RequestTable
// that allocated it. It is a monotonic counter starting at 0 (grounded on
// original_source/elfo-inspector/src/values/uid.rs's UidGenerator); 0 is a
// valid, non-sentinel id, unlike NullAddr.
type CorrelationID uint64

// slotState is the lifecycle of one RequestTable entry.
type slotState int

const (
	slotOpen slotState = iota
	slotFulfilled
	slotIgnored
)

// requestSlot holds the promise half of one outstanding request.
type requestSlot struct {
	mu     sync.Mutex
	state  slotState
	result chan fn.Result[any]
}

func newRequestSlot() *requestSlot {
	return &requestSlot{result: make(chan fn.Result[any], 1)}
}

// fulfill completes the slot with result, if not already settled. Returns
// true if this call won the race to settle it.
func (s *requestSlot) fulfill(result fn.Result[any]) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != slotOpen {
		return false
	}
	s.state = slotFulfilled
	s.result <- result
	return true
}

// ignore marks the slot as ignored (its Token was dropped unfulfilled), if
// not already settled.
func (s *requestSlot) ignore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != slotOpen {
		return false
	}
	s.state = slotIgnored
	s.result <- fn.Err[any](ErrRequestIgnored)
	return true
}

// RequestTable tracks outstanding requests an actor has sent out, keyed by
// CorrelationID, so a later Context.Respond can route a reply back to the
// right waiter without passing it through a mailbox. Grounded on the
// teacher's Promise[T]/Future[T] shape (interface.go), generalized to a
// type-erased per-actor table.
type RequestTable struct {
	mu      sync.Mutex
	next    atomic.Uint64
	slots   map[CorrelationID]*requestSlot
}

// newRequestTable returns an empty table.
func newRequestTable() *RequestTable {
	return &RequestTable{slots: make(map[CorrelationID]*requestSlot)}
}

// allocate reserves a new correlation id and slot, returning both plus a
// Token bound to owner (the caller's own Addr) that a callee will use to
// answer it.
func (t *RequestTable) allocate(owner Addr) (CorrelationID, *Token) {
	id := CorrelationID(t.next.Add(1) - 1)
	slot := newRequestSlot()

	t.mu.Lock()
	t.slots[id] = slot
	t.mu.Unlock()

	tok := newToken(owner, id, slot)
	return id, tok
}

// await blocks for the result of correlation id, removing it from the
// table once settled or once ctx is cancelled.
func (t *RequestTable) await(ctx context.Context, id CorrelationID) fn.Result[any] {
	t.mu.Lock()
	slot, ok := t.slots[id]
	t.mu.Unlock()
	if !ok {
		return fn.Err[any](ErrUnknownAddr)
	}

	defer func() {
		t.mu.Lock()
		delete(t.slots, id)
		t.mu.Unlock()
	}()

	select {
	case res := <-slot.result:
		return res
	case <-ctx.Done():
		return fn.Err[any](ctx.Err())
	}
}

// Token is the move-only capability a request recipient uses to answer
// exactly once via Context.Respond. It is move-only in spirit: Go cannot
// enforce single ownership, so correctness relies on callees calling
// Respond or Discard exactly once; a runtime.SetFinalizer backstops
// forgotten tokens by marking the slot Ignored when the Token is garbage
// collected unused.
type Token struct {
	caller Addr
	corrID CorrelationID
	slot   *requestSlot
	used   atomic.Bool
}

// newToken builds a Token and arms its finalizer backstop.
func newToken(caller Addr, corrID CorrelationID, slot *requestSlot) *Token {
	tok := &Token{caller: caller, corrID: corrID, slot: slot}
	runtime.SetFinalizer(tok, func(t *Token) {
		if !t.used.Swap(true) {
			t.slot.ignore()
		}
	})
	return tok
}

// Caller returns the address of the actor awaiting this request's result.
func (t *Token) Caller() Addr { return t.caller }

// CorrelationID returns the id this token answers.
func (t *Token) CorrelationID() CorrelationID { return t.corrID }

// fulfill completes the underlying slot exactly once. Subsequent calls,
// and any later finalizer firing, are no-ops.
func (t *Token) fulfill(result fn.Result[any]) bool {
	if t.used.Swap(true) {
		return false
	}
	runtime.SetFinalizer(t, nil)
	return t.slot.fulfill(result)
}

// Discard marks the request as ignored without a result, deterministically
// (rather than waiting on GC). Safe to call more than once.
func (t *Token) Discard() {
	if t.used.Swap(true) {
		return
	}
	runtime.SetFinalizer(t, nil)
	t.slot.ignore()
}

// RequestBuilder accumulates destinations for a fan-out request built via
// Context.Request(msg).To(addrs...), then resolved with All or Any.
// Grounded on actorutil/helpers.go's ParallelAsk/ParallelAskSame/
// FirstSuccess.
type RequestBuilder struct {
	ctx   *Context
	msg   Message
	addrs []Addr
}

// To appends destinations to fan the request out to.
func (b *RequestBuilder) To(addrs ...Addr) *RequestBuilder {
	b.addrs = append(b.addrs, addrs...)
	return b
}

// All waits for every destination to respond (or error), returning results
// in completion order (the order replies actually arrive), not destination
// order — matching spec.md §4.3/§5.
func (b *RequestBuilder) All(ctx context.Context) []fn.Result[any] {
	out := make(chan fn.Result[any], len(b.addrs))
	for _, addr := range b.addrs {
		go func(addr Addr) {
			out <- b.ctx.requestOne(ctx, addr, b.msg)
		}(addr)
	}

	results := make([]fn.Result[any], 0, len(b.addrs))
	for range b.addrs {
		results = append(results, <-out)
	}
	return results
}

// Any returns the first successful response, or the last error if every
// destination failed. Grounded on actorutil/helpers.go's FirstSuccess.
func (b *RequestBuilder) Any(ctx context.Context) fn.Result[any] {
	type outcome struct {
		idx int
		res fn.Result[any]
	}
	out := make(chan outcome, len(b.addrs))
	for i, addr := range b.addrs {
		go func(i int, addr Addr) {
			out <- outcome{i, b.ctx.requestOne(ctx, addr, b.msg)}
		}(i, addr)
	}

	var last fn.Result[any]
	for range b.addrs {
		o := <-out
		if _, err := o.res.Unpack(); err == nil {
			return o.res
		}
		last = o.res
	}
	return last
}
