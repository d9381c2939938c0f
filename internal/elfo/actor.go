package elfo

import (
	"context"
)

// ExecFunc is the body of an actor: a long-running function that owns its
// own message loop by pulling from its Context (Recv/TryRecv/With), the
// Go-idiomatic equivalent of elfo-core's async `exec` function that calls
// `ctx.recv()` itself rather than having a framework push one message at a
// time into a callback (contrast with the teacher's
// ActorBehavior.Receive-per-message shape, which this generalizes away
// from per spec.md §4.5's scheduler/exec split).
//
// ExecFunc returns nil on graceful exit, or an error to signal
// StatusFailed and trigger the owning Group's restart policy.
type ExecFunc func(ctx context.Context, actorCtx *Context) error

// Actor is the runtime-owned state backing one running exec invocation:
// its mailbox, its own outstanding-request table, and its lifecycle
// control block. Grounded on the teacher's Actor[M,R] struct, stripped of
// the per-message-type generics and the built-in dispatch loop (the Group
// drives invocation; this struct only holds state the Context needs).
type Actor struct {
	addr    Addr
	mailbox *Mailbox
	reqs    *RequestTable
	control *ControlBlock
}

// newActor allocates the runtime state for a child about to be (re)spawned
// at addr.
func newActor(addr Addr, mailboxCapacity int, actorCtx context.Context) *Actor {
	return &Actor{
		addr:    addr,
		mailbox: NewMailbox(actorCtx, mailboxCapacity),
		reqs:    newRequestTable(),
		control: newControlBlock(addr),
	}
}

// Addr returns this actor's current address.
func (a *Actor) Addr() Addr { return a.addr }

// Status returns a snapshot of the actor's lifecycle status.
func (a *Actor) Status() ActorStatus { return a.control.Status() }

// run invokes exec with a fresh Context bound to this actor, recovering
// panics into a *PanicError so the caller (Group) can apply its restart
// policy uniformly whether exec panicked or returned an error.
func (a *Actor) run(ctx context.Context, exec ExecFunc, rt *runtimeHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.control.setStatus(ActorStatus{
				Kind:    StatusFailed,
				Details: "panic",
			})
			err = &PanicError{Addr: a.addr, Value: r}
		}
	}()

	actorCtx := newContext(a, rt)
	if execErr := exec(ctx, actorCtx); execErr != nil {
		a.control.setStatus(ActorStatus{
			Kind:    StatusFailed,
			Details: execErr.Error(),
		})
		return execErr
	}

	a.control.setStatus(ActorStatus{Kind: StatusTerminated})
	return nil
}

// shutdown closes the mailbox and drains any remaining envelopes to the
// dead-letter sink, mirroring the teacher's process() shutdown tail.
func (a *Actor) shutdown(rt *runtimeHandle) {
	a.mailbox.Close()

	drained := 0
	for env := range a.mailbox.Drain() {
		drained++
		if rt != nil {
			rt.deadLetter(a.addr, env)
		}
		if env.IsRequest() {
			env.Kind.Token.fulfill(errResult(ErrActorTerminated))
		}
	}
	if drained > 0 {
		log.Debugf("actor %s drained %d messages on shutdown", a.addr, drained)
	}
}
