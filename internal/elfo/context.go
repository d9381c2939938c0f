package elfo

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Context is the façade an exec function uses to interact with the
// runtime: receiving from its own mailbox and any attached Sources,
// sending or requesting messages to other groups or specific addresses,
// answering requests it received, and reading its group's configuration.
// Grounded on the teacher's actorRefImpl (Tell/Ask) plus
// actorutil.AskAwait/AskAwaitTyped for the blocking request shape,
// generalized from a typed per-actor ref to a single per-actor facade that
// can address any group in the topology.
type Context struct {
	actor *Actor
	rt    *runtimeHandle

	recvOnce sync.Once
	receiver *combinedReceiver
	sources  []Source
}

// newContext builds the Context bound to a freshly (re)spawned actor.
func newContext(a *Actor, rt *runtimeHandle) *Context {
	c := &Context{actor: a, rt: rt}
	c.receiver = newCombinedReceiver(a.mailbox, nil)
	return c
}

// Addr returns this actor's current address.
func (c *Context) Addr() Addr { return c.actor.Addr() }

// Key returns the shard key this actor was spawned for (empty for
// singleton groups).
func (c *Context) Key() string {
	if c.rt == nil {
		return ""
	}
	return c.rt.key
}

// GroupName returns the name of the group this actor belongs to.
func (c *Context) GroupName() string {
	if c.rt == nil || c.rt.group == nil {
		return ""
	}
	return c.rt.group.name
}

// With attaches additional Sources this actor's Recv/TryRecv should also
// consume from, alongside its mailbox. Returns the same Context for
// chaining at spawn-time setup.
func (c *Context) With(sources ...Source) *Context {
	c.sources = append(c.sources, sources...)
	c.receiver = newCombinedReceiver(c.actor.mailbox, c.sources)
	return c
}

// Recv blocks for the next envelope from the mailbox or any attached
// Source. The first successful Recv flips the actor's status from
// Initializing to Normal, mirroring original_source/elfo-core/src/actor.rs
// recv()'s auto status transition.
func (c *Context) Recv(ctx context.Context) (Envelope, bool) {
	env, ok := c.receiver.recv(ctx)
	if ok {
		c.recvOnce.Do(func() {
			if c.actor.control.Status().Kind == StatusInitializing {
				c.actor.control.setStatus(ActorStatus{Kind: StatusNormal})
			}
		})
	}
	return env, ok
}

// TryRecv returns the next envelope from the mailbox without blocking, if
// one is already available. It does not consult attached Sources; Recv is
// the only receive that includes them.
func (c *Context) TryRecv() (Envelope, bool) {
	env, ok := c.actor.mailbox.TryRecv()
	if ok {
		c.recvOnce.Do(func() {
			if c.actor.control.Status().Kind == StatusInitializing {
				c.actor.control.setStatus(ActorStatus{Kind: StatusNormal})
			}
		})
	}
	return env, ok
}

// Send routes msg to a destination resolved from this group's static
// topology connections, applying the destination group's Router to pick a
// specific child, blocking until delivered or ctx is cancelled.
func (c *Context) Send(ctx context.Context, msg Message) error {
	return c.dispatch(ctx, msg, true)
}

// TrySend is the non-blocking form of Send.
func (c *Context) TrySend(msg Message) error {
	return c.dispatch(context.Background(), msg, false)
}

// dispatch resolves msg's destination group(s) from this actor's static
// topology connections, runs the destination group's Router over the
// group's currently live shard keys, spawns any key the Router named that
// isn't already live (group.go's getOrSpawn), and delivers to it, for every
// connected group. It succeeds if at least one group accepted the envelope.
// This is the spawn-on-demand path spec.md §2 describes: "group router maps
// envelope to outcome -> group registry ensures child actor(s) exist for
// the keys".
func (c *Context) dispatch(ctx context.Context, msg Message, blocking bool) error {
	if c.rt == nil {
		return fmt.Errorf("elfo: context has no routing runtime")
	}
	dests := c.rt.connectedGroups(c.GroupName())
	if len(dests) == 0 {
		return fmt.Errorf("elfo: group %q has no outgoing routes", c.GroupName())
	}

	var lastErr error
	delivered := false
	for _, destGroup := range dests {
		gs, ok := c.rt.lookupGroup(destGroup)
		if !ok || gs.schema == nil {
			lastErr = fmt.Errorf("elfo: unknown destination group %q", destGroup)
			continue
		}
		env := NewEnvelope(msg, c.Addr())
		outcome := gs.schema.router(env, gs.liveKeys())
		if err := c.deliverOutcome(ctx, gs, outcome, env, blocking); err != nil {
			lastErr = err
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return lastErr
}

func (c *Context) deliverOutcome(ctx context.Context, gs *groupState, outcome RouteOutcome, env Envelope, blocking bool) error {
	switch outcome.Kind {
	case RouteDiscard:
		return ErrNoDestinations
	case RouteUnicast, RouteMulticast, RouteBroadcast, RouteDefault:
		var lastErr error
		delivered := false
		for _, key := range outcome.Keys {
			ch := gs.getOrSpawn(key)
			if ch == nil {
				lastErr = ErrActorTerminated
				continue
			}
			ch.mu.Lock()
			a := ch.actor
			ch.mu.Unlock()
			if a == nil {
				lastErr = ErrActorTerminated
				continue
			}
			if err := c.sendToActor(ctx, a, env, blocking); err != nil {
				lastErr = err
				continue
			}
			delivered = true
		}
		if !delivered {
			return lastErr
		}
		return nil
	default:
		return fmt.Errorf("elfo: unknown route outcome %v", outcome.Kind)
	}
}

// sendToActor delivers env directly to a, an already-resolved live Actor.
func (c *Context) sendToActor(ctx context.Context, a *Actor, env Envelope, blocking bool) error {
	var ok bool
	if blocking {
		ok = a.mailbox.Send(ctx, env)
	} else {
		ok = a.mailbox.TrySend(env)
	}
	if !ok {
		c.rt.deadLetter(c.Addr(), env)
		if !blocking && !a.mailbox.IsClosed() && a.mailbox.actorCtx.Err() == nil {
			return &FullError{Envelope: env}
		}
		return &ClosedError{Envelope: env}
	}
	return nil
}

// sendToAddr resolves addr to its current live Actor (without spawning —
// an explicit Addr already names a specific, previously resolved child) and
// delivers env to it.
func (c *Context) sendToAddr(ctx context.Context, addr Addr, env Envelope, blocking bool) error {
	a, ok := c.rt.resolveActor(addr)
	if !ok {
		c.rt.deadLetter(c.Addr(), env)
		return ErrUnknownAddr
	}
	return c.sendToActor(ctx, a, env, blocking)
}

// SendTo delivers msg directly to addr, bypassing topology routing,
// blocking until accepted or ctx is cancelled.
func (c *Context) SendTo(ctx context.Context, addr Addr, msg Message) error {
	env := NewEnvelope(msg, c.Addr())
	return c.sendToAddr(ctx, addr, env, true)
}

// TrySendTo is the non-blocking form of SendTo.
func (c *Context) TrySendTo(addr Addr, msg Message) error {
	env := NewEnvelope(msg, c.Addr())
	return c.sendToAddr(context.Background(), addr, env, false)
}

// Request begins a request to msg's routed destination(s). Call .To(...)
// to add destination addresses explicitly (e.g. to answer a
// request from a specific known sender), then .All(ctx) or .Any(ctx) to
// send and wait. Destinations are resolved the same way as Send: the
// destination group's Router runs over its live keys, and any key it names
// is spawned on demand if not already live.
func (c *Context) Request(msg Message) *RequestBuilder {
	b := &RequestBuilder{ctx: c, msg: msg}
	if c.rt == nil {
		return b
	}
	for _, destGroup := range c.rt.connectedGroups(c.GroupName()) {
		gs, ok := c.rt.lookupGroup(destGroup)
		if !ok || gs.schema == nil {
			continue
		}
		env := NewEnvelope(msg, c.Addr())
		outcome := gs.schema.router(env, gs.liveKeys())
		for _, key := range outcome.Keys {
			ch := gs.getOrSpawn(key)
			if ch == nil {
				continue
			}
			ch.mu.Lock()
			if ch.actor != nil {
				b.addrs = append(b.addrs, ch.actor.Addr())
			}
			ch.mu.Unlock()
		}
	}
	return b
}

// requestOne allocates a correlation slot in this actor's own RequestTable,
// sends msg to addr as a Request envelope carrying the resulting Token,
// and blocks for the answer.
func (c *Context) requestOne(ctx context.Context, addr Addr, msg Message) fn.Result[any] {
	corrID, tok := c.actor.reqs.allocate(c.Addr())
	_ = corrID
	env := newRequestEnvelope(msg, c.Addr(), tok)

	target, ok := c.rt.resolveActor(addr)
	if !ok {
		tok.Discard()
		return errResult(ErrUnknownAddr)
	}
	if !target.mailbox.Send(ctx, env) {
		tok.Discard()
		return errResult(ErrActorTerminated)
	}

	return c.actor.reqs.await(ctx, tok.CorrelationID())
}

// Respond fulfills tok with value (or err, if non-nil). The Token holds a
// direct pointer to the caller's request slot, so fulfilling it wakes the
// caller's pending await immediately without routing the result through
// any mailbox, matching spec.md §4.3's one-shot completion model.
func (c *Context) Respond(tok *Token, value any, err error) {
	var result fn.Result[any]
	if err != nil {
		result = fn.Err[any](err)
	} else {
		result = fn.Ok(value)
	}
	tok.fulfill(result)
}

// Config returns this actor's group's decoded configuration value as
// installed by the most recent ConfigUpdated, or nil if none has been
// mounted yet.
func (c *Context) Config() any {
	if c.rt == nil || c.rt.group == nil {
		return nil
	}
	return c.rt.group.currentConfig()
}

// UnpackConfig type-asserts Config() into dst's type, returning an error
// on mismatch rather than panicking.
func (c *Context) UnpackConfig(dst any) error {
	cfg := c.Config()
	if cfg == nil {
		return fmt.Errorf("elfo: no config mounted for group %q", c.GroupName())
	}
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("elfo: UnpackConfig requires a non-nil pointer destination, got %T", dst)
	}
	cv := reflect.ValueOf(cfg)
	if !cv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("elfo: config for group %q is %T, not assignable to %s", c.GroupName(), cfg, dv.Elem().Type())
	}
	dv.Elem().Set(cv)
	return nil
}

// Pruned returns a minimal Context that can still Recv from the same
// mailbox but has no routing runtime attached, for use in tests or tools
// that want to drive an exec function without a full Topology.
func (c *Context) Pruned() *Context {
	return &Context{
		actor:    c.actor,
		receiver: newCombinedReceiver(c.actor.mailbox, nil),
	}
}
