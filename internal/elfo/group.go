package elfo

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

const (
	restartBackoffStart = 50 * time.Millisecond
	restartBackoffCap   = 10 * time.Second
	restartBackoffReset = 30 * time.Second
	restartJitterFrac   = 0.2
)

// child is one spawned-on-demand actor within a Group, keyed by its shard
// key ("" for a singleton group). It owns the supervising goroutine that
// restarts the actor on failure.
type child struct {
	key   string
	slot  *childSlot
	group *groupState

	mu      sync.Mutex
	actor   *Actor
	cancel  context.CancelFunc
	backoff time.Duration
}

// groupState is the runtime bookkeeping behind one named Group: its
// mounted Schema, its group-wide slot number, and the per-key registry of
// running children. Grounded on actorutil/pool.go's Pool[M,R] for the
// registry/lifecycle shape and other_examples grixate-squidbot's
// getOrCreate for spawn-on-demand double-checked locking.
type groupState struct {
	name         string
	slot         uint16
	schema       *Schema
	isEntrypoint bool
	topo         *Topology
	cfg          configState

	mu         sync.Mutex
	children   map[string]*child
	nextLocal  uint32
	shutdown   bool
}

func newGroupState(name string, slotAlloc *groupSlotAllocator, topo *Topology) *groupState {
	return &groupState{
		name:     name,
		slot:     slotAlloc.allocate(),
		topo:     topo,
		children: make(map[string]*child),
	}
}

// getOrSpawn returns the child for key, spawning it on first use. Uses
// double-checked locking so concurrent callers racing to create the same
// key's first child only spawn it once.
func (g *groupState) getOrSpawn(key string) *child {
	g.mu.Lock()
	if c, ok := g.children[key]; ok {
		g.mu.Unlock()
		return c
	}
	if g.shutdown {
		g.mu.Unlock()
		return nil
	}

	local := g.nextLocal
	g.nextLocal++

	c := &child{
		key:     key,
		slot:    &childSlot{local: local},
		group:   g,
		backoff: restartBackoffStart,
	}
	g.children[key] = c
	g.mu.Unlock()

	c.start()
	return c
}

// lookup returns the child for key without spawning it.
func (g *groupState) lookup(key string) (*child, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.children[key]
	return c, ok
}

// addrs returns the live Addr of every currently spawned child, used by
// config validation/broadcast, which already knows the children it wants to
// reach and never needs to spawn new ones.
func (g *groupState) addrs() []Addr {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Addr, 0, len(g.children))
	for _, c := range g.children {
		c.mu.Lock()
		if c.actor != nil {
			out = append(out, c.actor.Addr())
		}
		c.mu.Unlock()
	}
	return out
}

// liveKeys returns the shard key of every currently spawned child, handed
// to a Router so it can choose among already-running children (RoundRobin,
// Broadcast) without forcing it to know about Addrs at all.
func (g *groupState) liveKeys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, 0, len(g.children))
	for key, c := range g.children {
		c.mu.Lock()
		has := c.actor != nil
		c.mu.Unlock()
		if has {
			out = append(out, key)
		}
	}
	return out
}

// remove deletes key's child from the registry. Called when its exec exits
// cleanly, per spec.md §4.7: a cleanly terminated child is removed and not
// respawned, so a later getOrSpawn for the same key starts fresh rather
// than handing back the stale, terminated child.
func (g *groupState) remove(key string) {
	g.mu.Lock()
	delete(g.children, key)
	g.mu.Unlock()
}

// actorByAddr finds the child currently holding addr, honoring the
// generation embedded in addr (a stale generation after a restart will not
// match, per spec.md §8 invariant 4).
func (g *groupState) actorByAddr(addr Addr) (*Actor, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range g.children {
		c.mu.Lock()
		a := c.actor
		c.mu.Unlock()
		if a != nil && a.Addr() == addr {
			return a, true
		}
	}
	return nil, false
}

// start spawns the child's first Actor synchronously, then launches the
// supervising goroutine to run it. Spawning the Actor (and its mailbox)
// before returning means a caller routing a message to this child right
// after getOrSpawn sees a live mailbox immediately, rather than racing the
// supervising goroutine's first iteration.
func (c *child) start() {
	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	a, actorCtx, actorCancel := c.spawnActor(ctx)
	go c.supervise(ctx, a, actorCtx, actorCancel)
}

// spawnActor creates a fresh Actor for this child's slot at its current
// generation and installs it as the child's live actor.
func (c *child) spawnActor(ctx context.Context) (*Actor, context.Context, context.CancelFunc) {
	addr := c.slot.addr(c.group.slot)
	actorCtx, actorCancel := context.WithCancel(ctx)

	a := newActor(addr, c.group.schema.mailboxSize, actorCtx)
	c.mu.Lock()
	c.actor = a
	c.mu.Unlock()

	a.control.setStatus(ActorStatus{Kind: StatusInitializing})
	return a, actorCtx, actorCancel
}

// supervise runs the child's actor, restarting it with exponential backoff
// and jitter on error or panic until the group shuts it down, or removing it
// from the registry on clean exit. Grounded on
// other_examples/d67f8333_FergusInLondon-go-supervise's restart-on-return
// ActorWorker shape.
func (c *child) supervise(ctx context.Context, a *Actor, actorCtx context.Context, actorCancel context.CancelFunc) {
	for {
		rt := &runtimeHandle{topo: c.group.topo, group: c.group, key: c.key}
		started := time.Now()
		err := a.run(actorCtx, c.group.schema.exec, rt)
		a.shutdown(rt)
		actorCancel()

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			c.group.remove(c.key)
			return
		}

		if time.Since(started) > restartBackoffReset {
			c.mu.Lock()
			c.backoff = restartBackoffStart
			c.mu.Unlock()
		}

		c.mu.Lock()
		wait := c.backoff
		c.backoff *= 2
		if c.backoff > restartBackoffCap {
			c.backoff = restartBackoffCap
		}
		c.mu.Unlock()

		jitter := time.Duration(float64(wait) * restartJitterFrac * (rand.Float64()*2 - 1))
		sleep := wait + jitter
		if sleep < 0 {
			sleep = 0
		}

		log.Warnf("group %s child %q restarting in %s after: %v",
			c.group.name, c.key, sleep, err)

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return
		}

		c.slot.restart(c.group.slot)
		a, actorCtx, actorCancel = c.spawnActor(ctx)
	}
}

// stop cancels the child's supervising goroutine and its current actor's
// context. It returns without waiting for either to exit.
func (c *child) stop() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// GroupHandle is the builder returned by Topology.Local, used to mount a
// Schema, mark a group as an entrypoint, and declare static routes to
// other groups.
type GroupHandle struct {
	topo  *Topology
	state *groupState
}

// Mount installs schema as this group's behavior. Must be called before
// Topology.Start.
func (h *GroupHandle) Mount(schema *Schema) *GroupHandle {
	h.state.schema = schema
	return h
}

// Entrypoint marks this group as one whose singleton child ("" key) is
// spawned automatically when the Topology starts, rather than lazily on
// first message.
func (h *GroupHandle) Entrypoint() *GroupHandle {
	h.state.isEntrypoint = true
	return h
}

// RouteAllTo declares a static connection: every Context.Send from this
// group with no more specific route reaches other's group.
func (h *GroupHandle) RouteAllTo(other *GroupHandle) *GroupHandle {
	h.topo.addRoute(h.state.name, other.state.name)
	return h
}

// Name returns the group's declared name.
func (h *GroupHandle) Name() string { return h.state.name }
