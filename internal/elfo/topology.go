package elfo

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Topology is the declarative group/route graph for a set of actor
// groups: which groups exist, which are entrypoints, and which groups are
// statically connected so Context.Send can resolve a destination by
// message flow rather than by address. Grounded on the teacher's
// ActorSystem (registry of stoppable actors, cancel-then-wait-with-timeout
// Shutdown), generalized from a flat actor map to a group-of-groups graph.
type Topology struct {
	mu     sync.Mutex
	groups map[string]*groupState
	routes map[string][]string
	slots  groupSlotAllocator

	deadLetters   []Envelope
	deadLettersMu sync.Mutex
	started       bool
}

// Empty returns a Topology with no groups mounted yet.
func Empty() *Topology {
	return &Topology{
		groups: make(map[string]*groupState),
		routes: make(map[string][]string),
	}
}

// Local declares (or returns, if already declared) a named group local to
// this process.
func (t *Topology) Local(name string) *GroupHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	gs, ok := t.groups[name]
	if !ok {
		gs = newGroupState(name, &t.slots, t)
		t.groups[name] = gs
	}
	return &GroupHandle{topo: t, state: gs}
}

// addRoute records a static connection from one group to another.
func (t *Topology) addRoute(from, to string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.routes[from] = append(t.routes[from], to)
}

// ActorGroups returns the names of every declared group.
func (t *Topology) ActorGroups() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	return names
}

// Connections returns the static from->to route table.
func (t *Topology) Connections() map[string][]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string][]string, len(t.routes))
	for k, v := range t.routes {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Start spawns every entrypoint group's singleton child, using an
// errgroup so a failure to spawn any one entrypoint surfaces immediately
// rather than silently stalling the rest. Grounded on golang.org/x/sync's
// errgroup, which the teacher pack uses for concurrent fan-out/shutdown.
func (t *Topology) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return fmt.Errorf("elfo: topology already started")
	}
	t.started = true
	groups := make([]*groupState, 0, len(t.groups))
	for _, gs := range t.groups {
		groups = append(groups, gs)
	}
	t.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, gs := range groups {
		gs := gs
		if !gs.isEntrypoint {
			continue
		}
		if gs.schema == nil {
			return fmt.Errorf("elfo: entrypoint group %q has no mounted schema", gs.name)
		}
		g.Go(func() error {
			if c := gs.getOrSpawn(""); c == nil {
				return fmt.Errorf("elfo: group %q shut down before start", gs.name)
			}
			return nil
		})
	}
	return g.Wait()
}

// Shutdown marks every group as shutting down and cancels all of their
// children, returning once every child has been cancelled or ctx is done.
// Groups are visited in no particular order, and Shutdown does not wait
// for the supervising goroutines or exec bodies to exit.
func (t *Topology) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	names := make([]string, 0, len(t.groups))
	for name := range t.groups {
		names = append(names, name)
	}
	t.mu.Unlock()

	var wg sync.WaitGroup
	for i := len(names) - 1; i >= 0; i-- {
		gs := t.groups[names[i]]
		gs.mu.Lock()
		gs.shutdown = true
		children := make([]*child, 0, len(gs.children))
		for _, c := range gs.children {
			children = append(children, c)
		}
		gs.mu.Unlock()

		for _, c := range children {
			wg.Add(1)
			go func(c *child) {
				defer wg.Done()
				c.stop()
			}(c)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeadLetters returns a snapshot of envelopes that could not be delivered
// (sent to a terminated actor, or drained from a closed mailbox).
func (t *Topology) DeadLetters() []Envelope {
	t.deadLettersMu.Lock()
	defer t.deadLettersMu.Unlock()
	return append([]Envelope(nil), t.deadLetters...)
}

// runtimeHandle is the narrow capability Context and Actor use to reach
// back into the Topology: routing an outgoing Send/Request to the right
// group and child, resolving an Addr back to a live Actor for SendTo and
// requests, and
// recording dead letters. Mirrors the teacher's SystemContext narrow
// interface (DeadLetters/Receptionist) used for the same dependency
// injection purpose.
type runtimeHandle struct {
	topo  *Topology
	group *groupState
	key   string
}

// deadLetter records an undeliverable envelope.
func (rt *runtimeHandle) deadLetter(from Addr, env Envelope) {
	rt.topo.deadLettersMu.Lock()
	rt.topo.deadLetters = append(rt.topo.deadLetters, env)
	rt.topo.deadLettersMu.Unlock()
	log.Debugf("dead letter from %s: %s", from, env.Message.MessageType())
}

// resolveActor finds the live Actor currently bound to addr, searching the
// group the address's slot belongs to.
func (rt *runtimeHandle) resolveActor(addr Addr) (*Actor, bool) {
	rt.topo.mu.Lock()
	var owner *groupState
	for _, gs := range rt.topo.groups {
		if gs.slot == addr.GroupSlot() {
			owner = gs
			break
		}
	}
	rt.topo.mu.Unlock()
	if owner == nil {
		return nil, false
	}
	return owner.actorByAddr(addr)
}

// lookupGroup resolves a declared group by name, without touching its
// children — callers run its Router and spawn keys themselves.
func (rt *runtimeHandle) lookupGroup(groupName string) (*groupState, bool) {
	rt.topo.mu.Lock()
	gs, ok := rt.topo.groups[groupName]
	rt.topo.mu.Unlock()
	return gs, ok
}

// connectedGroups returns the static destinations declared for fromGroup.
func (rt *runtimeHandle) connectedGroups(fromGroup string) []string {
	rt.topo.mu.Lock()
	defer rt.topo.mu.Unlock()
	return append([]string(nil), rt.topo.routes[fromGroup]...)
}
