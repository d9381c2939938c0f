package elfo

import "sync"

// ActorStatusKind is the coarse lifecycle phase of an actor, mirroring
// elfo-core's ActorStatusKind.
type ActorStatusKind int

const (
	// StatusInitializing is the status a spawned actor starts in, before
	// its first successful recv.
	StatusInitializing ActorStatusKind = iota

	// StatusNormal is the steady running state; entered automatically on
	// the first successful recv.
	StatusNormal

	// StatusAlarming means the actor is running but has reported a
	// recoverable problem (e.g. a handled error it wants surfaced).
	StatusAlarming

	// StatusFailed means the actor's exec body returned an error or
	// panicked; the supervisor will restart it per the group's policy.
	StatusFailed

	// StatusTerminated is the final state; the actor will not be
	// restarted and its Addr's generation is retired.
	StatusTerminated
)

// String renders the status kind for logging.
func (k ActorStatusKind) String() string {
	switch k {
	case StatusInitializing:
		return "initializing"
	case StatusNormal:
		return "normal"
	case StatusAlarming:
		return "alarming"
	case StatusFailed:
		return "failed"
	case StatusTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// isTerminal reports whether no further transitions are possible from this
// status.
func (k ActorStatusKind) isTerminal() bool {
	return k == StatusTerminated
}

// ActorStatus is the full status value: a kind plus optional freeform
// details (e.g. the error message that caused Failed).
type ActorStatus struct {
	Kind    ActorStatusKind
	Details string
}

// ControlBlock holds the mutable, concurrently-read lifecycle state shared
// between an actor's owning goroutine and any other goroutine inspecting
// it (Group bookkeeping, tests). All access goes through its RWMutex,
// mirroring elfo-core's parking_lot::RwLock<ControlBlock>.
type ControlBlock struct {
	mu     sync.RWMutex
	addr   Addr
	status ActorStatus
}

// newControlBlock returns a ControlBlock for a freshly spawned actor at
// addr, starting in StatusInitializing.
func newControlBlock(addr Addr) *ControlBlock {
	return &ControlBlock{
		addr:   addr,
		status: ActorStatus{Kind: StatusInitializing},
	}
}

// Addr returns the actor's address.
func (c *ControlBlock) Addr() Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.addr
}

// Status returns a snapshot of the current status.
func (c *ControlBlock) Status() ActorStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// IsTerminal reports whether the actor has reached a terminal status.
func (c *ControlBlock) IsTerminal() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status.Kind.isTerminal()
}

// setStatus installs a new status and logs the transition at a severity
// matching its kind: Normal/Initializing log at info, Alarming/Failed log
// at warn/error, Terminated logs at info. Mirrors elfo-core's
// Actor::set_status log-severity split.
func (c *ControlBlock) setStatus(status ActorStatus) {
	c.mu.Lock()
	prev := c.status
	c.status = status
	addr := c.addr
	c.mu.Unlock()

	if prev.Kind == status.Kind && prev.Details == status.Details {
		return
	}

	switch status.Kind {
	case StatusFailed:
		log.Errorf("actor %s failed: %s", addr, status.Details)
	case StatusAlarming:
		log.Warnf("actor %s alarming: %s", addr, status.Details)
	default:
		log.Infof("actor %s -> %s", addr, status.Kind)
	}
}

// rebind re-targets the control block at a fresh Addr (new generation)
// after a restart, resetting status to Initializing.
func (c *ControlBlock) rebind(addr Addr) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.addr = addr
	c.status = ActorStatus{Kind: StatusInitializing}
}
