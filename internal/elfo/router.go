package elfo

import "sync"

// RouteOutcomeKind describes what a Router decided to do with an envelope.
type RouteOutcomeKind int

const (
	// RouteUnicast delivers to exactly one destination.
	RouteUnicast RouteOutcomeKind = iota
	// RouteMulticast delivers to a subset of destinations.
	RouteMulticast
	// RouteBroadcast delivers to every destination.
	RouteBroadcast
	// RouteDiscard drops the envelope; no destination matched.
	RouteDiscard
	// RouteDefault is delivered like the other delivering kinds: to the
	// shard keys listed in Keys. A group has no separate default
	// destination that it falls back to.
	RouteDefault
)

// RouteOutcome is the result of running a Router over an envelope: which
// shard keys within the destination group should receive it. Keys name
// children by their group-local shard key, not by Addr, so the dispatch
// path can spawn a key on demand (group.go's getOrSpawn) if it doesn't have
// a live child yet — the group registry, not the Router, owns Addr
// assignment.
type RouteOutcome struct {
	Kind RouteOutcomeKind
	Keys []string
}

// Router is a pure function mapping an outgoing envelope and the group's
// currently live shard keys to a routing decision. Grounded on the
// teacher's RoutingStrategy reference in system.go (ServiceKey.Ref
// constructs cfg.strategy via NewRoundRobinStrategy[M,R]()); rebuilt here as
// a plain function type since spec.md §4.6 wants routers to be arbitrary
// pure functions, not a fixed strategy enum.
type Router func(env Envelope, liveKeys []string) RouteOutcome

// RoundRobin returns a stateful Router that cycles through the group's
// currently live keys. If none are live yet, it routes to the singleton
// key (""), so a freshly declared group with no pre-spawned children still
// gets one on first send rather than silently discarding.
func RoundRobin() Router {
	var mu sync.Mutex
	var next int
	return func(_ Envelope, liveKeys []string) RouteOutcome {
		mu.Lock()
		defer mu.Unlock()
		if len(liveKeys) == 0 {
			return RouteOutcome{Kind: RouteUnicast, Keys: []string{""}}
		}
		idx := next % len(liveKeys)
		next++
		return RouteOutcome{Kind: RouteUnicast, Keys: []string{liveKeys[idx]}}
	}
}

// Broadcast returns a Router that fans out to every currently live key. It
// never spawns new ones: broadcasting to a key nobody has sent to yet would
// mean every broadcast grows the group without bound.
func Broadcast() Router {
	return func(_ Envelope, liveKeys []string) RouteOutcome {
		if len(liveKeys) == 0 {
			return RouteOutcome{Kind: RouteDiscard}
		}
		return RouteOutcome{Kind: RouteBroadcast, Keys: liveKeys}
	}
}

// ByKey returns a Router that derives the destination shard key directly
// from the envelope via keyFn, so the same content-derived key always lands
// on the same child, spawning it on first use regardless of which (if any)
// keys are already live. This is spec.md §8's sharded-aggregator routing
// (e.g. an AddNum{group} envelope addressed to the "group" shard).
func ByKey(keyFn func(Envelope) string) Router {
	return func(env Envelope, _ []string) RouteOutcome {
		return RouteOutcome{Kind: RouteUnicast, Keys: []string{keyFn(env)}}
	}
}
