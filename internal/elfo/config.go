package elfo

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// configState holds the currently installed configuration for one group.
// Embedded into groupState's bookkeeping rather than groupState itself so
// the zero value (no config yet) is unambiguous.
type configState struct {
	mu    sync.RWMutex
	value any
}

// currentConfig returns the group's installed config, or nil if none has
// been set.
func (g *groupState) currentConfig() any {
	g.cfg.mu.RLock()
	defer g.cfg.mu.RUnlock()
	return g.cfg.value
}

// setConfig installs a new config value for the group.
func (g *groupState) setConfig(v any) {
	g.cfg.mu.Lock()
	g.cfg.value = v
	g.cfg.mu.Unlock()
}

// LoadConfigFile reads a YAML document shaped as spec.md §6's "nested
// mapping where top-level keys are group names" and returns the raw,
// still-undecoded node for each group. Decoding into a concrete type
// happens per group via yaml.Node.Decode, once the group's config factory
// (Schema.newConfig) is known.
func LoadConfigFile(path string) (map[string]yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("elfo: reading config file: %w", err)
	}

	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("elfo: parsing config file: %w", err)
	}
	return raw, nil
}

// ApplyConfig validates and installs raw per-group config nodes across the
// topology: each mounted group with a schema config factory is sent a
// ValidateConfig request first, and only if every group accepts does
// ApplyConfig install the new values and broadcast ConfigUpdated. This
// mirrors spec.md §6's configurer contract, scoped down to the core's
// validate-then-commit plumbing (the configurer's file-watching and
// source-precedence logic is explicitly out of scope).
func ApplyConfig(ctx context.Context, topo *Topology, raw map[string]yaml.Node, source string) error {
	topo.mu.Lock()
	groups := make([]*groupState, 0, len(topo.groups))
	for _, gs := range topo.groups {
		groups = append(groups, gs)
	}
	topo.mu.Unlock()

	decoded := make(map[string]any, len(groups))
	for _, gs := range groups {
		node, ok := raw[gs.name]
		if !ok || gs.schema == nil || gs.schema.newConfig == nil {
			continue
		}
		cfg := gs.schema.newConfig()
		if err := node.Decode(cfg); err != nil {
			return fmt.Errorf("elfo: decoding config for group %q: %w", gs.name, err)
		}
		decoded[gs.name] = cfg
	}

	for _, gs := range groups {
		cfg, ok := decoded[gs.name]
		if !ok {
			continue
		}
		if rejection := validateGroup(ctx, gs, cfg, source); rejection != "" {
			return fmt.Errorf("elfo: group %q rejected config: %s", gs.name, rejection)
		}
	}

	for _, gs := range groups {
		cfg, ok := decoded[gs.name]
		if !ok {
			continue
		}
		gs.setConfig(cfg)
		broadcastConfigUpdated(gs)
	}
	return nil
}

// validateGroup asks every live child of gs to validate cfg via a
// ValidateConfig request, returning the first rejection reason seen, or
// "" if all accept (or the group has no children yet to ask).
func validateGroup(ctx context.Context, gs *groupState, cfg any, source string) string {
	addrs := gs.addrs()
	if len(addrs) == 0 {
		return ""
	}

	vctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, addr := range addrs {
		a, ok := gs.actorByAddr(addr)
		if !ok {
			continue
		}
		corrID, tok := a.reqs.allocate(addr)
		_ = corrID
		env := newRequestEnvelope(ValidateConfig{Config: cfg, Source: source}, addr, tok)
		if !a.mailbox.Send(vctx, env) {
			continue
		}
		result := a.reqs.await(vctx, tok.CorrelationID())
		val, err := result.Unpack()
		if err != nil {
			continue
		}
		if reply, ok := val.(ValidateConfigReply); ok && reply.Rejection != "" {
			return reply.Rejection
		}
	}
	return ""
}

// broadcastConfigUpdated tells every live child of gs that its config has
// changed, with a TrySend straight into each child's mailbox; a child whose
// mailbox is full or closed does not receive the notice.
func broadcastConfigUpdated(gs *groupState) {
	addrs := gs.addrs()
	env := NewEnvelope(ConfigUpdated{}, NullAddr)
	for _, addr := range addrs {
		a, ok := gs.actorByAddr(addr)
		if !ok {
			continue
		}
		a.mailbox.TrySend(env)
	}
}
