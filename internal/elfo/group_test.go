package elfo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func idleExec(ctx context.Context, actorCtx *Context) error {
	<-ctx.Done()
	return nil
}

func TestGetOrSpawnCreatesOneChildPerKey(t *testing.T) {
	topo := Empty()
	g := topo.Local("shard")
	g.Mount(NewSchema(idleExec))

	a := g.state.getOrSpawn("a")
	b := g.state.getOrSpawn("b")
	require.NotSame(t, a, b)
	require.Equal(t, "a", a.key)
	require.Equal(t, "b", b.key)

	waitForActor := func(c *child) Addr {
		require.Eventually(t, func() bool {
			c.mu.Lock()
			defer c.mu.Unlock()
			return c.actor != nil
		}, time.Second, 5*time.Millisecond)
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.actor.Addr()
	}
	addrA, addrB := waitForActor(a), waitForActor(b)
	require.NotEqual(t, addrA.Local(), addrB.Local())

	a.stop()
	b.stop()
}

func TestGetOrSpawnIsIdempotentUnderConcurrency(t *testing.T) {
	topo := Empty()
	g := topo.Local("shard")
	g.Mount(NewSchema(idleExec))

	const n = 32
	children := make([]*child, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			children[i] = g.state.getOrSpawn("same-key")
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.Same(t, children[0], children[i])
	}

	require.Len(t, g.state.children, 1)
	children[0].stop()
}

func TestGetOrSpawnReturnsNilAfterShutdown(t *testing.T) {
	topo := Empty()
	g := topo.Local("shard")
	g.Mount(NewSchema(idleExec))

	g.state.mu.Lock()
	g.state.shutdown = true
	g.state.mu.Unlock()

	require.Nil(t, g.state.getOrSpawn("late"))
}

func TestChildAddrsReflectsOnlySpawnedChildren(t *testing.T) {
	topo := Empty()
	g := topo.Local("shard")
	g.Mount(NewSchema(idleExec))

	require.Empty(t, g.state.addrs())

	c := g.state.getOrSpawn("x")
	require.Eventually(t, func() bool {
		return len(g.state.addrs()) == 1
	}, time.Second, 5*time.Millisecond)

	c.stop()
}
