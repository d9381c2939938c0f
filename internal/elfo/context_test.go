package elfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestContextRecvTransitionsInitializingToNormalOnce(t *testing.T) {
	a := newActor(newAddr(1, 0, 0), 4, context.Background())
	c := newContext(a, nil)

	require.Equal(t, StatusInitializing, a.Status().Kind)

	require.True(t, a.mailbox.TrySend(NewEnvelope(testMsg{N: 1}, NullAddr)))
	_, ok := c.Recv(context.Background())
	require.True(t, ok)
	require.Equal(t, StatusNormal, a.Status().Kind)

	require.True(t, a.mailbox.TrySend(NewEnvelope(testMsg{N: 2}, NullAddr)))
	_, ok = c.Recv(context.Background())
	require.True(t, ok)
	require.Equal(t, StatusNormal, a.Status().Kind)
}

func TestContextSendWithoutRuntimeErrors(t *testing.T) {
	a := newActor(newAddr(1, 0, 0), 4, context.Background())
	c := newContext(a, nil)

	err := c.Send(context.Background(), testMsg{N: 1})
	require.Error(t, err)
}

func TestContextConfigNilBeforeAnyApply(t *testing.T) {
	topo := Empty()
	g := topo.Local("solo")
	g.Mount(NewSchema(idleExec))

	rt := &runtimeHandle{topo: topo, group: g.state}
	a := newActor(newAddr(1, 0, 0), 4, context.Background())
	c := newContext(a, rt)

	require.Nil(t, c.Config())
	require.Error(t, c.UnpackConfig(new(any)))
}

func TestContextPrunedCanStillRecv(t *testing.T) {
	a := newActor(newAddr(1, 0, 0), 4, context.Background())
	c := newContext(a, nil)
	pruned := c.Pruned()

	require.True(t, a.mailbox.TrySend(NewEnvelope(testMsg{N: 9}, NullAddr)))
	env, ok := pruned.Recv(context.Background())
	require.True(t, ok)
	require.Equal(t, 9, env.Message.(testMsg).N)
	require.Equal(t, "", pruned.GroupName())
}

func TestContextSendToDeliversDirectlyBypassingRouting(t *testing.T) {
	topo := Empty()
	g := topo.Local("solo")
	g.Mount(NewSchema(idleExec))
	c := g.state.getOrSpawn("")

	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.actor != nil
	}, time.Second, 5*time.Millisecond)

	c.mu.Lock()
	target := c.actor
	c.mu.Unlock()

	rt := &runtimeHandle{topo: topo, group: g.state}
	sender := newActor(newAddr(0xfe, 0, 0), 4, context.Background())
	senderCtx := newContext(sender, rt)

	err := senderCtx.SendTo(context.Background(), target.Addr(), testMsg{N: 3})
	require.NoError(t, err)

	env, ok := target.mailbox.TryRecv()
	require.True(t, ok)
	require.Equal(t, 3, env.Message.(testMsg).N)

	c.stop()
}
