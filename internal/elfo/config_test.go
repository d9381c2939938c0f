package elfo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type workerConfig struct {
	Threshold int `yaml:"threshold"`
}

func newWorkerConfig() any { return &workerConfig{} }

func workerExec(updated chan<- *workerConfig) ExecFunc {
	return func(ctx context.Context, actorCtx *Context) error {
		for {
			env, ok := actorCtx.Recv(ctx)
			if !ok {
				return nil
			}
			switch msg := env.Message.(type) {
			case ValidateConfig:
				cfg := msg.Config.(*workerConfig)
				if cfg.Threshold < 0 {
					actorCtx.Respond(env.Kind.Token, ValidateConfigReply{Rejection: "threshold must be >= 0"}, nil)
					continue
				}
				actorCtx.Respond(env.Kind.Token, ValidateConfigReply{}, nil)
			case ConfigUpdated:
				_ = msg
				updated <- actorCtx.Config().(*workerConfig)
			case Terminate:
				return nil
			}
		}
	}
}

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestApplyConfigInstallsAcceptedConfig(t *testing.T) {
	topo := Empty()
	updated := make(chan *workerConfig, 1)

	g := topo.Local("worker")
	g.Entrypoint()
	g.Mount(NewSchema(workerExec(updated), WithConfigFactory(newWorkerConfig)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, topo.Start(ctx))

	require.Eventually(t, func() bool {
		c, ok := g.state.lookup("")
		if !ok {
			return false
		}
		c.mu.Lock()
		a := c.actor
		c.mu.Unlock()
		return a != nil
	}, time.Second, 5*time.Millisecond)

	path := writeConfigFile(t, "worker:\n  threshold: 5\n")
	raw, err := LoadConfigFile(path)
	require.NoError(t, err)

	require.NoError(t, ApplyConfig(context.Background(), topo, raw, "test"))

	select {
	case cfg := <-updated:
		require.Equal(t, 5, cfg.Threshold)
	case <-time.After(time.Second):
		t.Fatal("worker never observed ConfigUpdated")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, topo.Shutdown(shutdownCtx))
}

func TestApplyConfigRejectsInvalidConfig(t *testing.T) {
	topo := Empty()
	updated := make(chan *workerConfig, 1)

	g := topo.Local("worker")
	g.Entrypoint()
	g.Mount(NewSchema(workerExec(updated), WithConfigFactory(newWorkerConfig)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, topo.Start(ctx))

	require.Eventually(t, func() bool {
		c, ok := g.state.lookup("")
		if !ok {
			return false
		}
		c.mu.Lock()
		a := c.actor
		c.mu.Unlock()
		return a != nil
	}, time.Second, 5*time.Millisecond)

	path := writeConfigFile(t, "worker:\n  threshold: -1\n")
	raw, err := LoadConfigFile(path)
	require.NoError(t, err)

	err = ApplyConfig(context.Background(), topo, raw, "test")
	require.Error(t, err)

	select {
	case <-updated:
		t.Fatal("rejected config must not be installed")
	case <-time.After(50 * time.Millisecond):
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, topo.Shutdown(shutdownCtx))
}
