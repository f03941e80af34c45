package background

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/registry"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "hangar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReloadAppliesValidConfigAndRegistersNewProviders(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
providers:
  echoer:
    mode: subprocess
    command: echo
`)

	bus := events.NewBus()
	reg := registry.New(bus)
	worker := NewReloadWorker(path, reg, bus, false, time.Second)

	worker.Reload()

	assert.Contains(t, reg.Providers(), "echoer")
}

func TestReloadLeavesStateUntouchedOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `providers: [not, a, map]`)

	bus := events.NewBus()
	reg := registry.New(bus)
	worker := NewReloadWorker(path, reg, bus, false, time.Second)

	worker.Reload()

	assert.Empty(t, reg.Providers())
}

func TestReloadRemovesDeregisteredProviders(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
providers:
  a:
    mode: subprocess
    command: echo
  b:
    mode: subprocess
    command: echo
`)
	bus := events.NewBus()
	reg := registry.New(bus)
	worker := NewReloadWorker(path, reg, bus, false, time.Second)
	worker.Reload()
	require.Len(t, reg.Providers(), 2)

	writeConfig(t, dir, `
providers:
  a:
    mode: subprocess
    command: echo
`)
	worker.Reload()
	assert.Equal(t, []string{"a"}, reg.Providers())
}

func TestIdleGCSweepSkipsColdProvider(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
providers:
  a:
    mode: subprocess
    command: echo
    idle_ttl: 1ms
`)
	bus := events.NewBus()
	reg := registry.New(bus)
	worker := NewReloadWorker(path, reg, bus, false, time.Second)
	worker.Reload()

	gc := NewIdleGC(reg, time.Hour)
	gc.sweep() // no-op: provider starts COLD, not READY, so nothing to collect

	s, ok := reg.ProviderSupervisor("a")
	require.True(t, ok)
	assert.False(t, s.IdleShutdownIfDue(time.Now()), "a COLD provider is never idle-shut-down")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	gc.Run(ctx)
}

func TestDurationConfigAcceptsHumanStringsAndBareSeconds(t *testing.T) {
	cfg, err := config.Parse([]byte(`
providers:
  a:
    mode: subprocess
    command: echo
    idle_ttl: 45s
    health_check_interval: 5
`))
	require.NoError(t, err)
	p := cfg.Providers["a"]
	assert.Equal(t, 45*time.Second, time.Duration(p.IdleTTL))
	assert.Equal(t, 5*time.Second, time.Duration(p.HealthCheckInterval))
}
