package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "hangar.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInitializeServicesLoadsConfigAndBuildsRegistry(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
providers:
  a:
    mode: subprocess
    command: echo
aggregator:
  transport: stdio
`)

	cfg := NewConfig(false, path)
	svc, err := InitializeServices(cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, svc.reg.Providers())
	assert.NotNil(t, cfg.HangarConfig)
	assert.Nil(t, svc.reload, "config_reload is disabled by default")
	assert.Nil(t, svc.metricsSrv, "metrics is disabled by default")
}

func TestInitializeServicesReturnsErrorOnInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `providers: [this is not a map]`)

	cfg := NewConfig(false, path)
	_, err := InitializeServices(cfg)
	assert.Error(t, err)
}

func TestStartAndStopHTTPAggregatorIsClean(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
providers:
  a:
    mode: subprocess
    command: echo
aggregator:
  transport: streamable-http
  host: 127.0.0.1
  port: 0
`)

	cfg := NewConfig(false, path)
	svc, err := InitializeServices(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, svc.Start(ctx))
	svc.Stop(2 * time.Second)
}
