package provider

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hangar/internal/config"
	"hangar/internal/transport"
)

func TestValidateSubprocessCommand(t *testing.T) {
	assert.NoError(t, validateSubprocessCommand("/usr/bin/python3"))
	assert.NoError(t, validateSubprocessCommand("node"))

	assert.Error(t, validateSubprocessCommand(""))
	assert.Error(t, validateSubprocessCommand("echo hi; rm -rf /"))
	assert.Error(t, validateSubprocessCommand("bash"))
	assert.Error(t, validateSubprocessCommand("/bin/sh"))
}

func TestMaskedEnvHidesSensitiveValues(t *testing.T) {
	env := map[string]string{
		"API_TOKEN": "abc123",
		"HOME":      "/root",
	}
	masked := maskedEnv(env)
	assert.Equal(t, "***", masked["API_TOKEN"])
	assert.Equal(t, "/root", masked["HOME"])
}

func TestBuildContainerArgsRequiresImage(t *testing.T) {
	_, err := buildContainerArgs("podman", config.Provider{Mode: config.ModeContainer})
	assert.Error(t, err)
}

func TestBuildContainerArgsDefaultsToReadOnlyAndNoNetwork(t *testing.T) {
	args, err := buildContainerArgs("podman", config.Provider{Image: "example/image:latest"})
	require.NoError(t, err)
	assert.Contains(t, args, "--read-only")
	assert.Contains(t, args, "--network=none")
	assert.Contains(t, args, "example/image:latest")
}

func TestBuildContainerArgsHonoursExplicitReadOnlyFalse(t *testing.T) {
	off := false
	args, err := buildContainerArgs("podman", config.Provider{Image: "example/image:latest", ReadOnlyRootFS: &off})
	require.NoError(t, err)
	assert.NotContains(t, args, "--read-only")
}

func TestBuildContainerArgsRejectsBlockedVolume(t *testing.T) {
	_, err := buildContainerArgs("podman", config.Provider{
		Image:   "example/image:latest",
		Volumes: []string{"/etc/shadow:/etc/shadow"},
	})
	assert.Error(t, err)
}

func TestBuildContainerArgsRejectsRelativeVolume(t *testing.T) {
	_, err := buildContainerArgs("podman", config.Provider{
		Image:   "example/image:latest",
		Volumes: []string{"relative/path:/data"},
	})
	assert.Error(t, err)
}

func TestBuildClientUnsupportedMode(t *testing.T) {
	_, err := buildClient(config.Provider{Mode: "bogus"})
	assert.Error(t, err)
}

func TestBuildClientRemoteSelectsSSEForSSEPath(t *testing.T) {
	client, err := buildClient(config.Provider{Mode: config.ModeRemote, URL: "https://example.com/sse"})
	require.NoError(t, err)
	assert.IsType(t, &transport.SSEClient{}, client)
}

func TestBuildClientRemoteSelectsStreamableHTTPByDefault(t *testing.T) {
	client, err := buildClient(config.Provider{Mode: config.ModeRemote, URL: "https://example.com/mcp"})
	require.NoError(t, err)
	assert.IsType(t, &transport.StreamableHTTPClient{}, client)
}

func TestBuildClientRemoteRejectsUnreadableCACertPath(t *testing.T) {
	_, err := buildClient(config.Provider{
		Mode: config.ModeRemote,
		URL:  "https://example.com/mcp",
		TLS:  config.RemoteTLS{CACertPath: "/nonexistent/ca.pem"},
	})
	assert.Error(t, err)
}

func TestBuildClientRemoteLoadsCACertPathForSSE(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/ca.pem"
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-cert-but-readable"), 0o600))

	client, err := buildClient(config.Provider{
		Mode: config.ModeRemote,
		URL:  "https://example.com/sse",
		TLS:  config.RemoteTLS{CACertPath: path},
	})
	require.NoError(t, err)
	assert.IsType(t, &transport.SSEClient{}, client)
}
