package provider

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"hangar/internal/config"
	"hangar/internal/transport"
)

// sensitiveEnvPattern matches environment variable names treated as
// sensitive: their values are masked in logs and diagnostics, and ambient
// variables with such names are not passed to child processes (explicitly
// configured ones are; see filteredProcessEnv).
var sensitiveEnvPattern = regexp.MustCompile(`(?i)(password|token|secret|key|credential)`)

// maskedEnv returns a copy of env with sensitive-looking values replaced,
// suitable for inclusion in logs or details() snapshots.
func maskedEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if sensitiveEnvPattern.MatchString(k) {
			out[k] = "***"
		} else {
			out[k] = v
		}
	}
	return out
}

// filteredProcessEnv merges the current process environment with the
// provider's configured env, masking nothing (the child needs real values)
// but excluding any ambient variable whose name looks sensitive unless the
// provider config explicitly set it. This keeps secrets from the control
// plane's own environment from silently leaking into every child process.
func filteredProcessEnv(configured map[string]string) map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if sensitiveEnvPattern.MatchString(parts[0]) {
			continue
		}
		out[parts[0]] = parts[1]
	}
	for k, v := range configured {
		out[k] = v
	}
	return out
}

// buildClient constructs the transport.MCPClient for a provider's
// configured mode, without starting it. Initialize() performs the actual
// launch; this stays a pure function of config so it can be unit tested.
func buildClient(p config.Provider) (transport.MCPClient, error) {
	switch p.Mode {
	case config.ModeSubprocess:
		if err := validateSubprocessCommand(p.Command); err != nil {
			return nil, err
		}
		env := filteredProcessEnv(p.Env)
		return transport.NewStdioClientWithEnv(p.Command, p.Args, env), nil

	case config.ModeContainer:
		runtime := containerRuntime()
		args, err := buildContainerArgs(runtime, p)
		if err != nil {
			return nil, err
		}
		env := filteredProcessEnv(nil)
		return transport.NewStdioClientWithEnv(runtime, args, env), nil

	case config.ModeRemote:
		auth := transport.RemoteAuth{
			APIKeyHeader: p.Auth.APIKeyHeader,
			APIKeyValue:  p.Auth.APIKeyValue,
			BearerToken:  p.Auth.BearerToken,
			BasicUser:    p.Auth.BasicUser,
			BasicPass:    p.Auth.BasicPass,
		}
		tls := transport.RemoteTLS{InsecureSkipVerify: p.TLS.InsecureSkipVerify}
		if p.TLS.CACertPath != "" {
			pem, err := os.ReadFile(p.TLS.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read tls ca_cert_path %q: %w", p.TLS.CACertPath, err)
			}
			tls.CACertPEM = pem
		}
		if strings.HasSuffix(strings.ToLower(p.URL), "/sse") {
			return transport.NewSSEClient(p.URL, auth, tls), nil
		}
		return transport.NewStreamableHTTPClient(p.URL, auth, tls), nil

	default:
		return nil, fmt.Errorf("unsupported provider mode: %s", p.Mode)
	}
}

// validateSubprocessCommand enforces the no-shell-invocation rule: the
// command must be a bare executable path/name, never passed through a
// shell, and must not itself contain shell metacharacters.
func validateSubprocessCommand(command string) error {
	if command == "" {
		return fmt.Errorf("command is required for subprocess mode")
	}
	if strings.ContainsAny(command, ";|&$`<>\n") {
		return fmt.Errorf("command must not contain shell metacharacters")
	}
	base := command
	if idx := strings.LastIndexByte(command, '/'); idx >= 0 {
		base = command[idx+1:]
	}
	for _, denied := range []string{"sh", "bash", "zsh", "csh", "cmd", "powershell"} {
		if base == denied {
			return fmt.Errorf("launching a shell interpreter directly is not permitted: %s", command)
		}
	}
	return nil
}

// containerRuntime selects the container runtime binary: the value of
// HANGAR_CONTAINER_RUNTIME when set, otherwise podman. It does not check
// whether podman is installed and never falls back to docker on its own.
func containerRuntime() string {
	if rt := os.Getenv("HANGAR_CONTAINER_RUNTIME"); rt != "" {
		return rt
	}
	return "podman"
}

// buildContainerArgs builds the `<runtime> run ...` argument list with the
// always-applied hardening described by the spec: drop all capabilities,
// disallow new privileges, read-only root unless explicitly off, resource
// limits, and the configured network mode (default none). The container is
// run attached (-i, no -d) so its stdio can carry the MCP JSON-RPC stream.
func buildContainerArgs(runtime string, p config.Provider) ([]string, error) {
	if p.Image == "" {
		return nil, fmt.Errorf("image is required for container mode")
	}

	args := []string{"run", "-i", "--rm"}
	args = append(args, "--cap-drop=ALL")
	args = append(args, "--security-opt=no-new-privileges")

	readOnly := true
	if p.ReadOnlyRootFS != nil {
		readOnly = *p.ReadOnlyRootFS
	}
	if readOnly {
		args = append(args, "--read-only")
	}

	network := p.Network
	if network == "" {
		network = "none"
	}
	args = append(args, "--network="+network)

	if p.Limits.MemoryMB > 0 {
		args = append(args, "--memory="+strconv.Itoa(p.Limits.MemoryMB)+"m")
	}
	if p.Limits.CPUs > 0 {
		args = append(args, "--cpus="+strconv.FormatFloat(p.Limits.CPUs, 'f', -1, 64))
	}
	if p.User != "" {
		args = append(args, "--user="+p.User)
	}

	for k, v := range p.Env {
		args = append(args, "-e", k+"="+v)
	}

	for _, vol := range p.Volumes {
		if !isAbsoluteHostPath(vol) {
			return nil, fmt.Errorf("volume mount host path must be absolute: %s", vol)
		}
		if isBlockedSensitivePath(vol) {
			return nil, fmt.Errorf("volume mount host path is blocked: %s", vol)
		}
		args = append(args, "-v", vol)
	}

	args = append(args, p.Image)
	args = append(args, p.Args...)

	return args, nil
}

func isAbsoluteHostPath(p string) bool {
	return len(p) > 0 && p[0] == '/'
}

var blockedSensitivePrefixes = []string{
	"/etc/shadow",
	"/etc/passwd",
	"/root/.ssh",
	"/var/run/docker.sock",
	"/proc",
	"/sys",
}

func isBlockedSensitivePath(p string) bool {
	for _, prefix := range blockedSensitivePrefixes {
		if len(p) >= len(prefix) && p[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
