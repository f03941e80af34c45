// Package config defines hangar's typed configuration document, its YAML
// loader, validation, and the unchanged/added/removed/updated diff used by
// the hot-reload worker.
package config

import "time"

// Mode is the tagged variant over how a provider's transport is launched.
type Mode string

const (
	ModeSubprocess Mode = "subprocess"
	ModeContainer  Mode = "container"
	ModeRemote     Mode = "remote"
	ModeGroup      Mode = "group"
)

// Strategy is a group's member-selection algorithm.
type Strategy string

const (
	StrategyRoundRobin         Strategy = "round_robin"
	StrategyWeightedRoundRobin Strategy = "weighted_round_robin"
	StrategyLeastConnections   Strategy = "least_connections"
	StrategyRandom             Strategy = "random"
	StrategyPriority           Strategy = "priority"
)

// RemoteAuth carries the recognised remote-provider auth options.
type RemoteAuth struct {
	APIKeyHeader string `yaml:"api_key_header,omitempty"`
	APIKeyValue  string `yaml:"api_key_value,omitempty"`
	BearerToken  string `yaml:"bearer_token,omitempty"`
	BasicUser    string `yaml:"basic_user,omitempty"`
	BasicPass    string `yaml:"basic_pass,omitempty"`
}

// RemoteTLS carries the recognised remote-provider TLS options.
type RemoteTLS struct {
	InsecureSkipVerify bool   `yaml:"insecure_skip_verify,omitempty"`
	CACertPath         string `yaml:"ca_cert_path,omitempty"`
}

// ContainerLimits bounds resource usage for a container-mode provider.
type ContainerLimits struct {
	MemoryMB int     `yaml:"memory_mb,omitempty"`
	CPUs     float64 `yaml:"cpus,omitempty"`
}

// Provider is the typed, validated configuration for a single provider
// entry. It mirrors the spec's "Provider (aggregate) / spec" fields.
type Provider struct {
	ID                     string            `yaml:"-"`
	Mode                   Mode              `yaml:"mode"`
	Command                string            `yaml:"command,omitempty"`
	Args                   []string          `yaml:"args,omitempty"`
	Env                    map[string]string `yaml:"env,omitempty"`
	Image                  string            `yaml:"image,omitempty"`
	Volumes                []string          `yaml:"volumes,omitempty"`
	Network                string            `yaml:"network,omitempty"`
	User                   string            `yaml:"user,omitempty"`
	ReadOnlyRootFS         *bool             `yaml:"read_only_root_fs,omitempty"`
	Limits                 ContainerLimits   `yaml:"limits,omitempty"`
	URL                    string            `yaml:"url,omitempty"`
	Auth                   RemoteAuth        `yaml:"auth,omitempty"`
	TLS                    RemoteTLS         `yaml:"tls,omitempty"`
	IdleTTL                Duration          `yaml:"idle_ttl,omitempty"`
	HealthCheckInterval    Duration          `yaml:"health_check_interval,omitempty"`
	MaxConsecutiveFailures int               `yaml:"max_consecutive_failures,omitempty"`
	PredefinedTools        []string          `yaml:"predefined_tools,omitempty"`
}

// GroupMember references a provider id within a group's rotation, plus the
// group-scoped weighting/priority fields that only make sense in context.
type GroupMember struct {
	ProviderID string `yaml:"provider_id"`
	Weight     int    `yaml:"weight,omitempty"`
	Priority   int    `yaml:"priority,omitempty"`
}

// CircuitBreakerConfig configures a group's aggregate circuit breaker.
type CircuitBreakerConfig struct {
	FailureThreshold int      `yaml:"failure_threshold,omitempty"`
	ResetTimeout     Duration `yaml:"reset_timeout,omitempty"`
}

// Group is the typed configuration for a routing group.
type Group struct {
	ID                 string               `yaml:"-"`
	Members            []GroupMember        `yaml:"members"`
	Strategy           Strategy             `yaml:"strategy,omitempty"`
	UnhealthyThreshold int                  `yaml:"unhealthy_threshold,omitempty"`
	HealthyThreshold   int                  `yaml:"healthy_threshold,omitempty"`
	MinHealthy         int                  `yaml:"min_healthy,omitempty"`
	CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker,omitempty"`
}

// ReloadConfig configures the hot-reload background worker.
type ReloadConfig struct {
	Enabled     bool     `yaml:"enabled,omitempty"`
	UseWatchdog bool     `yaml:"use_watchdog,omitempty"`
	Interval    Duration `yaml:"interval_s,omitempty"`
}

// BatchConfig holds the `batch` section: Parse fills its defaults and
// Validate bounds max_calls and max_concurrency. The batch executor does not
// read it; its limits are the constants in internal/batch.
type BatchConfig struct {
	MaxCalls          int      `yaml:"max_calls,omitempty"`
	MaxConcurrency    int      `yaml:"max_concurrency,omitempty"`
	DefaultTimeout    Duration `yaml:"default_timeout,omitempty"`
	MaxTimeout        Duration `yaml:"max_timeout,omitempty"`
	DefaultMaxRetries int      `yaml:"default_max_retries,omitempty"`
}

// TruncationConfig holds the `truncation` section, with defaults filled by
// Parse. The batch executor does not read it; the byte limits it applies are
// the constants in internal/batch.
type TruncationConfig struct {
	PerCallMaxBytes int64 `yaml:"per_call_max_bytes,omitempty"`
	BatchMaxBytes   int64 `yaml:"batch_max_bytes,omitempty"`
}

// RateLimitConfig holds the `rate_limit` section. It is parsed only; no
// component enforces it, so no request is rate limited.
type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	Burst             int     `yaml:"burst,omitempty"`
}

// MetricsConfig configures the prometheus pull endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Host    string `yaml:"host,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// AggregatorConfig configures the client-facing MCP server.
type AggregatorConfig struct {
	Host      string `yaml:"host,omitempty"`
	Port      int    `yaml:"port,omitempty"`
	Transport string `yaml:"transport,omitempty"`
}

// Config is the top-level hangar configuration document.
type Config struct {
	Providers    map[string]Provider `yaml:"providers"`
	Groups       map[string]Group    `yaml:"groups,omitempty"`
	ConfigReload ReloadConfig        `yaml:"config_reload,omitempty"`
	Batch        BatchConfig         `yaml:"batch,omitempty"`
	Truncation   TruncationConfig    `yaml:"truncation,omitempty"`
	RateLimit    RateLimitConfig     `yaml:"rate_limit,omitempty"`
	Metrics      MetricsConfig       `yaml:"metrics,omitempty"`
	Aggregator   AggregatorConfig    `yaml:"aggregator,omitempty"`
}

// applyDefaults fills in the documented defaults for any fields the operator
// left at their YAML zero value.
func (c *Config) applyDefaults() {
	if c.Batch.MaxCalls == 0 {
		c.Batch.MaxCalls = 100
	}
	if c.Batch.MaxConcurrency == 0 {
		c.Batch.MaxConcurrency = 10
	}
	if c.Batch.DefaultTimeout == 0 {
		c.Batch.DefaultTimeout = Duration(30 * time.Second)
	}
	if c.Batch.MaxTimeout == 0 {
		c.Batch.MaxTimeout = Duration(300 * time.Second)
	}
	if c.Batch.DefaultMaxRetries == 0 {
		c.Batch.DefaultMaxRetries = 1
	}
	if c.Truncation.PerCallMaxBytes == 0 {
		c.Truncation.PerCallMaxBytes = 10 * 1024 * 1024
	}
	if c.Truncation.BatchMaxBytes == 0 {
		c.Truncation.BatchMaxBytes = 50 * 1024 * 1024
	}
	if c.ConfigReload.Interval == 0 {
		c.ConfigReload.Interval = Duration(5 * time.Second)
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Aggregator.Port == 0 {
		c.Aggregator.Port = 8080
	}
	if c.Aggregator.Transport == "" {
		c.Aggregator.Transport = "streamable-http"
	}

	for id, p := range c.Providers {
		if p.IdleTTL == 0 {
			p.IdleTTL = Duration(10 * time.Minute)
		}
		if p.HealthCheckInterval == 0 {
			p.HealthCheckInterval = Duration(30 * time.Second)
		}
		if p.MaxConsecutiveFailures == 0 {
			p.MaxConsecutiveFailures = 3
		}
		p.ID = id
		c.Providers[id] = p
	}
	for id, g := range c.Groups {
		if g.Strategy == "" {
			g.Strategy = StrategyRoundRobin
		}
		if g.UnhealthyThreshold == 0 {
			g.UnhealthyThreshold = 3
		}
		if g.HealthyThreshold == 0 {
			g.HealthyThreshold = 2
		}
		if g.MinHealthy == 0 {
			g.MinHealthy = 1
		}
		if g.CircuitBreaker.FailureThreshold == 0 {
			g.CircuitBreaker.FailureThreshold = 5
		}
		if g.CircuitBreaker.ResetTimeout == 0 {
			g.CircuitBreaker.ResetTimeout = Duration(30 * time.Second)
		}
		g.ID = id
		c.Groups[id] = g
	}
}
