package config

import "regexp"

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Validate checks a Config for structural and cross-reference errors,
// returning every violation found rather than stopping at the first.
func Validate(c *Config) *ValidationErrors {
	errs := &ValidationErrors{}

	for id, p := range c.Providers {
		validateProviderID(errs, id)
		validateProvider(errs, id, p)
	}

	for id, g := range c.Groups {
		validateProviderID(errs, id)
		validateGroup(errs, id, g, c.Providers)
	}

	if c.Batch.MaxCalls < 0 || c.Batch.MaxCalls > 100 {
		errs.Add("batch", "", "max_calls", "must be between 1 and 100")
	}
	if c.Batch.MaxConcurrency < 0 || c.Batch.MaxConcurrency > 20 {
		errs.Add("batch", "", "max_concurrency", "must be between 1 and 20")
	}

	return errs
}

func validateProviderID(errs *ValidationErrors, id string) {
	if !idPattern.MatchString(id) {
		errs.Add("providers", id, "id", "must be 1-64 chars of [A-Za-z0-9_-]")
	}
}

func validateProvider(errs *ValidationErrors, id string, p Provider) {
	switch p.Mode {
	case ModeSubprocess:
		if p.Command == "" {
			errs.Add("providers", id, "command", "required for subprocess mode")
		}
		if containsShellMetachar(p.Command) {
			errs.Add("providers", id, "command", "must not contain shell metacharacters")
		}
	case ModeContainer:
		if p.Image == "" {
			errs.Add("providers", id, "image", "required for container mode")
		}
		for _, v := range p.Volumes {
			if !isAbsoluteHostPath(v) {
				errs.Add("providers", id, "volumes", "volume mount host path must be absolute: "+v)
			}
			if isBlockedSensitivePath(v) {
				errs.Add("providers", id, "volumes", "volume mount host path is blocked: "+v)
			}
		}
	case ModeRemote:
		if p.URL == "" {
			errs.Add("providers", id, "url", "required for remote mode")
		}
	case ModeGroup:
		// group providers are handled via the groups document, nothing to
		// validate on the provider entry itself.
	default:
		errs.Add("providers", id, "mode", "unrecognised mode: "+string(p.Mode))
	}

	if p.MaxConsecutiveFailures < 0 {
		errs.Add("providers", id, "max_consecutive_failures", "must be >= 0")
	}
}

func validateGroup(errs *ValidationErrors, id string, g Group, providers map[string]Provider) {
	if len(g.Members) == 0 {
		errs.Add("groups", id, "members", "group must have at least one member")
	}
	for _, m := range g.Members {
		if _, ok := providers[m.ProviderID]; !ok {
			errs.Add("groups", id, "members", "references unknown provider: "+m.ProviderID)
		}
		if m.Weight < 0 {
			errs.Add("groups", id, "members", "weight must be >= 0 for provider "+m.ProviderID)
		}
	}

	switch g.Strategy {
	case StrategyRoundRobin, StrategyWeightedRoundRobin, StrategyLeastConnections, StrategyRandom, StrategyPriority, "":
	default:
		errs.Add("groups", id, "strategy", "unrecognised strategy: "+string(g.Strategy))
	}

	if g.MinHealthy < 0 || g.MinHealthy > len(g.Members) {
		errs.Add("groups", id, "min_healthy", "must be between 0 and the member count")
	}
}

func containsShellMetachar(s string) bool {
	for _, c := range s {
		switch c {
		case ';', '|', '&', '$', '`', '>', '<', '\n', '(', ')':
			return true
		}
	}
	return false
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
