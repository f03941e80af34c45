package config

import "reflect"

// Diff is the outcome of comparing two provider maps by id, as required by
// the hot-reload worker: added/removed/updated/unchanged, keyed by provider id.
type Diff struct {
	Added     []string
	Removed   []string
	Updated   []string
	Unchanged []string
}

// DiffProviders compares old and new provider configurations. An entry is
// unchanged iff mode and every launch-affecting field are equal, after
// empty-collection/null normalisation; idle_ttl/health_check_interval/
// max_consecutive_failures are launch-affecting per the spec's definition
// of "unchanged" even though they don't alter the child process itself.
func DiffProviders(oldProviders, newProviders map[string]Provider) Diff {
	var d Diff

	for id, newP := range newProviders {
		oldP, existed := oldProviders[id]
		if !existed {
			d.Added = append(d.Added, id)
			continue
		}
		if providerLaunchEqual(oldP, newP) {
			d.Unchanged = append(d.Unchanged, id)
		} else {
			d.Updated = append(d.Updated, id)
		}
	}

	for id := range oldProviders {
		if _, stillPresent := newProviders[id]; !stillPresent {
			d.Removed = append(d.Removed, id)
		}
	}

	return d
}

func providerLaunchEqual(a, b Provider) bool {
	if a.Mode != b.Mode {
		return false
	}
	if a.Command != b.Command || !stringSlicesEqual(a.Args, b.Args) {
		return false
	}
	if !stringMapsEqual(a.Env, b.Env) {
		return false
	}
	if a.Image != b.Image || !stringSlicesEqual(a.Volumes, b.Volumes) {
		return false
	}
	if a.Network != b.Network || a.User != b.User {
		return false
	}
	if a.Limits != b.Limits || !reflect.DeepEqual(a.ReadOnlyRootFS, b.ReadOnlyRootFS) {
		return false
	}
	if a.URL != b.URL || !reflect.DeepEqual(a.Auth, b.Auth) || !reflect.DeepEqual(a.TLS, b.TLS) {
		return false
	}
	if a.IdleTTL != b.IdleTTL || a.HealthCheckInterval != b.HealthCheckInterval {
		return false
	}
	if a.MaxConsecutiveFailures != b.MaxConsecutiveFailures {
		return false
	}
	return true
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func stringMapsEqual(a, b map[string]string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
