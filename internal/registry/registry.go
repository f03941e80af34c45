// Package registry implements component F: the process-wide table of
// provider supervisors and group routers, and the entry point for every
// tool-facing operation (list/start/stop/call/tools/details/health/status/
// warm/reload_config).
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"hangar/internal/batch"
	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/group"
	"hangar/internal/hangarerr"
	"hangar/internal/provider"
)

// Registry holds every configured provider's Supervisor and every
// configured group's Router, guarded by a single readers-writer lock per
// the spec's lock hierarchy (Registry lock acquired before any per-Provider
// or per-Group lock).
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*provider.Supervisor
	groups    map[string]*group.Router
	bus       *events.Bus
	executor  *batch.Executor
}

// New constructs an empty Registry. Load populates it from a Config.
func New(bus *events.Bus) *Registry {
	r := &Registry{
		providers: make(map[string]*provider.Supervisor),
		groups:    make(map[string]*group.Router),
		bus:       bus,
	}
	r.executor = batch.NewExecutor(r)
	return r
}

// Load registers every provider and group in cfg, starting all providers
// COLD. Intended for process startup only; hot reload uses ApplyConfig.
func (r *Registry) Load(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range cfg.Providers {
		r.providers[id] = provider.NewSupervisor(id, p, r.bus)
	}
	for id, g := range cfg.Groups {
		r.groups[id] = group.NewRouter(g, r.bus, r.resolveInvoker)
	}
}

// resolveInvoker adapts the registry's provider map to group.Router's
// resolve callback, under the registry's own read lock.
func (r *Registry) resolveInvoker(providerID string) group.Invoker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.providers[providerID]
	if !ok {
		return nil
	}
	return supervisorInvoker{s}
}

// supervisorInvoker adapts *provider.Supervisor to group.Invoker.
type supervisorInvoker struct{ s *provider.Supervisor }

func (a supervisorInvoker) ID() string { return a.s.ID() }
func (a supervisorInvoker) Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) group.InvokeResultLike {
	return a.s.Invoke(ctx, tool, args, timeout)
}

// ResolveProvider and ResolveGroup implement batch.Resolver.
func (r *Registry) ResolveProvider(id string) (batch.ProviderTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.providers[id]
	return s, ok
}

func (r *Registry) ResolveGroup(id string) (batch.GroupTarget, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	return g, ok
}

// Providers returns a stable-ordered snapshot of every provider id.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) provider(id string) (*provider.Supervisor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.providers[id]
	return s, ok
}

// ProviderSupervisor exposes a provider's Supervisor directly, for the
// background supervisors (idle GC, health prober) that need methods not
// part of the batch.ProviderTarget/group.Invoker interfaces.
func (r *Registry) ProviderSupervisor(id string) (*provider.Supervisor, bool) {
	return r.provider(id)
}

func (r *Registry) group(id string) (*group.Router, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.groups[id]
	return g, ok
}

// ListEntry is one row of the `list` tool's response.
type ListEntry struct {
	ProviderID   string
	State        provider.State
	Mode         string
	IsAlive      bool
	ToolsCount   int
	HealthStatus string
}

// List returns `list`, optionally filtered by state.
func (r *Registry) List(stateFilter string) []ListEntry {
	ids := r.Providers()
	out := make([]ListEntry, 0, len(ids))
	for _, id := range ids {
		s, ok := r.provider(id)
		if !ok {
			continue
		}
		d := s.Details()
		if stateFilter != "" && string(d.State) != stateFilter {
			continue
		}
		out = append(out, ListEntry{
			ProviderID:   d.ProviderID,
			State:        d.State,
			Mode:         d.Mode,
			IsAlive:      d.IsAlive,
			ToolsCount:   d.ToolsCount,
			HealthStatus: d.HealthStatus,
		})
	}
	return out
}

// Start runs `start`: ensures a named provider becomes READY.
func (r *Registry) Start(ctx context.Context, providerID string) (provider.Details, error) {
	s, ok := r.provider(providerID)
	if !ok {
		return provider.Details{}, hangarerr.New(hangarerr.KindNotFound, "start", "unknown provider %q", providerID)
	}
	if err := s.EnsureReady(ctx); err != nil {
		return provider.Details{}, err
	}
	return s.Details(), nil
}

// Stop runs `stop`: shuts a named provider down to COLD.
func (r *Registry) Stop(providerID, reason string) error {
	s, ok := r.provider(providerID)
	if !ok {
		return hangarerr.New(hangarerr.KindNotFound, "stop", "unknown provider %q", providerID)
	}
	if reason == "" {
		reason = "requested"
	}
	s.Shutdown(reason)
	return nil
}

// Tools runs `tools`: returns a provider's tool-schema snapshot.
func (r *Registry) Tools(providerID string) ([]mcp.Tool, error) {
	s, ok := r.provider(providerID)
	if !ok {
		return nil, hangarerr.New(hangarerr.KindNotFound, "tools", "unknown provider %q", providerID)
	}
	return s.ToolSchemas(), nil
}

// Details runs `details` for one provider, or every provider if id is "".
func (r *Registry) Details(providerID string) ([]provider.Details, error) {
	if providerID != "" {
		s, ok := r.provider(providerID)
		if !ok {
			return nil, hangarerr.New(hangarerr.KindNotFound, "details", "unknown provider %q", providerID)
		}
		return []provider.Details{s.Details()}, nil
	}
	ids := r.Providers()
	out := make([]provider.Details, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.provider(id); ok {
			out = append(out, s.Details())
		}
	}
	return out, nil
}

// Health runs `health` for one provider, or every provider if id is "".
func (r *Registry) Health(providerID string) ([]provider.HealthInfo, error) {
	if providerID != "" {
		s, ok := r.provider(providerID)
		if !ok {
			return nil, hangarerr.New(hangarerr.KindNotFound, "health", "unknown provider %q", providerID)
		}
		return []provider.HealthInfo{s.HealthInfo()}, nil
	}
	ids := r.Providers()
	out := make([]provider.HealthInfo, 0, len(ids))
	for _, id := range ids {
		if s, ok := r.provider(id); ok {
			out = append(out, s.HealthInfo())
		}
	}
	return out, nil
}

// GroupStatus runs `status` for groups: every configured group's member
// routing state and availability.
type GroupStatus struct {
	GroupID string
	State   group.State
	Members []group.MemberStatus
}

func (r *Registry) Status() []GroupStatus {
	r.mu.RLock()
	ids := make([]string, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)

	out := make([]GroupStatus, 0, len(ids))
	for _, id := range ids {
		g, ok := r.group(id)
		if !ok {
			continue
		}
		out = append(out, GroupStatus{GroupID: id, State: g.State(), Members: g.Status()})
	}
	return out
}

// WarmResult is one id's outcome from the `warm` tool.
type WarmResult struct {
	ProviderID string
	OK         bool
	Error      string
}

// Warm runs `warm`: ensures every named provider is READY, in parallel.
func (r *Registry) Warm(ctx context.Context, providerIDs []string) []WarmResult {
	out := make([]WarmResult, len(providerIDs))
	g, _ := errgroup.WithContext(ctx)
	for i, id := range providerIDs {
		i, id := i, id
		g.Go(func() error {
			s, ok := r.provider(id)
			if !ok {
				out[i] = WarmResult{ProviderID: id, OK: false, Error: "unknown provider"}
				return nil
			}
			if err := s.EnsureReady(ctx); err != nil {
				out[i] = WarmResult{ProviderID: id, OK: false, Error: err.Error()}
				return nil
			}
			out[i] = WarmResult{ProviderID: id, OK: true}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Call runs `call`: the batch `call([...])` entry point.
func (r *Registry) Call(ctx context.Context, req batch.Request) (batch.Response, []batch.ValidationError) {
	return r.executor.Execute(ctx, req)
}

// ApplyConfig implements the hot-reload worker's atomic-apply step (§4.E):
// added providers are registered COLD; removed providers are gracefully
// shut down and deregistered; updated providers are shut down then
// replaced; unchanged providers keep their state and connections. Groups
// are always rebuilt wholesale since routing state (in-rotation, circuit)
// is comparatively cheap to reconstruct and the spec does not require
// preserving it across reload.
func (r *Registry) ApplyConfig(newCfg *config.Config) config.Diff {
	r.mu.Lock()
	oldProviders := make(map[string]config.Provider, len(r.providers))
	for id, s := range r.providers {
		oldProviders[id] = s.ConfigSnapshot()
	}
	r.mu.Unlock()

	diff := config.DiffProviders(oldProviders, newCfg.Providers)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range diff.Removed {
		if s, ok := r.providers[id]; ok {
			s.Shutdown("removed")
			delete(r.providers, id)
		}
	}
	for _, id := range diff.Updated {
		if s, ok := r.providers[id]; ok {
			s.Shutdown("reconfigured")
		}
		r.providers[id] = provider.NewSupervisor(id, newCfg.Providers[id], r.bus)
	}
	for _, id := range diff.Added {
		r.providers[id] = provider.NewSupervisor(id, newCfg.Providers[id], r.bus)
	}
	for _, id := range diff.Unchanged {
		if s, ok := r.providers[id]; ok {
			s.UpdateConfig(newCfg.Providers[id])
		}
	}

	r.groups = make(map[string]*group.Router, len(newCfg.Groups))
	for id, g := range newCfg.Groups {
		r.groups[id] = group.NewRouter(g, r.bus, r.resolveInvoker)
	}

	return diff
}
