package background

import (
	"context"
	"sync"
	"time"

	"hangar/internal/config"
	"hangar/internal/provider"
	"hangar/internal/registry"
)

// HealthProber periodically issues tools/list probes against READY
// providers whose health_check_interval has elapsed.
type HealthProber struct {
	reg      *registry.Registry
	cfg      func() *config.Config
	interval time.Duration

	mu           sync.Mutex
	lastChecked  map[string]time.Time
}

func NewHealthProber(reg *registry.Registry, cfgFn func() *config.Config, tickInterval time.Duration) *HealthProber {
	if tickInterval <= 0 {
		tickInterval = 10 * time.Second
	}
	return &HealthProber{reg: reg, cfg: cfgFn, interval: tickInterval, lastChecked: make(map[string]time.Time)}
}

// Run blocks, probing on every tick, until ctx is cancelled.
func (p *HealthProber) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}

func (p *HealthProber) sweep(ctx context.Context) {
	now := time.Now()
	cfg := p.cfg()
	for _, id := range p.reg.Providers() {
		s, ok := p.reg.ProviderSupervisor(id)
		if !ok || s.State() != provider.StateReady {
			continue
		}
		pc, ok := cfg.Providers[id]
		interval := 30 * time.Second
		if ok && pc.HealthCheckInterval > 0 {
			interval = time.Duration(pc.HealthCheckInterval)
		}

		p.mu.Lock()
		last := p.lastChecked[id]
		due := now.Sub(last) >= interval
		if due {
			p.lastChecked[id] = now
		}
		p.mu.Unlock()

		if due {
			s.HealthCheck(ctx)
		}
	}
}
