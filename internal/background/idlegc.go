// Package background implements the three supervisors of §4.E: the idle
// garbage collector, the active health prober, and the hot-reload worker.
package background

import (
	"context"
	"time"

	"hangar/internal/registry"
	"hangar/pkg/logging"
)

// IdleGC periodically shuts down READY providers that have been idle past
// their configured TTL.
type IdleGC struct {
	reg      *registry.Registry
	interval time.Duration
}

func NewIdleGC(reg *registry.Registry, interval time.Duration) *IdleGC {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &IdleGC{reg: reg, interval: interval}
}

// Run blocks, sweeping on every tick, until ctx is cancelled.
func (g *IdleGC) Run(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

func (g *IdleGC) sweep() {
	now := time.Now()
	for _, id := range g.reg.Providers() {
		s, ok := g.reg.ProviderSupervisor(id)
		if !ok {
			continue
		}
		if s.IdleShutdownIfDue(now) {
			logging.Info("IdleGC", "provider %s shut down for idleness", id)
		}
	}
}
