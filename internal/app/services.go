package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hangar/internal/aggregator"
	"hangar/internal/background"
	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/registry"
	"hangar/pkg/logging"
)

// Services holds every long-running component the control plane wires
// together at startup: the registry everything else reads from, the three
// background supervisors of §4.E, the client-facing aggregator server, and
// the metrics pull endpoint.
type Services struct {
	cfg    *config.Config
	bus    *events.Bus
	reg    *registry.Registry
	idleGC *background.IdleGC
	prober *background.HealthProber
	reload *background.ReloadWorker

	aggregator *aggregator.Server
	metricsSrv *http.Server

	cancel context.CancelFunc
	done   chan struct{}
}

// InitializeServices builds the registry and every supervisor from cfg, but
// starts nothing; Run performs the actual launch sequence.
func InitializeServices(cfg *Config) (*Services, error) {
	hcfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.HangarConfig = hcfg

	bus := events.NewBus()
	reg := registry.New(bus)
	reg.Load(hcfg)

	svc := &Services{
		cfg: hcfg,
		bus: bus,
		reg: reg,
	}

	svc.idleGC = background.NewIdleGC(reg, 30*time.Second)
	svc.prober = background.NewHealthProber(reg, func() *config.Config { return svc.cfg }, 10*time.Second)

	if hcfg.ConfigReload.Enabled {
		svc.reload = background.NewReloadWorker(cfg.ConfigPath, reg, bus, hcfg.ConfigReload.UseWatchdog, time.Duration(hcfg.ConfigReload.Interval))
	}

	svc.aggregator = aggregator.New(hcfg.Aggregator, reg, svc.reload)

	if hcfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(hcfg.Metrics.Path, promhttp.Handler())
		svc.metricsSrv = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", hcfg.Metrics.Host, hcfg.Metrics.Port),
			Handler: mux,
		}
	}

	return svc, nil
}

// Start launches every background supervisor and the aggregator server.
// It returns once the aggregator's transport has been started, without
// waiting for its listener to bind; the supervisors run in their own
// goroutines against ctx.
func (s *Services) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.idleGC.Run(runCtx)
	go s.prober.Run(runCtx)
	if s.reload != nil {
		go s.reload.Run(runCtx)
	}

	if s.metricsSrv != nil {
		go func() {
			logging.Info("App", "metrics endpoint listening on %s", s.metricsSrv.Addr)
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("App", err, "metrics server error")
			}
		}()
	}

	errCallback := func(err error) {
		logging.Error("App", err, "aggregator transport failed")
	}
	if err := s.aggregator.Start(runCtx, errCallback); err != nil {
		cancel()
		return err
	}

	go func() {
		<-runCtx.Done()
		close(s.done)
	}()

	return nil
}

// Reload triggers an immediate out-of-band config reload, used by SIGHUP.
func (s *Services) Reload() {
	if s.reload != nil {
		s.reload.Reload()
	} else {
		logging.Warn("App", "SIGHUP received but config_reload is disabled")
	}
}

// Stop gracefully shuts the aggregator and metrics listeners down, waits up
// to gracePeriod for in-flight work to observe context cancellation, then
// returns. Background supervisors are stopped via ctx cancellation, not
// explicit Stop calls, since none of them hold connections that need a
// drain step beyond what cancellation already triggers.
func (s *Services) Stop(gracePeriod time.Duration) {
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), gracePeriod)
	defer cancelShutdown()

	if err := s.aggregator.Stop(shutdownCtx); err != nil {
		logging.Error("App", err, "aggregator shutdown error")
	}
	if s.metricsSrv != nil {
		if err := s.metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Error("App", err, "metrics server shutdown error")
		}
	}

	if s.cancel != nil {
		s.cancel()
	}
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(gracePeriod):
		}
	}
}
