package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hangar/pkg/logging"
)

// shutdownGracePeriod bounds how long Run waits for in-flight batch calls to
// observe context cancellation before forcing an exit.
const shutdownGracePeriod = 10 * time.Second

// Run starts every service and blocks until ctx is cancelled or the process
// receives SIGINT/SIGTERM, at which point it shuts down gracefully.
// SIGHUP triggers an out-of-band config reload without stopping the server.
func (a *Application) Run(ctx context.Context) error {
	if err := a.services.Start(ctx); err != nil {
		logging.Error("App", err, "failed to start services")
		return err
	}
	logging.Info("App", "hangar control plane started, transport=%s port=%d",
		a.config.HangarConfig.Aggregator.Transport, a.config.HangarConfig.Aggregator.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case <-ctx.Done():
			a.services.Stop(shutdownGracePeriod)
			return nil
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				logging.Info("App", "SIGHUP received, reloading configuration")
				a.services.Reload()
			default:
				logging.Info("App", "%s received, shutting down", sig)
				a.services.Stop(shutdownGracePeriod)
				return nil
			}
		}
	}
}
