package app

import (
	"fmt"
	"io"
	"os"

	"hangar/pkg/logging"
)

// Application bootstraps and runs the control plane core for the lifetime
// of the process.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the configured document, builds the registry and
// every supervisor, and returns an Application ready to Run.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var logOutput io.Writer = os.Stdout
	logging.InitForCLI(level, logOutput)

	services, err := InitializeServices(cfg)
	if err != nil {
		logging.Error("Bootstrap", err, "failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{config: cfg, services: services}, nil
}
