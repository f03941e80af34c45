package cmd

import (
	"context"
	"fmt"

	"hangar/internal/app"

	"github.com/spf13/cobra"
)

var (
	serveDebug      bool
	serveConfigPath string
)

// serveCmd starts the supervisor and the client-facing aggregator server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hangar supervisor and aggregator server",
	Long: `Loads the provider/group configuration, starts the idle GC, health
prober, and hot-reload supervisors, and serves the client-facing MCP
endpoint until SIGINT/SIGTERM. SIGHUP triggers a config reload.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "hangar.yaml", "Path to the hangar configuration file")
}
