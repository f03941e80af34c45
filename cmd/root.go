package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
)

// rootCmd represents the base command for the hangar control plane.
var rootCmd = &cobra.Command{
	Use:   "hangar",
	Short: "MCP Hangar control plane: multiplex one client interface over many MCP providers",
	Long: `hangar supervises a fleet of Model Context Protocol providers
(subprocess, container, or remote) behind a single client-facing MCP
endpoint, handling lazy start, idle shutdown, health probing, routed
groups, and batched parallel invocation.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command, injected at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute is the CLI entry point called from main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "hangar version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitCodeError)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
