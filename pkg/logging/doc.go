// Package logging provides the structured logging system shared by every
// hangar package, supporting both CLI and TUI execution modes with unified
// log handling and flexible output formatting.
//
// # Architecture
//
// ## Log Levels
//   - **Debug**: Detailed information for debugging and development
//   - **Info**: General informational messages about application operation
//   - **Warn**: Warning messages that indicate potential issues
//   - **Error**: Error messages for failures and exceptional conditions
//
// ## Execution Modes
//   - **CLI Mode**: Direct logging to specified output writer (stdout/stderr)
//   - **TUI Mode**: Logging via buffered channel for consumption by a future terminal UI
//
// ## Structured Logging
// All log entries include:
//   - Timestamp with nanosecond precision
//   - Log level (Debug, Info, Warn, Error)
//   - Subsystem identifier for categorization
//   - Message content with optional formatting
//   - Optional error information
//   - Structured attributes using slog.Attr
//
// # Usage
//
//	import "hangar/pkg/logging"
//
//	logging.InitForCLI(logging.LevelInfo, os.Stdout)
//
//	logging.Info("Supervisor", "provider %s entering READY", providerID)
//	logging.Debug("Registry", "loaded %d providers from config", count)
//	logging.Warn("GroupRouter", "group %s has no healthy members", groupID)
//	logging.Error("Batch", err, "call %d of batch %s failed", idx, batchID)
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - **App**: process wiring, signal handling, graceful shutdown
//   - **Config**: configuration loading, validation, hot-reload diffing
//   - **Supervisor**: provider lifecycle and state transitions
//   - **Transport**: stdio/SSE/streamable-HTTP client connections
//   - **GroupRouter**: routing, health feedback, circuit breaking
//   - **Batch**: batch execution and fan-out
//   - **Registry**: provider and group registration
//   - **Aggregator**: client-facing MCP server
//   - **AUDIT**: security-sensitive operations (see Audit)
//
// # Thread Safety
//
// The logging system is safe for concurrent use from multiple goroutines;
// channel operations are non-blocking with a stderr fallback on overflow.
package logging
