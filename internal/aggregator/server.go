// Package aggregator implements the client-facing MCP server: the single
// endpoint through which callers reach every upstream provider managed by
// the registry. It exposes the control plane's own operations (list, start,
// stop, call, tools, details, health, status, warm, reload_config) as MCP
// tools over stdio, SSE, or streamable-HTTP, grounded on the teacher's
// aggregator server shape but stripped of backend-server registration,
// session-scoped auth, and prompt/resource aggregation, none of which this
// control plane needs: its "backends" are providers owned by the registry,
// not dynamically (de)registered MCP servers.
package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"hangar/internal/background"
	"hangar/internal/config"
	"hangar/internal/registry"
	"hangar/pkg/logging"
)

// Server is the aggregator's client-facing MCP server plus its transport
// listener, wired to a single Registry that owns every provider and group.
type Server struct {
	cfg      config.AggregatorConfig
	reg      *registry.Registry
	reload   *background.ReloadWorker
	mcpSrv   *mcpserver.MCPServer

	mu         sync.Mutex
	stdioSrv   *mcpserver.StdioServer
	sseSrv     *mcpserver.SSEServer
	httpSrv    *mcpserver.StreamableHTTPServer
	listener   *http.Server
}

// New builds an unstarted aggregator server bound to reg. reload may be nil
// if the hot-reload worker is disabled, in which case reload_config reports
// a configuration error instead of applying anything.
func New(cfg config.AggregatorConfig, reg *registry.Registry, reload *background.ReloadWorker) *Server {
	s := &Server{cfg: cfg, reg: reg, reload: reload}
	s.mcpSrv = mcpserver.NewMCPServer(
		"hangar",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)
	s.registerTools()
	return s
}

// Start launches the configured transport in its own goroutine and returns
// without waiting for the listener to bind; bind and serve errors are
// reported via errCallback.
func (s *Server) Start(ctx context.Context, errCallback func(error)) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.cfg.Transport {
	case "stdio":
		s.stdioSrv = mcpserver.NewStdioServer(s.mcpSrv)
		go func() {
			if err := s.stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil {
				logging.Error("Aggregator", err, "stdio server error")
				errCallback(err)
			}
		}()
		return nil

	case "sse":
		baseURL := fmt.Sprintf("http://%s:%d", s.cfg.Host, s.cfg.Port)
		s.sseSrv = mcpserver.NewSSEServer(s.mcpSrv,
			mcpserver.WithBaseURL(baseURL),
			mcpserver.WithSSEEndpoint("/sse"),
			mcpserver.WithMessageEndpoint("/message"),
			mcpserver.WithKeepAlive(true),
			mcpserver.WithKeepAliveInterval(30*time.Second),
		)
		srv := &http.Server{Addr: addr, Handler: s.sseSrv}
		s.listener = srv
		logging.Info("Aggregator", "starting MCP aggregator (sse transport) on %s", addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Aggregator", err, "sse server error")
				errCallback(err)
			}
		}()
		return nil

	default: // "streamable-http"
		s.httpSrv = mcpserver.NewStreamableHTTPServer(s.mcpSrv)
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		mux.Handle("/", s.httpSrv)
		srv := &http.Server{Addr: addr, Handler: mux}
		s.listener = srv
		logging.Info("Aggregator", "starting MCP aggregator (streamable-http transport) on %s", addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Error("Aggregator", err, "streamable-http server error")
				errCallback(err)
			}
		}()
		return nil
	}
}

// Stop gracefully shuts down whatever transport was started.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return listener.Shutdown(shutdownCtx)
	}
	return nil
}
