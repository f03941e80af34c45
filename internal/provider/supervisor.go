// Package provider implements the per-provider state machine and health/
// circuit-breaker supervisor: component B of the control plane core. One
// Supervisor exists per configured provider and serialises every lifecycle
// transition through its lifecycle lock, while invocations against a READY
// provider proceed concurrently.
package provider

import (
	"context"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/hangarerr"
	"hangar/internal/metrics"
	"hangar/internal/transport"
	"hangar/pkg/logging"

	"github.com/mark3labs/mcp-go/mcp"
)

const healthCheckTimeout = 5 * time.Second

var exitStatusPattern = regexp.MustCompile(`exit status (\d+)`)

// Supervisor owns a single provider's state machine, its transport handle,
// health counters, and circuit-breaker backoff. All lifecycle transitions
// (launch, shutdown, state changes) are serialised by mu; invocations hold
// only a read-like borrow of the transport and never block one another.
type Supervisor struct {
	id  string
	bus *events.Bus

	mu          sync.Mutex // lifecycle lock
	cfg         config.Provider
	state       State
	client      transport.MCPClient
	tools       []mcp.Tool
	lastUsed    time.Time
	backoffUntil time.Time
	stderr      *stderrRing
	lastExitErr error

	consecutiveFailures int32 // atomic
	totalInvocations    int64 // atomic
	totalFailures       int64 // atomic
	lastSuccessAt       atomic.Value // time.Time
	lastFailureAt       atomic.Value // time.Time

	readyGroup singleflight.Group
}

// NewSupervisor constructs a Supervisor for the given provider id and
// config, starting in the COLD state with no transport handle.
func NewSupervisor(id string, cfg config.Provider, bus *events.Bus) *Supervisor {
	s := &Supervisor{
		id:     id,
		bus:    bus,
		cfg:    cfg,
		state:  StateCold,
		stderr: newStderrRing(200),
	}
	metrics.SetProviderState(id, string(StateCold), AllStates)
	return s
}

// ID returns the provider's configured id.
func (s *Supervisor) ID() string { return s.id }

// State returns the provider's current state under the lifecycle lock.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UpdateConfig replaces the provider's config in place, used by the
// hot-reload worker for unchanged providers whose non-launch-affecting
// fields (e.g. predefined_tools) may still have changed.
func (s *Supervisor) UpdateConfig(cfg config.Provider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// ConfigSnapshot returns the provider's current config, for the hot-reload
// worker's diff against a freshly loaded config document.
func (s *Supervisor) ConfigSnapshot() config.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// setState transitions state and emits the corresponding event and metric.
// Caller must hold mu.
func (s *Supervisor) setState(newState State, reason events.Reason) {
	s.state = newState
	metrics.SetProviderState(s.id, string(newState), AllStates)
	if s.bus != nil {
		s.bus.Emit(events.Event{Reason: reason, ProviderID: s.id})
	}
	logging.Debug("Supervisor", "provider %s -> %s", s.id, newState)
}

// EnsureReady advances the provider to READY if possible, blocking the
// caller. Safe to call concurrently: only one actual launch occurs, and all
// concurrent callers observe the same outcome.
func (s *Supervisor) EnsureReady(ctx context.Context) error {
	_, err, _ := s.readyGroup.Do(s.id, func() (interface{}, error) {
		return nil, s.ensureReadyLocked(ctx)
	})
	if err != nil {
		return err
	}
	return nil
}

func (s *Supervisor) ensureReadyLocked(ctx context.Context) error {
	s.mu.Lock()

	switch s.state {
	case StateReady:
		s.mu.Unlock()
		return nil
	case StateDegraded:
		if time.Now().Before(s.backoffUntil) {
			until := s.backoffUntil
			s.mu.Unlock()
			return hangarerr.New(hangarerr.KindCircuitOpen, "ensure_ready",
				"provider is in backoff until %s", until.Format(time.RFC3339)).WithProvider(s.id)
		}
		// backoff elapsed: close out the dead transport and retry from COLD.
		s.closeTransportLocked()
		s.setState(StateCold, events.ReasonProviderCold)
	case StateDead:
		// auto-restart is always permitted unless the config removed the provider.
		s.setState(StateCold, events.ReasonProviderCold)
	case StateInitializing:
		s.mu.Unlock()
		return hangarerr.New(hangarerr.KindInternal, "ensure_ready", "concurrent initialization in unexpected state").WithProvider(s.id)
	}

	s.setState(StateInitializing, events.ReasonProviderInitializing)
	cfg := s.cfg
	s.mu.Unlock()

	start := time.Now()
	client, tools, launchErr := s.launch(ctx, cfg)
	elapsed := time.Since(start)
	metrics.ColdStartDuration.WithLabelValues(s.id).Observe(elapsed.Seconds())

	s.mu.Lock()
	defer s.mu.Unlock()

	if launchErr != nil {
		metrics.ColdStartsTotal.WithLabelValues(s.id, "failed").Inc()
		s.setState(StateDead, events.ReasonProviderLaunchFailed)
		return launchErr
	}

	metrics.ColdStartsTotal.WithLabelValues(s.id, "success").Inc()
	s.client = client
	s.tools = mergeTools(cfg.PredefinedTools, tools)
	s.lastUsed = time.Now()
	atomic.StoreInt32(&s.consecutiveFailures, 0)
	s.setState(StateReady, events.ReasonProviderReady)
	return nil
}

// launch performs the mode-dependent launch and initial tools/list
// handshake. It does not mutate Supervisor state; the caller applies the
// outcome under the lifecycle lock.
func (s *Supervisor) launch(ctx context.Context, cfg config.Provider) (transport.MCPClient, []mcp.Tool, error) {
	client, err := buildClient(cfg)
	if err != nil {
		logging.Audit(logging.AuditEvent{Action: "provider_launch", Outcome: "failure", ProviderID: s.id, Details: "mode=" + string(cfg.Mode), Error: err.Error()})
		return nil, nil, hangarerr.Wrap(hangarerr.KindLaunchFailed, "launch", err, "failed to build transport client").
			WithProvider(s.id).WithDetails(suggestionFor(err.Error(), -1))
	}

	if sc, ok := client.(*transport.StdioClient); ok {
		if rd, ok2 := sc.GetStderr(); ok2 {
			go s.stderr.consume(rd)
		}
	}

	if err := client.Initialize(ctx); err != nil {
		_ = client.Close()
		s.mu.Lock()
		s.lastExitErr = err
		s.mu.Unlock()
		exitCode := exitCodeFromError(err)
		diag := Diagnostics{StderrTail: s.stderr.tail(), ExitCode: exitCode, Suggestion: suggestionFor(s.stderr.tail()+" "+err.Error(), exitCode)}
		logging.Audit(logging.AuditEvent{Action: "provider_launch", Outcome: "failure", ProviderID: s.id, Details: "mode=" + string(cfg.Mode), Error: err.Error()})
		return nil, nil, hangarerr.Wrap(hangarerr.KindLaunchFailed, "launch", err, "failed to initialize provider").
			WithProvider(s.id).WithDetails(diag.Suggestion).WithHints(diag.StderrTail)
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		_ = client.Close()
		logging.Audit(logging.AuditEvent{Action: "provider_launch", Outcome: "failure", ProviderID: s.id, Details: "mode=" + string(cfg.Mode), Error: err.Error()})
		return nil, nil, hangarerr.Wrap(hangarerr.KindLaunchFailed, "launch", err, "failed initial tools/list").WithProvider(s.id)
	}

	logging.Audit(logging.AuditEvent{Action: "provider_launch", Outcome: "success", ProviderID: s.id, Details: "mode=" + string(cfg.Mode)})
	return client, tools, nil
}

func exitCodeFromError(err error) int {
	if err == nil {
		return -1
	}
	m := exitStatusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return -1
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return -1
	}
	return code
}

// mergeTools takes predefined tool names as authoritative and extends them
// with discovered tools not already named, per the spec's open-question
// resolution (see DESIGN.md).
func mergeTools(predefined []string, discovered []mcp.Tool) []mcp.Tool {
	if len(predefined) == 0 {
		return discovered
	}
	seen := make(map[string]bool, len(predefined))
	for _, name := range predefined {
		seen[name] = true
	}
	merged := make([]mcp.Tool, 0, len(predefined)+len(discovered))
	for _, t := range discovered {
		if seen[t.Name] {
			merged = append(merged, t)
			delete(seen, t.Name)
		}
	}
	// anything discovered but not predefined is still a usable extension.
	for _, t := range discovered {
		extension := true
		for _, m := range merged {
			if m.Name == t.Name {
				extension = false
				break
			}
		}
		if extension {
			merged = append(merged, t)
		}
	}
	return merged
}

// Invoke calls a tool on a READY provider. Must be preceded by EnsureReady;
// callers that skip it receive a not_found error rather than a panic.
func (s *Supervisor) Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) InvokeResult {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateDegraded {
		st := s.state
		s.mu.Unlock()
		return InvokeResult{Err: hangarerr.New(hangarerr.KindNotFound, "invoke", "provider %s is not ready (state=%s)", s.id, st).WithProvider(s.id)}
	}
	if !s.toolAllowedLocked(tool) {
		s.mu.Unlock()
		return InvokeResult{Err: hangarerr.New(hangarerr.KindNotFound, "invoke", "tool %s is not in provider %s's schema", tool, s.id).WithProvider(s.id)}
	}
	client := s.client
	s.mu.Unlock()

	callCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	atomic.AddInt64(&s.totalInvocations, 1)
	res, err := client.CallTool(callCtx, tool, args)
	elapsed := time.Since(start)
	metrics.InvocationDuration.WithLabelValues(s.id, tool).Observe(elapsed.Seconds())

	if err != nil {
		kind := classifyTransportError(callCtx, err)
		s.recordFailure(kind)
		metrics.InvocationsTotal.WithLabelValues(s.id, tool, string(kind)).Inc()
		return InvokeResult{ElapsedMS: elapsed.Milliseconds(), Err: hangarerr.Wrap(kind, "invoke", err, "tool call failed").WithProvider(s.id)}
	}

	if res.IsError {
		// Upstream tool-domain error: does not count against health.
		metrics.InvocationsTotal.WithLabelValues(s.id, tool, string(hangarerr.KindToolError)).Inc()
		s.recordSuccessTimestampOnly()
		return InvokeResult{ElapsedMS: elapsed.Milliseconds(), Err: hangarerr.New(hangarerr.KindToolError, "invoke", "%v", res.Content).WithProvider(s.id)}
	}

	s.recordSuccess()
	metrics.InvocationsTotal.WithLabelValues(s.id, tool, "success").Inc()
	return InvokeResult{OK: true, Value: res, ElapsedMS: elapsed.Milliseconds()}
}

func (s *Supervisor) toolAllowedLocked(tool string) bool {
	if len(s.cfg.PredefinedTools) == 0 {
		return true
	}
	for _, name := range s.cfg.PredefinedTools {
		if name == tool {
			return true
		}
	}
	for _, t := range s.tools {
		if t.Name == tool {
			return true
		}
	}
	return false
}

// ToolAllowed reports whether tool is permitted against this provider's
// configured or discovered schema, for the batch executor's eager
// validation pass. A provider with no predefined tool set and no cached
// discovery (e.g. still COLD) permits any tool name; the real check happens
// once the provider is ready and the call actually dispatches.
func (s *Supervisor) ToolAllowed(tool string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.toolAllowedLocked(tool)
}

func classifyTransportError(ctx context.Context, err error) hangarerr.Kind {
	if ctx.Err() == context.DeadlineExceeded {
		return hangarerr.KindTimeout
	}
	if ctx.Err() == context.Canceled {
		return hangarerr.KindCancelled
	}
	return hangarerr.KindTransport
}

// recordSuccess resets consecutive_failures and refreshes last_used/
// last_success_at, per the invariant that any successful invocation clears
// the failure streak.
func (s *Supervisor) recordSuccess() {
	atomic.StoreInt32(&s.consecutiveFailures, 0)
	s.lastSuccessAt.Store(time.Now())
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// recordSuccessTimestampOnly refreshes last_used without touching the
// failure streak, for tool_error outcomes which are semantic, not
// infrastructure, failures.
func (s *Supervisor) recordSuccessTimestampOnly() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// recordFailure increments consecutive_failures for health-counting kinds
// and transitions READY -> DEGRADED once the threshold is reached.
func (s *Supervisor) recordFailure(kind hangarerr.Kind) {
	if !kind.CountsAgainstHealth() {
		return
	}
	atomic.AddInt64(&s.totalFailures, 1)
	s.lastFailureAt.Store(time.Now())
	failures := atomic.AddInt32(&s.consecutiveFailures, 1)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return
	}
	if int(failures) >= s.cfg.MaxConsecutiveFailures {
		backoff := backoffFor(int(failures), DefaultInitialBackoff, DefaultMaxBackoff, DefaultBackoffMultiplier)
		s.backoffUntil = time.Now().Add(backoff)
		s.setState(StateDegraded, events.ReasonProviderDegraded)
		logging.Warn("Supervisor", "provider %s entering DEGRADED for %s after %d consecutive failures", s.id, backoff, failures)
	}
}

// Shutdown moves the provider to COLD and closes its transport. In-flight
// calls are not cancelled: closing the client waits for calls already
// running on it to return, and the lifecycle lock is held meanwhile.
func (s *Supervisor) Shutdown(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCold {
		return
	}
	s.closeTransportLocked()
	s.setState(StateCold, events.ReasonProviderCold)
	logging.Info("Supervisor", "provider %s shut down (%s)", s.id, reason)
	logging.Audit(logging.AuditEvent{Action: "provider_shutdown", Outcome: "success", ProviderID: s.id, Details: reason})
}

func (s *Supervisor) closeTransportLocked() {
	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}
	s.tools = nil
}

// IdleShutdownIfDue shuts the provider down if it is READY and has been
// idle past its configured TTL. It is a no-op if a concurrent transition
// already moved the provider away from READY, satisfying the GC/invocation
// race requirement without any extra coordination.
func (s *Supervisor) IdleShutdownIfDue(now time.Time) bool {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return false
	}
	idleTTL := time.Duration(s.cfg.IdleTTL)
	lastUsed := s.lastUsed
	s.mu.Unlock()

	if idleTTL <= 0 || now.Sub(lastUsed) <= idleTTL {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady || now.Sub(s.lastUsed) <= idleTTL {
		return false
	}
	s.closeTransportLocked()
	s.setState(StateCold, events.ReasonProviderIdleStopped)
	logging.Info("Supervisor", "provider %s idle-shutdown after %s", s.id, idleTTL)
	return true
}

// HealthCheck performs a tools/list probe with a short timeout, as used by
// the background active health prober. It updates the same failure counters
// as an invocation failure would.
func (s *Supervisor) HealthCheck(ctx context.Context) bool {
	s.mu.Lock()
	if s.state != StateReady && s.state != StateDegraded {
		s.mu.Unlock()
		return false
	}
	client := s.client
	s.mu.Unlock()

	checkCtx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	tools, err := client.ListTools(checkCtx)
	if err != nil {
		s.recordFailure(hangarerr.KindTransport)
		s.bus.Emit(events.Event{Reason: events.ReasonProviderHealthFailed, ProviderID: s.id, Message: err.Error()})
		return false
	}

	s.mu.Lock()
	s.tools = mergeTools(s.cfg.PredefinedTools, tools)
	s.mu.Unlock()
	s.recordSuccess()
	return true
}

// ToolSchemas returns a copy of the provider's current merged tool set, for
// the `tools` query (the `list`/`details` tools only need names/counts).
func (s *Supervisor) ToolSchemas() []mcp.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mcp.Tool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Details returns a read-only snapshot for the list/details tools.
func (s *Supervisor) Details() Details {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, len(s.tools))
	for i, t := range s.tools {
		names[i] = t.Name
	}

	var lastErr string
	if s.lastExitErr != nil {
		lastErr = s.lastExitErr.Error()
	}

	return Details{
		ProviderID:    s.id,
		State:         s.state,
		Mode:          string(s.cfg.Mode),
		IsAlive:       s.state.HasTransport(),
		ToolsCount:    len(s.tools),
		ToolNames:     names,
		HealthStatus:  s.healthStatusLocked(),
		LastUsedAt:    s.lastUsed,
		LastErrorText: lastErr,
	}
}

func (s *Supervisor) healthStatusLocked() string {
	switch s.state {
	case StateReady:
		return "healthy"
	case StateDegraded:
		return "degraded"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// HealthInfo returns a read-only health snapshot for the health tool.
func (s *Supervisor) HealthInfo() HealthInfo {
	s.mu.Lock()
	backoffUntil := s.backoffUntil
	state := s.state
	tail := s.stderr.tail()
	lastExit := s.lastExitErr
	s.mu.Unlock()

	var lastSuccess, lastFailure time.Time
	if v := s.lastSuccessAt.Load(); v != nil {
		lastSuccess = v.(time.Time)
	}
	if v := s.lastFailureAt.Load(); v != nil {
		lastFailure = v.(time.Time)
	}

	var diag *Diagnostics
	if lastExit != nil {
		diag = &Diagnostics{StderrTail: tail, ExitCode: exitCodeFromError(lastExit), Suggestion: suggestionFor(tail, exitCodeFromError(lastExit))}
	}

	return HealthInfo{
		ProviderID:          s.id,
		State:               state,
		ConsecutiveFailures: int(atomic.LoadInt32(&s.consecutiveFailures)),
		TotalInvocations:    atomic.LoadInt64(&s.totalInvocations),
		TotalFailures:       atomic.LoadInt64(&s.totalFailures),
		LastSuccessAt:       lastSuccess,
		LastFailureAt:       lastFailure,
		BackoffUntil:        backoffUntil,
		Diagnostics:         diag,
	}
}

// MarkDead transitions a READY or DEGRADED provider to DEAD, closing its
// transport and recording cause as the last exit error; in any other state
// it is a no-op.
func (s *Supervisor) MarkDead(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady && s.state != StateDegraded {
		return
	}
	s.closeTransportLocked()
	s.lastExitErr = cause
	s.setState(StateDead, events.ReasonProviderDead)
	logging.Warn("Supervisor", "provider %s observed dead: %v", s.id, cause)
}
