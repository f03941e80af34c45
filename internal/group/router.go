package group

import (
	"context"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/hangarerr"
	"hangar/internal/metrics"
	"hangar/pkg/logging"
)

// State is the group's availability state, derived from the in-rotation
// member count and the circuit breaker's own state.
type State string

const (
	StateInactive State = "INACTIVE"
	StatePartial  State = "PARTIAL"
	StateHealthy  State = "HEALTHY"
	StateDegraded State = "DEGRADED"
)

// Invoker is the subset of provider.Supervisor the Router depends on,
// kept as an interface so the Router can be tested without a real
// transport-backed supervisor.
type Invoker interface {
	Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) InvokeResultLike
	ID() string
}

// InvokeResultLike mirrors provider.InvokeResult's shape without importing
// the provider package, avoiding an import cycle (registry wires the two
// together).
type InvokeResultLike interface {
	IsOK() bool
	ErrorKind() hangarerr.Kind
}

// Router selects a member provider for each call against one configured
// group, tracking per-member health feedback and a group-level circuit
// breaker built on gobreaker.
type Router struct {
	id      string
	bus     *events.Bus
	members []*memberState
	byID    map[string]*memberState
	strategy config.Strategy

	unhealthyThreshold int
	healthyThreshold   int
	minHealthy         int

	roundRobinCursor uint32
	weightedMu       sync.Mutex

	breaker *gobreaker.CircuitBreaker

	resolve func(providerID string) Invoker
}

// NewRouter constructs a Router for one configured group. resolve maps a
// member's provider id to its live Invoker (normally a *provider.Supervisor
// looked up through the registry); it is called lazily on every selection
// so member availability always reflects the registry's current state.
func NewRouter(cfg config.Group, bus *events.Bus, resolve func(providerID string) Invoker) *Router {
	members := make([]*memberState, 0, len(cfg.Members))
	byID := make(map[string]*memberState, len(cfg.Members))
	for _, m := range cfg.Members {
		ms := newMemberState(m)
		members = append(members, ms)
		byID[m.ProviderID] = ms
	}

	r := &Router{
		id:                 cfg.ID,
		bus:                bus,
		members:            members,
		byID:               byID,
		strategy:           cfg.Strategy,
		unhealthyThreshold: cfg.UnhealthyThreshold,
		healthyThreshold:   cfg.HealthyThreshold,
		minHealthy:         cfg.MinHealthy,
		resolve:            resolve,
	}

	settings := gobreaker.Settings{
		Name:        cfg.ID,
		MaxRequests: 1, // exactly one probe allowed through in half-open
		Timeout:     time.Duration(cfg.CircuitBreaker.ResetTimeout),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.CircuitBreaker.FailureThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitTransitionsTotal.WithLabelValues(name, to.String()).Inc()
			reason := events.ReasonGroupCircuitOpen
			if to == gobreaker.StateClosed {
				reason = events.ReasonGroupCircuitClosed
			}
			if bus != nil {
				bus.Emit(events.Event{Reason: reason, GroupID: name})
			}
			logging.Info("GroupRouter", "group %s circuit %s -> %s", name, from, to)
		},
	}
	r.breaker = gobreaker.NewCircuitBreaker(settings)

	return r
}

// ID returns the group's configured id.
func (r *Router) ID() string { return r.id }

// inRotationLocked returns the currently in-rotation member set.
func (r *Router) inRotationLocked() []*memberState {
	candidates := make([]*memberState, 0, len(r.members))
	for _, m := range r.members {
		m.mu.Lock()
		in := m.inRotation
		m.mu.Unlock()
		if in {
			candidates = append(candidates, m)
		}
	}
	return candidates
}

// State derives the group's availability state from in-rotation count and
// circuit state.
func (r *Router) State() State {
	if r.breaker.State() == gobreaker.StateOpen {
		return StateDegraded
	}
	candidates := r.inRotationLocked()
	metrics.GroupMembersInRotation.WithLabelValues(r.id).Set(float64(len(candidates)))
	switch {
	case len(candidates) == 0:
		return StateInactive
	case len(candidates) < r.minHealthy:
		return StatePartial
	default:
		return StateHealthy
	}
}

// Invoke selects a healthy member, invokes the tool, and on infrastructure
// failure retries exactly one alternate member before giving up. The
// group-level circuit breaker gates the whole attempt.
func (r *Router) Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) InvokeResultLike {
	candidates := r.inRotationLocked()
	if len(candidates) == 0 {
		return groupFailure(hangarerr.New(hangarerr.KindNoHealthyMember, "group_invoke", "group %s has no in-rotation members", r.id).WithGroup(r.id))
	}
	if len(candidates) < r.minHealthy {
		logging.Warn("GroupRouter", "group %s is PARTIAL: %d/%d in rotation", r.id, len(candidates), r.minHealthy)
	}

	var lastResult InvokeResultLike
	_, err := r.breaker.Execute(func() (interface{}, error) {
		tried := make(map[string]bool, 2)
		for attempt := 0; attempt < 2; attempt++ {
			pick := r.pickExcluding(candidates, tried)
			if pick == nil {
				break
			}
			tried[pick.providerID] = true

			inv := r.resolve(pick.providerID)
			if inv == nil {
				continue
			}

			r.beginCall(pick)
			res := inv.Invoke(ctx, tool, args, timeout)
			r.endCall(pick)
			lastResult = res

			if res.IsOK() {
				r.recordSuccess(pick)
				return res, nil
			}

			kind := res.ErrorKind()
			if kind.CountsAgainstHealth() {
				r.recordFailure(pick)
				continue // try exactly one alternate
			}
			// non-infra failure (e.g. tool_error): not retried, not a circuit trip.
			return res, nil
		}
		return lastResult, hangarerr.New(hangarerr.KindTransport, "group_invoke", "all attempted members failed")
	})

	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return groupFailure(hangarerr.New(hangarerr.KindCircuitOpen, "group_invoke", "group %s circuit is open", r.id).WithGroup(r.id))
		}
		if lastResult != nil {
			return lastResult
		}
		return groupFailure(hangarerr.Wrap(hangarerr.KindTransport, "group_invoke", err, "group invocation failed").WithGroup(r.id))
	}
	return lastResult
}

func (r *Router) pickExcluding(candidates []*memberState, exclude map[string]bool) *memberState {
	remaining := make([]*memberState, 0, len(candidates))
	for _, c := range candidates {
		if !exclude[c.providerID] {
			remaining = append(remaining, c)
		}
	}
	return selectorFor(r.strategy)(r, remaining)
}

func (r *Router) beginCall(m *memberState) {
	m.mu.Lock()
	m.pendingCount++
	m.mu.Unlock()
}

func (r *Router) endCall(m *memberState) {
	m.mu.Lock()
	m.pendingCount--
	m.lastUsed = time.Now()
	m.mu.Unlock()
}

// recordSuccess implements the spec's health feedback: on success,
// consecutive_group_successes increments; if the member was out of
// rotation and the count reaches healthy_threshold, it rejoins rotation.
func (r *Router) recordSuccess(m *memberState) {
	m.mu.Lock()
	m.consecutiveFailures = 0
	m.consecutiveSuccesses++
	rejoin := !m.inRotation && m.consecutiveSuccesses >= r.healthyThreshold
	if rejoin {
		m.inRotation = true
	}
	m.mu.Unlock()
	if rejoin {
		if r.bus != nil {
			r.bus.Emit(events.Event{Reason: events.ReasonGroupMemberAdded, GroupID: r.id, ProviderID: m.providerID})
		}
		logging.Info("GroupRouter", "group %s: member %s rejoined rotation", r.id, m.providerID)
	}
}

// recordFailure implements the spec's health feedback: on failure,
// consecutive_group_failures increments; at unhealthy_threshold the member
// is removed from rotation.
func (r *Router) recordFailure(m *memberState) {
	m.mu.Lock()
	m.consecutiveSuccesses = 0
	m.consecutiveFailures++
	remove := m.inRotation && m.consecutiveFailures >= r.unhealthyThreshold
	if remove {
		m.inRotation = false
	}
	m.mu.Unlock()
	if remove {
		if r.bus != nil {
			r.bus.Emit(events.Event{Reason: events.ReasonGroupMemberRemoved, GroupID: r.id, ProviderID: m.providerID})
		}
		logging.Warn("GroupRouter", "group %s: member %s removed from rotation", r.id, m.providerID)
	}
}

// Status returns a read-only snapshot of every member's routing state.
func (r *Router) Status() []MemberStatus {
	out := make([]MemberStatus, len(r.members))
	for i, m := range r.members {
		m.mu.Lock()
		out[i] = m.snapshotLocked()
		m.mu.Unlock()
	}
	return out
}

func groupFailure(err *hangarerr.Error) InvokeResultLike {
	return &simpleResult{err: err}
}

type simpleResult struct {
	err *hangarerr.Error
}

func (s *simpleResult) IsOK() bool             { return false }
func (s *simpleResult) ErrorKind() hangarerr.Kind { return s.err.Kind }
