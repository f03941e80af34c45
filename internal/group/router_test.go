package group

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hangar/internal/config"
	"hangar/internal/events"
	"hangar/internal/hangarerr"
)

// fakeInvoker is a scripted stand-in for a provider.Supervisor, letting
// router tests drive failure/success sequences deterministically without a
// real MCP transport.
type fakeInvoker struct {
	id string

	mu      sync.Mutex
	results []fakeResult
	calls   int
}

type fakeResult struct {
	ok   bool
	kind hangarerr.Kind
}

func (f *fakeInvoker) ID() string { return f.id }

func (f *fakeInvoker) Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) InvokeResultLike {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.calls++
	r := f.results[idx]
	if r.ok {
		return &scriptedResult{ok: true}
	}
	return &scriptedResult{ok: false, kind: r.kind}
}

// scriptedResult is a trivial InvokeResultLike used only by fakeInvoker.
type scriptedResult struct {
	ok   bool
	kind hangarerr.Kind
}

func (s *scriptedResult) IsOK() bool               { return s.ok }
func (s *scriptedResult) ErrorKind() hangarerr.Kind { return s.kind }

func newTestGroupConfig(members ...config.GroupMember) config.Group {
	return config.Group{
		ID:                 "g1",
		Members:            members,
		Strategy:           config.StrategyRoundRobin,
		UnhealthyThreshold: 2,
		HealthyThreshold:   2,
		MinHealthy:         1,
		CircuitBreaker:     config.CircuitBreakerConfig{FailureThreshold: 5, ResetTimeout: config.Duration(time.Minute)},
	}
}

func resolverFor(invokers map[string]*fakeInvoker) func(string) Invoker {
	return func(id string) Invoker {
		if inv, ok := invokers[id]; ok {
			return inv
		}
		return nil
	}
}

func TestRouterFailsFastWithNoHealthyMembers(t *testing.T) {
	cfg := newTestGroupConfig() // no members
	r := NewRouter(cfg, events.NewBus(), resolverFor(nil))

	res := r.Invoke(context.Background(), "sum", nil, time.Second)
	assert.False(t, res.IsOK())
	assert.Equal(t, hangarerr.KindNoHealthyMember, res.ErrorKind())
}

func TestRouterFailoverToAlternateMemberOnTransportFailure(t *testing.T) {
	a := &fakeInvoker{id: "a", results: []fakeResult{{ok: false, kind: hangarerr.KindTransport}}}
	b := &fakeInvoker{id: "b", results: []fakeResult{{ok: true}}}

	cfg := newTestGroupConfig(
		config.GroupMember{ProviderID: "a"},
		config.GroupMember{ProviderID: "b"},
	)
	r := NewRouter(cfg, events.NewBus(), resolverFor(map[string]*fakeInvoker{"a": a, "b": b}))

	res := r.Invoke(context.Background(), "sum", nil, time.Second)
	assert.True(t, res.IsOK())

	status := r.Status()
	var aStatus MemberStatus
	for _, s := range status {
		if s.ProviderID == "a" {
			aStatus = s
		}
	}
	assert.Equal(t, 1, aStatus.ConsecutiveGroupFailures)
	assert.True(t, aStatus.InRotation) // below unhealthy_threshold still
}

func TestRouterRemovesMemberFromRotationAtUnhealthyThreshold(t *testing.T) {
	a := &fakeInvoker{id: "a", results: []fakeResult{
		{ok: false, kind: hangarerr.KindTransport},
		{ok: false, kind: hangarerr.KindTransport},
	}}
	b := &fakeInvoker{id: "b", results: []fakeResult{{ok: true}, {ok: true}}}

	cfg := newTestGroupConfig(
		config.GroupMember{ProviderID: "a"},
		config.GroupMember{ProviderID: "b"},
	)
	r := NewRouter(cfg, events.NewBus(), resolverFor(map[string]*fakeInvoker{"a": a, "b": b}))

	r.Invoke(context.Background(), "sum", nil, time.Second)
	r.Invoke(context.Background(), "sum", nil, time.Second)

	var aStatus MemberStatus
	for _, s := range r.Status() {
		if s.ProviderID == "a" {
			aStatus = s
		}
	}
	assert.Equal(t, 2, aStatus.ConsecutiveGroupFailures)
	assert.False(t, aStatus.InRotation)
}

func TestRouterNonInfraFailureDoesNotRetryOrCountAgainstHealth(t *testing.T) {
	a := &fakeInvoker{id: "a", results: []fakeResult{{ok: false, kind: hangarerr.KindToolError}}}
	b := &fakeInvoker{id: "b", results: []fakeResult{{ok: true}}}

	cfg := newTestGroupConfig(config.GroupMember{ProviderID: "a"}, config.GroupMember{ProviderID: "b"})
	r := NewRouter(cfg, events.NewBus(), resolverFor(map[string]*fakeInvoker{"a": a, "b": b}))

	res := r.Invoke(context.Background(), "sum", nil, time.Second)
	assert.False(t, res.IsOK())
	assert.Equal(t, hangarerr.KindToolError, res.ErrorKind())
	assert.Equal(t, 0, b.calls) // b must not have been tried

	for _, s := range r.Status() {
		if s.ProviderID == "a" {
			assert.Equal(t, 0, s.ConsecutiveGroupFailures)
		}
	}
}

func TestRouterRoundRobinCyclesThroughMembers(t *testing.T) {
	a := &fakeInvoker{id: "a", results: []fakeResult{{ok: true}, {ok: true}}}
	b := &fakeInvoker{id: "b", results: []fakeResult{{ok: true}, {ok: true}}}

	cfg := newTestGroupConfig(config.GroupMember{ProviderID: "a"}, config.GroupMember{ProviderID: "b"})
	r := NewRouter(cfg, events.NewBus(), resolverFor(map[string]*fakeInvoker{"a": a, "b": b}))

	for i := 0; i < 4; i++ {
		res := r.Invoke(context.Background(), "sum", nil, time.Second)
		require.True(t, res.IsOK())
	}

	assert.Equal(t, a.calls, b.calls)
}

func TestGroupStateInactiveWithNoMembers(t *testing.T) {
	cfg := newTestGroupConfig()
	r := NewRouter(cfg, events.NewBus(), resolverFor(nil))
	assert.Equal(t, StateInactive, r.State())
}

func TestGroupStateHealthyWithMembersInRotation(t *testing.T) {
	cfg := newTestGroupConfig(config.GroupMember{ProviderID: "a"})
	r := NewRouter(cfg, events.NewBus(), resolverFor(nil))
	assert.Equal(t, StateHealthy, r.State())
}
