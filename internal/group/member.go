// Package group implements the Group Router: component C of the control
// plane core. One Router exists per configured group and selects a member
// provider for each call according to the group's strategy, tracking
// per-member health feedback and a group-level circuit breaker.
package group

import (
	"sync"
	"time"

	"hangar/internal/config"
)

// memberState is the Router's mutable view of one configured group member:
// the provider id plus the routing weight/priority and the in-rotation
// bookkeeping the spec's health feedback loop maintains.
type memberState struct {
	mu sync.Mutex

	providerID string
	weight     int
	priority   int

	inRotation bool

	consecutiveSuccesses int
	consecutiveFailures  int
	pendingCount         int
	lastUsed             time.Time

	// currentWeight is the running total used by the smooth weighted
	// round-robin algorithm: it accumulates by weight on every pick cycle
	// and is reset to (accumulated - totalWeight) on selection.
	currentWeight int
}

func newMemberState(m config.GroupMember) *memberState {
	weight := m.Weight
	if weight <= 0 {
		weight = 1
	}
	return &memberState{
		providerID: m.ProviderID,
		weight:     weight,
		priority:   m.Priority,
		inRotation: true,
	}
}

func (m *memberState) snapshotLocked() MemberStatus {
	return MemberStatus{
		ProviderID:                m.providerID,
		InRotation:                m.inRotation,
		Weight:                    m.weight,
		Priority:                  m.priority,
		ConsecutiveGroupSuccesses: m.consecutiveSuccesses,
		ConsecutiveGroupFailures:  m.consecutiveFailures,
		PendingCount:              m.pendingCount,
		LastUsed:                  m.lastUsed,
	}
}

// MemberStatus is the read-only snapshot of one member's routing state,
// as surfaced by the group's status() operation.
type MemberStatus struct {
	ProviderID                string
	InRotation                bool
	Weight                    int
	Priority                  int
	ConsecutiveGroupSuccesses int
	ConsecutiveGroupFailures  int
	PendingCount              int
	LastUsed                  time.Time
}
