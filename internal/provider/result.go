package provider

import (
	"time"

	"hangar/internal/hangarerr"
)

// InvokeResult is the outcome of a single tool invocation against a
// provider, matching the spec's Result shape: either ok+value or error+kind.
type InvokeResult struct {
	OK        bool
	Value     interface{}
	ElapsedMS int64
	Err       *hangarerr.Error
}

// IsOK and ErrorKind satisfy group.InvokeResultLike, letting the group
// router treat a Supervisor's invocation outcome generically without this
// package importing group (which would be a cycle: group resolves provider
// ids back through the registry, which imports both).
func (r InvokeResult) IsOK() bool { return r.OK }

func (r InvokeResult) ErrorKind() hangarerr.Kind {
	if r.Err == nil {
		return ""
	}
	return r.Err.Kind
}

// Details is the read-only snapshot returned by the `details`/`list` tools.
type Details struct {
	ProviderID    string
	State         State
	Mode          string
	IsAlive       bool
	ToolsCount    int
	ToolNames     []string
	HealthStatus  string
	LastUsedAt    time.Time
	LastErrorText string
}

// HealthInfo is the read-only snapshot returned by the `health` tool.
type HealthInfo struct {
	ProviderID          string
	State               State
	ConsecutiveFailures int
	TotalInvocations    int64
	TotalFailures       int64
	LastSuccessAt       time.Time
	LastFailureAt       time.Time
	BackoffUntil        time.Time
	Diagnostics         *Diagnostics
}
