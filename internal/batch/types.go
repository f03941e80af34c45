// Package batch implements the Batch Executor: component D of the control
// plane core. It runs a list of calls with bounded concurrency, per-batch
// single-flight cold starts, per-call and global timeouts, partial success,
// fail-fast cancellation, and result truncation.
package batch

import (
	"context"
	"time"

	"hangar/internal/group"
	"hangar/internal/hangarerr"
	"hangar/internal/provider"
)

const (
	MaxCallsHardLimit       = 100
	MinConcurrency          = 1
	MaxConcurrencyHardLimit = 20
	MinTimeoutSeconds       = 1
	MaxTimeoutSeconds       = 300
	MinRetries              = 1
	MaxRetries              = 10
	PerCallMaxBytes   int64 = 10 * 1024 * 1024
	BatchMaxBytes     int64 = 50 * 1024 * 1024

	MaxToolNameLength        = 128
	MaxArgumentsBytes        = 1024 * 1024
	MaxArgumentsNestingDepth = 10
	MinPerCallTimeout        = 100 * time.Millisecond
	MaxPerCallTimeout        = 3600 * time.Second
)

// Call is a single requested invocation within a batch. Exactly one of
// ProviderID/GroupID is set; validation rejects a call that sets neither
// or both.
type Call struct {
	CallID     string
	ProviderID string
	GroupID    string
	Tool       string
	Arguments  map[string]interface{}
	Timeout    time.Duration // zero means "use the batch's effective timeout"
}

// Request is a single `call([...])` batch request.
type Request struct {
	Calls          []Call
	MaxConcurrency int
	Timeout        time.Duration
	FailFast       bool
	MaxRetries     int
}

// RetryMetadata records that a call was retried, for inclusion in a result.
type RetryMetadata struct {
	Attempts int
	LastKind hangarerr.Kind
}

// Result is one call's outcome, ordered by its original index in the batch.
type Result struct {
	Index             int
	CallID            string
	Success           bool
	Value             interface{}
	ErrorKind         hangarerr.Kind
	ErrorMessage      string
	ElapsedMS         int64
	Retry             *RetryMetadata
	Truncated         bool
	OriginalSizeBytes int64
}

// Response is the full `call([...])` batch response.
type Response struct {
	BatchID   string
	Success   bool
	Total     int
	Succeeded int
	Failed    int
	ElapsedMS int64
	Results   []Result
}

// ProviderTarget is the subset of provider.Supervisor the executor needs.
type ProviderTarget interface {
	EnsureReady(ctx context.Context) error
	Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) provider.InvokeResult
	ToolAllowed(tool string) bool
}

// GroupTarget is the subset of group.Router the executor needs.
type GroupTarget interface {
	Invoke(ctx context.Context, tool string, args map[string]interface{}, timeout time.Duration) group.InvokeResultLike
	State() group.State
}

// Resolver looks up the provider/group targets referenced by a batch,
// normally backed by the registry.
type Resolver interface {
	ResolveProvider(id string) (ProviderTarget, bool)
	ResolveGroup(id string) (GroupTarget, bool)
}
