package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"hangar/internal/group"
	"hangar/internal/hangarerr"
	"hangar/internal/metrics"
	"hangar/pkg/logging"
)

// Executor runs batch requests against a Resolver. It holds no per-batch
// state between calls; each Execute call is self-contained.
type Executor struct {
	resolver Resolver
}

// NewExecutor constructs an Executor backed by the given Resolver, normally
// the registry.
func NewExecutor(resolver Resolver) *Executor {
	return &Executor{resolver: resolver}
}

// Execute validates, then runs, a batch request, returning a fully ordered
// response. If validation fails, no calls execute at all.
func (e *Executor) Execute(ctx context.Context, req Request) (Response, []ValidationError) {
	req.normalize()

	if errs := validate(req, e.resolver); len(errs) > 0 {
		metrics.BatchSize.WithLabelValues("validation_failed").Observe(float64(len(req.Calls)))
		return Response{}, errs
	}

	batchID := uuid.NewString()
	start := time.Now()

	deadline := start.Add(req.Timeout)
	batchCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	results := make([]Result, len(req.Calls))
	var failFastTripped atomic.Bool
	budget := &truncationBudget{}
	coldStartGroup := &singleflight.Group{}

	// Bounded parallel fan-out: errgroup.SetLimit caps the number of
	// concurrently running calls at max_concurrency without a hand-rolled
	// semaphore. Calls never return an error from Go, so Wait() always
	// drains every goroutine rather than short-circuiting on the first
	// failure; fail_fast is its own signal, independent of errgroup's.
	g, _ := errgroup.WithContext(batchCtx)
	g.SetLimit(req.MaxConcurrency)

	for i, call := range req.Calls {
		i, call := i, call

		if failFastTripped.Load() {
			results[i] = cancelledResult(i, call)
			continue
		}

		g.Go(func() error {
			if req.FailFast && failFastTripped.Load() {
				results[i] = cancelledResult(i, call)
				return nil
			}

			res := e.executeOne(batchCtx, call, req, coldStartGroup)
			res.Index = i
			results[i] = res
			budget.apply(&results[i])

			if !res.Success && req.FailFast {
				failFastTripped.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()

	succeeded, failed := 0, 0
	for _, r := range results {
		if r.Success {
			succeeded++
		} else {
			failed++
		}
	}

	resp := Response{
		BatchID:   batchID,
		Success:   failed == 0,
		Total:     len(results),
		Succeeded: succeeded,
		Failed:    failed,
		ElapsedMS: time.Since(start).Milliseconds(),
		Results:   results,
	}

	outcome := "success"
	if !resp.Success {
		outcome = "partial"
	}
	metrics.BatchSize.WithLabelValues(outcome).Observe(float64(resp.Total))
	metrics.BatchDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	return resp, nil
}

func cancelledResult(index int, call Call) Result {
	return Result{
		Index:        index,
		CallID:       call.CallID,
		Success:      false,
		ErrorKind:    hangarerr.KindCancelled,
		ErrorMessage: "cancelled due to fail_fast",
	}
}

// executeOne runs a single call end to end: cold-start dedup, group circuit
// check, effective timeout computation, dispatch, and retry-on-infra-error.
func (e *Executor) executeOne(ctx context.Context, call Call, req Request, coldStartGroup *singleflight.Group) Result {
	start := time.Now()

	deadline, hasDeadline := ctx.Deadline()
	effectiveTimeout := call.Timeout
	if hasDeadline {
		remaining := time.Until(deadline)
		if effectiveTimeout <= 0 || remaining < effectiveTimeout {
			effectiveTimeout = remaining
		}
	}
	if effectiveTimeout <= 0 {
		return Result{CallID: call.CallID, Success: false, ErrorKind: hangarerr.KindTimeout, ErrorMessage: "no time remaining in batch deadline"}
	}

	var lastErr *hangarerr.Error
	var value interface{}
	ok := false
	attempts := 0

retryLoop:
	for attempts < req.MaxRetries {
		attempts++

		if call.ProviderID != "" {
			target, found := e.resolver.ResolveProvider(call.ProviderID)
			if !found {
				lastErr = hangarerr.New(hangarerr.KindNotFound, "batch_call", "unknown provider %q", call.ProviderID)
				break
			}

			if _, err, _ := coldStartGroup.Do(call.ProviderID, func() (interface{}, error) {
				return nil, target.EnsureReady(ctx)
			}); err != nil {
				lastErr = hangarerr.Wrap(hangarerr.KindLaunchFailed, "batch_call", err, "provider failed to become ready").WithProvider(call.ProviderID)
				break
			}

			res := target.Invoke(ctx, call.Tool, call.Arguments, effectiveTimeout)
			if res.OK {
				ok = true
				value = res.Value
				lastErr = nil
				break
			}
			lastErr = res.Err
		} else {
			target, found := e.resolver.ResolveGroup(call.GroupID)
			if !found {
				lastErr = hangarerr.New(hangarerr.KindNotFound, "batch_call", "unknown group %q", call.GroupID)
				break
			}
			if target.State() == group.StateDegraded {
				lastErr = hangarerr.New(hangarerr.KindCircuitOpen, "batch_call", "group %q circuit is open", call.GroupID).WithGroup(call.GroupID)
				break
			}

			res := target.Invoke(ctx, call.Tool, call.Arguments, effectiveTimeout)
			if res.IsOK() {
				ok = true
				lastErr = nil
				break
			}
			lastErr = hangarerr.New(res.ErrorKind(), "batch_call", "group invocation failed").WithGroup(call.GroupID)
		}

		if lastErr == nil || !lastErr.Kind.RetriableInBatch() || attempts >= req.MaxRetries {
			break
		}

		backoff := time.Duration(attempts) * 100 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			lastErr = hangarerr.New(hangarerr.KindCancelled, "batch_call", "batch deadline exceeded during retry backoff")
			break retryLoop
		}
	}

	elapsed := time.Since(start).Milliseconds()

	var retryMeta *RetryMetadata
	if attempts > 1 {
		kind := hangarerr.Kind("")
		if lastErr != nil {
			kind = lastErr.Kind
		}
		retryMeta = &RetryMetadata{Attempts: attempts, LastKind: kind}
	}

	if ok {
		return Result{CallID: call.CallID, Success: true, Value: value, ElapsedMS: elapsed, Retry: retryMeta}
	}

	msg := ""
	kind := hangarerr.KindInternal
	if lastErr != nil {
		msg = lastErr.Message
		kind = lastErr.Kind
	}
	logging.Debug("Batch", "call %s to %s%s failed: %s", call.CallID, call.ProviderID, call.GroupID, msg)
	return Result{CallID: call.CallID, Success: false, ErrorKind: kind, ErrorMessage: msg, ElapsedMS: elapsed, Retry: retryMeta}
}
