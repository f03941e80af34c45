package batch

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

// toolNamePattern enforces the dotted/alphanumeric/underscore charset.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// ValidationError is one per-index failure from the eager validation pass.
type ValidationError struct {
	Index   int
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("call %d: %s", e.Index, e.Message)
}

// clampInt returns v clamped to [lo, hi], or def if v is zero.
func clampInt(v, def, lo, hi int) int {
	if v == 0 {
		v = def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalize applies the batch-level clamps the spec requires (§4.D,
// Invariants): max_concurrency in [1,20], timeout in [1,300]s, max_retries
// defaulting to 1 (no retry) and never below it.
func (req *Request) normalize() {
	req.MaxConcurrency = clampInt(req.MaxConcurrency, 10, MinConcurrency, MaxConcurrencyHardLimit)
	timeoutSeconds := clampInt(int(req.Timeout.Seconds()), 30, MinTimeoutSeconds, MaxTimeoutSeconds)
	req.Timeout = secondsToDuration(timeoutSeconds)
	req.MaxRetries = clampInt(req.MaxRetries, MinRetries, MinRetries, MaxRetries)
}

// argumentsNestingDepth walks a decoded JSON value and returns the deepest
// level of object/array nesting it contains; a bare scalar is depth 0.
func argumentsNestingDepth(v interface{}) int {
	switch val := v.(type) {
	case map[string]interface{}:
		deepest := 0
		for _, child := range val {
			if d := argumentsNestingDepth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	case []interface{}:
		deepest := 0
		for _, child := range val {
			if d := argumentsNestingDepth(child); d > deepest {
				deepest = d
			}
		}
		return deepest + 1
	default:
		return 0
	}
}

// validate performs the eager, all-or-nothing validation pass: provider or
// group existence, predefined tool membership, and argument/timeout shape.
// It collects every failure rather than stopping at the first, matching the
// "listing per-index errors" contract.
func validate(req Request, resolver Resolver) []ValidationError {
	var errs []ValidationError

	if len(req.Calls) > MaxCallsHardLimit {
		errs = append(errs, ValidationError{Index: -1, Message: fmt.Sprintf("batch exceeds the %d-call limit", MaxCallsHardLimit)})
	}

	for i, c := range req.Calls {
		if c.ProviderID == "" && c.GroupID == "" {
			errs = append(errs, ValidationError{Index: i, Message: "call must set provider or group"})
			continue
		}
		if c.ProviderID != "" && c.GroupID != "" {
			errs = append(errs, ValidationError{Index: i, Message: "call must not set both provider and group"})
			continue
		}
		switch {
		case c.Tool == "":
			errs = append(errs, ValidationError{Index: i, Message: "tool is required"})
		case len(c.Tool) > MaxToolNameLength:
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("tool name exceeds %d characters", MaxToolNameLength)})
		case !toolNamePattern.MatchString(c.Tool):
			errs = append(errs, ValidationError{Index: i, Message: "tool name must be alphanumeric, dotted, or underscored"})
		}

		if c.Timeout != 0 && (c.Timeout < MinPerCallTimeout || c.Timeout > MaxPerCallTimeout) {
			errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("per-call timeout must be between %s and %s", MinPerCallTimeout, MaxPerCallTimeout)})
		}

		if c.Arguments != nil {
			encoded, err := json.Marshal(c.Arguments)
			if err != nil {
				errs = append(errs, ValidationError{Index: i, Message: "arguments must be JSON-serialisable"})
			} else if int64(len(encoded)) > MaxArgumentsBytes {
				errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("arguments exceed %d bytes serialised", MaxArgumentsBytes)})
			}
			if depth := argumentsNestingDepth(c.Arguments); depth > MaxArgumentsNestingDepth {
				errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("arguments nesting depth %d exceeds limit of %d", depth, MaxArgumentsNestingDepth)})
			}
		}

		if c.ProviderID != "" {
			target, ok := resolver.ResolveProvider(c.ProviderID)
			if !ok {
				errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("unknown provider %q", c.ProviderID)})
				continue
			}
			if c.Tool != "" && !target.ToolAllowed(c.Tool) {
				errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("tool %q is not in provider %q's schema", c.Tool, c.ProviderID)})
			}
		} else if c.GroupID != "" {
			if _, ok := resolver.ResolveGroup(c.GroupID); !ok {
				errs = append(errs, ValidationError{Index: i, Message: fmt.Sprintf("unknown group %q", c.GroupID)})
			}
		}
	}

	return errs
}
