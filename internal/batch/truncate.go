package batch

import (
	"encoding/json"
	"sync/atomic"
)

// truncationBudget tracks the cumulative batch payload budget across
// concurrently completing calls; sizeOf is measured by JSON-marshalling the
// value, the same representation the client ultimately receives.
type truncationBudget struct {
	spent int64 // atomic
}

func sizeOf(v interface{}) int64 {
	if v == nil {
		return 0
	}
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// apply measures a successful result's value and, if it would exceed the
// per-call cap or push the cumulative batch budget over its cap, drops the
// payload and marks the result truncated. The call still counts as
// succeeded, per the spec.
func (b *truncationBudget) apply(r *Result) {
	if !r.Success || r.Value == nil {
		return
	}
	size := sizeOf(r.Value)
	r.OriginalSizeBytes = size

	if size > PerCallMaxBytes {
		r.Value = nil
		r.Truncated = true
		return
	}

	total := atomic.AddInt64(&b.spent, size)
	if total > BatchMaxBytes {
		r.Value = nil
		r.Truncated = true
	}
}
