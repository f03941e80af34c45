// Package hangarerr defines the error envelope and Kind taxonomy shared by
// every layer of the hangar control plane, from the transport client up to
// the client-facing aggregator.
package hangarerr

import "fmt"

// Kind classifies an error for routing, retry, and health-accounting
// decisions. It is a taxonomy, not a Go type hierarchy: callers switch on it.
type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindValidation      Kind = "validation"
	KindTimeout         Kind = "timeout"
	KindTransport       Kind = "transport"
	KindProtocol        Kind = "protocol"
	KindLaunchFailed    Kind = "launch_failed"
	KindCircuitOpen     Kind = "circuit_open"
	KindNoHealthyMember Kind = "no_healthy_member"
	KindRateLimited     Kind = "rate_limited"
	KindCancelled       Kind = "cancelled"
	KindConfiguration   Kind = "configuration"
	KindInternal        Kind = "internal"
	KindToolError       Kind = "tool_error"
)

// CountsAgainstHealth reports whether an error of this kind should increment
// a provider's consecutive_failures counter, per the classification table:
// transient infrastructure errors count, permanent/semantic errors do not.
func (k Kind) CountsAgainstHealth() bool {
	switch k {
	case KindTransport, KindProtocol, KindTimeout:
		return true
	default:
		return false
	}
}

// RetriableInBatch reports whether a batch executor may retry a call that
// failed with this kind, subject to the call's max_retries budget.
func (k Kind) RetriableInBatch() bool {
	switch k {
	case KindTransport, KindProtocol, KindTimeout:
		return true
	default:
		return false
	}
}

// Error is the structured error envelope returned across every hangar
// operation boundary: transport, supervisor, router, batch, aggregator.
type Error struct {
	Kind          Kind
	ProviderID    string
	GroupID       string
	Operation     string
	Message       string
	Details       string
	RecoveryHints []string
	Cause         error
}

func (e *Error) Error() string {
	if e.ProviderID != "" {
		return fmt.Sprintf("%s: %s (provider=%s op=%s)", e.Kind, e.Message, e.ProviderID, e.Operation)
	}
	if e.GroupID != "" {
		return fmt.Sprintf("%s: %s (group=%s op=%s)", e.Kind, e.Message, e.GroupID, e.Operation)
	}
	return fmt.Sprintf("%s: %s (op=%s)", e.Kind, e.Message, e.Operation)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind with a formatted message.
func New(kind Kind, operation, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Operation: operation, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around an underlying cause.
func Wrap(kind Kind, operation string, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Operation: operation, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// WithProvider sets the ProviderID field and returns the receiver for chaining.
func (e *Error) WithProvider(id string) *Error {
	e.ProviderID = id
	return e
}

// WithGroup sets the GroupID field and returns the receiver for chaining.
func (e *Error) WithGroup(id string) *Error {
	e.GroupID = id
	return e
}

// WithDetails sets the Details field and returns the receiver for chaining.
func (e *Error) WithDetails(details string) *Error {
	e.Details = details
	return e
}

// WithHints appends recovery hints and returns the receiver for chaining.
func (e *Error) WithHints(hints ...string) *Error {
	e.RecoveryHints = append(e.RecoveryHints, hints...)
	return e
}

// KindOf extracts the Kind from an error if it (or something it wraps) is a
// *Error; otherwise it classifies the error as internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var herr *Error
	if asError(err, &herr) {
		return herr.Kind
	}
	return KindInternal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
