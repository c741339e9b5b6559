package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a fetch failure. The classification is the only error
// contract between the transport and the crawl engine: transports assign
// one of the first four kinds, the scheduler adds KindExhausted when a
// retry budget runs out.
type Kind int

const (
	// KindThrottled is an upstream rate-limit signal. Recoverable; the
	// gate absorbs it and the call retries. Never user-visible unless
	// the throttle budget runs out.
	KindThrottled Kind = iota

	// KindTransient is a transport fault such as a timeout or connection
	// reset. Recoverable via bounded retry.
	KindTransient

	// KindPermanent is a definitive upstream answer: the target does not
	// exist, is forbidden, or was removed. Never retried.
	KindPermanent

	// KindCanceled is a user- or deadline-initiated abort. Not retried;
	// propagated for uniformity.
	KindCanceled

	// KindExhausted wraps the last throttled or transient cause after
	// its retry budget ran out. A partial-result condition: data already
	// produced remains valid.
	KindExhausted
)

// String returns the kind name used in logs and error text.
func (k Kind) String() string {
	switch k {
	case KindThrottled:
		return "throttled"
	case KindTransient:
		return "transient"
	case KindPermanent:
		return "permanent"
	case KindCanceled:
		return "canceled"
	case KindExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Error is a classified fetch failure.
type Error struct {
	// Kind is the failure classification.
	Kind Kind

	// Op names the operation for log and error text, e.g. "list r/golang".
	Op string

	// Attempts is how many attempts were made before surfacing. Zero for
	// errors created by a transport (the scheduler fills it in).
	Attempts int

	// RetryAfter carries the upstream's resume hint on throttled
	// failures, 0 when the signal had none.
	RetryAfter time.Duration

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Throttled builds a throttled classification with an optional resume hint.
func Throttled(op string, retryAfter time.Duration, err error) *Error {
	return &Error{Kind: KindThrottled, Op: op, RetryAfter: retryAfter, Err: err}
}

// Transient builds a transient classification.
func Transient(op string, err error) *Error {
	return &Error{Kind: KindTransient, Op: op, Err: err}
}

// Permanent builds a permanent classification.
func Permanent(op string, err error) *Error {
	return &Error{Kind: KindPermanent, Op: op, Err: err}
}

// Canceled builds a cancellation classification.
func Canceled(op string, err error) *Error {
	return &Error{Kind: KindCanceled, Op: op, Err: err}
}

// KindOf extracts the classification from err. Unclassified context
// errors map to KindCanceled; anything else unclassified is treated as
// transient, which errs on the side of retrying unknown faults.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindTransient
}

// IsKind reports whether err carries the given classification.
func IsKind(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}
