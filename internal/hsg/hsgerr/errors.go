// Package hsgerr defines the error kinds the HSG core produces (spec.md
// §7). The teacher has no equivalent error-kind package; a small sentinel/
// kind type is the idiomatic Go rendition of this and needs no third-party
// dependency (see DESIGN.md).
package hsgerr

import "fmt"

// Kind classifies an Error for caller-visible handling and retry policy.
type Kind int

const (
	// KindNotFound: no matching row for a required lookup.
	KindNotFound Kind = iota
	// KindInvalidArgument: malformed tags, negative boost, non-positive
	// decayLambda, etc.
	KindInvalidArgument
	// KindConflict: simhash collision with divergent content. Non-fatal;
	// callers log and proceed as new.
	KindConflict
	// KindTransient: persistence transaction retry, embedder timeout.
	// Retried with exponential backoff by the caller.
	KindTransient
	// KindCancelled: the operation observed context cancellation.
	KindCancelled
	// KindFatal: encryption misconfiguration, classifier dimension
	// mismatch (the latter is recovered by reset+warning, not surfaced).
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	case KindCancelled:
		return "cancelled"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch on
// classification without string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a kind and the operation name that produced it.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if he, ok := err.(*Error); ok {
			e = he
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return e != nil && e.Kind == kind
}

// Sanitized returns the uniform, no-secrets message surfaced to callers for
// error kinds other than NotFound/InvalidArgument/Cancelled (spec.md §7).
func Sanitized(code string) string {
	return fmt.Sprintf("operation failed (code=%s)", code)
}
