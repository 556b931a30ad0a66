package database

import "fmt"

// Kind partitions store errors into the classes callers dispatch on.
type Kind uint8

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindForbidden
	KindTransient
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindTransient:
		return "transient"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// Error is a kinded store error. errors.Is against one of the kind
// sentinels (ErrNotFound, ErrTransient, ...) matches any error of that
// kind; errors.Is against a specific error matches only that error.
type Error struct {
	kind  Kind
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) Kind() Kind { return e.kind }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t == e {
		return true
	}
	// kind sentinels match by kind alone
	if s, ok := kindSentinels[t.kind]; ok && s == t {
		return e.kind == t.kind
	}
	return false
}

func newErr(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, msg string, cause error) error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Errorf builds a kinded error with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Kind sentinels.
var (
	ErrNotFound  = newErr(KindNotFound, "not found")
	ErrConflict  = newErr(KindConflict, "conflict")
	ErrForbidden = newErr(KindForbidden, "forbidden")
	ErrTransient = newErr(KindTransient, "transient")
	ErrCorrupt   = newErr(KindCorrupt, "corrupt")
)

var kindSentinels = map[Kind]*Error{
	KindNotFound:  ErrNotFound,
	KindConflict:  ErrConflict,
	KindForbidden: ErrForbidden,
	KindTransient: ErrTransient,
	KindCorrupt:   ErrCorrupt,
}

// Specific errors.
var (
	ErrKeyNotFound        = newErr(KindNotFound, "ingress key not found")
	ErrInvocationNotFound = newErr(KindNotFound, "ingest invocation not found")
	ErrReportNotFound     = newErr(KindNotFound, "no report for ingress key")

	ErrAlreadyRegistered     = newErr(KindConflict, "ingress key already registered with a different start block")
	ErrDuplicateActiveRecord = newErr(KindConflict, "an active rng record exists for this account")
	ErrBlockContentMismatch  = newErr(KindConflict, "block index already ingested with different content")
	ErrInvalidBlockRange     = newErr(KindConflict, "block range start must be below end")

	ErrKeyDecommissioned = newErr(KindForbidden, "ingress key is decommissioned")
	ErrInvocationRetired = newErr(KindForbidden, "ingest invocation is retired")
	ErrNotPrimary        = newErr(KindForbidden, "invocation is not the primary for this ingress key")

	ErrPoolTimeout = newErr(KindTransient, "timed out waiting for a database connection")

	ErrTwoPrimaries = newErr(KindCorrupt, "multiple primary invocations observed for one ingress key")
)
