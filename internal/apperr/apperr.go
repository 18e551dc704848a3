// Package apperr defines the error taxonomy shared by the queue, session,
// escrow and sync layers. Conflict and NotFound are expected steady-state
// outcomes of the lock-free design: callers handle them by re-fetching
// current state, not by retrying blindly.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for transport mapping and caller policy.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindUnavailable
	KindTimeout
	KindChainRejected
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUnavailable:
		return "unavailable"
	case KindTimeout:
		return "timeout"
	case KindChainRejected:
		return "chain_rejected"
	}
	return "unknown"
}

// Contract revert reasons carried by chain-rejected errors.
const (
	ReasonInvalidMove       = "invalid move"
	ReasonInsufficientStake = "insufficient stake"
	ReasonStakeMismatch     = "stake mismatch"
	ReasonAlreadyResolved   = "already resolved"
	ReasonAlreadyJoined     = "already joined"
	ReasonNotParticipant    = "not a participant"
	ReasonTimeoutNotReached = "timeout not reached"
	ReasonNotOwner          = "not owner"
	ReasonFeePoolExceeded   = "fee pool exceeded"
	ReasonReentrantCall     = "reentrant call"
	ReasonUnknownGame       = "unknown game"
)

// Error is a classified error. Reason is set only for chain rejections and
// carries the contract's revert reason verbatim.
type Error struct {
	Kind   Kind
	Reason string
	msg    string
	err    error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...interface{}) *Error {
	return newf(KindValidation, format, args...)
}

func Conflictf(format string, args ...interface{}) *Error {
	return newf(KindConflict, format, args...)
}

func NotFoundf(format string, args ...interface{}) *Error {
	return newf(KindNotFound, format, args...)
}

func Timeoutf(format string, args ...interface{}) *Error {
	return newf(KindTimeout, format, args...)
}

// Unavailable wraps a transport or store failure so callers can distinguish
// "try later" from domain outcomes.
func Unavailable(msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, msg: msg, err: err}
}

// ChainRejected reports a reverted contract call. It is terminal for that
// attempt and must never mutate off-chain session status.
func ChainRejected(reason string) *Error {
	return &Error{Kind: KindChainRejected, Reason: reason, msg: "chain rejected: " + reason}
}

// KindOf extracts the Kind from an error chain, KindUnknown if absent.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// ReasonOf returns the contract revert reason, empty for non-chain errors.
func ReasonOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
