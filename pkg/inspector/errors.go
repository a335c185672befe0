package inspector

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrorKind classifies every failure surfaced by the inspector.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation_error"
	KindConnection ErrorKind = "connection_error"
	KindProtocol   ErrorKind = "protocol_error"
	KindTimeout    ErrorKind = "timeout_error"
	KindInternal   ErrorKind = "internal_error"
)

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrValidation = errors.New("validation error")
	ErrConnection = errors.New("connection error")
	ErrProtocol   = errors.New("protocol error")
	ErrTimeout    = errors.New("timeout error")
	ErrInternal   = errors.New("internal error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrValidation
	case KindConnection:
		return ErrConnection
	case KindProtocol:
		return ErrProtocol
	case KindTimeout:
		return ErrTimeout
	default:
		return ErrInternal
	}
}

// Error is the typed error returned by inspector operations.
type Error struct {
	Kind ErrorKind
	// Op names the operation that failed, e.g. "load agent card".
	Op  string
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func newError(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// withOp returns a copy of e attributed to op when e has no operation yet.
func (e *Error) withOp(op string) *Error {
	if e.Op != "" {
		return e
	}
	c := *e
	c.Op = op
	return &c
}

func validationError(format string, args ...any) *Error {
	return newError(KindValidation, "", fmt.Errorf(format, args...))
}

// KindOf returns the kind carried by err, or KindInternal when err is not an *Error.
func KindOf(err error) ErrorKind {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Kind
	}
	return KindInternal
}

// classify turns an error from the SDK or the HTTP stack into an *Error.
// ctx is the bounded operation context; rec, when non-nil, tells whether the
// remote produced a response at all.
func classify(ctx context.Context, op string, err error, rec *recordingTransport) *Error {
	if rec != nil {
		if blocked := rec.policyViolation(); blocked != nil {
			return blocked.withOp(op)
		}
	}
	var ie *Error
	if errors.As(err, &ie) {
		return ie.withOp(op)
	}

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		return newError(KindTimeout, op, fmt.Errorf("agent did not respond in time: %w", err))
	case errors.Is(ctx.Err(), context.Canceled):
		return newError(KindInternal, op, fmt.Errorf("request cancelled: %w", err))
	case isConnection(err):
		return newError(KindConnection, op, fmt.Errorf("failed to connect to agent: %w", err))
	}

	if rec != nil {
		if terr := rec.transportError(); terr != nil {
			if isTimeout(terr) {
				return newError(KindTimeout, op, fmt.Errorf("agent did not respond in time: %w", err))
			}
			return newError(KindConnection, op, fmt.Errorf("failed to connect to agent: %w", err))
		}
		if status := rec.status(); status != 0 && (status < 200 || status > 299) {
			return newError(KindProtocol, op, fmt.Errorf("unexpected agent response (HTTP %d): %w", status, err))
		}
	}

	return newError(KindProtocol, op, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "Client.Timeout exceeded") ||
		strings.Contains(msg, "context deadline exceeded")
}

func isConnection(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	// Some SDK paths flatten the cause with %v.
	msg := err.Error()
	for _, s := range []string{"connection refused", "no such host", "connection reset", "network is unreachable", "dial tcp"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
