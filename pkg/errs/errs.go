// Package errs provides structured, machine-parseable errors shared
// across the remote-node lifecycle and its callers (spec §7).
package errs

import (
	"errors"
	"fmt"
)

// ErrorCode is a machine-parseable error identifier (spec §7's error taxonomy).
type ErrorCode string

const (
	ErrConfigMissing ErrorCode = "ConfigMissing"
	ErrUnknownHost   ErrorCode = "UnknownHost"
	ErrSshDial       ErrorCode = "SshDial"
	ErrSshTimeout    ErrorCode = "SshTimeout"
	ErrSshSpawn      ErrorCode = "SshSpawn"
	ErrNodeUnreach   ErrorCode = "NodeUnreachable"
	ErrNodeUnknown   ErrorCode = "NodeUnknown"
	ErrNodeBadState  ErrorCode = "NodeBadState"
	ErrNameTaken     ErrorCode = "NameTaken"
	ErrBadAtomName   ErrorCode = "BadAtomName"
	ErrRemoteEval    ErrorCode = "RemoteEvalError"
)

// FleetError is the standard structured error type used across the
// remote package and its core-layer callers.
type FleetError struct {
	Code   ErrorCode // Machine-parseable error code
	Op     string    // Operation chain, e.g. "nodes.start"
	Node   string    // Node/resource identifier
	Cause  error     // Wrapped upstream error
	Advice string    // Human-readable remediation hint
}

func (e *FleetError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("[%s] %s (%s): %v", e.Code, e.Op, e.Node, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Code, e.Op, e.Cause)
}

func (e *FleetError) Unwrap() error {
	return e.Cause
}

// New creates a new FleetError.
func New(code ErrorCode, op string, cause error) *FleetError {
	return &FleetError{Code: code, Op: op, Cause: cause}
}

// Newf creates a new FleetError with a formatted message as the cause.
func Newf(code ErrorCode, op, format string, args ...any) *FleetError {
	return &FleetError{Code: code, Op: op, Cause: fmt.Errorf(format, args...)}
}

// WithNode sets the node identifier on a FleetError.
func (e *FleetError) WithNode(node string) *FleetError {
	e.Node = node
	return e
}

// WithAdvice sets the human-readable remediation hint on a FleetError.
func (e *FleetError) WithAdvice(advice string) *FleetError {
	e.Advice = advice
	return e
}

// Wrap wraps an existing error as a FleetError at a new operation boundary.
func Wrap(err error, code ErrorCode, op string) *FleetError {
	if err == nil {
		return nil
	}
	return &FleetError{Code: code, Op: op, Cause: err}
}

// IsCode reports whether err is a FleetError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var fe *FleetError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// AsFleet extracts the *FleetError from err, or returns nil.
func AsFleet(err error) *FleetError {
	var fe *FleetError
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}
