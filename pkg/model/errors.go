package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a key does not exist in the store
	ErrNotFound = errors.New("document not found")
	// ErrInvalidRequest is returned when a page request is malformed
	ErrInvalidRequest = errors.New("invalid page request")
	// ErrInvalidBinding is returned when a key component value cannot be used in a key
	ErrInvalidBinding = errors.New("invalid key binding")
	// ErrProcedureExecution is returned when a server-side procedure failed to run
	ErrProcedureExecution = errors.New("procedure execution failed")
	// ErrProcedureUnsupported is returned when the store cannot run the procedure at all
	ErrProcedureUnsupported = errors.New("procedure not supported by store")
	// ErrStoreTimeout is returned when a store round-trip exceeds its configured timeout
	ErrStoreTimeout = errors.New("store timeout")
	// ErrDecode marks a stored document that could not be decoded
	ErrDecode = errors.New("malformed document")
	// ErrCanceled is returned when the operation is canceled by the caller
	ErrCanceled = errors.New("operation canceled")
)

// BindingError describes a rejected key component binding.
type BindingError struct {
	Component string
	Value     string
	Reason    string
}

func (e *BindingError) Error() string {
	return fmt.Sprintf("invalid binding %s=%q: %s", e.Component, e.Value, e.Reason)
}

func (e *BindingError) Unwrap() error { return ErrInvalidBinding }

// ProcedureError wraps a failure of a server-side procedure. Compile errors,
// script runtime errors and timeouts all end up here.
type ProcedureError struct {
	Procedure string
	Timeout   bool
	Err       error
}

func (e *ProcedureError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("procedure %s timed out: %v", e.Procedure, e.Err)
	}
	return fmt.Sprintf("procedure %s: %v", e.Procedure, e.Err)
}

func (e *ProcedureError) Unwrap() []error {
	return []error{ErrProcedureExecution, e.Err}
}

// DecodeError is recorded when a single stored document cannot be decoded.
type DecodeError struct {
	Key string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Key, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// WrapError converts context.Canceled and context.DeadlineExceeded to ErrCanceled.
func WrapError(err error) error {
	if err == nil {
		return nil
	}
	if IsCanceled(err) {
		return ErrCanceled
	}
	return err
}

// IsCanceled returns true if the error is due to context cancellation or deadline exceeded.
// Drivers sometimes flatten context errors into strings, so the message is checked too.
func IsCanceled(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "context canceled") || strings.Contains(errStr, "context deadline exceeded")
}
