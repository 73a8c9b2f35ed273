// Package faults contains helper functions and types to classify pipeline errors
package faults

import (
	"errors"
	"fmt"
)

// Class defines how a pipeline error must be handled.
type Class int

const (
	// ClassTransient covers RPC timeouts, sessions not yet ready and ledger
	// congestion. Retried with backoff, scoped to the failing stage.
	ClassTransient Class = iota
	// ClassProtocol covers rejections by an on-chain program (invalid
	// signature, replay, supply exhausted). Terminal for the record, never
	// auto-retried.
	ClassProtocol
	// ClassValidation covers malformed input rejected at admission. No record
	// is created.
	ClassValidation
	// ClassInvariant covers cross-ledger state that contradicts the local
	// record, e.g. a destination asset linked to a different seal. Surfaced
	// loudly, never silently retried.
	ClassInvariant
)

func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassProtocol:
		return "protocol"
	case ClassValidation:
		return "validation"
	case ClassInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Fault is the classified error type used across the pipeline. It never
// unwinds past a queue worker; the worker records it and decides between
// backoff and terminal failure based on the class.
type Fault struct {
	Class   Class
	Stage   string
	Message string
	Err     error
}

// Error method to comply with the error interface
func (f *Fault) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%s: %s: %v", f.Stage, f.Message, f.Err)
	}
	return fmt.Sprintf("%s: %s", f.Stage, f.Message)
}

// Unwrap returns the underlying error
func (f *Fault) Unwrap() error {
	return f.Err
}

// Is checks that the provided error is a Fault with the desired Class
func Is(err error, class Class) bool {
	var f *Fault
	return errors.As(err, &f) && f.Class == class
}

// Retryable reports whether the queue should retry the stage. Unclassified
// errors are treated as transient so a plain network error from a client
// library does not kill a workflow.
func Retryable(err error) bool {
	var f *Fault
	if errors.As(err, &f) {
		return f.Class == ClassTransient
	}
	return true
}

// Transient returns a retryable stage-scoped fault.
func Transient(stage, message string, err error) error {
	return &Fault{Class: ClassTransient, Stage: stage, Message: message, Err: err}
}

// Protocol returns a terminal fault for an on-chain rejection.
func Protocol(stage, message string, err error) error {
	return &Fault{Class: ClassProtocol, Stage: stage, Message: message, Err: err}
}

// Validation returns an admission-time rejection.
func Validation(stage, message string, err error) error {
	return &Fault{Class: ClassValidation, Stage: stage, Message: message, Err: err}
}

// Invariant returns a fault signalling a codec mismatch or protocol breach.
func Invariant(stage, message string, err error) error {
	return &Fault{Class: ClassInvariant, Stage: stage, Message: message, Err: err}
}
