// Package runnererr defines the error taxonomy shared across the scheduling core.
//
// Errors are not a type hierarchy; they are a small struct carrying a Kind (the
// coarse category from spec §7: ConfigError, LockHeld/Process, LockHeld/Row,
// JobFailure, BlockedByFailure, StoreError) and a Label naming the specific cause
// within that kind (BadFrequency, DependencyCycle, ...). Callers compare Kind with
// Is, which uses errors.As and compares the Kind field, never the message string.
package runnererr

import (
	"errors"
	"fmt"
)

// Kind is the coarse error category from the error handling design.
type Kind string

const (
	KindConfigError      Kind = "ConfigError"
	KindLockHeldProcess  Kind = "LockHeld/Process"
	KindLockHeldRow      Kind = "LockHeld/Row"
	KindJobFailure       Kind = "JobFailure"
	KindBlockedByFailure Kind = "BlockedByFailure"
	KindStoreError       Kind = "StoreError"
)

// Label names the specific cause within a Kind.
type Label string

const (
	LabelBadFrequency            Label = "BadFrequency"
	LabelTimeOnSubdailyFrequency Label = "TimeOnSubdailyFrequency"
	LabelDuplicateIdentifier     Label = "DuplicateIdentifier"
	LabelUnknownDependency       Label = "UnknownDependency"
	LabelDependencyCycle         Label = "DependencyCycle"
)

// Error is the structured error value propagated out of the core.
type Error struct {
	Kind    Kind
	Label   Label
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s/%s: %s", e.Kind, e.Label, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// New builds a labelled error for the given kind.
func New(kind Kind, label Label, msg string) *Error {
	return &Error{Kind: kind, Label: label, Message: msg}
}

// Newf builds a labelled error with a formatted message.
func Newf(kind Kind, label Label, format string, args ...any) *Error {
	return New(kind, label, fmt.Sprintf(format, args...))
}

// Wrap attaches a kind/label to an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, label Label, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Label: label, Message: err.Error(), err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fault is the structured capture of a job execution failure: a kind label, a
// human-readable message, and formatted diagnostic text. It is the systems-language
// equivalent of the exception triple (type, value, traceback) the runner records
// per attempt (spec §3 RunLog, §7).
type Fault struct {
	Kind      string
	Message   string
	Traceback string
}

// CaptureFault builds a Fault from a job execution error. recovered, if non-nil,
// is the value passed to recover() when the job panicked instead of returning an
// error; the runner's per-job boundary never lets a panic cross it (spec §9).
func CaptureFault(err error, recovered any, trace string) *Fault {
	if recovered != nil {
		return &Fault{
			Kind:      "panic",
			Message:   fmt.Sprint(recovered),
			Traceback: trace,
		}
	}
	if err == nil {
		return nil
	}
	kind := "error"
	var e *Error
	if errors.As(err, &e) {
		kind = string(e.Kind)
		if e.Label != "" {
			kind = string(e.Label)
		}
	}
	return &Fault{
		Kind:      kind,
		Message:   err.Error(),
		Traceback: trace,
	}
}
