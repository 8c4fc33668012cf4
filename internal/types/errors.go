package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for groupstore operations.
// Connectors convert every back-end failure into one of these before it
// leaves the connector boundary.
var (
	// ErrConnect indicates the back end is unreachable or misconfigured.
	ErrConnect = errors.New("storage connection failed")

	// ErrQuery indicates a read statement failed to prepare or execute.
	ErrQuery = errors.New("storage query failed")

	// ErrWrite indicates a write statement failed to prepare or execute.
	ErrWrite = errors.New("storage write failed")

	// ErrNotFound indicates no record matched.
	ErrNotFound = errors.New("record not found")

	// ErrBind indicates a value of an unsupported type reached the parameter binder.
	ErrBind = errors.New("unsupported parameter type")

	// ErrNotOpen indicates an operation on a connector that has not been opened.
	ErrNotOpen = errors.New("connector is not open")
)

// StatementError carries the failed statement and its parameters.
// Kind is ErrQuery or ErrWrite; Err is the driver error.
type StatementError struct {
	Kind      error
	Statement string
	Params    map[string]any
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the driver error to errors.Is.
func (e *StatementError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// BindError reports a parameter the binder could not convert.
// Always a programming or schema defect, never bad user input.
type BindError struct {
	Name      string
	Statement string
	Value     any
}

func (e *BindError) Error() string {
	return fmt.Sprintf("cannot bind parameter %q of type %T", e.Name, e.Value)
}

func (e *BindError) Is(target error) bool {
	return target == ErrBind
}
