package group

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrUnknownGroup indicates no definition is registered under the name.
	ErrUnknownGroup = errors.New("unknown record group")

	// ErrUnknownField indicates an order field the group has no rule for.
	ErrUnknownField = errors.New("unknown field")

	// ErrRejected may be returned by hooks to refuse an operation on behalf
	// of the caller rather than as a server fault.
	ErrRejected = errors.New("rejected by group")
)

// Code is the outcome of validating one field.
type Code int

const (
	RuleNotFound Code = iota + 1
	IsRequired
	IsNotWritable
	InvalidValue
	DuplicateFound
)

func (c Code) String() string {
	switch c {
	case RuleNotFound:
		return "RuleNotFound"
	case IsRequired:
		return "IsRequired"
	case IsNotWritable:
		return "IsNotWritable"
	case InvalidValue:
		return "InvalidValue"
	case DuplicateFound:
		return "DuplicateFound"
	default:
		return "Unknown"
	}
}

// Results maps field names to their failure code. Empty means valid.
type Results map[string]Code

// Valid reports whether no field failed.
func (r Results) Valid() bool {
	return len(r) == 0
}

// Strings returns the codes by name, for payloads.
func (r Results) Strings() map[string]string {
	out := make(map[string]string, len(r))
	for field, code := range r {
		out[field] = code.String()
	}
	return out
}

// ValidationError is returned by Push and Update when properties are rejected.
type ValidationError struct {
	Group   string
	Results Results
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Results))
	for field, code := range e.Results {
		fields = append(fields, field+"="+code.String())
	}
	sort.Strings(fields)
	return fmt.Sprintf("validation failed for %s: %s", e.Group, strings.Join(fields, ", "))
}
