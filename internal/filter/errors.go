package filter

import "errors"

var (
	// ErrEmptyFilter indicates an expression (or nested group) with no nodes.
	// Compiling it would need an always-true literal; callers pass nil instead.
	ErrEmptyFilter = errors.New("filter expression is empty")

	// ErrInvalidField indicates a field name or group label that is not an identifier.
	ErrInvalidField = errors.New("invalid filter field name")

	// ErrFilterTooDeep indicates nesting beyond types.MaxFilterDepth.
	ErrFilterTooDeep = errors.New("filter nesting exceeds maximum depth")

	// ErrInvalidParam indicates a reserved query parameter with a malformed value.
	ErrInvalidParam = errors.New("invalid query parameter")
)
