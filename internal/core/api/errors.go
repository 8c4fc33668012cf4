package api

import (
	"errors"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/types"
)

// Outcome classifies an endpoint response.
type Outcome int

const (
	OK Outcome = iota
	NotFound
	Forbidden
	ValidationFailed
	MethodNotAllowed
	BadRequest
	ServerError
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case Forbidden:
		return "Forbidden"
	case ValidationFailed:
		return "ValidationFailed"
	case MethodNotAllowed:
		return "MethodNotAllowed"
	case BadRequest:
		return "BadRequest"
	default:
		return "ServerError"
	}
}

// Error mapping:
// ErrNotFound maps to NotFound.
// ValidationError maps to ValidationFailed with the result set as payload.
// Hook rejections map to Forbidden.
// Malformed query parameters and unknown order fields map to BadRequest.
// Everything else is a ServerError and is logged.
func outcomeOf(err error) (Outcome, any) {
	var verr *group.ValidationError
	switch {
	case errors.Is(err, types.ErrNotFound):
		return NotFound, nil
	case errors.As(err, &verr):
		return ValidationFailed, verr.Results
	case errors.Is(err, group.ErrRejected):
		return Forbidden, nil
	case errors.Is(err, filter.ErrInvalidParam),
		errors.Is(err, filter.ErrInvalidField),
		errors.Is(err, filter.ErrFilterTooDeep),
		errors.Is(err, group.ErrUnknownField):
		return BadRequest, err.Error()
	default:
		return ServerError, nil
	}
}
