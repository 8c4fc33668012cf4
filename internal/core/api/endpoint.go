package api

import (
	"context"
	"log/slog"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// Permissions restrict what an endpoint exposes of its group.
// Nil PullFields falls back to the group's PullFields; empty PushFields or
// UpdateFields allow every field. Nil SearchFields uses the group's.
type Permissions struct {
	CanPull      bool
	CanPush      bool
	CanUpdate    bool
	CanDelete    bool
	CountTotals  bool
	PullFields   []string
	PushFields   []string
	UpdateFields []string
	SearchFields []string
}

// DefaultPermissions allows every operation and counts search totals.
func DefaultPermissions() Permissions {
	return Permissions{
		CanPull:     true,
		CanPush:     true,
		CanUpdate:   true,
		CanDelete:   true,
		CountTotals: true,
	}
}

// Request is a decoded call. ID is empty for collection requests.
// Query is the raw query string, used by collection pulls.
type Request struct {
	ID    string
	Body  types.Record
	Query string
}

// Response is the result of an endpoint call.
//
// Payload by outcome: OK carries the record, the search result, or the new
// ID; ValidationFailed carries group.Results; Forbidden carries the
// disallowed field names when a body contained any; BadRequest carries the
// reason.
type Response struct {
	Outcome Outcome
	Payload any
}

// SearchResult is the collection payload when totals are counted.
type SearchResult struct {
	Total uint64         `json:"Total"`
	Items []types.Record `json:"Items"`
}

// Endpoint exposes one group to remote callers.
type Endpoint struct {
	group  *group.Group
	perms  Permissions
	logger *slog.Logger
}

// NewEndpoint binds g with perms.
func NewEndpoint(g *group.Group, perms Permissions, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		group:  g,
		perms:  perms,
		logger: logger.With("group", g.Name()),
	}
}

func (e *Endpoint) fail(op string, err error) Response {
	outcome, payload := outcomeOf(err)
	switch outcome {
	case ServerError:
		e.logger.Error("operation failed", "op", op, "error", err)
	default:
		e.logger.Debug("operation refused", "op", op, "outcome", outcome.String(), "error", err)
	}
	return Response{Outcome: outcome, Payload: payload}
}

// Pull reads one record by ID or searches the collection.
func (e *Endpoint) Pull(ctx context.Context, req Request) Response {
	if !e.perms.CanPull {
		return Response{Outcome: MethodNotAllowed}
	}

	if req.ID != "" {
		rec, err := e.group.Pull(ctx, req.ID, e.perms.PullFields)
		if err != nil {
			return e.fail("pull", err)
		}
		return Response{Outcome: OK, Payload: rec}
	}

	searchFields := e.perms.SearchFields
	if searchFields == nil {
		searchFields = e.group.Schema().SearchFields
	}
	params, err := filter.ParseParams(req.Query, searchFields)
	if err != nil {
		return e.fail("search", err)
	}

	rows, err := e.group.Search(ctx, storage.Query{
		Fields: e.perms.PullFields,
		Filter: params.Filter,
		Order:  params.Order,
		Limit:  params.Limit,
		Offset: params.Offset,
	})
	if err != nil {
		return e.fail("search", err)
	}
	if rows == nil {
		rows = []types.Record{}
	}

	if !e.perms.CountTotals {
		return Response{Outcome: OK, Payload: rows}
	}

	total, err := e.group.Count(ctx, params.Filter)
	if err != nil {
		return e.fail("count", err)
	}
	return Response{Outcome: OK, Payload: SearchResult{Total: total, Items: rows}}
}

// Push creates a record. The payload is the new ID under the group's ID field.
func (e *Endpoint) Push(ctx context.Context, req Request) Response {
	if !e.perms.CanPush || req.ID != "" {
		return Response{Outcome: MethodNotAllowed}
	}
	if denied := disallowed(req.Body, e.perms.PushFields); len(denied) > 0 {
		return Response{Outcome: Forbidden, Payload: denied}
	}

	id, err := e.group.Push(ctx, req.Body)
	if err != nil {
		return e.fail("push", err)
	}
	return Response{Outcome: OK, Payload: types.Record{e.group.Schema().IDField: id}}
}

// Update changes the supplied fields of one record.
func (e *Endpoint) Update(ctx context.Context, req Request) Response {
	if !e.perms.CanUpdate || req.ID == "" {
		return Response{Outcome: MethodNotAllowed}
	}
	if denied := disallowed(req.Body, e.perms.UpdateFields); len(denied) > 0 {
		return Response{Outcome: Forbidden, Payload: denied}
	}

	if err := e.group.Update(ctx, req.ID, req.Body); err != nil {
		return e.fail("update", err)
	}
	return Response{Outcome: OK}
}

// Delete removes one record.
func (e *Endpoint) Delete(ctx context.Context, req Request) Response {
	if !e.perms.CanDelete || req.ID == "" {
		return Response{Outcome: MethodNotAllowed}
	}

	if err := e.group.Delete(ctx, req.ID); err != nil {
		return e.fail("delete", err)
	}
	return Response{Outcome: OK}
}

// disallowed lists body fields outside allowed, in sorted order.
// Empty allowed permits everything.
func disallowed(body types.Record, allowed []string) []string {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		set[f] = struct{}{}
	}

	var out []string
	for _, f := range body.Fields() {
		if _, ok := set[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}
