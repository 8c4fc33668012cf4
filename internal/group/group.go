// Package group implements record groups: named collections of records with
// per-field rules, unique keys and lifecycle hooks, persisted through a
// storage.Connector.
//
// Writes follow TransformIn, Validate, Before hook, persist, After hook.
// The first failing step ends the operation.
package group

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// Group binds a definition to a connector. Safe for concurrent use; the
// schema is read-only after New.
type Group struct {
	name   string
	conn   storage.Connector
	schema *Schema
	logger *slog.Logger
}

// New runs def.SetUp and returns the bound group.
func New(conn storage.Connector, def Definition, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	s := newSchema()
	def.SetUp(s)
	s.finish()

	return &Group{
		name:   def.Name(),
		conn:   conn,
		schema: s,
		logger: logger.With("group", def.Name()),
	}
}

// Name returns the group name, which is also the connector table.
func (g *Group) Name() string { return g.name }

// Schema returns the group's schema. Callers must not modify it.
func (g *Group) Schema() *Schema { return g.schema }

func hookFailed(step string, err error) error {
	return fmt.Errorf("%s: %w", step, err)
}

// Pull reads one record. Nil fields selects the schema's PullFields.
func (g *Group) Pull(ctx context.Context, id string, fields []string) (types.Record, error) {
	if fields == nil {
		fields = g.schema.PullFields
	}

	h := g.schema.Hooks
	if h.BeforePull != nil {
		if err := h.BeforePull(ctx, &id, &fields); err != nil {
			return nil, hookFailed("before pull", err)
		}
	}

	rec, err := g.conn.Pull(ctx, g.name, g.schema.IDField, id, fields)
	if err != nil {
		return nil, err
	}

	return g.afterPull(ctx, rec)
}

func (g *Group) afterPull(ctx context.Context, rec types.Record) (types.Record, error) {
	h := g.schema.Hooks
	if h.AfterPull != nil {
		if err := h.AfterPull(ctx, rec); err != nil {
			return nil, hookFailed("after pull", err)
		}
	}
	if h.TransformOut != nil {
		if err := h.TransformOut(ctx, rec); err != nil {
			return nil, hookFailed("transform out", err)
		}
	}
	return rec, nil
}

// Push validates props and inserts them, returning the new record ID.
// props is not modified; a failed validation returns *ValidationError.
func (g *Group) Push(ctx context.Context, props types.Record) (string, error) {
	props = props.Clone()
	if props == nil {
		props = types.Record{}
	}

	h := g.schema.Hooks
	if h.TransformIn != nil {
		if err := h.TransformIn(ctx, props); err != nil {
			return "", hookFailed("transform in", err)
		}
	}

	if err := g.validate(ctx, props, ""); err != nil {
		return "", err
	}

	if h.BeforePush != nil {
		if err := h.BeforePush(ctx, props); err != nil {
			return "", hookFailed("before push", err)
		}
	}

	id, err := g.conn.Push(ctx, g.name, g.schema.IDField, props)
	if err != nil {
		return "", err
	}

	if h.AfterPush != nil {
		if err := h.AfterPush(ctx, props, id); err != nil {
			return "", hookFailed("after push", err)
		}
	}
	return id, nil
}

// Update validates changed as a partial update of id and applies it.
func (g *Group) Update(ctx context.Context, id string, changed types.Record) error {
	if id == "" {
		return types.ErrNotFound
	}
	changed = changed.Clone()
	if changed == nil {
		changed = types.Record{}
	}

	h := g.schema.Hooks
	if h.TransformIn != nil {
		if err := h.TransformIn(ctx, changed); err != nil {
			return hookFailed("transform in", err)
		}
	}

	if err := g.validate(ctx, changed, id); err != nil {
		return err
	}

	if h.BeforeUpdate != nil {
		if err := h.BeforeUpdate(ctx, &id, changed); err != nil {
			return hookFailed("before update", err)
		}
	}

	if err := g.conn.Update(ctx, g.name, g.schema.IDField, id, changed); err != nil {
		return err
	}

	if h.AfterUpdate != nil {
		if err := h.AfterUpdate(ctx, id, changed); err != nil {
			return hookFailed("after update", err)
		}
	}
	return nil
}

func (g *Group) validate(ctx context.Context, props types.Record, existingID string) error {
	results, err := g.Validate(ctx, props, existingID)
	if err != nil {
		return fmt.Errorf("duplicate check: %w", err)
	}
	if !results.Valid() {
		g.logger.Debug("validation failed", "results", results.Strings())
		return &ValidationError{Group: g.name, Results: results}
	}
	return nil
}

// Delete removes one record.
func (g *Group) Delete(ctx context.Context, id string) error {
	h := g.schema.Hooks
	if h.BeforeDelete != nil {
		if err := h.BeforeDelete(ctx, &id); err != nil {
			return hookFailed("before delete", err)
		}
	}

	if err := g.conn.Delete(ctx, g.name, g.schema.IDField, id); err != nil {
		return err
	}

	if h.AfterDelete != nil {
		if err := h.AfterDelete(ctx, id); err != nil {
			return hookFailed("after delete", err)
		}
	}
	return nil
}

// DeleteMany removes every record matching where. Hooks do not run.
func (g *Group) DeleteMany(ctx context.Context, where *filter.Expr) error {
	return g.conn.DeleteMany(ctx, g.name, where)
}

// Count counts records matching where; nil counts all.
func (g *Group) Count(ctx context.Context, where *filter.Expr) (uint64, error) {
	return g.conn.Count(ctx, g.name, where)
}

// Search returns matching records. Empty q.Fields selects PullFields and an
// empty q.Order selects DefaultOrder. Records rejected by TransformOut are
// dropped from the result.
func (g *Group) Search(ctx context.Context, q storage.Query) ([]types.Record, error) {
	if len(q.Fields) == 0 {
		q.Fields = g.schema.PullFields
	}

	h := g.schema.Hooks
	if h.BeforeSearch != nil {
		if err := h.BeforeSearch(ctx, &q); err != nil {
			return nil, hookFailed("before search", err)
		}
	}

	if err := g.prepareOrder(&q); err != nil {
		return nil, err
	}

	rows, err := g.conn.Search(ctx, g.name, q)
	if err != nil {
		return nil, err
	}

	if h.AfterSearch != nil {
		if err := h.AfterSearch(ctx, &rows); err != nil {
			return nil, hookFailed("after search", err)
		}
	}

	if h.TransformOut == nil {
		return rows, nil
	}
	out := rows[:0]
	for _, rec := range rows {
		if err := h.TransformOut(ctx, rec); err != nil {
			g.logger.Debug("record dropped by transform", "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// FindOne returns the first matching record, or types.ErrNotFound.
// It runs the pull hooks after the read, like Pull.
func (g *Group) FindOne(ctx context.Context, q storage.Query) (types.Record, error) {
	if len(q.Fields) == 0 {
		q.Fields = g.schema.PullFields
	}
	if err := g.prepareOrder(&q); err != nil {
		return nil, err
	}

	rec, err := g.conn.FindOne(ctx, g.name, q)
	if err != nil {
		return nil, err
	}
	return g.afterPull(ctx, rec)
}

// prepareOrder applies the default order and rejects unknown order fields.
func (g *Group) prepareOrder(q *storage.Query) error {
	if len(q.Order) == 0 {
		q.Order = g.schema.DefaultOrder
	}
	for _, f := range q.Order.Fields() {
		if !g.schema.known(f) {
			return fmt.Errorf("%w: cannot order %s by %q", ErrUnknownField, g.name, f)
		}
	}
	return nil
}

// IsClientError reports whether err was caused by the caller's input rather
// than a storage or hook fault.
func IsClientError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrRejected)
}
