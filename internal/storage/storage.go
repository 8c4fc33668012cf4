// Package storage defines the connector contract every back end implements
// and the registry that opens and caches connectors by configured name.
package storage

import (
	"context"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/types"
)

// Query selects records for Search and FindOne.
// Empty Fields selects every column. Zero Limit or Offset means none.
type Query struct {
	Fields []string
	Filter *filter.Expr
	Order  filter.Order
	Limit  int
	Offset int
}

// Connector executes record operations against one back end.
//
// Every back-end failure leaves the connector as one of the types sentinels
// (ErrConnect, ErrQuery, ErrWrite, ErrNotFound, ErrBind). A connector owns a
// single handle; implementations document whether that handle is safe for
// concurrent use.
type Connector interface {
	// Open connects using attrs. An already open connector is closed first.
	Open(ctx context.Context, attrs types.Attributes) error
	Close() error

	Pull(ctx context.Context, group, idField, id string, fields []string) (types.Record, error)

	// Push inserts props under a freshly generated ID and returns the ID.
	Push(ctx context.Context, group, idField string, props types.Record) (string, error)

	Update(ctx context.Context, group, idField, id string, changed types.Record) error
	Delete(ctx context.Context, group, idField, id string) error
	DeleteMany(ctx context.Context, group string, where *filter.Expr) error
	Count(ctx context.Context, group string, where *filter.Expr) (uint64, error)
	Search(ctx context.Context, group string, q Query) ([]types.Record, error)

	// FindOne returns the first row of Search, or ErrNotFound.
	FindOne(ctx context.Context, group string, q Query) (types.Record, error)
}

// FirstOf implements FindOne on top of a connector's Search.
func FirstOf(ctx context.Context, c Connector, group string, q Query) (types.Record, error) {
	q.Limit = 1
	rows, err := c.Search(ctx, group, q)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	return rows[0], nil
}
