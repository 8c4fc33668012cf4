// Package sqlstore implements the storage connector for relational back ends.
//
// Supports SQLite and PostgreSQL via sqlx. Statements are named templates in
// embedded .sql files (loaded with dotsql); filters and orders are compiled
// by the filter package and every value goes through Bind before execution.
// Placeholders are written as ":name" and expanded with sqlx.Named, then
// rebound to the driver's bindvar style.
package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// ConnectorName is the configuration tag for this connector.
const ConnectorName = "SQL"

// Store is safe for concurrent use.
type Store struct {
	logger *slog.Logger

	mu      sync.RWMutex
	db      *sqlx.DB
	dialect dialect
	prefix  string
	stmts   *statements
}

// New returns an unopened store.
func New(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger}
}

// Factory adapts New to storage.Factory.
func Factory(logger *slog.Logger) storage.Connector {
	return New(logger)
}

// Open connects using the attributes described by the Attr constants.
func (s *Store) Open(ctx context.Context, attrs types.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("close before reopen failed", "error", err)
		}
		s.db = nil
	}

	if s.stmts == nil {
		stmts, err := loadStatements()
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrConnect, err)
		}
		s.stmts = stmts
	}

	d, err := dialectFor(attrs[AttrType])
	if err != nil {
		return err
	}
	prefix := attrs[AttrTablePrefix]
	if prefix != "" && !filter.ValidIdentifier(prefix) {
		return fmt.Errorf("%w: invalid table prefix %q", types.ErrConnect, prefix)
	}
	dsn, err := d.dataSource(attrs)
	if err != nil {
		return err
	}

	db, err := openDB(d, dsn)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("%w: failed to ping database: %v", types.ErrConnect, err)
	}

	s.db = db
	s.dialect = d
	s.prefix = prefix
	s.logger.Debug("database opened", "dialect", d.name)
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) handle() (*sqlx.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, types.ErrNotOpen
	}
	return s.db, nil
}

// current returns the open dialect and table prefix.
func (s *Store) current() (dialect, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dialect, s.prefix
}

func (s *Store) table(group string) (string, error) {
	if !filter.ValidIdentifier(group) {
		return "", fmt.Errorf("%w: %q", filter.ErrInvalidField, group)
	}
	d, prefix := s.current()
	return d.quote(prefix + group), nil
}

func fieldList(d dialect, fields []string) (string, error) {
	if len(fields) == 0 {
		return "*", nil
	}
	quoted := make([]string, len(fields))
	for i, f := range fields {
		if !filter.ValidIdentifier(f) {
			return "", fmt.Errorf("%w: %q", filter.ErrInvalidField, f)
		}
		quoted[i] = d.quote(f)
	}
	return strings.Join(quoted, ", "), nil
}

func (s *Store) Pull(ctx context.Context, group, idField, id string, fields []string) (types.Record, error) {
	stmt, err := s.byID(stmtPull, group, idField, id, fields)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, types.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) Push(ctx context.Context, group, idField string, props types.Record) (string, error) {
	id := types.NewRecordID(group)

	values := props.Clone()
	if values == nil {
		values = types.Record{}
	}
	values[idField] = id

	stmt, err := s.renderColumns(stmtPush, group, idField, values.Fields())
	if err != nil {
		return "", err
	}
	if err := stmt.BindAll(values); err != nil {
		return "", s.bindFailed(err)
	}
	if _, err := s.exec(ctx, stmt); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Update(ctx context.Context, group, idField, id string, changed types.Record) error {
	values := changed.Clone()
	delete(values, idField)
	if len(values) == 0 {
		return nil
	}

	stmt, err := s.renderColumns(stmtUpdate, group, idField, values.Fields())
	if err != nil {
		return err
	}
	if err := stmt.BindAll(values); err != nil {
		return s.bindFailed(err)
	}
	if err := Bind(stmt, idParam, id); err != nil {
		return s.bindFailed(err)
	}

	n, err := s.exec(ctx, stmt)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, group, idField, id string) error {
	stmt, err := s.byID(stmtDelete, group, idField, id, nil)
	if err != nil {
		return err
	}
	n, err := s.exec(ctx, stmt)
	if err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteMany refuses an empty filter rather than truncating the table.
func (s *Store) DeleteMany(ctx context.Context, group string, where *filter.Expr) error {
	if where.IsEmpty() {
		return filter.ErrEmptyFilter
	}
	stmt, err := s.filtered(stmtDeleteMany, group, storage.Query{Filter: where})
	if err != nil {
		return err
	}
	_, err = s.exec(ctx, stmt)
	return err
}

func (s *Store) Count(ctx context.Context, group string, where *filter.Expr) (uint64, error) {
	stmt, err := s.filtered(stmtCount, group, storage.Query{Filter: where})
	if err != nil {
		return 0, err
	}

	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	query, args, err := s.expand(db, stmt)
	if err != nil {
		return 0, s.failed(types.ErrQuery, stmt, err)
	}

	var n uint64
	if err := db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, s.failed(types.ErrQuery, stmt, err)
	}
	return n, nil
}

func (s *Store) Search(ctx context.Context, group string, q storage.Query) ([]types.Record, error) {
	stmt, err := s.filtered(stmtSearch, group, q)
	if err != nil {
		return nil, err
	}
	return s.query(ctx, stmt)
}

func (s *Store) FindOne(ctx context.Context, group string, q storage.Query) (types.Record, error) {
	return storage.FirstOf(ctx, s, group, q)
}

// byID renders a statement addressing one record and binds its ID.
func (s *Store) byID(name, group, idField, id string, fields []string) (*Statement, error) {
	table, err := s.table(group)
	if err != nil {
		return nil, err
	}
	if !filter.ValidIdentifier(idField) {
		return nil, fmt.Errorf("%w: %q", filter.ErrInvalidField, idField)
	}
	d, _ := s.current()
	list, err := fieldList(d, fields)
	if err != nil {
		return nil, err
	}

	stmt, err := s.render(name, statementData{Table: table, IDField: d.quote(idField), IDParam: idParam, Fields: list})
	if err != nil {
		return nil, err
	}
	if err := Bind(stmt, idParam, id); err != nil {
		return nil, s.bindFailed(err)
	}
	return stmt, nil
}

// renderColumns renders a statement over an explicit column list.
func (s *Store) renderColumns(name, group, idField string, columns []string) (*Statement, error) {
	table, err := s.table(group)
	if err != nil {
		return nil, err
	}
	for _, c := range append([]string{idField}, columns...) {
		if !filter.ValidIdentifier(c) {
			return nil, fmt.Errorf("%w: %q", filter.ErrInvalidField, c)
		}
	}
	d, _ := s.current()
	cols := make([]column, len(columns))
	for i, c := range columns {
		cols[i] = column{Ident: d.quote(c), Param: c}
	}
	return s.render(name, statementData{Table: table, IDField: d.quote(idField), IDParam: idParam, Columns: cols})
}

// filtered renders a statement with an optional WHERE, ORDER BY and page suffix.
func (s *Store) filtered(name, group string, q storage.Query) (*Statement, error) {
	table, err := s.table(group)
	if err != nil {
		return nil, err
	}
	d, _ := s.current()
	list, err := fieldList(d, q.Fields)
	if err != nil {
		return nil, err
	}
	if err := q.Order.Validate(); err != nil {
		return nil, err
	}

	data := statementData{
		Table:  table,
		Fields: list,
		Order:  q.Order.CompileQuoted(d.quote),
		Page:   d.page(q.Limit, q.Offset),
	}

	var params map[string]any
	if !q.Filter.IsEmpty() {
		var where string
		where, params, err = filter.CompileQuoted(q.Filter, "", d.quote)
		if err != nil {
			return nil, err
		}
		data.Where = d.where(where)
	}

	stmt, err := s.render(name, data)
	if err != nil {
		return nil, err
	}
	if err := stmt.BindAll(params); err != nil {
		return nil, s.bindFailed(err)
	}
	return stmt, nil
}

func (s *Store) render(name string, data statementData) (*Statement, error) {
	s.mu.RLock()
	stmts := s.stmts
	s.mu.RUnlock()
	if stmts == nil {
		return nil, types.ErrNotOpen
	}
	return stmts.render(name, data)
}

// expand turns ":name" placeholders into the driver's bindvars.
func (s *Store) expand(db *sqlx.DB, stmt *Statement) (string, []any, error) {
	query, args, err := sqlx.Named(stmt.Text, stmt.Params)
	if err != nil {
		return "", nil, err
	}
	s.logger.Debug("statement prepared", "statement", stmt.Name, "sql", stmt.Text)
	return db.Rebind(query), args, nil
}

func (s *Store) exec(ctx context.Context, stmt *Statement) (int64, error) {
	db, err := s.handle()
	if err != nil {
		return 0, err
	}
	query, args, err := s.expand(db, stmt)
	if err != nil {
		return 0, s.failed(types.ErrWrite, stmt, err)
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, s.failed(types.ErrWrite, stmt, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, s.failed(types.ErrWrite, stmt, err)
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, stmt *Statement) ([]types.Record, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	query, args, err := s.expand(db, stmt)
	if err != nil {
		return nil, s.failed(types.ErrQuery, stmt, err)
	}

	rows, err := db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, s.failed(types.ErrQuery, stmt, err)
	}
	defer rows.Close()

	out := []types.Record{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, s.failed(types.ErrQuery, stmt, err)
		}
		out = append(out, normalize(row))
	}
	if err := rows.Err(); err != nil {
		return nil, s.failed(types.ErrQuery, stmt, err)
	}
	return out, nil
}

// normalize converts driver text columns returned as []byte into strings.
func normalize(row map[string]any) types.Record {
	rec := make(types.Record, len(row))
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		rec[k] = v
	}
	return rec
}

// failed logs a statement failure and wraps it for the caller.
func (s *Store) failed(kind error, stmt *Statement, err error) error {
	s.logger.Error("statement failed",
		"statement", stmt.Text,
		"params", stmt.Params,
		"error", err)
	return &types.StatementError{Kind: kind, Statement: stmt.Text, Params: stmt.Params, Err: err}
}

func (s *Store) bindFailed(err error) error {
	var be *types.BindError
	if errors.As(err, &be) {
		s.logger.Error("parameter bind failed",
			"statement", be.Statement,
			"param", be.Name,
			"type", fmt.Sprintf("%T", be.Value))
	}
	return err
}
