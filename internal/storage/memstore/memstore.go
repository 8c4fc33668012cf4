// Package memstore implements an in-memory storage connector.
// Filters are evaluated with filter.Match; records live until Close.
package memstore

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// ConnectorName is the configuration tag for this connector.
const ConnectorName = "Memory"

type row struct {
	seq uint64
	rec types.Record
}

type table struct {
	rows map[string]row
	next uint64
}

// Store is safe for concurrent use.
type Store struct {
	logger *slog.Logger

	mu     sync.RWMutex
	open   bool
	tables map[string]*table
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

func (s *Store) Open(ctx context.Context, attrs types.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = make(map[string]*table)
	s.open = true
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = nil
	s.open = false
	return nil
}

func (s *Store) Pull(ctx context.Context, group, idField, id string, fields []string) (types.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		return nil, types.ErrNotFound
	}
	r, ok := t.rows[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return r.rec.Project(fields), nil
}

func (s *Store) Push(ctx context.Context, group, idField string, props types.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return "", types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		t = &table{rows: make(map[string]row)}
		s.tables[group] = t
	}

	id := types.NewRecordID(group)
	rec := make(types.Record, len(props)+1)
	for k, v := range props {
		rec[k] = v
	}
	rec[idField] = id
	t.next++
	t.rows[id] = row{seq: t.next, rec: rec}

	s.logger.Debug("record pushed", "group", group, "id", id)
	return id, nil
}

func (s *Store) Update(ctx context.Context, group, idField, id string, changed types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		return types.ErrNotFound
	}
	r, ok := t.rows[id]
	if !ok {
		return types.ErrNotFound
	}
	for k, v := range changed {
		if k == idField {
			continue
		}
		r.rec[k] = v
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, group, idField, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		return types.ErrNotFound
	}
	if _, ok := t.rows[id]; !ok {
		return types.ErrNotFound
	}
	delete(t.rows, id)
	return nil
}

// DeleteMany refuses an empty filter rather than truncating the table.
func (s *Store) DeleteMany(ctx context.Context, group string, where *filter.Expr) error {
	if err := checkFilter(where); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		return nil
	}
	for id, r := range t.rows {
		if filter.Match(where, r.rec) {
			delete(t.rows, id)
		}
	}
	return nil
}

func (s *Store) Count(ctx context.Context, group string, where *filter.Expr) (uint64, error) {
	if !where.IsEmpty() {
		if err := checkFilter(where); err != nil {
			return 0, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return 0, types.ErrNotOpen
	}

	var n uint64
	if t := s.tables[group]; t != nil {
		for _, r := range t.rows {
			if filter.Match(where, r.rec) {
				n++
			}
		}
	}
	return n, nil
}

func (s *Store) Search(ctx context.Context, group string, q storage.Query) ([]types.Record, error) {
	if !q.Filter.IsEmpty() {
		if err := checkFilter(q.Filter); err != nil {
			return nil, err
		}
	}
	if err := q.Order.Validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.open {
		return nil, types.ErrNotOpen
	}

	t := s.tables[group]
	if t == nil {
		return []types.Record{}, nil
	}

	matched := make([]row, 0, len(t.rows))
	for _, r := range t.rows {
		if filter.Match(q.Filter, r.rec) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	records := make([]types.Record, len(matched))
	for i, r := range matched {
		records[i] = r.rec
	}
	filter.SortRecords(records, q.Order)

	records = page(records, q.Limit, q.Offset)
	out := make([]types.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Project(q.Fields)
	}
	return out, nil
}

func (s *Store) FindOne(ctx context.Context, group string, q storage.Query) (types.Record, error) {
	return storage.FirstOf(ctx, s, group, q)
}

// checkFilter applies the compiler's emptiness, identifier and depth checks
// without rendering SQL.
func checkFilter(where *filter.Expr) error {
	_, _, err := filter.Compile(where, "")
	return err
}

func page(records []types.Record, limit, offset int) []types.Record {
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}
