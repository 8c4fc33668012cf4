package group

import (
	"context"
	"sort"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

// Definition declares a record group. SetUp runs once per Group instance and
// registers rules, unique keys and hooks on the schema.
type Definition interface {
	Name() string
	SetUp(s *Schema)
}

// Hooks are optional callbacks around group operations. A non-nil error
// aborts the operation and is returned to the caller wrapped. Pointer
// arguments may be rewritten by the hook.
type Hooks struct {
	BeforePull   func(ctx context.Context, id *string, fields *[]string) error
	AfterPull    func(ctx context.Context, rec types.Record) error
	BeforePush   func(ctx context.Context, props types.Record) error
	AfterPush    func(ctx context.Context, props types.Record, id string) error
	BeforeUpdate func(ctx context.Context, id *string, changed types.Record) error
	AfterUpdate  func(ctx context.Context, id string, changed types.Record) error
	BeforeDelete func(ctx context.Context, id *string) error
	AfterDelete  func(ctx context.Context, id string) error
	BeforeSearch func(ctx context.Context, q *storage.Query) error
	AfterSearch  func(ctx context.Context, rows *[]types.Record) error

	// TransformIn rewrites incoming properties before validation.
	TransformIn func(ctx context.Context, props types.Record) error

	// TransformOut rewrites outgoing records. Search drops records it rejects.
	TransformOut func(ctx context.Context, rec types.Record) error
}

// Schema is the fixed configuration of a group.
type Schema struct {
	// IDField names the primary key. Defaults to types.DefaultIDField.
	IDField string

	// PullFields is the projection used when a caller names no fields.
	// Empty means every field.
	PullFields []string

	// DefaultOrder applies to searches without an explicit order.
	// Defaults to IDField ascending.
	DefaultOrder filter.Order

	// SearchFields are matched by the free-text Search query parameter.
	SearchFields []string

	Hooks Hooks

	rules      map[string]Rule
	unique     [][]string
	duplicates []string
}

func newSchema() *Schema {
	return &Schema{
		IDField: types.DefaultIDField,
		rules:   make(map[string]Rule),
	}
}

// AddRule registers the rule for field, replacing any earlier one.
// Rules for the ID field are ignored: the primary key is never writable.
func (s *Schema) AddRule(field string, r Rule) {
	if field == s.IDField {
		return
	}
	s.rules[field] = r
}

// AddUnique registers a unique key. Several fields form a composite key.
func (s *Schema) AddUnique(fields ...string) {
	if len(fields) == 0 {
		return
	}
	for _, f := range fields {
		if !contains(s.duplicates, f) {
			s.duplicates = append(s.duplicates, f)
		}
	}
	s.unique = append(s.unique, append([]string(nil), fields...))
}

// Rule returns the rule registered for field.
func (s *Schema) Rule(field string) (Rule, bool) {
	r, ok := s.rules[field]
	return r, ok
}

// Fields returns the ruled field names, sorted.
func (s *Schema) Fields() []string {
	names := make([]string, 0, len(s.rules))
	for name := range s.rules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UniqueKeys returns the registered unique keys in registration order.
func (s *Schema) UniqueKeys() [][]string {
	out := make([][]string, len(s.unique))
	for i, key := range s.unique {
		out[i] = append([]string(nil), key...)
	}
	return out
}

// known reports whether field is the ID or has a rule.
func (s *Schema) known(field string) bool {
	if field == s.IDField {
		return true
	}
	_, ok := s.rules[field]
	return ok
}

// finish applies defaults that depend on fields set during SetUp.
func (s *Schema) finish() {
	if s.IDField == "" {
		s.IDField = types.DefaultIDField
	}
	delete(s.rules, s.IDField)
	if len(s.DefaultOrder) == 0 {
		s.DefaultOrder = filter.Order{filter.Asc(s.IDField)}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
