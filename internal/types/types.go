// Package types provides domain models shared across groupstore components.
//
// Zero-dependency design: types.go and errors.go use only the standard library
// so connectors, the filter compiler and record groups can share them without
// import cycles. ID generation in ids.go imports uuid and is isolated there.
package types

import "sort"

// Record is a single stored object: field name to value.
// Values are Go-native scalars (string, int64, float64, bool, nil) or
// structured values (slices, maps) that connectors serialize as JSON.
type Record map[string]any

// Clone returns a shallow copy so callers can mutate without aliasing.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Has reports whether the field is present, even when its value is nil.
func (r Record) Has(field string) bool {
	_, ok := r[field]
	return ok
}

// Fields returns the record's field names in sorted order.
// Sorted output keeps generated statements deterministic.
func (r Record) Fields() []string {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Project returns a copy restricted to the named fields.
// Missing fields are returned as nil so every row has the same shape.
func (r Record) Project(fields []string) Record {
	if len(fields) == 0 {
		return r.Clone()
	}
	out := make(Record, len(fields))
	for _, f := range fields {
		out[f] = r[f]
	}
	return out
}

// Attributes are free-form connector settings (credentials, paths, prefixes).
type Attributes map[string]string

// Resource limits enforced by the filter compiler and the query-string decoder.
const (
	// MaxFilterDepth bounds recursion through nested filter groups.
	// Filters are literal caller-built structures; 16 levels is far beyond real use.
	MaxFilterDepth = 16

	// MaxSearchLimit caps LimitBy values arriving from query strings.
	MaxSearchLimit = 10000

	// DefaultIDField is the primary-key field name when a group does not set one.
	DefaultIDField = "ID"
)
