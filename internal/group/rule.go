// internal/group/rule.go
package group

import (
	"regexp"

	"github.com/solatis/groupstore/internal/types"
)

/*
 * Field rules.
 *
 * A Rule decides whether one incoming field value is acceptable. Rules are
 * built with the kind constructors (Integer, Text, ...) plus options and are
 * registered on a Schema during SetUp. They never change afterwards.
 *
 * Kinds:
 *   - Integer, Float: numeric with optional inclusive Min/Max
 *   - Text: strings only, optional Pattern
 *   - Boolean: bool only
 *   - Date: unix seconds; accepts numbers, time.Time, RFC3339 or YYYY-MM-DD
 *   - Time: seconds since midnight; accepts numbers or HH:MM[:SS]
 *   - Hash: 64-character hex digest
 *   - Custom: delegated to a CustomFunc
 */

// Kind selects how a value is checked and coerced.
type Kind int

const (
	KindInteger Kind = iota + 1
	KindFloat
	KindText
	KindBoolean
	KindDate
	KindTime
	KindHash
	KindCustom Kind = 99
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindTime:
		return "time"
	case KindHash:
		return "hash"
	case KindCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration name to a Kind. Custom kinds need code and
// cannot be declared from configuration.
func ParseKind(name string) (Kind, bool) {
	for k := KindInteger; k <= KindHash; k++ {
		if k.String() == name {
			return k, true
		}
	}
	return 0, false
}

// Flag marks a rule as required and/or writable after creation.
type Flag uint8

const (
	Required Flag = 1 << iota
	Writable
)

// CustomFunc validates a value for a Custom rule. props is the full incoming
// property set after earlier defaults were applied.
type CustomFunc func(value any, props types.Record) bool

// Rule describes one field.
type Rule struct {
	Kind     Kind
	Required bool
	Writable bool
	Default  any
	Min      *float64
	Max      *float64
	Pattern  *regexp.Regexp
	Custom   CustomFunc
}

// RuleOption adjusts a Rule during construction.
type RuleOption func(*Rule)

// WithDefault sets the value used when the field is absent or empty.
func WithDefault(v any) RuleOption {
	return func(r *Rule) { r.Default = v }
}

// WithMin sets an inclusive lower bound for numeric, date and time rules.
func WithMin(lo float64) RuleOption {
	return func(r *Rule) { r.Min = &lo }
}

// WithMax sets an inclusive upper bound for numeric, date and time rules.
func WithMax(hi float64) RuleOption {
	return func(r *Rule) { r.Max = &hi }
}

// WithRange sets both bounds.
func WithRange(lo, hi float64) RuleOption {
	return func(r *Rule) {
		r.Min = &lo
		r.Max = &hi
	}
}

// WithPattern requires text values to match re.
func WithPattern(re *regexp.Regexp) RuleOption {
	return func(r *Rule) { r.Pattern = re }
}

func newRule(kind Kind, flags Flag, opts []RuleOption) Rule {
	r := Rule{
		Kind:     kind,
		Required: flags&Required != 0,
		Writable: flags&Writable != 0,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

func Integer(flags Flag, opts ...RuleOption) Rule { return newRule(KindInteger, flags, opts) }
func Float(flags Flag, opts ...RuleOption) Rule   { return newRule(KindFloat, flags, opts) }
func Text(flags Flag, opts ...RuleOption) Rule    { return newRule(KindText, flags, opts) }
func Boolean(flags Flag, opts ...RuleOption) Rule { return newRule(KindBoolean, flags, opts) }
func Date(flags Flag, opts ...RuleOption) Rule    { return newRule(KindDate, flags, opts) }
func Time(flags Flag, opts ...RuleOption) Rule    { return newRule(KindTime, flags, opts) }

// Hash rules never carry a default.
func Hash(flags Flag) Rule { return newRule(KindHash, flags, nil) }

// Custom builds a rule checked by fn.
func Custom(flags Flag, fn CustomFunc, opts ...RuleOption) Rule {
	r := newRule(KindCustom, flags, opts)
	r.Custom = fn
	return r
}

// Check coerces value according to the rule. The boolean is false when the
// value is unacceptable; the returned value replaces the input on success.
func (r Rule) Check(value any, props types.Record) (any, bool) {
	var (
		out any
		err error
	)

	switch r.Kind {
	case KindInteger:
		out, err = coerceInteger(value)
	case KindFloat:
		out, err = coerceFloat(value)
	case KindText:
		out, err = coerceText(value, r.Pattern)
	case KindBoolean:
		out, err = coerceBoolean(value)
	case KindDate:
		out, err = coerceDate(value)
	case KindTime:
		out, err = coerceTime(value)
	case KindHash:
		out, err = coerceHash(value)
	case KindCustom:
		if r.Custom == nil || !r.Custom(value, props) {
			return nil, false
		}
		return value, true
	default:
		return nil, false
	}
	if err != nil {
		return nil, false
	}

	if !r.inRange(out) {
		return nil, false
	}
	return out, true
}

func (r Rule) inRange(v any) bool {
	var f float64
	switch n := v.(type) {
	case int64:
		f = float64(n)
	case float64:
		f = n
	default:
		return true
	}
	if r.Min != nil && f < *r.Min {
		return false
	}
	if r.Max != nil && f > *r.Max {
		return false
	}
	return true
}
