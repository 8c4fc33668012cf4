package group

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/solatis/groupstore/internal/filter"
)

// Spec declares a group from configuration. Lists are used instead of maps
// so field names keep their case through viper.
type Spec struct {
	Name         string     `mapstructure:"name"`
	IDField      string     `mapstructure:"id_field"`
	PullFields   []string   `mapstructure:"pull_fields"`
	DefaultOrder string     `mapstructure:"default_order"`
	SearchFields []string   `mapstructure:"search_fields"`
	Rules        []RuleSpec `mapstructure:"rules"`
	Unique       [][]string `mapstructure:"unique"`
}

// RuleSpec declares one field rule. Type is a Kind name other than custom.
type RuleSpec struct {
	Field    string   `mapstructure:"field"`
	Type     string   `mapstructure:"type"`
	Required bool     `mapstructure:"required"`
	Writable bool     `mapstructure:"writable"`
	Default  any      `mapstructure:"default"`
	Min      *float64 `mapstructure:"min"`
	Max      *float64 `mapstructure:"max"`
	Pattern  string   `mapstructure:"pattern"`
}

// Definition compiles s into a group definition. Every problem is reported, joined.
func (s Spec) Definition() (Definition, error) {
	var errs []error

	if !filter.ValidIdentifier(s.Name) {
		errs = append(errs, fmt.Errorf("group name %q is not an identifier", s.Name))
	}

	order, err := filter.ParseOrder(s.DefaultOrder)
	if err != nil {
		errs = append(errs, fmt.Errorf("group %s: default_order: %w", s.Name, err))
	}

	rules := make(map[string]Rule, len(s.Rules))
	for _, rs := range s.Rules {
		r, err := rs.rule()
		if err != nil {
			errs = append(errs, fmt.Errorf("group %s: %w", s.Name, err))
			continue
		}
		rules[rs.Field] = r
	}

	for _, key := range s.Unique {
		for _, f := range key {
			if _, ok := rules[f]; !ok {
				errs = append(errs, fmt.Errorf("group %s: unique field %q has no rule", s.Name, f))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &specDefinition{spec: s, order: order, rules: rules}, nil
}

func (rs RuleSpec) rule() (Rule, error) {
	if !filter.ValidIdentifier(rs.Field) {
		return Rule{}, fmt.Errorf("rule field %q is not an identifier", rs.Field)
	}
	kind, ok := ParseKind(rs.Type)
	if !ok {
		return Rule{}, fmt.Errorf("rule %s: unknown type %q", rs.Field, rs.Type)
	}

	var flags Flag
	if rs.Required {
		flags |= Required
	}
	if rs.Writable {
		flags |= Writable
	}

	r := newRule(kind, flags, nil)
	r.Min, r.Max = rs.Min, rs.Max
	if rs.Pattern != "" {
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %s: pattern: %w", rs.Field, err)
		}
		r.Pattern = re
	}

	if rs.Default != nil {
		if kind == KindHash {
			return Rule{}, fmt.Errorf("rule %s: hash rules take no default", rs.Field)
		}
		def, ok := r.Check(rs.Default, nil)
		if !ok {
			return Rule{}, fmt.Errorf("rule %s: default %v is not a valid %s", rs.Field, rs.Default, kind)
		}
		r.Default = def
	}
	return r, nil
}

type specDefinition struct {
	spec  Spec
	order filter.Order
	rules map[string]Rule
}

func (d *specDefinition) Name() string { return d.spec.Name }

func (d *specDefinition) SetUp(s *Schema) {
	if d.spec.IDField != "" {
		s.IDField = d.spec.IDField
	}
	s.PullFields = d.spec.PullFields
	s.DefaultOrder = d.order
	s.SearchFields = d.spec.SearchFields
	for field, r := range d.rules {
		s.AddRule(field, r)
	}
	for _, key := range d.spec.Unique {
		s.AddUnique(key...)
	}
}
