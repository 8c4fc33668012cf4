// internal/group/validate.go
package group

import (
	"context"
	"strconv"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/storage"
	"github.com/solatis/groupstore/internal/types"
)

/*
 * Property validation.
 *
 * Validate runs in two phases. The rule phase checks every supplied field
 * against its rule, applies defaults and replaces values with their coerced
 * form. The duplicate phase runs only when the rule phase produced no codes
 * and the group declares unique keys.
 *
 * Rule phase ordering for a ruled field:
 *   1. update and absent: skipped (partial update)
 *   2. update and not writable: IsNotWritable, whatever the value
 *   3. required and absent or nil: default when set, else IsRequired
 *   4. optional and nil or "": replaced by the default, which may be nil
 *   5. optional and absent on create: default inserted when set
 *   6. otherwise: Rule.Check, InvalidValue on failure
 *
 * Defaults are trusted and inserted without checks.
 */

// uniqueLabel is the synthetic group label wrapping the unique-key disjunction.
const uniqueLabel = "Unique"

// Validate checks props against the group's rules, mutating props in place.
// existingID is empty for creates and the record's ID for updates. The
// returned error is non-nil only when the duplicate search itself failed.
func (g *Group) Validate(ctx context.Context, props types.Record, existingID string) (Results, error) {
	results := Results{}
	update := existingID != ""

	for field := range props {
		if field == g.schema.IDField {
			results[field] = IsNotWritable
			continue
		}
		if _, ok := g.schema.rules[field]; !ok {
			results[field] = RuleNotFound
		}
	}

	for _, field := range g.schema.Fields() {
		rule := g.schema.rules[field]
		value, present := props[field]

		if update && !present {
			continue
		}

		if update && !rule.Writable {
			results[field] = IsNotWritable
			continue
		}

		if rule.Required && value == nil {
			if rule.Default == nil {
				results[field] = IsRequired
			} else {
				props[field] = rule.Default
			}
			continue
		}

		if !present {
			if rule.Default != nil {
				props[field] = rule.Default
			}
			continue
		}

		if !rule.Required && (value == nil || value == "") {
			props[field] = rule.Default
			continue
		}

		coerced, ok := rule.Check(value, props)
		if !ok {
			results[field] = InvalidValue
			continue
		}
		props[field] = coerced
	}

	if !results.Valid() || len(g.schema.unique) == 0 {
		return results, nil
	}

	if err := g.findDuplicates(ctx, props, existingID, results); err != nil {
		return nil, err
	}
	return results, nil
}

// findDuplicates searches for one stored record sharing a complete unique
// key with props and flags every possible-duplicate field whose value
// matches it. The connector is queried directly so hooks do not run.
func (g *Group) findDuplicates(ctx context.Context, props types.Record, existingID string, results Results) error {
	keys := filter.New()
	for i, fields := range g.schema.unique {
		key := filter.New()
		for _, f := range fields {
			v := props[f]
			if v == nil {
				key = nil
				break
			}
			key.Where(f, filter.OpEq, v)
		}
		if key != nil {
			keys.OrGroup(uniqueLabel+strconv.Itoa(i), key)
		}
	}
	if keys.IsEmpty() {
		return nil
	}

	where := filter.New().Group(uniqueLabel, keys)
	if existingID != "" {
		where.Where(g.schema.IDField, filter.OpNe, existingID)
	}

	rows, err := g.conn.Search(ctx, g.name, storage.Query{
		Fields: g.schema.duplicates,
		Filter: where,
		Limit:  1,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	for _, f := range g.schema.duplicates {
		v, ok := props[f]
		if !ok || v == nil {
			continue
		}
		if filter.Equal(v, rows[0][f]) {
			results[f] = DuplicateFound
		}
	}
	return nil
}
