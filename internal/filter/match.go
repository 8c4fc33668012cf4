// internal/filter/match.go
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/groupstore/internal/types"
)

/*
 * In-memory filter evaluation.
 *
 * Evaluates an Expr against a Record with the same meaning the compiled SQL
 * fragment has on a relational back end, for connectors that cannot run SQL.
 *
 * Precedence: siblings are split into runs at every OR combinator; a level
 * matches when every node of at least one run matches (AND binds tighter
 * than OR, as in SQL).
 *
 * Null semantics:
 *   - Eq nil / Ne nil test for absence (IS / IS NOT NULL)
 *   - any other comparison against a nil or missing field is false
 *
 * Comparison:
 *   - numbers compare numerically across int/uint/float kinds
 *   - numeric strings compare numerically against numbers
 *   - strings compare lexicographically
 *   - Like is a case-insensitive substring test
 */

// Match reports whether rec satisfies expr. A nil or empty expr matches everything.
func Match(expr *Expr, rec types.Record) bool {
	if expr.IsEmpty() {
		return true
	}

	run := true
	for i, n := range expr.Nodes() {
		if i > 0 && JoinOf(n) == Or {
			if run {
				return true
			}
			run = true
		}
		if !run {
			continue
		}
		run = matchNode(n, rec)
	}
	return run
}

func matchNode(n Node, rec types.Record) bool {
	switch node := n.(type) {
	case Condition:
		return matchCondition(node, rec[node.Field])
	case Group:
		return Match(node.Expr, rec)
	default:
		return false
	}
}

func matchCondition(c Condition, value any) bool {
	switch c.Op {
	case OpEq:
		if c.Value == nil {
			return value == nil
		}
		return value != nil && Equal(value, c.Value)
	case OpNe:
		if c.Value == nil {
			return value != nil
		}
		return value != nil && !Equal(value, c.Value)
	case OpLike:
		if value == nil {
			return false
		}
		return strings.Contains(strings.ToLower(toText(value)), strings.ToLower(likeOperand(c.Value)))
	}

	if value == nil || c.Value == nil {
		return false
	}
	cmp := Compare(value, c.Value)
	switch c.Op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// Equal performs equality comparison with numeric tolerance.
// Handles int/float mixing, numeric strings against numbers, and booleans
// against numbers stored as 0/1.
func Equal(a, b any) bool {
	if na, nb, ok := asNumbers(a, b); ok {
		return na == nb
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return ab == bb
		}
		if nb, ok := toFloat64(b); ok {
			return boolNumber(ab) == nb
		}
	}
	if bb, ok := b.(bool); ok {
		if na, ok := toFloat64(a); ok {
			return na == boolNumber(bb)
		}
	}
	if isText(a) && isText(b) {
		return toText(a) == toText(b)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Compare performs a three-way comparison (-1/0/1).
// nil sorts before everything, numbers before text.
func Compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}

	if na, nb, ok := asNumbers(a, b); ok {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}

	_, aNum := toFloat64(a)
	_, bNum := toFloat64(b)
	switch {
	case aNum && !bNum:
		return -1
	case bNum && !aNum:
		return 1
	}
	return strings.Compare(toText(a), toText(b))
}

// SortRecords sorts records in place by order. Stable: ties keep input order.
func SortRecords(records []types.Record, order Order) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, term := range order {
			cmp := Compare(records[i][term.Field], records[j][term.Field])
			if cmp == 0 {
				continue
			}
			if term.Direction == Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// asNumbers converts both values to float64 when both are numeric.
// A numeric string counts as numeric only when the other side is a real number.
func asNumbers(a, b any) (float64, float64, bool) {
	na, oka := toFloat64(a)
	nb, okb := toFloat64(b)
	switch {
	case oka && okb:
		return na, nb, true
	case oka && isText(b):
		nb, okb = parseNumber(toText(b))
		return na, nb, okb
	case okb && isText(a):
		na, oka = parseNumber(toText(a))
		return na, nb, oka
	}
	return 0, 0, false
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f, err == nil
}

// toFloat64 converts value to float64 if it is a Go numeric kind.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func isText(v any) bool {
	switch v.(type) {
	case string, []byte:
		return true
	default:
		return false
	}
}

func toText(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(v)
	}
}
