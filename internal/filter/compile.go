// internal/filter/compile.go
package filter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/groupstore/internal/types"
)

/*
 * Filter compilation.
 *
 * Turns an Expr into a parenthesised SQL boolean fragment plus the named
 * parameters it references. Compilation is pure: no I/O, no shared state.
 *
 * Parameter naming:
 *   - Leaf parameter name is prefix + field
 *   - A group extends the prefix with "<label>_" for its children
 *   - A name already taken gets the first free suffix "_2", "_3", ... in
 *     compilation order, so ranges over one field bind separately
 *
 * Leaf rendering:
 *   - nil with Eq/Ne renders IS / IS NOT, still bound to a parameter
 *   - Like binds "%" + value + "%"
 *   - everything else renders "<field> <op> :<name>"
 *   - field names go through the Quote hook; parameter names never do
 *
 * Siblings are joined by their own combinator and rely on SQL precedence
 * (AND binds tighter than OR). Groups are always parenthesised.
 */

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether s is safe to splice into SQL text.
func ValidIdentifier(s string) bool {
	return identPattern.MatchString(s)
}

// Quote renders a validated identifier for a SQL dialect.
// A nil Quote splices identifiers verbatim.
type Quote func(ident string) string

func (q Quote) apply(ident string) string {
	if q == nil {
		return ident
	}
	return q(ident)
}

// Compile renders expr as a SQL boolean fragment.
// Every ":name" in the fragment is a key of params and vice versa.
func Compile(expr *Expr, prefix string) (string, map[string]any, error) {
	return CompileQuoted(expr, prefix, nil)
}

// CompileQuoted is Compile with every field name rendered through quote.
func CompileQuoted(expr *Expr, prefix string, quote Quote) (string, map[string]any, error) {
	params := make(map[string]any)
	fragment, err := compileLevel(expr, prefix, params, quote, 0)
	if err != nil {
		return "", nil, err
	}
	return fragment, params, nil
}

func compileLevel(expr *Expr, prefix string, params map[string]any, quote Quote, depth int) (string, error) {
	if depth > types.MaxFilterDepth {
		return "", ErrFilterTooDeep
	}
	if expr.IsEmpty() {
		return "", ErrEmptyFilter
	}

	var b strings.Builder
	b.WriteByte('(')

	for i, n := range expr.Nodes() {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(JoinOf(n).String())
			b.WriteByte(' ')
		}

		switch node := n.(type) {
		case Condition:
			if !ValidIdentifier(node.Field) {
				return "", fmt.Errorf("%w: %q", ErrInvalidField, node.Field)
			}
			name := paramName(params, prefix+node.Field)
			fmt.Fprintf(&b, "%s %s :%s", quote.apply(node.Field), sqlOperator(node.Op, node.Value), name)
			params[name] = paramValue(node.Op, node.Value)

		case Group:
			if !ValidIdentifier(node.Label) {
				return "", fmt.Errorf("%w: group label %q", ErrInvalidField, node.Label)
			}
			sub, err := compileLevel(node.Expr, prefix+node.Label+"_", params, quote, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(sub)
		}
	}

	b.WriteByte(')')
	return b.String(), nil
}

// paramName returns base, or base with the first free numeric suffix.
func paramName(params map[string]any, base string) string {
	name := base
	for n := 2; ; n++ {
		if _, taken := params[name]; !taken {
			return name
		}
		name = base + "_" + strconv.Itoa(n)
	}
}

func sqlOperator(op Operator, value any) string {
	switch op {
	case OpEq:
		if value == nil {
			return "IS"
		}
		return "="
	case OpNe:
		if value == nil {
			return "IS NOT"
		}
		return "<>"
	case OpGt:
		return ">"
	case OpGte:
		return ">="
	case OpLt:
		return "<"
	case OpLte:
		return "<="
	case OpLike:
		return "LIKE"
	default:
		return "="
	}
}

func paramValue(op Operator, value any) any {
	if op != OpLike {
		return value
	}
	return "%" + likeOperand(value) + "%"
}

func likeOperand(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}
