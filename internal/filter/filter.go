// internal/filter/filter.go
package filter

/*
 * Filter expression model.
 *
 * A filter is an ordered list of nodes. Each node is either a Condition
 * (field, operator, value) or a Group (a labelled nested Expr). Every node
 * carries the combinator that joins it to the previous sibling; the first
 * node's combinator is ignored.
 *
 * Key types:
 *   - Operator: comparison enum (Eq, Ne, Gt, Gte, Lt, Lte, Like)
 *   - Join: AND/OR combinator
 *   - Condition: single comparison
 *   - Group: nested expression under a synthetic label
 *   - Expr: ordered node list with builder methods
 *
 * Encoded keys: callers at the edge (query strings, literal maps) may still
 * use the sigil notation "|Field>=". ParseKey turns it into (Join, field,
 * Operator) once, so nothing past this file parses strings.
 */

import "strings"

// Operator is a comparison operator.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpLike
)

func (op Operator) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpLike:
		return "like"
	default:
		return "unknown"
	}
}

// Join combines a node with its previous sibling.
type Join int

const (
	And Join = iota
	Or
)

func (j Join) String() string {
	if j == Or {
		return "OR"
	}
	return "AND"
}

// Node is a Condition or a Group.
type Node interface {
	joiner() Join
}

// Condition compares one field against a value.
type Condition struct {
	Join  Join
	Field string
	Op    Operator
	Value any
}

func (c Condition) joiner() Join { return c.Join }

// Group nests an expression under a label.
// The label is not a column: it only scopes parameter names.
type Group struct {
	Join  Join
	Label string
	Expr  *Expr
}

func (g Group) joiner() Join { return g.Join }

// JoinOf returns the combinator of any node.
func JoinOf(n Node) Join {
	return n.joiner()
}

// Expr is an ordered filter expression.
type Expr struct {
	nodes []Node
}

// New returns an empty expression.
func New() *Expr {
	return &Expr{}
}

// Where appends an AND condition.
func (e *Expr) Where(field string, op Operator, value any) *Expr {
	e.nodes = append(e.nodes, Condition{Join: And, Field: field, Op: op, Value: value})
	return e
}

// OrWhere appends an OR condition.
func (e *Expr) OrWhere(field string, op Operator, value any) *Expr {
	e.nodes = append(e.nodes, Condition{Join: Or, Field: field, Op: op, Value: value})
	return e
}

// Group appends an AND-joined nested expression.
func (e *Expr) Group(label string, sub *Expr) *Expr {
	e.nodes = append(e.nodes, Group{Join: And, Label: label, Expr: sub})
	return e
}

// OrGroup appends an OR-joined nested expression.
func (e *Expr) OrGroup(label string, sub *Expr) *Expr {
	e.nodes = append(e.nodes, Group{Join: Or, Label: label, Expr: sub})
	return e
}

// Add appends an entry using the encoded key notation.
// A *Expr value makes the bare key a group label.
func (e *Expr) Add(key string, value any) *Expr {
	join, field, op := ParseKey(key)
	if sub, ok := value.(*Expr); ok {
		e.nodes = append(e.nodes, Group{Join: join, Label: field, Expr: sub})
		return e
	}
	e.nodes = append(e.nodes, Condition{Join: join, Field: field, Op: op, Value: value})
	return e
}

// Nodes returns the expression's nodes in insertion order.
func (e *Expr) Nodes() []Node {
	if e == nil {
		return nil
	}
	return e.nodes
}

// Len returns the number of top-level nodes.
func (e *Expr) Len() int {
	if e == nil {
		return 0
	}
	return len(e.nodes)
}

// IsEmpty reports whether the expression has no nodes. Nil-safe.
func (e *Expr) IsEmpty() bool {
	return e.Len() == 0
}

// Fields returns every condition field name, depth first.
// Group labels are not included.
func (e *Expr) Fields() []string {
	var out []string
	for _, n := range e.Nodes() {
		switch node := n.(type) {
		case Condition:
			out = append(out, node.Field)
		case Group:
			out = append(out, node.Expr.Fields()...)
		}
	}
	return out
}

// ParseKey splits an encoded key into its combinator, bare field and operator.
//
// Leading sigil: '|' OR, '&' or none AND.
// Trailing sigil: '>' '<' '>=' '<=' '!' '!=' '=' '*'; none means equality.
func ParseKey(key string) (Join, string, Operator) {
	join := And
	switch {
	case strings.HasPrefix(key, "|"):
		join = Or
		key = key[1:]
	case strings.HasPrefix(key, "&"):
		key = key[1:]
	}

	op := OpEq
	switch {
	case strings.HasSuffix(key, ">="):
		op, key = OpGte, key[:len(key)-2]
	case strings.HasSuffix(key, "<="):
		op, key = OpLte, key[:len(key)-2]
	case strings.HasSuffix(key, "!="):
		op, key = OpNe, key[:len(key)-2]
	case strings.HasSuffix(key, ">"):
		op, key = OpGt, key[:len(key)-1]
	case strings.HasSuffix(key, "<"):
		op, key = OpLt, key[:len(key)-1]
	case strings.HasSuffix(key, "!"):
		op, key = OpNe, key[:len(key)-1]
	case strings.HasSuffix(key, "*"):
		op, key = OpLike, key[:len(key)-1]
	case strings.HasSuffix(key, "="):
		key = key[:len(key)-1]
	}

	return join, key, op
}
