package dynamostore

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/solatis/groupstore/internal/filter"
	"github.com/solatis/groupstore/internal/types"
)

// expression accumulates the placeholder maps shared by the condition,
// projection and update expressions of one request.
type expression struct {
	names   map[string]string
	values  map[string]ddbtypes.AttributeValue
	aliases map[string]string
}

func newExpression() *expression {
	return &expression{
		names:   make(map[string]string),
		values:  make(map[string]ddbtypes.AttributeValue),
		aliases: make(map[string]string),
	}
}

// name returns the #alias for an attribute name, reusing earlier aliases.
func (e *expression) name(field string) string {
	if alias, ok := e.aliases[field]; ok {
		return alias
	}
	alias := "#n" + strconv.Itoa(len(e.aliases))
	e.aliases[field] = alias
	e.names[alias] = field
	return alias
}

// value marshals v and returns its :placeholder.
func (e *expression) value(field string, v any) (string, error) {
	av, err := attributevalue.Marshal(v)
	if err != nil || av == nil {
		return "", &types.BindError{Name: field, Statement: "expression", Value: v}
	}
	return e.raw(av), nil
}

func (e *expression) raw(av ddbtypes.AttributeValue) string {
	placeholder := ":v" + strconv.Itoa(len(e.values))
	e.values[placeholder] = av
	return placeholder
}

// Names returns the alias map, nil when empty.
func (e *expression) Names() map[string]string {
	if len(e.names) == 0 {
		return nil
	}
	return e.names
}

// Values returns the placeholder map, nil when empty.
func (e *expression) Values() map[string]ddbtypes.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}

// projection renders a ProjectionExpression, empty for all attributes.
func (e *expression) projection(fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = e.name(f)
	}
	return strings.Join(parts, ", ")
}

// condition renders a filter as a DynamoDB condition expression.
// Precedence matches SQL (AND over OR); groups are parenthesised.
func (e *expression) condition(expr *filter.Expr, depth int) (string, error) {
	if depth > types.MaxFilterDepth {
		return "", filter.ErrFilterTooDeep
	}
	if expr.IsEmpty() {
		return "", filter.ErrEmptyFilter
	}

	var b strings.Builder
	b.WriteByte('(')
	for i, n := range expr.Nodes() {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(filter.JoinOf(n).String())
			b.WriteByte(' ')
		}

		switch node := n.(type) {
		case filter.Condition:
			term, err := e.term(node)
			if err != nil {
				return "", err
			}
			b.WriteString(term)
		case filter.Group:
			sub, err := e.condition(node.Expr, depth+1)
			if err != nil {
				return "", err
			}
			b.WriteString(sub)
		}
	}
	b.WriteByte(')')
	return b.String(), nil
}

func (e *expression) term(c filter.Condition) (string, error) {
	name := e.name(c.Field)

	if c.Value == nil && (c.Op == filter.OpEq || c.Op == filter.OpNe) {
		null := e.raw(&ddbtypes.AttributeValueMemberS{Value: "NULL"})
		if c.Op == filter.OpEq {
			return fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, %s))", name, name, null), nil
		}
		return fmt.Sprintf("(attribute_exists(%s) AND NOT attribute_type(%s, %s))", name, name, null), nil
	}

	operand := c.Value
	if c.Op == filter.OpLike {
		operand = fmt.Sprint(c.Value)
	}
	value, err := e.value(c.Field, operand)
	if err != nil {
		return "", err
	}

	switch c.Op {
	case filter.OpEq:
		return name + " = " + value, nil
	case filter.OpNe:
		return name + " <> " + value, nil
	case filter.OpGt:
		return name + " > " + value, nil
	case filter.OpGte:
		return name + " >= " + value, nil
	case filter.OpLt:
		return name + " < " + value, nil
	case filter.OpLte:
		return name + " <= " + value, nil
	case filter.OpLike:
		return "contains(" + name + ", " + value + ")", nil
	default:
		return "", fmt.Errorf("unsupported operator %v", c.Op)
	}
}
