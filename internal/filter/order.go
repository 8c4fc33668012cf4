package filter

import (
	"fmt"
	"strings"
)

// Direction is a sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// OrderTerm sorts by one field.
type OrderTerm struct {
	Field     string
	Direction Direction
}

// Asc returns an ascending term.
func Asc(field string) OrderTerm {
	return OrderTerm{Field: field, Direction: Ascending}
}

// Desc returns a descending term.
func Desc(field string) OrderTerm {
	return OrderTerm{Field: field, Direction: Descending}
}

// Order is an ordered list of sort terms. Earlier terms take precedence.
type Order []OrderTerm

// Compile renders the order as a SQL ORDER BY list (without the keywords).
// An empty order compiles to the empty string. Field names are spliced
// verbatim; run Validate first on anything caller supplied.
func (o Order) Compile() string {
	return o.CompileQuoted(nil)
}

// CompileQuoted is Compile with every field name rendered through quote.
func (o Order) CompileQuoted(quote Quote) string {
	parts := make([]string, 0, len(o))
	for _, term := range o {
		parts = append(parts, quote.apply(term.Field)+" "+term.Direction.String())
	}
	return strings.Join(parts, ", ")
}

// Validate checks every field name is an identifier.
func (o Order) Validate() error {
	for _, term := range o {
		if !ValidIdentifier(term.Field) {
			return fmt.Errorf("%w: order field %q", ErrInvalidField, term.Field)
		}
	}
	return nil
}

// Fields returns the ordered field names.
func (o Order) Fields() []string {
	out := make([]string, len(o))
	for i, term := range o {
		out[i] = term.Field
	}
	return out
}

// ParseOrder parses the wire form "Field[:dir],Field[:dir]".
// dir "0" is descending; any other value, or none, is ascending.
func ParseOrder(s string) (Order, error) {
	var out Order
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		field, dir, _ := strings.Cut(item, ":")
		term := Asc(field)
		if strings.TrimSpace(dir) == "0" {
			term.Direction = Descending
		}
		if !ValidIdentifier(field) {
			return nil, fmt.Errorf("%w: order field %q", ErrInvalidField, field)
		}
		out = append(out, term)
	}
	return out, nil
}
