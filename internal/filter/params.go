package filter

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/solatis/groupstore/internal/types"
)

// Reserved query parameter names.
const (
	ParamOrderBy  = "OrderBy"
	ParamLimitBy  = "LimitBy"
	ParamOffsetBy = "OffsetBy"
	ParamSearch   = "Search"

	// AutoSearchLabel scopes the parameters of the Search disjunction.
	AutoSearchLabel = "AutoSearch"
)

// Request is a decoded search request.
// Zero Limit and Offset mean "none". Filter is nil when no entries were given.
type Request struct {
	Filter *Expr
	Order  Order
	Limit  int
	Offset int
}

// ParseParams decodes a raw query string into a Request.
//
// Parameters keep their order of appearance, which fixes both the filter
// combinator chain and the order term precedence. Search expands into an OR
// of Like conditions over searchFields; it is ignored when searchFields is empty.
func ParseParams(rawQuery string, searchFields []string) (Request, error) {
	var req Request
	expr := New()

	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %v", ErrInvalidParam, err)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return Request{}, fmt.Errorf("%w: %s: %v", ErrInvalidParam, key, err)
		}

		switch key {
		case ParamOrderBy:
			order, err := ParseOrder(value)
			if err != nil {
				return Request{}, err
			}
			req.Order = append(req.Order, order...)

		case ParamLimitBy:
			n, err := parseCount(key, value)
			if err != nil {
				return Request{}, err
			}
			req.Limit = min(n, types.MaxSearchLimit)

		case ParamOffsetBy:
			n, err := parseCount(key, value)
			if err != nil {
				return Request{}, err
			}
			req.Offset = n

		case ParamSearch:
			if value == "" || len(searchFields) == 0 {
				continue
			}
			auto := New()
			for _, field := range searchFields {
				auto.OrWhere(field, OpLike, value)
			}
			expr.Group(AutoSearchLabel, auto)

		default:
			expr.Add(key, value)
		}
	}

	if !expr.IsEmpty() {
		req.Filter = expr
	}
	return req, nil
}

func parseCount(key, value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ErrInvalidParam, key, value)
	}
	return n, nil
}
