package sqlstore

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/groupstore/internal/types"
)

// Statement is a rendered SQL statement with ":name" placeholders and the
// driver values bound to them so far.
type Statement struct {
	Name   string
	Text   string
	Params map[string]any
}

func newStatement(name, text string) *Statement {
	return &Statement{Name: name, Text: text, Params: make(map[string]any)}
}

// Bind converts value to its driver representation and binds it under name.
//
// Text, floats and decimals bind as text; booleans as 0/1; integers as int64;
// slices, maps and records as JSON text; nil as SQL NULL; times as RFC 3339
// text. Unsigned values above MaxInt64 and any other type fail with
// *types.BindError.
func Bind(stmt *Statement, name string, value any) error {
	v, ok := driverValue(value)
	if !ok {
		return &types.BindError{Name: name, Statement: stmt.Text, Value: value}
	}
	stmt.Params[name] = v
	return nil
}

// BindAll binds every entry of params in name order.
func (s *Statement) BindAll(params map[string]any) error {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := Bind(s, name, params[name]); err != nil {
			return err
		}
	}
	return nil
}

func driverValue(value any) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		return v, true
	case []byte:
		return string(v), true
	case json.Number:
		return v.String(), true
	case decimal.Decimal:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), true
	case bool:
		if v {
			return int64(1), true
		}
		return int64(0), true
	case int:
		return int64(v), true
	case int8:
		return int64(v), true
	case int16:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case uint8:
		return int64(v), true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case uint64:
		if v > math.MaxInt64 {
			return nil, false
		}
		return int64(v), true
	case time.Time:
		return v.UTC().Format(time.RFC3339), true
	case types.Record:
		return encodeJSON(map[string]any(v))
	}

	switch reflect.ValueOf(value).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return encodeJSON(value)
	default:
		return nil, false
	}
}

func encodeJSON(value any) (any, bool) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, false
	}
	return string(b), true
}
