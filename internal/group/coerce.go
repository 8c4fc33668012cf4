// internal/group/coerce.go
package group

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/groupstore/internal/types"
)

/*
 * Value coercion for field rules.
 *
 * Numeric kinds are lenient about representation (numeric strings, any Go
 * number, json.Number, decimal.Decimal) and strict about meaning: booleans
 * are never numbers, and Integer rejects fractional values instead of
 * truncating them.
 *
 * Text, Hash and Boolean are strict: the value must already have the right
 * Go type. Coercion output is canonical (int64, float64, string, bool) so
 * validating an already validated record is a no-op.
 */

// errCoercion marks a value that cannot be represented in the rule's kind.
var errCoercion = errors.New("value cannot be coerced")

// coerceInteger converts value to int64.
// Whitespace-only strings and fractional values fail.
func coerceInteger(value any) (any, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, errCoercion
		}
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, errCoercion
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, errCoercion
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
	}

	f, err := coerceFloat(value)
	if err != nil {
		return nil, err
	}
	return integralFloat(f.(float64))
}

func integralFloat(f float64) (any, error) {
	if f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return nil, errCoercion
	}
	return int64(f), nil
}

// coerceFloat converts value to float64.
func coerceFloat(value any) (any, error) {
	var f float64

	switch v := value.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return nil, errCoercion
		}
		f = parsed
	case decimal.Decimal:
		f, _ = v.Float64()
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return nil, errCoercion
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errCoercion
		}
		f = parsed
	default:
		// bool and everything else
		return nil, errCoercion
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, errCoercion
	}
	return f, nil
}

// coerceText accepts strings only, optionally constrained by pattern.
func coerceText(value any, pattern *regexp.Regexp) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, errCoercion
	}
	if pattern != nil && !pattern.MatchString(s) {
		return nil, errCoercion
	}
	return s, nil
}

// coerceHash accepts 64-character hex strings.
func coerceHash(value any) (any, error) {
	s, ok := value.(string)
	if !ok || !types.IsHash(s) {
		return nil, errCoercion
	}
	return s, nil
}

// coerceBoolean accepts bool only.
func coerceBoolean(value any) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, errCoercion
	}
	return b, nil
}

// coerceDate converts value to unix seconds.
func coerceDate(value any) (any, error) {
	switch v := value.(type) {
	case time.Time:
		return v.Unix(), nil
	case string:
		s := strings.TrimSpace(v)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Unix(), nil
		}
		if t, err := time.Parse(time.DateOnly, s); err == nil {
			return t.Unix(), nil
		}
	}
	return coerceInteger(value)
}

// coerceTime converts value to seconds since midnight.
// Clock strings must be a valid 24-hour time.
func coerceTime(value any) (any, error) {
	if s, ok := value.(string); ok && strings.Contains(s, ":") {
		s = strings.TrimSpace(s)
		for _, layout := range []string{time.TimeOnly, "15:04"} {
			if t, err := time.Parse(layout, s); err == nil {
				return int64(t.Hour()*3600 + t.Minute()*60 + t.Second()), nil
			}
		}
		return nil, errCoercion
	}
	return coerceInteger(value)
}
