package server

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/groupstore/internal/core/api"
	"github.com/solatis/groupstore/internal/group"
	"github.com/solatis/groupstore/internal/types"
)

// toValue converts endpoint payloads into protobuf values.
// structpb.NewValue only knows unnamed maps and slices, so the named domain
// types are unwrapped here first.
func toValue(v any) (*structpb.Value, error) {
	switch x := v.(type) {
	case nil:
		return structpb.NewNullValue(), nil
	case types.Record:
		return toStructValue(x)
	case map[string]any:
		return toStructValue(x)
	case []types.Record:
		list := make([]*structpb.Value, len(x))
		for i, rec := range x {
			item, err := toStructValue(rec)
			if err != nil {
				return nil, err
			}
			list[i] = item
		}
		return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
	case []string:
		list := make([]*structpb.Value, len(x))
		for i, s := range x {
			list[i] = structpb.NewStringValue(s)
		}
		return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
	case api.SearchResult:
		items, err := toValue(x.Items)
		if err != nil {
			return nil, err
		}
		s := &structpb.Struct{Fields: map[string]*structpb.Value{
			"Total": structpb.NewNumberValue(float64(x.Total)),
			"Items": items,
		}}
		return structpb.NewStructValue(s), nil
	case group.Results:
		return toValue(resultsMap(x))
	case time.Time:
		return structpb.NewStringValue(x.UTC().Format(time.RFC3339)), nil
	case decimal.Decimal:
		f, _ := x.Float64()
		return structpb.NewNumberValue(f), nil
	case []any:
		list := make([]*structpb.Value, len(x))
		for i, item := range x {
			converted, err := toValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return structpb.NewListValue(&structpb.ListValue{Values: list}), nil
	case json.Number, string, bool, []byte,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return structpb.NewValue(x)
	default:
		return nil, fmt.Errorf("cannot encode %T in response", v)
	}
}

func toStructValue(m map[string]any) (*structpb.Value, error) {
	fields := make(map[string]*structpb.Value, len(m))
	for k, v := range m {
		converted, err := toValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		fields[k] = converted
	}
	return structpb.NewStructValue(&structpb.Struct{Fields: fields}), nil
}

func resultsMap(r group.Results) map[string]any {
	out := make(map[string]any, len(r))
	for field, code := range r.Strings() {
		out[field] = code
	}
	return out
}
