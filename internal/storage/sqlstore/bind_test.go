package sqlstore

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/solatis/groupstore/internal/types"
)

func TestBind(t *testing.T) {
	type custom struct{ A int }

	tests := []struct {
		name  string
		value any
		want  any
	}{
		{"string", "x", "x"},
		{"bytes", []byte("x"), "x"},
		{"nil", nil, nil},
		{"true", true, int64(1)},
		{"false", false, int64(0)},
		{"int", 7, int64(7)},
		{"uint16", uint16(7), int64(7)},
		{"max uint64", uint64(math.MaxInt64), int64(math.MaxInt64)},
		{"int64", int64(-3), int64(-3)},
		{"float", 7.25, "7.25"},
		{"decimal", decimal.RequireFromString("12.50"), "12.5"},
		{"json number", json.Number("42"), "42"},
		{"time", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), "2024-01-02T03:04:05Z"},
		{"slice", []any{1, "a"}, `[1,"a"]`},
		{"map", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"record", types.Record{"k": true}, `{"k":true}`},
		{"typed slice", []string{"x"}, `["x"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := newStatement("test", "SELECT :v")
			if err := Bind(stmt, "v", tt.value); err != nil {
				t.Fatalf("Bind() error = %v, want nil", err)
			}
			if got := stmt.Params["v"]; got != tt.want {
				t.Errorf("Bind() bound %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBind_Unsupported(t *testing.T) {
	stmt := newStatement("test", "SELECT :v")

	for _, value := range []any{struct{}{}, make(chan int), func() {}, uint64(math.MaxInt64) + 1, uint(math.MaxUint)} {
		err := Bind(stmt, "v", value)
		if !errors.Is(err, types.ErrBind) {
			t.Errorf("Bind(%T) error = %v, want ErrBind", value, err)
		}
		var be *types.BindError
		if !errors.As(err, &be) || be.Name != "v" || be.Statement != "SELECT :v" {
			t.Errorf("Bind(%T) error = %#v, want BindError with name and statement", value, err)
		}
	}
	if _, ok := stmt.Params["v"]; ok {
		t.Error("failed Bind() left a parameter behind")
	}
}
