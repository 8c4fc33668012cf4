package filter

import (
	"errors"
	"fmt"
	"testing"

	"github.com/solatis/groupstore/internal/types"
)

func TestParseParams_SearchScenario(t *testing.T) {
	req, err := ParseParams("Status=Active&OrderBy=CreatedAt:0&LimitBy=10", nil)
	if err != nil {
		t.Fatalf("ParseParams() error = %v, want nil", err)
	}

	frag, params, err := Compile(req.Filter, "")
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if frag != "(Status = :Status)" || params["Status"] != "Active" {
		t.Errorf("filter = %q %v, want (Status = :Status) map[Status:Active]", frag, params)
	}
	if len(req.Order) != 1 || req.Order[0] != Desc("CreatedAt") {
		t.Errorf("Order = %v, want [CreatedAt DESC]", req.Order)
	}
	if req.Limit != 10 {
		t.Errorf("Limit = %d, want 10", req.Limit)
	}
	if req.Offset != 0 {
		t.Errorf("Offset = %d, want 0", req.Offset)
	}
}

func TestParseParams_PreservesOrder(t *testing.T) {
	req, err := ParseParams("OrderBy=B,A:1&Name%2A=jo&%7CAge%3E=30&OrderBy=C:0", nil)
	if err != nil {
		t.Fatalf("ParseParams() error = %v, want nil", err)
	}

	frag, params, err := Compile(req.Filter, "")
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	if frag != "(Name LIKE :Name OR Age > :Age)" {
		t.Errorf("filter = %q, want (Name LIKE :Name OR Age > :Age)", frag)
	}
	if params["Name"] != "%jo%" || params["Age"] != "30" {
		t.Errorf("params = %v", params)
	}
	if got := req.Order.Compile(); got != "B ASC, A ASC, C DESC" {
		t.Errorf("Order.Compile() = %q, want %q", got, "B ASC, A ASC, C DESC")
	}
}

func TestParseParams_Search(t *testing.T) {
	req, err := ParseParams("Search=ann&Active=1", []string{"Name", "Email"})
	if err != nil {
		t.Fatalf("ParseParams() error = %v, want nil", err)
	}

	frag, params, err := Compile(req.Filter, "")
	if err != nil {
		t.Fatalf("Compile() error = %v, want nil", err)
	}
	want := "((Name LIKE :AutoSearch_Name OR Email LIKE :AutoSearch_Email) AND Active = :Active)"
	if frag != want {
		t.Errorf("filter = %q, want %q", frag, want)
	}
	if params["AutoSearch_Email"] != "%ann%" {
		t.Errorf("params[AutoSearch_Email] = %v, want %%ann%%", params["AutoSearch_Email"])
	}
}

func TestParseParams_SearchWithoutFields(t *testing.T) {
	req, err := ParseParams("Search=ann", nil)
	if err != nil {
		t.Fatalf("ParseParams() error = %v, want nil", err)
	}
	if req.Filter != nil {
		t.Errorf("Filter = %v, want nil", req.Filter)
	}
}

func TestParseParams_LimitClamped(t *testing.T) {
	req, err := ParseParams("LimitBy=999999999&OffsetBy=20", nil)
	if err != nil {
		t.Fatalf("ParseParams() error = %v, want nil", err)
	}
	if req.Limit != types.MaxSearchLimit {
		t.Errorf("Limit = %d, want %d", req.Limit, types.MaxSearchLimit)
	}
	if req.Offset != 20 {
		t.Errorf("Offset = %d, want 20", req.Offset)
	}
}

func TestParseParams_Errors(t *testing.T) {
	tests := []struct {
		query string
		want  error
	}{
		{"LimitBy=ten", ErrInvalidParam},
		{"OffsetBy=-1", ErrInvalidParam},
		{"OrderBy=Na-me", ErrInvalidField},
		{"Name=%zz", ErrInvalidParam},
	}

	for _, tt := range tests {
		_, err := ParseParams(tt.query, nil)
		if !errors.Is(err, tt.want) {
			t.Errorf("ParseParams(%q) error = %v, want %v", tt.query, err, tt.want)
		}
	}
}

func TestOrder(t *testing.T) {
	o := Order{Asc("Name"), Desc("CreatedAt")}
	if got := o.Compile(); got != "Name ASC, CreatedAt DESC" {
		t.Errorf("Compile() = %q, want %q", got, "Name ASC, CreatedAt DESC")
	}
	if err := o.Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if got := (Order{}).Compile(); got != "" {
		t.Errorf("empty Compile() = %q, want empty", got)
	}
	if err := (Order{Asc("x y")}).Validate(); !errors.Is(err, ErrInvalidField) {
		t.Errorf("Validate() error = %v, want ErrInvalidField", err)
	}
}

func TestParseOrder_Direction(t *testing.T) {
	tests := []struct {
		in   string
		want Order
	}{
		{"CreatedAt:0", Order{Desc("CreatedAt")}},
		{"CreatedAt:1", Order{Asc("CreatedAt")}},
		{"CreatedAt:2", Order{Asc("CreatedAt")}},
		{"CreatedAt:desc", Order{Asc("CreatedAt")}},
		{"CreatedAt", Order{Asc("CreatedAt")}},
		{"Name:0, Age:x", Order{Desc("Name"), Asc("Age")}},
	}

	for _, tt := range tests {
		got, err := ParseOrder(tt.in)
		if err != nil {
			t.Errorf("ParseOrder(%q) error = %v, want nil", tt.in, err)
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("ParseOrder(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
