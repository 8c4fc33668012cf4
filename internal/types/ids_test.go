package types

import (
	"strings"
	"testing"
)

func TestNewRecordID(t *testing.T) {
	t.Run("is a hex digest", func(t *testing.T) {
		id := NewRecordID("Users")
		if !IsHash(id) {
			t.Errorf("NewRecordID() = %q, want 64 hex chars", id)
		}
	})

	t.Run("unique across calls with same salt", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewRecordID("Users")
			if seen[id] {
				t.Fatalf("duplicate id after %d calls: %s", i, id)
			}
			seen[id] = true
		}
	})
}

func TestIsHash(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{strings.Repeat("a", 64), true},
		{strings.Repeat("F", 64), true},
		{strings.Repeat("a", 63), false},
		{strings.Repeat("a", 65), false},
		{strings.Repeat("g", 64), false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsHash(tt.in); got != tt.want {
			t.Errorf("IsHash(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRecord(t *testing.T) {
	r := Record{"b": 1, "a": nil}

	if !r.Has("a") {
		t.Error("Has(a) = false, want true for nil value")
	}
	if r.Has("c") {
		t.Error("Has(c) = true, want false")
	}
	if got := r.Fields(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("Fields() = %v, want [a b]", got)
	}

	p := r.Project([]string{"b", "c"})
	if len(p) != 2 || p["b"] != 1 || p["c"] != nil {
		t.Errorf("Project() = %v", p)
	}

	c := r.Clone()
	c["b"] = 2
	if r["b"] != 1 {
		t.Error("Clone() aliases the original")
	}
}
