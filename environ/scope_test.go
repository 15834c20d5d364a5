package environ

import (
	"errors"
	"testing"
)

func TestScopeShadowing(t *testing.T) {
	s := NewScope[int]()
	s.Push("x", 1)
	s.Push("y", 2)
	s.Push("x", 3)

	if v, ok := s.Lookup("x"); !ok || v != 3 {
		t.Errorf("x: expected innermost value 3, got %d (found: %t)", v, ok)
	}
	if _, err := s.Pop(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if v, ok := s.Lookup("x"); !ok || v != 1 {
		t.Errorf("x: expected outer value 1 after pop, got %d (found: %t)", v, ok)
	}
	if v, ok := s.Lookup("y"); !ok || v != 2 {
		t.Errorf("y: expected 2, got %d", v)
	}
	s.Pop()
	s.Pop()
	if s.Len() != 0 {
		t.Errorf("scope should be empty, got %d entries", s.Len())
	}
	if _, ok := s.Lookup("x"); ok {
		t.Errorf("x: should not be visible anymore")
	}
	if _, err := s.Pop(); !errors.Is(err, ErrUnbalanced) {
		t.Errorf("expected ErrUnbalanced, got %v", err)
	}
}

func TestEnvResolve(t *testing.T) {
	outer := Empty[string]()
	outer.Define("xs", "http://www.w3.org/2001/XMLSchema")
	outer.Define("fn", "outer")

	inner := Enclosed(outer)
	inner.Define("fn", "inner")

	tests := []struct {
		Ident string
		Want  string
		Err   bool
	}{
		{Ident: "xs", Want: "http://www.w3.org/2001/XMLSchema"},
		{Ident: "fn", Want: "inner"},
		{Ident: "foo", Err: true},
	}
	for _, tt := range tests {
		got, err := inner.Resolve(tt.Ident)
		if tt.Err {
			if !errors.Is(err, ErrDefined) {
				t.Errorf("%s: expected ErrDefined, got %v", tt.Ident, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Ident, err)
			continue
		}
		if got != tt.Want {
			t.Errorf("%s: want %q, got %q", tt.Ident, tt.Want, got)
		}
	}
	if names := inner.Names(); len(names) != 2 {
		t.Errorf("expected 2 visible names, got %v", names)
	}
}
