package environ

import "errors"

var ErrUnbalanced = errors.New("scope: pop without matching push")

type entry[T any] struct {
	name  string
	value T
}

// Scope is a stack of declarations in declaration order. Lookups walk from
// the most recent declaration backwards so that an inner declaration hides
// an outer one with the same name until it is popped.
type Scope[T any] struct {
	entries []entry[T]
}

func NewScope[T any]() *Scope[T] {
	return &Scope[T]{}
}

func (s *Scope[T]) Push(name string, value T) int {
	s.entries = append(s.entries, entry[T]{
		name:  name,
		value: value,
	})
	return len(s.entries) - 1
}

func (s *Scope[T]) Pop() (T, error) {
	var t T
	if len(s.entries) == 0 {
		return t, ErrUnbalanced
	}
	z := len(s.entries) - 1
	t = s.entries[z].value
	s.entries = s.entries[:z]
	return t, nil
}

func (s *Scope[T]) Lookup(name string) (T, bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].name == name {
			return s.entries[i].value, true
		}
	}
	var t T
	return t, false
}

func (s *Scope[T]) Len() int {
	return len(s.entries)
}

func (s *Scope[T]) Names() []string {
	var list []string
	for i := range s.entries {
		list = append(list, s.entries[i].name)
	}
	return list
}
