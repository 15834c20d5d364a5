package xpath

import (
	"strconv"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// Atomizer replaces the nodes of its operand by their typed values.
type Atomizer struct {
	Operand Expr

	typ ItemType
}

func (a *Atomizer) Simplify() (Expr, error) {
	x, err := a.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	a.Operand = x
	if lit, ok := x.(*Literal); ok && lit.Value.Len() == 0 {
		return lit, nil
	}
	return a, nil
}

func (a *Atomizer) TypeCheck(env *Env) (Expr, error) {
	x, err := a.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	a.Operand = x
	return a.check(env)
}

func (a *Atomizer) check(env *Env) (Expr, error) {
	it := a.Operand.ItemType()
	if it.UType().SubsumedBy(xdm.UAtomic) {
		return a.Operand, nil
	}
	if err := checkAtomizable(it, "the operand of data()"); err != nil {
		return nil, err
	}
	a.typ = env.Types().AtomizedType(it)
	return a, nil
}

func (a *Atomizer) Optimize(env *Env) Expr {
	a.Operand = a.Operand.Optimize(env)
	if a.Operand.ItemType().UType().SubsumedBy(xdm.UAtomic) {
		return a.Operand
	}
	return a
}

func (a *Atomizer) Copy(r *Rebinder) Expr {
	return &Atomizer{
		Operand: a.Operand.Copy(r),
		typ:     a.typ,
	}
}

func (a *Atomizer) ItemType() ItemType {
	if a.typ == nil {
		return anyAtomic
	}
	return a.typ
}

func (a *Atomizer) Cardinality() Cardinality {
	return a.Operand.Cardinality()
}

func (a *Atomizer) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := a.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return xdm.Atomize(res)
}

func (a *Atomizer) Operands() []Expr {
	return []Expr{a.Operand}
}

func (a *Atomizer) Export(e *Exporter) {
	e.Start("data")
	e.Child(a.Operand)
	e.End()
}

// checkAtomizable reports the items that can never be atomized: function
// items and elements whose type only allows element content.
func checkAtomizable(it ItemType, what string) error {
	if it.UType() == xdm.UFunction {
		return staticErrorf(xdm.CodeFunctionAtomize, "Cannot atomize a function item supplied as %s", what)
	}
	if elementOnly(it) {
		return staticErrorf(xdm.CodeElementOnly, "The typed value of %s is undefined: the element has element-only content", what)
	}
	return nil
}

func elementOnly(it ItemType) bool {
	var tests []ItemType
	if i, ok := it.(IntersectionTest); ok {
		tests = i.Tests
	} else {
		tests = []ItemType{it}
	}
	for _, t := range tests {
		ct, ok := t.(ContentTypeTest)
		if !ok || ct.Kind != xml.TypeElement {
			continue
		}
		if ct.Annotation.Equal(anyType) || ct.Annotation.Equal(untypedType) {
			continue
		}
		if _, ok := xdm.LookupType(ct.Annotation); !ok && !ct.Annotation.Equal(anySimpleType) {
			return true
		}
	}
	return false
}

// SingletonAtomizer atomizes its operand and checks that the result holds
// at most one item, or exactly one when AllowEmpty is not set.
type SingletonAtomizer struct {
	Operand    Expr
	Role       Role
	AllowEmpty bool

	typ ItemType
}

func NewSingletonAtomizer(operand Expr, role Role, allowEmpty bool) *SingletonAtomizer {
	return &SingletonAtomizer{
		Operand:    operand,
		Role:       role,
		AllowEmpty: allowEmpty,
	}
}

func (s *SingletonAtomizer) Simplify() (Expr, error) {
	x, err := s.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	s.Operand = x
	if a, ok := literalAtomic(x); ok {
		return atomicLiteral(a), nil
	}
	return s, nil
}

func (s *SingletonAtomizer) TypeCheck(env *Env) (Expr, error) {
	x, err := s.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	s.Operand = x
	return s.check(env)
}

func (s *SingletonAtomizer) check(env *Env) (Expr, error) {
	if isEmptyLiteral(s.Operand) {
		if !s.AllowEmpty {
			return nil, staticErrorf(s.Role.ErrorCode(), "An empty sequence is not allowed as the %s", s.Role.Message())
		}
		return s.Operand, nil
	}
	it := s.Operand.ItemType()
	if it.UType().SubsumedBy(xdm.UAtomic) {
		s.typ = it
		card := s.Operand.Cardinality()
		if card.Many() || (!s.AllowEmpty && card.Zero()) {
			return s, nil
		}
		return s.Operand, nil
	}
	if err := checkAtomizable(it, "the "+s.Role.Message()); err != nil {
		return nil, err
	}
	s.typ = env.Types().AtomizedType(it)
	return s, nil
}

func (s *SingletonAtomizer) Optimize(env *Env) Expr {
	s.Operand = s.Operand.Optimize(env)
	if a, ok := literalAtomic(s.Operand); ok {
		return atomicLiteral(a)
	}
	if s.Operand.ItemType().UType().SubsumedBy(xdm.UAtomic) && !s.Operand.Cardinality().Many() {
		if s.AllowEmpty || !s.Operand.Cardinality().Zero() {
			return s.Operand
		}
	}
	return s
}

func (s *SingletonAtomizer) Copy(r *Rebinder) Expr {
	x := *s
	x.Operand = s.Operand.Copy(r)
	return &x
}

func (s *SingletonAtomizer) ItemType() ItemType {
	if s.typ == nil {
		return anyAtomic
	}
	return s.typ
}

func (s *SingletonAtomizer) Cardinality() Cardinality {
	if s.AllowEmpty {
		return ZeroOrOne
	}
	return ExactlyOne
}

func (s *SingletonAtomizer) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := s.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return s.atomize(res)
}

func (s *SingletonAtomizer) atomize(seq xdm.Sequence) (xdm.Sequence, error) {
	var res xdm.Sequence
	for _, i := range seq {
		if len(res) > 0 {
			return nil, xdm.CardinalityError(s.Role.Message(), "A sequence of more than one item is not allowed as the "+s.Role.Message())
		}
		vs, err := xdm.Atomize(xdm.Singleton(i))
		if err != nil {
			return nil, err
		}
		if len(vs) > 1 {
			return nil, xdm.CardinalityError(s.Role.Message(), "A sequence of more than one item is not allowed as the "+s.Role.Message())
		}
		res.Concat(vs)
	}
	if len(res) == 0 && !s.AllowEmpty {
		return nil, xdm.CardinalityError(s.Role.Message(), "An empty sequence is not allowed as the "+s.Role.Message())
	}
	return res, nil
}

func (s *SingletonAtomizer) Operands() []Expr {
	return []Expr{s.Operand}
}

func (s *SingletonAtomizer) Export(e *Exporter) {
	e.Start("atomSing")
	e.Attr("card", s.Cardinality().String())
	e.Attr("diag", s.Role.Message())
	e.Attr("emptiable", strconv.FormatBool(s.AllowEmpty))
	e.Child(s.Operand)
	e.End()
}
