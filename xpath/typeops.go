package xpath

import (
	"strconv"

	"github.com/midbel/xpc/xdm"
)

type InstanceOf struct {
	Operand Expr
	Type    SequenceType
}

func (i *InstanceOf) Simplify() (Expr, error) {
	x, err := i.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	i.Operand = x
	if lit, ok := x.(*Literal); ok {
		return booleanLiteral(i.Type.Matches(lit.Value)), nil
	}
	return i, nil
}

func (i *InstanceOf) TypeCheck(env *Env) (Expr, error) {
	x, err := i.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	i.Operand = x
	return i, nil
}

func (i *InstanceOf) Optimize(env *Env) Expr {
	i.Operand = i.Operand.Optimize(env)
	if lit, ok := i.Operand.(*Literal); ok {
		return booleanLiteral(i.Type.Matches(lit.Value))
	}
	var (
		th   = env.Types()
		card = i.Operand.Cardinality()
	)
	if i.Type.Card.Subsumes(card) && th.IsSubType(i.Operand.ItemType(), i.Type.Item) {
		return booleanLiteral(true)
	}
	if card&i.Type.Card == 0 {
		return booleanLiteral(false)
	}
	return i
}

func (i *InstanceOf) Copy(r *Rebinder) Expr {
	return &InstanceOf{
		Operand: i.Operand.Copy(r),
		Type:    i.Type,
	}
}

func (i *InstanceOf) ItemType() ItemType {
	return booleanType
}

func (i *InstanceOf) Cardinality() Cardinality {
	return ExactlyOne
}

func (i *InstanceOf) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := i.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(i.Type.Matches(res))), nil
}

func (i *InstanceOf) Operands() []Expr {
	return []Expr{i.Operand}
}

func (i *InstanceOf) Export(e *Exporter) {
	e.Start("instance")
	e.Attr("of", i.Type.String())
	e.Child(i.Operand)
	e.End()
}

// Treat checks at run time that its operand matches a type. Without a role
// it is the "treat as" expression; with one it checks a value against a
// required type and converts untyped and promotable values first.
type Treat struct {
	Operand Expr
	Type    SequenceType
	Role    *Role

	convert bool
}

func (t *Treat) Simplify() (Expr, error) {
	x, err := t.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	t.Operand = x
	return t, nil
}

func (t *Treat) TypeCheck(env *Env) (Expr, error) {
	x, err := t.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	t.Operand = x
	return t, nil
}

func (t *Treat) Optimize(env *Env) Expr {
	t.Operand = t.Operand.Optimize(env)
	if t.Type.Card.Subsumes(t.Operand.Cardinality()) && env.Types().IsSubType(t.Operand.ItemType(), t.Type.Item) {
		return t.Operand
	}
	return t
}

func (t *Treat) Copy(r *Rebinder) Expr {
	x := *t
	x.Operand = t.Operand.Copy(r)
	return &x
}

func (t *Treat) ItemType() ItemType {
	return t.Type.Item
}

func (t *Treat) Cardinality() Cardinality {
	card := t.Operand.Cardinality() & t.Type.Card
	if card == 0 {
		return t.Type.Card
	}
	return card
}

func (t *Treat) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := t.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if at, ok := t.Type.Item.(AtomicItemType); ok && t.convert {
		if res, err = convertAtomics(res, at.AtomicType); err != nil {
			return nil, err
		}
	}
	if !t.Type.Card.Allows(len(res)) {
		return nil, t.fail("Required cardinality of the %s is %s; supplied value has cardinality %s", t.Type.Card, cardinalityOf(len(res)))
	}
	for _, i := range res {
		if !t.Type.Item.Matches(i) {
			return nil, t.fail("Required item type of the %s is %s; supplied value has item type %s", t.Type.Item, dynamicType(i))
		}
	}
	return res, nil
}

func (t *Treat) fail(format string, want, got any) error {
	if t.Role == nil {
		return xdm.Errorf(CodeTreat, format, "value in 'treat as' expression", want, got)
	}
	return t.Role.errorf(format, t.Role.Message(), want, got)
}

func (t *Treat) Operands() []Expr {
	return []Expr{t.Operand}
}

func (t *Treat) Export(e *Exporter) {
	e.Start("treat")
	e.Attr("as", t.Type.String())
	if t.Role != nil {
		e.Attr("diag", t.Role.Message())
	}
	e.Child(t.Operand)
	e.End()
}

func dynamicType(i xdm.Item) string {
	switch i := i.(type) {
	case xdm.Atomic:
		return i.Type.String()
	case xdm.NodeItem:
		return i.Type().String() + "()"
	default:
		return "function(*)"
	}
}

type Castable struct {
	Operand    Expr
	Target     *xdm.AtomicType
	AllowEmpty bool
}

func (c *Castable) Simplify() (Expr, error) {
	x, err := c.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	c.Operand = x
	if lit, ok := x.(*Literal); ok {
		if res, err := c.castable(lit.Value); err == nil {
			return booleanLiteral(res), nil
		}
	}
	return c, nil
}

func (c *Castable) TypeCheck(env *Env) (Expr, error) {
	x, err := c.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	c.Operand = x
	return c, nil
}

func (c *Castable) Optimize(env *Env) Expr {
	c.Operand = c.Operand.Optimize(env)
	return c
}

func (c *Castable) Copy(r *Rebinder) Expr {
	x := *c
	x.Operand = c.Operand.Copy(r)
	return &x
}

func (c *Castable) ItemType() ItemType {
	return booleanType
}

func (c *Castable) Cardinality() Cardinality {
	return ExactlyOne
}

func (c *Castable) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := c.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := c.castable(res)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(ok)), nil
}

func (c *Castable) castable(seq xdm.Sequence) (bool, error) {
	seq, err := xdm.Atomize(seq)
	if err != nil {
		return false, err
	}
	switch len(seq) {
	case 0:
		return c.AllowEmpty, nil
	case 1:
		a, _ := xdm.AsAtomic(seq[0])
		return xdm.Castable(a, c.Target), nil
	default:
		return false, nil
	}
}

func (c *Castable) Operands() []Expr {
	return []Expr{c.Operand}
}

func (c *Castable) Export(e *Exporter) {
	e.Start("castable")
	e.Attr("as", c.Target.String())
	e.Attr("emptiable", strconv.FormatBool(c.AllowEmpty))
	e.Child(c.Operand)
	e.End()
}

type Cast struct {
	Operand    Expr
	Target     *xdm.AtomicType
	AllowEmpty bool
}

func (c *Cast) Simplify() (Expr, error) {
	x, err := c.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	c.Operand = x
	if isEmptyLiteral(x) && c.AllowEmpty {
		return x, nil
	}
	if a, ok := literalAtomic(x); ok {
		if res, err := xdm.Cast(a, c.Target); err == nil {
			return atomicLiteral(res), nil
		}
	}
	return c, nil
}

func (c *Cast) TypeCheck(env *Env) (Expr, error) {
	x, err := c.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	card := ExactlyOne
	if c.AllowEmpty {
		card = ZeroOrOne
	}
	x, err = coerce(env, x, NewSequenceType(anyAtomic, card), TypeOpRole("cast as"))
	if err != nil {
		return nil, err
	}
	c.Operand = x
	if at, ok := x.ItemType().(AtomicItemType); ok && !castAllowed(at.AtomicType, c.Target) {
		return nil, staticErrorf(xdm.CodeType, "Casting from %s to %s can never succeed", at, c.Target)
	}
	return c, nil
}

// castAllowed reports whether a cast between two primitive types may
// succeed for some value.
func castAllowed(from, to *xdm.AtomicType) bool {
	var (
		p1 = from.Primitive()
		p2 = to.Primitive()
	)
	switch {
	case from == xdm.AnyAtomicType || p1 == p2:
		return true
	case p1.Stringlike() || p2.Stringlike():
		return true
	case p1.Numeric() || p1 == xdm.BooleanType:
		return p2.Numeric() || p2 == xdm.BooleanType
	case p1 == xdm.DateTimeType || p1 == xdm.DateType:
		return p2 == xdm.DateTimeType || p2 == xdm.DateType
	default:
		return false
	}
}

func (c *Cast) Optimize(env *Env) Expr {
	c.Operand = c.Operand.Optimize(env)
	if a, ok := literalAtomic(c.Operand); ok {
		if res, err := xdm.Cast(a, c.Target); err == nil {
			return atomicLiteral(res)
		}
	}
	if at, ok := c.Operand.ItemType().(AtomicItemType); ok && at.AtomicType == c.Target && c.Operand.Cardinality() == ExactlyOne {
		return c.Operand
	}
	return c
}

func (c *Cast) Copy(r *Rebinder) Expr {
	x := *c
	x.Operand = c.Operand.Copy(r)
	return &x
}

func (c *Cast) ItemType() ItemType {
	return AtomicOf(c.Target)
}

func (c *Cast) Cardinality() Cardinality {
	if c.AllowEmpty && c.Operand.Cardinality().Zero() {
		return ZeroOrOne
	}
	return ExactlyOne
}

func (c *Cast) Evaluate(ctx *Context) (xdm.Sequence, error) {
	a, ok, err := evalAtomic(ctx, c.Operand)
	if err != nil {
		return nil, err
	}
	if !ok {
		if c.AllowEmpty {
			return xdm.Empty(), nil
		}
		return nil, TypeOpRole("cast as").errorf("An empty sequence is not allowed as the value in 'cast as' expression")
	}
	res, err := xdm.Cast(a, c.Target)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(res), nil
}

func (c *Cast) Operands() []Expr {
	return []Expr{c.Operand}
}

func (c *Cast) Export(e *Exporter) {
	e.Start("cast")
	e.Attr("as", c.Target.String())
	e.Attr("emptiable", strconv.FormatBool(c.AllowEmpty))
	e.Child(c.Operand)
	e.End()
}
