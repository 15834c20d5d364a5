package xpath

import (
	"github.com/midbel/xpc/xdm"
)

type And struct {
	Left  Expr
	Right Expr
}

func (a *And) Simplify() (Expr, error) {
	list := []Expr{a.Left, a.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	a.Left, a.Right = list[0], list[1]
	b1, ok1 := constantBoolean(a.Left)
	b2, ok2 := constantBoolean(a.Right)
	if ok1 && ok2 {
		return booleanLiteral(b1 && b2), nil
	}
	return a, nil
}

func (a *And) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{a.Left, a.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	a.Left, a.Right = list[0], list[1]
	for _, x := range list {
		if err := checkBooleanValue(x, "and"); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *And) Optimize(env *Env) Expr {
	a.Left = a.Left.Optimize(env)
	a.Right = a.Right.Optimize(env)
	b1, ok1 := constantBoolean(a.Left)
	b2, ok2 := constantBoolean(a.Right)
	switch {
	case (ok1 && !b1) || (ok2 && !b2):
		return booleanLiteral(false)
	case ok1 && b1:
		return forceBoolean(env, a.Right)
	case ok2 && b2:
		return forceBoolean(env, a.Left)
	default:
	}
	if call, ok := a.Right.(*UserFunctionCall); ok && !env.Iterating {
		if call.Cardinality() == ExactlyOne && env.Types().IsSubType(call.ItemType(), booleanType) {
			return &If{
				Cond: a.Left,
				Then: call,
				Else: booleanLiteral(false),
			}
		}
	}
	return a
}

func (a *And) Copy(r *Rebinder) Expr {
	return &And{
		Left:  a.Left.Copy(r),
		Right: a.Right.Copy(r),
	}
}

func (a *And) ItemType() ItemType {
	return booleanType
}

func (a *And) Cardinality() Cardinality {
	return ExactlyOne
}

func (a *And) Evaluate(ctx *Context) (xdm.Sequence, error) {
	ok, err := evalBoolean(ctx, a.Left)
	if err != nil || !ok {
		return xdm.Singleton(xdm.Boolean(false)), err
	}
	ok, err = evalBoolean(ctx, a.Right)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(ok)), nil
}

func (a *And) Operands() []Expr {
	return []Expr{a.Left, a.Right}
}

func (a *And) Export(e *Exporter) {
	e.Start("and")
	e.Children(a.Left, a.Right)
	e.End()
}

func (a *And) negate() Expr {
	return &Or{
		Left:  &Not{Operand: a.Left},
		Right: &Not{Operand: a.Right},
	}
}

type Or struct {
	Left  Expr
	Right Expr
}

func (o *Or) Simplify() (Expr, error) {
	list := []Expr{o.Left, o.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	o.Left, o.Right = list[0], list[1]
	b1, ok1 := constantBoolean(o.Left)
	b2, ok2 := constantBoolean(o.Right)
	if ok1 && ok2 {
		return booleanLiteral(b1 || b2), nil
	}
	return o, nil
}

func (o *Or) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{o.Left, o.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	o.Left, o.Right = list[0], list[1]
	for _, x := range list {
		if err := checkBooleanValue(x, "or"); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func (o *Or) Optimize(env *Env) Expr {
	o.Left = o.Left.Optimize(env)
	o.Right = o.Right.Optimize(env)
	b1, ok1 := constantBoolean(o.Left)
	b2, ok2 := constantBoolean(o.Right)
	switch {
	case (ok1 && b1) || (ok2 && b2):
		return booleanLiteral(true)
	case ok1 && !b1:
		return forceBoolean(env, o.Right)
	case ok2 && !b2:
		return forceBoolean(env, o.Left)
	default:
		return o
	}
}

func (o *Or) Copy(r *Rebinder) Expr {
	return &Or{
		Left:  o.Left.Copy(r),
		Right: o.Right.Copy(r),
	}
}

func (o *Or) ItemType() ItemType {
	return booleanType
}

func (o *Or) Cardinality() Cardinality {
	return ExactlyOne
}

func (o *Or) Evaluate(ctx *Context) (xdm.Sequence, error) {
	ok, err := evalBoolean(ctx, o.Left)
	if err != nil {
		return nil, err
	}
	if !ok {
		ok, err = evalBoolean(ctx, o.Right)
		if err != nil {
			return nil, err
		}
	}
	return xdm.Singleton(xdm.Boolean(ok)), nil
}

func (o *Or) Operands() []Expr {
	return []Expr{o.Left, o.Right}
}

func (o *Or) Export(e *Exporter) {
	e.Start("or")
	e.Children(o.Left, o.Right)
	e.End()
}

func (o *Or) negate() Expr {
	return &And{
		Left:  &Not{Operand: o.Left},
		Right: &Not{Operand: o.Right},
	}
}

// Not is fn:not once the call has been simplified.
type Not struct {
	Operand Expr
}

func (n *Not) Simplify() (Expr, error) {
	x, err := n.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	n.Operand = x
	if b, ok := constantBoolean(x); ok {
		return booleanLiteral(!b), nil
	}
	return n, nil
}

func (n *Not) TypeCheck(env *Env) (Expr, error) {
	x, err := n.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	n.Operand = x
	if err := checkBooleanValue(x, "not"); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Not) Optimize(env *Env) Expr {
	n.Operand = n.Operand.Optimize(env)
	if b, ok := constantBoolean(n.Operand); ok {
		return booleanLiteral(!b)
	}
	switch x := n.Operand.(type) {
	case *Not:
		return forceBoolean(env, x.Operand)
	case *And:
		return x.negate().Optimize(env)
	case *Or:
		return x.negate().Optimize(env)
	default:
		return n
	}
}

func (n *Not) Copy(r *Rebinder) Expr {
	return &Not{
		Operand: n.Operand.Copy(r),
	}
}

func (n *Not) ItemType() ItemType {
	return booleanType
}

func (n *Not) Cardinality() Cardinality {
	return ExactlyOne
}

func (n *Not) Evaluate(ctx *Context) (xdm.Sequence, error) {
	ok, err := evalBoolean(ctx, n.Operand)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(!ok)), nil
}

func (n *Not) Operands() []Expr {
	return []Expr{n.Operand}
}

func (n *Not) Export(e *Exporter) {
	e.Start("not")
	e.Child(n.Operand)
	e.End()
}

// forceBoolean wraps x in a call to fn:boolean unless it already returns a
// single boolean.
func forceBoolean(env *Env, x Expr) Expr {
	if x.Cardinality() == ExactlyOne && env.Types().IsSubType(x.ItemType(), booleanType) {
		return x
	}
	return callBuiltin("boolean", x)
}

func evalBoolean(ctx *Context, x Expr) (bool, error) {
	res, err := x.Evaluate(ctx)
	if err != nil {
		return false, err
	}
	return xdm.EffectiveBooleanValue(res)
}

// constantBoolean returns the effective boolean value of a literal.
func constantBoolean(x Expr) (bool, bool) {
	lit, ok := x.(*Literal)
	if !ok {
		return false, false
	}
	b, err := xdm.EffectiveBooleanValue(lit.Value)
	return b, err == nil
}

func checkBooleanValue(x Expr, op string) error {
	it := x.ItemType()
	if it.UType() == xdm.UFunction {
		return staticErrorf(xdm.CodeBooleanValue, "Effective boolean value is not defined for a function item in operand of '%s'", op)
	}
	return nil
}
