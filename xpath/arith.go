package xpath

import (
	"math"

	"github.com/midbel/xpc/xdm"
)

const codeOverflow = "FOAR0002"

type ArithOp int8

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpIdiv
	OpMod
)

func (o ArithOp) String() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpDiv:
		return "div"
	case OpIdiv:
		return "idiv"
	default:
		return "mod"
	}
}

type Arithmetic struct {
	Op    ArithOp
	Left  Expr
	Right Expr
}

func (a *Arithmetic) Simplify() (Expr, error) {
	list := []Expr{a.Left, a.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	a.Left, a.Right = list[0], list[1]
	return a.fold(), nil
}

func (a *Arithmetic) fold() Expr {
	v1, ok1 := literalAtomic(a.Left)
	v2, ok2 := literalAtomic(a.Right)
	if !ok1 || !ok2 || !v1.Type.Numeric() || !v2.Type.Numeric() {
		return a
	}
	res, err := compute(a.Op, v1, v2)
	if err != nil {
		return a
	}
	return atomicLiteral(res)
}

func (a *Arithmetic) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{a.Left, a.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	for i := range list {
		single := SingletonAtomizer{
			Operand:    list[i],
			Role:       BinaryRole(a.Op.String(), i),
			AllowEmpty: true,
		}
		x, err := single.check(env)
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	a.Left, a.Right = list[0], list[1]
	if env.Static.BackwardsCompatible() {
		return a, nil
	}
	for i, x := range list {
		at, ok := x.ItemType().(AtomicItemType)
		if !ok || at.AtomicType == xdm.AnyAtomicType || at.AtomicType == xdm.UntypedAtomicType {
			continue
		}
		if !at.AtomicType.Numeric() {
			role := BinaryRole(a.Op.String(), i)
			return nil, staticErrorf(xdm.CodeType, "Arithmetic operator is not defined for the %s: supplied value has type %s", role.Message(), at)
		}
	}
	return a.fold(), nil
}

func (a *Arithmetic) Optimize(env *Env) Expr {
	a.Left = a.Left.Optimize(env)
	a.Right = a.Right.Optimize(env)
	return a.fold()
}

func (a *Arithmetic) Copy(r *Rebinder) Expr {
	return &Arithmetic{
		Op:    a.Op,
		Left:  a.Left.Copy(r),
		Right: a.Right.Copy(r),
	}
}

func (a *Arithmetic) ItemType() ItemType {
	t1, ok1 := a.Left.ItemType().(AtomicItemType)
	t2, ok2 := a.Right.ItemType().(AtomicItemType)
	if !ok1 || !ok2 {
		return anyAtomic
	}
	switch {
	case t1.AtomicType == xdm.UntypedAtomicType || t2.AtomicType == xdm.UntypedAtomicType:
		return doubleType
	case !t1.AtomicType.Numeric() || !t2.AtomicType.Numeric():
		return anyAtomic
	case isDouble(t1.AtomicType) || isDouble(t2.AtomicType):
		return doubleType
	case a.Op == OpIdiv:
		return integerType
	case t1.AtomicType == xdm.IntegerType && t2.AtomicType == xdm.IntegerType && a.Op != OpDiv:
		return integerType
	default:
		return decimalType
	}
}

func isDouble(t *xdm.AtomicType) bool {
	return t == xdm.DoubleType || t == xdm.FloatType
}

func (a *Arithmetic) Cardinality() Cardinality {
	if a.Left.Cardinality().Zero() || a.Right.Cardinality().Zero() {
		return ZeroOrOne
	}
	return ExactlyOne
}

func (a *Arithmetic) Evaluate(ctx *Context) (xdm.Sequence, error) {
	compat := ctx.Static.BackwardsCompatible()
	v1, ok1, err := evalAtomic(ctx, a.Left)
	if err != nil {
		return nil, err
	}
	v2, ok2, err := evalAtomic(ctx, a.Right)
	if err != nil {
		return nil, err
	}
	if !ok1 || !ok2 {
		if compat {
			return xdm.Singleton(xdm.NaN()), nil
		}
		return xdm.Empty(), nil
	}
	if compat {
		v1, v2 = toDouble(v1), toDouble(v2)
	}
	if v1, err = numericOperand(v1, BinaryRole(a.Op.String(), 0)); err != nil {
		return nil, err
	}
	if v2, err = numericOperand(v2, BinaryRole(a.Op.String(), 1)); err != nil {
		return nil, err
	}
	res, err := compute(a.Op, v1, v2)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(res), nil
}

func (a *Arithmetic) Operands() []Expr {
	return []Expr{a.Left, a.Right}
}

func (a *Arithmetic) Export(e *Exporter) {
	e.Start("arith")
	e.Attr("op", a.Op.String())
	e.Children(a.Left, a.Right)
	e.End()
}

func numericOperand(v xdm.Atomic, role Role) (xdm.Atomic, error) {
	if v.Type == xdm.UntypedAtomicType {
		return xdm.Cast(v, xdm.DoubleType)
	}
	if !v.Type.Numeric() {
		return v, role.errorf("Arithmetic operator is not defined for the %s: supplied value has type %s", role.Message(), v.Type)
	}
	return v, nil
}

func compute(op ArithOp, a, b xdm.Atomic) (xdm.Atomic, error) {
	i1, ok1 := a.Value.(int64)
	i2, ok2 := b.Value.(int64)
	if ok1 && ok2 && a.Type == xdm.IntegerType && b.Type == xdm.IntegerType {
		return computeInteger(op, i1, i2)
	}
	f1, _ := a.Float()
	f2, _ := b.Float()
	if isDouble(a.Type) || isDouble(b.Type) {
		return computeDouble(op, f1, f2)
	}
	return computeDecimal(op, f1, f2)
}

func computeInteger(op ArithOp, a, b int64) (xdm.Atomic, error) {
	switch op {
	case OpAdd:
		return xdm.Integer(a + b), nil
	case OpSub:
		return xdm.Integer(a - b), nil
	case OpMul:
		return xdm.Integer(a * b), nil
	case OpDiv:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Decimal(float64(a) / float64(b)), nil
	case OpIdiv:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Integer(a / b), nil
	default:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Integer(a % b), nil
	}
}

func computeDecimal(op ArithOp, a, b float64) (xdm.Atomic, error) {
	switch op {
	case OpAdd:
		return xdm.Decimal(a + b), nil
	case OpSub:
		return xdm.Decimal(a - b), nil
	case OpMul:
		return xdm.Decimal(a * b), nil
	case OpDiv:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Decimal(a / b), nil
	case OpIdiv:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Integer(int64(math.Trunc(a / b))), nil
	default:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		return xdm.Decimal(math.Mod(a, b)), nil
	}
}

func computeDouble(op ArithOp, a, b float64) (xdm.Atomic, error) {
	switch op {
	case OpAdd:
		return xdm.Double(a + b), nil
	case OpSub:
		return xdm.Double(a - b), nil
	case OpMul:
		return xdm.Double(a * b), nil
	case OpDiv:
		return xdm.Double(a / b), nil
	case OpIdiv:
		if b == 0 {
			return xdm.Atomic{}, divisionByZero()
		}
		q := a / b
		if math.IsNaN(q) || math.IsInf(q, 0) {
			return xdm.Atomic{}, xdm.NewError(codeOverflow, "integer division of NaN or infinite value")
		}
		return xdm.Integer(int64(math.Trunc(q))), nil
	default:
		return xdm.Double(math.Mod(a, b)), nil
	}
}

func divisionByZero() error {
	return xdm.NewError(xdm.CodeDivZero, "division by zero")
}

// Negate is the unary minus.
type Negate struct {
	Operand Expr
}

func (n *Negate) Simplify() (Expr, error) {
	x, err := n.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	n.Operand = x
	return n.fold(), nil
}

func (n *Negate) fold() Expr {
	v, ok := literalAtomic(n.Operand)
	if !ok || !v.Type.Numeric() {
		return n
	}
	return atomicLiteral(negate(v))
}

func (n *Negate) TypeCheck(env *Env) (Expr, error) {
	x, err := n.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	single := SingletonAtomizer{
		Operand:    x,
		Role:       UnaryRole("-"),
		AllowEmpty: true,
	}
	if x, err = single.check(env); err != nil {
		return nil, err
	}
	n.Operand = x
	if at, ok := x.ItemType().(AtomicItemType); ok && !env.Static.BackwardsCompatible() {
		if at.AtomicType != xdm.AnyAtomicType && at.AtomicType != xdm.UntypedAtomicType && !at.AtomicType.Numeric() {
			return nil, staticErrorf(xdm.CodeType, "Arithmetic operator is not defined for the %s: supplied value has type %s", single.Role.Message(), at)
		}
	}
	return n.fold(), nil
}

func (n *Negate) Optimize(env *Env) Expr {
	n.Operand = n.Operand.Optimize(env)
	return n.fold()
}

func (n *Negate) Copy(r *Rebinder) Expr {
	return &Negate{
		Operand: n.Operand.Copy(r),
	}
}

func (n *Negate) ItemType() ItemType {
	at, ok := n.Operand.ItemType().(AtomicItemType)
	switch {
	case !ok:
		return anyAtomic
	case at.AtomicType == xdm.UntypedAtomicType:
		return doubleType
	default:
		return at
	}
}

func (n *Negate) Cardinality() Cardinality {
	if n.Operand.Cardinality().Zero() {
		return ZeroOrOne
	}
	return ExactlyOne
}

func (n *Negate) Evaluate(ctx *Context) (xdm.Sequence, error) {
	v, ok, err := evalAtomic(ctx, n.Operand)
	if err != nil {
		return nil, err
	}
	compat := ctx.Static.BackwardsCompatible()
	if !ok {
		if compat {
			return xdm.Singleton(xdm.NaN()), nil
		}
		return xdm.Empty(), nil
	}
	if compat {
		v = toDouble(v)
	}
	if v, err = numericOperand(v, UnaryRole("-")); err != nil {
		return nil, err
	}
	return xdm.Singleton(negate(v)), nil
}

func negate(v xdm.Atomic) xdm.Atomic {
	switch x := v.Value.(type) {
	case int64:
		v.Value = -x
	case float64:
		v.Value = -x
	}
	return v
}

func (n *Negate) Operands() []Expr {
	return []Expr{n.Operand}
}

func (n *Negate) Export(e *Exporter) {
	e.Start("negate")
	e.Child(n.Operand)
	e.End()
}
