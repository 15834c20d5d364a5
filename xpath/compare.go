package xpath

import (
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

type Comparator int8

const (
	CmpEq Comparator = iota
	CmpNe
	CmpLt
	CmpLe
	CmpGt
	CmpGe
)

func (c Comparator) String() string {
	switch c {
	case CmpEq:
		return "="
	case CmpNe:
		return "!="
	case CmpLt:
		return "<"
	case CmpLe:
		return "<="
	case CmpGt:
		return ">"
	default:
		return ">="
	}
}

// Value returns the name of the comparator in a value comparison.
func (c Comparator) Value() string {
	switch c {
	case CmpEq:
		return "eq"
	case CmpNe:
		return "ne"
	case CmpLt:
		return "lt"
	case CmpLe:
		return "le"
	case CmpGt:
		return "gt"
	default:
		return "ge"
	}
}

func (c Comparator) Inverse() Comparator {
	switch c {
	case CmpLt:
		return CmpGt
	case CmpLe:
		return CmpGe
	case CmpGt:
		return CmpLt
	case CmpGe:
		return CmpLe
	default:
		return c
	}
}

func (c Comparator) compare(cmp xdm.Comparer, a, b xdm.Atomic) (bool, error) {
	if c == CmpEq || c == CmpNe {
		eq, err := cmp.Equal(a, b)
		if err != nil {
			return false, err
		}
		return eq == (c == CmpEq), nil
	}
	res, err := cmp.Compare(a, b)
	if err != nil || res == xdm.Unordered {
		return false, err
	}
	switch c {
	case CmpLt:
		return res < 0, nil
	case CmpLe:
		return res <= 0, nil
	case CmpGt:
		return res > 0, nil
	default:
		return res >= 0, nil
	}
}

// GeneralComparison is an existential comparison between two sequences.
type GeneralComparison struct {
	Op    Comparator
	Left  Expr
	Right Expr
}

func (g *GeneralComparison) Simplify() (Expr, error) {
	list := []Expr{g.Left, g.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	g.Left, g.Right = list[0], list[1]
	if isEmptyLiteral(g.Left) || isEmptyLiteral(g.Right) {
		return booleanLiteral(false), nil
	}
	return g, nil
}

func (g *GeneralComparison) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{g.Left, g.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	for i := range list {
		x, err := (&Atomizer{Operand: list[i]}).check(env)
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	g.Left, g.Right = list[0], list[1]

	var (
		t1 = g.Left.ItemType()
		t2 = g.Right.ItemType()
	)
	if !isUntyped(t1) && !isUntyped(t2) && !env.Types().PossiblyComparable(t1, t2) {
		return nil, staticErrorf(xdm.CodeType, "Cannot compare %s to %s", t1, t2)
	}
	return g.fold(env), nil
}

func (g *GeneralComparison) Optimize(env *Env) Expr {
	g.Left = g.Left.Optimize(env)
	g.Right = g.Right.Optimize(env)
	return g.fold(env)
}

func (g *GeneralComparison) fold(env *Env) Expr {
	l1, ok1 := g.Left.(*Literal)
	l2, ok2 := g.Right.(*Literal)
	if !ok1 || !ok2 {
		return g
	}
	ok, err := generalCompare(foldContext(env), g.Op, l1.Value, l2.Value)
	if err != nil {
		return g
	}
	return booleanLiteral(ok)
}

func (g *GeneralComparison) Copy(r *Rebinder) Expr {
	return &GeneralComparison{
		Op:    g.Op,
		Left:  g.Left.Copy(r),
		Right: g.Right.Copy(r),
	}
}

func (g *GeneralComparison) ItemType() ItemType {
	return booleanType
}

func (g *GeneralComparison) Cardinality() Cardinality {
	return ExactlyOne
}

func (g *GeneralComparison) Evaluate(ctx *Context) (xdm.Sequence, error) {
	left, err := g.Left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	right, err := g.Right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := generalCompare(ctx, g.Op, left, right)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(ok)), nil
}

func (g *GeneralComparison) Operands() []Expr {
	return []Expr{g.Left, g.Right}
}

func (g *GeneralComparison) Export(e *Exporter) {
	e.Start("gc")
	e.Attr("op", g.Op.String())
	e.Children(g.Left, g.Right)
	e.End()
}

func generalCompare(ctx *Context, op Comparator, left, right xdm.Sequence) (bool, error) {
	left, err := xdm.Atomize(left)
	if err != nil {
		return false, err
	}
	right, err = xdm.Atomize(right)
	if err != nil {
		return false, err
	}
	compat := ctx.Static != nil && ctx.Static.BackwardsCompatible()
	for _, i := range left {
		a, _ := xdm.AsAtomic(i)
		for _, j := range right {
			b, _ := xdm.AsAtomic(j)
			a, b, err := convertOperands(a, b, compat)
			if err != nil {
				return false, err
			}
			ok, err := op.compare(ctx.Comparer, a, b)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

// convertOperands gives the pair of values actually compared by a general
// comparison once untyped values have been cast.
func convertOperands(a, b xdm.Atomic, compat bool) (xdm.Atomic, xdm.Atomic, error) {
	var err error
	if compat && (a.Type.Numeric() || b.Type.Numeric()) {
		a = toDouble(a)
		b = toDouble(b)
		return a, b, nil
	}
	switch u1, u2 := a.Type == xdm.UntypedAtomicType, b.Type == xdm.UntypedAtomicType; {
	case u1 && u2:
		return xdm.String(a.StringValue()), xdm.String(b.StringValue()), nil
	case u1:
		a, err = castUntyped(a, b.Type)
	case u2:
		b, err = castUntyped(b, a.Type)
	default:
	}
	return a, b, err
}

func castUntyped(a xdm.Atomic, other *xdm.AtomicType) (xdm.Atomic, error) {
	switch {
	case other.Numeric():
		return xdm.Cast(a, xdm.DoubleType)
	case other.Stringlike():
		return xdm.String(a.StringValue()), nil
	default:
		return xdm.Cast(a, other.Primitive())
	}
}

func toDouble(a xdm.Atomic) xdm.Atomic {
	d, err := xdm.Cast(a, xdm.DoubleType)
	if err != nil {
		return xdm.NaN()
	}
	return d
}

func isUntyped(it ItemType) bool {
	at, ok := it.(AtomicItemType)
	return !ok || at.AtomicType == xdm.UntypedAtomicType || at.AtomicType == xdm.AnyAtomicType
}

// ValueComparison compares two single atomic values.
type ValueComparison struct {
	Op    Comparator
	Left  Expr
	Right Expr
}

func (v *ValueComparison) Simplify() (Expr, error) {
	list := []Expr{v.Left, v.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	v.Left, v.Right = list[0], list[1]
	if isEmptyLiteral(v.Left) || isEmptyLiteral(v.Right) {
		return emptyLiteral(), nil
	}
	return v, nil
}

func (v *ValueComparison) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{v.Left, v.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	for i := range list {
		single := SingletonAtomizer{
			Operand:    list[i],
			Role:       BinaryRole(v.Op.Value(), i),
			AllowEmpty: true,
		}
		x, err := single.check(env)
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	v.Left, v.Right = list[0], list[1]

	var (
		t1 = stringIfUntyped(v.Left.ItemType())
		t2 = stringIfUntyped(v.Right.ItemType())
	)
	if !env.Types().PossiblyComparable(t1, t2) {
		return nil, staticErrorf(xdm.CodeType, "Cannot compare %s to %s", t1, t2)
	}
	if v.Op != CmpEq && v.Op != CmpNe && !ordered(t1) {
		return nil, staticErrorf(xdm.CodeType, "Type %s is not an ordered type", t1)
	}
	return v.fold(env), nil
}

func stringIfUntyped(it ItemType) ItemType {
	if at, ok := it.(AtomicItemType); ok && at.AtomicType == xdm.UntypedAtomicType {
		return stringType
	}
	return it
}

func ordered(it ItemType) bool {
	at, ok := it.(AtomicItemType)
	return !ok || at.AtomicType.Primitive() != xdm.QNameType
}

func (v *ValueComparison) Optimize(env *Env) Expr {
	v.Left = v.Left.Optimize(env)
	v.Right = v.Right.Optimize(env)
	return v.fold(env)
}

func (v *ValueComparison) fold(env *Env) Expr {
	a, ok1 := literalAtomic(v.Left)
	b, ok2 := literalAtomic(v.Right)
	if !ok1 || !ok2 {
		return v
	}
	res, err := v.compare(foldContext(env), a, b)
	if err != nil {
		return v
	}
	return booleanLiteral(res)
}

func (v *ValueComparison) Copy(r *Rebinder) Expr {
	return &ValueComparison{
		Op:    v.Op,
		Left:  v.Left.Copy(r),
		Right: v.Right.Copy(r),
	}
}

func (v *ValueComparison) ItemType() ItemType {
	return booleanType
}

func (v *ValueComparison) Cardinality() Cardinality {
	if v.Left.Cardinality().Zero() || v.Right.Cardinality().Zero() {
		return ZeroOrOne
	}
	return ExactlyOne
}

func (v *ValueComparison) Evaluate(ctx *Context) (xdm.Sequence, error) {
	a, ok, err := evalAtomic(ctx, v.Left)
	if err != nil || !ok {
		return nil, err
	}
	b, ok, err := evalAtomic(ctx, v.Right)
	if err != nil || !ok {
		return nil, err
	}
	res, err := v.compare(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(res)), nil
}

func (v *ValueComparison) compare(ctx *Context, a, b xdm.Atomic) (bool, error) {
	if a.Type == xdm.UntypedAtomicType {
		a = xdm.String(a.StringValue())
	}
	if b.Type == xdm.UntypedAtomicType {
		b = xdm.String(b.StringValue())
	}
	return v.Op.compare(ctx.Comparer, a, b)
}

func (v *ValueComparison) Operands() []Expr {
	return []Expr{v.Left, v.Right}
}

func (v *ValueComparison) Export(e *Exporter) {
	e.Start("vc")
	e.Attr("op", v.Op.Value())
	e.Children(v.Left, v.Right)
	e.End()
}

type NodeComparator int8

const (
	NodeIs NodeComparator = iota
	NodeBefore
	NodeAfter
)

func (c NodeComparator) String() string {
	switch c {
	case NodeIs:
		return "is"
	case NodeBefore:
		return "<<"
	default:
		return ">>"
	}
}

// IdentityComparison compares two nodes by identity or document order.
type IdentityComparison struct {
	Op    NodeComparator
	Left  Expr
	Right Expr
}

func (i *IdentityComparison) Simplify() (Expr, error) {
	list := []Expr{i.Left, i.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	i.Left, i.Right = list[0], list[1]
	if isEmptyLiteral(i.Left) || isEmptyLiteral(i.Right) {
		return emptyLiteral(), nil
	}
	return i, nil
}

func (i *IdentityComparison) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{i.Left, i.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	req := NewSequenceType(AnyNode{}, ZeroOrOne)
	for j := range list {
		x, err := coerce(env, list[j], req, BinaryRole(i.Op.String(), j))
		if err != nil {
			return nil, err
		}
		list[j] = x
	}
	i.Left, i.Right = list[0], list[1]
	return i, nil
}

func (i *IdentityComparison) Optimize(env *Env) Expr {
	i.Left = i.Left.Optimize(env)
	i.Right = i.Right.Optimize(env)
	return i
}

func (i *IdentityComparison) Copy(r *Rebinder) Expr {
	return &IdentityComparison{
		Op:    i.Op,
		Left:  i.Left.Copy(r),
		Right: i.Right.Copy(r),
	}
}

func (i *IdentityComparison) ItemType() ItemType {
	return booleanType
}

func (i *IdentityComparison) Cardinality() Cardinality {
	return ZeroOrOne
}

func (i *IdentityComparison) Evaluate(ctx *Context) (xdm.Sequence, error) {
	n1, err := evalNode(ctx, i.Left)
	if err != nil || n1 == nil {
		return nil, err
	}
	n2, err := evalNode(ctx, i.Right)
	if err != nil || n2 == nil {
		return nil, err
	}
	var res bool
	switch i.Op {
	case NodeIs:
		res = xml.Same(n1, n2)
	case NodeBefore:
		res = xml.Compare(n1, n2) < 0
	case NodeAfter:
		res = xml.Compare(n1, n2) > 0
	}
	return xdm.Singleton(xdm.Boolean(res)), nil
}

func evalNode(ctx *Context, x Expr) (xml.Node, error) {
	res, err := x.Evaluate(ctx)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	if len(res) > 1 {
		return nil, xdm.CardinalityError("", "a sequence of more than one node is not allowed as operand of a node comparison")
	}
	n, ok := xdm.AsNode(res[0])
	if !ok {
		return nil, xdm.NewError(xdm.CodeType, "operand of a node comparison is not a node")
	}
	return n, nil
}

func (i *IdentityComparison) Operands() []Expr {
	return []Expr{i.Left, i.Right}
}

func (i *IdentityComparison) Export(e *Exporter) {
	e.Start("is")
	e.Attr("op", i.Op.String())
	e.Children(i.Left, i.Right)
	e.End()
}

// EquivalenceComparison tests whether two atomic values are the same key:
// empty matches empty and NaN matches NaN. Values that cannot be compared
// are not equivalent. It is never produced by the parser.
type EquivalenceComparison struct {
	Left            Expr
	Right           Expr
	KnownComparable bool
}

func NewEquivalenceComparison(left, right Expr) *EquivalenceComparison {
	return &EquivalenceComparison{
		Left:  left,
		Right: right,
	}
}

func (q *EquivalenceComparison) Simplify() (Expr, error) {
	list := []Expr{q.Left, q.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	q.Left, q.Right = list[0], list[1]
	return q, nil
}

func (q *EquivalenceComparison) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{q.Left, q.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	req := NewSequenceType(anyAtomic, ZeroOrOne)
	for i := range list {
		x, err := coerce(env, list[i], req, BinaryRole("eq", i))
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	q.Left, q.Right = list[0], list[1]

	var (
		th = env.Types()
		t1 = stringIfUntyped(q.Left.ItemType())
		t2 = stringIfUntyped(q.Right.ItemType())
	)
	if !th.PossiblyComparable(t1, t2) {
		env.Warn("Cannot compare " + t1.String() + " to " + t2.String())
	}
	if th.GuaranteedComparable(t1, t2) {
		q.KnownComparable = true
	}
	return q.fold(env), nil
}

func (q *EquivalenceComparison) Optimize(env *Env) Expr {
	q.Left = q.Left.Optimize(env)
	q.Right = q.Right.Optimize(env)
	return q.fold(env)
}

func (q *EquivalenceComparison) fold(env *Env) Expr {
	l1, ok1 := q.Left.(*Literal)
	l2, ok2 := q.Right.(*Literal)
	if !ok1 || !ok2 || len(l1.Value) > 1 || len(l2.Value) > 1 {
		return q
	}
	ctx := foldContext(env)
	return booleanLiteral(q.equivalent(ctx, l1.Value, l2.Value))
}

func (q *EquivalenceComparison) Copy(r *Rebinder) Expr {
	return &EquivalenceComparison{
		Left:            q.Left.Copy(r),
		Right:           q.Right.Copy(r),
		KnownComparable: q.KnownComparable,
	}
}

func (q *EquivalenceComparison) ItemType() ItemType {
	return booleanType
}

func (q *EquivalenceComparison) Cardinality() Cardinality {
	return ExactlyOne
}

func (q *EquivalenceComparison) Evaluate(ctx *Context) (xdm.Sequence, error) {
	left, err := q.Left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	right, err := q.Right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if left, err = xdm.Atomize(left); err != nil {
		return nil, err
	}
	if right, err = xdm.Atomize(right); err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(q.equivalent(ctx, left, right))), nil
}

func (q *EquivalenceComparison) equivalent(ctx *Context, left, right xdm.Sequence) bool {
	switch {
	case len(left) == 0 && len(right) == 0:
		return true
	case len(left) == 0 || len(right) == 0:
		return false
	default:
	}
	a, _ := xdm.AsAtomic(left[0])
	b, _ := xdm.AsAtomic(right[0])
	return sameKey(ctx.Comparer, a, b)
}

// sameKey reports whether two values are equal as keys: NaN is equal to
// itself, untyped values compare as strings and values that cannot be
// compared are different.
func sameKey(cmp xdm.Comparer, a, b xdm.Atomic) bool {
	if a.IsNaN() && b.IsNaN() {
		return true
	}
	if a.Type == xdm.UntypedAtomicType {
		a = xdm.String(a.StringValue())
	}
	if b.Type == xdm.UntypedAtomicType {
		b = xdm.String(b.StringValue())
	}
	ok, err := cmp.Equal(a, b)
	return err == nil && ok
}

func (q *EquivalenceComparison) Operands() []Expr {
	return []Expr{q.Left, q.Right}
}

func (q *EquivalenceComparison) Export(e *Exporter) {
	e.Start("equivalent")
	e.Attr("cardinality", "singleton")
	if q.KnownComparable {
		e.Attr("knownComparable", "true")
	}
	e.Children(q.Left, q.Right)
	e.End()
}
