package xpath

import (
	"fmt"
	"slices"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// AxisStep selects the nodes along an axis from the context node that
// match a node test. Its result is always in document order.
type AxisStep struct {
	Axis xml.Axis
	Test ItemType
}

func (a *AxisStep) Simplify() (Expr, error) {
	return a, nil
}

func (a *AxisStep) TypeCheck(env *Env) (Expr, error) {
	if env.ContextItem == nil {
		return nil, staticErrorf(CodeNoContext, "The context item for axis step %s is absent", a)
	}
	th := env.Types()
	if th.Disjoint(env.ContextItem, AnyNode{}) {
		return nil, staticErrorf(xdm.CodeNotNode, "The context item for axis step %s is not a node: its type is %s", a, env.ContextItem)
	}
	if kind, ok := a.kind(); ok && !a.selects(kind) {
		env.Warn(fmt.Sprintf("The %s axis will never select any %s nodes", a.Axis, kind))
		return emptyLiteral(), nil
	}
	ctx := env.ContextItem.UType()
	if a.Axis == xml.AxisChild && ctx != xdm.UVoid && ctx.SubsumedBy(xdm.UAttribute|xdm.UText|xdm.UComment|xdm.UInstruction|xdm.UNamespace) {
		env.Warn(fmt.Sprintf("The %s axis starting at a %s node will never select anything", a.Axis, leafKind(ctx)))
		return emptyLiteral(), nil
	}
	return a, nil
}

func leafKind(u xdm.UType) string {
	switch u {
	case xdm.UAttribute:
		return "attribute"
	case xdm.UText:
		return "text"
	case xdm.UComment:
		return "comment"
	case xdm.UInstruction:
		return "processing-instruction"
	case xdm.UNamespace:
		return "namespace"
	default:
		return "leaf"
	}
}

// kind returns the node kind required by the test, if any.
func (a *AxisStep) kind() (xml.NodeType, bool) {
	switch t := a.Test.(type) {
	case NodeKindTest:
		return t.Kind, true
	case NameTest:
		return t.Kind, true
	case NamespaceTest:
		return t.Kind, true
	case LocalNameTest:
		return t.Kind, true
	case ContentTypeTest:
		return t.Kind, true
	default:
		return 0, false
	}
}

func (a *AxisStep) selects(kind xml.NodeType) bool {
	switch a.Axis {
	case xml.AxisAttribute:
		return kind == xml.TypeAttribute
	case xml.AxisNamespace:
		return kind == xml.TypeNamespace
	case xml.AxisChild, xml.AxisDescendant, xml.AxisFollowingSibling, xml.AxisPrecedingSibling, xml.AxisFollowing, xml.AxisPreceding:
		return kind != xml.TypeAttribute && kind != xml.TypeNamespace && kind != xml.TypeDocument
	case xml.AxisAncestor, xml.AxisParent:
		return kind == xml.TypeElement || kind == xml.TypeDocument
	default:
		return true
	}
}

func (a *AxisStep) Optimize(_ *Env) Expr {
	return a
}

func (a *AxisStep) Copy(_ *Rebinder) Expr {
	x := *a
	return &x
}

func (a *AxisStep) ItemType() ItemType {
	if a.Test == nil {
		return AnyNode{}
	}
	return a.Test
}

func (a *AxisStep) Cardinality() Cardinality {
	switch a.Axis {
	case xml.AxisSelf, xml.AxisParent:
		return ZeroOrOne
	default:
		return ZeroOrMore
	}
}

func (a *AxisStep) Evaluate(ctx *Context) (xdm.Sequence, error) {
	seq, err := a.axisOrder(ctx)
	if err != nil {
		return nil, err
	}
	if !a.Axis.Forward() {
		slices.Reverse(seq)
	}
	return seq, nil
}

// axisOrder returns the selected nodes in the order of the axis, the order
// in which predicates see them.
func (a *AxisStep) axisOrder(ctx *Context) (xdm.Sequence, error) {
	node, err := ctx.node()
	if err != nil {
		return nil, err
	}
	seq := xdm.FromNodes(xml.Walk(a.Axis, node))
	if a.Test == nil {
		return seq, nil
	}
	return slices.DeleteFunc(seq, func(i xdm.Item) bool {
		return !a.Test.Matches(i)
	}), nil
}

func (a *AxisStep) Operands() []Expr {
	return nil
}

func (a *AxisStep) String() string {
	return a.Axis.String() + "::" + a.ItemType().String()
}

func (a *AxisStep) Export(e *Exporter) {
	e.Start("axis")
	e.Attr("name", a.Axis.String())
	e.Attr("nodeTest", a.ItemType().String())
	e.End()
}

// Slash evaluates Step once for each item selected by Start.
type Slash struct {
	Start Expr
	Step  Expr
}

func (s *Slash) Simplify() (Expr, error) {
	x, err := s.Start.Simplify()
	if err != nil {
		return nil, err
	}
	s.Start = x
	if s.Step, err = s.Step.Simplify(); err != nil {
		return nil, err
	}
	if isEmptyLiteral(s.Start) {
		return s.Start, nil
	}
	return s, nil
}

func (s *Slash) TypeCheck(env *Env) (Expr, error) {
	x, err := s.Start.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	s.Start = x
	it := x.ItemType()
	if alwaysEmpty(x) {
		return emptyLiteral(), nil
	}
	if env.Types().Disjoint(it, AnyNode{}) {
		return nil, staticErrorf(CodePathNotNode, "Required item type of the first operand of '/' is node(); supplied value has item type %s", it)
	}
	if s.Step, err = s.Step.TypeCheck(env.focus(it)); err != nil {
		return nil, err
	}
	if isEmptyLiteral(s.Step) {
		return s.Step, nil
	}
	return s, nil
}

func (s *Slash) Optimize(env *Env) Expr {
	s.Start = s.Start.Optimize(env)
	it := s.Start.ItemType()
	if alwaysEmpty(s.Start) {
		return emptyLiteral()
	}
	s.Step = s.Step.Optimize(env.focus(it))
	if isEmptyLiteral(s.Step) {
		return s.Step
	}
	if step, ok := s.Step.(*AxisStep); ok && !s.Start.Cardinality().Many() {
		simple := SimpleStep{
			Start: s.Start,
			Step:  step,
		}
		return simple.Optimize(env)
	}
	return s
}

func (s *Slash) Copy(r *Rebinder) Expr {
	return &Slash{
		Start: s.Start.Copy(r),
		Step:  s.Step.Copy(r),
	}
}

func (s *Slash) ItemType() ItemType {
	return s.Step.ItemType()
}

func (s *Slash) Cardinality() Cardinality {
	return s.Start.Cardinality().Multiply(s.Step.Cardinality())
}

func (s *Slash) Evaluate(ctx *Context) (xdm.Sequence, error) {
	start, err := s.Start.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	var (
		res   xdm.Sequence
		nodes int
	)
	for i, item := range start {
		if _, ok := xdm.AsNode(item); !ok {
			return nil, xdm.Errorf(CodePathNotNode, "the first operand of '/' must be a sequence of nodes; supplied item is %s", dynamicType(item))
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		other, err := s.Step.Evaluate(ctx.Focus(item, i+1, len(start)))
		if err != nil {
			return nil, err
		}
		for _, o := range other {
			if _, ok := xdm.AsNode(o); ok {
				nodes++
			}
		}
		res.Concat(other)
	}
	switch nodes {
	case len(res):
		return res.Sort(), nil
	case 0:
		return res, nil
	default:
		return nil, xdm.NewError(CodeMixedPath, "the result of the last step in a path expression contains both nodes and atomic values")
	}
}

func (s *Slash) Operands() []Expr {
	return []Expr{s.Start, s.Step}
}

func (s *Slash) Export(e *Exporter) {
	e.Start("slash")
	e.Children(s.Start, s.Step)
	e.End()
}

// alwaysEmpty reports whether x is known to return the empty sequence.
func alwaysEmpty(x Expr) bool {
	_, ok := x.ItemType().(ErrorType)
	return ok && x.Cardinality() == Empty
}

// SimpleStep is a path whose start selects at most one node: the result
// of the step needs no sorting.
type SimpleStep struct {
	Start Expr
	Step  *AxisStep
}

func (s *SimpleStep) Simplify() (Expr, error) {
	x, err := s.Start.Simplify()
	if err != nil {
		return nil, err
	}
	s.Start = x
	return s, nil
}

func (s *SimpleStep) TypeCheck(env *Env) (Expr, error) {
	x, err := s.Start.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	s.Start = x
	if alwaysEmpty(x) {
		return emptyLiteral(), nil
	}
	step, err := s.Step.TypeCheck(env.focus(x.ItemType()))
	if err != nil {
		return nil, err
	}
	if isEmptyLiteral(step) {
		return step, nil
	}
	return s.collapse(), nil
}

func (s *SimpleStep) Optimize(env *Env) Expr {
	s.Start = s.Start.Optimize(env)
	if alwaysEmpty(s.Start) {
		return emptyLiteral()
	}
	return s.collapse()
}

func (s *SimpleStep) collapse() Expr {
	if _, ok := s.Start.(*ContextItem); ok && s.Step.Axis.Forward() {
		return s.Step
	}
	return s
}

func (s *SimpleStep) Copy(r *Rebinder) Expr {
	return &SimpleStep{
		Start: s.Start.Copy(r),
		Step:  s.Step.Copy(r).(*AxisStep),
	}
}

func (s *SimpleStep) ItemType() ItemType {
	return s.Step.ItemType()
}

func (s *SimpleStep) Cardinality() Cardinality {
	return s.Start.Cardinality().Multiply(s.Step.Cardinality())
}

func (s *SimpleStep) Evaluate(ctx *Context) (xdm.Sequence, error) {
	start, err := s.Start.Evaluate(ctx)
	if err != nil || len(start) == 0 {
		return nil, err
	}
	if len(start) > 1 {
		return nil, xdm.CardinalityError("", "a sequence of more than one item is not allowed as the start of a simple step")
	}
	if _, ok := xdm.AsNode(start[0]); !ok {
		return nil, xdm.Errorf(CodePathNotNode, "the first operand of '/' must be a node; supplied item is %s", dynamicType(start[0]))
	}
	return s.Step.Evaluate(ctx.Focus(start[0], 1, 1))
}

func (s *SimpleStep) Operands() []Expr {
	return []Expr{s.Start, s.Step}
}

func (s *SimpleStep) Export(e *Exporter) {
	e.Start("simpleStep")
	e.Children(s.Start, s.Step)
	e.End()
}

// Filter keeps the items of Base for which Pred is true. A numeric
// predicate selects the item at that position.
type Filter struct {
	Base Expr
	Pred Expr
}

func (f *Filter) Simplify() (Expr, error) {
	x, err := f.Base.Simplify()
	if err != nil {
		return nil, err
	}
	f.Base = x
	if f.Pred, err = f.Pred.Simplify(); err != nil {
		return nil, err
	}
	if isEmptyLiteral(f.Base) {
		return f.Base, nil
	}
	return f, nil
}

func (f *Filter) TypeCheck(env *Env) (Expr, error) {
	x, err := f.Base.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	f.Base = x
	if f.Pred, err = f.Pred.TypeCheck(env.focus(x.ItemType())); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Filter) Optimize(env *Env) Expr {
	f.Base = f.Base.Optimize(env)
	f.Pred = f.Pred.Optimize(env.focus(f.Base.ItemType()))
	if a, ok := literalAtomic(f.Pred); ok && !a.Type.Numeric() {
		if b, ok := constantBoolean(f.Pred); ok {
			if b {
				return f.Base
			}
			return emptyLiteral()
		}
	}
	if isEmptyLiteral(f.Pred) {
		return emptyLiteral()
	}
	return f
}

func (f *Filter) Copy(r *Rebinder) Expr {
	return &Filter{
		Base: f.Base.Copy(r),
		Pred: f.Pred.Copy(r),
	}
}

func (f *Filter) ItemType() ItemType {
	return f.Base.ItemType()
}

func (f *Filter) Cardinality() Cardinality {
	if f.numeric() {
		return ZeroOrOne
	}
	return f.Base.Cardinality() | AllowsZero
}

func (f *Filter) numeric() bool {
	at, ok := f.Pred.ItemType().(AtomicItemType)
	return ok && at.AtomicType.Numeric() && f.Pred.Cardinality() == ExactlyOne
}

func (f *Filter) Evaluate(ctx *Context) (xdm.Sequence, error) {
	var (
		seq xdm.Sequence
		err error
	)
	if step, ok := f.Base.(*AxisStep); ok {
		seq, err = step.axisOrder(ctx)
	} else {
		seq, err = f.Base.Evaluate(ctx)
	}
	if err != nil {
		return nil, err
	}
	var res xdm.Sequence
	for i, item := range seq {
		pred, err := f.Pred.Evaluate(ctx.Focus(item, i+1, len(seq)))
		if err != nil {
			return nil, err
		}
		ok, err := predicateTruth(pred, i+1)
		if err != nil {
			return nil, err
		}
		if ok {
			res.Append(item)
		}
	}
	return res, nil
}

// predicateTruth applies a predicate value to the item at position pos.
func predicateTruth(pred xdm.Sequence, pos int) (bool, error) {
	if len(pred) == 1 {
		if a, ok := xdm.AsAtomic(pred[0]); ok && a.Type.Numeric() {
			f, _ := a.Float()
			return f == float64(pos), nil
		}
	}
	return xdm.EffectiveBooleanValue(pred)
}

func (f *Filter) Operands() []Expr {
	return []Expr{f.Base, f.Pred}
}

func (f *Filter) Export(e *Exporter) {
	e.Start("filter")
	e.Children(f.Base, f.Pred)
	e.End()
}

// Reverse reverses the order of its operand. It restores document order
// after predicates applied to a reverse axis.
type Reverse struct {
	Operand Expr
}

func (r *Reverse) Simplify() (Expr, error) {
	x, err := r.Operand.Simplify()
	if err != nil {
		return nil, err
	}
	r.Operand = x
	return r, nil
}

func (r *Reverse) TypeCheck(env *Env) (Expr, error) {
	x, err := r.Operand.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	r.Operand = x
	return r, nil
}

func (r *Reverse) Optimize(env *Env) Expr {
	r.Operand = r.Operand.Optimize(env)
	if !r.Operand.Cardinality().Many() {
		return r.Operand
	}
	return r
}

func (r *Reverse) Copy(rb *Rebinder) Expr {
	return &Reverse{
		Operand: r.Operand.Copy(rb),
	}
}

func (r *Reverse) ItemType() ItemType {
	return r.Operand.ItemType()
}

func (r *Reverse) Cardinality() Cardinality {
	return r.Operand.Cardinality()
}

func (r *Reverse) Evaluate(ctx *Context) (xdm.Sequence, error) {
	seq, err := r.Operand.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	seq = slices.Clone(seq)
	slices.Reverse(seq)
	return seq, nil
}

func (r *Reverse) Operands() []Expr {
	return []Expr{r.Operand}
}

func (r *Reverse) Export(e *Exporter) {
	e.Start("reverse")
	e.Child(r.Operand)
	e.End()
}

type SetOp int8

const (
	SetUnion SetOp = iota
	SetIntersect
	SetExcept
)

func (o SetOp) String() string {
	switch o {
	case SetUnion:
		return "union"
	case SetIntersect:
		return "intersect"
	default:
		return "except"
	}
}

// Venn combines two sequences of nodes.
type Venn struct {
	Op    SetOp
	Left  Expr
	Right Expr
}

func (v *Venn) Simplify() (Expr, error) {
	list := []Expr{v.Left, v.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	v.Left, v.Right = list[0], list[1]
	switch {
	case v.Op == SetIntersect && (isEmptyLiteral(v.Left) || isEmptyLiteral(v.Right)):
		return emptyLiteral(), nil
	case v.Op == SetExcept && isEmptyLiteral(v.Left):
		return emptyLiteral(), nil
	default:
		return v, nil
	}
}

func (v *Venn) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{v.Left, v.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	req := NewSequenceType(AnyNode{}, ZeroOrMore)
	for i := range list {
		x, err := coerce(env, list[i], req, BinaryRole(v.Op.String(), i))
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	v.Left, v.Right = list[0], list[1]
	return v, nil
}

func (v *Venn) Optimize(env *Env) Expr {
	v.Left = v.Left.Optimize(env)
	v.Right = v.Right.Optimize(env)
	return v
}

func (v *Venn) Copy(r *Rebinder) Expr {
	return &Venn{
		Op:    v.Op,
		Left:  v.Left.Copy(r),
		Right: v.Right.Copy(r),
	}
}

func (v *Venn) ItemType() ItemType {
	switch v.Op {
	case SetUnion:
		return commonType(v.Left.ItemType(), v.Right.ItemType())
	case SetIntersect:
		return Intersect(v.Left.ItemType(), v.Right.ItemType())
	default:
		return v.Left.ItemType()
	}
}

func (v *Venn) Cardinality() Cardinality {
	switch v.Op {
	case SetUnion:
		card := v.Left.Cardinality().Sum(v.Right.Cardinality())
		if card.Many() {
			card |= AllowsOne
		}
		return card
	default:
		return v.Left.Cardinality() | AllowsZero
	}
}

func (v *Venn) Evaluate(ctx *Context) (xdm.Sequence, error) {
	left, err := v.Left.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	right, err := v.Right.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if !left.Nodes() || !right.Nodes() {
		return nil, xdm.Errorf(xdm.CodeType, "operands of '%s' must be sequences of nodes", v.Op)
	}
	contains := func(seq xdm.Sequence, item xdm.Item) bool {
		n1, _ := xdm.AsNode(item)
		return slices.ContainsFunc(seq, func(other xdm.Item) bool {
			n2, _ := xdm.AsNode(other)
			return xml.Same(n1, n2)
		})
	}
	var res xdm.Sequence
	switch v.Op {
	case SetUnion:
		res = slices.Concat(left, right)
	case SetIntersect:
		for _, i := range left {
			if contains(right, i) {
				res.Append(i)
			}
		}
	case SetExcept:
		for _, i := range left {
			if !contains(right, i) {
				res.Append(i)
			}
		}
	}
	return res.Sort(), nil
}

func (v *Venn) Operands() []Expr {
	return []Expr{v.Left, v.Right}
}

func (v *Venn) Export(e *Exporter) {
	e.Start("venn")
	e.Attr("op", v.Op.String())
	e.Children(v.Left, v.Right)
	e.End()
}
