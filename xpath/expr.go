package xpath

import (
	"context"
	"slices"
	"strconv"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// Expr is a node of a compiled expression. The static passes return the
// node that replaces the receiver in its parent: Simplify first, then
// TypeCheck, then Optimize. Optimize never fails; it keeps the node when a
// rewrite does not apply.
type Expr interface {
	Simplify() (Expr, error)
	TypeCheck(*Env) (Expr, error)
	Optimize(*Env) Expr
	Copy(*Rebinder) Expr
	ItemType() ItemType
	Cardinality() Cardinality
	Evaluate(*Context) (xdm.Sequence, error)
	Operands() []Expr
	Export(*Exporter)
}

func simplifyAll(list []Expr) error {
	for i := range list {
		x, err := list[i].Simplify()
		if err != nil {
			return err
		}
		list[i] = x
	}
	return nil
}

func typeCheckAll(env *Env, list []Expr) error {
	for i := range list {
		x, err := list[i].TypeCheck(env)
		if err != nil {
			return err
		}
		list[i] = x
	}
	return nil
}

func optimizeAll(env *Env, list []Expr) {
	for i := range list {
		list[i] = list[i].Optimize(env)
	}
}

func copyAll(r *Rebinder, list []Expr) []Expr {
	if list == nil {
		return nil
	}
	other := make([]Expr, 0, len(list))
	for _, x := range list {
		other = append(other, x.Copy(r))
	}
	return other
}

// foldContext is the dynamic context used to evaluate constant
// subexpressions at compile time.
func foldContext(env *Env) *Context {
	ctx, err := NewContext(context.Background(), env.Static, 0)
	if err != nil {
		ctx = &Context{
			ctx:      context.Background(),
			Static:   env.Static,
			Comparer: xdm.CodepointComparer(),
		}
	}
	return ctx
}

type Literal struct {
	Value xdm.Sequence
}

func NewLiteral(seq xdm.Sequence) *Literal {
	return &Literal{
		Value: seq,
	}
}

func atomicLiteral(a xdm.Atomic) *Literal {
	return NewLiteral(xdm.Singleton(a))
}

func emptyLiteral() *Literal {
	return NewLiteral(xdm.Empty())
}

func booleanLiteral(b bool) *Literal {
	return atomicLiteral(xdm.Boolean(b))
}

func (l *Literal) Simplify() (Expr, error) {
	return l, nil
}

func (l *Literal) TypeCheck(_ *Env) (Expr, error) {
	return l, nil
}

func (l *Literal) Optimize(_ *Env) Expr {
	return l
}

func (l *Literal) Copy(_ *Rebinder) Expr {
	return NewLiteral(slices.Clone(l.Value))
}

func (l *Literal) ItemType() ItemType {
	if len(l.Value) == 0 {
		return ErrorType{}
	}
	var it ItemType
	for _, i := range l.Value {
		var curr ItemType = AnyItem{}
		switch i := i.(type) {
		case xdm.Atomic:
			curr = AtomicOf(i.Type)
		case xdm.NodeItem:
			curr = NodeKindTest{Kind: i.Type()}
		default:
			if _, ok := xdm.AsFunction(i); ok {
				curr = FunctionTest{Any: true}
			}
		}
		it = commonType(it, curr)
	}
	return it
}

func (l *Literal) Cardinality() Cardinality {
	return cardinalityOf(len(l.Value))
}

func (l *Literal) Evaluate(_ *Context) (xdm.Sequence, error) {
	return l.Value, nil
}

func (l *Literal) Operands() []Expr {
	return nil
}

func (l *Literal) Export(e *Exporter) {
	e.Start("literal")
	if len(l.Value) != 1 {
		e.Attr("count", strconv.Itoa(len(l.Value)))
	}
	e.Attr("value", l.Value.String())
	e.Attr("type", l.ItemType().String())
	e.End()
}

func literalAtomic(x Expr) (xdm.Atomic, bool) {
	lit, ok := x.(*Literal)
	if !ok || len(lit.Value) != 1 {
		return xdm.Atomic{}, false
	}
	return xdm.AsAtomic(lit.Value[0])
}

func isConstantBoolean(x Expr, b bool) bool {
	a, ok := literalAtomic(x)
	if !ok {
		return false
	}
	v, ok := a.Value.(bool)
	return ok && v == b
}

func isEmptyLiteral(x Expr) bool {
	lit, ok := x.(*Literal)
	return ok && len(lit.Value) == 0
}

// ContextItem is the expression ".".
type ContextItem struct {
	typ ItemType
}

func (c *ContextItem) Simplify() (Expr, error) {
	return c, nil
}

func (c *ContextItem) TypeCheck(env *Env) (Expr, error) {
	if env.ContextItem == nil {
		return nil, staticError(CodeNoContext, "The context item is absent, so '.' is undefined")
	}
	c.typ = env.ContextItem
	return c, nil
}

func (c *ContextItem) Optimize(_ *Env) Expr {
	return c
}

func (c *ContextItem) Copy(_ *Rebinder) Expr {
	x := *c
	return &x
}

func (c *ContextItem) ItemType() ItemType {
	if c.typ == nil {
		return AnyItem{}
	}
	return c.typ
}

func (c *ContextItem) Cardinality() Cardinality {
	return ExactlyOne
}

func (c *ContextItem) Evaluate(ctx *Context) (xdm.Sequence, error) {
	if ctx.Item == nil {
		return nil, xdm.NewError(CodeNoContext, "the context item is absent")
	}
	return xdm.Singleton(ctx.Item), nil
}

func (c *ContextItem) Operands() []Expr {
	return nil
}

func (c *ContextItem) Export(e *Exporter) {
	e.Start("dot")
	e.End()
}

// Root selects the document node of the tree containing the context item.
type Root struct{}

func (r *Root) Simplify() (Expr, error) {
	return r, nil
}

func (r *Root) TypeCheck(env *Env) (Expr, error) {
	if env.ContextItem == nil {
		return nil, staticError(CodeNoContext, "The context item is absent, so '/' is undefined")
	}
	if env.Types().Disjoint(env.ContextItem, AnyNode{}) {
		return nil, staticErrorf(xdm.CodeNotNode, "The context item for '/' is not a node: its type is %s", env.ContextItem)
	}
	return r, nil
}

func (r *Root) Optimize(_ *Env) Expr {
	return r
}

func (r *Root) Copy(_ *Rebinder) Expr {
	return &Root{}
}

func (r *Root) ItemType() ItemType {
	return NodeKindTest{Kind: xml.TypeDocument}
}

func (r *Root) Cardinality() Cardinality {
	return ExactlyOne
}

func (r *Root) Evaluate(ctx *Context) (xdm.Sequence, error) {
	n, err := ctx.node()
	if err != nil {
		return nil, err
	}
	root := xml.Root(n)
	if root.Type() != xml.TypeDocument {
		return nil, xdm.NewError(CodeTreat, "the root of the tree containing the context item is not a document node")
	}
	return xdm.Singleton(xdm.NewNode(root)), nil
}

func (r *Root) Operands() []Expr {
	return nil
}

func (r *Root) Export(e *Exporter) {
	e.Start("root")
	e.End()
}

// Block is the comma operator.
type Block struct {
	Items []Expr
}

func (b *Block) Simplify() (Expr, error) {
	if err := simplifyAll(b.Items); err != nil {
		return nil, err
	}
	var list []Expr
	for _, x := range b.Items {
		if other, ok := x.(*Block); ok {
			list = append(list, other.Items...)
			continue
		}
		if isEmptyLiteral(x) {
			continue
		}
		list = append(list, x)
	}
	b.Items = list
	switch len(list) {
	case 0:
		return emptyLiteral(), nil
	case 1:
		return list[0], nil
	}
	var seq xdm.Sequence
	for _, x := range list {
		lit, ok := x.(*Literal)
		if !ok {
			return b, nil
		}
		seq.Concat(lit.Value)
	}
	return NewLiteral(seq), nil
}

func (b *Block) TypeCheck(env *Env) (Expr, error) {
	if err := typeCheckAll(env, b.Items); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Block) Optimize(env *Env) Expr {
	optimizeAll(env, b.Items)
	return b
}

func (b *Block) Copy(r *Rebinder) Expr {
	return &Block{
		Items: copyAll(r, b.Items),
	}
}

func (b *Block) ItemType() ItemType {
	var it ItemType
	for _, x := range b.Items {
		if x.Cardinality() == Empty {
			continue
		}
		it = commonType(it, x.ItemType())
	}
	if it == nil {
		return ErrorType{}
	}
	return it
}

func (b *Block) Cardinality() Cardinality {
	card := Empty
	for _, x := range b.Items {
		card = card.Sum(x.Cardinality())
	}
	return card
}

func (b *Block) Evaluate(ctx *Context) (xdm.Sequence, error) {
	var seq xdm.Sequence
	for _, x := range b.Items {
		res, err := x.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		seq.Concat(res)
	}
	return seq, nil
}

func (b *Block) Operands() []Expr {
	return b.Items
}

func (b *Block) Export(e *Exporter) {
	e.Start("sequence")
	e.Children(b.Items...)
	e.End()
}

type If struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (i *If) Simplify() (Expr, error) {
	list := []Expr{i.Cond, i.Then, i.Else}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	i.Cond, i.Then, i.Else = list[0], list[1], list[2]
	if lit, ok := i.Cond.(*Literal); ok {
		b, err := xdm.EffectiveBooleanValue(lit.Value)
		if err == nil {
			if b {
				return i.Then, nil
			}
			return i.Else, nil
		}
	}
	return i, nil
}

func (i *If) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{i.Cond, i.Then, i.Else}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	i.Cond, i.Then, i.Else = list[0], list[1], list[2]
	return i, nil
}

func (i *If) Optimize(env *Env) Expr {
	i.Cond = i.Cond.Optimize(env)
	i.Then = i.Then.Optimize(env)
	i.Else = i.Else.Optimize(env)
	switch {
	case isConstantBoolean(i.Cond, true):
		return i.Then
	case isConstantBoolean(i.Cond, false):
		return i.Else
	default:
		return i
	}
}

func (i *If) Copy(r *Rebinder) Expr {
	return &If{
		Cond: i.Cond.Copy(r),
		Then: i.Then.Copy(r),
		Else: i.Else.Copy(r),
	}
}

func (i *If) ItemType() ItemType {
	switch {
	case i.Then.Cardinality() == Empty:
		return i.Else.ItemType()
	case i.Else.Cardinality() == Empty:
		return i.Then.ItemType()
	default:
		return commonType(i.Then.ItemType(), i.Else.ItemType())
	}
}

func (i *If) Cardinality() Cardinality {
	return i.Then.Cardinality().Union(i.Else.Cardinality())
}

func (i *If) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := i.Cond.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ok, err := xdm.EffectiveBooleanValue(res)
	if err != nil {
		return nil, err
	}
	if ok {
		return i.Then.Evaluate(ctx)
	}
	return i.Else.Evaluate(ctx)
}

func (i *If) Operands() []Expr {
	return []Expr{i.Cond, i.Then, i.Else}
}

func (i *If) Export(e *Exporter) {
	e.Start("if")
	e.Children(i.Cond, i.Then, i.Else)
	e.End()
}

// Range is the expression "a to b".
type Range struct {
	Left  Expr
	Right Expr
}

func (r *Range) Simplify() (Expr, error) {
	list := []Expr{r.Left, r.Right}
	if err := simplifyAll(list); err != nil {
		return nil, err
	}
	r.Left, r.Right = list[0], list[1]
	if isEmptyLiteral(r.Left) || isEmptyLiteral(r.Right) {
		return emptyLiteral(), nil
	}
	return r, nil
}

func (r *Range) TypeCheck(env *Env) (Expr, error) {
	list := []Expr{r.Left, r.Right}
	if err := typeCheckAll(env, list); err != nil {
		return nil, err
	}
	req := NewSequenceType(integerType, ZeroOrOne)
	for i := range list {
		x, err := coerce(env, list[i], req, BinaryRole("to", i))
		if err != nil {
			return nil, err
		}
		list[i] = x
	}
	r.Left, r.Right = list[0], list[1]
	return r, nil
}

func (r *Range) Optimize(env *Env) Expr {
	r.Left = r.Left.Optimize(env)
	r.Right = r.Right.Optimize(env)
	a1, ok1 := literalAtomic(r.Left)
	a2, ok2 := literalAtomic(r.Right)
	if ok1 && ok2 {
		i1, ok1 := a1.Value.(int64)
		i2, ok2 := a2.Value.(int64)
		if ok1 && ok2 && i1 == i2 {
			return atomicLiteral(xdm.Integer(i1))
		}
	}
	return r
}

func (r *Range) Copy(rb *Rebinder) Expr {
	return &Range{
		Left:  r.Left.Copy(rb),
		Right: r.Right.Copy(rb),
	}
}

func (r *Range) ItemType() ItemType {
	return integerType
}

func (r *Range) Cardinality() Cardinality {
	return ZeroOrMore
}

func (r *Range) Evaluate(ctx *Context) (xdm.Sequence, error) {
	from, ok, err := evalInteger(ctx, r.Left)
	if err != nil || !ok {
		return nil, err
	}
	to, ok, err := evalInteger(ctx, r.Right)
	if err != nil || !ok {
		return nil, err
	}
	var seq xdm.Sequence
	for i := from; i <= to; i++ {
		if (i-from)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		seq.Append(xdm.Integer(i))
	}
	return seq, nil
}

func (r *Range) Operands() []Expr {
	return []Expr{r.Left, r.Right}
}

func (r *Range) Export(e *Exporter) {
	e.Start("to")
	e.Children(r.Left, r.Right)
	e.End()
}

func evalInteger(ctx *Context, x Expr) (int64, bool, error) {
	a, ok, err := evalAtomic(ctx, x)
	if err != nil || !ok {
		return 0, ok, err
	}
	if a.Type != xdm.IntegerType {
		c, err := xdm.Cast(a, xdm.IntegerType)
		if err != nil {
			return 0, false, err
		}
		a = c
	}
	return a.Value.(int64), true, nil
}

// evalAtomic evaluates x, atomizes the result and returns its only item.
func evalAtomic(ctx *Context, x Expr) (xdm.Atomic, bool, error) {
	res, err := x.Evaluate(ctx)
	if err != nil {
		return xdm.Atomic{}, false, err
	}
	res, err = xdm.Atomize(res)
	if err != nil {
		return xdm.Atomic{}, false, err
	}
	switch len(res) {
	case 0:
		return xdm.Atomic{}, false, nil
	case 1:
		a, _ := xdm.AsAtomic(res[0])
		return a, true, nil
	default:
		return xdm.Atomic{}, false, xdm.CardinalityError("", "a sequence of more than one item is not allowed here")
	}
}

// VarRef is a reference to a binding. The handle is resolved once when the
// reference is parsed.
type VarRef struct {
	Handle Handle
	Name   xml.QName

	typ SequenceType
}

func (v *VarRef) Simplify() (Expr, error) {
	return v, nil
}

func (v *VarRef) TypeCheck(env *Env) (Expr, error) {
	if b := env.Bindings.Get(v.Handle); b != nil {
		v.typ = b.Type()
	}
	return v, nil
}

func (v *VarRef) Optimize(_ *Env) Expr {
	return v
}

func (v *VarRef) Copy(r *Rebinder) Expr {
	return &VarRef{
		Handle: r.Lookup(v.Handle),
		Name:   v.Name,
		typ:    v.typ,
	}
}

func (v *VarRef) ItemType() ItemType {
	if v.typ.Zero() {
		return AnyItem{}
	}
	return v.typ.Item
}

func (v *VarRef) Cardinality() Cardinality {
	if v.typ.Zero() {
		return ZeroOrMore
	}
	return v.typ.Card
}

func (v *VarRef) Evaluate(ctx *Context) (xdm.Sequence, error) {
	return ctx.Get(v.Handle), nil
}

func (v *VarRef) Operands() []Expr {
	return nil
}

func (v *VarRef) Export(e *Exporter) {
	e.Start("varRef")
	e.Attr("name", v.Name.QualifiedName())
	e.Attr("slot", strconv.Itoa(int(v.Handle)))
	e.End()
}

// ErrorExpr stands for an expression whose static error is only raised if
// it is evaluated.
type ErrorExpr struct {
	Code    string
	Message string
}

func (e *ErrorExpr) Simplify() (Expr, error) {
	return e, nil
}

func (e *ErrorExpr) TypeCheck(_ *Env) (Expr, error) {
	return e, nil
}

func (e *ErrorExpr) Optimize(_ *Env) Expr {
	return e
}

func (e *ErrorExpr) Copy(_ *Rebinder) Expr {
	x := *e
	return &x
}

func (e *ErrorExpr) ItemType() ItemType {
	return AnyItem{}
}

func (e *ErrorExpr) Cardinality() Cardinality {
	return ZeroOrMore
}

func (e *ErrorExpr) Evaluate(_ *Context) (xdm.Sequence, error) {
	return nil, xdm.NewError(e.Code, e.Message)
}

func (e *ErrorExpr) Operands() []Expr {
	return nil
}

func (e *ErrorExpr) Export(x *Exporter) {
	x.Start("error")
	x.Attr("code", e.Code)
	x.Attr("message", e.Message)
	x.End()
}
