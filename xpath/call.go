package xpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// FunctionCall is a static call to a function of the fn namespace.
type FunctionCall struct {
	Def  *builtin
	Args []Expr
}

func newFunctionCall(def *builtin, args []Expr) *FunctionCall {
	return &FunctionCall{
		Def:  def,
		Args: args,
	}
}

func (f *FunctionCall) Name() xml.QName {
	return xml.ExpandedName(f.Def.Name, "fn", FnNS)
}

func (f *FunctionCall) Simplify() (Expr, error) {
	if err := simplifyAll(f.Args); err != nil {
		return nil, err
	}
	if f.Def.context && len(f.Args) == 0 {
		f.Args = []Expr{&ContextItem{}}
	}
	switch f.Def.Name {
	case "true":
		return booleanLiteral(true), nil
	case "false":
		return booleanLiteral(false), nil
	case "not":
		return (&Not{Operand: f.Args[0]}).Simplify()
	case "data":
		return (&Atomizer{Operand: f.Args[0]}).Simplify()
	case "boolean":
		if b, ok := constantBoolean(f.Args[0]); ok {
			return booleanLiteral(b), nil
		}
	default:
	}
	return f, nil
}

func (f *FunctionCall) TypeCheck(env *Env) (Expr, error) {
	if err := typeCheckAll(env, f.Args); err != nil {
		return nil, err
	}
	if f.Def.focus && env.ContextItem == nil {
		return nil, staticErrorf(CodeNoContext, "The context item is absent, so %s() is undefined", f.Def.Name)
	}
	for i := range f.Args {
		x, err := coerce(env, f.Args[i], f.Def.param(i), FunctionRole(f.Def.Name, i))
		if err != nil {
			return nil, err
		}
		f.Args[i] = x
	}
	return f, nil
}

func (f *FunctionCall) Optimize(env *Env) Expr {
	optimizeAll(env, f.Args)
	if !f.Def.pure {
		return f
	}
	for _, a := range f.Args {
		if _, ok := a.(*Literal); !ok {
			return f
		}
	}
	res, err := f.Evaluate(foldContext(env))
	if err != nil {
		return f
	}
	return NewLiteral(res)
}

func (f *FunctionCall) Copy(r *Rebinder) Expr {
	return newFunctionCall(f.Def, copyAll(r, f.Args))
}

func (f *FunctionCall) ItemType() ItemType {
	switch f.Def.Name {
	case "reverse", "subsequence":
		return f.Args[0].ItemType()
	case "abs":
		if it := f.Args[0].ItemType(); it.UType() == xdm.UAtomic {
			return it
		}
	case "root":
		return AnyNode{}
	default:
	}
	return f.Def.result.Item
}

func (f *FunctionCall) Cardinality() Cardinality {
	switch f.Def.Name {
	case "reverse":
		return f.Args[0].Cardinality()
	case "abs":
		return f.Args[0].Cardinality()
	default:
		return f.Def.result.Card
	}
}

func (f *FunctionCall) Evaluate(ctx *Context) (xdm.Sequence, error) {
	args := make([]xdm.Sequence, 0, len(f.Args))
	for _, a := range f.Args {
		res, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, res)
	}
	return f.Def.eval(ctx, args)
}

func (f *FunctionCall) Operands() []Expr {
	return f.Args
}

func (f *FunctionCall) Export(e *Exporter) {
	e.Start("fn")
	e.Attr("name", f.Def.Name)
	e.Children(f.Args...)
	e.End()
}

// UserFunctionCall is a static call to a function given to the static
// context.
type UserFunctionCall struct {
	Func *UserFunction
	Args []Expr
}

func (u *UserFunctionCall) Simplify() (Expr, error) {
	if err := simplifyAll(u.Args); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *UserFunctionCall) TypeCheck(env *Env) (Expr, error) {
	if err := typeCheckAll(env, u.Args); err != nil {
		return nil, err
	}
	for i, p := range u.Func.Params {
		if p.Type.Zero() {
			continue
		}
		x, err := coerce(env, u.Args[i], p.Type, FunctionRole(u.Func.Name.QualifiedName(), i))
		if err != nil {
			return nil, err
		}
		u.Args[i] = x
	}
	return u, nil
}

func (u *UserFunctionCall) Optimize(env *Env) Expr {
	optimizeAll(env, u.Args)
	return u
}

func (u *UserFunctionCall) Copy(r *Rebinder) Expr {
	return &UserFunctionCall{
		Func: u.Func,
		Args: copyAll(r, u.Args),
	}
}

func (u *UserFunctionCall) ItemType() ItemType {
	return u.Func.ResultType().Item
}

func (u *UserFunctionCall) Cardinality() Cardinality {
	return u.Func.ResultType().Card
}

func (u *UserFunctionCall) Evaluate(ctx *Context) (xdm.Sequence, error) {
	args := make([]xdm.Sequence, 0, len(u.Args))
	for _, a := range u.Args {
		res, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, res)
	}
	return u.Func.invoke(ctx.ctx, ctx.depth+1, args)
}

func (u *UserFunctionCall) Operands() []Expr {
	return u.Args
}

func (u *UserFunctionCall) Export(e *Exporter) {
	e.Start("ufCall")
	e.Attr("name", u.Func.Name.QualifiedName())
	e.Children(u.Args...)
	e.End()
}

// PartialApply is a function call with placeholders. Each placeholder is
// bound to a parameter of the resulting function item.
type PartialApply struct {
	Name   xml.QName
	Call   Expr
	Params []Handle
	holes  []int
}

// Holes returns the positions of the placeholders in the argument list.
func (p *PartialApply) Holes() []int {
	return p.holes
}

func (p *PartialApply) Simplify() (Expr, error) {
	x, err := p.Call.Simplify()
	if err != nil {
		return nil, err
	}
	p.Call = x
	return p, nil
}

func (p *PartialApply) TypeCheck(env *Env) (Expr, error) {
	x, err := p.Call.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	p.Call = x
	return p, nil
}

func (p *PartialApply) Optimize(env *Env) Expr {
	p.Call = p.Call.Optimize(env)
	return p
}

func (p *PartialApply) Copy(r *Rebinder) Expr {
	params := declareAll(r, p.Params)
	return &PartialApply{
		Name:   p.Name,
		Call:   p.Call.Copy(r),
		Params: params,
		holes:  p.holes,
	}
}

func (p *PartialApply) ItemType() ItemType {
	return functionType(len(p.Params), p.Call)
}

func (p *PartialApply) Cardinality() Cardinality {
	return ExactlyOne
}

func (p *PartialApply) Evaluate(ctx *Context) (xdm.Sequence, error) {
	fn := closure{
		name:   p.Name,
		params: p.Params,
		body:   p.Call,
		ctx:    ctx.snapshot(),
	}
	return xdm.Singleton(&fn), nil
}

func (p *PartialApply) Operands() []Expr {
	return []Expr{p.Call}
}

func (p *PartialApply) Export(e *Exporter) {
	e.Start("partialApply")
	e.Attr("name", p.Name.QualifiedName())
	var list []string
	for _, h := range p.holes {
		list = append(list, strconv.Itoa(h))
	}
	e.Attr("holes", strings.Join(list, " "))
	e.Child(p.Call)
	e.End()
}

// FunctionRef is a named function reference, name#arity.
type FunctionRef struct {
	Name   xml.QName
	Call   Expr
	Params []Handle
}

func (f *FunctionRef) Simplify() (Expr, error) {
	x, err := f.Call.Simplify()
	if err != nil {
		return nil, err
	}
	f.Call = x
	return f, nil
}

func (f *FunctionRef) TypeCheck(env *Env) (Expr, error) {
	x, err := f.Call.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	f.Call = x
	return f, nil
}

func (f *FunctionRef) Optimize(env *Env) Expr {
	f.Call = f.Call.Optimize(env)
	return f
}

func (f *FunctionRef) Copy(r *Rebinder) Expr {
	params := declareAll(r, f.Params)
	return &FunctionRef{
		Name:   f.Name,
		Call:   f.Call.Copy(r),
		Params: params,
	}
}

func (f *FunctionRef) ItemType() ItemType {
	return functionType(len(f.Params), f.Call)
}

func (f *FunctionRef) Cardinality() Cardinality {
	return ExactlyOne
}

func (f *FunctionRef) Evaluate(ctx *Context) (xdm.Sequence, error) {
	fn := closure{
		name:   f.Name,
		params: f.Params,
		body:   f.Call,
		ctx:    ctx.snapshot(),
	}
	return xdm.Singleton(&fn), nil
}

func (f *FunctionRef) Operands() []Expr {
	return []Expr{f.Call}
}

func (f *FunctionRef) Export(e *Exporter) {
	e.Start("fnRef")
	e.Attr("name", f.Name.QualifiedName())
	e.Attr("arity", strconv.Itoa(len(f.Params)))
	e.Child(f.Call)
	e.End()
}

func declareAll(r *Rebinder, list []Handle) []Handle {
	other := make([]Handle, 0, len(list))
	for _, h := range list {
		other = append(other, r.Declare(h))
	}
	return other
}

func functionType(arity int, body Expr) ItemType {
	args := make([]SequenceType, arity)
	for i := range args {
		args[i] = anySequence
	}
	return FunctionTest{
		Args:   args,
		Result: NewSequenceType(body.ItemType(), body.Cardinality()),
	}
}

// DynamicCall calls the function item returned by Func.
type DynamicCall struct {
	Func Expr
	Args []Expr
}

func (d *DynamicCall) Simplify() (Expr, error) {
	x, err := d.Func.Simplify()
	if err != nil {
		return nil, err
	}
	d.Func = x
	if err := simplifyAll(d.Args); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DynamicCall) TypeCheck(env *Env) (Expr, error) {
	x, err := d.Func.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	req := NewSequenceType(FunctionTest{Any: true}, ExactlyOne)
	if x, err = coerce(env, x, req, TypeOpRole("dynamic function call")); err != nil {
		return nil, err
	}
	d.Func = x
	if ft, ok := x.ItemType().(FunctionTest); ok && !ft.Any && len(ft.Args) != len(d.Args) {
		return nil, staticErrorf(xdm.CodeType, "Function has arity %d; it is called with %d arguments", len(ft.Args), len(d.Args))
	}
	if err := typeCheckAll(env, d.Args); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DynamicCall) Optimize(env *Env) Expr {
	d.Func = d.Func.Optimize(env)
	optimizeAll(env, d.Args)
	return d
}

func (d *DynamicCall) Copy(r *Rebinder) Expr {
	return &DynamicCall{
		Func: d.Func.Copy(r),
		Args: copyAll(r, d.Args),
	}
}

func (d *DynamicCall) ItemType() ItemType {
	if ft, ok := d.Func.ItemType().(FunctionTest); ok && !ft.Any {
		return ft.Result.Item
	}
	return AnyItem{}
}

func (d *DynamicCall) Cardinality() Cardinality {
	if ft, ok := d.Func.ItemType().(FunctionTest); ok && !ft.Any {
		return ft.Result.Card
	}
	return ZeroOrMore
}

func (d *DynamicCall) Evaluate(ctx *Context) (xdm.Sequence, error) {
	res, err := d.Func.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	if len(res) != 1 {
		return nil, xdm.CardinalityError("", "the target of a dynamic function call must be a single function item")
	}
	fn, ok := xdm.AsFunction(res[0])
	if !ok {
		return nil, xdm.Errorf(xdm.CodeType, "the target of a dynamic function call is not a function: supplied item is %s", dynamicType(res[0]))
	}
	if fn.Arity() != len(d.Args) {
		return nil, xdm.Errorf(xdm.CodeType, "function %s has arity %d; it is called with %d arguments", fn.StringValue(), fn.Arity(), len(d.Args))
	}
	args := make([]xdm.Sequence, 0, len(d.Args))
	for _, a := range d.Args {
		v, err := a.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return fn.Call(args)
}

func (d *DynamicCall) Operands() []Expr {
	return append([]Expr{d.Func}, d.Args...)
}

func (d *DynamicCall) Export(e *Exporter) {
	e.Start("dynCall")
	e.Child(d.Func)
	e.Children(d.Args...)
	e.End()
}

// closure is the function item built from a partial application or a
// function reference. It keeps the variables in scope where it was built.
type closure struct {
	name   xml.QName
	params []Handle
	body   Expr
	ctx    *Context
}

func (c *closure) UType() xdm.UType {
	return xdm.UFunction
}

func (c *closure) StringValue() string {
	return fmt.Sprintf("%s#%d", c.name.QualifiedName(), len(c.params))
}

func (c *closure) Name() xml.QName {
	return c.name
}

func (c *closure) Arity() int {
	return len(c.params)
}

func (c *closure) Call(args []xdm.Sequence) (xdm.Sequence, error) {
	if len(args) != len(c.params) {
		return nil, xdm.Errorf(xdm.CodeType, "function %s has arity %d; it is called with %d arguments", c.StringValue(), len(c.params), len(args))
	}
	ctx := c.ctx.snapshot()
	for i, h := range c.params {
		ctx.Set(h, args[i])
	}
	return c.body.Evaluate(ctx)
}

func (c *closure) DeepEqual(_ xdm.Function) (bool, error) {
	return false, xdm.Errorf(xdm.CodeFunctionEqual, "function item %s can not be compared", c.StringValue())
}
