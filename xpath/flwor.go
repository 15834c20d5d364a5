package xpath

import (
	"strconv"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// For binds each item of Source in turn and concatenates the results of
// Return.
type For struct {
	Var    Handle
	Name   xml.QName
	Source Expr
	Return Expr
}

func (f *For) Simplify() (Expr, error) {
	x, err := f.Source.Simplify()
	if err != nil {
		return nil, err
	}
	f.Source = x
	if f.Return, err = f.Return.Simplify(); err != nil {
		return nil, err
	}
	if isEmptyLiteral(f.Source) || isEmptyLiteral(f.Return) {
		return emptyLiteral(), nil
	}
	return f, nil
}

func (f *For) TypeCheck(env *Env) (Expr, error) {
	x, err := bindRange(env, f.Var, f.Name, f.Source)
	if err != nil {
		return nil, err
	}
	f.Source = x
	if f.Return, err = f.Return.TypeCheck(env.iterate()); err != nil {
		return nil, err
	}
	return f, nil
}

// bindRange checks the source of a range variable and infers the type of
// the variable from it.
func bindRange(env *Env, h Handle, name xml.QName, source Expr) (Expr, error) {
	x, err := source.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	bind := env.Bindings.Get(h)
	if bind == nil {
		return x, nil
	}
	if !bind.Declared.Zero() {
		req := NewSequenceType(bind.Declared.Item, ZeroOrMore)
		if x, err = coerce(env, x, req, VariableRole(name.QualifiedName())); err != nil {
			return nil, err
		}
	}
	bind.Inferred = NewSequenceType(x.ItemType(), ExactlyOne)
	return x, nil
}

func (f *For) Optimize(env *Env) Expr {
	f.Source = f.Source.Optimize(env)
	if isEmptyLiteral(f.Source) {
		return f.Source
	}
	f.Return = f.Return.Optimize(env.iterate())
	if isEmptyLiteral(f.Return) {
		return f.Return
	}
	if ref, ok := f.Return.(*VarRef); ok && ref.Handle == f.Var {
		return f.Source
	}
	return f
}

func (f *For) Copy(r *Rebinder) Expr {
	source := f.Source.Copy(r)
	return &For{
		Var:    r.Declare(f.Var),
		Name:   f.Name,
		Source: source,
		Return: f.Return.Copy(r),
	}
}

func (f *For) ItemType() ItemType {
	return f.Return.ItemType()
}

func (f *For) Cardinality() Cardinality {
	return f.Source.Cardinality().Multiply(f.Return.Cardinality())
}

func (f *For) Evaluate(ctx *Context) (xdm.Sequence, error) {
	source, err := f.Source.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	var res xdm.Sequence
	for _, item := range source {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ctx.Set(f.Var, xdm.Singleton(item))
		other, err := f.Return.Evaluate(ctx)
		if err != nil {
			return nil, err
		}
		res.Concat(other)
	}
	return res, nil
}

func (f *For) Operands() []Expr {
	return []Expr{f.Source, f.Return}
}

func (f *For) Export(e *Exporter) {
	e.Start("for")
	e.Attr("var", f.Name.QualifiedName())
	e.Attr("slot", strconv.Itoa(int(f.Var)))
	e.Children(f.Source, f.Return)
	e.End()
}

type Let struct {
	Var    Handle
	Name   xml.QName
	Source Expr
	Return Expr
}

func (t *Let) Simplify() (Expr, error) {
	x, err := t.Source.Simplify()
	if err != nil {
		return nil, err
	}
	t.Source = x
	if t.Return, err = t.Return.Simplify(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Let) TypeCheck(env *Env) (Expr, error) {
	x, err := t.Source.TypeCheck(env)
	if err != nil {
		return nil, err
	}
	bind := env.Bindings.Get(t.Var)
	if bind != nil {
		if !bind.Declared.Zero() {
			if x, err = coerce(env, x, bind.Declared, VariableRole(t.Name.QualifiedName())); err != nil {
				return nil, err
			}
		}
		bind.Inferred = NewSequenceType(x.ItemType(), x.Cardinality())
	}
	t.Source = x
	if t.Return, err = t.Return.TypeCheck(env); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Let) Optimize(env *Env) Expr {
	t.Source = t.Source.Optimize(env)
	t.Return = t.Return.Optimize(env)
	if ref, ok := t.Return.(*VarRef); ok && ref.Handle == t.Var {
		return t.Source
	}
	if _, ok := t.Return.(*Literal); ok {
		return t.Return
	}
	return t
}

func (t *Let) Copy(r *Rebinder) Expr {
	source := t.Source.Copy(r)
	return &Let{
		Var:    r.Declare(t.Var),
		Name:   t.Name,
		Source: source,
		Return: t.Return.Copy(r),
	}
}

func (t *Let) ItemType() ItemType {
	return t.Return.ItemType()
}

func (t *Let) Cardinality() Cardinality {
	return t.Return.Cardinality()
}

func (t *Let) Evaluate(ctx *Context) (xdm.Sequence, error) {
	source, err := t.Source.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	ctx.Set(t.Var, source)
	return t.Return.Evaluate(ctx)
}

func (t *Let) Operands() []Expr {
	return []Expr{t.Source, t.Return}
}

func (t *Let) Export(e *Exporter) {
	e.Start("let")
	e.Attr("var", t.Name.QualifiedName())
	e.Attr("slot", strconv.Itoa(int(t.Var)))
	e.Children(t.Source, t.Return)
	e.End()
}

// Quantified is a some or every expression.
type Quantified struct {
	Every  bool
	Var    Handle
	Name   xml.QName
	Source Expr
	Test   Expr
}

func (q *Quantified) Simplify() (Expr, error) {
	x, err := q.Source.Simplify()
	if err != nil {
		return nil, err
	}
	q.Source = x
	if q.Test, err = q.Test.Simplify(); err != nil {
		return nil, err
	}
	if isEmptyLiteral(q.Source) {
		return booleanLiteral(q.Every), nil
	}
	return q, nil
}

func (q *Quantified) TypeCheck(env *Env) (Expr, error) {
	x, err := bindRange(env, q.Var, q.Name, q.Source)
	if err != nil {
		return nil, err
	}
	q.Source = x
	if q.Test, err = q.Test.TypeCheck(env.iterate()); err != nil {
		return nil, err
	}
	if err := checkBooleanValue(q.Test, q.keyword()); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Quantified) Optimize(env *Env) Expr {
	q.Source = q.Source.Optimize(env)
	if isEmptyLiteral(q.Source) {
		return booleanLiteral(q.Every)
	}
	q.Test = q.Test.Optimize(env.iterate())
	if b, ok := constantBoolean(q.Test); ok && b == q.Every {
		return booleanLiteral(b)
	}
	return q
}

func (q *Quantified) Copy(r *Rebinder) Expr {
	source := q.Source.Copy(r)
	return &Quantified{
		Every:  q.Every,
		Var:    r.Declare(q.Var),
		Name:   q.Name,
		Source: source,
		Test:   q.Test.Copy(r),
	}
}

func (q *Quantified) ItemType() ItemType {
	return booleanType
}

func (q *Quantified) Cardinality() Cardinality {
	return ExactlyOne
}

func (q *Quantified) Evaluate(ctx *Context) (xdm.Sequence, error) {
	source, err := q.Source.Evaluate(ctx)
	if err != nil {
		return nil, err
	}
	for _, item := range source {
		ctx.Set(q.Var, xdm.Singleton(item))
		ok, err := evalBoolean(ctx, q.Test)
		if err != nil {
			return nil, err
		}
		if ok != q.Every {
			return xdm.Singleton(xdm.Boolean(ok)), nil
		}
	}
	return xdm.Singleton(xdm.Boolean(q.Every)), nil
}

func (q *Quantified) keyword() string {
	if q.Every {
		return "every"
	}
	return "some"
}

func (q *Quantified) Operands() []Expr {
	return []Expr{q.Source, q.Test}
}

func (q *Quantified) Export(e *Exporter) {
	e.Start(q.keyword())
	e.Attr("var", q.Name.QualifiedName())
	e.Attr("slot", strconv.Itoa(int(q.Var)))
	e.Children(q.Source, q.Test)
	e.End()
}
