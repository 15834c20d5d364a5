package xpath

import (
	"context"
	"slices"
	"time"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

// Handle is the index of a binding in its arena. Variable references keep
// the handle they were given when parsed.
type Handle int

type BindingKind int8

const (
	BindFor BindingKind = iota
	BindLet
	BindSome
	BindEvery
	BindParam
	BindGlobal
)

func (k BindingKind) String() string {
	switch k {
	case BindFor:
		return "for"
	case BindLet:
		return "let"
	case BindSome:
		return "some"
	case BindEvery:
		return "every"
	case BindParam:
		return "param"
	default:
		return "global"
	}
}

type Binding struct {
	Name     xml.QName
	Declared SequenceType
	Inferred SequenceType
	Kind     BindingKind
}

// Type returns the inferred type once the binding has been type checked and
// the declared type before.
func (b *Binding) Type() SequenceType {
	if !b.Inferred.Zero() {
		return b.Inferred
	}
	if b.Declared.Zero() {
		return anySequence
	}
	return b.Declared
}

type Bindings struct {
	list []*Binding
}

func NewBindings() *Bindings {
	return &Bindings{}
}

func (b *Bindings) Declare(name xml.QName, declared SequenceType, kind BindingKind) Handle {
	bind := Binding{
		Name:     name,
		Declared: declared,
		Kind:     kind,
	}
	b.list = append(b.list, &bind)
	return Handle(len(b.list) - 1)
}

func (b *Bindings) Get(h Handle) *Binding {
	if int(h) < 0 || int(h) >= len(b.list) {
		return nil
	}
	return b.list[h]
}

func (b *Bindings) Len() int {
	return len(b.list)
}

// Clone copies every binding so that type tightening on the clone never
// reaches the original.
func (b *Bindings) Clone() *Bindings {
	other := Bindings{
		list: make([]*Binding, 0, len(b.list)),
	}
	for _, bind := range b.list {
		x := *bind
		other.list = append(other.list, &x)
	}
	return &other
}

// Rebinder translates handles while an expression is copied. Declarators
// register a fresh binding for the one they copy; references to handles
// that were never registered belong to outer bindings and are kept.
type Rebinder struct {
	arena   *Bindings
	mapping map[Handle]Handle
}

func NewRebinder(arena *Bindings) *Rebinder {
	return &Rebinder{
		arena:   arena,
		mapping: make(map[Handle]Handle),
	}
}

func (r *Rebinder) Declare(old Handle) Handle {
	b := r.arena.Get(old)
	if b == nil {
		return old
	}
	h := r.arena.Declare(b.Name, b.Declared, b.Kind)
	r.arena.Get(h).Inferred = b.Inferred
	r.mapping[old] = h
	return h
}

func (r *Rebinder) Lookup(h Handle) Handle {
	if n, ok := r.mapping[h]; ok {
		return n
	}
	return h
}

func (r *Rebinder) Bindings() *Bindings {
	return r.arena
}

// Env is threaded through the type checking and optimization passes.
type Env struct {
	Static      StaticContext
	Bindings    *Bindings
	ContextItem ItemType
	Iterating   bool

	warnings *[]Warning
}

func NewEnv(static StaticContext, bindings *Bindings) *Env {
	var list []Warning
	return &Env{
		Static:      static,
		Bindings:    bindings,
		ContextItem: AnyItem{},
		warnings:    &list,
	}
}

func (e *Env) Warn(msg string) {
	*e.warnings = append(*e.warnings, Warning{Message: msg})
	if logger := e.Static.Logger(); logger != nil {
		logger.Warn("static warning", "message", msg)
	}
}

func (e *Env) Warnings() []Warning {
	return slices.Clone(*e.warnings)
}

func (e *Env) Types() *TypeHierarchy {
	return e.Static.Types()
}

// focus gives the environment of an expression evaluated once per item of
// another one.
func (e *Env) focus(item ItemType) *Env {
	x := *e
	x.ContextItem = item
	x.Iterating = true
	return &x
}

func (e *Env) iterate() *Env {
	x := *e
	x.Iterating = true
	return &x
}

// Context is the dynamic context of one evaluation. Contexts derived with
// Focus share their variable slots.
type Context struct {
	ctx      context.Context
	Item     xdm.Item
	Position int
	Size     int
	Static   StaticContext
	Comparer xdm.Comparer
	Now      time.Time

	slots []xdm.Sequence
	depth int
}

func NewContext(ctx context.Context, static StaticContext, slots int) (*Context, error) {
	cmp, err := xdm.NewComparer(static.DefaultCollation())
	if err != nil {
		return nil, err
	}
	c := Context{
		ctx:      ctx,
		Static:   static,
		Comparer: cmp,
		Now:      time.Now(),
		slots:    make([]xdm.Sequence, slots),
	}
	return &c, nil
}

func (c *Context) Focus(item xdm.Item, pos, size int) *Context {
	x := *c
	x.Item = item
	x.Position = pos
	x.Size = size
	return &x
}

// snapshot copies the context with its own variable slots, so that later
// assignments through c are not seen by the copy.
func (c *Context) snapshot() *Context {
	x := *c
	x.slots = slices.Clone(c.slots)
	return &x
}

func (c *Context) Get(h Handle) xdm.Sequence {
	if int(h) >= len(c.slots) {
		return nil
	}
	return c.slots[h]
}

func (c *Context) Set(h Handle, seq xdm.Sequence) {
	if int(h) >= len(c.slots) {
		c.slots = append(c.slots, make([]xdm.Sequence, int(h)-len(c.slots)+1)...)
	}
	c.slots[h] = seq
}

func (c *Context) Err() error {
	if c.ctx == nil {
		return nil
	}
	return c.ctx.Err()
}

func (c *Context) node() (xml.Node, error) {
	if c.Item == nil {
		return nil, xdm.NewError(CodeNoContext, "the context item is absent")
	}
	n, ok := xdm.AsNode(c.Item)
	if !ok {
		return nil, xdm.NewError(xdm.CodeNotNode, "the context item is not a node")
	}
	return n, nil
}
