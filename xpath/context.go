package xpath

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/midbel/xpc/environ"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

const (
	FnNS    = "http://www.w3.org/2005/xpath-functions"
	MathNS  = "http://www.w3.org/2005/xpath-functions/math"
	MapNS   = "http://www.w3.org/2005/xpath-functions/map"
	ArrayNS = "http://www.w3.org/2005/xpath-functions/array"
	ErrNS   = "http://www.w3.org/2005/xqt-errors"
	XsiNS   = "http://www.w3.org/2001/XMLSchema-instance"
)

type StaticContext interface {
	ResolvePrefix(string) (string, error)
	DefaultElementNamespace() string
	DefaultFunctionNamespace() string
	DefaultCollation() string
	ResolveVariable(xml.QName) (SequenceType, bool)
	Functions() FunctionLibrary
	BackwardsCompatible() bool
	SchemaAware() bool
	Types() *TypeHierarchy
	Tracer() Tracer
	Logger() *slog.Logger
}

type FunctionLibrary interface {
	Bind(xml.QName, []Expr) (Expr, bool, error)
	Arities(xml.QName) []int
	Names() []xml.QName
}

type Option func(*staticContext)

func WithNamespace(prefix, uri string) Option {
	return func(sc *staticContext) {
		sc.namespaces.Define(prefix, uri)
	}
}

func WithDefaultElementNamespace(uri string) Option {
	return func(sc *staticContext) {
		sc.elemNS = uri
	}
}

func WithDefaultFunctionNamespace(uri string) Option {
	return func(sc *staticContext) {
		sc.funcNS = uri
	}
}

// WithVariable declares an external variable. The name is either a local
// name or an expanded name written {uri}local or Q{uri}local.
func WithVariable(name string, st SequenceType) Option {
	return func(sc *staticContext) {
		qn := VariableName(name)
		sc.variables[qn.ExpandedName()] = st
	}
}

func WithCollation(uri string) Option {
	return func(sc *staticContext) {
		sc.collation = uri
	}
}

func WithBackwardsCompatible(compat bool) Option {
	return func(sc *staticContext) {
		sc.backwards = compat
	}
}

func WithSchemaAware(aware bool) Option {
	return func(sc *staticContext) {
		sc.schemaAware = aware
	}
}

func WithFunction(fn *UserFunction) Option {
	return func(sc *staticContext) {
		sc.library.define(fn)
	}
}

func WithTracer(tracer Tracer) Option {
	return func(sc *staticContext) {
		sc.tracer = tracer
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(sc *staticContext) {
		sc.logger = logger
	}
}

type staticContext struct {
	namespaces  environ.Environ[string]
	elemNS      string
	funcNS      string
	collation   string
	variables   map[string]SequenceType
	backwards   bool
	schemaAware bool
	library     *library
	types       *TypeHierarchy
	tracer      Tracer
	logger      *slog.Logger
}

func NewStaticContext(options ...Option) StaticContext {
	predeclared := environ.Empty[string]()
	predeclared.Define("xml", xml.XmlNS)
	predeclared.Define("xs", xml.SchemaNS)
	predeclared.Define("xsi", XsiNS)
	predeclared.Define("fn", FnNS)
	predeclared.Define("math", MathNS)
	predeclared.Define("map", MapNS)
	predeclared.Define("array", ArrayNS)
	predeclared.Define("err", ErrNS)

	sc := staticContext{
		namespaces: environ.Enclosed(predeclared),
		funcNS:     FnNS,
		collation:  xdm.CodepointCollation,
		variables:  make(map[string]SequenceType),
		tracer:     discardTracer{},
	}
	sc.library = newLibrary(&sc)
	for _, opt := range options {
		opt(&sc)
	}
	sc.types = NewTypeHierarchy(sc.schemaAware)
	return &sc
}

func (sc *staticContext) ResolvePrefix(prefix string) (string, error) {
	if prefix == "" {
		return sc.elemNS, nil
	}
	uri, err := sc.namespaces.Resolve(prefix)
	if err != nil {
		return "", fmt.Errorf("namespace prefix %s has not been declared: %w", prefix, err)
	}
	return uri, nil
}

func (sc *staticContext) DefaultElementNamespace() string {
	return sc.elemNS
}

func (sc *staticContext) DefaultFunctionNamespace() string {
	return sc.funcNS
}

func (sc *staticContext) DefaultCollation() string {
	return sc.collation
}

func (sc *staticContext) ResolveVariable(name xml.QName) (SequenceType, bool) {
	st, ok := sc.variables[name.ExpandedName()]
	return st, ok
}

func (sc *staticContext) Functions() FunctionLibrary {
	return sc.library
}

func (sc *staticContext) BackwardsCompatible() bool {
	return sc.backwards
}

func (sc *staticContext) SchemaAware() bool {
	return sc.schemaAware
}

func (sc *staticContext) Types() *TypeHierarchy {
	return sc.types
}

func (sc *staticContext) Tracer() Tracer {
	return sc.tracer
}

func (sc *staticContext) Logger() *slog.Logger {
	return sc.logger
}

// VariableName parses the name of a variable given outside of an
// expression.
func VariableName(name string) xml.QName {
	name = strings.TrimPrefix(name, "$")
	if rest, ok := strings.CutPrefix(name, "Q{"); ok {
		name = "{" + rest
	}
	if rest, ok := strings.CutPrefix(name, "{"); ok {
		if uri, local, ok := strings.Cut(rest, "}"); ok {
			return xml.ExpandedName(local, "", uri)
		}
	}
	qn, err := xml.ParseName(name)
	if err != nil {
		return xml.LocalName(name)
	}
	return qn
}

type library struct {
	static StaticContext

	mu    sync.Mutex
	users map[string][]*UserFunction
}

func newLibrary(static StaticContext) *library {
	return &library{
		static: static,
		users:  make(map[string][]*UserFunction),
	}
}

func (b *library) define(fn *UserFunction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := fn.Name.ExpandedName()
	b.users[key] = append(b.users[key], fn)
}

func (b *library) Bind(name xml.QName, args []Expr) (Expr, bool, error) {
	switch name.Uri {
	case FnNS:
		for _, def := range builtinsByName(name.Name) {
			if def.accepts(len(args)) {
				return newFunctionCall(def, args), true, nil
			}
		}
		return nil, false, nil
	case xml.SchemaNS:
		if len(args) != 1 {
			return nil, false, nil
		}
		t, ok := xdm.LookupType(name)
		if !ok || t == xdm.AnyAtomicType {
			return nil, false, nil
		}
		cast := Cast{
			Operand:    args[0],
			Target:     t,
			AllowEmpty: true,
		}
		return &cast, true, nil
	default:
	}
	b.mu.Lock()
	list := slices.Clone(b.users[name.ExpandedName()])
	b.mu.Unlock()
	for _, fn := range list {
		if len(fn.Params) != len(args) {
			continue
		}
		if err := fn.compile(b.static); err != nil {
			return nil, false, err
		}
		call := UserFunctionCall{
			Func: fn,
			Args: args,
		}
		return &call, true, nil
	}
	return nil, false, nil
}

func (b *library) Arities(name xml.QName) []int {
	var list []int
	switch name.Uri {
	case FnNS:
		for _, def := range builtinsByName(name.Name) {
			list = append(list, def.arities()...)
		}
	case xml.SchemaNS:
		if _, ok := xdm.LookupType(name); ok {
			list = append(list, 1)
		}
	default:
		b.mu.Lock()
		for _, fn := range b.users[name.ExpandedName()] {
			list = append(list, len(fn.Params))
		}
		b.mu.Unlock()
	}
	slices.Sort(list)
	return slices.Compact(list)
}

func (b *library) Names() []xml.QName {
	var list []xml.QName
	for _, n := range builtinNames() {
		list = append(list, xml.ExpandedName(n, "fn", FnNS))
	}
	for _, t := range xdm.AtomicTypes() {
		if t != xdm.AnyAtomicType {
			list = append(list, t.Name)
		}
	}
	b.mu.Lock()
	for _, fns := range b.users {
		list = append(list, fns[0].Name)
	}
	b.mu.Unlock()
	slices.SortFunc(list, func(a, b xml.QName) int {
		return cmp.Compare(a.ExpandedName(), b.ExpandedName())
	})
	return list
}

type Param struct {
	Name xml.QName
	Type SequenceType
}

// UserFunction is a function whose body is an expression. The body is
// compiled the first time a call to the function is bound; calls bound
// while the body is being compiled are recursive calls.
type UserFunction struct {
	Name   xml.QName
	Params []Param
	Result SequenceType
	Body   string

	mu        sync.Mutex
	compiling bool
	prog      *Program
	err       error
}

const maxCallDepth = 512

func (f *UserFunction) ResultType() SequenceType {
	if f.Result.Zero() {
		return anySequence
	}
	return f.Result
}

func (f *UserFunction) compile(static StaticContext) error {
	f.mu.Lock()
	if f.prog != nil || f.err != nil || f.compiling {
		defer f.mu.Unlock()
		return f.err
	}
	f.compiling = true
	f.mu.Unlock()

	cp := NewCompiler(strings.NewReader(f.Body), static)
	cp.inFunction(f.Params)
	prog, err := cp.Compile()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.compiling = false
	if err != nil {
		f.err = fmt.Errorf("function %s(): %w", f.Name.QualifiedName(), err)
		return f.err
	}
	f.prog = prog
	return nil
}

func (f *UserFunction) program() (*Program, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prog == nil {
		if f.err != nil {
			return nil, f.err
		}
		return nil, fmt.Errorf("function %s() is not compiled", f.Name.QualifiedName())
	}
	return f.prog, nil
}

// invoke evaluates the body with the parameters bound to args. The body
// has no focus.
func (f *UserFunction) invoke(ctx context.Context, depth int, args []xdm.Sequence) (xdm.Sequence, error) {
	prog, err := f.program()
	if err != nil {
		return nil, err
	}
	if depth > maxCallDepth {
		return nil, xdm.Errorf(xdm.CodeUserError, "too many nested calls to %s()", f.Name.QualifiedName())
	}
	dyn, err := NewContext(ctx, prog.static, prog.Bindings.Len())
	if err != nil {
		return nil, err
	}
	dyn.depth = depth
	for i := range args {
		dyn.Set(Handle(i), args[i])
	}
	res, err := prog.Root.Evaluate(dyn)
	if err != nil {
		return nil, err
	}
	if rt := f.ResultType(); !rt.Matches(res) {
		role := ResultRole(f.Name.QualifiedName())
		return nil, role.errorf("Required type of the %s is %s", role.Message(), rt)
	}
	return res, nil
}
