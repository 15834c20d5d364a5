package xpath

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/midbel/xpc/deepequal"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

type builtinFunc func(*Context, []xdm.Sequence) (xdm.Sequence, error)

// builtin describes a function of the fn namespace. A negative max means
// the last parameter repeats. Functions marked context take the context
// item as argument when called without one.
type builtin struct {
	Name    string
	min     int
	max     int
	params  []SequenceType
	result  SequenceType
	context bool
	focus   bool
	pure    bool
	eval    builtinFunc
}

func (b *builtin) accepts(n int) bool {
	return n >= b.min && (b.max < 0 || n <= b.max)
}

func (b *builtin) arities() []int {
	if b.max < 0 {
		return []int{b.min}
	}
	var list []int
	for i := b.min; i <= b.max; i++ {
		list = append(list, i)
	}
	return list
}

func (b *builtin) param(i int) SequenceType {
	if i < len(b.params) {
		return b.params[i]
	}
	return b.params[len(b.params)-1]
}

var (
	itemSeq       = NewSequenceType(AnyItem{}, ZeroOrMore)
	optItem       = NewSequenceType(AnyItem{}, ZeroOrOne)
	optNode       = NewSequenceType(AnyNode{}, ZeroOrOne)
	optAtomic     = NewSequenceType(anyAtomic, ZeroOrOne)
	atomicSeq     = NewSequenceType(anyAtomic, ZeroOrMore)
	oneAtomic     = NewSequenceType(anyAtomic, ExactlyOne)
	optString     = NewSequenceType(stringType, ZeroOrOne)
	oneString     = NewSequenceType(stringType, ExactlyOne)
	oneBoolean    = NewSequenceType(booleanType, ExactlyOne)
	oneInteger    = NewSequenceType(integerType, ExactlyOne)
	integerSeq    = NewSequenceType(integerType, ZeroOrMore)
	oneDouble     = NewSequenceType(doubleType, ExactlyOne)
	optQName      = NewSequenceType(AtomicOf(xdm.QNameType), ZeroOrOne)
	oneURI        = NewSequenceType(AtomicOf(xdm.AnyURIType), ExactlyOne)
	oneDateTime   = NewSequenceType(AtomicOf(xdm.DateTimeType), ExactlyOne)
	noParams      = []SequenceType{}
	noResult      = NewSequenceType(ErrorType{}, ZeroOrMore)
)

var builtins = []*builtin{
	{Name: "true", result: oneBoolean, pure: true, eval: constant(true)},
	{Name: "false", result: oneBoolean, pure: true, eval: constant(false)},
	{Name: "not", min: 1, max: 1, params: []SequenceType{itemSeq}, result: oneBoolean, pure: true, eval: fnNot},
	{Name: "boolean", min: 1, max: 1, params: []SequenceType{itemSeq}, result: oneBoolean, pure: true, eval: fnBoolean},
	{Name: "count", min: 1, max: 1, params: []SequenceType{itemSeq}, result: oneInteger, pure: true, eval: fnCount},
	{Name: "empty", min: 1, max: 1, params: []SequenceType{itemSeq}, result: oneBoolean, pure: true, eval: fnEmpty},
	{Name: "exists", min: 1, max: 1, params: []SequenceType{itemSeq}, result: oneBoolean, pure: true, eval: fnExists},
	{Name: "concat", min: 2, max: -1, params: []SequenceType{optAtomic}, result: oneString, pure: true, eval: fnConcat},
	{Name: "string", max: 1, params: []SequenceType{optItem}, result: oneString, context: true, pure: true, eval: fnString},
	{Name: "string-length", max: 1, params: []SequenceType{optString}, result: oneInteger, context: true, pure: true, eval: fnStringLength},
	{Name: "number", max: 1, params: []SequenceType{optAtomic}, result: oneDouble, context: true, pure: true, eval: fnNumber},
	{Name: "data", max: 1, params: []SequenceType{itemSeq}, result: atomicSeq, context: true, pure: true, eval: fnData},
	{Name: "deep-equal", min: 2, max: 3, params: []SequenceType{itemSeq, itemSeq, oneString}, result: oneBoolean, pure: true, eval: fnDeepEqual},
	{Name: "reverse", min: 1, max: 1, params: []SequenceType{itemSeq}, result: itemSeq, pure: true, eval: fnReverse},
	{Name: "position", params: noParams, result: oneInteger, focus: true, eval: fnPosition},
	{Name: "last", params: noParams, result: oneInteger, focus: true, eval: fnLast},
	{Name: "name", max: 1, params: []SequenceType{optNode}, result: oneString, context: true, eval: fnName},
	{Name: "local-name", max: 1, params: []SequenceType{optNode}, result: oneString, context: true, eval: fnLocalName},
	{Name: "namespace-uri", max: 1, params: []SequenceType{optNode}, result: oneURI, context: true, eval: fnNamespaceURI},
	{Name: "root", max: 1, params: []SequenceType{optNode}, result: optNode, context: true, eval: fnRoot},
	{Name: "sum", min: 1, max: 2, params: []SequenceType{atomicSeq, optAtomic}, result: optAtomic, pure: true, eval: fnSum},
	{Name: "string-join", min: 1, max: 2, params: []SequenceType{atomicSeq, oneString}, result: oneString, pure: true, eval: fnStringJoin},
	{Name: "contains", min: 2, max: 2, params: []SequenceType{optString, optString}, result: oneBoolean, pure: true, eval: stringTest(strings.Contains)},
	{Name: "starts-with", min: 2, max: 2, params: []SequenceType{optString, optString}, result: oneBoolean, pure: true, eval: stringTest(strings.HasPrefix)},
	{Name: "ends-with", min: 2, max: 2, params: []SequenceType{optString, optString}, result: oneBoolean, pure: true, eval: stringTest(strings.HasSuffix)},
	{Name: "upper-case", min: 1, max: 1, params: []SequenceType{optString}, result: oneString, pure: true, eval: stringMap(strings.ToUpper)},
	{Name: "lower-case", min: 1, max: 1, params: []SequenceType{optString}, result: oneString, pure: true, eval: stringMap(strings.ToLower)},
	{Name: "abs", min: 1, max: 1, params: []SequenceType{optAtomic}, result: optAtomic, pure: true, eval: fnAbs},
	{Name: "distinct-values", min: 1, max: 2, params: []SequenceType{atomicSeq, oneString}, result: atomicSeq, pure: true, eval: fnDistinctValues},
	{Name: "index-of", min: 2, max: 3, params: []SequenceType{atomicSeq, oneAtomic, oneString}, result: integerSeq, pure: true, eval: fnIndexOf},
	{Name: "subsequence", min: 2, max: 3, params: []SequenceType{itemSeq, oneDouble, oneDouble}, result: itemSeq, pure: true, eval: fnSubsequence},
	{Name: "current-dateTime", params: noParams, result: oneDateTime, eval: fnCurrentDateTime},
	{Name: "error", max: 3, params: []SequenceType{optQName, oneString, itemSeq}, result: noResult, eval: fnError},
}

func builtinsByName(local string) []*builtin {
	var list []*builtin
	for _, b := range builtins {
		if b.Name == local {
			list = append(list, b)
		}
	}
	return list
}

func builtinNames() []string {
	var list []string
	for _, b := range builtins {
		list = append(list, b.Name)
	}
	slices.Sort(list)
	return slices.Compact(list)
}

// callBuiltin builds a call to a function of the fn namespace. It panics
// when no such function accepts the arguments.
func callBuiltin(name string, args ...Expr) *FunctionCall {
	for _, def := range builtinsByName(name) {
		if def.accepts(len(args)) {
			return newFunctionCall(def, args)
		}
	}
	panic("no builtin function " + name)
}

func constant(b bool) builtinFunc {
	return func(_ *Context, _ []xdm.Sequence) (xdm.Sequence, error) {
		return xdm.Singleton(xdm.Boolean(b)), nil
	}
}

func fnNot(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	b, err := xdm.EffectiveBooleanValue(args[0])
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(!b)), nil
}

func fnBoolean(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	b, err := xdm.EffectiveBooleanValue(args[0])
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(b)), nil
}

func fnCount(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	return xdm.Singleton(xdm.Integer(int64(len(args[0])))), nil
}

func fnEmpty(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	return xdm.Singleton(xdm.Boolean(len(args[0]) == 0)), nil
}

func fnExists(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	return xdm.Singleton(xdm.Boolean(len(args[0]) > 0)), nil
}

func fnConcat(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var str strings.Builder
	for _, a := range args {
		vs, err := xdm.Atomize(a)
		if err != nil {
			return nil, err
		}
		if len(vs) > 0 {
			str.WriteString(vs[0].StringValue())
		}
	}
	return xdm.Singleton(xdm.String(str.String())), nil
}

func fnString(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	if len(args[0]) == 0 {
		return xdm.Singleton(xdm.String("")), nil
	}
	if _, ok := xdm.AsFunction(args[0][0]); ok {
		return nil, xdm.NewError("FOTY0014", "the string value of a function item is not defined")
	}
	return xdm.Singleton(xdm.String(args[0][0].StringValue())), nil
}

func fnStringLength(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	n := utf8.RuneCountInString(stringArg(args[0]))
	return xdm.Singleton(xdm.Integer(int64(n))), nil
}

func fnNumber(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	vs, err := xdm.Atomize(args[0])
	if err != nil || len(vs) == 0 {
		return xdm.Singleton(xdm.NaN()), err
	}
	a, _ := xdm.AsAtomic(vs[0])
	return xdm.Singleton(toDouble(a)), nil
}

func fnData(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	return xdm.Atomize(args[0])
}

func fnDeepEqual(ctx *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	cmp := ctx.Comparer
	if len(args) > 2 {
		c, err := xdm.NewComparer(stringArg(args[2]))
		if err != nil {
			return nil, err
		}
		cmp = c
	}
	ok, err := deepequal.Equal(args[0], args[1], cmp, 0)
	if err != nil {
		return nil, err
	}
	return xdm.Singleton(xdm.Boolean(ok)), nil
}

func fnReverse(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	seq := slices.Clone(args[0])
	slices.Reverse(seq)
	return seq, nil
}

func fnPosition(ctx *Context, _ []xdm.Sequence) (xdm.Sequence, error) {
	if ctx.Item == nil {
		return nil, xdm.NewError(CodeNoContext, "the context item is absent, so position() is undefined")
	}
	return xdm.Singleton(xdm.Integer(int64(ctx.Position))), nil
}

// fnCurrentDateTime returns the same instant for the whole evaluation.
func fnCurrentDateTime(ctx *Context, _ []xdm.Sequence) (xdm.Sequence, error) {
	return xdm.Singleton(xdm.DateTime(ctx.Now)), nil
}

func fnLast(ctx *Context, _ []xdm.Sequence) (xdm.Sequence, error) {
	if ctx.Item == nil {
		return nil, xdm.NewError(CodeNoContext, "the context item is absent, so last() is undefined")
	}
	return xdm.Singleton(xdm.Integer(int64(ctx.Size))), nil
}

func nodeArg(seq xdm.Sequence) xml.Node {
	if len(seq) == 0 {
		return nil
	}
	n, _ := xdm.AsNode(seq[0])
	return n
}

func fnName(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var name string
	if n := nodeArg(args[0]); n != nil {
		name = n.QualifiedName()
	}
	return xdm.Singleton(xdm.String(name)), nil
}

func fnLocalName(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var name string
	if n := nodeArg(args[0]); n != nil {
		name = n.LocalName()
	}
	return xdm.Singleton(xdm.String(name)), nil
}

func fnNamespaceURI(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var uri string
	if n := nodeArg(args[0]); n != nil {
		switch n.Type() {
		case xml.TypeElement, xml.TypeAttribute:
			uri = n.Name().Uri
		default:
		}
	}
	a := xdm.Atomic{
		Type:  xdm.AnyURIType,
		Value: uri,
	}
	return xdm.Singleton(a), nil
}

func fnRoot(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	n := nodeArg(args[0])
	if n == nil {
		return xdm.Empty(), nil
	}
	return xdm.Singleton(xdm.NewNode(xml.Root(n))), nil
}

func fnSum(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	vs, err := xdm.Atomize(args[0])
	if err != nil {
		return nil, err
	}
	if len(vs) == 0 {
		if len(args) > 1 {
			return args[1], nil
		}
		return xdm.Singleton(xdm.Integer(0)), nil
	}
	var total xdm.Atomic
	for i, v := range vs {
		a, _ := xdm.AsAtomic(v)
		if a.Type == xdm.UntypedAtomicType {
			if a, err = xdm.Cast(a, xdm.DoubleType); err != nil {
				return nil, err
			}
		}
		if !a.Type.Numeric() {
			return nil, xdm.Errorf(xdm.CodeBooleanValue, "sum(): %s is not a numeric type", a.Type)
		}
		if i == 0 {
			total = a
			continue
		}
		if total, err = compute(OpAdd, total, a); err != nil {
			return nil, err
		}
	}
	return xdm.Singleton(total), nil
}

func fnStringJoin(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var sep string
	if len(args) > 1 {
		sep = stringArg(args[1])
	}
	vs, err := xdm.Atomize(args[0])
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(vs))
	for _, v := range vs {
		list = append(list, v.StringValue())
	}
	return xdm.Singleton(xdm.String(strings.Join(list, sep))), nil
}

func stringTest(test func(string, string) bool) builtinFunc {
	return func(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
		ok := test(stringArg(args[0]), stringArg(args[1]))
		return xdm.Singleton(xdm.Boolean(ok)), nil
	}
}

func stringMap(fn func(string) string) builtinFunc {
	return func(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
		return xdm.Singleton(xdm.String(fn(stringArg(args[0])))), nil
	}
}

func stringArg(seq xdm.Sequence) string {
	if len(seq) == 0 {
		return ""
	}
	return seq[0].StringValue()
}

func fnAbs(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	vs, err := xdm.Atomize(args[0])
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	a, _ := xdm.AsAtomic(vs[0])
	if a.Type == xdm.UntypedAtomicType {
		a = toDouble(a)
	}
	switch v := a.Value.(type) {
	case int64:
		if v < 0 {
			a.Value = -v
		}
	case float64:
		a.Value = math.Abs(v)
	default:
		return nil, xdm.Errorf(xdm.CodeType, "abs(): %s is not a numeric type", a.Type)
	}
	return xdm.Singleton(a), nil
}

func collationArg(ctx *Context, args []xdm.Sequence, i int) (xdm.Comparer, error) {
	if len(args) <= i {
		return ctx.Comparer, nil
	}
	return xdm.NewComparer(stringArg(args[i]))
}

func fnDistinctValues(ctx *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	cmp, err := collationArg(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	vs, err := xdm.Atomize(args[0])
	if err != nil {
		return nil, err
	}
	var res xdm.Sequence
	for _, v := range vs {
		a, _ := xdm.AsAtomic(v)
		seen := slices.ContainsFunc(res, func(other xdm.Item) bool {
			b, _ := xdm.AsAtomic(other)
			return sameKey(cmp, a, b)
		})
		if !seen {
			res.Append(a)
		}
	}
	return res, nil
}

func fnIndexOf(ctx *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	cmp, err := collationArg(ctx, args, 2)
	if err != nil {
		return nil, err
	}
	vs, err := xdm.Atomize(args[0])
	if err != nil {
		return nil, err
	}
	search, _ := xdm.AsAtomic(args[1].First())
	var res xdm.Sequence
	for i, v := range vs {
		a, _ := xdm.AsAtomic(v)
		if !a.IsNaN() && sameKey(cmp, a, search) {
			res.Append(xdm.Integer(int64(i + 1)))
		}
	}
	return res, nil
}

func fnSubsequence(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	start := roundArg(args[1])
	end := math.Inf(1)
	if len(args) > 2 {
		end = start + roundArg(args[2])
	}
	var res xdm.Sequence
	for i, item := range args[0] {
		p := float64(i + 1)
		if p >= start && p < end {
			res.Append(item)
		}
	}
	return res, nil
}

func roundArg(seq xdm.Sequence) float64 {
	a, _ := xdm.AsAtomic(seq.First())
	f, ok := a.Float()
	if !ok || math.IsNaN(f) {
		return math.NaN()
	}
	return math.Floor(f + 0.5)
}

func fnError(_ *Context, args []xdm.Sequence) (xdm.Sequence, error) {
	var (
		code = xdm.CodeUserError
		msg  = "error signalled by the expression"
	)
	if len(args) > 0 && len(args[0]) > 0 {
		a, _ := xdm.AsAtomic(args[0][0])
		if qn, ok := a.Value.(xml.QName); ok {
			code = qn.LocalName()
		}
	}
	if len(args) > 1 {
		msg = stringArg(args[1])
	}
	return nil, xdm.NewError(code, msg)
}
