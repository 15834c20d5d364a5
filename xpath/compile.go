package xpath

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/midbel/distance"
	"github.com/midbel/xpc/environ"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

const DefaultMaxDepth = 512

const (
	kwAnd       = "and"
	kwOr        = "or"
	kwFor       = "for"
	kwLet       = "let"
	kwSome      = "some"
	kwEvery     = "every"
	kwIn        = "in"
	kwReturn    = "return"
	kwSatisfies = "satisfies"
	kwIf        = "if"
	kwThen      = "then"
	kwElse      = "else"
	kwTo        = "to"
	kwDiv       = "div"
	kwIdiv      = "idiv"
	kwMod       = "mod"
	kwUnion     = "union"
	kwIntersect = "intersect"
	kwExcept    = "except"
	kwInstance  = "instance"
	kwOf        = "of"
	kwTreat     = "treat"
	kwCastable  = "castable"
	kwCast      = "cast"
	kwAs        = "as"
	kwIs        = "is"
)

var valueComparators = map[string]Comparator{
	"eq": CmpEq,
	"ne": CmpNe,
	"lt": CmpLt,
	"le": CmpLe,
	"gt": CmpGt,
	"ge": CmpGe,
}

var generalComparators = map[rune]Comparator{
	opEq: CmpEq,
	opNe: CmpNe,
	opLt: CmpLt,
	opLe: CmpLe,
	opGt: CmpGt,
	opGe: CmpGe,
}

var kindTests = map[string]xml.NodeType{
	"node":                   xml.TypeNode,
	"text":                   xml.TypeText,
	"comment":                xml.TypeComment,
	"namespace-node":         xml.TypeNamespace,
	"processing-instruction": xml.TypeInstruction,
	"document-node":          xml.TypeDocument,
	"element":                xml.TypeElement,
	"attribute":              xml.TypeAttribute,
	"schema-element":         xml.TypeElement,
	"schema-attribute":       xml.TypeAttribute,
}

// names that can never be the name of a function call.
var reservedNames = map[string]struct{}{
	"attribute":              {},
	"comment":                {},
	"document-node":          {},
	"element":                {},
	"empty-sequence":         {},
	"function":               {},
	"if":                     {},
	"item":                   {},
	"namespace-node":         {},
	"node":                   {},
	"processing-instruction": {},
	"schema-attribute":       {},
	"schema-element":         {},
	"switch":                 {},
	"text":                   {},
	"typeswitch":             {},
}

// Compiler turns the text of an expression into a tree of Expr. A
// compiler is used for one expression only.
type Compiler struct {
	scan *Scanner
	curr Token
	peek Token

	static   StaticContext
	bindings *Bindings
	scope    *environ.Scope[Handle]
	globals  map[string]Handle
	warnings []Warning
	id       uuid.UUID
	function bool
	used     bool

	MaxDepth int
	depth    int

	Tracer
}

func NewCompiler(r io.Reader, static StaticContext) *Compiler {
	if static == nil {
		static = NewStaticContext()
	}
	cp := Compiler{
		scan:     Scan(r),
		static:   static,
		bindings: NewBindings(),
		scope:    environ.NewScope[Handle](),
		globals:  make(map[string]Handle),
		id:       uuid.New(),
		MaxDepth: DefaultMaxDepth,
	}
	cp.Tracer = withID(static.Tracer(), cp.id.String())

	cp.next()
	cp.next()
	return &cp
}

// inFunction prepares the compiler for the body of a function: the
// parameters get the first handles of the arena, there is no focus and
// only the parameters are in scope.
func (c *Compiler) inFunction(params []Param) {
	c.function = true
	for _, p := range params {
		c.declareParam(p)
	}
}

func (c *Compiler) declareParam(p Param) Handle {
	h := c.bindings.Declare(p.Name, p.Type, BindParam)
	c.scope.Push(p.Name.ExpandedName(), h)
	return h
}

func (c *Compiler) Warnings() []Warning {
	return c.warnings
}

// Compile parses the expression and runs the static passes over it.
func (c *Compiler) Compile() (*Program, error) {
	root, err := c.Parse()
	if err != nil {
		return nil, err
	}
	env := NewEnv(c.static, c.bindings)
	if c.function {
		env.ContextItem = nil
	}
	if root, err = root.Simplify(); err != nil {
		return nil, err
	}
	if root, err = root.TypeCheck(env); err != nil {
		return nil, err
	}
	root = root.Optimize(env)

	prog := Program{
		ID:       c.id,
		Source:   c.scan.Source(),
		Root:     root,
		Bindings: c.bindings,
		Warnings: append(c.Warnings(), env.Warnings()...),
		static:   c.static,
		globals:  c.globals,
	}
	return &prog, nil
}

// Parse builds the tree of the expression without analysing it.
func (c *Compiler) Parse() (Expr, error) {
	if c.used {
		return nil, ErrCompiled
	}
	c.used = true
	if err := c.scan.Err(); err != nil {
		return nil, err
	}
	if c.is(EOF) {
		return nil, c.fail(CodeSyntax, "Expression is empty")
	}
	expr, err := c.compileExpr()
	if err != nil {
		return nil, err
	}
	if !c.is(EOF) {
		return nil, c.fail(CodeSyntax, fmt.Sprintf("Unexpected token %s beyond end of expression", c.curr.Text()))
	}
	return expr, nil
}

// ParseSequenceType reads a sequence type such as "xs:integer+" or
// "element(item)?". Prefixes are resolved with the static context.
func ParseSequenceType(str string, static StaticContext) (SequenceType, error) {
	c := NewCompiler(strings.NewReader(str), static)
	if err := c.scan.Err(); err != nil {
		return SequenceType{}, err
	}
	st, err := c.compileSequenceType()
	if err != nil {
		return st, err
	}
	if !c.is(EOF) {
		return st, c.fail(CodeSyntax, fmt.Sprintf("Unexpected token %s after sequence type", c.curr.Text()))
	}
	return st, nil
}

func (c *Compiler) compileExpr() (Expr, error) {
	c.Enter("expr")
	defer c.Leave("expr")

	x, err := c.compileExprSingle()
	if err != nil {
		return nil, err
	}
	if !c.is(opComma) {
		return x, nil
	}
	list := []Expr{x}
	for c.is(opComma) {
		c.next()
		x, err := c.compileExprSingle()
		if err != nil {
			return nil, err
		}
		list = append(list, x)
	}
	return &Block{Items: list}, nil
}

func (c *Compiler) compileExprSingle() (Expr, error) {
	c.depth++
	defer func() {
		c.depth--
	}()
	if c.depth > c.MaxDepth {
		err := c.fail(CodeSyntax, ErrTooDeep.Error())
		err.err = ErrTooDeep
		return nil, err
	}
	if c.curr.Type == Name {
		switch lit := c.curr.Literal; {
		case (lit == kwFor || lit == kwLet || lit == kwSome || lit == kwEvery) && c.peek.Type == Variable:
			return c.compileRange()
		case lit == kwIf && c.peek.Type == begGrp:
			return c.compileIf()
		default:
		}
	}
	return c.compileOr()
}

func (c *Compiler) compileIf() (Expr, error) {
	c.Enter("if")
	defer c.Leave("if")

	c.next()
	if err := c.expect(begGrp, "("); err != nil {
		return nil, err
	}
	var (
		expr If
		err  error
	)
	if expr.Cond, err = c.compileExpr(); err != nil {
		return nil, err
	}
	if err := c.expect(endGrp, ")"); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwThen); err != nil {
		return nil, err
	}
	if expr.Then, err = c.compileExprSingle(); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwElse); err != nil {
		return nil, err
	}
	if expr.Else, err = c.compileExprSingle(); err != nil {
		return nil, err
	}
	return &expr, nil
}

type clause struct {
	Handle
	name   xml.QName
	source Expr
}

// compileRange handles for, let, some and every. Each clause source is
// parsed before its variable comes into scope; the clauses are then nested
// from the last one outward.
func (c *Compiler) compileRange() (Expr, error) {
	keyword := c.curr.Literal
	c.Enter(keyword)
	defer c.Leave(keyword)

	var kind BindingKind
	switch keyword {
	case kwFor:
		kind = BindFor
	case kwLet:
		kind = BindLet
	case kwSome:
		kind = BindSome
	default:
		kind = BindEvery
	}
	c.next()

	var clauses []clause
	for {
		if !c.is(Variable) {
			return nil, c.unexpected("variable")
		}
		name, err := c.resolveName(c.curr.Literal, "")
		if err != nil {
			return nil, err
		}
		c.next()
		var declared SequenceType
		if c.isKeyword(kwAs) {
			c.next()
			if declared, err = c.compileSequenceType(); err != nil {
				return nil, err
			}
			if kind != BindLet && declared.Card != ExactlyOne {
				c.warn("Occurrence indicator on singleton range variable has no effect")
				declared = NewSequenceType(declared.Item, ExactlyOne)
			}
		}
		if kind == BindLet {
			err = c.expect(opAssign, ":=")
		} else {
			err = c.expectKeyword(kwIn)
		}
		if err != nil {
			return nil, err
		}
		source, err := c.compileExprSingle()
		if err != nil {
			return nil, err
		}
		cl := clause{
			Handle: c.bindings.Declare(name, declared, kind),
			name:   name,
			source: source,
		}
		c.scope.Push(name.ExpandedName(), cl.Handle)
		clauses = append(clauses, cl)

		if !c.is(opComma) {
			break
		}
		c.next()
	}
	end := kwReturn
	if kind == BindSome || kind == BindEvery {
		end = kwSatisfies
	}
	if err := c.expectKeyword(end); err != nil {
		return nil, err
	}
	body, err := c.compileExprSingle()
	if err != nil {
		return nil, err
	}
	for i := len(clauses) - 1; i >= 0; i-- {
		cl := clauses[i]
		switch kind {
		case BindFor:
			body = &For{
				Var:    cl.Handle,
				Name:   cl.name,
				Source: cl.source,
				Return: body,
			}
		case BindLet:
			body = &Let{
				Var:    cl.Handle,
				Name:   cl.name,
				Source: cl.source,
				Return: body,
			}
		default:
			body = &Quantified{
				Every:  kind == BindEvery,
				Var:    cl.Handle,
				Name:   cl.name,
				Source: cl.source,
				Test:   body,
			}
		}
		if _, err := c.scope.Pop(); err != nil {
			return nil, err
		}
	}
	return body, nil
}

func (c *Compiler) compileOr() (Expr, error) {
	c.Enter("or")
	defer c.Leave("or")

	left, err := c.compileAnd()
	if err != nil {
		return nil, err
	}
	for c.isKeyword(kwOr) {
		c.next()
		right, err := c.compileAnd()
		if err != nil {
			return nil, err
		}
		left = &Or{
			Left:  left,
			Right: right,
		}
	}
	return left, nil
}

func (c *Compiler) compileAnd() (Expr, error) {
	c.Enter("and")
	defer c.Leave("and")

	left, err := c.compileComparison()
	if err != nil {
		return nil, err
	}
	for c.isKeyword(kwAnd) {
		c.next()
		right, err := c.compileComparison()
		if err != nil {
			return nil, err
		}
		left = &And{
			Left:  left,
			Right: right,
		}
	}
	return left, nil
}

func (c *Compiler) compileComparison() (Expr, error) {
	c.Enter("comparison")
	defer c.Leave("comparison")

	left, err := c.compileRangeTo()
	if err != nil {
		return nil, err
	}
	build, ok := c.comparator()
	if !ok {
		return left, nil
	}
	c.next()
	right, err := c.compileRangeTo()
	if err != nil {
		return nil, err
	}
	if _, ok := c.comparator(); ok {
		return nil, c.fail(CodeSyntax, "A comparison expression cannot be an operand of another comparison")
	}
	return build(left, right), nil
}

func (c *Compiler) comparator() (func(Expr, Expr) Expr, bool) {
	if op, ok := generalComparators[c.curr.Type]; ok {
		return func(left, right Expr) Expr {
			return &GeneralComparison{
				Op:    op,
				Left:  left,
				Right: right,
			}
		}, true
	}
	node := func(op NodeComparator) func(Expr, Expr) Expr {
		return func(left, right Expr) Expr {
			return &IdentityComparison{
				Op:    op,
				Left:  left,
				Right: right,
			}
		}
	}
	switch c.curr.Type {
	case opBefore:
		return node(NodeBefore), true
	case opAfter:
		return node(NodeAfter), true
	case Name:
	default:
		return nil, false
	}
	if c.curr.Literal == kwIs {
		return node(NodeIs), true
	}
	op, ok := valueComparators[c.curr.Literal]
	if !ok {
		return nil, false
	}
	return func(left, right Expr) Expr {
		return &ValueComparison{
			Op:    op,
			Left:  left,
			Right: right,
		}
	}, true
}

func (c *Compiler) compileRangeTo() (Expr, error) {
	c.Enter("range")
	defer c.Leave("range")

	left, err := c.compileAdditive()
	if err != nil {
		return nil, err
	}
	if !c.isKeyword(kwTo) {
		return left, nil
	}
	c.next()
	right, err := c.compileAdditive()
	if err != nil {
		return nil, err
	}
	expr := Range{
		Left:  left,
		Right: right,
	}
	return &expr, nil
}

func (c *Compiler) compileAdditive() (Expr, error) {
	c.Enter("additive")
	defer c.Leave("additive")

	left, err := c.compileMultiplicative()
	if err != nil {
		return nil, err
	}
	for c.is(opPlus) || c.is(opMinus) {
		op := OpAdd
		if c.is(opMinus) {
			op = OpSub
		}
		c.next()
		right, err := c.compileMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
	return left, nil
}

func (c *Compiler) compileMultiplicative() (Expr, error) {
	c.Enter("multiplicative")
	defer c.Leave("multiplicative")

	left, err := c.compileUnion()
	if err != nil {
		return nil, err
	}
	for {
		var op ArithOp
		switch {
		case c.is(opStar):
			op = OpMul
		case c.isKeyword(kwDiv):
			op = OpDiv
		case c.isKeyword(kwIdiv):
			op = OpIdiv
		case c.isKeyword(kwMod):
			op = OpMod
		default:
			return left, nil
		}
		c.next()
		right, err := c.compileUnion()
		if err != nil {
			return nil, err
		}
		left = &Arithmetic{
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
}

func (c *Compiler) compileUnion() (Expr, error) {
	c.Enter("union")
	defer c.Leave("union")

	left, err := c.compileIntersect()
	if err != nil {
		return nil, err
	}
	for c.is(opPipe) || c.isKeyword(kwUnion) {
		c.next()
		right, err := c.compileIntersect()
		if err != nil {
			return nil, err
		}
		left = &Venn{
			Op:    SetUnion,
			Left:  left,
			Right: right,
		}
	}
	return left, nil
}

func (c *Compiler) compileIntersect() (Expr, error) {
	c.Enter("intersect")
	defer c.Leave("intersect")

	left, err := c.compileInstanceOf()
	if err != nil {
		return nil, err
	}
	for c.isKeyword(kwIntersect) || c.isKeyword(kwExcept) {
		op := SetIntersect
		if c.isKeyword(kwExcept) {
			op = SetExcept
		}
		c.next()
		right, err := c.compileInstanceOf()
		if err != nil {
			return nil, err
		}
		left = &Venn{
			Op:    op,
			Left:  left,
			Right: right,
		}
	}
	return left, nil
}

func (c *Compiler) compileInstanceOf() (Expr, error) {
	c.Enter("instance")
	defer c.Leave("instance")

	x, err := c.compileTreat()
	if err != nil {
		return nil, err
	}
	if !c.isKeyword(kwInstance) || !c.peekKeyword(kwOf) {
		return x, nil
	}
	c.next()
	c.next()
	st, err := c.compileSequenceType()
	if err != nil {
		return nil, err
	}
	expr := InstanceOf{
		Operand: x,
		Type:    st,
	}
	return &expr, nil
}

func (c *Compiler) compileTreat() (Expr, error) {
	c.Enter("treat")
	defer c.Leave("treat")

	x, err := c.compileCastable()
	if err != nil {
		return nil, err
	}
	if !c.isKeyword(kwTreat) || !c.peekKeyword(kwAs) {
		return x, nil
	}
	c.next()
	c.next()
	st, err := c.compileSequenceType()
	if err != nil {
		return nil, err
	}
	expr := Treat{
		Operand: x,
		Type:    st,
	}
	return &expr, nil
}

func (c *Compiler) compileCastable() (Expr, error) {
	c.Enter("castable")
	defer c.Leave("castable")

	x, err := c.compileCast()
	if err != nil {
		return nil, err
	}
	if !c.isKeyword(kwCastable) || !c.peekKeyword(kwAs) {
		return x, nil
	}
	c.next()
	c.next()
	target, optional, err := c.compileSingleType()
	if err != nil {
		return nil, err
	}
	expr := Castable{
		Operand:    x,
		Target:     target,
		AllowEmpty: optional,
	}
	return &expr, nil
}

func (c *Compiler) compileCast() (Expr, error) {
	c.Enter("cast")
	defer c.Leave("cast")

	x, err := c.compileUnary()
	if err != nil {
		return nil, err
	}
	if !c.isKeyword(kwCast) || !c.peekKeyword(kwAs) {
		return x, nil
	}
	c.next()
	c.next()
	target, optional, err := c.compileSingleType()
	if err != nil {
		return nil, err
	}
	expr := Cast{
		Operand:    x,
		Target:     target,
		AllowEmpty: optional,
	}
	return &expr, nil
}

func (c *Compiler) compileUnary() (Expr, error) {
	c.Enter("unary")
	defer c.Leave("unary")

	var minus int
	for c.is(opMinus) || c.is(opPlus) {
		if c.is(opMinus) {
			minus++
		}
		c.next()
	}
	x, err := c.compilePath()
	if err != nil {
		return nil, err
	}
	for range minus {
		x = &Negate{Operand: x}
	}
	return x, nil
}

func (c *Compiler) compilePath() (Expr, error) {
	c.Enter("path")
	defer c.Leave("path")

	switch {
	case c.is(opSlash):
		c.next()
		if op, ok := c.typeOperator(); ok {
			return nil, c.fail(CodeSyntax, fmt.Sprintf("Operator '%s' is not allowed after '/'", op))
		}
		if !c.startsStep() {
			return &Root{}, nil
		}
		return c.compileRelativePath(&Root{})
	case c.is(opDslash):
		c.next()
		start := Slash{
			Start: &Root{},
			Step:  descendantOrSelf(),
		}
		if !c.startsStep() {
			return nil, c.unexpected("step after '//'")
		}
		return c.compileRelativePath(&start)
	default:
		return c.compileRelativePath(nil)
	}
}

// typeOperator reports whether the current and next tokens form one of the
// operators that can follow a complete expression.
func (c *Compiler) typeOperator() (string, bool) {
	if c.curr.Type != Name || c.peek.Type != Name {
		return "", false
	}
	switch kw, next := c.curr.Literal, c.peek.Literal; {
	case kw == kwInstance && next == kwOf:
	case (kw == kwCast || kw == kwCastable || kw == kwTreat) && next == kwAs:
	default:
		return "", false
	}
	return c.curr.Literal + " " + c.peek.Literal, true
}

func (c *Compiler) startsStep() bool {
	switch c.curr.Type {
	case Name, NameWildcard, LocalWildcard, Variable, String, Integer, Decimal, Double:
		return true
	case opStar, opAttr, opDot, opParent, begGrp:
		return true
	default:
		return false
	}
}

func (c *Compiler) compileRelativePath(start Expr) (Expr, error) {
	step, err := c.compileStep()
	if err != nil {
		return nil, err
	}
	if start != nil {
		step = &Slash{
			Start: start,
			Step:  step,
		}
	}
	for {
		var dslash bool
		switch {
		case c.is(opSlash):
		case c.is(opDslash):
			dslash = true
		default:
			return step, nil
		}
		c.next()
		next, err := c.compileStep()
		if err != nil {
			return nil, err
		}
		if dslash {
			next = &Slash{
				Start: descendantOrSelf(),
				Step:  next,
			}
		}
		step = &Slash{
			Start: step,
			Step:  next,
		}
	}
}

func descendantOrSelf() Expr {
	return &AxisStep{
		Axis: xml.AxisDescendantOrSelf,
		Test: AnyNode{},
	}
}

func (c *Compiler) compileStep() (Expr, error) {
	c.Enter("step")
	defer c.Leave("step")

	if c.startsPrimary() {
		return c.compilePostfix()
	}
	step, err := c.compileAxisStep()
	if err != nil {
		return nil, err
	}
	var x Expr = step
	for c.is(begPred) {
		pred, err := c.compilePredicate()
		if err != nil {
			return nil, err
		}
		x = &Filter{
			Base: x,
			Pred: pred,
		}
	}
	if x != Expr(step) && step.Axis.Reverse() {
		x = &Reverse{Operand: x}
	}
	return x, nil
}

func (c *Compiler) startsPrimary() bool {
	switch c.curr.Type {
	case Variable, String, Integer, Decimal, Double, begGrp, opDot:
		return true
	case Name:
	default:
		return false
	}
	switch c.peek.Type {
	case opHash:
		return true
	case begGrp:
		_, kind := kindTests[c.curr.Literal]
		return !kind
	default:
		return false
	}
}

func (c *Compiler) compilePostfix() (Expr, error) {
	x, err := c.compilePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case c.is(begPred):
			pred, err := c.compilePredicate()
			if err != nil {
				return nil, err
			}
			x = &Filter{
				Base: x,
				Pred: pred,
			}
		case c.is(begGrp):
			args, holes, err := c.compileArgs()
			if err != nil {
				return nil, err
			}
			if len(holes) > 0 {
				return nil, c.fail(CodeSyntax, "Partial application of dynamic function calls is not supported")
			}
			x = &DynamicCall{
				Func: x,
				Args: args,
			}
		default:
			return x, nil
		}
	}
}

func (c *Compiler) compilePredicate() (Expr, error) {
	c.Enter("predicate")
	defer c.Leave("predicate")

	c.next()
	x, err := c.compileExpr()
	if err != nil {
		return nil, err
	}
	if err := c.expect(endPred, "]"); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *Compiler) compileAxisStep() (*AxisStep, error) {
	axis := xml.AxisChild
	switch {
	case c.is(opParent):
		c.next()
		step := AxisStep{
			Axis: xml.AxisParent,
			Test: AnyNode{},
		}
		return &step, nil
	case c.is(opAttr):
		c.next()
		axis = xml.AxisAttribute
	case c.is(Name) && c.peek.Type == opAxis:
		a, err := xml.ParseAxis(c.curr.Literal)
		if err != nil {
			return nil, c.fail(CodeSyntax, fmt.Sprintf("Axis name %s is not recognized", c.curr.Literal))
		}
		axis = a
		c.next()
		c.next()
	default:
	}
	test, err := c.compileNodeTest(axis.PrincipalType())
	if err != nil {
		return nil, err
	}
	step := AxisStep{
		Axis: axis,
		Test: test,
	}
	return &step, nil
}

func (c *Compiler) compileNodeTest(principal xml.NodeType) (ItemType, error) {
	switch c.curr.Type {
	case opStar:
		c.next()
		return NodeKindTest{Kind: principal}, nil
	case NameWildcard:
		lit := strings.TrimSuffix(c.curr.Literal, ":*")
		var uri string
		if rest, ok := strings.CutPrefix(c.curr.Literal, "Q{"); ok {
			uri, _, _ = strings.Cut(rest, "}")
		} else {
			u, err := c.resolvePrefix(lit)
			if err != nil {
				return nil, err
			}
			uri = u
		}
		c.next()
		return NamespaceTest{Kind: principal, Uri: uri}, nil
	case LocalWildcard:
		local := strings.TrimPrefix(c.curr.Literal, "*:")
		c.next()
		return LocalNameTest{Kind: principal, Local: local}, nil
	case Name:
		if c.peek.Type == begGrp {
			return c.compileKindTest()
		}
		var def string
		if principal == xml.TypeElement {
			def = c.static.DefaultElementNamespace()
		}
		qn, err := c.resolveName(c.curr.Literal, def)
		if err != nil {
			return nil, err
		}
		c.next()
		return NameTest{Kind: principal, Name: qn}, nil
	default:
		return nil, c.unexpected("node test")
	}
}

func (c *Compiler) compileKindTest() (ItemType, error) {
	c.Enter("kind-test")
	defer c.Leave("kind-test")

	name := c.curr.Literal
	kind, ok := kindTests[name]
	if !ok {
		return nil, c.fail(CodeSyntax, fmt.Sprintf("%s() is not a valid node test", name))
	}
	c.next()
	if err := c.expect(begGrp, "("); err != nil {
		return nil, err
	}
	var (
		test ItemType
		err  error
	)
	switch name {
	case "node":
		test = AnyNode{}
	case "text", "comment", "namespace-node":
		test = NodeKindTest{Kind: kind}
	case "processing-instruction":
		test = NodeKindTest{Kind: kind}
		if c.is(Name) || c.is(String) {
			test = NameTest{
				Kind: kind,
				Name: xml.LocalName(strings.TrimSpace(c.curr.Literal)),
			}
			c.next()
		}
	case "document-node":
		doc := NodeKindTest{Kind: kind}
		if c.is(Name) {
			if c.curr.Literal != "element" && c.curr.Literal != "schema-element" {
				return nil, c.unexpected("element test")
			}
			if doc.Content, err = c.compileKindTest(); err != nil {
				return nil, err
			}
		}
		test = doc
	case "element", "attribute":
		test, err = c.compileContentTest(kind)
	default:
		test, err = c.compileSchemaTest(kind)
	}
	if err != nil {
		return nil, err
	}
	if err := c.expect(endGrp, ")"); err != nil {
		return nil, err
	}
	return test, nil
}

func (c *Compiler) compileContentTest(kind xml.NodeType) (ItemType, error) {
	var test ItemType = NodeKindTest{Kind: kind}
	switch {
	case c.is(endGrp):
		return test, nil
	case c.is(opStar):
		c.next()
	case c.is(Name):
		var def string
		if kind == xml.TypeElement {
			def = c.static.DefaultElementNamespace()
		}
		qn, err := c.resolveName(c.curr.Literal, def)
		if err != nil {
			return nil, err
		}
		c.next()
		test = NameTest{Kind: kind, Name: qn}
	default:
		return nil, c.unexpected("name or '*'")
	}
	if !c.is(opComma) {
		return test, nil
	}
	c.next()
	if !c.is(Name) {
		return nil, c.unexpected("type name")
	}
	ann, err := c.resolveTypeName(c.curr.Literal)
	if err != nil {
		return nil, err
	}
	c.next()
	content := ContentTypeTest{
		Kind:       kind,
		Annotation: ann,
	}
	if kind == xml.TypeElement && c.is(opQuestion) {
		content.Nillable = true
		c.next()
	}
	if _, ok := test.(NodeKindTest); ok {
		return content, nil
	}
	return Intersect(test, content), nil
}

func (c *Compiler) compileSchemaTest(kind xml.NodeType) (ItemType, error) {
	if !c.static.SchemaAware() {
		return nil, c.fail(CodeUndefined, fmt.Sprintf("schema-%s() is not allowed without a schema", kind))
	}
	if !c.is(Name) {
		return nil, c.unexpected("name")
	}
	var def string
	if kind == xml.TypeElement {
		def = c.static.DefaultElementNamespace()
	}
	qn, err := c.resolveName(c.curr.Literal, def)
	if err != nil {
		return nil, err
	}
	c.next()
	content := ContentTypeTest{
		Kind:       kind,
		Annotation: anyType,
		Schema:     true,
	}
	return Intersect(NameTest{Kind: kind, Name: qn}, content), nil
}

func (c *Compiler) resolveTypeName(lit string) (xml.QName, error) {
	qn, err := c.resolveName(lit, c.static.DefaultElementNamespace())
	if err != nil {
		return qn, err
	}
	for _, n := range []xml.QName{anyType, untypedType, anySimpleType} {
		if qn.Equal(n) {
			return qn, nil
		}
	}
	if _, ok := xdm.LookupType(qn); !ok {
		return qn, c.fail(CodeUndefined, fmt.Sprintf("Unknown type %s", qn.EQName()))
	}
	return qn, nil
}

func (c *Compiler) compileSequenceType() (SequenceType, error) {
	c.Enter("sequence-type")
	defer c.Leave("sequence-type")

	if c.isKeyword("empty-sequence") && c.peek.Type == begGrp {
		c.next()
		c.next()
		if err := c.expect(endGrp, ")"); err != nil {
			return SequenceType{}, err
		}
		return emptySequence, nil
	}
	item, err := c.compileItemType()
	if err != nil {
		return SequenceType{}, err
	}
	card := ExactlyOne
	switch {
	case c.is(opQuestion):
		card = ZeroOrOne
	case c.is(opStar):
		card = ZeroOrMore
	case c.is(opPlus):
		card = OneOrMore
	default:
		return NewSequenceType(item, card), nil
	}
	c.next()
	return NewSequenceType(item, card), nil
}

func (c *Compiler) compileItemType() (ItemType, error) {
	switch {
	case c.is(begGrp):
		c.next()
		item, err := c.compileItemType()
		if err != nil {
			return nil, err
		}
		if err := c.expect(endGrp, ")"); err != nil {
			return nil, err
		}
		return item, nil
	case c.is(Name) && c.peek.Type == begGrp:
	case c.is(Name):
		t, err := c.resolveAtomicType()
		if err != nil {
			return nil, err
		}
		return AtomicOf(t), nil
	default:
		return nil, c.unexpected("item type")
	}
	switch c.curr.Literal {
	case "item":
		c.next()
		c.next()
		if err := c.expect(endGrp, ")"); err != nil {
			return nil, err
		}
		return AnyItem{}, nil
	case "function":
		return c.compileFunctionTest()
	default:
		return c.compileKindTest()
	}
}

func (c *Compiler) compileFunctionTest() (ItemType, error) {
	c.next()
	c.next()
	if c.is(opStar) {
		c.next()
		if err := c.expect(endGrp, ")"); err != nil {
			return nil, err
		}
		return FunctionTest{Any: true}, nil
	}
	var test FunctionTest
	for !c.is(endGrp) {
		st, err := c.compileSequenceType()
		if err != nil {
			return nil, err
		}
		test.Args = append(test.Args, st)
		if !c.is(opComma) {
			break
		}
		c.next()
	}
	if err := c.expect(endGrp, ")"); err != nil {
		return nil, err
	}
	if err := c.expectKeyword(kwAs); err != nil {
		return nil, err
	}
	res, err := c.compileSequenceType()
	if err != nil {
		return nil, err
	}
	test.Result = res
	return test, nil
}

func (c *Compiler) compileSingleType() (*xdm.AtomicType, bool, error) {
	if !c.is(Name) {
		return nil, false, c.unexpected("atomic type")
	}
	t, err := c.resolveAtomicType()
	if err != nil {
		return nil, false, err
	}
	if t == xdm.AnyAtomicType {
		return nil, false, c.fail(CodeAbstractCast, fmt.Sprintf("Cannot cast to the abstract type %s", t))
	}
	if c.is(opQuestion) {
		c.next()
		return t, true, nil
	}
	return t, false, nil
}

func (c *Compiler) resolveAtomicType() (*xdm.AtomicType, error) {
	qn, err := c.resolveName(c.curr.Literal, c.static.DefaultElementNamespace())
	if err != nil {
		return nil, err
	}
	t, ok := xdm.LookupType(qn)
	if !ok {
		return nil, c.fail(CodeUnknownType, fmt.Sprintf("Unknown atomic type %s", qn.EQName()))
	}
	c.next()
	return t, nil
}

func (c *Compiler) compilePrimary() (Expr, error) {
	c.Enter("primary")
	defer c.Leave("primary")

	switch c.curr.Type {
	case String:
		defer c.next()
		return atomicLiteral(xdm.String(c.curr.Literal)), nil
	case Integer:
		defer c.next()
		i, err := strconv.ParseInt(c.curr.Literal, 10, 64)
		if err == nil {
			return atomicLiteral(xdm.Integer(i)), nil
		}
		f, err := strconv.ParseFloat(c.curr.Literal, 64)
		if err != nil {
			return nil, c.fail(CodeSyntax, fmt.Sprintf("Invalid numeric literal %s", c.curr.Literal))
		}
		return atomicLiteral(xdm.Decimal(f)), nil
	case Decimal, Double:
		defer c.next()
		f, err := strconv.ParseFloat(c.curr.Literal, 64)
		if err != nil {
			return nil, c.fail(CodeSyntax, fmt.Sprintf("Invalid numeric literal %s", c.curr.Literal))
		}
		if c.curr.Type == Double {
			return atomicLiteral(xdm.Double(f)), nil
		}
		return atomicLiteral(xdm.Decimal(f)), nil
	case Variable:
		return c.compileVariable()
	case opDot:
		c.next()
		return &ContextItem{}, nil
	case begGrp:
		c.next()
		if c.is(endGrp) {
			c.next()
			return emptyLiteral(), nil
		}
		x, err := c.compileExpr()
		if err != nil {
			return nil, err
		}
		if err := c.expect(endGrp, ")"); err != nil {
			return nil, err
		}
		return x, nil
	case Name:
		if c.peek.Type == opHash {
			return c.compileFunctionRef()
		}
		return c.compileCall()
	default:
		return nil, c.unexpected("expression")
	}
}

func (c *Compiler) compileVariable() (Expr, error) {
	name, err := c.resolveName(c.curr.Literal, "")
	if err != nil {
		return nil, err
	}
	key := name.ExpandedName()
	if h, ok := c.scope.Lookup(key); ok {
		c.next()
		return &VarRef{Handle: h, Name: name}, nil
	}
	st, ok := c.static.ResolveVariable(name)
	if !ok || c.function {
		return nil, c.fail(CodeUndefined, fmt.Sprintf("Variable $%s has not been declared", name.QualifiedName()))
	}
	h, ok := c.globals[key]
	if !ok {
		h = c.bindings.Declare(name, st, BindGlobal)
		c.globals[key] = h
	}
	c.next()
	return &VarRef{Handle: h, Name: name}, nil
}

func (c *Compiler) compileArgs() ([]Expr, []int, error) {
	c.Enter("arguments")
	defer c.Leave("arguments")

	c.next()
	var (
		args  []Expr
		holes []int
	)
	for !c.is(endGrp) {
		if c.is(opQuestion) && (c.peek.Type == opComma || c.peek.Type == endGrp) {
			holes = append(holes, len(args))
			args = append(args, nil)
			c.next()
		} else {
			x, err := c.compileExprSingle()
			if err != nil {
				return nil, nil, err
			}
			args = append(args, x)
		}
		if !c.is(opComma) {
			break
		}
		c.next()
		if c.is(endGrp) {
			return nil, nil, c.unexpected("argument")
		}
	}
	if err := c.expect(endGrp, ")"); err != nil {
		return nil, nil, err
	}
	return args, holes, nil
}

func (c *Compiler) compileCall() (Expr, error) {
	c.Enter("call")
	defer c.Leave("call")

	if _, ok := reservedNames[c.curr.Literal]; ok {
		return nil, c.fail(CodeSyntax, fmt.Sprintf("%s is a reserved name and can not be used as a function name", c.curr.Literal))
	}
	offset := c.curr.End
	name, err := c.resolveName(c.curr.Literal, c.static.DefaultFunctionNamespace())
	if err != nil {
		return nil, err
	}
	c.next()
	args, holes, err := c.compileArgs()
	if err != nil {
		return nil, err
	}
	var params []Handle
	for _, i := range holes {
		h, ref := c.placeholder(i)
		params = append(params, h)
		args[i] = ref
	}
	call, err := c.bindFunction(name, args, offset)
	if err != nil || len(holes) == 0 {
		return call, err
	}
	expr := PartialApply{
		Name:   name,
		Call:   call,
		Params: params,
		holes:  holes,
	}
	return &expr, nil
}

func (c *Compiler) compileFunctionRef() (Expr, error) {
	c.Enter("function-ref")
	defer c.Leave("function-ref")

	offset := c.curr.End
	name, err := c.resolveName(c.curr.Literal, c.static.DefaultFunctionNamespace())
	if err != nil {
		return nil, err
	}
	c.next()
	c.next()
	if !c.is(Integer) {
		return nil, c.unexpected("arity")
	}
	arity, err := strconv.Atoi(c.curr.Literal)
	if err != nil {
		return nil, c.fail(CodeSyntax, fmt.Sprintf("Invalid arity %s", c.curr.Literal))
	}
	c.next()
	var (
		params []Handle
		args   []Expr
	)
	for i := range arity {
		h, ref := c.placeholder(i)
		params = append(params, h)
		args = append(args, ref)
	}
	call, err := c.bindFunction(name, args, offset)
	if err != nil {
		return nil, err
	}
	expr := FunctionRef{
		Name:   name,
		Call:   call,
		Params: params,
	}
	return &expr, nil
}

// placeholder declares the parameter standing for the argument at pos of
// a partial application or function reference.
func (c *Compiler) placeholder(pos int) (Handle, *VarRef) {
	name := xml.LocalName("arg" + strconv.Itoa(pos+1))
	h := c.bindings.Declare(name, SequenceType{}, BindParam)
	return h, &VarRef{Handle: h, Name: name}
}

func (c *Compiler) bindFunction(name xml.QName, args []Expr, offset int) (Expr, error) {
	lib := c.static.Functions()
	call, ok, err := lib.Bind(name, args)
	if err != nil {
		return nil, err
	}
	if ok {
		return call, nil
	}
	msg := fmt.Sprintf("Cannot find a matching %d-argument function named {%s}%s()", len(args), name.Uri, name.Name)
	if c.static.BackwardsCompatible() {
		expr := ErrorExpr{
			Code:    xdm.CodeUnknownFunction,
			Message: msg,
		}
		return &expr, nil
	}
	if hint := c.functionHint(name); hint != "" {
		msg += ". " + hint
	}
	return nil, c.failAt(CodeUnknownFunction, msg, offset)
}

func (c *Compiler) functionHint(name xml.QName) string {
	lib := c.static.Functions()
	if arities := lib.Arities(name); len(arities) > 0 {
		var list []string
		for _, a := range arities {
			list = append(list, strconv.Itoa(a))
		}
		return fmt.Sprintf("The function %s() exists with arity %s", name.QualifiedName(), strings.Join(list, ", "))
	}
	var (
		others []string
		locals []string
	)
	for _, qn := range lib.Names() {
		if qn.Uri == name.Uri {
			locals = append(locals, qn.Name)
			continue
		}
		if qn.Name == name.Name {
			others = append(others, qn.Uri)
		}
	}
	if len(others) > 0 {
		return fmt.Sprintf("There is a function named %s in namespace %s", name.Name, strings.Join(others, ", "))
	}
	if similar := distance.Levenshtein(name.Name, locals); len(similar) > 0 {
		return fmt.Sprintf("Did you mean %s()?", strings.Join(similar, "(), "))
	}
	return ""
}

func (c *Compiler) resolveName(lit, def string) (xml.QName, error) {
	if rest, ok := strings.CutPrefix(lit, "Q{"); ok {
		uri, local, _ := strings.Cut(rest, "}")
		return xml.ExpandedName(local, "", uri), nil
	}
	prefix, local, ok := strings.Cut(lit, ":")
	if !ok {
		return xml.ExpandedName(lit, "", def), nil
	}
	uri, err := c.resolvePrefix(prefix)
	if err != nil {
		return xml.QName{}, err
	}
	return xml.ExpandedName(local, prefix, uri), nil
}

func (c *Compiler) resolvePrefix(prefix string) (string, error) {
	uri, err := c.static.ResolvePrefix(prefix)
	if err != nil {
		e := c.fail(CodeUnknownPrefix, fmt.Sprintf("Namespace prefix %s has not been declared", prefix))
		e.err = err
		return "", e
	}
	return uri, nil
}

func (c *Compiler) warn(msg string) {
	w := Warning{
		Message: msg,
		Line:    c.curr.Line,
		Column:  c.curr.Column,
	}
	c.warnings = append(c.warnings, w)
	if logger := c.static.Logger(); logger != nil {
		logger.Warn("static warning", "message", msg, "position", c.curr.Position)
	}
}

func (c *Compiler) fail(code, msg string) *StaticError {
	return c.failAt(code, msg, c.curr.Offset)
}

// failAt builds the error reported at offset. The snippet runs up to the
// end of the current token. Parsing stops at the first error.
func (c *Compiler) failAt(code, msg string, offset int) *StaticError {
	snippet, near := c.scan.Snippet(max(offset, c.curr.End))
	err := StaticError{
		Code:     code,
		Message:  msg,
		Position: c.scan.PositionOf(offset),
		Snippet:  snippet,
		Near:     near,
	}
	c.Error("compile", &err)
	return &err
}

func (c *Compiler) unexpected(want string) *StaticError {
	if c.curr.Type == Invalid {
		return c.fail(CodeSyntax, c.curr.Literal)
	}
	return c.fail(CodeSyntax, fmt.Sprintf("Expected %s, found %s", want, c.curr.Text()))
}

func (c *Compiler) expect(kind rune, want string) error {
	if !c.is(kind) {
		return c.unexpected(fmt.Sprintf("%q", want))
	}
	c.next()
	return nil
}

func (c *Compiler) expectKeyword(kw string) error {
	if !c.isKeyword(kw) {
		return c.unexpected(fmt.Sprintf("%q", kw))
	}
	c.next()
	return nil
}

func (c *Compiler) is(kind rune) bool {
	return c.curr.Type == kind
}

func (c *Compiler) isKeyword(kw string) bool {
	return c.curr.Type == Name && c.curr.Literal == kw
}

func (c *Compiler) peekKeyword(kw string) bool {
	return c.peek.Type == Name && c.peek.Literal == kw
}

func (c *Compiler) next() {
	c.curr = c.peek
	c.peek = c.scan.Scan()
}
