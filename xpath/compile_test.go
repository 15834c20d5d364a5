package xpath

import (
	"errors"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/midbel/xpc/xml"
)

// shape renders the exported tree of an expression on one line.
func shape(x Expr) string {
	return shapeOf(Export(x))
}

func shapeOf(el *xml.Element) string {
	attr := func(name string) string {
		a := el.GetAttribute(xml.LocalName(name))
		if a == nil {
			return ""
		}
		return a.Value()
	}
	var (
		tag = el.LocalName()
		str = tag
	)
	switch tag {
	case "axis":
		return attr("name") + "::" + attr("nodeTest")
	case "literal":
		if attr("count") == "0" {
			return "()"
		}
		return attr("value")
	case "varRef":
		return "$" + attr("name")
	case "dot":
		return "."
	case "fn":
		str = attr("name")
	case "arith", "gc", "vc", "is", "venn":
		str = tag + "[" + attr("op") + "]"
	case "for", "let", "some", "every":
		str = tag + "[$" + attr("var") + "]"
	default:
	}
	var list []string
	for _, n := range el.Nodes {
		if c, ok := n.(*xml.Element); ok {
			list = append(list, shapeOf(c))
		}
	}
	if len(list) == 0 && tag != "fn" {
		return str
	}
	return str + "(" + strings.Join(list, ", ") + ")"
}

func parse(t *testing.T, expr string, static StaticContext) Expr {
	t.Helper()
	cp := NewCompiler(strings.NewReader(expr), static)
	x, err := cp.Parse()
	if err != nil {
		t.Fatalf("%s: unexpected error: %s", expr, err)
	}
	return x
}

func TestParse(t *testing.T) {
	static := NewStaticContext(WithVariable("x", anySequence))
	data := []struct {
		Expr string
		Want string
	}{
		{
			Expr: "/",
			Want: "root",
		},
		{
			Expr: "//A/B",
			Want: "slash(slash(slash(root, descendant-or-self::node()), child::element(A)), child::element(B))",
		},
		{
			Expr: "A//B",
			Want: "slash(child::element(A), slash(descendant-or-self::node(), child::element(B)))",
		},
		{
			Expr: "/A",
			Want: "slash(root, child::element(A))",
		},
		{
			Expr: "@id",
			Want: "attribute::attribute(id)",
		},
		{
			Expr: "..",
			Want: "parent::node()",
		},
		{
			Expr: "child::A[1]",
			Want: "filter(child::element(A), 1)",
		},
		{
			Expr: "preceding-sibling::A[1]",
			Want: "reverse(filter(preceding-sibling::element(A), 1))",
		},
		{
			Expr: "ancestor::*",
			Want: "ancestor::element()",
		},
		{
			Expr: "1 + 2 * 3",
			Want: "arith[+](1, arith[*](2, 3))",
		},
		{
			Expr: "1 - 2 - 3",
			Want: "arith[-](arith[-](1, 2), 3)",
		},
		{
			Expr: "-1",
			Want: "negate(1)",
		},
		{
			Expr: "+1",
			Want: "1",
		},
		{
			Expr: "--1",
			Want: "negate(negate(1))",
		},
		{
			Expr: "1 to 3",
			Want: "to(1, 3)",
		},
		{
			Expr: "1, 2",
			Want: "sequence(1, 2)",
		},
		{
			Expr: "()",
			Want: "()",
		},
		{
			Expr: "(1, 2)[2]",
			Want: "filter(sequence(1, 2), 2)",
		},
		{
			Expr: "$x = 1",
			Want: "gc[=]($x, 1)",
		},
		{
			Expr: "$x eq 1",
			Want: "vc[eq]($x, 1)",
		},
		{
			Expr: "A is B",
			Want: "is[is](child::element(A), child::element(B))",
		},
		{
			Expr: "A | B",
			Want: "venn[union](child::element(A), child::element(B))",
		},
		{
			Expr: "A except B",
			Want: "venn[except](child::element(A), child::element(B))",
		},
		{
			Expr: "1 = 1 or 2 = 2 and 3 = 3",
			Want: "or(gc[=](1, 1), and(gc[=](2, 2), gc[=](3, 3)))",
		},
		{
			Expr: "if ($x) then 1 else 2",
			Want: "if($x, 1, 2)",
		},
		{
			Expr: "for $a in (1, 2), $b in $a return $b",
			Want: "for[$a](sequence(1, 2), for[$b]($a, $b))",
		},
		{
			Expr: "some $a in $x satisfies $a",
			Want: "some[$a]($x, $a)",
		},
		{
			Expr: "let $a := 1 return $a",
			Want: "let[$a](1, $a)",
		},
		{
			Expr: "count($x)",
			Want: "count($x)",
		},
	}
	for _, d := range data {
		x := parse(t, d.Expr, static)
		if got := shape(x); got != d.Want {
			t.Errorf("%s: shape mismatched", d.Expr)
			t.Logf("want: %s", d.Want)
			t.Logf("got : %s", got)
		}
	}
}

func TestParseKeywordsAsNames(t *testing.T) {
	data := []struct {
		Expr string
		Want string
	}{
		{
			Expr: "for",
			Want: "child::element(for)",
		},
		{
			Expr: "if/return",
			Want: "slash(child::element(if), child::element(return))",
		},
		{
			Expr: "div div div",
			Want: "arith[div](child::element(div), child::element(div))",
		},
		{
			Expr: "child::to to 3",
			Want: "to(child::element(to), 3)",
		},
	}
	for _, d := range data {
		x := parse(t, d.Expr, nil)
		if got := shape(x); got != d.Want {
			t.Errorf("%s: shape mismatched", d.Expr)
			t.Logf("want: %s", d.Want)
			t.Logf("got : %s", got)
		}
	}
}

func TestParseRangeVariables(t *testing.T) {
	x := parse(t, "let $x := 1 return let $x := $x + 1 return $x", nil)
	outer, ok := x.(*Let)
	if !ok {
		t.Fatalf("expected let, got %s", spew.Sdump(x))
	}
	inner, ok := outer.Return.(*Let)
	if !ok {
		t.Fatalf("expected nested let, got %s", shape(outer.Return))
	}
	if outer.Var == inner.Var {
		t.Fatalf("shadowing variable should get its own binding")
	}
	src, ok := inner.Source.(*Arithmetic)
	if !ok {
		t.Fatalf("expected arith as source of inner let, got %s", shape(inner.Source))
	}
	if ref, ok := src.Left.(*VarRef); !ok || ref.Handle != outer.Var {
		t.Errorf("source of inner let should refer to outer variable")
	}
	if ref, ok := inner.Return.(*VarRef); !ok || ref.Handle != inner.Var {
		t.Errorf("return of inner let should refer to inner variable")
	}
}

func TestParseHoles(t *testing.T) {
	cp := NewCompiler(strings.NewReader("concat(?, 'a', ?)"), nil)
	x, err := cp.Parse()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	pa, ok := x.(*PartialApply)
	if !ok {
		t.Fatalf("expected partial application, got %s", shape(x))
	}
	if holes := pa.Holes(); len(holes) != 2 || holes[0] != 0 || holes[1] != 2 {
		t.Errorf("wrong holes: %v", holes)
	}
	if len(pa.Params) != 2 {
		t.Fatalf("expected 2 parameters, got %d", len(pa.Params))
	}
	for i, want := range []string{"arg1", "arg3"} {
		b := cp.bindings.Get(pa.Params[i])
		if b.Kind != BindParam {
			t.Errorf("placeholder %d: expected parameter binding, got %s", i, b.Kind)
		}
		if b.Name.Name != want {
			t.Errorf("placeholder %d: want %s, got %s", i, want, b.Name.Name)
		}
	}
	if got, want := shape(x), "partialApply(concat($arg1, a, $arg3))"; got != want {
		t.Errorf("shape mismatched: want %s, got %s", want, got)
	}

	x = parse(t, "upper-case#1", nil)
	ref, ok := x.(*FunctionRef)
	if !ok {
		t.Fatalf("expected function reference, got %s", shape(x))
	}
	if len(ref.Params) != 1 {
		t.Errorf("expected 1 parameter, got %d", len(ref.Params))
	}
}

func TestParseWarnings(t *testing.T) {
	data := []struct {
		Expr  string
		Count int
	}{
		{Expr: "for $x as xs:integer* in (1, 2) return $x", Count: 1},
		{Expr: "some $x as xs:integer+ in (1, 2) satisfies $x", Count: 1},
		{Expr: "for $x as xs:integer in (1, 2) return $x", Count: 0},
		{Expr: "let $x as xs:integer* := (1, 2) return $x", Count: 0},
	}
	for _, d := range data {
		cp := NewCompiler(strings.NewReader(d.Expr), nil)
		if _, err := cp.Parse(); err != nil {
			t.Errorf("%s: unexpected error: %s", d.Expr, err)
			continue
		}
		ws := cp.Warnings()
		if len(ws) != d.Count {
			t.Errorf("%s: want %d warnings, got %d", d.Expr, d.Count, len(ws))
			continue
		}
		for _, w := range ws {
			if w.Message != "Occurrence indicator on singleton range variable has no effect" {
				t.Errorf("%s: unexpected warning: %s", d.Expr, w)
			}
		}
	}
}

func TestCompileErrors(t *testing.T) {
	data := []struct {
		Expr    string
		Code    string
		Message string
	}{
		{
			Expr:    "",
			Code:    CodeSyntax,
			Message: "Expression is empty",
		},
		{
			Expr:    "1 2",
			Code:    CodeSyntax,
			Message: "Unexpected token 2 beyond end of expression",
		},
		{
			Expr:    "/ cast as xs:integer",
			Code:    CodeSyntax,
			Message: "Operator 'cast as' is not allowed after '/'",
		},
		{
			Expr:    "/ instance of node()",
			Code:    CodeSyntax,
			Message: "Operator 'instance of' is not allowed after '/'",
		},
		{
			Expr:    "1 = 2 = 3",
			Code:    CodeSyntax,
			Message: "A comparison expression cannot be an operand of another comparison",
		},
		{
			Expr:    "$y",
			Code:    CodeUndefined,
			Message: "Variable $y has not been declared",
		},
		{
			Expr:    "(for $a in 1 return $a), $a",
			Code:    CodeUndefined,
			Message: "Variable $a has not been declared",
		},
		{
			Expr:    "for $a in $a return 1",
			Code:    CodeUndefined,
			Message: "Variable $a has not been declared",
		},
		{
			Expr:    "foo(1)",
			Code:    CodeUnknownFunction,
			Message: "Cannot find a matching 1-argument function named {" + FnNS + "}foo()",
		},
		{
			Expr:    "count(1, 2)",
			Code:    CodeUnknownFunction,
			Message: "The function count() exists with arity 1",
		},
		{
			Expr:    "'1' cast as xs:anyAtomicType",
			Code:    CodeAbstractCast,
			Message: "Cannot cast to the abstract type",
		},
		{
			Expr:    "'1' cast as xs:foo",
			Code:    CodeUnknownType,
			Message: "Unknown atomic type Q{" + xml.SchemaNS + "}foo",
		},
		{
			Expr: "p:a",
			Code: CodeUnknownPrefix,
		},
		{
			Expr:    "let $f := concat#2 return $f(?, 1)",
			Code:    CodeSyntax,
			Message: "Partial application of dynamic function calls is not supported",
		},
		{
			Expr: "if (1) then 2",
			Code: CodeSyntax,
		},
		{
			Expr: "(1, 2",
			Code: CodeSyntax,
		},
		{
			Expr: "'abc",
			Code: CodeSyntax,
		},
		{
			Expr: "foo::bar",
			Code: CodeSyntax,
		},
	}
	for _, d := range data {
		_, err := Compile(d.Expr, nil)
		if err == nil {
			t.Errorf("%s: expected error but compiled successfully", d.Expr)
			continue
		}
		if code := ErrorCode(err); code != d.Code {
			t.Errorf("%s: want code %s, got %s (%s)", d.Expr, d.Code, code, err)
		}
		if d.Message != "" && !strings.Contains(err.Error(), d.Message) {
			t.Errorf("%s: message %q not found in %q", d.Expr, d.Message, err)
		}
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := Compile("1 +\n  $zz", nil)
	var se *StaticError
	if !errors.As(err, &se) {
		t.Fatalf("expected static error, got %v", err)
	}
	if se.Line != 2 || se.Column != 3 {
		t.Errorf("expected error at 2:3, got %d:%d", se.Line, se.Column)
	}
	if !strings.HasSuffix(se.Snippet, "$zz") {
		t.Errorf("snippet should end with the offending token, got %q", se.Snippet)
	}
	if !strings.Contains(se.Snippet, "1 +") {
		t.Errorf("snippet should contain the start of the expression, got %q", se.Snippet)
	}
}

func TestCompileTooDeep(t *testing.T) {
	var (
		depth = DefaultMaxDepth + 10
		expr  = strings.Repeat("(", depth) + "1" + strings.Repeat(")", depth)
	)
	_, err := Compile(expr, nil)
	if !errors.Is(err, ErrTooDeep) {
		t.Fatalf("expected %s, got %v", ErrTooDeep, err)
	}
	expr = strings.Repeat("(", 10) + "1" + strings.Repeat(")", 10)
	if _, err := Compile(expr, nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
}

func TestCompilerReuse(t *testing.T) {
	cp := NewCompiler(strings.NewReader("1"), nil)
	if _, err := cp.Parse(); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := cp.Parse(); !errors.Is(err, ErrCompiled) {
		t.Fatalf("expected %s, got %v", ErrCompiled, err)
	}
}

func TestBackwardsCompatibleUnknownFunction(t *testing.T) {
	static := NewStaticContext(WithBackwardsCompatible(true))
	prog, err := Compile("if (true()) then 1 else foo()", static)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := prog.Evaluate(t.Context(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	prog, err = Compile("foo()", static)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	_, err = prog.Evaluate(t.Context(), nil, nil)
	if code := ErrorCode(err); code != "XTDE1425" {
		t.Fatalf("expected XTDE1425, got %v", err)
	}
}
