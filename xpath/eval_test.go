package xpath

import (
	"context"
	"math"
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

const document = `<?xml version="1.0" encoding="UTF-8"?>
<root><item lang="en">element-1</item><item lang="fr">element-2</item><group><item lang="en">sub-element-1</item><item lang="en" ignore="true">sub-element-2</item></group></root>`

func parseDocument(t *testing.T) xdm.Item {
	t.Helper()
	doc, err := xml.ParseString(document)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	return xdm.NewNode(doc)
}

func evalContext() StaticContext {
	fact := UserFunction{
		Name: xml.ExpandedName("fact", "my", "urn:my"),
		Params: []Param{
			{Name: xml.LocalName("n"), Type: NewSequenceType(integerType, ExactlyOne)},
		},
		Result: NewSequenceType(integerType, ExactlyOne),
		Body:   "if ($n le 1) then 1 else $n * my:fact($n - 1)",
	}
	return NewStaticContext(
		WithNamespace("my", "urn:my"),
		WithFunction(&fact),
	)
}

func evaluate(ctx context.Context, expr string, static StaticContext, item xdm.Item) (xdm.Sequence, error) {
	prog, err := Compile(expr, static)
	if err != nil {
		return nil, err
	}
	return prog.Evaluate(ctx, item, nil)
}

func TestEval(t *testing.T) {
	tests := []struct {
		Expr     string
		Expected []string
	}{
		{
			Expr:     "/root/item",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "/root/item[1]",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "name(/root)",
			Expected: []string{"root"},
		},
		{
			Expr:     "/root/group/./item[2]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "name((/root/group/item)[1]/./..)",
			Expected: []string{"group"},
		},
		{
			Expr:     "count(/root/item[1]/@lang)",
			Expected: []string{"1"},
		},
		{
			Expr:     "/root/item[last()]",
			Expected: []string{"element-2"},
		},
		{
			Expr:     "count(//item)",
			Expected: []string{"4"},
		},
		{
			Expr:     "//group/item[1]",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "/root/item[2] | /root/item[1]",
			Expected: []string{"element-1", "element-2"},
		},
		{
			Expr:     "//@ignore",
			Expected: []string{"true"},
		},
		{
			Expr:     "//item[@lang = 'en'][2]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "(//item)[last()]",
			Expected: []string{"sub-element-2"},
		},
		{
			Expr:     "//item[position() = last()]",
			Expected: []string{"element-2", "sub-element-2"},
		},
		{
			Expr:     "//item[2]/preceding-sibling::item[1]",
			Expected: []string{"element-1", "sub-element-1"},
		},
		{
			Expr:     "/root/group/item[2]/preceding::item[1]",
			Expected: []string{"sub-element-1"},
		},
		{
			Expr:     "/root/group/item[2]/ancestor::*[1]",
			Expected: []string{"sub-element-1sub-element-2"},
		},
		{
			Expr:     "name(/root/*[3])",
			Expected: []string{"group"},
		},
		{
			Expr:     "//item[. = 'element-2']/@lang",
			Expected: []string{"fr"},
		},
		{
			Expr:     "string(/root/item[1]/@lang)",
			Expected: []string{"en"},
		},
		{
			Expr:     "/root/item[1] << /root/item[2]",
			Expected: []string{"true"},
		},
		{
			Expr:     "/root/item[1] is /root/item[2]",
			Expected: []string{"false"},
		},
		{
			Expr:     "count(//item[@lang = 'en'] intersect /root/item)",
			Expected: []string{"1"},
		},
		{
			Expr:     "count(//item except /root/item)",
			Expected: []string{"2"},
		},
		{
			Expr:     "/root/item[1] treat as element()",
			Expected: []string{"element-1"},
		},
		{
			Expr:     "for $i in 1 to 3 return $i * 2",
			Expected: []string{"2", "4", "6"},
		},
		{
			Expr:     "for $a in (1, 2), $b in (10, 20) return $a + $b",
			Expected: []string{"11", "21", "12", "22"},
		},
		{
			Expr:     "let $x := 1 return let $x := $x + 1 return $x",
			Expected: []string{"2"},
		},
		{
			Expr:     "for $x in (1, 2) return for $x in ($x * 10) return $x",
			Expected: []string{"10", "20"},
		},
		{
			Expr:     "some $i in (1, 2, 3) satisfies $i gt 2",
			Expected: []string{"true"},
		},
		{
			Expr:     "every $i in (1, 2, 3) satisfies $i gt 2",
			Expected: []string{"false"},
		},
		{
			Expr:     "concat('a', 'b', 'c')",
			Expected: []string{"abc"},
		},
		{
			Expr:     "string-join(for $i in 1 to 3 return string($i), '-')",
			Expected: []string{"1-2-3"},
		},
		{
			Expr:     "deep-equal((1, 2), (1, 2))",
			Expected: []string{"true"},
		},
		{
			Expr:     "deep-equal((1, 2), (2, 1))",
			Expected: []string{"false"},
		},
		{
			Expr:     "index-of((10, 20, 10), 10)",
			Expected: []string{"1", "3"},
		},
		{
			Expr:     "distinct-values((1, 2, 1))",
			Expected: []string{"1", "2"},
		},
		{
			Expr:     "subsequence((1, 2, 3, 4), 2, 2)",
			Expected: []string{"2", "3"},
		},
		{
			Expr:     "reverse(1 to 3)",
			Expected: []string{"3", "2", "1"},
		},
		{
			Expr:     "sum((1, 2, 3))",
			Expected: []string{"6"},
		},
		{
			Expr:     "let $f := concat(?, '-', ?) return $f('a', 'b')",
			Expected: []string{"a-b"},
		},
		{
			Expr:     "let $f := upper-case#1 return $f('abc')",
			Expected: []string{"ABC"},
		},
		{
			Expr:     "for $s in ('x', 'y') return let $f := concat($s, ?) return $f('!')",
			Expected: []string{"x!", "y!"},
		},
		{
			Expr:     "1 to 0",
			Expected: nil,
		},
		{
			Expr:     "(1, 2) = (2, 3)",
			Expected: []string{"true"},
		},
		{
			Expr:     "3 idiv 2",
			Expected: []string{"1"},
		},
		{
			Expr:     "7 mod 3",
			Expected: []string{"1"},
		},
		{
			Expr:     "1 div 2",
			Expected: []string{"0.5"},
		},
		{
			Expr:     "-(1 + 2)",
			Expected: []string{"-3"},
		},
		{
			Expr:     "if (1 eq 1) then 'yes' else 'no'",
			Expected: []string{"yes"},
		},
		{
			Expr:     "5 instance of xs:integer",
			Expected: []string{"true"},
		},
		{
			Expr:     "current-dateTime() instance of xs:dateTime",
			Expected: []string{"true"},
		},
		{
			Expr:     "current-dateTime() eq current-dateTime()",
			Expected: []string{"true"},
		},
		{
			Expr:     "'12' cast as xs:integer + 1",
			Expected: []string{"13"},
		},
		{
			Expr:     "xs:integer('5') * 2",
			Expected: []string{"10"},
		},
		{
			Expr:     "'12' castable as xs:integer",
			Expected: []string{"true"},
		},
		{
			Expr:     "'ab' castable as xs:integer",
			Expected: []string{"false"},
		},
		{
			Expr:     "my:fact(5)",
			Expected: []string{"120"},
		},
	}
	item := parseDocument(t)
	for _, tt := range tests {
		seq, err := evaluate(t.Context(), tt.Expr, evalContext(), item)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Expr, err)
			continue
		}
		if diff := pretty.Compare(tt.Expected, values(seq)); diff != "" {
			t.Errorf("%s: result mismatched", tt.Expr)
			t.Logf("%s", diff)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	tests := []struct {
		Expr string
		Code string
	}{
		{Expr: "(1, 2) + 1", Code: CodeStaticType},
		{Expr: "1 eq (1, 2)", Code: CodeStaticType},
		{Expr: "1 div 0", Code: xdm.CodeDivZero},
		{Expr: "'a' cast as xs:integer", Code: xdm.CodeInvalidValue},
		{Expr: "error()", Code: xdm.CodeUserError},
		{Expr: "(1, 2)/item", Code: CodePathNotNode},
		{Expr: "/root/item[1] treat as attribute()", Code: CodeTreat},
		{Expr: "let $f := concat#2 return $f('a')", Code: CodeStaticType},
		{Expr: "deep-equal(upper-case#1, upper-case#1)", Code: xdm.CodeFunctionEqual},
		{Expr: "my:fact(())", Code: CodeStaticType},
		{Expr: "my:fact((3, 4))", Code: CodeStaticType},
	}
	item := parseDocument(t)
	for _, tt := range tests {
		_, err := evaluate(t.Context(), tt.Expr, evalContext(), item)
		if err == nil {
			t.Errorf("%s: expected error %s", tt.Expr, tt.Code)
			continue
		}
		if code := ErrorCode(err); code != tt.Code {
			t.Errorf("%s: want %s, got %s (%s)", tt.Expr, tt.Code, code, err)
		}
	}
}

func TestEvalVariables(t *testing.T) {
	static := NewStaticContext(
		WithVariable("x", anySequence),
		WithVariable("n", NewSequenceType(integerType, ExactlyOne)),
	)
	prog, err := Compile("$x + $n", static)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	vars := map[string]xdm.Sequence{
		"x": {xdm.Integer(1)},
		"n": {xdm.Integer(2)},
	}
	seq, err := prog.Evaluate(t.Context(), nil, vars)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := pretty.Compare([]string{"3"}, values(seq)); diff != "" {
		t.Errorf("result mismatched")
		t.Logf("%s", diff)
	}

	vars["x"] = xdm.Sequence{xdm.Integer(1), xdm.Integer(2)}
	if _, err := prog.Evaluate(t.Context(), nil, vars); ErrorCode(err) != CodeStaticType {
		t.Errorf("sequence of two items as operand of '+': expected XPTY0004, got %v", err)
	}
	vars["x"] = nil
	seq, err = prog.Evaluate(t.Context(), nil, vars)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(seq) != 0 {
		t.Errorf("empty operand should give empty result, got %s", seq)
	}
	vars["n"] = xdm.Sequence{xdm.String("2")}
	if _, err := prog.Evaluate(t.Context(), nil, vars); ErrorCode(err) != CodeStaticType {
		t.Errorf("value of wrong type for $n: expected XPTY0004, got %v", err)
	}
	delete(vars, "n")
	if _, err := prog.Evaluate(t.Context(), nil, vars); ErrorCode(err) != CodeNoContext {
		t.Errorf("missing value for $n: expected XPDY0002, got %v", err)
	}
}

func TestEvalParameterCardinality(t *testing.T) {
	static := NewStaticContext(
		WithNamespace("my", "urn:my"),
		WithVariable("v", NewSequenceType(integerType, ZeroOrOne)),
		WithFunction(&UserFunction{
			Name: xml.ExpandedName("id", "my", "urn:my"),
			Params: []Param{
				{Name: xml.LocalName("n"), Type: NewSequenceType(integerType, ExactlyOne)},
			},
			Body: "$n",
		}),
	)
	prog, err := Compile("my:id($v)", static)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	vars := map[string]xdm.Sequence{
		"v": {xdm.Integer(3)},
	}
	seq, err := prog.Evaluate(t.Context(), nil, vars)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := pretty.Compare([]string{"3"}, values(seq)); diff != "" {
		t.Errorf("result mismatched")
		t.Logf("%s", diff)
	}
	vars["v"] = nil
	if _, err := prog.Evaluate(t.Context(), nil, vars); ErrorCode(err) != CodeStaticType {
		t.Errorf("empty argument for exactly-one parameter: expected XPTY0004, got %v", err)
	}
}

func TestEvalCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	_, err := evaluate(ctx, "//item/..", nil, parseDocument(t))
	if err == nil {
		t.Fatalf("evaluation should stop when context is cancelled")
	}
}

func TestEquivalence(t *testing.T) {
	tests := []struct {
		Left  xdm.Atomic
		Right xdm.Atomic
		Want  bool
	}{
		{Left: xdm.Double(math.NaN()), Right: xdm.Double(math.NaN()), Want: true},
		{Left: xdm.Untyped("1"), Right: xdm.String("1"), Want: true},
		{Left: xdm.Integer(1), Right: xdm.Double(1), Want: true},
		{Left: xdm.Integer(1), Right: xdm.String("1"), Want: false},
		{Left: xdm.String("a"), Right: xdm.String("b"), Want: false},
	}
	static := NewStaticContext()
	ctx, err := NewContext(t.Context(), static, 0)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	for _, tt := range tests {
		eq := EquivalenceComparison{
			Left:  atomicLiteral(tt.Left),
			Right: atomicLiteral(tt.Right),
		}
		seq, err := eq.Evaluate(ctx)
		if err != nil {
			t.Errorf("%s = %s: unexpected error: %s", tt.Left, tt.Right, err)
			continue
		}
		got, _ := xdm.EffectiveBooleanValue(seq)
		if got != tt.Want {
			t.Errorf("%s = %s: want %t, got %t", tt.Left, tt.Right, tt.Want, got)
		}

		x, err := eq.TypeCheck(NewEnv(static, NewBindings()))
		if err != nil {
			t.Errorf("%s = %s: unexpected error: %s", tt.Left, tt.Right, err)
			continue
		}
		if !isConstantBoolean(x, tt.Want) {
			t.Errorf("%s = %s: equivalence of literals should fold to %t, got %s", tt.Left, tt.Right, tt.Want, shape(x))
		}
	}
	empty := EquivalenceComparison{
		Left:  emptyLiteral(),
		Right: emptyLiteral(),
	}
	if seq, _ := empty.Evaluate(ctx); !isTrue(seq) {
		t.Errorf("two empty sequences should be equivalent")
	}
}

func isTrue(seq xdm.Sequence) bool {
	ok, err := xdm.EffectiveBooleanValue(seq)
	return err == nil && ok
}
