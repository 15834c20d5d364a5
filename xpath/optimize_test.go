package xpath

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

func optimizeContext() StaticContext {
	ok := UserFunction{
		Name:   xml.ExpandedName("ok", "my", "urn:my"),
		Result: NewSequenceType(booleanType, ExactlyOne),
		Body:   "true()",
	}
	return NewStaticContext(
		WithNamespace("my", "urn:my"),
		WithVariable("x", anySequence),
		WithVariable("y", anySequence),
		WithVariable("b", NewSequenceType(booleanType, ExactlyOne)),
		WithFunction(&ok),
	)
}

func TestOptimize(t *testing.T) {
	data := []struct {
		Expr string
		Want string
	}{
		{
			Expr: "$x and false()",
			Want: "false",
		},
		{
			Expr: "false() and $x",
			Want: "false",
		},
		{
			Expr: "true() and $x",
			Want: "boolean($x)",
		},
		{
			Expr: "$x and true()",
			Want: "boolean($x)",
		},
		{
			Expr: "true() and $b",
			Want: "$b",
		},
		{
			Expr: "$x or true()",
			Want: "true",
		},
		{
			Expr: "false() or $x",
			Want: "boolean($x)",
		},
		{
			Expr: "not(true())",
			Want: "false",
		},
		{
			Expr: "not(not($x))",
			Want: "boolean($x)",
		},
		{
			Expr: "not($x and $y)",
			Want: "or(not($x), not($y))",
		},
		{
			Expr: "not($x or $y)",
			Want: "and(not($x), not($y))",
		},
		{
			Expr: "$b and my:ok()",
			Want: "if($b, ufCall, false)",
		},
		{
			Expr: "if (true()) then 1 else 2",
			Want: "1",
		},
		{
			Expr: "1 + 2",
			Want: "3",
		},
		{
			Expr: "count((1, 2, 3))",
			Want: "3",
		},
		{
			Expr: "/root",
			Want: "simpleStep(root, child::element(root))",
		},
		{
			Expr: "./item",
			Want: "child::element(item)",
		},
		{
			Expr: "./..",
			Want: "simpleStep(., parent::node())",
		},
		{
			Expr: "/root/item",
			Want: "slash(simpleStep(root, child::element(root)), child::element(item))",
		},
	}
	for _, d := range data {
		prog, err := Compile(d.Expr, optimizeContext())
		if err != nil {
			t.Errorf("%s: unexpected error: %s", d.Expr, err)
			continue
		}
		if got := shape(prog.Root); got != d.Want {
			t.Errorf("%s: optimized tree mismatched", d.Expr)
			t.Logf("want: %s", d.Want)
			t.Logf("got : %s", got)
		}
	}
}

func TestOptimizeDeterministic(t *testing.T) {
	tests := []string{
		"for $i in 1 to 3 return $i * 2",
		"not($x and $y)",
		"//item[@lang = 'en'][1]",
		"let $f := concat(?, '-', ?) return $f('a', 'b')",
		"some $i in $x satisfies $i instance of xs:integer",
	}
	for _, expr := range tests {
		p1, err := Compile(expr, optimizeContext())
		if err != nil {
			t.Errorf("%s: unexpected error: %s", expr, err)
			continue
		}
		p2, err := Compile(expr, optimizeContext())
		if err != nil {
			t.Errorf("%s: unexpected error: %s", expr, err)
			continue
		}
		if diff := pretty.Compare(Dump(p1.Root), Dump(p2.Root)); diff != "" {
			t.Errorf("%s: compilation is not deterministic", expr)
			t.Logf("%s", diff)
		}
		again := p1.Root.Optimize(NewEnv(optimizeContext(), p1.Bindings))
		if diff := pretty.Compare(Dump(p2.Root), Dump(again)); diff != "" {
			t.Errorf("%s: optimize is not idempotent", expr)
			t.Logf("%s", diff)
		}
	}
}

func TestInstantiate(t *testing.T) {
	prog, err := Compile("for $i in 1 to 3 return let $j := $i * 10 return $j + $i", nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	other := prog.Instantiate()
	if other.ID == prog.ID {
		t.Errorf("instance should get a new identifier")
	}
	if other.Bindings == prog.Bindings {
		t.Errorf("instance should get its own bindings")
	}
	if other.Root == prog.Root {
		t.Errorf("instance should get its own tree")
	}
	if want, got := shape(prog.Root), shape(other.Root); want != got {
		t.Errorf("instance differs from original")
		t.Logf("want: %s", want)
		t.Logf("got : %s", got)
	}
	other.Bindings.Get(0).Inferred = NewSequenceType(AnyItem{}, ZeroOrMore)
	if b := prog.Bindings.Get(0); b.Inferred.Card == ZeroOrMore {
		t.Errorf("changing bindings of instance modified the original")
	}
	want := []string{"11", "22", "33"}
	for _, p := range []*Program{prog, other} {
		seq, err := p.Evaluate(t.Context(), nil, nil)
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		if diff := pretty.Compare(want, values(seq)); diff != "" {
			t.Errorf("result mismatched")
			t.Logf("%s", diff)
		}
	}
}

func values(seq xdm.Sequence) []string {
	var list []string
	for _, i := range seq {
		list = append(list, i.StringValue())
	}
	return list
}
