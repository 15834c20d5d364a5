package deepequal_test

import (
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/midbel/xpc/deepequal"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

type funcItem struct {
	name  string
	arity int
}

func (f funcItem) UType() xdm.UType {
	return xdm.UFunction
}

func (f funcItem) StringValue() string {
	return f.name
}

func (f funcItem) Name() xml.QName {
	return xml.LocalName(f.name)
}

func (f funcItem) Arity() int {
	return f.arity
}

func (f funcItem) Call(_ []xdm.Sequence) (xdm.Sequence, error) {
	return nil, nil
}

func (f funcItem) DeepEqual(other xdm.Function) (bool, error) {
	return f.Name().Equal(other.Name()) && f.Arity() == other.Arity(), nil
}

func integers(values ...int64) xdm.Sequence {
	var seq xdm.Sequence
	for _, v := range values {
		seq.Append(xdm.Integer(v))
	}
	return seq
}

func parseRoot(t *testing.T, str string) xdm.Item {
	t.Helper()
	doc, err := xml.ParseString(str)
	if err != nil {
		t.Fatalf("fail to parse %s: %s", str, err)
	}
	return xdm.NewNode(doc.Root())
}

func TestSequences(t *testing.T) {
	tests := []struct {
		Name   string
		Left   xdm.Sequence
		Right  xdm.Sequence
		Equal  bool
		Reason string
	}{
		{
			Name:  "same integers",
			Left:  integers(1, 2),
			Right: integers(1, 2),
			Equal: true,
		},
		{
			Name:   "first shorter",
			Left:   integers(1, 2),
			Right:  integers(1, 2, 3),
			Reason: "First sequence is shorter (first sequence length = 2)",
		},
		{
			Name:   "second shorter",
			Left:   integers(1, 2, 3),
			Right:  integers(1),
			Reason: "Second sequence is shorter (second sequence length = 1)",
		},
		{
			Name:  "NaN",
			Left:  xdm.Sequence{xdm.Integer(1), xdm.NaN()},
			Right: xdm.Sequence{xdm.Integer(1), xdm.NaN()},
			Equal: true,
		},
		{
			Name:  "empty",
			Equal: true,
		},
		{
			Name:   "different values",
			Left:   integers(1, 2),
			Right:  integers(1, 3),
			Reason: "atomic values at position 2 differ",
		},
		{
			Name:   "not comparable",
			Left:   xdm.Sequence{xdm.String("1")},
			Right:  integers(1),
			Reason: "atomic values at position 1 differ",
		},
		{
			Name:   "node and atomic",
			Left:   xdm.Sequence{xdm.NewNode(xml.NewElement(xml.LocalName("a")))},
			Right:  integers(1),
			Reason: "comparing a node to an atomic value at position 1",
		},
		{
			Name:   "atomic and node",
			Left:   integers(1),
			Right:  xdm.Sequence{xdm.NewNode(xml.NewElement(xml.LocalName("a")))},
			Reason: "comparing an atomic value to a node at position 1",
		},
		{
			Name:   "whitespace extra",
			Left:   integers(1),
			Right:  xdm.Sequence{xdm.Integer(1), xdm.NewNode(xml.NewText("  "))},
			Reason: "First sequence is shorter (first sequence length = 1) (the first extra node is whitespace text)",
		},
		{
			Name:  "functions",
			Left:  xdm.Sequence{funcItem{name: "f", arity: 1}},
			Right: xdm.Sequence{funcItem{name: "f", arity: 1}},
			Equal: true,
		},
		{
			Name:   "different functions",
			Left:   xdm.Sequence{funcItem{name: "f", arity: 1}},
			Right:  xdm.Sequence{funcItem{name: "f", arity: 2}},
			Reason: "functions at position 1 differ",
		},
	}
	for _, tt := range tests {
		res, err := deepequal.Compare(tt.Left, tt.Right, xdm.CodepointComparer(), 0)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Name, err)
			continue
		}
		if res.Equal != tt.Equal {
			t.Errorf("%s: want %t, got %t", tt.Name, tt.Equal, res.Equal)
			t.Logf("result: %s", spew.Sdump(res))
			continue
		}
		if res.Reason != tt.Reason {
			t.Errorf("%s: reason mismatched! want %q, got %q", tt.Name, tt.Reason, res.Reason)
		}
	}
}

func TestFunctionAgainstAtomic(t *testing.T) {
	var (
		left  = xdm.Sequence{funcItem{name: "f"}}
		right = integers(1)
	)
	_, err := deepequal.Equal(left, right, nil, 0)
	if code := xdm.Code(err); code != xdm.CodeFunctionEqual {
		t.Errorf("expected %s, got %v", xdm.CodeFunctionEqual, err)
	}
}

func TestNodes(t *testing.T) {
	tests := []struct {
		Name    string
		Left    string
		Right   string
		Options deepequal.Options
		Equal   bool
	}{
		{
			Name:  "attribute order",
			Left:  `<a x="1" y="2"/>`,
			Right: `<a y="2" x="1"/>`,
			Equal: true,
		},
		{
			Name:  "attribute value",
			Left:  `<a x="1"/>`,
			Right: `<a x="2"/>`,
		},
		{
			Name:  "comments ignored",
			Left:  `<a><b/><!-- note --></a>`,
			Right: `<a><b/></a>`,
			Equal: true,
		},
		{
			Name:    "comments included",
			Left:    `<a><b/><!-- note --></a>`,
			Right:   `<a><b/></a>`,
			Options: deepequal.IncludeComments,
		},
		{
			Name:  "processing instruction ignored",
			Left:  `<a><?app run?></a>`,
			Right: `<a></a>`,
			Equal: true,
		},
		{
			Name:  "whitespace kept",
			Left:  "<a>\n  <b/>\n</a>",
			Right: `<a><b/></a>`,
		},
		{
			Name:    "whitespace excluded",
			Left:    "<a>\n  <b/>\n</a>",
			Right:   `<a><b/></a>`,
			Options: deepequal.ExcludeWhitespaceText,
			Equal:   true,
		},
		{
			Name:  "prefixes ignored",
			Left:  `<x:a xmlns:x="urn:a"/>`,
			Right: `<y:a xmlns:y="urn:a"/>`,
			Equal: true,
		},
		{
			Name:    "prefixes compared",
			Left:    `<x:a xmlns:x="urn:a"/>`,
			Right:   `<y:a xmlns:y="urn:a"/>`,
			Options: deepequal.IncludePrefixes,
		},
		{
			Name:    "namespaces compared",
			Left:    `<a xmlns:x="urn:x"/>`,
			Right:   `<a/>`,
			Options: deepequal.IncludeNamespaces,
		},
		{
			Name:    "adjacent text joined",
			Left:    `<a>ab<!-- c -->cd</a>`,
			Right:   `<a>abcd</a>`,
			Options: deepequal.JoinAdjacentText,
			Equal:   true,
		},
		{
			Name:  "adjacent text not joined",
			Left:  `<a>ab<!-- c -->cd</a>`,
			Right: `<a>abcd</a>`,
		},
	}
	for _, tt := range tests {
		var (
			left  = xdm.Singleton(parseRoot(t, tt.Left))
			right = xdm.Singleton(parseRoot(t, tt.Right))
		)
		got, err := deepequal.Equal(left, right, xdm.CodepointComparer(), tt.Options)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Name, err)
			continue
		}
		if got != tt.Equal {
			t.Errorf("%s: want %t, got %t", tt.Name, tt.Equal, got)
		}
	}
}

func TestExplain(t *testing.T) {
	var (
		left  = xdm.Singleton(parseRoot(t, `<a>hello world</a>`))
		right = xdm.Singleton(parseRoot(t, `<a>hello word</a>`))
	)
	res, err := deepequal.Compare(left, right, nil, deepequal.Explain)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if res.Equal {
		t.Fatalf("nodes should differ")
	}
	var found bool
	for _, e := range res.Explanations {
		if strings.Contains(e, "different at char 10") {
			found = true
		}
	}
	if !found {
		t.Errorf("explanations should report the first different char: %s", spew.Sdump(res.Explanations))
	}
	if len(res.Explanations) == 0 || res.Explanations[len(res.Explanations)-1] != res.Reason {
		t.Errorf("last explanation should be the reason %q", res.Reason)
	}
}

func TestParseOptions(t *testing.T) {
	opts, err := deepequal.ParseOptions([]string{"exclude-whitespace-text", "IncludeComments", "compare_id_flags"})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	want := deepequal.ExcludeWhitespaceText | deepequal.IncludeComments | deepequal.CompareIDFlags
	if opts != want {
		t.Errorf("want %s, got %s", want, opts)
	}
	if want != 16|4|512 {
		t.Errorf("option values changed: %d", want)
	}
	if _, err := deepequal.ParseOptions([]string{"whatever"}); err == nil {
		t.Errorf("unknown option should be rejected")
	}
}
