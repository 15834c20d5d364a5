package xpath

import (
	"testing"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

func TestCardinality(t *testing.T) {
	tests := []struct {
		Name string
		Got  Cardinality
		Want Cardinality
	}{
		{Name: "one*one", Got: ExactlyOne.Multiply(ExactlyOne), Want: ExactlyOne},
		{Name: "one*many", Got: ExactlyOne.Multiply(OneOrMore), Want: OneOrMore},
		{Name: "opt*one", Got: ZeroOrOne.Multiply(ExactlyOne), Want: ZeroOrOne},
		{Name: "empty*many", Got: Empty.Multiply(ZeroOrMore), Want: Empty},
		{Name: "one+one", Got: ExactlyOne.Sum(ExactlyOne), Want: AllowsMany},
		{Name: "opt+opt", Got: ZeroOrOne.Sum(ZeroOrOne), Want: ZeroOrMore},
		{Name: "empty+one", Got: Empty.Sum(ExactlyOne), Want: ExactlyOne},
		{Name: "one|empty", Got: ExactlyOne.Union(Empty), Want: ZeroOrOne},
	}
	for _, tt := range tests {
		if tt.Got != tt.Want {
			t.Errorf("%s: want %s, got %s", tt.Name, tt.Want, tt.Got)
		}
	}
	if !ZeroOrMore.Subsumes(OneOrMore) {
		t.Errorf("zero-or-more should subsume one-or-more")
	}
	if ExactlyOne.Subsumes(ZeroOrOne) {
		t.Errorf("exactly-one should not subsume zero-or-one")
	}
	for n, want := range []bool{true, true, false} {
		if got := ZeroOrOne.Allows(n); got != want {
			t.Errorf("zero-or-one allows %d: want %t, got %t", n, want, got)
		}
	}
}

func TestTypeRelationship(t *testing.T) {
	var (
		elemA = NameTest{Kind: xml.TypeElement, Name: xml.LocalName("a")}
		elemB = NameTest{Kind: xml.TypeElement, Name: xml.LocalName("b")}
		attrA = NameTest{Kind: xml.TypeAttribute, Name: xml.LocalName("a")}
		elems = NodeKindTest{Kind: xml.TypeElement}
		local = LocalNameTest{Kind: xml.TypeElement, Local: "a"}
		space = NamespaceTest{Kind: xml.TypeElement, Uri: "urn:x"}
	)
	tests := []struct {
		Left  ItemType
		Right ItemType
		Want  Relation
	}{
		{Left: AnyItem{}, Right: AnyNode{}, Want: Subsumes},
		{Left: AnyNode{}, Right: AnyItem{}, Want: SubsumedBy},
		{Left: AnyNode{}, Right: integerType, Want: Disjoint},
		{Left: decimalType, Right: integerType, Want: Subsumes},
		{Left: integerType, Right: integerType, Want: Same},
		{Left: stringType, Right: integerType, Want: Disjoint},
		{Left: elems, Right: elemA, Want: Subsumes},
		{Left: elemA, Right: elemB, Want: Disjoint},
		{Left: local, Right: space, Want: Overlaps},
		{Left: elemA, Right: attrA, Want: Disjoint},
		{Left: local, Right: elemA, Want: Subsumes},
		{Left: FunctionTest{Any: true}, Right: FunctionTest{}, Want: Subsumes},
		{Left: AnyItem{}, Right: ErrorType{}, Want: Subsumes},
	}
	th := NewTypeHierarchy(false)
	for _, tt := range tests {
		got := th.Relationship(tt.Left, tt.Right)
		if got != tt.Want {
			t.Errorf("%s vs %s: want %s, got %s", tt.Left, tt.Right, tt.Want, got)
		}
	}
}

func TestComparable(t *testing.T) {
	th := NewTypeHierarchy(false)
	tests := []struct {
		Left       ItemType
		Right      ItemType
		Guaranteed bool
		Possibly   bool
	}{
		{Left: integerType, Right: doubleType, Guaranteed: true, Possibly: true},
		{Left: stringType, Right: AtomicOf(xdm.AnyURIType), Guaranteed: true, Possibly: true},
		{Left: stringType, Right: integerType, Guaranteed: false, Possibly: false},
		{Left: anyAtomic, Right: integerType, Guaranteed: false, Possibly: true},
		{Left: booleanType, Right: booleanType, Guaranteed: true, Possibly: true},
	}
	for _, tt := range tests {
		if got := th.GuaranteedComparable(tt.Left, tt.Right); got != tt.Guaranteed {
			t.Errorf("%s vs %s: guaranteed comparable: want %t, got %t", tt.Left, tt.Right, tt.Guaranteed, got)
		}
		if got := th.PossiblyComparable(tt.Left, tt.Right); got != tt.Possibly {
			t.Errorf("%s vs %s: possibly comparable: want %t, got %t", tt.Left, tt.Right, tt.Possibly, got)
		}
	}
}

func TestCommonType(t *testing.T) {
	tests := []struct {
		Left  ItemType
		Right ItemType
		Want  string
	}{
		{Left: integerType, Right: decimalType, Want: "xs:decimal"},
		{Left: integerType, Right: stringType, Want: "xs:anyAtomicType"},
		{Left: NodeKindTest{Kind: xml.TypeElement}, Right: NodeKindTest{Kind: xml.TypeAttribute}, Want: "node()"},
		{Left: integerType, Right: AnyNode{}, Want: "item()"},
	}
	for _, tt := range tests {
		got := commonType(tt.Left, tt.Right)
		if got.String() != tt.Want {
			t.Errorf("%s, %s: want %s, got %s", tt.Left, tt.Right, tt.Want, got)
		}
	}
}

func TestSequenceType(t *testing.T) {
	tests := []struct {
		Type  SequenceType
		Str   string
		Value xdm.Sequence
		Match bool
	}{
		{
			Type:  NewSequenceType(integerType, ExactlyOne),
			Str:   "xs:integer",
			Value: xdm.Sequence{xdm.Integer(1)},
			Match: true,
		},
		{
			Type:  NewSequenceType(integerType, ZeroOrOne),
			Str:   "xs:integer?",
			Value: xdm.Sequence{xdm.Integer(1), xdm.Integer(2)},
			Match: false,
		},
		{
			Type:  NewSequenceType(decimalType, ZeroOrMore),
			Str:   "xs:decimal*",
			Value: xdm.Sequence{xdm.Integer(1), xdm.Decimal(2.5)},
			Match: true,
		},
		{
			Type:  NewSequenceType(stringType, OneOrMore),
			Str:   "xs:string+",
			Value: xdm.Sequence{xdm.Integer(1)},
			Match: false,
		},
		{
			Type:  emptySequence,
			Str:   "empty-sequence()",
			Value: nil,
			Match: true,
		},
		{
			Type:  NewSequenceType(FunctionTest{Any: true}, ZeroOrMore),
			Str:   "(function(*))*",
			Value: nil,
			Match: true,
		},
	}
	for _, tt := range tests {
		if got := tt.Type.String(); got != tt.Str {
			t.Errorf("string: want %s, got %s", tt.Str, got)
		}
		if got := tt.Type.Matches(tt.Value); got != tt.Match {
			t.Errorf("%s matches %s: want %t, got %t", tt.Type, tt.Value, tt.Match, got)
		}
	}
}

func TestCompileSequenceType(t *testing.T) {
	tests := []struct {
		Expr string
		Want string
	}{
		{Expr: "$x instance of xs:integer+", Want: "xs:integer+"},
		{Expr: "$x instance of element(a)?", Want: "element(a)?"},
		{Expr: "$x instance of attribute()*", Want: "attribute()*"},
		{Expr: "$x instance of item()", Want: "item()"},
		{Expr: "$x instance of empty-sequence()", Want: "empty-sequence()"},
		{Expr: "$x instance of node()", Want: "node()"},
	}
	static := NewStaticContext(WithVariable("x", anySequence))
	for _, tt := range tests {
		x := parse(t, tt.Expr, static)
		inst, ok := x.(*InstanceOf)
		if !ok {
			t.Errorf("%s: expected instance of, got %s", tt.Expr, shape(x))
			continue
		}
		if got := inst.Type.String(); got != tt.Want {
			t.Errorf("%s: want %s, got %s", tt.Expr, tt.Want, got)
		}
	}
}

func TestParseSequenceType(t *testing.T) {
	static := NewStaticContext(WithNamespace("my", "urn:my"))
	tests := []struct {
		Input   string
		Want    string
		Invalid bool
	}{
		{Input: "xs:integer+", Want: "xs:integer+"},
		{Input: "element(my:item)?", Want: "element(my:item)?"},
		{Input: "item()*", Want: "item()*"},
		{Input: "xs:unknown", Invalid: true},
		{Input: "xs:integer xs:string", Invalid: true},
		{Input: "foo:bar", Invalid: true},
	}
	for _, tt := range tests {
		st, err := ParseSequenceType(tt.Input, static)
		if tt.Invalid {
			if err == nil {
				t.Errorf("%s: expected error, got %s", tt.Input, st)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Input, err)
			continue
		}
		if got := st.String(); got != tt.Want {
			t.Errorf("%s: want %s, got %s", tt.Input, tt.Want, got)
		}
	}
}
