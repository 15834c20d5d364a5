package xdm_test

import (
	"errors"
	"math"
	"testing"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

func TestCast(t *testing.T) {
	tests := []struct {
		Value xdm.Atomic
		To    *xdm.AtomicType
		Want  string
		Code  string
	}{
		{Value: xdm.String("42"), To: xdm.IntegerType, Want: "42"},
		{Value: xdm.String(" 1.5 "), To: xdm.DoubleType, Want: "1.5"},
		{Value: xdm.String("abc"), To: xdm.IntegerType, Code: xdm.CodeInvalidValue},
		{Value: xdm.Integer(1), To: xdm.BooleanType, Want: "true"},
		{Value: xdm.Double(1e20), To: xdm.StringType, Want: "1.0E20"},
		{Value: xdm.Double(math.NaN()), To: xdm.IntegerType, Code: xdm.CodeInvalidValue},
		{Value: xdm.Boolean(true), To: xdm.DateType, Code: xdm.CodeType},
		{Value: xdm.Untyped("true"), To: xdm.BooleanType, Want: "true"},
		{Value: xdm.String("x:local"), To: xdm.QNameType, Want: "x:local"},
	}
	for _, tt := range tests {
		got, err := xdm.Cast(tt.Value, tt.To)
		if tt.Code != "" {
			if code := xdm.Code(err); code != tt.Code {
				t.Errorf("%s as %s: expected error %s, got %v", tt.Value, tt.To, tt.Code, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s as %s: unexpected error: %s", tt.Value, tt.To, err)
			continue
		}
		if got.Type != tt.To {
			t.Errorf("%s as %s: wrong type %s", tt.Value, tt.To, got.Type)
		}
		if s := got.StringValue(); s != tt.Want {
			t.Errorf("%s as %s: want %s, got %s", tt.Value, tt.To, tt.Want, s)
		}
	}
}

func TestTypeHierarchy(t *testing.T) {
	if !xdm.IntegerType.DerivesFrom(xdm.DecimalType) {
		t.Errorf("integer should derive from decimal")
	}
	if xdm.IntegerType.Primitive() != xdm.DecimalType {
		t.Errorf("primitive of integer should be decimal, got %s", xdm.IntegerType.Primitive())
	}
	if xdm.StringType.DerivesFrom(xdm.DecimalType) {
		t.Errorf("string does not derive from decimal")
	}
	if _, ok := xdm.LookupType(xml.ExpandedName("double", "xsd", xml.SchemaNS)); !ok {
		t.Errorf("double should be found whatever the prefix")
	}
	if _, ok := xdm.LookupType(xml.LocalName("double")); ok {
		t.Errorf("double without namespace should not be found")
	}
}

func TestAtomize(t *testing.T) {
	elem := xml.NewElement(xml.LocalName("item"))
	elem.Append(xml.NewText("hello"))

	seq, err := xdm.Atomize(xdm.Sequence{xdm.NewNode(elem), xdm.Integer(1)})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if a, ok := xdm.AsAtomic(seq[0]); !ok || a.Type != xdm.UntypedAtomicType || a.StringValue() != "hello" {
		t.Errorf("untyped element should atomize to untypedAtomic, got %v", seq[0])
	}

	elem.Annotation = xml.Annotation{
		Type:    xml.ExpandedName("complex", "", "urn:types"),
		Complex: true,
		Variety: xml.VarietyElementOnly,
	}
	_, err = xdm.Atomize(xdm.Singleton(xdm.NewNode(elem)))
	if code := xdm.Code(err); code != xdm.CodeElementOnly {
		t.Errorf("element-only content: expected %s, got %v", xdm.CodeElementOnly, err)
	}
}

func TestEffectiveBooleanValue(t *testing.T) {
	tests := []struct {
		Seq  xdm.Sequence
		Want bool
		Err  bool
	}{
		{Seq: nil, Want: false},
		{Seq: xdm.Sequence{xdm.String("")}, Want: false},
		{Seq: xdm.Sequence{xdm.String("a")}, Want: true},
		{Seq: xdm.Sequence{xdm.NaN()}, Want: false},
		{Seq: xdm.Sequence{xdm.Integer(1), xdm.Integer(2)}, Err: true},
		{Seq: xdm.Sequence{xdm.NewNode(xml.NewText("")), xdm.Integer(2)}, Want: true},
	}
	for i, tt := range tests {
		got, err := xdm.EffectiveBooleanValue(tt.Seq)
		if tt.Err {
			if err == nil {
				t.Errorf("test #%d: error expected", i)
			}
			continue
		}
		if err != nil {
			t.Errorf("test #%d: unexpected error: %s", i, err)
			continue
		}
		if got != tt.Want {
			t.Errorf("test #%d: want %t, got %t", i, tt.Want, got)
		}
	}
}

func TestCardinalityError(t *testing.T) {
	err := xdm.CardinalityError("first argument of f()", "too many items")
	if !errors.Is(err, xdm.ErrCardinality) {
		t.Errorf("cardinality error should wrap ErrCardinality")
	}
	if err.Code != xdm.CodeType {
		t.Errorf("cardinality error should be %s, got %s", xdm.CodeType, err.Code)
	}
}
