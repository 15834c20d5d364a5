package xpath

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

func TestSingletonAtomizer(t *testing.T) {
	tests := []struct {
		Name       string
		Declared   SequenceType
		AllowEmpty bool
		Value      xdm.Sequence
		Elided     bool
		Static     string
		Code       string
		Expected   []string
	}{
		{
			Name:     "optional operand, empty not allowed",
			Declared: NewSequenceType(integerType, ZeroOrOne),
			Value:    nil,
			Code:     xdm.CodeType,
		},
		{
			Name:     "optional operand, one item",
			Declared: NewSequenceType(integerType, ZeroOrOne),
			Value:    xdm.Sequence{xdm.Integer(7)},
			Expected: []string{"7"},
		},
		{
			Name:       "optional operand, empty allowed",
			Declared:   NewSequenceType(integerType, ZeroOrOne),
			AllowEmpty: true,
			Value:      nil,
			Elided:     true,
		},
		{
			Name:     "exactly one atomic operand",
			Declared: NewSequenceType(integerType, ExactlyOne),
			Value:    xdm.Sequence{xdm.Integer(1)},
			Elided:   true,
			Expected: []string{"1"},
		},
		{
			Name:     "many atomic values",
			Declared: NewSequenceType(integerType, ZeroOrMore),
			Value:    xdm.Sequence{xdm.Integer(1), xdm.Integer(2)},
			Code:     xdm.CodeType,
		},
		{
			Name:       "two items, empty allowed",
			Declared:   anySequence,
			AllowEmpty: true,
			Value:      xdm.Sequence{xdm.Integer(1), xdm.Integer(2)},
			Code:       xdm.CodeType,
		},
		{
			Name:       "untyped empty, empty allowed",
			Declared:   anySequence,
			AllowEmpty: true,
			Value:      nil,
		},
		{
			Name:     "untyped empty, empty not allowed",
			Declared: anySequence,
			Value:    nil,
			Code:     xdm.CodeType,
		},
		{
			Name:     "node is atomized",
			Declared: NewSequenceType(NodeKindTest{Kind: xml.TypeAttribute}, ExactlyOne),
			Value:    xdm.Sequence{xdm.NewNode(xml.NewAttribute(xml.LocalName("id"), "a1"))},
			Expected: []string{"a1"},
		},
		{
			Name:     "function item",
			Declared: NewSequenceType(FunctionTest{Any: true}, ExactlyOne),
			Static:   xdm.CodeFunctionAtomize,
		},
	}
	for _, tt := range tests {
		var (
			bindings = NewBindings()
			name     = xml.LocalName("v")
			handle   = bindings.Declare(name, tt.Declared, BindGlobal)
			atom     = NewSingletonAtomizer(&VarRef{Handle: handle, Name: name}, FunctionRole("my:id", 0), tt.AllowEmpty)
			static   = NewStaticContext()
		)
		x, err := atom.TypeCheck(NewEnv(static, bindings))
		if tt.Static != "" {
			if code := ErrorCode(err); code != tt.Static {
				t.Errorf("%s: want static error %s, got %v", tt.Name, tt.Static, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Name, err)
			continue
		}
		if _, ok := x.(*VarRef); ok != tt.Elided {
			t.Errorf("%s: atomizer elided: want %t, got %t (%s)", tt.Name, tt.Elided, ok, shape(x))
		}
		ctx, err := NewContext(t.Context(), static, bindings.Len())
		if err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
		ctx.Set(handle, tt.Value)
		seq, err := x.Evaluate(ctx)
		if tt.Code != "" {
			if code := ErrorCode(err); code != tt.Code {
				t.Errorf("%s: want error %s, got %v", tt.Name, tt.Code, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %s", tt.Name, err)
			continue
		}
		if diff := pretty.Compare(tt.Expected, values(seq)); diff != "" {
			t.Errorf("%s: result mismatched", tt.Name)
			t.Logf("%s", diff)
		}
	}
}
