package xdm

import (
	"github.com/midbel/xpc/xml"
)

// Atomize replaces every node of seq by its typed value. Function items can
// not be atomized.
func Atomize(seq Sequence) (Sequence, error) {
	var res Sequence
	for _, i := range seq {
		switch i := i.(type) {
		case Atomic:
			res.Append(i)
		case NodeItem:
			a, err := TypedValue(i.Node)
			if err != nil {
				return nil, err
			}
			res.Append(a)
		default:
			return nil, Errorf(CodeFunctionAtomize, "cannot atomize a function item")
		}
	}
	return res, nil
}

// TypedValue returns the typed value of a node. Untyped content yields
// xs:untypedAtomic; comments and processing instructions yield xs:string.
func TypedValue(node xml.Node) (Atomic, error) {
	switch n := node.(type) {
	case *xml.Element:
		ann := n.Annotation
		if ann.Complex && ann.Variety == xml.VarietyElementOnly {
			return Atomic{}, Errorf(CodeElementOnly, "the typed value of element %s with element-only content is undefined", n.QualifiedName())
		}
		return annotated(n.Value(), ann)
	case *xml.Attribute:
		return annotated(n.Datum, n.Annotation)
	case *xml.Comment, *xml.Instruction, *xml.Namespace:
		return String(node.Value()), nil
	default:
		return Untyped(node.Value()), nil
	}
}

func annotated(str string, ann xml.Annotation) (Atomic, error) {
	if ann.Complex || ann.Zero() {
		return Untyped(str), nil
	}
	t, ok := LookupType(ann.Type)
	if !ok || t == UntypedAtomicType {
		return Untyped(str), nil
	}
	return Cast(Untyped(str), t)
}
