package xdm

import (
	"slices"
	"strings"

	"github.com/midbel/xpc/xml"
)

// UType is a coarse classification of items: one bit per node kind, one for
// atomic values and one for function items.
type UType uint16

const (
	UDocument UType = 1 << iota
	UElement
	UAttribute
	UText
	UComment
	UInstruction
	UNamespace
	UAtomic
	UFunction
)

const (
	UNode = UDocument | UElement | UAttribute | UText | UComment | UInstruction | UNamespace
	UItem = UNode | UAtomic | UFunction
	UVoid = UType(0)
)

var unames = []struct {
	UType
	Name string
}{
	{UDocument, "document"},
	{UElement, "element"},
	{UAttribute, "attribute"},
	{UText, "text"},
	{UComment, "comment"},
	{UInstruction, "processing-instruction"},
	{UNamespace, "namespace"},
	{UAtomic, "atomic"},
	{UFunction, "function"},
}

func (u UType) String() string {
	switch u {
	case UVoid:
		return "void"
	case UNode:
		return "node"
	case UItem:
		return "item"
	default:
	}
	var list []string
	for _, n := range unames {
		if u&n.UType != 0 {
			list = append(list, n.Name)
		}
	}
	return strings.Join(list, "|")
}

func (u UType) Overlaps(other UType) bool {
	return u&other != 0
}

func (u UType) SubsumedBy(other UType) bool {
	return u&^other == 0
}

func UTypeOfNode(kind xml.NodeType) UType {
	switch kind {
	case xml.TypeDocument:
		return UDocument
	case xml.TypeElement:
		return UElement
	case xml.TypeAttribute:
		return UAttribute
	case xml.TypeText:
		return UText
	case xml.TypeComment:
		return UComment
	case xml.TypeInstruction:
		return UInstruction
	case xml.TypeNamespace:
		return UNamespace
	default:
		return UNode
	}
}

type Item interface {
	UType() UType
	StringValue() string
}

// Function is a function item. Equality between function items is left to
// the implementation: it may refuse with an error.
type Function interface {
	Item
	Name() xml.QName
	Arity() int
	Call([]Sequence) (Sequence, error)
	DeepEqual(Function) (bool, error)
}

type NodeItem struct {
	xml.Node
}

func NewNode(node xml.Node) NodeItem {
	return NodeItem{
		Node: node,
	}
}

func (n NodeItem) UType() UType {
	return UTypeOfNode(n.Type())
}

func (n NodeItem) StringValue() string {
	return n.Value()
}

func AsNode(item Item) (xml.Node, bool) {
	n, ok := item.(NodeItem)
	if !ok {
		return nil, false
	}
	return n.Node, true
}

func AsAtomic(item Item) (Atomic, bool) {
	a, ok := item.(Atomic)
	return a, ok
}

func AsFunction(item Item) (Function, bool) {
	f, ok := item.(Function)
	return f, ok
}

type Sequence []Item

func Empty() Sequence {
	return nil
}

func Singleton(item Item) Sequence {
	return Sequence{item}
}

func FromNodes(nodes []xml.Node) Sequence {
	seq := make(Sequence, 0, len(nodes))
	for _, n := range nodes {
		seq = append(seq, NewNode(n))
	}
	return seq
}

func (s *Sequence) Append(item Item) {
	*s = append(*s, item)
}

func (s *Sequence) Concat(other Sequence) {
	*s = slices.Concat(*s, other)
}

func (s Sequence) Len() int {
	return len(s)
}

func (s Sequence) Empty() bool {
	return len(s) == 0
}

func (s Sequence) Singleton() bool {
	return len(s) == 1
}

func (s Sequence) First() Item {
	if len(s) == 0 {
		return nil
	}
	return s[0]
}

func (s Sequence) Nodes() bool {
	for _, i := range s {
		if _, ok := i.(NodeItem); !ok {
			return false
		}
	}
	return true
}

// Sort orders a sequence of nodes in document order and removes duplicates.
func (s Sequence) Sort() Sequence {
	list := slices.Clone(s)
	slices.SortStableFunc(list, func(a, b Item) int {
		n1, _ := AsNode(a)
		n2, _ := AsNode(b)
		return xml.Compare(n1, n2)
	})
	return slices.CompactFunc(list, func(a, b Item) bool {
		n1, _ := AsNode(a)
		n2, _ := AsNode(b)
		return xml.Same(n1, n2)
	})
}

func (s Sequence) String() string {
	var list []string
	for _, i := range s {
		list = append(list, i.StringValue())
	}
	return strings.Join(list, " ")
}

// EffectiveBooleanValue computes the effective boolean value of a sequence.
func EffectiveBooleanValue(seq Sequence) (bool, error) {
	if len(seq) == 0 {
		return false, nil
	}
	if _, ok := seq[0].(NodeItem); ok {
		return true, nil
	}
	if len(seq) > 1 {
		return false, NewError(CodeBooleanValue, "effective boolean value is not defined for a sequence of two or more items starting with an atomic value")
	}
	a, ok := seq[0].(Atomic)
	if !ok {
		return false, NewError(CodeBooleanValue, "effective boolean value is not defined for a function item")
	}
	switch v := a.Value.(type) {
	case bool:
		return v, nil
	case string:
		return v != "", nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0 && v == v, nil
	default:
		return false, Errorf(CodeBooleanValue, "effective boolean value is not defined for %s", a.Type.Name.QualifiedName())
	}
}
