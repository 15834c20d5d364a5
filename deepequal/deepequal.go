package deepequal

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

type Result struct {
	Equal        bool
	Reason       string
	Explanations []string
}

// Comparator compares two sequences item by item. Comparer defaults to the
// codepoint collation; when Logger is set, explanations are also logged.
type Comparator struct {
	Options
	Comparer xdm.Comparer
	Logger   *slog.Logger

	explained []string
}

func Compare(a, b xdm.Sequence, cmp xdm.Comparer, opts Options) (Result, error) {
	c := Comparator{
		Options:  opts,
		Comparer: cmp,
	}
	return c.Compare(a, b)
}

func Equal(a, b xdm.Sequence, cmp xdm.Comparer, opts Options) (bool, error) {
	res, err := Compare(a, b, cmp, opts)
	return res.Equal, err
}

func (c *Comparator) Compare(a, b xdm.Sequence) (Result, error) {
	if c.Comparer == nil {
		c.Comparer = xdm.CodepointComparer()
	}
	c.explained = c.explained[:0]
	if c.Has(ExcludeWhitespaceText) {
		a = withoutWhitespace(a)
		b = withoutWhitespace(b)
	}

	var res Result
	for i := 0; ; i++ {
		if i >= len(a) || i >= len(b) {
			res.Equal = len(a) == len(b)
			if !res.Equal {
				res.Reason = lengthReason(a, b)
			}
			break
		}
		var (
			it1 = a[i]
			it2 = b[i]
			pos = i + 1
		)
		f1, ok1 := xdm.AsFunction(it1)
		f2, ok2 := xdm.AsFunction(it2)
		if ok1 || ok2 {
			if !ok1 || !ok2 {
				return res, xdm.NewError(xdm.CodeFunctionEqual, "deep-equal(): cannot compare a function item with a non-function item")
			}
			eq, err := f1.DeepEqual(f2)
			if err != nil {
				return res, err
			}
			if !eq {
				res.Reason = fmt.Sprintf("functions at position %d differ", pos)
				break
			}
			continue
		}
		n1, ok1 := xdm.AsNode(it1)
		n2, ok2 := xdm.AsNode(it2)
		switch {
		case ok1 && ok2:
			if !c.equalNodes(n1, n2) {
				res.Reason = fmt.Sprintf("nodes at position %d differ", pos)
			}
		case ok1:
			res.Reason = fmt.Sprintf("comparing a node to an atomic value at position %d", pos)
		case ok2:
			res.Reason = fmt.Sprintf("comparing an atomic value to a node at position %d", pos)
		default:
			v1, _ := xdm.AsAtomic(it1)
			v2, _ := xdm.AsAtomic(it2)
			if !c.equalAtomic(v1, v2) {
				res.Reason = fmt.Sprintf("atomic values at position %d differ", pos)
			}
		}
		if res.Reason != "" {
			break
		}
	}
	if !res.Equal && res.Reason != "" {
		c.explain("%s", res.Reason)
	}
	res.Explanations = slices.Clone(c.explained)
	return res, nil
}

func lengthReason(a, b xdm.Sequence) string {
	var (
		str   string
		extra xdm.Item
	)
	if len(a) < len(b) {
		str = fmt.Sprintf("First sequence is shorter (first sequence length = %d)", len(a))
		extra = b[len(a)]
	} else {
		str = fmt.Sprintf("Second sequence is shorter (second sequence length = %d)", len(b))
		extra = a[len(b)]
	}
	if n, ok := xdm.AsNode(extra); ok && isWhitespaceText(n) {
		str += " (the first extra node is whitespace text)"
	}
	return str
}

// equalAtomic treats NaN as equal to NaN and incomparable values as
// different.
func (c *Comparator) equalAtomic(a, b xdm.Atomic) bool {
	if a.IsNaN() && b.IsNaN() {
		return true
	}
	eq, err := c.Comparer.Equal(a, b)
	return err == nil && eq
}

func (c *Comparator) equalNodes(n1, n2 xml.Node) bool {
	if n1.Type() != n2.Type() {
		c.explain("node kinds differ: comparing %s to %s", n1.Type(), n2.Type())
		return false
	}
	switch n1.Type() {
	case xml.TypeElement:
		return c.equalElements(n1.(*xml.Element), n2.(*xml.Element))
	case xml.TypeDocument:
		return c.equalChildren(n1, n2)
	case xml.TypeAttribute:
		return c.equalAttributes(n1.(*xml.Attribute), n2.(*xml.Attribute))
	case xml.TypeInstruction, xml.TypeNamespace:
		if n1.LocalName() != n2.LocalName() {
			c.explain("%s names differ: %s != %s", n1.Type(), n1.LocalName(), n2.LocalName())
			return false
		}
		return c.equalStrings(n1, n2)
	default:
		return c.equalStrings(n1, n2)
	}
}

func (c *Comparator) equalElements(e1, e2 *xml.Element) bool {
	if !e1.QName.Equal(e2.QName) {
		c.explain("element names differ: %s != %s", e1.QName.ExpandedName(), e2.QName.ExpandedName())
		return false
	}
	if c.Has(IncludePrefixes) && e1.QName.Space != e2.QName.Space {
		c.explain("element prefixes differ: %q != %q", e1.QName.Space, e2.QName.Space)
		return false
	}
	if len(e1.Attrs) != len(e2.Attrs) {
		c.explain("elements %s have different number of attributes", e1.QualifiedName())
		return false
	}
	for _, a1 := range e1.Attrs {
		a2 := e2.GetAttribute(a1.QName)
		if a2 == nil {
			c.explain("one element has an attribute %s, the other does not", a1.QName.ExpandedName())
			return false
		}
		if !c.equalAttributes(a1, a2) {
			c.explain("elements %s have different values for the attribute %s", e1.QualifiedName(), a1.QName.ExpandedName())
			return false
		}
	}
	if c.Has(IncludeNamespaces) && !slices.Equal(e1.InScope(), e2.InScope()) {
		c.explain("elements %s have different in-scope namespaces", e1.QualifiedName())
		return false
	}
	if c.Has(CompareAnnotations) && !e1.Annotation.Type.Equal(e2.Annotation.Type) {
		c.explain("elements %s have different type annotations", e1.QualifiedName())
		return false
	}
	if !c.Has(ExcludeVariety) {
		if e1.Annotation.Complex != e2.Annotation.Complex {
			c.explain("one element %s has complex type, the other simple", e1.QualifiedName())
			return false
		}
		if e1.Annotation.Complex && e1.Annotation.Variety != e2.Annotation.Variety {
			c.explain("both elements %s have complex type, but a different variety", e1.QualifiedName())
			return false
		}
	}
	if c.Has(CompareIDFlags) {
		if e1.ID != e2.ID {
			c.explain("one element %s is an ID, the other is not", e1.QualifiedName())
			return false
		}
		if e1.IDRef != e2.IDRef {
			c.explain("one element %s is an IDREF, the other is not", e1.QualifiedName())
			return false
		}
	}
	if !c.Has(CompareStringValues) && simpleContent(e1) && simpleContent(e2) {
		return c.equalTypedValues(e1, e2)
	}
	return c.equalChildren(e1, e2)
}

func (c *Comparator) equalAttributes(a1, a2 *xml.Attribute) bool {
	if !a1.QName.Equal(a2.QName) {
		c.explain("attribute names differ: %s != %s", a1.QName.ExpandedName(), a2.QName.ExpandedName())
		return false
	}
	if c.Has(IncludePrefixes) && a1.QName.Space != a2.QName.Space {
		c.explain("attribute prefixes differ: %q != %q", a1.QName.Space, a2.QName.Space)
		return false
	}
	if c.Has(CompareAnnotations) && !a1.Annotation.Type.Equal(a2.Annotation.Type) {
		c.explain("attributes %s have different type annotations", a1.QualifiedName())
		return false
	}
	var eq bool
	if c.Has(CompareStringValues) {
		eq = c.equalStrings(a1, a2)
	} else {
		eq = c.equalTypedValues(a1, a2)
	}
	if !eq {
		return false
	}
	if c.Has(CompareIDFlags) && (a1.ID != a2.ID || a1.IDRef != a2.IDRef) {
		c.explain("attributes %s differ in their ID/IDREF flags", a1.QualifiedName())
		return false
	}
	return true
}

func (c *Comparator) equalTypedValues(n1, n2 xml.Node) bool {
	v1, err1 := xdm.TypedValue(n1)
	v2, err2 := xdm.TypedValue(n2)
	if err1 != nil || err2 != nil {
		return false
	}
	if !c.equalAtomic(v1, v2) {
		c.explain("typed values of %s differ: %s != %s", n1.Type(), v1, v2)
		return false
	}
	return true
}

func (c *Comparator) equalStrings(n1, n2 xml.Node) bool {
	var (
		s1 = n1.Value()
		s2 = n2.Value()
	)
	eq, err := c.Comparer.Equal(xdm.String(s1), xdm.String(s2))
	if err == nil && eq {
		return true
	}
	if c.Has(Explain) {
		c.explain("%s values differ: different at char %d", n1.Type(), firstDifference(s1, s2))
	}
	return false
}

func (c *Comparator) equalChildren(n1, n2 xml.Node) bool {
	var (
		c1 = c.children(n1)
		c2 = c.children(n2)
	)
	for i := 0; ; i++ {
		if i >= len(c1) || i >= len(c2) {
			if len(c1) != len(c2) {
				c.explain("one %s has more children than the other", n1.Type())
				return false
			}
			return true
		}
		if !c.equalNodes(c1[i], c2[i]) {
			return false
		}
	}
}

func (c *Comparator) children(node xml.Node) []xml.Node {
	var (
		list  []xml.Node
		nodes []xml.Node
	)
	switch n := node.(type) {
	case *xml.Element:
		nodes = n.Nodes
	case *xml.Document:
		nodes = n.Nodes
	default:
		return nil
	}
	for _, n := range nodes {
		if c.ignorable(n) {
			continue
		}
		if c.Has(JoinAdjacentText) && n.Type() == xml.TypeText && len(list) > 0 {
			if last := list[len(list)-1]; last.Type() == xml.TypeText {
				list[len(list)-1] = xml.NewText(last.Value() + n.Value())
				continue
			}
		}
		list = append(list, n)
	}
	return list
}

func (c *Comparator) ignorable(n xml.Node) bool {
	switch n.Type() {
	case xml.TypeComment:
		return !c.Has(IncludeComments)
	case xml.TypeInstruction:
		return !c.Has(IncludeProcessingInstructions)
	case xml.TypeText:
		return c.Has(ExcludeWhitespaceText) && isWhitespaceText(n)
	default:
		return false
	}
}

func (c *Comparator) explain(format string, args ...any) {
	if !c.Has(Explain) {
		return
	}
	msg := fmt.Sprintf(format, args...)
	c.explained = append(c.explained, msg)
	if c.Logger != nil {
		c.Logger.Warn("deep-equal", "reason", msg)
	}
}

func simpleContent(e *xml.Element) bool {
	return !e.Annotation.Complex || e.Annotation.Variety == xml.VarietySimple
}

func isWhitespaceText(n xml.Node) bool {
	t, ok := n.(*xml.Text)
	return ok && t.Whitespace()
}

func withoutWhitespace(seq xdm.Sequence) xdm.Sequence {
	return slices.DeleteFunc(slices.Clone(seq), func(i xdm.Item) bool {
		n, ok := xdm.AsNode(i)
		return ok && isWhitespaceText(n)
	})
}

func firstDifference(s1, s2 string) int {
	var (
		r1 = []rune(s1)
		r2 = []rune(s2)
	)
	for i := range min(len(r1), len(r2)) {
		if r1[i] != r2[i] {
			return i + 1
		}
	}
	return min(len(r1), len(r2)) + 1
}
