package xml

import (
	"fmt"
	"slices"
)

type Axis int8

const (
	AxisChild Axis = iota
	AxisDescendant
	AxisDescendantOrSelf
	AxisSelf
	AxisParent
	AxisAncestor
	AxisAncestorOrSelf
	AxisFollowingSibling
	AxisPrecedingSibling
	AxisFollowing
	AxisPreceding
	AxisAttribute
	AxisNamespace
)

var axisNames = map[string]Axis{
	"child":              AxisChild,
	"descendant":         AxisDescendant,
	"descendant-or-self": AxisDescendantOrSelf,
	"self":               AxisSelf,
	"parent":             AxisParent,
	"ancestor":           AxisAncestor,
	"ancestor-or-self":   AxisAncestorOrSelf,
	"following-sibling":  AxisFollowingSibling,
	"preceding-sibling":  AxisPrecedingSibling,
	"following":          AxisFollowing,
	"preceding":          AxisPreceding,
	"attribute":          AxisAttribute,
	"namespace":          AxisNamespace,
}

func ParseAxis(name string) (Axis, error) {
	a, ok := axisNames[name]
	if !ok {
		return a, fmt.Errorf("%s: unknown axis", name)
	}
	return a, nil
}

func (a Axis) String() string {
	for n, x := range axisNames {
		if x == a {
			return n
		}
	}
	return "<axis>"
}

// Forward reports whether the axis delivers nodes in document order.
func (a Axis) Forward() bool {
	switch a {
	case AxisParent, AxisAncestor, AxisAncestorOrSelf, AxisPrecedingSibling, AxisPreceding:
		return false
	default:
		return true
	}
}

func (a Axis) Reverse() bool {
	return !a.Forward() && a != AxisParent
}

// PrincipalType is the node kind selected by a name test on this axis.
func (a Axis) PrincipalType() NodeType {
	switch a {
	case AxisAttribute:
		return TypeAttribute
	case AxisNamespace:
		return TypeNamespace
	default:
		return TypeElement
	}
}

// Walk returns the nodes reachable from node along the axis, in axis order:
// document order for forward axes, reverse document order otherwise.
func Walk(axis Axis, node Node) []Node {
	switch axis {
	case AxisChild:
		return slices.Clone(childrenOf(node))
	case AxisDescendant:
		return descendants(node, nil)
	case AxisDescendantOrSelf:
		return descendants(node, []Node{node})
	case AxisSelf:
		return []Node{node}
	case AxisParent:
		if p := node.Parent(); p != nil {
			return []Node{p}
		}
		return nil
	case AxisAncestor:
		return ancestors(node.Parent())
	case AxisAncestorOrSelf:
		return ancestors(node)
	case AxisFollowingSibling:
		return siblings(node, true)
	case AxisPrecedingSibling:
		return siblings(node, false)
	case AxisFollowing:
		return following(node)
	case AxisPreceding:
		return preceding(node)
	case AxisAttribute:
		if e, ok := node.(*Element); ok {
			list := make([]Node, 0, len(e.Attrs))
			for _, a := range e.Attrs {
				list = append(list, a)
			}
			return list
		}
		return nil
	case AxisNamespace:
		if e, ok := node.(*Element); ok {
			return NamespaceNodes(e)
		}
		return nil
	default:
		return nil
	}
}

func childrenOf(node Node) []Node {
	switch n := node.(type) {
	case *Element:
		return n.Nodes
	case *Document:
		return n.Nodes
	default:
		return nil
	}
}

func descendants(node Node, list []Node) []Node {
	for _, c := range childrenOf(node) {
		list = append(list, c)
		list = descendants(c, list)
	}
	return list
}

func ancestors(node Node) []Node {
	var list []Node
	for ; node != nil; node = node.Parent() {
		list = append(list, node)
	}
	return list
}

func siblings(node Node, after bool) []Node {
	switch node.Type() {
	case TypeAttribute, TypeNamespace:
		return nil
	default:
	}
	parent := node.Parent()
	if parent == nil {
		return nil
	}
	var (
		nodes = childrenOf(parent)
		pos   = node.Position()
		list  []Node
	)
	if after {
		for i := pos + 1; i < len(nodes); i++ {
			list = append(list, nodes[i])
		}
		return list
	}
	for i := pos - 1; i >= 0; i-- {
		list = append(list, nodes[i])
	}
	return list
}

func following(node Node) []Node {
	var list []Node
	if p := node.Parent(); p != nil && (node.Type() == TypeAttribute || node.Type() == TypeNamespace) {
		list = descendants(p, nil)
		node = p
	}
	for curr := node; curr != nil; curr = curr.Parent() {
		for _, s := range siblings(curr, true) {
			list = append(list, s)
			list = descendants(s, list)
		}
	}
	return list
}

func preceding(node Node) []Node {
	if p := node.Parent(); p != nil && (node.Type() == TypeAttribute || node.Type() == TypeNamespace) {
		node = p
	}
	var list []Node
	for curr := node; curr != nil; curr = curr.Parent() {
		for _, s := range siblings(curr, false) {
			sub := descendants(s, []Node{s})
			slices.Reverse(sub)
			list = append(list, sub...)
		}
	}
	return list
}
