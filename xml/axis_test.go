package xml_test

import (
	"strings"
	"testing"

	"github.com/midbel/xpc/xml"
)

const axisDoc = `<a id="a"><b><c/><d/></b><e><f/></e><g/></a>`

func names(nodes []xml.Node) string {
	var list []string
	for _, n := range nodes {
		list = append(list, n.LocalName())
	}
	return strings.Join(list, ",")
}

func TestWalk(t *testing.T) {
	doc, err := xml.ParseString(axisDoc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	var (
		root = doc.Root().(*xml.Element)
		b    = root.Nodes[0].(*xml.Element)
		d    = b.Nodes[1]
		e    = root.Nodes[1].(*xml.Element)
	)
	tests := []struct {
		Axis xml.Axis
		From xml.Node
		Want string
	}{
		{Axis: xml.AxisChild, From: root, Want: "b,e,g"},
		{Axis: xml.AxisDescendant, From: root, Want: "b,c,d,e,f,g"},
		{Axis: xml.AxisDescendantOrSelf, From: b, Want: "b,c,d"},
		{Axis: xml.AxisParent, From: d, Want: "b"},
		{Axis: xml.AxisAncestor, From: d, Want: "b,a,"},
		{Axis: xml.AxisAncestorOrSelf, From: d, Want: "d,b,a,"},
		{Axis: xml.AxisFollowingSibling, From: b, Want: "e,g"},
		{Axis: xml.AxisPrecedingSibling, From: root.Nodes[2], Want: "e,b"},
		{Axis: xml.AxisFollowing, From: d, Want: "e,f,g"},
		{Axis: xml.AxisPreceding, From: e.Nodes[0], Want: "d,c,b"},
		{Axis: xml.AxisAttribute, From: root, Want: "id"},
		{Axis: xml.AxisSelf, From: e, Want: "e"},
	}
	for _, tt := range tests {
		got := names(xml.Walk(tt.Axis, tt.From))
		if got != tt.Want {
			t.Errorf("%s: want %s, got %s", tt.Axis, tt.Want, got)
		}
	}
}

func TestDocumentOrder(t *testing.T) {
	doc, err := xml.ParseString(axisDoc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	var (
		root = doc.Root().(*xml.Element)
		attr = root.Attrs[0]
		b    = root.Nodes[0]
	)
	if !xml.Before(root, attr) {
		t.Errorf("element should come before its attributes")
	}
	if !xml.Before(attr, b) {
		t.Errorf("attributes should come before children")
	}
	if xml.Compare(b, b) != 0 {
		t.Errorf("node compared to itself should be 0")
	}
}
