package xml_test

import (
	"strings"
	"testing"

	"github.com/midbel/xpc/xml"
)

const prolog = `<?xml version="1.0" encoding="UTF-8"?>`

func TestParseInvalidDocument(t *testing.T) {
	data := []struct {
		Xml   string
		Cause string
	}{
		{
			Xml:   ``,
			Cause: "document without root element",
		},
		{
			Xml:   `<root empty-attr></root>`,
			Cause: "attribute without value",
		},
		{
			Xml:   `<root id="id-1" id="id-2"></root>`,
			Cause: "duplicate attribute",
		},
		{
			Xml:   `<root><item></root>`,
			Cause: "mismatched closing element",
		},
		{
			Xml:   `<root/><root/>`,
			Cause: "two root elements",
		},
	}
	for _, d := range data {
		_, err := xml.ParseString(prolog + d.Xml)
		if err == nil {
			t.Errorf("%s: invalid document parsed properly!", d.Cause)
		}
	}
}

func TestParseNamespaces(t *testing.T) {
	const doc = `<root xmlns="urn:default" xmlns:x="urn:x"><x:item x:id="1" plain="2"/><item xmlns=""/></root>`

	res, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	root, ok := res.Root().(*xml.Element)
	if !ok {
		t.Fatalf("root element expected, got %T", res.Root())
	}
	if root.QName.Uri != "urn:default" {
		t.Errorf("root: default namespace not applied, got %q", root.QName.Uri)
	}
	if len(root.Nodes) != 2 {
		t.Fatalf("root: expected 2 children, got %d", len(root.Nodes))
	}
	item := root.Nodes[0].(*xml.Element)
	if item.QName.Uri != "urn:x" {
		t.Errorf("x:item: expected urn:x, got %q", item.QName.Uri)
	}
	if a := item.GetAttribute(xml.ExpandedName("id", "", "urn:x")); a == nil {
		t.Errorf("x:id: attribute not found by expanded name")
	}
	if a := item.GetAttribute(xml.LocalName("plain")); a == nil || a.QName.Uri != "" {
		t.Errorf("plain: unprefixed attribute should not take the default namespace")
	}
	other := root.Nodes[1].(*xml.Element)
	if other.QName.Uri != "" {
		t.Errorf("item: namespace undeclaration not applied, got %q", other.QName.Uri)
	}
	var prefixes []string
	for _, n := range other.InScope() {
		prefixes = append(prefixes, n.Prefix)
	}
	if got := strings.Join(prefixes, ","); got != "x,xml" {
		t.Errorf("in-scope namespaces: want x,xml, got %s", got)
	}
}

func TestParseContent(t *testing.T) {
	const doc = `<root>a &amp; b<!-- note --><?app run?><![CDATA[<raw>]]></root>`

	res, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	root := res.Root().(*xml.Element)
	want := []xml.NodeType{xml.TypeText, xml.TypeComment, xml.TypeInstruction, xml.TypeText}
	if len(root.Nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %d", len(want), len(root.Nodes))
	}
	for i := range want {
		if root.Nodes[i].Type() != want[i] {
			t.Errorf("node %d: want %s, got %s", i, want[i], root.Nodes[i].Type())
		}
	}
	if v := root.Value(); v != "a & b<raw>" {
		t.Errorf("string value: got %q", v)
	}
}

func TestWriteNode(t *testing.T) {
	const doc = `<root id="1"><item>a &lt; b</item><empty/></root>`
	res, err := xml.ParseString(doc)
	if err != nil {
		t.Fatalf("fail to parse document: %s", err)
	}
	if got := xml.WriteNode(res.Root()); got != doc {
		t.Errorf("write: want %s, got %s", doc, got)
	}
}
