package xml_test

import (
	"strings"
	"testing"

	"github.com/midbel/xpc/xml"
)

func TestWriteDocument(t *testing.T) {
	data := []struct {
		Xml  string
		Want string
	}{
		{
			Xml:  `<root xmlns="urn:a"><item/></root>`,
			Want: `<root xmlns="urn:a"><item/></root>`,
		},
		{
			Xml:  `<root xmlns:x="urn:x"><x:item id="1">a &amp; b</x:item></root>`,
			Want: `<root xmlns:x="urn:x"><x:item id="1">a &amp; b</x:item></root>`,
		},
		{
			Xml:  `<root xmlns="urn:a" xmlns:x="urn:x"><x:item/><!--note--></root>`,
			Want: `<root xmlns="urn:a" xmlns:x="urn:x"><x:item/><!--note--></root>`,
		},
	}
	for _, d := range data {
		doc, err := xml.ParseString(prolog + d.Xml)
		if err != nil {
			t.Errorf("%s: unexpected error: %s", d.Xml, err)
			continue
		}
		var str strings.Builder
		ws := xml.NewWriter(&str)
		ws.WriterOptions |= xml.OptionCompact | xml.OptionNoProlog
		if err := ws.Write(doc); err != nil {
			t.Errorf("%s: unexpected error: %s", d.Xml, err)
			continue
		}
		if got := str.String(); got != d.Want {
			t.Errorf("document mismatched: want %s, got %s", d.Want, got)
		}
	}
}

func TestWriteProlog(t *testing.T) {
	var str strings.Builder
	ws := xml.NewWriter(&str)
	ws.WriterOptions |= xml.OptionCompact
	if err := ws.Write(xml.NewDocument(xml.NewElement(xml.LocalName("root")))); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if want, got := prolog+"<root/>", str.String(); got != want {
		t.Errorf("document mismatched: want %s, got %s", want, got)
	}
}
