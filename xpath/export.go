package xpath

import (
	"strings"

	"github.com/midbel/xpc/casing"
	"github.com/midbel/xpc/xml"
)

// Exporter writes an expression tree as a tree of elements: one element
// per node, tagged by the kind of the node, with its properties as
// attributes and its operands as children.
type Exporter struct {
	Casing casing.CaseType

	root  *xml.Element
	stack []*xml.Element
}

func NewExporter(ct casing.CaseType) *Exporter {
	return &Exporter{
		Casing: ct,
	}
}

// Export returns the element built for expr. The exporter can be reused.
func (e *Exporter) Export(expr Expr) *xml.Element {
	e.root = nil
	e.stack = e.stack[:0]
	e.Child(expr)
	return e.root
}

func (e *Exporter) Start(tag string) {
	elem := xml.NewElement(xml.LocalName(tag))
	if n := len(e.stack); n > 0 {
		e.stack[n-1].Append(elem)
	} else if e.root == nil {
		e.root = elem
	}
	e.stack = append(e.stack, elem)
}

func (e *Exporter) Attr(name, value string) {
	n := len(e.stack)
	if n == 0 {
		return
	}
	name = casing.To(e.Casing, name)
	e.stack[n-1].SetAttribute(xml.NewAttribute(xml.LocalName(name), value))
}

func (e *Exporter) End() {
	if n := len(e.stack); n > 0 {
		e.stack = e.stack[:n-1]
	}
}

func (e *Exporter) Child(x Expr) {
	if x == nil {
		return
	}
	x.Export(e)
}

func (e *Exporter) Children(list ...Expr) {
	for _, x := range list {
		e.Child(x)
	}
}

func Export(expr Expr) *xml.Element {
	return NewExporter(casing.DefaultCase).Export(expr)
}

// Dump returns the indented text of the exported tree.
func Dump(expr Expr) string {
	var (
		str strings.Builder
		ws  = xml.NewWriter(&str)
	)
	ws.WriterOptions |= xml.OptionNoProlog
	if err := ws.WriteElement(Export(expr)); err != nil {
		return ""
	}
	return str.String()
}
