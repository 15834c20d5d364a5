package xml

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/midbel/xpc/casing"
)

type WriterOptions uint64

const (
	OptionCompact WriterOptions = 1 << iota
	OptionNoComment
	OptionNoProlog
	OptionNameKebabCase
	OptionNameSnakeCase
)

func (w WriterOptions) Compact() bool {
	return w&OptionCompact > 0
}

func (w WriterOptions) NoComment() bool {
	return w&OptionNoComment > 0
}

func (w WriterOptions) NoProlog() bool {
	return w&OptionNoProlog > 0
}

func (w WriterOptions) rewrite(name string) string {
	switch {
	case w&OptionNameKebabCase > 0:
		return casing.To(casing.KebabCase, name)
	case w&OptionNameSnakeCase > 0:
		return casing.To(casing.SnakeCase, name)
	default:
		return name
	}
}

func (w WriterOptions) rewriteQName(name QName) QName {
	name.Name = w.rewrite(name.Name)
	return name
}

type Writer struct {
	writer *bufio.Writer

	Indent string
	WriterOptions
}

func WriteNode(node Node) string {
	var str strings.Builder
	ws := NewWriter(&str)
	ws.WriterOptions |= OptionCompact | OptionNoProlog
	ws.writeNode(node, 0)
	ws.writer.Flush()
	return str.String()
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{
		writer: bufio.NewWriter(w),
		Indent: "  ",
	}
}

func (w *Writer) Write(doc *Document) error {
	if !w.NoProlog() {
		w.writer.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
		w.writeNL()
	}
	for _, n := range doc.Nodes {
		if err := w.writeNode(n, 0); err != nil {
			return err
		}
		w.writeNL()
	}
	return w.writer.Flush()
}

func (w *Writer) WriteElement(elem *Element) error {
	if err := w.writeNode(elem, 0); err != nil {
		return err
	}
	w.writeNL()
	return w.writer.Flush()
}

func (w *Writer) writeNode(node Node, depth int) error {
	switch node := node.(type) {
	case *Document:
		for _, n := range node.Nodes {
			if err := w.writeNode(n, depth); err != nil {
				return err
			}
		}
		return nil
	case *Element:
		return w.writeElement(node, depth)
	case *Text:
		_, err := w.writer.WriteString(escapeText(node.Content))
		return err
	case *Comment:
		if w.NoComment() {
			return nil
		}
		w.writeIndent(depth)
		_, err := fmt.Fprintf(w.writer, "<!--%s-->", node.Content)
		return err
	case *Instruction:
		w.writeIndent(depth)
		_, err := fmt.Fprintf(w.writer, "<?%s %s?>", node.Target, node.Content)
		return err
	case *Attribute:
		_, err := fmt.Fprintf(w.writer, "%s=\"%s\"", w.rewriteQName(node.QName), escapeAttr(node.Datum))
		return err
	case *Namespace:
		_, err := fmt.Fprintf(w.writer, "%s=%q", nsAttrName(node.NS), node.Uri)
		return err
	default:
		return fmt.Errorf("node: unknown type (%T)", node)
	}
}

func (w *Writer) writeElement(elem *Element, depth int) error {
	w.writeIndent(depth)
	name := w.rewriteQName(elem.QName).QualifiedName()
	w.writer.WriteString("<")
	w.writer.WriteString(name)
	for _, n := range elem.Namespaces {
		fmt.Fprintf(w.writer, " %s=%q", nsAttrName(n), n.Uri)
	}
	for _, a := range elem.Attrs {
		fmt.Fprintf(w.writer, " %s=\"%s\"", w.rewriteQName(a.QName), escapeAttr(a.Datum))
	}
	if len(elem.Nodes) == 0 {
		_, err := w.writer.WriteString("/>")
		return err
	}
	w.writer.WriteString(">")
	var text bool
	for _, n := range elem.Nodes {
		if n.Type() == TypeText {
			text = true
		}
		if err := w.writeNode(n, depth+1); err != nil {
			return err
		}
	}
	if !text && !w.Compact() {
		w.writeNL()
		w.writer.WriteString(strings.Repeat(w.Indent, depth))
	}
	_, err := fmt.Fprintf(w.writer, "</%s>", name)
	return err
}

func (w *Writer) writeIndent(depth int) {
	if w.Compact() {
		return
	}
	if depth > 0 {
		w.writeNL()
	}
	w.writer.WriteString(strings.Repeat(w.Indent, depth))
}

func (w *Writer) writeNL() {
	if w.Compact() {
		return
	}
	w.writer.WriteString("\n")
}

func nsAttrName(ns NS) string {
	if ns.Default() {
		return attrXmlns
	}
	return attrXmlns + ":" + ns.Prefix
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", "\"", "&quot;")
)

func escapeText(str string) string {
	return textEscaper.Replace(str)
}

func escapeAttr(str string) string {
	return attrEscaper.Replace(str)
}
