package xml

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/midbel/xpc/environ"
)

const MaxDepth = 512

const (
	XmlNS    = "http://www.w3.org/XML/1998/namespace"
	XmlnsNS  = "http://www.w3.org/2000/xmlns/"
	SchemaNS = "http://www.w3.org/2001/XMLSchema"
)

const (
	attrXmlns = "xmlns"
	prefixXml = "xml"
)

type ParseError struct {
	Position
	Element string
	Message string
}

func (p ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s: %s", p.Line, p.Column, p.Element, p.Message)
}

type Parser struct {
	scan *Scanner
	curr Token
	peek Token

	depth int

	// StripSpace drops text nodes made only of whitespace.
	StripSpace bool
	StrictNS   bool
	MaxDepth   int

	namespaces environ.Environ[string]
}

func NewParser(r io.Reader) *Parser {
	p := Parser{
		scan:       Scan(r),
		MaxDepth:   MaxDepth,
		namespaces: environ.Empty[string](),
	}
	p.namespaces.Define(prefixXml, XmlNS)
	p.next()
	p.next()
	return &p
}

func ParseFile(file string) (*Document, error) {
	r, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	doc, err := ParseReader(r)
	if err == nil {
		doc.Uri = file
	}
	return doc, err
}

func ParseString(str string) (*Document, error) {
	return ParseReader(strings.NewReader(str))
}

func ParseReader(r io.Reader) (*Document, error) {
	return NewParser(r).Parse()
}

func (p *Parser) Parse() (*Document, error) {
	doc := NewDocument(nil)
	if p.is(ProcInstTag) && p.curr.Literal == prefixXml {
		p.next()
	}
	for !p.done() {
		node, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if node == nil {
			continue
		}
		switch node.Type() {
		case TypeText:
			continue
		case TypeElement:
			if doc.Root() != nil {
				return nil, p.createError("document", "only one root element allowed")
			}
		default:
		}
		doc.Append(node)
	}
	if doc.Root() == nil {
		return nil, p.createError("document", "missing root element")
	}
	return doc, nil
}

func (p *Parser) parseNode() (Node, error) {
	p.depth++
	defer func() {
		p.depth--
	}()
	if p.depth >= p.MaxDepth {
		return nil, p.createError("document", "maximum depth reached")
	}
	switch p.curr.Type {
	case OpenTag:
		return p.parseElement()
	case CommentTag:
		defer p.next()
		return NewComment(p.curr.Literal), nil
	case ProcInstTag:
		defer p.next()
		return NewInstruction(p.curr.Literal, strings.TrimSpace(p.curr.Extra)), nil
	case Cdata:
		defer p.next()
		return NewText(p.curr.Literal), nil
	case Literal:
		defer p.next()
		if p.curr.Literal == "" || (p.StripSpace && IsWhitespace(p.curr.Literal)) {
			return nil, nil
		}
		return NewText(p.curr.Literal), nil
	default:
		return nil, p.createError("document", fmt.Sprintf("unexpected token %s", p.curr))
	}
}

type rawAttr struct {
	QName
	Value string
}

func (p *Parser) parseElement() (Node, error) {
	p.namespaces = environ.Enclosed(p.namespaces)
	defer func() {
		if u, ok := p.namespaces.(interface{ Unwrap() environ.Environ[string] }); ok {
			p.namespaces = u.Unwrap()
		}
	}()
	p.next()
	name, err := p.parseName("element")
	if err != nil {
		return nil, err
	}
	elem := NewElement(name)

	var attrs []rawAttr
	for !p.done() && !p.is(EndTag) && !p.is(EmptyElemTag) {
		a, err := p.parseAttr()
		if err != nil {
			return nil, err
		}
		switch {
		case a.Space == "" && a.QName.Name == attrXmlns:
			elem.Declare("", a.Value)
			p.namespaces.Define("", a.Value)
		case a.Space == attrXmlns:
			elem.Declare(a.QName.Name, a.Value)
			p.namespaces.Define(a.QName.Name, a.Value)
		default:
			attrs = append(attrs, a)
		}
	}
	if elem.QName.Uri, err = p.resolve(elem.QName, true); err != nil {
		return nil, err
	}
	for _, a := range attrs {
		if a.Uri, err = p.resolve(a.QName, false); err != nil {
			return nil, err
		}
		if elem.GetAttribute(a.QName) != nil {
			return nil, p.createError("attribute", fmt.Sprintf("%s: attribute is already defined", a.QualifiedName()))
		}
		elem.SetAttribute(NewAttribute(a.QName, a.Value))
	}

	switch p.curr.Type {
	case EmptyElemTag:
		p.next()
		return elem, nil
	case EndTag:
		p.next()
	default:
		return nil, p.createError("element", "end of element expected")
	}
	for !p.done() && !p.is(CloseTag) {
		child, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		if child != nil {
			elem.Append(child)
		}
	}
	if !p.is(CloseTag) {
		return nil, p.createError("element", "closing element is missing")
	}
	p.next()
	end, err := p.parseName("element")
	if err != nil {
		return nil, err
	}
	if end.QualifiedName() != elem.QualifiedName() {
		return nil, p.createError("element", fmt.Sprintf("%s: name mismatched with opening element %s", end, elem.QualifiedName()))
	}
	if !p.is(EndTag) {
		return nil, p.createError("element", "end of element expected")
	}
	p.next()
	return elem, nil
}

func (p *Parser) parseName(what string) (QName, error) {
	var qn QName
	if p.is(NamespaceDecl) {
		qn.Space = p.curr.Literal
		p.next()
	}
	if !p.is(Name) {
		return qn, p.createError(what, "name is missing")
	}
	qn.Name = p.curr.Literal
	p.next()
	return qn, nil
}

func (p *Parser) parseAttr() (rawAttr, error) {
	var a rawAttr
	if p.is(NamespaceDecl) {
		a.Space = p.curr.Literal
		p.next()
	}
	if !p.is(Attr) {
		return a, p.createError("attribute", "name is expected")
	}
	a.QName.Name = p.curr.Literal
	p.next()
	if !p.is(Literal) {
		return a, p.createError("attribute", "value is missing")
	}
	a.Value = p.curr.Literal
	p.next()
	return a, nil
}

func (p *Parser) resolve(qn QName, useDefault bool) (string, error) {
	if qn.Space == "" && !useDefault {
		return "", nil
	}
	uri, err := p.namespaces.Resolve(qn.Space)
	if err != nil {
		if p.StrictNS && qn.Space != "" {
			return "", p.createError("namespace", fmt.Sprintf("%s: prefix is not declared", qn.Space))
		}
		return "", nil
	}
	return uri, nil
}

func (p *Parser) createError(elem, msg string) error {
	return ParseError{
		Position: p.curr.Position,
		Element:  elem,
		Message:  msg,
	}
}

func (p *Parser) is(kind rune) bool {
	return p.curr.Type == kind
}

func (p *Parser) done() bool {
	return p.is(EOF)
}

func (p *Parser) next() {
	p.curr = p.peek
	p.peek = p.scan.Scan()
}
