package xml

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

type NodeType int8

const (
	TypeDocument NodeType = 1 << iota
	TypeElement
	TypeComment
	TypeAttribute
	TypeInstruction
	TypeText
	TypeNamespace
)

const TypeNode = TypeDocument | TypeElement | TypeComment | TypeAttribute | TypeInstruction | TypeText | TypeNamespace

func (n NodeType) String() string {
	switch n {
	default:
		return "<>"
	case TypeDocument:
		return "document-node"
	case TypeElement:
		return "element"
	case TypeComment:
		return "comment"
	case TypeAttribute:
		return "attribute"
	case TypeInstruction:
		return "processing-instruction"
	case TypeText:
		return "text"
	case TypeNamespace:
		return "namespace-node"
	case TypeNode:
		return "node"
	}
}

var ErrElement = errors.New("element expected")

const (
	namespaceSlot = -(1 << 20)
	attributeSlot = -(1 << 19)
)

type Node interface {
	Type() NodeType
	Name() QName
	LocalName() string
	QualifiedName() string
	Parent() Node
	Position() int
	Value() string
	Identity() string

	setParent(Node)
	setPosition(int)
	path() []int
}

// Before reports whether left comes before right in document order. Nodes
// of different trees are ordered by the identity of their roots.
func Before(left, right Node) bool {
	return Compare(left, right) < 0
}

func Compare(left, right Node) int {
	var (
		r1 = Root(left)
		r2 = Root(right)
	)
	if r1 != r2 {
		return strings.Compare(fmt.Sprintf("%p", r1), fmt.Sprintf("%p", r2))
	}
	return slices.Compare(left.path(), right.path())
}

func Same(left, right Node) bool {
	if left == nil || right == nil {
		return left == right
	}
	if left.Type() != right.Type() {
		return false
	}
	if left.Type() == TypeNamespace {
		return left.Parent() == right.Parent() && left.LocalName() == right.LocalName()
	}
	return left == right
}

func Root(n Node) Node {
	for {
		p := n.Parent()
		if p == nil {
			return n
		}
		n = p
	}
}

type QName struct {
	Uri   string
	Space string
	Name  string
}

func ParseName(name string) (QName, error) {
	var (
		qn QName
		ok bool
	)
	qn.Space, qn.Name, ok = strings.Cut(name, ":")
	if !ok {
		qn.Name, qn.Space = qn.Space, ""
	}
	if ok && (qn.Space == "" || qn.Name == "") {
		return qn, fmt.Errorf("%s: invalid qualified name", name)
	}
	return qn, nil
}

func ExpandedName(name, space, uri string) QName {
	return QName{
		Name:  name,
		Space: space,
		Uri:   uri,
	}
}

func LocalName(name string) QName {
	return ExpandedName(name, "", "")
}

func QualifiedName(name, space string) QName {
	return ExpandedName(name, space, "")
}

func (q QName) Zero() bool {
	return q.Space == "" && q.Name == "" && q.Uri == ""
}

// Equal compares namespace uri and local name. The prefix is not part of the
// identity of a name.
func (q QName) Equal(other QName) bool {
	return q.Uri == other.Uri && q.Name == other.Name
}

func (q QName) LocalName() string {
	return q.Name
}

func (q QName) ExpandedName() string {
	if q.Uri == "" {
		return q.Name
	}
	return fmt.Sprintf("{%s}%s", q.Uri, q.Name)
}

func (q QName) EQName() string {
	return fmt.Sprintf("Q{%s}%s", q.Uri, q.Name)
}

func (q QName) QualifiedName() string {
	if q.Space == "" {
		return q.Name
	}
	return fmt.Sprintf("%s:%s", q.Space, q.Name)
}

func (q QName) String() string {
	return q.QualifiedName()
}

type NS struct {
	Prefix string
	Uri    string
}

func (n NS) Default() bool {
	return n.Prefix == ""
}

// Variety describes the content model of the type an element is annotated
// with.
type Variety int8

const (
	VarietyMixed Variety = iota
	VarietySimple
	VarietyElementOnly
	VarietyEmpty
)

func (v Variety) String() string {
	switch v {
	case VarietySimple:
		return "simple"
	case VarietyElementOnly:
		return "element-only"
	case VarietyEmpty:
		return "empty"
	default:
		return "mixed"
	}
}

type Annotation struct {
	Type    QName
	Complex bool
	Variety Variety
}

var (
	Untyped       = Annotation{Type: ExpandedName("untyped", "xs", SchemaNS), Complex: true, Variety: VarietyMixed}
	UntypedAtomic = Annotation{Type: ExpandedName("untypedAtomic", "xs", SchemaNS), Variety: VarietySimple}
)

func (a Annotation) Zero() bool {
	return a.Type.Zero()
}

func (a Annotation) Equal(other Annotation) bool {
	return a.Type.Equal(other.Type) && a.Complex == other.Complex && a.Variety == other.Variety
}

type Document struct {
	Nodes []Node
	Uri   string
}

func NewDocument(root Node) *Document {
	var doc Document
	if root != nil {
		doc.Append(root)
	}
	return &doc
}

func (d *Document) Append(node Node) {
	node.setParent(d)
	node.setPosition(len(d.Nodes))
	d.Nodes = append(d.Nodes, node)
}

func (d *Document) Root() Node {
	for i := range d.Nodes {
		if d.Nodes[i].Type() == TypeElement {
			return d.Nodes[i]
		}
	}
	return nil
}

func (d *Document) Type() NodeType {
	return TypeDocument
}

func (d *Document) Name() QName {
	return QName{}
}

func (d *Document) LocalName() string {
	return ""
}

func (d *Document) QualifiedName() string {
	return ""
}

func (d *Document) Parent() Node {
	return nil
}

func (d *Document) Position() int {
	return 0
}

func (d *Document) Value() string {
	return textOf(d.Nodes)
}

func (_ *Document) Identity() string {
	return "document()"
}

func (_ *Document) path() []int {
	return nil
}

func (d *Document) setParent(_ Node) {}

func (d *Document) setPosition(_ int) {}

type Element struct {
	QName
	Attrs      []*Attribute
	Namespaces []NS
	Nodes      []Node
	Annotation
	Nilled bool
	ID     bool
	IDRef  bool

	parent   Node
	position int
}

func NewElement(name QName) *Element {
	return &Element{
		QName:      name,
		Annotation: Untyped,
	}
}

func (e *Element) Append(node Node) {
	node.setParent(e)
	node.setPosition(len(e.Nodes))
	e.Nodes = append(e.Nodes, node)
}

func (e *Element) SetAttribute(attr *Attribute) {
	ix := slices.IndexFunc(e.Attrs, func(a *Attribute) bool {
		return a.QName.Equal(attr.QName)
	})
	attr.setParent(e)
	if ix >= 0 {
		attr.setPosition(ix)
		e.Attrs[ix] = attr
		return
	}
	attr.setPosition(len(e.Attrs))
	e.Attrs = append(e.Attrs, attr)
}

func (e *Element) GetAttribute(name QName) *Attribute {
	for _, a := range e.Attrs {
		if a.QName.Equal(name) {
			return a
		}
	}
	return nil
}

func (e *Element) Declare(prefix, uri string) {
	ix := slices.IndexFunc(e.Namespaces, func(n NS) bool {
		return n.Prefix == prefix
	})
	if ix >= 0 {
		e.Namespaces[ix].Uri = uri
		return
	}
	e.Namespaces = append(e.Namespaces, NS{Prefix: prefix, Uri: uri})
}

// InScope returns the in-scope namespaces of e. The xml prefix is always
// present; an undeclaration (empty uri) removes a binding of an ancestor.
func (e *Element) InScope() []NS {
	var (
		seen = make(map[string]string)
		list []NS
	)
	for curr := Node(e); curr != nil; curr = curr.Parent() {
		el, ok := curr.(*Element)
		if !ok {
			break
		}
		for _, n := range el.Namespaces {
			if _, ok := seen[n.Prefix]; ok {
				continue
			}
			seen[n.Prefix] = n.Uri
		}
	}
	seen["xml"] = XmlNS
	for p, u := range seen {
		if u == "" {
			continue
		}
		list = append(list, NS{Prefix: p, Uri: u})
	}
	slices.SortFunc(list, func(a, b NS) int {
		return strings.Compare(a.Prefix, b.Prefix)
	})
	return list
}

func (e *Element) Type() NodeType {
	return TypeElement
}

func (e *Element) Name() QName {
	return e.QName
}

func (e *Element) Parent() Node {
	return e.parent
}

func (e *Element) Position() int {
	return e.position
}

func (e *Element) Value() string {
	return textOf(e.Nodes)
}

func (e *Element) Identity() string {
	return identity("element", e.QualifiedName(), e.path())
}

func (e *Element) path() []int {
	if e.parent == nil {
		return []int{e.position}
	}
	return append(e.parent.path(), e.position)
}

func (e *Element) setParent(parent Node) {
	e.parent = parent
}

func (e *Element) setPosition(pos int) {
	e.position = pos
}

type Attribute struct {
	QName
	Datum string
	Annotation
	ID    bool
	IDRef bool

	parent   Node
	position int
}

func NewAttribute(name QName, value string) *Attribute {
	a := Attribute{
		QName:      name,
		Datum:      value,
		Annotation: UntypedAtomic,
	}
	if name.Uri == XmlNS && name.Name == "id" {
		a.ID = true
	}
	return &a
}

func (a *Attribute) Type() NodeType {
	return TypeAttribute
}

func (a *Attribute) Name() QName {
	return a.QName
}

func (a *Attribute) Parent() Node {
	return a.parent
}

func (a *Attribute) Position() int {
	return a.position
}

func (a *Attribute) Value() string {
	return a.Datum
}

func (a *Attribute) Identity() string {
	return identity("attribute", a.QualifiedName(), a.path())
}

func (a *Attribute) path() []int {
	slot := attributeSlot + a.position
	if a.parent == nil {
		return []int{slot}
	}
	return append(a.parent.path(), slot)
}

func (a *Attribute) setParent(node Node) {
	a.parent = node
}

func (a *Attribute) setPosition(pos int) {
	a.position = pos
}

// Namespace is a namespace node. Namespace nodes are not stored in the tree:
// they are materialized from the in-scope namespaces of an element.
type Namespace struct {
	NS

	parent   Node
	position int
}

func NamespaceNodes(e *Element) []Node {
	var list []Node
	for i, n := range e.InScope() {
		ns := Namespace{
			NS:       n,
			parent:   e,
			position: i,
		}
		list = append(list, &ns)
	}
	return list
}

func (n *Namespace) Type() NodeType {
	return TypeNamespace
}

func (n *Namespace) Name() QName {
	return LocalName(n.Prefix)
}

func (n *Namespace) LocalName() string {
	return n.Prefix
}

func (n *Namespace) QualifiedName() string {
	return n.Prefix
}

func (n *Namespace) Parent() Node {
	return n.parent
}

func (n *Namespace) Position() int {
	return n.position
}

func (n *Namespace) Value() string {
	return n.Uri
}

func (n *Namespace) Identity() string {
	return identity("namespace", n.Prefix, n.path())
}

func (n *Namespace) path() []int {
	slot := namespaceSlot + n.position
	if n.parent == nil {
		return []int{slot}
	}
	return append(n.parent.path(), slot)
}

func (n *Namespace) setParent(node Node) {
	n.parent = node
}

func (n *Namespace) setPosition(pos int) {
	n.position = pos
}

type Text struct {
	Content string

	parent   Node
	position int
}

func NewText(text string) *Text {
	return &Text{
		Content: text,
	}
}

// Whitespace reports whether the text node only contains XML whitespace.
func (t *Text) Whitespace() bool {
	return IsWhitespace(t.Content)
}

func (t *Text) Type() NodeType {
	return TypeText
}

func (t *Text) Name() QName {
	return QName{}
}

func (t *Text) LocalName() string {
	return ""
}

func (t *Text) QualifiedName() string {
	return ""
}

func (t *Text) Parent() Node {
	return t.parent
}

func (t *Text) Position() int {
	return t.position
}

func (t *Text) Value() string {
	return t.Content
}

func (t *Text) Identity() string {
	return identity("text", "", t.path())
}

func (t *Text) path() []int {
	if t.parent == nil {
		return []int{t.position}
	}
	return append(t.parent.path(), t.position)
}

func (t *Text) setParent(parent Node) {
	t.parent = parent
}

func (t *Text) setPosition(pos int) {
	t.position = pos
}

type Comment struct {
	Content string

	parent   Node
	position int
}

func NewComment(comment string) *Comment {
	return &Comment{
		Content: comment,
	}
}

func (c *Comment) Type() NodeType {
	return TypeComment
}

func (c *Comment) Name() QName {
	return QName{}
}

func (c *Comment) LocalName() string {
	return ""
}

func (c *Comment) QualifiedName() string {
	return ""
}

func (c *Comment) Parent() Node {
	return c.parent
}

func (c *Comment) Position() int {
	return c.position
}

func (c *Comment) Value() string {
	return c.Content
}

func (c *Comment) Identity() string {
	return identity("comment", "", c.path())
}

func (c *Comment) path() []int {
	if c.parent == nil {
		return []int{c.position}
	}
	return append(c.parent.path(), c.position)
}

func (c *Comment) setParent(parent Node) {
	c.parent = parent
}

func (c *Comment) setPosition(pos int) {
	c.position = pos
}

type Instruction struct {
	Target  string
	Content string

	parent   Node
	position int
}

func NewInstruction(target, content string) *Instruction {
	return &Instruction{
		Target:  target,
		Content: content,
	}
}

func (i *Instruction) Type() NodeType {
	return TypeInstruction
}

func (i *Instruction) Name() QName {
	return LocalName(i.Target)
}

func (i *Instruction) LocalName() string {
	return i.Target
}

func (i *Instruction) QualifiedName() string {
	return i.Target
}

func (i *Instruction) Parent() Node {
	return i.parent
}

func (i *Instruction) Position() int {
	return i.position
}

func (i *Instruction) Value() string {
	return i.Content
}

func (i *Instruction) Identity() string {
	return identity("processing-instruction", i.Target, i.path())
}

func (i *Instruction) path() []int {
	if i.parent == nil {
		return []int{i.position}
	}
	return append(i.parent.path(), i.position)
}

func (i *Instruction) setParent(parent Node) {
	i.parent = parent
}

func (i *Instruction) setPosition(pos int) {
	i.position = pos
}

func IsWhitespace(str string) bool {
	for _, c := range str {
		if c != ' ' && c != '\t' && c != '\n' && c != '\r' {
			return false
		}
	}
	return true
}

func textOf(nodes []Node) string {
	var str strings.Builder
	for _, n := range nodes {
		switch n.Type() {
		case TypeText, TypeElement:
			str.WriteString(n.Value())
		default:
		}
	}
	return str.String()
}

func identity(kind, name string, path []int) string {
	var list []string
	for _, p := range path {
		list = append(list, strconv.Itoa(p))
	}
	return fmt.Sprintf("%s(%s)[%s]", kind, name, strings.Join(list, "/"))
}
