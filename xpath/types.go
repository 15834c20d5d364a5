package xpath

import (
	"fmt"
	"slices"
	"strings"

	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
)

type Cardinality uint8

const (
	AllowsZero Cardinality = 1 << iota
	AllowsOne
	AllowsMany
)

const (
	Empty      = AllowsZero
	ExactlyOne = AllowsOne
	ZeroOrOne  = AllowsZero | AllowsOne
	ZeroOrMore = AllowsZero | AllowsOne | AllowsMany
	OneOrMore  = AllowsOne | AllowsMany
)

func (c Cardinality) Zero() bool {
	return c&AllowsZero != 0
}

func (c Cardinality) One() bool {
	return c&AllowsOne != 0
}

func (c Cardinality) Many() bool {
	return c&AllowsMany != 0
}

// Subsumes reports whether every sequence length allowed by other is also
// allowed by c.
func (c Cardinality) Subsumes(other Cardinality) bool {
	return other&^c == 0
}

func (c Cardinality) Union(other Cardinality) Cardinality {
	return c | other
}

// Multiply gives the cardinality of mapping every item of a sequence of
// cardinality c to a sequence of cardinality other.
func (c Cardinality) Multiply(other Cardinality) Cardinality {
	if c == Empty || other == Empty {
		return Empty
	}
	var res Cardinality
	if c.Zero() || other.Zero() {
		res |= AllowsZero
	}
	if c.One() && other.One() {
		res |= AllowsOne
	}
	if c.Many() || other.Many() {
		res |= AllowsMany
	}
	return res
}

// Sum gives the cardinality of the concatenation of two sequences.
func (c Cardinality) Sum(other Cardinality) Cardinality {
	var res Cardinality
	if c.Zero() && other.Zero() {
		res |= AllowsZero
	}
	if (c.One() && other.Zero()) || (c.Zero() && other.One()) {
		res |= AllowsOne
	}
	if c.Many() || other.Many() || (c.nonEmpty() && other.nonEmpty()) {
		res |= AllowsMany
	}
	return res
}

func (c Cardinality) nonEmpty() bool {
	return c&(AllowsOne|AllowsMany) != 0
}

func (c Cardinality) Allows(n int) bool {
	switch {
	case n == 0:
		return c.Zero()
	case n == 1:
		return c.One()
	default:
		return c.Many()
	}
}

func (c Cardinality) Indicator() string {
	switch c {
	case ZeroOrOne:
		return "?"
	case ZeroOrMore:
		return "*"
	case OneOrMore:
		return "+"
	default:
		return ""
	}
}

func (c Cardinality) String() string {
	switch c {
	case Empty:
		return "empty"
	case ExactlyOne:
		return "exactly-one"
	case ZeroOrOne:
		return "zero-or-one"
	case ZeroOrMore:
		return "zero-or-more"
	case OneOrMore:
		return "one-or-more"
	default:
		return fmt.Sprintf("cardinality(%d)", c)
	}
}

func cardinalityOf(n int) Cardinality {
	switch n {
	case 0:
		return Empty
	case 1:
		return ExactlyOne
	default:
		return OneOrMore
	}
}

type ItemType interface {
	String() string
	Matches(xdm.Item) bool
	UType() xdm.UType
	Primitive() ItemType
}

type AnyItem struct{}

func (AnyItem) String() string          { return "item()" }
func (AnyItem) Matches(_ xdm.Item) bool { return true }
func (AnyItem) UType() xdm.UType        { return xdm.UItem }
func (a AnyItem) Primitive() ItemType   { return a }

type AnyNode struct{}

func (AnyNode) String() string { return "node()" }

func (AnyNode) Matches(item xdm.Item) bool {
	_, ok := xdm.AsNode(item)
	return ok
}

func (AnyNode) UType() xdm.UType      { return xdm.UNode }
func (a AnyNode) Primitive() ItemType { return a }

// ErrorType is the type of expressions that never return an item.
type ErrorType struct{}

func (ErrorType) String() string          { return "xs:error" }
func (ErrorType) Matches(_ xdm.Item) bool { return false }
func (ErrorType) UType() xdm.UType        { return xdm.UVoid }
func (e ErrorType) Primitive() ItemType   { return e }

type NodeKindTest struct {
	Kind    xml.NodeType
	Content ItemType
}

func (n NodeKindTest) String() string {
	if n.Content != nil {
		return fmt.Sprintf("%s(%s)", n.Kind, n.Content)
	}
	return n.Kind.String() + "()"
}

func (n NodeKindTest) Matches(item xdm.Item) bool {
	node, ok := xdm.AsNode(item)
	if !ok || node.Type() != n.Kind {
		return false
	}
	if n.Content == nil {
		return true
	}
	doc, ok := node.(*xml.Document)
	if !ok {
		return false
	}
	var root xml.Node
	for _, c := range doc.Nodes {
		if c.Type() != xml.TypeElement {
			continue
		}
		if root != nil {
			return false
		}
		root = c
	}
	return root != nil && n.Content.Matches(xdm.NewNode(root))
}

func (n NodeKindTest) UType() xdm.UType {
	return xdm.UTypeOfNode(n.Kind)
}

func (n NodeKindTest) Primitive() ItemType {
	return NodeKindTest{Kind: n.Kind}
}

type NameTest struct {
	Kind xml.NodeType
	Name xml.QName
}

func (n NameTest) String() string {
	return fmt.Sprintf("%s(%s)", n.Kind, n.Name.QualifiedName())
}

func (n NameTest) Matches(item xdm.Item) bool {
	node, ok := xdm.AsNode(item)
	if !ok || node.Type() != n.Kind {
		return false
	}
	if n.Kind == xml.TypeInstruction {
		return node.LocalName() == n.Name.Name
	}
	return node.Name().Equal(n.Name)
}

func (n NameTest) UType() xdm.UType {
	return xdm.UTypeOfNode(n.Kind)
}

func (n NameTest) Primitive() ItemType {
	return NodeKindTest{Kind: n.Kind}
}

// NamespaceTest matches nodes of a kind in a namespace, whatever their local
// name (prefix:*).
type NamespaceTest struct {
	Kind xml.NodeType
	Uri  string
}

func (n NamespaceTest) String() string {
	return fmt.Sprintf("%s(Q{%s}*)", n.Kind, n.Uri)
}

func (n NamespaceTest) Matches(item xdm.Item) bool {
	node, ok := xdm.AsNode(item)
	return ok && node.Type() == n.Kind && node.Name().Uri == n.Uri
}

func (n NamespaceTest) UType() xdm.UType {
	return xdm.UTypeOfNode(n.Kind)
}

func (n NamespaceTest) Primitive() ItemType {
	return NodeKindTest{Kind: n.Kind}
}

// LocalNameTest matches nodes of a kind by local name in any namespace
// (*:local).
type LocalNameTest struct {
	Kind  xml.NodeType
	Local string
}

func (n LocalNameTest) String() string {
	return fmt.Sprintf("%s(*:%s)", n.Kind, n.Local)
}

func (n LocalNameTest) Matches(item xdm.Item) bool {
	node, ok := xdm.AsNode(item)
	return ok && node.Type() == n.Kind && node.LocalName() == n.Local
}

func (n LocalNameTest) UType() xdm.UType {
	return xdm.UTypeOfNode(n.Kind)
}

func (n LocalNameTest) Primitive() ItemType {
	return NodeKindTest{Kind: n.Kind}
}

var (
	anyType       = xml.ExpandedName("anyType", "xs", xml.SchemaNS)
	untypedType   = xml.ExpandedName("untyped", "xs", xml.SchemaNS)
	anySimpleType = xml.ExpandedName("anySimpleType", "xs", xml.SchemaNS)
)

// ContentTypeTest matches elements or attributes by their type annotation.
// Schema is set for tests written with schema-element or schema-attribute.
type ContentTypeTest struct {
	Kind       xml.NodeType
	Annotation xml.QName
	Nillable   bool
	Schema     bool
}

func (c ContentTypeTest) String() string {
	if c.Schema {
		return fmt.Sprintf("schema-%s(*)", c.Kind)
	}
	var suffix string
	if c.Nillable {
		suffix = "?"
	}
	return fmt.Sprintf("%s(*, %s%s)", c.Kind, c.Annotation.QualifiedName(), suffix)
}

func (c ContentTypeTest) Matches(item xdm.Item) bool {
	node, ok := xdm.AsNode(item)
	if !ok || node.Type() != c.Kind {
		return false
	}
	var ann xml.Annotation
	switch n := node.(type) {
	case *xml.Element:
		if n.Nilled && !c.Nillable {
			return false
		}
		ann = n.Annotation
	case *xml.Attribute:
		ann = n.Annotation
	default:
		return false
	}
	return annotationMatches(ann, c.Annotation)
}

func (c ContentTypeTest) UType() xdm.UType {
	return xdm.UTypeOfNode(c.Kind)
}

func (c ContentTypeTest) Primitive() ItemType {
	return NodeKindTest{Kind: c.Kind}
}

func annotationMatches(ann xml.Annotation, want xml.QName) bool {
	switch {
	case want.Equal(anyType):
		return true
	case want.Equal(untypedType):
		return ann.Zero() || ann.Type.Equal(untypedType)
	case want.Equal(anySimpleType):
		return !ann.Complex
	case ann.Type.Equal(want):
		return true
	}
	have, ok1 := xdm.LookupType(ann.Type)
	other, ok2 := xdm.LookupType(want)
	return ok1 && ok2 && have.DerivesFrom(other)
}

// IntersectionTest matches items matched by all of its components. The
// components are kept flat and sorted so that the way tests are combined
// does not change the resulting type.
type IntersectionTest struct {
	Tests []ItemType
}

func Intersect(a, b ItemType) ItemType {
	var list []ItemType
	for _, t := range []ItemType{a, b} {
		if i, ok := t.(IntersectionTest); ok {
			list = append(list, i.Tests...)
		} else if t != nil {
			list = append(list, t)
		}
	}
	slices.SortFunc(list, func(a, b ItemType) int {
		return strings.Compare(a.String(), b.String())
	})
	list = slices.CompactFunc(list, func(a, b ItemType) bool {
		return a.String() == b.String()
	})
	if len(list) == 1 {
		return list[0]
	}
	return IntersectionTest{
		Tests: list,
	}
}

func (i IntersectionTest) String() string {
	var list []string
	for _, t := range i.Tests {
		list = append(list, t.String())
	}
	return "(" + strings.Join(list, " intersect ") + ")"
}

func (i IntersectionTest) Matches(item xdm.Item) bool {
	for _, t := range i.Tests {
		if !t.Matches(item) {
			return false
		}
	}
	return true
}

func (i IntersectionTest) UType() xdm.UType {
	u := xdm.UItem
	for _, t := range i.Tests {
		u &= t.UType()
	}
	return u
}

func (i IntersectionTest) Primitive() ItemType {
	if len(i.Tests) == 0 {
		return AnyItem{}
	}
	return i.Tests[0].Primitive()
}

type AtomicItemType struct {
	*xdm.AtomicType
}

func AtomicOf(t *xdm.AtomicType) AtomicItemType {
	return AtomicItemType{
		AtomicType: t,
	}
}

func (a AtomicItemType) Matches(item xdm.Item) bool {
	v, ok := xdm.AsAtomic(item)
	return ok && v.Type.DerivesFrom(a.AtomicType)
}

func (a AtomicItemType) UType() xdm.UType {
	return xdm.UAtomic
}

func (a AtomicItemType) Primitive() ItemType {
	if a.AtomicType == xdm.AnyAtomicType {
		return a
	}
	return AtomicOf(a.AtomicType.Primitive())
}

var (
	anyAtomic     = AtomicOf(xdm.AnyAtomicType)
	untypedAtomic = AtomicOf(xdm.UntypedAtomicType)
	stringType    = AtomicOf(xdm.StringType)
	booleanType   = AtomicOf(xdm.BooleanType)
	integerType   = AtomicOf(xdm.IntegerType)
	decimalType   = AtomicOf(xdm.DecimalType)
	doubleType    = AtomicOf(xdm.DoubleType)
)

// FunctionTest matches function items. Any is set for function(*).
type FunctionTest struct {
	Any    bool
	Args   []SequenceType
	Result SequenceType
}

func (f FunctionTest) String() string {
	if f.Any {
		return "function(*)"
	}
	var list []string
	for _, a := range f.Args {
		list = append(list, a.String())
	}
	return fmt.Sprintf("function(%s) as %s", strings.Join(list, ", "), f.Result)
}

func (f FunctionTest) Matches(item xdm.Item) bool {
	fn, ok := xdm.AsFunction(item)
	return ok && (f.Any || fn.Arity() == len(f.Args))
}

func (f FunctionTest) UType() xdm.UType {
	return xdm.UFunction
}

func (f FunctionTest) Primitive() ItemType {
	return FunctionTest{Any: true}
}

type SequenceType struct {
	Item ItemType
	Card Cardinality
}

func NewSequenceType(item ItemType, card Cardinality) SequenceType {
	return SequenceType{
		Item: item,
		Card: card,
	}
}

var (
	anySequence   = NewSequenceType(AnyItem{}, ZeroOrMore)
	emptySequence = NewSequenceType(ErrorType{}, Empty)
)

func (s SequenceType) Zero() bool {
	return s.Item == nil
}

func (s SequenceType) String() string {
	if s.Zero() {
		return anySequence.String()
	}
	if s.Card == Empty {
		return "empty-sequence()"
	}
	str := s.Item.String()
	if i := s.Card.Indicator(); i != "" {
		if _, ok := s.Item.(FunctionTest); ok {
			str = "(" + str + ")"
		}
		str += i
	}
	return str
}

func (s SequenceType) Matches(seq xdm.Sequence) bool {
	if !s.Card.Allows(len(seq)) {
		return false
	}
	for _, i := range seq {
		if !s.Item.Matches(i) {
			return false
		}
	}
	return true
}

type Relation int8

const (
	Same Relation = iota
	Subsumes
	SubsumedBy
	Overlaps
	Disjoint
)

func (r Relation) String() string {
	switch r {
	case Same:
		return "same"
	case Subsumes:
		return "subsumes"
	case SubsumedBy:
		return "subsumed-by"
	case Overlaps:
		return "overlaps"
	default:
		return "disjoint"
	}
}

// TypeHierarchy answers subtype and comparability questions about item
// types.
type TypeHierarchy struct {
	schemaAware bool
}

func NewTypeHierarchy(schemaAware bool) *TypeHierarchy {
	return &TypeHierarchy{
		schemaAware: schemaAware,
	}
}

func (h *TypeHierarchy) Relationship(a, b ItemType) Relation {
	var (
		s1 = subsumes(a, b)
		s2 = subsumes(b, a)
	)
	switch {
	case s1 && s2:
		return Same
	case s1:
		return Subsumes
	case s2:
		return SubsumedBy
	case disjoint(a, b):
		return Disjoint
	default:
		return Overlaps
	}
}

func (h *TypeHierarchy) IsSubType(a, b ItemType) bool {
	return subsumes(b, a)
}

func (h *TypeHierarchy) Disjoint(a, b ItemType) bool {
	return h.Relationship(a, b) == Disjoint
}

// GuaranteedComparable reports whether values of both atomic types can
// always be compared for equality.
func (h *TypeHierarchy) GuaranteedComparable(a, b ItemType) bool {
	t1, ok1 := a.(AtomicItemType)
	t2, ok2 := b.(AtomicItemType)
	if !ok1 || !ok2 || t1.AtomicType == xdm.AnyAtomicType || t2.AtomicType == xdm.AnyAtomicType {
		return false
	}
	return comparableTypes(t1.AtomicType, t2.AtomicType)
}

// PossiblyComparable reports whether values of both types might be
// comparable at run time.
func (h *TypeHierarchy) PossiblyComparable(a, b ItemType) bool {
	t1, ok1 := a.(AtomicItemType)
	t2, ok2 := b.(AtomicItemType)
	if !ok1 || !ok2 || t1.AtomicType == xdm.AnyAtomicType || t2.AtomicType == xdm.AnyAtomicType {
		return true
	}
	return comparableTypes(t1.AtomicType, t2.AtomicType)
}

func comparableTypes(a, b *xdm.AtomicType) bool {
	switch {
	case a.Numeric() && b.Numeric():
		return true
	case a.Stringlike() && b.Stringlike():
		return true
	default:
		return a.Primitive() == b.Primitive()
	}
}

// AtomizedType is the static type of the atomized value of items of type t.
func (h *TypeHierarchy) AtomizedType(t ItemType) ItemType {
	switch t := t.(type) {
	case AtomicItemType, ErrorType:
		return t
	case FunctionTest:
		return ErrorType{}
	case ContentTypeTest:
		return h.annotatedType(t.Annotation)
	case IntersectionTest:
		for _, c := range t.Tests {
			if ct, ok := c.(ContentTypeTest); ok {
				return h.annotatedType(ct.Annotation)
			}
		}
	default:
	}
	u := t.UType()
	switch {
	case u == xdm.UVoid:
		return ErrorType{}
	case u.SubsumedBy(xdm.UComment | xdm.UInstruction | xdm.UNamespace):
		return stringType
	case u.SubsumedBy(xdm.UDocument|xdm.UElement|xdm.UAttribute|xdm.UText) && !h.schemaAware:
		return untypedAtomic
	case u.SubsumedBy(xdm.UText):
		return untypedAtomic
	default:
		return anyAtomic
	}
}

func (h *TypeHierarchy) annotatedType(name xml.QName) ItemType {
	if name.Equal(untypedType) {
		return untypedAtomic
	}
	if at, ok := xdm.LookupType(name); ok {
		return AtomicOf(at)
	}
	return anyAtomic
}

// subsumes reports whether every item matched by b is matched by a.
func subsumes(a, b ItemType) bool {
	if _, ok := b.(ErrorType); ok {
		return true
	}
	if a.String() == b.String() {
		return true
	}
	if i, ok := b.(IntersectionTest); ok {
		for _, t := range i.Tests {
			if subsumes(a, t) {
				return true
			}
		}
	}
	switch a := a.(type) {
	case AnyItem:
		return true
	case AnyNode:
		u := b.UType()
		return u != xdm.UVoid && u.SubsumedBy(xdm.UNode)
	case IntersectionTest:
		for _, t := range a.Tests {
			if !subsumes(t, b) {
				return false
			}
		}
		return true
	case AtomicItemType:
		other, ok := b.(AtomicItemType)
		return ok && other.DerivesFrom(a.AtomicType)
	case FunctionTest:
		_, ok := b.(FunctionTest)
		return ok && a.Any
	case NodeKindTest:
		if a.Content == nil {
			u := b.UType()
			return u != xdm.UVoid && u.SubsumedBy(a.UType())
		}
		other, ok := b.(NodeKindTest)
		return ok && other.Kind == a.Kind && other.Content != nil && subsumes(a.Content, other.Content)
	case NameTest:
		other, ok := b.(NameTest)
		return ok && other.Kind == a.Kind && other.Name.Equal(a.Name)
	case NamespaceTest:
		switch other := b.(type) {
		case NameTest:
			return other.Kind == a.Kind && other.Name.Uri == a.Uri
		case NamespaceTest:
			return other.Kind == a.Kind && other.Uri == a.Uri
		default:
			return false
		}
	case LocalNameTest:
		switch other := b.(type) {
		case NameTest:
			return other.Kind == a.Kind && other.Name.Name == a.Local
		case LocalNameTest:
			return other.Kind == a.Kind && other.Local == a.Local
		default:
			return false
		}
	case ContentTypeTest:
		other, ok := b.(ContentTypeTest)
		if !ok || other.Kind != a.Kind || (other.Nillable && !a.Nillable) {
			return false
		}
		return a.Annotation.Equal(anyType) || a.Annotation.Equal(other.Annotation)
	default:
		return false
	}
}

func disjoint(a, b ItemType) bool {
	if a.UType()&b.UType() == 0 {
		return true
	}
	if i, ok := a.(IntersectionTest); ok {
		return slices.ContainsFunc(i.Tests, func(t ItemType) bool {
			return disjoint(t, b)
		})
	}
	if i, ok := b.(IntersectionTest); ok {
		return slices.ContainsFunc(i.Tests, func(t ItemType) bool {
			return disjoint(a, t)
		})
	}
	switch a := a.(type) {
	case AtomicItemType:
		other, ok := b.(AtomicItemType)
		return ok && !other.DerivesFrom(a.AtomicType) && !a.DerivesFrom(other.AtomicType)
	case FunctionTest:
		other, ok := b.(FunctionTest)
		return ok && !a.Any && !other.Any && len(a.Args) != len(other.Args)
	case NameTest:
		switch other := b.(type) {
		case NameTest:
			return !other.Name.Equal(a.Name)
		case NamespaceTest:
			return other.Uri != a.Name.Uri
		case LocalNameTest:
			return other.Local != a.Name.Name
		default:
			return false
		}
	case NamespaceTest:
		switch other := b.(type) {
		case NameTest:
			return other.Name.Uri != a.Uri
		case NamespaceTest:
			return other.Uri != a.Uri
		default:
			return false
		}
	case LocalNameTest:
		switch other := b.(type) {
		case NameTest:
			return other.Name.Name != a.Local
		case LocalNameTest:
			return other.Local != a.Local
		default:
			return false
		}
	default:
		return false
	}
}

// commonType returns the most specific type known to match the items of
// both a and b.
func commonType(a, b ItemType) ItemType {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case subsumes(a, b):
		return a
	case subsumes(b, a):
		return b
	}
	t1, ok1 := a.(AtomicItemType)
	t2, ok2 := b.(AtomicItemType)
	if ok1 && ok2 {
		for curr := t1.AtomicType; curr != nil; curr = curr.Parent() {
			if t2.DerivesFrom(curr) {
				return AtomicOf(curr)
			}
		}
		return anyAtomic
	}
	if a.UType().SubsumedBy(xdm.UNode) && b.UType().SubsumedBy(xdm.UNode) {
		return AnyNode{}
	}
	return AnyItem{}
}
