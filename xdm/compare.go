package xdm

import (
	"cmp"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/midbel/xpc/xml"
)

const (
	CodepointCollation = "http://www.w3.org/2005/xpath-functions/collation/codepoint"
	HtmlAsciiCollation = "http://www.w3.org/2005/xpath-functions/collation/html-ascii-case-insensitive"
	UcaCollation       = "http://www.w3.org/2013/collation/UCA"
)

// Unordered is returned by Compare when one operand is NaN.
const Unordered = 2

// Comparer compares atomic values. Values of incompatible types produce an
// error wrapping ErrNotComparable.
type Comparer interface {
	Collation() string
	Equal(Atomic, Atomic) (bool, error)
	Compare(Atomic, Atomic) (int, error)
}

type stringCompareFunc func(string, string) int

type comparer struct {
	uri string

	mu      sync.Mutex
	compare stringCompareFunc
}

func CodepointComparer() Comparer {
	return &comparer{
		uri:     CodepointCollation,
		compare: strings.Compare,
	}
}

// NewComparer builds the comparer for a collation URI. UCA collations
// accept the lang, strength and numeric parameters.
func NewComparer(uri string) (Comparer, error) {
	switch {
	case uri == "" || uri == CodepointCollation:
		return CodepointComparer(), nil
	case uri == HtmlAsciiCollation:
		c := comparer{
			uri:     uri,
			compare: compareAsciiFold,
		}
		return &c, nil
	case strings.HasPrefix(uri, UcaCollation):
		return ucaComparer(uri)
	default:
		return nil, Errorf(CodeCollation, "%s: unsupported collation", uri)
	}
}

func ucaComparer(uri string) (Comparer, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, Errorf(CodeCollation, "%s: invalid collation uri", uri).Wrap(err)
	}
	var (
		query = u.Query()
		tag   = language.Und
		opts  []collate.Option
	)
	if lang := query.Get("lang"); lang != "" {
		if tag, err = language.Parse(lang); err != nil {
			return nil, Errorf(CodeCollation, "%s: invalid language", lang).Wrap(err)
		}
	}
	switch query.Get("strength") {
	case "primary", "1":
		opts = append(opts, collate.Loose)
	case "secondary", "2":
		opts = append(opts, collate.IgnoreCase)
	default:
	}
	if query.Get("numeric") == "yes" {
		opts = append(opts, collate.Numeric)
	}
	coll := collate.New(tag, opts...)
	c := comparer{
		uri:     uri,
		compare: coll.CompareString,
	}
	return &c, nil
}

func compareAsciiFold(a, b string) int {
	fold := func(r rune) rune {
		if r >= 'A' && r <= 'Z' {
			return r + 'a' - 'A'
		}
		return r
	}
	return strings.Compare(strings.Map(fold, a), strings.Map(fold, b))
}

func (c *comparer) Collation() string {
	return c.uri
}

func (c *comparer) Equal(a, b Atomic) (bool, error) {
	if a.Type.Primitive() == QNameType || b.Type.Primitive() == QNameType {
		q1, ok1 := a.Value.(xml.QName)
		q2, ok2 := b.Value.(xml.QName)
		if !ok1 || !ok2 {
			return false, ComparisonError(a, b)
		}
		return q1.Equal(q2), nil
	}
	res, err := c.Compare(a, b)
	return err == nil && res == 0, err
}

func (c *comparer) Compare(a, b Atomic) (int, error) {
	switch {
	case a.Type.Stringlike() && b.Type.Stringlike():
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.compare(a.StringValue(), b.StringValue()), nil
	case a.Type.Numeric() && b.Type.Numeric():
		return compareNumbers(a, b), nil
	case a.Type == BooleanType && b.Type == BooleanType:
		v1, _ := a.Value.(bool)
		v2, _ := b.Value.(bool)
		return compareBool(v1, v2), nil
	case a.Type.Primitive() == b.Type.Primitive():
		t1, ok1 := a.Value.(time.Time)
		t2, ok2 := b.Value.(time.Time)
		if ok1 && ok2 {
			return t1.Compare(t2), nil
		}
	default:
	}
	return 0, ComparisonError(a, b)
}

func compareNumbers(a, b Atomic) int {
	i1, ok1 := a.Value.(int64)
	i2, ok2 := b.Value.(int64)
	if ok1 && ok2 {
		return cmp.Compare(i1, i2)
	}
	f1, _ := a.Float()
	f2, _ := b.Float()
	if f1 != f1 || f2 != f2 {
		return Unordered
	}
	return cmp.Compare(f1, f2)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
