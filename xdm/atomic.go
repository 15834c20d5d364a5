package xdm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/midbel/xpc/xml"
)

// AtomicType is a node of the atomic type hierarchy. Every type but
// xs:anyAtomicType has a parent; primitive types are the direct children
// of xs:anyAtomicType.
type AtomicType struct {
	Name   xml.QName
	parent *AtomicType
	sub    []*AtomicType

	parse func(string) (any, error)
}

func (t *AtomicType) String() string {
	return t.Name.QualifiedName()
}

func (t *AtomicType) Parent() *AtomicType {
	return t.parent
}

func (t *AtomicType) append(sub *AtomicType) {
	sub.parent = t
	t.sub = append(t.sub, sub)
}

// DerivesFrom reports whether t is other or one of its descendants.
func (t *AtomicType) DerivesFrom(other *AtomicType) bool {
	for curr := t; curr != nil; curr = curr.parent {
		if curr == other {
			return true
		}
	}
	return false
}

func (t *AtomicType) Primitive() *AtomicType {
	curr := t
	for curr.parent != nil && curr.parent != AnyAtomicType {
		curr = curr.parent
	}
	return curr
}

func (t *AtomicType) Numeric() bool {
	return t.DerivesFrom(DecimalType) || t == DoubleType || t == FloatType
}

func (t *AtomicType) Stringlike() bool {
	return t == StringType || t == UntypedAtomicType || t == AnyURIType
}

func schemaName(local string) xml.QName {
	return xml.ExpandedName(local, "xs", xml.SchemaNS)
}

var (
	AnyAtomicType     = &AtomicType{Name: schemaName("anyAtomicType")}
	UntypedAtomicType = &AtomicType{Name: schemaName("untypedAtomic"), parse: parseString}
	StringType        = &AtomicType{Name: schemaName("string"), parse: parseString}
	BooleanType       = &AtomicType{Name: schemaName("boolean"), parse: parseBoolean}
	DecimalType       = &AtomicType{Name: schemaName("decimal"), parse: parseDecimal}
	IntegerType       = &AtomicType{Name: schemaName("integer"), parse: parseInteger}
	DoubleType        = &AtomicType{Name: schemaName("double"), parse: parseDouble}
	FloatType         = &AtomicType{Name: schemaName("float"), parse: parseDouble}
	DateTimeType      = &AtomicType{Name: schemaName("dateTime"), parse: parseDateTime}
	DateType          = &AtomicType{Name: schemaName("date"), parse: parseDate}
	QNameType         = &AtomicType{Name: schemaName("QName"), parse: parseQName}
	AnyURIType        = &AtomicType{Name: schemaName("anyURI"), parse: parseString}
)

var atomicTypes = map[string]*AtomicType{}

func init() {
	for _, t := range []*AtomicType{
		UntypedAtomicType,
		StringType,
		BooleanType,
		DecimalType,
		DoubleType,
		FloatType,
		DateTimeType,
		DateType,
		QNameType,
		AnyURIType,
	} {
		AnyAtomicType.append(t)
	}
	DecimalType.append(IntegerType)

	var walk func(*AtomicType)
	walk = func(t *AtomicType) {
		atomicTypes[t.Name.Name] = t
		for _, s := range t.sub {
			walk(s)
		}
	}
	walk(AnyAtomicType)
}

// LookupType finds an atomic type by name. Only names in the schema
// namespace are known.
func LookupType(name xml.QName) (*AtomicType, bool) {
	if name.Uri != xml.SchemaNS {
		return nil, false
	}
	t, ok := atomicTypes[name.Name]
	return t, ok
}

func AtomicTypes() []*AtomicType {
	list := make([]*AtomicType, 0, len(atomicTypes))
	for _, t := range atomicTypes {
		list = append(list, t)
	}
	return list
}

// Atomic is an atomic value. Value holds string, bool, int64, float64,
// time.Time or xml.QName depending on the primitive type.
type Atomic struct {
	Type  *AtomicType
	Value any
}

func String(str string) Atomic {
	return Atomic{Type: StringType, Value: str}
}

func Untyped(str string) Atomic {
	return Atomic{Type: UntypedAtomicType, Value: str}
}

func Boolean(b bool) Atomic {
	return Atomic{Type: BooleanType, Value: b}
}

func Integer(i int64) Atomic {
	return Atomic{Type: IntegerType, Value: i}
}

func Decimal(f float64) Atomic {
	return Atomic{Type: DecimalType, Value: f}
}

func Double(f float64) Atomic {
	return Atomic{Type: DoubleType, Value: f}
}

func NaN() Atomic {
	return Double(math.NaN())
}

func QName(qn xml.QName) Atomic {
	return Atomic{Type: QNameType, Value: qn}
}

func DateTime(t time.Time) Atomic {
	return Atomic{Type: DateTimeType, Value: t}
}

func (a Atomic) UType() UType {
	return UAtomic
}

func (a Atomic) IsNaN() bool {
	f, ok := a.Value.(float64)
	return ok && math.IsNaN(f)
}

func (a Atomic) Float() (float64, bool) {
	switch v := a.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func (a Atomic) StringValue() string {
	switch v := a.Value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		if a.Type == DoubleType || a.Type == FloatType {
			return formatDouble(v)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		if a.Type == DateType {
			return v.Format("2006-01-02")
		}
		return v.Format(time.RFC3339)
	case xml.QName:
		return v.QualifiedName()
	default:
		return fmt.Sprint(v)
	}
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "INF"
	case math.IsInf(f, -1):
		return "-INF"
	case f == 0:
		if math.Signbit(f) {
			return "-0"
		}
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e6 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	str := strconv.FormatFloat(f, 'E', -1, 64)
	mant, exp, _ := strings.Cut(str, "E")
	if !strings.Contains(mant, ".") {
		mant += ".0"
	}
	var sign string
	if strings.HasPrefix(exp, "-") {
		sign = "-"
	}
	exp = strings.TrimLeft(exp, "+-0")
	return mant + "E" + sign + exp
}

func (a Atomic) String() string {
	return a.StringValue()
}

// Cast converts a to the target type, following the casting rules of the
// primitive types involved.
func Cast(a Atomic, to *AtomicType) (Atomic, error) {
	if a.Type == to {
		return a, nil
	}
	if to == AnyAtomicType {
		return Atomic{}, Errorf(CodeType, "cannot cast to abstract type %s", to)
	}
	var (
		res = Atomic{Type: to}
		err error
	)
	switch v := a.Value.(type) {
	case string:
		res.Value, err = to.parse(strings.TrimSpace(v))
		if to.Stringlike() {
			res.Value = v
		}
	case bool:
		res.Value, err = castBoolean(v, to)
	case int64:
		res.Value, err = castNumber(float64(v), to)
		if to == StringType || to == UntypedAtomicType {
			res.Value = strconv.FormatInt(v, 10)
		}
	case float64:
		if to.Stringlike() {
			res.Value = a.StringValue()
			break
		}
		res.Value, err = castNumber(v, to)
	case time.Time:
		switch {
		case to.Stringlike():
			res.Value = a.StringValue()
		case to == DateTimeType || to == DateType:
			res.Value = v
		default:
			err = ErrCast
		}
	case xml.QName:
		if !to.Stringlike() {
			err = ErrCast
			break
		}
		res.Value = v.QualifiedName()
	default:
		err = ErrCast
	}
	if err != nil {
		code := CodeInvalidValue
		if err == ErrCast {
			code = CodeType
		}
		return Atomic{}, Errorf(code, "cannot cast %q (%s) to %s", a.StringValue(), a.Type, to).Wrap(err)
	}
	return res, nil
}

func Castable(a Atomic, to *AtomicType) bool {
	_, err := Cast(a, to)
	return err == nil
}

func castBoolean(b bool, to *AtomicType) (any, error) {
	var n float64
	if b {
		n = 1
	}
	switch {
	case to.Stringlike():
		return strconv.FormatBool(b), nil
	case to == IntegerType:
		return int64(n), nil
	case to.Numeric():
		return n, nil
	default:
		return nil, ErrCast
	}
}

func castNumber(f float64, to *AtomicType) (any, error) {
	switch {
	case to == BooleanType:
		return f != 0 && !math.IsNaN(f), nil
	case to == IntegerType:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %f", ErrCast, f)
		}
		return int64(f), nil
	case to == DecimalType:
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%w: %f", ErrCast, f)
		}
		return f, nil
	case to == DoubleType || to == FloatType:
		return f, nil
	case to.Stringlike():
		return formatDouble(f), nil
	default:
		return nil, ErrCast
	}
}

func parseString(str string) (any, error) {
	return str, nil
}

func parseBoolean(str string) (any, error) {
	switch str {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	default:
		return nil, fmt.Errorf("%s: invalid boolean", str)
	}
}

func parseInteger(str string) (any, error) {
	return strconv.ParseInt(str, 10, 64)
}

func parseDecimal(str string) (any, error) {
	if strings.ContainsAny(str, "eE") {
		return nil, fmt.Errorf("%s: invalid decimal", str)
	}
	return strconv.ParseFloat(str, 64)
}

func parseDouble(str string) (any, error) {
	switch str {
	case "INF", "+INF":
		return math.Inf(1), nil
	case "-INF":
		return math.Inf(-1), nil
	case "NaN":
		return math.NaN(), nil
	default:
		return strconv.ParseFloat(str, 64)
	}
}

func parseDateTime(str string) (any, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%s: invalid dateTime", str)
}

func parseDate(str string) (any, error) {
	return time.Parse("2006-01-02", str)
}

func parseQName(str string) (any, error) {
	return xml.ParseName(str)
}
