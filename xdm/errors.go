package xdm

import (
	"errors"
	"fmt"
)

const (
	CodeType            = "XPTY0004"
	CodeNotNode         = "XPTY0020"
	CodeElementOnly     = "FOTY0012"
	CodeFunctionAtomize = "FOTY0013"
	CodeFunctionEqual   = "FOTY0015"
	CodeInvalidValue    = "FORG0001"
	CodeBooleanValue    = "FORG0006"
	CodeDivZero         = "FOAR0001"
	CodeCollation       = "FOCH0002"
	CodeUnknownFunction = "XTDE1425"
	CodeUserError       = "FOER0000"
)

var (
	ErrCardinality   = errors.New("cardinality mismatch")
	ErrNotComparable = errors.New("values are not comparable")
	ErrCast          = errors.New("value can not be cast to target type")
)

// Error is a dynamic error. Role, when set, names the operand or argument
// that caused it.
type Error struct {
	Code    string
	Message string
	Role    string

	err error
}

func NewError(code, msg string) *Error {
	return &Error{
		Code:    code,
		Message: msg,
	}
}

func Errorf(code, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

func CardinalityError(role, msg string) *Error {
	e := NewError(CodeType, msg)
	e.Role = role
	e.err = ErrCardinality
	return e
}

func ComparisonError(a, b Atomic) *Error {
	e := Errorf(CodeType, "cannot compare %s to %s", a.Type.Name.QualifiedName(), b.Type.Name.QualifiedName())
	e.err = ErrNotComparable
	return e
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Wrap attaches a cause to e and returns it.
func (e *Error) Wrap(err error) *Error {
	e.err = err
	return e
}

// Code returns the error code carried by err, if any.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
