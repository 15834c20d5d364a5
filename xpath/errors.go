package xpath

import (
	"errors"
	"fmt"

	"github.com/midbel/xpc/xdm"
)

const (
	CodeSyntax          = "XPST0003"
	CodeUndefined       = "XPST0008"
	CodeUnknownFunction = "XPST0017"
	CodeUnknownType     = "XPST0051"
	CodeAbstractCast    = "XPST0080"
	CodeUnknownPrefix   = "XPST0081"
	CodeStaticType      = "XPTY0004"
	CodeNoContext       = "XPDY0002"
	CodeTreat           = "XPDY0050"
	CodeMixedPath       = "XPTY0018"
	CodePathNotNode     = "XPTY0019"
)

var (
	ErrSyntax   = errors.New("syntax error")
	ErrTooDeep  = errors.New("expression too deeply nested")
	ErrCompiled = errors.New("compiler already used")
)

// StaticError aborts a compilation. Expressions that fail before parsing
// starts carry no location.
type StaticError struct {
	Code    string
	Message string
	Position
	Snippet string
	Near    bool

	err error
}

func (e *StaticError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	where := "in"
	if e.Near {
		where = "near"
	}
	snippet := e.Snippet
	if e.Near {
		snippet = "..." + snippet
	}
	return fmt.Sprintf("[%s] XPath syntax error at char %d on line %d %s {%s}: %s", e.Code, e.Column, e.Line, where, snippet, e.Message)
}

func (e *StaticError) Unwrap() error {
	if e.err == nil && e.Code == CodeSyntax {
		return ErrSyntax
	}
	return e.err
}

func staticError(code, msg string) *StaticError {
	return &StaticError{
		Code:    code,
		Message: msg,
	}
}

func staticErrorf(code, format string, args ...any) *StaticError {
	return staticError(code, fmt.Sprintf(format, args...))
}

// ErrorCode returns the code of a static or dynamic error.
func ErrorCode(err error) string {
	var se *StaticError
	if errors.As(err, &se) {
		return se.Code
	}
	return xdm.Code(err)
}

type Warning struct {
	Message string
	Line    int
	Column  int
}

func (w Warning) String() string {
	if w.Line == 0 {
		return w.Message
	}
	return fmt.Sprintf("%d:%d: %s", w.Line, w.Column, w.Message)
}
