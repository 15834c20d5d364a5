package xpath

import (
	"fmt"

	"github.com/midbel/xpc/xdm"
)

type RoleKind int8

const (
	RoleFunction RoleKind = iota
	RoleBinaryExpr
	RoleUnaryExpr
	RoleTypeOp
	RoleVariable
	RoleFunctionResult
)

// Role names the place where a value is checked. It only shapes error
// messages.
type Role struct {
	Kind    RoleKind
	Name    string
	Operand int
	Code    string
}

func FunctionRole(name string, operand int) Role {
	return Role{
		Kind:    RoleFunction,
		Name:    name,
		Operand: operand,
	}
}

func BinaryRole(op string, operand int) Role {
	return Role{
		Kind:    RoleBinaryExpr,
		Name:    op,
		Operand: operand,
	}
}

func UnaryRole(op string) Role {
	return Role{
		Kind: RoleUnaryExpr,
		Name: op,
	}
}

func TypeOpRole(op string) Role {
	return Role{
		Kind: RoleTypeOp,
		Name: op,
	}
}

func VariableRole(name string) Role {
	return Role{
		Kind: RoleVariable,
		Name: name,
	}
}

func ResultRole(name string) Role {
	return Role{
		Kind: RoleFunctionResult,
		Name: name,
	}
}

func (r Role) Message() string {
	switch r.Kind {
	case RoleFunction:
		return fmt.Sprintf("%s argument of %s()", ordinal(r.Operand+1), r.Name)
	case RoleBinaryExpr:
		return fmt.Sprintf("%s operand of '%s'", ordinal(r.Operand+1), r.Name)
	case RoleUnaryExpr:
		return fmt.Sprintf("operand of '%s'", r.Name)
	case RoleTypeOp:
		return fmt.Sprintf("value in '%s' expression", r.Name)
	case RoleVariable:
		return fmt.Sprintf("value of variable $%s", r.Name)
	case RoleFunctionResult:
		return fmt.Sprintf("result of function %s()", r.Name)
	default:
		return r.Name
	}
}

func (r Role) ErrorCode() string {
	if r.Code == "" {
		return xdm.CodeType
	}
	return r.Code
}

func (r Role) String() string {
	return r.Message()
}

func (r Role) errorf(format string, args ...any) *xdm.Error {
	e := xdm.Errorf(r.ErrorCode(), format, args...)
	e.Role = r.Message()
	return e
}

func ordinal(n int) string {
	switch n {
	case 1:
		return "first"
	case 2:
		return "second"
	case 3:
		return "third"
	case 4:
		return "fourth"
	case 5:
		return "fifth"
	}
	switch n % 10 {
	case 1:
		if n%100 != 11 {
			return fmt.Sprintf("%dst", n)
		}
	case 2:
		if n%100 != 12 {
			return fmt.Sprintf("%dnd", n)
		}
	case 3:
		if n%100 != 13 {
			return fmt.Sprintf("%drd", n)
		}
	}
	return fmt.Sprintf("%dth", n)
}
