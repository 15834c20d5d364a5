package xpath

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/midbel/xpc/xdm"
)

// Program is a compiled expression. It is not modified after compilation
// and can be evaluated by several goroutines at once.
type Program struct {
	ID       uuid.UUID
	Source   string
	Root     Expr
	Bindings *Bindings
	Warnings []Warning

	static  StaticContext
	globals map[string]Handle
}

func Compile(expr string, static StaticContext) (*Program, error) {
	cp := NewCompiler(strings.NewReader(expr), static)
	return cp.Compile()
}

func MustCompile(expr string, static StaticContext) *Program {
	prog, err := Compile(expr, static)
	if err != nil {
		panic(err)
	}
	return prog
}

func (p *Program) Type() SequenceType {
	return NewSequenceType(p.Root.ItemType(), p.Root.Cardinality())
}

// Variables returns the names of the external variables used by the
// program.
func (p *Program) Variables() []string {
	var list []string
	for name := range p.globals {
		list = append(list, name)
	}
	return list
}

// Instantiate returns a copy of the program whose local bindings are new.
// Tightening the types of the copy never changes the original.
func (p *Program) Instantiate() *Program {
	arena := p.Bindings.Clone()
	root := p.Root.Copy(NewRebinder(arena))
	x := *p
	x.ID = uuid.New()
	x.Root = root
	x.Bindings = arena
	return &x
}

// Evaluate runs the program with item as the context item; item can be
// nil. Every external variable used by the program needs a value in vars.
func (p *Program) Evaluate(ctx context.Context, item xdm.Item, vars map[string]xdm.Sequence) (xdm.Sequence, error) {
	dyn, err := NewContext(ctx, p.static, p.Bindings.Len())
	if err != nil {
		return nil, err
	}
	if item != nil {
		dyn = dyn.Focus(item, 1, 1)
	}
	values := make(map[string]xdm.Sequence)
	for name, seq := range vars {
		values[VariableName(name).ExpandedName()] = seq
	}
	for name, h := range p.globals {
		seq, ok := values[name]
		if !ok {
			return nil, xdm.Errorf(CodeNoContext, "no value supplied for variable $%s", name)
		}
		bind := p.Bindings.Get(h)
		if bind != nil && !bind.Declared.Zero() && !bind.Declared.Matches(seq) {
			role := VariableRole(bind.Name.QualifiedName())
			return nil, role.errorf("Required type of the %s is %s", role.Message(), bind.Declared)
		}
		dyn.Set(h, seq)
	}
	return p.Root.Evaluate(dyn)
}

func (p *Program) String() string {
	return fmt.Sprintf("%s: %s", p.ID, p.Source)
}
