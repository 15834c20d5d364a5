package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
	"github.com/midbel/xpc/xpath"
	"github.com/pkg/errors"
)

// ContextOptions are the flags shared by the commands that compile an
// expression.
type ContextOptions struct {
	Config string
	Trace  bool
	Strict bool
	Vars   []string
}

func (c *ContextOptions) Register(set *flag.FlagSet) {
	set.StringVar(&c.Config, "config", "", "static context configuration file (yaml)")
	set.BoolVar(&c.Trace, "trace", false, "trace the parser on stderr")
	set.BoolVar(&c.Strict, "strict", false, "fail when compilation reports warnings")
	set.Func("var", "value of an external variable given as name=expr", func(str string) error {
		if !strings.Contains(str, "=") {
			return fmt.Errorf("%s: expected name=expr", str)
		}
		c.Vars = append(c.Vars, str)
		return nil
	})
}

// Session holds what is needed to compile and run expressions with the
// same static context.
type Session struct {
	Static xpath.StaticContext
	Config *Config
	Logger *slog.Logger
	Strict bool

	vars []string
}

func (c ContextOptions) Session() (*Session, error) {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	options, err := cfg.Options(logger)
	if err != nil {
		return nil, err
	}
	for _, v := range c.Vars {
		name, _, _ := strings.Cut(v, "=")
		if name = strings.TrimSpace(name); cfg.declared(name) {
			continue
		}
		options = append(options, xpath.WithVariable(name, xpath.SequenceType{}))
	}
	if c.Trace {
		options = append(options, xpath.WithTracer(xpath.TraceStderr()))
	}
	s := Session{
		Static: xpath.NewStaticContext(options...),
		Config: cfg,
		Logger: logger,
		Strict: c.Strict,
		vars:   c.Vars,
	}
	return &s, nil
}

// Compile compiles expr and logs its warnings. In strict mode, the
// warnings are returned as an error.
func (s *Session) Compile(expr string) (*xpath.Program, error) {
	prog, err := xpath.Compile(expr, s.Static)
	if err != nil {
		return nil, err
	}
	var all *multierror.Error
	for _, w := range prog.Warnings {
		s.Logger.Warn(w.Message, "line", w.Line, "column", w.Column)
		if s.Strict {
			all = multierror.Append(all, errors.New(w.String()))
		}
	}
	if err := all.ErrorOrNil(); err != nil {
		return nil, errors.Wrapf(err, "compile %q", expr)
	}
	return prog, nil
}

// Values returns the values of the external variables: the ones of the
// configuration first, then the ones given on the command line.
func (s *Session) Values(ctx context.Context) (map[string]xdm.Sequence, error) {
	values, err := s.Config.Values(ctx, s.Static)
	if err != nil {
		return nil, err
	}
	for _, v := range s.vars {
		name, expr, _ := strings.Cut(v, "=")
		seq, err := evalValue(ctx, expr, s.Static)
		if err != nil {
			return nil, errors.Wrapf(err, "value of $%s", name)
		}
		values[strings.TrimSpace(name)] = seq
	}
	return values, nil
}

func (s *Session) Evaluate(ctx context.Context, prog *xpath.Program, item xdm.Item) (xdm.Sequence, error) {
	values, err := s.Values(ctx)
	if err != nil {
		return nil, err
	}
	return prog.Evaluate(ctx, item, values)
}

// parseDocument reads the document used as context item. The standard
// input is read when file is "-"; no document is read when file is empty.
func parseDocument(file string) (xdm.Item, error) {
	var (
		doc *xml.Document
		err error
	)
	switch file {
	case "":
		return nil, nil
	case "-":
		doc, err = xml.ParseReader(os.Stdin)
	default:
		doc, err = xml.ParseFile(file)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "parse document %s", file)
	}
	return xdm.NewNode(doc), nil
}

func printValues(w io.Writer, seq xdm.Sequence) {
	for _, item := range seq {
		fmt.Fprintln(w, formatItem(item))
	}
}

func formatItem(item xdm.Item) string {
	if n, ok := xdm.AsNode(item); ok {
		return xml.WriteNode(n)
	}
	if f, ok := xdm.AsFunction(item); ok {
		return fmt.Sprintf("%s#%d", f.Name().QualifiedName(), f.Arity())
	}
	return item.StringValue()
}
