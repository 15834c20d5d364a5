package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/midbel/cli"
	"github.com/midbel/xpc/casing"
	"github.com/midbel/xpc/xml"
	"github.com/midbel/xpc/xpath"
	"github.com/sanity-io/litter"
)

var compileCmd = cli.Command{
	Name:    "compile",
	Summary: "compile an expression and print its tree",
	Handler: &CompileCmd{},
}

var explainCmd = cli.Command{
	Name:    "explain",
	Summary: "print the static type, variables and warnings of an expression",
	Handler: &ExplainCmd{},
}

const (
	formatXML = "xml"
	formatGo  = "go"
)

type CompileCmd struct {
	Format  string
	Casing  string
	Compact bool
	ContextOptions
}

func (c *CompileCmd) Run(args []string) error {
	set := flag.NewFlagSet("compile", flag.ContinueOnError)
	set.StringVar(&c.Format, "format", formatXML, "output format (xml, go)")
	set.StringVar(&c.Casing, "case", "", "casing of attribute names (snake, kebab, camel, pascal)")
	set.BoolVar(&c.Compact, "compact", false, "compact xml output")
	c.ContextOptions.Register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	ct, err := casing.Parse(c.Casing)
	if err != nil {
		return err
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	prog, err := sess.Compile(set.Arg(0))
	if err != nil {
		return err
	}
	elem := xpath.NewExporter(ct).Export(prog.Root)
	switch c.Format {
	case formatXML:
		return writeTree(os.Stdout, elem, c.Compact)
	case formatGo:
		fmt.Fprintln(os.Stdout, litter.Sdump(treeOf(elem)))
		return nil
	default:
		return fmt.Errorf("%s: unsupported format", c.Format)
	}
}

type ExplainCmd struct {
	ContextOptions
}

func (c *ExplainCmd) Run(args []string) error {
	set := flag.NewFlagSet("explain", flag.ContinueOnError)
	c.ContextOptions.Register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	prog, err := sess.Compile(set.Arg(0))
	if err != nil {
		return err
	}
	explain(os.Stdout, prog)
	return writeTree(os.Stdout, xpath.Export(prog.Root), false)
}

func explain(w io.Writer, prog *xpath.Program) {
	fmt.Fprintf(w, "id         : %s\n", prog.ID)
	fmt.Fprintf(w, "expression : %s\n", prog.Source)
	fmt.Fprintf(w, "type       : %s\n", prog.Type())
	fmt.Fprintf(w, "cardinality: %s\n", prog.Root.Cardinality())
	if vars := prog.Variables(); len(vars) > 0 {
		fmt.Fprintf(w, "variables  : %s\n", strings.Join(vars, ", "))
	}
	for _, warn := range prog.Warnings {
		fmt.Fprintf(w, "warning    : %s\n", warn)
	}
}

func writeTree(w io.Writer, elem *xml.Element, compact bool) error {
	ws := xml.NewWriter(w)
	ws.WriterOptions |= xml.OptionNoProlog
	if compact {
		ws.WriterOptions |= xml.OptionCompact
	}
	return ws.Write(xml.NewDocument(elem))
}

// Tree is the exported tree of an expression stripped of the links of the
// xml nodes, suitable for printing as a go value.
type Tree struct {
	Tag      string
	Attrs    map[string]string
	Children []Tree
}

func treeOf(elem *xml.Element) Tree {
	t := Tree{
		Tag: elem.QName.Name,
	}
	if len(elem.Attrs) > 0 {
		t.Attrs = make(map[string]string)
		for _, a := range elem.Attrs {
			t.Attrs[a.QName.Name] = a.Datum
		}
	}
	for _, n := range elem.Nodes {
		if e, ok := n.(*xml.Element); ok {
			t.Children = append(t.Children, treeOf(e))
		}
	}
	return t
}
