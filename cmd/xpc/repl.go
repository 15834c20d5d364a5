package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/midbel/cli"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xpath"
)

var replCmd = cli.Command{
	Name:    "repl",
	Summary: "compile and evaluate expressions interactively",
	Handler: &ReplCmd{},
}

type ReplCmd struct {
	Document string
	Tree     bool
	ContextOptions
}

func (c *ReplCmd) Run(args []string) error {
	set := flag.NewFlagSet("repl", flag.ContinueOnError)
	set.StringVar(&c.Document, "doc", "", "document used as context item")
	set.BoolVar(&c.Tree, "tree", false, "show the compiled tree of each expression")
	c.ContextOptions.Register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	item, err := parseDocument(c.Document)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(newRepl(sess, item, c.Tree)).Run()
	return err
}

var (
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	typeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	treeStyle   = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	resultStyle = lipgloss.NewStyle().PaddingLeft(2)
)

const maxItems = 50

// entry is the outcome of one expression typed in the repl.
type entry struct {
	expr     string
	prog     *xpath.Program
	result   xdm.Sequence
	warnings []string
	err      error
}

type repl struct {
	input   textinput.Model
	session *Session
	item    xdm.Item
	tree    bool
	history []string
	last    *entry
	cursor  int
	width   int
}

func newRepl(sess *Session, item xdm.Item, tree bool) repl {
	in := textinput.New()
	in.Prompt = "xpath> "
	in.Placeholder = "expression, :tree to toggle the tree, :quit to leave"
	in.Focus()
	return repl{
		input:   in,
		session: sess,
		item:    item,
		tree:    tree,
	}
}

func (r repl) Init() tea.Cmd {
	return textinput.Blink
}

func (r repl) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.input.SetWidth(msg.Width - len(r.input.Prompt) - 1)
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return r, tea.Quit
		case "up":
			r.recall(-1)
			return r, nil
		case "down":
			r.recall(1)
			return r, nil
		case "enter":
			return r.submit()
		}
	}
	var cmd tea.Cmd
	r.input, cmd = r.input.Update(msg)
	return r, cmd
}

func (r *repl) recall(dir int) {
	if len(r.history) == 0 {
		return
	}
	r.cursor += dir
	r.cursor = max(0, min(r.cursor, len(r.history)))
	if r.cursor == len(r.history) {
		r.input.SetValue("")
		return
	}
	r.input.SetValue(r.history[r.cursor])
	r.input.CursorEnd()
}

func (r repl) submit() (tea.Model, tea.Cmd) {
	expr := strings.TrimSpace(r.input.Value())
	r.input.Reset()
	switch expr {
	case "":
		return r, nil
	case ":quit", ":q":
		return r, tea.Quit
	case ":tree":
		r.tree = !r.tree
		return r, nil
	}
	r.history = append(r.history, expr)
	r.cursor = len(r.history)
	r.last = r.run(expr)
	return r, tea.Println(r.transcript(r.last))
}

func (r repl) run(expr string) *entry {
	e := entry{
		expr: expr,
	}
	prog, err := xpath.Compile(expr, r.session.Static)
	if err != nil {
		e.err = err
		return &e
	}
	e.prog = prog
	for _, w := range prog.Warnings {
		e.warnings = append(e.warnings, w.String())
		r.session.Logger.Debug(w.Message, "expression", expr)
	}
	e.result, e.err = r.session.Evaluate(context.Background(), prog, r.item)
	return &e
}

func (r repl) transcript(e *entry) string {
	lines := []string{
		promptStyle.Render(r.input.Prompt) + e.expr,
	}
	if e.prog != nil {
		lines = append(lines, typeStyle.Render(fmt.Sprintf("  %s (%s)", e.prog.Type(), e.prog.Root.Cardinality())))
		if r.tree {
			lines = append(lines, treeStyle.Render(strings.TrimRight(xpath.Dump(e.prog.Root), "\n")))
		}
	}
	for _, w := range e.warnings {
		lines = append(lines, warnStyle.Render("  warning: "+w))
	}
	if e.err != nil {
		code := xpath.ErrorCode(e.err)
		if code == "" {
			code = "error"
		}
		lines = append(lines, errorStyle.Render(fmt.Sprintf("  %s: %s", code, e.err)))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}
	for i, item := range e.result {
		if i >= maxItems {
			lines = append(lines, resultStyle.Render(fmt.Sprintf("... %d more item(s)", len(e.result)-i)))
			break
		}
		lines = append(lines, resultStyle.Render(formatItem(item)))
	}
	if len(e.result) == 0 {
		lines = append(lines, resultStyle.Render("()"))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (r repl) View() tea.View {
	var status string
	if r.last != nil && r.last.prog != nil {
		status = typeStyle.Render(fmt.Sprintf("last: %s", r.last.prog.ID))
	}
	view := lipgloss.JoinVertical(lipgloss.Left, r.input.View(), status)
	return tea.NewView(view)
}
