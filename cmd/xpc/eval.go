package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/midbel/cli"
)

var evalCmd = cli.Command{
	Name:    "eval",
	Alias:   []string{"exec"},
	Summary: "evaluate an expression against an optional document",
	Handler: &EvalCmd{},
}

type EvalCmd struct {
	Quiet   bool
	Timeout time.Duration
	Time    bool
	ContextOptions
}

const evalInfo = "evaluation took %s - %d item(s) for %q"

func (c *EvalCmd) Run(args []string) error {
	set := flag.NewFlagSet("eval", flag.ContinueOnError)
	set.BoolVar(&c.Quiet, "quiet", false, "suppress output - default is to print the resulting items")
	set.DurationVar(&c.Timeout, "timeout", 0, "abort evaluation after the given duration")
	set.BoolVar(&c.Time, "time", false, "print the evaluation time")
	c.ContextOptions.Register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	item, err := parseDocument(set.Arg(1))
	if err != nil {
		return err
	}
	prog, err := sess.Compile(set.Arg(0))
	if err != nil {
		return err
	}
	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}
	now := time.Now()
	seq, err := sess.Evaluate(ctx, prog, item)
	if err != nil {
		return err
	}
	if !c.Quiet {
		printValues(os.Stdout, seq)
	}
	if c.Time {
		fmt.Fprintf(os.Stderr, evalInfo, time.Since(now), len(seq), prog.Source)
		fmt.Fprintln(os.Stderr)
	}
	if len(seq) == 0 {
		return errFail
	}
	return nil
}
