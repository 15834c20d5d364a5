package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/midbel/cli"
	"github.com/midbel/distance"
	"github.com/midbel/xpc/deepequal"
	"github.com/midbel/xpc/xdm"
	"github.com/pkg/errors"
)

var deepEqualCmd = cli.Command{
	Name:    "deep-equal",
	Alias:   []string{"cmp"},
	Summary: "compare the results of an expression applied to two documents",
	Handler: &DeepEqualCmd{},
}

type DeepEqualCmd struct {
	Expr      string
	Collation string
	Options   []string
	ContextOptions
}

func (c *DeepEqualCmd) Run(args []string) error {
	set := flag.NewFlagSet("deep-equal", flag.ContinueOnError)
	set.StringVar(&c.Expr, "expr", "/", "expression selecting the items to compare in each document")
	set.StringVar(&c.Collation, "collation", "", "collation used to compare strings")
	set.Func("option", "deep-equal option (repeatable): "+strings.Join(deepequal.Names(), ", "), func(str string) error {
		c.Options = append(c.Options, str)
		return nil
	})
	c.ContextOptions.Register(set)
	if err := set.Parse(args); err != nil {
		return err
	}
	if set.NArg() != 2 {
		return fmt.Errorf("deep-equal: two documents expected")
	}
	sess, err := c.Session()
	if err != nil {
		return err
	}
	opts, err := c.options(sess.Config)
	if err != nil {
		return err
	}
	cmp, err := c.comparer(sess.Config)
	if err != nil {
		return err
	}
	prog, err := sess.Compile(c.Expr)
	if err != nil {
		return err
	}
	var seqs []xdm.Sequence
	for _, file := range set.Args() {
		item, err := parseDocument(file)
		if err != nil {
			return err
		}
		seq, err := sess.Evaluate(context.Background(), prog, item)
		if err != nil {
			return errors.Wrapf(err, "evaluate %q on %s", c.Expr, file)
		}
		seqs = append(seqs, seq)
	}
	dq := deepequal.Comparator{
		Options:  opts | deepequal.Explain,
		Comparer: cmp,
		Logger:   sess.Logger,
	}
	res, err := dq.Compare(seqs[0], seqs[1])
	if err != nil {
		return err
	}
	if res.Equal {
		fmt.Fprintln(os.Stdout, "equal")
		return nil
	}
	fmt.Fprintln(os.Stdout, res.Reason)
	return errFail
}

func (c *DeepEqualCmd) options(cfg *Config) (deepequal.Options, error) {
	opts, err := cfg.DeepEqualOptions()
	if err != nil {
		return opts, err
	}
	for _, name := range c.Options {
		o, err := deepequal.ParseOptions([]string{name})
		if err != nil {
			if others := distance.Levenshtein(name, deepequal.Names()); len(others) > 0 {
				return opts, fmt.Errorf("%w (did you mean %s?)", err, strings.Join(others, ", "))
			}
			return opts, err
		}
		opts |= o
	}
	return opts, nil
}

func (c *DeepEqualCmd) comparer(cfg *Config) (xdm.Comparer, error) {
	uri := c.Collation
	if uri == "" {
		uri = cfg.Collation
	}
	if uri == "" {
		return xdm.CodepointComparer(), nil
	}
	return xdm.NewComparer(uri)
}
