package main

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/midbel/xpc/deepequal"
	"github.com/midbel/xpc/xdm"
	"github.com/midbel/xpc/xml"
	"github.com/midbel/xpc/xpath"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config describes the static context used to compile expressions and the
// values given to their external variables.
type Config struct {
	Namespaces        map[string]string `yaml:"namespaces"`
	ElementNamespace  string            `yaml:"default-element-namespace"`
	FunctionNamespace string            `yaml:"default-function-namespace"`
	Collation         string            `yaml:"collation"`
	Backwards         bool              `yaml:"backwards-compatible"`
	SchemaAware       bool              `yaml:"schema-aware"`
	Variables         []VariableConfig  `yaml:"variables"`
	Functions         []FunctionConfig  `yaml:"functions"`
	DeepEqual         []string          `yaml:"deep-equal"`
}

type VariableConfig struct {
	Name  string `yaml:"name"`
	Type  string `yaml:"type"`
	Value string `yaml:"value"`
}

type ParamConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type FunctionConfig struct {
	Name   string        `yaml:"name"`
	Params []ParamConfig `yaml:"params"`
	Result string        `yaml:"result"`
	Body   string        `yaml:"body"`
}

func loadConfig(file string) (*Config, error) {
	var cfg Config
	if file == "" {
		return &cfg, nil
	}
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", file)
	}
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decode config %s", file)
	}
	return &cfg, nil
}

// Options returns the options of the static context. Types and function
// names are resolved with the namespaces of the configuration.
func (c *Config) Options(logger *slog.Logger) ([]xpath.Option, error) {
	options := []xpath.Option{
		xpath.WithBackwardsCompatible(c.Backwards),
		xpath.WithSchemaAware(c.SchemaAware),
	}
	if logger != nil {
		options = append(options, xpath.WithLogger(logger))
	}
	for prefix, uri := range c.Namespaces {
		options = append(options, xpath.WithNamespace(prefix, uri))
	}
	if c.ElementNamespace != "" {
		options = append(options, xpath.WithDefaultElementNamespace(c.ElementNamespace))
	}
	if c.FunctionNamespace != "" {
		options = append(options, xpath.WithDefaultFunctionNamespace(c.FunctionNamespace))
	}
	if c.Collation != "" {
		if _, err := xdm.NewComparer(c.Collation); err != nil {
			return nil, errors.Wrapf(err, "collation %s", c.Collation)
		}
		options = append(options, xpath.WithCollation(c.Collation))
	}
	base := xpath.NewStaticContext(options...)
	for _, v := range c.Variables {
		st, err := parseType(v.Type, base)
		if err != nil {
			return nil, errors.Wrapf(err, "variable $%s", v.Name)
		}
		options = append(options, xpath.WithVariable(v.Name, st))
	}
	for _, f := range c.Functions {
		fn, err := c.function(f, base)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", f.Name)
		}
		options = append(options, xpath.WithFunction(fn))
	}
	return options, nil
}

func (c *Config) function(f FunctionConfig, static xpath.StaticContext) (*xpath.UserFunction, error) {
	name, err := resolveName(f.Name, static)
	if err != nil {
		return nil, err
	}
	fn := xpath.UserFunction{
		Name: name,
		Body: f.Body,
	}
	if fn.Result, err = parseType(f.Result, static); err != nil {
		return nil, err
	}
	for _, p := range f.Params {
		st, err := parseType(p.Type, static)
		if err != nil {
			return nil, errors.Wrapf(err, "parameter $%s", p.Name)
		}
		param := xpath.Param{
			Name: xpath.VariableName(p.Name),
			Type: st,
		}
		fn.Params = append(fn.Params, param)
	}
	return &fn, nil
}

// Values evaluates the value of each variable. A value is itself an
// expression compiled without external variables.
func (c *Config) Values(ctx context.Context, static xpath.StaticContext) (map[string]xdm.Sequence, error) {
	values := make(map[string]xdm.Sequence)
	for _, v := range c.Variables {
		if v.Value == "" {
			continue
		}
		seq, err := evalValue(ctx, v.Value, static)
		if err != nil {
			return nil, errors.Wrapf(err, "value of $%s", v.Name)
		}
		values[v.Name] = seq
	}
	return values, nil
}

func (c *Config) declared(name string) bool {
	for _, v := range c.Variables {
		if v.Name == name {
			return true
		}
	}
	return false
}

func (c *Config) DeepEqualOptions() (deepequal.Options, error) {
	return deepequal.ParseOptions(c.DeepEqual)
}

func evalValue(ctx context.Context, expr string, static xpath.StaticContext) (xdm.Sequence, error) {
	prog, err := xpath.Compile(expr, static)
	if err != nil {
		return nil, err
	}
	return prog.Evaluate(ctx, nil, nil)
}

func parseType(str string, static xpath.StaticContext) (xpath.SequenceType, error) {
	if str = strings.TrimSpace(str); str == "" {
		return xpath.SequenceType{}, nil
	}
	return xpath.ParseSequenceType(str, static)
}

func resolveName(name string, static xpath.StaticContext) (xml.QName, error) {
	prefix, local, ok := strings.Cut(name, ":")
	if !ok {
		return xml.ExpandedName(name, "", static.DefaultFunctionNamespace()), nil
	}
	uri, err := static.ResolvePrefix(prefix)
	if err != nil {
		return xml.QName{}, err
	}
	return xml.ExpandedName(local, prefix, uri), nil
}
