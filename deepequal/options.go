package deepequal

import (
	"fmt"
	"strings"

	"github.com/midbel/xpc/casing"
)

type Options uint32

const (
	IncludeNamespaces Options = 1 << iota
	IncludePrefixes
	IncludeComments
	IncludeProcessingInstructions
	ExcludeWhitespaceText
	CompareStringValues
	CompareAnnotations
	Explain
	JoinAdjacentText
	CompareIDFlags
	ExcludeVariety
)

var optionNames = []struct {
	Options
	Name string
}{
	{IncludeNamespaces, "IncludeNamespaces"},
	{IncludePrefixes, "IncludePrefixes"},
	{IncludeComments, "IncludeComments"},
	{IncludeProcessingInstructions, "IncludeProcessingInstructions"},
	{ExcludeWhitespaceText, "ExcludeWhitespaceText"},
	{CompareStringValues, "CompareStringValues"},
	{CompareAnnotations, "CompareAnnotations"},
	{Explain, "Explain"},
	{JoinAdjacentText, "JoinAdjacentText"},
	{CompareIDFlags, "CompareIdFlags"},
	{ExcludeVariety, "ExcludeVariety"},
}

// ParseOptions builds an option set from names given in any casing:
// "exclude-whitespace-text", "exclude_whitespace_text" and
// "ExcludeWhitespaceText" are the same option.
func ParseOptions(names []string) (Options, error) {
	var opts Options
	for _, n := range names {
		o, err := parseOption(n)
		if err != nil {
			return opts, err
		}
		opts |= o
	}
	return opts, nil
}

func parseOption(name string) (Options, error) {
	key := casing.ToKebab(name)
	for _, o := range optionNames {
		if casing.ToKebab(o.Name) == key {
			return o.Options, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown deep-equal option", name)
}

// Names lists the kebab-case names of every known option.
func Names() []string {
	var list []string
	for _, o := range optionNames {
		list = append(list, casing.ToKebab(o.Name))
	}
	return list
}

func (o Options) Has(other Options) bool {
	return o&other == other
}

func (o Options) String() string {
	var list []string
	for _, n := range optionNames {
		if o.Has(n.Options) {
			list = append(list, casing.ToKebab(n.Name))
		}
	}
	return strings.Join(list, ",")
}
