package casing_test

import (
	"testing"

	"github.com/midbel/xpc/casing"
)

func TestCasing(t *testing.T) {
	data := []struct {
		Input string
		Want  string
		Case  casing.CaseType
	}{
		{
			Input: "foobar",
			Want:  "foobar",
			Case:  casing.SnakeCase,
		},
		{
			Input: "fooBar",
			Want:  "foo-bar",
			Case:  casing.KebabCase,
		},
		{
			Input: "fooBar",
			Want:  "foo_bar",
			Case:  casing.SnakeCase,
		},
		{
			Input: "fooBAR",
			Want:  "foo-bar",
			Case:  casing.KebabCase,
		},
		{
			Input: "foo___-___BAR",
			Want:  "foo-bar",
			Case:  casing.KebabCase,
		},
		{
			Input: "IncludeProcessingInstructions",
			Want:  "include-processing-instructions",
			Case:  casing.KebabCase,
		},
		{
			Input: "XMLName",
			Want:  "xml_name",
			Case:  casing.SnakeCase,
		},
		{
			Input: "exclude-whitespace-text",
			Want:  "excludeWhitespaceText",
			Case:  casing.CamelCase,
		},
		{
			Input: "compare_id_flags",
			Want:  "CompareIdFlags",
			Case:  casing.PascalCase,
		},
		{
			Input: "as-is",
			Want:  "as-is",
			Case:  casing.DefaultCase,
		},
	}
	for _, d := range data {
		got := casing.To(d.Case, d.Input)
		if got != d.Want {
			t.Errorf("%s: result mismatched! want %s, got %s", d.Input, d.Want, got)
		}
	}
}

func TestParse(t *testing.T) {
	if c, err := casing.Parse("kebab"); err != nil || c != casing.KebabCase {
		t.Errorf("kebab: unexpected result %d (%v)", c, err)
	}
	if _, err := casing.Parse("screaming"); err == nil {
		t.Errorf("screaming: error expected")
	}
}
