package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/kylelemons/godebug/pretty"
	"github.com/midbel/xpc/deepequal"
	"github.com/midbel/xpc/xpath"
)

const sample = `
namespaces:
  my: urn:my
variables:
  - name: x
    type: xs:integer*
    value: (1, 2, 3)
functions:
  - name: my:double
    params:
      - name: n
        type: xs:integer
    result: xs:integer
    body: $n * 2
deep-equal:
  - exclude-whitespace-text
  - IncludeComments
`

func writeConfig(t *testing.T, str string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "xpc.yml")
	if err := os.WriteFile(file, []byte(str), 0o644); err != nil {
		t.Fatalf("fail to write config: %s", err)
	}
	return file
}

func TestConfig(t *testing.T) {
	opts := ContextOptions{
		Config: writeConfig(t, sample),
		Vars:   []string{"y=10"},
	}
	sess, err := opts.Session()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	prog, err := sess.Compile("for $i in $x return my:double($i) + $y")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	seq, err := sess.Evaluate(t.Context(), prog, nil)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	var got []string
	for _, item := range seq {
		got = append(got, formatItem(item))
	}
	want := []string{"12", "14", "16"}
	if diff := pretty.Compare(want, got); diff != "" {
		t.Errorf("result mismatched")
		t.Logf("%s", diff)
		t.Logf("%s", spew.Sdump(seq))
	}
	dq, err := sess.Config.DeepEqualOptions()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if !dq.Has(deepequal.ExcludeWhitespaceText | deepequal.IncludeComments) {
		t.Errorf("deep-equal options not set")
	}
}

func TestConfigInvalid(t *testing.T) {
	tests := []string{
		"variables:\n  - name: x\n    type: xs:nothing\n",
		"variables:\n  - name: x\n    type: foo:bar\n",
		"functions:\n  - name: zz:f\n    body: 1\n",
		"collation: urn:unknown-collation\n",
		"namespaces: [",
	}
	for _, str := range tests {
		opts := ContextOptions{
			Config: writeConfig(t, str),
		}
		if _, err := opts.Session(); err == nil {
			t.Errorf("%q: expected error", str)
		}
	}
}

func TestStrictWarnings(t *testing.T) {
	opts := ContextOptions{
		Strict: true,
	}
	sess, err := opts.Session()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	expr := "for $i as xs:integer* in (1, 2) return $i"
	if _, err := sess.Compile(expr); err == nil {
		t.Errorf("strict mode should reject warnings")
	}
	sess.Strict = false
	if _, err := sess.Compile(expr); err != nil {
		t.Errorf("unexpected error: %s", err)
	}
}

func TestTreeOf(t *testing.T) {
	prog, err := xpath.Compile("$a + 1", xpath.NewStaticContext(xpath.WithVariable("a", xpath.SequenceType{})))
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	tree := treeOf(xpath.Export(prog.Root))
	if tree.Tag != "arith" || len(tree.Children) != 2 {
		t.Errorf("unexpected tree: %s", spew.Sdump(tree))
	}
}
