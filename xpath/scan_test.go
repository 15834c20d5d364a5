package xpath

import (
	"strings"
	"testing"
)

func TestScanner(t *testing.T) {
	data := []struct {
		Input  string
		Tokens []Token
	}{
		{
			Input: "//item[@lang = 'en']",
			Tokens: []Token{
				{Type: opDslash},
				{Type: Name, Literal: "item"},
				{Type: begPred},
				{Type: opAttr},
				{Type: Name, Literal: "lang"},
				{Type: opEq},
				{Type: String, Literal: "en"},
				{Type: endPred},
			},
		},
		{
			Input: "for $x in 1 to 3 return $x * 2.5e1",
			Tokens: []Token{
				{Type: Name, Literal: "for"},
				{Type: Variable, Literal: "x"},
				{Type: Name, Literal: "in"},
				{Type: Integer, Literal: "1"},
				{Type: Name, Literal: "to"},
				{Type: Integer, Literal: "3"},
				{Type: Name, Literal: "return"},
				{Type: Variable, Literal: "x"},
				{Type: opStar},
				{Type: Double, Literal: "2.5e1"},
			},
		},
		{
			Input: "fn:count(*:a, ns:*, Q{urn:x}b) (: comment (: nested :) :)",
			Tokens: []Token{
				{Type: Name, Literal: "fn:count"},
				{Type: begGrp},
				{Type: LocalWildcard, Literal: "*:a"},
				{Type: opComma},
				{Type: NameWildcard, Literal: "ns:*"},
				{Type: opComma},
				{Type: Name, Literal: "Q{urn:x}b"},
				{Type: endGrp},
			},
		},
		{
			Input: "a != b << c >= ..",
			Tokens: []Token{
				{Type: Name, Literal: "a"},
				{Type: opNe},
				{Type: Name, Literal: "b"},
				{Type: opBefore},
				{Type: Name, Literal: "c"},
				{Type: opGe},
				{Type: opParent},
			},
		},
		{
			Input: "concat#2, 'it''s', .5",
			Tokens: []Token{
				{Type: Name, Literal: "concat"},
				{Type: opHash},
				{Type: Integer, Literal: "2"},
				{Type: opComma},
				{Type: String, Literal: "it's"},
				{Type: opComma},
				{Type: Decimal, Literal: ".5"},
			},
		},
		{
			Input: "let $a := child::b/ancestor-or-self::c",
			Tokens: []Token{
				{Type: Name, Literal: "let"},
				{Type: Variable, Literal: "a"},
				{Type: opAssign},
				{Type: Name, Literal: "child"},
				{Type: opAxis},
				{Type: Name, Literal: "b"},
				{Type: opSlash},
				{Type: Name, Literal: "ancestor-or-self"},
				{Type: opAxis},
				{Type: Name, Literal: "c"},
			},
		},
	}
	for _, d := range data {
		scan := Scan(strings.NewReader(d.Input))
		for i, want := range d.Tokens {
			got := scan.Scan()
			if got.Type != want.Type {
				t.Errorf("%s: token %d: want %s, got %s", d.Input, i, want, got)
				break
			}
			if want.Literal != "" && got.Literal != want.Literal {
				t.Errorf("%s: token %d: want literal %q, got %q", d.Input, i, want.Literal, got.Literal)
				break
			}
		}
		if tok := scan.Scan(); tok.Type != EOF {
			t.Errorf("%s: expected end of input, got %s", d.Input, tok)
		}
	}
}

func TestScannerInvalid(t *testing.T) {
	tests := []string{
		"'unterminated",
		"12abc",
		"1e+",
		"Q{urn",
		"(: unterminated comment",
		"a ! b",
		"$",
	}
	for _, str := range tests {
		scan := Scan(strings.NewReader(str))
		var invalid bool
		for tok := scan.Scan(); tok.Type != EOF; tok = scan.Scan() {
			if tok.Type == Invalid {
				invalid = true
				break
			}
		}
		if !invalid {
			t.Errorf("%s: expected invalid token", str)
		}
	}
}

func TestScannerPosition(t *testing.T) {
	scan := Scan(strings.NewReader("1 +\n  $abc"))
	var tok Token
	for i := 0; i < 3; i++ {
		tok = scan.Scan()
	}
	if tok.Type != Variable {
		t.Fatalf("expected variable, got %s", tok)
	}
	if tok.Line != 2 || tok.Column != 3 {
		t.Errorf("wrong position: want 2:3, got %d:%d", tok.Line, tok.Column)
	}
	snippet, near := scan.Snippet(tok.End)
	if near {
		t.Errorf("snippet should not be truncated")
	}
	if snippet != "1 + $abc" {
		t.Errorf("wrong snippet: %q", snippet)
	}
	long := strings.Repeat("a + ", 20) + "b"
	scan = Scan(strings.NewReader(long))
	if _, near := scan.Snippet(len(long)); !near {
		t.Errorf("snippet of long expression should be truncated")
	}
}
