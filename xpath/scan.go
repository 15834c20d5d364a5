package xpath

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

type Position struct {
	Offset int
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

const (
	EOF rune = -(1 + iota)
	Name
	NameWildcard
	LocalWildcard
	Variable
	String
	Integer
	Decimal
	Double
	Invalid
)

const (
	opEq = -(iota + 1000)
	opNe
	opLt
	opLe
	opGt
	opGe
	opBefore
	opAfter
	opComma
	opPipe
	opSlash
	opDslash
	begPred
	endPred
	begGrp
	endGrp
	opAttr
	opDot
	opParent
	opAxis
	opAssign
	opQuestion
	opStar
	opPlus
	opMinus
	opHash
)

var operators = map[rune]string{
	opEq:       "=",
	opNe:       "!=",
	opLt:       "<",
	opLe:       "<=",
	opGt:       ">",
	opGe:       ">=",
	opBefore:   "<<",
	opAfter:    ">>",
	opComma:    ",",
	opPipe:     "|",
	opSlash:    "/",
	opDslash:   "//",
	begPred:    "[",
	endPred:    "]",
	begGrp:     "(",
	endGrp:     ")",
	opAttr:     "@",
	opDot:      ".",
	opParent:   "..",
	opAxis:     "::",
	opAssign:   ":=",
	opQuestion: "?",
	opStar:     "*",
	opPlus:     "+",
	opMinus:    "-",
	opHash:     "#",
}

type Token struct {
	Literal string
	Type    rune
	Position
	End int
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<eof>"
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case NameWildcard, LocalWildcard:
		return fmt.Sprintf("wildcard(%s)", t.Literal)
	case Variable:
		return fmt.Sprintf("variable(%s)", t.Literal)
	case String:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case Integer, Decimal, Double:
		return fmt.Sprintf("number(%s)", t.Literal)
	case Invalid:
		return "<invalid>"
	default:
	}
	if op, ok := operators[t.Type]; ok {
		return fmt.Sprintf("<%s>", op)
	}
	return "<unknown>"
}

// Text returns the source form of the token as it is shown in error messages.
func (t Token) Text() string {
	switch t.Type {
	case EOF:
		return "end of input"
	case Name, NameWildcard, LocalWildcard, Integer, Decimal, Double:
		return t.Literal
	case Variable:
		return "$" + t.Literal
	case String:
		return `"` + t.Literal + `"`
	default:
	}
	if op, ok := operators[t.Type]; ok {
		return op
	}
	return t.Literal
}

// Scanner reads the whole expression up front: the error funnel needs to
// cut snippets out of the source around any offset.
type Scanner struct {
	input string
	char  rune
	curr  int
	next  int
	str   strings.Builder

	err error
}

func Scan(r io.Reader) *Scanner {
	buf, err := io.ReadAll(r)
	scan := Scanner{
		input: string(buf),
		err:   err,
	}
	scan.read()
	return &scan
}

func (s *Scanner) Source() string {
	return s.input
}

func (s *Scanner) Err() error {
	return s.err
}

func (s *Scanner) Scan() Token {
	s.str.Reset()
	if err := s.skipBlank(); err != nil {
		tok := Token{
			Type:     Invalid,
			Literal:  err.Error(),
			Position: s.PositionOf(s.curr),
			End:      len(s.input),
		}
		return tok
	}
	var tok Token
	tok.Position = s.PositionOf(s.curr)
	switch {
	case s.done():
		tok.Type = EOF
	case s.char == dollar:
		s.scanVariable(&tok)
	case s.char == quote || s.char == apos:
		s.scanLiteral(&tok)
	case isDigit(s.char) || (s.char == dot && isDigit(s.peek())):
		s.scanNumber(&tok)
	case s.char == 'Q' && s.peek() == lcurly:
		s.scanBracedName(&tok)
	case isNameStart(s.char):
		s.scanName(&tok)
	case s.char == star && s.peek() == colon:
		s.scanLocalWildcard(&tok)
	default:
		s.scanOperator(&tok)
	}
	tok.End = s.curr
	return tok
}

func (s *Scanner) scanVariable(tok *Token) {
	s.read()
	s.skipSpaces()
	var name Token
	switch {
	case s.char == 'Q' && s.peek() == lcurly:
		s.scanBracedName(&name)
	case isNameStart(s.char):
		s.scanName(&name)
	default:
		name.Type = Invalid
	}
	tok.Type = Variable
	tok.Literal = name.Literal
	if name.Type != Name {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanLiteral(tok *Token) {
	quote := s.char
	s.read()
	for !s.done() {
		if s.char == quote {
			if s.peek() != quote {
				break
			}
			s.read()
		}
		s.write()
		s.read()
	}
	tok.Type = String
	tok.Literal = s.str.String()
	if s.char != quote {
		tok.Type = Invalid
		tok.Literal = "unterminated string literal"
		return
	}
	s.read()
}

func (s *Scanner) scanNumber(tok *Token) {
	tok.Type = Integer
	s.digits()
	if s.char == dot && s.peek() != dot {
		tok.Type = Decimal
		s.write()
		s.read()
		s.digits()
	}
	if s.char == 'e' || s.char == 'E' {
		tok.Type = Double
		s.write()
		s.read()
		if s.char == plus || s.char == dash {
			s.write()
			s.read()
		}
		if !isDigit(s.char) {
			tok.Type = Invalid
			tok.Literal = "invalid exponent in numeric literal"
			return
		}
		s.digits()
	}
	tok.Literal = s.str.String()
	if isNameStart(s.char) {
		tok.Type = Invalid
		tok.Literal = "numeric literal followed by a name"
	}
}

func (s *Scanner) digits() {
	for isDigit(s.char) {
		s.write()
		s.read()
	}
}

func (s *Scanner) scanBracedName(tok *Token) {
	s.write()
	s.read()
	for !s.done() && s.char != rcurly {
		s.write()
		s.read()
	}
	if s.char != rcurly {
		tok.Type = Invalid
		tok.Literal = "unterminated braced uri"
		return
	}
	s.write()
	s.read()
	if s.char == star {
		s.write()
		s.read()
		tok.Type = NameWildcard
		tok.Literal = s.str.String()
		return
	}
	if !isNameStart(s.char) {
		tok.Type = Invalid
		tok.Literal = "missing local name after braced uri"
		return
	}
	s.ncname()
	tok.Type = Name
	tok.Literal = s.str.String()
}

func (s *Scanner) scanName(tok *Token) {
	s.ncname()
	tok.Type = Name
	if s.char == colon {
		switch k := s.peek(); {
		case k == star:
			s.write()
			s.read()
			s.write()
			s.read()
			tok.Type = NameWildcard
		case isNameStart(k):
			s.write()
			s.read()
			s.ncname()
		default:
		}
	}
	tok.Literal = s.str.String()
}

func (s *Scanner) scanLocalWildcard(tok *Token) {
	s.write()
	s.read()
	s.write()
	s.read()
	if !isNameStart(s.char) {
		tok.Type = Invalid
		tok.Literal = "missing local name after *:"
		return
	}
	s.ncname()
	tok.Type = LocalWildcard
	tok.Literal = s.str.String()
}

func (s *Scanner) ncname() {
	for isNameChar(s.char) {
		s.write()
		s.read()
	}
}

func (s *Scanner) scanOperator(tok *Token) {
	k := s.peek()
	switch s.char {
	case equal:
		tok.Type = opEq
	case bang:
		tok.Type = Invalid
		if k == equal {
			tok.Type = opNe
			s.read()
		}
	case langle:
		tok.Type = opLt
		if k == equal {
			tok.Type = opLe
			s.read()
		} else if k == langle {
			tok.Type = opBefore
			s.read()
		}
	case rangle:
		tok.Type = opGt
		if k == equal {
			tok.Type = opGe
			s.read()
		} else if k == rangle {
			tok.Type = opAfter
			s.read()
		}
	case comma:
		tok.Type = opComma
	case pipe:
		tok.Type = opPipe
	case slash:
		tok.Type = opSlash
		if k == slash {
			tok.Type = opDslash
			s.read()
		}
	case lsquare:
		tok.Type = begPred
	case rsquare:
		tok.Type = endPred
	case lparen:
		tok.Type = begGrp
	case rparen:
		tok.Type = endGrp
	case arobase:
		tok.Type = opAttr
	case dot:
		tok.Type = opDot
		if k == dot {
			tok.Type = opParent
			s.read()
		}
	case colon:
		tok.Type = Invalid
		if k == colon {
			tok.Type = opAxis
			s.read()
		} else if k == equal {
			tok.Type = opAssign
			s.read()
		}
	case question:
		tok.Type = opQuestion
	case star:
		tok.Type = opStar
	case plus:
		tok.Type = opPlus
	case dash:
		tok.Type = opMinus
	case hash:
		tok.Type = opHash
	default:
		tok.Type = Invalid
	}
	if tok.Type == Invalid {
		tok.Literal = fmt.Sprintf("unexpected character %q", s.char)
	}
	s.read()
}

// Snippet returns the source text ending at offset, cut to a short window.
// The boolean reports whether the window was truncated.
func (s *Scanner) Snippet(offset int) (string, bool) {
	const window = 32
	offset = min(max(offset, 0), len(s.input))
	start := max(offset-window, 0)
	for start > 0 && !utf8.RuneStart(s.input[start]) {
		start++
	}
	str := strings.Join(strings.Fields(s.input[start:offset]), " ")
	return str, start > 0
}

// PositionOf converts a byte offset into a line and column, both starting
// at 1.
func (s *Scanner) PositionOf(offset int) Position {
	pos := Position{
		Offset: offset,
		Line:   1,
		Column: 1,
	}
	offset = min(max(offset, 0), len(s.input))
	for _, c := range s.input[:offset] {
		if c == nl {
			pos.Line++
			pos.Column = 1
			continue
		}
		pos.Column++
	}
	return pos
}

func (s *Scanner) skipBlank() error {
	for {
		s.skipSpaces()
		if s.char != lparen || s.peek() != colon {
			return nil
		}
		if err := s.skipComment(); err != nil {
			return err
		}
	}
}

func (s *Scanner) skipComment() error {
	var depth int
	for !s.done() {
		switch k := s.peek(); {
		case s.char == lparen && k == colon:
			depth++
			s.read()
		case s.char == colon && k == rparen:
			depth--
			s.read()
		default:
		}
		s.read()
		if depth == 0 {
			return nil
		}
	}
	return fmt.Errorf("unclosed comment")
}

func (s *Scanner) skipSpaces() {
	for unicode.IsSpace(s.char) {
		s.read()
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	s.curr = s.next
	if s.curr >= len(s.input) {
		s.char = utf8.RuneError
		return
	}
	c, z := utf8.DecodeRuneInString(s.input[s.curr:])
	s.char = c
	s.next = s.curr + z
}

func (s *Scanner) peek() rune {
	if s.next >= len(s.input) {
		return utf8.RuneError
	}
	c, _ := utf8.DecodeRuneInString(s.input[s.next:])
	return c
}

func (s *Scanner) done() bool {
	return s.curr >= len(s.input)
}

const (
	langle     = '<'
	rangle     = '>'
	lsquare    = '['
	rsquare    = ']'
	lparen     = '('
	rparen     = ')'
	lcurly     = '{'
	rcurly     = '}'
	colon      = ':'
	quote      = '"'
	apos       = '\''
	slash      = '/'
	question   = '?'
	bang       = '!'
	equal      = '='
	dash       = '-'
	underscore = '_'
	dot        = '.'
	arobase    = '@'
	comma      = ','
	plus       = '+'
	star       = '*'
	pipe       = '|'
	dollar     = '$'
	hash       = '#'
	nl         = '\n'
)

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isNameStart(c rune) bool {
	return c == underscore || (c != utf8.RuneError && unicode.IsLetter(c))
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == dash || c == dot ||
		unicode.Is(unicode.Mn, c)
}
