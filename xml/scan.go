package xml

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"unicode"
	"unicode/utf8"
)

const (
	EOF rune = -(1 + iota)
	Name
	NamespaceDecl // name:
	Attr      // name=
	Literal
	Cdata
	CommentTag   // <!--
	OpenTag      // <
	EndTag       // >
	CloseTag     // </
	EmptyElemTag // />
	ProcInstTag  // <?name content?>
	Invalid
)

type Position struct {
	Line   int
	Column int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

type Token struct {
	Literal string
	Extra   string
	Type    rune
	Position
}

func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "<eof>"
	case CommentTag:
		return fmt.Sprintf("comment(%s)", t.Literal)
	case Name:
		return fmt.Sprintf("name(%s)", t.Literal)
	case NamespaceDecl:
		return fmt.Sprintf("namespace(%s)", t.Literal)
	case Attr:
		return fmt.Sprintf("attr(%s)", t.Literal)
	case Cdata:
		return fmt.Sprintf("chardata(%s)", t.Literal)
	case Literal:
		return fmt.Sprintf("literal(%s)", t.Literal)
	case OpenTag:
		return "<open-elem-tag>"
	case EndTag:
		return "<end-elem-tag>"
	case CloseTag:
		return "<close-elem-tag>"
	case EmptyElemTag:
		return "<empty-elem-tag>"
	case ProcInstTag:
		return fmt.Sprintf("pi(%s)", t.Literal)
	default:
		return "<invalid>"
	}
}

const (
	langle     = '<'
	rangle     = '>'
	lsquare    = '['
	rsquare    = ']'
	colon      = ':'
	quote      = '"'
	apos       = '\''
	slash      = '/'
	question   = '?'
	bang       = '!'
	equal      = '='
	ampersand  = '&'
	semicolon  = ';'
	dash       = '-'
	underscore = '_'
	dot        = '.'
)

type state int8

const (
	markupState state = iota
	contentState
)

// Scanner splits a document into markup and content tokens. Inside a tag
// it produces names, attribute names and quoted values; between tags it
// produces raw text with entities already replaced.
type Scanner struct {
	input *bufio.Reader
	char  rune
	str   bytes.Buffer

	Position
	state
}

func Scan(r io.Reader) *Scanner {
	var (
		rs    = bufio.NewReader(r)
		pk, _ = rs.Peek(3)
	)
	if bytes.Equal(pk, []byte{0xEF, 0xBB, 0xBF}) {
		rs.Discard(3)
	}
	scan := &Scanner{
		input: rs,
		state: contentState,
	}
	scan.Line = 1
	scan.read()
	return scan
}

func (s *Scanner) Scan() Token {
	var tok Token
	tok.Position = s.Position
	if s.done() {
		tok.Type = EOF
		return tok
	}
	s.str.Reset()
	if s.state == contentState && s.char != langle {
		s.scanText(&tok)
		return tok
	}
	if s.state == markupState {
		s.skipBlank()
		tok.Position = s.Position
	}
	switch {
	case s.char == langle:
		s.scanOpeningTag(&tok)
	case s.char == rangle:
		tok.Type = EndTag
		s.state = contentState
		s.read()
	case s.char == slash:
		s.read()
		tok.Type = EmptyElemTag
		if s.char != rangle {
			tok.Type = Invalid
			break
		}
		s.state = contentState
		s.read()
	case s.char == quote || s.char == apos:
		s.scanValue(&tok)
	case isNameStart(s.char):
		s.scanName(&tok)
	default:
		tok.Type = Invalid
		s.read()
	}
	return tok
}

func (s *Scanner) scanOpeningTag(tok *Token) {
	s.read()
	tok.Type = OpenTag
	s.state = markupState
	switch s.char {
	case bang:
		s.read()
		if s.char == lsquare {
			s.scanCharData(tok)
		} else if s.char == dash {
			s.scanComment(tok)
		} else {
			tok.Type = Invalid
		}
		s.state = contentState
	case question:
		s.read()
		s.scanInstruction(tok)
		s.state = contentState
	case slash:
		tok.Type = CloseTag
		s.read()
	default:
	}
}

func (s *Scanner) scanInstruction(tok *Token) {
	for !s.done() && isNameChar(s.char) {
		s.write()
		s.read()
	}
	tok.Literal = s.str.String()
	s.str.Reset()
	s.skipBlank()
	var done bool
	for !s.done() {
		if s.char == question && s.peek() == rangle {
			s.read()
			s.read()
			done = true
			break
		}
		s.write()
		s.read()
	}
	tok.Extra = s.str.String()
	tok.Type = ProcInstTag
	if !done || tok.Literal == "" {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanComment(tok *Token) {
	s.read()
	if s.char != dash {
		tok.Type = Invalid
		return
	}
	s.read()
	var done bool
	for !s.done() {
		if s.char == dash && s.peek() == dash {
			s.read()
			s.read()
			if done = s.char == rangle; done {
				s.read()
				break
			}
			s.str.WriteString("--")
			continue
		}
		s.write()
		s.read()
	}
	tok.Literal = s.str.String()
	tok.Type = CommentTag
	if !done {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanCharData(tok *Token) {
	s.read()
	for !s.done() && s.char != lsquare {
		s.write()
		s.read()
	}
	s.read()
	if s.str.String() != "CDATA" {
		tok.Type = Invalid
		return
	}
	s.str.Reset()
	var done bool
	for !s.done() {
		if s.char == rsquare && s.peek() == rsquare {
			s.read()
			s.read()
			if done = s.char == rangle; done {
				s.read()
				break
			}
			s.str.WriteString("]]")
			continue
		}
		s.write()
		s.read()
	}
	tok.Literal = s.str.String()
	tok.Type = Cdata
	if !done {
		tok.Type = Invalid
	}
}

func (s *Scanner) scanValue(tok *Token) {
	delim := s.char
	s.read()
	for !s.done() && s.char != delim {
		if s.char == ampersand {
			str, err := s.scanEntity()
			if err != nil {
				tok.Type = Invalid
				return
			}
			s.str.WriteString(str)
			continue
		}
		s.write()
		s.read()
	}
	tok.Type = Literal
	tok.Literal = s.str.String()
	if s.char != delim {
		tok.Type = Invalid
	}
	s.read()
}

func (s *Scanner) scanText(tok *Token) {
	for !s.done() && s.char != langle {
		if s.char == ampersand {
			str, err := s.scanEntity()
			if err != nil {
				tok.Type = Invalid
				return
			}
			s.str.WriteString(str)
			continue
		}
		s.write()
		s.read()
	}
	tok.Type = Literal
	tok.Literal = s.str.String()
}

var errEntity = errors.New("invalid entity reference")

func (s *Scanner) scanEntity() (string, error) {
	var str bytes.Buffer
	str.WriteRune(s.char)
	s.read()
	for !s.done() && s.char != semicolon && str.Len() < 16 {
		str.WriteRune(s.char)
		s.read()
	}
	if s.char != semicolon {
		return "", errEntity
	}
	str.WriteRune(semicolon)
	s.read()
	return html.UnescapeString(str.String()), nil
}

func (s *Scanner) scanName(tok *Token) {
	for !s.done() && isNameChar(s.char) {
		s.write()
		s.read()
	}
	tok.Type = Name
	tok.Literal = s.str.String()
	s.skipBlank()
	if s.char == equal {
		tok.Type = Attr
		s.read()
		s.skipBlank()
	} else if s.char == colon {
		tok.Type = NamespaceDecl
		s.read()
	}
}

func (s *Scanner) write() {
	s.str.WriteRune(s.char)
}

func (s *Scanner) read() {
	if s.char == '\n' {
		s.Column = 0
		s.Line++
	}
	s.Column++
	char, _, err := s.input.ReadRune()
	if err != nil {
		char = utf8.RuneError
	}
	s.char = char
}

func (s *Scanner) peek() rune {
	defer s.input.UnreadRune()
	r, _, _ := s.input.ReadRune()
	return r
}

func (s *Scanner) done() bool {
	return s.char == utf8.RuneError
}

func (s *Scanner) skipBlank() {
	for !s.done() && unicode.IsSpace(s.char) {
		s.read()
	}
}

func isNameStart(c rune) bool {
	return unicode.IsLetter(c) || c == underscore
}

func isNameChar(c rune) bool {
	return isNameStart(c) || unicode.IsDigit(c) || c == dash || c == dot
}
