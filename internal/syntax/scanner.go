package syntax

import (
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"modernc.org/token"
)

// Error is a lexical error.
type Error struct {
	Pos Pos
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Scanner splits source text into tokens. Concatenating the Text of every
// token it returns reproduces the input exactly.
type Scanner struct {
	filename string
	src      string
	file     *token.File
	offs     int // offset of the next unread byte
	err      error
}

// NewScanner creates a Scanner over src. The filename is recorded in every
// position the scanner produces.
func NewScanner(filename string, src []byte) *Scanner {
	s := &Scanner{
		filename: filename,
		src:      string(src),
		file:     token.NewFile(filename, len(src)),
	}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' && i+1 < len(src) {
			s.file.AddLine(i + 1)
		}
	}
	return s
}

// Tokenize scans all of src and returns its tokens.
func Tokenize(filename string, src []byte) ([]Token, error) {
	s := NewScanner(filename, src)
	var toks []Token
	for {
		t, err := s.Next()
		if err == io.EOF {
			return toks, nil
		}
		if err != nil {
			return toks, err
		}
		toks = append(toks, t)
	}
}

// PosAt converts a byte offset into a full position.
func (s *Scanner) PosAt(offs int) Pos {
	p := s.file.PositionFor(s.file.Pos(offs), false)
	return Pos{Filename: s.filename, Line: p.Line, Column: p.Column, Offset: offs}
}

// Next returns the next token, or io.EOF once the input is exhausted.
// After a lexical error every further call returns the same error.
func (s *Scanner) Next() (Token, error) {
	if s.err != nil {
		return Token{}, s.err
	}
	if s.offs >= len(s.src) {
		return Token{}, io.EOF
	}
	start := s.offs
	t, err := s.scan()
	if err != nil {
		s.err = err
		return Token{}, err
	}
	t.Text = s.src[start:s.offs]
	t.Start = s.PosAt(start)
	t.End = s.PosAt(s.offs)
	return t, nil
}

func (s *Scanner) errorf(offs int, format string, args ...any) error {
	return &Error{Pos: s.PosAt(offs), Msg: fmt.Sprintf(format, args...)}
}

func (s *Scanner) peek() (rune, int) {
	if s.offs >= len(s.src) {
		return -1, 0
	}
	return utf8.DecodeRuneInString(s.src[s.offs:])
}

func (s *Scanner) scan() (Token, error) {
	ch, w := s.peek()
	switch {
	case isSpace(ch):
		for isSpace(ch) {
			s.offs += w
			ch, w = s.peek()
		}
		return Token{Kind: Whitespace}, nil

	case ch == '%':
		if i := strings.IndexByte(s.src[s.offs:], '\n'); i >= 0 {
			s.offs += i
		} else {
			s.offs = len(s.src)
		}
		return Token{Kind: Comment}, nil

	case unicode.IsLower(ch):
		start := s.offs
		s.scanName()
		return Token{Kind: Atom, Value: s.src[start:s.offs]}, nil

	case unicode.IsUpper(ch) || ch == '_':
		start := s.offs
		s.scanName()
		return Token{Kind: Variable, Value: s.src[start:s.offs]}, nil

	case ch == '\'':
		v, err := s.scanQuoted('\'')
		return Token{Kind: Atom, Value: v}, err

	case ch == '"':
		v, err := s.scanQuoted('"')
		return Token{Kind: String, Value: v}, err

	case ch == '$':
		return s.scanChar()

	case isDigit(ch):
		return s.scanNumber()
	}

	if sym := lookupSym(s.src[s.offs:]); sym != NoSym {
		s.offs += len(symNames[sym])
		return Token{Kind: Symbol, Sym: sym}, nil
	}
	return Token{}, s.errorf(s.offs, "unexpected character %q", ch)
}

func (s *Scanner) scanName() {
	ch, w := s.peek()
	for isNamePart(ch) {
		s.offs += w
		ch, w = s.peek()
	}
}

func (s *Scanner) scanQuoted(quote rune) (string, error) {
	start := s.offs
	s.offs++
	var b strings.Builder
	for {
		ch, w := s.peek()
		switch ch {
		case -1:
			if quote == '"' {
				return "", s.errorf(start, "unterminated string")
			}
			return "", s.errorf(start, "unterminated quoted atom")
		case quote:
			s.offs += w
			return b.String(), nil
		case '\\':
			r, err := s.scanEscape()
			if err != nil {
				return "", err
			}
			b.WriteRune(r)
		default:
			s.offs += w
			b.WriteRune(ch)
		}
	}
}

func (s *Scanner) scanChar() (Token, error) {
	start := s.offs
	s.offs++
	ch, w := s.peek()
	switch ch {
	case -1:
		return Token{}, s.errorf(start, "unterminated character literal")
	case '\\':
		r, err := s.scanEscape()
		if err != nil {
			return Token{}, err
		}
		return Token{Kind: Char, Value: string(r)}, nil
	}
	s.offs += w
	return Token{Kind: Char, Value: string(ch)}, nil
}

// scanEscape decodes the escape sequence starting at the backslash under
// the cursor.
func (s *Scanner) scanEscape() (rune, error) {
	start := s.offs
	s.offs++
	ch, w := s.peek()
	if ch < 0 {
		return 0, s.errorf(start, "unterminated escape sequence")
	}
	s.offs += w
	switch ch {
	case 'b':
		return '\b', nil
	case 'd':
		return 0x7f, nil
	case 'e':
		return 0x1b, nil
	case 'f':
		return '\f', nil
	case 'n':
		return '\n', nil
	case 'r':
		return '\r', nil
	case 's':
		return ' ', nil
	case 't':
		return '\t', nil
	case 'v':
		return '\v', nil
	case '^':
		c, w := s.peek()
		if c < 0 {
			return 0, s.errorf(start, "unterminated escape sequence")
		}
		s.offs += w
		return c & 0x1f, nil
	case 'x':
		if c, _ := s.peek(); c == '{' {
			end := strings.IndexByte(s.src[s.offs:], '}')
			if end < 0 {
				return 0, s.errorf(start, "unterminated escape sequence")
			}
			v, ok := parseDigits(s.src[s.offs+1:s.offs+end], 16)
			if !ok {
				return 0, s.errorf(start, "invalid hexadecimal escape")
			}
			s.offs += end + 1
			return rune(v), nil
		}
		if s.offs+2 > len(s.src) {
			return 0, s.errorf(start, "invalid hexadecimal escape")
		}
		v, ok := parseDigits(s.src[s.offs:s.offs+2], 16)
		if !ok {
			return 0, s.errorf(start, "invalid hexadecimal escape")
		}
		s.offs += 2
		return rune(v), nil
	}
	if '0' <= ch && ch <= '7' {
		v := int(ch - '0')
		for i := 0; i < 2; i++ {
			c, _ := s.peek()
			if c < '0' || c > '7' {
				break
			}
			v = v*8 + int(c-'0')
			s.offs++
		}
		return rune(v), nil
	}
	return ch, nil
}

func (s *Scanner) scanNumber() (Token, error) {
	start := s.offs
	s.scanDigits(10)
	ch, _ := s.peek()
	if ch == '#' {
		base, ok := parseDigits(strings.ReplaceAll(s.src[start:s.offs], "_", ""), 10)
		if !ok || base < 2 || base > 36 {
			return Token{}, s.errorf(s.offs, "invalid integer base")
		}
		s.offs++
		if !s.scanDigits(base) {
			return Token{}, s.errorf(s.offs, "missing digits after base")
		}
		return Token{Kind: Integer}, nil
	}
	if ch == '.' && s.offs+1 < len(s.src) && isDigit(rune(s.src[s.offs+1])) {
		s.offs++
		s.scanDigits(10)
		if c, _ := s.peek(); c == 'e' || c == 'E' {
			save := s.offs
			s.offs++
			if c, _ := s.peek(); c == '+' || c == '-' {
				s.offs++
			}
			if !s.scanDigits(10) {
				s.offs = save
			}
		}
		return Token{Kind: Float}, nil
	}
	return Token{Kind: Integer}, nil
}

// scanDigits consumes digits of the given base, allowing single
// underscores between them. It reports whether any digit was consumed.
func (s *Scanner) scanDigits(base int) bool {
	n := 0
	for s.offs < len(s.src) {
		c := s.src[s.offs]
		if c == '_' && n > 0 && s.offs+1 < len(s.src) && digitVal(s.src[s.offs+1]) < base {
			s.offs++
			continue
		}
		if digitVal(c) >= base {
			break
		}
		s.offs++
		n++
	}
	return n > 0
}

func parseDigits(s string, base int) (int, bool) {
	if s == "" {
		return 0, false
	}
	v := 0
	for i := 0; i < len(s); i++ {
		d := digitVal(s[i])
		if d >= base {
			return 0, false
		}
		v = v*base + d
	}
	return v, true
}

func digitVal(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'z':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'Z':
		return int(c-'A') + 10
	}
	return 36
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v' || r == 0xa0
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isNamePart(r rune) bool {
	return r == '_' || r == '@' || isDigit(r) || unicode.IsLetter(r)
}
