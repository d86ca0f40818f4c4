// Package syntax implements lexical analysis for Erlang-style source text
// consumed by the preprocessor.
package syntax

import (
	"fmt"
	"strings"
)

// Kind represents the lexical class of a token.
type Kind uint8

const (
	EOF Kind = iota // end of file

	Atom       // foo, 'quoted atom'
	Variable   // Foo, _Bar
	Symbol     // ( ) . , -> ?? ...
	String     // "text"
	Integer    // 10, 16#ff, 1_000
	Float      // 1.5, 2.0e-3
	Char       // $a, $\n
	Comment    // % to end of line
	Whitespace // maximal run of blanks and newlines

	kindCount
)

var kindNames = [...]string{
	EOF:        "EOF",
	Atom:       "atom",
	Variable:   "variable",
	Symbol:     "symbol",
	String:     "string",
	Integer:    "integer",
	Float:      "float",
	Char:       "char",
	Comment:    "comment",
	Whitespace: "whitespace",
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// Sym identifies a symbol token.
type Sym uint8

const (
	NoSym Sym = iota

	OpenParen         // (
	CloseParen        // )
	OpenSquare        // [
	CloseSquare       // ]
	OpenBrace         // {
	CloseBrace        // }
	Sharp             // #
	Slash             // /
	Dot               // .
	DoubleDot         // ..
	TripleDot         // ...
	Comma             // ,
	Colon             // :
	DoubleColon       // ::
	Semicolon         // ;
	Match             // =
	MapMatch          // :=
	MaybeMatch        // ?=
	VerticalBar       // |
	DoubleVerticalBar // ||
	Question          // ?
	DoubleQuestion    // ??
	Not               // !
	Hyphen            // -
	MinusMinus        // --
	Plus              // +
	PlusPlus          // ++
	Multiply          // *
	RightArrow        // ->
	LeftArrow         // <-
	DoubleRightArrow  // =>
	DoubleLeftArrow   // <=
	DoubleRightAngle  // >>
	DoubleLeftAngle   // <<
	Eq                // ==
	ExactEq           // =:=
	NotEq             // /=
	ExactNotEq        // =/=
	Greater           // >
	GreaterEq         // >=
	Less              // <
	LessEq            // =<

	symCount
)

var symNames = [...]string{
	NoSym:             "",
	OpenParen:         "(",
	CloseParen:        ")",
	OpenSquare:        "[",
	CloseSquare:       "]",
	OpenBrace:         "{",
	CloseBrace:        "}",
	Sharp:             "#",
	Slash:             "/",
	Dot:               ".",
	DoubleDot:         "..",
	TripleDot:         "...",
	Comma:             ",",
	Colon:             ":",
	DoubleColon:       "::",
	Semicolon:         ";",
	Match:             "=",
	MapMatch:          ":=",
	MaybeMatch:        "?=",
	VerticalBar:       "|",
	DoubleVerticalBar: "||",
	Question:          "?",
	DoubleQuestion:    "??",
	Not:               "!",
	Hyphen:            "-",
	MinusMinus:        "--",
	Plus:              "+",
	PlusPlus:          "++",
	Multiply:          "*",
	RightArrow:        "->",
	LeftArrow:         "<-",
	DoubleRightArrow:  "=>",
	DoubleLeftArrow:   "<=",
	DoubleRightAngle:  ">>",
	DoubleLeftAngle:   "<<",
	Eq:                "==",
	ExactEq:           "=:=",
	NotEq:             "/=",
	ExactNotEq:        "=/=",
	Greater:           ">",
	GreaterEq:         ">=",
	Less:              "<",
	LessEq:            "=<",
}

// String returns the source text of the symbol.
func (s Sym) String() string {
	if s < symCount {
		return symNames[s]
	}
	return fmt.Sprintf("sym(%d)", s)
}

// lookupSym returns the longest symbol that prefixes src, or NoSym.
func lookupSym(src string) Sym {
	best := NoSym
	for s := OpenParen; s < symCount; s++ {
		name := symNames[s]
		if len(name) > len(symNames[best]) && strings.HasPrefix(src, name) {
			best = s
		}
	}
	return best
}

// Token is a single lexical token together with its exact source text and
// the span it occupies. Tokens are immutable once produced.
type Token struct {
	Kind  Kind
	Sym   Sym    // valid when Kind == Symbol
	Text  string // exact source text
	Value string // decoded value for strings, chars and quoted atoms
	Start Pos    // position of the first byte
	End   Pos    // position just past the last byte
}

// IsTrivia reports whether t is whitespace or a comment.
func (t Token) IsTrivia() bool {
	return t.Kind == Whitespace || t.Kind == Comment
}

// IsSymbol reports whether t is the symbol s.
func (t Token) IsSymbol(s Sym) bool {
	return t.Kind == Symbol && t.Sym == s
}

// IsAtom reports whether t is an atom whose value is name.
func (t Token) IsAtom(name string) bool {
	return t.Kind == Atom && t.Value == name
}

// IsName reports whether t can name a macro: an atom or a variable.
func (t Token) IsName() bool {
	return t.Kind == Atom || t.Kind == Variable
}

// String returns a short debugging representation of the token.
func (t Token) String() string {
	return fmt.Sprintf("%s %s %q", t.Start, t.Kind, t.Text)
}

// NewString synthesizes a string token whose decoded value is value.
// Both Start and End are set to pos; the token has no source extent.
func NewString(value string, pos Pos) Token {
	return Token{
		Kind:  String,
		Text:  Quote(value),
		Value: value,
		Start: pos,
		End:   pos,
	}
}

// Quote returns value as a double-quoted string literal.
func Quote(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// Text concatenates the source text of toks.
func Text(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}
