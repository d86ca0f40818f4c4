package preprocessor

import (
	"errors"
	"io"

	"github.com/fwessels/erlpp/internal/syntax"
)

// TokenSource supplies tokens in source order. Next returns io.EOF once
// the source is exhausted.
type TokenSource interface {
	Next() (syntax.Token, error)
}

type entry struct {
	tok   syntax.Token
	depth int // expansion depth, 0 for tokens from the source
}

// Reader is a buffered, rewindable cursor over a TokenSource. Begin opens
// a transaction that remembers the cursor; Abort rewinds to it and Commit
// keeps everything consumed since. Transactions nest. Tokens before the
// outermost open transaction are released once no transaction is open.
type Reader struct {
	src   TokenSource
	buf   []entry
	pos   int   // index of the next entry in buf
	marks []int // cursor saved by each open transaction
	depth int   // expansion depth of the last token read
	last  syntax.Pos
	eof   bool
	err   error
}

// NewReader returns a Reader pulling from src.
func NewReader(src TokenSource) *Reader {
	return &Reader{src: src}
}

// fill makes sure buf[pos] exists unless the source is exhausted.
func (r *Reader) fill() error {
	if r.pos < len(r.buf) {
		return nil
	}
	if r.err != nil {
		return r.err
	}
	if r.eof {
		return io.EOF
	}
	t, err := r.src.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.eof = true
			return io.EOF
		}
		r.err = err
		return err
	}
	r.last = t.End
	r.buf = append(r.buf, entry{tok: t})
	return nil
}

func (r *Reader) eofToken() syntax.Token {
	return syntax.Token{Kind: syntax.EOF, Start: r.last, End: r.last}
}

// Peek returns the next token without consuming it.
func (r *Reader) Peek() (syntax.Token, error) {
	if err := r.fill(); err != nil {
		return r.eofToken(), err
	}
	return r.buf[r.pos].tok, nil
}

// Read consumes and returns the next token, trivia included. At the end
// of input it returns an EOF token positioned after the last token, and
// io.EOF.
func (r *Reader) Read() (syntax.Token, error) {
	if err := r.fill(); err != nil {
		return r.eofToken(), err
	}
	e := r.buf[r.pos]
	r.pos++
	r.depth = e.depth
	r.release()
	return e.tok, nil
}

// Depth returns the expansion depth of the token most recently read.
func (r *Reader) Depth() int {
	return r.depth
}

// Position returns the start of the next token, or the end of input.
func (r *Reader) Position() syntax.Pos {
	t, _ := r.Peek()
	return t.Start
}

// release drops consumed entries once no transaction can rewind to them.
func (r *Reader) release() {
	if len(r.marks) > 0 || r.pos == 0 {
		return
	}
	n := copy(r.buf, r.buf[r.pos:])
	clear(r.buf[n:])
	r.buf = r.buf[:n]
	r.pos = 0
}

// Begin opens a transaction at the current cursor.
func (r *Reader) Begin() {
	r.marks = append(r.marks, r.pos)
}

// Abort closes the innermost transaction and rewinds the cursor to where
// it was opened.
func (r *Reader) Abort() {
	top := len(r.marks) - 1
	r.pos = r.marks[top]
	r.marks = r.marks[:top]
	r.release()
}

// Commit closes the innermost transaction, keeping the cursor, and
// returns the tokens consumed inside it.
func (r *Reader) Commit() []syntax.Token {
	top := len(r.marks) - 1
	start := r.marks[top]
	r.marks = r.marks[:top]
	toks := make([]syntax.Token, 0, r.pos-start)
	for _, e := range r.buf[start:r.pos] {
		toks = append(toks, e.tok)
	}
	r.release()
	return toks
}

// InTransaction reports whether a transaction is open.
func (r *Reader) InTransaction() bool {
	return len(r.marks) > 0
}

// Unread pushes t back so that the next Read returns it again. When t is
// the token just read the cursor simply steps back.
func (r *Reader) Unread(t syntax.Token) {
	if r.pos > 0 {
		prev := r.buf[r.pos-1].tok
		if prev.Start == t.Start && prev.Text == t.Text && prev.Kind == t.Kind {
			r.pos--
			return
		}
	}
	r.Push([]syntax.Token{t}, r.depth)
}

// Push inserts toks before the next token, tagged with the given
// expansion depth.
func (r *Reader) Push(toks []syntax.Token, depth int) {
	if len(toks) == 0 {
		return
	}
	ins := make([]entry, len(toks))
	for i, t := range toks {
		ins[i] = entry{tok: t, depth: depth}
	}
	r.buf = append(r.buf[:r.pos], append(ins, r.buf[r.pos:]...)...)
}

// SkipTrivia advances past whitespace and comment tokens.
func (r *Reader) SkipTrivia() error {
	for {
		t, err := r.Peek()
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		if !t.IsTrivia() {
			return nil
		}
		r.Read()
	}
}

// ReadNonTrivia skips trivia and reads the following token.
func (r *Reader) ReadNonTrivia() (syntax.Token, error) {
	if err := r.SkipTrivia(); err != nil {
		return r.eofToken(), err
	}
	return r.Read()
}

// ReadOrFail is ReadNonTrivia with the end of input reported as a syntax
// error.
func (r *Reader) ReadOrFail() (syntax.Token, error) {
	t, err := r.ReadNonTrivia()
	if err == io.EOF {
		return t, errorf(SyntaxError, t.Start, "unexpected end of input")
	}
	return t, err
}

// ExpectSymbol reads the next non-trivia token and fails unless it is sym.
func (r *Reader) ExpectSymbol(sym syntax.Sym) (syntax.Token, error) {
	t, err := r.ReadNonTrivia()
	if err == io.EOF {
		return t, errorf(SyntaxError, t.Start, "expected %q, found end of input", sym.String())
	}
	if err != nil {
		return t, err
	}
	if !t.IsSymbol(sym) {
		return t, errorf(SyntaxError, t.Start, "expected %q, found %q", sym.String(), t.Text)
	}
	return t, nil
}

// ExpectAtom reads the next non-trivia token and fails unless it is the
// atom name.
func (r *Reader) ExpectAtom(name string) (syntax.Token, error) {
	t, err := r.ReadNonTrivia()
	if err == io.EOF {
		return t, errorf(SyntaxError, t.Start, "expected %q, found end of input", name)
	}
	if err != nil {
		return t, err
	}
	if !t.IsAtom(name) {
		return t, errorf(SyntaxError, t.Start, "expected %q, found %q", name, t.Text)
	}
	return t, nil
}

// ExpectKind reads the next non-trivia token and fails unless it has the
// given kind.
func (r *Reader) ExpectKind(kind syntax.Kind) (syntax.Token, error) {
	t, err := r.ReadNonTrivia()
	if err == io.EOF {
		return t, errorf(SyntaxError, t.Start, "expected %s, found end of input", kind)
	}
	if err != nil {
		return t, err
	}
	if t.Kind != kind {
		return t, errorf(SyntaxError, t.Start, "expected %s, found %q", kind, t.Text)
	}
	return t, nil
}

// TrySymbol consumes the next non-trivia token if it is sym. On a
// mismatch nothing is consumed, trivia included, and ok is false.
func (r *Reader) TrySymbol(sym syntax.Sym) (t syntax.Token, ok bool, err error) {
	r.Begin()
	t, err = r.ReadNonTrivia()
	if err == nil && t.IsSymbol(sym) {
		r.Commit()
		return t, true, nil
	}
	r.Abort()
	if err == io.EOF {
		err = nil
	}
	return syntax.Token{}, false, err
}

// TryAtom is TrySymbol for atoms.
func (r *Reader) TryAtom(name string) (t syntax.Token, ok bool, err error) {
	r.Begin()
	t, err = r.ReadNonTrivia()
	if err == nil && t.IsAtom(name) {
		r.Commit()
		return t, true, nil
	}
	r.Abort()
	if err == io.EOF {
		err = nil
	}
	return syntax.Token{}, false, err
}
