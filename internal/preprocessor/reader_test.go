package preprocessor

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fwessels/erlpp/internal/syntax"
)

// sliceSource replays a fixed token slice.
type sliceSource struct {
	toks []syntax.Token
}

func (s *sliceSource) Next() (syntax.Token, error) {
	if len(s.toks) == 0 {
		return syntax.Token{}, io.EOF
	}
	t := s.toks[0]
	s.toks = s.toks[1:]
	return t, nil
}

func newTestReader(t *testing.T, src string) *Reader {
	t.Helper()
	toks, err := syntax.Tokenize("r.erl", []byte(src))
	if err != nil {
		t.Fatal(err)
	}
	return NewReader(&sliceSource{toks: toks})
}

// readRest drains r and returns the text of the non-trivia tokens.
func readRest(t *testing.T, r *Reader) []string {
	t.Helper()
	var out []string
	for {
		tok, err := r.ReadNonTrivia()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, tok.Text)
	}
}

func TestReaderAbortRewinds(t *testing.T) {
	r := newTestReader(t, "a b c")
	r.Begin()
	r.ReadNonTrivia()
	r.ReadNonTrivia()
	r.Abort()
	if r.InTransaction() {
		t.Fatal("transaction still open after Abort")
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderCommitKeeps(t *testing.T) {
	r := newTestReader(t, "a b c")
	r.Begin()
	r.ReadNonTrivia()
	r.ReadNonTrivia()
	got := syntax.Text(r.Commit())
	if got != "a b" {
		t.Errorf("committed %q, want %q", got, "a b")
	}
	if diff := cmp.Diff([]string{"c"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderNestedTransactions(t *testing.T) {
	r := newTestReader(t, "a b c d")
	r.Begin()
	r.ReadNonTrivia() // a
	r.Begin()
	r.ReadNonTrivia() // b
	r.Begin()
	r.ReadNonTrivia() // c
	r.Abort()         // back before c
	r.Commit()        // keep b
	r.Abort()         // back before a
	if diff := cmp.Diff([]string{"a", "b", "c", "d"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	r = newTestReader(t, "a b c d")
	r.Begin()
	r.ReadNonTrivia() // a
	r.Begin()
	r.ReadNonTrivia() // b
	r.Commit()
	r.Commit()
	if diff := cmp.Diff([]string{"c", "d"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderPushAndUnread(t *testing.T) {
	r := newTestReader(t, "a b")
	a, _ := r.ReadNonTrivia()
	r.Unread(a)
	again, _ := r.Read()
	if again.Text != "a" || r.Depth() != 0 {
		t.Fatalf("after Unread read %q at depth %d", again.Text, r.Depth())
	}

	x := syntax.Token{Kind: syntax.Atom, Text: "x", Value: "x"}
	y := syntax.Token{Kind: syntax.Atom, Text: "y", Value: "y"}
	r.Push([]syntax.Token{x, y}, 3)
	got, _ := r.Read()
	if got.Text != "x" || r.Depth() != 3 {
		t.Errorf("read %q at depth %d, want x at depth 3", got.Text, r.Depth())
	}
	if diff := cmp.Diff([]string{"y", "b"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderPushInsideTransaction(t *testing.T) {
	r := newTestReader(t, "a b")
	r.Begin()
	r.ReadNonTrivia()
	r.Push([]syntax.Token{{Kind: syntax.Atom, Text: "x", Value: "x"}}, 1)
	r.Abort()
	if diff := cmp.Diff([]string{"a", "x", "b"}, readRest(t, r)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderTrySymbol(t *testing.T) {
	r := newTestReader(t, "  ( x")
	if _, ok, err := r.TrySymbol(syntax.Comma); ok || err != nil {
		t.Fatalf("TrySymbol(,) = %v, %v", ok, err)
	}
	if tok, _ := r.Peek(); tok.Kind != syntax.Whitespace {
		t.Fatalf("failed TrySymbol consumed trivia, next is %q", tok.Text)
	}
	if _, ok, err := r.TrySymbol(syntax.OpenParen); !ok || err != nil {
		t.Fatalf("TrySymbol(() = %v, %v", ok, err)
	}
	if _, ok, err := r.TryAtom("y"); ok || err != nil {
		t.Fatalf("TryAtom(y) = %v, %v", ok, err)
	}
	if _, ok, err := r.TryAtom("x"); !ok || err != nil {
		t.Fatalf("TryAtom(x) = %v, %v", ok, err)
	}
	if _, ok, err := r.TrySymbol(syntax.Dot); ok || err != nil {
		t.Fatalf("TrySymbol at end = %v, %v", ok, err)
	}
}

func TestReaderExpect(t *testing.T) {
	r := newTestReader(t, "( foo")
	if _, err := r.ExpectSymbol(syntax.OpenParen); err != nil {
		t.Fatal(err)
	}
	_, err := r.ExpectSymbol(syntax.CloseParen)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("got %v, want a syntax error", err)
	}
	if diff := cmp.Diff(`r.erl:1:3: expected ")", found "foo"`, err.Error()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	_, err = r.ExpectAtom("bar")
	if diff := cmp.Diff(`r.erl:1:6: expected "bar", found end of input`, err.Error()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderEOF(t *testing.T) {
	r := newTestReader(t, "ab")
	r.Read()
	tok, err := r.Read()
	if err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
	want := syntax.Pos{Filename: "r.erl", Line: 1, Column: 3, Offset: 2}
	if tok.Kind != syntax.EOF || tok.Start != want {
		t.Errorf("got %v at %v, want EOF at %v", tok.Kind, tok.Start, want)
	}
	if _, err := r.ReadOrFail(); !errors.Is(err, ErrSyntax) {
		t.Errorf("ReadOrFail at end = %v, want a syntax error", err)
	}
}

type failingSource struct{ err error }

func (s failingSource) Next() (syntax.Token, error) { return syntax.Token{}, s.err }

func TestReaderSourceError(t *testing.T) {
	boom := errors.New("boom")
	r := NewReader(failingSource{boom})
	if _, err := r.Read(); err != boom {
		t.Fatalf("got %v, want %v", err, boom)
	}
	if _, err := r.Peek(); err != boom {
		t.Fatalf("error not sticky: %v", err)
	}
}
