package preprocessor

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fwessels/erlpp/internal/syntax"
)

func TestPreprocess(t *testing.T) {
	for _, tt := range ppTests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ppDrain(tt.input, Config{})
			if err != nil {
				t.Fatalf("preprocess error: %v", err)
			}
			if diff := cmp.Diff(tt.output, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBadPreprocess(t *testing.T) {
	for _, tt := range badPPTests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ppDrain(tt.input, Config{})
			if err == nil {
				t.Fatalf("expected error %q", tt.error)
			}
			if diff := cmp.Diff(tt.error, err.Error()); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if tt.kind != nil && !errors.Is(err, tt.kind) {
				t.Errorf("error %v is not %v", err, tt.kind)
			}
		})
	}
}

// ppDrain preprocesses input and joins the text of the non-trivia output
// tokens with single spaces.
func ppDrain(input string, cfg Config) (string, error) {
	pp, err := New("t.erl", []byte(input), cfg)
	if err != nil {
		return "", err
	}
	toks, err := pp.ReadAll()
	return words(toks), err
}

func words(toks []syntax.Token) string {
	var w []string
	for _, t := range toks {
		if !t.IsTrivia() {
			w = append(w, t.Text)
		}
	}
	return strings.Join(w, " ")
}

func lines(a ...string) string {
	return strings.Join(a, "\n") + "\n"
}

type ppTest struct {
	name   string
	input  string
	output string
}

var ppTests = []ppTest{
	{
		"empty",
		"",
		"",
	},
	{
		"plain",
		"f(a) -> a.",
		"f ( a ) -> a .",
	},
	{
		"object macro",
		lines(
			"-define(A, 1234).",
			"x() -> ?A.",
		),
		"x ( ) -> 1234 .",
	},
	{
		"bare invocation",
		lines(
			"-define(A, 1234).",
			"x() -> A.",
		),
		"x ( ) -> 1234 .",
	},
	{
		"macro with arguments",
		lines(
			"-define(ADD(X, Y), X + Y).",
			"f() -> ?ADD(1, 2).",
		),
		"f ( ) -> 1 + 2 .",
	},
	{
		"macro without arguments",
		lines(
			"-define(F(), foo).",
			"?F().",
		),
		"foo .",
	},
	{
		"stringify",
		lines(
			"-define(STR(X), ??X).",
			"?STR(foo(1, 2)).",
		),
		`"foo(1, 2)" .`,
	},
	{
		"stringify next to substitution",
		lines(
			"-define(SHOW(X), {??X, X}).",
			"?SHOW(a+b).",
		),
		`{ "a+b" , a + b } .`,
	},
	{
		"nested expansion",
		lines(
			"-define(A, ?B + 1).",
			"-define(B, 2).",
			"?A.",
		),
		"2 + 1 .",
	},
	{
		"nested argument macro",
		lines(
			"-define(TWICE(X), [X, X]).",
			"-define(V, 7).",
			"?TWICE(?V).",
		),
		"[ 7 , 7 ] .",
	},
	{
		"bracketed arguments",
		lines(
			"-define(FST(X, Y), X).",
			"?FST({a, b}, [c, d]).",
		),
		"{ a , b } .",
	},
	{
		"case expression argument",
		lines(
			"-define(FST(X, Y), X).",
			"?FST(case V of 1 -> a, 2 -> b end, z).",
		),
		"case V of 1 -> a , 2 -> b end .",
	},
	{
		"fun argument",
		lines(
			"-define(FST(X, Y), X).",
			"?FST(fun(A, B) -> A end, z).",
		),
		"fun ( A , B ) -> A end .",
	},
	{
		"named fun argument",
		lines(
			"-define(F(X), X).",
			"?F(fun Fact(0) -> 1; Fact(N) -> N end).",
		),
		"fun Fact ( 0 ) -> 1 ; Fact ( N ) -> N end .",
	},
	{
		"fun reference argument",
		lines(
			"-define(FST(X, Y), X).",
			"?FST(fun lists:map/2, z).",
		),
		"fun lists : map / 2 .",
	},
	{
		"fun type argument",
		lines(
			"-define(T(X), X).",
			"?T(fun((a) -> b)).",
			"?T({fun(() -> ok), c}).",
		),
		"fun ( ( a ) -> b ) . { fun ( ( ) -> ok ) , c } .",
	},
	{
		"redefinition replaces",
		lines(
			"-define(A, 1).",
			"-define(A, 2).",
			"?A.",
		),
		"2 .",
	},
	{
		"redefinition with other arity",
		lines(
			"-define(A, 1).",
			"-define(A(X), X).",
			"?A(3).",
		),
		"3 .",
	},
	{
		"undef",
		lines(
			"-define(A, 1).",
			"-undef(A).",
			"A.",
		),
		"A .",
	},
	{
		"undef of undefined name",
		lines(
			"-undef(A).",
			"ok.",
		),
		"ok .",
	},
	{
		"taken ifdef",
		lines(
			"-define(A, true).",
			"-ifdef(A).",
			"yes.",
			"-else.",
			"no.",
			"-endif.",
		),
		"yes .",
	},
	{
		"not taken ifdef",
		lines(
			"-ifdef(A).",
			"yes.",
			"-else.",
			"no.",
			"-endif.",
		),
		"no .",
	},
	{
		"ifndef",
		lines(
			"-ifndef(A).",
			"yes.",
			"-endif.",
		),
		"yes .",
	},
	{
		"nested taken/not-taken",
		lines(
			"-define(A, 1).",
			"-ifdef(A).",
			"-ifdef(B).",
			"ab.",
			"-else.",
			"a.",
			"-endif.",
			"-endif.",
		),
		"a .",
	},
	{
		"nested not-taken/would-be-taken",
		lines(
			"-ifdef(A).",
			"-ifndef(B).",
			"x.",
			"-else.",
			"y.",
			"-endif.",
			"-endif.",
			"z.",
		),
		"z .",
	},
	{
		"define in inactive region",
		lines(
			"-ifdef(A).",
			"-define(B, 1).",
			"-endif.",
			"B.",
		),
		"B .",
	},
	{
		"error in inactive region",
		lines(
			"-ifdef(A).",
			`-error("no").`,
			"-endif.",
			"ok.",
		),
		"ok .",
	},
	{
		"module macros",
		lines(
			"-module(m).",
			"f() -> {?MODULE, ?MODULE_STRING, ?LINE}.",
		),
		`- module ( m ) . f ( ) -> { m , "m" , 2 } .`,
	},
	{
		"file macro",
		"?FILE.",
		`"t.erl" .`,
	},
	{
		"machine macro",
		"?MACHINE.",
		"'BEAM' .",
	},
	{
		"bare predefined name",
		"LINE.",
		"LINE .",
	},
	{
		"parameterized macro used bare",
		lines(
			"-define(F(X), X).",
			"F.",
		),
		"F .",
	},
	{
		"directive after dot",
		"a. -define(A, 1). ?A.",
		"a . 1 .",
	},
	{
		"hyphen inside expression",
		"x - define(A, 1).",
		"x - define ( A , 1 ) .",
	},
	{
		"unknown attribute",
		"-export([f/0]).",
		"- export ( [ f / 0 ] ) .",
	},
	{
		"comments inside directive",
		lines(
			"-define( A , % one",
			"  1 ).",
			"?A.",
		),
		"1 .",
	},
	{
		"closing paren inside body",
		lines(
			"-define(P, (1 + 2) * 3).",
			"?P.",
		),
		"( 1 + 2 ) * 3 .",
	},
}

type badPPTest struct {
	name  string
	input string
	error string
	kind  error
}

var badPPTests = []badPPTest{
	{
		"unterminated ifdef",
		lines("-ifdef(A).", "x."),
		"t.erl:1:1: unterminated -ifdef",
		ErrStructure,
	},
	{
		"unterminated ifndef with else",
		lines("-ifndef(A).", "x.", "-else.", "y."),
		"t.erl:1:1: unterminated -ifndef",
		ErrStructure,
	},
	{
		"else without ifdef",
		"-else.",
		"t.erl:1:1: -else without matching -ifdef or -ifndef",
		ErrStructure,
	},
	{
		"endif without ifdef",
		"-endif.",
		"t.erl:1:1: -endif without matching -ifdef or -ifndef",
		ErrStructure,
	},
	{
		"duplicate else",
		lines("-ifdef(A).", "-else.", "-else.", "-endif."),
		"t.erl:3:1: duplicate -else for -ifdef at t.erl:1:1",
		ErrStructure,
	},
	{
		"too many arguments",
		lines("-define(F(X), X).", "?F(1, 2)."),
		"t.erl:2:2: macro F expects 1 arguments, got 2",
		ErrArity,
	},
	{
		"missing arguments",
		lines("-define(F(X), X).", "?F."),
		"t.erl:2:2: macro F expects 1 arguments",
		ErrArity,
	},
	{
		"undefined macro",
		"?A.",
		"t.erl:1:2: undefined macro 'A'",
		ErrUnbound,
	},
	{
		"recursive macro",
		lines("-define(A, A).", "A."),
		"t.erl:1:12: recursive macro invocation of A",
		ErrInvalid,
	},
	{
		"error directive",
		`-error("stop here").`,
		"t.erl:1:1: stop here",
		ErrDirective,
	},
	{
		"malformed define",
		"-define(A 1).",
		`t.erl:1:11: expected ",", found "1"`,
		ErrSyntax,
	},
	{
		"unterminated arguments",
		lines("-define(F(X), X).", "?F(1"),
		"t.erl:2:2: unterminated macro arguments",
		ErrSyntax,
	},
	{
		"stringify unknown name",
		lines("-define(S(X), ??Y).", "?S(1)."),
		"t.erl:1:17: '??Y' does not name a parameter of macro S",
		ErrUnbound,
	},
	{
		"lexical error",
		`"abc`,
		"t.erl:1:1: unterminated string",
		nil,
	},
}

func TestPreprocessDefines(t *testing.T) {
	cfg := Config{Defines: map[string]string{"DEBUG": "true", "level": "3"}}
	got, err := ppDrain(lines(
		"-ifdef(DEBUG).",
		"{?DEBUG, ?level}.",
		"-endif.",
	), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("{ true , 3 } .", got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestPreprocessSharedMacros(t *testing.T) {
	macros := NewMacroTable()
	if _, err := ppDrain("-define(A, 1).", Config{Macros: macros}); err != nil {
		t.Fatal(err)
	}
	got, err := ppDrain("?A.", Config{Macros: macros})
	if err != nil {
		t.Fatal(err)
	}
	if got != "1 ." {
		t.Errorf("got %q, want %q", got, "1 .")
	}
}

func TestPreprocessWarnings(t *testing.T) {
	var hooked []string
	cfg := Config{Warn: func(d Diagnostic) { hooked = append(hooked, d.String()) }}
	pp, err := New("t.erl", []byte(lines(
		`-warning("deprecated").`,
		"-ifdef(X).",
		"-warning(skipped).",
		"-endif.",
		"-warning(not_a_string).",
		"ok.",
	)), cfg)
	if err != nil {
		t.Fatal(err)
	}
	toks, err := pp.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if got := words(toks); got != "ok ." {
		t.Errorf("output %q, want %q", got, "ok .")
	}

	want := []string{
		"t.erl:1:1: warning: deprecated",
		"t.erl:5:1: warning: not_a_string",
	}
	if diff := cmp.Diff(want, hooked); diff != "" {
		t.Errorf("hook mismatch (-want +got):\n%s", diff)
	}
	var recorded []string
	for _, d := range pp.Warnings() {
		recorded = append(recorded, d.String())
	}
	if diff := cmp.Diff(want, recorded); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
}

func TestPreprocessDirectiveLog(t *testing.T) {
	src := lines(
		"-define(A, 1).",
		"-ifdef(B).",
		"-undef(A).",
		"-else.",
		"-endif.",
	)
	pp, err := New("t.erl", []byte(src), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := pp.ReadAll(); err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range pp.Directives() {
		got = append(got, d.String())
	}
	want := []string{"-define(A, 1).", "-ifdef(B).", "-undef(A).", "-else.", "-endif."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if !pp.Macros().IsDefined("A") {
		t.Error("undef in inactive region removed A")
	}
}

// Preprocessing the rendered output of a run without directives or macro
// names changes nothing.
func TestPreprocessIdempotent(t *testing.T) {
	src := lines(
		"-module(m).",
		"-define(PAIR(X, Y), {X, Y}).",
		"-define(LOG(X), io:format(??X)).",
		"f(A) -> ?PAIR(A, [1, 2]).",
		"g() -> ?LOG(f(a)).",
	)
	pp, err := New("t.erl", []byte(src), Config{})
	if err != nil {
		t.Fatal(err)
	}
	first, err := pp.ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	second, err := ppDrain(syntax.Text(first), Config{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(words(first), second); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNextAfterError(t *testing.T) {
	pp, err := New("t.erl", []byte("?X. ok."), Config{})
	if err != nil {
		t.Fatal(err)
	}
	_, err1 := pp.Next()
	_, err2 := pp.Next()
	if err1 == nil || err1 != err2 {
		t.Errorf("got %v then %v, want the same error twice", err1, err2)
	}
}

func TestParseDefine(t *testing.T) {
	tests := []struct {
		in          string
		name, value string
	}{
		{"DEBUG", "DEBUG", "true"},
		{"N=3", "N", "3"},
		{"S=a=b", "S", "a=b"},
		{"E=", "E", ""},
	}
	for _, tt := range tests {
		name, value := ParseDefine(tt.in)
		if name != tt.name || value != tt.value {
			t.Errorf("ParseDefine(%q) = %q, %q; want %q, %q", tt.in, name, value, tt.name, tt.value)
		}
	}
}
