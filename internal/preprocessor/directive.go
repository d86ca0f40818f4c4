package preprocessor

import (
	"fmt"
	"io"

	"github.com/fwessels/erlpp/internal/syntax"
)

type (
	// Directive is a recognized -name(...). statement. Every directive keeps
	// the tokens it was parsed from, so String reproduces its source text
	// byte for byte.
	Directive interface {
		fmt.Stringer
		Keyword() string
		Span() (start, end syntax.Pos)
		Tokens() []syntax.Token
	}
	// IncludeDirective is -include("path").
	IncludeDirective struct {
		span
		Path syntax.Token // string literal
	}
	// IncludeLibDirective is -include_lib("app/path").
	IncludeLibDirective struct {
		span
		Path syntax.Token
	}
	// DefineDirective is -define(Name, Body). or -define(Name(Vars), Body).
	DefineDirective struct {
		span
		Macro *MacroDef
	}
	// UndefDirective is -undef(Name).
	UndefDirective struct {
		span
		Name MacroName
	}
	// IfdefDirective is -ifdef(Name).
	IfdefDirective struct {
		span
		Name MacroName
	}
	// IfndefDirective is -ifndef(Name).
	IfndefDirective struct {
		span
		Name MacroName
	}
	// ElseDirective is -else.
	ElseDirective struct {
		span
	}
	// EndifDirective is -endif.
	EndifDirective struct {
		span
	}
	// ErrorDirective is -error(Message). The message is kept as the raw
	// token span between the parentheses.
	ErrorDirective struct {
		span
		message
	}
	// WarningDirective is -warning(Message).
	WarningDirective struct {
		span
		message
	}
)

func (*IncludeDirective) Keyword() string    { return "include" }
func (*IncludeLibDirective) Keyword() string { return "include_lib" }
func (*DefineDirective) Keyword() string     { return "define" }
func (*UndefDirective) Keyword() string      { return "undef" }
func (*IfdefDirective) Keyword() string      { return "ifdef" }
func (*IfndefDirective) Keyword() string     { return "ifndef" }
func (*ElseDirective) Keyword() string       { return "else" }
func (*EndifDirective) Keyword() string      { return "endif" }
func (*ErrorDirective) Keyword() string      { return "error" }
func (*WarningDirective) Keyword() string    { return "warning" }

// span holds the committed tokens of a directive, from the leading hyphen
// to the terminating dot.
type span struct {
	tokens []syntax.Token
}

func (s span) Span() (start, end syntax.Pos) {
	if len(s.tokens) == 0 {
		return syntax.Pos{}, syntax.Pos{}
	}
	return s.tokens[0].Start, s.tokens[len(s.tokens)-1].End
}

func (s span) Tokens() []syntax.Token {
	return s.tokens
}

func (s span) String() string {
	return syntax.Text(s.tokens)
}

type message struct {
	MessageStart syntax.Pos // first byte after "("
	MessageEnd   syntax.Pos // position of the closing ")"
	Message      []syntax.Token
}

// Text returns the message. A message that is a single string literal is
// returned decoded; anything else is returned as raw source text.
func (m message) Text() string {
	toks := trimTrivia(m.Message)
	if len(toks) == 1 && toks[0].Kind == syntax.String {
		return toks[0].Value
	}
	return syntax.Text(toks)
}

// PathValue returns the decoded include path.
func (d *IncludeDirective) PathValue() string { return d.Path.Value }

// PathValue returns the decoded include path.
func (d *IncludeLibDirective) PathValue() string { return d.Path.Value }

var directiveParsers = map[string]func(r *Reader) (Directive, error){
	"include":     parseInclude,
	"include_lib": parseIncludeLib,
	"define":      parseDefine,
	"undef":       parseUndef,
	"ifdef":       parseIfdef,
	"ifndef":      parseIfndef,
	"else":        parseElse,
	"endif":       parseEndif,
	"error":       parseError,
	"warning":     parseWarning,
}

// ReadDirective attempts to read a directive at the cursor. If the next
// tokens are not a hyphen followed by a directive keyword nothing is
// consumed and d is nil. Once the keyword has matched, any deviation from
// the directive's shape is reported as a syntax error.
func ReadDirective(r *Reader) (d Directive, err error) {
	t, err := r.Peek()
	if err != nil || !t.IsSymbol(syntax.Hyphen) {
		return nil, nil
	}

	r.Begin()
	r.Read()
	kw, err := r.ReadNonTrivia()
	parse, ok := directiveParsers[kw.Value]
	if err != nil || kw.Kind != syntax.Atom || !ok {
		r.Abort()
		return nil, nil
	}

	d, err = parse(r)
	if err != nil {
		r.Abort()
		return nil, err
	}
	return d, nil
}

func parsePath(r *Reader) (syntax.Token, error) {
	if _, err := r.ExpectSymbol(syntax.OpenParen); err != nil {
		return syntax.Token{}, err
	}
	path, err := r.ExpectKind(syntax.String)
	if err != nil {
		return syntax.Token{}, err
	}
	if err := expectClose(r); err != nil {
		return syntax.Token{}, err
	}
	return path, nil
}

// expectClose reads the ")." that ends most directives.
func expectClose(r *Reader) error {
	if _, err := r.ExpectSymbol(syntax.CloseParen); err != nil {
		return err
	}
	_, err := r.ExpectSymbol(syntax.Dot)
	return err
}

func parseInclude(r *Reader) (Directive, error) {
	path, err := parsePath(r)
	if err != nil {
		return nil, err
	}
	return &IncludeDirective{Path: path, span: span{r.Commit()}}, nil
}

func parseIncludeLib(r *Reader) (Directive, error) {
	path, err := parsePath(r)
	if err != nil {
		return nil, err
	}
	return &IncludeLibDirective{Path: path, span: span{r.Commit()}}, nil
}

func readMacroName(r *Reader) (MacroName, error) {
	t, err := r.ReadOrFail()
	if err != nil {
		return MacroName{}, err
	}
	if !t.IsName() {
		return MacroName{}, errorf(SyntaxError, t.Start, "invalid macro name %q", t.Text)
	}
	return MacroName{Token: t}, nil
}

func parseParenthesizedName(r *Reader) (MacroName, error) {
	if _, err := r.ExpectSymbol(syntax.OpenParen); err != nil {
		return MacroName{}, err
	}
	name, err := readMacroName(r)
	if err != nil {
		return MacroName{}, err
	}
	if err := expectClose(r); err != nil {
		return MacroName{}, err
	}
	return name, nil
}

func parseUndef(r *Reader) (Directive, error) {
	name, err := parseParenthesizedName(r)
	if err != nil {
		return nil, err
	}
	return &UndefDirective{Name: name, span: span{r.Commit()}}, nil
}

func parseIfdef(r *Reader) (Directive, error) {
	name, err := parseParenthesizedName(r)
	if err != nil {
		return nil, err
	}
	return &IfdefDirective{Name: name, span: span{r.Commit()}}, nil
}

func parseIfndef(r *Reader) (Directive, error) {
	name, err := parseParenthesizedName(r)
	if err != nil {
		return nil, err
	}
	return &IfndefDirective{Name: name, span: span{r.Commit()}}, nil
}

func parseElse(r *Reader) (Directive, error) {
	if _, err := r.ExpectSymbol(syntax.Dot); err != nil {
		return nil, err
	}
	return &ElseDirective{span: span{r.Commit()}}, nil
}

func parseEndif(r *Reader) (Directive, error) {
	if _, err := r.ExpectSymbol(syntax.Dot); err != nil {
		return nil, err
	}
	return &EndifDirective{span: span{r.Commit()}}, nil
}

// readUntilClose collects tokens up to a ")" that is followed by ".".
// A ")" followed by anything else belongs to the body. It returns the
// body and the start of the terminating ")".
func readUntilClose(r *Reader) ([]syntax.Token, syntax.Pos, error) {
	var body []syntax.Token
	for {
		t, err := r.Read()
		if err != nil {
			if err == io.EOF {
				return nil, t.Start, errorf(SyntaxError, t.Start, "unterminated directive, expected \").\"")
			}
			return nil, t.Start, err
		}
		if t.IsSymbol(syntax.CloseParen) {
			_, ok, err := r.TrySymbol(syntax.Dot)
			if err != nil {
				return nil, t.Start, err
			}
			if ok {
				return body, t.Start, nil
			}
		}
		body = append(body, t)
	}
}

func parseDefine(r *Reader) (Directive, error) {
	if _, err := r.ExpectSymbol(syntax.OpenParen); err != nil {
		return nil, err
	}
	name, err := readMacroName(r)
	if err != nil {
		return nil, err
	}
	def := &MacroDef{Name: name}

	_, ok, err := r.TrySymbol(syntax.OpenParen)
	if err != nil {
		return nil, err
	}
	if ok {
		def.HasParams = true
		def.Params, err = readMacroParams(r)
		if err != nil {
			return nil, err
		}
	}
	if _, err := r.ExpectSymbol(syntax.Comma); err != nil {
		return nil, err
	}

	body, _, err := readUntilClose(r)
	if err != nil {
		return nil, err
	}
	def.Replacement = trimTrivia(body)

	toks := r.Commit()
	def.Start, def.End = toks[0].Start, toks[len(toks)-1].End
	return &DefineDirective{Macro: def, span: span{toks}}, nil
}

// readMacroParams reads "Var, Var)" after the opening parenthesis.
func readMacroParams(r *Reader) ([]string, error) {
	params := []string{}
	if _, ok, err := r.TrySymbol(syntax.CloseParen); err != nil || ok {
		return params, err
	}
	seen := map[string]bool{}
	for {
		v, err := r.ReadOrFail()
		if err != nil {
			return nil, err
		}
		if v.Kind != syntax.Variable {
			return nil, errorf(SyntaxError, v.Start, "macro parameter must be a variable, found %q", v.Text)
		}
		if seen[v.Value] {
			return nil, errorf(SyntaxError, v.Start, "duplicate macro parameter %s", v.Value)
		}
		seen[v.Value] = true
		params = append(params, v.Value)

		sep, err := r.ReadOrFail()
		if err != nil {
			return nil, err
		}
		switch {
		case sep.IsSymbol(syntax.Comma):
		case sep.IsSymbol(syntax.CloseParen):
			return params, nil
		default:
			return nil, errorf(SyntaxError, sep.Start, "expected \",\" or \")\" in macro parameters, found %q", sep.Text)
		}
	}
}

func parseMessage(r *Reader) (message, error) {
	open, err := r.ExpectSymbol(syntax.OpenParen)
	if err != nil {
		return message{}, err
	}
	body, end, err := readUntilClose(r)
	if err != nil {
		return message{}, err
	}
	return message{MessageStart: open.End, MessageEnd: end, Message: body}, nil
}

func parseError(r *Reader) (Directive, error) {
	m, err := parseMessage(r)
	if err != nil {
		return nil, err
	}
	return &ErrorDirective{message: m, span: span{r.Commit()}}, nil
}

func parseWarning(r *Reader) (Directive, error) {
	m, err := parseMessage(r)
	if err != nil {
		return nil, err
	}
	return &WarningDirective{message: m, span: span{r.Commit()}}, nil
}
