// Package preprocessor recognizes Erlang-style preprocessor directives in a
// token stream, expands macros and applies conditional compilation and
// file inclusion.
package preprocessor

import (
	"errors"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/fwessels/erlpp/internal/syntax"
)

const (
	defaultMaxIncludeDepth = 200
	maxExpansionDepth      = 100
)

// Config configures a Preprocessor. Zero values select the defaults.
type Config struct {
	IncludeDirs []string          // searched by -include after the includer's directory
	CodePaths   []string          // searched by -include_lib for "<app>-*" directories
	Defines     map[string]string // predefined object-like macros, NAME -> source text

	// Macros, when set, is used as the macro table instead of a fresh one,
	// so definitions can be carried between runs.
	Macros *MacroTable

	LookupEnv func(string) (string, bool)    // default os.LookupEnv
	ReadFile  func(string) ([]byte, error)   // default reads from disk
	Glob      func(string) ([]string, error) // default filepath.Glob
	Warn      func(Diagnostic)               // called for each -warning

	MaxIncludeDepth int // default 200
}

// Diagnostic is an advisory message produced by a -warning directive.
type Diagnostic struct {
	Pos       syntax.Pos
	Message   string
	Directive string // source text of the directive
}

func (d Diagnostic) String() string {
	return d.Pos.String() + ": warning: " + d.Message
}

// Preprocessor turns a token stream into a preprocessed token stream. It
// is a single forward pass: after Next returns an error, every further
// call returns the same error.
type Preprocessor struct {
	cfg      Config
	resolver *includeResolver
	macros   *MacroTable
	cond     *condStack

	inputs            []*input // innermost last
	includeStackGuard map[string]bool

	directives []Directive
	warnings   []Diagnostic
	err        error
}

type input struct {
	filename          string
	reader            *Reader
	canDirectiveStart bool
	condDepth         int // conditional depth when the file was entered
}

// New returns a Preprocessor over the source text of filename.
func New(filename string, src []byte, cfg Config) (*Preprocessor, error) {
	return NewFromSource(filename, syntax.NewScanner(filename, src), cfg)
}

// NewFromSource returns a Preprocessor over an already tokenized source.
func NewFromSource(filename string, src TokenSource, cfg Config) (*Preprocessor, error) {
	if cfg.MaxIncludeDepth <= 0 {
		cfg.MaxIncludeDepth = defaultMaxIncludeDepth
	}
	p := &Preprocessor{
		cfg:               cfg,
		resolver:          newIncludeResolver(cfg),
		macros:            cfg.Macros,
		cond:              newCondStack(),
		includeStackGuard: map[string]bool{},
	}
	if p.macros == nil {
		p.macros = NewMacroTable()
	}
	p.macros.definePredefined()
	for name, value := range cfg.Defines {
		if err := p.macros.DefineObject(name, value); err != nil {
			return nil, err
		}
	}
	p.push(filename, src)
	return p, nil
}

func (p *Preprocessor) push(filename string, src TokenSource) {
	p.includeStackGuard[guardKey(filename)] = true
	p.inputs = append(p.inputs, &input{
		filename:          filename,
		reader:            NewReader(src),
		canDirectiveStart: true,
		condDepth:         p.cond.Depth(),
	})
}

func (p *Preprocessor) pop() {
	in := p.inputs[len(p.inputs)-1]
	delete(p.includeStackGuard, guardKey(in.filename))
	p.inputs = p.inputs[:len(p.inputs)-1]
}

func guardKey(filename string) string {
	if abs, err := filepath.Abs(filename); err == nil {
		return abs
	}
	return filepath.Clean(filename)
}

// Macros returns the live macro table.
func (p *Preprocessor) Macros() *MacroTable {
	return p.macros
}

// Directives returns every directive recognized so far, in source order.
func (p *Preprocessor) Directives() []Directive {
	return p.directives
}

// Warnings returns the diagnostics of the -warning directives applied so far.
func (p *Preprocessor) Warnings() []Diagnostic {
	return p.warnings
}

// Next returns the next output token, or io.EOF when the pass is done.
func (p *Preprocessor) Next() (syntax.Token, error) {
	if p.err != nil {
		return syntax.Token{}, p.err
	}
	t, err := p.next()
	if err != nil {
		p.err = err
		return syntax.Token{}, err
	}
	return t, nil
}

// All returns an iterator over the output tokens. Iteration stops after
// the first error, which is yielded with a zero token.
func (p *Preprocessor) All() iter.Seq2[syntax.Token, error] {
	return func(yield func(syntax.Token, error) bool) {
		for {
			t, err := p.Next()
			if err == io.EOF {
				return
			}
			if !yield(t, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll drains the preprocessor.
func (p *Preprocessor) ReadAll() ([]syntax.Token, error) {
	var toks []syntax.Token
	for t, err := range p.All() {
		if err != nil {
			return toks, err
		}
		toks = append(toks, t)
	}
	return toks, nil
}

func (p *Preprocessor) next() (syntax.Token, error) {
	for {
		if len(p.inputs) == 0 {
			return syntax.Token{}, io.EOF
		}
		in := p.inputs[len(p.inputs)-1]

		if in.canDirectiveStart {
			d, err := ReadDirective(in.reader)
			if err != nil {
				return syntax.Token{}, err
			}
			if d != nil {
				if err := p.apply(in, d); err != nil {
					return syntax.Token{}, err
				}
				continue
			}
			if p.cond.Active() {
				p.noteModule(in.reader)
			}
		}

		t, err := in.reader.Read()
		if err == io.EOF {
			// Conditionals do not span file boundaries.
			if p.cond.Depth() > in.condDepth {
				f, _ := p.cond.Unclosed()
				return syntax.Token{}, errorf(StructuralError, f.pos, "unterminated -%s", f.keyword)
			}
			if len(p.inputs) > 1 {
				p.pop()
				continue
			}
			p.pop()
			return syntax.Token{}, io.EOF
		}
		if err != nil {
			return syntax.Token{}, err
		}

		switch {
		case t.IsTrivia():
		case t.IsSymbol(syntax.Dot):
			in.canDirectiveStart = true
		default:
			in.canDirectiveStart = false
		}

		if !p.cond.Active() {
			continue
		}
		expanded, err := p.expand(in, t)
		if err != nil {
			return syntax.Token{}, err
		}
		if expanded {
			continue
		}
		return t, nil
	}
}

// apply carries out a committed directive. Conditional directives always
// update the stack; the others take effect only in active regions.
func (p *Preprocessor) apply(in *input, d Directive) error {
	p.directives = append(p.directives, d)
	start, _ := d.Span()

	switch d := d.(type) {
	case *IfdefDirective:
		p.cond.Push("ifdef", p.macros.IsDefined(d.Name.Text()), start)
		return nil
	case *IfndefDirective:
		p.cond.Push("ifndef", !p.macros.IsDefined(d.Name.Text()), start)
		return nil
	case *ElseDirective:
		if p.cond.Depth() == in.condDepth {
			return errorf(StructuralError, start, "-else without matching -ifdef or -ifndef")
		}
		return p.cond.Else(start)
	case *EndifDirective:
		if p.cond.Depth() == in.condDepth {
			return errorf(StructuralError, start, "-endif without matching -ifdef or -ifndef")
		}
		return p.cond.Pop(start)
	}

	if !p.cond.Active() {
		return nil
	}

	switch d := d.(type) {
	case *DefineDirective:
		p.macros.Define(d.Macro)
	case *UndefDirective:
		p.macros.Undef(d.Name.Text())
	case *IncludeDirective:
		return p.include(in, start, d.PathValue(), p.resolver.resolveInclude)
	case *IncludeLibDirective:
		return p.include(in, start, d.PathValue(), p.resolver.resolveIncludeLib)
	case *ErrorDirective:
		return errorf(DirectiveFailure, start, "%s", d.Text())
	case *WarningDirective:
		diag := Diagnostic{Pos: start, Message: d.Text(), Directive: d.String()}
		p.warnings = append(p.warnings, diag)
		if p.cfg.Warn != nil {
			p.cfg.Warn(diag)
		}
	}
	return nil
}

func (p *Preprocessor) include(in *input, at syntax.Pos, lit string, resolve func(lit, includer string) (string, []byte, error)) error {
	if len(p.inputs) >= p.cfg.MaxIncludeDepth {
		return errorf(IncludeError, at, "include %q: nesting deeper than %d", lit, p.cfg.MaxIncludeDepth)
	}
	path, bs, err := resolve(lit, in.filename)
	if err != nil {
		if errors.Is(err, filepath.ErrBadPattern) {
			return wrapf(InvalidInput, at, err, "include %q", lit)
		}
		return wrapf(IncludeError, at, err, "include %q", lit)
	}
	if p.includeStackGuard[guardKey(path)] {
		return errorf(IncludeError, at, "include cycle detected at %q", path)
	}
	p.push(path, syntax.NewScanner(path, bs))
	return nil
}

// noteModule looks ahead for a -module(Name). attribute without consuming
// it and defines MODULE and MODULE_STRING from it.
func (p *Preprocessor) noteModule(r *Reader) {
	r.Begin()
	defer r.Abort()
	if _, err := r.ExpectSymbol(syntax.Hyphen); err != nil {
		return
	}
	if _, err := r.ExpectAtom("module"); err != nil {
		return
	}
	if _, err := r.ExpectSymbol(syntax.OpenParen); err != nil {
		return
	}
	name, err := r.ExpectKind(syntax.Atom)
	if err != nil {
		return
	}
	if _, err := r.ExpectSymbol(syntax.CloseParen); err != nil {
		return
	}
	p.macros.definePredefinedValue("MODULE", name)
	p.macros.definePredefinedValue("MODULE_STRING", syntax.NewString(name.Value, name.Start))
}

// expand handles a macro invocation starting at t and reports whether t
// was consumed. The expansion is pushed back onto the reader, so nested
// macro names in it are expanded when they are read again.
func (p *Preprocessor) expand(in *input, t syntax.Token) (bool, error) {
	r := in.reader
	at := t
	question := t.IsSymbol(syntax.Question)
	if question {
		r.Begin()
		name, err := r.ReadNonTrivia()
		if err != nil || !name.IsName() {
			r.Abort()
			return false, nil
		}
		r.Commit()
		if !p.macros.IsDefined(name.Value) {
			return false, errorf(UnboundName, name.Start, "undefined macro '%s'", name.Value)
		}
		t = name
	} else if !t.IsName() || !p.macros.IsDefined(t.Value) {
		return false, nil
	}

	def, _ := p.macros.Lookup(t.Value)
	if def.Predefined && !question {
		return false, nil
	}
	depth := r.Depth() + 1
	if depth > maxExpansionDepth {
		return false, errorf(InvalidInput, at.Start, "recursive macro invocation of %s", t.Value)
	}

	if def.dynamic != nil {
		r.Push(def.dynamic(t, in.filename), depth)
		return true, nil
	}

	var args [][]syntax.Token
	if def.HasParams {
		r.Begin()
		if _, ok, err := r.TrySymbol(syntax.OpenParen); err != nil || !ok {
			r.Abort()
			if err != nil {
				return false, err
			}
			if question {
				return false, errorf(ArityMismatch, t.Start, "macro %s expects %d arguments", t.Value, len(def.Params))
			}
			return false, nil
		}
		var err error
		args, err = readMacroArgs(r, t.Start)
		if err != nil {
			r.Abort()
			return false, err
		}
		r.Commit()
	}

	out, err := def.Expand(args, t.Start)
	if err != nil {
		return false, err
	}
	r.Push(out, depth)
	return true, nil
}

// argOpeners are keyword atoms that open a region closed by "end"; commas
// inside them do not separate macro arguments.
var argOpeners = map[string]bool{
	"begin": true, "case": true, "if": true, "maybe": true,
	"receive": true, "try": true,
}

var closerOf = map[syntax.Sym]syntax.Sym{
	syntax.OpenParen:       syntax.CloseParen,
	syntax.OpenSquare:      syntax.CloseSquare,
	syntax.OpenBrace:       syntax.CloseBrace,
	syntax.DoubleLeftAngle: syntax.DoubleRightAngle,
}

// argFrame is an open bracket or keyword block inside a macro argument.
// NoSym as the closer stands for "end".
type argFrame struct {
	closer syntax.Sym
	fun    bool
}

// readMacroArgs reads the comma separated arguments of an invocation, the
// opening parenthesis already consumed, up to the matching ")".
func readMacroArgs(r *Reader, at syntax.Pos) ([][]syntax.Token, error) {
	var (
		args  [][]syntax.Token
		cur   []syntax.Token
		stack []argFrame
	)
	for {
		t, err := r.Read()
		if err == io.EOF {
			return nil, errorf(SyntaxError, at, "unterminated macro arguments")
		}
		if err != nil {
			return nil, err
		}

		switch {
		case t.Kind == syntax.Symbol:
			if closer, ok := closerOf[t.Sym]; ok {
				stack = append(stack, argFrame{closer: closer})
				break
			}
			switch t.Sym {
			case syntax.CloseParen, syntax.CloseSquare, syntax.CloseBrace, syntax.DoubleRightAngle:
				// A bracket closing over an open fun means the fun was a
				// type such as fun((a) -> b), which has no "end".
				for len(stack) > 0 && stack[len(stack)-1].fun {
					stack = stack[:len(stack)-1]
				}
				if len(stack) == 0 && t.Sym == syntax.CloseParen {
					cur = trimTrivia(cur)
					if len(args) == 0 && len(cur) == 0 {
						return nil, nil
					}
					return append(args, cur), nil
				}
				if len(stack) > 0 && stack[len(stack)-1].closer == t.Sym {
					stack = stack[:len(stack)-1]
				}
			case syntax.Comma:
				if len(stack) == 0 {
					args = append(args, trimTrivia(cur))
					cur = nil
					continue
				}
			}
		case t.Kind == syntax.Atom && argOpeners[t.Text]:
			stack = append(stack, argFrame{})
		case t.Kind == syntax.Atom && t.Text == "fun":
			opens, err := funOpensBlock(r)
			if err != nil {
				return nil, err
			}
			if opens {
				stack = append(stack, argFrame{fun: true})
			}
		case t.Kind == syntax.Atom && t.Text == "end":
			if n := len(stack); n > 0 && stack[n-1].closer == syntax.NoSym {
				stack = stack[:n-1]
			}
		}
		cur = append(cur, t)
	}
}

// funOpensBlock reports whether the fun keyword just read starts a clause
// list ended by "end": fun(...) or the named fun Name(...). References
// such as fun m:f/1 do not.
func funOpensBlock(r *Reader) (bool, error) {
	r.Begin()
	defer r.Abort()
	next, err := r.ReadNonTrivia()
	if err != nil {
		return false, ignoreEOF(err)
	}
	if next.IsSymbol(syntax.OpenParen) {
		return true, nil
	}
	if next.Kind != syntax.Variable {
		return false, nil
	}
	next, err = r.ReadNonTrivia()
	if err != nil {
		return false, ignoreEOF(err)
	}
	return next.IsSymbol(syntax.OpenParen), nil
}

func ignoreEOF(err error) error {
	if err == io.EOF {
		return nil
	}
	return err
}

// ParseDefine splits a command-line definition NAME=VALUE. A bare NAME
// defines the macro as "true".
func ParseDefine(s string) (name, value string) {
	if i := strings.IndexByte(s, '='); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, "true"
}
