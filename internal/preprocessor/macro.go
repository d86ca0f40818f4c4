package preprocessor

import (
	"sort"
	"strconv"

	"github.com/fwessels/erlpp/internal/syntax"
)

// MacroName is the identifier of a macro: an atom or a variable token.
// Two names denote the same macro when their values are equal, whichever
// form was written.
type MacroName struct {
	Token syntax.Token
}

// Text returns the macro identity.
func (n MacroName) Text() string {
	return n.Token.Value
}

func (n MacroName) String() string {
	return n.Token.Text
}

// MacroDef is a macro definition. Object-like macros have HasParams unset;
// a parameterized macro must be invoked with exactly len(Params) arguments.
type MacroDef struct {
	Name        MacroName
	HasParams   bool
	Params      []string
	Replacement []syntax.Token
	Start, End  syntax.Pos

	// Predefined macros are only expanded when written as ?NAME.
	Predefined bool

	// dynamic computes the replacement of predefined macros at the
	// invocation site.
	dynamic func(at syntax.Token, file string) []syntax.Token
}

// Arity returns the number of parameters, or -1 for object-like macros.
func (d *MacroDef) Arity() int {
	if !d.HasParams {
		return -1
	}
	return len(d.Params)
}

// Expand substitutes args into the replacement. Each argument is the
// token slice of one invocation argument. The result is not rescanned
// for further macro names.
func (d *MacroDef) Expand(args [][]syntax.Token, at syntax.Pos) ([]syntax.Token, error) {
	if !d.HasParams {
		if len(args) != 0 {
			return nil, errorf(ArityMismatch, at, "macro %s takes no arguments, got %d", d.Name.Text(), len(args))
		}
		out := make([]syntax.Token, len(d.Replacement))
		copy(out, d.Replacement)
		return out, nil
	}
	if len(args) != len(d.Params) {
		return nil, errorf(ArityMismatch, at, "macro %s expects %d arguments, got %d", d.Name.Text(), len(d.Params), len(args))
	}

	binds := make(map[string][]syntax.Token, len(d.Params))
	for i, name := range d.Params {
		binds[name] = args[i]
	}

	var out []syntax.Token
	for i := 0; i < len(d.Replacement); i++ {
		t := d.Replacement[i]
		if t.Kind == syntax.Variable {
			if val, ok := binds[t.Value]; ok {
				out = append(out, val...)
				continue
			}
		}
		if !t.IsSymbol(syntax.DoubleQuestion) {
			out = append(out, t)
			continue
		}

		j := i + 1
		for j < len(d.Replacement) && d.Replacement[j].IsTrivia() {
			j++
		}
		if j == len(d.Replacement) {
			return nil, errorf(InvalidInput, t.Start, "'??' must be followed by a macro parameter")
		}
		v := d.Replacement[j]
		val, ok := binds[v.Value]
		if v.Kind != syntax.Variable || !ok {
			return nil, errorf(UnboundName, v.Start, "'??%s' does not name a parameter of macro %s", v.Text, d.Name.Text())
		}
		pos := v.Start
		if len(val) > 0 {
			pos = val[0].Start
		}
		out = append(out, syntax.NewString(syntax.Text(val), pos))
		i = j
	}
	return out, nil
}

// MacroTable maps macro names to their active definitions. A later
// definition of a name replaces the earlier one regardless of arity.
type MacroTable struct {
	defs map[string]*MacroDef
}

// NewMacroTable returns an empty table.
func NewMacroTable() *MacroTable {
	return &MacroTable{defs: map[string]*MacroDef{}}
}

// Define installs d, replacing any definition of the same name.
func (t *MacroTable) Define(d *MacroDef) {
	t.defs[d.Name.Text()] = d
}

// DefineObject defines an object-like macro from source text.
func (t *MacroTable) DefineObject(name, value string) error {
	toks, err := syntax.Tokenize("<define "+name+">", []byte(value))
	if err != nil {
		return wrapf(InvalidInput, syntax.Pos{}, err, "macro %s", name)
	}
	kind := syntax.Atom
	if n := []rune(name); len(n) > 0 && (n[0] == '_' || ('A' <= n[0] && n[0] <= 'Z')) {
		kind = syntax.Variable
	}
	t.Define(&MacroDef{
		Name:        MacroName{Token: syntax.Token{Kind: kind, Text: name, Value: name}},
		Replacement: trimTrivia(toks),
	})
	return nil
}

// Undef removes name. Removing an absent name is a no-op; the result
// reports whether a definition was removed.
func (t *MacroTable) Undef(name string) bool {
	_, ok := t.defs[name]
	delete(t.defs, name)
	return ok
}

// Lookup returns the active definition of name.
func (t *MacroTable) Lookup(name string) (*MacroDef, bool) {
	d, ok := t.defs[name]
	return d, ok
}

// IsDefined reports whether name has an active definition.
func (t *MacroTable) IsDefined(name string) bool {
	_, ok := t.defs[name]
	return ok
}

// Len returns the number of active definitions.
func (t *MacroTable) Len() int {
	return len(t.defs)
}

// Names returns the defined names in sorted order.
func (t *MacroTable) Names() []string {
	names := make([]string, 0, len(t.defs))
	for name := range t.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// definePredefined installs FILE, LINE and MACHINE unless already present.
func (t *MacroTable) definePredefined() {
	predef := map[string]func(at syntax.Token, file string) []syntax.Token{
		"FILE": func(at syntax.Token, file string) []syntax.Token {
			return []syntax.Token{syntax.NewString(file, at.Start)}
		},
		"LINE": func(at syntax.Token, _ string) []syntax.Token {
			text := strconv.Itoa(at.Start.Line)
			return []syntax.Token{{Kind: syntax.Integer, Text: text, Start: at.Start, End: at.Start}}
		},
		"MACHINE": func(at syntax.Token, _ string) []syntax.Token {
			return []syntax.Token{{Kind: syntax.Atom, Text: "'BEAM'", Value: "BEAM", Start: at.Start, End: at.Start}}
		},
	}
	for name, fn := range predef {
		if t.IsDefined(name) {
			continue
		}
		t.Define(&MacroDef{
			Name:       predefinedName(name),
			Predefined: true,
			dynamic:    fn,
		})
	}
}

// definePredefinedValue defines name as a predefined object-like macro
// expanding to tok.
func (t *MacroTable) definePredefinedValue(name string, tok syntax.Token) {
	t.Define(&MacroDef{
		Name:        predefinedName(name),
		Predefined:  true,
		Replacement: []syntax.Token{tok},
	})
}

func predefinedName(name string) MacroName {
	return MacroName{Token: syntax.Token{Kind: syntax.Variable, Text: name, Value: name}}
}

// trimTrivia drops leading and trailing whitespace and comments.
func trimTrivia(toks []syntax.Token) []syntax.Token {
	for len(toks) > 0 && toks[0].IsTrivia() {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].IsTrivia() {
		toks = toks[:len(toks)-1]
	}
	return toks
}
