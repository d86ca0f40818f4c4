package preprocessor

import (
	"errors"
	"fmt"

	"github.com/fwessels/erlpp/internal/syntax"
)

// ErrorKind classifies preprocessing failures.
type ErrorKind uint8

const (
	SyntaxError      ErrorKind = iota + 1 // malformed directive once its keyword matched
	StructuralError                       // unbalanced -else/-endif, unterminated conditional
	UnboundName                           // name not bound by the invocation or the table
	ArityMismatch                         // wrong number of macro arguments
	IncludeError                          // include path could not be resolved or read
	InvalidInput                          // other precondition violations
	DirectiveFailure                      // raised by an -error(...) directive
)

var errorKindNames = [...]string{
	SyntaxError:      "syntax error",
	StructuralError:  "structural error",
	UnboundName:      "unbound name",
	ArityMismatch:    "arity mismatch",
	IncludeError:     "include error",
	InvalidInput:     "invalid input",
	DirectiveFailure: "error directive",
}

func (k ErrorKind) String() string {
	if int(k) < len(errorKindNames) && errorKindNames[k] != "" {
		return errorKindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// Sentinels for errors.Is matching against an *Error's Kind.
var (
	ErrSyntax    = &Error{Kind: SyntaxError}
	ErrStructure = &Error{Kind: StructuralError}
	ErrUnbound   = &Error{Kind: UnboundName}
	ErrArity     = &Error{Kind: ArityMismatch}
	ErrInclude   = &Error{Kind: IncludeError}
	ErrInvalid   = &Error{Kind: InvalidInput}
	ErrDirective = &Error{Kind: DirectiveFailure}
)

// Error is a preprocessing failure detected at Pos.
type Error struct {
	Kind ErrorKind
	Pos  syntax.Pos
	Msg  string
	Err  error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Msg
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. Sentinels carry
// only a Kind, so errors.Is(err, ErrArity) matches any arity failure.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && !t.Pos.IsValid()
}

func errorf(kind ErrorKind, pos syntax.Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(kind ErrorKind, pos syntax.Pos, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...), Err: err}
}
