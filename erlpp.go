/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package erlpp preprocesses Erlang source: it applies -define, -undef,
// -ifdef/-ifndef/-else/-endif, -include, -include_lib, -error and -warning
// directives and expands macros, producing a token stream for a parser.
package erlpp

import (
	"fmt"
	"os"
	"strings"

	"github.com/fwessels/erlpp/internal/preprocessor"
	"github.com/fwessels/erlpp/internal/syntax"
)

type (
	Token      = syntax.Token
	Pos        = syntax.Pos
	Config     = preprocessor.Config
	Diagnostic = preprocessor.Diagnostic
	Directive  = preprocessor.Directive
	MacroTable = preprocessor.MacroTable
	Error      = preprocessor.Error
)

// NewMacroTable returns an empty macro table for Config.Macros.
func NewMacroTable() *MacroTable {
	return preprocessor.NewMacroTable()
}

// ParseDefine splits a NAME=VALUE definition; a bare NAME means "true".
func ParseDefine(s string) (name, value string) {
	return preprocessor.ParseDefine(s)
}

// Result is the outcome of preprocessing one root file.
type Result struct {
	Tokens     []Token
	Directives []Directive
	Warnings   []Diagnostic
}

// Preprocess runs the preprocessor over src. On error the partial result
// produced so far is returned alongside it.
func Preprocess(filename string, src []byte, cfg Config) (*Result, error) {
	pp, err := preprocessor.New(filename, src, cfg)
	if err != nil {
		return nil, err
	}
	toks, err := pp.ReadAll()
	res := &Result{
		Tokens:     toks,
		Directives: pp.Directives(),
		Warnings:   pp.Warnings(),
	}
	return res, err
}

// PreprocessFile reads and preprocesses the file at path.
func PreprocessFile(path string, cfg Config) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Preprocess(path, src, cfg)
}

// Render concatenates the source text of toks.
func Render(toks []Token) string {
	var b strings.Builder
	for _, t := range toks {
		b.WriteString(t.Text)
	}
	return b.String()
}
