package main

import (
	"reflect"

	"modernc.org/strutil"

	"github.com/fwessels/erlpp"
)

// directiveDump is the -dump view of one directive. Directive fields that
// strutil cannot reach are lifted out here.
type directiveDump struct {
	Keyword string
	Start   erlpp.Pos
	End     erlpp.Pos
	Text    string
	Message string
	Node    erlpp.Directive
}

type messageDirective interface {
	Text() string
}

func dumpDirectives(ds []erlpp.Directive) []directiveDump {
	out := make([]directiveDump, 0, len(ds))
	for _, d := range ds {
		start, end := d.Span()
		dd := directiveDump{
			Keyword: d.Keyword(),
			Start:   start,
			End:     end,
			Text:    d.String(),
			Node:    d,
		}
		if m, ok := d.(messageDirective); ok {
			dd.Message = m.Text()
		}
		out = append(out, dd)
	}
	return out
}

var printHooks = strutil.PrettyPrintHooks{
	reflect.TypeOf(erlpp.Token{}): func(f strutil.Formatter, v interface{}, prefix, suffix string) {
		t := v.(erlpp.Token)
		if (t == erlpp.Token{}) {
			return
		}

		f.Format("%s", prefix)
		if t.Start.IsValid() {
			f.Format("%v: ", t.Start)
		}
		f.Format("%s %q", t.Kind, t.Text)
		if t.Value != "" && t.Value != t.Text {
			f.Format(" value %q", t.Value)
		}
		f.Format("%s", suffix)
	},
	reflect.TypeOf(erlpp.Pos{}): func(f strutil.Formatter, v interface{}, prefix, suffix string) {
		p := v.(erlpp.Pos)
		if !p.IsValid() {
			return
		}
		f.Format("%s%v%s", prefix, p, suffix)
	},
}

func prettyString(v interface{}) string {
	return strutil.PrettyString(v, "", "", printHooks)
}
