package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fwessels/erlpp"
)

var (
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	posStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

func main() {
	log.SetFlags(0)
	if err := runCLI(os.Args, os.Stdout, os.Stderr); err != nil {
		log.Fatal(failStyle.Render("erlpp: " + err.Error()))
	}
}

func runCLI(args []string, stdout, stderr io.Writer) error {
	if len(args) < 2 {
		return usageError(stderr)
	}
	switch args[1] {
	case "run":
		return runCommand(args[2:], stdout, stderr)
	case "directives":
		return directivesCommand(args[2:], stdout, stderr)
	case "repl":
		return replCommand(args[2:])
	case "help", "-h", "--help":
		printUsage(stderr)
		return nil
	default:
		return usageError(stderr)
	}
}

// options are the flags shared by every subcommand.
type options struct {
	includeDirs pathList
	codePaths   pathList
	defines     defineList
}

func (o *options) register(fs *flag.FlagSet) {
	fs.Var(&o.includeDirs, "I", "add an -include search directory (repeatable)")
	fs.Var(&o.codePaths, "pa", "add a code path searched by -include_lib (repeatable)")
	fs.Var(&o.defines, "D", "define a macro as NAME or NAME=VALUE (repeatable)")
}

func (o *options) config(stderr io.Writer) erlpp.Config {
	return erlpp.Config{
		IncludeDirs: o.includeDirs,
		CodePaths:   o.codePaths,
		Defines:     o.defines.m,
		Warn: func(d erlpp.Diagnostic) {
			fmt.Fprintln(stderr, renderWarning(d))
		},
	}
}

func renderWarning(d erlpp.Diagnostic) string {
	return posStyle.Render(d.Pos.String()+":") + " " + warnStyle.Render("warning: "+d.Message)
}

func runCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var opts options
	opts.register(fs)
	output := fs.String("o", "", "write the preprocessed source to `file` instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("erlpp run: exactly one source file required")
	}

	res, err := erlpp.PreprocessFile(fs.Arg(0), opts.config(stderr))
	if err != nil {
		return err
	}
	out := erlpp.Render(res.Tokens)
	if *output == "" {
		_, err = io.WriteString(stdout, out)
		return err
	}
	if err := os.WriteFile(*output, []byte(out), 0644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func directivesCommand(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("directives", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var opts options
	opts.register(fs)
	dump := fs.Bool("dump", false, "print the full structure of every directive")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("erlpp directives: exactly one source file required")
	}

	cfg := opts.config(stderr)
	cfg.Warn = nil
	res, err := erlpp.PreprocessFile(fs.Arg(0), cfg)
	if res == nil {
		return err
	}
	if *dump {
		fmt.Fprint(stdout, prettyString(dumpDirectives(res.Directives)))
	} else {
		for _, d := range res.Directives {
			start, _ := d.Span()
			fmt.Fprintf(stdout, "%s\t%s\t%s\n", start, d.Keyword(), oneLine(d.String()))
		}
	}
	return err
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func usageError(w io.Writer) error {
	printUsage(w)
	return errors.New("invalid command")
}

func printUsage(w io.Writer) {
	prog := filepath.Base(os.Args[0])
	fmt.Fprintf(w, "Usage: %s run [flags] <file.erl>\n", prog)
	fmt.Fprintf(w, "       %s directives [flags] [-dump] <file.erl>\n", prog)
	fmt.Fprintf(w, "       %s repl [flags]\n", prog)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -I <dir>")
	fmt.Fprintln(w, "    add an -include search directory (repeatable)")
	fmt.Fprintln(w, "  -pa <dir>")
	fmt.Fprintln(w, "    add a code path searched by -include_lib (repeatable)")
	fmt.Fprintln(w, "  -D NAME[=VALUE]")
	fmt.Fprintln(w, "    define a macro (repeatable)")
	fmt.Fprintln(w, "  -o <file>")
	fmt.Fprintln(w, "    run: write output to file")
}

type flagErrorSink struct{}

func (flagErrorSink) Write(p []byte) (int, error) {
	return len(p), nil
}

type pathList []string

func (l *pathList) String() string {
	return strings.Join(*l, string(os.PathListSeparator))
}

func (l *pathList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

type defineList struct {
	m map[string]string
}

func (l *defineList) String() string {
	var defs []string
	for name, value := range l.m {
		defs = append(defs, name+"="+value)
	}
	return strings.Join(defs, ",")
}

func (l *defineList) Set(value string) error {
	name, val := erlpp.ParseDefine(value)
	if name == "" {
		return fmt.Errorf("invalid macro definition %q", value)
	}
	if l.m == nil {
		l.m = map[string]string{}
	}
	l.m[name] = val
	return nil
}
