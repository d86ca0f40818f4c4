package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fwessels/erlpp"
)

var (
	accentColor    = lipgloss.Color("#3B82F6")
	successColor   = lipgloss.Color("#10B981")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	highlightColor = lipgloss.Color("#F59E0B")

	promptStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	headerStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			Padding(0, 1)

	helpKeyStyle = lipgloss.NewStyle().
			Foreground(highlightColor)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)
)

type historyEntry struct {
	input  string
	output string
	isErr  bool
}

// replModel preprocesses each entered line as a separate source. Macro
// definitions persist across lines; conditionals do not.
type replModel struct {
	textInput   textinput.Model
	cfg         erlpp.Config
	macros      *erlpp.MacroTable
	history     []historyEntry
	cmdHistory  []string
	historyIdx  int
	inputs      int
	width       int
	height      int
	showHelp    bool
	showMacros  bool
	quitting    bool
	initialized bool
}

type keyMap struct {
	Up    key.Binding
	Down  key.Binding
	Enter key.Binding
	CtrlC key.Binding
	CtrlD key.Binding
	CtrlL key.Binding
	Tab   key.Binding
	CtrlK key.Binding
	CtrlT key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up"),
		key.WithHelp("↑", "previous input"),
	),
	Down: key.NewBinding(
		key.WithKeys("down"),
		key.WithHelp("↓", "next input"),
	),
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "preprocess"),
	),
	CtrlC: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	CtrlD: key.NewBinding(
		key.WithKeys("ctrl+d"),
		key.WithHelp("ctrl+d", "quit"),
	),
	CtrlL: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "clear"),
	),
	Tab: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "complete macro name"),
	),
	CtrlK: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "toggle help"),
	),
	CtrlT: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("ctrl+t", "toggle macros"),
	),
}

func newREPLModel(cfg erlpp.Config) replModel {
	ti := textinput.New()
	ti.Placeholder = "-define(NAME, Value). or an expression"
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60
	ti.PromptStyle = promptStyle
	ti.Prompt = "erlpp> "

	macros := cfg.Macros
	if macros == nil {
		var err error
		if macros, err = sessionMacros(cfg.Defines); err != nil {
			macros = erlpp.NewMacroTable()
		}
	}

	return replModel{
		textInput:  ti,
		cfg:        cfg,
		macros:     macros,
		historyIdx: -1,
	}
}

func (m replModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, tea.EnterAltScreen)
}

func (m replModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.textInput.Width = msg.Width - 10
		m.initialized = true
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.CtrlC), key.Matches(msg, keys.CtrlD):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.CtrlL):
			m.history = nil
			return m, nil

		case key.Matches(msg, keys.CtrlT):
			m.showMacros = !m.showMacros
			return m, nil

		case key.Matches(msg, keys.CtrlK):
			m.showHelp = !m.showHelp
			return m, nil

		case key.Matches(msg, keys.Up):
			if len(m.cmdHistory) > 0 {
				if m.historyIdx == -1 {
					m.historyIdx = len(m.cmdHistory) - 1
				} else if m.historyIdx > 0 {
					m.historyIdx--
				}
				m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Down):
			if m.historyIdx != -1 {
				if m.historyIdx < len(m.cmdHistory)-1 {
					m.historyIdx++
					m.textInput.SetValue(m.cmdHistory[m.historyIdx])
				} else {
					m.historyIdx = -1
					m.textInput.SetValue("")
				}
				m.textInput.CursorEnd()
			}
			return m, nil

		case key.Matches(msg, keys.Tab):
			m = m.handleAutocomplete()
			return m, nil

		case key.Matches(msg, keys.Enter):
			input := strings.TrimSpace(m.textInput.Value())
			if input == "" {
				return m, nil
			}

			if strings.HasPrefix(input, ":") {
				var cmd tea.Cmd
				m, cmd = m.handleCommand(input)
				m.textInput.SetValue("")
				m.historyIdx = -1
				return m, cmd
			}

			output, isErr := m.evaluate(input)
			m.history = append(m.history, historyEntry{
				input:  input,
				output: output,
				isErr:  isErr,
			})
			m.cmdHistory = append(m.cmdHistory, input)
			m.textInput.SetValue("")
			m.historyIdx = -1
			return m, nil
		}
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m replModel) handleCommand(input string) (replModel, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case ":help", ":h":
		m.showHelp = !m.showHelp
	case ":clear", ":c":
		m.history = nil
	case ":macros", ":m":
		m.showMacros = !m.showMacros
	case ":reset", ":r":
		macros, err := sessionMacros(m.cfg.Defines)
		if err != nil {
			m.history = append(m.history, historyEntry{input: input, output: err.Error(), isErr: true})
			break
		}
		m.macros = macros
		m.history = append(m.history, historyEntry{
			input:  input,
			output: "Macro table reset",
		})
	case ":quit", ":q":
		m.quitting = true
		return m, tea.Quit
	default:
		m.history = append(m.history, historyEntry{
			input:  input,
			output: fmt.Sprintf("Unknown command: %s", cmd),
			isErr:  true,
		})
	}
	return m, nil
}

// handleAutocomplete completes a trailing ?NAME against the macro table.
func (m replModel) handleAutocomplete() replModel {
	input := m.textInput.Value()
	i := strings.LastIndexByte(input, '?')
	if i < 0 {
		return m
	}
	partial := input[i+1:]
	if strings.ContainsAny(partial, " (),.") {
		return m
	}

	var completions []string
	for _, name := range m.macros.Names() {
		if strings.HasPrefix(name, partial) {
			completions = append(completions, name)
		}
	}

	if len(completions) == 1 {
		m.textInput.SetValue(input[:i+1] + completions[0])
		m.textInput.CursorEnd()
	} else if len(completions) > 1 {
		m.history = append(m.history, historyEntry{
			output: "Completions: " + strings.Join(completions, ", "),
		})
	}
	return m
}

// evaluate preprocesses one input line against the session macro table.
func (m *replModel) evaluate(input string) (string, bool) {
	m.inputs++
	cfg := m.cfg
	cfg.Macros = m.macros
	cfg.Defines = nil // already in the session table
	cfg.Warn = nil

	res, err := erlpp.Preprocess(fmt.Sprintf("repl:%d", m.inputs), []byte(input), cfg)
	if err != nil {
		return err.Error(), true
	}

	var lines []string
	for _, w := range res.Warnings {
		lines = append(lines, "warning: "+w.Message)
	}
	if out := strings.TrimSpace(erlpp.Render(res.Tokens)); out != "" {
		lines = append(lines, out)
	} else if len(lines) == 0 {
		kws := make([]string, 0, len(res.Directives))
		for _, d := range res.Directives {
			kws = append(kws, "-"+d.Keyword())
		}
		if len(kws) == 0 {
			return "(no output)", false
		}
		lines = append(lines, "applied "+strings.Join(kws, " "))
	}
	return strings.Join(lines, "\n"), false
}

// macroLines describes the user macros of t, one per line.
func macroLines(t *erlpp.MacroTable) []string {
	var lines []string
	for _, name := range t.Names() {
		def, _ := t.Lookup(name)
		if def.Predefined {
			continue
		}
		head := name
		if def.HasParams {
			head += "(" + strings.Join(def.Params, ", ") + ")"
		}
		lines = append(lines, head+" = "+erlpp.Render(def.Replacement))
	}
	return lines
}

func (m replModel) View() string {
	if !m.initialized {
		return "Loading..."
	}

	if m.quitting {
		return mutedStyle.Render("Goodbye!\n")
	}

	var b strings.Builder

	b.WriteString(headerStyle.Render("Erlang preprocessor") + "\n")
	b.WriteString(mutedStyle.Render(strings.Repeat("─", max(min(m.width-2, 60), 0))) + "\n\n")

	reservedLines := 8
	if m.showHelp {
		reservedLines += 10
	}
	if m.showMacros {
		reservedLines += m.macros.Len() + 3
	}
	availableHeight := max(m.height-reservedLines, 0)
	historyStart := max(len(m.history)-availableHeight, 0)

	for _, entry := range m.history[historyStart:] {
		if entry.input != "" {
			b.WriteString(mutedStyle.Render("  › ") + entry.input + "\n")
		}
		if entry.isErr {
			b.WriteString("  " + errorStyle.Render("✗ "+entry.output) + "\n")
		} else {
			b.WriteString("  " + resultStyle.Render("→ "+entry.output) + "\n")
		}
		b.WriteString("\n")
	}

	if m.showMacros {
		b.WriteString(renderMacrosPanel(m.macros))
		b.WriteString("\n")
	}

	if m.showHelp {
		b.WriteString(renderHelpPanel())
		b.WriteString("\n")
	}

	b.WriteString(m.textInput.View() + "\n\n")

	footer := helpKeyStyle.Render("ctrl+k") + helpDescStyle.Render(" help  ") +
		helpKeyStyle.Render("ctrl+t") + helpDescStyle.Render(" macros  ") +
		helpKeyStyle.Render("ctrl+l") + helpDescStyle.Render(" clear  ") +
		helpKeyStyle.Render("ctrl+c") + helpDescStyle.Render(" quit")
	b.WriteString(footer)

	return b.String()
}

func renderMacrosPanel(t *erlpp.MacroTable) string {
	defs := macroLines(t)
	if len(defs) == 0 {
		return borderStyle.Render(mutedStyle.Render("No macros defined"))
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Macros")}
	nameStyle := lipgloss.NewStyle().Foreground(highlightColor)
	for _, d := range defs {
		head, body, _ := strings.Cut(d, " = ")
		lines = append(lines, fmt.Sprintf("  %s = %s", nameStyle.Render(head), body))
	}
	return borderStyle.Render(strings.Join(lines, "\n"))
}

func renderHelpPanel() string {
	help := []struct {
		key  string
		desc string
	}{
		{"↑/↓", "Navigate input history"},
		{"Tab", "Complete ?NAME"},
		{"Enter", "Preprocess line"},
		{":help", "Toggle this help"},
		{":macros", "Toggle macro panel"},
		{":clear", "Clear history"},
		{":reset", "Forget all macros"},
		{":quit", "Exit REPL"},
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("Help")}
	for _, h := range help {
		line := fmt.Sprintf("  %s  %s",
			helpKeyStyle.Render(fmt.Sprintf("%-8s", h.key)),
			helpDescStyle.Render(h.desc))
		lines = append(lines, line)
	}

	return borderStyle.Render(strings.Join(lines, "\n"))
}

func replCommand(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(new(flagErrorSink))
	var opts options
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	macros, err := sessionMacros(opts.defines.m)
	if err != nil {
		return err
	}
	cfg := erlpp.Config{
		IncludeDirs: opts.includeDirs,
		CodePaths:   opts.codePaths,
		Defines:     opts.defines.m,
		Macros:      macros,
	}
	p := tea.NewProgram(newREPLModel(cfg), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

// sessionMacros returns a fresh macro table holding the -D definitions.
func sessionMacros(defines map[string]string) (*erlpp.MacroTable, error) {
	macros := erlpp.NewMacroTable()
	for name, value := range defines {
		if err := macros.DefineObject(name, value); err != nil {
			return nil, fmt.Errorf("-D %s: %w", name, err)
		}
	}
	return macros, nil
}
