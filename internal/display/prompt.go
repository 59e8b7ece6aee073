package display

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ErrAborted is returned when the user cancels a prompt (Esc or Ctrl-C).
var ErrAborted = errors.New("input aborted")

// Prompter asks one-line questions on the terminal through Bubble Tea.
// Suggestions, when given, are offered as tab-completion — the catalogs
// only expose their key lists; completion behavior lives entirely here.
type Prompter struct{}

// NewPrompter creates a prompter.
func NewPrompter() *Prompter {
	return &Prompter{}
}

// Ask shows a label and reads one line. suggestions may be nil.
func (p *Prompter) Ask(label, placeholder string, suggestions []string) (string, error) {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Focus()
	if len(suggestions) > 0 {
		ti.ShowSuggestions = true
		ti.SetSuggestions(suggestions)
	}

	model := promptModel{label: label, input: ti}
	out, err := tea.NewProgram(model).Run()
	if err != nil {
		return "", err
	}
	final := out.(promptModel)
	if final.aborted {
		return "", ErrAborted
	}
	return strings.TrimSpace(final.input.Value()), nil
}

// AskFloat reads a positive number.
func (p *Prompter) AskFloat(label string) (float64, error) {
	raw, err := p.Ask(label, "e.g. 2.5", nil)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", raw)
	}
	return v, nil
}

// promptModel is a minimal Bubble Tea model around a single text input.
type promptModel struct {
	label   string
	input   textinput.Model
	done    bool
	aborted bool
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyEsc:
			m.aborted = true
			return m, tea.Quit
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.done || m.aborted {
		// Leave the answered prompt on screen.
		return fmt.Sprintf("%s %s\n", secondaryStyle.Render(m.label), m.input.Value())
	}
	return fmt.Sprintf("%s %s\n", headingStyle.Render(m.label), m.input.View())
}
