package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"studydesk/internal/ui/theme"
)

// PromptSubmitMsg is emitted when the user confirms the input.
type PromptSubmitMsg struct{ Input string }

// PromptCancelMsg is emitted when the user presses esc.
type PromptCancelMsg struct{}

var (
	promptStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(theme.Peach).
			Background(theme.Mantle).
			Foreground(theme.Text).
			Padding(0, 1)

	hintStyle = lipgloss.NewStyle().Foreground(theme.Subtext0)
)

const maxSuggestions = 5

// Prompt is a one-line input overlay backed by bubbles/textinput. Suggestions
// matching the typed prefix are listed below the input; tab completes the
// first one.
type Prompt struct {
	title       string
	input       textinput.Model
	suggestions []string
	visible     bool
	width       int
}

func NewPrompt(title, placeholder string) Prompt {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 128
	return Prompt{title: title, input: ti}
}

func (p Prompt) Visible() bool { return p.visible }

// Open shows the prompt with value pre-filled and returns the focus command.
func (p *Prompt) Open(value string, suggestions []string) tea.Cmd {
	p.visible = true
	p.suggestions = suggestions
	p.input.SetValue(value)
	p.input.CursorEnd()
	return p.input.Focus()
}

func (p *Prompt) SetWidth(w int) { p.width = w }

func (p Prompt) Update(msg tea.Msg) (Prompt, tea.Cmd) {
	if !p.visible {
		return p, nil
	}
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			p.visible = false
			p.input.Blur()
			return p, func() tea.Msg { return PromptCancelMsg{} }
		case "enter":
			val := strings.TrimSpace(p.input.Value())
			p.visible = false
			p.input.Blur()
			return p, func() tea.Msg { return PromptSubmitMsg{Input: val} }
		case "tab":
			if matches := p.matching(); len(matches) > 0 {
				p.input.SetValue(matches[0])
				p.input.CursorEnd()
			}
			return p, nil
		}
	}
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	return p, cmd
}

func (p Prompt) matching() []string {
	prefix := strings.ToLower(strings.TrimSpace(p.input.Value()))
	var out []string
	for _, s := range p.suggestions {
		if prefix == "" || strings.HasPrefix(strings.ToLower(s), prefix) {
			out = append(out, s)
			if len(out) == maxSuggestions {
				break
			}
		}
	}
	return out
}

func (p Prompt) View() string {
	if !p.visible {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(theme.Title.Render(p.title) + "\n")
	sb.WriteString("> " + p.input.View() + "\n")
	if matches := p.matching(); len(matches) > 0 {
		sb.WriteString("\n")
		for _, s := range matches {
			sb.WriteString(hintStyle.Render("  "+s) + "\n")
		}
	}

	w := p.width
	if w < 20 {
		w = 64
	}
	return promptStyle.Width(w - 2).Render(sb.String())
}
