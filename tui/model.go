package tui

import (
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
)

// ErrCancelled is returned when the user leaves a prompt with Esc or Ctrl+C.
var ErrCancelled = errors.New("prompt cancelled")

const defaultInputWidth = 60

// Model is a single-line prompt: a title, one text input and a status bar.
type Model struct {
	title string
	input textinput.Model

	width         int
	value         string
	cancelled     bool
	statusBarText string
	statusIsError bool
}

func NewPromptModel(title, placeholder string, secret bool) Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Width = defaultInputWidth
	ti.Prompt = "> "
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	ti.Focus()

	return Model{
		title:         title,
		input:         ti,
		statusBarText: "[Enter]:Submit | [Esc/Ctrl+C]:Cancel",
	}
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		if w := msg.Width - ContentBoxStyle.GetHorizontalFrameSize() - len(m.input.Prompt) - 1; w > 0 && w < defaultInputWidth {
			m.input.Width = w
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		case tea.KeyEnter:
			v := strings.TrimSpace(m.input.Value())
			if v == "" {
				m.updateStatusError("A value is required. [Esc]:Cancel")
				return m, nil
			}
			m.value = v
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.statusIsError {
		m.updateStatusBar("[Enter]:Submit | [Esc/Ctrl+C]:Cancel")
	}
	return m, cmd
}

func (m *Model) updateStatusBar(text string) {
	m.statusBarText = text
	m.statusIsError = false
}

func (m *Model) updateStatusError(text string) {
	m.statusBarText = text
	m.statusIsError = true
}

func (m Model) View() string {
	if m.value != "" || m.cancelled {
		return ""
	}
	box := ContentBoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render(m.title),
		"",
		m.input.View(),
	))
	return lipgloss.JoinVertical(lipgloss.Left, box, m.renderStatusBar()) + "\n"
}

func (m Model) renderStatusBar() string {
	style := StatusBarNormalStyle
	if m.statusIsError {
		style = StatusBarErrorStyle
	}
	if m.width > 0 {
		return style.Width(m.width).Render(truncate(m.statusBarText, m.width))
	}
	return style.Render(m.statusBarText)
}

// Value is the submitted text, empty until Enter is pressed on a non-empty input.
func (m Model) Value() string { return m.value }

func (m Model) Cancelled() bool { return m.cancelled }

// Prompt shows a one-line prompt on stderr and returns what the user typed.
// secret hides the input.
func Prompt(title, placeholder string, secret bool) (string, error) {
	final, err := tea.NewProgram(NewPromptModel(title, placeholder, secret), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return "", errors.Wrap(err, "running prompt")
	}
	m, ok := final.(Model)
	if !ok || m.cancelled || m.value == "" {
		return "", ErrCancelled
	}
	return m.value, nil
}
