package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bassamadnan/mailsheet/processor"
	"github.com/bassamadnan/mailsheet/state"
)

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	for _, r := range s {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	return m
}

func press(m Model, k tea.KeyType) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

func TestPrompt_Submit(t *testing.T) {
	m := typeText(t, NewPromptModel("Code", "paste code", false), "  4/abc  ")

	m, cmd := press(m, tea.KeyEnter)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, "4/abc", m.Value())
	assert.False(t, m.Cancelled())
}

func TestPrompt_EmptySubmitShowsError(t *testing.T) {
	m, cmd := press(NewPromptModel("Code", "", false), tea.KeyEnter)
	assert.Nil(t, cmd)
	assert.Empty(t, m.Value())
	assert.True(t, m.statusIsError)
	assert.Contains(t, m.View(), "A value is required")

	m = typeText(t, m, "x")
	assert.False(t, m.statusIsError)
}

func TestPrompt_Cancel(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := typeText(t, NewPromptModel("Code", "", false), "abc")
		m, cmd := press(m, k)
		require.NotNil(t, cmd)
		assert.True(t, m.Cancelled())
		assert.Empty(t, m.Value())
		assert.Empty(t, m.View())
	}
}

func TestPrompt_SecretInputIsMasked(t *testing.T) {
	m := typeText(t, NewPromptModel("IMAP password", "", true), "hunter2")
	view := m.View()
	assert.NotContains(t, view, "hunter2")
	assert.Contains(t, view, "IMAP password")
}

func TestPrompt_WindowResize(t *testing.T) {
	next, _ := NewPromptModel("Code", "", false).Update(tea.WindowSizeMsg{Width: 40, Height: 10})
	m := next.(Model)
	assert.Equal(t, 40, m.width)
	assert.Less(t, m.input.Width, defaultInputWidth)
}

func TestRenderSummary(t *testing.T) {
	out := RenderSummary(processor.RunResult{Processed: 3, Skipped: 2, Failed: 1}, 1500*time.Millisecond, nil)
	assert.Contains(t, out, "Run complete")
	assert.Contains(t, out, "Processed")
	assert.Contains(t, out, "3")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "OK")
	assert.NotContains(t, out, "Error")
}

func TestRenderSummary_Fatal(t *testing.T) {
	long := errors.New("list unread messages failed after 3 attempts: " + strings.Repeat("x", 200))
	out := RenderSummary(processor.RunResult{Processed: 1}, 0, long)
	assert.Contains(t, out, "Run aborted")
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, strings.Repeat("x", 100))
}

func TestRenderState(t *testing.T) {
	out := RenderState("json", "state/processed_emails.json", &state.Snapshot{ProcessedIDs: state.NewProcessedSet("a", "b")})
	assert.Contains(t, out, "state/processed_emails.json")
	assert.Contains(t, out, "2")
	assert.Contains(t, out, "never")
}

func TestRenderAuthURL(t *testing.T) {
	url := "https://accounts.google.com/o/oauth2/auth?client_id=abc"
	out := RenderAuthURL(url)
	assert.Contains(t, out, "\n"+url+"\n")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "hello", truncate("hello", 5))
	assert.Equal(t, "he...", truncate("hello world", 5))
	assert.Equal(t, "hé", truncate("héllo", 2))
	assert.Equal(t, "", truncate("hello", 0))
}

func TestFormatTimestamp(t *testing.T) {
	assert.Equal(t, "never", formatTimestamp(time.Time{}))
	ts := time.Date(2024, 10, 1, 9, 30, 0, 0, time.Local)
	assert.Equal(t, "2024-10-01 09:30:00", formatTimestamp(ts))
}
