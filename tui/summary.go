// Package tui renders the command-line surfaces: run summaries and the
// one-line prompts used while setting up credentials.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/bassamadnan/mailsheet/processor"
	"github.com/bassamadnan/mailsheet/state"
)

const maxErrorWidth = 72

func row(key, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, HeaderKeyStyle.Render(key), HeaderValStyle.Render(value))
}

// RenderSummary formats the outcome of one run. runErr is the fatal error,
// if any; counts are still shown because earlier messages were transferred.
func RenderSummary(res processor.RunResult, elapsed time.Duration, runErr error) string {
	title := "Run complete"
	status := StatusBarSuccessStyle.Render("OK")
	if runErr != nil {
		title = "Run aborted"
		status = StatusBarErrorStyle.Render("FAILED")
	}

	lines := []string{
		TitleStyle.Render(title),
		"",
		row("Processed", ProcessedStyle.Render(fmt.Sprint(res.Processed))),
		row("Skipped", SkippedStyle.Render(fmt.Sprint(res.Skipped))),
		row("Failed", failedCount(res.Failed)),
		row("Duration", formatDuration(elapsed)),
		row("Status", status),
	}
	if runErr != nil {
		lines = append(lines, row("Error", truncate(runErr.Error(), maxErrorWidth)))
	}
	return ContentBoxStyle.Render(strings.Join(lines, "\n"))
}

func failedCount(n int) string {
	if n == 0 {
		return SkippedStyle.Render("0")
	}
	return FailedStyle.Render(fmt.Sprint(n))
}

// RenderState formats the persisted processed set.
func RenderState(backend, path string, snap *state.Snapshot) string {
	lines := []string{
		TitleStyle.Render("Processed state"),
		"",
		row("Backend", backend),
		row("Location", path),
		row("Messages", fmt.Sprint(snap.ProcessedIDs.Len())),
		row("Last update", formatTimestamp(snap.LastUpdated)),
	}
	return ContentBoxStyle.Render(strings.Join(lines, "\n"))
}

// RenderAuthURL shows the consent page link for the auth command. The link
// is printed outside the box so it can be copied cleanly.
func RenderAuthURL(url string) string {
	box := ContentBoxStyle.Render(strings.Join([]string{
		TitleStyle.Render("Authorize mailsheet"),
		"",
		"Open the link below in your browser, approve access,",
		"then paste the authorization code into the prompt.",
		"",
		HintStyle.Render("The token grants Gmail modify and Sheets access."),
	}, "\n"))
	return box + "\n\n" + url + "\n"
}
