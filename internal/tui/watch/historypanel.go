package watch

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/snipq/snipq/internal/history"
)

func renderHistory(records []history.Record, theme Theme, width int) string {
	innerWidth := width - 4

	if len(records) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("HISTORY"),
			theme.Dim.Render("  No completed dispatches..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, rec := range records {
		if i >= 6 {
			break
		}
		lines = append(lines, formatHistoryRecord(rec, theme))
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("HISTORY"),
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatHistoryRecord(rec history.Record, theme Theme) string {
	ts := theme.Dim.Render(rec.CreatedAt.Local().Format("15:04:05"))

	var style lipgloss.Style
	switch rec.Status {
	case history.StatusDelivered:
		style = theme.StatusOK
	case history.StatusFailed:
		style = theme.StatusFailed
	case history.StatusDropped:
		style = theme.StatusDropped
	default:
		style = theme.StatusRunning
	}
	status := style.Render(fmt.Sprintf("%-10s", rec.Status))

	detail := rec.Destination
	if rec.Provider != "" {
		detail += fmt.Sprintf(" via %s/%s", rec.Provider, rec.Model)
	}
	if rec.CacheHit {
		detail += " " + theme.StatusCached.Render("(cached)")
	}
	if rec.Attempts > 1 {
		detail += fmt.Sprintf(" attempts=%d", rec.Attempts)
	}
	if rec.LastError != nil {
		errText := *rec.LastError
		if len(errText) > 40 {
			errText = errText[:40] + "..."
		}
		detail += " " + theme.StatusFailed.Render(errText)
	}

	return fmt.Sprintf("%s %s %s", ts, status, detail)
}
