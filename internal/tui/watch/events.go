package watch

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/snipq/snipq/internal/events"
)

func renderEventStream(eventLog []events.Event, theme Theme, width int) string {
	innerWidth := width - 4

	if len(eventLog) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("EVENT STREAM"),
			theme.Dim.Render("  Waiting for events..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	var lines []string
	for i, e := range eventLog {
		if i >= 10 {
			break
		}
		lines = append(lines, formatEvent(e, theme))
	}

	eventsText := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("EVENT STREAM"),
		eventsText,
	)

	return theme.Border.Width(innerWidth).Render(content)
}

func formatEvent(e events.Event, theme Theme) string {
	ts := theme.Dim.Render(e.At.Format("15:04:05"))

	var typeStyle lipgloss.Style
	switch e.Type {
	case events.TypeAnswer:
		typeStyle = theme.StatusOK
	case events.TypeCacheHit:
		typeStyle = theme.StatusCached
	case events.TypeConfigError, events.TypeFetchError:
		typeStyle = theme.StatusFailed
	case events.TypeFetching, events.TypeFetchRetry, events.TypeDeliveryRetry:
		typeStyle = theme.StatusRunning
	case events.TypeDeliveryDropped, events.TypeDispatchDebounced:
		typeStyle = theme.StatusDropped
	default:
		typeStyle = theme.Dim
	}

	typeName := typeStyle.Render(fmt.Sprintf("%-26s", e.Type))
	desc := extractEventDesc(e)

	return fmt.Sprintf("%s %s %s", ts, typeName, desc)
}

func extractEventDesc(e events.Event) string {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	var parts []string

	if id, ok := data["dispatch_id"].(string); ok {
		if len(id) > 8 {
			id = id[:8]
		}
		parts = append(parts, fmt.Sprintf("[%s]", id))
	}

	if dest, ok := data["destination"].(string); ok && dest != "" {
		parts = append(parts, dest)
	}

	if prov, ok := data["provider"].(string); ok && prov != "" {
		parts = append(parts, prov)
	}

	if attempt, ok := data["attempt"].(float64); ok {
		parts = append(parts, fmt.Sprintf("attempt=%d", int(attempt)))
	}

	if errText, ok := data["error"].(string); ok {
		if len(errText) > 50 {
			errText = errText[:50] + "..."
		}
		parts = append(parts, errText)
	}

	if len(parts) == 0 {
		raw := string(e.Data)
		if len(raw) > 60 {
			raw = raw[:60] + "..."
		}
		return raw
	}

	return strings.Join(parts, " ")
}
