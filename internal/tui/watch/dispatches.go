package watch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/snipq/snipq/internal/events"
)

// DispatchState tracks one dispatch reconstructed from the event stream.
type DispatchState struct {
	ID          string
	Destination string
	Provider    string
	Status      string
	Attempts    int
	LastError   string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

// updateDispatchState folds an event into the per-dispatch view.
func updateDispatchState(dispatches map[string]*DispatchState, e events.Event) {
	data := make(map[string]any)
	_ = json.Unmarshal(e.Data, &data)

	id, _ := data["dispatch_id"].(string)
	if id == "" {
		return
	}

	d, ok := dispatches[id]
	if !ok {
		d = &DispatchState{ID: id, StartedAt: e.At}
		dispatches[id] = d
	}
	d.UpdatedAt = e.At

	if dest, ok := data["destination"].(string); ok && dest != "" {
		d.Destination = dest
	}
	if prov, ok := data["provider"].(string); ok && prov != "" {
		d.Provider = prov
	}
	if attempt, ok := data["attempt"].(float64); ok {
		d.Attempts = int(attempt)
	}
	if errText, ok := data["error"].(string); ok {
		d.LastError = errText
	}

	switch e.Type {
	case events.TypeDispatchReceived:
		d.Status = "received"
	case events.TypeDispatchDebounced:
		d.Status = "debounced"
	case events.TypeConfigError:
		d.Status = "config error"
	case events.TypeCacheHit:
		d.Status = "cache hit"
	case events.TypeFetching:
		d.Status = "fetching"
	case events.TypeFetchRetry:
		d.Status = "retrying"
	case events.TypeAnswer:
		d.Status = "answered"
	case events.TypeFetchError:
		d.Status = "failed"
	case events.TypeDeliveryRetry:
		d.Status = "delivering"
	case events.TypeDeliveryDropped:
		d.Status = "dropped"
	}
}

func statusStyle(status string, theme Theme) lipgloss.Style {
	switch status {
	case "answered":
		return theme.StatusOK
	case "cache hit":
		return theme.StatusCached
	case "failed", "config error":
		return theme.StatusFailed
	case "dropped", "debounced":
		return theme.StatusDropped
	default:
		return theme.StatusRunning
	}
}

func renderDispatches(dispatches map[string]*DispatchState, theme Theme, width int) string {
	innerWidth := width - 4

	if len(dispatches) == 0 {
		content := lipgloss.JoinVertical(lipgloss.Left,
			theme.Title.Render("DISPATCHES"),
			theme.Dim.Render("  No dispatches yet..."),
		)
		return theme.Border.Width(innerWidth).Render(content)
	}

	// Most recently updated first.
	sorted := make([]*DispatchState, 0, len(dispatches))
	for _, d := range dispatches {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	var lines []string
	for i, d := range sorted {
		if i >= 8 {
			break
		}
		lines = append(lines, formatDispatch(d, theme))
	}

	body := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
	content := lipgloss.JoinVertical(lipgloss.Left,
		theme.Title.Render("DISPATCHES"),
		body,
	)
	return theme.Border.Width(innerWidth).Render(content)
}

func formatDispatch(d *DispatchState, theme Theme) string {
	id := d.ID
	if len(id) > 8 {
		id = id[:8]
	}

	status := statusStyle(d.Status, theme).Render(fmt.Sprintf("%-12s", d.Status))

	detail := d.Destination
	if d.Provider != "" {
		detail += " via " + d.Provider
	}
	if d.Attempts > 0 {
		detail += fmt.Sprintf(" (attempt %d)", d.Attempts)
	}
	if d.LastError != "" {
		errText := d.LastError
		if len(errText) > 40 {
			errText = errText[:40] + "..."
		}
		detail += " " + theme.StatusFailed.Render(errText)
	}

	return fmt.Sprintf("%s %s %s", theme.Dim.Render(fmt.Sprintf("[%s]", id)), status, detail)
}
