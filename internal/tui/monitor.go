// Package tui holds the simple dispatch monitor. The richer live view lives
// in the watch subpackage.
package tui

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/snipq/snipq/internal/events"
	"github.com/snipq/snipq/internal/history"
)

// --- Styles ---

var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD"))

	statusOK      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	statusRunning = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	statusFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	statusDropped = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Padding(0, 1)
)

// --- Types ---

type Model struct {
	apiURL string

	width  int
	height int

	records   []history.Record
	eventLog  []events.Event
	hubEvents chan events.Event

	health struct {
		Status string
	}

	dispatchTable table.Model
	eventView     viewport.Model
}

type eventMsg events.Event
type healthMsg struct {
	Status string `json:"status"`
}
type historyMsg []history.Record
type errMsg error

// --- Init ---

func NewMonitor(apiURL string) *Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "ST", Width: 2},
			{Title: "Destination", Width: 16},
			{Title: "Provider", Width: 10},
			{Title: "Model", Width: 18},
			{Title: "ID", Width: 10},
			{Title: "Duration", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return &Model{
		apiURL:    apiURL,
		eventLog:  make([]events.Event, 0),
		hubEvents: make(chan events.Event, 100),

		dispatchTable: t,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.subscribeToEvents(),
		m.pollHealth(),
		m.pollHistory(),
		tea.EnterAltScreen,
	)
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.dispatchTable.SetWidth(m.width - 6)
		m.eventView.Width = m.width - 6
		m.eventView.Height = m.height / 3

	case eventMsg:
		m.handleEvent(events.Event(msg))
		return m, m.receiveNextEvent()

	case healthMsg:
		m.health.Status = msg.Status
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.fetchHealth()
		})

	case historyMsg:
		m.records = []history.Record(msg)
		m.updateTable()
		return m, tea.Tick(3*time.Second, func(t time.Time) tea.Msg {
			return m.fetchHistory()
		})

	case errMsg:
		// Keep running; health/history polls reschedule themselves.
		return m, tea.Tick(5*time.Second, func(t time.Time) tea.Msg {
			return m.fetchHealth()
		})
	}

	m.dispatchTable, cmd = m.dispatchTable.Update(msg)
	return m, cmd
}

func (m *Model) handleEvent(e events.Event) {
	m.eventLog = append([]events.Event{e}, m.eventLog...)
	if len(m.eventLog) > 50 {
		m.eventLog = m.eventLog[:50]
	}
	m.eventView.SetContent(m.renderEvents())
}

func (m *Model) updateTable() {
	var rows []table.Row
	for _, rec := range m.records {
		rows = append(rows, recordToRow(rec))
	}
	m.dispatchTable.SetRows(rows)
}

func recordToRow(rec history.Record) table.Row {
	statusSym := "○"
	switch rec.Status {
	case history.StatusFetching:
		statusSym = statusRunning.Render("◉")
	case history.StatusDelivered:
		statusSym = statusOK.Render("●")
	case history.StatusFailed:
		statusSym = statusFailed.Render("∅")
	case history.StatusDropped:
		statusSym = statusDropped.Render("◔")
	}

	duration := "-"
	if rec.CompletedAt != nil {
		duration = rec.CompletedAt.Sub(rec.CreatedAt).Round(time.Millisecond).String()
	}

	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}

	return table.Row{
		statusSym,
		rec.Destination,
		string(rec.Provider),
		rec.Model,
		id,
		duration,
	}
}

// --- View ---

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	header := m.renderHeader()
	dispatches := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Dispatches"),
			m.dispatchTable.View(),
		),
	)

	eventsView := borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			titleStyle.Render("Event Stream"),
			m.eventView.View(),
		),
	)

	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(" [q] Quit • [↑/↓] Scroll Dispatches")

	return docStyle.Render(
		lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			dispatches,
			eventsView,
			help,
		),
	)
}

func (m Model) renderHeader() string {
	status := statusOK.Render("RUNNING")
	if m.health.Status != "ok" && m.health.Status != "" {
		status = statusFailed.Render("DEGRADED")
	}

	delivered, failed := 0, 0
	for _, rec := range m.records {
		switch rec.Status {
		case history.StatusDelivered:
			delivered++
		case history.StatusFailed, history.StatusDropped:
			failed++
		}
	}

	items := []string{
		fmt.Sprintf("Status: %s", status),
		fmt.Sprintf("Recent: %d", len(m.records)),
		fmt.Sprintf("Delivered: %d", delivered),
		fmt.Sprintf("Failed: %d", failed),
	}

	return borderStyle.Width(m.width - 4).Render(
		lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[0]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[1]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[2]),
			lipgloss.NewStyle().Width((m.width-4)/4).Render(items[3]),
		),
	)
}

func (m Model) renderEvents() string {
	var lines []string
	for i, e := range m.eventLog {
		if i >= 10 {
			break
		}
		ts := e.At.Format("15:04:05")
		lines = append(lines, fmt.Sprintf("%s | %-26s | %s", ts, e.Type, string(e.Data)))
	}
	if len(lines) == 0 {
		return "  No events yet..."
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

// --- Commands ---

func (m Model) subscribeToEvents() tea.Cmd {
	return func() tea.Msg {
		client := &http.Client{}
		resp, err := client.Get(m.apiURL + "/v1/events")
		if err != nil {
			return errMsg(err)
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		var typ string
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "event: ") {
				typ = line[7:]
			}
			if strings.HasPrefix(line, "data: ") {
				m.hubEvents <- events.Event{
					Type: typ,
					At:   time.Now(),
					Data: []byte(line[6:]),
				}
				typ = ""
			}
		}
		return nil
	}
}

func (m Model) receiveNextEvent() tea.Cmd {
	return func() tea.Msg {
		return eventMsg(<-m.hubEvents)
	}
}

func (m Model) pollHealth() tea.Cmd {
	return func() tea.Msg {
		return m.fetchHealth()
	}
}

func (m Model) fetchHealth() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(m.apiURL + "/healthz")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return errMsg(err)
	}
	return h
}

func (m Model) pollHistory() tea.Cmd {
	return func() tea.Msg {
		return m.fetchHistory()
	}
}

func (m Model) fetchHistory() tea.Msg {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(m.apiURL + "/v1/history?limit=20")
	if err != nil {
		return errMsg(err)
	}
	defer resp.Body.Close()

	var body struct {
		Dispatches []history.Record `json:"dispatches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errMsg(err)
	}
	return historyMsg(body.Dispatches)
}
