// Package providerpick is an interactive provider selector used by
// `snipq settings use` when no provider argument is given.
package providerpick

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/snipq/snipq/internal/provider"
)

var (
	titleStyle      = lipgloss.NewStyle().MarginLeft(2)
	paginationStyle = list.DefaultStyles().PaginationStyle.PaddingLeft(4)
	helpStyle       = list.DefaultStyles().HelpStyle.PaddingLeft(4).PaddingBottom(1)
	quitTextStyle   = lipgloss.NewStyle().Margin(1, 0, 2, 4)
)

type item struct {
	id     provider.ID
	desc   string
	active bool
}

func (i item) Title() string {
	marker := "   "
	if i.active {
		marker = "(*)"
	}
	return fmt.Sprintf("%s %s", marker, i.id)
}
func (i item) Description() string { return i.desc }
func (i item) FilterValue() string { return string(i.id) }

type Model struct {
	list     list.Model
	choice   provider.ID
	quitting bool
	done     bool
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, msg.Height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			if i, ok := m.list.SelectedItem().(item); ok {
				m.choice = i.id
				m.done = true
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return quitTextStyle.Render("Cancelled.")
	}
	if m.done {
		return quitTextStyle.Render(fmt.Sprintf("Active provider: %s", m.choice))
	}
	return "\n" + m.list.View()
}

// New builds the picker. active marks the currently selected provider; pass
// an empty id when none is set.
func New(active provider.ID) Model {
	descs := []struct {
		id   provider.ID
		desc string
	}{
		{provider.OpenAI, "OpenAI chat completions API"},
		{provider.Anthropic, "Anthropic messages API"},
		{provider.Gemini, "Google Gemini generateContent API"},
	}

	var items []list.Item
	for _, d := range descs {
		items = append(items, item{id: d.id, desc: d.desc, active: d.id == active})
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Select active provider (Enter to confirm)"
	l.Styles.Title = titleStyle
	l.Styles.PaginationStyle = paginationStyle
	l.Styles.HelpStyle = helpStyle

	return Model{list: l}
}

// Choice returns the selected provider; ok is false when the picker was
// cancelled.
func (m Model) Choice() (provider.ID, bool) {
	return m.choice, m.done
}
