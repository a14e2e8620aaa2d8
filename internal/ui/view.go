package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nicosuave/memex/internal/preview"
)

func (m *Model) View() string {
	if m.quitting {
		return "\n"
	}

	m.ensureDetail()

	listWidth := m.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	previewWidth := m.width - listWidth - 3
	if previewWidth < 20 {
		previewWidth = 20
	}
	bodyHeight := m.height - 4
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	header := m.renderHeader()
	list := m.renderList(listWidth, bodyHeight)
	detail := m.renderDetail(previewWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, detail)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	prompt := "search: " + m.searchInput.View()
	if m.indexing {
		prompt += "  " + m.spinner.View() + " indexing"
	}
	return m.styles.Header.Render(prompt)
}

func (m *Model) renderList(width, height int) string {
	var lines []string
	for i, s := range m.results {
		if i >= height {
			break
		}
		line := fmt.Sprintf("%s  %s  %s", s.Project, string(s.Source), s.Snippet)
		if len(line) > width {
			line = line[:width]
		}
		if i == m.selected {
			line = m.styles.Selected.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, m.styles.Dim.Render("no results"))
	}
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Width(width).
		Height(height)
	return box.Render(strings.Join(lines, "\n"))
}

func (m *Model) renderDetail(width, height int) string {
	var lines []string
	for _, dl := range m.detailLines {
		lines = append(lines, m.renderDetailLine(dl))
	}
	content := strings.Join(lines, "\n")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(ColorDarkGray)).
		Width(width).
		Height(height)
	return box.Render(content)
}

func (m *Model) renderDetailLine(dl preview.DetailLine) string {
	switch dl.Kind {
	case preview.KindHeader:
		return m.styles.Header.Render(dl.Text)
	case preview.KindSnippet:
		return m.styles.Success.Render(dl.Text)
	case preview.KindNote:
		return m.styles.Warning.Render(dl.Text)
	case preview.KindRecord:
		style := m.styles.Dim
		if dl.Highlight {
			style = m.styles.Highlight
		}
		return style.Render(fmt.Sprintf("%s %s", dl.Role, dl.Text))
	default:
		return ""
	}
}

func (m *Model) renderFooter() string {
	parts := []string{"tab: focus", "enter: search", "t: tools", "p: mode", "s: source", "r: resume", "i: index", "ctrl+c: quit"}
	hint := m.styles.Dim.Render(strings.Join(parts, "  "))
	if m.status == "" {
		return hint
	}
	return m.styles.Active.Render(m.status) + "  " + hint
}
