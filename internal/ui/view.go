package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lotwatch/internal/ledger"
)

var statusOrder = []ledger.Status{
	ledger.StatusOpen,
	ledger.StatusDrawing,
	ledger.StatusSettled,
	ledger.StatusCanceled,
	ledger.StatusUnknown,
}

// renderMain stacks header, status line, table and footer.
func (m Model) renderMain() string {
	parts := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderContent(),
		m.help.View(m.keys),
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// renderHeader shows the logo and list counters.
func (m Model) renderHeader() string {
	styles := m.theme.Styles()
	counts := make(map[ledger.Status]int)
	for _, l := range m.snapshot.Entities {
		counts[l.Status]++
	}

	parts := []string{
		styles.Logo.Render("lotwatch"),
		styles.Text.Render(fmt.Sprintf("%d lotteries", len(m.snapshot.Entities))),
	}
	for _, status := range statusOrder {
		if n := counts[status]; n > 0 {
			parts = append(parts, m.theme.StatusStyle(status).Render(fmt.Sprintf("%s %d", status, n)))
		}
	}
	if m.hideClosed {
		parts = append(parts, styles.FaintText.Render("closed hidden"))
	}
	if m.snapshot.Revision > 0 {
		parts = append(parts, styles.FaintText.Render(fmt.Sprintf("rev %d", m.snapshot.Revision)))
	}
	parts = append(parts, styles.MutedText.Render(m.theme.Name))

	return styles.Header.Width(max(m.width, 0)).Render(strings.Join(parts, "  "))
}

// renderStatus shows sync state: loading, notes, staleness and focus.
func (m Model) renderStatus() string {
	styles := m.theme.Styles()
	snap := m.snapshot
	var parts []string

	if snap.IsLoading {
		parts = append(parts, styles.AccentText.Render("Syncing..."))
	}
	if snap.IsOffline() {
		parts = append(parts, styles.DangerText.Render("OFFLINE"))
	}
	if snap.Note != "" {
		parts = append(parts, styles.WarningText.Render(snap.Note))
	}
	if !snap.LastUpdated.IsZero() {
		parts = append(parts, styles.MutedText.Render("updated "+humanizeAge(snap.LastUpdated, m.now())))
	} else if !snap.IsLoading && snap.Note == "" {
		parts = append(parts, styles.MutedText.Render("Waiting for indexer"))
	}
	if m.hidden {
		parts = append(parts, styles.FaintText.Render("background"))
	}
	if m.flash != "" {
		parts = append(parts, styles.WarningText.Render(m.flash))
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderContent() string {
	styles := m.theme.Styles()
	if !m.snapshot.HasData() {
		return styles.MutedText.Render(" No data yet")
	}
	if len(m.visible) == 0 {
		if m.hideClosed && len(m.snapshot.Entities) > 0 {
			return styles.MutedText.Render(" No active lotteries (press c to show closed)")
		}
		return styles.MutedText.Render(" No lotteries")
	}
	return m.table.View()
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	h := m.help
	h.ShowAll = true

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n\n")
	b.WriteString(h.View(m.keys))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Press any key to close"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		Padding(1, 2).
		Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}
