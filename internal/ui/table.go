package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"

	"github.com/five82/lotwatch/internal/ledger"
)

const idColumnWidth = 14

func tableColumns() []table.Column {
	return []table.Column{
		{Title: "Lottery", Width: idColumnWidth},
		{Title: "Status", Width: 9},
		{Title: "Tickets", Width: 13},
		{Title: "Price", Width: 12},
		{Title: "Pot", Width: 16},
		{Title: "Winner", Width: idColumnWidth},
		{Title: "Activity", Width: 9},
	}
}

// isClosed reports whether a lottery no longer accepts tickets.
func isClosed(l ledger.Lottery) bool {
	return l.Status == ledger.StatusSettled || l.Status == ledger.StatusCanceled
}

// visibleLotteries filters the snapshot's list for display. The input is
// shared with the store and is never modified.
func visibleLotteries(items []ledger.Lottery, hideClosed bool) []ledger.Lottery {
	if !hideClosed {
		return items
	}
	out := make([]ledger.Lottery, 0, len(items))
	for _, l := range items {
		if !isClosed(l) {
			out = append(out, l)
		}
	}
	return out
}

func lotteryRow(l ledger.Lottery, now time.Time) table.Row {
	return table.Row{
		truncateMiddle(l.ID, idColumnWidth),
		string(l.Status),
		formatTickets(l),
		groupDigits(l.TicketPrice),
		groupDigits(l.Pot),
		ternary(l.Winner == "", "-", truncateMiddle(l.Winner, idColumnWidth)),
		humanizeAge(l.ParsedLastActivity(), now),
	}
}

func formatTickets(l ledger.Lottery) string {
	sold := groupDigits(l.TicketsSold)
	if l.Progress() < 0 {
		return sold
	}
	return fmt.Sprintf("%s/%s", sold, groupDigits(l.MaxTickets))
}

// updateTable rebuilds the rows and keeps the cursor on the previously
// selected lottery when it is still visible.
func (m *Model) updateTable() {
	selectedID := m.selectedID()
	m.visible = visibleLotteries(m.snapshot.Entities, m.hideClosed)

	rows := make([]table.Row, 0, len(m.visible))
	cursor := 0
	for i, l := range m.visible {
		rows = append(rows, lotteryRow(l, m.now()))
		if l.ID == selectedID {
			cursor = i
		}
	}
	m.table.SetRows(rows)
	if len(rows) > 0 {
		m.table.SetCursor(cursor)
	}
	if m.height > 0 {
		m.table.SetHeight(max(m.height-chromeHeight, 3))
	}
}

// selectedID returns the id of the lottery under the cursor.
func (m *Model) selectedID() string {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.visible) {
		return ""
	}
	return m.visible[idx].ID
}
