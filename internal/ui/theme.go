package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/lotwatch/internal/ledger"
)

// Theme defines colors for the UI.
type Theme struct {
	Name string

	Surface       string
	SelectionBg   string
	SelectionText string
	Border        string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string

	StatusColors map[ledger.Status]string
}

// Styles holds the lipgloss styles derived from a Theme.
type Styles struct {
	Header      lipgloss.Style
	Logo        lipgloss.Style
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
}

// Styles returns lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),
		Logo: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),
		Text:        lipgloss.NewStyle().Foreground(lipgloss.Color(t.Text)),
		MutedText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Muted)),
		FaintText:   lipgloss.NewStyle().Foreground(lipgloss.Color(t.Faint)),
		AccentText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Accent)),
		SuccessText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Success)).Bold(true),
		WarningText: lipgloss.NewStyle().Foreground(lipgloss.Color(t.Warning)),
		DangerText:  lipgloss.NewStyle().Foreground(lipgloss.Color(t.Danger)).Bold(true),
	}
}

// StatusStyle returns the badge style for a lottery status.
func (t Theme) StatusStyle(status ledger.Status) lipgloss.Style {
	color, ok := t.StatusColors[status]
	if !ok {
		color = t.Muted
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
}

// TableStyles adapts the bubbles table styles to the theme.
func (t Theme) TableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(t.Border)).
		BorderBottom(true).
		Foreground(lipgloss.Color(t.Accent)).
		Bold(true)
	s.Cell = s.Cell.Foreground(lipgloss.Color(t.Text))
	s.Selected = s.Selected.
		Foreground(lipgloss.Color(t.SelectionText)).
		Background(lipgloss.Color(t.SelectionBg)).
		Bold(false)
	return s
}

var themes = map[string]Theme{
	"midnight": midnightTheme(),
	"paper":    paperTheme(),
	"mono":     monoTheme(),
}

var themeOrder = []string{"midnight", "paper", "mono"}

// GetTheme returns a theme by name, falling back to Midnight.
func GetTheme(name string) Theme {
	if t, ok := themes[strings.ToLower(strings.TrimSpace(name))]; ok {
		return t
	}
	return themes["midnight"]
}

// NextTheme returns the theme after current in the cycle.
func NextTheme(current string) Theme {
	key := strings.ToLower(strings.TrimSpace(current))
	for i, name := range themeOrder {
		if name == key {
			return themes[themeOrder[(i+1)%len(themeOrder)]]
		}
	}
	return themes[themeOrder[0]]
}

// ThemeNames returns display names in cycle order.
func ThemeNames() []string {
	names := make([]string, 0, len(themeOrder))
	for _, key := range themeOrder {
		names = append(names, themes[key].Name)
	}
	return names
}

func midnightTheme() Theme {
	return Theme{
		Name:          "Midnight",
		Surface:       "#1b2233",
		SelectionBg:   "#2f3b57",
		SelectionText: "#e6ebf5",
		Border:        "#3a4660",
		Text:          "#d5dbe8",
		Muted:         "#8a94ab",
		Faint:         "#5c6680",
		Accent:        "#7aa2f7",
		Success:       "#8fd19e",
		Warning:       "#e0af68",
		Danger:        "#f7768e",
		StatusColors: map[ledger.Status]string{
			ledger.StatusOpen:     "#8fd19e",
			ledger.StatusDrawing:  "#e0af68",
			ledger.StatusSettled:  "#7aa2f7",
			ledger.StatusCanceled: "#f7768e",
			ledger.StatusUnknown:  "#8a94ab",
		},
	}
}

func paperTheme() Theme {
	return Theme{
		Name:          "Paper",
		Surface:       "#ece7dc",
		SelectionBg:   "#d4cbb8",
		SelectionText: "#1f1d1a",
		Border:        "#b8ad97",
		Text:          "#2d2a25",
		Muted:         "#6e675b",
		Faint:         "#9c9483",
		Accent:        "#2e5d9f",
		Success:       "#2f7d4a",
		Warning:       "#a86a12",
		Danger:        "#b3261e",
		StatusColors: map[ledger.Status]string{
			ledger.StatusOpen:     "#2f7d4a",
			ledger.StatusDrawing:  "#a86a12",
			ledger.StatusSettled:  "#2e5d9f",
			ledger.StatusCanceled: "#b3261e",
			ledger.StatusUnknown:  "#6e675b",
		},
	}
}

func monoTheme() Theme {
	return Theme{
		Name:          "Mono",
		Surface:       "#202020",
		SelectionBg:   "#444444",
		SelectionText: "#ffffff",
		Border:        "#555555",
		Text:          "#d0d0d0",
		Muted:         "#909090",
		Faint:         "#606060",
		Accent:        "#ffffff",
		Success:       "#d0d0d0",
		Warning:       "#ffffff",
		Danger:        "#ffffff",
		StatusColors: map[ledger.Status]string{
			ledger.StatusOpen:     "#ffffff",
			ledger.StatusDrawing:  "#d0d0d0",
			ledger.StatusSettled:  "#909090",
			ledger.StatusCanceled: "#606060",
			ledger.StatusUnknown:  "#606060",
		},
	}
}
