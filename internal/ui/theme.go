package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/regardlab/regard/internal/api"
	"github.com/regardlab/regard/internal/state"
)

// Theme defines colors for one rendering variant. An empty color leaves
// the terminal default in place.
type Theme struct {
	Name string

	Surface       string
	SelectionBg   string
	SelectionText string
	Border        string
	BorderFocus   string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string
	Info    string

	// ResultColors maps backend test results to badge colors.
	ResultColors map[string]string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	selected := lipgloss.NewStyle().
		Background(lipgloss.Color(t.SelectionBg)).
		Foreground(lipgloss.Color(t.SelectionText))
	if t.SelectionBg == "" {
		selected = lipgloss.NewStyle().Reverse(true)
	}

	return Styles{
		Text:        fg(t.Text),
		MutedText:   fg(t.Muted),
		FaintText:   fg(t.Faint),
		AccentText:  fg(t.Accent),
		SuccessText: fg(t.Success).Bold(true),
		WarningText: fg(t.Warning),
		DangerText:  fg(t.Danger).Bold(true),
		InfoText:    fg(t.Info),

		Title: fg(t.Accent).Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Footer: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Padding(0, 1),

		Logo: fg(t.Accent).Bold(true),

		Selected: selected,

		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		resultColors: t.ResultColors,
		muted:        t.Muted,
		kinds: map[state.NotificationKind]string{
			state.KindInfo:    t.Info,
			state.KindSuccess: t.Success,
			state.KindWarning: t.Warning,
			state.KindError:   t.Danger,
		},
	}
}

func fg(color string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style
	InfoText    lipgloss.Style

	Title    lipgloss.Style
	Header   lipgloss.Style
	Footer   lipgloss.Style
	Logo     lipgloss.Style
	Selected lipgloss.Style
	Card     lipgloss.Style

	resultColors map[string]string
	muted        string
	kinds        map[state.NotificationKind]string
}

// ResultStyle returns the badge style for a backend result.
func (s Styles) ResultStyle(result string) lipgloss.Style {
	color := s.resultColors[strings.ToLower(strings.TrimSpace(result))]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(color)).
		Bold(true)
}

// KindStyle returns the toast style for a notification kind.
func (s Styles) KindStyle(kind state.NotificationKind) lipgloss.Style {
	color := s.kinds[kind]
	if color == "" {
		color = s.muted
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(lipgloss.Color(color)).
		Foreground(lipgloss.Color(color)).
		PaddingLeft(1)
}

// resultLabel returns the display name of a backend result.
func resultLabel(result string) string {
	switch strings.ToLower(strings.TrimSpace(result)) {
	case api.ResultExcellent:
		return "Excellent"
	case api.ResultGood:
		return "Good"
	case api.ResultAcceptable:
		return "Acceptable"
	case api.ResultPoor:
		return "Poor"
	case "":
		return "Pending"
	default:
		return strings.ToUpper(result)
	}
}

var themes = map[string]Theme{
	"DSFR":     dsfrTheme(),
	"Tailwind": tailwindTheme(),
	"Plain":    plainTheme(),
}

var themeOrder = []string{"DSFR", "Tailwind", "Plain"}

// GetTheme returns a theme by name, falling back to DSFR.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return dsfrTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func dsfrTheme() Theme {
	// Système de Design de l'État palette.
	return Theme{
		Name: "DSFR",

		Surface:       "#000091", // bleu France
		SelectionBg:   "#6a6af4", // blue-france-main-525
		SelectionText: "#ffffff",
		Border:        "#929292",
		BorderFocus:   "#6a6af4",

		Text:    "#f6f6f6",
		Muted:   "#929292",
		Faint:   "#666666",
		Accent:  "#8585f6", // blue-france-625
		Success: "#27a658", // success-425 (dark mode)
		Warning: "#fc5d00", // warning-425
		Danger:  "#ff5655", // error-625
		Info:    "#518fff", // info-625

		ResultColors: map[string]string{
			api.ResultExcellent:  "#27a658",
			api.ResultGood:       "#518fff",
			api.ResultAcceptable: "#fc5d00",
			api.ResultPoor:       "#ff5655",
		},
	}
}

func tailwindTheme() Theme {
	// Tailwind CSS gray/blue palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Tailwind",

		Surface:       "#1e3a8a", // blue-900
		SelectionBg:   "#2563eb", // blue-600
		SelectionText: "#f9fafb", // gray-50
		Border:        "#4b5563", // gray-600
		BorderFocus:   "#60a5fa", // blue-400

		Text:    "#f3f4f6", // gray-100
		Muted:   "#9ca3af", // gray-400
		Faint:   "#6b7280", // gray-500
		Accent:  "#60a5fa", // blue-400
		Success: "#22c55e", // green-500
		Warning: "#eab308", // yellow-500
		Danger:  "#ef4444", // red-500
		Info:    "#38bdf8", // sky-400

		ResultColors: map[string]string{
			api.ResultExcellent:  "#22c55e",
			api.ResultGood:       "#60a5fa",
			api.ResultAcceptable: "#eab308",
			api.ResultPoor:       "#ef4444",
		},
	}
}

func plainTheme() Theme {
	// No colors: the markup-free rendering of the template variant.
	return Theme{Name: "Plain"}
}
