package styles

import (
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// Dracula color palette
const (
	Background  = "#282a36"
	CurrentLine = "#44475a"
	Foreground  = "#f8f8f2"
	Comment     = "#6272a4"
	Cyan        = "#8be9fd"
	Green       = "#50fa7b"
	Orange      = "#ffb86c"
	Pink        = "#ff79c6"
	Purple      = "#bd93f9"
	Red         = "#ff5555"
	Yellow      = "#f1fa8c"
)

var (
	// App-level styles
	AppStyle = lipgloss.NewStyle().
			Padding(1, 2).
			Foreground(lipgloss.Color(Foreground))

	// Title styles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(Purple)).
			Padding(0, 1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Cyan))

	// Status bar styles
	StatusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Foreground)).
			Background(lipgloss.Color(CurrentLine)).
			Padding(0, 1)

	StatusBarActiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(Green)).
				Background(lipgloss.Color(CurrentLine)).
				Bold(true).
				Padding(0, 1)

	// Panels
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(Comment)).
			Padding(0, 1)

	PanelActiveStyle = PanelStyle.
				BorderForeground(lipgloss.Color(Purple))

	// Info/Alert styles
	InfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Cyan)).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Green)).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Yellow)).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Red)).
			Bold(true)

	// Help/Hints styles
	HelpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Comment)).
			Italic(true)

	// Table styles
	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(Pink)).
				Bold(true).
				BorderStyle(lipgloss.NormalBorder()).
				BorderForeground(lipgloss.Color(Comment)).
				BorderBottom(true)

	TableRowSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(Yellow)).
				Background(lipgloss.Color(CurrentLine)).
				Bold(true)

	// Spinner styles
	SpinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Purple))

	// Progress bar styles
	ProgressBarFilled = lipgloss.NewStyle().
				Foreground(lipgloss.Color(Green))

	ProgressBarEmpty = lipgloss.NewStyle().
				Foreground(lipgloss.Color(CurrentLine))

	// Tab styles
	TabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Comment)).
			Padding(0, 2)

	TabActiveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(Pink)).
			Background(lipgloss.Color(CurrentLine)).
			Bold(true).
			Padding(0, 2)
)

// TableStyles applies the palette to a bubbles table
func TableStyles(focused bool) table.Styles {
	s := table.DefaultStyles()
	s.Header = TableHeaderStyle
	s.Cell = lipgloss.NewStyle().Padding(0, 1)
	if focused {
		s.Selected = TableRowSelectedStyle
	} else {
		s.Selected = lipgloss.NewStyle()
	}
	return s
}

// Truncate truncates text to maxLen runes and adds "..." if needed
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}

// RenderProgressBar renders a progress bar
func RenderProgressBar(current, total, width int) string {
	if total <= 0 || width <= 0 {
		return ProgressBarEmpty.Render(strings.Repeat("░", max(width, 0)))
	}

	filledWidth := width * current / total
	if filledWidth > width {
		filledWidth = width
	}
	if filledWidth < 0 {
		filledWidth = 0
	}

	return ProgressBarFilled.Render(strings.Repeat("█", filledWidth)) +
		ProgressBarEmpty.Render(strings.Repeat("░", width-filledWidth))
}
