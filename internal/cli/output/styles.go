package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Styles holds lipgloss styles for text output.
type Styles struct {
	Header1 lipgloss.Style
	Header2 lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Info    lipgloss.Style
	Success lipgloss.Style
}

// NewStyles creates styles bound to w. Without a terminal every style
// renders plain text.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	var re *lipgloss.Renderer
	if isTTY {
		re = lipgloss.NewRenderer(w)
	} else {
		re = lipgloss.NewRenderer(w, termenv.WithProfile(termenv.Ascii))
	}

	return &Styles{
		Header1: re.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2: re.NewStyle().Bold(true).Underline(true),
		Bold:    re.NewStyle().Bold(true),
		Muted:   re.NewStyle().Foreground(lipgloss.Color("8")),
		Error:   re.NewStyle().Foreground(lipgloss.Color("9")),
		Warning: re.NewStyle().Foreground(lipgloss.Color("11")),
		Info:    re.NewStyle().Foreground(lipgloss.Color("14")),
		Success: re.NewStyle().Foreground(lipgloss.Color("10")),
	}
}
