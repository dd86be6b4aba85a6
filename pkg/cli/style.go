package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme defines the color scheme for styled output.
type Theme struct {
	Primary lipgloss.Color // accent
	Dim     lipgloss.Color // secondary text
	Warn    lipgloss.Color // no-context notices
	Error   lipgloss.Color // service failures
}

// DefaultTheme is the default green theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#00ff9f"),
	Dim:     lipgloss.Color("#6e7681"),
	Warn:    lipgloss.Color("#e3b341"),
	Error:   lipgloss.Color("#f85149"),
}

// Styles holds all styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Panel  lipgloss.Style
	Help   lipgloss.Style
	Warn   lipgloss.Style
	Error  lipgloss.Style
	Border lipgloss.Color
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Panel:  lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
		Warn:   lipgloss.NewStyle().Foreground(t.Warn),
		Error:  lipgloss.NewStyle().Foreground(t.Error),
		Border: t.Primary,
	}
}

// Tone selects how a panel body is colored.
type Tone int

const (
	ToneNormal Tone = iota
	ToneWarn
	ToneError
)

// Source is one supporting passage listed under a panel.
type Source struct {
	Label string
	Score float32
	Text  string
}

// Panel is a bordered block with a title, a body and optional sources.
type Panel struct {
	Styles  Styles
	Title   string
	Status  string
	Body    string
	Tone    Tone
	Sources []Source
	Footer  string
}

// Render renders the panel at the given width. A width below 20 renders
// without wrapping.
func (p Panel) Render(width int) string {
	inner := 0
	if width >= 20 {
		inner = width - 4 // border and padding
	}

	var b strings.Builder
	b.WriteString(p.Styles.Title.Render(p.Title))
	if p.Status != "" {
		b.WriteString(" " + p.Styles.Help.Render("["+p.Status+"]"))
	}
	b.WriteString("\n\n")

	body := p.Body
	switch p.Tone {
	case ToneWarn:
		body = p.Styles.Warn.Render(body)
	case ToneError:
		body = p.Styles.Error.Render(body)
	}
	b.WriteString(body)

	if len(p.Sources) > 0 {
		b.WriteString("\n\n" + p.Styles.Label.Render("Sources"))
		for i, s := range p.Sources {
			line := fmt.Sprintf("%d. %s (%.3f)", i+1, s.Label, s.Score)
			b.WriteString("\n" + line)
			if s.Text != "" {
				b.WriteString("\n   " + p.Styles.Help.Render(truncate(oneLine(s.Text), max(inner-3, 40))))
			}
		}
	}

	style := p.Styles.Panel
	if inner > 0 {
		style = style.Width(inner)
	}
	out := style.Render(b.String())
	if p.Footer != "" {
		out += "\n" + p.Styles.Help.Render(p.Footer)
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most width cells, adding an ellipsis when cut.
func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	cur := 0
	for i, r := range runes {
		w := lipgloss.Width(string(r))
		if cur+w > width-1 {
			return string(runes[:i]) + "…"
		}
		cur += w
	}
	return s
}
