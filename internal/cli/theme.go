package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

type theme struct {
	color          bool
	accentColor    lipgloss.Color
	title          lipgloss.Style
	label          lipgloss.Style
	labelActive    lipgloss.Style
	kind           lipgloss.Style
	detail         lipgloss.Style
	filter         lipgloss.Style
	help           lipgloss.Style
	key            lipgloss.Style
	prefixActive   string
	prefixInactive string
}

func newTheme(color bool) theme {
	if !color {
		return theme{
			title:          lipgloss.NewStyle().Bold(true),
			label:          lipgloss.NewStyle(),
			labelActive:    lipgloss.NewStyle().Bold(true),
			kind:           lipgloss.NewStyle().Faint(true),
			detail:         lipgloss.NewStyle().Faint(true),
			filter:         lipgloss.NewStyle().Bold(true),
			help:           lipgloss.NewStyle().Faint(true),
			key:            lipgloss.NewStyle().Bold(true),
			prefixActive:   ">",
			prefixInactive: " ",
		}
	}

	accent := lipgloss.Color("#58d4ff")
	muted := lipgloss.Color("#9fb3c8")

	return theme{
		color:          true,
		accentColor:    accent,
		title:          lipgloss.NewStyle().Foreground(accent).Bold(true),
		label:          lipgloss.NewStyle(),
		labelActive:    lipgloss.NewStyle().Foreground(lipgloss.Color("#0b1215")).Background(accent).Bold(true),
		kind:           lipgloss.NewStyle().Foreground(muted),
		detail:         lipgloss.NewStyle().Foreground(muted).Faint(true),
		filter:         lipgloss.NewStyle().Foreground(accent).Bold(true),
		help:           lipgloss.NewStyle().Faint(true),
		key:            lipgloss.NewStyle().Foreground(accent).Bold(true),
		prefixActive:   lipgloss.NewStyle().Foreground(accent).Render("❯"),
		prefixInactive: lipgloss.NewStyle().Foreground(muted).Render("•"),
	}
}

func (t theme) keyCap(k string) string {
	return t.key.Render(k)
}

type fder interface {
	Fd() uintptr
}

func isTerminal(v any) bool {
	f, ok := v.(fder)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func supportsColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isTerminal(w)
}

// canUseBubbleTea reports whether both ends are terminals.
func canUseBubbleTea(in io.Reader, out io.Writer) bool {
	return isTerminal(in) && isTerminal(out)
}
