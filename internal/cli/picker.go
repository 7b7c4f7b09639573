package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strongdm/mdc/internal/autocomplete"
)

const (
	pickerWidth      = 64
	pickerInnerWidth = pickerWidth - 4
	pickerMaxRows    = 10
)

// errPickerCancelled is returned when the user leaves the picker without
// choosing an item.
var errPickerCancelled = errors.New("selection cancelled")

// pickerModel lists completion items, narrows them as the user types and
// resolves to one item on enter.
type pickerModel struct {
	theme  theme
	title  string
	items  []autocomplete.Item
	filter string

	visible  []int
	cursor   int
	offset   int
	chosen   int
	canceled bool
}

func newPickerModel(title string, items []autocomplete.Item, th theme) *pickerModel {
	m := &pickerModel{theme: th, title: title, items: items, chosen: -1}
	m.refilter()
	return m
}

func (m *pickerModel) Init() tea.Cmd { return nil }

func (m *pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		m.canceled = true
		return m, tea.Quit
	case tea.KeyUp, tea.KeyShiftTab:
		m.move(-1)
	case tea.KeyDown, tea.KeyTab:
		m.move(1)
	case tea.KeyEnter:
		if len(m.visible) == 0 {
			return m, nil
		}
		m.chosen = m.visible[m.cursor]
		return m, tea.Quit
	case tea.KeyBackspace:
		if r := []rune(m.filter); len(r) > 0 {
			m.filter = string(r[:len(r)-1])
			m.refilter()
		}
	case tea.KeyRunes:
		m.filter += string(key.Runes)
		m.refilter()
	}
	return m, nil
}

func (m *pickerModel) move(delta int) {
	if len(m.visible) == 0 {
		return
	}
	m.cursor = (m.cursor + delta + len(m.visible)) % len(m.visible)
	if m.cursor < m.offset {
		m.offset = m.cursor
	}
	if m.cursor >= m.offset+pickerMaxRows {
		m.offset = m.cursor - pickerMaxRows + 1
	}
}

// refilter keeps items whose filter text or label contains the typed filter,
// case-insensitively, in their ranked order.
func (m *pickerModel) refilter() {
	needle := strings.ToLower(m.filter)
	m.visible = m.visible[:0]
	for i, item := range m.items {
		hay := item.FilterText
		if hay == "" {
			hay = item.Label
		}
		if needle == "" || strings.Contains(strings.ToLower(hay), needle) {
			m.visible = append(m.visible, i)
		}
	}
	m.cursor = 0
	m.offset = 0
}

// Selected returns the chosen item.
func (m *pickerModel) Selected() (autocomplete.Item, bool) {
	if m.canceled || m.chosen < 0 {
		return autocomplete.Item{}, false
	}
	return m.items[m.chosen], true
}

func (m *pickerModel) View() string {
	rows := []string{
		m.theme.title.Render(m.title),
		fmt.Sprintf("Filter: %s", m.theme.filter.Render(m.filter)),
		"",
	}

	if len(m.visible) == 0 {
		rows = append(rows, m.theme.detail.Render("no matching items"))
	}
	end := min(len(m.visible), m.offset+pickerMaxRows)
	for row := m.offset; row < end; row++ {
		item := m.items[m.visible[row]]
		prefix := m.theme.prefixInactive
		label := m.theme.label.Render(item.Label)
		if row == m.cursor {
			prefix = m.theme.prefixActive
			label = m.theme.labelActive.Render(" " + item.Label + " ")
		}
		line := fmt.Sprintf("%s %s %s", prefix, label, m.theme.kind.Render(itemSuffix(item)))
		rows = append(rows, line)
	}
	if len(m.visible) > pickerMaxRows {
		rows = append(rows, m.theme.detail.Render(fmt.Sprintf("%d of %d", m.cursor+1, len(m.visible))))
	}

	rows = append(rows, "", m.theme.help.Render(fmt.Sprintf("Type to filter. %s/%s move, %s inserts, %s cancels.",
		m.theme.keyCap("↑"), m.theme.keyCap("↓"), m.theme.keyCap("Enter"), m.theme.keyCap("Esc"))))

	lines := strings.Split(lipgloss.JoinVertical(lipgloss.Left, rows...), "\n")
	card := make([]string, 0, len(lines)+2)
	card = append(card, m.borderLine("╭", "╮"))
	for _, line := range lines {
		card = append(card, m.contentLine(line))
	}
	card = append(card, m.borderLine("╰", "╯"))
	return "\n" + strings.Join(card, "\n") + "\n"
}

func (m *pickerModel) borderLine(left, right string) string {
	line := left + strings.Repeat("─", pickerWidth) + right
	if m.theme.color && m.theme.accentColor != "" {
		return lipgloss.NewStyle().Foreground(m.theme.accentColor).Render(line)
	}
	return line
}

func (m *pickerModel) contentLine(inner string) string {
	if width := lipgloss.Width(inner); width < pickerInnerWidth {
		inner += strings.Repeat(" ", pickerInnerWidth-width)
	}
	border := "│"
	if m.theme.color && m.theme.accentColor != "" {
		border = lipgloss.NewStyle().Foreground(m.theme.accentColor).Render("│")
	}
	return border + "  " + inner + "  " + border
}

// itemSuffix renders the muted text after a label: the type for properties
// and the description for components.
func itemSuffix(item autocomplete.Item) string {
	if item.LabelDetails != nil {
		parts := []string{}
		if item.LabelDetails.Description != "" {
			parts = append(parts, item.LabelDetails.Description)
		}
		if item.LabelDetails.Detail != "" {
			parts = append(parts, item.LabelDetails.Detail)
		}
		if len(parts) > 0 {
			return strings.Join(parts, " ")
		}
	}
	if item.Detail != "" {
		return item.Detail
	}
	return string(item.Kind)
}

// pick runs the picker on a terminal and returns the chosen item.
func pick(ctx context.Context, in io.Reader, out io.Writer, title string, items []autocomplete.Item) (autocomplete.Item, error) {
	model := newPickerModel(title, items, newTheme(supportsColor(out)))
	prog := tea.NewProgram(model, tea.WithInput(in), tea.WithOutput(out), tea.WithContext(ctx))
	final, err := prog.Run()
	if err != nil {
		return autocomplete.Item{}, fmt.Errorf("run picker: %w", err)
	}
	m, ok := final.(*pickerModel)
	if !ok {
		return autocomplete.Item{}, errPickerCancelled
	}
	item, ok := m.Selected()
	if !ok {
		return autocomplete.Item{}, errPickerCancelled
	}
	return item, nil
}
