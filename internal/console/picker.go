package console

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/ajirawise/internal/catalog"
)

var (
	pickerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Padding(1, 0, 1, 2)

	pickerItemStyle = lipgloss.NewStyle().
			Padding(0, 0, 0, 4)

	pickerSelectedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("39")).
				Bold(true).
				Padding(0, 0, 0, 2)

	pickerTermsStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("244")).
				Padding(0, 0, 0, 7)

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

const (
	pickerPending = -1
	pickerQuit    = -2
)

type pickerModel struct {
	categories []string
	cursor     int
	chosen     int
}

func newPickerModel(categories []string, current string) pickerModel {
	m := pickerModel{categories: categories, chosen: pickerPending}
	for i, c := range categories {
		if c == current {
			m.cursor = i
			break
		}
	}
	return m
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch s := key.String(); s {
	case "q", "ctrl+c", "esc":
		m.chosen = pickerQuit
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.categories)-1 {
			m.cursor++
		}
	case "enter":
		m.chosen = m.cursor
		return m, tea.Quit
	default:
		// Digits pick directly, numbered like the chat category menu.
		if len(s) == 1 && s[0] >= '1' && s[0] <= '9' {
			if i := int(s[0] - '1'); i < len(m.categories) {
				m.cursor = i
				m.chosen = i
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	var b strings.Builder
	b.WriteString(pickerTitleStyle.Render("Board Check: select a category"))
	b.WriteString("\n")

	for i, c := range m.categories {
		label := fmt.Sprintf("%d. %s", i+1, c)
		if i == m.cursor {
			b.WriteString(pickerSelectedStyle.Render("> " + label))
			b.WriteString("\n")
			b.WriteString(pickerTermsStyle.Render("searches: " + strings.Join(catalog.PrimaryTerms(c, 3), ", ")))
		} else {
			b.WriteString(pickerItemStyle.Render(label))
		}
		b.WriteString("\n")
	}

	b.WriteString(pickerHintStyle.Render("↑/↓/j/k navigate  1-9 pick  enter select  q quit"))
	return b.String()
}

// RunCategoryPicker shows an interactive category selector with the cursor
// on current. Returns the index of the chosen category, or -1 if the user quit.
func RunCategoryPicker(categories []string, current string) (int, error) {
	p := tea.NewProgram(newPickerModel(categories, current))
	result, err := p.Run()
	if err != nil {
		return -1, err
	}

	final := result.(pickerModel)
	if final.chosen < 0 {
		return -1, nil
	}
	return final.chosen, nil
}
