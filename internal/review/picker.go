package review

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/oppradar/internal/model"
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

	pickerHintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Padding(1, 0, 0, 2)
)

// Group is one company and its above-threshold postings. The zero Domain
// stands for every company.
type Group struct {
	Name   string
	Domain string
	Rows   []model.ScoredPosting
}

// GroupByCompany returns an "All companies" group followed by one group per
// company, ordered by best score.
func GroupByCompany(rows []model.ScoredPosting) []Group {
	groups := []Group{{Name: "All companies", Rows: rows}}
	index := make(map[string]int)
	for _, r := range rows {
		i, ok := index[r.Company.Domain]
		if !ok {
			i = len(groups)
			index[r.Company.Domain] = i
			groups = append(groups, Group{Name: r.Company.Name, Domain: r.Company.Domain})
		}
		groups[i].Rows = append(groups[i].Rows, r)
	}
	companies := groups[1:]
	sort.SliceStable(companies, func(i, j int) bool {
		return bestScore(companies[i].Rows) > bestScore(companies[j].Rows)
	})
	return groups
}

func bestScore(rows []model.ScoredPosting) float64 {
	best := 0.0
	for _, r := range rows {
		if s := r.Posting.Score; s != nil && *s > best {
			best = *s
		}
	}
	return best
}

type pickerModel struct {
	groups []Group
	cursor int
	chosen int // -1 = no choice yet, -2 = quit
}

func (m pickerModel) Init() tea.Cmd {
	return nil
}

func (m pickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.chosen = -2
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.groups)-1 {
				m.cursor++
			}
		case "enter":
			m.chosen = m.cursor
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m pickerModel) View() string {
	s := pickerTitleStyle.Render("Digest Review · Select a company")
	s += "\n"

	for i, g := range m.groups {
		label := fmt.Sprintf("%s (%d)", g.Name, len(g.Rows))
		if g.Domain != "" {
			label = fmt.Sprintf("%s · %s (%d, best %.1f)", g.Name, g.Domain, len(g.Rows), bestScore(g.Rows))
		}
		if i == m.cursor {
			s += pickerSelectedStyle.Render("> "+label) + "\n"
		} else {
			s += pickerItemStyle.Render(label) + "\n"
		}
	}

	s += pickerHintStyle.Render("↑/↓/j/k navigate  enter select  q quit")
	return s
}

// RunCompanyPicker shows an interactive company selector.
// Returns the index of the chosen group, or -1 if the user quit.
func RunCompanyPicker(groups []Group) (int, error) {
	m := pickerModel{
		groups: groups,
		chosen: -1,
	}

	p := tea.NewProgram(m)
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
