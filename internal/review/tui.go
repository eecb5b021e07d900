// Package review is a terminal browser over digest postings.
package review

import (
	"fmt"
	"os/exec"
	"runtime"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/oppradar/internal/model"
)

// Lines per posting in the list pane (title + subtitle + blank separator).
const rowHeight = 3

type sortMode int

const (
	sortByScore sortMode = iota
	sortByDate
)

func (s sortMode) String() string {
	if s == sortByDate {
		return "date"
	}
	return "score"
}

var (
	activeBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("39")) // bright blue

	inactiveBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240")) // dim gray

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	activeHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("39"))

	inactiveHeaderStyle = headerStyle.
				Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("236"))

	rowTitleStyle = lipgloss.NewStyle().
			Bold(true)

	rowSubtitleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245"))

	selectedRowTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("24"))

	selectedRowSubtitleStyle = lipgloss.NewStyle().
					Foreground(lipgloss.Color("252")).
					Background(lipgloss.Color("24"))

	detailLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39")).
				Width(14)

	detailValueStyle = lipgloss.NewStyle()

	detailTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15"))

	dividerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	descBodyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	highScoreStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	midScoreStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// openURL opens url in the default system browser, fire-and-forget.
var openURL = func(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		return
	}
	_ = cmd.Start()
}

type reviewModel struct {
	title      string
	rows       []model.ScoredPosting
	sort       sortMode
	cursor     int
	activePane int // 0=list, 1=detail
	list       viewport.Model
	detail     viewport.Model
	width      int
	height     int
	ready      bool
	wantQuit   bool
}

func newReviewModel(title string, rows []model.ScoredPosting) reviewModel {
	m := reviewModel{title: title, rows: append([]model.ScoredPosting(nil), rows...)}
	sortRows(m.rows, m.sort)
	return m
}

func (m reviewModel) Init() tea.Cmd {
	return nil
}

func (m reviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recalcLayout()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.wantQuit = true
			return m, tea.Quit
		case "esc", "b":
			m.wantQuit = false
			return m, tea.Quit
		case "tab", "left", "right", "enter":
			m.activePane = 1 - m.activePane
			m.recalcContent()
			return m, nil
		case "o":
			if r, ok := m.selected(); ok && r.Posting.URL != "" {
				openURL(r.Posting.URL)
			}
			return m, nil
		case "s":
			m.toggleSort()
			return m, nil
		}

		if m.activePane == 0 {
			switch msg.String() {
			case "up", "k":
				m.moveCursor(-1)
				return m, nil
			case "down", "j":
				m.moveCursor(1)
				return m, nil
			}
			var cmd tea.Cmd
			m.list, cmd = m.list.Update(msg)
			return m, cmd
		}

		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m reviewModel) selected() (model.ScoredPosting, bool) {
	if len(m.rows) == 0 {
		return model.ScoredPosting{}, false
	}
	return m.rows[m.cursor], true
}

func (m *reviewModel) moveCursor(delta int) {
	m.cursor = clamp(m.cursor+delta, 0, max(len(m.rows)-1, 0))
	m.recalcContent()
	m.detail.SetYOffset(0)
	m.ensureCursorVisible()
}

// toggleSort switches the ordering and keeps the selected posting selected.
func (m *reviewModel) toggleSort() {
	cur, ok := m.selected()
	m.sort = 1 - m.sort
	sortRows(m.rows, m.sort)
	if ok {
		for i, r := range m.rows {
			if r.Posting.URL == cur.Posting.URL {
				m.cursor = i
				break
			}
		}
	}
	m.recalcContent()
	m.ensureCursorVisible()
}

func (m *reviewModel) ensureCursorVisible() {
	top := m.cursor * rowHeight
	bottom := top + rowHeight - 1

	if top < m.list.YOffset {
		m.list.SetYOffset(top)
	} else if bottom >= m.list.YOffset+m.list.Height {
		m.list.SetYOffset(bottom - m.list.Height + 1)
	}
}

func (m *reviewModel) recalcLayout() {
	// 2 border chars per pane + 1 gap between panes; the list takes two fifths.
	listWidth := max((m.width-5)*2/5, 24)
	detailWidth := max(m.width-5-listWidth, 24)

	// Header (1 line) + border top/bottom (2) + status bar (1) = 4 lines overhead.
	paneHeight := max(m.height-4, 5)

	if !m.ready {
		m.list = viewport.New(listWidth, paneHeight)
		m.detail = viewport.New(detailWidth, paneHeight)
		m.ready = true
	} else {
		m.list.Width = listWidth
		m.list.Height = paneHeight
		m.detail.Width = detailWidth
		m.detail.Height = paneHeight
	}

	m.recalcContent()
}

func (m *reviewModel) recalcContent() {
	m.list.SetContent(renderRows(m.rows, m.cursor, m.activePane == 0))
	if r, ok := m.selected(); ok {
		m.detail.SetContent(renderDetail(r, m.detail.Width))
	} else {
		m.detail.SetContent("  (nothing to show)")
	}
}

func (m reviewModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	listHeader := fmt.Sprintf(" %s (%d) by %s", m.title, len(m.rows), m.sort)
	detailHeader := " Posting"

	listHeaderSt, detailHeaderSt := activeHeaderStyle, inactiveHeaderStyle
	listBorder, detailBorder := activeBorderStyle, inactiveBorderStyle
	if m.activePane == 1 {
		listHeaderSt, detailHeaderSt = inactiveHeaderStyle, activeHeaderStyle
		listBorder, detailBorder = inactiveBorderStyle, activeBorderStyle
	}

	headerRow := lipgloss.JoinHorizontal(lipgloss.Top,
		lipgloss.NewStyle().Width(m.list.Width+2).Render(listHeaderSt.Render(listHeader)),
		" ",
		lipgloss.NewStyle().Width(m.detail.Width+2).Render(detailHeaderSt.Render(detailHeader)),
	)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		listBorder.Width(m.list.Width).Render(m.list.View()),
		" ",
		detailBorder.Width(m.detail.Width).Render(m.detail.View()),
	)

	statusText := " ↑/↓ cursor  Tab switch pane  s sort  o open URL  Esc back  q quit"
	statusBar := statusBarStyle.Width(m.width).Render(statusText)

	return headerRow + "\n" + panes + "\n" + statusBar
}

func renderRows(rows []model.ScoredPosting, cursor int, isActive bool) string {
	if len(rows) == 0 {
		return "  (no postings)"
	}

	var b strings.Builder
	for i, r := range rows {
		isSelected := isActive && i == cursor

		titleSt := rowTitleStyle
		subtitleSt := rowSubtitleStyle
		prefix := "  "
		if isSelected {
			titleSt = selectedRowTitleStyle
			subtitleSt = selectedRowSubtitleStyle
			prefix = "> "
		}

		b.WriteString(prefix)
		b.WriteString(scoreStyle(r.Posting.Score).Render(formatScore(r.Posting.Score)))
		b.WriteByte(' ')
		b.WriteString(titleSt.Render(r.Posting.Title))
		b.WriteByte('\n')

		b.WriteString(prefix)
		b.WriteString(subtitleSt.Render(fmt.Sprintf("%s · %s · %s",
			r.Company.Name, r.Posting.Location, r.Posting.PostingDate.Format("2006-01-02"))))
		b.WriteByte('\n')

		if i < len(rows)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func renderDetail(r model.ScoredPosting, width int) string {
	var b strings.Builder

	addField := func(label, value string) {
		if value == "" {
			return
		}
		b.WriteString(detailLabelStyle.Render(label))
		b.WriteString(detailValueStyle.Render(value))
		b.WriteByte('\n')
	}

	p, c := r.Posting, r.Company
	b.WriteString(detailTitleStyle.Render(p.Title) + "\n\n")

	addField("Score", formatScore(p.Score))
	addField("Company", c.Name)
	addField("Domain", c.Domain)
	addField("Location", p.Location)
	addField("Remote", yesNo(p.Remote))
	addField("Posted", p.PostingDate.Format("2006-01-02"))
	addField("Funding", c.FundingStage)
	addField("Headquarters", c.Headquarters)
	if c.EmployeeCount > 0 {
		addField("Employees", fmt.Sprintf("%d", c.EmployeeCount))
	}

	b.WriteByte('\n')
	addField("URL", p.URL)

	wrapWidth := max(width-4, 20)
	for _, section := range []struct{ label, text string }{
		{"── Posting ", p.Description},
		{"── Company ", c.Description},
	} {
		if strings.TrimSpace(section.text) == "" {
			continue
		}
		fill := strings.Repeat("─", max(wrapWidth-len(section.label), 3))
		b.WriteByte('\n')
		b.WriteString(dividerStyle.Render(section.label+fill) + "\n\n")
		b.WriteString(descBodyStyle.Render(wordWrap(section.text, wrapWidth)) + "\n")
	}

	return b.String()
}

func formatScore(s *float64) string {
	if s == nil {
		return "  -  "
	}
	return fmt.Sprintf("%5.1f", *s)
}

func scoreStyle(s *float64) lipgloss.Style {
	switch {
	case s == nil:
		return rowSubtitleStyle
	case *s >= 85:
		return highScoreStyle
	case *s >= 70:
		return midScoreStyle
	default:
		return rowSubtitleStyle
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// sortRows orders by score (best first) or by posting date (newest first).
// Ties fall back to URL so the order is stable across toggles.
func sortRows(rows []model.ScoredPosting, mode sortMode) {
	score := func(r model.ScoredPosting) float64 {
		if r.Posting.Score == nil {
			return -1
		}
		return *r.Posting.Score
	}
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if mode == sortByDate && !a.Posting.PostingDate.Equal(b.Posting.PostingDate) {
			return a.Posting.PostingDate.After(b.Posting.PostingDate)
		}
		if sa, sb := score(a), score(b); sa != sb {
			return sa > sb
		}
		return a.Posting.URL < b.Posting.URL
	})
}

func wordWrap(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if len(line)+1+len(w) <= width {
			line += " " + w
		} else {
			lines = append(lines, line)
			line = w
		}
	}
	lines = append(lines, line)
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RunReviewTUI launches the split-pane review browser over rows.
// Returns wantQuit=true if the user pressed q/ctrl+c, false if they pressed
// esc to return to the picker.
func RunReviewTUI(title string, rows []model.ScoredPosting) (bool, error) {
	p := tea.NewProgram(newReviewModel(title, rows), tea.WithAltScreen())
	result, err := p.Run()
	if err != nil {
		return false, err
	}
	final := result.(reviewModel)
	return final.wantQuit, nil
}
