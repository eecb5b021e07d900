package review

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amishk599/oppradar/internal/model"
)

func score(v float64) *float64 { return &v }

func row(company, domain, title, url string, s float64, day int) model.ScoredPosting {
	return model.ScoredPosting{
		Posting: model.JobPosting{
			Title:       title,
			Location:    "Remote",
			URL:         url,
			Remote:      true,
			Score:       score(s),
			PostingDate: time.Date(2026, 10, day, 0, 0, 0, 0, time.UTC),
			Description: "Build computer vision models for jobsite safety.",
		},
		Company: model.Company{Name: company, Domain: domain, Description: "Construction AI"},
	}
}

func sampleRows() []model.ScoredPosting {
	return []model.ScoredPosting{
		row("Acme-Ai", "acme-ai.com", "Data Analyst", "https://x/1", 72, 18),
		row("Buildbot", "buildbot.io", "ML Engineer", "https://x/2", 95, 10),
		row("Acme-Ai", "acme-ai.com", "Computer Vision Engineer", "https://x/3", 88, 15),
	}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sized(m reviewModel) reviewModel {
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return next.(reviewModel)
}

func send(m reviewModel, keys ...string) reviewModel {
	for _, k := range keys {
		next, _ := m.Update(key(k))
		m = next.(reviewModel)
	}
	return m
}

func TestReview_SortsByScoreThenDate(t *testing.T) {
	m := sized(newReviewModel("All companies", sampleRows()))

	titles := func() []string {
		var out []string
		for _, r := range m.rows {
			out = append(out, r.Posting.Title)
		}
		return out
	}
	assert.Equal(t, []string{"ML Engineer", "Computer Vision Engineer", "Data Analyst"}, titles())

	m = send(m, "s")
	assert.Equal(t, sortByDate, m.sort)
	assert.Equal(t, []string{"Data Analyst", "Computer Vision Engineer", "ML Engineer"}, titles())
}

func TestReview_ToggleSortKeepsSelection(t *testing.T) {
	m := sized(newReviewModel("All", sampleRows()))
	m = send(m, "j")
	require.Equal(t, "Computer Vision Engineer", m.rows[m.cursor].Posting.Title)

	m = send(m, "s")
	assert.Equal(t, "Computer Vision Engineer", m.rows[m.cursor].Posting.Title)
}

func TestReview_CursorClamped(t *testing.T) {
	m := sized(newReviewModel("All", sampleRows()))
	m = send(m, "up", "k")
	assert.Equal(t, 0, m.cursor)

	m = send(m, "down", "down", "down", "down")
	assert.Equal(t, 2, m.cursor)
}

func TestReview_OpenURL(t *testing.T) {
	var opened []string
	orig := openURL
	openURL = func(url string) { opened = append(opened, url) }
	defer func() { openURL = orig }()

	m := sized(newReviewModel("All", sampleRows()))
	m = send(m, "j", "o")
	assert.Equal(t, []string{"https://x/3"}, opened)
}

func TestReview_PaneSwitchAndQuit(t *testing.T) {
	m := sized(newReviewModel("All", sampleRows()))
	m = send(m, "tab")
	assert.Equal(t, 1, m.activePane)

	// Cursor keys scroll the detail pane, not the list.
	m = send(m, "down")
	assert.Equal(t, 0, m.cursor)

	next, cmd := m.Update(key("esc"))
	assert.False(t, next.(reviewModel).wantQuit)
	assert.NotNil(t, cmd)

	next, _ = m.Update(key("q"))
	assert.True(t, next.(reviewModel).wantQuit)
}

func TestReview_EmptyRows(t *testing.T) {
	m := sized(newReviewModel("Nobody", nil))
	m = send(m, "j", "o")
	assert.Contains(t, m.View(), "(no postings)")
}

func TestRenderDetail(t *testing.T) {
	out := renderDetail(sampleRows()[1], 80)
	for _, want := range []string{"ML Engineer", "95.0", "Buildbot", "buildbot.io", "https://x/2", "jobsite safety", "Construction AI"} {
		assert.Contains(t, out, want)
	}
}

func TestGroupByCompany(t *testing.T) {
	groups := GroupByCompany(sampleRows())
	require.Len(t, groups, 3)

	assert.Equal(t, "All companies", groups[0].Name)
	assert.Len(t, groups[0].Rows, 3)
	assert.Equal(t, "buildbot.io", groups[1].Domain, "best score first")
	assert.Equal(t, "acme-ai.com", groups[2].Domain)
	assert.Len(t, groups[2].Rows, 2)
}

func TestPicker_Choose(t *testing.T) {
	m := pickerModel{groups: GroupByCompany(sampleRows()), chosen: -1}
	next, _ := m.Update(key("down"))
	next, _ = next.(pickerModel).Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, 1, next.(pickerModel).chosen)
	assert.True(t, strings.Contains(m.View(), "Buildbot"))
}

func TestLoader_Done(t *testing.T) {
	m := newLoaderModel("digest", func(context.Context) ([]model.ScoredPosting, error) {
		return nil, errors.New("db locked")
	})
	msg := m.doLoad()()
	next, _ := m.Update(msg)
	final := next.(loaderModel)
	assert.True(t, final.done)
	assert.EqualError(t, final.err, "db locked")
}
