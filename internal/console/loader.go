package console

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/amishk599/ajirawise/internal/catalog"
	"github.com/amishk599/ajirawise/internal/model"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var (
	loaderSpinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	loaderDoneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	loaderEmptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// ErrCancelled is returned by RunLoader when the user aborts the search.
var ErrCancelled = errors.New("board check cancelled")

type fetchDoneMsg struct {
	jobs []model.JobPosting
	err  error
}

type spinnerTickMsg time.Time

type loaderModel struct {
	category string
	timeout  time.Duration
	fetchFn  func(ctx context.Context) ([]model.JobPosting, error)
	started  time.Time
	now      time.Time
	frame    int
	result   []model.JobPosting
	err      error
	done     bool
}

func newLoaderModel(category string, timeout time.Duration, fetchFn func(ctx context.Context) ([]model.JobPosting, error)) loaderModel {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	now := time.Now()
	return loaderModel{category: category, timeout: timeout, fetchFn: fetchFn, started: now, now: now}
}

func (m loaderModel) Init() tea.Cmd {
	return tea.Batch(m.doFetch(), m.tick())
}

func (m loaderModel) doFetch() tea.Cmd {
	fetchFn, timeout := m.fetchFn, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		jobs, err := fetchFn(ctx)
		return fetchDoneMsg{jobs: jobs, err: err}
	}
}

func (m loaderModel) tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return spinnerTickMsg(t)
	})
}

func (m loaderModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case fetchDoneMsg:
		m.result = msg.jobs
		m.err = msg.err
		m.done = true
		return m, tea.Quit
	case spinnerTickMsg:
		if m.done {
			return m, nil
		}
		m.frame = (m.frame + 1) % len(spinnerFrames)
		m.now = time.Time(msg)
		return m, m.tick()
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "esc" {
			m.done = true
			m.err = ErrCancelled
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m loaderModel) View() string {
	if m.done {
		if m.err != nil {
			return ""
		}
		if len(m.result) == 0 {
			return loaderEmptyStyle.Render(fmt.Sprintf("No %s candidates on any board.", m.category)) + "\n"
		}
		return loaderDoneStyle.Render("✓ "+summarize(m.category, m.result)) + "\n"
	}
	elapsed := m.now.Sub(m.started).Truncate(time.Second)
	return fmt.Sprintf("%s Searching job boards for %s (%s)... %s\n",
		loaderSpinnerStyle.Render(spinnerFrames[m.frame]),
		m.category,
		strings.Join(catalog.PrimaryTerms(m.category, 3), ", "),
		elapsed,
	)
}

// summarize reports the candidate count, how many pass whole-word matching,
// and the per-board breakdown, busiest board first.
func summarize(category string, jobs []model.JobPosting) string {
	strict := 0
	perSource := make(map[string]int)
	for _, j := range jobs {
		if catalog.Matches(j.Title, category, true) {
			strict++
		}
		src := j.Source
		if src == "" {
			src = "unknown"
		}
		perSource[src]++
	}

	sources := make([]string, 0, len(perSource))
	for s := range perSource {
		sources = append(sources, s)
	}
	sort.Slice(sources, func(i, k int) bool {
		if perSource[sources[i]] != perSource[sources[k]] {
			return perSource[sources[i]] > perSource[sources[k]]
		}
		return sources[i] < sources[k]
	})

	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = fmt.Sprintf("%s %d", s, perSource[s])
	}
	return fmt.Sprintf("%d %s candidates (%d strict) from %s", len(jobs), category, strict, strings.Join(parts, ", "))
}

// RunLoader shows a spinner while fetching candidates and leaves a one-line
// per-board summary behind. It renders inline (no alt screen).
func RunLoader(category string, timeout time.Duration, fetchFn func(ctx context.Context) ([]model.JobPosting, error)) ([]model.JobPosting, error) {
	p := tea.NewProgram(newLoaderModel(category, timeout, fetchFn))
	result, err := p.Run()
	if err != nil {
		return nil, err
	}
	final := result.(loaderModel)
	return final.result, final.err
}
