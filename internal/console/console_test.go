package console

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/amishk599/ajirawise/internal/model"
)

func typeText(t *testing.T, m tea.Model, text string) tea.Model {
	t.Helper()
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func TestChat_EnterSendsAndShowsReplies(t *testing.T) {
	sender := NewSender(8)
	var got []string
	handle := func(ctx context.Context, text string) error {
		got = append(got, text)
		return sender.Send(ctx, "console:test", "reply to "+text)
	}

	var m tea.Model = newChatModel(context.Background(), "console:test", handle, sender.ch)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = typeText(t, m, "hi")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	if !m.(chatModel).busy {
		t.Error("model not busy while waiting for a reply")
	}

	m, _ = m.Update(cmd())
	if len(got) != 1 || got[0] != "hi" {
		t.Fatalf("handled = %v, want [hi]", got)
	}
	if m.(chatModel).busy {
		t.Error("model still busy after reply finished")
	}

	m, next := m.Update(waitForMessage(sender.ch)())
	if next == nil {
		t.Error("bot message did not resubscribe to the inbox")
	}
	transcript := strings.Join(m.(chatModel).transcript, "\n")
	if !strings.Contains(transcript, "reply to hi") {
		t.Errorf("transcript lacks reply: %q", transcript)
	}
	if v := m.(chatModel).input.Value(); v != "" {
		t.Errorf("input not cleared: %q", v)
	}
}

func TestChat_EmptyInputIgnored(t *testing.T) {
	called := false
	handle := func(context.Context, string) error { called = true; return nil }

	var m tea.Model = newChatModel(context.Background(), "console:test", handle, make(chan string))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = typeText(t, m, "   ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		cmd()
	}
	if called {
		t.Error("blank input reached the service")
	}
}

func TestChat_ErrorShownInTranscript(t *testing.T) {
	var m tea.Model = newChatModel(context.Background(), "console:test", nil, make(chan string))
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = m.Update(replyDoneMsg{err: errors.New("database is locked")})

	transcript := strings.Join(m.(chatModel).transcript, "\n")
	if !strings.Contains(transcript, "database is locked") {
		t.Errorf("transcript = %q", transcript)
	}
}

func TestSender_RespectsContext(t *testing.T) {
	s := NewSender(1)
	if err := s.Send(context.Background(), "console:x", "first"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Send(ctx, "console:x", "second"); !errors.Is(err, context.Canceled) {
		t.Errorf("Send on full buffer = %v, want context.Canceled", err)
	}
}

func TestPicker_Navigation(t *testing.T) {
	var m tea.Model = newPickerModel([]string{"Data Entry", "Sales & Marketing", "Customer Service"}, "")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	if got := m.(pickerModel).chosen; got != 2 {
		t.Errorf("chosen = %d, want 2", got)
	}
	if cmd == nil {
		t.Error("enter did not quit the picker")
	}
}

func TestPicker_StartsOnCurrentAndShowsSearchTerms(t *testing.T) {
	m := newPickerModel([]string{"Data Entry", "Sales & Marketing", "Customer Service"}, "Sales & Marketing")
	if m.cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.cursor)
	}
	view := m.View()
	if !strings.Contains(view, "searches: sales, marketing, business development") {
		t.Errorf("view lacks board queries for the selected category:\n%s", view)
	}
	if strings.Contains(view, "data entry, data input") {
		t.Error("view shows queries for an unselected category")
	}
}

func TestPicker_DigitShortcut(t *testing.T) {
	cats := []string{"Data Entry", "Sales & Marketing", "Customer Service"}

	var m tea.Model = newPickerModel(cats, "")
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	if got := m.(pickerModel).chosen; got != 2 {
		t.Errorf("chosen = %d, want 2", got)
	}
	if cmd == nil {
		t.Error("digit did not quit the picker")
	}

	m = newPickerModel(cats, "")
	m, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("9")})
	if got := m.(pickerModel).chosen; got != pickerPending {
		t.Errorf("out of range digit chose %d", got)
	}
	if cmd != nil {
		t.Error("out of range digit quit the picker")
	}

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if cmd == nil {
		t.Error("esc did not quit the picker")
	}
}

func TestLoader_ShowsQueriesAndElapsed(t *testing.T) {
	m := newLoaderModel("Data Entry", 0, nil)
	if m.timeout != 2*time.Minute {
		t.Errorf("default timeout = %v", m.timeout)
	}
	next, cmd := m.Update(spinnerTickMsg(m.started.Add(3 * time.Second)))
	if cmd == nil {
		t.Error("tick did not reschedule")
	}
	view := next.View()
	for _, want := range []string{"Data Entry", "data entry, data input, data processing", "3s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view lacks %q: %q", want, view)
		}
	}
}

func TestLoader_SummarizesPerBoard(t *testing.T) {
	jobs := []model.JobPosting{
		{Title: "Data Entry Clerk", Source: "BrighterMonday"},
		{Title: "Records Clerk", Source: "Jobs Kenya"},
		{Title: "Typist needed", Source: "Jobs Kenya"},
	}
	var m tea.Model = newLoaderModel("Data Entry", time.Minute, nil)
	m, cmd := m.Update(fetchDoneMsg{jobs: jobs})
	if cmd == nil {
		t.Error("finished fetch did not quit the loader")
	}
	want := "3 Data Entry candidates (2 strict) from Jobs Kenya 2, BrighterMonday 1"
	if view := m.View(); !strings.Contains(view, want) {
		t.Errorf("view = %q, want %q", view, want)
	}

	m = newLoaderModel("Data Entry", time.Minute, nil)
	m, _ = m.Update(fetchDoneMsg{})
	if view := m.View(); !strings.Contains(view, "No Data Entry candidates on any board.") {
		t.Errorf("empty view = %q", view)
	}
}

func TestLoader_CancelReturnsErrCancelled(t *testing.T) {
	var m tea.Model = newLoaderModel("Data Entry", time.Minute, nil)
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c did not quit the loader")
	}
	lm := m.(loaderModel)
	if !errors.Is(lm.err, ErrCancelled) {
		t.Errorf("err = %v, want ErrCancelled", lm.err)
	}
	if lm.View() != "" {
		t.Errorf("cancelled view = %q", lm.View())
	}
}

func TestBrowse_SplitsWholeWordMatches(t *testing.T) {
	jobs := []model.JobPosting{
		{Title: "Senior Python Developer", Source: "BrighterMonday"},
		{Title: "Javascripting Guru", Source: "JobsKenya"},
	}
	var m tea.Model = newBrowseModel("Software Engineering", jobs)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})

	bm := m.(browseModel)
	if len(bm.allJobs) != 2 || len(bm.strictJobs) != 1 {
		t.Fatalf("all = %d, strict = %d", len(bm.allJobs), len(bm.strictJobs))
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	bm = m.(browseModel)
	if bm.view != viewDetail || bm.detailJob.Title != "Senior Python Developer" {
		t.Errorf("detail = %v %q", bm.view, bm.detailJob.Title)
	}
	if !strings.Contains(bm.renderDetail(), "Senior Python Developer") {
		t.Error("detail view lacks the alert preview")
	}
}
