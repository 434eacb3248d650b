package ui

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/store"
	tu "github.com/desertthunder/dlx/internal/testing"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func sampleEntries() []*models.Entry {
	return []*models.Entry{
		models.NewEntry(1, "https://example.com/a", "Alpha", models.MediaVideo),
		models.NewEntry(2, "https://example.com/b", "Bravo", models.MediaAudio),
		models.NewEntry(3, "https://example.com/c", "", models.MediaVideo),
	}
}

// newLoadedModel returns a model that has already received its first listing.
func newLoadedModel(t *testing.T, api *tu.MockAPI, clip *tu.FakeClipboard, journal *tu.FakeJournal) *Model {
	t.Helper()

	opts := Options{
		API:       api,
		Clipboard: clip,
		BaseURL:   "http://localhost:8080",
		Transport: services.TransportSSE,
		Now:       func() time.Time { return fixedNow },
		OpenURL:   func(string) error { return nil },
	}
	if journal != nil {
		opts.Journal = journal
	}

	m := NewModel(context.Background(), opts)
	m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m.Update(m.fetchEntries(false)())
	if m.view != TableView {
		t.Fatalf("expected TableView after fetch, got %v", m.view)
	}
	return m
}

// collect runs cmd and flattens batches. Only use it on commands that do not tick.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestModelFetch(t *testing.T) {
	t.Run("Initial Listing", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		if len(m.rows) != 3 {
			t.Fatalf("expected 3 rows, got %d", len(m.rows))
		}
		if m.rows[0].ID != 3 {
			t.Errorf("expected default sort newest first, got #%d on top", m.rows[0].ID)
		}
		if m.rows[0].New {
			t.Error("expected highlight to be cleared after render")
		}
	})

	t.Run("Error Then Retry", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries(), Err: errors.New("connection refused")}
		m := NewModel(context.Background(), Options{API: api})
		m.Update(m.fetchEntries(false)())

		if m.view != ErrorView {
			t.Fatalf("expected ErrorView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "connection refused") {
			t.Errorf("expected error in view, got %q", m.View())
		}

		api.Err = nil
		_, cmd := m.Update(runeKey("r"))
		if m.view != LoadingView {
			t.Fatalf("expected LoadingView after retry, got %v", m.view)
		}
		m.Update(cmd())
		if m.view != TableView || m.store.Len() != 3 {
			t.Errorf("expected table with 3 entries, got view %v and %d entries", m.view, m.store.Len())
		}
	})

	t.Run("Refresh Keeps Selection", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)
		m.Update(runeKey("x"))

		_, cmd := m.Update(runeKey("r"))
		m.Update(cmd())

		e, _ := m.store.Find(3)
		if !e.Selected {
			t.Error("expected selection to survive the refetch")
		}
	})
}

func TestModelSelection(t *testing.T) {
	t.Run("Toggle Cursor Row", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		m.Update(runeKey("x"))
		if m.selection.Count() != 1 {
			t.Fatalf("expected 1 selected, got %d", m.selection.Count())
		}
		if got := m.table.Rows()[0][0]; got != "[x]" {
			t.Errorf("expected checked box, got %q", got)
		}

		m.Update(runeKey("x"))
		if m.selection.Count() != 0 {
			t.Errorf("expected toggle off, got %d selected", m.selection.Count())
		}
	})

	t.Run("Select All And Clear", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		m.Update(runeKey("a"))
		if m.selection.Count() != 3 {
			t.Fatalf("expected 3 selected, got %d", m.selection.Count())
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.selection.Count() != 0 {
			t.Errorf("expected esc to clear selection, got %d", m.selection.Count())
		}
	})

	t.Run("Range Takes Clicked Row State", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		m.Update(runeKey("a"))
		m.Update(runeKey("x"))
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(runeKey("X"))

		if got := m.selection.Count(); got != 0 {
			t.Errorf("expected the range to be cleared, got %d selected", got)
		}

		m.Update(runeKey("X"))
		if got := m.selection.Count(); got != 3 {
			t.Errorf("expected the range to be selected again, got %d selected", got)
		}
	})

	t.Run("Search Filters Rows", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		m.Update(runeKey("/"))
		if m.view != SearchView {
			t.Fatalf("expected SearchView, got %v", m.view)
		}
		m.Update(runeKey("brav"))
		if len(m.rows) != 1 || m.rows[0].ID != 2 {
			t.Fatalf("expected only #2 to match, got %d rows", len(m.rows))
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.view != TableView || m.tableView.Search != "brav" {
			t.Errorf("expected search to stay applied, got %q", m.tableView.Search)
		}

		m.Update(tea.KeyMsg{Type: tea.KeyEsc})
		if m.tableView.Search != "" || len(m.rows) != 3 {
			t.Errorf("expected esc to clear the search, got %d rows", len(m.rows))
		}
	})

	t.Run("Sort Cycles Columns", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)

		m.Update(runeKey("s"))
		if m.tableView.Key != store.SortMediaType || m.tableView.Dir != store.Asc {
			t.Errorf("expected mediaType asc, got %s %s", m.tableView.Key, m.tableView.Dir)
		}

		m.Update(runeKey("S"))
		if m.tableView.Dir != store.Desc {
			t.Errorf("expected reverse to flip direction, got %s", m.tableView.Dir)
		}
	})
}

func TestModelActions(t *testing.T) {
	t.Run("Delete Flow", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		journal := &tu.FakeJournal{}
		m := newLoadedModel(t, api, nil, journal)

		m.Update(runeKey("x"))
		m.Update(runeKey("d"))
		if m.view != ConfirmView {
			t.Fatalf("expected ConfirmView, got %v", m.view)
		}
		if !strings.Contains(m.View(), "#3") {
			t.Errorf("expected pending entry in dialog, got %q", m.View())
		}

		_, cmd := m.Update(runeKey("y"))
		msg := cmd()
		if _, ok := msg.(deleteSubmittedMsg); !ok {
			t.Fatalf("expected deleteSubmittedMsg, got %T", msg)
		}
		m.Update(msg)

		if m.store.Has(3) {
			t.Error("expected #3 to be removed")
		}
		if len(api.Deletes) != 1 || api.Deletes[0][0] != 3 {
			t.Errorf("expected one delete call for #3, got %v", api.Deletes)
		}
		if !m.feedback.OK {
			t.Errorf("expected success feedback, got %q", m.feedback.Message)
		}
	})

	t.Run("Delete Cancelled", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(runeKey("d"))
		m.Update(runeKey("n"))

		if m.view != TableView || m.store.Len() != 3 || len(api.Deletes) != 0 {
			t.Error("expected cancel to leave everything untouched")
		}
	})

	t.Run("Delete Rechecks Rows On Confirm", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(runeKey("a"))
		m.Update(runeKey("d"))
		payload, err := models.MarshalEvent(models.Deleted{ID: 2})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		m.Update(streamMsg{Status: services.StreamEvent, Payload: payload})

		_, cmd := m.Update(runeKey("y"))
		m.Update(cmd())

		if len(api.Deletes) != 1 || !slices.Equal(api.Deletes[0], []int64{3, 1}) {
			t.Fatalf("expected one delete for [3 1], got %v", api.Deletes)
		}
		if !strings.Contains(m.feedback.Message, "1 skipped") {
			t.Errorf("expected the vanished entry to be reported, got %q", m.feedback.Message)
		}
	})

	t.Run("Second Delete While Busy Is Sent", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(runeKey("x"))
		m.Update(runeKey("d"))
		_, first := m.Update(runeKey("y"))
		if m.busy == "" {
			t.Fatal("expected a busy indicator while the delete is in flight")
		}
		m.Update(runeKey("d"))
		_, second := m.Update(runeKey("y"))
		if second == nil {
			t.Fatal("expected the second delete to be submitted")
		}

		m.Update(first())
		m.Update(second())

		if len(api.Deletes) != 2 {
			t.Fatalf("expected 2 delete calls, got %v", api.Deletes)
		}
		if m.store.Has(3) || m.store.Len() != 2 {
			t.Errorf("expected only #3 removed, got %v", m.store.IDs())
		}
	})

	t.Run("Partial Failure", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries(), Fail: map[int64]string{2: "locked"}}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(runeKey("a"))
		m.Update(runeKey("d"))
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(cmd())

		if !m.store.Has(2) || m.store.Has(1) || m.store.Has(3) {
			t.Errorf("expected only #2 to remain, got %v", m.store.IDs())
		}
		if m.feedback.OK {
			t.Error("expected failure feedback")
		}
	})

	t.Run("Edit Single Entry", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(runeKey("x"))
		m.Update(runeKey("e"))
		if m.view != EditView {
			t.Fatalf("expected EditView, got %v", m.view)
		}
		if got := m.titleInput.Value(); got != "Bravo" {
			t.Errorf("expected prefilled title, got %q", got)
		}

		m.titleInput.SetValue("Bravo (live)")
		_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		m.Update(cmd())

		e, _ := m.store.Find(2)
		if e.DisplayTitle() != "Bravo (live)" {
			t.Errorf("expected new title, got %q", e.DisplayTitle())
		}
		if len(api.Edits) != 1 || api.Edits[0][0].MediaType.Value != models.MediaAudio {
			t.Errorf("expected media type to be resent unchanged, got %+v", api.Edits)
		}
	})

	t.Run("Edit Several Entries Keeps Titles", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		m.Update(runeKey("a"))
		m.Update(runeKey("e"))
		m.titleInput.SetValue("")
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.busy != "" || m.feedback.OK {
			t.Error("expected no request when nothing was filled in")
		}
		if m.feedback.Message != "nothing to edit" {
			t.Errorf("expected nothing-to-edit feedback, got %q", m.feedback.Message)
		}
	})

	t.Run("Copy URLs", func(t *testing.T) {
		clip := &tu.FakeClipboard{}
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, clip, nil)

		m.Update(runeKey("c"))
		want := "https://example.com/c\nhttps://example.com/b\nhttps://example.com/a"
		if clip.Text != want {
			t.Errorf("expected %q, got %q", want, clip.Text)
		}
		if !m.feedback.Active(fixedNow) || !m.feedback.OK {
			t.Error("expected active success feedback")
		}

		m.Update(feedbackExpiredMsg{until: m.feedback.Until})
		if m.feedback.Active(fixedNow) {
			t.Error("expected feedback to expire")
		}
	})

	t.Run("Copy Titles Skips Untitled", func(t *testing.T) {
		clip := &tu.FakeClipboard{}
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, clip, nil)

		m.Update(runeKey("C"))
		if clip.Text != "Bravo\nAlpha" {
			t.Errorf("expected titled entries only, got %q", clip.Text)
		}
	})
}

func TestModelStream(t *testing.T) {
	t.Run("Event Applies", func(t *testing.T) {
		journal := &tu.FakeJournal{}
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, journal)

		m.Update(streamMsg{Status: services.StreamConnected})
		if !strings.HasPrefix(m.connection, "live") {
			t.Errorf("expected live status, got %q", m.connection)
		}

		payload, err := models.MarshalEvent(models.Created{Entry: *models.NewEntry(9, "https://example.com/z", "Zulu", models.MediaVideo)})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		m.Update(streamMsg{Status: services.StreamEvent, Payload: payload})

		if !m.store.Has(9) || m.rows[0].ID != 9 {
			t.Error("expected created entry on top")
		}
		if len(journal.Payloads) != 1 {
			t.Errorf("expected event to be journaled, got %d", len(journal.Payloads))
		}
	})

	t.Run("Resync Refetches", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := newLoadedModel(t, api, nil, nil)

		api.Entries = api.Entries[:1]
		_, cmd := m.Update(streamMsg{Status: services.StreamResync})

		var fetched bool
		for _, msg := range collect(cmd) {
			if f, ok := msg.(entriesFetchedMsg); ok {
				fetched = f.resync
				m.Update(f)
			}
		}
		if !fetched {
			t.Fatal("expected a resync fetch")
		}
		if m.store.Len() != 1 {
			t.Errorf("expected store to match the server, got %d entries", m.store.Len())
		}
	})

	t.Run("Created Before Listing Survives It", func(t *testing.T) {
		api := &tu.MockAPI{Entries: sampleEntries()}
		m := NewModel(context.Background(), Options{API: api, Now: func() time.Time { return fixedNow }})

		fetch := m.fetchEntries(false)
		listed := fetch()
		payload, err := models.MarshalEvent(models.Created{Entry: *models.NewEntry(9, "https://example.com/z", "Zulu", models.MediaVideo)})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		m.Update(streamMsg{Status: services.StreamEvent, Payload: payload})
		m.Update(listed)

		if !m.store.Has(9) || m.store.Len() != 4 {
			t.Errorf("expected listing plus streamed #9, got %v", m.store.IDs())
		}
	})

	t.Run("Progress Redraws In Place", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{Entries: sampleEntries()}, nil, nil)
		m.tableView = store.View{Key: store.SortTitle, Dir: store.Asc}
		m.refresh()
		before := slices.Clone(m.rows)

		e, _ := m.store.Find(1)
		renamed := "Zulu"
		e.Title = &renamed
		payload, err := models.MarshalEvent(models.Progressed{ID: 1, Current: 1, Total: 2})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		m.Update(streamMsg{Status: services.StreamEvent, Payload: payload})

		if !slices.Equal(before, m.rows) {
			t.Error("expected progress to keep the row order")
		}
		i := slices.Index(m.rows, e)
		if got := m.table.Rows()[i][5]; got != "50%" {
			t.Errorf("expected 50%% in the progress column, got %q", got)
		}
	})

	t.Run("Closed Stops Waiting", func(t *testing.T) {
		m := newLoadedModel(t, &tu.MockAPI{}, nil, nil)

		_, cmd := m.Update(streamMsg{Status: services.StreamClosed})
		if cmd != nil {
			if msgs := collect(cmd); len(msgs) != 0 {
				t.Errorf("expected no follow-up, got %v", msgs)
			}
		}
		if m.connection != "closed" {
			t.Errorf("expected closed status, got %q", m.connection)
		}
	})
}
