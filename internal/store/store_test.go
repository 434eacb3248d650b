package store

import (
	"fmt"
	"slices"
	"testing"
	"time"

	"github.com/desertthunder/dlx/internal/models"
)

func ids(rows []*models.Entry) []int64 {
	out := make([]int64, len(rows))
	for i, e := range rows {
		out[i] = e.ID
	}
	return out
}

// checkIndex fails when the id index and the entry slice disagree.
func checkIndex(t *testing.T, s *Store) {
	t.Helper()
	if len(s.index) != len(s.entries) {
		t.Fatalf("index has %d ids, entries has %d", len(s.index), len(s.entries))
	}
	for i, e := range s.entries {
		if s.index[e.ID] != i {
			t.Fatalf("index[%d] = %d, want %d", e.ID, s.index[e.ID], i)
		}
	}
}

func TestStore(t *testing.T) {
	t.Run("Add", func(t *testing.T) {
		s := New()
		if s.Add(models.NewEntry(1, "https://a", "A", models.MediaVideo)) {
			t.Error("first add should not replace")
		}

		s.SetSelected(1, true)
		if !s.Add(models.NewEntry(1, "https://a2", "A2", models.MediaAudio)) {
			t.Error("second add should replace")
		}

		if s.Len() != 1 {
			t.Fatalf("expected 1 entry, got %d", s.Len())
		}
		e, _ := s.Find(1)
		if e.URL != "https://a2" || e.MediaType != models.MediaAudio {
			t.Errorf("canonical fields not overwritten: %+v", e)
		}
		if !e.Selected {
			t.Error("selection should survive an overwrite")
		}
		checkIndex(t, s)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var s Store
		s.Add(models.NewEntry(3, "u", "", models.MediaText))
		if !s.Has(3) {
			t.Error("expected entry")
		}
	})

	t.Run("Remove keeps index consistent", func(t *testing.T) {
		s := New()
		for i := int64(1); i <= 5; i++ {
			s.Add(models.NewEntry(i, fmt.Sprintf("https://%d", i), "", models.MediaImage))
		}

		if !s.Remove(2) {
			t.Fatal("expected removal")
		}
		if s.Remove(2) {
			t.Error("second removal should report false")
		}
		if s.Remove(99) {
			t.Error("unknown id should report false")
		}

		checkIndex(t, s)
		if got := s.IDs(); !slices.Equal(got, []int64{1, 3, 4, 5}) {
			t.Errorf("unexpected ids %v", got)
		}
	})

	t.Run("Update", func(t *testing.T) {
		s := New(models.NewEntry(1, "u", "old", models.MediaText))
		title := "new"

		if !s.Update(models.Patch{ID: 1, Title: models.Some(&title)}) {
			t.Error("expected change")
		}
		if s.Update(models.Patch{ID: 1, Title: models.Some(&title)}) {
			t.Error("identical patch should report no change")
		}
		if s.Update(models.Patch{ID: 2, Title: models.Some(&title)}) {
			t.Error("unknown id should report false")
		}
		checkIndex(t, s)
	})

	t.Run("Entries returns a copy", func(t *testing.T) {
		s := New(models.NewEntry(1, "u", "", models.MediaText))
		got := s.Entries()
		got[0] = nil
		if e, _ := s.Find(1); e == nil {
			t.Error("store slice was mutated through Entries")
		}
	})

	t.Run("Reset keeps selection of surviving ids", func(t *testing.T) {
		s := New(
			models.NewEntry(1, "a", "", models.MediaText),
			models.NewEntry(2, "b", "", models.MediaText),
		)
		s.SetSelected(1, true)
		s.SetSelected(2, true)

		dupes := s.Reset([]*models.Entry{
			models.NewEntry(1, "a", "", models.MediaText),
			models.NewEntry(3, "c", "", models.MediaText),
			models.NewEntry(3, "c2", "", models.MediaText),
		})

		if dupes != 1 {
			t.Errorf("expected 1 duplicate, got %d", dupes)
		}
		checkIndex(t, s)
		if got := ids(s.Selected()); !slices.Equal(got, []int64{1}) {
			t.Errorf("expected only 1 selected, got %v", got)
		}
		if e, _ := s.Find(3); e.URL != "c2" {
			t.Errorf("later duplicate should win, got %s", e.URL)
		}
	})

	t.Run("Reset keeps progress of running downloads", func(t *testing.T) {
		pct := 40
		running := models.NewEntry(1, "a", "", models.MediaVideo)
		running.Percentage = &pct
		done := models.NewEntry(2, "b", "", models.MediaVideo)
		done.Percentage = &pct
		s := New(running, done)

		finished := models.NewEntry(2, "b", "", models.MediaVideo)
		at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		finished.EndTime = &at
		s.Reset([]*models.Entry{models.NewEntry(1, "a", "", models.MediaVideo), finished})

		if e, _ := s.Find(1); e.Percentage == nil || *e.Percentage != 40 {
			t.Errorf("expected running entry to keep 40%%, got %v", e.Percentage)
		}
		if e, _ := s.Find(2); e.Percentage != nil {
			t.Errorf("expected finished entry to drop its progress, got %d", *e.Percentage)
		}
	})
}

func TestSortedFiltered(t *testing.T) {
	t.Run("title sort falls back to url", func(t *testing.T) {
		s := New(
			&models.Entry{ID: 1, URL: "b"},
			models.NewEntry(2, "a", "A", models.MediaVideo),
		)

		got := ids(s.SortedFiltered(SortTitle, Asc, ""))
		if !slices.Equal(got, []int64{2, 1}) {
			t.Errorf("expected [2 1], got %v", got)
		}

		got = ids(s.SortedFiltered(SortTitle, Desc, ""))
		if !slices.Equal(got, []int64{1, 2}) {
			t.Errorf("expected [1 2], got %v", got)
		}
	})

	t.Run("untitled entries order by url", func(t *testing.T) {
		s := New(
			&models.Entry{ID: 1, URL: "https://z"},
			&models.Entry{ID: 2, URL: "https://m"},
		)
		if got := ids(s.SortedFiltered(SortTitle, Asc, "")); !slices.Equal(got, []int64{2, 1}) {
			t.Errorf("expected [2 1], got %v", got)
		}
	})

	t.Run("strings compare case-insensitively", func(t *testing.T) {
		s := New(
			models.NewEntry(1, "u1", "beta", models.MediaText),
			models.NewEntry(2, "u2", "Alpha", models.MediaText),
			models.NewEntry(3, "u3", "CHARLIE", models.MediaText),
		)
		if got := ids(s.SortedFiltered(SortTitle, Asc, "")); !slices.Equal(got, []int64{2, 1, 3}) {
			t.Errorf("expected [2 1 3], got %v", got)
		}
	})

	t.Run("ties keep arrival order in both directions", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		s := New()
		for _, id := range []int64{5, 3, 9} {
			e := models.NewEntry(id, "u", "", models.MediaText)
			e.StartTime = &at
			s.Add(e)
		}

		for _, dir := range []SortDir{Asc, Desc} {
			if got := ids(s.SortedFiltered(SortStartTime, dir, "")); !slices.Equal(got, []int64{5, 3, 9}) {
				t.Errorf("%s: expected arrival order [5 3 9], got %v", dir, got)
			}
		}
	})

	t.Run("missing times sort as zero", func(t *testing.T) {
		at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		timed := models.NewEntry(1, "u", "", models.MediaText)
		timed.EndTime = &at
		s := New(timed, models.NewEntry(2, "u", "", models.MediaText))

		if got := ids(s.SortedFiltered(SortEndTime, Asc, "")); !slices.Equal(got, []int64{2, 1}) {
			t.Errorf("expected [2 1], got %v", got)
		}
	})

	t.Run("selected sort", func(t *testing.T) {
		s := New(
			models.NewEntry(1, "u", "", models.MediaText),
			models.NewEntry(2, "u", "", models.MediaText),
		)
		s.SetSelected(2, true)
		if got := ids(s.SortedFiltered(SortSelected, Desc, "")); !slices.Equal(got, []int64{2, 1}) {
			t.Errorf("expected [2 1], got %v", got)
		}
	})

	t.Run("filter matches display title", func(t *testing.T) {
		s := New(
			models.NewEntry(1, "https://example.com/cats", "", models.MediaImage),
			models.NewEntry(2, "https://example.com/x", "Dogs", models.MediaImage),
			models.NewEntry(3, "https://example.com/cats-2", "Birds", models.MediaImage),
		)

		if got := ids(s.SortedFiltered(SortID, Asc, "CATS")); !slices.Equal(got, []int64{1}) {
			t.Errorf("expected [1], got %v", got)
		}
		if got := ids(s.SortedFiltered(SortID, Asc, "")); len(got) != 3 {
			t.Errorf("empty search should match all, got %v", got)
		}
	})

	t.Run("new entries are lifted until rendered", func(t *testing.T) {
		s := New(
			models.NewEntry(1, "u", "", models.MediaText),
			models.NewEntry(5, "u", "", models.MediaText),
		)
		for _, id := range []int64{2, 3} {
			e := models.NewEntry(id, "u", "", models.MediaText)
			e.New = true
			s.Add(e)
		}

		if got := ids(s.SortedFiltered(SortID, Desc, "")); !slices.Equal(got, []int64{3, 2, 5, 1}) {
			t.Errorf("expected [3 2 5 1], got %v", got)
		}

		s.MarkRendered()
		if got := ids(s.SortedFiltered(SortID, Desc, "")); !slices.Equal(got, []int64{5, 3, 2, 1}) {
			t.Errorf("expected [5 3 2 1], got %v", got)
		}
	})

	t.Run("pure with respect to its arguments", func(t *testing.T) {
		s := New(
			models.NewEntry(2, "u", "b", models.MediaText),
			models.NewEntry(1, "u", "a", models.MediaText),
		)
		first := ids(s.SortedFiltered(SortTitle, Asc, ""))
		s.SortedFiltered(SortID, Desc, "zzz")
		second := ids(s.SortedFiltered(SortTitle, Asc, ""))

		if !slices.Equal(first, second) {
			t.Errorf("query depends on previous calls: %v vs %v", first, second)
		}
		if got := s.IDs(); !slices.Equal(got, []int64{2, 1}) {
			t.Errorf("sorting must not reorder the store, got %v", got)
		}
	})
}

func TestView(t *testing.T) {
	v := DefaultView()
	if v.Key != SortID || v.Dir != Desc {
		t.Fatalf("unexpected default %+v", v)
	}

	v.Toggle(SortID)
	if v.Dir != Asc {
		t.Error("same key should flip direction")
	}

	v.Toggle(SortTitle)
	if v.Key != SortTitle || v.Dir != Asc {
		t.Errorf("new key should start ascending, got %+v", v)
	}

	if got := NewView("TITLE", "desc"); got.Key != SortTitle || got.Dir != Desc {
		t.Errorf("unexpected view %+v", got)
	}
	if got := NewView("bogus", "sideways"); got != DefaultView() {
		t.Errorf("bad values should fall back, got %+v", got)
	}
}
