package store

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/desertthunder/dlx/internal/models"
)

// SortKey names a sortable column.
type SortKey string

const (
	SortID          SortKey = "id"
	SortMediaType   SortKey = "mediaType"
	SortTitle       SortKey = "title"
	SortStartTime   SortKey = "startTime"
	SortEndTime     SortKey = "endTime"
	SortUpdatedTime SortKey = "updatedTime"
	SortStatus      SortKey = "status"
	SortSelected    SortKey = "selected"
)

// SortKeys lists every sort key in column order.
var SortKeys = []SortKey{SortSelected, SortID, SortMediaType, SortTitle, SortStatus, SortStartTime, SortEndTime, SortUpdatedTime}

// ParseSortKey resolves a key name, ignoring case.
func ParseSortKey(s string) (SortKey, error) {
	for _, k := range SortKeys {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// SortDir is the sort direction.
type SortDir int

const (
	Asc SortDir = iota
	Desc
)

func (d SortDir) String() string {
	if d == Desc {
		return "desc"
	}
	return "asc"
}

// ParseSortDir accepts "asc" or "desc", ignoring case.
func ParseSortDir(s string) (SortDir, error) {
	switch strings.ToLower(s) {
	case "asc", "":
		return Asc, nil
	case "desc":
		return Desc, nil
	}
	return Asc, fmt.Errorf("unknown sort direction %q", s)
}

// Store is the in-memory collection of entries, keyed by id.
//
// entries keeps arrival order, which is the tie-breaker for stable sorts. index maps an id
// to its position in entries. Store is not safe for concurrent use: it is owned by a single goroutine.
type Store struct {
	entries []*models.Entry
	index   map[int64]int
}

// New builds a store from entries. Later duplicates replace earlier ones.
func New(entries ...*models.Entry) *Store {
	s := &Store{index: make(map[int64]int)}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// Add inserts e, or overwrites the canonical fields of the entry with the same id.
// An overwritten entry keeps its position and UI state; replaced reports this case.
func (s *Store) Add(e *models.Entry) (replaced bool) {
	if s.index == nil {
		s.index = make(map[int64]int)
	}
	if i, ok := s.index[e.ID]; ok {
		s.entries[i].CopyCanonical(e)
		return true
	}

	s.index[e.ID] = len(s.entries)
	s.entries = append(s.entries, e)
	return false
}

// Remove deletes the entry with id and reports whether it existed.
func (s *Store) Remove(id int64) bool {
	i, ok := s.index[id]
	if !ok {
		return false
	}

	s.entries = slices.Delete(s.entries, i, i+1)
	delete(s.index, id)
	s.reindex(i)
	return true
}

// Update merges the set fields of p into the matching entry.
// It reports false when the entry is missing or nothing changed.
func (s *Store) Update(p models.Patch) bool {
	e, ok := s.Find(p.ID)
	if !ok {
		return false
	}
	return p.Apply(e)
}

// Find returns the live entry with id. Callers must not change its ID.
func (s *Store) Find(id int64) (*models.Entry, bool) {
	i, ok := s.index[id]
	if !ok {
		return nil, false
	}
	return s.entries[i], true
}

// Has reports whether id is tracked.
func (s *Store) Has(id int64) bool {
	_, ok := s.index[id]
	return ok
}

func (s *Store) Len() int {
	return len(s.entries)
}

// Entries returns the entries in arrival order. The slice is a copy; the entries are live.
func (s *Store) Entries() []*models.Entry {
	return slices.Clone(s.entries)
}

// IDs returns the tracked ids in arrival order.
func (s *Store) IDs() []int64 {
	ids := make([]int64, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ID
	}
	return ids
}

// Reset replaces the contents with entries, keeping the selection of ids that survive
// and the last known progress of those still running.
// It returns how many duplicate ids were collapsed.
func (s *Store) Reset(entries []*models.Entry) int {
	prev := make(map[int64]*models.Entry, len(s.entries))
	for _, e := range s.entries {
		prev[e.ID] = e
	}

	s.entries = make([]*models.Entry, 0, len(entries))
	s.index = make(map[int64]int, len(entries))

	dupes := 0
	for _, e := range entries {
		old, ok := prev[e.ID]
		e.Selected = ok && old.Selected
		if ok && e.Percentage == nil && e.Running() {
			e.Percentage = old.Percentage
		}
		if s.Add(e) {
			dupes++
		}
	}
	return dupes
}

// Selected returns the selected entries in arrival order.
func (s *Store) Selected() []*models.Entry {
	var out []*models.Entry
	for _, e := range s.entries {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

// SelectedCount counts selected entries, visible or not.
func (s *Store) SelectedCount() int {
	n := 0
	for _, e := range s.entries {
		if e.Selected {
			n++
		}
	}
	return n
}

// SetSelected changes the selection flag of id and reports whether the entry exists.
func (s *Store) SetSelected(id int64, selected bool) bool {
	e, ok := s.Find(id)
	if !ok {
		return false
	}
	e.Selected = selected
	return true
}

// MarkRendered clears the one-shot New and Pulse highlights.
func (s *Store) MarkRendered() {
	for _, e := range s.entries {
		e.New = false
		e.Pulse = false
	}
}

// SortedFiltered returns the entries matching search, ordered by key and dir.
//
// It depends only on the store contents and its arguments. The sort is stable, so ties keep
// arrival order in both directions. Entries flagged New are lifted to the top, latest arrival
// first, until [Store.MarkRendered] clears the flag.
func (s *Store) SortedFiltered(key SortKey, dir SortDir, search string) []*models.Entry {
	out := make([]*models.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.Matches(search) {
			out = append(out, e)
		}
	}

	compare := comparator(key)
	slices.SortStableFunc(out, func(a, b *models.Entry) int {
		c := compare(a, b)
		if dir == Desc {
			return -c
		}
		return c
	})

	var fresh []*models.Entry
	for _, e := range out {
		if e.New {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return out
	}

	slices.SortStableFunc(fresh, func(a, b *models.Entry) int {
		return cmp.Compare(s.index[b.ID], s.index[a.ID])
	})
	rest := slices.DeleteFunc(out, func(e *models.Entry) bool { return e.New })
	return append(fresh, rest...)
}

func (s *Store) reindex(from int) {
	for i := from; i < len(s.entries); i++ {
		s.index[s.entries[i].ID] = i
	}
}

func comparator(key SortKey) func(a, b *models.Entry) int {
	switch key {
	case SortMediaType:
		return func(a, b *models.Entry) int { return cmp.Compare(a.MediaType.String(), b.MediaType.String()) }
	case SortTitle:
		return func(a, b *models.Entry) int { return compareFold(a.DisplayTitle(), b.DisplayTitle()) }
	case SortStartTime:
		return func(a, b *models.Entry) int { return compareTime(a.StartTime, b.StartTime) }
	case SortEndTime:
		return func(a, b *models.Entry) int { return compareTime(a.EndTime, b.EndTime) }
	case SortUpdatedTime:
		return func(a, b *models.Entry) int { return compareTime(a.UpdatedTime, b.UpdatedTime) }
	case SortStatus:
		return func(a, b *models.Entry) int { return compareFold(deref(a.Status), deref(b.Status)) }
	case SortSelected:
		return func(a, b *models.Entry) int { return compareBool(a.Selected, b.Selected) }
	default:
		return func(a, b *models.Entry) int { return cmp.Compare(a.ID, b.ID) }
	}
}

func compareFold(a, b string) int {
	return cmp.Compare(strings.ToLower(a), strings.ToLower(b))
}

// compareTime orders missing times as the zero time.
func compareTime(a, b *time.Time) int {
	var ta, tb time.Time
	if a != nil {
		ta = *a
	}
	if b != nil {
		tb = *b
	}
	return ta.Compare(tb)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	default:
		return -1
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
