package store

import (
	"github.com/desertthunder/dlx/internal/models"
)

// Selection tracks the selection anchor and the select-all indicator for one store.
//
// Selected flags live on the entries themselves so they follow an id through sorts,
// filters and stream updates.
type Selection struct {
	store      *Store
	anchor     int64
	hasAnchor  bool
	allChecked bool
}

// NewSelection binds a selection controller to s.
func NewSelection(s *Store) *Selection {
	return &Selection{store: s}
}

// Toggle sets the selection of one row and makes it the anchor.
// Unchecking a row clears the select-all indicator.
func (sel *Selection) Toggle(id int64, checked bool) bool {
	if !sel.store.SetSelected(id, checked) {
		return false
	}
	sel.anchor, sel.hasAnchor = id, true
	if !checked {
		sel.allChecked = false
	}
	return true
}

// Range sets every visible row between the anchor and id, inclusive, to checked.
// The anchor does not move. Without a visible anchor it behaves like [Selection.Toggle].
// It returns the number of rows it set.
func (sel *Selection) Range(visible []*models.Entry, id int64, checked bool) int {
	target := indexOf(visible, id)
	if target < 0 {
		return 0
	}

	from := -1
	if sel.hasAnchor {
		from = indexOf(visible, sel.anchor)
	}
	if from < 0 {
		if sel.Toggle(id, checked) {
			return 1
		}
		return 0
	}

	lo, hi := min(from, target), max(from, target)
	for _, e := range visible[lo : hi+1] {
		e.Selected = checked
	}
	if !checked {
		sel.allChecked = false
	}
	return hi - lo + 1
}

// SelectAll sets every visible row to checked. Hidden rows keep their state.
func (sel *Selection) SelectAll(visible []*models.Entry, checked bool) {
	for _, e := range visible {
		e.Selected = checked
	}
	sel.allChecked = checked
}

// Clear unselects every row, visible or not, and forgets the anchor.
func (sel *Selection) Clear() {
	for _, e := range sel.store.entries {
		e.Selected = false
	}
	sel.hasAnchor = false
	sel.allChecked = false
}

// FilterChanged resets the select-all indicator, which describes a set of rows that is no longer shown.
func (sel *Selection) FilterChanged() {
	sel.allChecked = false
}

// AllChecked reports the select-all indicator.
func (sel *Selection) AllChecked() bool {
	return sel.allChecked
}

// Anchor returns the last directly toggled id. An anchor whose row was deleted is reported as absent.
func (sel *Selection) Anchor() (int64, bool) {
	if !sel.hasAnchor || !sel.store.Has(sel.anchor) {
		return 0, false
	}
	return sel.anchor, true
}

// Count is the number of selected entries, including ones hidden by the filter.
func (sel *Selection) Count() int {
	return sel.store.SelectedCount()
}

// ProcessableItems is the operand set of bulk actions: every selected entry when any is
// selected, even if the filter hides it, and otherwise every visible entry. Both are in view order.
func (sel *Selection) ProcessableItems(v View) []*models.Entry {
	return ProcessableItems(sel.store, v)
}

// ProcessableItems resolves the operand set of bulk actions for s under v.
func ProcessableItems(s *Store, v View) []*models.Entry {
	if s.SelectedCount() == 0 {
		return v.Rows(s)
	}

	var out []*models.Entry
	for _, e := range s.SortedFiltered(v.Key, v.Dir, "") {
		if e.Selected {
			out = append(out, e)
		}
	}
	return out
}

func indexOf(rows []*models.Entry, id int64) int {
	for i, e := range rows {
		if e.ID == id {
			return i
		}
	}
	return -1
}
