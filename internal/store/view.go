package store

import (
	"github.com/desertthunder/dlx/internal/models"
)

// View is the table state owned by the UI: sort column, direction and search term.
type View struct {
	Key    SortKey
	Dir    SortDir
	Search string
}

// DefaultView sorts by id, newest first.
func DefaultView() View {
	return View{Key: SortID, Dir: Desc}
}

// NewView builds a view from configured names, falling back to [DefaultView] for bad values.
func NewView(key, dir string) View {
	v := DefaultView()
	if k, err := ParseSortKey(key); err == nil {
		v.Key = k
	}
	if d, err := ParseSortDir(dir); err == nil && dir != "" {
		v.Dir = d
	}
	return v
}

// Toggle sorts by key. Choosing the current key flips the direction; a new key starts ascending.
func (v *View) Toggle(key SortKey) {
	if v.Key == key {
		if v.Dir == Asc {
			v.Dir = Desc
		} else {
			v.Dir = Asc
		}
		return
	}
	v.Key = key
	v.Dir = Asc
}

// Rows applies the view to s.
func (v View) Rows(s *Store) []*models.Entry {
	return s.SortedFiltered(v.Key, v.Dir, v.Search)
}
