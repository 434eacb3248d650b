package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlx/internal/models"
)

var _ list.Item = mediaTypeItem{}

// mediaTypeItem wraps [models.MediaType] to implement [list.Item]. [models.MediaUnknown]
// stands for "leave unchanged".
type mediaTypeItem struct {
	mediaType models.MediaType
}

func (i mediaTypeItem) FilterValue() string { return i.mediaType.String() }
func (i mediaTypeItem) Title() string {
	if !i.mediaType.Known() {
		return "(unchanged)"
	}
	return i.mediaType.Label()
}

// mediaTypeDelegate renders one compact line per media type.
type mediaTypeDelegate struct{}

func (mediaTypeDelegate) Height() int                         { return 1 }
func (mediaTypeDelegate) Spacing() int                        { return 0 }
func (mediaTypeDelegate) Update(tea.Msg, *list.Model) tea.Cmd { return nil }
func (mediaTypeDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(mediaTypeItem)
	if !ok {
		return
	}
	if index == m.Index() {
		fmt.Fprint(w, styles.title.Render("> "+i.Title()))
		return
	}
	fmt.Fprint(w, "  "+i.Title())
}

// newMediaTypeList builds the picker of the edit dialog with current preselected.
func newMediaTypeList(current models.MediaType) list.Model {
	items := []list.Item{mediaTypeItem{models.MediaUnknown}}
	selected := 0
	for i, mt := range models.MediaTypes {
		items = append(items, mediaTypeItem{mt})
		if mt == current {
			selected = i + 1
		}
	}

	l := list.New(items, mediaTypeDelegate{}, 24, len(items)+1)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	l.Select(selected)
	return l
}

// selectedMediaType is the picked media type, [models.MediaUnknown] for "unchanged".
func selectedMediaType(l list.Model) models.MediaType {
	if i, ok := l.SelectedItem().(mediaTypeItem); ok {
		return i.mediaType
	}
	return models.MediaUnknown
}
