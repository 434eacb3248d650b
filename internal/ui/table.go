package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/shared"
)

const (
	selectWidth   = 5
	idWidth       = 7
	typeWidth     = 7
	statusWidth   = 12
	progressWidth = 8
	startedWidth  = 19
	elapsedWidth  = 9
	minTitleWidth = 20
)

// columns sizes the title column to whatever the fixed columns leave over.
func (m *Model) columns() []table.Column {
	fixed := selectWidth + idWidth + typeWidth + statusWidth + progressWidth + startedWidth + elapsedWidth
	title := minTitleWidth
	if w := m.width - fixed - 16; w > title {
		title = w
	}

	return []table.Column{
		{Title: "", Width: selectWidth},
		{Title: "ID", Width: idWidth},
		{Title: "Type", Width: typeWidth},
		{Title: "Title", Width: title},
		{Title: "Status", Width: statusWidth},
		{Title: "Progress", Width: progressWidth},
		{Title: "Started", Width: startedWidth},
		{Title: "Elapsed", Width: elapsedWidth},
	}
}

func entryRow(e *models.Entry, now time.Time) table.Row {
	return table.Row{
		selectCell(e),
		e.DisplayID(),
		e.MediaType.Label(),
		e.DisplayTitle(),
		e.DisplayStatus(),
		progressCell(e),
		e.DisplayStart(),
		shared.FormatDuration(e.Elapsed(now)),
	}
}

// selectCell shows the checkbox plus a marker for rows that just arrived or changed.
func selectCell(e *models.Entry) string {
	box := "[ ]"
	if e.Selected {
		box = "[x]"
	}
	switch {
	case e.New:
		return box + " +"
	case e.Pulse:
		return box + " *"
	}
	return box
}

func progressCell(e *models.Entry) string {
	if e.Percentage != nil {
		return fmt.Sprintf("%d%%", *e.Percentage)
	}
	if e.Running() {
		return "…"
	}
	return "-"
}
