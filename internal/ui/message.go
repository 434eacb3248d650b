package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/tasks"
)

// entriesFetchedMsg carries a full listing. resync is set when it replaces the table after a reconnect.
type entriesFetchedMsg struct {
	entries []*models.Entry
	err     error
	resync  bool
}

// streamMsg wraps one message from the live stream.
type streamMsg services.StreamMessage

// streamEndedMsg is sent once the stream channel is closed.
type streamEndedMsg struct{}

type editSubmittedMsg struct {
	patches []models.Patch
	skipped []int64
	env     models.Envelope
	err     error
}

type deleteSubmittedMsg struct {
	ids     []int64
	skipped []int64
	env     models.Envelope
	err     error
}

type exportDoneMsg struct {
	result *tasks.BulkExportResult
	err    error
}

type browserOpenedMsg struct {
	url string
	err error
}

// feedbackExpiredMsg reverts the feedback indicator that was set to expire at until.
type feedbackExpiredMsg struct {
	until time.Time
}

// clockMsg refreshes elapsed times.
type clockMsg time.Time

// fetchEntries requests a listing. Stream events applied before it lands are kept over it.
func (m *Model) fetchEntries(resync bool) tea.Cmd {
	m.sync.BeginFetch()
	return func() tea.Msg {
		entries, err := m.api.FetchDownloads(m.ctx)
		return entriesFetchedMsg{entries: entries, err: err, resync: resync}
	}
}

func waitForStream(ch <-chan services.StreamMessage) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return streamEndedMsg{}
		}
		return streamMsg(msg)
	}
}

func (m *Model) submitEdit(patches []models.Patch, skipped []int64) tea.Cmd {
	return func() tea.Msg {
		env, err := m.dispatcher.SubmitEdit(m.ctx, patches)
		return editSubmittedMsg{patches: patches, skipped: skipped, env: env, err: err}
	}
}

func (m *Model) submitDelete(ids, skipped []int64) tea.Cmd {
	return func() tea.Msg {
		env, err := m.dispatcher.SubmitDelete(m.ctx, ids)
		return deleteSubmittedMsg{ids: ids, skipped: skipped, env: env, err: err}
	}
}

// startExport snapshots entries on the calling goroutine; the files are written in the background.
func (m *Model) startExport(entries []*models.Entry) tea.Cmd {
	snapshot := make([]*models.Entry, len(entries))
	for i, e := range entries {
		snapshot[i] = e.Clone()
	}

	return func() tea.Msg {
		result, err := m.dispatcher.BulkExport(m.ctx, nil, snapshot, tasks.BulkExportOpts{})
		return exportDoneMsg{result: result, err: err}
	}
}

func (m *Model) openURL(url string) tea.Cmd {
	return func() tea.Msg {
		return browserOpenedMsg{url: url, err: m.openBrowser(url)}
	}
}

func expireFeedback(d time.Duration, until time.Time) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return feedbackExpiredMsg{until: until} })
}

func clockTick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return clockMsg(t) })
}
