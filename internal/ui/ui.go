package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/reconcile"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
	"github.com/desertthunder/dlx/internal/store"
	"github.com/desertthunder/dlx/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	TableView
	SearchView
	EditView
	ConfirmView
	ErrorView
)

// Options are the dependencies of a [Model].
type Options struct {
	API       services.DownloadsAPI
	Stream    *services.Stream // nil runs without live updates
	Journal   tasks.Journal    // nil disables journaling
	Clipboard tasks.Clipboard  // nil uses the system clipboard
	BaseURL   string
	Transport string
	View      store.View
	Feedback  time.Duration
	Logger    *log.Logger
	OpenURL   func(string) error // defaults to [shared.OpenBrowser]
	Now       func() time.Time
}

// pendingDelete is a delete waiting in [ConfirmView].
type pendingDelete struct {
	ids     []int64
	skipped []int64
	prompt  string
}

// Model represents the TUI application state.
//
// It owns the store: every mutation happens in Update.
type Model struct {
	ctx        context.Context
	view       ViewState
	api        services.DownloadsAPI
	store      *store.Store
	selection  *store.Selection
	dispatcher *tasks.Dispatcher
	sync       *tasks.Sync
	stream     *services.Stream
	streamCh   <-chan services.StreamMessage
	tableView  store.View
	rows       []*models.Entry
	table      table.Model
	search     textinput.Model
	titleInput textinput.Model
	typeList   list.Model
	editIDs    []int64
	editFocus  int
	pending    *pendingDelete
	feedback   tasks.Feedback
	feedbackD  time.Duration
	connection string
	status     string
	busy       string
	err        error
	spinner    spinner.Model
	help       help.Model
	keys       keyMap
	width      int
	height     int

	openBrowser func(string) error
	now         func() time.Time
	logger      *log.Logger
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.View.Key == "" {
		opts.View = store.DefaultView()
	}

	s := store.New()
	rec := reconcile.New(s, logger)

	search := textinput.New()
	search.Placeholder = "filter by title or url"
	search.Prompt = "/ "

	title := textinput.New()
	title.Placeholder = "title (empty clears it)"
	title.CharLimit = 512
	title.Width = 48

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	t := table.New(table.WithFocused(true))
	t.SetStyles(styles.Table())

	m := &Model{
		ctx:         ctx,
		view:        LoadingView,
		api:         opts.API,
		store:       s,
		selection:   store.NewSelection(s),
		dispatcher:  tasks.NewDispatcher(opts.API, rec, opts.Clipboard, tasks.AutoConfirm{}, logger),
		sync:        tasks.NewSync(rec, opts.Journal, opts.BaseURL, opts.Transport, logger),
		stream:      opts.Stream,
		tableView:   opts.View,
		table:       t,
		search:      search,
		titleInput:  title,
		feedbackD:   opts.Feedback,
		connection:  "offline",
		spinner:     sp,
		help:        help.New(),
		keys:        newKeyMap(),
		openBrowser: opts.OpenURL,
		now:         opts.Now,
		logger:      logger,
	}
	m.table.SetColumns(m.columns())
	return m
}

// Init fetches the listing and starts the live stream.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.fetchEntries(false), m.spinner.Tick, clockTick()}
	if m.stream != nil {
		m.connection = "connecting"
		m.streamCh = m.stream.Start(m.ctx)
		cmds = append(cmds, waitForStream(m.streamCh))
	}
	return tea.Batch(cmds...)
}

// Close stops the stream and ends the journal session.
func (m *Model) Close() {
	if m.stream != nil {
		m.stream.Close()
	}
	m.sync.Close()
}

// Store exposes the collection for inspection after the program exits.
func (m *Model) Store() *store.Store {
	return m.store
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetColumns(m.columns())
		m.table.SetHeight(max(msg.Height-8, 3))
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case LoadingView:
			if key.Matches(msg, m.keys.quit) {
				return m, tea.Quit
			}
			return m, nil
		case TableView:
			return m.handleTableKeys(msg)
		case SearchView:
			return m.handleSearchKeys(msg)
		case EditView:
			return m.handleEditKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ErrorView:
			return m.handleErrorKeys(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case clockMsg:
		if m.view != LoadingView && m.view != ErrorView {
			m.refresh()
		}
		return m, clockTick()

	case entriesFetchedMsg:
		return m.handleFetched(msg)

	case streamMsg:
		return m.handleStream(services.StreamMessage(msg))

	case streamEndedMsg:
		m.streamCh = nil
		return m, nil

	case editSubmittedMsg:
		m.busy = ""
		if msg.err != nil {
			return m, m.notify(false, fmt.Sprintf("edit failed: %v", msg.err))
		}
		out, err := m.dispatcher.ApplyEdit(msg.patches, msg.env, msg.skipped)
		if err != nil {
			return m, m.notify(false, fmt.Sprintf("edit rejected: %v", err))
		}
		m.sync.RecordEdit(msg.patches, out)
		m.refresh()
		return m, m.notify(out.Err() == nil, out.Summary())

	case deleteSubmittedMsg:
		m.busy = ""
		if msg.err != nil {
			return m, m.notify(false, fmt.Sprintf("delete failed: %v", msg.err))
		}
		out, err := m.dispatcher.ApplyDelete(msg.env, msg.skipped)
		if err != nil {
			return m, m.notify(false, fmt.Sprintf("delete rejected: %v", err))
		}
		m.sync.RecordDelete(out)
		m.refresh()
		return m, m.notify(out.Err() == nil, out.Summary())

	case exportDoneMsg:
		m.busy = ""
		if msg.err != nil {
			return m, m.notify(false, fmt.Sprintf("export failed: %v", msg.err))
		}
		text := fmt.Sprintf("exported %d entries to %s", msg.result.Entries, msg.result.OutputDirectory)
		if msg.result.Failed > 0 {
			text += fmt.Sprintf(", %d formats failed", msg.result.Failed)
		}
		return m, m.notify(msg.result.Failed == 0, text)

	case browserOpenedMsg:
		if msg.err != nil {
			return m, m.notify(false, fmt.Sprintf("could not open %s: %v", msg.url, msg.err))
		}
		return m, nil

	case feedbackExpiredMsg:
		if m.feedback.Until.Equal(msg.until) {
			m.feedback = tasks.Feedback{}
		}
		return m, nil
	}

	return m.updateInputs(msg)
}

func (m *Model) handleFetched(msg entriesFetchedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.logger.Error("failed to fetch downloads", "err", msg.err, "resync", msg.resync)
		if m.view == LoadingView {
			m.err = msg.err
			m.view = ErrorView
			return m, nil
		}
		return m, m.notify(false, fmt.Sprintf("refresh failed: %v", msg.err))
	}

	m.sync.Reset(msg.entries)
	if m.view == LoadingView || m.view == ErrorView {
		m.view = TableView
		m.err = nil
	}
	m.refresh()

	if msg.resync {
		m.status = fmt.Sprintf("resynced %d entries", m.store.Len())
	}
	return m, nil
}

func (m *Model) handleStream(msg services.StreamMessage) (tea.Model, tea.Cmd) {
	res := m.sync.Handle(msg)
	if res.Status != "" {
		m.connection = res.Status
	}
	if res.Err != nil && msg.Status != services.StreamEvent {
		m.status = res.Err.Error()
	}
	switch {
	case res.Changed && res.Resort:
		m.refresh()
	case res.Changed:
		m.redrawRow(res.ID)
	}

	cmds := []tea.Cmd{}
	if !res.Closed {
		cmds = append(cmds, waitForStream(m.streamCh))
	}
	if res.Resync {
		cmds = append(cmds, m.fetchEntries(true))
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) handleTableKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keys.search):
		m.view = SearchView
		m.search.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.toggle):
		if e := m.cursorEntry(); e != nil {
			m.selection.Toggle(e.ID, !e.Selected)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.rangeSel):
		if e := m.cursorEntry(); e != nil {
			m.selection.Range(m.rows, e.ID, !e.Selected)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.selectAll):
		m.selection.SelectAll(m.rows, !m.selection.AllChecked())
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.clear):
		if m.tableView.Search != "" {
			m.setSearch("")
			return m, nil
		}
		m.selection.Clear()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.sort):
		i := slices.Index(store.SortKeys, m.tableView.Key)
		m.tableView.Toggle(store.SortKeys[(i+1)%len(store.SortKeys)])
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.reverse):
		m.tableView.Toggle(m.tableView.Key)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.refresh):
		m.status = "refreshing"
		return m, m.fetchEntries(true)

	case key.Matches(msg, m.keys.edit):
		return m.openEdit()

	case key.Matches(msg, m.keys.remove):
		return m.openConfirmDelete()

	case key.Matches(msg, m.keys.copyURLs):
		return m, m.copy(m.processable(), tasks.CopyURL)

	case key.Matches(msg, m.keys.copyTitle):
		return m, m.copy(m.processable(), tasks.CopyTitle)

	case key.Matches(msg, m.keys.copyOne):
		if e := m.cursorEntry(); e != nil {
			return m, m.copy([]*models.Entry{e}, tasks.CopyURL)
		}
		return m, nil

	case key.Matches(msg, m.keys.open):
		if e := m.cursorEntry(); e != nil {
			return m, m.openURL(e.URL)
		}
		return m, nil

	case key.Matches(msg, m.keys.export):
		items := m.processable()
		if len(items) == 0 {
			return m, m.notify(false, "nothing to export")
		}
		m.busy = fmt.Sprintf("exporting %d entries", len(items))
		return m, m.startExport(items)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m *Model) handleSearchKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.search.Blur()
		m.view = TableView
		m.setSearch("")
		return m, nil
	case "enter":
		m.search.Blur()
		m.view = TableView
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if m.search.Value() != m.tableView.Search {
		m.setSearch(m.search.Value())
	}
	return m, cmd
}

func (m *Model) handleEditKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.back):
		m.closeEdit()
		return m, m.notify(false, "edit cancelled")

	case key.Matches(msg, m.keys.tab):
		m.editFocus = (m.editFocus + 1) % 2
		if m.editFocus == 0 {
			m.titleInput.Focus()
		} else {
			m.titleInput.Blur()
		}
		return m, nil

	case key.Matches(msg, m.keys.enter):
		patches := m.editPatches()
		m.closeEdit()

		kept, skipped := m.dispatcher.PrepareEdit(patches)
		if len(kept) == 0 {
			return m, m.notify(false, "nothing to edit")
		}
		m.busy = fmt.Sprintf("saving %d entries", len(kept))
		return m, m.submitEdit(kept, skipped)
	}

	var cmd tea.Cmd
	if m.editFocus == 0 {
		m.titleInput, cmd = m.titleInput.Update(msg)
	} else {
		m.typeList, cmd = m.typeList.Update(msg)
	}
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.yes):
		p := m.pending
		m.pending = nil
		m.view = TableView

		kept, gone := m.dispatcher.PrepareDelete(p.ids)
		skipped := append(slices.Clone(p.skipped), gone...)
		if len(kept) == 0 {
			return m, m.notify(false, "nothing to delete: entries are gone")
		}
		m.busy = fmt.Sprintf("deleting %d entries", len(kept))
		return m, m.submitDelete(kept, skipped)

	case key.Matches(msg, m.keys.no):
		m.pending = nil
		m.view = TableView
		return m, m.notify(false, "delete cancelled")
	}
	return m, nil
}

func (m *Model) handleErrorKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		m.view = LoadingView
		return m, m.fetchEntries(false)
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SearchView:
		m.search, cmd = m.search.Update(msg)
	case EditView:
		if m.editFocus == 0 {
			m.titleInput, cmd = m.titleInput.Update(msg)
		}
	case TableView:
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m *Model) openEdit() (tea.Model, tea.Cmd) {
	items := m.processable()
	if len(items) == 0 {
		return m, m.notify(false, "nothing to edit")
	}

	m.editIDs = m.editIDs[:0]
	for _, e := range items {
		m.editIDs = append(m.editIDs, e.ID)
	}

	current := models.MediaUnknown
	m.titleInput.SetValue("")
	if len(items) == 1 {
		current = items[0].MediaType
		if items[0].HasTitle() {
			m.titleInput.SetValue(*items[0].Title)
		}
		m.titleInput.Placeholder = "title (empty clears it)"
	} else {
		m.titleInput.Placeholder = "title (empty keeps each title)"
	}

	m.typeList = newMediaTypeList(current)
	m.editFocus = 0
	m.titleInput.Focus()
	m.view = EditView
	return m, textinput.Blink
}

func (m *Model) closeEdit() {
	m.titleInput.Blur()
	m.view = TableView
}

// editPatches builds one patch per edited id. A single entry gets exactly what the dialog
// shows; several entries only get the fields that were filled in.
func (m *Model) editPatches() []models.Patch {
	title := strings.TrimSpace(m.titleInput.Value())
	mt := selectedMediaType(m.typeList)

	if len(m.editIDs) == 1 {
		return []models.Patch{models.TitlePatch(m.editIDs[0], title, mt)}
	}

	patches := make([]models.Patch, 0, len(m.editIDs))
	for _, id := range m.editIDs {
		p := models.Patch{ID: id}
		if title != "" {
			p.Title = models.Some(&title)
		}
		if mt.Known() {
			p.MediaType = models.Some(mt)
		}
		patches = append(patches, p)
	}
	return patches
}

func (m *Model) openConfirmDelete() (tea.Model, tea.Cmd) {
	items := m.processable()
	ids := make([]int64, 0, len(items))
	for _, e := range items {
		ids = append(ids, e.ID)
	}

	kept, skipped := m.dispatcher.PrepareDelete(ids)
	if len(kept) == 0 {
		return m, m.notify(false, "nothing to delete")
	}

	m.pending = &pendingDelete{ids: kept, skipped: skipped, prompt: tasks.DeletePrompt(len(kept))}
	m.view = ConfirmView
	return m, nil
}

func (m *Model) copy(entries []*models.Entry, field tasks.CopyField) tea.Cmd {
	out, err := m.dispatcher.CopyField(entries, field)
	if errors.Is(err, shared.ErrNothingToProcess) {
		return m.notify(false, fmt.Sprintf("no %ss to copy", field))
	}
	if !out.OK {
		return m.notify(false, "copy failed")
	}
	return m.notify(true, fmt.Sprintf("copied %d %ss", out.Count, field))
}

// notify shows transient feedback and schedules its removal.
func (m *Model) notify(ok bool, text string) tea.Cmd {
	m.feedback = tasks.NewFeedback(ok, text, m.now(), m.feedbackD)
	return expireFeedback(m.feedback.Until.Sub(m.now()), m.feedback.Until)
}

func (m *Model) setSearch(term string) {
	m.tableView.Search = term
	m.search.SetValue(term)
	m.selection.FilterChanged()
	m.refresh()
}

func (m *Model) processable() []*models.Entry {
	return m.selection.ProcessableItems(m.tableView)
}

func (m *Model) cursorEntry() *models.Entry {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

// refresh recomputes the visible rows, keeping the cursor on the same entry, and clears
// one-shot highlights once they have been rendered.
func (m *Model) refresh() {
	var cursorID int64
	if e := m.cursorEntry(); e != nil {
		cursorID = e.ID
	}

	m.rows = m.tableView.Rows(m.store)
	now := m.now()
	tableRows := make([]table.Row, len(m.rows))
	for i, e := range m.rows {
		tableRows[i] = entryRow(e, now)
	}
	m.table.SetRows(tableRows)
	m.store.MarkRendered()

	if cursorID != 0 {
		if i := slices.IndexFunc(m.rows, func(e *models.Entry) bool { return e.ID == cursorID }); i >= 0 {
			m.table.SetCursor(i)
			return
		}
	}
	if m.table.Cursor() >= len(m.rows) {
		m.table.SetCursor(max(len(m.rows)-1, 0))
	}
}

// redrawRow rewrites the cells of one visible entry without re-sorting or re-filtering.
func (m *Model) redrawRow(id int64) {
	i := slices.IndexFunc(m.rows, func(e *models.Entry) bool { return e.ID == id })
	if i < 0 {
		return
	}
	rows := m.table.Rows()
	if i >= len(rows) {
		m.refresh()
		return
	}
	rows[i] = entryRow(m.rows[i], m.now())
	m.table.SetRows(rows)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return fmt.Sprintf("%s Loading downloads...\n\n%s", m.spinner.View(), m.help.ShortHelpView([]key.Binding{m.keys.quit}))
	case ErrorView:
		return styles.err.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n" +
			m.help.ShortHelpView([]key.Binding{m.keys.refresh, m.keys.quit})
	case EditView:
		return m.renderEdit()
	case ConfirmView:
		return m.renderConfirm()
	default:
		return m.renderTable()
	}
}

func (m *Model) renderTable() string {
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	if m.view == SearchView || m.tableView.Search != "" {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(styles.help.Render("No downloads match."))
		b.WriteString("\n")
	} else {
		b.WriteString(m.table.View())
		b.WriteString("\n")
	}
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderHeader() string {
	sel := m.selection.Count()
	parts := []string{
		styles.title.Render("dlx"),
		m.renderConnection(),
		fmt.Sprintf("%d shown / %d total", len(m.rows), m.store.Len()),
		fmt.Sprintf("sort: %s %s", m.tableView.Key, m.tableView.Dir),
	}
	if sel > 0 {
		parts = append(parts, styles.warn.Render(fmt.Sprintf("%d selected", sel)))
	}
	return strings.Join(parts, "  •  ")
}

func (m *Model) renderConnection() string {
	switch {
	case strings.HasPrefix(m.connection, "live"):
		return styles.ok.Render("● " + m.connection)
	case m.connection == "offline" || m.connection == "closed":
		return styles.help.Render("○ " + m.connection)
	default:
		return styles.warn.Render("◌ " + m.connection)
	}
}

func (m *Model) renderStatus() string {
	var parts []string
	if m.busy != "" {
		parts = append(parts, m.spinner.View()+" "+m.busy)
	}
	if m.feedback.Active(m.now()) {
		if m.feedback.OK {
			parts = append(parts, styles.ok.Render("✓ "+m.feedback.Message))
		} else {
			parts = append(parts, styles.err.Render("✗ "+m.feedback.Message))
		}
	}
	if m.status != "" {
		parts = append(parts, styles.help.Render(m.status))
	}
	return strings.Join(parts, "  ")
}

func (m *Model) renderEdit() string {
	heading := "Edit entry"
	if len(m.editIDs) > 1 {
		heading = fmt.Sprintf("Edit %d entries", len(m.editIDs))
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.title.Render(heading),
		"",
		"Title",
		m.titleInput.View(),
		"",
		"Media type",
		m.typeList.View(),
	)

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.tab, m.keys.enter, m.keys.back})
	return styles.dialog.Render(body) + "\n" + helpView
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}

	lines := []string{styles.title.Render(m.pending.prompt), ""}
	for i, id := range m.pending.ids {
		if i == 10 {
			lines = append(lines, fmt.Sprintf("… and %d more", len(m.pending.ids)-i))
			break
		}
		if e, ok := m.store.Find(id); ok {
			lines = append(lines, fmt.Sprintf("%s  %s", e.DisplayID(), e.DisplayTitle()))
		}
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.yes, m.keys.no})
	return styles.dialog.Render(strings.Join(lines, "\n")) + "\n" + helpView
}
