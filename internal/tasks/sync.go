package tasks

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlx/internal/models"
	"github.com/desertthunder/dlx/internal/reconcile"
	"github.com/desertthunder/dlx/internal/services"
	"github.com/desertthunder/dlx/internal/shared"
)

// Journal records stream traffic for later replay. Implemented by repositories.Journal.
type Journal interface {
	Begin(baseURL, transport string) (*models.Session, error)
	Record(payload []byte, origin string) (*models.JournalEvent, error)
	RecordEvent(ev models.Event, origin string) (*models.JournalEvent, error)
	End() error
}

// SyncResult tells the owner of the store what a stream message requires.
type SyncResult struct {
	ID         int64  // entry the event addressed
	Changed    bool   // the store changed and should be re-rendered
	Resort     bool   // the change may move rows; otherwise only row ID needs redrawing
	Resync     bool   // events may have been missed: refetch and reset the store
	Closed     bool   // the stream will not deliver anything else
	Status     string // connection state for a status bar
	Diagnostic string // protocol problem with the message, if any
	Err        error
}

// Sync applies stream messages to the store and journals them.
//
// Like the store, it belongs to one goroutine.
type Sync struct {
	rec       *reconcile.Reconciler
	journal   Journal
	baseURL   string
	transport string
	logger    *log.Logger

	// Set between BeginFetch and Reset: stream changes the listing may predate.
	fetching bool
	touched  map[int64]bool
	deleted  map[int64]bool
}

// NewSync creates a Sync. journal may be nil to disable journaling.
func NewSync(rec *reconcile.Reconciler, journal Journal, baseURL, transport string, logger *log.Logger) *Sync {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Sync{rec: rec, journal: journal, baseURL: baseURL, transport: transport, logger: logger}
}

// Handle processes one stream message.
func (s *Sync) Handle(m services.StreamMessage) SyncResult {
	switch m.Status {
	case services.StreamEvent:
		res, err := s.rec.ApplyRaw(m.Payload)
		if err != nil {
			return SyncResult{Diagnostic: res.Diagnostic, Err: err}
		}
		s.record(m.Payload)
		s.track(res)
		return SyncResult{ID: res.ID, Changed: res.Changed, Resort: res.Resort, Diagnostic: res.Diagnostic}

	case services.StreamConnected:
		s.begin()
		return SyncResult{Status: fmt.Sprintf("live (%s)", s.transport)}

	case services.StreamResync:
		return SyncResult{Resync: true, Status: "resyncing"}

	case services.StreamDisconnected:
		s.end()
		status := fmt.Sprintf("reconnecting in %s", m.RetryIn)
		if m.Attempt > 1 {
			status += fmt.Sprintf(" (attempt %d)", m.Attempt)
		}
		return SyncResult{Status: status, Err: m.Err}

	case services.StreamClosed:
		s.end()
		if m.Err == nil || errors.Is(m.Err, shared.ErrStreamClosed) {
			return SyncResult{Closed: true, Status: "closed"}
		}
		return SyncResult{Closed: true, Status: "disconnected", Err: m.Err}

	default:
		s.logger.Error("unhandled stream status", "status", m.Status)
		return SyncResult{}
	}
}

// BeginFetch marks the start of a listing request. Until [Sync.Reset], entries created or
// updated by the stream are remembered, and so are deleted ids.
func (s *Sync) BeginFetch() {
	s.fetching = true
	s.touched = make(map[int64]bool)
	s.deleted = make(map[int64]bool)
}

// Reset replaces the store contents with a listing and reports how many duplicate ids
// were dropped.
//
// After [Sync.BeginFetch], stream changes that arrived while the listing was in flight
// win over it: created or updated entries keep their streamed fields and deleted ids stay
// deleted.
func (s *Sync) Reset(entries []*models.Entry) int {
	st := s.rec.Store()

	var streamed []*models.Entry
	if s.fetching {
		for id := range s.touched {
			if e, ok := st.Find(id); ok {
				streamed = append(streamed, e)
			}
		}
		entries = slices.DeleteFunc(slices.Clone(entries), func(e *models.Entry) bool {
			return s.deleted[e.ID]
		})
	}

	dupes := st.Reset(entries)
	if dupes > 0 {
		s.logger.Warn("listing contained duplicate ids", "count", dupes)
	}

	slices.SortFunc(streamed, func(a, b *models.Entry) int { return cmp.Compare(a.ID, b.ID) })
	for _, e := range streamed {
		st.Add(e)
	}
	if len(streamed) > 0 || len(s.deleted) > 0 {
		s.logger.Debug("kept stream changes over listing", "entries", len(streamed), "deleted", len(s.deleted))
	}

	s.fetching, s.touched, s.deleted = false, nil, nil
	return dupes
}

// track remembers what an applied event did while a listing is in flight.
func (s *Sync) track(res reconcile.Result) {
	if !s.fetching || res.ID == 0 {
		return
	}
	switch res.Kind {
	case models.KindCreate, models.KindUpdate:
		if res.Changed {
			s.touched[res.ID] = true
			delete(s.deleted, res.ID)
		}
	case models.KindDelete:
		s.deleted[res.ID] = true
		delete(s.touched, res.ID)
	}
}

// RecordEdit journals the patches the server accepted.
func (s *Sync) RecordEdit(patches []models.Patch, out Outcome) {
	ok := make(map[int64]bool, len(out.Result.Succeeded))
	for _, id := range out.Result.Succeeded {
		ok[id] = true
	}
	for _, p := range patches {
		if ok[p.ID] {
			s.recordEvent(models.Updated{Patch: p})
			s.track(reconcile.Result{Kind: models.KindUpdate, ID: p.ID, Changed: true})
		}
	}
}

// RecordDelete journals the deletions the server accepted.
func (s *Sync) RecordDelete(out Outcome) {
	for _, id := range out.Result.Succeeded {
		s.recordEvent(models.Deleted{ID: id})
		s.track(reconcile.Result{Kind: models.KindDelete, ID: id})
	}
}

// Close ends the open journal session, if any.
func (s *Sync) Close() {
	s.end()
}

func (s *Sync) begin() {
	if s.journal == nil {
		return
	}
	if session, err := s.journal.Begin(s.baseURL, s.transport); err != nil {
		s.logger.Error("failed to start journal session", "err", err)
	} else {
		s.logger.Debug("journal session started", "session", session.ID)
	}
}

func (s *Sync) end() {
	if s.journal == nil {
		return
	}
	if err := s.journal.End(); err != nil {
		s.logger.Error("failed to end journal session", "err", err)
	}
}

func (s *Sync) record(payload []byte) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.Record(payload, models.OriginStream); err != nil {
		s.logger.Warn("failed to journal event", "err", err)
	}
}

func (s *Sync) recordEvent(ev models.Event) {
	if s.journal == nil {
		return
	}
	if _, err := s.journal.RecordEvent(ev, models.OriginCommand); err != nil {
		s.logger.Warn("failed to journal command result", "err", err, "id", ev.EntryID())
	}
}
