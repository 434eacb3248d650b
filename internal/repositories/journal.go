package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/dlx/internal/models"
)

// Journal records the events of one stream session.
//
// It is used from a single goroutine: the loop that consumes the stream.
type Journal struct {
	Sessions *SessionRepository
	Events   *EventRepository

	session *models.Session
	retain  int
	written int
	now     func() time.Time
}

// NewJournal creates a journal over db. retain bounds the stored events; zero keeps everything.
func NewJournal(db *sql.DB, retain int) *Journal {
	return &Journal{
		Sessions: NewSessionRepository(db),
		Events:   NewEventRepository(db),
		retain:   retain,
		now:      time.Now,
	}
}

// Begin opens a new session. Any session left open by this journal is ended first.
func (j *Journal) Begin(baseURL, transport string) (*models.Session, error) {
	if err := j.End(); err != nil {
		return nil, err
	}

	s := models.NewSession(baseURL, transport, j.now())
	if err := j.Sessions.Create(s); err != nil {
		return nil, err
	}
	j.session = s
	return s, nil
}

// Session returns the open session, if any.
func (j *Journal) Session() *models.Session {
	return j.session
}

// Record stores a raw stream payload in the open session.
func (j *Journal) Record(payload []byte, origin string) (*models.JournalEvent, error) {
	if j.session == nil {
		return nil, fmt.Errorf("journal has no open session")
	}

	e, err := models.NewJournalEvent(j.session.ID, payload, origin, j.now())
	if err != nil {
		return nil, err
	}
	return e, j.append(e)
}

// RecordEvent stores an already decoded event, e.g. one synthesized from a bulk command result.
func (j *Journal) RecordEvent(ev models.Event, origin string) (*models.JournalEvent, error) {
	if j.session == nil {
		return nil, fmt.Errorf("journal has no open session")
	}

	e, err := models.JournalEventFrom(j.session.ID, ev, origin, j.now())
	if err != nil {
		return nil, err
	}
	return e, j.append(e)
}

func (j *Journal) append(e *models.JournalEvent) error {
	if err := j.Events.Append(e); err != nil {
		return err
	}

	j.written++
	if j.retain > 0 && j.written%100 == 0 {
		if _, err := j.Events.Prune(j.retain); err != nil {
			return err
		}
	}
	return nil
}

// End closes the open session and prunes old events.
func (j *Journal) End() error {
	if j.session == nil {
		return nil
	}

	if err := j.Sessions.End(j.session.ID, j.now()); err != nil {
		return err
	}
	j.session = nil

	if j.retain > 0 {
		if _, err := j.Events.Prune(j.retain); err != nil {
			return err
		}
	}
	return nil
}
