package models

import (
	"fmt"
	"time"
)

// Journal event origins.
const (
	OriginStream  = "stream"  // received on the live stream
	OriginCommand = "command" // synthesized from a successful bulk command item
)

// Session is one connection to the event stream as recorded in the journal.
type Session struct {
	ID        string
	Sequence  int
	BaseURL   string
	Transport string
	StartedAt time.Time
	EndedAt   *time.Time
}

// NewSession creates an open session starting at now.
func NewSession(baseURL, transport string, now time.Time) *Session {
	return &Session{BaseURL: baseURL, Transport: transport, StartedAt: now.UTC()}
}

// Open reports whether the session has not been ended.
func (s *Session) Open() bool {
	return s.EndedAt == nil
}

// Duration is how long the session lasted, or has lasted so far.
func (s *Session) Duration(now time.Time) time.Duration {
	if s.EndedAt != nil {
		return s.EndedAt.Sub(s.StartedAt)
	}
	return now.Sub(s.StartedAt)
}

// JournalEvent is a stream message stored for later replay.
type JournalEvent struct {
	ID         string
	Sequence   int
	SessionID  string
	Kind       EventKind
	EntryID    int64
	Payload    []byte
	Origin     string
	ReceivedAt time.Time
}

// NewJournalEvent decodes payload to index it by kind and entry id.
// Malformed payloads are rejected so every stored event can be replayed.
func NewJournalEvent(sessionID string, payload []byte, origin string, now time.Time) (*JournalEvent, error) {
	ev, err := DecodeEvent(payload)
	if err != nil {
		return nil, err
	}
	if origin == "" {
		origin = OriginStream
	}
	return &JournalEvent{
		SessionID:  sessionID,
		Kind:       ev.Kind(),
		EntryID:    ev.EntryID(),
		Payload:    append([]byte(nil), payload...),
		Origin:     origin,
		ReceivedAt: now.UTC(),
	}, nil
}

// JournalEventFrom encodes ev and wraps it as a journal record.
func JournalEventFrom(sessionID string, ev Event, origin string, now time.Time) (*JournalEvent, error) {
	payload, err := MarshalEvent(ev)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", ev.Kind(), err)
	}
	return NewJournalEvent(sessionID, payload, origin, now)
}

// Event decodes the stored payload.
func (j *JournalEvent) Event() (Event, error) {
	return DecodeEvent(j.Payload)
}

// Validate checks the fields the journal requires.
func (j *JournalEvent) Validate() error {
	if j.SessionID == "" {
		return fmt.Errorf("journal event has no session")
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("journal event has no payload")
	}
	return nil
}
