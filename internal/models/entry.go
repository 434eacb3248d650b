package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/dlx/internal/shared"
)

// Entry is one download record tracked by the dashboard.
//
// Canonical fields mirror the server's record. Selected, New, Pulse and Percentage
// are UI-only and never cross the wire.
type Entry struct {
	ID            int64
	MediaType     MediaType
	Title         *string
	URL           string
	StartTime     *time.Time
	EndTime       *time.Time
	UpdatedTime   *time.Time
	Status        *string
	StatusMessage *string

	Selected   bool // survives sort and filter changes
	New        bool // one-shot highlight, cleared on first render
	Pulse      bool // one-shot highlight after an update, cleared on render
	Percentage *int // derived from progress events, nil when unknown
}

// wireEntry is the JSON shape the server sends and accepts.
type wireEntry struct {
	ID            int64     `json:"id"`
	MediaType     MediaType `json:"mediaType"`
	Title         *string   `json:"title"`
	URL           string    `json:"url"`
	StartTime     *string   `json:"startTime,omitempty"`
	EndTime       *string   `json:"endTime,omitempty"`
	UpdatedTime   *string   `json:"updatedTime,omitempty"`
	Status        *string   `json:"status,omitempty"`
	StatusMessage *string   `json:"statusMessage,omitempty"`
}

// MarshalJSON encodes only canonical fields.
func (e Entry) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireEntry{
		ID:            e.ID,
		MediaType:     e.MediaType,
		Title:         e.Title,
		URL:           e.URL,
		StartTime:     formatTimePtr(e.StartTime),
		EndTime:       formatTimePtr(e.EndTime),
		UpdatedTime:   formatTimePtr(e.UpdatedTime),
		Status:        e.Status,
		StatusMessage: e.StatusMessage,
	})
}

// UnmarshalJSON decodes canonical fields and leaves UI-only state at its zero value.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	start, err := parseTimePtr(w.StartTime)
	if err != nil {
		return fmt.Errorf("startTime: %w", err)
	}
	end, err := parseTimePtr(w.EndTime)
	if err != nil {
		return fmt.Errorf("endTime: %w", err)
	}
	updated, err := parseTimePtr(w.UpdatedTime)
	if err != nil {
		return fmt.Errorf("updatedTime: %w", err)
	}

	*e = Entry{
		ID:            w.ID,
		MediaType:     w.MediaType,
		Title:         w.Title,
		URL:           w.URL,
		StartTime:     start,
		EndTime:       end,
		UpdatedTime:   updated,
		Status:        w.Status,
		StatusMessage: w.StatusMessage,
	}
	return nil
}

// Validate checks the fields the server guarantees.
func (e *Entry) Validate() error {
	if e.ID <= 0 {
		return fmt.Errorf("entry id must be positive, got %d", e.ID)
	}
	if strings.TrimSpace(e.URL) == "" {
		return fmt.Errorf("entry #%d has no url", e.ID)
	}
	return nil
}

// Clone returns a deep copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	c.Title = clonePtr(e.Title)
	c.StartTime = clonePtr(e.StartTime)
	c.EndTime = clonePtr(e.EndTime)
	c.UpdatedTime = clonePtr(e.UpdatedTime)
	c.Status = clonePtr(e.Status)
	c.StatusMessage = clonePtr(e.StatusMessage)
	c.Percentage = clonePtr(e.Percentage)
	return &c
}

// CopyCanonical overwrites the canonical fields of e with those of src, keeping UI-only state.
func (e *Entry) CopyCanonical(src *Entry) {
	c := src.Clone()
	e.MediaType = c.MediaType
	e.Title = c.Title
	e.URL = c.URL
	e.StartTime = c.StartTime
	e.EndTime = c.EndTime
	e.UpdatedTime = c.UpdatedTime
	e.Status = c.Status
	e.StatusMessage = c.StatusMessage
}

// HasTitle reports whether a non-empty title is set.
func (e *Entry) HasTitle() bool {
	return e.Title != nil && *e.Title != ""
}

// DisplayTitle is the title, or the URL when the entry has no title.
func (e *Entry) DisplayTitle() string {
	if e.HasTitle() {
		return *e.Title
	}
	return e.URL
}

// DisplayID formats the id the way tables show it.
func (e *Entry) DisplayID() string {
	return fmt.Sprintf("#%d", e.ID)
}

func (e *Entry) DisplayStatus() string {
	if e.Status == nil || *e.Status == "" {
		return "Unknown"
	}
	return *e.Status
}

// DisplayStart formats the start time, or "-" when absent.
func (e *Entry) DisplayStart() string {
	return shared.FormatLocalTime(e.StartTime)
}

// Running reports whether the download has no end time yet.
func (e *Entry) Running() bool {
	return e.EndTime == nil
}

// Elapsed is the time between start and end, or between start and now while running.
// It is zero when the start time is unknown.
func (e *Entry) Elapsed(now time.Time) time.Duration {
	if e.StartTime == nil {
		return 0
	}
	end := now
	if e.EndTime != nil {
		end = *e.EndTime
	}
	if end.Before(*e.StartTime) {
		return 0
	}
	return end.Sub(*e.StartTime)
}

// TimeTooltip describes how long the download has been running or how long it took.
func (e *Entry) TimeTooltip(now time.Time) string {
	took := shared.FormatDuration(e.Elapsed(now))
	if e.Running() {
		return fmt.Sprintf("Download started more than %s ago.", took)
	}
	return fmt.Sprintf("Finished at %s (took %s)", shared.FormatLocalTime(e.EndTime), took)
}

// Matches reports whether the display title contains term, ignoring case.
// An empty term matches every entry.
func (e *Entry) Matches(term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.DisplayTitle()), strings.ToLower(term))
}

// NewEntry builds an entry with the required fields and an optional title.
func NewEntry(id int64, url, title string, mt MediaType) *Entry {
	e := &Entry{ID: id, URL: url, MediaType: mt}
	if title != "" {
		e.Title = &title
	}
	return e
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func parseTimePtr(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := shared.ParseTimestamp(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
