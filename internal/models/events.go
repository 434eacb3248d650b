package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/desertthunder/dlx/internal/shared"
)

// EventKind is the declared type of a stream message.
type EventKind int

const (
	KindCreate EventKind = iota
	KindUpdate
	KindDelete
	KindProgress
)

func (k EventKind) String() string {
	switch k {
	case KindCreate:
		return "CREATE"
	case KindUpdate:
		return "UPDATE"
	case KindDelete:
		return "DELETE"
	case KindProgress:
		return "PROGRESS"
	default:
		return "EventKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// ParseEventKind accepts the upper-case name (any case) or the integer code of the older protocol.
func ParseEventKind(raw json.RawMessage) (EventKind, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, fmt.Errorf("missing event type")
	}

	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return 0, err
		}
		return ParseEventKindName(name)
	}

	code, err := strconv.Atoi(string(raw))
	if err != nil || code < int(KindCreate) || code > int(KindProgress) {
		return 0, fmt.Errorf("unknown event type %s", raw)
	}
	return EventKind(code), nil
}

// ParseEventKindName resolves an event type name, ignoring case.
func ParseEventKindName(name string) (EventKind, error) {
	for _, k := range []EventKind{KindCreate, KindUpdate, KindDelete, KindProgress} {
		if strings.EqualFold(k.String(), name) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event type %q", name)
}

// Event is one message from the live stream. The concrete types are
// [Created], [Updated], [Deleted] and [Progressed]; no other type implements it.
type Event interface {
	Kind() EventKind
	EntryID() int64
	event()
}

// Created carries a full record.
type Created struct{ Entry Entry }

// Updated carries the fields that changed.
type Updated struct{ Patch Patch }

// Deleted names the record that went away.
type Deleted struct{ ID int64 }

// Progressed reports download progress. It never changes canonical fields.
type Progressed struct {
	ID      int64
	Current float64
	Total   float64
}

func (Created) Kind() EventKind    { return KindCreate }
func (Updated) Kind() EventKind    { return KindUpdate }
func (Deleted) Kind() EventKind    { return KindDelete }
func (Progressed) Kind() EventKind { return KindProgress }

func (e Created) EntryID() int64    { return e.Entry.ID }
func (e Updated) EntryID() int64    { return e.Patch.ID }
func (e Deleted) EntryID() int64    { return e.ID }
func (e Progressed) EntryID() int64 { return e.ID }

func (Created) event()    {}
func (Updated) event()    {}
func (Deleted) event()    {}
func (Progressed) event() {}

// Percent is round(current/total*100), or nil when the ratio is undefined.
func (e Progressed) Percent() *int {
	return Percent(e.Current, e.Total)
}

// Percent computes a rounded percentage. It returns nil when total is zero or
// either operand is not a finite number.
func Percent(current, total float64) *int {
	if total == 0 || math.IsNaN(current) || math.IsNaN(total) || math.IsInf(current, 0) || math.IsInf(total, 0) {
		return nil
	}
	p := int(math.Round(current / total * 100))
	return &p
}

type wireEvent struct {
	Type json.RawMessage `json:"type"`
	Data json.RawMessage `json:"data"`
}

type wireID struct {
	ID *int64 `json:"id"`
}

type wireProgress struct {
	ID      *int64  `json:"id"`
	Current float64 `json:"current"`
	Total   float64 `json:"total"`
}

// DecodeEvent parses a `{type, data}` stream message. Every failure wraps
// [shared.ErrMalformedEvent].
func DecodeEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}

	kind, err := ParseEventKind(w.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedEvent, err)
	}

	if len(bytes.TrimSpace(w.Data)) == 0 || bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
		return nil, fmt.Errorf("%w: %s event has no data", shared.ErrMalformedEvent, kind)
	}

	switch kind {
	case KindCreate:
		var e Entry
		if err := json.Unmarshal(w.Data, &e); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedEvent, kind, err)
		}
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedEvent, kind, err)
		}
		return Created{Entry: e}, nil
	case KindUpdate:
		var p Patch
		if err := json.Unmarshal(w.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedEvent, kind, err)
		}
		return Updated{Patch: p}, nil
	case KindDelete:
		var d wireID
		if err := json.Unmarshal(w.Data, &d); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedEvent, kind, err)
		}
		if d.ID == nil {
			return nil, fmt.Errorf("%w: %s: missing id", shared.ErrMalformedEvent, kind)
		}
		return Deleted{ID: *d.ID}, nil
	case KindProgress:
		var p wireProgress
		if err := json.Unmarshal(w.Data, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", shared.ErrMalformedEvent, kind, err)
		}
		if p.ID == nil {
			return nil, fmt.Errorf("%w: %s: missing id", shared.ErrMalformedEvent, kind)
		}
		return Progressed{ID: *p.ID, Current: p.Current, Total: p.Total}, nil
	default:
		return nil, fmt.Errorf("%w: unhandled event kind %s", shared.ErrMalformedEvent, kind)
	}
}

// MarshalEvent encodes ev in the `{type, data}` shape with the type as its name.
func MarshalEvent(ev Event) ([]byte, error) {
	var data any
	switch e := ev.(type) {
	case Created:
		data = e.Entry
	case Updated:
		data = e.Patch
	case Deleted:
		data = map[string]int64{"id": e.ID}
	case Progressed:
		data = map[string]any{"id": e.ID, "current": e.Current, "total": e.Total}
	default:
		return nil, fmt.Errorf("cannot encode event %T", ev)
	}

	return json.Marshal(struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: ev.Kind().String(), Data: data})
}
