package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Optional pairs a value with a presence flag.
//
// The zero value is absent. A present pointer-typed value may still be nil, which
// means "explicitly cleared" rather than "no change".
type Optional[T any] struct {
	Set   bool
	Value T
}

// Some returns a present [Optional] holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Patch is a partial update of one [Entry]. Only fields with Set == true are applied.
type Patch struct {
	ID            int64
	Title         Optional[*string]
	MediaType     Optional[MediaType]
	URL           Optional[string]
	StartTime     Optional[*time.Time]
	EndTime       Optional[*time.Time]
	UpdatedTime   Optional[*time.Time]
	Status        Optional[*string]
	StatusMessage Optional[*string]
}

// TitlePatch builds the patch sent by the edit dialog. An empty title clears it.
func TitlePatch(id int64, title string, mt MediaType) Patch {
	p := Patch{ID: id}
	if title == "" {
		p.Title = Some[*string](nil)
	} else {
		p.Title = Some(&title)
	}
	if mt.Known() {
		p.MediaType = Some(mt)
	}
	return p
}

// Empty reports whether the patch names no field besides the id.
func (p Patch) Empty() bool {
	return !p.Title.Set && !p.MediaType.Set && !p.URL.Set &&
		!p.StartTime.Set && !p.EndTime.Set && !p.UpdatedTime.Set &&
		!p.Status.Set && !p.StatusMessage.Set
}

// Fields lists the wire names of the fields the patch sets.
func (p Patch) Fields() []string {
	var fields []string
	for _, f := range []struct {
		name string
		set  bool
	}{
		{"title", p.Title.Set},
		{"mediaType", p.MediaType.Set},
		{"url", p.URL.Set},
		{"startTime", p.StartTime.Set},
		{"endTime", p.EndTime.Set},
		{"updatedTime", p.UpdatedTime.Set},
		{"status", p.Status.Set},
		{"statusMessage", p.StatusMessage.Set},
	} {
		if f.set {
			fields = append(fields, f.name)
		}
	}
	return fields
}

// Apply merges the set fields into e and reports whether anything changed.
// Unset fields are left untouched. Applying a patch for a different id is a no-op.
func (p Patch) Apply(e *Entry) bool {
	if e == nil || e.ID != p.ID {
		return false
	}

	changed := false
	if p.Title.Set && !equalPtr(e.Title, p.Title.Value) {
		e.Title = clonePtr(p.Title.Value)
		changed = true
	}
	if p.MediaType.Set && e.MediaType != p.MediaType.Value {
		e.MediaType = p.MediaType.Value
		changed = true
	}
	if p.URL.Set && p.URL.Value != "" && e.URL != p.URL.Value {
		e.URL = p.URL.Value
		changed = true
	}
	if p.StartTime.Set && !equalTime(e.StartTime, p.StartTime.Value) {
		e.StartTime = clonePtr(p.StartTime.Value)
		changed = true
	}
	if p.EndTime.Set && !equalTime(e.EndTime, p.EndTime.Value) {
		e.EndTime = clonePtr(p.EndTime.Value)
		changed = true
	}
	if p.UpdatedTime.Set && !equalTime(e.UpdatedTime, p.UpdatedTime.Value) {
		e.UpdatedTime = clonePtr(p.UpdatedTime.Value)
		changed = true
	}
	if p.Status.Set && !equalPtr(e.Status, p.Status.Value) {
		e.Status = clonePtr(p.Status.Value)
		changed = true
	}
	if p.StatusMessage.Set && !equalPtr(e.StatusMessage, p.StatusMessage.Value) {
		e.StatusMessage = clonePtr(p.StatusMessage.Value)
		changed = true
	}
	return changed
}

// MarshalJSON writes the id and every set field; explicitly cleared fields become null.
func (p Patch) MarshalJSON() ([]byte, error) {
	out := map[string]any{"id": p.ID}
	if p.Title.Set {
		out["title"] = p.Title.Value
	}
	if p.MediaType.Set {
		out["mediaType"] = p.MediaType.Value
	}
	if p.URL.Set {
		out["url"] = p.URL.Value
	}
	if p.StartTime.Set {
		out["startTime"] = formatTimePtr(p.StartTime.Value)
	}
	if p.EndTime.Set {
		out["endTime"] = formatTimePtr(p.EndTime.Value)
	}
	if p.UpdatedTime.Set {
		out["updatedTime"] = formatTimePtr(p.UpdatedTime.Value)
	}
	if p.Status.Set {
		out["status"] = p.Status.Value
	}
	if p.StatusMessage.Set {
		out["statusMessage"] = p.StatusMessage.Value
	}
	return json.Marshal(out)
}

// UnmarshalJSON marks a field as set only when its key is present in the payload.
func (p *Patch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	idRaw, ok := raw["id"]
	if !ok {
		return fmt.Errorf("patch is missing the id field")
	}

	var out Patch
	if err := json.Unmarshal(idRaw, &out.ID); err != nil {
		return fmt.Errorf("patch id: %w", err)
	}

	for key, value := range raw {
		var err error
		switch key {
		case "title":
			out.Title, err = decodeOptional[*string](value)
		case "mediaType":
			out.MediaType, err = decodeOptional[MediaType](value)
		case "url":
			out.URL, err = decodeOptional[string](value)
		case "startTime":
			out.StartTime, err = decodeOptionalTime(value)
		case "endTime":
			out.EndTime, err = decodeOptionalTime(value)
		case "updatedTime":
			out.UpdatedTime, err = decodeOptionalTime(value)
		case "status":
			out.Status, err = decodeOptional[*string](value)
		case "statusMessage":
			out.StatusMessage, err = decodeOptional[*string](value)
		}
		if err != nil {
			return fmt.Errorf("patch field %s: %w", key, err)
		}
	}

	*p = out
	return nil
}

func decodeOptional[T any](raw json.RawMessage) (Optional[T], error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return Optional[T]{}, err
	}
	return Some(v), nil
}

func decodeOptionalTime(raw json.RawMessage) (Optional[*time.Time], error) {
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return Optional[*time.Time]{}, err
	}
	t, err := parseTimePtr(s)
	if err != nil {
		return Optional[*time.Time]{}, err
	}
	return Some(t), nil
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
