package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MediaType enumerates the kinds of media the server downloads.
//
// [MediaUnknown] is the zero value and the fallback for missing or unrecognized
// wire values. The server never assigns it.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaGallery
	MediaImage
	MediaVideo
	MediaAudio
	MediaText
)

// MediaTypes lists every assignable media type in display order.
var MediaTypes = []MediaType{MediaGallery, MediaImage, MediaVideo, MediaAudio, MediaText}

func (m MediaType) String() string {
	switch m {
	case MediaGallery:
		return "gallery"
	case MediaImage:
		return "image"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaText:
		return "text"
	default:
		return "unknown"
	}
}

// Label is the capitalized form used in tables.
func (m MediaType) Label() string {
	s := m.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// Known reports whether m is a backend-assignable value.
func (m MediaType) Known() bool {
	return m >= MediaGallery && m <= MediaText
}

// ParseMediaType resolves a wire name (case-insensitive) into a [MediaType].
func ParseMediaType(s string) (MediaType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for _, m := range MediaTypes {
		if m.String() == name {
			return m, nil
		}
	}
	return MediaUnknown, fmt.Errorf("unrecognized media type %q", s)
}

// mediaTypeFromCode maps the integer codes of the older protocol (GALLERY=0 .. TEXT=4).
func mediaTypeFromCode(code int) MediaType {
	if code < 0 || code >= len(MediaTypes) {
		return MediaUnknown
	}
	return MediaTypes[code]
}

// MarshalJSON writes known values as lowercase names and Unknown as null.
func (m MediaType) MarshalJSON() ([]byte, error) {
	if !m.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts a name, an integer code or null. Unrecognized values decode to [MediaUnknown].
func (m *MediaType) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = MediaUnknown
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseMediaType(s)
		if err != nil {
			*m = MediaUnknown
			return nil
		}
		*m = parsed
		return nil
	}

	code, err := strconv.Atoi(string(data))
	if err != nil {
		*m = MediaUnknown
		return nil
	}
	*m = mediaTypeFromCode(code)
	return nil
}
