package model

import (
	"time"

	json "github.com/alpkeskin/gotoon"
)

// Metadata is the opaque key -> scalar-or-nested-value mapping attached to a
// Memory. Unknown fields must round-trip through Encode/DecodeMetadata
// unchanged, the same guarantee the teacher's model.NormalizeMetadata gives
// its agent-memory metadata.
type Metadata map[string]any

// CloneMetadata returns a shallow copy so callers can mutate without
// aliasing the caller's map.
func CloneMetadata(meta Metadata) Metadata {
	if meta == nil {
		return Metadata{}
	}
	cp := make(Metadata, len(meta))
	for k, v := range meta {
		cp[k] = v
	}
	return cp
}

// EncodeMetadata serializes metadata to its storage form.
func EncodeMetadata(meta Metadata) string {
	if len(meta) == 0 {
		return "{}"
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// DecodeMetadata parses the storage form back into a map, tolerating empty
// or malformed input by returning an empty map.
func DecodeMetadata(raw string) Metadata {
	if raw == "" {
		return Metadata{}
	}
	var meta Metadata
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		return Metadata{}
	}
	return meta
}

// StringFromAny coerces an arbitrary metadata value into a stable string
// representation, used for token/tag matching.
func StringFromAny(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// TimeFromAny coerces a metadata value into a time.Time, returning the zero
// value when it cannot be parsed.
func TimeFromAny(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t
	case string:
		if ts, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return ts
		}
	}
	return time.Time{}
}
