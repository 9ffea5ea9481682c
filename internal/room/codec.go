package room

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrCorrupt is returned alongside a default room when stored bytes could not be parsed.
var ErrCorrupt = errors.New("room document unreadable")

// legacySchema is assumed for documents written before the schema field existed.
const legacySchema = 1

type migration func(fields map[string]json.RawMessage)

// migrations[v] upgrades a document from schema v to v+1.
var migrations = map[int]migration{
	1: migrateWarnSeconds,
}

// migrateWarnSeconds converts the old single warning threshold, stored in
// seconds, into warn1Min when the newer field is absent.
func migrateWarnSeconds(fields map[string]json.RawMessage) {
	raw, ok := fields["warnSec"]
	if !ok {
		return
	}
	delete(fields, "warnSec")
	if isNull(raw) || !isNull(fields["warn1Min"]) {
		return
	}
	var sec float64
	if err := json.Unmarshal(raw, &sec); err != nil {
		return
	}
	minutes := int64(sec / 60)
	if minutes < 0 {
		minutes = 0
	}
	b, _ := json.Marshal(minutes)
	fields["warn1Min"] = b
}

// isNull treats an absent field and an explicit null alike.
func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(bytes.TrimSpace(raw)) == "null"
}

// Decode turns stored bytes into a room. It never fails outright: missing or
// unparsable input yields Default(id) with ErrCorrupt, and fields of the wrong
// type are skipped individually while the rest of the document is kept.
func Decode(id string, raw []byte) (Room, error) {
	r := Default(id)
	var fields map[string]json.RawMessage
	if len(raw) == 0 {
		return r, ErrCorrupt
	}
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return r, ErrCorrupt
	}

	schema := legacySchema
	if v, ok := fields["schema"]; ok {
		var s int
		if json.Unmarshal(v, &s) == nil && s > 0 {
			schema = s
		}
	}
	for v := schema; v < SchemaVersion; v++ {
		if m := migrations[v]; m != nil {
			m(fields)
		}
	}

	merged, err := json.Marshal(fields)
	if err != nil {
		return Default(id), ErrCorrupt
	}
	if err := json.Unmarshal(merged, &r); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return Default(id), ErrCorrupt
		}
	}

	r.ID = id
	r.Schema = SchemaVersion
	r.normalize()
	return r, nil
}

// Encode serializes a room for storage.
func Encode(r Room) ([]byte, error) {
	r.Schema = SchemaVersion
	return json.Marshal(r)
}

// normalize repairs values that a hand-edited or older document may carry.
func (r *Room) normalize() {
	switch r.State {
	case StateIdle, StateRunning, StatePaused:
	default:
		r.State = StateIdle
	}
	r.DurationSec = clampDurationSec(r.DurationSec)
	r.clampWarnings()
	if c, ok := NormalizeColor(r.Colors.Normal); ok {
		r.Colors.Normal = c
	} else {
		r.Colors.Normal = DefaultColorNormal
	}
	if c, ok := NormalizeColor(r.Colors.Warn1); ok {
		r.Colors.Warn1 = c
	} else {
		r.Colors.Warn1 = DefaultColorWarn1
	}
	if c, ok := NormalizeColor(r.Colors.Warn2); ok {
		r.Colors.Warn2 = c
	} else {
		r.Colors.Warn2 = DefaultColorWarn2
	}
	if l, ok := ParseLang(string(r.Lang)); ok {
		r.Lang = l
	} else {
		r.Lang = LangPrimary
	}
	if r.PausedAccumMs < 0 {
		r.PausedAccumMs = 0
	}
}
