package room

import (
	"regexp"
	"strings"
)

// State is the run state of a room's countdown.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StatePaused  State = "paused"
)

// Lang is the per-room UI language hint.
type Lang string

const (
	LangPrimary   Lang = "ja"
	LangSecondary Lang = "en"
)

const (
	DefaultDurationSec = 40 * 60
	DefaultWarn1Min    = 10
	DefaultWarn2Min    = 5

	MinDurationSec = 5
	MaxDurationSec = 86400
	MinDurationMin = 1
	MaxDurationMin = 720

	MaxMessageRunes = 500

	DefaultColorNormal = "#0ea5e9"
	DefaultColorWarn1  = "#22c55e"
	DefaultColorWarn2  = "#ff8c00"

	// SchemaVersion is written on every save; older documents are migrated on decode.
	SchemaVersion = 2
)

// Colors holds the display color for each non-terminal tier.
type Colors struct {
	Normal string `json:"normal"`
	Warn1  string `json:"warn1"`
	Warn2  string `json:"warn2"`
}

// Stage is what the stage display last reported about itself.
type Stage struct {
	LastSeen     int64 `json:"lastSeen"` // epoch seconds
	Fullscreen   bool  `json:"fullscreen"`
	StartedAckMs int64 `json:"startedAckMs"`
	MsgAckMs     int64 `json:"msgAckMs"`
}

// Room is the persisted document for one timer room.
type Room struct {
	ID            string `json:"id"`
	Schema        int    `json:"schema"`
	Version       int64  `json:"version"`
	State         State  `json:"state"`
	DurationSec   int64  `json:"durationSec"`
	Warn1Min      int64  `json:"warn1Min"`
	Warn2Min      int64  `json:"warn2Min"`
	StartedAtMs   int64  `json:"startedAtMs"`
	PausedAccumMs int64  `json:"pausedAccumMs"`
	PausedAtMs    int64  `json:"pausedAtMs"`
	Message       string `json:"message"`
	MessageAtMs   int64  `json:"messageAtMs"`
	AutoPrompt    bool   `json:"autoPrompt"`
	PromptOnly    bool   `json:"promptOnly"`
	Flash         bool   `json:"flash"`
	Colors        Colors `json:"colors"`
	Lang          Lang   `json:"lang"`
	Stage         Stage  `json:"stage"`
	AdminKey      string `json:"adminKey,omitempty"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// Default returns a fresh idle room with factory settings.
func Default(id string) Room {
	return Room{
		ID:          id,
		Schema:      SchemaVersion,
		State:       StateIdle,
		DurationSec: DefaultDurationSec,
		Warn1Min:    DefaultWarn1Min,
		Warn2Min:    DefaultWarn2Min,
		Colors: Colors{
			Normal: DefaultColorNormal,
			Warn1:  DefaultColorWarn1,
			Warn2:  DefaultColorWarn2,
		},
		Lang: LangPrimary,
	}
}

// Redact returns a copy safe to hand to any reader.
func (r Room) Redact() Room {
	r.AdminKey = ""
	return r
}

// HasAdminKey reports whether the room has been claimed.
func (r Room) HasAdminKey() bool { return r.AdminKey != "" }

var nonDigit = regexp.MustCompile(`\D`)

// NormalizeID strips every non-digit from a supplied room id.
// An empty result means the id is unusable.
func NormalizeID(raw string) string {
	return nonDigit.ReplaceAllString(strings.TrimSpace(raw), "")
}
