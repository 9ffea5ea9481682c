package room

// Command is a run-state or display command accepted by the set action.
type Command string

const (
	CmdStart      Command = "start"
	CmdPause      Command = "pause"
	CmdReset      Command = "reset"
	CmdMessage    Command = "message"
	CmdPromptOnly Command = "promptOnly"
	CmdFlash      Command = "flash"
)

// ParseCommand reports whether s names a known command.
func ParseCommand(s string) (Command, bool) {
	switch c := Command(s); c {
	case CmdStart, CmdPause, CmdReset, CmdMessage, CmdPromptOnly, CmdFlash:
		return c, true
	}
	return "", false
}

// Start begins or resumes the countdown. From idle an optional duration is
// applied first; from paused the pause interval is folded into PausedAccumMs.
// Starting a running timer changes nothing and reports false.
func (r *Room) Start(nowMs int64, durationSec *int64) bool {
	switch r.State {
	case StateIdle:
		if durationSec != nil {
			r.DurationSec = clampDurationSec(*durationSec)
			r.clampWarnings()
		}
		r.StartedAtMs = nowMs
		r.PausedAccumMs = 0
		r.PausedAtMs = 0
	case StatePaused:
		if r.PausedAtMs > 0 && nowMs > r.PausedAtMs {
			r.PausedAccumMs += nowMs - r.PausedAtMs
		}
		r.PausedAtMs = 0
	default:
		return false
	}
	r.State = StateRunning
	r.Stage.StartedAckMs = 0
	return true
}

// Pause freezes a running countdown. Any other state is left alone.
func (r *Room) Pause(nowMs int64) bool {
	if r.State != StateRunning {
		return false
	}
	r.PausedAtMs = nowMs
	r.State = StatePaused
	return true
}

// Reset returns to idle and clears run bookkeeping. Settings are kept.
func (r *Room) Reset() {
	r.State = StateIdle
	r.StartedAtMs = 0
	r.PausedAccumMs = 0
	r.PausedAtMs = 0
	r.Stage.StartedAckMs = 0
}

// SetMessage replaces the stage prompt and stamps the mutation time.
func (r *Room) SetMessage(text string, nowMs int64) {
	r.Message = SanitizeMessage(text)
	r.MessageAtMs = nowMs
}

func (r *Room) SetPromptOnly(on bool) { r.PromptOnly = on }

func (r *Room) SetFlash(on bool) { r.Flash = on }

// Settings carries an optional update for each configurable field.
// Nil fields keep their prior value.
type Settings struct {
	DurationMin *int64
	DurationSec *int64
	Warn1Min    *int64
	Warn2Min    *int64
	ColorNormal *string
	ColorWarn1  *string
	ColorWarn2  *string
	Lang        *string
	AutoPrompt  *bool
}

// ApplySettings validates each present field independently. Invalid colors
// and languages are ignored; numeric fields are clamped.
func (r *Room) ApplySettings(s Settings) {
	switch {
	case s.DurationMin != nil:
		r.DurationSec = clampDurationMin(*s.DurationMin) * 60
	case s.DurationSec != nil:
		r.DurationSec = clampDurationSec(*s.DurationSec)
	}
	if s.Warn1Min != nil {
		r.Warn1Min = *s.Warn1Min
	}
	if s.Warn2Min != nil {
		r.Warn2Min = *s.Warn2Min
	}
	r.clampWarnings()

	if s.ColorNormal != nil {
		if c, ok := NormalizeColor(*s.ColorNormal); ok {
			r.Colors.Normal = c
		}
	}
	if s.ColorWarn1 != nil {
		if c, ok := NormalizeColor(*s.ColorWarn1); ok {
			r.Colors.Warn1 = c
		}
	}
	if s.ColorWarn2 != nil {
		if c, ok := NormalizeColor(*s.ColorWarn2); ok {
			r.Colors.Warn2 = c
		}
	}
	if s.Lang != nil {
		if l, ok := ParseLang(*s.Lang); ok {
			r.Lang = l
		}
	}
	if s.AutoPrompt != nil {
		r.AutoPrompt = *s.AutoPrompt
	}
}

// Heartbeat records stage liveness. LastSeen keeps whole-second precision.
func (r *Room) Heartbeat(nowMs int64, fullscreen bool) {
	r.Stage.LastSeen = nowMs / 1000
	r.Stage.Fullscreen = fullscreen
}

// AckStart records that the stage has observed the current run start.
func (r *Room) AckStart(nowMs int64) { r.Stage.StartedAckMs = nowMs }

// AckMessage records that the stage has displayed the current message.
func (r *Room) AckMessage(nowMs int64) { r.Stage.MsgAckMs = nowMs }
