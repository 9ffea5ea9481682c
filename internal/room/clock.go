package room

// Tier is the display tier derived from remaining time and the warnings.
type Tier string

const (
	TierNormal   Tier = "normal"
	TierWarn1    Tier = "warn1"
	TierWarn2    Tier = "warn2"
	TierTerminal Tier = "terminal"
)

// StageOnlineWindowMs is how recent a heartbeat must be for the stage to count as online.
const StageOnlineWindowMs = 6000

// MessageStatus describes whether the stage has shown the current prompt.
type MessageStatus string

const (
	MsgNone    MessageStatus = "none"
	MsgPending MessageStatus = "pending"
	MsgShown   MessageStatus = "shown"
	MsgOffline MessageStatus = "offline"
)

// ceilDiv divides by a positive divisor rounding toward +Inf, so negative
// (overtime) values keep the same rounding as positive ones.
func ceilDiv(n, d int64) int64 {
	q := n / d
	if n%d != 0 && n > 0 {
		q++
	}
	return q
}

// Remaining returns whole seconds left at server time nowMs. The value goes
// negative once the duration has elapsed and is never clamped here.
func (r Room) Remaining(nowMs int64) int64 {
	total := r.DurationSec * 1000
	switch r.State {
	case StateRunning:
		return ceilDiv(total-(nowMs-r.StartedAtMs-r.PausedAccumMs), 1000)
	case StatePaused:
		if r.StartedAtMs == 0 {
			return r.DurationSec
		}
		used := r.PausedAccumMs
		if r.PausedAtMs > 0 {
			used += nowMs - r.PausedAtMs
		}
		return ceilDiv(total-(nowMs-r.StartedAtMs-used), 1000)
	default:
		return r.DurationSec
	}
}

// TierFor maps remaining seconds onto a display tier.
func TierFor(remaining, warn1Min, warn2Min int64) Tier {
	switch {
	case remaining <= 0:
		return TierTerminal
	case remaining <= warn2Min*60:
		return TierWarn2
	case remaining <= warn1Min*60:
		return TierWarn1
	default:
		return TierNormal
	}
}

// Tier is TierFor applied to this room at nowMs.
func (r Room) Tier(nowMs int64) Tier {
	return TierFor(r.Remaining(nowMs), r.Warn1Min, r.Warn2Min)
}

// StageOnline reports whether a heartbeat arrived within the liveness window,
// measured against server time.
func (r Room) StageOnline(serverNowMs int64) bool {
	if r.Stage.LastSeen <= 0 {
		return false
	}
	return serverNowMs-r.Stage.LastSeen*1000 < StageOnlineWindowMs
}

// MessageState classifies the current prompt from the operator's point of view.
func (r Room) MessageState(serverNowMs int64) MessageStatus {
	if !r.StageOnline(serverNowMs) {
		return MsgOffline
	}
	if r.MessageAtMs == 0 {
		return MsgNone
	}
	if r.Stage.MsgAckMs >= r.MessageAtMs {
		return MsgShown
	}
	return MsgPending
}
