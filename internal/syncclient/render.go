package syncclient

import (
	"fmt"

	"timepon/engine/internal/room"
)

// FormatRemaining renders seconds as MM:SS, prefixed with "-" in overtime.
// Minutes are not wrapped into hours.
func FormatRemaining(sec int64) string {
	sign := ""
	if sec < 0 {
		sign = "-"
		sec = -sec
	}
	return fmt.Sprintf("%s%02d:%02d", sign, sec/60, sec%60)
}

// Frame is everything a display needs for one repaint, read from the cell
// at a single instant.
type Frame struct {
	Remaining   int64
	Clock       string
	Tier        room.Tier
	Color       string
	Message     string
	PromptOnly  bool
	Flash       bool
	StageOnline bool
	MsgStatus   room.MessageStatus
	State       room.State
}

// Render takes one consistent frame from the cell. Terminal tier has no
// configurable color and reports an empty Color.
func (c *Cell) Render() Frame {
	st, _ := c.Snapshot()
	now := c.ServerNowMs()
	rem := st.Remaining(now)
	tier := room.TierFor(rem, st.Warn1Min, st.Warn2Min)

	color := ""
	switch tier {
	case room.TierNormal:
		color = st.Colors.Normal
	case room.TierWarn1:
		color = st.Colors.Warn1
	case room.TierWarn2:
		color = st.Colors.Warn2
	}
	return Frame{
		Remaining:   rem,
		Clock:       FormatRemaining(rem),
		Tier:        tier,
		Color:       color,
		Message:     st.Message,
		PromptOnly:  st.PromptOnly,
		Flash:       st.Flash,
		StageOnline: st.StageOnline(now),
		MsgStatus:   st.MessageState(now),
		State:       st.State,
	}
}
