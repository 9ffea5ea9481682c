package service

import "timepon/engine/internal/room"

// View is what a reader receives: the redacted room, the server clock the
// client should compute drift against, and the values derived at that instant.
type View struct {
	State       room.Room          `json:"state"`
	Exists      bool               `json:"exists"`
	ServerNowMs int64              `json:"serverNowMs"`
	Remaining   int64              `json:"remaining"`
	Tier        room.Tier          `json:"tier"`
	StageOnline bool               `json:"stageOnline"`
	MsgStatus   room.MessageStatus `json:"msgStatus"`
}

func NewView(r room.Room, exists bool, serverNowMs int64) View {
	return View{
		State:       r.Redact(),
		Exists:      exists,
		ServerNowMs: serverNowMs,
		Remaining:   r.Remaining(serverNowMs),
		Tier:        r.Tier(serverNowMs),
		StageOnline: r.StageOnline(serverNowMs),
		MsgStatus:   r.MessageState(serverNowMs),
	}
}
