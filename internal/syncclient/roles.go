package syncclient

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"timepon/engine/internal/room"
)

// Acker is the part of Client a stage display needs.
type Acker interface {
	AckStart(ctx context.Context, id string) error
	AckMessage(ctx context.Context, id string) error
}

// StageAcks acknowledges a run start once per transition into running and a
// message once per distinct messageAtMs.
type StageAcks struct {
	acker Acker
	id    string

	mu         sync.Mutex
	wasRunning bool
	ackedMsgAt int64
}

func NewStageAcks(acker Acker, id string) *StageAcks {
	return &StageAcks{acker: acker, id: id}
}

// Observe is a Poller observer.
func (s *StageAcks) Observe(ctx context.Context, _, cur room.Room, _ bool) {
	s.mu.Lock()
	running := cur.State == room.StateRunning
	sendStart := running && !s.wasRunning
	s.wasRunning = running

	sendMsg := cur.MessageAtMs > 0 && cur.MessageAtMs != s.ackedMsgAt && cur.Stage.MsgAckMs < cur.MessageAtMs
	if sendMsg {
		s.ackedMsgAt = cur.MessageAtMs
	}
	s.mu.Unlock()

	if sendStart {
		if err := s.acker.AckStart(ctx, s.id); err != nil {
			log.Debug().Err(err).Str("id", s.id).Msg("syncclient: ackStart failed")
		}
	}
	if sendMsg {
		if err := s.acker.AckMessage(ctx, s.id); err != nil {
			log.Debug().Err(err).Str("id", s.id).Msg("syncclient: ackMsg failed")
		}
	}
}

// Commander is the part of Client an operator console needs.
type Commander interface {
	Command(ctx context.Context, id, key, cmd string, extra url.Values) error
}

// PromptClearAfter is how long an automatic prompt stays on stage before
// the operator console clears it.
const PromptClearAfter = 30 * time.Second

// PromptText is the automatic "n minutes left" message in the room's language.
func PromptText(lang room.Lang, minutes int64) string {
	if lang == room.LangSecondary {
		if minutes == 1 {
			return "1 minute remaining"
		}
		return fmt.Sprintf("%d minutes remaining", minutes)
	}
	return fmt.Sprintf("あと%d分です", minutes)
}

// AutoPrompt pushes a stage message when remaining time crosses a warning
// threshold, if the room has auto-prompting switched on, and clears it again
// PromptClearAfter later. Each threshold fires at most once per run; a reset
// to idle re-arms both.
type AutoPrompt struct {
	cmd  Commander
	id   string
	key  string
	cell *Cell

	mu         sync.Mutex
	lastRemain int64
	seen       bool
	sent       [2]bool
}

func NewAutoPrompt(cmd Commander, cell *Cell, id, key string) *AutoPrompt {
	return &AutoPrompt{cmd: cmd, id: id, key: key, cell: cell}
}

// Observe is a Poller observer. The first observation only records the
// remaining time so joining mid-run does not replay a prompt.
func (a *AutoPrompt) Observe(ctx context.Context, _, cur room.Room, first bool) {
	remain := cur.Remaining(a.cell.ServerNowMs())

	a.mu.Lock()
	var fire []int64
	if a.seen && !first && cur.AutoPrompt {
		for i, mins := range []int64{cur.Warn1Min, cur.Warn2Min} {
			w := mins * 60
			if !a.sent[i] && w > 0 && a.lastRemain > w && remain <= w {
				a.sent[i] = true
				fire = append(fire, mins)
			}
		}
	}
	a.lastRemain = remain
	a.seen = true
	if cur.State == room.StateIdle {
		a.sent = [2]bool{}
		a.seen = false
	}
	a.mu.Unlock()

	for _, mins := range fire {
		a.prompt(ctx, PromptText(cur.Lang, mins))
	}
}

func (a *AutoPrompt) prompt(ctx context.Context, text string) {
	if err := a.send(ctx, text); err != nil {
		log.Warn().Err(err).Str("id", a.id).Msg("syncclient: auto prompt failed")
		return
	}
	a.cell.clock.AfterFunc(PromptClearAfter, func() {
		if ctx.Err() != nil {
			return
		}
		if err := a.send(ctx, ""); err != nil {
			log.Warn().Err(err).Str("id", a.id).Msg("syncclient: clearing auto prompt failed")
		}
	})
}

func (a *AutoPrompt) send(ctx context.Context, text string) error {
	return a.cmd.Command(ctx, a.id, a.key, string(room.CmdMessage), url.Values{"text": {text}})
}
