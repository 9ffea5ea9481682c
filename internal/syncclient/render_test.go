package syncclient

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"

	"timepon/engine/internal/room"
	"timepon/engine/internal/service"
)

func TestFormatRemaining(t *testing.T) {
	assert.Equal(t, "40:00", FormatRemaining(2400))
	assert.Equal(t, "00:05", FormatRemaining(5))
	assert.Equal(t, "00:00", FormatRemaining(0))
	assert.Equal(t, "-01:01", FormatRemaining(-61))
	assert.Equal(t, "120:00", FormatRemaining(7200))
}

func TestRenderFrame(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.UnixMilli(serverStart))
	cell := NewCell(clock)
	st := runningRoom(600, serverStart)
	st.Message = "wrap up"
	cell.Update(service.View{State: st, ServerNowMs: serverStart})

	f := cell.Render()
	assert.Equal(t, "10:00", f.Clock)
	assert.Equal(t, room.TierWarn1, f.Tier)
	assert.Equal(t, room.DefaultColorWarn1, f.Color)
	assert.Equal(t, "wrap up", f.Message)

	clock.Advance(10*time.Minute + time.Second)
	f = cell.Render()
	assert.Equal(t, "-00:01", f.Clock)
	assert.Equal(t, room.TierTerminal, f.Tier)
	assert.Empty(t, f.Color)
}
