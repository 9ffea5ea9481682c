package syncclient

import (
	"sync"

	"github.com/jonboulle/clockwork"

	"timepon/engine/internal/room"
	"timepon/engine/internal/service"
)

// Cell holds the last room state seen and the estimated offset between the
// server clock and the local one. The network task writes it, render tasks
// read it; neither blocks the other for longer than a copy.
type Cell struct {
	clock clockwork.Clock

	mu      sync.RWMutex
	state   room.Room
	exists  bool
	driftMs int64
	have    bool
}

func NewCell(clock clockwork.Clock) *Cell {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cell{clock: clock}
}

// Update stores v and re-estimates drift as serverNowMs minus local now.
// Responses without a server time keep the previous drift.
func (c *Cell) Update(v service.View) {
	local := c.clock.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = v.State
	c.exists = v.Exists
	if v.ServerNowMs > 0 {
		c.driftMs = v.ServerNowMs - local
	}
	c.have = true
}

// Snapshot returns the last state and whether any state has arrived yet.
func (c *Cell) Snapshot() (room.Room, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state, c.have
}

func (c *Cell) Exists() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.exists
}

func (c *Cell) DriftMs() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.driftMs
}

// ServerNowMs is the local clock corrected by the current drift estimate.
func (c *Cell) ServerNowMs() int64 {
	return c.clock.Now().UnixMilli() + c.DriftMs()
}

// Remaining is whole seconds left as of now on the server clock.
func (c *Cell) Remaining() int64 {
	st, _ := c.Snapshot()
	return st.Remaining(c.ServerNowMs())
}

func (c *Cell) Tier() room.Tier {
	st, _ := c.Snapshot()
	return st.Tier(c.ServerNowMs())
}

func (c *Cell) StageOnline() bool {
	st, _ := c.Snapshot()
	return st.StageOnline(c.ServerNowMs())
}

func (c *Cell) MessageStatus() room.MessageStatus {
	st, _ := c.Snapshot()
	return st.MessageState(c.ServerNowMs())
}
