package syncclient

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"timepon/engine/internal/room"
	"timepon/engine/internal/service"
)

// DefaultInterval matches the one-second pull of the browser clients.
const DefaultInterval = time.Second

// FetchFunc retrieves the current view of one room.
type FetchFunc func(ctx context.Context) (service.View, error)

// Observer is told about every successful poll, after the cell is updated.
type Observer func(ctx context.Context, prev, cur room.Room, first bool)

// Poller is the network task: it fetches on a fixed interval and writes the
// result into a Cell. A failed fetch leaves the previous state in place.
type Poller struct {
	cell     *Cell
	fetch    FetchFunc
	clock    clockwork.Clock
	interval time.Duration

	observers []Observer
	polled    bool
}

func NewPoller(cell *Cell, fetch FetchFunc, clock clockwork.Clock, interval time.Duration) *Poller {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{cell: cell, fetch: fetch, clock: clock, interval: interval}
}

// Observe registers fn. Not safe to call once Run has started.
func (p *Poller) Observe(fn Observer) { p.observers = append(p.observers, fn) }

// Poll performs one fetch.
func (p *Poller) Poll(ctx context.Context) error {
	v, err := p.fetch(ctx)
	if err != nil {
		return err
	}
	prev, _ := p.cell.Snapshot()
	p.cell.Update(v)
	first := !p.polled
	p.polled = true
	for _, fn := range p.observers {
		fn(ctx, prev, v.State, first)
	}
	return nil
}

// Run polls immediately and then every interval until ctx ends.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			log.Debug().Err(err).Msg("syncclient: poll failed, keeping previous state")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
		}
	}
}
