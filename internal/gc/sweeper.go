// Package gc removes room and rate-limit documents nobody has written to in a while.
package gc

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"timepon/engine/internal/docstore"
)

const (
	DefaultOneIn = 50

	sweepTimeout = 30 * time.Second
)

// Result is what one sweep removed per namespace.
type Result struct {
	Rooms     int
	Counters  int
	Errors    int
	StartedAt time.Time
}

// Sweeper runs at most one sweep at a time. Sweeps are triggered by chance
// from request handling rather than on a schedule.
type Sweeper struct {
	store     docstore.Backend
	clock     clockwork.Clock
	oneIn     int
	retention docstore.Retention
	roll      func(n int) int

	running atomic.Bool
	wg      sync.WaitGroup
}

// New builds a sweeper. Room retention is held within seven to fourteen days.
func New(store docstore.Backend, clock clockwork.Clock, oneIn int, retention docstore.Retention) *Sweeper {
	if oneIn <= 0 {
		oneIn = DefaultOneIn
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sweeper{
		store:     store,
		clock:     clock,
		oneIn:     oneIn,
		retention: retention.Bounded(),
		roll:      rand.Intn,
	}
}

// MaybeSweep starts a background sweep with probability 1/oneIn. It reports
// whether a sweep was started and never blocks the caller.
func (s *Sweeper) MaybeSweep() bool {
	if s.roll(s.oneIn) != 0 {
		return false
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.Sweep(ctx)
	}()
	return true
}

// Sweep scans each namespace independently; a failure in one does not stop the other.
func (s *Sweeper) Sweep(ctx context.Context) Result {
	now := s.clock.Now()
	res := Result{StartedAt: now}
	for _, ns := range []docstore.Namespace{docstore.Rooms, docstore.RateLimit} {
		n, err := s.store.Sweep(ctx, ns, now.Add(-s.retention[ns]))
		if err != nil {
			res.Errors++
			sweepErrors.WithLabelValues(string(ns)).Inc()
			log.Warn().Err(err).Str("namespace", string(ns)).Msg("gc: sweep failed")
		}
		deleted.WithLabelValues(string(ns)).Add(float64(n))
		if ns == docstore.Rooms {
			res.Rooms = n
		} else {
			res.Counters = n
		}
	}
	sweeps.Inc()
	if res.Rooms+res.Counters > 0 {
		log.Info().Int("rooms", res.Rooms).Int("counters", res.Counters).Msg("gc: swept stale documents")
	}
	return res
}

// Wait blocks until an in-flight background sweep finishes.
func (s *Sweeper) Wait() { s.wg.Wait() }

// Retention reports the effective retention for ns.
func (s *Sweeper) Retention(ns docstore.Namespace) time.Duration { return s.retention[ns] }
