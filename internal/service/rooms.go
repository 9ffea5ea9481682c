// Package service runs the load, authorize, transition, save cycle for room
// requests on top of a document store.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"timepon/engine/internal/auth"
	"timepon/engine/internal/docstore"
	"timepon/engine/internal/room"
)

var (
	ErrIDRequired     = errors.New("id required")
	ErrUnknownCommand = errors.New("unknown command")
	ErrStorage        = errors.New("storage unavailable")
)

const (
	idDigits    = 6
	maxIDTries  = 50
	maxIDLength = 64
)

// Options tunes a Rooms service. Zero values pick production defaults.
type Options struct {
	Locks  docstore.KeyLocker
	Clock  clockwork.Clock
	Policy auth.Policy
}

// Rooms is safe for concurrent use. No room state is cached between calls.
type Rooms struct {
	store  docstore.Backend
	locks  docstore.KeyLocker
	clock  clockwork.Clock
	policy auth.Policy

	newKey func() (string, error)
	newID  func() string
}

func New(store docstore.Backend, opts Options) *Rooms {
	s := &Rooms{
		store:  store,
		locks:  opts.Locks,
		clock:  opts.Clock,
		policy: opts.Policy,
		newKey: auth.GenerateKey,
		newID:  randomID,
	}
	if s.locks == nil {
		s.locks = docstore.NoLocker{}
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	return s
}

// NowMs is the server clock in epoch milliseconds.
func (s *Rooms) NowMs() int64 { return s.clock.Now().UnixMilli() }

// ResolveID normalizes a client supplied id.
func ResolveID(raw string) (string, error) {
	id := room.NormalizeID(raw)
	if id == "" || len(id) > maxIDLength {
		return "", ErrIDRequired
	}
	return id, nil
}

// Create allocates a fresh room with a new admin key. The key is returned
// here and never again.
func (s *Rooms) Create(ctx context.Context) (id, key string, err error) {
	key, err = s.newKey()
	if err != nil {
		return "", "", err
	}
	for i := 0; i < maxIDTries; i++ {
		candidate := s.newID()
		id, err = s.tryCreate(ctx, candidate, key)
		if err != nil || id != "" {
			return id, key, err
		}
	}
	// every draw collided; fall back to a clock-derived id
	fallback := strconv.FormatInt(s.clock.Now().Unix()%1_000_000+1_000_000, 10)[1:]
	log.Warn().Str("id", fallback).Msg("service: id space crowded, using clock-derived id")
	unlock := s.locks.Lock(lockKey(fallback))
	defer unlock()
	r := s.fresh(fallback, key)
	if err := s.save(ctx, &r); err != nil {
		return "", "", err
	}
	roomsCreated.Inc()
	return fallback, key, nil
}

func (s *Rooms) tryCreate(ctx context.Context, id, key string) (string, error) {
	unlock := s.locks.Lock(lockKey(id))
	defer unlock()
	taken, err := s.store.Exists(ctx, docstore.Rooms, id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if taken {
		return "", nil
	}
	r := s.fresh(id, key)
	if err := s.save(ctx, &r); err != nil {
		return "", err
	}
	roomsCreated.Inc()
	return id, nil
}

func (s *Rooms) fresh(id, key string) room.Room {
	r := room.Default(id)
	r.AdminKey = key
	return r
}

// Get reads a room. A missing or unreadable room reads as defaults.
func (s *Rooms) Get(ctx context.Context, rawID string) (View, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return View{}, err
	}
	r, exists, err := s.load(ctx, id)
	if err != nil {
		log.Warn().Err(err).Str("id", id).Msg("service: read failed, serving defaults")
		r, exists = room.Default(id), false
	}
	return NewView(r, exists, s.NowMs()), nil
}

// Heartbeat records stage liveness and returns the fresh state. Rooms that
// do not exist are not created by a heartbeat.
func (s *Rooms) Heartbeat(ctx context.Context, rawID string, fullscreen bool) (View, error) {
	r, exists, now, err := s.stageUpdate(ctx, rawID, func(r *room.Room, nowMs int64) {
		r.Heartbeat(nowMs, fullscreen)
	})
	if err != nil {
		return View{}, err
	}
	return NewView(r, exists, now), nil
}

// AckStart records that the stage saw the current run start.
func (s *Rooms) AckStart(ctx context.Context, rawID string) error {
	_, _, _, err := s.stageUpdate(ctx, rawID, (*room.Room).AckStart)
	return err
}

// AckMessage records that the stage displayed the current message.
func (s *Rooms) AckMessage(ctx context.Context, rawID string) error {
	_, _, _, err := s.stageUpdate(ctx, rawID, (*room.Room).AckMessage)
	return err
}

func (s *Rooms) stageUpdate(ctx context.Context, rawID string, apply func(*room.Room, int64)) (room.Room, bool, int64, error) {
	id, err := ResolveID(rawID)
	if err != nil {
		return room.Room{}, false, 0, err
	}
	var now int64
	r, exists, err := s.mutate(ctx, id, func(r *room.Room, exists bool, nowMs int64) (bool, error) {
		now = nowMs
		if !exists {
			return false, nil
		}
		apply(r, nowMs)
		return true, nil
	})
	return r, exists, now, err
}

// CommandArgs carries the optional parameters of a set command.
type CommandArgs struct {
	DurationSec *int64
	Text        string
	On          bool
}

// Command authorizes key against the room and applies cmd. A successful claim
// persists even when the command itself changes nothing.
func (s *Rooms) Command(ctx context.Context, rawID, key, cmdName string, args CommandArgs) error {
	id, err := ResolveID(rawID)
	if err != nil {
		return err
	}
	cmd, ok := room.ParseCommand(cmdName)
	if !ok {
		return ErrUnknownCommand
	}
	_, _, err = s.mutate(ctx, id, func(r *room.Room, _ bool, nowMs int64) (bool, error) {
		if err := s.authorize(r, key); err != nil {
			return false, err
		}
		switch cmd {
		case room.CmdStart:
			r.Start(nowMs, args.DurationSec)
		case room.CmdPause:
			r.Pause(nowMs)
		case room.CmdReset:
			r.Reset()
		case room.CmdMessage:
			r.SetMessage(args.Text, nowMs)
		case room.CmdPromptOnly:
			r.SetPromptOnly(args.On)
		case room.CmdFlash:
			r.SetFlash(args.On)
		}
		return true, nil
	})
	if err == nil {
		commands.WithLabelValues(string(cmd)).Inc()
	}
	return err
}

// UpdateSettings authorizes key and applies each present setting.
func (s *Rooms) UpdateSettings(ctx context.Context, rawID, key string, settings room.Settings) error {
	id, err := ResolveID(rawID)
	if err != nil {
		return err
	}
	_, _, err = s.mutate(ctx, id, func(r *room.Room, _ bool, _ int64) (bool, error) {
		if err := s.authorize(r, key); err != nil {
			return false, err
		}
		r.ApplySettings(settings)
		return true, nil
	})
	return err
}

func (s *Rooms) authorize(r *room.Room, key string) error {
	claimed, err := s.policy.Authorize(r, key)
	if err != nil {
		authFailures.Inc()
		return err
	}
	if claimed {
		log.Info().Str("id", r.ID).Msg("service: room claimed")
	}
	return nil
}

// mutate holds the per-key lock across load, fn and save. fn reports whether
// the room should be written back.
func (s *Rooms) mutate(ctx context.Context, id string, fn func(r *room.Room, exists bool, nowMs int64) (bool, error)) (room.Room, bool, error) {
	unlock := s.locks.Lock(lockKey(id))
	defer unlock()

	r, exists, err := s.load(ctx, id)
	if err != nil {
		return room.Room{}, false, err
	}
	persist, err := fn(&r, exists, s.NowMs())
	if err != nil || !persist {
		return r, exists, err
	}
	if err := s.save(ctx, &r); err != nil {
		return room.Room{}, exists, err
	}
	return r, true, nil
}

func (s *Rooms) load(ctx context.Context, id string) (room.Room, bool, error) {
	raw, err := s.store.Get(ctx, docstore.Rooms, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return room.Default(id), false, nil
	}
	if err != nil {
		return room.Room{}, false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	r, err := room.Decode(id, raw)
	if err != nil {
		corruptDocs.Inc()
		log.Warn().Err(err).Str("id", id).Msg("service: unreadable room document, using defaults")
	}
	return r, true, nil
}

func (s *Rooms) save(ctx context.Context, r *room.Room) error {
	r.Version++
	r.UpdatedAt = s.clock.Now().Unix()
	raw, err := room.Encode(*r)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := s.store.Put(ctx, docstore.Rooms, r.ID, raw); err != nil {
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}

func lockKey(id string) string { return "room:" + id }

var idSpace = big.NewInt(1_000_000)

func randomID() string {
	n, err := rand.Int(rand.Reader, idSpace)
	if err != nil {
		return "000000"
	}
	return fmt.Sprintf("%0*d", idDigits, n.Int64())
}
