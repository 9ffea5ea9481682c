package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timepon/engine/internal/auth"
	"timepon/engine/internal/docstore"
	"timepon/engine/internal/room"
)

type fixture struct {
	rooms *Rooms
	store *docstore.FS
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, policy auth.Policy) fixture {
	t.Helper()
	fs, err := docstore.NewFS(t.TempDir(), time.Second)
	require.NoError(t, err)
	clock := clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0))
	rooms := New(fs, Options{Locks: docstore.NewLocker(), Clock: clock, Policy: policy})
	return fixture{rooms: rooms, store: fs, clock: clock}
}

func (f fixture) stored(t *testing.T, id string) room.Room {
	t.Helper()
	raw, err := f.store.Get(context.Background(), docstore.Rooms, id)
	require.NoError(t, err)
	r, err := room.Decode(id, raw)
	require.NoError(t, err)
	return r
}

func i64(v int64) *int64 { return &v }

func TestCreateStartAndRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})

	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, id)
	assert.Regexp(t, `^[0-9a-f]{32}$`, key)

	require.NoError(t, f.rooms.Command(ctx, id, key, "start", CommandArgs{DurationSec: i64(300)}))
	f.clock.Advance(time.Second)

	v, err := f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, v.Exists)
	assert.Equal(t, room.StateRunning, v.State.State)
	assert.EqualValues(t, 299, v.Remaining)
	assert.Equal(t, room.TierWarn2, v.Tier, "warnings clamp to five minutes")
	assert.Equal(t, f.clock.Now().UnixMilli(), v.ServerNowMs)
	assert.Empty(t, v.State.AdminKey)
}

func TestGetMissingRoomIsTransient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})

	v, err := f.rooms.Get(ctx, "abc-424242")
	require.NoError(t, err)
	assert.False(t, v.Exists)
	assert.Equal(t, "424242", v.State.ID)
	assert.Equal(t, room.StateIdle, v.State.State)
	assert.EqualValues(t, room.DefaultDurationSec, v.Remaining)

	for _, fn := range []func() error{
		func() error { _, err := f.rooms.Heartbeat(ctx, "424242", true); return err },
		func() error { return f.rooms.AckStart(ctx, "424242") },
		func() error { return f.rooms.AckMessage(ctx, "424242") },
	} {
		require.NoError(t, fn())
	}
	ok, err := f.store.Exists(ctx, docstore.Rooms, "424242")
	require.NoError(t, err)
	assert.False(t, ok, "stage traffic must not create rooms")
}

func TestIDRequired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})

	_, err := f.rooms.Get(ctx, "no digits")
	assert.ErrorIs(t, err, ErrIDRequired)
	_, err = f.rooms.Heartbeat(ctx, "", false)
	assert.ErrorIs(t, err, ErrIDRequired)
	assert.ErrorIs(t, f.rooms.Command(ctx, "", "k", "start", CommandArgs{}), ErrIDRequired)
	assert.ErrorIs(t, f.rooms.UpdateSettings(ctx, "x", "k", room.Settings{}), ErrIDRequired)
}

func TestWrongKeyIsForbidden(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{AllowClaim: true})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	other, err := auth.GenerateKey()
	require.NoError(t, err)
	assert.ErrorIs(t, f.rooms.Command(ctx, id, other, "start", CommandArgs{}), auth.ErrForbidden)
	assert.ErrorIs(t, f.rooms.Command(ctx, id, "", "start", CommandArgs{}), auth.ErrForbidden)

	r := f.stored(t, id)
	assert.Equal(t, key, r.AdminKey)
	assert.Equal(t, room.StateIdle, r.State)
	assert.EqualValues(t, 1, r.Version)
}

func TestClaimDisabledLeavesUnkeyedRoomReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	require.NoError(t, f.store.Put(ctx, docstore.Rooms, "555555", []byte(`{"id":"555555","state":"idle"}`)))

	key, err := auth.GenerateKey()
	require.NoError(t, err)
	assert.ErrorIs(t, f.rooms.Command(ctx, "555555", key, "start", CommandArgs{}), auth.ErrForbidden)
	assert.False(t, f.stored(t, "555555").HasAdminKey())
}

func TestClaimEnabledFirstKeyWins(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{AllowClaim: true})
	require.NoError(t, f.store.Put(ctx, docstore.Rooms, "555555", []byte(`{"id":"555555","state":"running","startedAtMs":1}`)))

	first, _ := auth.GenerateKey()
	second, _ := auth.GenerateKey()

	// start on a running room changes nothing, the claim still sticks
	require.NoError(t, f.rooms.Command(ctx, "555555", first, "start", CommandArgs{}))
	assert.Equal(t, first, f.stored(t, "555555").AdminKey)

	assert.ErrorIs(t, f.rooms.Command(ctx, "555555", second, "pause", CommandArgs{}), auth.ErrForbidden)
	assert.ErrorIs(t, f.rooms.Command(ctx, "666666", "not-hex", "pause", CommandArgs{}), auth.ErrForbidden)
}

func TestUnknownCommandRejectedBeforeLoad(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	assert.ErrorIs(t, f.rooms.Command(ctx, id, key, "explode", CommandArgs{}), ErrUnknownCommand)
	assert.EqualValues(t, 1, f.stored(t, id).Version)
}

func TestCommandsAndSettings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.rooms.UpdateSettings(ctx, id, key, room.Settings{
		DurationMin: i64(20),
		Warn1Min:    i64(8),
		Warn2Min:    i64(99),
	}))
	r := f.stored(t, id)
	assert.EqualValues(t, 1200, r.DurationSec)
	assert.EqualValues(t, 8, r.Warn1Min)
	assert.EqualValues(t, 20, r.Warn2Min)

	require.NoError(t, f.rooms.Command(ctx, id, key, "message", CommandArgs{Text: "wrap up\x07"}))
	require.NoError(t, f.rooms.Command(ctx, id, key, "flash", CommandArgs{On: true}))
	require.NoError(t, f.rooms.Command(ctx, id, key, "promptOnly", CommandArgs{On: true}))
	r = f.stored(t, id)
	assert.Equal(t, "wrap up", r.Message)
	assert.Equal(t, f.clock.Now().UnixMilli(), r.MessageAtMs)
	assert.True(t, r.Flash)
	assert.True(t, r.PromptOnly)
	assert.EqualValues(t, 5, r.Version)
	assert.Equal(t, f.clock.Now().Unix(), r.UpdatedAt)
}

func TestPauseResumeThroughService(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, f.rooms.Command(ctx, id, key, "start", CommandArgs{DurationSec: i64(600)}))
	f.clock.Advance(10 * time.Second)
	require.NoError(t, f.rooms.Command(ctx, id, key, "pause", CommandArgs{}))
	f.clock.Advance(time.Minute)

	v, err := f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 590, v.Remaining)

	require.NoError(t, f.rooms.Command(ctx, id, key, "start", CommandArgs{}))
	f.clock.Advance(5 * time.Second)
	v, err = f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 585, v.Remaining)

	require.NoError(t, f.rooms.Command(ctx, id, key, "reset", CommandArgs{}))
	v, err = f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, room.StateIdle, v.State.State)
	assert.EqualValues(t, 600, v.Remaining)
}

func TestStageAcknowledgements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	v, err := f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.StageOnline)
	assert.Equal(t, room.MsgOffline, v.MsgStatus)

	v, err = f.rooms.Heartbeat(ctx, id, true)
	require.NoError(t, err)
	assert.True(t, v.StageOnline)
	assert.True(t, v.State.Stage.Fullscreen)
	assert.Equal(t, room.MsgNone, v.MsgStatus)

	require.NoError(t, f.rooms.Command(ctx, id, key, "message", CommandArgs{Text: "hello"}))
	v, err = f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, room.MsgPending, v.MsgStatus)

	f.clock.Advance(500 * time.Millisecond)
	require.NoError(t, f.rooms.AckMessage(ctx, id))
	v, err = f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, room.MsgShown, v.MsgStatus)

	require.NoError(t, f.rooms.Command(ctx, id, key, "start", CommandArgs{}))
	assert.Zero(t, f.stored(t, id).Stage.StartedAckMs)
	require.NoError(t, f.rooms.AckStart(ctx, id))
	assert.Equal(t, f.clock.Now().UnixMilli(), f.stored(t, id).Stage.StartedAckMs)

	f.clock.Advance(6 * time.Second)
	v, err = f.rooms.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, v.StageOnline)
}

func TestCreateRetriesCollidingIDs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	draws := []string{"111111", "111111", "222222"}
	f.rooms.newID = func() string {
		id := draws[0]
		draws = draws[1:]
		return id
	}

	id, _, err := f.rooms.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "111111", id)

	id, _, err = f.rooms.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "222222", id)
}

func TestCreateFallsBackWhenCrowded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	require.NoError(t, f.store.Put(ctx, docstore.Rooms, "111111", []byte(`{}`)))
	f.rooms.newID = func() string { return "111111" }

	id, _, err := f.rooms.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%06d", f.clock.Now().Unix()%1_000_000), id)
}

func TestConcurrentWritersAreSerialized(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, auth.Policy{})
	id, key, err := f.rooms.Create(ctx)
	require.NoError(t, err)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, f.rooms.Command(ctx, id, key, "message", CommandArgs{Text: fmt.Sprint(i)}))
		}(i)
	}
	wg.Wait()
	assert.EqualValues(t, writers+1, f.stored(t, id).Version)
}

type brokenStore struct{ docstore.Backend }

func (brokenStore) Get(context.Context, docstore.Namespace, string) ([]byte, error) {
	return nil, docstore.ErrNotFound
}

func (brokenStore) Put(context.Context, docstore.Namespace, string, []byte) error {
	return docstore.ErrLocked
}

func TestStorageFailureSurfaces(t *testing.T) {
	ctx := context.Background()
	rooms := New(brokenStore{}, Options{Policy: auth.Policy{AllowClaim: true}})
	key, _ := auth.GenerateKey()

	err := rooms.Command(ctx, "123456", key, "start", CommandArgs{})
	assert.ErrorIs(t, err, ErrStorage)
}
