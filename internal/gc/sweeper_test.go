package gc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timepon/engine/internal/docstore"
)

func TestSweepRemovesStaleDocuments(t *testing.T) {
	root := t.TempDir()
	fs, err := docstore.NewFS(root, time.Second)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, fs.Put(ctx, docstore.Rooms, "100000", []byte(`{}`)))
	require.NoError(t, fs.Put(ctx, docstore.Rooms, "200000", []byte(`{}`)))
	require.NoError(t, fs.Put(ctx, docstore.RateLimit, "w_1.2.3.4", []byte(`{}`)))

	stale := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "100000.json"), stale, stale))
	require.NoError(t, os.Chtimes(filepath.Join(root, "_ip", "w_1.2.3.4.json"), stale, stale))

	s := New(fs, clockwork.NewRealClock(), 1, nil)
	res := s.Sweep(ctx)
	assert.Equal(t, 1, res.Rooms)
	assert.Equal(t, 1, res.Counters)
	assert.Zero(t, res.Errors)

	ok, _ := fs.Exists(ctx, docstore.Rooms, "200000")
	assert.True(t, ok)
}

func TestSweepToleratesMissingDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "gone")
	fs, err := docstore.NewFS(root, time.Second)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(root))

	res := New(fs, nil, 1, nil).Sweep(context.Background())
	assert.Zero(t, res.Rooms)
	assert.Zero(t, res.Counters)
	assert.Zero(t, res.Errors)
}

type failingStore struct{ docstore.Backend }

func (failingStore) Sweep(context.Context, docstore.Namespace, time.Time) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestSweepReportsErrorsWithoutPanicking(t *testing.T) {
	res := New(failingStore{}, nil, 1, nil).Sweep(context.Background())
	assert.Equal(t, 2, res.Errors)
}

func TestRoomRetentionBounds(t *testing.T) {
	s := New(nil, nil, 0, docstore.Retention{docstore.Rooms: time.Hour})
	assert.Equal(t, docstore.MinRoomRetention, s.Retention(docstore.Rooms))
	assert.Equal(t, DefaultOneIn, s.oneIn)

	s = New(nil, nil, 0, docstore.Retention{docstore.Rooms: 90 * 24 * time.Hour, docstore.RateLimit: time.Hour})
	assert.Equal(t, docstore.MaxRoomRetention, s.Retention(docstore.Rooms))
	assert.Equal(t, time.Hour, s.Retention(docstore.RateLimit))
}

func TestMaybeSweepProbability(t *testing.T) {
	fs, err := docstore.NewFS(t.TempDir(), time.Second)
	require.NoError(t, err)
	s := New(fs, nil, 50, nil)

	s.roll = func(int) int { return 7 }
	assert.False(t, s.MaybeSweep())

	s.roll = func(int) int { return 0 }
	assert.True(t, s.MaybeSweep())
	s.Wait()
}
