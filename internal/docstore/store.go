// Package docstore persists small JSON documents by (namespace, key).
//
// Two backends exist: a flat-file one that writes via temp file, flock and
// atomic rename, and a redis one that stores each document under its own key
// with a TTL. Callers never see partially written documents from either.
package docstore

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
)

// Namespace separates document families that have their own retention.
type Namespace string

const (
	Rooms     Namespace = "rooms"
	RateLimit Namespace = "ratelimit"
)

var (
	ErrNotFound   = errors.New("document not found")
	ErrLocked     = errors.New("document is locked by another writer")
	ErrInvalidKey = errors.New("invalid document key")
)

// Backend is the key-value surface shared by every storage implementation.
type Backend interface {
	Get(ctx context.Context, ns Namespace, key string) ([]byte, error)
	Put(ctx context.Context, ns Namespace, key string, data []byte) error
	Delete(ctx context.Context, ns Namespace, key string) error
	Exists(ctx context.Context, ns Namespace, key string) (bool, error)
	// Sweep removes documents last written before cutoff and returns how many went.
	Sweep(ctx context.Context, ns Namespace, cutoff time.Time) (int, error)
	// Check reports whether the backend can currently accept writes.
	Check(ctx context.Context) error
	Name() string
	Close() error
}

var keyPattern = regexp.MustCompile(`^[0-9A-Za-z_.:-]{1,80}$`)

// ValidKey rejects anything that could escape a namespace when used as a
// file name or key suffix.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && !strings.Contains(key, "..")
}

// Retention maps a namespace to how long an untouched document is kept.
type Retention map[Namespace]time.Duration

// DefaultRetention keeps rooms and counters for a week.
func DefaultRetention() Retention {
	return Retention{
		Rooms:     7 * 24 * time.Hour,
		RateLimit: 7 * 24 * time.Hour,
	}
}

const (
	MinRoomRetention = 7 * 24 * time.Hour
	MaxRoomRetention = 14 * 24 * time.Hour
)

// Bounded fills unset or non-positive entries from DefaultRetention and holds
// room retention within seven to fourteen days. Every backend and the sweeper
// go through it so a room lives equally long whichever store holds it.
func (r Retention) Bounded() Retention {
	out := DefaultRetention()
	for ns, d := range r {
		if d > 0 {
			out[ns] = d
		}
	}
	out[Rooms] = min(max(out[Rooms], MinRoomRetention), MaxRoomRetention)
	return out
}
