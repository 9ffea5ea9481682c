package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"timepon/engine/internal/room"
)

// KeyBytes is the entropy of an issued admin key (128 bits).
const KeyBytes = 16

// maxClaimLen bounds a claimed key so a client cannot park megabytes in a room.
const maxClaimLen = 128

var (
	// ErrForbidden is the only failure callers see, whatever the cause.
	ErrForbidden = errors.New("forbidden")

	claimPattern = regexp.MustCompile(`^[0-9a-fA-F]{32,}$`)
)

// GenerateKey returns a fresh hex-encoded admin key.
func GenerateKey() (string, error) {
	var b [KeyBytes]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("admin key: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// Equal compares two keys in constant time.
func Equal(stored, presented string) bool {
	// constant-time compare
	return hmac.Equal([]byte(stored), []byte(presented))
}

// Claimable reports whether a presented key is shaped like an issued one.
func Claimable(presented string) bool {
	return len(presented) <= maxClaimLen && claimPattern.MatchString(presented)
}

// Policy decides who may mutate a room.
type Policy struct {
	// AllowClaim lets the first well-formed key attach itself to a room that
	// has none. Off by default; without it an unkeyed room is read-only.
	AllowClaim bool
}

// Authorize checks presented against the room's key. When the room has no key
// and claiming is enabled, a well-formed presented key becomes the room's key
// and claimed is true; the caller must persist the room.
func (p Policy) Authorize(r *room.Room, presented string) (claimed bool, err error) {
	if !r.HasAdminKey() {
		if !p.AllowClaim || !Claimable(presented) {
			return false, ErrForbidden
		}
		r.AdminKey = presented
		return true, nil
	}
	if presented == "" || !Equal(r.AdminKey, presented) {
		return false, ErrForbidden
	}
	return false, nil
}
