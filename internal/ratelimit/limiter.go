// Package ratelimit keeps fixed-window request counters per client IP and
// request category, persisted in the document store next to the rooms.
package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"timepon/engine/internal/docstore"
)

// Category selects an independent counter per client.
type Category string

const (
	Create Category = "create"
	Read   Category = "read"
	Write  Category = "write"
)

var ErrRateLimited = errors.New("rate limited")

// Rule is the window and cap for one category. Prefix keeps each category's
// counter document distinct for the same IP.
type Rule struct {
	Window time.Duration
	Limit  int
	Prefix string
}

// DefaultRules: create 10/min, heartbeat+read 300/min, write 120/min.
func DefaultRules() map[Category]Rule {
	return map[Category]Rule{
		Create: {Window: time.Minute, Limit: 10, Prefix: ""},
		Read:   {Window: time.Minute, Limit: 300, Prefix: "r_"},
		Write:  {Window: time.Minute, Limit: 120, Prefix: "w_"},
	}
}

type counter struct {
	WindowStart int64 `json:"ts"`
	Count       int   `json:"cnt"`
}

// Limiter is safe for concurrent use.
type Limiter struct {
	store docstore.Backend
	locks docstore.KeyLocker
	clock clockwork.Clock
	rules map[Category]Rule
}

func New(store docstore.Backend, locks docstore.KeyLocker, clock clockwork.Clock, rules map[Category]Rule) *Limiter {
	if rules == nil {
		rules = DefaultRules()
	}
	if locks == nil {
		locks = docstore.NoLocker{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{store: store, locks: locks, clock: clock, rules: rules}
}

// Allow counts one request from ip in cat. It returns ErrRateLimited once the
// window's cap is reached; a rejected request does not advance the counter.
// Storage trouble lets the request through.
func (l *Limiter) Allow(ctx context.Context, ip string, cat Category) error {
	rule, ok := l.rules[cat]
	if !ok {
		return nil
	}
	key := rule.Prefix + SanitizeIP(ip)
	unlock := l.locks.Lock("ratelimit:" + key)
	defer unlock()

	var c counter
	if raw, err := l.store.Get(ctx, docstore.RateLimit, key); err == nil {
		_ = json.Unmarshal(raw, &c)
	} else if !errors.Is(err, docstore.ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("ratelimit: load failed, allowing")
		return nil
	}

	now := l.clock.Now().Unix()
	if now-c.WindowStart > int64(rule.Window/time.Second) {
		c = counter{WindowStart: now}
	}
	if c.Count >= rule.Limit {
		rejections.WithLabelValues(string(cat)).Inc()
		return ErrRateLimited
	}
	c.Count++

	raw, _ := json.Marshal(c)
	if err := l.store.Put(ctx, docstore.RateLimit, key, raw); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("ratelimit: save failed, allowing")
	}
	return nil
}

var ipUnsafe = regexp.MustCompile(`[^0-9a-fA-F:.]`)

const maxIPLen = 64

// SanitizeIP maps an address onto a bounded, path-safe character set.
func SanitizeIP(ip string) string {
	s := ipUnsafe.ReplaceAllString(strings.TrimSpace(ip), "_")
	s = strings.ReplaceAll(s, "..", "__")
	if len(s) > maxIPLen {
		s = s[:maxIPLen]
	}
	if s == "" {
		return "unknown"
	}
	return s
}
