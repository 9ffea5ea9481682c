package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"timepon/engine/internal/ratelimit"
	"timepon/engine/internal/service"
)

const (
	maxWatchIDs  = 20
	writeTimeout = 5 * time.Second
)

// HandleWatch streams the read payload of each room in ?ids= every
// WatchInterval until the client goes away. Frames carry the same fields as
// a get response so clients reuse their drift handling.
func (h *Handlers) HandleWatch(w http.ResponseWriter, r *http.Request) {
	ids, err := watchIDs(r.URL.Query().Get("ids"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.limiter != nil {
		if err := h.limiter.Allow(r.Context(), h.net.ClientIP(r), ratelimit.Read); err != nil {
			writeError(w, r, err)
			return
		}
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("ws accept")
		return
	}
	defer c.Close(websocket.StatusInternalError, "closing")
	watchers.Inc()
	defer watchers.Dec()

	// we never expect client frames; CloseRead cancels ctx when the peer leaves
	ctx := c.CloseRead(r.Context())

	ticker := h.clock.NewTicker(h.WatchInterval)
	defer ticker.Stop()
	for {
		if err := h.pushRooms(ctx, c, ids); err != nil {
			if ctx.Err() == nil {
				log.Debug().Err(err).Msg("ws watch write")
			}
			return
		}
		select {
		case <-ctx.Done():
			c.Close(websocket.StatusNormalClosure, "bye")
			return
		case <-ticker.Chan():
		}
	}
}

func (h *Handlers) pushRooms(ctx context.Context, c *websocket.Conn, ids []string) error {
	for _, id := range ids {
		v, err := h.rooms.Get(ctx, id)
		if err != nil {
			return err
		}
		wctx, cancel := context.WithTimeout(ctx, writeTimeout)
		err = wsjson.Write(wctx, c, viewResponse{OK: true, View: v})
		cancel()
		if err != nil {
			return err
		}
	}
	return nil
}

// watchIDs parses a comma separated id list, dropping blanks and duplicates.
func watchIDs(raw string) ([]string, error) {
	var ids []string
	seen := map[string]bool{}
	for _, part := range strings.Split(raw, ",") {
		id, err := service.ResolveID(part)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
		if len(ids) == maxWatchIDs {
			break
		}
	}
	if len(ids) == 0 {
		return nil, service.ErrIDRequired
	}
	return ids, nil
}
