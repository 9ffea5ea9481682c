package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"timepon/engine/internal/gc"
	"timepon/engine/internal/health"
	"timepon/engine/internal/ratelimit"
	"timepon/engine/internal/room"
	"timepon/engine/internal/service"
)

const (
	maxFormBytes = 64 << 10
	qrSize       = 240
	readyTimeout = 2 * time.Second
)

type Handlers struct {
	rooms   *service.Rooms
	limiter *ratelimit.Limiter
	sweeper *gc.Sweeper
	net     Network
	checks  []health.Checker
	clock   clockwork.Clock

	// WatchInterval is how often /ws/watch pushes room state.
	WatchInterval time.Duration
}

func NewHandlers(rooms *service.Rooms, limiter *ratelimit.Limiter, sweeper *gc.Sweeper, n Network, checks ...health.Checker) *Handlers {
	return &Handlers{
		rooms:         rooms,
		limiter:       limiter,
		sweeper:       sweeper,
		net:           n,
		checks:        checks,
		clock:         clockwork.NewRealClock(),
		WatchInterval: time.Second,
	}
}

// action describes one verb of the /api endpoint.
type action struct {
	mutating bool
	category ratelimit.Category
	serve    func(h *Handlers, w http.ResponseWriter, r *http.Request)
}

var actions = map[string]action{
	"create":      {mutating: true, category: ratelimit.Create, serve: (*Handlers).handleCreate},
	"get":         {mutating: false, category: ratelimit.Read, serve: (*Handlers).handleGet},
	"hb":          {mutating: true, category: ratelimit.Read, serve: (*Handlers).handleHeartbeat},
	"set":         {mutating: true, category: ratelimit.Write, serve: (*Handlers).handleSet},
	"setSettings": {mutating: true, category: ratelimit.Write, serve: (*Handlers).handleSettings},
	"ackStart":    {mutating: true, category: ratelimit.Write, serve: (*Handlers).handleAckStart},
	"ackMsg":      {mutating: true, category: ratelimit.Write, serve: (*Handlers).handleAckMsg},
}

// HandleAPI dispatches /api?action=<name>. Method, origin and rate checks all
// run before any room is touched.
func (h *Handlers) HandleAPI(w http.ResponseWriter, r *http.Request) {
	if h.sweeper != nil {
		h.sweeper.MaybeSweep()
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, errTooLarge)
		} else {
			writeError(w, r, fmt.Errorf("%w: %v", errBadRequest, err))
		}
		return
	}

	name := r.Form.Get("action")
	if name == "" {
		name = r.Form.Get("act")
	}
	a, ok := actions[name]
	if !ok {
		writeError(w, r, errUnknownAction)
		return
	}
	if a.mutating {
		if r.Method != http.MethodPost {
			writeError(w, r, errMethod)
			return
		}
		if !h.net.SameOrigin(r) {
			writeError(w, r, errBadOrigin)
			return
		}
	}
	if h.limiter != nil {
		if err := h.limiter.Allow(r.Context(), h.net.ClientIP(r), a.category); err != nil {
			writeError(w, r, err)
			return
		}
	}
	apiRequests.WithLabelValues(name).Inc()
	a.serve(h, w, r)
}

type viewResponse struct {
	OK bool `json:"ok"`
	service.View
}

func (h *Handlers) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, key, err := h.rooms.Create(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("id", id).Str("request_id", requestID(r.Context())).Msg("room created")
	writeOK(w, map[string]any{"id": id, "adminKey": key})
}

func (h *Handlers) handleGet(w http.ResponseWriter, r *http.Request) {
	v, err := h.rooms.Get(r.Context(), r.Form.Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{OK: true, View: v})
}

func (h *Handlers) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	v, err := h.rooms.Heartbeat(r.Context(), r.Form.Get("id"), room.ParseBool(r.Form.Get("fs")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{OK: true, View: v})
}

func (h *Handlers) handleSet(w http.ResponseWriter, r *http.Request) {
	args := service.CommandArgs{
		DurationSec: formInt(r, "durationSec"),
		Text:        r.Form.Get("text"),
		On:          room.ParseBool(r.Form.Get("on")),
	}
	if err := h.rooms.Command(r.Context(), r.Form.Get("id"), r.Form.Get("k"), r.Form.Get("cmd"), args); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handlers) handleSettings(w http.ResponseWriter, r *http.Request) {
	s := room.Settings{
		DurationMin: formInt(r, "durMin"),
		DurationSec: formInt(r, "durationSec"),
		Warn1Min:    formInt(r, "warn1Min"),
		Warn2Min:    formInt(r, "warn2Min"),
		ColorNormal: formString(r, "colorNormal"),
		ColorWarn1:  formString(r, "colorWarn1"),
		ColorWarn2:  formString(r, "colorWarn2"),
		Lang:        formString(r, "lang"),
	}
	if v := formString(r, "autoPrompt"); v != nil {
		on := room.ParseBool(*v)
		s.AutoPrompt = &on
	}
	if err := h.rooms.UpdateSettings(r.Context(), r.Form.Get("id"), r.Form.Get("k"), s); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handlers) handleAckStart(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.AckStart(r.Context(), r.Form.Get("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

func (h *Handlers) handleAckMsg(w http.ResponseWriter, r *http.Request) {
	if err := h.rooms.AckMessage(r.Context(), r.Form.Get("id")); err != nil {
		writeError(w, r, err)
		return
	}
	writeOK(w, nil)
}

// HandleQR renders the stage URL for ?id= as a PNG.
func (h *Handlers) HandleQR(w http.ResponseWriter, r *http.Request) {
	id, err := service.ResolveID(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	png, err := qrcode.Encode(h.net.StageURL(r, id), qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

// HandleReady reports whether every dependency can serve traffic.
func (h *Handlers) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()
	st := health.CheckAll(ctx, h.checks...)
	status := http.StatusOK
	if !st.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, st)
}

// formInt reads an optional integer field. Absent or unparsable values are
// treated as not supplied; fractional input is truncated.
func formInt(r *http.Request, name string) *int64 {
	if _, ok := r.Form[name]; !ok {
		return nil
	}
	s := strings.TrimSpace(r.Form.Get(name))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > -1e15 && f < 1e15 {
		n := int64(f)
		return &n
	}
	return nil
}

func formString(r *http.Request, name string) *string {
	if _, ok := r.Form[name]; !ok {
		return nil
	}
	s := r.Form.Get(name)
	return &s
}
