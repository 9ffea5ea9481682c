package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"timepon/engine/internal/auth"
	"timepon/engine/internal/ratelimit"
	"timepon/engine/internal/service"
)

var (
	errBadOrigin     = errors.New("bad origin")
	errMethod        = errors.New("method not allowed")
	errUnknownAction = errors.New("unknown action")
	errTooLarge      = errors.New("request body too large")
	errBadRequest    = errors.New("malformed request")
)

// errorKind maps an error onto the wire kind and HTTP status. Anything not
// recognised is treated as a storage problem the client may retry.
func errorKind(err error) (string, int) {
	switch {
	case errors.Is(err, service.ErrIDRequired):
		return "id_required", http.StatusBadRequest
	case errors.Is(err, auth.ErrForbidden):
		return "forbidden", http.StatusForbidden
	case errors.Is(err, ratelimit.ErrRateLimited):
		return "rate_limited", http.StatusTooManyRequests
	case errors.Is(err, errBadOrigin):
		return "bad_origin", http.StatusForbidden
	case errors.Is(err, errMethod):
		return "method_not_allowed", http.StatusMethodNotAllowed
	case errors.Is(err, errUnknownAction):
		return "unknown_action", http.StatusNotFound
	case errors.Is(err, service.ErrUnknownCommand):
		return "unknown_command", http.StatusBadRequest
	case errors.Is(err, errTooLarge):
		return "payload_too_large", http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadRequest):
		return "bad_request", http.StatusBadRequest
	default:
		return "storage_error", http.StatusServiceUnavailable
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeOK(w http.ResponseWriter, body map[string]any) {
	if body == nil {
		body = map[string]any{}
	}
	body["ok"] = true
	writeJSON(w, http.StatusOK, body)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := errorKind(err)
	if status == http.StatusServiceUnavailable {
		log.Error().Err(err).Str("request_id", requestID(r.Context())).Msg("api: request failed")
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	apiErrors.WithLabelValues(kind).Inc()
	writeJSON(w, status, map[string]any{"ok": false, "error": kind})
}
