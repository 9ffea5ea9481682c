package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func NewRouter(h *Handlers) http.Handler {
	r := mux.NewRouter()
	r.Use(logMiddleware)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods("GET")
	r.HandleFunc("/readyz", h.HandleReady).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// method checks for /api happen per action so errors keep the JSON shape
	r.HandleFunc("/api", h.HandleAPI)
	r.HandleFunc("/qr", h.HandleQR).Methods("GET")
	r.HandleFunc("/ws/watch", h.HandleWatch).Methods("GET")

	return r
}
