package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the webhook, payment, and operational endpoints.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.HandleFunc("/webhooks/{provider}", h.HandleWebhook).Methods(http.MethodPost)
	r.HandleFunc("/webhooks/{provider}", h.HandleWebhookHealth).Methods(http.MethodGet)

	r.HandleFunc("/payments/{provider}/initiate", h.HandleInitiate).Methods(http.MethodPost)
	// Polling is GET-only; anything else gets an explicit 405.
	r.HandleFunc("/payments/{provider}/status", h.HandleStatus).Methods(http.MethodGet)

	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusMethodNotAllowed, errorBody("Méthode non autorisée", "METHOD_NOT_ALLOWED"))
	})
	return r
}
