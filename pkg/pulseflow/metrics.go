package pulseflow

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler serves /metrics and /healthz for this node.
func (n *Node) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(n.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/healthz", n.healthz).Methods(http.MethodGet)
	return r
}

func (n *Node) httpHandler() http.Handler {
	h := handlers.RecoveryHandler()(n.Handler())
	if n.accessLog != nil {
		h = handlers.LoggingHandler(n.accessLog, h)
	}
	return h
}

type healthBody struct {
	Status    string `json:"status"`
	DeviceID  string `json:"device_id"`
	Link      string `json:"link"`
	Session   string `json:"session"`
	Ticks     uint64 `json:"ticks"`
	Published uint64 `json:"published"`
	Failures  uint64 `json:"failures"`
}

// healthz reports liveness of the process. A node with the network down is
// still healthy: it keeps counting.
func (n *Node) healthz(w http.ResponseWriter, _ *http.Request) {
	stats := n.Stats()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(healthBody{
		Status:    "ok",
		DeviceID:  n.cfg.DeviceID,
		Link:      n.LinkState().String(),
		Session:   n.SessionState().String(),
		Ticks:     stats.Ticks,
		Published: stats.Published,
		Failures:  stats.Failures,
	})
}
