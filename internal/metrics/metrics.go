// Package metrics owns the process's prometheus collectors and the tiny
// /metrics + /healthz HTTP surface, the same gorilla/mux + gorilla/handlers
// combination, scaled
// down to two routes.
package metrics

import (
	"context"
	"net/http"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connections is the current number of open client connections.
	Connections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvserver_connections",
		Help: "Number of currently open client connections.",
	})

	// CommandsTotal counts dispatched commands by name.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kvserver_commands_total",
		Help: "Total commands dispatched, by command name.",
	}, []string{"command"})

	// ReplicaCount is the current number of registered replicas.
	ReplicaCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvserver_replica_count",
		Help: "Number of currently registered replicas (master mode only).",
	})

	// ReplicationOffset mirrors master_repl_offset.
	ReplicationOffset = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvserver_replication_offset_bytes",
		Help: "Cumulative bytes of propagated write commands.",
	})

	// BlockedClients is the current number of connections parked in
	// BLPOP/XREAD BLOCK.
	BlockedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "kvserver_blocked_clients",
		Help: "Number of connections currently blocked on BLPOP/XREAD BLOCK.",
	})

	// PubsubMessagesDelivered counts successful PUBLISH fan-out deliveries.
	PubsubMessagesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvserver_pubsub_messages_delivered_total",
		Help: "Messages successfully delivered to subscribers.",
	})

	// PubsubMessagesDropped counts fan-out deliveries that errored.
	PubsubMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kvserver_pubsub_messages_dropped_total",
		Help: "Messages a subscriber connection failed to receive.",
	})
)

// NewHTTPServer builds the /metrics + /healthz server. It is not started
// here; the caller runs it under its own supervisor (cmd/kvserver uses
// errgroup).
func NewHTTPServer(addr string) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)

	logged := handlers.CombinedLoggingHandler(cclogWriter{}, r)
	return &http.Server{
		Addr:              addr,
		Handler:           logged,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// cclogWriter adapts cclog as the io.Writer gorilla/handlers' access log
// wants, so HTTP access lines go through the same sink as everything else.
type cclogWriter struct{}

func (cclogWriter) Write(p []byte) (int, error) {
	cclog.Infof("[METRICS]> %s", string(p))
	return len(p), nil
}

// Shutdown is a small helper so cmd/kvserver doesn't need to import
// net/http directly just to stop this server on signal.
func Shutdown(ctx context.Context, srv *http.Server) error {
	return srv.Shutdown(ctx)
}
