// Package metrics exposes the AMF's Prometheus instrumentation and the
// side HTTP server that serves it.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// Service health
	ServiceUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "amf_service_up",
			Help: "Whether the AMF is up (1 = up, 0 = down)",
		},
	)

	// NGAP signalling
	NgapPdusTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "amf_ngap_pdus_total",
			Help: "Total number of NGAP PDUs processed",
		},
		[]string{"procedure", "result"},
	)

	NgapDecodeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amf_ngap_decode_failures_total",
			Help: "Total number of NGAP PDUs dropped due to decode errors",
		},
	)

	// Context tables
	ConnectedRanNodes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "amf_connected_ran_nodes",
			Help: "Number of RAN nodes with an established NG connection",
		},
	)

	UeContexts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "amf_ue_contexts",
			Help: "Number of UE contexts held by the AMF",
		},
	)

	// NRF registration
	NRFHeartbeatFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "amf_nrf_heartbeat_failures_total",
			Help: "Total number of NRF heartbeat failures",
		},
	)
)

// RecordNgapPdu records a processed NGAP PDU by procedure name and result.
func RecordNgapPdu(procedure, result string) {
	NgapPdusTotal.WithLabelValues(procedure, result).Inc()
}

// SetServiceUp sets the service health status.
func SetServiceUp(up bool) {
	if up {
		ServiceUp.Set(1)
	} else {
		ServiceUp.Set(0)
	}
}

// Server represents a Prometheus metrics HTTP server.
type Server struct {
	port   int
	server *http.Server
	logger *zap.Logger
}

// NewServer creates a new metrics server.
func NewServer(port int, logger *zap.Logger) *Server {
	return &Server{
		port:   port,
		logger: logger,
	}
}

// Start starts the metrics HTTP server.
func (m *Server) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	m.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", m.port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	m.logger.Info("Starting metrics server", zap.Int("port", m.port))
	return m.server.ListenAndServe()
}

// Stop stops the metrics server.
func (m *Server) Stop() error {
	if m.server != nil {
		return m.server.Close()
	}
	return nil
}
