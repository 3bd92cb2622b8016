package ursanet

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every Prometheus collector the service emits, on an
// isolated registry so ursanet metrics never collide with a process's
// default registry. Each Service gets its own Metrics instance.
type Metrics struct {
	Registry *prometheus.Registry

	BlockExchangeTotal  *prometheus.CounterVec
	GossipMessagesTotal *prometheus.CounterVec
	PeerConnectedTotal  *prometheus.CounterVec
	RelayReservationTotal *prometheus.CounterVec
	RelayCircuitTotal   *prometheus.CounterVec
	NATStatusTotal      *prometheus.CounterVec
	RequestsTotal       *prometheus.CounterVec
	BlockExchangeDurationSeconds *prometheus.HistogramVec
}

// NewMetrics creates a Metrics instance with all collectors registered.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		BlockExchangeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_block_exchange_total",
				Help: "Total block-exchange query completions, labeled by outcome.",
			},
			[]string{"block_found"},
		),
		GossipMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_gossip_messages_total",
				Help: "Total inbound gossip messages accepted as CIDs.",
			},
			[]string{"topic"},
		),
		PeerConnectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_peer_connected_total",
				Help: "Total peer connect/disconnect transitions.",
			},
			[]string{"direction"},
		),
		RelayReservationTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_relay_reservation_total",
				Help: "Total relay reservation open/close events.",
			},
			[]string{"state"},
		),
		RelayCircuitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_relay_circuit_total",
				Help: "Total relay circuit open/close events.",
			},
			[]string{"state"},
		),
		NATStatusTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_nat_status_total",
				Help: "Total NAT status transitions observed, labeled by resulting state.",
			},
			[]string{"status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ursanet_requests_total",
				Help: "Total request/response RPCs, labeled by direction and outcome.",
			},
			[]string{"direction", "outcome"},
		),
		BlockExchangeDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ursanet_block_exchange_duration_seconds",
				Help:    "Block-exchange query duration from dispatch to completion.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
	}

	reg.MustRegister(
		m.BlockExchangeTotal,
		m.GossipMessagesTotal,
		m.PeerConnectedTotal,
		m.RelayReservationTotal,
		m.RelayCircuitTotal,
		m.NATStatusTotal,
		m.RequestsTotal,
		m.BlockExchangeDurationSeconds,
	)

	return m
}

// Handler exposes the isolated registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
