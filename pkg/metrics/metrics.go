// Package metrics implements metrics and health reporting: the Prometheus
// counters, histograms, and gauges tracking ingestion and query activity,
// plus the aggregate Health() snapshot the /health endpoint and
// cmd/nancy-doctor poll.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a dedicated Prometheus registry (rather than the global
// default registerer) so multiple Nancy instances in a single test binary
// never collide on metric registration.
type Metrics struct {
	registry *prometheus.Registry

	packetsReceived  prometheus.Counter
	packetsIngested  prometheus.Counter
	packetsSkipped   prometheus.Counter
	packetsFailed    prometheus.Counter
	queriesReceived  prometheus.Counter
	queriesSucceeded prometheus.Counter
	queriesDegraded  prometheus.Counter

	brainWrites *prometheus.CounterVec
	brainReads  *prometheus.CounterVec

	ingestLatency prometheus.Histogram
	queryLatency  prometheus.Histogram
	brainLatency  *prometheus.HistogramVec

	inFlightPackets   prometheus.Gauge
	inFlightQueries   prometheus.Gauge
	mcpServersHealthy prometheus.Gauge
	mcpServersTotal   prometheus.Gauge
}

// New creates a Metrics instance with every counter, histogram, and gauge
// registered against a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_packets_received_total",
			Help: "Knowledge Packets accepted by the Ingestion Router, before validation.",
		}),
		packetsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_packets_ingested_total",
			Help: "Packets that reached every target brain successfully.",
		}),
		packetsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_packets_skipped_total",
			Help: "Packets skipped as duplicates of an already-ingested packet_id.",
		}),
		packetsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_packets_failed_total",
			Help: "Packets that failed every target brain.",
		}),
		queriesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_queries_received_total",
			Help: "Queries accepted by the Query Orchestrator.",
		}),
		queriesSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_queries_succeeded_total",
			Help: "Queries that completed with a non-degraded synthesis.",
		}),
		queriesDegraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nancy_queries_degraded_total",
			Help: "Queries that completed via extractive fallback or with one or more degraded brains.",
		}),

		brainWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nancy_brain_writes_total",
			Help: "Upsert calls per brain, from the Ingestion Router's fan-out.",
		}, []string{"brain"}),
		brainReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nancy_brain_reads_total",
			Help: "Sub-query calls per brain, from the Query Orchestrator's fan-out.",
		}, []string{"brain"}),

		ingestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nancy_ingest_latency_seconds",
			Help:    "End-to-end Ingestion Router latency per packet.",
			Buckets: prometheus.DefBuckets,
		}),
		queryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "nancy_query_latency_seconds",
			Help:    "End-to-end Query Orchestrator latency per query.",
			Buckets: prometheus.DefBuckets,
		}),
		brainLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nancy_brain_latency_seconds",
			Help:    "Per-brain sub-query/upsert latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"brain"}),

		inFlightPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nancy_packets_in_flight",
			Help: "Packets currently being fanned out by the Ingestion Router.",
		}),
		inFlightQueries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nancy_queries_in_flight",
			Help: "Queries currently executing in the Query Orchestrator.",
		}),
		mcpServersHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nancy_mcp_servers_healthy",
			Help: "MCP content-processor servers the host currently considers healthy.",
		}),
		mcpServersTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nancy_mcp_servers_total",
			Help: "MCP content-processor servers configured, healthy or not.",
		}),
	}

	reg.MustRegister(
		m.packetsReceived, m.packetsIngested, m.packetsSkipped, m.packetsFailed,
		m.queriesReceived, m.queriesSucceeded, m.queriesDegraded,
		m.brainWrites, m.brainReads,
		m.ingestLatency, m.queryLatency, m.brainLatency,
		m.inFlightPackets, m.inFlightQueries, m.mcpServersHealthy, m.mcpServersTotal,
	)

	return m
}

// Handler returns the HTTP handler GET /metrics should mount, serving this
// instance's registry rather than the global default one.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordPacketReceived increments packets_received. Call this before
// validation so the counter reflects every submission attempt.
func (m *Metrics) RecordPacketReceived() {
	m.packetsReceived.Inc()
}

// RecordIngestOutcome increments the counter matching outcome and observes
// the ingest's wall-clock duration. outcome is one of "ingested",
// "skipped_duplicate", "partial", "failed" (pkg/ingest.Outcome values);
// "partial" is counted under packets_ingested, matching the Router's own
// "at least one brain succeeded" semantics for overall success.
func (m *Metrics) RecordIngestOutcome(outcome string, duration time.Duration) {
	m.ingestLatency.Observe(duration.Seconds())
	switch outcome {
	case "ingested", "partial":
		m.packetsIngested.Inc()
	case "skipped_duplicate":
		m.packetsSkipped.Inc()
	default:
		m.packetsFailed.Inc()
	}
}

// RecordBrainWrite increments brain_writes for brain and observes its
// upsert latency.
func (m *Metrics) RecordBrainWrite(brain string, duration time.Duration) {
	m.brainWrites.WithLabelValues(brain).Inc()
	m.brainLatency.WithLabelValues(brain).Observe(duration.Seconds())
}

// RecordBrainRead increments brain_reads for brain and observes its
// sub-query latency.
func (m *Metrics) RecordBrainRead(brain string, duration time.Duration) {
	m.brainReads.WithLabelValues(brain).Inc()
	m.brainLatency.WithLabelValues(brain).Observe(duration.Seconds())
}

// RecordQueryReceived increments queries_received.
func (m *Metrics) RecordQueryReceived() {
	m.queriesReceived.Inc()
}

// RecordQueryOutcome increments queries_succeeded or queries_degraded and
// observes the query's wall-clock duration.
func (m *Metrics) RecordQueryOutcome(degraded bool, duration time.Duration) {
	m.queryLatency.Observe(duration.Seconds())
	if degraded {
		m.queriesDegraded.Inc()
		return
	}
	m.queriesSucceeded.Inc()
}

// SetInFlightPackets sets the in-flight packets gauge, typically polled
// from pkg/ingest.Router.InFlight().
func (m *Metrics) SetInFlightPackets(n int) {
	m.inFlightPackets.Set(float64(n))
}

// SetInFlightQueries sets the in-flight queries gauge, typically polled
// from pkg/query.Orchestrator.InFlight().
func (m *Metrics) SetInFlightQueries(n int) {
	m.inFlightQueries.Set(float64(n))
}

// SetMCPServerCounts sets the mcp_servers_healthy and mcp_servers_total
// gauges, typically polled from pkg/mcphost.HealthMonitor.GetStatuses().
func (m *Metrics) SetMCPServerCounts(healthy, total int) {
	m.mcpServersHealthy.Set(float64(healthy))
	m.mcpServersTotal.Set(float64(total))
}
