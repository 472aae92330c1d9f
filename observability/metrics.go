package observability

import (
	"chat-presence/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "chat"

type Snapshotter interface {
	Snapshot() domain.Snapshot
}

// BroadcastStats exposes the emitter counters.
type BroadcastStats interface {
	Dropped() uint64
	Failures() uint64
	Pending() int
}

// Collector exports the engine tables as gauges, computed from one
// snapshot per scrape.
type Collector struct {
	snapshots Snapshotter

	usersTotal     *prometheus.Desc
	usersOnline    *prometheus.Desc
	channelsTotal  *prometheus.Desc
	messagesTotal  *prometheus.Desc
	offlinePending *prometheus.Desc
}

func NewCollector(snapshots Snapshotter) *Collector {
	return &Collector{
		snapshots: snapshots,
		usersTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "users_total"),
			"Number of known users, online or not.",
			nil,
			nil,
		),
		usersOnline: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "users_online"),
			"Number of users currently online.",
			nil,
			nil,
		),
		channelsTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "channels_total"),
			"Number of channels.",
			nil,
			nil,
		),
		messagesTotal: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "messages_total"),
			"Number of messages in the log.",
			nil,
			nil,
		),
		offlinePending: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "offline_pending"),
			"Number of private messages waiting for an offline recipient.",
			nil,
			nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.usersTotal
	ch <- c.usersOnline
	ch <- c.channelsTotal
	ch <- c.messagesTotal
	ch <- c.offlinePending
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.snapshots.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.usersTotal, prometheus.GaugeValue, float64(len(snapshot.Users)))
	ch <- prometheus.MustNewConstMetric(c.usersOnline, prometheus.GaugeValue, float64(snapshot.OnlineCount()))
	ch <- prometheus.MustNewConstMetric(c.channelsTotal, prometheus.GaugeValue, float64(len(snapshot.Channels)))
	ch <- prometheus.MustNewConstMetric(c.messagesTotal, prometheus.GaugeValue, float64(snapshot.Messages))
	ch <- prometheus.MustNewConstMetric(c.offlinePending, prometheus.GaugeValue, float64(snapshot.PendingCount()))
}

// RequestMetrics counts control-plane requests by service and reply status.
type RequestMetrics struct {
	requests *prometheus.CounterVec
}

func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Control-plane requests by service and reply status.",
		}, []string{"service", "status"}),
	}
}

func (m *RequestMetrics) ObserveRequest(service, status string) {
	m.requests.WithLabelValues(service, status).Inc()
}

// NewRegistry builds a private registry so tests and binaries never share
// the global default one.
func NewRegistry(snapshots Snapshotter, requests *RequestMetrics, broadcasts BroadcastStats) *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		NewCollector(snapshots),
		requests.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if broadcasts != nil {
		registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcasts_dropped_total",
				Help:      "Broadcasts dropped because the emit buffer stayed full.",
			}, func() float64 { return float64(broadcasts.Dropped()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "broadcast_sink_failures_total",
				Help:      "Broadcasts a sink failed to publish.",
			}, func() float64 { return float64(broadcasts.Failures()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "broadcasts_pending",
				Help:      "Broadcasts waiting in the emit buffer.",
			}, func() float64 { return float64(broadcasts.Pending()) }),
		)
	}
	return registry
}
