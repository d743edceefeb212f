package sshed

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "sshed"

// AgentCollector exports the statistics of an agent to Prometheus.
type AgentCollector struct {
	agent *Agent

	sessions     *prometheus.Desc
	replies      *prometheus.Desc
	rejected     *prometheus.Desc
	failures     *prometheus.Desc
	bytes        *prometheus.Desc
	sessionTime  *prometheus.Desc
	slots        *prometheus.Desc
	slotWaits    *prometheus.Desc
	slotWaitTime *prometheus.Desc
	slotCanceled *prometheus.Desc
}

var _ prometheus.Collector = (*AgentCollector)(nil)

// NewAgentCollector creates a collector reading the statistics of a.
func NewAgentCollector(a *Agent) *AgentCollector {
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(metricsNamespace, "agent", name), help, labels, nil)
	}

	return &AgentCollector{
		agent:        a,
		sessions:     desc("sessions_total", "Sessions accepted"),
		replies:      desc("replies_total", "Session replies by kind", "kind"),
		rejected:     desc("rejected_total", "Sessions dropped for a bad request"),
		failures:     desc("failures_total", "Sessions that failed after the request was accepted"),
		bytes:        desc("body_bytes_total", "Body bytes exchanged with guests", "direction"),
		sessionTime:  desc("session_seconds_total", "Total time spent in sessions"),
		slots:        desc("session_slots", "Session slots by state", "state"),
		slotWaits:    desc("slot_waits_total", "Slot acquisitions that waited for a free slot"),
		slotWaitTime: desc("slot_wait_seconds_total", "Total time spent waiting for a free slot"),
		slotCanceled: desc("slot_canceled_total", "Slot acquisitions canceled before a slot was free"),
	}
}

func (c *AgentCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.sessions, c.replies, c.rejected, c.failures, c.bytes,
		c.sessionTime, c.slots, c.slotWaits, c.slotWaitTime, c.slotCanceled,
	} {
		ch <- d
	}
}

func (c *AgentCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.agent.Stats()
	slots := c.agent.SlotStats()

	counter := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, v, labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.sessions, float64(s.Sessions))
	counter(c.replies, float64(s.Unchanged), replyUnchanged.String())
	counter(c.replies, float64(s.DiffReplies), replyDiff.String())
	counter(c.replies, float64(s.FullReplies), replyFull.String())
	counter(c.rejected, float64(s.Rejected))
	counter(c.failures, float64(s.Failures))
	counter(c.bytes, float64(s.BytesReceived), "received")
	counter(c.bytes, float64(s.BytesSent), "sent")
	counter(c.sessionTime, float64(s.SessionTimeNs)/1e9)

	gauge(c.slots, float64(slots.ActiveSlots), "active")
	gauge(c.slots, float64(slots.IdleSlots), "idle")
	gauge(c.slots, float64(slots.MaxSlots), "max")
	counter(c.slotWaits, float64(slots.AcquireWaitCount))
	counter(c.slotWaitTime, float64(slots.AcquireWaitTimeNs)/1e9)
	counter(c.slotCanceled, float64(slots.AcquireErrors))
}

// MetricsHandler serves the agent metrics on /metrics and a liveness probe on
// /healthz.
func MetricsHandler(a *Agent) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewAgentCollector(a))

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		slots := a.SlotStats()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "ok %d/%d sessions\n", slots.ActiveSlots, slots.MaxSlots)
	})
	return r
}
