// Package metrics exposes server-side counters and a live roster gauge
// as a Prometheus collector.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"roomrelay/internal/roster"
)

// Collector implements prometheus.Collector: fixed counters are
// accumulated in place, while the roster size is read live on every
// scrape, the same shape conniver's TCPInfoCollector uses for
// per-connection state that can't be pre-aggregated.
type Collector struct {
	roster *roster.Roster

	sessionsGauge   *prometheus.Desc
	loginsTotal     prometheus.Counter
	rejectionsTotal prometheus.Counter
	messagesTotal   prometheus.Counter
	nacksTotal      prometheus.Counter
	disconnectTotal prometheus.Counter
}

// New returns a Collector reading live session counts from r.
func New(r *roster.Roster) *Collector {
	return &Collector{
		roster: r,
		sessionsGauge: prometheus.NewDesc(
			"roomrelay_active_sessions",
			"Number of currently logged-in sessions.",
			nil, nil,
		),
		loginsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomrelay_logins_total",
			Help: "Successful LOGIN admissions.",
		}),
		rejectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomrelay_login_rejections_total",
			Help: "LOGIN attempts rejected (bad header, unsupported version, wrong type, empty or duplicate username, or failed login echo).",
		}),
		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomrelay_messages_fanned_out_total",
			Help: "Verified MESSAGE frames relayed to their named recipient or broadcast to \"all\" (counted even when no other session is logged in).",
		}),
		nacksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomrelay_nacks_total",
			Help: "MESSAGE frames NACKed for a bad data checksum.",
		}),
		disconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roomrelay_disconnects_total",
			Help: "Sessions ended by an explicit DISCONNECT.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsGauge
	c.loginsTotal.Describe(ch)
	c.rejectionsTotal.Describe(ch)
	c.messagesTotal.Describe(ch)
	c.nacksTotal.Describe(ch)
	c.disconnectTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.sessionsGauge, prometheus.GaugeValue, float64(c.roster.Len()))
	c.loginsTotal.Collect(ch)
	c.rejectionsTotal.Collect(ch)
	c.messagesTotal.Collect(ch)
	c.nacksTotal.Collect(ch)
	c.disconnectTotal.Collect(ch)
}

func (c *Collector) LoginAdmitted()   { c.loginsTotal.Inc() }
func (c *Collector) LoginRejected()   { c.rejectionsTotal.Inc() }
func (c *Collector) MessageFannedOut() { c.messagesTotal.Inc() }
func (c *Collector) Nacked()          { c.nacksTotal.Inc() }
func (c *Collector) Disconnected()    { c.disconnectTotal.Inc() }
