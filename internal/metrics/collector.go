package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionCounter exposes live sessions by state
type SessionCounter interface {
	CountByState() map[string]int
}

// AgentCounter exposes agents by status
type AgentCounter interface {
	CountByStatus() map[string]int
}

// LedgerCounter exposes the number of call records
type LedgerCounter interface {
	Len() int
}

// Collector gathers gauges at scrape time. Any provider may be nil.
type Collector struct {
	sessions  SessionCounter
	agents    AgentCounter
	ledger    LedgerCounter
	startTime time.Time

	sessionsDesc *prometheus.Desc
	agentsDesc   *prometheus.Desc
	recordsDesc  *prometheus.Desc
	uptimeDesc   *prometheus.Desc
}

// NewCollector creates a scrape-time collector
func NewCollector(sessions SessionCounter, agents AgentCounter, ledger LedgerCounter, startTime time.Time) *Collector {
	return &Collector{
		sessions:  sessions,
		agents:    agents,
		ledger:    ledger,
		startTime: startTime,

		sessionsDesc: prometheus.NewDesc(
			namespace+"_live_sessions",
			"Live sessions by state",
			[]string{"state"}, nil,
		),
		agentsDesc: prometheus.NewDesc(
			namespace+"_agents",
			"Agents by status",
			[]string{"status"}, nil,
		),
		recordsDesc: prometheus.NewDesc(
			namespace+"_call_records",
			"Call records held in the ledger",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			namespace+"_uptime_seconds",
			"Seconds since the process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.agentsDesc
	ch <- c.recordsDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.sessions != nil {
		for state, n := range c.sessions.CountByState() {
			ch <- prometheus.MustNewConstMetric(c.sessionsDesc, prometheus.GaugeValue, float64(n), state)
		}
	}
	if c.agents != nil {
		for status, n := range c.agents.CountByStatus() {
			ch <- prometheus.MustNewConstMetric(c.agentsDesc, prometheus.GaugeValue, float64(n), status)
		}
	}
	if c.ledger != nil {
		ch <- prometheus.MustNewConstMetric(c.recordsDesc, prometheus.GaugeValue, float64(c.ledger.Len()))
	}
	ch <- prometheus.MustNewConstMetric(c.uptimeDesc, prometheus.GaugeValue, time.Since(c.startTime).Seconds())
}
