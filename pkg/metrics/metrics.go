// Package metrics exposes the service's prometheus instrumentation:
// request-level counters for the HTTP layer and a collector that
// publishes the tracker's cascade counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kass/go-proximity-index/pkg/tracker"
)

var (
	UpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proximity_updates_total",
		Help: "Total number of position updates received",
	})
	UpdateErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proximity_update_errors_total",
		Help: "Total number of rejected position updates",
	})
	EncountersTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proximity_encounters_total",
		Help: "Total number of confirmed encounters",
	})
	RequestDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "proximity_request_duration_seconds",
		Help:    "Location update request duration in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})
	NotifyFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proximity_notify_failures_total",
		Help: "Total number of failed encounter notifications",
	})
)

// Register registers the request metrics on the given registerer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		UpdatesTotal,
		UpdateErrorsTotal,
		EncountersTotal,
		RequestDurationSeconds,
		NotifyFailuresTotal,
	)
}

// Cascade counter descriptors published by TrackerCollector.
var (
	descCandidates = prometheus.NewDesc(
		"proximity_cascade_candidates_total",
		"Candidates that entered the filter cascade", nil, nil)
	descStale = prometheus.NewDesc(
		"proximity_cascade_stale_total",
		"Candidates skipped by the recency window", nil, nil)
	descBBoxRejected = prometheus.NewDesc(
		"proximity_cascade_bbox_rejected_total",
		"Candidates rejected by the bounding-box stage", nil, nil)
	descApproxRejected = prometheus.NewDesc(
		"proximity_cascade_approx_rejected_total",
		"Candidates rejected by the equirectangular stage", nil, nil)
	descExactRejected = prometheus.NewDesc(
		"proximity_cascade_exact_rejected_total",
		"Candidates rejected by the haversine stage", nil, nil)
	descHits = prometheus.NewDesc(
		"proximity_cascade_hits_total",
		"Candidates confirmed as encounters", nil, nil)
	descAgents = prometheus.NewDesc(
		"proximity_agents",
		"Number of known agents", nil, nil)
	descBuckets = prometheus.NewDesc(
		"proximity_buckets",
		"Number of occupied geohash buckets", nil, nil)
)

// TrackerCollector adapts a tracker's internal counters to prometheus.
type TrackerCollector struct {
	tracker *tracker.Tracker
}

// NewTrackerCollector creates a collector reading from t.
func NewTrackerCollector(t *tracker.Tracker) *TrackerCollector {
	return &TrackerCollector{tracker: t}
}

func (c *TrackerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descCandidates
	ch <- descStale
	ch <- descBBoxRejected
	ch <- descApproxRejected
	ch <- descExactRejected
	ch <- descHits
	ch <- descAgents
	ch <- descBuckets
}

func (c *TrackerCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.tracker.Stats()
	ch <- prometheus.MustNewConstMetric(descCandidates, prometheus.CounterValue, float64(stats.Candidates))
	ch <- prometheus.MustNewConstMetric(descStale, prometheus.CounterValue, float64(stats.Stale))
	ch <- prometheus.MustNewConstMetric(descBBoxRejected, prometheus.CounterValue, float64(stats.BBoxRejected))
	ch <- prometheus.MustNewConstMetric(descApproxRejected, prometheus.CounterValue, float64(stats.ApproxRejected))
	ch <- prometheus.MustNewConstMetric(descExactRejected, prometheus.CounterValue, float64(stats.ExactRejected))
	ch <- prometheus.MustNewConstMetric(descHits, prometheus.CounterValue, float64(stats.Hits))
	ch <- prometheus.MustNewConstMetric(descAgents, prometheus.GaugeValue, float64(c.tracker.Agents()))
	ch <- prometheus.MustNewConstMetric(descBuckets, prometheus.GaugeValue, float64(c.tracker.Buckets()))
}
