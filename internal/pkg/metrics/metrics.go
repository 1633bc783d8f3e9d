// Package metrics exports doorbell statistics to prometheus.
package metrics

import (
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "whorang"

type automationStats interface {
	Statistics() model.Statistics
}

type snapshotStats interface {
	Statistics() model.SnapshotStatistics
}

type detectorStats interface {
	Statistics() model.DetectorStatistics
}

// Collector reads component statistics on every scrape, so nothing has to be pushed.
type Collector struct {
	automation automationStats
	snapshots  snapshotStats
	detector   detectorStats

	eventsProcessed *prometheus.Desc
	events          *prometheus.Desc
	backend         *prometheus.Desc
	lastEvent       *prometheus.Desc
	snapshotsTotal  *prometheus.Desc
	snapshotRate    *prometheus.Desc
	entities        *prometheus.Desc
	pairs           *prometheus.Desc
	triggersToday   *prometheus.Desc
	enabled         *prometheus.Desc
}

// NewCollector creates the collector and registers it.
func NewCollector(registry *prometheus.Registry, automation automationStats, snapshots snapshotStats, detector detectorStats) (*Collector, error) {
	c := &Collector{
		automation: automation,
		snapshots:  snapshots,
		detector:   detector,

		eventsProcessed: desc("events_processed_total", "Doorbell events handed to the automation engine."),
		events:          desc("events_total", "Finished doorbell automations by outcome.", "outcome"),
		backend:         desc("backend_submissions_total", "Backend webhook submissions by outcome.", "outcome"),
		lastEvent:       desc("last_event_timestamp_seconds", "Unix time of the last doorbell event."),
		snapshotsTotal:  desc("snapshots_total", "Camera snapshots by outcome.", "outcome"),
		snapshotRate:    desc("snapshot_success_rate", "Percentage of successful snapshots."),
		entities:        desc("entities_detected", "Classified entities by kind.", "kind"),
		pairs:           desc("pairs", "Doorbell to camera pairs."),
		triggersToday:   desc("triggers_today", "Accepted doorbell triggers since midnight."),
		enabled:         desc("detection_enabled", "1 when automatic detection is enabled."),
	}
	if err := registry.Register(c); err != nil {
		return nil, err
	}
	return c, nil
}

func desc(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.eventsProcessed, c.events, c.backend, c.lastEvent, c.snapshotsTotal,
		c.snapshotRate, c.entities, c.pairs, c.triggersToday, c.enabled,
	} {
		ch <- d
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	a := c.automation.Statistics()
	ch <- prometheus.MustNewConstMetric(c.eventsProcessed, prometheus.CounterValue, float64(a.EventsProcessed))
	ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(a.SuccessfulEvents), "success")
	ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(a.FailedEvents), "failure")
	ch <- prometheus.MustNewConstMetric(c.backend, prometheus.CounterValue, float64(a.BackendSubmissions), "accepted")
	ch <- prometheus.MustNewConstMetric(c.backend, prometheus.CounterValue, float64(a.BackendFailures), "failed")
	if a.LastEventTime != nil {
		ch <- prometheus.MustNewConstMetric(c.lastEvent, prometheus.GaugeValue, float64(a.LastEventTime.Unix()))
	}

	s := c.snapshots.Statistics()
	ch <- prometheus.MustNewConstMetric(c.snapshotsTotal, prometheus.CounterValue, float64(s.Taken), "taken")
	ch <- prometheus.MustNewConstMetric(c.snapshotsTotal, prometheus.CounterValue, float64(s.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.snapshotRate, prometheus.GaugeValue, s.SuccessRate)

	d := c.detector.Statistics()
	ch <- prometheus.MustNewConstMetric(c.entities, prometheus.GaugeValue, float64(d.Doorbells), "doorbell")
	ch <- prometheus.MustNewConstMetric(c.entities, prometheus.GaugeValue, float64(d.Cameras), "camera")
	ch <- prometheus.MustNewConstMetric(c.pairs, prometheus.GaugeValue, float64(d.Pairs))
	ch <- prometheus.MustNewConstMetric(c.triggersToday, prometheus.GaugeValue, float64(d.TriggersToday))
	enabled := 0.0
	if d.Enabled {
		enabled = 1
	}
	ch <- prometheus.MustNewConstMetric(c.enabled, prometheus.GaugeValue, enabled)
}
