package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockAutomation struct{ stats model.Statistics }

func (m *MockAutomation) Statistics() model.Statistics { return m.stats }

type MockSnapshots struct{ stats model.SnapshotStatistics }

func (m *MockSnapshots) Statistics() model.SnapshotStatistics { return m.stats }

type MockDetector struct{ stats model.DetectorStatistics }

func (m *MockDetector) Statistics() model.DetectorStatistics { return m.stats }

func TestCollector(t *testing.T) {
	last := time.Unix(1767225600, 0)
	automation := &MockAutomation{stats: model.Statistics{
		EventsProcessed:    5,
		SuccessfulEvents:   4,
		FailedEvents:       1,
		BackendSubmissions: 3,
		BackendFailures:    1,
		LastEventTime:      &last,
	}}
	snapshots := &MockSnapshots{stats: model.SnapshotStatistics{Taken: 3, Failed: 1, SuccessRate: 75}}
	detector := &MockDetector{stats: model.DetectorStatistics{Enabled: true, Doorbells: 2, Cameras: 3, Pairs: 2, TriggersToday: 4}}

	registry := prometheus.NewRegistry()
	c, err := NewCollector(registry, automation, snapshots, detector)
	require.NoError(t, err)

	expected := `
# HELP whorang_events_total Finished doorbell automations by outcome.
# TYPE whorang_events_total counter
whorang_events_total{outcome="failure"} 1
whorang_events_total{outcome="success"} 4
# HELP whorang_entities_detected Classified entities by kind.
# TYPE whorang_entities_detected gauge
whorang_entities_detected{kind="camera"} 3
whorang_entities_detected{kind="doorbell"} 2
# HELP whorang_detection_enabled 1 when automatic detection is enabled.
# TYPE whorang_detection_enabled gauge
whorang_detection_enabled 1
# HELP whorang_last_event_timestamp_seconds Unix time of the last doorbell event.
# TYPE whorang_last_event_timestamp_seconds gauge
whorang_last_event_timestamp_seconds 1.7672256e+09
`
	assert.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected),
		"whorang_events_total", "whorang_entities_detected", "whorang_detection_enabled", "whorang_last_event_timestamp_seconds"))
	assert.Equal(t, 14, testutil.CollectAndCount(c))

	_, err = NewCollector(registry, automation, snapshots, detector)
	assert.Error(t, err)
}

func TestCollector_NoEventsYet(t *testing.T) {
	registry := prometheus.NewRegistry()
	c, err := NewCollector(registry, &MockAutomation{}, &MockSnapshots{}, &MockDetector{})
	require.NoError(t, err)
	assert.Equal(t, 13, testutil.CollectAndCount(c))
	assert.Equal(t, 0, testutil.CollectAndCount(c, "whorang_last_event_timestamp_seconds"))
}
