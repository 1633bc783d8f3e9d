package detector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/anicoll/doorbell-integration/internal/pkg/pairing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockPlatform struct {
	EntitiesFunc func(ctx context.Context) ([]model.Entity, error)
}

func (m *MockPlatform) Entities(ctx context.Context) ([]model.Entity, error) {
	return m.EntitiesFunc(ctx)
}

type MockStore struct {
	ManualPairsFunc       func(ctx context.Context) ([]model.Pair, error)
	SaveManualPairFunc    func(ctx context.Context, pair model.Pair) error
	DeleteManualPairsFunc func(ctx context.Context) error
	saved                 []model.Pair
	deleted               int
}

func (m *MockStore) SaveManualPair(ctx context.Context, pair model.Pair) error {
	if m.SaveManualPairFunc != nil {
		if err := m.SaveManualPairFunc(ctx, pair); err != nil {
			return err
		}
	}
	m.saved = append(m.saved, pair)
	return nil
}

func (m *MockStore) DeleteManualPairs(ctx context.Context) error {
	if m.DeleteManualPairsFunc != nil {
		if err := m.DeleteManualPairsFunc(ctx); err != nil {
			return err
		}
	}
	m.deleted++
	return nil
}

func (m *MockStore) ManualPairs(ctx context.Context) ([]model.Pair, error) {
	if m.ManualPairsFunc != nil {
		return m.ManualPairsFunc(ctx)
	}
	return nil, nil
}

type MockMonitor struct {
	starts  [][]model.DoorbellCandidate
	stopped int
	today   int
	last    *time.Time
}

func (m *MockMonitor) Start(_ context.Context, doorbells []model.DoorbellCandidate) error {
	m.starts = append(m.starts, doorbells)
	return nil
}

func (m *MockMonitor) Stop() { m.stopped++ }

func (m *MockMonitor) Statistics() (int, *time.Time) { return m.today, m.last }

type MockAutomation struct {
	calls [][2]string
}

func (m *MockAutomation) TestAutomation(_ context.Context, doorbellID, cameraID string) error {
	m.calls = append(m.calls, [2]string{doorbellID, cameraID})
	return nil
}

type fixture struct {
	detector   *Detector
	entities   []model.Entity
	store      *MockStore
	monitor    *MockMonitor
	automation *MockAutomation
}

func newFixture(t *testing.T, cfg config.AutomationConfig) *fixture {
	f := &fixture{
		entities: []model.Entity{
			{EntityID: "binary_sensor.front_doorbell", State: "off"},
			{EntityID: "camera.front_doorbell_camera", State: "idle"},
			{EntityID: "camera.garage", State: "idle"},
			{EntityID: "binary_sensor.garage_motion", State: "off", Attributes: model.Attributes{DeviceClass: "motion"}},
		},
		store:      &MockStore{},
		monitor:    &MockMonitor{},
		automation: &MockAutomation{},
	}
	platform := &MockPlatform{EntitiesFunc: func(context.Context) ([]model.Entity, error) {
		return f.entities, nil
	}}
	f.detector = New(cfg, platform, pairing.NewEngine(), f.store, f.monitor, f.automation)
	f.detector.logger = zaptest.NewLogger(t)
	return f
}

func enabled() config.AutomationConfig {
	return config.AutomationConfig{AutoDetection: true, Sensitivity: config.SensitivityMedium}
}

func TestSetup(t *testing.T) {
	f := newFixture(t, enabled())

	require.NoError(t, f.detector.Setup(context.Background()))

	detected := f.detector.DetectedEntities()
	require.Len(t, detected.Doorbells, 1)
	assert.Equal(t, "binary_sensor.front_doorbell", detected.Doorbells[0].EntityID)
	assert.Len(t, detected.Cameras, 1)
	require.Len(t, detected.Pairs, 1)
	assert.Equal(t, "camera.front_doorbell_camera", detected.Pairs[0].CameraID)
	assert.GreaterOrEqual(t, detected.Pairs[0].Score, 100)

	require.Len(t, f.monitor.starts, 1)
	assert.Equal(t, detected.Doorbells, f.monitor.starts[0])
}

func TestSetup_Disabled(t *testing.T) {
	f := newFixture(t, config.AutomationConfig{})

	require.NoError(t, f.detector.Setup(context.Background()))

	assert.Empty(t, f.monitor.starts)
	assert.ErrorIs(t, f.detector.Rediscover(context.Background(), false), ErrNotRunning)
	assert.False(t, f.detector.Statistics().Enabled)
}

func TestSetup_PlatformError(t *testing.T) {
	f := newFixture(t, enabled())
	errDown := errors.New("not connected")
	f.detector.platform = &MockPlatform{EntitiesFunc: func(context.Context) ([]model.Entity, error) {
		return nil, errDown
	}}

	assert.ErrorIs(t, f.detector.Setup(context.Background()), errDown)
}

func TestSetup_RestoresManualPairsOnce(t *testing.T) {
	f := newFixture(t, enabled())
	loads := 0
	f.store.ManualPairsFunc = func(context.Context) ([]model.Pair, error) {
		loads++
		return []model.Pair{{DoorbellID: "binary_sensor.front_doorbell", CameraID: "camera.garage"}}, nil
	}

	require.NoError(t, f.detector.Setup(context.Background()))
	f.detector.Shutdown()
	require.NoError(t, f.detector.Setup(context.Background()))

	assert.Equal(t, 1, loads)
	pairs := f.detector.DetectedEntities().Pairs
	require.Len(t, pairs, 1)
	assert.Equal(t, "camera.garage", pairs[0].CameraID)
	assert.True(t, pairs[0].Manual)
	assert.Equal(t, 1, f.monitor.stopped)
}

func TestManualPair(t *testing.T) {
	f := newFixture(t, enabled())
	require.NoError(t, f.detector.Setup(context.Background()))

	pair, err := f.detector.ManualPair(context.Background(), "binary_sensor.front_doorbell", "camera.garage")
	require.NoError(t, err)
	assert.True(t, pair.Manual)
	assert.Equal(t, []model.Pair{pair}, f.store.saved)
	assert.Len(t, f.monitor.starts, 1)

	_, err = f.detector.ManualPair(context.Background(), "binary_sensor.front_doorbell", "camera.missing")
	assert.ErrorIs(t, err, pairing.ErrEntityNotFound)

	// a doorbell that was not classified starts being monitored
	_, err = f.detector.ManualPair(context.Background(), "binary_sensor.garage_motion", "camera.garage")
	require.NoError(t, err)
	require.Len(t, f.monitor.starts, 2)
	assert.Len(t, f.monitor.starts[1], 2)

	// and stays monitored after rediscovery
	require.NoError(t, f.detector.Rediscover(context.Background(), false))
	assert.Len(t, f.detector.DetectedEntities().Doorbells, 2)

	require.NoError(t, f.detector.Rediscover(context.Background(), true))
	assert.Equal(t, 1, f.store.deleted)
	detected := f.detector.DetectedEntities()
	assert.Len(t, detected.Doorbells, 1)
	require.Len(t, detected.Pairs, 1)
	assert.Equal(t, "camera.front_doorbell_camera", detected.Pairs[0].CameraID)
}

func TestManualPair_SaveFailureKeepsAutomaticPair(t *testing.T) {
	f := newFixture(t, enabled())
	require.NoError(t, f.detector.Setup(context.Background()))
	errDB := errors.New("connection reset")
	f.store.SaveManualPairFunc = func(context.Context, model.Pair) error { return errDB }

	_, err := f.detector.ManualPair(context.Background(), "binary_sensor.front_doorbell", "camera.garage")
	require.ErrorIs(t, err, errDB)

	pair, ok := f.detector.pairs.Lookup("binary_sensor.front_doorbell")
	require.True(t, ok)
	assert.Equal(t, "camera.front_doorbell_camera", pair.CameraID)
	assert.False(t, pair.Manual)
	assert.Empty(t, f.store.saved)
	assert.Len(t, f.monitor.starts, 1)
}

func TestRediscover_DeleteFailureKeepsManualPairs(t *testing.T) {
	f := newFixture(t, enabled())
	require.NoError(t, f.detector.Setup(context.Background()))
	_, err := f.detector.ManualPair(context.Background(), "binary_sensor.front_doorbell", "camera.garage")
	require.NoError(t, err)
	errDB := errors.New("connection reset")
	f.store.DeleteManualPairsFunc = func(context.Context) error { return errDB }

	require.ErrorIs(t, f.detector.Rediscover(context.Background(), true), errDB)

	pair, ok := f.detector.pairs.Lookup("binary_sensor.front_doorbell")
	require.True(t, ok)
	assert.True(t, pair.Manual)
	assert.Equal(t, "camera.garage", pair.CameraID)
	assert.Zero(t, f.store.deleted)
}

func TestManualPair_NotRunning(t *testing.T) {
	f := newFixture(t, enabled())
	_, err := f.detector.ManualPair(context.Background(), "binary_sensor.front_doorbell", "camera.garage")
	assert.ErrorIs(t, err, ErrNotRunning)
}

func TestTestDoorbell(t *testing.T) {
	f := newFixture(t, enabled())
	require.NoError(t, f.detector.Setup(context.Background()))

	require.NoError(t, f.detector.TestDoorbell(context.Background(), "binary_sensor.front_doorbell"))
	assert.Equal(t, [][2]string{{"binary_sensor.front_doorbell", "camera.front_doorbell_camera"}}, f.automation.calls)

	assert.ErrorIs(t, f.detector.TestDoorbell(context.Background(), "binary_sensor.garage_motion"), ErrNotDoorbell)
}

func TestStatistics(t *testing.T) {
	f := newFixture(t, enabled())
	last := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	f.monitor.today = 3
	f.monitor.last = &last
	require.NoError(t, f.detector.Setup(context.Background()))

	assert.Equal(t, model.DetectorStatistics{
		Enabled:       true,
		Sensitivity:   "medium",
		Doorbells:     1,
		Cameras:       1,
		Pairs:         1,
		TriggersToday: 3,
		LastTrigger:   &last,
	}, f.detector.Statistics())
}
