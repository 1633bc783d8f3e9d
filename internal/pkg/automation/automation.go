package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const defaultTriggerState = "on"

var errPanic = errors.New("automation panicked")

type platform interface {
	States(ctx context.Context) ([]model.Entity, error)
	FireEvent(ctx context.Context, eventType string, data any) error
}

type snapshotter interface {
	Capture(ctx context.Context, cameraID string, delay time.Duration) (*model.SnapshotRecord, error)
}

type submitter interface {
	ProcessDoorbellEvent(ctx context.Context, payload model.DoorbellEventPayload) (bool, error)
}

type statePublisher interface {
	Publish(ctx context.Context, state model.LocalState) error
}

// Engine runs the doorbell saga: snapshot, backend submission, local state, events.
type Engine struct {
	cfg       config.AutomationConfig
	platform  platform
	camera    snapshotter
	backend   submitter
	publisher statePublisher
	weather   *cache.Cache
	logger    *zap.Logger
	now       func() time.Time

	mu    sync.Mutex
	stats model.Statistics
}

func New(cfg config.AutomationConfig, platform platform, camera snapshotter, backend submitter, publisher statePublisher) *Engine {
	return &Engine{
		cfg:       cfg,
		platform:  platform,
		camera:    camera,
		backend:   backend,
		publisher: publisher,
		weather:   cache.New(weatherTTL, 2*weatherTTL),
		logger:    zap.L(),
		now:       time.Now,
	}
}

// Handle runs the saga for one trigger. Failures only land in the statistics.
func (e *Engine) Handle(ctx context.Context, event model.TriggerEvent) {
	_ = e.process(ctx, event)
}

// TestAutomation runs the saga for a synthetic trigger and reports its outcome.
func (e *Engine) TestAutomation(ctx context.Context, doorbellID, cameraID string) error {
	return e.process(ctx, model.TriggerEvent{
		DoorbellID:   doorbellID,
		CameraID:     cameraID,
		TriggerState: defaultTriggerState,
		TriggeredAt:  e.now(),
		Test:         true,
	})
}

func (e *Engine) Statistics() model.Statistics {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := e.stats
	if stats.LastEventTime != nil {
		t := *stats.LastEventTime
		stats.LastEventTime = &t
	}
	return stats
}

func (e *Engine) process(ctx context.Context, event model.TriggerEvent) (err error) {
	started := e.now()
	e.mu.Lock()
	e.stats.EventsProcessed++
	e.stats.LastEventTime = &started
	e.mu.Unlock()

	logger := e.logger.With(zap.String("doorbell_entity", event.DoorbellID), zap.String("camera_entity", event.CameraID))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errPanic, r)
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if err != nil {
			e.stats.FailedEvents++
			e.stats.LastError = err.Error()
			logger.Error("doorbell automation failed", zap.Error(err))
			return
		}
		e.stats.SuccessfulEvents++
		logger.Info("doorbell automation completed", zap.Duration("took", e.now().Sub(started)))
	}()

	snapshot := e.snapshot(ctx, logger, event)
	submitted := e.submit(ctx, logger, event, snapshot)

	var errs []error
	if err := e.publisher.Publish(ctx, localState(event, snapshot, submitted)); err != nil {
		errs = append(errs, fmt.Errorf("publish state: %w", err))
	}
	if err := e.fireEvents(ctx, event, snapshot); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) snapshot(ctx context.Context, logger *zap.Logger, event model.TriggerEvent) *model.SnapshotRecord {
	if event.CameraID == "" {
		logger.Warn("doorbell has no paired camera, skipping snapshot")
		return nil
	}
	rec, err := e.camera.Capture(ctx, event.CameraID, e.cfg.SnapshotDelay)
	if err != nil {
		logger.Warn("snapshot failed", zap.Error(err))
		return nil
	}
	return rec
}

func (e *Engine) submit(ctx context.Context, logger *zap.Logger, event model.TriggerEvent, snapshot *model.SnapshotRecord) bool {
	if snapshot == nil {
		logger.Warn("no snapshot available, skipping backend submission")
		return false
	}
	payload := e.payload(ctx, event, snapshot)
	accepted, err := e.backend.ProcessDoorbellEvent(ctx, payload)

	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case err != nil:
		e.stats.BackendFailures++
		e.stats.LastError = err.Error()
		logger.Error("backend submission failed", zap.Error(err))
		return false
	case !accepted:
		e.stats.BackendFailures++
		e.stats.LastError = "backend rejected doorbell event"
		logger.Warn("backend rejected doorbell event")
		return false
	}
	e.stats.BackendSubmissions++
	return true
}

func (e *Engine) payload(ctx context.Context, event model.TriggerEvent, snapshot *model.SnapshotRecord) model.DoorbellEventPayload {
	location := e.cfg.Location
	if location == "" {
		location = model.DefaultLocation
	}
	template := e.cfg.PromptTemplate
	if template == "" {
		template = model.DefaultPromptTemplate
	}
	return model.DoorbellEventPayload{
		ImageURL:       snapshot.URL,
		Location:       location,
		AITitle:        model.DefaultAITitle,
		Timestamp:      event.TriggeredAt,
		Source:         model.AutomationSource,
		DoorbellEntity: event.DoorbellID,
		CameraEntity:   event.CameraID,
		TriggerState:   event.TriggerState,
		Test:           event.Test,
		WeatherContext: e.weatherContext(ctx),
		PromptConfig: model.PromptConfig{
			Template:       template,
			CustomPrompt:   e.cfg.CustomPrompt,
			WeatherEnabled: e.cfg.WeatherContext,
		},
	}
}

func localState(event model.TriggerEvent, snapshot *model.SnapshotRecord, submitted bool) model.LocalState {
	state := model.LocalState{
		Doorbell: model.DoorbellState{
			IsTriggered:         true,
			LastTriggered:       event.TriggeredAt,
			TriggerSource:       model.TriggerSourceAutomated,
			AutomationTriggered: true,
		},
		LastEvent: model.AutomationEvent{
			DoorbellEntity:   event.DoorbellID,
			CameraEntity:     event.CameraID,
			Timestamp:        event.TriggeredAt,
			BackendSubmitted: submitted,
			Source:           model.AutomationSource,
		},
	}
	if snapshot != nil {
		url := snapshot.URL
		state.LastEvent.SnapshotURL = &url
		state.LatestImage = &model.LatestImage{
			URL:       snapshot.URL,
			Filename:  snapshot.Filename,
			Timestamp: snapshot.CapturedAt,
			Source:    model.AutomationSource,
		}
	}
	return state
}

func (e *Engine) fireEvents(ctx context.Context, event model.TriggerEvent, snapshot *model.SnapshotRecord) error {
	detected := model.DoorbellDetectedEvent{
		DoorbellEntity:   event.DoorbellID,
		CameraEntity:     event.CameraID,
		TriggerTime:      event.TriggeredAt,
		TriggerState:     event.TriggerState,
		SnapshotCaptured: snapshot != nil,
		AutomationSource: model.AutomationSource,
	}
	if snapshot != nil {
		url := snapshot.URL
		detected.SnapshotURL = &url
	}
	if err := e.platform.FireEvent(ctx, model.EventDoorbellDetected, detected); err != nil {
		return fmt.Errorf("fire %s: %w", model.EventDoorbellDetected, err)
	}
	if snapshot == nil {
		return nil
	}
	if err := e.platform.FireEvent(ctx, model.EventSnapshotCaptured, model.SnapshotCapturedEvent{
		CameraEntity: snapshot.CameraID,
		Filename:     snapshot.Filename,
		URL:          snapshot.URL,
		FileSize:     snapshot.Size,
		Timestamp:    snapshot.CapturedAt,
	}); err != nil {
		return fmt.Errorf("fire %s: %w", model.EventSnapshotCaptured, err)
	}
	return nil
}
