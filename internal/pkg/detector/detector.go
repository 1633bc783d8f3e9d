package detector

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/anicoll/doorbell-integration/internal/pkg/pairing"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

var (
	ErrNotRunning  = errors.New("doorbell detection is not running")
	ErrNotDoorbell = errors.New("entity is not a detected doorbell")
)

const manualRule = "manual"

type platform interface {
	Entities(ctx context.Context) ([]model.Entity, error)
}

type pairStore interface {
	SaveManualPair(ctx context.Context, pair model.Pair) error
	DeleteManualPairs(ctx context.Context) error
	ManualPairs(ctx context.Context) ([]model.Pair, error)
}

type triggerMonitor interface {
	Start(ctx context.Context, doorbells []model.DoorbellCandidate) error
	Stop()
	Statistics() (int, *time.Time)
}

type automation interface {
	TestAutomation(ctx context.Context, doorbellID, cameraID string) error
}

// Detector ties classification, pairing and monitoring together for one platform connection.
type Detector struct {
	cfg        config.AutomationConfig
	platform   platform
	classifier *Classifier
	pairs      *pairing.Engine
	store      pairStore
	monitor    triggerMonitor
	automation automation
	logger     *zap.Logger

	mu       sync.Mutex
	runCtx   context.Context
	restored bool
	known    map[string]struct{}
	detected Classification
}

// New wires a detector. store may be nil when no event store is configured.
func New(cfg config.AutomationConfig, platform platform, pairs *pairing.Engine, store pairStore, monitor triggerMonitor, automation automation) *Detector {
	return &Detector{
		cfg:        cfg,
		platform:   platform,
		classifier: NewClassifier(cfg.Sensitivity.MinPriority()),
		pairs:      pairs,
		store:      store,
		monitor:    monitor,
		automation: automation,
		logger:     zap.L(),
		known:      make(map[string]struct{}),
	}
}

// Setup discovers entities and starts monitoring. ctx bounds the monitoring lifetime.
func (d *Detector) Setup(ctx context.Context) error {
	if !d.cfg.AutoDetection {
		d.logger.Info("automatic doorbell detection disabled")
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.runCtx = ctx

	if d.store != nil && !d.restored {
		pairs, err := d.store.ManualPairs(ctx)
		if err != nil {
			d.logger.Warn("unable to load manual pairs", zap.Error(err))
		} else {
			d.pairs.Restore(pairs)
			d.restored = true
		}
	}
	return d.discover(ctx)
}

// Rediscover re-classifies all entities and restarts monitoring. resetManual drops manual pairs.
func (d *Detector) Rediscover(ctx context.Context, resetManual bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runCtx == nil {
		return ErrNotRunning
	}
	if resetManual {
		if d.store != nil {
			if err := d.store.DeleteManualPairs(ctx); err != nil {
				return fmt.Errorf("delete manual pairs: %w", err)
			}
		}
		d.pairs.ClearManual()
	}
	return d.discover(ctx)
}

// discover must be called with d.mu held.
func (d *Detector) discover(ctx context.Context) error {
	entities, err := d.platform.Entities(ctx)
	if err != nil {
		return fmt.Errorf("list entities: %w", err)
	}
	cls := d.classifier.Classify(entities)
	d.known = lo.SliceToMap(entities, func(e model.Entity) (string, struct{}) {
		return e.EntityID, struct{}{}
	})

	pairs := d.pairs.Rebuild(cls.Doorbells, cls.Cameras, d.exists)
	cls.Doorbells = withManualDoorbells(cls.Doorbells, pairs)
	d.detected = cls

	d.logger.Info("doorbell discovery complete",
		zap.Int("doorbells", len(cls.Doorbells)),
		zap.Int("cameras", len(cls.Cameras)),
		zap.Int("pairs", len(pairs)),
		zap.String("sensitivity", string(d.cfg.Sensitivity)),
	)
	return d.monitor.Start(d.runCtx, cls.Doorbells)
}

func (d *Detector) exists(entityID string) bool {
	_, ok := d.known[entityID]
	return ok
}

// withManualDoorbells adds doorbells that only appear through a manual pair.
func withManualDoorbells(doorbells []model.DoorbellCandidate, pairs []model.Pair) []model.DoorbellCandidate {
	out := slices.Clone(doorbells)
	for _, p := range pairs {
		if !p.Manual || slices.ContainsFunc(out, func(c model.DoorbellCandidate) bool { return c.EntityID == p.DoorbellID }) {
			continue
		}
		out = append(out, model.DoorbellCandidate{
			EntityID:      p.DoorbellID,
			MatchedRule:   manualRule,
			Priority:      100,
			TriggerStates: []string{"on"},
			DisplayName:   p.DoorbellID,
		})
	}
	slices.SortFunc(out, func(a, b model.DoorbellCandidate) int {
		return cmp.Compare(a.EntityID, b.EntityID)
	})
	return out
}

// ManualPair links a doorbell to a camera and persists the choice.
func (d *Detector) ManualPair(ctx context.Context, doorbellID, cameraID string) (model.Pair, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.runCtx == nil {
		return model.Pair{}, ErrNotRunning
	}
	pair, err := pairing.NewManualPair(doorbellID, cameraID, d.exists)
	if err != nil {
		return model.Pair{}, err
	}
	// Persisted first so a failed save leaves the live pairing untouched.
	if d.store != nil {
		if err := d.store.SaveManualPair(ctx, pair); err != nil {
			return model.Pair{}, fmt.Errorf("save manual pair: %w", err)
		}
	}
	d.pairs.Restore([]model.Pair{pair})

	doorbells := withManualDoorbells(d.detected.Doorbells, []model.Pair{pair})
	if len(doorbells) != len(d.detected.Doorbells) {
		d.detected.Doorbells = doorbells
		if err := d.monitor.Start(d.runCtx, doorbells); err != nil {
			return model.Pair{}, err
		}
	}
	d.logger.Info("manual pair created", zap.String("doorbell_entity", doorbellID), zap.String("camera_entity", cameraID))
	return pair, nil
}

// TestDoorbell runs the automation for a detected doorbell without waiting for a trigger.
func (d *Detector) TestDoorbell(ctx context.Context, doorbellID string) error {
	d.mu.Lock()
	found := slices.ContainsFunc(d.detected.Doorbells, func(c model.DoorbellCandidate) bool { return c.EntityID == doorbellID })
	d.mu.Unlock()
	if !found {
		return fmt.Errorf("%w: %s", ErrNotDoorbell, doorbellID)
	}
	return d.automation.TestAutomation(ctx, doorbellID, d.pairs.CameraFor(doorbellID))
}

func (d *Detector) DetectedEntities() model.DetectedEntities {
	d.mu.Lock()
	defer d.mu.Unlock()
	return model.DetectedEntities{
		Doorbells: slices.Clone(d.detected.Doorbells),
		Cameras:   slices.Clone(d.detected.Cameras),
		Pairs:     d.pairs.Pairs(),
	}
}

func (d *Detector) Statistics() model.DetectorStatistics {
	d.mu.Lock()
	doorbells, cameras := len(d.detected.Doorbells), len(d.detected.Cameras)
	d.mu.Unlock()
	today, last := d.monitor.Statistics()
	return model.DetectorStatistics{
		Enabled:       d.cfg.AutoDetection,
		Sensitivity:   string(d.cfg.Sensitivity),
		Doorbells:     doorbells,
		Cameras:       cameras,
		Pairs:         len(d.pairs.Pairs()),
		TriggersToday: today,
		LastTrigger:   last,
	}
}

// Shutdown stops monitoring. Setup may be called again afterwards.
func (d *Detector) Shutdown() {
	d.monitor.Stop()
	d.mu.Lock()
	d.runCtx = nil
	d.mu.Unlock()
}
