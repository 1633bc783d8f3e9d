package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const (
	eventBuffer  = 64
	workerBuffer = 16
)

type subscriber interface {
	SubscribeStateChanges(ctx context.Context, entityIDs []string, handler func(model.StateChange)) (func(), error)
}

type cameraResolver interface {
	CameraFor(doorbellID string) string
}

// Handler consumes trigger events. It must not retain the event past the call.
type Handler interface {
	Handle(ctx context.Context, event model.TriggerEvent)
}

type Monitor struct {
	platform subscriber
	cameras  cameraResolver
	handler  Handler
	debounce time.Duration
	logger   *zap.Logger
	now      func() time.Time
	loc      *time.Location

	mu            sync.Mutex
	ledger        map[string]time.Time
	doorbells     map[string]model.DoorbellCandidate
	triggersToday int
	countedDay    time.Time
	current       *session
}

type session struct {
	cancel      context.CancelFunc
	unsubscribe func()
	events      chan model.StateChange
	stopping    chan struct{}
	done        chan struct{}
}

func New(platform subscriber, cameras cameraResolver, handler Handler, debounce time.Duration) *Monitor {
	return &Monitor{
		platform:  platform,
		cameras:   cameras,
		handler:   handler,
		debounce:  debounce,
		logger:    zap.L(),
		now:       time.Now,
		loc:       time.Local,
		ledger:    make(map[string]time.Time),
		doorbells: make(map[string]model.DoorbellCandidate),
	}
}

// Start subscribes to the given doorbells, replacing any earlier subscription.
// The debounce ledger is kept across restarts.
func (m *Monitor) Start(ctx context.Context, doorbells []model.DoorbellCandidate) error {
	m.Stop()

	m.mu.Lock()
	m.doorbells = lo.SliceToMap(doorbells, func(d model.DoorbellCandidate) (string, model.DoorbellCandidate) {
		return d.EntityID, d
	})
	m.mu.Unlock()

	if len(doorbells) == 0 {
		m.logger.Warn("no doorbell entities to monitor")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		cancel:   cancel,
		events:   make(chan model.StateChange, eventBuffer),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
	}
	ids := lo.Map(doorbells, func(d model.DoorbellCandidate, _ int) string { return d.EntityID })

	// The callback runs on the platform read loop and must never block it.
	unsubscribe, err := m.platform.SubscribeStateChanges(runCtx, ids, func(change model.StateChange) {
		select {
		case <-s.stopping:
			return
		default:
		}
		select {
		case s.events <- change:
		default:
			m.logger.Warn("dropping doorbell state change, monitor queue is full", zap.String("entity_id", change.EntityID))
		}
	})
	if err != nil {
		cancel()
		return fmt.Errorf("subscribe to doorbell state changes: %w", err)
	}
	s.unsubscribe = unsubscribe

	go m.loop(runCtx, s)

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.logger.Info("monitoring doorbells", zap.Strings("doorbell_entities", ids), zap.Duration("debounce", m.debounce))
	return nil
}

// Stop unsubscribes, evaluates whatever was already received and waits for
// in-flight sagas to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()
	s := m.current
	m.current = nil
	m.mu.Unlock()
	if s == nil {
		return
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	close(s.stopping)
	<-s.done
	s.cancel()
	m.logger.Info("doorbell monitoring stopped")
}

// Statistics returns the number of triggers accepted today and the latest trigger time.
func (m *Monitor) Statistics() (int, *time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	today := m.triggersToday
	if !sameDay(m.countedDay, m.now(), m.loc) {
		today = 0
	}
	var last *time.Time
	for _, t := range m.ledger {
		if last == nil || t.After(*last) {
			last = &t
		}
	}
	return today, last
}

func (m *Monitor) loop(ctx context.Context, s *session) {
	workers := make(map[string]chan model.TriggerEvent)
	var wg sync.WaitGroup
	sagaCtx := context.WithoutCancel(ctx)

	defer func() {
		for _, q := range workers {
			close(q)
		}
		wg.Wait()
		close(s.done)
	}()

	enqueue := func(change model.StateChange) bool {
		event, ok := m.safeEvaluate(change)
		if !ok {
			return true
		}
		q, exists := workers[event.DoorbellID]
		if !exists {
			q = make(chan model.TriggerEvent, workerBuffer)
			workers[event.DoorbellID] = q
			wg.Add(1)
			go func() {
				defer wg.Done()
				for ev := range q {
					m.dispatch(sagaCtx, ev)
				}
			}()
		}
		select {
		case q <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case change := <-s.events:
			if !enqueue(change) {
				return
			}
		case <-s.stopping:
			for {
				select {
				case change := <-s.events:
					if !enqueue(change) {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (m *Monitor) safeEvaluate(change model.StateChange) (ev model.TriggerEvent, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while evaluating state change", zap.String("entity_id", change.EntityID), zap.Any("panic", r))
			ok = false
		}
	}()
	return m.evaluate(change)
}

func (m *Monitor) dispatch(ctx context.Context, event model.TriggerEvent) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("panic while handling doorbell trigger", zap.String("doorbell_entity", event.DoorbellID), zap.Any("panic", r))
		}
	}()
	m.handler.Handle(ctx, event)
}

func (m *Monitor) evaluate(change model.StateChange) (model.TriggerEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	candidate, monitored := m.doorbells[change.EntityID]
	if !monitored || change.NewState == nil {
		return model.TriggerEvent{}, false
	}
	newState := normalizeState(change.NewState.State)
	accepted := lo.ContainsBy(candidate.TriggerStates, func(s string) bool {
		return normalizeState(s) == newState
	})
	if !accepted {
		return model.TriggerEvent{}, false
	}
	if change.OldState != nil && normalizeState(change.OldState.State) == newState {
		return model.TriggerEvent{}, false
	}

	now := change.FiredAt
	if now.IsZero() {
		now = m.now()
	}
	if last, seen := m.ledger[change.EntityID]; seen && now.Sub(last) < m.debounce {
		m.logger.Debug("trigger debounced", zap.String("doorbell_entity", change.EntityID), zap.Duration("since_last", now.Sub(last)))
		return model.TriggerEvent{}, false
	}
	m.ledger[change.EntityID] = now

	if !sameDay(m.countedDay, now, m.loc) {
		m.countedDay = now
		m.triggersToday = 0
	}
	m.triggersToday++

	event := model.TriggerEvent{
		DoorbellID:   change.EntityID,
		CameraID:     m.cameras.CameraFor(change.EntityID),
		TriggerState: change.NewState.State,
		TriggeredAt:  now,
		Attributes:   change.NewState.Attributes,
	}
	m.logger.Info("doorbell triggered", zap.String("doorbell_entity", event.DoorbellID), zap.String("camera_entity", event.CameraID), zap.String("state", event.TriggerState))
	return event, true
}

func normalizeState(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// sameDay compares calendar days in loc. Platform timestamps arrive in UTC.
func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
