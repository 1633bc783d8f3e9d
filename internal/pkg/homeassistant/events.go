package homeassistant

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SubscribeStateChanges delivers state_changed events for the given entities, in
// the order the server sent them. The returned func cancels the subscription.
func (s *service) SubscribeStateChanges(ctx context.Context, entityIDs []string, handler func(model.StateChange)) (func(), error) {
	wanted := lo.SliceToMap(entityIDs, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	id := s.lastID.Add(1)

	s.mu.Lock()
	s.subscriptions[id] = func(raw json.RawMessage) {
		var ev stateChangedEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			s.logger.Warn("unreadable state_changed event", zap.Error(err))
			return
		}
		if _, ok := wanted[ev.Data.EntityID]; !ok {
			return
		}
		handler(model.StateChange{
			EntityID: ev.Data.EntityID,
			OldState: ev.Data.OldState,
			NewState: ev.Data.NewState,
			FiredAt:  ev.TimeFired,
		})
	}
	s.mu.Unlock()

	if _, err := s.commandWithID(ctx, id, cmdSubscribeEvents, map[string]any{"event_type": eventStateChanged}); err != nil {
		s.mu.Lock()
		delete(s.subscriptions, id)
		s.mu.Unlock()
		return nil, err
	}

	return func() {
		s.mu.Lock()
		delete(s.subscriptions, id)
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := s.command(ctx, cmdUnsubscribe, map[string]any{"subscription": id}); err != nil {
			s.logger.Debug("unsubscribe failed", zap.Int64("subscription", id), zap.Error(err))
		}
	}, nil
}

// FireEvent fires a custom event on the home assistant event bus.
func (s *service) FireEvent(ctx context.Context, eventType string, data any) error {
	_, err := s.command(ctx, cmdFireEvent, map[string]any{
		"event_type": eventType,
		"event_data": data,
	})
	return err
}
