package cmd

import (
	"context"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
)

// HomeAssistant is the platform connection run drives. It is shared by every component.
type HomeAssistant interface {
	Connect(ctx context.Context) error
	Disconnected() <-chan error
	Close() error
	BaseURL() string
	Entities(ctx context.Context) ([]model.Entity, error)
	States(ctx context.Context) ([]model.Entity, error)
	SubscribeStateChanges(ctx context.Context, entityIDs []string, handler func(model.StateChange)) (func(), error)
	FireEvent(ctx context.Context, eventType string, data any) error
	CameraImage(ctx context.Context, entityID string) ([]byte, error)
}

// EventStore persists automation events and manual pairs.
type EventStore interface {
	Publish(ctx context.Context, state model.LocalState) error
	Recent(ctx context.Context, limit int) ([]model.AutomationEvent, error)
	SaveManualPair(ctx context.Context, pair model.Pair) error
	DeleteManualPairs(ctx context.Context) error
	ManualPairs(ctx context.Context) ([]model.Pair, error)
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}
