package cmd

import (
	"context"
	"errors"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
)

// MockHomeAssistant is a mock implementation of the HomeAssistant interface.
type MockHomeAssistant struct {
	ConnectFunc               func(ctx context.Context) error
	DisconnectedFunc          func() <-chan error
	EntitiesFunc              func(ctx context.Context) ([]model.Entity, error)
	StatesFunc                func(ctx context.Context) ([]model.Entity, error)
	SubscribeStateChangesFunc func(ctx context.Context, entityIDs []string, handler func(model.StateChange)) (func(), error)
	FireEventFunc             func(ctx context.Context, eventType string, data any) error
	CameraImageFunc           func(ctx context.Context, entityID string) ([]byte, error)
}

func (m *MockHomeAssistant) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

func (m *MockHomeAssistant) Disconnected() <-chan error {
	if m.DisconnectedFunc != nil {
		return m.DisconnectedFunc()
	}
	// never fires, tests end through the context
	return make(chan error)
}

func (m *MockHomeAssistant) Close() error { return nil }

func (m *MockHomeAssistant) BaseURL() string { return "http://homeassistant.local:8123" }

func (m *MockHomeAssistant) Entities(ctx context.Context) ([]model.Entity, error) {
	if m.EntitiesFunc != nil {
		return m.EntitiesFunc(ctx)
	}
	return nil, nil
}

func (m *MockHomeAssistant) States(ctx context.Context) ([]model.Entity, error) {
	if m.StatesFunc != nil {
		return m.StatesFunc(ctx)
	}
	return nil, nil
}

func (m *MockHomeAssistant) SubscribeStateChanges(ctx context.Context, entityIDs []string, handler func(model.StateChange)) (func(), error) {
	if m.SubscribeStateChangesFunc != nil {
		return m.SubscribeStateChangesFunc(ctx, entityIDs, handler)
	}
	return func() {}, nil
}

func (m *MockHomeAssistant) FireEvent(ctx context.Context, eventType string, data any) error {
	if m.FireEventFunc != nil {
		return m.FireEventFunc(ctx, eventType, data)
	}
	return errors.New("mocked FireEvent not implemented")
}

func (m *MockHomeAssistant) CameraImage(ctx context.Context, entityID string) ([]byte, error) {
	if m.CameraImageFunc != nil {
		return m.CameraImageFunc(ctx, entityID)
	}
	return nil, errors.New("mocked CameraImage not implemented")
}
