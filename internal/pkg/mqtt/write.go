package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

const (
	discoveryPrefix = "homeassistant"
	nodeID          = "whorang_doorbell"
	StateTopic      = "whorang/doorbell/state"
)

var errPublishTimeout = errors.New("mqtt publish timed out")

type discoveryEntity struct {
	component string
	name      string
	message   model.RegisterMessage
}

func discoveryEntities() []discoveryEntity {
	return []discoveryEntity{
		{
			component: "binary_sensor",
			name:      "Doorbell Triggered",
			message: model.RegisterMessage{
				ValueTemplate: "{{ 'ON' if value_json.doorbell_state.is_triggered else 'OFF' }}",
				DeviceClass:   "occupancy",
				PayloadOn:     "ON",
				PayloadOff:    "OFF",
			},
		},
		{
			component: "sensor",
			name:      "Latest Image",
			message: model.RegisterMessage{
				ValueTemplate: "{{ value_json.latest_image.url if value_json.latest_image is defined else '' }}",
				Icon:          "mdi:camera",
			},
		},
		{
			component: "sensor",
			name:      "Last Event",
			message: model.RegisterMessage{
				ValueTemplate:       "{{ value_json.last_automation_event.timestamp }}",
				DeviceClass:         "timestamp",
				Icon:                "mdi:doorbell",
				JSONAttributesTopic: StateTopic,
			},
		},
	}
}

func objectID(name string) string {
	return strings.ReplaceAll(slug.Make(name), "-", "_")
}

// RegisterDevice publishes retained discovery configs so home assistant creates the entities.
func (s *service) RegisterDevice() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registered {
		return nil
	}
	device := model.RegisterDevice{
		Name:         "WhoRang Doorbell",
		Identifiers:  []string{nodeID},
		Model:        "Intelligent Doorbell Automation",
		Manufacturer: "WhoRang",
	}
	for _, e := range discoveryEntities() {
		id := objectID(e.name)
		msg := e.message
		msg.Name = e.name
		msg.ID = nodeID + "_" + id
		msg.ObjectID = nodeID + "_" + id
		msg.StateTopic = StateTopic
		msg.Device = device

		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%s/%s/%s/config", discoveryPrefix, e.component, nodeID, id)
		if err := s.publish(topic, 1, true, payload); err != nil {
			return fmt.Errorf("register %s: %w", topic, err)
		}
		s.logger.Debug("registered entity", zap.String("topic", topic))
	}
	s.registered = true
	return nil
}

// Publish writes the local state, registering the device first if needed.
func (s *service) Publish(ctx context.Context, state model.LocalState) error {
	if err := s.RegisterDevice(); err != nil {
		return err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.publish(StateTopic, 0, true, payload)
}

func (s *service) publish(topic string, qos byte, retained bool, payload []byte) error {
	token := s.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(time.Second * 5) {
		return errPublishTimeout
	}
	return token.Error()
}
