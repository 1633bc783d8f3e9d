package model

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	DomainBinarySensor = "binary_sensor"
	DomainCamera       = "camera"
	DomainWeather      = "weather"

	StateUnavailable = "unavailable"
)

// Entity is a single platform entity as seen through the registry and the state machine.
type Entity struct {
	EntityID    string     `json:"entity_id"`
	Name        string     `json:"name,omitempty"`
	Disabled    bool       `json:"disabled,omitempty"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed"`
}

// Domain returns the namespace prefix of the entity id, e.g. "camera".
func (e Entity) Domain() string {
	return Domain(e.EntityID)
}

func (e Entity) DisplayName() string {
	if e.Name != "" {
		return e.Name
	}
	if e.Attributes.FriendlyName != "" {
		return e.Attributes.FriendlyName
	}
	return e.EntityID
}

func Domain(entityID string) string {
	domain, _, found := strings.Cut(entityID, ".")
	if !found {
		return ""
	}
	return domain
}

// ObjectID strips the domain prefix from an entity id.
func ObjectID(entityID string) string {
	if _, object, found := strings.Cut(entityID, "."); found {
		return object
	}
	return entityID
}

// Attributes holds the state attributes this service reads by name. Anything else
// is kept in Extra so it round trips untouched.
type Attributes struct {
	FriendlyName string   `json:"friendly_name,omitempty"`
	DeviceClass  string   `json:"device_class,omitempty"`
	Brand        string   `json:"brand,omitempty"`
	Model        string   `json:"model,omitempty"`
	Temperature  *float64 `json:"temperature,omitempty"`
	Humidity     *float64 `json:"humidity,omitempty"`
	WindSpeed    *float64 `json:"wind_speed,omitempty"`
	Pressure     *float64 `json:"pressure,omitempty"`

	Extra map[string]any `json:"-"`
}

var knownAttributes = map[string]struct{}{
	"friendly_name": {},
	"device_class":  {},
	"brand":         {},
	"model":         {},
	"temperature":   {},
	"humidity":      {},
	"wind_speed":    {},
	"pressure":      {},
}

type attributesAlias Attributes

func (a *Attributes) UnmarshalJSON(data []byte) error {
	var typed attributesAlias
	if err := json.Unmarshal(data, &typed); err != nil {
		return err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for key := range knownAttributes {
		delete(raw, key)
	}
	*a = Attributes(typed)
	if len(raw) > 0 {
		a.Extra = raw
	}
	return nil
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	typed, err := json.Marshal(attributesAlias(a))
	if err != nil {
		return nil, err
	}
	if len(a.Extra) == 0 {
		return typed, nil
	}
	merged := make(map[string]any, len(a.Extra)+len(knownAttributes))
	for k, v := range a.Extra {
		merged[k] = v
	}
	var known map[string]any
	if err := json.Unmarshal(typed, &known); err != nil {
		return nil, err
	}
	for k, v := range known {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// StateChange is a state_changed notification. Either state may be nil when the
// entity was added or removed.
type StateChange struct {
	EntityID string    `json:"entity_id"`
	OldState *Entity   `json:"old_state"`
	NewState *Entity   `json:"new_state"`
	FiredAt  time.Time `json:"time_fired"`
}
