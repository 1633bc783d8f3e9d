package homeassistant

import (
	"encoding/json"
	"time"

	"github.com/anicoll/doorbell-integration/internal/pkg/model"
)

const (
	typeAuthRequired = "auth_required"
	typeAuth         = "auth"
	typeAuthOK       = "auth_ok"
	typeAuthInvalid  = "auth_invalid"
	typeResult       = "result"
	typeEvent        = "event"
	typePong         = "pong"

	cmdGetStates       = "get_states"
	cmdEntityRegistry  = "config/entity_registry/list"
	cmdSubscribeEvents = "subscribe_events"
	cmdUnsubscribe     = "unsubscribe_events"
	cmdFireEvent       = "fire_event"

	eventStateChanged = "state_changed"
)

// envelope is every message the server sends, only the fields relevant to its type are set.
type envelope struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Success   bool            `json:"success"`
	Result    json.RawMessage `json:"result"`
	Error     *commandError   `json:"error"`
	Event     json.RawMessage `json:"event"`
	HAVersion string          `json:"ha_version"`
	Message   string          `json:"message"`
}

type commandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

type result struct {
	data json.RawMessage
	err  error
}

type stateChangedEvent struct {
	EventType string    `json:"event_type"`
	TimeFired time.Time `json:"time_fired"`
	Data      struct {
		EntityID string        `json:"entity_id"`
		OldState *model.Entity `json:"old_state"`
		NewState *model.Entity `json:"new_state"`
	} `json:"data"`
}

type registryEntry struct {
	EntityID     string  `json:"entity_id"`
	Name         *string `json:"name"`
	OriginalName *string `json:"original_name"`
	DisabledBy   *string `json:"disabled_by"`
}
