package model

import "time"

const (
	EventDoorbellDetected  = "whorang_intelligent_doorbell_detected"
	EventSnapshotCaptured  = "whorang_intelligent_snapshot_captured"
	AutomationSource       = "intelligent_automation"
	DefaultLocation        = "front_door"
	DefaultAITitle         = "Automatic Doorbell Detection"
	DefaultPromptTemplate  = "professional"
	TriggerSourceAutomated = "intelligent_detection"
)

// TriggerEvent is emitted by the monitor for every accepted doorbell transition.
type TriggerEvent struct {
	DoorbellID   string
	CameraID     string // empty when the doorbell is unpaired
	TriggerState string
	TriggeredAt  time.Time
	Attributes   Attributes
	Test         bool
}

type SnapshotRecord struct {
	CameraID   string    `json:"camera_entity"`
	Filename   string    `json:"filename"`
	Path       string    `json:"path"`
	URL        string    `json:"url"`
	CapturedAt time.Time `json:"timestamp"`
	Size       int64     `json:"file_size"`
}

type SnapshotStatistics struct {
	Taken       int        `json:"snapshots_taken"`
	Failed      int        `json:"failed_snapshots"`
	LastTaken   *time.Time `json:"last_snapshot_time,omitempty"`
	SuccessRate float64    `json:"success_rate"`
	Directory   string     `json:"storage_path"`
	Quality     int        `json:"quality"`
}

type BackendEndpoint struct {
	URL            string    `json:"url"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
}

// Statistics are the orchestrator counters. They only ever grow.
type Statistics struct {
	EventsProcessed    int        `json:"events_processed"`
	SuccessfulEvents   int        `json:"successful_events"`
	FailedEvents       int        `json:"failed_events"`
	BackendSubmissions int        `json:"backend_submissions"`
	BackendFailures    int        `json:"backend_failures"`
	LastEventTime      *time.Time `json:"last_event_time,omitempty"`
	LastError          string     `json:"last_error,omitempty"`
}

type WeatherContext struct {
	Condition   string   `json:"weather_condition,omitempty"`
	Temperature *float64 `json:"weather_temperature,omitempty"`
	Humidity    *float64 `json:"weather_humidity,omitempty"`
	WindSpeed   *float64 `json:"weather_wind_speed,omitempty"`
	Pressure    *float64 `json:"weather_pressure,omitempty"`
}

type PromptConfig struct {
	Template       string `json:"ai_prompt_template,omitempty"`
	CustomPrompt   string `json:"custom_ai_prompt,omitempty"`
	WeatherEnabled bool   `json:"enable_weather_context"`
}

// DoorbellEventPayload is the body posted to the backend webhook.
type DoorbellEventPayload struct {
	ImageURL       string    `json:"image_url,omitempty"`
	Location       string    `json:"location"`
	AITitle        string    `json:"ai_title"`
	Timestamp      time.Time `json:"timestamp"`
	Source         string    `json:"source"`
	DoorbellEntity string    `json:"doorbell_entity"`
	CameraEntity   string    `json:"camera_entity,omitempty"`
	TriggerState   string    `json:"trigger_state"`
	Test           bool      `json:"test,omitempty"`
	*WeatherContext
	PromptConfig
}

type DoorbellState struct {
	IsTriggered         bool      `json:"is_triggered"`
	LastTriggered       time.Time `json:"last_triggered"`
	TriggerSource       string    `json:"trigger_source"`
	AutomationTriggered bool      `json:"automation_triggered"`
}

type LatestImage struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

type AutomationEvent struct {
	DoorbellEntity   string    `json:"doorbell_entity"`
	CameraEntity     string    `json:"camera_entity,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	SnapshotURL      *string   `json:"snapshot_url"`
	BackendSubmitted bool      `json:"backend_submitted"`
	Source           string    `json:"source"`
}

// LocalState is what downstream observers see after every saga.
type LocalState struct {
	Doorbell    DoorbellState   `json:"doorbell_state"`
	LatestImage *LatestImage    `json:"latest_image,omitempty"`
	LastEvent   AutomationEvent `json:"last_automation_event"`
}

type DoorbellDetectedEvent struct {
	DoorbellEntity   string    `json:"doorbell_entity"`
	CameraEntity     string    `json:"camera_entity"`
	TriggerTime      time.Time `json:"trigger_time"`
	TriggerState     string    `json:"trigger_state"`
	SnapshotCaptured bool      `json:"snapshot_captured"`
	SnapshotURL      *string   `json:"snapshot_url"`
	AutomationSource string    `json:"automation_source"`
}

type SnapshotCapturedEvent struct {
	CameraEntity string    `json:"camera_entity"`
	Filename     string    `json:"filename"`
	URL          string    `json:"url"`
	FileSize     int64     `json:"file_size"`
	Timestamp    time.Time `json:"timestamp"`
}
