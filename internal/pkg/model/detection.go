package model

import "time"

type DoorbellCandidate struct {
	EntityID      string   `json:"entity_id"`
	MatchedRule   string   `json:"matched_rule"`
	Priority      int      `json:"priority"`
	TriggerStates []string `json:"accepted_trigger_states"`
	DeviceClass   string   `json:"device_class,omitempty"`
	DisplayName   string   `json:"display_name"`
}

type CameraCandidate struct {
	EntityID    string `json:"entity_id"`
	MatchedRule string `json:"matched_rule"`
	Priority    int    `json:"priority"`
	DisplayName string `json:"display_name"`
}

// Pair links a doorbell to the camera that watches it. There is at most one pair per doorbell.
type Pair struct {
	DoorbellID string `json:"doorbell_id"`
	CameraID   string `json:"camera_id"`
	Score      int    `json:"confidence_score"`
	Manual     bool   `json:"manual"`
}

type DetectedEntities struct {
	Doorbells []DoorbellCandidate `json:"doorbells"`
	Cameras   []CameraCandidate   `json:"cameras"`
	Pairs     []Pair              `json:"pairs"`
}

type DetectorStatistics struct {
	Enabled       bool       `json:"enabled"`
	Sensitivity   string     `json:"sensitivity"`
	Doorbells     int        `json:"doorbells_detected"`
	Cameras       int        `json:"cameras_detected"`
	Pairs         int        `json:"pairs_created"`
	TriggersToday int        `json:"triggers_today"`
	LastTrigger   *time.Time `json:"last_trigger,omitempty"`
}
