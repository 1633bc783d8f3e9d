package detector

import (
	"regexp"
	"testing"

	"github.com/anicoll/doorbell-integration/internal/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestMatch_DoorbellRules(t *testing.T) {
	tests := map[string]struct {
		entityID    string
		deviceClass string
		sensitivity config.Sensitivity
		wantRule    string
		wantOK      bool
	}{
		"explicit doorbell": {
			entityID:    "binary_sensor.front_doorbell",
			sensitivity: config.SensitivityMedium,
			wantRule:    "doorbell",
			wantOK:      true,
		},
		"upper case id is lowered": {
			entityID:    "binary_sensor.Front_DoorBell",
			sensitivity: config.SensitivityLow,
			wantRule:    "doorbell",
			wantOK:      true,
		},
		"door_bell spelling": {
			entityID:    "binary_sensor.door_bell_press",
			sensitivity: config.SensitivityLow,
			wantRule:    "door_bell",
			wantOK:      true,
		},
		"visitor needs motion class": {
			entityID:    "binary_sensor.visitor_sensor",
			deviceClass: "occupancy",
			sensitivity: config.SensitivityHigh,
			wantOK:      false,
		},
		"visitor with motion": {
			entityID:    "binary_sensor.visitor_sensor",
			deviceClass: "motion",
			sensitivity: config.SensitivityMedium,
			wantRule:    "visitor",
			wantOK:      true,
		},
		"porch motion at medium": {
			entityID:    "binary_sensor.porch_motion",
			deviceClass: "motion",
			sensitivity: config.SensitivityMedium,
			wantRule:    "porch.*motion",
			wantOK:      true,
		},
		"porch motion filtered at low": {
			entityID:    "binary_sensor.porch_motion",
			deviceClass: "motion",
			sensitivity: config.SensitivityLow,
			wantOK:      false,
		},
		"generic front door only at high": {
			entityID:    "binary_sensor.front_door_contact",
			deviceClass: "motion",
			sensitivity: config.SensitivityHigh,
			wantRule:    "front.*door",
			wantOK:      true,
		},
		"generic front door at medium": {
			entityID:    "binary_sensor.front_door_contact",
			deviceClass: "motion",
			sensitivity: config.SensitivityMedium,
			wantOK:      false,
		},
		"unrelated": {
			entityID:    "binary_sensor.kitchen_window",
			sensitivity: config.SensitivityHigh,
			wantOK:      false,
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := Match(DoorbellRules, tt.entityID, tt.deviceClass, tt.sensitivity.MinPriority())
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRule, got.Name)
				assert.Equal(t, []string{"on"}, got.TriggerStates)
			}
		})
	}
}

func TestMatch_DoorbellAtEverySensitivity(t *testing.T) {
	ids := []string{
		"binary_sensor.doorbell",
		"binary_sensor.front_doorbell",
		"binary_sensor.reolink_doorbell_visitor",
		"binary_sensor.my_doorbell_button",
	}
	for _, id := range ids {
		for _, s := range []config.Sensitivity{config.SensitivityHigh, config.SensitivityMedium, config.SensitivityLow} {
			r, ok := Match(DoorbellRules, id, "", s.MinPriority())
			assert.True(t, ok, "%s at %s", id, s)
			assert.GreaterOrEqual(t, r.Priority, s.MinPriority())
		}
	}
}

func TestMatch_PriorityBoundary(t *testing.T) {
	rules := []Rule{
		{Name: "at-84", Pattern: regexp.MustCompile(`doorbell`), Priority: 84},
		{Name: "at-85", Pattern: regexp.MustCompile(`doorbell`), Priority: 85},
	}
	low := config.SensitivityLow.MinPriority()

	got, ok := Match(rules, "binary_sensor.doorbell", "", low)
	assert.True(t, ok)
	assert.Equal(t, "at-85", got.Name)

	_, ok = Match(rules[:1], "binary_sensor.doorbell", "", low)
	assert.False(t, ok)

	got, ok = Match(rules, "binary_sensor.doorbell", "", config.SensitivityMedium.MinPriority())
	assert.True(t, ok)
	assert.Equal(t, "at-84", got.Name)
}

func TestMatch_FirstMatchWins(t *testing.T) {
	got, ok := Match(CameraRules, "camera.front_doorbell_camera", "", config.SensitivityMedium.MinPriority())
	assert.True(t, ok)
	assert.Equal(t, "doorbell.*camera", got.Name)
	assert.Equal(t, 100, got.Priority)

	got, ok = Match(CameraRules, "camera.garage", "", config.SensitivityHigh.MinPriority())
	assert.True(t, ok)
	assert.Equal(t, 50, got.Priority)

	_, ok = Match(CameraRules, "camera.garage", "", config.SensitivityMedium.MinPriority())
	assert.False(t, ok)
}
