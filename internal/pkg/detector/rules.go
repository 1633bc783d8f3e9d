package detector

import "regexp"

const stateOn = "on"

// Rule is one row of a detection table. Tables are evaluated top to bottom, so
// specific and brand patterns sit above the generic ones.
type Rule struct {
	Name          string
	Pattern       *regexp.Regexp
	Priority      int
	TriggerStates []string
	DeviceClass   string
}

func rule(pattern string, priority int, deviceClass string) Rule {
	return Rule{
		Name:          pattern,
		Pattern:       regexp.MustCompile(pattern),
		Priority:      priority,
		TriggerStates: []string{stateOn},
		DeviceClass:   deviceClass,
	}
}

// DoorbellRules classify binary sensors.
var DoorbellRules = []Rule{
	rule(`doorbell`, 100, ""),
	rule(`door_bell`, 100, ""),
	rule(`door\.bell`, 100, ""),

	rule(`reolink.*doorbell`, 95, ""),
	rule(`ring.*doorbell`, 95, ""),
	rule(`nest.*doorbell`, 95, ""),
	rule(`arlo.*doorbell`, 95, ""),

	rule(`visitor`, 80, "motion"),
	rule(`front.*door.*motion`, 75, "motion"),
	rule(`entrance.*motion`, 75, "motion"),
	rule(`porch.*motion`, 70, "motion"),

	rule(`doorbell.*button`, 85, ""),
	rule(`door.*button`, 80, ""),
	rule(`bell.*button`, 80, ""),

	rule(`front.*door`, 60, "motion"),
	rule(`main.*entrance`, 60, "motion"),
}

// CameraRules classify camera entities. Trigger states are irrelevant for cameras.
var CameraRules = []Rule{
	rule(`doorbell.*camera`, 100, ""),
	rule(`doorbell`, 95, ""),

	rule(`reolink.*doorbell`, 90, ""),
	rule(`ring.*doorbell`, 90, ""),
	rule(`nest.*doorbell`, 90, ""),
	rule(`arlo.*doorbell`, 90, ""),

	rule(`front.*door`, 80, ""),
	rule(`entrance`, 75, ""),
	rule(`porch`, 70, ""),
	rule(`front`, 65, ""),

	rule(`camera`, 50, ""),
}
