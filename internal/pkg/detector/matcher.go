package detector

import "strings"

// Match returns the first rule in table order that clears minPriority, matches the
// lower-cased entity id and, when the rule names one, the observed device class.
func Match(rules []Rule, entityID, deviceClass string, minPriority int) (Rule, bool) {
	id := strings.ToLower(entityID)
	for _, r := range rules {
		if r.Priority < minPriority {
			continue
		}
		if !r.Pattern.MatchString(id) {
			continue
		}
		if r.DeviceClass != "" && r.DeviceClass != deviceClass {
			continue
		}
		return r, true
	}
	return Rule{}, false
}
