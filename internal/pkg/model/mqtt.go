package model

type RegisterDevice struct {
	Name         string   `json:"name"`
	Identifiers  []string `json:"identifiers"`
	Model        string   `json:"model"`
	Manufacturer string   `json:"manufacturer"`
}

type RegisterMessage struct {
	Name                string         `json:"name"`
	ID                  string         `json:"unique_id"`
	ObjectID            string         `json:"object_id"`
	StateTopic          string         `json:"state_topic"`
	ValueTemplate       string         `json:"value_template"`
	JSONAttributesTopic string         `json:"json_attributes_topic,omitempty"`
	DeviceClass         string         `json:"device_class,omitempty"`
	Icon                string         `json:"icon,omitempty"`
	PayloadOn           string         `json:"payload_on,omitempty"`
	PayloadOff          string         `json:"payload_off,omitempty"`
	Device              RegisterDevice `json:"device"`
}
