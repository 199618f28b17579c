package hub

import "github.com/google/uuid"

// NewDeviceID generates a random device identifier suitable for use as
// an MQTT client identifier.
func NewDeviceID() string {
	return "dev-" + uuid.NewString()
}
