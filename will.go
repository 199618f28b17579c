package mqtt311

// Will configures the message the broker publishes on behalf of the
// client when the connection drops without a DISCONNECT.
type Will struct {
	// Topic to publish the will message to.
	Topic string

	// Payload of the will message.
	Payload []byte

	// QoS for the will message (0 or 1).
	QoS byte

	// Retain marks the will message as retained.
	Retain bool
}

// Validate validates the will configuration.
func (w *Will) Validate() error {
	if w == nil {
		return nil
	}

	if err := ValidateTopicName(w.Topic); err != nil {
		return ErrInvalidWill
	}

	if w.QoS > QoS2 {
		return ErrInvalidQoS
	}

	if w.QoS == QoS2 {
		return ErrQoS2NotSupported
	}

	return nil
}
