package mqtt311

import "io"

// QoS levels.
const (
	// QoS0 delivers messages at most once, with no acknowledgment.
	QoS0 byte = 0

	// QoS1 delivers messages at least once, confirmed by PUBACK.
	QoS1 byte = 1

	// QoS2 is defined by the protocol but not supported by this engine.
	// Operations requesting it fail with ErrQoS2NotSupported.
	QoS2 byte = 2
)

// Packet is the interface that all MQTT control packets implement.
type Packet interface {
	// Type returns the packet type.
	Type() PacketType

	// Encode writes the packet to the writer.
	// Returns the number of bytes written.
	Encode(w io.Writer) (int, error)

	// Decode reads the packet from the reader.
	// The fixed header should already be decoded.
	// Returns the number of bytes read.
	Decode(r io.Reader, header FixedHeader) (int, error)

	// Validate validates the packet contents.
	Validate() error
}

// Message represents an MQTT application message.
// This is the user-facing struct with public fields for easy access.
type Message struct {
	// Topic is the topic name to publish to or received from.
	Topic string

	// Payload is the application message payload.
	Payload []byte

	// QoS is the Quality of Service level (0 or 1; 2 is rejected).
	QoS byte

	// Retain indicates if this is a retained message.
	Retain bool

	// DUP indicates a possible redelivery of an inbound message.
	// It has no effect on delivery: the callback still fires exactly
	// once per received PUBLISH frame.
	DUP bool
}

// Clone creates a deep copy of the message.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}

	clone := &Message{
		Topic:  m.Topic,
		QoS:    m.QoS,
		Retain: m.Retain,
		DUP:    m.DUP,
	}

	if m.Payload != nil {
		clone.Payload = make([]byte, len(m.Payload))
		copy(clone.Payload, m.Payload)
	}

	return clone
}
