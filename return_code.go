package mqtt311

// ConnectReturnCode is the CONNACK return code sent by the broker.
type ConnectReturnCode byte

// CONNACK return codes as defined by MQTT 3.1.1.
const (
	ConnectAccepted                    ConnectReturnCode = 0
	ConnectRefusedUnacceptableProtocol ConnectReturnCode = 1
	ConnectRefusedIdentifierRejected   ConnectReturnCode = 2
	ConnectRefusedServerUnavailable    ConnectReturnCode = 3
	ConnectRefusedBadCredentials       ConnectReturnCode = 4
	ConnectRefusedNotAuthorized        ConnectReturnCode = 5
)

// String returns the string representation of the return code.
func (c ConnectReturnCode) String() string {
	switch c {
	case ConnectAccepted:
		return "connection accepted"
	case ConnectRefusedUnacceptableProtocol:
		return "unacceptable protocol version"
	case ConnectRefusedIdentifierRejected:
		return "identifier rejected"
	case ConnectRefusedServerUnavailable:
		return "server unavailable"
	case ConnectRefusedBadCredentials:
		return "bad user name or password"
	case ConnectRefusedNotAuthorized:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// Valid returns true if the return code is defined by the specification.
func (c ConnectReturnCode) Valid() bool {
	return c <= ConnectRefusedNotAuthorized
}

// SUBACK return codes.
const (
	// SubackGrantedQoS0 grants at-most-once delivery.
	SubackGrantedQoS0 byte = 0x00

	// SubackGrantedQoS1 grants at-least-once delivery.
	SubackGrantedQoS1 byte = 0x01

	// SubackGrantedQoS2 grants exactly-once delivery. The broker may grant
	// it, but this engine never requests it.
	SubackGrantedQoS2 byte = 0x02

	// SubackFailure indicates the subscription was refused.
	SubackFailure byte = 0x80
)
