package mqtt311

import "errors"

// Sentinel errors for connection state - check with errors.Is().
var (
	// ErrNotConnected is returned when an operation requires an active connection.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned when Connect is called on a live connection.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrClientIDRequired is returned when no client identifier is configured.
	ErrClientIDRequired = errors.New("client identifier required")
)

// Sentinel errors for preconditions - check with errors.Is().
var (
	// ErrQoS2NotSupported is returned whenever QoS 2 is requested or encountered.
	// The engine supports at-most-once and at-least-once delivery only, and
	// fails loudly rather than mis-deliver.
	ErrQoS2NotSupported = errors.New("QoS 2 is not supported")

	// ErrCallbackRequired is returned when Subscribe is called before a
	// message handler has been registered.
	ErrCallbackRequired = errors.New("message handler required before subscribing")

	// ErrInvalidWill is returned when the configured will message is malformed.
	ErrInvalidWill = errors.New("invalid will message")
)

// Sentinel errors for protocol state - check with errors.Is().
var (
	// ErrProtocolViolation is returned when the peer sends malformed or
	// unexpected wire data. The connection should be considered broken.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrUnexpectedAck is returned when an acknowledgment arrives that
	// matches no pending request.
	ErrUnexpectedAck = errors.New("acknowledgment without matching request")

	// ErrBrokerRejected is the base error for broker-refused operations.
	ErrBrokerRejected = errors.New("rejected by broker")

	// ErrDeliveryTimeout is returned when an acknowledgment does not arrive
	// within the configured delivery timeout. The connection stays usable;
	// a late acknowledgment for the abandoned request is discarded.
	ErrDeliveryTimeout = errors.New("delivery confirmation timed out")

	// ErrPendingRequest is returned when a new acknowledged operation is
	// started while another is still outstanding.
	ErrPendingRequest = errors.New("another acknowledged request is outstanding")
)

// BrokerRejectionError carries the broker-supplied reason for a refused
// operation: a non-zero CONNACK return code or a SUBACK failure byte.
// Extract with errors.As().
type BrokerRejectionError struct {
	// Op is the refused operation: "connect" or "subscribe".
	Op string

	// Code is the broker-supplied reason code.
	Code byte
}

func (e *BrokerRejectionError) Error() string {
	if e.Op == "connect" {
		return "connect rejected by broker: " + ConnectReturnCode(e.Code).String()
	}
	return e.Op + " rejected by broker"
}

func (e *BrokerRejectionError) Unwrap() error { return ErrBrokerRejected }

// newBrokerRejection creates a BrokerRejectionError for the given operation.
func newBrokerRejection(op string, code byte) *BrokerRejectionError {
	return &BrokerRejectionError{Op: op, Code: code}
}
