package mqtt311

import (
	"crypto/tls"
	"time"
)

// MessageHandler is called for every inbound application message. It
// fires exactly once per received PUBLISH frame, from inside the pump.
type MessageHandler func(msg *Message)

// connOptions holds the configuration for a Conn.
type connOptions struct {
	address         string
	clientID        string
	username        string
	password        []byte
	keepAlive       uint16
	cleanSession    bool
	will            *Will
	dialer          Dialer
	connectTimeout  time.Duration
	deliveryTimeout time.Duration
	maxPacketSize   uint32
	logger          Logger
	handler         MessageHandler
}

// defaultOptions returns the default connection options.
func defaultOptions() *connOptions {
	return &connOptions{
		keepAlive:       60,
		cleanSession:    true,
		dialer:          &TCPDialer{},
		connectTimeout:  10 * time.Second,
		deliveryTimeout: 30 * time.Second,
		maxPacketSize:   MaxPacketSizeDefault,
		logger:          NewNoOpLogger(),
	}
}

// Option configures a Conn.
type Option func(*connOptions)

// applyOptions applies the options to a default configuration.
func applyOptions(opts []Option) *connOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// WithAddress sets the broker address (host:port for TCP and TLS,
// a URL for WebSocket).
func WithAddress(address string) Option {
	return func(o *connOptions) {
		o.address = address
	}
}

// WithClientID sets the client identifier.
func WithClientID(clientID string) Option {
	return func(o *connOptions) {
		o.clientID = clientID
	}
}

// WithCredentials sets the username and password.
func WithCredentials(username string, password []byte) Option {
	return func(o *connOptions) {
		o.username = username
		o.password = password
	}
}

// WithKeepAlive sets the keep alive interval in seconds.
// Zero disables the keep alive mechanism.
func WithKeepAlive(seconds uint16) Option {
	return func(o *connOptions) {
		o.keepAlive = seconds
	}
}

// WithCleanSession controls whether the broker discards prior session state.
func WithCleanSession(clean bool) Option {
	return func(o *connOptions) {
		o.cleanSession = clean
	}
}

// WithWill configures the will message published by the broker on
// unexpected disconnect.
func WithWill(will *Will) Option {
	return func(o *connOptions) {
		o.will = will
	}
}

// WithDialer sets a custom transport dialer.
func WithDialer(dialer Dialer) Option {
	return func(o *connOptions) {
		o.dialer = dialer
	}
}

// WithTLS configures a TLS transport with the given configuration.
func WithTLS(config *tls.Config) Option {
	return func(o *connOptions) {
		o.dialer = &TLSDialer{Config: config}
	}
}

// WithConnectTimeout bounds the dial plus CONNECT/CONNACK handshake.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(o *connOptions) {
		o.connectTimeout = timeout
	}
}

// WithDeliveryTimeout bounds how long acknowledged operations wait for
// their ack. On expiry the operation fails with ErrDeliveryTimeout but
// the connection stays usable.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(o *connOptions) {
		o.deliveryTimeout = timeout
	}
}

// WithMaxPacketSize limits the size of inbound packets.
func WithMaxPacketSize(size uint32) Option {
	return func(o *connOptions) {
		if size > MaxPacketSizeProtocol {
			size = MaxPacketSizeProtocol
		}
		o.maxPacketSize = size
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(o *connOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMessageHandler registers the inbound message callback.
func WithMessageHandler(handler MessageHandler) Option {
	return func(o *connOptions) {
		o.handler = handler
	}
}
