// Package hub provides an account-scoped convenience wrapper around the
// core connection engine for telemetry devices.
//
// A Hub prefixes every topic with the account identifier, strips the
// prefix again on delivery, and runs a background poll loop that pumps
// inbound traffic and sends keep-alive pings. The core engine is
// single-threaded; the hub serializes all access with a mutex so
// application code and the poll loop can share one connection.
package hub

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	mqtt "github.com/vitalvas/mqtt311"
)

// ErrInvalidAccountID is returned when the account identifier is empty
// or contains topic separators or wildcards.
var ErrInvalidAccountID = errors.New("invalid account ID")

// MessageHandler is called for every message delivered to the hub, with
// the account prefix already stripped from the topic.
type MessageHandler func(topic string, payload []byte)

// Config configures a Hub.
type Config struct {
	// Address is the broker address.
	Address string

	// AccountID namespaces all topics. Required.
	AccountID string

	// DeviceID is the client identifier. If empty a random identifier
	// is generated with NewDeviceID.
	DeviceID string

	// Username and Password are broker credentials. Optional.
	Username string
	Password []byte

	// KeepAlive is the keep alive interval in seconds. Default 60.
	KeepAlive uint16

	// PollInterval paces the background poll loop. Default 100ms.
	PollInterval time.Duration

	// Logger for the underlying connection. Optional.
	Logger mqtt.Logger

	// Dialer overrides the transport. Optional.
	Dialer mqtt.Dialer
}

// Hub is an account-scoped MQTT client with a background poll loop.
type Hub struct {
	conn      *mqtt.Conn
	accountID string
	deviceID  string
	handler   MessageHandler

	mu      sync.Mutex
	limiter *rate.Limiter

	stop chan struct{}
	done chan struct{}
}

// New creates a hub from the given configuration. It does not connect;
// call Start.
func New(cfg Config) (*Hub, error) {
	if err := validateAccountID(cfg.AccountID); err != nil {
		return nil, err
	}

	deviceID := cfg.DeviceID
	if deviceID == "" {
		deviceID = NewDeviceID()
	}

	keepAlive := cfg.KeepAlive
	if keepAlive == 0 {
		keepAlive = 60
	}

	pollInterval := cfg.PollInterval
	if pollInterval == 0 {
		pollInterval = 100 * time.Millisecond
	}

	h := &Hub{
		accountID: cfg.AccountID,
		deviceID:  deviceID,
		limiter:   rate.NewLimiter(rate.Every(pollInterval), 1),
	}

	opts := []mqtt.Option{
		mqtt.WithAddress(cfg.Address),
		mqtt.WithClientID(deviceID),
		mqtt.WithKeepAlive(keepAlive),
		mqtt.WithMessageHandler(h.deliver),
	}

	if cfg.Username != "" {
		opts = append(opts, mqtt.WithCredentials(cfg.Username, cfg.Password))
	}
	if cfg.Logger != nil {
		opts = append(opts, mqtt.WithLogger(cfg.Logger))
	}
	if cfg.Dialer != nil {
		opts = append(opts, mqtt.WithDialer(cfg.Dialer))
	}

	conn, err := mqtt.NewConn(opts...)
	if err != nil {
		return nil, err
	}

	h.conn = conn
	return h, nil
}

// DeviceID returns the client identifier the hub connects with.
func (h *Hub) DeviceID() string {
	return h.deviceID
}

// SetMessageHandler registers the delivery callback. Must be called
// before Start.
func (h *Hub) SetMessageHandler(handler MessageHandler) {
	h.handler = handler
}

// Start connects to the broker and launches the background poll loop.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	_, err := h.conn.Connect(ctx)
	h.mu.Unlock()
	if err != nil {
		return err
	}

	h.stop = make(chan struct{})
	h.done = make(chan struct{})
	go h.pollLoop()

	return nil
}

// Stop terminates the poll loop and disconnects.
func (h *Hub) Stop() error {
	if h.stop != nil {
		close(h.stop)
		<-h.done
		h.stop = nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.conn.Connected() {
		return nil
	}
	return h.conn.Disconnect()
}

// Publish sends a message under the account namespace.
func (h *Hub) Publish(ctx context.Context, topic string, payload []byte, qos byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conn.Publish(ctx, &mqtt.Message{
		Topic:   h.accountID + "/" + topic,
		Payload: payload,
		QoS:     qos,
	})
}

// Subscribe subscribes to a topic filter under the account namespace
// and returns the granted QoS. A message handler must be registered
// first: the hub's own delivery trampoline would otherwise discard
// every message silently.
func (h *Hub) Subscribe(ctx context.Context, topicFilter string, qos byte) (byte, error) {
	if h.handler == nil {
		return 0, mqtt.ErrCallbackRequired
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conn.Subscribe(ctx, h.accountID+"/"+topicFilter, qos)
}

// Unsubscribe removes a subscription under the account namespace.
func (h *Hub) Unsubscribe(ctx context.Context, topicFilter string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.conn.Unsubscribe(ctx, h.accountID+"/"+topicFilter)
}

// deliver strips the account prefix and forwards to the registered
// handler. Messages outside the account namespace never reach the
// handler. Runs inside a pump call, so the hub mutex is already held
// by the pumping goroutine.
func (h *Hub) deliver(msg *mqtt.Message) {
	if h.handler == nil {
		return
	}

	if !mqtt.TopicMatch(h.accountID+"/#", msg.Topic) {
		return
	}

	topic := msg.Topic
	if rest, ok := strings.CutPrefix(topic, h.accountID+"/"); ok {
		topic = rest
	}

	h.handler(topic, msg.Payload)
}

// pollLoop drains inbound traffic and keeps the session alive until
// Stop is called. Each iteration is paced by the rate limiter so idle
// devices do not spin.
func (h *Hub) pollLoop() {
	defer close(h.done)

	ctx := context.Background()

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		if err := h.limiter.Wait(ctx); err != nil {
			return
		}

		h.mu.Lock()
		if !h.conn.Connected() {
			h.mu.Unlock()
			return
		}

		// Drain everything currently buffered.
		for {
			processed, err := h.conn.TryPump()
			if err != nil || !processed {
				break
			}
		}

		if h.conn.PingDue() {
			h.conn.Ping() //nolint:errcheck // a failed ping tears the connection down; next iteration exits
		}
		h.mu.Unlock()
	}
}

func validateAccountID(accountID string) error {
	if accountID == "" {
		return ErrInvalidAccountID
	}
	if strings.ContainsAny(accountID, "/#+") {
		return ErrInvalidAccountID
	}
	return nil
}
