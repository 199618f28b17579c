package mqtt311

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"time"
)

// Conn is a synchronous MQTT 3.1.1 client connection.
//
// Conn is single-threaded by design: it holds no internal locks and
// spawns no goroutines. All methods must be called from one goroutine,
// or the caller must serialize access externally. Inbound traffic is
// consumed cooperatively through Pump or TryPump; message callbacks
// fire from inside the pumping call, on the caller's goroutine.
type Conn struct {
	opts    *connOptions
	logger  Logger
	handler MessageHandler

	netConn   NetConn
	connected bool

	pending   *pendingTable
	ids       *packetIDAllocator
	keepAlive *keepAliveTracker

	sessionPresent bool
}

// NewConn creates a new connection with the given options. It does not
// touch the network; call Connect to establish the session.
func NewConn(opts ...Option) (*Conn, error) {
	options := applyOptions(opts)

	if options.clientID == "" && !options.cleanSession {
		return nil, ErrClientIDRequired
	}

	if err := options.will.Validate(); err != nil {
		return nil, err
	}

	logger := options.logger
	if options.clientID != "" {
		logger = logger.WithFields(LogFields{LogFieldClientID: options.clientID})
	}

	return &Conn{
		opts:      options,
		logger:    logger,
		handler:   options.handler,
		pending:   newPendingTable(),
		ids:       newPacketIDAllocator(),
		keepAlive: newKeepAliveTracker(options.keepAlive),
	}, nil
}

// SetMessageHandler registers the inbound message callback. Must not be
// called while a Pump or acknowledged operation is in progress.
func (c *Conn) SetMessageHandler(handler MessageHandler) {
	c.handler = handler
}

// Connected reports whether the connection is established.
func (c *Conn) Connected() bool {
	return c.connected
}

// SessionPresent reports whether the broker resumed a prior session
// during the last successful Connect.
func (c *Conn) SessionPresent() bool {
	return c.sessionPresent
}

// Connect dials the broker and performs the CONNECT/CONNACK handshake.
// It returns the session-present flag from the CONNACK. A non-zero
// return code yields a BrokerRejectionError wrapping ErrBrokerRejected.
func (c *Conn) Connect(ctx context.Context) (bool, error) {
	if c.connected {
		return false, ErrAlreadyConnected
	}

	if c.opts.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.connectTimeout)
		defer cancel()
	}

	netConn, err := c.opts.dialer.Dial(ctx, c.opts.address)
	if err != nil {
		return false, err
	}
	c.netConn = netConn

	connect := &ConnectPacket{
		ClientID:     c.opts.clientID,
		CleanSession: c.opts.cleanSession,
		KeepAlive:    c.opts.keepAlive,
		Username:     c.opts.username,
		Password:     c.opts.password,
	}

	if c.opts.will != nil {
		connect.WillFlag = true
		connect.WillTopic = c.opts.will.Topic
		connect.WillPayload = c.opts.will.Payload
		connect.WillQoS = c.opts.will.QoS
		connect.WillRetain = c.opts.will.Retain
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := netConn.SetDeadline(deadline); err != nil {
			netConn.Close()
			return false, err
		}
	}

	if _, err := WritePacket(netConn, connect, 0); err != nil {
		netConn.Close()
		return false, err
	}

	// The first packet from the broker must be a CONNACK.
	pkt, _, err := ReadPacket(netConn, c.opts.maxPacketSize)
	if err != nil {
		netConn.Close()
		return false, err
	}

	connack, ok := pkt.(*ConnackPacket)
	if !ok {
		netConn.Close()
		return false, ErrProtocolViolation
	}

	if err := netConn.SetDeadline(time.Time{}); err != nil {
		netConn.Close()
		return false, err
	}

	if connack.ReturnCode != ConnectAccepted {
		netConn.Close()
		c.logger.Warn("connect rejected", LogFields{
			LogFieldReturnCode: byte(connack.ReturnCode),
		})
		return false, newBrokerRejection("connect", byte(connack.ReturnCode))
	}

	c.connected = true
	c.sessionPresent = connack.SessionPresent
	c.keepAlive = newKeepAliveTracker(c.opts.keepAlive)
	c.keepAlive.Touch()

	c.logger.Info("connected", LogFields{
		LogFieldRemoteAddr: netConn.RemoteAddr().String(),
		"session_present":  connack.SessionPresent,
	})

	return connack.SessionPresent, nil
}

// Disconnect sends DISCONNECT and closes the network connection. The
// DISCONNECT write is best effort; the connection is torn down either way.
func (c *Conn) Disconnect() error {
	if !c.connected {
		return ErrNotConnected
	}

	_, writeErr := WritePacket(c.netConn, &DisconnectPacket{}, 0)

	closeErr := c.netConn.Close()
	c.reset()

	c.logger.Info("disconnected", nil)

	if writeErr != nil {
		return writeErr
	}
	return closeErr
}

// Publish sends an application message. QoS 0 returns after the write.
// QoS 1 blocks pumping inbound traffic until the matching PUBACK
// arrives; other inbound packets received meanwhile are processed
// normally. If no PUBACK arrives within the delivery timeout the call
// returns ErrDeliveryTimeout and the connection stays usable.
func (c *Conn) Publish(ctx context.Context, msg *Message) error {
	if !c.connected {
		return ErrNotConnected
	}

	if msg.QoS == QoS2 {
		return ErrQoS2NotSupported
	}
	if msg.QoS > QoS2 {
		return ErrInvalidQoS
	}

	if err := ValidateTopicName(msg.Topic); err != nil {
		return err
	}

	pub := &PublishPacket{
		Topic:   msg.Topic,
		Payload: msg.Payload,
		QoS:     msg.QoS,
		Retain:  msg.Retain,
	}

	if msg.QoS == QoS0 {
		return c.writePacket(pub)
	}

	id, ok := c.ids.allocate(c.pending)
	if !ok {
		return ErrPendingRequest
	}
	pub.PacketID = id

	if _, err := c.pending.add(ackPuback, id); err != nil {
		return err
	}

	if err := c.writePacket(pub); err != nil {
		c.pending.abandon(ackPuback, id)
		return err
	}

	c.logger.Debug("publish sent", LogFields{
		LogFieldTopic:    msg.Topic,
		LogFieldPacketID: id,
		LogFieldQoS:      msg.QoS,
	})

	_, err := c.awaitAck(ctx, ackPuback, id)
	return err
}

// Subscribe requests a subscription to a single topic filter and
// returns the granted QoS from the SUBACK. A SUBACK failure code
// yields a BrokerRejectionError wrapping ErrBrokerRejected.
//
// A message handler must be registered first: a subscription with no
// handler silently discards messages, so the engine refuses it.
func (c *Conn) Subscribe(ctx context.Context, topicFilter string, qos byte) (byte, error) {
	if !c.connected {
		return 0, ErrNotConnected
	}

	if c.handler == nil {
		return 0, ErrCallbackRequired
	}

	if qos == QoS2 {
		return 0, ErrQoS2NotSupported
	}
	if qos > QoS2 {
		return 0, ErrInvalidQoS
	}

	if err := ValidateTopicFilter(topicFilter); err != nil {
		return 0, err
	}

	id, ok := c.ids.allocate(c.pending)
	if !ok {
		return 0, ErrPendingRequest
	}

	sub := &SubscribePacket{
		PacketID: id,
		Subscriptions: []Subscription{
			{TopicFilter: topicFilter, QoS: qos},
		},
	}

	if _, err := c.pending.add(ackSuback, id); err != nil {
		return 0, err
	}

	if err := c.writePacket(sub); err != nil {
		c.pending.abandon(ackSuback, id)
		return 0, err
	}

	c.logger.Debug("subscribe sent", LogFields{
		LogFieldTopic:    topicFilter,
		LogFieldPacketID: id,
		LogFieldQoS:      qos,
	})

	entry, err := c.awaitAck(ctx, ackSuback, id)
	if err != nil {
		return 0, err
	}

	suback, ok := entry.result.(*SubackPacket)
	if !ok || len(suback.ReturnCodes) != 1 {
		return 0, ErrProtocolViolation
	}

	granted := suback.ReturnCodes[0]
	if granted == SubackFailure {
		return 0, newBrokerRejection("subscribe", granted)
	}

	return granted, nil
}

// Unsubscribe removes a subscription for a single topic filter and
// waits for the UNSUBACK.
func (c *Conn) Unsubscribe(ctx context.Context, topicFilter string) error {
	if !c.connected {
		return ErrNotConnected
	}

	if err := ValidateTopicFilter(topicFilter); err != nil {
		return err
	}

	id, ok := c.ids.allocate(c.pending)
	if !ok {
		return ErrPendingRequest
	}

	unsub := &UnsubscribePacket{
		PacketID:     id,
		TopicFilters: []string{topicFilter},
	}

	if _, err := c.pending.add(ackUnsuback, id); err != nil {
		return err
	}

	if err := c.writePacket(unsub); err != nil {
		c.pending.abandon(ackUnsuback, id)
		return err
	}

	_, err := c.awaitAck(ctx, ackUnsuback, id)
	return err
}

// Ping sends a PINGREQ. The PINGRESP is consumed by a later Pump or
// TryPump call; the engine does not block waiting for it.
func (c *Conn) Ping() error {
	if !c.connected {
		return ErrNotConnected
	}

	if err := c.writePacket(&PingreqPacket{}); err != nil {
		return err
	}

	c.logger.Debug("ping sent", nil)
	return nil
}

// PingDue reports whether the keep alive interval has elapsed since the
// last outbound packet, meaning a Ping should be sent.
func (c *Conn) PingDue() bool {
	if !c.connected {
		return false
	}
	return c.keepAlive.Due()
}

// Pump reads and processes one inbound packet, blocking until a packet
// arrives, the context deadline expires, or the connection fails. The
// context is honored through read deadlines, so cancellation without a
// deadline does not interrupt a blocked read. Message callbacks fire
// from inside this call.
func (c *Conn) Pump(ctx context.Context) error {
	if !c.connected {
		return ErrNotConnected
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := c.netConn.SetReadDeadline(deadline); err != nil {
			return err
		}
	} else if err := c.netConn.SetReadDeadline(time.Time{}); err != nil {
		return err
	}

	pkt, _, err := ReadPacket(c.netConn, c.opts.maxPacketSize)
	if err != nil {
		if isTimeout(err) {
			// A finite read deadline is only ever set from the
			// context, so the context is expiring right now.
			<-ctx.Done()
			return ctx.Err()
		}
		c.teardown()
		return err
	}

	return c.handlePacket(pkt)
}

// tryPumpWindow is how long TryPump waits for the first byte of a
// packet. A deadline already in the past would fail the read even with
// data buffered, so the window must be small but positive.
const tryPumpWindow = time.Millisecond

// TryPump processes one inbound packet if one is available. It reports
// whether a packet was processed. With nothing buffered it returns
// (false, nil) within about a millisecond, so it can be polled from a
// device main loop.
func (c *Conn) TryPump() (bool, error) {
	if !c.connected {
		return false, ErrNotConnected
	}

	// Peek for a first byte without blocking for long.
	if err := c.netConn.SetReadDeadline(time.Now().Add(tryPumpWindow)); err != nil {
		return false, err
	}

	var first [1]byte
	if _, err := c.netConn.Read(first[:]); err != nil {
		if resetErr := c.netConn.SetReadDeadline(time.Time{}); resetErr != nil {
			c.teardown()
			return false, resetErr
		}
		if isTimeout(err) {
			return false, nil
		}
		c.teardown()
		return false, err
	}

	// A packet has started; read the rest of it blocking.
	if err := c.netConn.SetReadDeadline(time.Time{}); err != nil {
		c.teardown()
		return false, err
	}

	reader := io.MultiReader(bytes.NewReader(first[:]), c.netConn)
	pkt, _, err := ReadPacket(reader, c.opts.maxPacketSize)
	if err != nil {
		c.teardown()
		return true, err
	}

	return true, c.handlePacket(pkt)
}

// awaitAck pumps inbound packets until the tracked request completes,
// the delivery timeout expires, or the context is done. Interleaved
// inbound packets (PUBLISH, PINGRESP, other acks) are processed
// normally while waiting.
func (c *Conn) awaitAck(ctx context.Context, kind ackKind, packetID uint16) (*pendingEntry, error) {
	deadline := time.Now().Add(c.opts.deliveryTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	for {
		if entry := c.pending.take(kind, packetID); entry != nil {
			return entry, nil
		}

		if err := ctx.Err(); err != nil {
			c.pending.abandon(kind, packetID)
			return nil, err
		}

		if !time.Now().Before(deadline) {
			c.abandonWithLog(kind, packetID)
			return nil, ErrDeliveryTimeout
		}

		if err := c.netConn.SetReadDeadline(deadline); err != nil {
			c.teardown()
			return nil, err
		}

		pkt, _, err := ReadPacket(c.netConn, c.opts.maxPacketSize)
		if err != nil {
			if isTimeout(err) {
				if ctxErr := ctx.Err(); ctxErr != nil {
					c.pending.abandon(kind, packetID)
					return nil, ctxErr
				}
				c.abandonWithLog(kind, packetID)
				return nil, ErrDeliveryTimeout
			}
			c.teardown()
			return nil, err
		}

		if err := c.handlePacket(pkt); err != nil {
			// The waiter is giving up on this request. Abandon the
			// entry so its packet identifier is released by the ack
			// when it eventually arrives, instead of staying pending
			// forever.
			c.pending.abandon(kind, packetID)
			return nil, err
		}
	}
}

func (c *Conn) abandonWithLog(kind ackKind, packetID uint16) {
	c.pending.abandon(kind, packetID)
	c.logger.Warn("delivery confirmation timed out", LogFields{
		LogFieldPacketType: kind.String(),
		LogFieldPacketID:   packetID,
	})
}

// handlePacket routes one inbound packet. Acknowledgments are matched
// against the pending table; PUBLISH triggers the message callback and,
// at QoS 1, an immediate PUBACK.
func (c *Conn) handlePacket(pkt Packet) error {
	switch p := pkt.(type) {
	case *PublishPacket:
		return c.handlePublish(p)

	case *PubackPacket:
		return c.dispatchAck(ackPuback, p.PacketID, nil)

	case *SubackPacket:
		return c.dispatchAck(ackSuback, p.PacketID, p)

	case *UnsubackPacket:
		return c.dispatchAck(ackUnsuback, p.PacketID, nil)

	case *PingrespPacket:
		c.logger.Debug("pingresp received", nil)
		return nil

	default:
		// CONNECT, CONNACK, SUBSCRIBE, UNSUBSCRIBE, PINGREQ and
		// DISCONNECT are never valid broker-to-client packets after
		// the handshake.
		c.teardown()
		return ErrProtocolViolation
	}
}

func (c *Conn) dispatchAck(kind ackKind, packetID uint16, result Packet) error {
	if err := c.pending.dispatch(kind, packetID, result); err != nil {
		c.logger.Error("unexpected acknowledgment", LogFields{
			LogFieldPacketType: kind.String(),
			LogFieldPacketID:   packetID,
		})
		return err
	}
	return nil
}

// handlePublish delivers an inbound message. The callback fires exactly
// once per received PUBLISH frame; the DUP flag is passed through but
// never suppresses delivery. At QoS 1 the PUBACK is sent after the
// callback returns.
func (c *Conn) handlePublish(p *PublishPacket) error {
	if p.QoS == QoS2 {
		c.teardown()
		return ErrQoS2NotSupported
	}

	c.logger.Debug("publish received", LogFields{
		LogFieldTopic:    p.Topic,
		LogFieldQoS:      p.QoS,
		LogFieldPacketID: p.PacketID,
	})

	if c.handler != nil {
		c.handler(p.Message())
	}

	if p.QoS == QoS1 {
		return c.writePacket(&PubackPacket{PacketID: p.PacketID})
	}

	return nil
}

// writePacket sends one packet and records the outbound activity for
// keep alive tracking. A write failure tears the connection down.
func (c *Conn) writePacket(pkt Packet) error {
	if _, err := WritePacket(c.netConn, pkt, 0); err != nil {
		c.logger.Error("write failed", LogFields{
			LogFieldPacketType: pkt.Type().String(),
			LogFieldError:      err.Error(),
		})
		c.teardown()
		return err
	}

	c.keepAlive.Touch()
	return nil
}

// teardown closes the network connection after a fatal error.
func (c *Conn) teardown() {
	if c.netConn != nil {
		c.netConn.Close()
	}
	c.reset()
}

func (c *Conn) reset() {
	c.connected = false
	c.sessionPresent = false
	c.netConn = nil
	c.pending.clear()
}

// isTimeout reports whether the error is a network timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
