package hub

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mqtt "github.com/vitalvas/mqtt311"
)

type pipeDialer struct {
	conn net.Conn
}

func (d pipeDialer) Dial(_ context.Context, _ string) (mqtt.NetConn, error) {
	return d.conn, nil
}

func newTestHub(t *testing.T, cfg Config) (*Hub, net.Conn) {
	t.Helper()

	client, broker := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		broker.Close()
	})

	cfg.Address = "pipe"
	cfg.Dialer = pipeDialer{conn: client}

	h, err := New(cfg)
	require.NoError(t, err)
	return h, broker
}

// serveBroker accepts the handshake and then answers every inbound
// packet until the connection closes. It returns a channel carrying
// the topic of every PUBLISH the broker receives.
func serveBroker(t *testing.T, broker net.Conn) <-chan string {
	t.Helper()

	published := make(chan string, 8)

	go func() {
		pkt, _, err := mqtt.ReadPacket(broker, 0)
		if err != nil {
			return
		}
		if _, ok := pkt.(*mqtt.ConnectPacket); !ok {
			return
		}
		if _, err := mqtt.WritePacket(broker, &mqtt.ConnackPacket{
			ReturnCode: mqtt.ConnectAccepted,
		}, 0); err != nil {
			return
		}

		for {
			pkt, _, err := mqtt.ReadPacket(broker, 0)
			if err != nil {
				return
			}

			switch p := pkt.(type) {
			case *mqtt.PublishPacket:
				select {
				case published <- p.Topic:
				default:
				}
				if p.QoS == mqtt.QoS1 {
					mqtt.WritePacket(broker, &mqtt.PubackPacket{PacketID: p.PacketID}, 0) //nolint:errcheck
				}
			case *mqtt.SubscribePacket:
				codes := make([]byte, len(p.Subscriptions))
				for i, sub := range p.Subscriptions {
					codes[i] = sub.QoS
				}
				mqtt.WritePacket(broker, &mqtt.SubackPacket{PacketID: p.PacketID, ReturnCodes: codes}, 0) //nolint:errcheck
			case *mqtt.UnsubscribePacket:
				mqtt.WritePacket(broker, &mqtt.UnsubackPacket{PacketID: p.PacketID}, 0) //nolint:errcheck
			case *mqtt.PingreqPacket:
				mqtt.WritePacket(broker, &mqtt.PingrespPacket{}, 0) //nolint:errcheck
			case *mqtt.DisconnectPacket:
				return
			}
		}
	}()

	return published
}

func TestNewValidatesAccountID(t *testing.T) {
	for _, accountID := range []string{"", "a/b", "a#", "a+"} {
		_, err := New(Config{AccountID: accountID})
		assert.ErrorIs(t, err, ErrInvalidAccountID, "account ID %q", accountID)
	}
}

func TestNewGeneratesDeviceID(t *testing.T) {
	client, broker := net.Pipe()
	defer client.Close()
	defer broker.Close()

	h, err := New(Config{
		AccountID: "acme",
		Dialer:    pipeDialer{conn: client},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(h.DeviceID(), "dev-"))

	h2, err := New(Config{
		AccountID: "acme",
		Dialer:    pipeDialer{conn: client},
	})
	require.NoError(t, err)
	assert.NotEqual(t, h.DeviceID(), h2.DeviceID())
}

func TestHubPublishPrefixesAccount(t *testing.T) {
	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	published := serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop() //nolint:errcheck

	err := h.Publish(context.Background(), "telemetry", []byte("21.5"), mqtt.QoS1)
	require.NoError(t, err)

	select {
	case topic := <-published:
		assert.Equal(t, "acme/telemetry", topic)
	case <-time.After(2 * time.Second):
		t.Fatal("broker never saw the publish")
	}
}

func TestHubDeliveryStripsPrefix(t *testing.T) {
	delivered := make(chan string, 1)

	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	h.SetMessageHandler(func(topic string, payload []byte) {
		delivered <- topic + "=" + string(payload)
	})
	serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop() //nolint:errcheck

	// Push a message from the broker side; the poll loop picks it up.
	_, err := mqtt.WritePacket(broker, &mqtt.PublishPacket{
		Topic:   "acme/commands/reboot",
		Payload: []byte("now"),
	}, 0)
	require.NoError(t, err)

	select {
	case got := <-delivered:
		assert.Equal(t, "commands/reboot=now", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestHubDeliveryIgnoresForeignTopics(t *testing.T) {
	delivered := make(chan string, 2)

	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	h.SetMessageHandler(func(topic string, _ []byte) {
		delivered <- topic
	})
	serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop() //nolint:errcheck

	// A message outside the account namespace, then one inside it. The
	// poll loop processes them in order, so if the foreign one leaked
	// through it would arrive first.
	_, err := mqtt.WritePacket(broker, &mqtt.PublishPacket{
		Topic:   "other/commands/reboot",
		Payload: []byte("x"),
	}, 0)
	require.NoError(t, err)

	_, err = mqtt.WritePacket(broker, &mqtt.PublishPacket{
		Topic:   "acme/commands/reboot",
		Payload: []byte("y"),
	}, 0)
	require.NoError(t, err)

	select {
	case got := <-delivered:
		assert.Equal(t, "commands/reboot", got)
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestHubSubscribeRequiresHandler(t *testing.T) {
	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop() //nolint:errcheck

	_, err := h.Subscribe(context.Background(), "commands/#", mqtt.QoS1)
	assert.ErrorIs(t, err, mqtt.ErrCallbackRequired)
}

func TestHubSubscribeUnsubscribe(t *testing.T) {
	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	h.SetMessageHandler(func(string, []byte) {})
	serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	defer h.Stop() //nolint:errcheck

	granted, err := h.Subscribe(context.Background(), "commands/#", mqtt.QoS1)
	require.NoError(t, err)
	assert.Equal(t, mqtt.QoS1, granted)

	require.NoError(t, h.Unsubscribe(context.Background(), "commands/#"))
}

func TestHubStopIsIdempotent(t *testing.T) {
	h, broker := newTestHub(t, Config{AccountID: "acme", DeviceID: "dev-1"})
	serveBroker(t, broker)

	require.NoError(t, h.Start(context.Background()))
	require.NoError(t, h.Stop())
	require.NoError(t, h.Stop())
}
