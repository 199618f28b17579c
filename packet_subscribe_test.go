package mqtt311

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribePacketEncodeDecode(t *testing.T) {
	packet := &SubscribePacket{
		PacketID: 3,
		Subscriptions: []Subscription{
			{TopicFilter: "sensors/+/temp", QoS: QoS1},
			{TopicFilter: "alerts/#", QoS: QoS0},
		},
	}

	var buf bytes.Buffer
	_, err := packet.Encode(&buf)
	require.NoError(t, err)

	// SUBSCRIBE carries fixed flags 0x02
	assert.Equal(t, byte(0x82), buf.Bytes()[0])

	decoded, _, err := ReadPacket(&buf, MaxPacketSizeDefault)
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}

func TestSubscribePacketValidate(t *testing.T) {
	tests := []struct {
		name    string
		packet  *SubscribePacket
		wantErr error
	}{
		{
			name:    "zero packet id",
			packet:  &SubscribePacket{Subscriptions: []Subscription{{TopicFilter: "t", QoS: 0}}},
			wantErr: ErrPacketIDRequired,
		},
		{
			name:    "no subscriptions",
			packet:  &SubscribePacket{PacketID: 1},
			wantErr: ErrNoSubscriptions,
		},
		{
			name: "invalid filter",
			packet: &SubscribePacket{
				PacketID:      1,
				Subscriptions: []Subscription{{TopicFilter: "a/#/b", QoS: 0}},
			},
			wantErr: ErrInvalidTopicFilter,
		},
		{
			name: "qos2 requested",
			packet: &SubscribePacket{
				PacketID:      1,
				Subscriptions: []Subscription{{TopicFilter: "t", QoS: QoS2}},
			},
			wantErr: ErrQoS2NotSupported,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.packet.Validate(), tt.wantErr)
		})
	}
}

func TestSubackPacketEncodeDecode(t *testing.T) {
	packet := &SubackPacket{
		PacketID:    3,
		ReturnCodes: []byte{SubackGrantedQoS1, SubackFailure},
	}

	var buf bytes.Buffer
	_, err := packet.Encode(&buf)
	require.NoError(t, err)

	decoded, _, err := ReadPacket(&buf, MaxPacketSizeDefault)
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}

func TestSubackPacketValidate(t *testing.T) {
	assert.ErrorIs(t, (&SubackPacket{ReturnCodes: []byte{0}}).Validate(), ErrPacketIDRequired)
	assert.ErrorIs(t, (&SubackPacket{PacketID: 1}).Validate(), ErrNoSubackCodes)
	assert.ErrorIs(t, (&SubackPacket{PacketID: 1, ReturnCodes: []byte{0x03}}).Validate(), ErrInvalidSubackCode)
	assert.NoError(t, (&SubackPacket{PacketID: 1, ReturnCodes: []byte{SubackFailure}}).Validate())
}

func TestUnsubscribePacketEncodeDecode(t *testing.T) {
	packet := &UnsubscribePacket{
		PacketID:     4,
		TopicFilters: []string{"sensors/+/temp", "alerts/#"},
	}

	var buf bytes.Buffer
	_, err := packet.Encode(&buf)
	require.NoError(t, err)

	// UNSUBSCRIBE carries fixed flags 0x02
	assert.Equal(t, byte(0xA2), buf.Bytes()[0])

	decoded, _, err := ReadPacket(&buf, MaxPacketSizeDefault)
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}

func TestUnsubscribePacketValidate(t *testing.T) {
	assert.ErrorIs(t, (&UnsubscribePacket{TopicFilters: []string{"t"}}).Validate(), ErrPacketIDRequired)
	assert.ErrorIs(t, (&UnsubscribePacket{PacketID: 1}).Validate(), ErrNoTopicFilters)
	assert.NoError(t, (&UnsubscribePacket{PacketID: 1, TopicFilters: []string{"t"}}).Validate())
}

func TestUnsubackPacketEncodeDecode(t *testing.T) {
	packet := &UnsubackPacket{PacketID: 4}

	var buf bytes.Buffer
	_, err := packet.Encode(&buf)
	require.NoError(t, err)

	assert.Equal(t, []byte{0xB0, 0x02, 0x00, 0x04}, buf.Bytes())

	decoded, _, err := ReadPacket(&buf, MaxPacketSizeDefault)
	require.NoError(t, err)
	assert.Equal(t, packet, decoded)
}
