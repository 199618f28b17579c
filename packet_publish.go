package mqtt311

import (
	"bytes"
	"errors"
	"io"
)

// PUBLISH packet errors.
var (
	ErrInvalidQoS       = errors.New("invalid QoS level")
	ErrPacketIDRequired = errors.New("packet identifier required")
	ErrPacketIDReserved = errors.New("packet identifier must be zero")
)

// PublishPacket represents an MQTT PUBLISH packet.
type PublishPacket struct {
	// Topic is the topic name. Must not contain wildcard characters.
	Topic string

	// Payload is the application message. May be empty.
	Payload []byte

	// QoS is the delivery guarantee encoded in the fixed header flags.
	QoS byte

	// Retain asks the broker to store the message for future subscribers.
	Retain bool

	// DUP marks a possible redelivery. Meaningless at QoS 0.
	DUP bool

	// PacketID correlates the PUBACK. Present only at QoS > 0.
	PacketID uint16
}

// Type returns the packet type.
func (p *PublishPacket) Type() PacketType {
	return PacketPUBLISH
}

// headerFlags returns the fixed header flags for this packet.
func (p *PublishPacket) headerFlags() byte {
	var flags byte

	if p.DUP {
		flags |= flagDUP
	}

	flags |= (p.QoS & 0x03) << 1

	if p.Retain {
		flags |= flagRetain
	}

	return flags
}

// Encode writes the packet to the writer.
func (p *PublishPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	// Build variable header and payload
	var buf bytes.Buffer

	// Topic Name
	if _, err := encodeString(&buf, p.Topic); err != nil {
		return 0, err
	}

	// Packet Identifier, only at QoS > 0
	if p.QoS > 0 {
		buf.Write([]byte{byte(p.PacketID >> 8), byte(p.PacketID)})
	}

	// Payload
	buf.Write(p.Payload)

	header := FixedHeader{
		PacketType:      PacketPUBLISH,
		Flags:           p.headerFlags(),
		RemainingLength: uint32(buf.Len()),
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	n, err := w.Write(buf.Bytes())
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *PublishPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBLISH {
		return 0, ErrInvalidPacketType
	}

	p.DUP = header.Flags&flagDUP != 0
	p.QoS = (header.Flags >> 1) & 0x03
	p.Retain = header.Flags&flagRetain != 0

	if p.QoS == 3 {
		return 0, ErrInvalidQoS
	}

	var totalRead int

	// Topic Name
	topic, n, err := decodeString(r)
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.Topic = topic

	// Packet Identifier, only at QoS > 0
	if p.QoS > 0 {
		var idBuf [2]byte
		n, err = io.ReadFull(r, idBuf[:])
		totalRead += n
		if err != nil {
			return totalRead, err
		}
		p.PacketID = uint16(idBuf[0])<<8 | uint16(idBuf[1])
	}

	// Payload is everything remaining
	payloadLen := int(header.RemainingLength) - totalRead
	if payloadLen < 0 {
		return totalRead, ErrProtocolViolation
	}
	if payloadLen > 0 {
		p.Payload = make([]byte, payloadLen)
		n, err = io.ReadFull(r, p.Payload)
		totalRead += n
		if err != nil {
			return totalRead, err
		}
	}

	return totalRead, nil
}

// Validate validates the packet contents.
func (p *PublishPacket) Validate() error {
	if err := ValidateTopicName(p.Topic); err != nil {
		return err
	}

	if p.QoS > QoS2 {
		return ErrInvalidQoS
	}

	if p.QoS == QoS2 {
		return ErrQoS2NotSupported
	}

	// Packet identifier rules depend on QoS
	if p.QoS == QoS0 {
		if p.PacketID != 0 {
			return ErrPacketIDReserved
		}
		if p.DUP {
			return ErrInvalidPacketFlags
		}
	} else if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	return nil
}

// Message converts the packet to a user-facing message.
func (p *PublishPacket) Message() *Message {
	return &Message{
		Topic:   p.Topic,
		Payload: p.Payload,
		QoS:     p.QoS,
		Retain:  p.Retain,
		DUP:     p.DUP,
	}
}
