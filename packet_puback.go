package mqtt311

import (
	"encoding/binary"
	"io"
)

// PubackPacket represents an MQTT PUBACK packet, acknowledging a QoS 1 PUBLISH.
type PubackPacket struct {
	// PacketID identifies the PUBLISH being acknowledged.
	PacketID uint16
}

// Type returns the packet type.
func (p *PubackPacket) Type() PacketType {
	return PacketPUBACK
}

// Encode writes the packet to the writer.
func (p *PubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	header := FixedHeader{
		PacketType:      PacketPUBACK,
		Flags:           0x00,
		RemainingLength: 2,
	}

	total, err := header.Encode(w)
	if err != nil {
		return total, err
	}

	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], p.PacketID)

	n, err := w.Write(buf[:])
	return total + n, err
}

// Decode reads the packet from the reader.
func (p *PubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketPUBACK {
		return 0, ErrInvalidPacketType
	}

	if header.RemainingLength != 2 {
		return 0, ErrProtocolViolation
	}

	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return n, err
	}

	p.PacketID = binary.BigEndian.Uint16(buf[:])

	return n, p.Validate()
}

// Validate validates the packet contents.
func (p *PubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	return nil
}
