package mqtt311

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrNoSubackCodes is returned when a SUBACK carries no return codes.
var ErrNoSubackCodes = errors.New("suback packet must contain at least one return code")

// SubackPacket represents an MQTT SUBACK packet.
type SubackPacket struct {
	// PacketID matches the SUBSCRIBE being acknowledged.
	PacketID uint16

	// ReturnCodes holds one granted QoS (or SubackFailure) per requested filter,
	// in request order.
	ReturnCodes []byte
}

// Type returns the packet type.
func (p *SubackPacket) Type() PacketType {
	return PacketSUBACK
}

// Encode writes the packet to the writer.
func (p *SubackPacket) Encode(w io.Writer) (int, error) {
	if err := p.Validate(); err != nil {
		return 0, err
	}

	var buf bytes.Buffer

	var idBuf [2]byte
	binary.BigEndian.PutUint16(idBuf[:], p.PacketID)
	buf.Write(idBuf[:])
	buf.Write(p.ReturnCodes)

	header := FixedHeader{
		PacketType:      PacketSUBACK,
		Flags:           0x00,
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
func (p *SubackPacket) Decode(r io.Reader, header FixedHeader) (int, error) {
	if header.PacketType != PacketSUBACK {
		return 0, ErrInvalidPacketType
	}

	if header.RemainingLength < 3 {
		return 0, ErrProtocolViolation
	}

	var totalRead int

	var idBuf [2]byte
	n, err := io.ReadFull(r, idBuf[:])
	totalRead += n
	if err != nil {
		return totalRead, err
	}
	p.PacketID = binary.BigEndian.Uint16(idBuf[:])

	p.ReturnCodes = make([]byte, header.RemainingLength-2)
	n, err = io.ReadFull(r, p.ReturnCodes)
	totalRead += n
	if err != nil {
		return totalRead, err
	}

	return totalRead, p.Validate()
}

// Validate validates the packet contents.
func (p *SubackPacket) Validate() error {
	if p.PacketID == 0 {
		return ErrPacketIDRequired
	}

	if len(p.ReturnCodes) == 0 {
		return ErrNoSubackCodes
	}

	for _, code := range p.ReturnCodes {
		switch code {
		case SubackGrantedQoS0, SubackGrantedQoS1, SubackGrantedQoS2, SubackFailure:
		default:
			return ErrInvalidSubackCode
		}
	}

	return nil
}
