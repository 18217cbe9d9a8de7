package transport

import (
	"encoding/binary"
	"errors"
	"math/bits"
)

// ErrCorrupt is returned by ParseAndVerify when the parity check fails.
var ErrCorrupt = errors.New("transport: packet failed parity check")

// ErrMalformed is returned by ParseAndVerify when the datagram is shorter
// than the fixed header, or its length field overruns the datagram.
var ErrMalformed = errors.New("transport: malformed packet")

// Packet is the in-memory form of a wire packet (§3, §6 of the spec).
//
//	offset 0   2   4   6   8   10
//	       +---+---+---+---+---+---------- ... ----------+
//	       |seq|ack|len|win|flg| payload (len bytes)     |
//	       +---+---+---+---+---+---------- ... ----------+
type Packet struct {
	Seq     uint16
	Ack     uint16
	Win     uint16
	Flags   uint16
	Payload []byte
}

// Length is the payload byte count, the wire `len` field.
func (p *Packet) Length() uint16 {
	return uint16(len(p.Payload))
}

// HasFlag reports whether every bit of mask is set in Flags.
func (p *Packet) HasFlag(mask uint16) bool {
	return p.Flags&mask == mask
}

// parity folds the bits of every byte together with XOR; a well-formed
// packet (PARITY set correctly) makes this zero.
func parity(data []byte) byte {
	var ones int
	for _, b := range data {
		ones += bits.OnesCount8(b)
	}
	return byte(ones & 1)
}

// Encode serializes seq/ack/flags/win/payload into a wire packet, setting
// the PARITY flag bit so that the XOR-parity of the whole serialized
// packet is zero. flags should not include FlagParity; Encode computes it.
func Encode(seq, ack, flags, win uint16, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], seq)
	binary.BigEndian.PutUint16(buf[2:4], ack)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	binary.BigEndian.PutUint16(buf[6:8], win)
	binary.BigEndian.PutUint16(buf[8:10], flags)
	copy(buf[10:], payload)

	if parity(buf) != 0 {
		flags |= FlagParity
		binary.BigEndian.PutUint16(buf[8:10], flags)
	}
	return buf
}

// ParseAndVerify reads a wire packet and checks its parity. It does not
// validate anything beyond the header bounds and the parity bit — callers
// discard ErrCorrupt and ErrMalformed packets per spec.md §7.
func ParseAndVerify(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, ErrMalformed
	}
	if parity(data) != 0 {
		return nil, ErrCorrupt
	}

	length := binary.BigEndian.Uint16(data[4:6])
	if HeaderSize+int(length) > len(data) {
		return nil, ErrMalformed
	}

	payload := make([]byte, length)
	copy(payload, data[HeaderSize:HeaderSize+int(length)])

	return &Packet{
		Seq:     binary.BigEndian.Uint16(data[0:2]),
		Ack:     binary.BigEndian.Uint16(data[2:4]),
		Win:     binary.BigEndian.Uint16(data[6:8]),
		Flags:   binary.BigEndian.Uint16(data[8:10]),
		Payload: payload,
	}, nil
}
