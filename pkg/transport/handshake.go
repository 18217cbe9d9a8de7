package transport

import "time"

// startClientHandshake transitions CLOSED -> SYN_SENT. The client picks a
// random starting sequence number and sends a SYN, optionally carrying
// whatever application bytes are already pending (recovered from
// original_source/project/transport.c, which samples input before
// building the SYN).
func (e *Endpoint) startClientHandshake(now time.Time) {
	seq := e.randomInitialSeq()

	var chunk [MaxPayload]byte
	n := e.input(chunk[:])
	payload := append([]byte(nil), chunk[:n]...)

	buf := Encode(seq, 0, FlagSYN, MaxWindow, payload)
	if err := e.sock.Send(buf); err != nil {
		return
	}
	e.sendBuffer.Insert(seq, FlagSYN, payload)
	e.sendSeq = seq + 1
	e.nextToSend = e.sendSeq
	e.phase = PhaseSynSent
	e.armTimer(now)
	e.events.Publish(Event{Type: EventPacketSent, ConnID: e.connID, Seq: seq, Timestamp: now})
}

// handleClientSynAck transitions SYN_SENT -> ESTABLISHED on a verified
// SYN+ACK from the server. It replies with an ACK that either piggybacks
// pending application bytes at the client's real next sequence number, or
// — when there is nothing to send yet — carries the special sequence
// value 0. That zero is a deliberate sentinel the server's handshake
// completion explicitly checks for; when it is used, the client's
// sequence counter is reset to match it (both sides must agree on the
// next expected number, so the reset has to be real, not cosmetic).
func (e *Endpoint) handleClientSynAck(pkt *Packet, now time.Time) {
	e.recvAck = pkt.Seq + 1
	if pkt.Length() > 0 {
		e.recvBuffer.Insert(pkt.Seq, 0, pkt.Payload)
		e.recvAck = e.recvBuffer.DrainContiguous(pkt.Seq, func(payload []byte) {
			e.output(payload)
			e.events.Publish(Event{Type: EventDelivered, ConnID: e.connID, Bytes: len(payload), Timestamp: now})
		})
	}

	// The SYN is implicitly acknowledged by this very SYN+ACK arriving;
	// drop it rather than let it linger as an unremovable entry once the
	// sequence space resets below it (see the seq==0 case below).
	e.sendBuffer = NewOrderedBuffer()

	var chunk [MaxPayload]byte
	n := e.input(chunk[:])
	payload := append([]byte(nil), chunk[:n]...)

	seq := e.sendSeq
	if n == 0 {
		seq = 0
		e.sendSeq = 0
	}

	buf := Encode(seq, e.recvAck, FlagACK, MaxWindow, payload)
	if err := e.sock.Send(buf); err != nil {
		return
	}
	e.sendBuffer.Insert(seq, FlagACK, payload)
	e.sendSeq++
	e.nextToSend = e.sendSeq
	e.phase = PhaseEstablished
	e.armTimer(now)
	e.events.Publish(Event{Type: EventHandshakeComplete, ConnID: e.connID, Seq: seq, Ack: e.recvAck, Timestamp: now})
}

// handleServerSyn transitions CLOSED -> SYN_RCVD on a verified SYN. Any
// payload riding on the SYN is delivered immediately rather than through
// the receive buffer — the handshake has already established exactly
// which sequence number it carries.
func (e *Endpoint) handleServerSyn(pkt *Packet, now time.Time) {
	e.sendSeq = e.randomInitialSeq()
	e.recvAck = pkt.Seq + 1
	if pkt.Length() > 0 {
		e.output(pkt.Payload)
		e.events.Publish(Event{Type: EventDelivered, ConnID: e.connID, Bytes: int(pkt.Length()), Timestamp: now})
	}

	var chunk [MaxPayload]byte
	n := e.input(chunk[:])
	payload := append([]byte(nil), chunk[:n]...)

	seq := e.sendSeq
	buf := Encode(seq, e.recvAck, FlagSYN|FlagACK, MaxWindow, payload)
	if err := e.sock.Send(buf); err != nil {
		return
	}
	e.sendBuffer.Insert(seq, FlagSYN|FlagACK, payload)
	e.sendSeq++
	e.nextToSend = e.sendSeq
	e.phase = PhaseSynRcvd
	e.armTimer(now)
	e.events.Publish(Event{Type: EventPacketSent, ConnID: e.connID, Seq: seq, Ack: e.recvAck, Timestamp: now})
}

// handleServerHandshakeAck transitions SYN_RCVD -> ESTABLISHED. The
// caller has already checked the disjunction (pkt.Seq == 0 ||
// pkt.Seq == e.recvAck); recvAck always advances from the packet's actual
// seq field, so the seq==0 sentinel and the real-sequence case converge
// on the same rule.
func (e *Endpoint) handleServerHandshakeAck(pkt *Packet, now time.Time) {
	if pkt.Length() > 0 {
		e.output(pkt.Payload)
		e.events.Publish(Event{Type: EventDelivered, ConnID: e.connID, Bytes: int(pkt.Length()), Timestamp: now})
	}
	e.recvAck = pkt.Seq + 1
	e.processAck(pkt, now)
	e.phase = PhaseEstablished
	e.events.Publish(Event{Type: EventHandshakeComplete, ConnID: e.connID, Seq: pkt.Seq, Ack: e.recvAck, Timestamp: now})
}
