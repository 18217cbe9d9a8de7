package transport

import "time"

// processAck applies an incoming cumulative ACK: advances lastAckReceived
// and releases acknowledged send-buffer entries on a new ACK, or counts a
// duplicate towards the fast-retransmit threshold.
//
// Duplicate counting only starts once an ACK has actually been received —
// before that, every unacknowledged packet is simply "unacknowledged" and
// the retransmit timer alone drives retransmission (spec.md's own
// resolution of this open question).
func (e *Endpoint) processAck(pkt *Packet, now time.Time) {
	cumAck := pkt.Ack

	switch {
	case e.haveAck && cumAck == e.lastAckReceived:
		e.dupAckCount++
		if e.dupAckCount >= DupAcks {
			e.dupAckCount = 0
			if head, ok := e.sendBuffer.Head(); ok {
				e.retransmit(head, now, EventFastRetransmit)
			}
		}

	case !e.haveAck || cumAck > e.lastAckReceived:
		released := e.sendBuffer.RemoveBelow(cumAck)
		e.bytesInFlight -= released
		e.events.Publish(Event{Type: EventBytesInFlightChanged, ConnID: e.connID, Bytes: e.bytesInFlight, Timestamp: now})
		e.lastAckReceived = cumAck
		e.haveAck = true
		e.dupAckCount = 0

		if e.sendBuffer.IsEmpty() {
			e.timerRunning = false
		} else {
			e.rtoDeadline = now.Add(RTO)
			e.timerRunning = true
		}

	default:
		// cumAck < lastAckReceived: stale or reordered ACK, ignored —
		// lastAckReceived never moves backwards.
	}
}

// checkTimeout retransmits the oldest unacknowledged entry if the
// retransmit timer has expired, and re-arms it for the next interval.
func (e *Endpoint) checkTimeout(now time.Time) {
	if !e.timerRunning || now.Before(e.rtoDeadline) {
		return
	}
	head, ok := e.sendBuffer.Head()
	if !ok {
		e.timerRunning = false
		return
	}
	e.retransmit(head, now, EventRetransmitTimeout)
}

// retransmit resends entry outside of flow control (it was already
// admitted once, so its bytes remain counted in bytesInFlight) and
// re-arms the retransmit timer.
func (e *Endpoint) retransmit(entry BufferEntry, now time.Time, reason EventType) {
	buf := Encode(entry.Seq, e.recvAck, entry.Flags, MaxWindow, entry.Payload)
	if err := e.sock.Send(buf); err != nil {
		return
	}
	e.rtoDeadline = now.Add(RTO)
	e.timerRunning = true
	e.events.Publish(Event{Type: reason, ConnID: e.connID, Seq: entry.Seq, Ack: e.recvAck, Bytes: len(entry.Payload), Timestamp: now})
}
