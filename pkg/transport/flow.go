package transport

// canTransmit reports whether a fresh transmission of length payload bytes
// is allowed under the peer's last-advertised window. Retransmissions
// (timeout or duplicate-ACK driven) bypass this gate entirely — those
// bytes are already counted in bytesInFlight (spec.md §4.5).
func (e *Endpoint) canTransmit(length int) bool {
	return e.bytesInFlight+length <= int(e.peerWindow)
}

// updatePeerWindow records the peer's most recently advertised window.
// Every verified inbound packet updates it, not only ACK-bearing ones —
// recovered from original_source/project/transport.c, which reads
// in_pkt->win before even checking the ACK flag.
func (e *Endpoint) updatePeerWindow(win uint16) {
	if win != e.peerWindow {
		e.peerWindow = win
		e.events.Publish(Event{Type: EventWindowUpdate, ConnID: e.connID, Win: win, Timestamp: e.now()})
	}
}
