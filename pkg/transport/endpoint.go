package transport

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Config bundles the parameters an Endpoint needs beyond its Role. A nil
// Clock or Events falls back to a default; Socket, Input and Output have
// no default.
type Config struct {
	Role   Role
	Socket Socket
	Input  InputFunc
	Output OutputFunc
	Events *EventBus

	// Clock lets tests supply a deterministic time source. Nil uses
	// time.Now.
	Clock func() time.Time
}

// Endpoint drives one side of a connection through handshake, reliable
// delivery and flow control. It is single-threaded and cooperative: Step
// must be called repeatedly from one goroutine, and it never blocks for
// longer than the socket's polling interval (spec.md §5).
type Endpoint struct {
	connID string
	role   Role
	phase  Phase

	sock   Socket
	input  InputFunc
	output OutputFunc
	events *EventBus
	clock  func() time.Time
	rng    *rand.Rand

	sendSeq      uint16 // next sequence number this endpoint will assign
	nextToSend   uint16 // lowest seq in sendBuffer not yet transmitted once
	recvAck      uint16 // next seq expected from the peer, in order

	lastAckReceived uint16
	haveAck         bool // whether any ACK has ever been received (§ open question)
	dupAckCount     int

	bytesInFlight int
	peerWindow    uint16

	rtoDeadline  time.Time
	timerRunning bool

	sendBuffer *OrderedBuffer
	recvBuffer *OrderedBuffer

	ackPending bool // a payload-bearing packet arrived since the last transmitted ACK

	recvBuf [HeaderSize + MaxPayload]byte
}

// NewEndpoint constructs an Endpoint in PhaseClosed, ready to have Step
// called. The client side initiates on its first Step; the server side
// waits for an inbound SYN.
func NewEndpoint(cfg Config) *Endpoint {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	events := cfg.Events
	if events == nil {
		events = NewEventBus()
	}
	return &Endpoint{
		connID:     uuid.NewString(),
		role:       cfg.Role,
		phase:      PhaseClosed,
		sock:       cfg.Socket,
		input:      cfg.Input,
		output:     cfg.Output,
		events:     events,
		clock:      clock,
		rng:        rand.New(rand.NewSource(clock().UnixNano() ^ int64(cfg.Role)<<32)),
		peerWindow: MinWindow,
		sendBuffer: NewOrderedBuffer(),
		recvBuffer: NewOrderedBuffer(),
	}
}

func (e *Endpoint) now() time.Time { return e.clock() }

// ConnID returns the correlation identifier tagging every event this
// endpoint raises.
func (e *Endpoint) ConnID() string { return e.connID }

// Phase returns the current lifecycle phase.
func (e *Endpoint) Phase() Phase { return e.phase }

// randomInitialSeq picks the endpoint's starting sequence number, seeded
// from wall-clock time mixed with the role so that two endpoints started
// at the same instant on the same machine still diverge.
func (e *Endpoint) randomInitialSeq() uint16 {
	return uint16(initialSeqMin + e.rng.Intn(initialSeqMax-initialSeqMin+1))
}

// Step runs one iteration of the event loop: poll the socket, verify and
// process anything received, drive the handshake, pull pending
// application bytes, and (re)transmit as flow control and the retransmit
// timer allow. It never blocks longer than the socket's polling interval.
func (e *Endpoint) Step() error {
	now := e.now()

	if e.phase == PhaseClosed && e.role == RoleClient {
		e.startClientHandshake(now)
	}

	n, err := e.sock.Recv(e.recvBuf[:])
	switch {
	case err == nil:
		e.handleDatagram(e.recvBuf[:n], now)
	case err == ErrNoData:
		// nothing pending this tick
	default:
		return err
	}

	e.checkTimeout(now)
	e.pumpOutgoing(now)
	return nil
}

// handleDatagram verifies a received datagram and dispatches it to the
// handshake driver, ACK processor, and receive buffer in the order
// spec.md §4.6 prescribes.
func (e *Endpoint) handleDatagram(data []byte, now time.Time) {
	pkt, err := ParseAndVerify(data)
	if err != nil {
		evType := EventCorruptDiscarded
		if err == ErrMalformed {
			evType = EventMalformedDiscarded
		}
		e.events.Publish(Event{Type: evType, ConnID: e.connID, Timestamp: now})
		return
	}
	e.events.Publish(Event{Type: EventPacketReceived, ConnID: e.connID, Seq: pkt.Seq, Ack: pkt.Ack, Bytes: int(pkt.Length()), Timestamp: now})

	e.updatePeerWindow(pkt.Win)

	switch {
	case e.role == RoleClient && e.phase == PhaseSynSent && pkt.HasFlag(FlagSYN):
		e.handleClientSynAck(pkt, now)
		return
	case e.role == RoleServer && e.phase == PhaseClosed && pkt.HasFlag(FlagSYN):
		e.handleServerSyn(pkt, now)
		return
	case e.role == RoleServer && e.phase == PhaseSynRcvd:
		if pkt.Seq == 0 || pkt.Seq == e.recvAck {
			e.handleServerHandshakeAck(pkt, now)
			return
		}
	}

	if e.phase != PhaseEstablished {
		return
	}

	if pkt.HasFlag(FlagACK) {
		e.processAck(pkt, now)
	}
	if pkt.Length() > 0 {
		// A packet at or above recvAck is new (or the front of a gap);
		// anything below it is a duplicate of data already delivered and
		// must be dropped rather than inserted, or it would sit at the
		// head of the buffer forever and block every future drain
		// (original_source/project/transport.c:219).
		if pkt.Seq >= e.recvAck {
			e.recvBuffer.Insert(pkt.Seq, 0, pkt.Payload)
		}
		e.ackPending = true
	}
	e.recvAck = e.recvBuffer.DrainContiguous(e.recvAck, func(payload []byte) {
		e.output(payload)
		e.events.Publish(Event{Type: EventDelivered, ConnID: e.connID, Bytes: len(payload), Timestamp: now})
	})
}

// pumpOutgoing picks up any application bytes waiting to be sent and, once
// established, transmits the next untransmitted send-buffer entry if the
// peer's window allows it. Handshake-phase transmission is driven
// entirely by handleDatagram / startClientHandshake, not here.
func (e *Endpoint) pumpOutgoing(now time.Time) {
	if e.phase != PhaseEstablished {
		return
	}

	var chunk [MaxPayload]byte
	n := e.input(chunk[:])
	if n > 0 {
		payload := append([]byte(nil), chunk[:n]...)
		seq := e.sendSeq
		e.sendSeq++
		e.sendBuffer.Insert(seq, FlagACK, payload)
	}

	entry, ok := e.pickCurrent()
	if !ok {
		if e.ackPending {
			e.sendDedicatedAck(now)
			e.ackPending = false
		}
		return
	}
	if !e.canTransmit(len(entry.Payload)) {
		if e.ackPending {
			e.sendDedicatedAck(now)
			e.ackPending = false
		}
		return
	}
	e.transmit(entry, now)
	e.nextToSend = entry.Seq + 1
	e.ackPending = false
}

// pickCurrent returns the lowest-sequence send-buffer entry that has never
// been transmitted, if any.
func (e *Endpoint) pickCurrent() (BufferEntry, bool) {
	for _, entry := range e.sendBuffer.Entries() {
		if entry.Seq >= e.nextToSend {
			return entry, true
		}
	}
	return BufferEntry{}, false
}

// transmit sends entry as a data/ACK packet, piggybacking the current
// recvAck, and accounts it in bytesInFlight and the retransmit timer.
func (e *Endpoint) transmit(entry BufferEntry, now time.Time) {
	buf := Encode(entry.Seq, e.recvAck, entry.Flags, MaxWindow, entry.Payload)
	if err := e.sock.Send(buf); err != nil {
		return
	}
	e.bytesInFlight += len(entry.Payload)
	e.events.Publish(Event{Type: EventBytesInFlightChanged, ConnID: e.connID, Bytes: e.bytesInFlight, Timestamp: now})
	e.armTimer(now)
	e.events.Publish(Event{Type: EventPacketSent, ConnID: e.connID, Seq: entry.Seq, Ack: e.recvAck, Bytes: len(entry.Payload), Timestamp: now})
}

// armTimer starts the retransmit timer if it is not already running.
func (e *Endpoint) armTimer(now time.Time) {
	if !e.timerRunning {
		e.timerRunning = true
		e.rtoDeadline = now.Add(RTO)
	}
}

// sendDedicatedAck transmits a header-only ACK, used when no data packet
// goes out this tick to piggyback the acknowledgement onto (none pending,
// or the next one is held back by the peer's window).
func (e *Endpoint) sendDedicatedAck(now time.Time) {
	buf := Encode(0, e.recvAck, FlagACK, MaxWindow, nil)
	_ = e.sock.Send(buf)
	e.events.Publish(Event{Type: EventPacketSent, ConnID: e.connID, Seq: 0, Ack: e.recvAck, Timestamp: now})
}
