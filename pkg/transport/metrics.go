package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors that observe an Endpoint's
// diagnostic event stream. It implements no transport behavior of its own
// — Attach is the only way it learns anything.
type Metrics struct {
	packetsSent        prometheus.Counter
	packetsReceived    prometheus.Counter
	corruptDiscarded   prometheus.Counter
	malformedDiscarded prometheus.Counter
	fastRetransmits    prometheus.Counter
	timeoutRetransmit  prometheus.Counter
	bytesInFlight      prometheus.Gauge
	peerWindow         prometheus.Gauge
}

// NewMetrics registers a fresh set of collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		packetsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_packets_sent_total",
			Help: "Packets transmitted, not counting retransmissions or the client's handshake ACK.",
		}),
		packetsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_packets_received_total",
			Help: "Packets received that passed parity verification.",
		}),
		corruptDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_packets_corrupt_total",
			Help: "Packets discarded for failing parity verification.",
		}),
		malformedDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_packets_malformed_total",
			Help: "Datagrams discarded for being too short or overrunning their declared length.",
		}),
		fastRetransmits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_fast_retransmits_total",
			Help: "Retransmissions triggered by duplicate ACKs.",
		}),
		timeoutRetransmit: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rdt_timeout_retransmits_total",
			Help: "Retransmissions triggered by RTO expiry.",
		}),
		bytesInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdt_bytes_in_flight",
			Help: "Bytes sent but not yet acknowledged.",
		}),
		peerWindow: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdt_peer_window_bytes",
			Help: "Last-advertised peer flow-control window.",
		}),
	}
	reg.MustRegister(
		m.packetsSent, m.packetsReceived, m.corruptDiscarded, m.malformedDiscarded,
		m.fastRetransmits, m.timeoutRetransmit,
		m.bytesInFlight, m.peerWindow,
	)
	return m
}

// Attach subscribes m to the events on bus that its collectors track;
// handshake-complete and delivered events are not observed.
func (m *Metrics) Attach(bus *EventBus) {
	bus.Subscribe(EventPacketSent, func(Event) { m.packetsSent.Inc() })
	bus.Subscribe(EventPacketReceived, func(Event) { m.packetsReceived.Inc() })
	bus.Subscribe(EventCorruptDiscarded, func(Event) { m.corruptDiscarded.Inc() })
	bus.Subscribe(EventMalformedDiscarded, func(Event) { m.malformedDiscarded.Inc() })
	bus.Subscribe(EventFastRetransmit, func(Event) { m.fastRetransmits.Inc() })
	bus.Subscribe(EventRetransmitTimeout, func(Event) { m.timeoutRetransmit.Inc() })
	bus.Subscribe(EventWindowUpdate, func(ev Event) { m.peerWindow.Set(float64(ev.Win)) })
	bus.Subscribe(EventBytesInFlightChanged, func(ev Event) { m.bytesInFlight.Set(float64(ev.Bytes)) })
}
