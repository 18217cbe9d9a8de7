package transport

import (
	"errors"
	"net"
	"time"
)

// ErrNoData is returned by Socket.Recv when no datagram is available right
// now — the non-blocking "nothing pending" case the event loop polls for.
var ErrNoData = errors.New("transport: no datagram available")

// pollInterval bounds how long a single Recv call may block waiting for a
// datagram. It stands in for a true non-blocking socket: short enough that
// the event loop stays responsive to the input callback and the timer,
// long enough that the loop does not spin a CPU core polling an idle
// connection (spec.md §4.6 calls this a quality-of-implementation choice,
// not a correctness property).
const pollInterval = 5 * time.Millisecond

// Socket is the datagram transport an Endpoint drives. It is always
// addressed at a single peer — spec.md assumes one peer per endpoint and
// does not enforce peer-address matching.
type Socket interface {
	// Recv returns the next datagram's bytes, or ErrNoData if none has
	// arrived within the implementation's polling interval.
	Recv(buf []byte) (int, error)
	// Send transmits data to the configured peer.
	Send(data []byte) error
}

// UDPSocket adapts a bound *net.UDPConn, addressed at a fixed peer, to
// Socket. It emulates non-blocking receive with a short read deadline
// rather than platform-specific O_NONBLOCK + select, which keeps the
// event loop portable.
type UDPSocket struct {
	conn *net.UDPConn
	peer *net.UDPAddr
}

// NewUDPSocket wraps a bound UDP connection already addressed or ready to
// be addressed at peer.
func NewUDPSocket(conn *net.UDPConn, peer *net.UDPAddr) *UDPSocket {
	return &UDPSocket{conn: conn, peer: peer}
}

func (s *UDPSocket) Recv(buf []byte) (int, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, err
	}
	n, addr, err := s.conn.ReadFromUDP(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, ErrNoData
		}
		return 0, err
	}
	if s.peer == nil || s.peer.Port == 0 {
		s.peer = addr
	}
	return n, nil
}

func (s *UDPSocket) Send(data []byte) error {
	_, err := s.conn.WriteToUDP(data, s.peer)
	return err
}

// InputFunc supplies up to len(buf) bytes of pending application data,
// returning how many it wrote. It must not block; 0 means nothing pending
// right now. This is the "user-supplied byte source" spec.md leaves
// external to THE CORE.
type InputFunc func(buf []byte) int

// OutputFunc consumes in-order received payload bytes. It must not block.
// This is the "user-supplied byte sink" spec.md leaves external to THE
// CORE.
type OutputFunc func(data []byte)
