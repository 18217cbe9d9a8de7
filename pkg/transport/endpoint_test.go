package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// linkedSocket connects two Endpoints in memory: writes on one side land
// in the other side's read queue. Used to simulate a lossless or lossy
// network between a client and a server Endpoint without touching a real
// UDP socket.
type linkedSocket struct {
	queue *[][]byte
	peer  *[][]byte
	drop  func([]byte) bool
}

func newLinkedSockets() (client, server *linkedSocket) {
	a := make([][]byte, 0)
	b := make([][]byte, 0)
	client = &linkedSocket{queue: &a, peer: &b}
	server = &linkedSocket{queue: &b, peer: &a}
	return client, server
}

func (s *linkedSocket) Recv(buf []byte) (int, error) {
	q := *s.queue
	if len(q) == 0 {
		return 0, ErrNoData
	}
	n := copy(buf, q[0])
	*s.queue = q[1:]
	return n, nil
}

func (s *linkedSocket) Send(data []byte) error {
	if s.drop != nil && s.drop(data) {
		return nil
	}
	cp := append([]byte(nil), data...)
	*s.peer = append(*s.peer, cp)
	return nil
}

// inputQueue feeds pre-scheduled chunks to an Endpoint one call at a time,
// returning 0 once exhausted.
type inputQueue struct {
	chunks [][]byte
}

func (q *inputQueue) fn(buf []byte) int {
	if len(q.chunks) == 0 {
		return 0
	}
	n := copy(buf, q.chunks[0])
	q.chunks = q.chunks[1:]
	return n
}

func TestEndpointHandshakeAndDataTransfer(t *testing.T) {
	clientSock, serverSock := newLinkedSockets()

	var delivered []byte
	clientIn := &inputQueue{}
	serverIn := &inputQueue{}

	client := NewEndpoint(Config{
		Role:   RoleClient,
		Socket: clientSock,
		Input:  clientIn.fn,
		Output: func([]byte) {},
	})
	server := NewEndpoint(Config{
		Role:   RoleServer,
		Socket: serverSock,
		Input:  serverIn.fn,
		Output: func(p []byte) { delivered = append(delivered, p...) },
	})

	for i := 0; i < 10 && server.Phase() != PhaseEstablished; i++ {
		require.NoError(t, client.Step())
		require.NoError(t, server.Step())
	}
	assert.Equal(t, PhaseEstablished, client.Phase())
	assert.Equal(t, PhaseEstablished, server.Phase())

	clientIn.chunks = [][]byte{[]byte("hello, server")}
	for i := 0; i < 10 && string(delivered) != "hello, server"; i++ {
		require.NoError(t, client.Step())
		require.NoError(t, server.Step())
	}
	assert.Equal(t, "hello, server", string(delivered))
}

func TestEndpointHandshakeSurvivesSynLoss(t *testing.T) {
	clientSock, serverSock := newLinkedSockets()

	dropped := 0
	clientSock.drop = func(data []byte) bool {
		pkt, err := ParseAndVerify(data)
		if err == nil && pkt.HasFlag(FlagSYN) && !pkt.HasFlag(FlagACK) && dropped == 0 {
			dropped++
			return true
		}
		return false
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	client := NewEndpoint(Config{Role: RoleClient, Socket: clientSock, Input: func([]byte) int { return 0 }, Output: func([]byte) {}, Clock: clock})
	server := NewEndpoint(Config{Role: RoleServer, Socket: serverSock, Input: func([]byte) int { return 0 }, Output: func([]byte) {}, Clock: clock})

	for i := 0; i < 5 && server.Phase() != PhaseEstablished; i++ {
		require.NoError(t, client.Step())
		require.NoError(t, server.Step())
		now = now.Add(50 * time.Millisecond)
	}
	// first SYN was dropped; nothing should have completed yet without a
	// retransmit past the RTO.
	assert.NotEqual(t, PhaseEstablished, server.Phase())

	now = now.Add(RTO + time.Millisecond)
	for i := 0; i < 10 && server.Phase() != PhaseEstablished; i++ {
		require.NoError(t, client.Step())
		require.NoError(t, server.Step())
	}
	assert.Equal(t, PhaseEstablished, client.Phase())
	assert.Equal(t, PhaseEstablished, server.Phase())
}

func TestEndpointReassemblesOutOfOrderData(t *testing.T) {
	sock := &fakeSocket{}
	var delivered [][]byte

	ep := NewEndpoint(Config{
		Role:   RoleServer,
		Socket: sock,
		Input:  func([]byte) int { return 0 },
		Output: func(p []byte) { delivered = append(delivered, append([]byte(nil), p...)) },
	})
	ep.phase = PhaseEstablished
	ep.recvAck = 10
	ep.peerWindow = MaxWindow

	sock.queue = [][]byte{
		Encode(11, 0, FlagACK, MaxWindow, []byte("second")),
		Encode(10, 0, FlagACK, MaxWindow, []byte("first")),
	}

	require.NoError(t, ep.Step())
	assert.Equal(t, 0, len(delivered), "out-of-order packet should buffer, not deliver")

	require.NoError(t, ep.Step())
	require.Len(t, delivered, 2)
	assert.Equal(t, "first", string(delivered[0]))
	assert.Equal(t, "second", string(delivered[1]))
	assert.EqualValues(t, 12, ep.recvAck)
}

func TestEndpointDiscardsCorruptPacket(t *testing.T) {
	sock := &fakeSocket{}
	ep := NewEndpoint(Config{
		Role:   RoleServer,
		Socket: sock,
		Input:  func([]byte) int { return 0 },
		Output: func([]byte) {},
	})
	ep.phase = PhaseEstablished
	ep.recvAck = 5

	var corrupted int
	ep.events.Subscribe(EventCorruptDiscarded, func(Event) { corrupted++ })

	buf := Encode(5, 0, FlagACK, MaxWindow, []byte("payload"))
	buf[len(buf)-1] ^= 0x01
	sock.queue = [][]byte{buf}

	require.NoError(t, ep.Step())
	assert.Equal(t, 1, corrupted)
	assert.EqualValues(t, 5, ep.recvAck, "recvAck must not advance on a corrupt packet")
}

func TestEndpointFastRetransmitsOnThreeDuplicateAcks(t *testing.T) {
	sock := &fakeSocket{}
	ep := NewEndpoint(Config{
		Role:   RoleClient,
		Socket: sock,
		Input:  func([]byte) int { return 0 },
		Output: func([]byte) {},
	})
	ep.phase = PhaseEstablished
	ep.peerWindow = MaxWindow
	ep.sendBuffer.Insert(1, FlagACK, []byte("unacked"))
	ep.nextToSend = 2
	ep.bytesInFlight = len("unacked")
	ep.haveAck = true
	ep.lastAckReceived = 1

	var fastRetransmits int
	ep.events.Subscribe(EventFastRetransmit, func(Event) { fastRetransmits++ })

	now := time.Now()
	dupAck := Encode(2, 1, FlagACK, MaxWindow, nil)
	for i := 0; i < 3; i++ {
		pkt, err := ParseAndVerify(dupAck)
		require.NoError(t, err)
		ep.processAck(pkt, now)
	}

	assert.Equal(t, 1, fastRetransmits)
}

func TestEndpointRetransmitsOnTimeout(t *testing.T) {
	sock := &fakeSocket{}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ep := NewEndpoint(Config{
		Role:   RoleClient,
		Socket: sock,
		Input:  func([]byte) int { return 0 },
		Output: func([]byte) {},
		Clock:  clock,
	})
	ep.phase = PhaseEstablished
	ep.peerWindow = MaxWindow
	ep.sendBuffer.Insert(1, FlagACK, []byte("payload"))
	ep.nextToSend = 2
	ep.timerRunning = true
	ep.rtoDeadline = now.Add(RTO)

	require.NoError(t, ep.Step())
	assert.Empty(t, sock.sent, "timer not yet expired, no retransmit expected")

	now = now.Add(RTO + time.Millisecond)
	require.NoError(t, ep.Step())
	require.NotEmpty(t, sock.sent)

	pkt, err := ParseAndVerify(sock.sent[len(sock.sent)-1])
	require.NoError(t, err)
	assert.EqualValues(t, 1, pkt.Seq)
}

// fakeSocket is a minimal Socket with a pre-loaded receive queue and a
// record of everything sent, used when a test wants to drive an Endpoint
// directly rather than simulate a full peer.
type fakeSocket struct {
	queue [][]byte
	sent  [][]byte
}

func (f *fakeSocket) Recv(buf []byte) (int, error) {
	if len(f.queue) == 0 {
		return 0, ErrNoData
	}
	n := copy(buf, f.queue[0])
	f.queue = f.queue[1:]
	return n, nil
}

func (f *fakeSocket) Send(data []byte) error {
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}
