package ccu

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/marmos91/dittofs/internal/transport"
	"github.com/marmos91/dittofs/internal/wire"
	"github.com/marmos91/dittofs/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startFakePeer(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}

func acceptPeer(t *testing.T, ln net.Listener) net.Conn {
	t.Helper()
	conn, err := ln.Accept()
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func peerSend(t *testing.T, conn net.Conn, num uint16, body wire.Body) {
	t.Helper()
	f := &wire.Frame{Address: wire.AddressCCU, Direction: wire.DirectionRSMToCCU, MessageNum: num, Body: body}
	_, err := conn.Write(wire.Encode(f))
	require.NoError(t, err)
}

func peerRead(t *testing.T, conn net.Conn) (wire.Header, wire.Body) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	h, b, err := wire.ReadFrame(conn, wire.DirectionCCUToRSM)
	require.NoError(t, err)
	return h, b
}

// newTestManager builds a Manager with one link pointed at the fake peer
// listener and returns that link for direct phase-level testing.
func newTestManager(t *testing.T, ln net.Listener) (*Manager, *Link) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	m := NewManager(ModeDR, host, []config.InstanceConfig{{ID: 1, Port: uint16(port), LAK: 0x08}}, nil)
	t.Cleanup(m.Shutdown)

	m.linksMu.Lock()
	l := m.links[1]
	m.linksMu.Unlock()
	return m, l
}

// dialLink connects directly to l's configured address, bypassing the
// sequencer's own connect step so phase-level tests can drive the
// handshake explicitly, then starts this link's receiver so responses the
// fake peer writes actually reach the shared response queue.
func dialLink(t *testing.T, m *Manager, l *Link) *transport.Handle {
	t.Helper()
	h, err := transport.Connect(l.Addr())
	require.NoError(t, err)

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })
	go runReceiver(l, h, stop, m.responses, m.metrics, m.onStatus)

	return h
}

// startBackground runs the sender and response dispatcher so send()/waitFor()
// behave as they do under Manager.Run(), without also starting per-link
// connect/sequencer goroutines (phase-level tests drive those by hand).
func startBackground(t *testing.T, m *Manager) {
	t.Helper()
	go runSender(m.snapshotLinks(), m.outbound, m.outstanding, m.metrics, m.onStatus)
	go m.runDispatcher()
}

func TestInitialize_HappyPath(t *testing.T) {
	ln := startFakePeer(t)
	m, l := newTestManager(t, ln)
	startBackground(t, m)

	go func() {
		conn := acceptPeer(t, ln)
		_, body := peerRead(t, conn)
		init, ok := body.(*wire.InitChannelBody)
		require.True(t, ok)
		peerSend(t, conn, 0, &wire.ConfirmInitBody{LAK: init.LAK, SLP: 1, VDR: 2, VOR1: 3, VOR2: 4, BCB: 7})
	}()

	l.setHandle(dialLink(t, m, l))
	l.setStatus(Active)

	ok := m.initialize(l)
	assert.True(t, ok)
	assert.Equal(t, Active, l.Status())
}

func TestInitialize_LAKMismatch(t *testing.T) {
	ln := startFakePeer(t)
	m, l := newTestManager(t, ln)
	startBackground(t, m)

	go func() {
		conn := acceptPeer(t, ln)
		peerRead(t, conn)
		peerSend(t, conn, 0, &wire.ConfirmInitBody{LAK: 0xFF, SLP: 1, VDR: 2, VOR1: 3, VOR2: 4, BCB: 1})
	}()

	l.setHandle(dialLink(t, m, l))
	l.setStatus(Active)

	ok := m.initialize(l)
	assert.False(t, ok)
	assert.Equal(t, Failed, l.Status())
}

func TestSessionPrepare_ModeDeterminesProgram(t *testing.T) {
	ln := startFakePeer(t)
	m, l := newTestManager(t, ln)
	m.mode = ModeOR1
	startBackground(t, m)

	received := make(chan uint8, 8)
	go func() {
		conn := acceptPeer(t, ln)
		for i := 0; i < len(sessionProgram[ModeOR1]); i++ {
			_, body := peerRead(t, conn)
			received <- body.Type()
		}
	}()

	l.setHandle(dialLink(t, m, l))
	l.setStatus(Active)

	m.sessionPrepare(l)

	for _, want := range sessionProgram[ModeOR1] {
		got := <-received
		assert.Equal(t, want, got)
	}
}

func TestKeepAliveWatchdog_FailsSilentLink(t *testing.T) {
	ln := startFakePeer(t)
	m, l := newTestManager(t, ln)
	go acceptPeer(t, ln)

	l.setHandle(dialLink(t, m, l))
	l.setStatus(Active)
	l.lastActivityTime = time.Now().Add(-2 * KeepAliveTimeout)

	m.checkKeepAlive()

	assert.Equal(t, Failed, l.Status())
}

func TestKeepAliveWatchdog_LeavesActiveLinkAlone(t *testing.T) {
	ln := startFakePeer(t)
	m, l := newTestManager(t, ln)
	go acceptPeer(t, ln)

	l.setHandle(dialLink(t, m, l))
	l.setStatus(Active)
	l.touchActivity()

	m.checkKeepAlive()

	assert.Equal(t, Active, l.Status())
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
		ok   bool
	}{
		{"", ModeDR, true},
		{"dr", ModeDR, true},
		{"OR1", ModeOR1, true},
		{"vr", ModeVR, true},
		{"bogus", "", false},
	}
	for _, c := range cases {
		got, ok := ParseMode(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if ok {
			assert.Equal(t, c.want, got, c.in)
		}
	}
}
