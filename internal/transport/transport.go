// Package transport provides the byte-stream abstraction the protocol layer
// runs over: connect / listen / accept / send / recv / close, uniformly,
// with one concrete TCP implementation.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"
)

// pollInterval bounds how long a blocking Recv waits before re-checking its
// deadline parameter, so callers can poll a shutdown flag promptly instead
// of blocking indefinitely on the socket.
const pollInterval = 500 * time.Millisecond

// RecvResult classifies the outcome of a Recv call.
type RecvResult int

const (
	// RecvOK indicates n bytes of data were read into the caller's buffer.
	RecvOK RecvResult = iota
	// RecvClosed indicates the peer closed the connection cleanly (EOF).
	RecvClosed
	// RecvInterrupted indicates no data arrived before the poll interval
	// elapsed; the caller should re-check its own shutdown condition and
	// retry rather than treat this as an error.
	RecvInterrupted
)

// Handle is an open connection, as returned by Connect or Accept.
type Handle struct {
	conn net.Conn
}

// Addr returns the remote address of the connection, for logging.
func (h *Handle) Addr() string {
	if h == nil || h.conn == nil {
		return ""
	}
	return h.conn.RemoteAddr().String()
}

// Listener is a bound, listening TCP socket.
type Listener struct {
	ln net.Listener
}

// Addr returns the local address the listener is bound to.
func (l *Listener) Addr() string {
	return l.ln.Addr().String()
}

// Connect opens a TCP connection to target ("host:port").
func Connect(target string) (*Handle, error) {
	conn, err := net.Dial("tcp", target)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", target, err)
	}
	return &Handle{conn: conn}, nil
}

// Listen binds and listens on the given TCP port. net.Listen uses the
// system's default backlog, not a backlog of 1; the one-active-connection
// rule of §4.4 is enforced by the RSM listener closing any connection it
// accepts while the instance is active.
func Listen(port uint16) (*Listener, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("listen :%d: %w", port, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until one client connects, or the listener is closed (in
// which case it returns the underlying net error so the caller can detect
// shutdown).
func Accept(l *Listener) (*Handle, string, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, "", err
	}
	return &Handle{conn: conn}, conn.RemoteAddr().String(), nil
}

// CloseListener stops accepting new connections; any blocked Accept
// unblocks with an error.
func CloseListener(l *Listener) error {
	return l.ln.Close()
}

// Send writes all of b to the connection, retrying partial writes
// internally; it never returns having written a short buffer without error.
func Send(h *Handle, b []byte) error {
	_, err := h.conn.Write(b)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Recv reads up to len(buf) bytes. It polls the socket with a bounded
// deadline so a caller can observe a shutdown flag between calls instead of
// blocking forever; RecvInterrupted is the "no data yet, try again" signal
// equivalent to EINTR in the source implementation.
func Recv(h *Handle, buf []byte) (int, RecvResult, error) {
	if err := h.conn.SetReadDeadline(time.Now().Add(pollInterval)); err != nil {
		return 0, RecvInterrupted, fmt.Errorf("set read deadline: %w", err)
	}

	n, err := h.conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return 0, RecvInterrupted, nil
		}
		if isClosed(err) {
			return n, RecvClosed, nil
		}
		return n, RecvClosed, fmt.Errorf("recv: %w", err)
	}

	return n, RecvOK, nil
}

// HalfClose shuts down the write side of the connection (when supported),
// unblocking a peer's blocked receiver without discarding unread data on
// this end.
func HalfClose(h *Handle) error {
	if tc, ok := h.conn.(*net.TCPConn); ok {
		return tc.CloseWrite()
	}
	return Close(h)
}

// Close releases the connection.
func Close(h *Handle) error {
	return h.conn.Close()
}

func isClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
