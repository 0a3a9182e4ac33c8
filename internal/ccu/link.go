// Package ccu implements the central control unit client: one TCP
// connection per configured RSM target, a command sequencer driving each
// link through initialization, self-test, line-state query, and session
// preparation, and a steady-state dispatch loop with keep-alive watchdog.
package ccu

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/dittofs/internal/transport"
)

// Status is one of the six CCU per-link states (§4.12).
type Status int

const (
	Inactive Status = iota
	Connecting
	Active
	Warning
	Failed
	Disconnecting
)

func (s Status) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case Connecting:
		return "Connecting"
	case Active:
		return "Active"
	case Warning:
		return "Warning"
	case Failed:
		return "Failed"
	case Disconnecting:
		return "Disconnecting"
	default:
		return "Unknown"
	}
}

// StatusCode returns the numeric code used on the status publication stream
// (§6: "Status:<0..5>"), in the same order as the Status iota.
func (s Status) StatusCode() int { return int(s) }

// Link is one CCU↔RSM link's full state, created at CCU start and owned by
// the main task for its process lifetime; the receiver and sender tasks
// borrow the handle under the link's own mutex (§3, §5).
type Link struct {
	ID             int
	TargetIP       string
	TargetPort     uint16
	ExpectedLAK    uint8

	mu               sync.Mutex
	status           Status
	handle           *transport.Handle
	lastActivityTime time.Time

	lastSentType uint8
	lastSentNum  uint16
	lastRecvType uint8
	lastRecvNum  uint16
	lastBCB      uint32
	lastRSK      uint8
	lastTKS      uint8

	outboundSeq uint16
}

// NewLink constructs a Link in its initial Inactive state.
func NewLink(id int, targetIP string, targetPort uint16, expectedLAK uint8) *Link {
	return &Link{
		ID:          id,
		TargetIP:    targetIP,
		TargetPort:  targetPort,
		ExpectedLAK: expectedLAK,
		status:      Inactive,
	}
}

// Addr returns the dial target for this link ("ip:port").
func (l *Link) Addr() string {
	return net.JoinHostPort(l.TargetIP, strconv.Itoa(int(l.TargetPort)))
}

// Status returns the current link status.
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}

// setStatus transitions the link to a new status under lock.
func (l *Link) setStatus(s Status) (old Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	old = l.status
	l.status = s
	return old
}

// setStatusIf transitions only if the current status equals from; reports
// whether the transition happened.
func (l *Link) setStatusIf(from, to Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.status != from {
		return false
	}
	l.status = to
	return true
}

// Handle returns the current transport handle, or nil if none.
func (l *Link) Handle() *transport.Handle {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handle
}

func (l *Link) setHandle(h *transport.Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handle = h
}

// touchActivity records the current time as the last time a byte was
// received on this link, for the keep-alive watchdog.
func (l *Link) touchActivity() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastActivityTime = time.Now()
}

// silentFor reports how long it has been since the last received byte.
func (l *Link) silentFor() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastActivityTime.IsZero() {
		return 0
	}
	return time.Since(l.lastActivityTime)
}

func (l *Link) recordSent(msgType uint8, num uint16) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastSentType, l.lastSentNum = msgType, num
}

func (l *Link) recordRecv(msgType uint8, num uint16, bcb uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRecvType, l.lastRecvNum, l.lastBCB = msgType, num, bcb
}

func (l *Link) recordRSK(rsk uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastRSK = rsk
}

func (l *Link) recordTKS(tks uint8) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastTKS = tks
}

// nextSeq returns this link's next outbound message number, wrapping at
// 2048 (§4.1).
func (l *Link) nextSeq() uint16 {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.outboundSeq
	l.outboundSeq = (l.outboundSeq + 1) % 2048
	return n
}

// Snapshot is an immutable point-in-time view of a link's bookkeeping
// fields, used by the status publisher.
type Snapshot struct {
	ID           int
	Status       Status
	LAK          uint8
	LastSentType uint8
	LastSentNum  uint16
	LastRecvType uint8
	LastRecvNum  uint16
}

// Snapshot returns the current bookkeeping fields under lock.
func (l *Link) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		ID:           l.ID,
		Status:       l.status,
		LAK:          l.ExpectedLAK,
		LastSentType: l.lastSentType,
		LastSentNum:  l.lastSentNum,
		LastRecvType: l.lastRecvType,
		LastRecvNum:  l.lastRecvNum,
	}
}
